package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tower-qa/tower-qa/cmd"
)

// set with -ldflags "-X main.version=..."
var version = "v0.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	cmd.SetVersion(version)
	code := cmd.Execute(ctx)
	stop()
	os.Exit(code)
}
