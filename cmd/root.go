package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jzelinskie/cobrautil/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tower-qa/tower-qa/internal/cli"
	"github.com/tower-qa/tower-qa/internal/config"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

// EnvPrefix prefixes the environment variable bound to every flag.
const EnvPrefix = "TOWERQA"

var version = "v0.0.0"

// SetVersion is called from main with the version injected at build time.
func SetVersion(v string) {
	version = v
}

// usageError marks errors caused by how the command was invoked.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

func usageErrorf(format string, args ...any) error {
	return &usageError{err: fmt.Errorf(format, args...)}
}

// usageArgs reports positional argument errors as usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func NewRootCommand(cfg *config.Configuration) *cobra.Command {
	root := &cobra.Command{
		Use:   "towerqa",
		Short: "Drive and verify jobs on a Tower/AWX controller",
		Long: `towerqa waits on controller jobs, checks how they were scheduled against
each other, confirms notifications, and injects node faults.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		// a root with Args and RunE rejects unknown subcommands as arguments
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: cobrautil.CommandStack(
			cobrautil.SyncViperPreRunE(EnvPrefix),
			func(cmd *cobra.Command, _ []string) error {
				if err := setupLogging(cfg); err != nil {
					return err
				}
				return validateConfiguration(cfg)
			},
		),
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	registerGlobalFlags(root, cfg)

	root.AddCommand(
		NewWaitCommand(cfg),
		NewCheckCommand(cfg),
		NewLicenseCommand(cfg),
		NewNotifyCommand(cfg),
		NewReportCommand(cfg),
		NewServeCommand(cfg),
		NewNodeCommand(cfg),
		NewLoginCommand(cfg),
		NewVersionCommand(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context) int {
	cfg := config.NewConfigurationWithOptionsAndDefaults()
	root := NewRootCommand(cfg)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return exitCode(err)
}

func exitCode(err error) int {
	if err == nil {
		return cli.ExitSuccess
	}
	var usage *usageError
	if errors.As(err, &usage) || srvErrors.IsInvalidArgumentError(err) {
		return cli.ExitUsage
	}
	return cli.ExitError
}

// setupLogging replaces the global zap logger according to the log flags.
func setupLogging(cfg *config.Configuration) error {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return &usageError{err: fmt.Errorf("invalid log-level %q", cfg.LogLevel)}
	}

	var zc zap.Config
	if cfg.LogFormat == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return nil
}

func validateConfiguration(cfg *config.Configuration) error {
	if err := cfg.Validate(); err != nil {
		return &usageError{err: err}
	}

	if cfg.Wait.Interval <= 0 {
		return usageErrorf("invalid wait-interval %s: must be positive", cfg.Wait.Interval)
	}
	if cfg.Wait.Timeout < cfg.Wait.Interval {
		return usageErrorf("invalid wait-timeout %s: shorter than wait-interval %s", cfg.Wait.Timeout, cfg.Wait.Interval)
	}

	if cfg.Server.HTTPPort < 1 || cfg.Server.HTTPPort > 65535 {
		return usageErrorf("invalid http-port %d", cfg.Server.HTTPPort)
	}
	if cfg.Server.ServerMode != "dev" && cfg.Server.ServerMode != "prod" {
		return usageErrorf("invalid server mode %q: expected dev or prod", cfg.Server.ServerMode)
	}
	if cfg.Server.CPUCapacity < 1 || cfg.Server.MemCapacity < 1 {
		return usageErrorf("invalid capacity: cpu and mem capacity must be at least 1")
	}
	if cfg.Server.CapacityAdjustment < 0 || cfg.Server.CapacityAdjustment > 1 {
		return usageErrorf("invalid capacity-adjustment %v: expected a value between 0 and 1", cfg.Server.CapacityAdjustment)
	}

	if cfg.Notification.MinPolls < 1 || cfg.Notification.MaxPolls < cfg.Notification.MinPolls {
		return usageErrorf("invalid notification polls: min %d, max %d", cfg.Notification.MinPolls, cfg.Notification.MaxPolls)
	}
	return nil
}
