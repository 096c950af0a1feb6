package main

import (
	"context"
	"os"
	"strconv"

	"github.com/tower-qa/tower-qa/internal/cli"
	"github.com/tower-qa/tower-qa/internal/client"
	"github.com/tower-qa/tower-qa/internal/registry"
)

// Actioner runs the two binaries the suite drives as a user would: the
// controller's awx client and towerqa itself.
type Actioner struct {
	runner      *cli.Runner
	cfg         configuration
	towerURL    string
	credentials string
}

// NewActioner points towerqa at towerURL, usually the recording proxy, and
// keeps its saved logins under credentials.
func NewActioner(c *client.Client, fixtures *registry.Fixtures, cfg configuration, towerURL, credentials string) *Actioner {
	return &Actioner{
		runner:      cli.NewRunner(c, fixtures, cfg.Insecure),
		cfg:         cfg,
		towerURL:    towerURL,
		credentials: credentials,
	}
}

// Awx runs the awx client authenticated as the REST client's user.
func (a *Actioner) Awx(ctx context.Context, args ...string) (*cli.Result, error) {
	return a.runner.Run(ctx, append([]string{a.cfg.AwxPath}, args...), cli.WithAuth())
}

// AwxCreate runs an awx create and deletes the created object on Cleanup.
func (a *Actioner) AwxCreate(ctx context.Context, args ...string) (*cli.Result, error) {
	return a.runner.Run(ctx, append([]string{a.cfg.AwxPath}, args...), cli.WithAuth(), cli.WithTeardown())
}

// AwxBare runs the awx client without any connection arguments.
func (a *Actioner) AwxBare(ctx context.Context, args ...string) (*cli.Result, error) {
	return a.runner.Run(ctx, append([]string{a.cfg.AwxPath}, args...))
}

// Towerqa runs towerqa configured through its environment. extra entries
// override the defaults.
func (a *Actioner) Towerqa(ctx context.Context, extra map[string]string, args ...string) (*cli.Result, error) {
	env := map[string]string{
		"PATH":                          os.Getenv("PATH"),
		"HOME":                          os.Getenv("HOME"),
		"TOWERQA_TOWER_URL":             a.towerURL,
		"TOWERQA_TOWER_USERNAME":        a.cfg.Username,
		"TOWERQA_TOWER_PASSWORD":        a.cfg.Password,
		"TOWERQA_TOWER_INSECURE":        strconv.FormatBool(a.cfg.Insecure),
		"TOWERQA_TOWER_VALIDATE_SCHEMA": "true",
		"TOWERQA_WAIT_TIMEOUT":          a.cfg.WaitTimeout.String(),
		"TOWERQA_CREDENTIALS_FOLDER":    a.credentials,
		"TOWERQA_LOG_LEVEL":             "debug",
	}
	for k, v := range extra {
		if v == "" {
			delete(env, k)
			continue
		}
		env[k] = v
	}
	return a.runner.Run(ctx, append([]string{a.cfg.TowerqaPath}, args...), cli.WithEnv(env))
}

func (a *Actioner) Cleanup(ctx context.Context) error {
	return a.runner.Cleanup(ctx)
}

