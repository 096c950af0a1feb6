package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/towertest"
)

const shutdownTimeout = 10 * time.Second

func NewServeCommand(cfg *config.Configuration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a fake controller for exercising the harness",
		Long: `Serves the subset of the controller API the harness uses. Launched jobs
run for --server-job-duration and are scheduled against the simulated node
capacity, so ordering and concurrency checks have something real to observe.`,
		Example: `  towerqa serve --server-http-port 8043 --server-cpu-capacity 2 --server-mem-capacity 2
  towerqa serve --server-mode prod --server-license-file license.json`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctrl, err := towertest.New(cfg.Server)
			if err != nil {
				return fmt.Errorf("building fake controller: %w", err)
			}
			defer ctrl.Close()

			log := zap.S().Named("serve")
			log.Infow("starting fake controller", "port", cfg.Server.HTTPPort, "mode", cfg.Server.ServerMode, "version", towertest.Version)

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return ctrl.Server.Start(ctx)
			})
			g.Go(func() error {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				log.Info("shutting down")
				ctrl.Server.Stop(stopCtx)
				return nil
			})
			return g.Wait()
		},
	}
	registerServerFlags(cmd, cfg)
	return cmd
}
