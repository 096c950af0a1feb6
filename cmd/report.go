package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/report"
	"github.com/tower-qa/tower-qa/internal/store"
	"github.com/tower-qa/tower-qa/internal/store/migrations"
)

type reportFlags struct {
	run       string
	filter    string
	limit     uint64
	xlsx      string
	intervals bool
	runs      bool
}

func NewReportCommand(cfg *config.Configuration) *cobra.Command {
	flags := &reportFlags{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show the job snapshots recorded in the ledger",
		Example: `  towerqa report --ledger-path qa.duckdb --runs
  towerqa report --ledger-path qa.duckdb --run 6f1c... --filter "status = failed or elapsed > 2m"
  towerqa report --ledger-path qa.duckdb --intervals --xlsx timeline.xlsx`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cfg.Ledger.Path == "" {
				return usageErrorf("report needs --ledger-path")
			}
			if _, err := os.Stat(cfg.Ledger.Path); err != nil {
				return fmt.Errorf("opening ledger: %w", err)
			}

			ctx := cmd.Context()
			db, err := store.NewDB(cfg.Ledger.Path)
			if err != nil {
				return err
			}
			if err := migrations.Run(ctx, db); err != nil {
				_ = db.Close()
				return err
			}
			s := store.NewStore(db)
			defer s.Close()

			out := cmd.OutOrStdout()
			tableOpts := []report.Option{report.WithColor(!color.NoColor)}

			if flags.runs {
				runs, err := s.Runs().List(ctx)
				if err != nil {
					return err
				}
				for _, r := range runs {
					fmt.Fprintf(out, "%s  %s  %-20s %s\n", r.ID, r.StartedAt.UTC().Format("2006-01-02T15:04:05Z"), r.Command, r.Controller)
				}
				return nil
			}

			opts := []store.ListOption{}
			if flags.run != "" {
				if _, err := s.Runs().Get(ctx, flags.run); err != nil {
					return err
				}
				opts = append(opts, store.ByRun(flags.run))
			}
			if flags.filter != "" {
				byFilter, err := store.ByFilter(flags.filter)
				if err != nil {
					return &usageError{err: err}
				}
				opts = append(opts, byFilter)
			}

			var intervals []models.Interval
			if flags.intervals || flags.xlsx != "" {
				if intervals, err = s.Observations().Intervals(ctx, opts...); err != nil {
					return err
				}
			}
			if flags.limit > 0 {
				opts = append(opts, store.WithLimit(flags.limit))
			}
			obs, err := s.Observations().List(ctx, opts...)
			if err != nil {
				return err
			}

			if flags.intervals {
				report.Intervals(out, intervals, tableOpts...)
			} else {
				report.Observations(out, obs, tableOpts...)
			}

			if flags.xlsx == "" {
				return nil
			}
			f, err := os.Create(flags.xlsx)
			if err != nil {
				return err
			}
			if err := report.WriteXLSX(f, obs, intervals); err != nil {
				_ = f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			printOK(cmd.ErrOrStderr(), "report written to %s", flags.xlsx)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.run, "run", "", "Only show snapshots of this run")
	f.StringVar(&flags.filter, "filter", "", `Filter expression, e.g. "status = failed and node = node1"`)
	f.Uint64Var(&flags.limit, "limit", 0, "Show at most this many snapshots")
	f.StringVar(&flags.xlsx, "xlsx", "", "Also export snapshots and intervals to this spreadsheet")
	f.BoolVar(&flags.intervals, "intervals", false, "Show one execution interval per finished job instead of snapshots")
	f.BoolVar(&flags.runs, "runs", false, "List the recorded runs")

	return cmd
}
