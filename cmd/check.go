package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tower-qa/tower-qa/internal/client"
	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/report"
	"github.com/tower-qa/tower-qa/internal/timeline"
	"github.com/tower-qa/tower-qa/internal/waiter"
)

type checkFlags struct {
	noWait bool
}

func NewCheckCommand(cfg *config.Configuration) *cobra.Command {
	flags := &checkFlags{}

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify how finished jobs were scheduled against each other",
		Long: `Each argument is a job (TYPE/ID) or a group of jobs joined with "+" that
are expected to have run concurrently. Jobs are waited on until they
complete before their timestamps are compared.`,
	}
	cmd.PersistentFlags().BoolVar(&flags.noWait, "no-wait", false, "Compare the current timestamps without waiting for completion")

	cmd.AddCommand(
		&cobra.Command{
			Use:     "sequential ENTRY ENTRY...",
			Short:   "Check that no two entries overlapped",
			Example: "  towerqa check sequential project_update/3 project_update/4 project_update/5",
			Args:    usageArgs(cobra.MinimumNArgs(2)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCheck(cmd, cfg, flags, args, timeline.CheckSequentialJobs)
			},
		},
		&cobra.Command{
			Use:     "order ENTRY ENTRY...",
			Short:   "Check that entries started in the given order",
			Example: "  towerqa check order job/7 inventory_update/3+inventory_update/4 job/8",
			Args:    usageArgs(cobra.MinimumNArgs(2)),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCheck(cmd, cfg, flags, args, timeline.CheckJobOrder)
			},
		},
		&cobra.Command{
			Use:     "overlap TYPE/ID TYPE/ID",
			Short:   "Check that two jobs ran at the same time",
			Example: "  towerqa check overlap inventory_update/3 inventory_update/4",
			Args:    usageArgs(cobra.ExactArgs(2)),
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, arg := range args {
					if strings.Contains(arg, "+") {
						return usageErrorf("overlap compares two single jobs, not groups")
					}
				}
				return runCheck(cmd, cfg, flags, args, func(entries ...timeline.Entry) error {
					return timeline.CheckOverlappingJobs(entries[0].Members()[0], entries[1].Members()[0])
				})
			},
		},
	)
	return cmd
}

func runCheck(cmd *cobra.Command, cfg *config.Configuration, flags *checkFlags, args []string, check func(...timeline.Entry) error) error {
	groups, err := parseGroups(args)
	if err != nil {
		return err
	}

	c, err := newClient(cfg)
	if err != nil {
		return err
	}
	l, err := openLedger(cmd.Context(), cfg, cmd.CommandPath())
	if err != nil {
		return err
	}
	defer l.Close()

	p := startProgress(cmd.ErrOrStderr(), "Collecting jobs...")
	entries, err := collectEntries(cmd.Context(), c, groups, flags.noWait, waitOptions(cmd.Context(), cfg, l))
	p.Stop()
	if err != nil {
		return err
	}

	if series, err := timeline.ConstructTimeSeries(entries...); err == nil {
		report.Intervals(cmd.OutOrStdout(), series)
	}

	if err := check(entries...); err != nil {
		printFail(cmd.OutOrStdout(), "%s failed", cmd.Name())
		return err
	}
	printOK(cmd.OutOrStdout(), "%s passed", cmd.Name())
	return nil
}

// collectEntries fetches every job, waiting for completion unless noWait,
// and wraps multi-job arguments as groups.
func collectEntries(ctx context.Context, c *client.Client, groups [][]models.JobRef, noWait bool, opts []waiter.Option) ([]timeline.Entry, error) {
	var refs []models.JobRef
	for _, g := range groups {
		refs = append(refs, g...)
	}

	var jobs []*models.UnifiedJob
	if noWait {
		for _, ref := range refs {
			j, err := c.GetJob(ctx, ref)
			if err != nil {
				return nil, err
			}
			jobs = append(jobs, j)
		}
	} else {
		var err error
		if jobs, err = waitAll(ctx, c, refs, models.TerminalStatuses, opts); err != nil {
			return nil, err
		}
	}

	entries := make([]timeline.Entry, 0, len(groups))
	next := 0
	for _, g := range groups {
		members := jobs[next : next+len(g)]
		next += len(g)
		if len(members) == 1 {
			entries = append(entries, timeline.Job(members[0]))
			continue
		}
		entries = append(entries, timeline.Group(members...))
	}
	return entries, nil
}
