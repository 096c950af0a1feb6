package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tower-qa/tower-qa/internal/client"
	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/waiter"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

const (
	untilCompleted = "completed"
	untilStarted   = "started"
	untilStatus    = "status"
)

type waitFlags struct {
	until    string
	statuses []string
	expect   []string
}

func NewWaitCommand(cfg *config.Configuration) *cobra.Command {
	flags := &waitFlags{until: untilCompleted}

	cmd := &cobra.Command{
		Use:   "wait TYPE/ID...",
		Short: "Wait for jobs to complete, start, or reach a status",
		Example: `  towerqa wait job/12
  towerqa wait project_update/3 inventory_update/4 --until started
  towerqa wait job/12 --until status --status running,waiting
  towerqa wait job/12 --expect successful`,
		Args: usageArgs(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			groups, err := parseGroups(args)
			if err != nil {
				return err
			}
			statuses, err := flags.targetStatuses()
			if err != nil {
				return err
			}
			expected, err := parseStatuses(flags.expect)
			if err != nil {
				return err
			}

			c, err := newClient(cfg)
			if err != nil {
				return err
			}
			l, err := openLedger(cmd.Context(), cfg, "wait")
			if err != nil {
				return err
			}
			defer l.Close()

			var refs []models.JobRef
			for _, g := range groups {
				refs = append(refs, g...)
			}

			p := startProgress(cmd.ErrOrStderr(), fmt.Sprintf("Waiting for %d job(s)...", len(refs)))
			jobs, err := waitAll(cmd.Context(), c, refs, statuses, waitOptions(cmd.Context(), cfg, l))
			p.Stop()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var failed []string
			for _, j := range jobs {
				if len(expected) > 0 && !expected.Contains(j.Status) {
					printFail(out, "%s %q is %s, expected %s", j.Ref(), j.Name, j.Status, strings.Join(expected.Strings(), " or "))
					failed = append(failed, j.Ref().String())
					continue
				}
				printOK(out, "%s %q is %s", j.Ref(), j.Name, j.Status)
			}
			if len(failed) > 0 {
				return fmt.Errorf("unexpected status for %s", strings.Join(failed, ", "))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.until, "until", flags.until, "What to wait for: completed, started or status")
	f.StringSliceVar(&flags.statuses, "status", nil, "Statuses ending the wait, with --until status")
	f.StringSliceVar(&flags.expect, "expect", nil, "Statuses the jobs must end in")

	return cmd
}

func (f *waitFlags) targetStatuses() (models.StatusSet, error) {
	switch f.until {
	case untilCompleted:
		if len(f.statuses) > 0 {
			return nil, usageErrorf("--status needs --until status")
		}
		return models.TerminalStatuses, nil
	case untilStarted:
		if len(f.statuses) > 0 {
			return nil, usageErrorf("--status needs --until status")
		}
		return models.StartedStatuses, nil
	case untilStatus:
		if len(f.statuses) == 0 {
			return nil, usageErrorf("--until status needs at least one --status")
		}
		return parseStatuses(f.statuses)
	default:
		return nil, usageErrorf("invalid --until %q: expected completed, started or status", f.until)
	}
}

func parseStatuses(values []string) (models.StatusSet, error) {
	var set models.StatusSet
	for _, v := range values {
		s, err := models.ParseJobStatus(strings.TrimSpace(v))
		if err != nil {
			return nil, &usageError{err: err}
		}
		set = append(set, s)
	}
	return set, nil
}

// waitAll waits on every job concurrently and returns them in input order.
// The first failure cancels the other waits.
func waitAll(ctx context.Context, c *client.Client, refs []models.JobRef, statuses models.StatusSet, opts []waiter.Option) ([]*models.UnifiedJob, error) {
	jobs := make([]*models.UnifiedJob, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			j, err := waiter.WaitUntilStatus(ctx, c.Job(ref), statuses, opts...)
			if err != nil {
				if srvErrors.IsWaitTimeoutError(err) {
					return err
				}
				return fmt.Errorf("waiting for %s: %w", ref, err)
			}
			jobs[i] = j
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return jobs, nil
}
