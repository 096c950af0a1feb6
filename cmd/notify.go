package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/models"
	"github.com/tower-qa/tower-qa/internal/notification"
)

type notifyFlags struct {
	job      string
	absent   bool
	sendTest bool
}

func NewNotifyCommand(cfg *config.Configuration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Check notifications sent by the controller",
	}
	cmd.AddCommand(newNotifyConfirmCommand(cfg))
	return cmd
}

func newNotifyConfirmCommand(cfg *config.Configuration) *cobra.Command {
	flags := &notifyFlags{}

	cmd := &cobra.Command{
		Use:   "confirm TEMPLATE_ID",
		Short: "Confirm a notification reached its service",
		Long: `Looks the message up in the service behind the notification template,
polling until it shows up. With --absent, confirms it never did.

Without --job the message is the template's test message; --send-test asks
the controller to send it first.`,
		Example: `  towerqa notify confirm 4 --send-test --slack-token xoxb-...
  towerqa notify confirm 5 --job job/12 --datastore http://bin.example.com/abc
  towerqa notify confirm 5 --job job/13 --absent`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return usageErrorf("invalid notification template id %q", args[0])
			}
			if flags.job != "" && flags.sendTest {
				return usageErrorf("--send-test cannot be combined with --job")
			}
			var jobRef models.JobRef
			if flags.job != "" {
				if jobRef, err = models.ParseJobRef(flags.job); err != nil {
					return &usageError{err: err}
				}
			}

			c, err := newClient(cfg)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			tmpl, err := c.NotificationTemplate(ctx, id)
			if err != nil {
				return err
			}

			checker := notification.NewChecker().
				Register(models.NotificationTypeSlack, notification.NewSlack(cfg.Notification.SlackAPI, cfg.Notification.SlackToken, channelsOf(*tmpl))).
				Register(models.NotificationTypeWebhook, notification.NewWebhook(cfg.Notification.Datastore))
			if !checker.CanConfirm(*tmpl) {
				return fmt.Errorf("notifications of type %s cannot be confirmed", tmpl.Type)
			}

			var msg notification.Message
			if flags.job != "" {
				job, err := c.GetJob(ctx, jobRef)
				if err != nil {
					return err
				}
				msg, err = notification.DefaultJobMessage(*tmpl, c.BaseURL(), *job)
				if err != nil {
					return err
				}
			} else {
				if flags.sendTest {
					nid, err := c.TestNotification(ctx, id)
					if err != nil {
						return err
					}
					printOK(cmd.ErrOrStderr(), "test notification %d sent", nid)
				}
				if msg, err = notification.DefaultTestMessage(*tmpl, c.BaseURL()); err != nil {
					return err
				}
			}

			opts := []notification.ConfirmOption{
				notification.WithInterval(cfg.Notification.Interval),
				notification.WithMinPolls(cfg.Notification.MinPolls),
				notification.WithMaxPolls(cfg.Notification.MaxPolls),
			}
			expectation := "delivered"
			if flags.absent {
				opts = append(opts, notification.Absent())
				expectation = "not delivered"
			}

			p := startProgress(cmd.ErrOrStderr(), fmt.Sprintf("Looking for the message in %s...", tmpl.Type))
			confirmed, err := checker.Confirm(ctx, *tmpl, msg, opts...)
			p.Stop()
			if err != nil {
				return err
			}

			if !confirmed {
				printFail(cmd.OutOrStdout(), "notification %q was expected to be %s", tmpl.Name, expectation)
				return fmt.Errorf("notification %d not confirmed", id)
			}
			printOK(cmd.OutOrStdout(), "notification %q %s", tmpl.Name, expectation)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.job, "job", "", "Look for the message sent when this job (TYPE/ID) finished")
	f.BoolVar(&flags.absent, "absent", false, "Confirm the message was not delivered")
	f.BoolVar(&flags.sendTest, "send-test", false, "Send the template's test notification first")
	registerNotificationFlags(cmd, cfg)

	return cmd
}

func channelsOf(tmpl models.NotificationTemplate) []string {
	raw, _ := tmpl.Configuration["channels"].([]any)
	channels := make([]string, 0, len(raw))
	for _, ch := range raw {
		if s, ok := ch.(string); ok {
			channels = append(channels, s)
		}
	}
	return channels
}
