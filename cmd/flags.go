package cmd

import (
	"github.com/spf13/cobra"

	"github.com/tower-qa/tower-qa/internal/config"
)

// registerGlobalFlags binds the settings every subcommand shares.
func registerGlobalFlags(cmd *cobra.Command, cfg *config.Configuration) {
	f := cmd.PersistentFlags()

	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: console or json")

	f.StringVar(&cfg.Tower.URL, "tower-url", cfg.Tower.URL, "Base URL of the controller under test")
	f.StringVar(&cfg.Tower.Username, "tower-username", cfg.Tower.Username, "Controller username")
	f.StringVar(&cfg.Tower.Password, "tower-password", cfg.Tower.Password, "Controller password")
	f.StringVar(&cfg.Tower.Token, "tower-token", cfg.Tower.Token, "OAuth2 token; wins over the password")
	f.BoolVar(&cfg.Tower.Insecure, "tower-insecure", cfg.Tower.Insecure, "Skip TLS verification")
	f.BoolVar(&cfg.Tower.ValidateSchema, "tower-validate-schema", cfg.Tower.ValidateSchema, "Validate unified job payloads against their JSON schema")
	f.StringVar(&cfg.Tower.CLIPath, "tower-cli-path", cfg.Tower.CLIPath, "Path of the awx command line client")
	f.StringVar(&cfg.Tower.CredentialsFolder, "credentials-folder", cfg.Tower.CredentialsFolder, "Folder holding tokens saved by login (default ~/.config/towerqa)")

	f.DurationVar(&cfg.Wait.Interval, "wait-interval", cfg.Wait.Interval, "Delay between two polls")
	f.DurationVar(&cfg.Wait.Timeout, "wait-timeout", cfg.Wait.Timeout, "Give up waiting after this long")
	f.BoolVar(&cfg.Wait.SinceCreated, "wait-since-created", cfg.Wait.SinceCreated, "Count the timeout from the job's creation time")

	f.StringVar(&cfg.Ledger.Path, "ledger-path", cfg.Ledger.Path, "DuckDB file every polled job snapshot is recorded to")
}

func registerServerFlags(cmd *cobra.Command, cfg *config.Configuration) {
	f := cmd.Flags()

	f.IntVar(&cfg.Server.HTTPPort, "server-http-port", cfg.Server.HTTPPort, "Port the fake controller listens on")
	f.StringVar(&cfg.Server.ServerMode, "server-mode", cfg.Server.ServerMode, "dev serves plain HTTP, prod serves HTTPS with a self-signed certificate")
	f.StringVar(&cfg.Server.AdminPassword, "server-admin-password", cfg.Server.AdminPassword, "Password of the seeded admin user")
	f.StringVar(&cfg.Server.TokenSecret, "server-token-secret", cfg.Server.TokenSecret, "HMAC secret for issued tokens (random when empty)")
	f.DurationVar(&cfg.Server.TokenTTL, "server-token-ttl", cfg.Server.TokenTTL, "Lifetime of issued tokens")
	f.DurationVar(&cfg.Server.JobDuration, "server-job-duration", cfg.Server.JobDuration, "How long a simulated job runs")
	f.IntVar(&cfg.Server.CPUCapacity, "server-cpu-capacity", cfg.Server.CPUCapacity, "Simulated node cpu capacity")
	f.IntVar(&cfg.Server.MemCapacity, "server-mem-capacity", cfg.Server.MemCapacity, "Simulated node memory capacity")
	f.Float64Var(&cfg.Server.CapacityAdjustment, "server-capacity-adjustment", cfg.Server.CapacityAdjustment, "Position between cpu and mem capacity, 0 to 1")
	f.StringVar(&cfg.Server.LicenseFile, "server-license-file", cfg.Server.LicenseFile, "License file installed at startup and reloaded on change")
}

func registerNotificationFlags(cmd *cobra.Command, cfg *config.Configuration) {
	f := cmd.Flags()

	f.StringVar(&cfg.Notification.SlackToken, "slack-token", cfg.Notification.SlackToken, "Slack token used to read channel history")
	f.StringVar(&cfg.Notification.SlackAPI, "slack-api", cfg.Notification.SlackAPI, "Slack Web API base URL")
	f.StringVar(&cfg.Notification.Datastore, "datastore", cfg.Notification.Datastore, "Base URL of the webhook request bin")
	f.DurationVar(&cfg.Notification.Interval, "notification-interval", cfg.Notification.Interval, "Delay between two lookups")
	f.IntVar(&cfg.Notification.MinPolls, "notification-min-polls", cfg.Notification.MinPolls, "Lookups before absence is accepted")
	f.IntVar(&cfg.Notification.MaxPolls, "notification-max-polls", cfg.Notification.MaxPolls, "Lookups before giving up")
}
