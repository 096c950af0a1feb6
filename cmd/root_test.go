package cmd

import (
	"bytes"
	"errors"
	"io"
	"fmt"
	"os"
	"time"

	"github.com/go-extras/cobraflags"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"

	"github.com/tower-qa/tower-qa/internal/cli"
	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/models"
	srvErrors "github.com/tower-qa/tower-qa/pkg/errors"
)

var _ = Describe("Root Command", func() {
	var cfg *config.Configuration

	BeforeEach(func() {
		cfg = config.NewConfigurationWithOptionsAndDefaults()
	})

	Describe("Flag Parsing", func() {
		It("should parse the global tower and wait flags", func() {
			root := NewRootCommand(cfg)

			err := root.ParseFlags([]string{
				"--tower-url", "https://tower.example.com",
				"--tower-username", "qa",
				"--tower-password", "secret",
				"--tower-insecure=false",
				"--wait-interval", "1s",
				"--wait-timeout", "30s",
				"--wait-since-created=false",
				"--ledger-path", "/tmp/qa.duckdb",
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(cfg.Tower.URL).To(Equal("https://tower.example.com"))
			Expect(cfg.Tower.Username).To(Equal("qa"))
			Expect(cfg.Tower.Password).To(Equal("secret"))
			Expect(cfg.Tower.Insecure).To(BeFalse())
			Expect(cfg.Wait.Interval).To(Equal(time.Second))
			Expect(cfg.Wait.Timeout).To(Equal(30 * time.Second))
			Expect(cfg.Wait.SinceCreated).To(BeFalse())
			Expect(cfg.Ledger.Path).To(Equal("/tmp/qa.duckdb"))
		})

		It("should parse the server flags of serve", func() {
			cmd := NewServeCommand(cfg)

			err := cmd.ParseFlags([]string{
				"--server-http-port", "9000",
				"--server-mode", "prod",
				"--server-job-duration", "500ms",
				"--server-cpu-capacity", "3",
				"--server-mem-capacity", "6",
				"--server-capacity-adjustment", "0.5",
			})
			Expect(err).ToNot(HaveOccurred())

			Expect(cfg.Server.HTTPPort).To(Equal(9000))
			Expect(cfg.Server.ServerMode).To(Equal("prod"))
			Expect(cfg.Server.JobDuration).To(Equal(500 * time.Millisecond))
			Expect(cfg.Server.CPUCapacity).To(Equal(3))
			Expect(cfg.Server.MemCapacity).To(Equal(6))
			Expect(cfg.Server.CapacityAdjustment).To(Equal(0.5))
		})

		It("should use default values when flags are not provided", func() {
			root := NewRootCommand(cfg)
			err := root.ParseFlags([]string{})
			Expect(err).ToNot(HaveOccurred())

			Expect(cfg.LogLevel).To(Equal("info"))
			Expect(cfg.Tower.URL).To(Equal("https://127.0.0.1:8043"))
			Expect(cfg.Tower.Username).To(Equal("admin"))
			Expect(cfg.Wait.Interval).To(Equal(5 * time.Second))
			Expect(cfg.Wait.Timeout).To(Equal(2 * time.Minute))
			Expect(cfg.Wait.SinceCreated).To(BeTrue())
			Expect(cfg.Server.HTTPPort).To(Equal(8043))
			Expect(cfg.Server.ServerMode).To(Equal("dev"))
			Expect(cfg.Notification.SlackAPI).To(Equal("https://slack.com/api"))
			Expect(cfg.Notification.MaxPolls).To(Equal(12))
		})
	})

	Describe("Environment Variable Binding", func() {
		AfterEach(func() {
			os.Unsetenv("TOWERQA_SERVER_HTTP_PORT")
			os.Unsetenv("TOWERQA_SERVER_MODE")
			os.Unsetenv("TOWERQA_SERVER_JOB_DURATION")
			os.Unsetenv("TOWERQA_SLACK_TOKEN")
			os.Unsetenv("TOWERQA_NOTIFICATION_MAX_POLLS")
		})

		It("should read server configuration from environment variables", func() {
			os.Setenv("TOWERQA_SERVER_HTTP_PORT", "9001")
			os.Setenv("TOWERQA_SERVER_MODE", "prod")
			os.Setenv("TOWERQA_SERVER_JOB_DURATION", "3s")

			cmd := NewServeCommand(cfg)
			err := cmd.ParseFlags([]string{})
			Expect(err).ToNot(HaveOccurred())

			setupViperForEnvVars(EnvPrefix)
			cobraflags.PresetRequiredFlags(EnvPrefix, make(map[*pflag.Flag]bool), cmd)

			Expect(cfg.Server.HTTPPort).To(Equal(9001))
			Expect(cfg.Server.ServerMode).To(Equal("prod"))
			Expect(cfg.Server.JobDuration).To(Equal(3 * time.Second))
		})

		It("should read notification configuration from environment variables", func() {
			os.Setenv("TOWERQA_SLACK_TOKEN", "xoxb-env")
			os.Setenv("TOWERQA_NOTIFICATION_MAX_POLLS", "20")

			cmd := newNotifyConfirmCommand(cfg)
			err := cmd.ParseFlags([]string{})
			Expect(err).ToNot(HaveOccurred())

			setupViperForEnvVars(EnvPrefix)
			cobraflags.PresetRequiredFlags(EnvPrefix, make(map[*pflag.Flag]bool), cmd)

			Expect(cfg.Notification.SlackToken).To(Equal("xoxb-env"))
			Expect(cfg.Notification.MaxPolls).To(Equal(20))
		})

		It("should prefer command line flags over environment variables", func() {
			os.Setenv("TOWERQA_SERVER_HTTP_PORT", "9001")

			cmd := NewServeCommand(cfg)
			err := cmd.ParseFlags([]string{"--server-http-port", "8080"})
			Expect(err).ToNot(HaveOccurred())

			Expect(cfg.Server.HTTPPort).To(Equal(8080))
		})
	})

	Describe("Configuration Validation", func() {
		It("should pass validation with the defaults", func() {
			Expect(validateConfiguration(cfg)).To(Succeed())
		})

		It("should fail without a controller url", func() {
			cfg.Tower.URL = ""
			Expect(validateConfiguration(cfg)).ToNot(Succeed())
		})

		It("should fail with an unknown log level", func() {
			cfg.LogLevel = "verbose"
			Expect(validateConfiguration(cfg)).ToNot(Succeed())
		})

		Context("wait validation", func() {
			It("should fail with a zero interval", func() {
				cfg.Wait.Interval = 0
				err := validateConfiguration(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("invalid wait-interval"))
			})

			It("should fail when the timeout is shorter than the interval", func() {
				cfg.Wait.Interval = 10 * time.Second
				cfg.Wait.Timeout = 5 * time.Second
				err := validateConfiguration(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("invalid wait-timeout"))
			})

			It("should accept a timeout equal to the interval", func() {
				cfg.Wait.Interval = time.Second
				cfg.Wait.Timeout = time.Second
				Expect(validateConfiguration(cfg)).To(Succeed())
			})
		})

		Context("server-mode validation", func() {
			It("should accept 'prod' server mode", func() {
				cfg.Server.ServerMode = "prod"
				Expect(validateConfiguration(cfg)).To(Succeed())
			})

			It("should fail with invalid server mode", func() {
				cfg.Server.ServerMode = "invalid"
				err := validateConfiguration(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("invalid server mode"))
			})
		})

		Context("http-port validation", func() {
			It("should fail with port 0", func() {
				cfg.Server.HTTPPort = 0
				err := validateConfiguration(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("invalid http-port"))
			})

			It("should fail with port > 65535", func() {
				cfg.Server.HTTPPort = 70000
				err := validateConfiguration(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("invalid http-port"))
			})

			It("should accept port 1", func() {
				cfg.Server.HTTPPort = 1
				Expect(validateConfiguration(cfg)).To(Succeed())
			})

			It("should accept port 65535", func() {
				cfg.Server.HTTPPort = 65535
				Expect(validateConfiguration(cfg)).To(Succeed())
			})
		})

		Context("capacity validation", func() {
			It("should fail with zero cpu capacity", func() {
				cfg.Server.CPUCapacity = 0
				err := validateConfiguration(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("invalid capacity"))
			})

			It("should fail with an adjustment above 1", func() {
				cfg.Server.CapacityAdjustment = 1.5
				err := validateConfiguration(cfg)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("invalid capacity-adjustment"))
			})
		})

		It("should fail when max polls is below min polls", func() {
			cfg.Notification.MinPolls = 5
			cfg.Notification.MaxPolls = 2
			err := validateConfiguration(cfg)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("invalid notification polls"))
		})

		It("should report validation failures as usage errors", func() {
			cfg.Server.HTTPPort = 0
			Expect(exitCode(validateConfiguration(cfg))).To(Equal(cli.ExitUsage))
		})
	})

	Describe("Subcommand Resolution", func() {
		// Given a subcommand towerqa does not have
		// When the root command runs it
		// Then the error is typed as a usage error, whatever its wording
		It("should reject an unknown subcommand as a usage error", func() {
			// Arrange
			root := NewRootCommand(cfg)
			root.SetArgs([]string{"frobnicate"})
			root.SetOut(io.Discard)

			// Act
			err := root.Execute()

			// Assert
			var usage *usageError
			Expect(errors.As(err, &usage)).To(BeTrue())
			Expect(exitCode(err)).To(Equal(cli.ExitUsage))
		})

		It("should print help and succeed without arguments", func() {
			var out bytes.Buffer
			root := NewRootCommand(cfg)
			root.SetArgs([]string{"--log-level", "error"})
			root.SetOut(&out)

			err := root.Execute()

			Expect(exitCode(err)).To(Equal(cli.ExitSuccess))
			Expect(out.String()).To(ContainSubstring("Available Commands"))
		})
	})

	Describe("Exit Codes", func() {
		DescribeTable("exitCode",
			func(err error, expected int) {
				Expect(exitCode(err)).To(Equal(expected))
			},
			Entry("success", nil, cli.ExitSuccess),
			Entry("usage error", usageErrorf("bad flag"), cli.ExitUsage),
			Entry("wrapped usage error", fmt.Errorf("parsing: %w", usageErrorf("bad")), cli.ExitUsage),
			Entry("invalid argument", srvErrors.NewInvalidArgumentError("filter", "unknown field"), cli.ExitUsage),
			Entry("wait timeout", srvErrors.NewWaitTimeoutError("job/1 to complete", time.Second, 3), cli.ExitError),
			Entry("ordering failure", errors.New("job/2 started before job/1"), cli.ExitError),
		)
	})

	Describe("parseGroups", func() {
		It("should parse single jobs and groups", func() {
			groups, err := parseGroups([]string{"job/1", "inventory_update/3+inventory_update/4"})
			Expect(err).ToNot(HaveOccurred())
			Expect(groups).To(Equal([][]models.JobRef{
				{{Type: models.JobTypeJob, ID: 1}},
				{{Type: models.JobTypeInventoryUpdate, ID: 3}, {Type: models.JobTypeInventoryUpdate, ID: 4}},
			}))
		})

		It("should reject a malformed reference as a usage error", func() {
			_, err := parseGroups([]string{"job/1", "job/abc"})
			Expect(err).To(HaveOccurred())
			Expect(exitCode(err)).To(Equal(cli.ExitUsage))
		})

		It("should reject an unknown job type", func() {
			_, err := parseGroups([]string{"vm/1"})
			Expect(err).To(HaveOccurred())
		})
	})
})
