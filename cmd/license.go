package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/license"
	"github.com/tower-qa/tower-qa/internal/models"
)

type licenseFlags struct {
	instanceCount int
	licenseType   string
	companyName   string
	contactName   string
	contactEmail  string
	days          int
	licenseDate   int64
	trial         bool
	eulaAccepted  bool
	output        string
	install       bool
}

func NewLicenseCommand(cfg *config.Configuration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "license",
		Short: "Work with controller licenses",
	}
	cmd.AddCommand(newLicenseGenerateCommand(cfg))
	return cmd
}

func newLicenseGenerateCommand(cfg *config.Configuration) *cobra.Command {
	flags := &licenseFlags{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a signed license",
		Example: `  towerqa license generate --instance-count 100 --days 30 --output license.json
  towerqa license generate --type basic --trial --install`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := models.ParseLicenseType(flags.licenseType)
			if err != nil {
				return &usageError{err: err}
			}
			if cmd.Flags().Changed("days") && cmd.Flags().Changed("license-date") {
				return usageErrorf("--days and --license-date are mutually exclusive")
			}

			opts := []license.Option{
				license.WithInstanceCount(flags.instanceCount),
				license.WithType(t),
				license.WithCompanyName(flags.companyName),
				license.WithContact(flags.contactName, flags.contactEmail),
				license.WithEulaAccepted(flags.eulaAccepted),
			}
			if cmd.Flags().Changed("trial") {
				opts = append(opts, license.WithTrial(flags.trial))
			}
			if cmd.Flags().Changed("license-date") {
				opts = append(opts, license.WithLicenseDate(flags.licenseDate))
			} else {
				opts = append(opts, license.WithDays(flags.days))
			}

			l, err := license.Generate(opts...)
			if err != nil {
				return err
			}

			if flags.output != "" {
				if err := license.WriteFile(flags.output, l); err != nil {
					return err
				}
				printOK(cmd.ErrOrStderr(), "license written to %s", flags.output)
			} else {
				data, err := json.MarshalIndent(l, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			}

			if !flags.install {
				return nil
			}
			c, err := newClient(cfg)
			if err != nil {
				return err
			}
			info, err := c.InstallLicense(cmd.Context(), l)
			if err != nil {
				return fmt.Errorf("installing license: %w", err)
			}
			printOK(cmd.ErrOrStderr(), "license installed: %d instances, valid %t, compliant %t", info.InstanceCount, info.Valid, info.Compliant)
			return nil
		},
	}

	f := cmd.Flags()
	f.IntVar(&flags.instanceCount, "instance-count", 9999999, "Licensed number of managed hosts")
	f.StringVar(&flags.licenseType, "type", string(models.LicenseTypeEnterprise), "License type: basic, enterprise or legacy")
	f.StringVar(&flags.companyName, "company-name", "Red Hat", "Company the license is issued to")
	f.StringVar(&flags.contactName, "contact-name", "QA Team", "Contact name")
	f.StringVar(&flags.contactEmail, "contact-email", "qa@example.com", "Contact email")
	f.IntVar(&flags.days, "days", 365, "Days until the license expires")
	f.Int64Var(&flags.licenseDate, "license-date", 0, "Explicit expiry as a unix timestamp")
	f.BoolVar(&flags.trial, "trial", false, "Mark the license as a trial")
	f.BoolVar(&flags.eulaAccepted, "eula-accepted", true, "Accept the EULA in the license")
	f.StringVarP(&flags.output, "output", "o", "", "Write the license to this file instead of stdout")
	f.BoolVar(&flags.install, "install", false, "Install the license into the controller")

	return cmd
}
