package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tower-qa/tower-qa/internal/config"
	"github.com/tower-qa/tower-qa/internal/models"
)

type loginFlags struct {
	scope  string
	logout bool
}

func NewLoginCommand(cfg *config.Configuration) *cobra.Command {
	flags := &loginFlags{scope: "write"}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Save a token for the controller",
		Long: `Creates a personal access token with the given username and password and
saves it, so later commands against the same --tower-url need no password.`,
		Example: `  towerqa login --tower-url https://tower.example.com --tower-password secret
  towerqa login --tower-url https://tower.example.com --logout`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds := credentialStore(cfg)

			if flags.logout {
				if err := creds.Delete(cfg.Tower.URL); err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "logged out of %s", cfg.Tower.URL)
				return nil
			}

			if flags.scope != "read" && flags.scope != "write" {
				return usageErrorf("invalid --scope %q: expected read or write", flags.scope)
			}
			if cfg.Tower.Password == "" && cfg.Tower.Token == "" {
				return usageErrorf("login needs --tower-password or --tower-token")
			}

			c, err := newClient(cfg)
			if err != nil {
				return err
			}
			me, err := c.Me(cmd.Context())
			if err != nil {
				return fmt.Errorf("authenticating: %w", err)
			}
			token, err := c.CreateToken(cmd.Context(), flags.scope)
			if err != nil {
				return fmt.Errorf("creating token: %w", err)
			}

			if err := creds.Save(models.Credentials{
				Host:     cfg.Tower.URL,
				Username: me.Username,
				Token:    token,
			}); err != nil {
				return err
			}
			printOK(cmd.OutOrStdout(), "logged in to %s as %s", cfg.Tower.URL, me.Username)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.scope, "scope", flags.scope, "Token scope: read or write")
	f.BoolVar(&flags.logout, "logout", false, "Forget the saved token instead")

	return cmd
}
