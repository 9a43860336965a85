package main

import (
	"fmt"
	"time"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-social"
	"github.com/spf13/cobra"
)

func newOAuthConfigCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "oauth-config",
		Aliases: []string{"oauth"},
		Short:   "Manage OAuth app credentials stored in the database",
	}

	cmd.AddCommand(
		newOAuthConfigSetCommand(flags),
		newOAuthConfigListCommand(flags),
		newOAuthConfigDisableCommand(flags),
	)

	return cmd
}

func parsePlatformArg(raw string) (social.Platform, error) {
	p, ok := social.ParsePlatform(raw)
	if !ok {
		return "", fmt.Errorf("unknown platform %q", raw)
	}
	return p, nil
}

func newOAuthConfigSetCommand(flags *globalFlags) *cobra.Command {
	var clientID, clientSecret string

	cmd := &cobra.Command{
		Use:   "set <platform>",
		Short: "Store encrypted client credentials for a platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := parsePlatformArg(args[0])
			if err != nil {
				return err
			}

			a, err := bootstrap(flags, true)
			if err != nil {
				return err
			}
			defer a.Close()

			box, err := a.cipher()
			if err != nil {
				return err
			}

			if err := a.credentials(box).SaveConfig(cmd.Context(), platform, clientID, clientSecret); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s credentials\n", platform)
			return nil
		},
	}

	cmd.Flags().StringVar(&clientID, "client-id", "", "OAuth client (app) ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "OAuth client (app) secret")
	_ = cmd.MarkFlagRequired("client-id")
	_ = cmd.MarkFlagRequired("client-secret")

	return cmd
}

type oauthConfigRow struct {
	Platform  string    `json:"platform"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
	EnvVars   []string  `json:"env_fallback"`
}

func newOAuthConfigListCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored OAuth configs without secrets",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			configs, err := a.repos.OAuthConfigs().List(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([]oauthConfigRow, 0, len(configs))
			for _, c := range configs {
				idVar, secretVar := social.EnvVarNames(c.Platform)
				rows = append(rows, oauthConfigRow{
					Platform:  string(c.Platform),
					Active:    c.IsActive,
					UpdatedAt: c.UpdatedAt,
					EnvVars:   []string{idVar, secretVar},
				})
			}

			fmt.Fprintln(cmd.OutOrStdout(), print.MaybePrettyJSON(rows))
			return nil
		},
	}
}

func newOAuthConfigDisableCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <platform>",
		Short: "Deactivate stored credentials, falling back to the environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			platform, err := parsePlatformArg(args[0])
			if err != nil {
				return err
			}

			a, err := bootstrap(flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.credentials(nil).DisableConfig(cmd.Context(), platform); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "disabled %s credentials\n", platform)
			return nil
		},
	}
}
