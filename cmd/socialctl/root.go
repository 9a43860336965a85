package main

import (
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configFile string
	envFiles   []string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "socialctl",
		Short:         "Social platform account connections",
		Long:          `socialctl runs the HTTP routes that connect social accounts and manages migrations and OAuth app credentials.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Path to a YAML config file")
	cmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", []string{".env"}, "Env files loaded before reading the environment")

	cmd.AddCommand(
		newServeCommand(flags),
		newMigrateCommand(flags),
		newStatesCommand(flags),
		newKeygenCommand(),
		newOAuthConfigCommand(flags),
	)

	return cmd
}
