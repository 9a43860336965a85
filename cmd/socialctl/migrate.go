package main

import (
	"fmt"

	"github.com/goliatone/go-social/repository"
	"github.com/spf13/cobra"
)

func newMigrateCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := bootstrap(flags, false)
				if err != nil {
					return err
				}
				defer a.Close()

				group, err := repository.Migrate(cmd.Context(), a.store)
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrated to %s\n", group)
				return nil
			},
		},
		&cobra.Command{
			Use:   "rollback",
			Short: "Roll back the last migration group",
			RunE: func(cmd *cobra.Command, args []string) error {
				a, err := bootstrap(flags, false)
				if err != nil {
					return err
				}
				defer a.Close()

				group, err := repository.Rollback(cmd.Context(), a.store)
				if err != nil {
					return err
				}
				if group.IsZero() {
					fmt.Fprintln(cmd.OutOrStdout(), "rolled back last migration group")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "rolled back %s\n", group)
				return nil
			},
		},
	)

	return cmd
}
