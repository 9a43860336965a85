package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatesCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "states",
		Short: "Manage pending OAuth states",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired OAuth states from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.repos.States().DeleteExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("prune states: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired states\n", n)
			return nil
		},
	})

	return cmd
}
