package main

import (
	"fmt"

	"github.com/goliatone/go-social/secretbox"
	"github.com/spf13/cobra"
)

func newKeygenCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new encryption key",
		Long:  `Generate a random 32 byte key, hex encoded, for SOCIAL_SECURITY_ENCRYPTION_KEY or ENCRYPTION_KEY.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secretbox.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
