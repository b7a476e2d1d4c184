package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Run the OAuth flow and replace the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			authorizer, err := newAuthorizer(cfg, newLogger(opts))
			if err != nil {
				return err
			}
			if _, err := authorizer.Reauthorize(cmd.Context()); err != nil {
				return fmt.Errorf("authorize: %w", err)
			}
			return nil
		},
	}
}
