package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command. Without a subcommand it serves the API.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portal",
		Short: "Partner Portal API",
		Long: `Partner Portal API server: partner accounts, password reset
and integration API keys. Configuration comes from the environment.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
