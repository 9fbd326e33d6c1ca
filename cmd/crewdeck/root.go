// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crewdeck Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Crewdeck CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crewdeck",
		Short: "Crewdeck - project collaboration backend",
		Long: `Crewdeck is the backend for the Crewdeck project-management
platform: account authentication, session management, and the real-time
collaboration gateway.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
