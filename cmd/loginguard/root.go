// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/loginguard/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the loginguard CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loginguard",
		Short: "LoginGuard - login gate for a shared world",
		Long: `LoginGuard keeps every new connection inert until it registers or
logs in, and offers operators a control socket for status and force-login.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG config dir)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewForceLoginCmd())
	cmd.AddCommand(NewSignCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// resolveConfigFile returns the --config value or the XDG default. An
// unresolvable default yields "" and the file layer is skipped.
func resolveConfigFile() string {
	if configFile != "" {
		return configFile
	}
	path, err := xdg.ConfigFile()
	if err != nil {
		return ""
	}
	return path
}
