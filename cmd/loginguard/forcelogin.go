// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/loginguard/internal/control"
)

// NewForceLoginCmd creates the force-login subcommand.
func NewForceLoginCmd() *cobra.Command {
	var socketPath string

	cmd := &cobra.Command{
		Use:   "force-login <username>",
		Short: "Log an online player in without a password",
		Long: `Authenticate the online session of <username> as the server console.
The player is told they were force-logged in.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveSocket(socketPath)
			if err != nil {
				return err
			}
			resp, err := control.NewClient(path).ForceLogin(cmd.Context(), args[0])
			if err != nil {
				return oops.With("username", args[0]).Wrapf(err, "force-login failed")
			}
			cmd.Println(resp.Message)
			return nil
		},
	}

	cmd.Flags().StringVar(&socketPath, "socket", "", "control socket path (default: XDG runtime dir)")
	return cmd
}
