// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/loginguard/internal/config"
	"github.com/holomush/loginguard/internal/handshake"
)

// signConfig holds configuration for the sign command.
type signConfig struct {
	secret string
	now    func() time.Time
}

// NewSignCmd creates the sign subcommand.
func NewSignCmd() *cobra.Command {
	cfg := &signConfig{now: time.Now}

	cmd := &cobra.Command{
		Use:   "sign <username>",
		Short: "Print a handshake token for a trusted client",
		Long: `Print a signed handshake token for <username>. A trusted client sends
it as "handshake <token>" to log in without a password. Tokens are valid
for one minute. The secret defaults to shared_secret from the config.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSign(cmd, cfg, args[0])
		},
	}

	cmd.Flags().StringVar(&cfg.secret, "secret", "", "shared secret (default: from config)")
	return cmd
}

func runSign(cmd *cobra.Command, cfg *signConfig, username string) error {
	secret := cfg.secret
	if secret == "" {
		loaded, err := config.NewLoader(resolveConfigFile()).Load()
		if err != nil {
			return oops.Wrapf(err, "invalid configuration")
		}
		secret = loaded.SharedSecret
	}
	if secret == "" {
		return oops.Code(handshake.CodeNoSecret).Errorf("no shared secret configured")
	}

	token, err := handshake.EncodeText(handshake.NewMessage(username, secret, cfg.now()))
	if err != nil {
		return err
	}
	cmd.Println(token)
	return nil
}
