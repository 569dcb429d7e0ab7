// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"github.com/spf13/pflag"
)

// RegisterFlags adds a flag for every command-line tunable key. Flag
// defaults are the built-in defaults, so an unset flag never overrides the
// file or the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Int("login-timeout-seconds", d.LoginTimeoutSeconds, "seconds an unauthenticated session may stay connected")
	fs.Int("max-login-attempts", d.MaxLoginAttempts, "failed logins before disconnect")
	fs.Bool("allow-bypass", d.AllowBypass, "accept trusted client handshakes")
	fs.String("password-hash", d.PasswordHash, "scheme for new password hashes (sha256, argon2id)")
	fs.String("telnet-addr", d.TelnetAddr, "player listener address")
	fs.String("metrics-addr", d.MetricsAddr, "metrics and health listener (empty disables)")
	fs.String("data-file", d.DataFile, "credential document path (default: XDG data dir)")
	fs.String("log-format", d.LogFormat, "log format (json, text)")
	fs.String("log-level", d.LogLevel, "log level (debug, info, warn, error)")
	fs.Int("tick-rate", d.TickRate, "world ticks per second")
}
