// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads loginguard settings from defaults, a YAML file,
// LOGINGUARD_* environment variables and command-line flags.
package config

import (
	"reflect"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/loginguard/internal/auth"
	"github.com/holomush/loginguard/internal/gate"
	"github.com/holomush/loginguard/internal/logging"
	"github.com/holomush/loginguard/internal/session"
)

// Error codes.
const (
	CodeInvalid      = "CONFIG_INVALID"
	CodeReadFailed   = "CONFIG_READ_FAILED"
	CodeSchema       = "CONFIG_SCHEMA"
	CodeWatchFailed  = "CONFIG_WATCH_FAILED"
	CodeUnmarshal    = "CONFIG_UNMARSHAL"
	CodeFlagsInvalid = "CONFIG_FLAGS"
)

// Ranges for values that are clamped rather than rejected.
const (
	MinTickRate     = 1
	MaxTickRate     = 100
	DefaultTickRate = 20
)

// Config is the full loginguard configuration. The koanf tags are the keys
// used in the YAML file, the environment (upper-cased, LOGINGUARD_ prefix)
// and the flags (with dashes).
type Config struct {
	LoginTimeoutSeconds int    `koanf:"login_timeout_seconds" json:"login_timeout_seconds,omitempty" jsonschema:"description=Seconds an unauthenticated session may stay connected (30-1800)"`
	MaxLoginAttempts    int    `koanf:"max_login_attempts" json:"max_login_attempts,omitempty" jsonschema:"description=Failed logins before disconnect (1-20)"`
	AllowBypass         bool   `koanf:"allow_bypass" json:"allow_bypass,omitempty" jsonschema:"description=Accept trusted client handshakes"`
	SharedSecret        string `koanf:"shared_secret" json:"shared_secret,omitempty" jsonschema:"description=Handshake signing secret; empty disables handshakes"`
	PasswordHash        string `koanf:"password_hash" json:"password_hash,omitempty" jsonschema:"enum=sha256,enum=argon2id,description=Scheme for new password hashes"`

	TelnetAddr  string `koanf:"telnet_addr" json:"telnet_addr,omitempty" jsonschema:"description=Player listener address"`
	MetricsAddr string `koanf:"metrics_addr" json:"metrics_addr,omitempty" jsonschema:"description=Metrics and health listener; empty disables"`
	DataFile    string `koanf:"data_file" json:"data_file,omitempty" jsonschema:"description=Credential document path; empty uses the XDG data directory"`
	LogFormat   string `koanf:"log_format" json:"log_format,omitempty" jsonschema:"enum=json,enum=text"`
	LogLevel    string `koanf:"log_level" json:"log_level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	TickRate    int    `koanf:"tick_rate" json:"tick_rate,omitempty" jsonschema:"description=World ticks per second (1-100)"`

	AllowedCommands    []string `koanf:"allowed_commands" json:"allowed_commands,omitempty" jsonschema:"description=Glob patterns of commands allowed before login"`
	ReminderInterval   int      `koanf:"reminder_interval_ticks" json:"reminder_interval_ticks,omitempty" jsonschema:"minimum=1,description=Ticks between restriction reminders"`
	RateLimitBurst     int      `koanf:"rate_limit_burst" json:"rate_limit_burst,omitempty" jsonschema:"minimum=1"`
	RateLimitPerSecond float64  `koanf:"rate_limit_per_second" json:"rate_limit_per_second,omitempty" jsonschema:"exclusiveMinimum=0"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LoginTimeoutSeconds: int(session.DefaultLoginTimeout / time.Second),
		MaxLoginAttempts:    session.DefaultMaxAttempts,
		PasswordHash:        string(auth.SchemeSHA256),
		TelnetAddr:          ":4201",
		MetricsAddr:         "127.0.0.1:9100",
		LogFormat:           "json",
		LogLevel:            "info",
		TickRate:            DefaultTickRate,
		ReminderInterval:    100,
		RateLimitBurst:      10,
		RateLimitPerSecond:  2,
	}
}

// Adjustment records a value that was forced into range.
type Adjustment struct {
	Key      string
	Original string
	Applied  string
}

// Clamp forces numeric settings into their allowed ranges and returns what
// it changed.
func (c *Config) Clamp() []Adjustment {
	var changed []Adjustment
	clampInt := func(key string, v *int, lo, hi int) {
		n := min(max(*v, lo), hi)
		if n != *v {
			changed = append(changed, Adjustment{Key: key, Original: strconv.Itoa(*v), Applied: strconv.Itoa(n)})
			*v = n
		}
	}
	clampInt("login_timeout_seconds", &c.LoginTimeoutSeconds,
		int(session.MinLoginTimeout/time.Second), int(session.MaxLoginTimeout/time.Second))
	clampInt("max_login_attempts", &c.MaxLoginAttempts, session.MinMaxAttempts, session.MaxMaxAttempts)
	clampInt("tick_rate", &c.TickRate, MinTickRate, MaxTickRate)
	return changed
}

// Validate rejects values that cannot be clamped.
func (c Config) Validate() error {
	switch auth.Scheme(c.PasswordHash) {
	case auth.SchemeSHA256, auth.SchemeArgon2id:
	default:
		return oops.Code(CodeInvalid).With("password_hash", c.PasswordHash).
			Errorf("password_hash must be sha256 or argon2id")
	}
	switch c.LogFormat {
	case "json", "text":
	default:
		return oops.Code(CodeInvalid).With("log_format", c.LogFormat).
			Errorf("log_format must be json or text")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return oops.Code(CodeInvalid).With("log_level", c.LogLevel).Wrap(err)
	}
	if c.TelnetAddr == "" {
		return oops.Code(CodeInvalid).Errorf("telnet_addr cannot be empty")
	}
	if c.ReminderInterval < 1 {
		return oops.Code(CodeInvalid).With("reminder_interval_ticks", c.ReminderInterval).
			Errorf("reminder_interval_ticks must be at least 1")
	}
	if c.RateLimitBurst < 1 || c.RateLimitPerSecond <= 0 {
		return oops.Code(CodeInvalid).
			With("rate_limit_burst", c.RateLimitBurst).
			With("rate_limit_per_second", c.RateLimitPerSecond).
			Errorf("rate limits must be positive")
	}
	return nil
}

// GateSettings returns the hot-reloadable gate settings.
func (c Config) GateSettings() gate.Settings {
	return gate.Settings{
		LoginTimeout: time.Duration(c.LoginTimeoutSeconds) * time.Second,
		MaxAttempts:  c.MaxLoginAttempts,
		AllowBypass:  c.AllowBypass,
		SharedSecret: c.SharedSecret,
	}
}

// Keys lists every config key.
func Keys() []string {
	t := reflect.TypeFor[Config]()
	keys := make([]string, 0, t.NumField())
	for i := range t.NumField() {
		if key := t.Field(i).Tag.Get("koanf"); key != "" {
			keys = append(keys, key)
		}
	}
	return keys
}
