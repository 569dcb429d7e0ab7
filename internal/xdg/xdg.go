// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg provides XDG Base Directory paths for loginguard.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "loginguard"

// UsersFileName is the credential document inside DataDir.
const UsersFileName = "users.json"

// ConfigFileName is the default config file inside ConfigDir.
const ConfigFileName = "config.yaml"

func home() (string, error) {
	h := os.Getenv("HOME")
	if h == "" {
		return "", oops.Code("XDG_NO_HOME").Errorf("HOME is not set")
	}
	return h, nil
}

// resolve returns $env/appName, or $HOME/<fallback...>/appName when env is unset.
func resolve(env string, fallback ...string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	h, err := home()
	if err != nil {
		return "", oops.With("env", env).Wrap(err)
	}
	parts := append([]string{h}, fallback...)
	return filepath.Join(append(parts, appName)...), nil
}

// ConfigDir returns $XDG_CONFIG_HOME/loginguard, defaulting to ~/.config.
func ConfigDir() (string, error) {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// DataDir returns $XDG_DATA_HOME/loginguard, defaulting to ~/.local/share.
func DataDir() (string, error) {
	return resolve("XDG_DATA_HOME", ".local", "share")
}

// StateDir returns $XDG_STATE_HOME/loginguard, defaulting to ~/.local/state.
func StateDir() (string, error) {
	return resolve("XDG_STATE_HOME", ".local", "state")
}

// RuntimeDir returns $XDG_RUNTIME_DIR/loginguard, falling back to StateDir()/run.
func RuntimeDir() (string, error) {
	if base := os.Getenv("XDG_RUNTIME_DIR"); base != "" {
		return filepath.Join(base, appName), nil
	}
	state, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(state, "run"), nil
}

// UsersFile returns the default path of the credential document.
func UsersFile() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, UsersFileName), nil
}

// ConfigFile returns the default config file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ConfigFileName), nil
}

// EnsureDir creates path and its parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.Code("XDG_MKDIR_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
