// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/loginguard/pkg/errutil"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "LOGINGUARD_"

// Loader layers defaults, the config file, the environment and flags.
type Loader struct {
	path   string
	flags  *pflag.FlagSet
	logger *slog.Logger

	mu      sync.Mutex
	watcher *file.File
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFlags applies changed flags from fs last. Flag names are config keys
// with dashes instead of underscores; unknown flags are ignored.
func WithFlags(fs *pflag.FlagSet) LoaderOption {
	return func(l *Loader) {
		l.flags = fs
	}
}

// WithLogger sets the loader logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader for the YAML file at path. An empty path or a
// missing file skips the file layer.
func NewLoader(path string, opts ...LoaderOption) *Loader {
	l := &Loader{
		path:   path,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Path returns the config file path.
func (l *Loader) Path() string {
	return l.path
}

// Load builds the configuration. The result is clamped and validated.
func (l *Loader) Load() (Config, error) {
	k := koanf.New(".")

	if err := l.loadFile(k); err != nil {
		return Config{}, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return Config{}, oops.Code(CodeReadFailed).Wrapf(err, "load environment")
	}
	if l.flags != nil {
		keys := knownKeys()
		provider := posflag.ProviderWithFlag(l.flags, ".", k, func(f *pflag.Flag) (string, any) {
			key := strings.ReplaceAll(f.Name, "-", "_")
			if _, ok := keys[key]; !ok {
				return "", nil
			}
			if !f.Changed && k.Exists(key) {
				return "", nil
			}
			return key, posflag.FlagVal(l.flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return Config{}, oops.Code(CodeFlagsInvalid).Wrap(err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code(CodeUnmarshal).Wrap(err)
	}
	for _, adj := range cfg.Clamp() {
		l.logger.Warn("config value out of range, clamped",
			"key", adj.Key, "value", adj.Original, "applied", adj.Applied)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (l *Loader) loadFile(k *koanf.Koanf) error {
	if l.path == "" {
		return nil
	}
	data, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		l.logger.Debug("config file not found, using defaults", "path", l.path)
		return nil
	}
	if err != nil {
		return oops.Code(CodeReadFailed).With("path", l.path).Wrap(err)
	}
	if err := ValidateDocument(data); err != nil {
		return oops.With("path", l.path).Wrap(err)
	}
	if err := k.Load(rawBytes(data), yaml.Parser()); err != nil {
		return oops.Code(CodeReadFailed).With("path", l.path).Wrap(err)
	}
	return nil
}

// Watch reloads the file on change and passes each valid result to
// onChange. Invalid edits are logged and the previous config stays in
// effect. Watching stops when ctx is cancelled.
func (l *Loader) Watch(ctx context.Context, onChange func(Config)) error {
	if l.path == "" {
		return nil
	}
	if _, err := os.Stat(l.path); err != nil {
		l.logger.Debug("config file absent, not watching", "path", l.path)
		return nil
	}

	f := file.Provider(l.path)
	err := f.Watch(func(_ any, werr error) {
		if werr != nil {
			errutil.LogWarn(l.logger, "config watch error", oops.Code(CodeWatchFailed).Wrap(werr))
			return
		}
		cfg, err := l.Load()
		if err != nil {
			errutil.LogWarn(l.logger, "config reload rejected, keeping previous settings", err)
			return
		}
		l.logger.Info("config reloaded", "path", l.path)
		onChange(cfg)
	})
	if err != nil {
		return oops.Code(CodeWatchFailed).With("path", l.path).Wrap(err)
	}

	l.mu.Lock()
	l.watcher = f
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.watcher != nil {
			//nolint:errcheck // shutting down
			l.watcher.Unwatch()
			l.watcher = nil
		}
	}()
	return nil
}

// envKey maps LOGINGUARD_LOGIN_TIMEOUT_SECONDS to login_timeout_seconds.
func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

func knownKeys() map[string]struct{} {
	keys := make(map[string]struct{})
	for _, key := range Keys() {
		keys[key] = struct{}{}
	}
	return keys
}

// rawBytes is a koanf provider over bytes already validated by the schema.
type rawBytes []byte

func (b rawBytes) ReadBytes() ([]byte, error) { return b, nil }

func (b rawBytes) Read() (map[string]any, error) {
	return nil, oops.Code(CodeReadFailed).Errorf("raw bytes provider requires a parser")
}
