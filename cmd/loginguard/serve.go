// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/loginguard/internal/auth"
	"github.com/holomush/loginguard/internal/command"
	"github.com/holomush/loginguard/internal/command/handlers"
	"github.com/holomush/loginguard/internal/config"
	"github.com/holomush/loginguard/internal/control"
	"github.com/holomush/loginguard/internal/gate"
	"github.com/holomush/loginguard/internal/logging"
	"github.com/holomush/loginguard/internal/observability"
	"github.com/holomush/loginguard/internal/schedule"
	"github.com/holomush/loginguard/internal/telnet"
	"github.com/holomush/loginguard/internal/world"
	"github.com/holomush/loginguard/internal/xdg"
	"github.com/holomush/loginguard/pkg/errutil"
)

// shutdownTimeout bounds the graceful shutdown.
const shutdownTimeout = 5 * time.Second

// World layout served by loginguard.
var (
	spawnPoint      = world.Position{X: 0, Y: 64, Z: 0, Dimension: world.DefaultDimension}
	extraDimensions = []string{"nether", "the_end"}
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the login gate and the telnet listener",
		Long: `Run the login gate. Players connect over telnet and stay frozen in
observer mode until they register or log in. Gate settings reload when the
config file changes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeWithDeps(cmd.Context(), cmd, nil)
		},
	}
	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps runs the server with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cmd *cobra.Command, deps *ServeDeps) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.ControlServerFactory == nil {
		deps.ControlServerFactory = func(g control.Gate, shutdown control.ShutdownFunc) (ControlServer, error) {
			return control.NewServer(g, shutdown, control.WithLogger(slog.Default().With("component", "control"))), nil
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer {
			return observability.NewServer(addr, readinessChecker)
		}
	}
	if deps.DataFileGetter == nil {
		deps.DataFileGetter = xdg.UsersFile
	}

	loader := config.NewLoader(resolveConfigFile(), config.WithFlags(cmd.Flags()))
	cfg, err := loader.Load()
	if err != nil {
		return oops.Wrapf(err, "invalid configuration")
	}

	logger := logging.SetDefault(logging.Options{
		Service: "loginguard",
		Version: version,
		Format:  cfg.LogFormat,
		Level:   cfg.LogLevel,
	})
	// Rebuilt so reload messages go through the configured logger.
	loader = config.NewLoader(loader.Path(), config.WithFlags(cmd.Flags()), config.WithLogger(logger.With("component", "config")))

	dataFile := cfg.DataFile
	if dataFile == "" {
		if dataFile, err = deps.DataFileGetter(); err != nil {
			return oops.Wrapf(err, "resolve credential file")
		}
	}
	if err := xdg.EnsureDir(filepath.Dir(dataFile)); err != nil {
		return err
	}

	hasher, err := auth.NewHasher(auth.Scheme(cfg.PasswordHash))
	if err != nil {
		return err
	}
	store, err := auth.NewStore(dataFile, auth.WithHasher(hasher), auth.WithLogger(logger.With("component", "auth")))
	if err != nil {
		return err
	}
	store.Load(ctx)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var ready atomic.Bool
	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	var obsErrChan <-chan error
	if cfg.MetricsAddr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.MetricsAddr, ready.Load)
		command.RegisterMetrics(obsServer.Registerer())
		metrics = obsServer.Metrics()
		if obsErrChan, err = obsServer.Start(); err != nil {
			return oops.Wrapf(err, "start observability server")
		}
	}

	w := world.New(spawnPoint, extraDimensions...)
	pool := schedule.NewPool(schedule.WithPoolLogger(logger.With("component", "schedule")))
	g, err := gate.New(gate.Deps{
		Store:            store,
		World:            w,
		Scheduler:        pool,
		AllowedCommands:  cfg.AllowedCommands,
		ReminderInterval: cfg.ReminderInterval,
		Metrics:          metrics,
		Logger:           logger.With("component", "gate"),
	}, cfg.GateSettings())
	if err != nil {
		return err
	}

	registry := command.NewRegistry()
	handlers.RegisterAll(registry)
	dispatcher, err := command.NewDispatcher(registry, g.Enforcer(),
		command.WithChatFallback(handlers.ChatCommand),
		command.WithRateLimiter(command.NewRateLimiter(command.RateLimiterConfig{
			BurstCapacity: cfg.RateLimitBurst,
			SustainedRate: cfg.RateLimitPerSecond,
		})),
		command.WithLogger(logger.With("component", "command")),
	)
	if err != nil {
		return err
	}

	ticker, err := world.NewTicker(cfg.TickRate, g.Tick, logger.With("component", "ticker"))
	if err != nil {
		return err
	}
	if err := ticker.Start(ctx); err != nil {
		return err
	}
	defer ticker.Stop()

	controlServer, err := deps.ControlServerFactory(g, control.ShutdownFunc(cancel))
	if err != nil {
		return oops.Wrapf(err, "create control server")
	}
	if err := controlServer.Start(); err != nil {
		return oops.Wrapf(err, "start control server")
	}

	if err := loader.Watch(ctx, func(next config.Config) {
		g.Apply(next.GateSettings())
	}); err != nil {
		errutil.LogWarn(logger, "config hot reload disabled", err)
	}

	srv := telnet.NewServer(cfg.TelnetAddr, telnet.Deps{
		Gate:       g,
		World:      w,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger.With("component", "telnet"),
	})
	telnetErr := make(chan error, 1)
	telnetDone := make(chan struct{})
	go func() {
		defer close(telnetDone)
		if err := srv.Run(ctx); err != nil {
			telnetErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	addr := waitForAddr(ctx, srv, telnetDone)
	if addr != "" {
		ready.Store(true)
		cmd.Println("loginguard listening on " + addr)
		logger.Info("loginguard ready", "telnet_addr", addr, "data_file", dataFile)
		if deps.Ready != nil {
			deps.Ready(addr)
		}
	}

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-telnetErr:
		runErr = oops.Wrapf(err, "telnet server error")
	case err := <-obsErrChan:
		if err != nil {
			runErr = oops.Wrapf(err, "observability server error")
		}
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	ready.Store(false)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	select {
	case <-telnetDone:
	case <-shutdownCtx.Done():
		logger.Warn("telnet connections did not close in time")
	}
	ticker.Stop()

	if err := g.Shutdown(shutdownCtx); err != nil {
		errutil.LogWarn(logger, "gate shutdown incomplete", err)
	}
	if err := controlServer.Stop(shutdownCtx); err != nil {
		errutil.LogWarn(logger, "error stopping control server", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			errutil.LogWarn(logger, "error stopping observability server", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}

// waitForAddr waits until the telnet listener is bound. It returns "" if
// the server exits or ctx ends first.
func waitForAddr(ctx context.Context, srv *telnet.Server, done <-chan struct{}) string {
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		if addr := srv.Addr(); addr != "" {
			return addr
		}
		select {
		case <-ctx.Done():
			return ""
		case <-done:
			return ""
		case <-tick.C:
		}
	}
}
