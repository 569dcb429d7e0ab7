// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/holomush/loginguard/internal/control"
	"github.com/holomush/loginguard/internal/observability"
)

// ServeDeps contains injectable dependencies for the serve command.
// All fields with nil values will use their default implementations.
type ServeDeps struct {
	// ControlServerFactory creates the control socket server.
	// Default: control.NewServer at control.SocketPath
	ControlServerFactory func(g control.Gate, shutdown control.ShutdownFunc) (ControlServer, error)

	// ObservabilityServerFactory creates an observability server.
	// Default: observability.NewServer
	ObservabilityServerFactory func(addr string, readinessChecker observability.ReadinessChecker) ObservabilityServer

	// DataFileGetter returns the default credential file path.
	// Default: xdg.UsersFile
	DataFileGetter func() (string, error)

	// Ready is called once every listener is up. Tests use it to
	// synchronize.
	Ready func(telnetAddr string)
}

// ControlServer interface wraps the methods used from control.Server.
type ControlServer interface {
	Start() error
	Stop(ctx context.Context) error
}

// ObservabilityServer interface wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
	Metrics() *observability.Metrics
	Registerer() prometheus.Registerer
}
