// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Label values shared by the gate and transports.
const (
	MethodRegister  = "register"
	MethodLogin     = "login"
	MethodHandshake = "handshake"
	MethodForce     = "force"

	ResultSuccess = "success"
	ResultFailure = "failure"

	ReasonTimeout = "timeout"
	ReasonLockout = "lockout"
	ReasonQuit    = "quit"
	ReasonClosed  = "closed"

	StateAuthenticated   = "authenticated"
	StateUnauthenticated = "unauthenticated"
)

// Metrics holds the login gate metrics. A nil *Metrics records nothing.
type Metrics struct {
	ConnectionsTotal prometheus.Counter
	LoginsTotal      *prometheus.CounterVec
	HandshakesTotal  *prometheus.CounterVec
	DisconnectsTotal *prometheus.CounterVec
	Sessions         *prometheus.GaugeVec
}

// NewMetrics creates the gate metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "loginguard_connections_total",
			Help: "Total number of accepted connections",
		}),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loginguard_logins_total",
				Help: "Login attempts by method and result",
			},
			[]string{"method", "result"},
		),
		HandshakesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loginguard_handshakes_total",
				Help: "Trusted handshakes by result code",
			},
			[]string{"result"},
		),
		DisconnectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loginguard_disconnects_total",
				Help: "Session disconnects by reason",
			},
			[]string{"reason"},
		),
		Sessions: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "loginguard_sessions",
				Help: "Connected sessions by authentication state",
			},
			[]string{"state"},
		),
	}

	reg.MustRegister(m.ConnectionsTotal, m.LoginsTotal, m.HandshakesTotal, m.DisconnectsTotal, m.Sessions)
	return m
}

// RecordConnection counts an accepted connection.
func (m *Metrics) RecordConnection() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
}

// RecordLogin counts a login attempt.
func (m *Metrics) RecordLogin(method, result string) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(method, result).Inc()
}

// RecordHandshake counts a handshake by result ("success" or an error code).
func (m *Metrics) RecordHandshake(result string) {
	if m == nil {
		return
	}
	m.HandshakesTotal.WithLabelValues(result).Inc()
}

// RecordDisconnect counts a disconnect.
func (m *Metrics) RecordDisconnect(reason string) {
	if m == nil {
		return
	}
	m.DisconnectsTotal.WithLabelValues(reason).Inc()
}

// SetSessions publishes the session gauges.
func (m *Metrics) SetSessions(authenticated, unauthenticated int) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(StateAuthenticated).Set(float64(authenticated))
	m.Sessions.WithLabelValues(StateUnauthenticated).Set(float64(unauthenticated))
}
