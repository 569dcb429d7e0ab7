// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status labels for command metrics.
const (
	StatusSuccess     = "success"
	StatusError       = "error"
	StatusNotFound    = "not_found"
	StatusRestricted  = "restricted"
	StatusRateLimited = "rate_limited"
)

// CommandExecutions counts dispatched commands.
var CommandExecutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "loginguard_command_executions_total",
		Help: "Total number of command executions",
	},
	[]string{"command", "status"},
)

// CommandDuration observes handler latency.
var CommandDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "loginguard_command_duration_seconds",
		Help:    "Command execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"command"},
)

// RegisterMetrics registers the command metrics with reg.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CommandExecutions, CommandDuration)
}

func recordExecution(command, status string, elapsed time.Duration) {
	CommandExecutions.WithLabelValues(command, status).Inc()
	if elapsed > 0 {
		CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
	}
}
