// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/loginguard/internal/schedule"
)

// Limits for the guard settings.
const (
	DefaultLoginTimeout = 300 * time.Second
	MinLoginTimeout     = 30 * time.Second
	MaxLoginTimeout     = 1800 * time.Second

	DefaultMaxAttempts = 5
	MinMaxAttempts     = 1
	MaxMaxAttempts     = 20
)

// GuardConfig holds the login timeout and attempt limit.
type GuardConfig struct {
	LoginTimeout time.Duration
	MaxAttempts  int
}

// Clamp returns c with both settings forced into their allowed ranges.
// Zero values become the defaults.
func (c GuardConfig) Clamp() GuardConfig {
	if c.LoginTimeout == 0 {
		c.LoginTimeout = DefaultLoginTimeout
	}
	c.LoginTimeout = min(max(c.LoginTimeout, MinLoginTimeout), MaxLoginTimeout)
	if c.MaxAttempts == 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	c.MaxAttempts = min(max(c.MaxAttempts, MinMaxAttempts), MaxMaxAttempts)
	return c
}

// TimeoutFunc runs when an armed session reaches its login timeout while
// still unauthenticated.
type TimeoutFunc func(ctx context.Context)

type guardState struct {
	attempts int
	timeout  schedule.Handle
	// gen invalidates timeout tasks from earlier arms.
	gen uint64
}

// Guard counts failed login attempts and enforces the login timeout.
//
// Each session has at most one pending timeout. Arming a session again
// cancels the previous timeout first.
type Guard struct {
	sched    schedule.Scheduler
	registry *Registry
	logger   *slog.Logger

	mu       sync.Mutex
	cfg      GuardConfig
	sessions map[ulid.ULID]*guardState
}

// NewGuard creates a guard.
func NewGuard(sched schedule.Scheduler, registry *Registry, cfg GuardConfig, logger *slog.Logger) (*Guard, error) {
	if sched == nil {
		return nil, oops.Code("SESSION_INVALID_GUARD").Errorf("scheduler cannot be nil")
	}
	if registry == nil {
		return nil, oops.Code("SESSION_INVALID_GUARD").Errorf("registry cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Guard{
		sched:    sched,
		registry: registry,
		logger:   logger,
		cfg:      cfg.Clamp(),
		sessions: make(map[ulid.ULID]*guardState),
	}, nil
}

// Config returns the active settings.
func (g *Guard) Config() GuardConfig {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

// SetConfig replaces the settings. The new timeout applies to sessions armed
// afterwards; the new attempt limit applies immediately.
func (g *Guard) SetConfig(cfg GuardConfig) {
	g.mu.Lock()
	g.cfg = cfg.Clamp()
	g.mu.Unlock()
}

// Arm resets the attempt counter for id and schedules its login timeout.
func (g *Guard) Arm(id ulid.ULID, onTimeout TimeoutFunc) {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.sessions[id]
	if !ok {
		st = &guardState{}
		g.sessions[id] = st
	}
	if st.timeout != nil {
		st.timeout.Cancel()
	}
	st.attempts = 0
	st.gen++
	gen := st.gen

	st.timeout = g.sched.After(g.cfg.LoginTimeout, "login-timeout", func(ctx context.Context) {
		g.fire(ctx, id, gen, onTimeout)
	})
}

func (g *Guard) fire(ctx context.Context, id ulid.ULID, gen uint64, onTimeout TimeoutFunc) {
	g.mu.Lock()
	st, ok := g.sessions[id]
	if !ok || st.gen != gen {
		g.mu.Unlock()
		return
	}
	st.timeout = nil
	g.mu.Unlock()

	if g.registry.IsAuthenticated(id) {
		g.logger.Debug("login timeout fired after authentication, ignoring", "session_id", id.String())
		return
	}
	if onTimeout != nil {
		onTimeout(ctx)
	}
}

// Disarm cancels the pending timeout and clears the attempt counter. Called
// when the session authenticates.
func (g *Guard) Disarm(id ulid.ULID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.sessions[id]
	if !ok {
		return
	}
	if st.timeout != nil {
		st.timeout.Cancel()
		st.timeout = nil
	}
	st.attempts = 0
	st.gen++
}

// Forget drops all state for id. Called when the session disconnects.
func (g *Guard) Forget(id ulid.ULID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.sessions[id]; ok {
		if st.timeout != nil {
			st.timeout.Cancel()
		}
		delete(g.sessions, id)
	}
}

// RecordFailure counts a failed attempt and reports the new count and
// whether the limit has been reached.
func (g *Guard) RecordFailure(id ulid.ULID) (attempts int, lockedOut bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.sessions[id]
	if !ok {
		st = &guardState{}
		g.sessions[id] = st
	}
	st.attempts++
	return st.attempts, st.attempts >= g.cfg.MaxAttempts
}

// CanAttempt reports whether id is below the attempt limit.
func (g *Guard) CanAttempt(id ulid.ULID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.sessions[id]
	if !ok {
		return true
	}
	return st.attempts < g.cfg.MaxAttempts
}

// Attempts returns the failed-attempt count for id.
func (g *Guard) Attempts(id ulid.ULID) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	if st, ok := g.sessions[id]; ok {
		return st.attempts
	}
	return 0
}

// Armed reports whether id has a pending login timeout.
func (g *Guard) Armed(id ulid.ULID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	st, ok := g.sessions[id]
	return ok && st.timeout != nil
}

// Stop cancels every pending timeout and forgets all sessions.
func (g *Guard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, st := range g.sessions {
		if st.timeout != nil {
			st.timeout.Cancel()
		}
		delete(g.sessions, id)
	}
}
