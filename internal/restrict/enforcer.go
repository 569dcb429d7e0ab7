// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package restrict keeps unauthenticated sessions inert: frozen in place, in
// observer mode, unable to chat, change region or run anything but the
// login-family commands.
package restrict

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/loginguard/internal/world"
)

// Defaults.
const (
	// DefaultEpsilon is the drift tolerated before a frozen session is moved back.
	DefaultEpsilon = 0.1
	// DefaultReminderInterval is the number of ticks between quick reminders,
	// about five seconds at 20 ticks per second.
	DefaultReminderInterval = 100
)

// ChatBlockedMessage is sent when an unauthenticated session tries to chat.
const ChatBlockedMessage = "You need to log in to use chat!"

// DefaultAllowedCommands are the command patterns usable before login.
var DefaultAllowedCommands = []string{"register", "registrar", "login", "logar", "logout"}

// Authenticator reports session authentication.
type Authenticator interface {
	IsAuthenticated(id ulid.ULID) bool
}

// SessionLock acquires the caller's per-session lock. ok is false when the
// session is no longer tracked and must be skipped.
type SessionLock func(id ulid.ULID) (unlock func(), ok bool)

// RemindFunc sends the short "you must log in" reminder to a player.
type RemindFunc func(p world.Player)

// Snapshot is what a session looked like when it was first frozen.
type Snapshot struct {
	Position world.Position
	Mode     world.Mode
}

type frozen struct {
	snap     Snapshot
	cooldown int
}

// Enforcer applies restrictions to unauthenticated sessions and lifts them
// once the session authenticates.
type Enforcer struct {
	auth     Authenticator
	remind   RemindFunc
	logger   *slog.Logger
	epsilon  float64
	interval int
	allowed  []glob.Glob
	lock     SessionLock

	mu     sync.Mutex
	frozen map[ulid.ULID]*frozen
}

// Option configures an Enforcer.
type Option func(*options)

type options struct {
	epsilon  float64
	interval int
	patterns []string
	logger   *slog.Logger
	lock     SessionLock
}

// WithEpsilon sets the drift tolerance.
func WithEpsilon(eps float64) Option {
	return func(o *options) {
		if eps >= 0 {
			o.epsilon = eps
		}
	}
}

// WithReminderInterval sets the ticks between quick reminders.
func WithReminderInterval(ticks int) Option {
	return func(o *options) {
		if ticks > 0 {
			o.interval = ticks
		}
	}
}

// WithAllowedCommands replaces the login-family command patterns. Patterns use
// glob syntax, e.g. "{login,logar}".
func WithAllowedCommands(patterns []string) Option {
	return func(o *options) {
		if len(patterns) > 0 {
			o.patterns = patterns
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSessionLock makes Tick observe each player under lock, so a tick never
// acts on an authentication state that changed underneath it.
func WithSessionLock(lock SessionLock) Option {
	return func(o *options) {
		if lock != nil {
			o.lock = lock
		}
	}
}

// NewEnforcer creates an enforcer.
func NewEnforcer(auth Authenticator, remind RemindFunc, opts ...Option) (*Enforcer, error) {
	if auth == nil {
		return nil, oops.Code("RESTRICT_INVALID_CONFIG").Errorf("authenticator cannot be nil")
	}
	if remind == nil {
		remind = func(world.Player) {}
	}
	o := options{
		epsilon:  DefaultEpsilon,
		interval: DefaultReminderInterval,
		patterns: DefaultAllowedCommands,
		logger:   slog.New(slog.DiscardHandler),
		lock: func(ulid.ULID) (func(), bool) {
			return func() {}, true
		},
	}
	for _, opt := range opts {
		opt(&o)
	}

	allowed := make([]glob.Glob, 0, len(o.patterns))
	for _, p := range o.patterns {
		g, err := glob.Compile(strings.ToLower(p))
		if err != nil {
			return nil, oops.Code("RESTRICT_INVALID_PATTERN").With("pattern", p).Wrap(err)
		}
		allowed = append(allowed, g)
	}

	return &Enforcer{
		auth:     auth,
		remind:   remind,
		logger:   o.logger,
		epsilon:  o.epsilon,
		interval: o.interval,
		allowed:  allowed,
		lock:     o.lock,
		frozen:   make(map[ulid.ULID]*frozen),
	}, nil
}

// Tick applies restrictions to every player. Called once per world tick.
func (e *Enforcer) Tick(players []world.Player) {
	for _, p := range players {
		unlock, ok := e.lock(p.SessionID())
		if !ok {
			continue
		}
		e.Observe(p)
		unlock()
	}
}

// Observe applies one tick of enforcement to p.
func (e *Enforcer) Observe(p world.Player) {
	if !p.Connected() {
		return
	}
	id := p.SessionID()
	if e.auth.IsAuthenticated(id) {
		e.release(p)
		return
	}

	e.mu.Lock()
	st, ok := e.frozen[id]
	if !ok {
		st = &frozen{snap: Snapshot{Position: p.Position(), Mode: p.Mode()}}
		e.frozen[id] = st
		e.logger.Debug("session frozen", "session_id", id.String(), "name", p.Name(), "mode", st.snap.Mode.String())
	}
	anchor := st.snap.Position
	sendReminder := st.cooldown <= 0
	if sendReminder {
		st.cooldown = e.interval - 1
	} else {
		st.cooldown--
	}
	e.mu.Unlock()

	if p.Mode() != world.ModeObserver {
		p.SetMode(world.ModeObserver)
	}
	cur := p.Position()
	if cur.DistanceTo(anchor) > e.epsilon {
		p.Teleport(anchor.WithRotation(cur.Yaw, cur.Pitch))
	}
	if sendReminder {
		e.remind(p)
	}
}

// release restores the mode captured when p was frozen.
func (e *Enforcer) release(p world.Player) {
	id := p.SessionID()
	e.mu.Lock()
	st, ok := e.frozen[id]
	delete(e.frozen, id)
	e.mu.Unlock()

	if !ok {
		return
	}
	if p.Mode() != st.snap.Mode {
		p.SetMode(st.snap.Mode)
		e.logger.Debug("session released", "session_id", id.String(), "name", p.Name(), "mode", st.snap.Mode.String())
	}
}

// Forget drops bookkeeping for a session regardless of its state.
func (e *Enforcer) Forget(id ulid.ULID) {
	e.mu.Lock()
	delete(e.frozen, id)
	e.mu.Unlock()
}

// Snapshot returns the freeze snapshot for a session.
func (e *Enforcer) Snapshot(id ulid.ULID) (Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.frozen[id]
	if !ok {
		return Snapshot{}, false
	}
	return st.snap, true
}

// Frozen returns how many sessions are currently restricted.
func (e *Enforcer) Frozen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.frozen)
}

// CommandAllowed reports whether name is a login-family command.
func (e *Enforcer) CommandAllowed(name string) bool {
	name = strings.ToLower(strings.TrimPrefix(name, "/"))
	for _, g := range e.allowed {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// AllowCommand reports whether p may run the command line. Blocked commands
// trigger a quick reminder.
func (e *Enforcer) AllowCommand(p world.Player, line string) bool {
	if e.auth.IsAuthenticated(p.SessionID()) {
		return true
	}
	fields := strings.Fields(line)
	if len(fields) > 0 && e.CommandAllowed(fields[0]) {
		return true
	}
	e.remind(p)
	return false
}

// AllowChat reports whether p may send free-text chat.
func (e *Enforcer) AllowChat(p world.Player) bool {
	if e.auth.IsAuthenticated(p.SessionID()) {
		return true
	}
	p.Send(ChatBlockedMessage)
	return false
}

// AllowRegionChange reports whether p may move to another region.
func (e *Enforcer) AllowRegionChange(p world.Player, target string) bool {
	if e.auth.IsAuthenticated(p.SessionID()) {
		return true
	}
	e.logger.Debug("region change blocked", "name", p.Name(), "target", target)
	e.remind(p)
	return false
}
