// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package gate coordinates credential checks, login timeouts, reminders,
// the trusted handshake and the restriction loop for every connected session.
//
// Every entry point is a method on Gate. Transports and the control socket
// translate their input into these calls; nothing else mutates session state.
package gate

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/loginguard/internal/auth"
	"github.com/holomush/loginguard/internal/handshake"
	"github.com/holomush/loginguard/internal/observability"
	"github.com/holomush/loginguard/internal/restrict"
	"github.com/holomush/loginguard/internal/schedule"
	"github.com/holomush/loginguard/internal/session"
	"github.com/holomush/loginguard/internal/world"
	"github.com/holomush/loginguard/pkg/errutil"
)

var tracer = otel.Tracer("loginguard/gate")

// Credentials is the credential store used by the gate.
type Credentials interface {
	Register(ctx context.Context, username, password string) error
	Authenticate(ctx context.Context, username, password string) error
	ChangePassword(ctx context.Context, username, newPassword string) error
	SavePosition(ctx context.Context, username string, pos world.Position) error
	Position(username string) (world.Position, bool)
	IsRegistered(username string) bool
	Stats() auth.Stats
	Flush(ctx context.Context) error
}

// Settings are the hot-reloadable gate settings.
type Settings struct {
	LoginTimeout time.Duration
	MaxAttempts  int
	AllowBypass  bool
	SharedSecret string
}

// Deps are the collaborators of a Gate.
type Deps struct {
	Store     Credentials
	World     *world.World
	Scheduler schedule.Scheduler
	// Clock drives handshake freshness checks. Defaults to the wall clock.
	Clock schedule.Clock
	// AllowedCommands overrides the login-family command patterns.
	AllowedCommands []string
	// ReminderInterval is the number of ticks between restriction
	// reminders. Zero keeps the default.
	ReminderInterval int
	Metrics          *observability.Metrics
	Logger           *slog.Logger
}

// Stats summarizes gate state.
type Stats struct {
	Registered    int `json:"registered"`
	Online        int `json:"online"`
	Authenticated int `json:"authenticated"`
}

// Gate is the login gate for a single world.
type Gate struct {
	store     Credentials
	world     *world.World
	sched     schedule.Scheduler
	registry  *session.Registry
	guard     *session.Guard
	reminders *session.Reminders
	verifier  *handshake.Verifier
	enforcer  *restrict.Enforcer
	metrics   *observability.Metrics
	logger    *slog.Logger

	mu    sync.Mutex
	locks map[ulid.ULID]*sync.Mutex
}

// New creates a gate.
func New(deps Deps, settings Settings) (*Gate, error) {
	if deps.Store == nil || deps.World == nil || deps.Scheduler == nil {
		return nil, oops.Code(CodeInvalidConfig).Errorf("store, world and scheduler are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	var clock schedule.Clock = schedule.RealClock{}
	if deps.Clock != nil {
		clock = deps.Clock
	}

	registry := session.NewRegistry()
	guardCfg := session.GuardConfig{LoginTimeout: settings.LoginTimeout, MaxAttempts: settings.MaxAttempts}.Clamp()
	guard, err := session.NewGuard(deps.Scheduler, registry, guardCfg, logger.With("component", "guard"))
	if err != nil {
		return nil, err
	}
	reminders, err := session.NewReminders(deps.Scheduler, registry, guardCfg.LoginTimeout, logger.With("component", "reminders"))
	if err != nil {
		return nil, err
	}

	g := &Gate{
		store:     deps.Store,
		world:     deps.World,
		sched:     deps.Scheduler,
		registry:  registry,
		guard:     guard,
		reminders: reminders,
		verifier: handshake.NewVerifier(handshake.Settings{
			AllowBypass:  settings.AllowBypass,
			SharedSecret: settings.SharedSecret,
		}, clock.Now),
		metrics: deps.Metrics,
		logger:  logger,
		locks:   make(map[ulid.ULID]*sync.Mutex),
	}

	enforcer, err := restrict.NewEnforcer(registry, g.remind,
		restrict.WithAllowedCommands(deps.AllowedCommands),
		restrict.WithReminderInterval(deps.ReminderInterval),
		restrict.WithLogger(logger.With("component", "restrict")),
		restrict.WithSessionLock(g.lockExisting),
	)
	if err != nil {
		return nil, err
	}
	g.enforcer = enforcer
	return g, nil
}

// Apply replaces the hot-reloadable settings. A new login timeout applies to
// sessions armed afterwards.
func (g *Gate) Apply(settings Settings) {
	cfg := session.GuardConfig{LoginTimeout: settings.LoginTimeout, MaxAttempts: settings.MaxAttempts}.Clamp()
	g.guard.SetConfig(cfg)
	g.reminders.SetTimeout(cfg.LoginTimeout)
	g.verifier.SetSettings(handshake.Settings{AllowBypass: settings.AllowBypass, SharedSecret: settings.SharedSecret})
	g.logger.Info("gate settings applied",
		"login_timeout", cfg.LoginTimeout.String(),
		"max_attempts", cfg.MaxAttempts,
		"allow_bypass", settings.AllowBypass,
	)
}

// Enforcer exposes the restriction filters to transports.
func (g *Gate) Enforcer() *restrict.Enforcer {
	return g.enforcer
}

// IsAuthenticated reports whether the session is logged in.
func (g *Gate) IsAuthenticated(p world.Player) bool {
	return g.registry.IsAuthenticated(p.SessionID())
}

// Attempts returns the failed login count of the session.
func (g *Gate) Attempts(p world.Player) int {
	return g.guard.Attempts(p.SessionID())
}

// lock serializes gate operations on one session.
func (g *Gate) lock(id ulid.ULID) func() {
	g.mu.Lock()
	l, ok := g.locks[id]
	if !ok {
		l = &sync.Mutex{}
		g.locks[id] = l
	}
	g.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// lockExisting locks a session that is still tracked. It reports false once
// Leave has dropped the session so late timers do not recreate its entry.
func (g *Gate) lockExisting(id ulid.ULID) (func(), bool) {
	g.mu.Lock()
	l, ok := g.locks[id]
	g.mu.Unlock()
	if !ok {
		return nil, false
	}
	l.Lock()
	return l.Unlock, true
}

func (g *Gate) startSpan(ctx context.Context, name string, p world.Player) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("session.id", p.SessionID().String()),
		attribute.String("session.name", p.Name()),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Join admits a new session. Unauthenticated sessions are moved to spawn,
// greeted, and get a login timeout and reminders.
func (g *Gate) Join(ctx context.Context, p world.Player) error {
	if err := g.world.Add(p); err != nil {
		return err
	}
	g.metrics.RecordConnection()

	id := p.SessionID()
	unlock := g.lock(id)
	defer unlock()

	if g.registry.IsAuthenticated(id) {
		return nil
	}
	p.Teleport(g.world.Spawn())
	registered := g.store.IsRegistered(p.Name())
	cfg := g.guard.Config()
	p.Send(welcomeMessage(p.Name(), registered, cfg.LoginTimeout, cfg.MaxAttempts))
	g.armLocked(p)

	g.logger.Info("session joined", "session_id", id.String(), "name", p.Name(), "registered", registered)
	return nil
}

// armLocked starts the login timeout and reminders for p.
func (g *Gate) armLocked(p world.Player) {
	id := p.SessionID()
	g.guard.Arm(id, func(ctx context.Context) { g.expire(ctx, p) })
	g.reminders.Start(id, func(_ context.Context, stage session.Stage, remaining time.Duration) {
		if !p.Connected() {
			return
		}
		p.Send(reminderMessage(stage, remaining, g.store.IsRegistered(p.Name())))
	})
}

// expire disconnects a session whose login timeout elapsed. The session
// lock is held through the disconnect so a concurrent login either completes
// first or finds the session gone.
func (g *Gate) expire(_ context.Context, p world.Player) {
	id := p.SessionID()
	unlock, ok := g.lockExisting(id)
	if !ok {
		return
	}
	defer unlock()
	if g.registry.IsAuthenticated(id) || !p.Connected() {
		return
	}

	timeout := g.guard.Config().LoginTimeout
	g.logger.Info("login timeout, disconnecting", "session_id", id.String(), "name", p.Name())
	g.metrics.RecordDisconnect(observability.ReasonTimeout)
	p.Disconnect(timeoutReason(timeout))
}

// Leave tears down all state for a departing session.
func (g *Gate) Leave(ctx context.Context, p world.Player) {
	id := p.SessionID()
	unlock := g.lock(id)

	if g.registry.IsAuthenticated(id) {
		if err := g.store.SavePosition(ctx, p.Name(), p.Position()); err != nil {
			errutil.LogWarn(g.logger, "save position on leave failed", err)
		}
	}
	g.registry.MarkUnauthenticated(id)
	g.guard.Forget(id)
	g.reminders.CancelAll(id)
	g.enforcer.Forget(id)
	g.world.Remove(id)
	unlock()

	g.mu.Lock()
	delete(g.locks, id)
	g.mu.Unlock()

	g.logger.Info("session left", "session_id", id.String(), "name", p.Name())
}

// completeLocked applies the login effects. The registry flag is set first
// so timeout and reminder tasks already in flight see the session as
// authenticated.
func (g *Gate) completeLocked(p world.Player, notice string) {
	id := p.SessionID()
	g.registry.MarkAuthenticated(id)
	g.guard.Disarm(id)
	g.reminders.CancelAll(id)
	g.enforcer.Observe(p)
	g.restorePosition(p)
	p.Send(notice)
}

func (g *Gate) restorePosition(p world.Player) {
	pos, ok := g.store.Position(p.Name())
	if !ok {
		return
	}
	if !g.world.HasDimension(pos.Dimension) {
		g.logger.Warn("saved dimension unknown, using spawn", "name", p.Name(), "dimension", pos.Dimension)
		pos = g.world.Spawn()
	}
	p.Teleport(pos)
}

// Register creates an account for the session's name and logs it in.
func (g *Gate) Register(ctx context.Context, p world.Player, password string) (err error) {
	ctx, span := g.startSpan(ctx, "gate.Register", p)
	defer func() { endSpan(span, err) }()

	unlock := g.lock(p.SessionID())
	defer unlock()

	if !p.Connected() {
		return ErrNotOnline(p.Name())
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}
	if err := g.store.Register(ctx, p.Name(), password); err != nil {
		g.metrics.RecordLogin(observability.MethodRegister, observability.ResultFailure)
		return err
	}
	g.completeLocked(p, successMessage(p.Name(), true))
	g.metrics.RecordLogin(observability.MethodRegister, observability.ResultSuccess)
	g.logger.Info("registered", "session_id", p.SessionID().String(), "name", p.Name())
	return nil
}

// Login authenticates the session with password. Reaching the attempt limit
// disconnects the session.
func (g *Gate) Login(ctx context.Context, p world.Player, password string) (err error) {
	ctx, span := g.startSpan(ctx, "gate.Login", p)
	defer func() { endSpan(span, err) }()

	id := p.SessionID()
	name := p.Name()
	unlock := g.lock(id)
	defer unlock()

	if g.registry.IsAuthenticated(id) {
		return ErrAlreadyLoggedIn(name)
	}
	if !g.store.IsRegistered(name) {
		return ErrNotRegistered(name)
	}
	limit := g.guard.Config().MaxAttempts
	if !g.guard.CanAttempt(id) {
		return ErrAttemptsExceeded(name, limit)
	}
	if !p.Connected() {
		return ErrNotOnline(name)
	}

	if err := g.store.Authenticate(ctx, name, password); err != nil {
		if !auth.IsCode(err, auth.CodeInvalidCredentials) {
			return err
		}
		attempts, locked := g.guard.RecordFailure(id)
		g.metrics.RecordLogin(observability.MethodLogin, observability.ResultFailure)
		g.logger.Warn("login failed", "session_id", id.String(), "name", name, "attempts", attempts, "max_attempts", limit)
		wrong := ErrWrongPassword(name, attempts, limit)
		if locked {
			p.Send(PlayerMessage(wrong))
			g.metrics.RecordDisconnect(observability.ReasonLockout)
			p.Disconnect(lockoutReason(limit))
		}
		return wrong
	}

	g.completeLocked(p, successMessage(name, false))
	g.metrics.RecordLogin(observability.MethodLogin, observability.ResultSuccess)
	g.logger.Info("logged in", "session_id", id.String(), "name", name)
	return nil
}

// Logout drops authentication for the session, saves its position and
// restarts the login timeout and reminders.
func (g *Gate) Logout(ctx context.Context, p world.Player) (err error) {
	ctx, span := g.startSpan(ctx, "gate.Logout", p)
	defer func() { endSpan(span, err) }()

	id := p.SessionID()
	unlock := g.lock(id)
	defer unlock()

	if !g.registry.IsAuthenticated(id) {
		return ErrNotLoggedIn(p.Name())
	}
	if err := g.store.SavePosition(ctx, p.Name(), p.Position()); err != nil {
		errutil.LogWarn(g.logger, "save position on logout failed", err)
	}
	g.registry.MarkUnauthenticated(id)
	p.Send(logoutMessage(p.Name()))
	g.armLocked(p)
	g.logger.Info("logged out", "session_id", id.String(), "name", p.Name())
	return nil
}

// ChangePassword replaces the session's password after re-checking the
// current one.
func (g *Gate) ChangePassword(ctx context.Context, p world.Player, current, next string) (err error) {
	ctx, span := g.startSpan(ctx, "gate.ChangePassword", p)
	defer func() { endSpan(span, err) }()

	id := p.SessionID()
	name := p.Name()
	unlock := g.lock(id)
	defer unlock()

	if !g.store.IsRegistered(name) {
		return ErrNotRegistered(name)
	}
	if !g.registry.IsAuthenticated(id) {
		return ErrNotLoggedIn(name)
	}
	if err := auth.ValidatePassword(next); err != nil {
		return oops.With("field", "new").Wrap(err)
	}
	if current == next {
		return ErrSamePassword(name)
	}
	if err := g.store.Authenticate(ctx, name, current); err != nil {
		g.logger.Warn("password change with wrong current password", "session_id", id.String(), "name", name)
		return ErrWrongCurrentPassword(name)
	}
	if err := g.store.ChangePassword(ctx, name, next); err != nil {
		return err
	}
	p.Send(PasswordChangedMessage)
	return nil
}

// ForceLogin logs in an online player without a password. Only the control
// socket calls it.
func (g *Gate) ForceLogin(ctx context.Context, username string) (err error) {
	_, span := tracer.Start(ctx, "gate.ForceLogin", trace.WithAttributes(attribute.String("session.name", username)))
	defer func() { endSpan(span, err) }()

	p, ok := g.world.FindByName(username)
	if !ok || !p.Connected() {
		return ErrNotOnline(username)
	}
	if !g.store.IsRegistered(p.Name()) {
		return ErrNotRegistered(p.Name())
	}

	unlock := g.lock(p.SessionID())
	defer unlock()
	if g.registry.IsAuthenticated(p.SessionID()) {
		return ErrAlreadyLoggedIn(p.Name())
	}
	g.completeLocked(p, ForceLoginNotice)
	g.metrics.RecordLogin(observability.MethodForce, observability.ResultSuccess)
	g.logger.Info("force login", "session_id", p.SessionID().String(), "name", p.Name())
	return nil
}

// Handshake logs the session in from a signed handshake. Failures are
// reported to the caller for logging only; the player is told nothing.
func (g *Gate) Handshake(ctx context.Context, p world.Player, msg handshake.Message) (err error) {
	_, span := g.startSpan(ctx, "gate.Handshake", p)
	defer func() { endSpan(span, err) }()

	id := p.SessionID()
	name := p.Name()
	defer func() {
		if err != nil {
			g.metrics.RecordHandshake(errutil.Code(err))
			errutil.LogWarn(g.logger, "handshake rejected", err)
		}
	}()

	if err := g.verifier.Verify(name, msg); err != nil {
		return err
	}

	unlock := g.lock(id)
	defer unlock()
	if g.registry.IsAuthenticated(id) {
		return oops.Code(CodeHandshakeAuthenticated).With("username", name).Errorf("session already authenticated")
	}
	if !g.store.IsRegistered(name) {
		return oops.Code(CodeHandshakeUnknownUser).With("username", name).Errorf("handshake for unregistered user")
	}
	if !p.Connected() {
		return ErrNotOnline(name)
	}

	g.completeLocked(p, successMessage(name, false))
	g.metrics.RecordHandshake(observability.ResultSuccess)
	g.metrics.RecordLogin(observability.MethodHandshake, observability.ResultSuccess)
	g.logger.Info("handshake login", "session_id", id.String(), "name", name)
	return nil
}

// Tick runs one restriction pass over every connected player. Each player is
// observed under its session lock.
func (g *Gate) Tick(_ context.Context) {
	players := g.world.Players()
	g.enforcer.Tick(players)

	authed := 0
	for _, p := range players {
		if g.registry.IsAuthenticated(p.SessionID()) {
			authed++
		}
	}
	g.metrics.SetSessions(authed, len(players)-authed)
}

// remind sends the short login reminder.
func (g *Gate) remind(p world.Player) {
	p.Send(quickReminder(g.store.IsRegistered(p.Name())))
}

// Stats reports registered, online and authenticated counts.
func (g *Gate) Stats() Stats {
	return Stats{
		Registered:    g.store.Stats().Registered,
		Online:        g.world.Count(),
		Authenticated: g.registry.Count(),
	}
}

type stopper interface {
	Stop(ctx context.Context) error
}

// Shutdown cancels all timers, saves authenticated players' positions,
// flushes the store and clears every authentication flag. Waiting on the
// scheduler is bounded by ctx.
func (g *Gate) Shutdown(ctx context.Context) error {
	g.guard.Stop()
	g.reminders.Stop()

	var errs []error
	if s, ok := g.sched.(stopper); ok {
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	for _, p := range g.world.Players() {
		if g.registry.IsAuthenticated(p.SessionID()) {
			//nolint:errcheck // store logs persistence failures
			g.store.SavePosition(ctx, p.Name(), p.Position())
		}
	}
	if err := g.store.Flush(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, err)
	}
	g.registry.ClearAll()

	if len(errs) > 0 {
		return oops.Code("GATE_SHUTDOWN_FAILED").Join(errs...)
	}
	g.logger.Info("gate stopped")
	return nil
}
