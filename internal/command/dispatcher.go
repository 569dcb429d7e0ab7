// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/loginguard/internal/world"
	"github.com/holomush/loginguard/pkg/errutil"
)

var tracer = otel.Tracer("loginguard/command")

// Filter decides what an unauthenticated player may do.
type Filter interface {
	AllowCommand(p world.Player, line string) bool
	AllowChat(p world.Player) bool
}

// Dispatcher parses input, applies the restriction filter and runs handlers.
type Dispatcher struct {
	registry    *Registry
	filter      Filter
	chat        string
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithChatFallback routes input that is not a command to the named entry.
func WithChatFallback(name string) DispatcherOption {
	return func(d *Dispatcher) {
		d.chat = name
	}
}

// WithRateLimiter throttles input per session.
func WithRateLimiter(rl *RateLimiter) DispatcherOption {
	return func(d *Dispatcher) {
		d.rateLimiter = rl
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(registry *Registry, filter Filter, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, oops.Code(CodeNilRegistry).Errorf("registry cannot be nil")
	}
	if filter == nil {
		return nil, oops.Code(CodeNilFilter).Errorf("filter cannot be nil")
	}
	d := &Dispatcher{
		registry: registry,
		filter:   filter,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Forget releases per-session dispatcher state.
func (d *Dispatcher) Forget(p world.Player) {
	if d.rateLimiter != nil {
		d.rateLimiter.Forget(p.SessionID())
	}
}

// Dispatch runs one input line for exec.Player.
func (d *Dispatcher) Dispatch(ctx context.Context, input string, exec *Execution) (err error) {
	parsed, err := Parse(input)
	if err != nil {
		return err
	}

	entry, ok := d.registry.Get(parsed.Name)
	args := parsed.Args
	if !ok {
		chat, hasChat := d.registry.Get(d.chat)
		if parsed.Slashed || d.chat == "" || !hasChat {
			recordExecution(parsed.Name, StatusNotFound, 0)
			return ErrUnknownCommand(parsed.Name)
		}
		entry = chat
		args = strings.TrimSpace(parsed.Raw)
	}

	ctx, span := tracer.Start(ctx, "command.execute",
		trace.WithAttributes(
			attribute.String("command.name", entry.Name),
			attribute.String("session.id", exec.Player.SessionID().String()),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if d.rateLimiter != nil {
		if allowed, cooldownMs := d.rateLimiter.Allow(exec.Player.SessionID()); !allowed {
			span.SetAttributes(attribute.Bool("command.rate_limited", true))
			recordExecution(entry.Name, StatusRateLimited, 0)
			return ErrRateLimited(cooldownMs)
		}
	}

	var allowed bool
	switch {
	case entry.Unrestricted:
		allowed = true
	case entry.Chat:
		allowed = d.filter.AllowChat(exec.Player)
	default:
		allowed = d.filter.AllowCommand(exec.Player, parsed.Name)
	}
	if !allowed {
		span.SetAttributes(attribute.Bool("command.restricted", true))
		recordExecution(entry.Name, StatusRestricted, 0)
		return ErrRestricted(parsed.Name)
	}

	exec.Args = args
	exec.InvokedAs = parsed.Name
	start := time.Now()
	err = entry.Handler(ctx, exec)
	elapsed := time.Since(start)

	if err != nil {
		recordExecution(entry.Name, StatusError, elapsed)
		d.logger.DebugContext(ctx, "command failed",
			append([]any{"command", entry.Name, "session_id", exec.Player.SessionID().String()}, errutil.Attrs(err)...)...)
		return err
	}
	recordExecution(entry.Name, StatusSuccess, elapsed)
	return nil
}
