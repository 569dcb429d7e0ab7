// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package telnet

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/holomush/loginguard/internal/auth"
	"github.com/holomush/loginguard/internal/command"
	"github.com/holomush/loginguard/internal/gate"
	"github.com/holomush/loginguard/internal/observability"
	"github.com/holomush/loginguard/internal/world"
	"github.com/holomush/loginguard/pkg/errutil"
)

// Player-facing transport text.
const (
	Banner         = "Welcome to LoginGuard!"
	NamePrompt     = "Enter your name:"
	NameInUse      = "That name is already online."
	GoodbyeMessage = "Goodbye!"
	ShutdownReason = "Server shutting down."
)

// ConnectionHandler handles a single telnet connection.
type ConnectionHandler struct {
	conn     net.Conn
	reader   *bufio.Reader
	endpoint *connEndpoint
	deps     Deps
	services *command.Services
	connID   ulid.ULID
	logger   *slog.Logger

	player *world.Avatar
}

// NewConnectionHandler creates a new handler.
func NewConnectionHandler(conn net.Conn, deps Deps, services *command.Services) *ConnectionHandler {
	connID := world.NewSessionID()
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("conn_id", connID.String())
	return &ConnectionHandler{
		conn:     conn,
		reader:   bufio.NewReader(conn),
		endpoint: newConnEndpoint(conn, logger),
		deps:     deps,
		services: services,
		connID:   connID,
		logger:   logger,
	}
}

// Handle processes the connection until the peer hangs up, the session is
// disconnected or ctx is cancelled.
func (h *ConnectionHandler) Handle(ctx context.Context) {
	done := make(chan struct{})
	defer func() {
		close(done)
		h.cleanup(ctx)
	}()

	lineCh := make(chan string)
	errCh := make(chan error, 1)

	go func() {
		for {
			line, err := h.reader.ReadString('\n')
			if err != nil {
				errCh <- err
				return
			}
			select {
			case lineCh <- strings.TrimSpace(line):
			case <-done:
				return
			}
		}
	}()

	h.send(Banner)
	h.send(NamePrompt)

	for {
		select {
		case <-ctx.Done():
			if h.player != nil {
				h.player.Disconnect(ShutdownReason)
			}
			return

		case err := <-errCh:
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				h.logger.Debug("connection read error", "error", err)
			}
			if h.player != nil && h.player.Connected() {
				h.deps.Metrics.RecordDisconnect(observability.ReasonClosed)
			}
			return

		case line := <-lineCh:
			if !h.processLine(ctx, line) {
				return
			}
		}
	}
}

// processLine handles one input line and reports whether to keep reading.
func (h *ConnectionHandler) processLine(ctx context.Context, line string) bool {
	if h.player == nil {
		return h.claimName(ctx, line)
	}
	if !h.player.Connected() {
		return false
	}

	if isQuit(line) {
		h.deps.Metrics.RecordDisconnect(observability.ReasonQuit)
		h.player.Disconnect(GoodbyeMessage)
		return false
	}

	err := h.deps.Dispatcher.Dispatch(ctx, line, &command.Execution{
		Player:   h.player,
		Services: h.services,
	})
	if err != nil {
		if msg := command.PlayerMessage(err); msg != "" {
			h.player.Send(msg)
		}
	}
	return true
}

// claimName joins the world under the first valid name the client sends.
func (h *ConnectionHandler) claimName(ctx context.Context, line string) bool {
	if line == "" {
		h.send(NamePrompt)
		return true
	}
	if isQuit(line) {
		//nolint:errcheck // connection is being torn down
		h.endpoint.Close(GoodbyeMessage)
		return false
	}
	if err := auth.ValidateUsername(line); err != nil {
		h.send(gate.PlayerMessage(err))
		h.send(NamePrompt)
		return true
	}

	p := world.NewAvatar(h.connID, line, h.endpoint, h.deps.World.Spawn(), world.ModeSurvival)
	if err := h.deps.Gate.Join(ctx, p); err != nil {
		errutil.LogWarn(h.logger, "join rejected", err)
		reason := gate.PlayerMessage(err)
		if errutil.Code(err) == world.CodeNameInUse {
			reason = NameInUse
		}
		//nolint:errcheck // connection is being torn down
		h.endpoint.Close(reason)
		return false
	}
	h.player = p
	h.logger = h.logger.With("name", line)
	return true
}

func (h *ConnectionHandler) cleanup(ctx context.Context) {
	if p := h.player; p != nil {
		p.MarkDisconnected()
		h.deps.Dispatcher.Forget(p)
		h.deps.Gate.Leave(context.WithoutCancel(ctx), p)
	}
	//nolint:errcheck // idempotent
	h.endpoint.Close("")
	h.endpoint.Wait()
}

func (h *ConnectionHandler) send(msg string) {
	if err := h.endpoint.Send(msg); err != nil {
		h.logger.Debug("failed to queue message", "error", err)
	}
}

func isQuit(line string) bool {
	return strings.EqualFold(strings.TrimPrefix(line, "/"), "quit")
}
