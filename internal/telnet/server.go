// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package telnet provides the line-based player transport.
package telnet

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/loginguard/internal/command"
	"github.com/holomush/loginguard/internal/gate"
	"github.com/holomush/loginguard/internal/observability"
	"github.com/holomush/loginguard/internal/world"
)

// Deps are the collaborators shared by every connection.
type Deps struct {
	Gate       *gate.Gate
	World      *world.World
	Dispatcher *command.Dispatcher
	Metrics    *observability.Metrics
	Logger     *slog.Logger
}

// Server is a telnet server.
type Server struct {
	addr     string
	deps     Deps
	services *command.Services

	mu       sync.RWMutex
	listener net.Listener
	conns    sync.WaitGroup
}

// NewServer creates a new telnet server.
func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	return &Server{
		addr:     addr,
		deps:     deps,
		services: &command.Services{Gate: deps.Gate, World: deps.World},
	}
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run accepts connections until ctx is cancelled, then waits for every
// connection handler to finish.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return oops.Code("TELNET_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.deps.Logger.Info("telnet server started", "addr", listener.Addr().String())

	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			s.deps.Logger.Debug("error closing listener", "error", err)
		}
	}()

	defer s.conns.Wait()
	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.deps.Logger.Error("accept failed", "error", err)
				continue
			}
		}
		s.deps.Metrics.RecordConnection()
		handler := NewConnectionHandler(conn, s.deps, s.services)
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			handler.Handle(ctx)
		}()
	}
}
