// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package control provides the operator control socket: HTTP over a Unix
// socket for health, status, force-login and shutdown.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/loginguard/internal/gate"
	"github.com/holomush/loginguard/internal/xdg"
	"github.com/holomush/loginguard/pkg/errutil"
)

// SocketName is the control socket file inside the runtime directory.
const SocketName = "loginguard.sock"

// maxRequestBody bounds request bodies.
const maxRequestBody = 4 << 10

// HealthResponse is returned by the /health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// StatusResponse is returned by the /status endpoint.
type StatusResponse struct {
	Running       bool       `json:"running"`
	PID           int        `json:"pid"`
	UptimeSeconds int64      `json:"uptime_seconds"`
	Sessions      gate.Stats `json:"sessions"`
}

// ForceLoginRequest is the body of POST /force-login.
type ForceLoginRequest struct {
	Username string `json:"username"`
}

// MessageResponse is returned by endpoints that only acknowledge.
type MessageResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// Gate is the part of the login gate the control socket drives.
type Gate interface {
	Stats() gate.Stats
	ForceLogin(ctx context.Context, username string) error
}

// ShutdownFunc is called when shutdown is requested.
type ShutdownFunc func()

// Server runs HTTP over a Unix socket for process management.
type Server struct {
	gate         Gate
	shutdownFunc ShutdownFunc
	socketPath   string
	logger       *slog.Logger
	startTime    time.Time

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

// Option configures a Server.
type Option func(*Server)

// WithSocketPath overrides the default socket location.
func WithSocketPath(path string) Option {
	return func(s *Server) {
		s.socketPath = path
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates a new control socket server.
func NewServer(g Gate, shutdownFunc ShutdownFunc, opts ...Option) *Server {
	s := &Server{
		gate:         g,
		shutdownFunc: shutdownFunc,
		logger:       slog.New(slog.DiscardHandler),
		startTime:    time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.running.Store(true)
	return s
}

// SocketPath returns the default path of the control socket.
func SocketPath() (string, error) {
	runtimeDir, err := xdg.RuntimeDir()
	if err != nil {
		return "", oops.Code("CONTROL_SOCKET_PATH").Wrap(err)
	}
	return filepath.Join(runtimeDir, SocketName), nil
}

// Path returns the socket path in use, resolving the default if needed.
func (s *Server) Path() (string, error) {
	if s.socketPath != "" {
		return s.socketPath, nil
	}
	return SocketPath()
}

// Handler returns the control API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("POST /force-login", s.handleForceLogin)
	mux.HandleFunc("POST /shutdown", s.handleShutdown)
	return mux
}

// Start begins listening on the Unix socket.
func (s *Server) Start() error {
	socketPath, err := s.Path()
	if err != nil {
		return err
	}
	s.socketPath = socketPath

	if err := xdg.EnsureDir(filepath.Dir(socketPath)); err != nil {
		return err
	}
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return oops.Code("CONTROL_LISTEN_FAILED").With("path", socketPath).Wrapf(err, "remove stale socket")
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return oops.Code("CONTROL_LISTEN_FAILED").With("path", socketPath).Wrap(err)
	}
	s.listener = listener

	if err := os.Chmod(socketPath, 0o600); err != nil {
		_ = listener.Close()
		return oops.Code("CONTROL_LISTEN_FAILED").With("path", socketPath).Wrapf(err, "set socket permissions")
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("control socket server error", "error", err)
		}
	}()

	s.logger.Info("control socket listening", "path", socketPath)
	return nil
}

// Stop gracefully shuts down the control socket server.
func (s *Server) Stop(ctx context.Context) error {
	s.running.Store(false)

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			return oops.Code("CONTROL_STOP_FAILED").Wrap(err)
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Warn("failed to close control socket listener", "error", err)
		}
	}
	if s.socketPath != "" {
		if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove control socket file", "path", s.socketPath, "error", err)
		}
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := StatusResponse{
		Running:       s.running.Load(),
		PID:           os.Getpid(),
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
	}
	if s.gate != nil {
		resp.Sessions = s.gate.Stats()
	}
	s.respond(w, http.StatusOK, resp)
}

// handleForceLogin authenticates an online session as the console.
func (s *Server) handleForceLogin(w http.ResponseWriter, r *http.Request) {
	var req ForceLoginRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.respond(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "CONTROL_BAD_REQUEST"})
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		s.respond(w, http.StatusBadRequest, ErrorResponse{Error: "username is required", Code: "CONTROL_BAD_REQUEST"})
		return
	}
	if s.gate == nil {
		s.respond(w, http.StatusServiceUnavailable, ErrorResponse{Error: "gate unavailable"})
		return
	}

	if err := s.gate.ForceLogin(r.Context(), username); err != nil {
		code := errutil.Code(err)
		status := http.StatusInternalServerError
		switch code {
		case gate.CodeNotOnline:
			status = http.StatusNotFound
		case gate.CodeAlreadyLoggedIn:
			status = http.StatusConflict
		default:
			errutil.LogError(s.logger, "force-login failed", err)
		}
		s.respond(w, status, ErrorResponse{Error: err.Error(), Code: code})
		return
	}
	s.logger.Info("force-login via control socket", "username", username)
	s.respond(w, http.StatusOK, MessageResponse{Message: username + " logged in"})
}

func (s *Server) handleShutdown(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, MessageResponse{Message: "shutdown initiated"})
	if s.shutdownFunc != nil {
		go s.shutdownFunc()
	}
}

func (s *Server) respond(w http.ResponseWriter, status int, v any) {
	if err := writeJSON(w, status, v); err != nil {
		s.logger.Error("failed to write control response", "status", status, "error", err)
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		return oops.Code("CONTROL_ENCODE_FAILED").Wrap(err)
	}
	return nil
}
