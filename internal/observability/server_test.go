// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready)
	_, err := server.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, func() bool { return true })

	m := server.Metrics()
	m.RecordConnection()
	m.RecordConnection()
	m.RecordLogin(MethodLogin, ResultFailure)
	m.RecordLogin(MethodRegister, ResultSuccess)
	m.RecordHandshake("HANDSHAKE_STALE")
	m.RecordDisconnect(ReasonLockout)
	m.SetSessions(3, 1)

	status, body := get(t, server, "/metrics")
	require.Equal(t, http.StatusOK, status)

	assert.Contains(t, body, "go_")
	assert.Contains(t, body, "process_")
	assert.Contains(t, body, "loginguard_connections_total 2")
	assert.Contains(t, body, `loginguard_logins_total{method="login",result="failure"} 1`)
	assert.Contains(t, body, `loginguard_logins_total{method="register",result="success"} 1`)
	assert.Contains(t, body, `loginguard_handshakes_total{result="HANDSHAKE_STALE"} 1`)
	assert.Contains(t, body, `loginguard_disconnects_total{reason="lockout"} 1`)
	assert.Contains(t, body, `loginguard_sessions{state="authenticated"} 3`)
	assert.Contains(t, body, `loginguard_sessions{state="unauthenticated"} 1`)
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordConnection()
		m.RecordLogin(MethodLogin, ResultSuccess)
		m.RecordHandshake(ResultSuccess)
		m.RecordDisconnect(ReasonQuit)
		m.SetSessions(1, 1)
	})
}

func TestMetrics_Counts(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordLogin(MethodHandshake, ResultSuccess)
	m.RecordLogin(MethodHandshake, ResultSuccess)

	assert.InDelta(t, 2, testutil.ToFloat64(m.LoginsTotal.WithLabelValues(MethodHandshake, ResultSuccess)), 0)
}

func TestServer_Liveness(t *testing.T) {
	server := startServer(t, nil)

	status, body := get(t, server, "/healthz/liveness")

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", strings.TrimSpace(body))
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		ready      ReadinessChecker
		wantStatus int
		wantBody   string
	}{
		{"ready", func() bool { return true }, http.StatusOK, "ok"},
		{"not ready", func() bool { return false }, http.StatusServiceUnavailable, "not ready"},
		{"nil checker", nil, http.StatusOK, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.ready)

			status, body := get(t, server, "/healthz/readiness")

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, strings.TrimSpace(body))
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)

	_, err := server.Start()
	assert.Error(t, err)
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)

	assert.NoError(t, server.Stop(context.Background()))
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)
	defer func() { _ = server.Stop(context.Background()) }()

	require.NotNil(t, server.listener)
	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		assert.Error(t, serveErr)
	case <-time.After(2 * time.Second):
		t.Fatal("serve error was not reported")
	}
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil)
	errCh, err := server.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case err, ok := <-errCh:
		if ok {
			assert.NoError(t, err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error channel did not close")
	}
}
