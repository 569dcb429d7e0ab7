// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package control

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/samber/oops"
)

// Client talks to a running server's control socket.
type Client struct {
	http *http.Client
}

// NewClient creates a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
			Timeout: 5 * time.Second,
		},
	}
}

// Health queries GET /health.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var resp HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, &resp)
	return resp, err
}

// Status queries GET /status.
func (c *Client) Status(ctx context.Context) (StatusResponse, error) {
	var resp StatusResponse
	err := c.do(ctx, http.MethodGet, "/status", nil, &resp)
	return resp, err
}

// ForceLogin asks the server to log username in.
func (c *Client) ForceLogin(ctx context.Context, username string) (MessageResponse, error) {
	var resp MessageResponse
	err := c.do(ctx, http.MethodPost, "/force-login", ForceLoginRequest{Username: username}, &resp)
	return resp, err
}

// Shutdown asks the server to stop.
func (c *Client) Shutdown(ctx context.Context) (MessageResponse, error) {
	var resp MessageResponse
	err := c.do(ctx, http.MethodPost, "/shutdown", nil, &resp)
	return resp, err
}

// do performs a request. Non-2xx responses become errors carrying the
// server's error code.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return oops.Code("CONTROL_CLIENT").Wrap(err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://loginguard"+path, reader)
	if err != nil {
		return oops.Code("CONTROL_CLIENT").Wrap(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return oops.Code("CONTROL_UNREACHABLE").With("path", path).Wrap(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode/100 != 2 {
		var e ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			return oops.Code("CONTROL_CLIENT").With("status", resp.StatusCode).Errorf("control request failed: %s", resp.Status)
		}
		code := e.Code
		if code == "" {
			code = "CONTROL_CLIENT"
		}
		return oops.Code(code).With("status", resp.StatusCode).Errorf("%s", e.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return oops.Code("CONTROL_CLIENT").Wrapf(err, "decode response")
	}
	return nil
}
