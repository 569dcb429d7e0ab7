// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package telnet

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/samber/oops"
)

const (
	// sendBuffer is how many lines may queue for a slow client before
	// further lines are dropped.
	sendBuffer = 64
	// writeTimeout bounds a single write to the client.
	writeTimeout = 10 * time.Second
)

// connEndpoint is the world.Endpoint of a telnet connection. Send and Close
// never block; a writer goroutine owns the socket.
type connEndpoint struct {
	conn   net.Conn
	logger *slog.Logger

	out  chan string
	done chan struct{}
	gone chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	reason    string
}

func newConnEndpoint(conn net.Conn, logger *slog.Logger) *connEndpoint {
	e := &connEndpoint{
		conn:   conn,
		logger: logger,
		out:    make(chan string, sendBuffer),
		done:   make(chan struct{}),
		gone:   make(chan struct{}),
	}
	go e.writeLoop()
	return e
}

// Send queues text for the client.
func (e *connEndpoint) Send(text string) error {
	select {
	case <-e.done:
		return oops.Code("TELNET_CLOSED").Errorf("connection closed")
	default:
	}
	select {
	case e.out <- text:
		return nil
	default:
		return oops.Code("TELNET_BACKLOG").Errorf("send buffer full")
	}
}

// Close flushes queued lines, writes reason if non-empty and closes the
// connection. Only the first call has an effect.
func (e *connEndpoint) Close(reason string) error {
	e.closeOnce.Do(func() {
		e.mu.Lock()
		e.reason = reason
		e.mu.Unlock()
		close(e.done)
	})
	return nil
}

// Wait blocks until the connection has been closed.
func (e *connEndpoint) Wait() {
	<-e.gone
}

func (e *connEndpoint) writeLoop() {
	defer close(e.gone)
	for {
		select {
		case text := <-e.out:
			if !e.write(text) {
				e.finish()
				return
			}
		case <-e.done:
			e.drain()
			e.mu.Lock()
			reason := e.reason
			e.mu.Unlock()
			if reason != "" {
				e.write(reason)
			}
			e.finish()
			return
		}
	}
}

func (e *connEndpoint) drain() {
	for {
		select {
		case text := <-e.out:
			if !e.write(text) {
				return
			}
		default:
			return
		}
	}
}

func (e *connEndpoint) write(text string) bool {
	if err := e.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		e.logger.Debug("failed to set write deadline", "error", err)
	}
	if _, err := fmt.Fprintln(e.conn, text); err != nil {
		e.logger.Debug("failed to send message to client", "error", err)
		return false
	}
	return true
}

func (e *connEndpoint) finish() {
	if err := e.conn.Close(); err != nil {
		e.logger.Debug("error closing connection", "error", err)
	}
}
