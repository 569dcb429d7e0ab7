// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package world

import (
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

// Player is a connected session as seen by the login gate.
// Implementations must be safe for concurrent use.
type Player interface {
	// SessionID identifies the connection session.
	SessionID() ulid.ULID
	// Name is the claimed username.
	Name() string
	// Position returns the current position.
	Position() Position
	// Teleport moves the player.
	Teleport(pos Position)
	// Mode returns the current capability mode.
	Mode() Mode
	// SetMode changes the capability mode.
	SetMode(mode Mode)
	// Send delivers a text message to the player. Delivery is best effort.
	Send(text string)
	// Disconnect closes the session with a reason shown to the player.
	Disconnect(reason string)
	// Connected reports whether the session is still live.
	Connected() bool
}

// Endpoint is the transport side of a player.
type Endpoint interface {
	Send(text string) error
	Close(reason string) error
}

// Avatar is the in-memory Player implementation backed by a transport endpoint.
type Avatar struct {
	id       ulid.ULID
	name     string
	endpoint Endpoint

	mu   sync.RWMutex
	pos  Position
	mode Mode

	connected atomic.Bool
}

// NewAvatar creates a connected avatar at pos.
func NewAvatar(id ulid.ULID, name string, endpoint Endpoint, pos Position, mode Mode) *Avatar {
	a := &Avatar{
		id:       id,
		name:     name,
		endpoint: endpoint,
		pos:      pos,
		mode:     mode,
	}
	a.connected.Store(true)
	return a
}

// SessionID implements Player.
func (a *Avatar) SessionID() ulid.ULID { return a.id }

// Name implements Player.
func (a *Avatar) Name() string { return a.name }

// Position implements Player.
func (a *Avatar) Position() Position {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.pos
}

// Teleport implements Player.
func (a *Avatar) Teleport(pos Position) {
	a.mu.Lock()
	a.pos = pos
	a.mu.Unlock()
}

// Mode implements Player.
func (a *Avatar) Mode() Mode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.mode
}

// SetMode implements Player.
func (a *Avatar) SetMode(mode Mode) {
	a.mu.Lock()
	a.mode = mode
	a.mu.Unlock()
}

// Send implements Player. Errors are dropped: a failed write means the
// connection is going away and the read loop will notice.
func (a *Avatar) Send(text string) {
	if !a.connected.Load() || a.endpoint == nil {
		return
	}
	//nolint:errcheck // best-effort delivery
	a.endpoint.Send(text)
}

// Disconnect implements Player. Only the first call reaches the endpoint.
func (a *Avatar) Disconnect(reason string) {
	if !a.connected.CompareAndSwap(true, false) {
		return
	}
	if a.endpoint != nil {
		//nolint:errcheck // connection is being torn down
		a.endpoint.Close(reason)
	}
}

// Connected implements Player.
func (a *Avatar) Connected() bool {
	return a.connected.Load()
}

// MarkDisconnected flags the avatar as gone without notifying the endpoint.
// Transports call it when the peer hangs up.
func (a *Avatar) MarkDisconnected() {
	a.connected.Store(false)
}
