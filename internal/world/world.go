// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package world

import (
	"slices"
	"strings"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// CodeNameInUse is returned by Add when the name is already online.
const CodeNameInUse = "WORLD_NAME_IN_USE"

// World tracks the players currently connected to the shared world.
type World struct {
	mu         sync.RWMutex
	players    map[ulid.ULID]Player
	spawn      Position
	dimensions map[string]struct{}
}

// New creates a world with the given spawn point and known dimensions.
// The spawn dimension is always known.
func New(spawn Position, dimensions ...string) *World {
	if spawn.Dimension == "" {
		spawn.Dimension = DefaultDimension
	}
	dims := make(map[string]struct{}, len(dimensions)+1)
	dims[spawn.Dimension] = struct{}{}
	for _, d := range dimensions {
		dims[d] = struct{}{}
	}
	return &World{
		players:    make(map[ulid.ULID]Player),
		spawn:      spawn,
		dimensions: dims,
	}
}

// Spawn returns the world spawn point.
func (w *World) Spawn() Position {
	return w.spawn
}

// HasDimension reports whether the dimension exists.
func (w *World) HasDimension(name string) bool {
	_, ok := w.dimensions[name]
	return ok
}

// Dimensions lists known dimensions in sorted order.
func (w *World) Dimensions() []string {
	out := make([]string, 0, len(w.dimensions))
	for d := range w.dimensions {
		out = append(out, d)
	}
	slices.Sort(out)
	return out
}

// Add registers a connected player. A second player claiming the same
// name is rejected.
func (w *World) Add(p Player) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, existing := range w.players {
		if strings.EqualFold(existing.Name(), p.Name()) {
			return oops.Code(CodeNameInUse).With("name", p.Name()).Errorf("name already in use")
		}
	}
	w.players[p.SessionID()] = p
	return nil
}

// Remove unregisters a player. Unknown ids are ignored.
func (w *World) Remove(id ulid.ULID) {
	w.mu.Lock()
	delete(w.players, id)
	w.mu.Unlock()
}

// Get returns the player for a session id.
func (w *World) Get(id ulid.ULID) (Player, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.players[id]
	return p, ok
}

// FindByName returns the online player with the given name, ignoring case.
func (w *World) FindByName(name string) (Player, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, p := range w.players {
		if strings.EqualFold(p.Name(), name) {
			return p, true
		}
	}
	return nil, false
}

// Players returns a snapshot of connected players.
func (w *World) Players() []Player {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]Player, 0, len(w.players))
	for _, p := range w.players {
		out = append(out, p)
	}
	return out
}

// Count returns the number of connected players.
func (w *World) Count() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.players)
}

// Broadcast sends text to every player except the sender. A non-nil include
// limits delivery to the players it accepts.
func (w *World) Broadcast(from ulid.ULID, text string, include func(Player) bool) {
	for _, p := range w.Players() {
		if p.SessionID() == from {
			continue
		}
		if include != nil && !include(p) {
			continue
		}
		p.Send(text)
	}
}
