// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package session holds the per-connection login state: which sessions are
// authenticated, failed-attempt counters with the login timeout, and the
// reminder schedule shown to sessions that have not logged in yet.
//
// None of this state is persisted. A fresh Registry is created for every
// process run, so no session is ever authenticated from a previous run.
package session

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// Registry is the set of authenticated session ids.
type Registry struct {
	mu     sync.RWMutex
	authed map[ulid.ULID]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{authed: make(map[ulid.ULID]struct{})}
}

// MarkAuthenticated adds id and reports whether it was newly added.
func (r *Registry) MarkAuthenticated(id ulid.ULID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.authed[id]; ok {
		return false
	}
	r.authed[id] = struct{}{}
	return true
}

// MarkUnauthenticated removes id.
func (r *Registry) MarkUnauthenticated(id ulid.ULID) {
	r.mu.Lock()
	delete(r.authed, id)
	r.mu.Unlock()
}

// IsAuthenticated reports whether id is authenticated.
func (r *Registry) IsAuthenticated(id ulid.ULID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.authed[id]
	return ok
}

// ClearAll forgets every session.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	r.authed = make(map[ulid.ULID]struct{})
	r.mu.Unlock()
}

// Count returns the number of authenticated sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.authed)
}
