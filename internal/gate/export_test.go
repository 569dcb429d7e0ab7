// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

import (
	"context"

	"github.com/holomush/loginguard/internal/world"
)

// Expire runs the login-timeout action for p as a late timer would.
func (g *Gate) Expire(ctx context.Context, p world.Player) {
	g.expire(ctx, p)
}

// TrackedSessions returns how many sessions hold a lock entry.
func (g *Gate) TrackedSessions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.locks)
}
