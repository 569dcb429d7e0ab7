// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package command turns player input lines into gate and world operations.
package command

import (
	"context"

	"github.com/holomush/loginguard/internal/gate"
	"github.com/holomush/loginguard/internal/world"
)

// Handler runs one command.
type Handler func(ctx context.Context, exec *Execution) error

// Entry is a registered command.
type Entry struct {
	Name    string   // canonical name, e.g. "login"
	Aliases []string // alternate names, e.g. "logar"
	Handler Handler
	Help    string // one line
	Usage   string // e.g. "login <password>"
	// Chat marks free-text chat; it is filtered by the chat restriction
	// instead of the command allow list.
	Chat bool
	// Unrestricted entries carry client protocol messages and skip the
	// restriction filter entirely.
	Unrestricted bool
}

// Execution is the context handed to a handler.
type Execution struct {
	Player    world.Player
	Args      string
	InvokedAs string
	Services  *Services
}

// Services are the collaborators available to handlers. Handlers must not
// keep references beyond the call.
type Services struct {
	Gate  *gate.Gate
	World *world.World
}
