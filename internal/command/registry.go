// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// Registry maps command names and aliases to entries.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Entry
	names    map[string]string // alias or name -> canonical name
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]Entry),
		names:    make(map[string]string),
	}
}

// Register adds a command. Re-registering a name overwrites it with a warning.
func (r *Registry) Register(entry Entry) error {
	if entry.Handler == nil {
		return oops.Code(CodeInvalidName).With("command", entry.Name).Errorf("handler cannot be nil")
	}
	for _, n := range append([]string{entry.Name}, entry.Aliases...) {
		if err := ValidateCommandName(n); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.commands[entry.Name]; ok {
		slog.Warn("command conflict: overwriting existing command", "command", entry.Name)
	}
	r.commands[entry.Name] = entry
	r.names[entry.Name] = entry.Name
	for _, a := range entry.Aliases {
		r.names[a] = entry.Name
	}
	return nil
}

// Get resolves a name or alias.
func (r *Registry) Get(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	canonical, ok := r.names[name]
	if !ok {
		return Entry{}, false
	}
	entry, ok := r.commands[canonical]
	return entry, ok
}

// All returns every entry sorted by name.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.commands))
	for _, e := range r.commands {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out
}
