// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"github.com/holomush/loginguard/internal/world"
)

// Credential is the persisted record of one registered user.
type Credential struct {
	// Username keeps the casing used at registration.
	Username     string `json:"username"`
	PasswordHash string `json:"passwordHash"`
	// RegistrationDate and LastLogin are milliseconds since the Unix epoch.
	// LastLogin is zero until the first successful authentication.
	RegistrationDate int64           `json:"registrationDate"`
	LastLogin        int64           `json:"lastLogin"`
	LastPosition     *world.Position `json:"lastPosition"`
}

func (c *Credential) clone() Credential {
	out := *c
	if c.LastPosition != nil {
		pos := *c.LastPosition
		out.LastPosition = &pos
	}
	return out
}

// Stats summarizes the store.
type Stats struct {
	Registered int `json:"registered"`
}
