// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package world contains the shared-world collaborators consumed by the login gate:
// positions, capability modes, connected players and the world tick loop.
package world

import (
	"fmt"
	"math"
)

// DefaultDimension is the region new players spawn in.
const DefaultDimension = "overworld"

// Position is a location in the world with a view direction.
type Position struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Yaw       float32 `json:"yaw"`
	Pitch     float32 `json:"pitch"`
	Dimension string  `json:"dimension"`
}

// DistanceTo returns the euclidean distance between two positions.
// Positions in different dimensions are infinitely far apart.
func (p Position) DistanceTo(other Position) float64 {
	if p.Dimension != other.Dimension {
		return math.Inf(1)
	}
	dx := p.X - other.X
	dy := p.Y - other.Y
	dz := p.Z - other.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// WithRotation returns a copy of p facing the given direction.
func (p Position) WithRotation(yaw, pitch float32) Position {
	p.Yaw = yaw
	p.Pitch = pitch
	return p
}

// String formats the position for status output.
func (p Position) String() string {
	return fmt.Sprintf("%s (%.1f, %.1f, %.1f)", p.Dimension, p.X, p.Y, p.Z)
}

// Mode is a player's capability mode.
type Mode string

// Capability modes.
const (
	ModeSurvival  Mode = "survival"
	ModeCreative  Mode = "creative"
	ModeAdventure Mode = "adventure"
	// ModeObserver cannot interact with the world.
	ModeObserver Mode = "observer"
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	return string(m)
}
