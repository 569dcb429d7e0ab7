// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package world_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/holomush/loginguard/internal/world"
)

func TestPosition_DistanceTo(t *testing.T) {
	tests := []struct {
		name string
		a, b world.Position
		want float64
	}{
		{
			name: "same point",
			a:    world.Position{X: 1, Y: 2, Z: 3, Dimension: "overworld"},
			b:    world.Position{X: 1, Y: 2, Z: 3, Dimension: "overworld"},
			want: 0,
		},
		{
			name: "axis aligned",
			a:    world.Position{X: 0, Y: 64, Z: 0, Dimension: "overworld"},
			b:    world.Position{X: 3, Y: 68, Z: 0, Dimension: "overworld"},
			want: 5,
		},
		{
			name: "rotation is ignored",
			a:    world.Position{Yaw: 90, Pitch: 10, Dimension: "overworld"},
			b:    world.Position{Yaw: -90, Pitch: -10, Dimension: "overworld"},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.a.DistanceTo(tt.b), 1e-9)
		})
	}
}

func TestPosition_DistanceToOtherDimensionIsInfinite(t *testing.T) {
	a := world.Position{Dimension: "overworld"}
	b := world.Position{Dimension: "nether"}
	assert.True(t, math.IsInf(a.DistanceTo(b), 1))
}

func TestPosition_WithRotation(t *testing.T) {
	p := world.Position{X: 1, Y: 2, Z: 3, Yaw: 0, Pitch: 0, Dimension: "overworld"}
	rotated := p.WithRotation(45, -30)

	assert.Equal(t, float32(45), rotated.Yaw)
	assert.Equal(t, float32(-30), rotated.Pitch)
	assert.Equal(t, p.X, rotated.X)
	assert.Equal(t, float32(0), p.Yaw, "original must be unchanged")
}
