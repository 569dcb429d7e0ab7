// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/holomush/loginguard/internal/command"
)

// SayHandler broadcasts chat to every logged-in player.
func SayHandler(_ context.Context, exec *command.Execution) error {
	msg := strings.TrimSpace(exec.Args)
	if msg == "" {
		return command.WorldError("Say what?", nil)
	}
	p := exec.Player
	exec.Services.World.Broadcast(p.SessionID(), fmt.Sprintf("%s says, %q", p.Name(), msg),
		exec.Services.Gate.IsAuthenticated)
	p.Send(fmt.Sprintf("You say, %q", msg))
	return nil
}

// MoveHandler moves within the current dimension.
func MoveHandler(_ context.Context, exec *command.Execution) error {
	const usage = "move <x> <y> <z>"
	fields := command.Fields(exec.Args)
	if len(fields) != 3 {
		return command.ErrInvalidArgs(exec.InvokedAs, usage)
	}
	var coords [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return command.ErrInvalidArgs(exec.InvokedAs, usage)
		}
		coords[i] = v
	}

	pos := exec.Player.Position()
	pos.X, pos.Y, pos.Z = coords[0], coords[1], coords[2]
	exec.Player.Teleport(pos)
	exec.Player.Send("You are now at " + pos.String() + ".")
	return nil
}

// TravelHandler moves the player to another dimension's spawn coordinates.
func TravelHandler(_ context.Context, exec *command.Execution) error {
	target := strings.ToLower(strings.TrimSpace(exec.Args))
	if target == "" {
		return command.ErrInvalidArgs(exec.InvokedAs, "travel <dimension>")
	}
	w := exec.Services.World
	if !w.HasDimension(target) {
		return command.WorldError("Unknown dimension. Known: "+strings.Join(w.Dimensions(), ", ")+".", nil)
	}
	if !exec.Services.Gate.Enforcer().AllowRegionChange(exec.Player, target) {
		return command.ErrRestricted(exec.InvokedAs)
	}

	cur := exec.Player.Position()
	dest := w.Spawn()
	dest.Dimension = target
	exec.Player.Teleport(dest.WithRotation(cur.Yaw, cur.Pitch))
	exec.Player.Send("You travel to " + target + ".")
	return nil
}

// WhereHandler reports the player's position and mode.
func WhereHandler(_ context.Context, exec *command.Execution) error {
	p := exec.Player
	p.Send(fmt.Sprintf("You are at %s in %s mode.", p.Position(), p.Mode()))
	return nil
}

// HelpHandler lists registered commands.
func HelpHandler(reg *command.Registry) command.Handler {
	return func(_ context.Context, exec *command.Execution) error {
		var b strings.Builder
		b.WriteString("Commands:")
		for _, e := range reg.All() {
			b.WriteString("\n  " + e.Usage + " - " + e.Help)
		}
		b.WriteString("\n  quit - Disconnect")
		exec.Player.Send(b.String())
		return nil
	}
}
