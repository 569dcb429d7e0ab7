// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package handlers

import (
	"context"
	"log/slog"

	"github.com/holomush/loginguard/internal/command"
	"github.com/holomush/loginguard/internal/handshake"
	"github.com/holomush/loginguard/pkg/errutil"
)

// singleArg returns the only argument or an invalid-args error.
func singleArg(exec *command.Execution, usage string) (string, error) {
	fields := command.Fields(exec.Args)
	if len(fields) != 1 {
		return "", command.ErrInvalidArgs(exec.InvokedAs, usage)
	}
	return fields[0], nil
}

// RegisterHandler creates an account and logs in.
func RegisterHandler(ctx context.Context, exec *command.Execution) error {
	password, err := singleArg(exec, "/"+exec.InvokedAs+" <password>")
	if err != nil {
		return err
	}
	return exec.Services.Gate.Register(ctx, exec.Player, password)
}

// LoginHandler logs in with a password.
func LoginHandler(ctx context.Context, exec *command.Execution) error {
	password, err := singleArg(exec, "/"+exec.InvokedAs+" <password>")
	if err != nil {
		return err
	}
	return exec.Services.Gate.Login(ctx, exec.Player, password)
}

// LogoutHandler logs out.
func LogoutHandler(ctx context.Context, exec *command.Execution) error {
	return exec.Services.Gate.Logout(ctx, exec.Player)
}

// ChangePasswordHandler changes the password.
func ChangePasswordHandler(ctx context.Context, exec *command.Execution) error {
	fields := command.Fields(exec.Args)
	if len(fields) != 2 {
		return command.ErrInvalidArgs(exec.InvokedAs, "/"+exec.InvokedAs+" <current> <new>")
	}
	return exec.Services.Gate.ChangePassword(ctx, exec.Player, fields[0], fields[1])
}

// HandshakeHandler accepts a trusted-client token. Every failure is silent
// to the player.
func HandshakeHandler(ctx context.Context, exec *command.Execution) error {
	msg, err := handshake.DecodeText(exec.Args)
	if err != nil {
		slog.WarnContext(ctx, "malformed handshake",
			append([]any{"name", exec.Player.Name()}, errutil.Attrs(err)...)...)
		return nil
	}
	//nolint:errcheck // rejections are logged by the gate and never shown
	exec.Services.Gate.Handshake(ctx, exec.Player, msg)
	return nil
}
