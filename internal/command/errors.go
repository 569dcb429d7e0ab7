// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"github.com/samber/oops"

	"github.com/holomush/loginguard/internal/gate"
)

// Error codes for command dispatch failures.
const (
	CodeEmptyInput     = "EMPTY_INPUT"
	CodeUnknownCommand = "UNKNOWN_COMMAND"
	CodeInvalidArgs    = "INVALID_ARGS"
	CodeWorldError     = "WORLD_ERROR"
	CodeRateLimited    = "RATE_LIMITED"
	CodeRestricted     = "RESTRICTED"
	CodeInvalidName    = "INVALID_NAME"
	CodeNilRegistry    = "NIL_REGISTRY"
	CodeNilFilter      = "NIL_FILTER"
)

// ErrUnknownCommand creates an error for an unknown command.
func ErrUnknownCommand(cmd string) error {
	return oops.Code(CodeUnknownCommand).
		With("command", cmd).
		Errorf("unknown command: %s", cmd)
}

// ErrInvalidArgs creates an error carrying the command usage.
func ErrInvalidArgs(cmd, usage string) error {
	return oops.Code(CodeInvalidArgs).
		With("command", cmd).
		With("usage", usage).
		Errorf("invalid arguments")
}

// WorldError creates an error with a player-facing message.
func WorldError(message string, cause error) error {
	builder := oops.Code(CodeWorldError).With("message", message)
	if cause != nil {
		return builder.Wrap(cause)
	}
	return builder.Errorf("%s", message)
}

// ErrRateLimited creates an error for a throttled session.
func ErrRateLimited(cooldownMs int64) error {
	return oops.Code(CodeRateLimited).
		With("cooldown_ms", cooldownMs).
		Errorf("Too many commands. Please slow down.")
}

// ErrRestricted is returned for input blocked before login. The restriction
// filter has already told the player.
func ErrRestricted(cmd string) error {
	return oops.Code(CodeRestricted).
		With("command", cmd).
		Errorf("command blocked until login")
}

// PlayerMessage renders err for the player. An empty result means nothing
// should be sent.
func PlayerMessage(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return gate.PlayerMessage(err)
	}

	switch oopsErr.Code() {
	case CodeEmptyInput, CodeRestricted:
		return ""
	case CodeUnknownCommand:
		return "Unknown command. Try 'help'."
	case CodeInvalidArgs:
		if usage, ok := oopsErr.Context()["usage"].(string); ok && usage != "" {
			return "Usage: " + usage
		}
		return "Invalid arguments."
	case CodeWorldError:
		if msg, ok := oopsErr.Context()["message"].(string); ok {
			return msg
		}
		return gate.PlayerMessage(err)
	case CodeRateLimited:
		return "Too many commands. Please slow down."
	default:
		return gate.PlayerMessage(err)
	}
}
