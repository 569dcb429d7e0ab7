// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package gate

import (
	"github.com/samber/oops"
)

// Error codes for gate operations.
const (
	CodeAlreadyLoggedIn      = "GATE_ALREADY_LOGGED_IN"
	CodeNotLoggedIn          = "GATE_NOT_LOGGED_IN"
	CodeNotRegistered        = "GATE_NOT_REGISTERED"
	CodeAttemptsExceeded     = "GATE_ATTEMPTS_EXCEEDED"
	CodeWrongPassword        = "GATE_WRONG_PASSWORD"
	CodeWrongCurrentPassword = "GATE_WRONG_CURRENT_PASSWORD"
	CodeSamePassword         = "GATE_SAME_PASSWORD"
	CodeNotOnline            = "GATE_NOT_ONLINE"
	CodeInvalidConfig        = "GATE_INVALID_CONFIG"

	CodeHandshakeAuthenticated = "HANDSHAKE_ALREADY_AUTHENTICATED"
	CodeHandshakeUnknownUser   = "HANDSHAKE_UNKNOWN_USER"
)

// ErrAlreadyLoggedIn is returned when an authenticated session tries to log in again.
func ErrAlreadyLoggedIn(username string) error {
	return oops.Code(CodeAlreadyLoggedIn).
		With("username", username).
		Errorf("%s is already logged in", username)
}

// ErrNotLoggedIn is returned when an operation needs an authenticated session.
func ErrNotLoggedIn(username string) error {
	return oops.Code(CodeNotLoggedIn).
		With("username", username).
		Errorf("%s is not logged in", username)
}

// ErrNotRegistered is returned for usernames without a credential record.
func ErrNotRegistered(username string) error {
	return oops.Code(CodeNotRegistered).
		With("username", username).
		Errorf("%s is not registered", username)
}

// ErrAttemptsExceeded is returned when a session has no login attempts left.
func ErrAttemptsExceeded(username string, limit int) error {
	return oops.Code(CodeAttemptsExceeded).
		With("username", username).
		With("max_attempts", limit).
		Errorf("login attempt limit reached")
}

// ErrWrongPassword reports a failed login and the attempt count so far.
func ErrWrongPassword(username string, attempts, limit int) error {
	return oops.Code(CodeWrongPassword).
		With("username", username).
		With("attempts", attempts).
		With("max_attempts", limit).
		Errorf("wrong password")
}

// ErrWrongCurrentPassword is returned when a password change fails re-authentication.
func ErrWrongCurrentPassword(username string) error {
	return oops.Code(CodeWrongCurrentPassword).
		With("username", username).
		Errorf("current password incorrect")
}

// ErrSamePassword is returned when the new password equals the current one.
func ErrSamePassword(username string) error {
	return oops.Code(CodeSamePassword).
		With("username", username).
		Errorf("new password must differ from the current password")
}

// ErrNotOnline is returned by ForceLogin for a player that is not connected.
func ErrNotOnline(username string) error {
	return oops.Code(CodeNotOnline).
		With("username", username).
		Errorf("player %q is not online", username)
}
