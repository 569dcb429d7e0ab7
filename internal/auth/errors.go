// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"github.com/samber/oops"
)

// Error codes returned by the credential store.
const (
	CodeAlreadyRegistered  = "AUTH_ALREADY_REGISTERED"
	CodeUnknownUser        = "AUTH_UNKNOWN_USER"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeInvalidPassword    = "AUTH_INVALID_PASSWORD"
	CodeInvalidUsername    = "AUTH_INVALID_USERNAME"
	CodeInvalidHash        = "AUTH_INVALID_HASH"
	CodeEmptyPassword      = "AUTH_EMPTY_PASSWORD"
	CodePersistFailed      = "AUTH_PERSIST_FAILED"
	CodeLoadFailed         = "AUTH_LOAD_FAILED"
)

// ErrAlreadyRegistered is returned when a folded username already has a record.
func ErrAlreadyRegistered(username string) error {
	return oops.Code(CodeAlreadyRegistered).
		With("username", username).
		Errorf("username already registered")
}

// ErrUnknownUser is returned when no record exists for a username.
func ErrUnknownUser(username string) error {
	return oops.Code(CodeUnknownUser).
		With("username", username).
		Errorf("username not registered")
}

// ErrInvalidCredentials is returned when a password does not match.
func ErrInvalidCredentials(username string) error {
	return oops.Code(CodeInvalidCredentials).
		With("username", username).
		Errorf("invalid credentials")
}

// IsCode reports whether err carries the given oops code.
func IsCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return false
	}
	return oopsErr.Code() == code
}
