// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Password length bounds, counted in characters.
const (
	MinPasswordLength = 4
	MaxPasswordLength = 32
)

// MaxUsernameLength bounds claimed usernames.
const MaxUsernameLength = 32

// ValidatePassword checks the password policy.
func ValidatePassword(password string) error {
	n := utf8.RuneCountInString(password)
	if n < MinPasswordLength || n > MaxPasswordLength {
		return oops.Code(CodeInvalidPassword).
			With("min", MinPasswordLength).
			With("max", MaxPasswordLength).
			Errorf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength)
	}
	if strings.ContainsFunc(password, unicode.IsSpace) {
		return oops.Code(CodeInvalidPassword).Errorf("password cannot contain whitespace")
	}
	return nil
}

// ValidateUsername checks that a username is usable as a store key.
func ValidateUsername(username string) error {
	if username == "" {
		return oops.Code(CodeInvalidUsername).Errorf("username cannot be empty")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return oops.Code(CodeInvalidUsername).
			With("max", MaxUsernameLength).
			Errorf("username too long")
	}
	if strings.ContainsFunc(username, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) {
		return oops.Code(CodeInvalidUsername).
			With("username", username).
			Errorf("username contains whitespace or control characters")
	}
	return nil
}

// Fold returns the store key for a username.
func Fold(username string) string {
	return strings.ToLower(username)
}
