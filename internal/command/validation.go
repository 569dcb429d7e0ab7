// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"regexp"

	"github.com/samber/oops"
)

// MaxNameLength is the maximum length of a command name or alias.
const MaxNameLength = 20

// namePattern: lowercase letter followed by lowercase letters or digits.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9]{0,19}$`)

// ValidateCommandName checks a command name or alias.
func ValidateCommandName(name string) error {
	if name == "" {
		return oops.Code(CodeInvalidName).Errorf("command name cannot be empty")
	}
	if len(name) > MaxNameLength {
		return oops.Code(CodeInvalidName).
			With("name", name).
			With("max", MaxNameLength).
			Errorf("command name exceeds maximum length of %d", MaxNameLength)
	}
	if !namePattern.MatchString(name) {
		return oops.Code(CodeInvalidName).
			With("name", name).
			Errorf("command name must be lowercase letters and digits, starting with a letter")
	}
	return nil
}
