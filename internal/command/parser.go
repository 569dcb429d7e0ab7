// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"strings"
	"unicode"

	"github.com/samber/oops"
)

// Parsed is a split input line.
type Parsed struct {
	Name    string // lowercased first token without a leading "/"
	Args    string // rest of the line, internal whitespace preserved
	Raw     string
	Slashed bool // input started with "/"
}

// Parse splits input into a command name and its arguments.
func Parse(input string) (*Parsed, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, oops.Code(CodeEmptyInput).Errorf("no command provided")
	}

	slashed := strings.HasPrefix(trimmed, "/")
	trimmed = strings.TrimPrefix(trimmed, "/")

	name, args := trimmed, ""
	if idx := strings.IndexFunc(trimmed, unicode.IsSpace); idx >= 0 {
		name, args = trimmed[:idx], strings.TrimSpace(trimmed[idx:])
	}
	return &Parsed{
		Name:    strings.ToLower(name),
		Args:    args,
		Raw:     input,
		Slashed: slashed,
	}, nil
}

// Fields splits args on whitespace.
func Fields(args string) []string {
	return strings.Fields(args)
}
