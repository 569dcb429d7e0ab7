// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/holomush/loginguard/pkg/errutil"
)

func TestAssertErrorCode_MatchingCode(t *testing.T) {
	err := oops.Code("AUTH_UNKNOWN_USER").Errorf("unknown user")
	errutil.AssertErrorCode(t, err, "AUTH_UNKNOWN_USER")
}

func TestAssertErrorContext_MatchingKeyValue(t *testing.T) {
	err := oops.With("username", "alice").Errorf("already registered")
	errutil.AssertErrorContext(t, err, "username", "alice")
}
