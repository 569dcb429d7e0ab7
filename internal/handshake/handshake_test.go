// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package handshake_test

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/loginguard/internal/handshake"
	"github.com/holomush/loginguard/pkg/errutil"
)

var now = time.UnixMilli(1_767_225_600_000)

func clock() time.Time { return now }

func TestSign_MatchesDefinition(t *testing.T) {
	sum := sha256.Sum256([]byte("steve:1767225600000:s3cret"))
	want := hex.EncodeToString(sum[:])

	assert.Equal(t, want, handshake.Sign("Steve", 1_767_225_600_000, "s3cret"))
	assert.Equal(t, want, handshake.Sign("STEVE", 1_767_225_600_000, "s3cret"), "username is case-folded")
	assert.NotEqual(t, want, handshake.Sign("Steve", 1_767_225_600_001, "s3cret"))
}

func TestVerifier_AcceptsFreshSignature(t *testing.T) {
	v := handshake.NewVerifier(handshake.Settings{AllowBypass: true, SharedSecret: "s3cret"}, clock)

	for _, offset := range []time.Duration{0, -59 * time.Second, 59 * time.Second, -60 * time.Second, 60 * time.Second} {
		msg := handshake.NewMessage("Steve", "s3cret", now.Add(offset))
		assert.NoError(t, v.Verify("steve", msg), "offset %s", offset)
	}
}

func TestVerifier_ReplayWindow(t *testing.T) {
	v := handshake.NewVerifier(handshake.Settings{AllowBypass: true, SharedSecret: "s3cret"}, clock)

	for _, offset := range []time.Duration{-61 * time.Second, 61 * time.Second, -time.Hour} {
		msg := handshake.NewMessage("Steve", "s3cret", now.Add(offset))
		errutil.AssertErrorCode(t, v.Verify("Steve", msg), handshake.CodeStale)
	}
}

func TestVerifier_CheckOrder(t *testing.T) {
	valid := handshake.NewMessage("Steve", "s3cret", now)
	stale := handshake.NewMessage("Steve", "s3cret", now.Add(-2*time.Minute))
	forged := handshake.Message{Timestamp: now.UnixMilli(), Signature: strings.Repeat("0", 64)}

	tests := []struct {
		name     string
		settings handshake.Settings
		msg      handshake.Message
		code     string
	}{
		{"disabled wins over everything", handshake.Settings{AllowBypass: false, SharedSecret: "s3cret"}, valid, handshake.CodeDisabled},
		{"disabled with empty secret", handshake.Settings{}, stale, handshake.CodeDisabled},
		{"empty secret rejects even correct-looking input", handshake.Settings{AllowBypass: true}, handshake.NewMessage("Steve", "", now), handshake.CodeNoSecret},
		{"stale before signature", handshake.Settings{AllowBypass: true, SharedSecret: "s3cret"}, handshake.Message{Timestamp: stale.Timestamp, Signature: "bad"}, handshake.CodeStale},
		{"forged signature", handshake.Settings{AllowBypass: true, SharedSecret: "s3cret"}, forged, handshake.CodeBadSignature},
		{"wrong secret", handshake.Settings{AllowBypass: true, SharedSecret: "other"}, valid, handshake.CodeBadSignature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := handshake.NewVerifier(tt.settings, clock)
			errutil.AssertErrorCode(t, v.Verify("Steve", tt.msg), tt.code)
		})
	}
}

func TestVerifier_SignatureBoundToUsername(t *testing.T) {
	v := handshake.NewVerifier(handshake.Settings{AllowBypass: true, SharedSecret: "s3cret"}, clock)
	msg := handshake.NewMessage("Steve", "s3cret", now)

	errutil.AssertErrorCode(t, v.Verify("Alex", msg), handshake.CodeBadSignature)
}

func TestVerifier_SignatureIsCaseSensitive(t *testing.T) {
	v := handshake.NewVerifier(handshake.Settings{AllowBypass: true, SharedSecret: "s3cret"}, clock)
	msg := handshake.NewMessage("Steve", "s3cret", now)
	require.NoError(t, v.Verify("Steve", msg))

	msg.Signature = strings.ToUpper(msg.Signature)
	errutil.AssertErrorCode(t, v.Verify("Steve", msg), handshake.CodeBadSignature)
}

func TestVerifier_SetSettings(t *testing.T) {
	v := handshake.NewVerifier(handshake.Settings{}, clock)
	assert.False(t, v.Enabled())

	v.SetSettings(handshake.Settings{AllowBypass: true, SharedSecret: "s3cret"})
	assert.True(t, v.Enabled())
	assert.NoError(t, v.Verify("Steve", handshake.NewMessage("Steve", "s3cret", now)))

	v.SetSettings(handshake.Settings{AllowBypass: true})
	assert.False(t, v.Enabled())
}
