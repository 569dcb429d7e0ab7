// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package handshake implements the trusted-client bypass: a client holding
// the shared secret signs its username and a timestamp, and the server
// accepts the signature in place of a password.
//
// The signature is hex(sha256(lower(username) + ":" + timestamp + ":" + secret))
// where timestamp is the decimal millisecond value carried in the message.
package handshake

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
)

// MaxSkew is the largest accepted distance between the message timestamp
// and the server clock, in either direction.
const MaxSkew = 60 * time.Second

// Verification failure codes, in the order the checks run.
const (
	CodeDisabled     = "HANDSHAKE_DISABLED"
	CodeNoSecret     = "HANDSHAKE_NO_SECRET"
	CodeStale        = "HANDSHAKE_STALE"
	CodeBadSignature = "HANDSHAKE_BAD_SIGNATURE"
	CodeMalformed    = "HANDSHAKE_MALFORMED"
)

// Message is the handshake sent by a trusted client.
type Message struct {
	// Timestamp is milliseconds since the Unix epoch on the client clock.
	Timestamp int64
	// Signature is the lowercase hex digest produced by Sign.
	Signature string
}

// Sign computes the handshake signature for username at timestamp ts.
func Sign(username string, ts int64, secret string) string {
	payload := strings.ToLower(username) + ":" + strconv.FormatInt(ts, 10) + ":" + secret
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// NewMessage builds a signed message for username at now.
func NewMessage(username, secret string, now time.Time) Message {
	ts := now.UnixMilli()
	return Message{Timestamp: ts, Signature: Sign(username, ts, secret)}
}

// Settings controls verification.
type Settings struct {
	AllowBypass  bool
	SharedSecret string
}

// Verifier checks handshake messages against the current settings.
// Settings may be swapped at runtime.
type Verifier struct {
	mu       sync.RWMutex
	settings Settings
	now      func() time.Time
}

// NewVerifier creates a verifier. A nil now uses time.Now.
func NewVerifier(settings Settings, now func() time.Time) *Verifier {
	if now == nil {
		now = time.Now
	}
	return &Verifier{settings: settings, now: now}
}

// SetSettings replaces the verification settings.
func (v *Verifier) SetSettings(s Settings) {
	v.mu.Lock()
	v.settings = s
	v.mu.Unlock()
}

// Enabled reports whether bypass is switched on with a usable secret.
func (v *Verifier) Enabled() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.settings.AllowBypass && v.settings.SharedSecret != ""
}

// Verify checks msg for username. It returns nil only if bypass is enabled,
// a secret is configured, the timestamp is within MaxSkew of now and the
// signature matches. Checks run in that order and the first failure wins.
func (v *Verifier) Verify(username string, msg Message) error {
	v.mu.RLock()
	s := v.settings
	v.mu.RUnlock()

	if !s.AllowBypass {
		return oops.Code(CodeDisabled).With("username", username).Errorf("handshake bypass disabled")
	}
	if s.SharedSecret == "" {
		return oops.Code(CodeNoSecret).With("username", username).Errorf("handshake secret not configured")
	}

	now := v.now().UnixMilli()
	skew := now - msg.Timestamp
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxSkew.Milliseconds() {
		return oops.Code(CodeStale).
			With("username", username).
			With("skew_ms", skew).
			Errorf("handshake timestamp outside window")
	}

	want := Sign(username, msg.Timestamp, s.SharedSecret)
	if subtle.ConstantTimeCompare([]byte(want), []byte(msg.Signature)) != 1 {
		return oops.Code(CodeBadSignature).With("username", username).Errorf("handshake signature mismatch")
	}
	return nil
}
