// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Rate limiting defaults.
const (
	// DefaultBurstCapacity is how many lines a session may send back to back.
	DefaultBurstCapacity = 10
	// DefaultSustainedRate is the token refill rate per second.
	DefaultSustainedRate = 2.0
	// MinSustainedRate keeps the refill rate positive.
	MinSustainedRate = 0.1
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	BurstCapacity int
	SustainedRate float64
	// Now defaults to time.Now.
	Now func() time.Time
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter is a per-session token bucket. It throttles input lines so
// password guessing and chat spam are bounded by time as well as by the
// attempt limit.
type RateLimiter struct {
	mu       sync.Mutex
	sessions map[ulid.ULID]*bucket
	burst    int
	rate     float64
	now      func() time.Time
}

// NewRateLimiter creates a rate limiter. Zero values take the defaults.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	burst := cfg.BurstCapacity
	if burst <= 0 {
		burst = DefaultBurstCapacity
	}
	rate := cfg.SustainedRate
	if rate <= 0 {
		rate = DefaultSustainedRate
	}
	rate = max(rate, MinSustainedRate)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		sessions: make(map[ulid.ULID]*bucket),
		burst:    burst,
		rate:     rate,
		now:      now,
	}
}

// Allow consumes a token for the session. When none is left it reports the
// milliseconds until the next one.
func (rl *RateLimiter) Allow(sessionID ulid.ULID) (allowed bool, cooldownMs int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.sessions[sessionID]
	if !ok {
		b = &bucket{tokens: float64(rl.burst), lastCheck: now}
		rl.sessions[sessionID] = b
	}

	b.tokens = min(b.tokens+now.Sub(b.lastCheck).Seconds()*rl.rate, float64(rl.burst))
	b.lastCheck = now

	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}
	deficit := 1.0 - b.tokens
	return false, int64(deficit / rl.rate * 1000)
}

// Forget drops the bucket of a disconnected session.
func (rl *RateLimiter) Forget(sessionID ulid.ULID) {
	rl.mu.Lock()
	delete(rl.sessions, sessionID)
	rl.mu.Unlock()
}

// SessionCount returns the number of tracked sessions.
func (rl *RateLimiter) SessionCount() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.sessions)
}
