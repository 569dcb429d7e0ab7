// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package schedule runs delayed one-shot tasks on a small worker pool.
//
// Every scheduled task has a Handle whose Cancel is idempotent and never
// blocks. A task that was cancelled before it started never runs. Tasks that
// are already running are not interrupted; they must re-check their own
// preconditions.
package schedule

import (
	"context"
	"time"
)

// Task is the work performed when a timer fires.
type Task func(ctx context.Context)

// Handle controls one scheduled task.
type Handle interface {
	// Cancel prevents the task from starting. Calling it more than once,
	// or after the task ran, has no effect.
	Cancel()
}

// Scheduler schedules one-shot tasks.
type Scheduler interface {
	// After runs task once, d from now. name labels the task in logs.
	After(d time.Duration, name string, task Task) Handle
}

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

// Now implements Clock.
func (RealClock) Now() time.Time {
	return time.Now()
}

type noopHandle struct{}

func (noopHandle) Cancel() {}

// Noop is a Handle that does nothing.
var Noop Handle = noopHandle{}
