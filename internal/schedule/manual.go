// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package schedule

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Manual is a Scheduler and Clock driven by hand. Tasks run synchronously
// inside Advance, in due-time order. It is meant for tests.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	nextID uint64
	timers map[uint64]*manualTimer
}

type manualTimer struct {
	id   uint64
	due  time.Time
	name string
	task Task
	m    *Manual
}

// Cancel implements Handle.
func (t *manualTimer) Cancel() {
	t.m.mu.Lock()
	delete(t.m.timers, t.id)
	t.m.mu.Unlock()
}

// NewManual creates a manual scheduler whose clock starts at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start, timers: make(map[uint64]*manualTimer)}
}

// Now implements Clock.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// After implements Scheduler.
func (m *Manual) After(d time.Duration, name string, task Task) Handle {
	if task == nil {
		return Noop
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	t := &manualTimer{id: m.nextID, due: m.now.Add(d), name: name, task: task, m: m}
	m.timers[t.id] = t
	return t
}

// Advance moves the clock forward by d, running every task that falls due.
// Tasks scheduled by running tasks also run if they fall due within d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		delete(m.timers, next.id)
		m.now = next.due
		m.mu.Unlock()

		next.task(context.Background())
	}
}

func (m *Manual) nextDueLocked(limit time.Time) *manualTimer {
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.due.After(limit) {
			due = append(due, t)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].id < due[j].id
		}
		return due[i].due.Before(due[j].due)
	})
	return due[0]
}

// Pending returns the names of scheduled tasks ordered by due time.
func (m *Manual) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	timers := make([]*manualTimer, 0, len(m.timers))
	for _, t := range m.timers {
		timers = append(timers, t)
	}
	sort.Slice(timers, func(i, j int) bool {
		if timers[i].due.Equal(timers[j].due) {
			return timers[i].id < timers[j].id
		}
		return timers[i].due.Before(timers[j].due)
	})
	names := make([]string, len(timers))
	for i, t := range timers {
		names[i] = t.name
	}
	return names
}
