// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package session

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/loginguard/internal/schedule"
)

// Stage identifies which reminder variant to show.
type Stage int

// Reminder stages in firing order.
const (
	StageNudge Stage = iota
	StageRemaining
	StageAttention
	StageUrgent
	StageFinal
)

// String names the stage for logs and metrics.
func (s Stage) String() string {
	switch s {
	case StageNudge:
		return "nudge"
	case StageRemaining:
		return "remaining"
	case StageAttention:
		return "attention"
	case StageUrgent:
		return "urgent"
	case StageFinal:
		return "final"
	default:
		return "unknown"
	}
}

// ReminderStep is one entry of the reminder schedule.
type ReminderStep struct {
	Offset time.Duration
	Stage  Stage
}

// DefaultReminderSteps are the offsets after join at which reminders fire.
var DefaultReminderSteps = []ReminderStep{
	{Offset: 30 * time.Second, Stage: StageNudge},
	{Offset: 60 * time.Second, Stage: StageRemaining},
	{Offset: 120 * time.Second, Stage: StageAttention},
	{Offset: 180 * time.Second, Stage: StageUrgent},
	{Offset: 240 * time.Second, Stage: StageFinal},
}

// ReminderFunc delivers a reminder. remaining is the time left before the
// login timeout, measured from the reminder's own offset.
type ReminderFunc func(ctx context.Context, stage Stage, remaining time.Duration)

type reminderSet struct {
	handles []schedule.Handle
	gen     uint64
}

// Reminders schedules login reminders for unauthenticated sessions.
type Reminders struct {
	sched    schedule.Scheduler
	registry *Registry
	steps    []ReminderStep
	logger   *slog.Logger

	mu      sync.Mutex
	timeout time.Duration
	sets    map[ulid.ULID]*reminderSet
	gen     uint64
}

// NewReminders creates a reminder scheduler for the given login timeout.
// Steps at or beyond the timeout are never scheduled.
func NewReminders(sched schedule.Scheduler, registry *Registry, timeout time.Duration, logger *slog.Logger) (*Reminders, error) {
	if sched == nil || registry == nil {
		return nil, oops.Code("SESSION_INVALID_REMINDERS").Errorf("scheduler and registry are required")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reminders{
		sched:    sched,
		registry: registry,
		steps:    DefaultReminderSteps,
		logger:   logger,
		timeout:  timeout,
		sets:     make(map[ulid.ULID]*reminderSet),
	}, nil
}

// SetTimeout changes the login timeout used by later Start calls.
func (r *Reminders) SetTimeout(timeout time.Duration) {
	r.mu.Lock()
	r.timeout = timeout
	r.mu.Unlock()
}

// Start replaces any reminders for id with a fresh schedule.
func (r *Reminders) Start(id ulid.ULID, send ReminderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cancelLocked(id)
	r.gen++
	set := &reminderSet{gen: r.gen}

	for _, step := range r.steps {
		remaining := r.timeout - step.Offset
		if remaining <= 0 {
			continue
		}
		stage := step.Stage
		h := r.sched.After(step.Offset, "reminder-"+stage.String(), func(ctx context.Context) {
			r.fire(ctx, id, set.gen, stage, remaining, send)
		})
		set.handles = append(set.handles, h)
	}
	r.sets[id] = set
}

func (r *Reminders) fire(ctx context.Context, id ulid.ULID, gen uint64, stage Stage, remaining time.Duration, send ReminderFunc) {
	r.mu.Lock()
	set, ok := r.sets[id]
	live := ok && set.gen == gen
	r.mu.Unlock()

	if !live || r.registry.IsAuthenticated(id) {
		return
	}
	send(ctx, stage, remaining)
}

// CancelAll cancels every pending reminder for id. It does not wait for a
// reminder that is already being delivered.
func (r *Reminders) CancelAll(id ulid.ULID) {
	r.mu.Lock()
	r.cancelLocked(id)
	r.mu.Unlock()
}

func (r *Reminders) cancelLocked(id ulid.ULID) {
	set, ok := r.sets[id]
	if !ok {
		return
	}
	for _, h := range set.handles {
		h.Cancel()
	}
	delete(r.sets, id)
}

// Active reports whether id has scheduled reminders.
func (r *Reminders) Active(id ulid.ULID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sets[id]
	return ok
}

// Stop cancels all reminders.
func (r *Reminders) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.sets {
		r.cancelLocked(id)
	}
}

// FormatRemaining renders a duration as "XmYs", "Xm" on whole minutes, or
// "Ys" under a minute.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	m, s := secs/60, secs%60
	switch {
	case m > 0 && s > 0:
		return strconv.FormatInt(m, 10) + "m" + strconv.FormatInt(s, 10) + "s"
	case m > 0:
		return strconv.FormatInt(m, 10) + "m"
	default:
		return strconv.FormatInt(s, 10) + "s"
	}
}
