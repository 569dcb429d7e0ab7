// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package schedule_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/loginguard/internal/schedule"
	"github.com/holomush/loginguard/pkg/errutil"
)

func stopPool(t *testing.T, p *schedule.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
}

func TestPool_RunsTaskAfterDelay(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := schedule.NewPool()
	defer stopPool(t, p)

	ran := make(chan struct{})
	p.After(10*time.Millisecond, "test", func(context.Context) { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	assert.Eventually(t, func() bool { return p.Pending() == 0 }, time.Second, time.Millisecond)
}

func TestPool_CancelPreventsRun(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := schedule.NewPool()
	defer stopPool(t, p)

	var ran atomic.Bool
	h := p.After(20*time.Millisecond, "test", func(context.Context) { ran.Store(true) })
	assert.Equal(t, 1, p.Pending())

	h.Cancel()
	h.Cancel()

	assert.Equal(t, 0, p.Pending())
	time.Sleep(50 * time.Millisecond)
	assert.False(t, ran.Load())
}

func TestPool_CancelAfterRunIsNoop(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := schedule.NewPool()
	defer stopPool(t, p)

	var runs atomic.Int32
	h := p.After(time.Millisecond, "test", func(context.Context) { runs.Add(1) })
	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, time.Millisecond)

	h.Cancel()
	h.Cancel()
	assert.Equal(t, int32(1), runs.Load())
}

func TestPool_StopCancelsPendingTasks(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := schedule.NewPool()

	var ran atomic.Int32
	for range 5 {
		p.After(time.Hour, "later", func(context.Context) { ran.Add(1) })
	}
	assert.Equal(t, 5, p.Pending())

	stopPool(t, p)

	assert.Equal(t, 0, p.Pending())
	assert.Zero(t, ran.Load())

	// scheduling after stop is a no-op
	h := p.After(time.Millisecond, "late", func(context.Context) { ran.Add(1) })
	h.Cancel()
	assert.Zero(t, ran.Load())
	require.NoError(t, p.Stop(context.Background()), "second stop is a no-op")
}

func TestPool_StopTimesOutOnStuckTask(t *testing.T) {
	p := schedule.NewPool(schedule.WithWorkers(1))

	started := make(chan struct{})
	release := make(chan struct{})
	p.After(time.Millisecond, "stuck", func(context.Context) {
		close(started)
		<-release
	})
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := p.Stop(ctx)
	errutil.AssertErrorCode(t, err, "SCHEDULE_STOP_TIMEOUT")

	close(release)
	goleak.VerifyNone(t)
}

func TestPool_RunningTaskSeesCancelledContextOnStop(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := schedule.NewPool(schedule.WithWorkers(1))

	started := make(chan struct{})
	observed := make(chan error, 1)
	p.After(time.Millisecond, "waits", func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		observed <- ctx.Err()
	})
	<-started

	stopPool(t, p)
	assert.ErrorIs(t, <-observed, context.Canceled)
}

func TestPool_PanickingTaskDoesNotKillWorker(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := schedule.NewPool(schedule.WithWorkers(1))
	defer stopPool(t, p)

	p.After(time.Millisecond, "panics", func(context.Context) { panic("boom") })

	ran := make(chan struct{})
	p.After(5*time.Millisecond, "after", func(context.Context) { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("worker died after panic")
	}
}

func TestPool_NilTask(t *testing.T) {
	defer goleak.VerifyNone(t)
	p := schedule.NewPool()
	defer stopPool(t, p)

	h := p.After(time.Millisecond, "nil", nil)
	h.Cancel()
	assert.Zero(t, p.Pending())
}
