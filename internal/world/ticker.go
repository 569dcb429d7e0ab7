// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package world

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
)

// DefaultTickRate is the number of world ticks per second.
const DefaultTickRate = 20

// TickFunc runs once per world tick. It must not block on I/O.
type TickFunc func(ctx context.Context)

// Ticker drives the world tick loop on a single goroutine.
type Ticker struct {
	interval time.Duration
	fn       TickFunc
	logger   *slog.Logger

	ticks   atomic.Uint64
	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewTicker creates a ticker firing rate times per second.
func NewTicker(rate int, fn TickFunc, logger *slog.Logger) (*Ticker, error) {
	if rate <= 0 {
		return nil, oops.Code("WORLD_INVALID_TICK_RATE").With("rate", rate).Errorf("tick rate must be positive")
	}
	if fn == nil {
		return nil, oops.Code("WORLD_INVALID_TICK_FUNC").Errorf("tick function cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ticker{
		interval: time.Second / time.Duration(rate),
		fn:       fn,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}, nil
}

// Start launches the tick loop. It stops when ctx is done or Stop is called.
func (t *Ticker) Start(ctx context.Context) error {
	if !t.running.CompareAndSwap(false, true) {
		return oops.Code("WORLD_TICKER_RUNNING").Errorf("ticker already running")
	}
	t.wg.Add(1)
	go t.loop(ctx)
	t.logger.Info("world ticker started", "interval", t.interval)
	return nil
}

func (t *Ticker) loop(ctx context.Context) {
	defer t.wg.Done()
	tk := time.NewTicker(t.interval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stopCh:
			return
		case <-tk.C:
			t.runTick(ctx)
		}
	}
}

func (t *Ticker) runTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("world tick panicked", "panic", r, "tick", t.ticks.Load())
		}
	}()
	t.fn(ctx)
	t.ticks.Add(1)
}

// Stop halts the tick loop and waits for the in-flight tick. Safe to call more than once.
func (t *Ticker) Stop() {
	if !t.running.CompareAndSwap(true, false) {
		return
	}
	close(t.stopCh)
	t.wg.Wait()
	t.logger.Info("world ticker stopped", "ticks", t.ticks.Load())
}

// Ticks returns the number of completed ticks.
func (t *Ticker) Ticks() uint64 {
	return t.ticks.Load()
}
