// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package schedule

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/oops"
)

// Pool defaults.
const (
	DefaultWorkers   = 2
	DefaultQueueSize = 256
)

const (
	statePending int32 = iota
	stateCancelled
	stateRunning
	stateDone
)

type job struct {
	id    uint64
	name  string
	task  Task
	timer *time.Timer
	state atomic.Int32
	pool  *Pool
}

// Cancel implements Handle.
func (j *job) Cancel() {
	if !j.state.CompareAndSwap(statePending, stateCancelled) {
		return
	}
	if j.timer != nil {
		j.timer.Stop()
	}
	j.pool.forget(j.id)
}

// Pool is a Scheduler backed by timers that feed a bounded worker pool.
type Pool struct {
	logger *slog.Logger
	queue  chan *job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[uint64]*job
	nextID  uint64
	stopped bool
}

// PoolOption configures a Pool.
type PoolOption func(*poolConfig)

type poolConfig struct {
	workers   int
	queueSize int
	logger    *slog.Logger
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) PoolOption {
	return func(c *poolConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithQueueSize sets the number of fired tasks that can wait for a worker.
func WithQueueSize(n int) PoolOption {
	return func(c *poolConfig) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithPoolLogger sets the pool logger.
func WithPoolLogger(logger *slog.Logger) PoolOption {
	return func(c *poolConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewPool starts a pool. Stop it with Stop.
func NewPool(opts ...PoolOption) *Pool {
	cfg := poolConfig{
		workers:   DefaultWorkers,
		queueSize: DefaultQueueSize,
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		logger:  cfg.logger,
		queue:   make(chan *job, cfg.queueSize),
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[uint64]*job),
	}
	for range cfg.workers {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// After implements Scheduler. After Stop it returns a Handle whose task never runs.
func (p *Pool) After(d time.Duration, name string, task Task) Handle {
	if task == nil {
		return Noop
	}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return Noop
	}
	p.nextID++
	j := &job{id: p.nextID, name: name, task: task, pool: p}
	p.pending[j.id] = j
	// Timer creation under the lock keeps Stop from missing this job.
	j.timer = time.AfterFunc(d, func() { p.enqueue(j) })
	p.mu.Unlock()

	return j
}

// Pending returns the number of scheduled tasks that have not started.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Pool) forget(id uint64) {
	p.mu.Lock()
	delete(p.pending, id)
	p.mu.Unlock()
}

func (p *Pool) enqueue(j *job) {
	if j.state.Load() != statePending {
		return
	}
	select {
	case p.queue <- j:
	case <-p.ctx.Done():
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case j := <-p.queue:
			p.run(j)
		}
	}
}

func (p *Pool) run(j *job) {
	if !j.state.CompareAndSwap(statePending, stateRunning) {
		return
	}
	p.forget(j.id)
	defer j.state.Store(stateDone)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("scheduled task panicked", "task", j.name, "panic", r)
		}
	}()
	j.task(p.ctx)
}

// Stop cancels every pending task and waits for running tasks until ctx is
// done. If the wait is cut short the running tasks are abandoned and an
// error is returned. Stop is safe to call more than once.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	jobs := make([]*job, 0, len(p.pending))
	for _, j := range p.pending {
		jobs = append(jobs, j)
	}
	p.mu.Unlock()

	for _, j := range jobs {
		j.Cancel()
	}
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("scheduler stopped", "cancelled", len(jobs))
		return nil
	case <-ctx.Done():
		p.logger.Warn("scheduler stop timed out, abandoning running tasks")
		return oops.Code("SCHEDULE_STOP_TIMEOUT").With("cancelled", len(jobs)).Wrap(ctx.Err())
	}
}
