// Package taskrun implements a work-stealing task runtime: a fixed pool of
// workers, each with a per-worker task slab and Chase-Lev deque, random
// work stealing, ABA-safe generational handles, and hierarchical
// completion counting for join semantics.
package taskrun

import (
	"context"
	"sync"
	"sync/atomic"
)

// Scheduler is a fixed pool of workers sharing one idle-wakeup gate. It is
// the Go analogue of scheduler_create/scheduler_destroy (§6.1): the
// goroutine that calls New stands in for the "co-opted calling thread"
// that becomes worker 0, and must be the same goroutine that later calls
// Destroy.
type Scheduler struct {
	cfg     Config
	workers []*worker
	idle    *idleGate
	closing atomic.Bool
	wg      sync.WaitGroup
	metrics *Metrics
	logger  Logger
}

// New creates a Scheduler from DefaultConfig with the given options
// applied, clamping NumWorkers to [MinWorkers, MaxWorkers].
func New(opts ...SchedulerOption) *Scheduler {
	cfg := DefaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	cfg.normalize()
	return newScheduler(cfg)
}

// NewWithConfig creates a Scheduler from an explicit Config.
func NewWithConfig(cfg Config) *Scheduler {
	cfg.normalize()
	return newScheduler(cfg)
}

func newScheduler(cfg Config) *Scheduler {
	sch := &Scheduler{
		cfg:     cfg,
		idle:    newIdleGate(cfg.NumWorkers),
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
	sch.workers = make([]*worker, cfg.NumWorkers)
	for i := range sch.workers {
		sch.workers[i] = &worker{
			idx:   i,
			pool:  newPool(i, cfg.TaskPoolSize),
			dq:    newDeque(cfg.DequeCapacity),
			rng:   seedRNG(i),
			sched: sch,
		}
	}

	sch.wg.Add(cfg.NumWorkers - 1)
	for i := 1; i < cfg.NumWorkers; i++ {
		w := sch.workers[i]
		go func() {
			defer sch.wg.Done()
			w.loop(context.Background())
		}()
	}

	sch.logger.Infof("scheduler started: %d workers, %d slots/worker", cfg.NumWorkers, cfg.TaskPoolSize)
	return sch
}

// poolFor implements schedRef so handles minted by any worker can be
// dereferenced from any other.
func (sch *Scheduler) poolFor(worker int) *pool {
	if worker < 0 || worker >= len(sch.workers) {
		return nil
	}
	return sch.workers[worker].pool
}

// Run submits fn as a new task. It must be called from the Scheduler's
// worker-0 goroutine (the one that called New), exactly as task_run called
// from worker 0 in the original.
func (sch *Scheduler) Run(parent Handle, fn Func, param []byte) (Handle, error) {
	if sch.closing.Load() {
		return 0, ErrSchedulerClosed
	}
	return sch.workers[0].run(parent, fn, param)
}

// Join blocks the calling (worker-0) goroutine, cooperatively executing
// other tasks, until h's subtree completes. If h is stale it returns at once
// with a KindStale *Error wrapping ErrStaleHandle.
func (sch *Scheduler) Join(h Handle) error {
	return sch.workers[0].join(h)
}

// Metrics returns a point-in-time snapshot of scheduler counters.
func (sch *Scheduler) Metrics() Snapshot { return sch.metrics.Snapshot() }

// NumWorkers returns the scheduler's worker count.
func (sch *Scheduler) NumWorkers() int { return len(sch.workers) }

// Destroy stops every background worker. It sets the close flag, flushes
// the idle gate so every sleeper wakes, and waits for workers 1..N-1 to
// exit. It must be called from the scheduler's own worker-0 goroutine.
func (sch *Scheduler) Destroy() {
	sch.closing.Store(true)
	sch.idle.flush(len(sch.workers))
	sch.wg.Wait()
	sch.logger.Infof("scheduler stopped")
}

// finish implements taskFinish (§4.D): decrement s's active-count; if it
// reaches zero, cascade the decrement up the parent chain.
func (sch *Scheduler) finish(s *slot) {
	for {
		if s.active.Add(-1) != 0 {
			return
		}
		parent := s.parent
		if parent.IsZero() {
			return
		}
		ps, ok := deref(sch, parent)
		if !ok {
			return
		}
		s = ps
	}
}
