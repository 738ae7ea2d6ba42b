package taskrun

import (
	"context"
	"runtime"
)

// worker owns one pool slab and one deque. Workers 1..N-1 run loop() in a
// dedicated goroutine; worker 0 has no background loop of its own — its
// goroutine is whichever one called New/Run/Join, exactly as the original
// design co-opts the calling OS thread as worker 0 rather than spawning an
// Nth thread for it.
type worker struct {
	idx   int
	pool  *pool
	dq    *deque
	rng   uint32
	sched *Scheduler
}

// xorshift32 is the victim-selection RNG named explicitly in the source
// design: cheap, branch-free, no lock, reseeded per worker from its own
// index rather than a shared generator.
func xorshift32(state *uint32) uint32 {
	x := *state
	if x == 0 {
		x = 1
	}
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	*state = x
	return x
}

func seedRNG(workerIdx int) uint32 {
	s := uint32(workerIdx)*2654435761 + 0x9e3779b9
	if s == 0 {
		s = 1
	}
	return s
}

// run implements task_run (§4.D) for tasks created by this worker.
func (w *worker) run(parent Handle, fn Func, param []byte) (Handle, error) {
	m := w.sched.metrics
	if fn == nil {
		m.InvalidArgErrs.Add(1)
		return 0, invalidArg(ErrNilFunc)
	}
	if len(param) > ParamMax {
		m.InvalidArgErrs.Add(1)
		return 0, invalidArg(ErrParamTooLarge)
	}
	if !parent.IsZero() {
		ps, ok := deref(w.sched, parent)
		if !ok {
			m.InvalidArgErrs.Add(1)
			return 0, invalidArg(ErrBadParent)
		}
		// bump before the child can possibly run; the deque's release-store
		// on push carries the happens-before to any worker that later pops it.
		ps.active.Add(1)
	}

	var s *slot
	var h Handle
	for {
		var ok bool
		s, h, ok = w.pool.allocate(fn, param, parent)
		if ok {
			break
		}
		m.PoolExhausted.Add(1)
		if !w.runOne() {
			runtime.Gosched()
		}
	}

	for !w.dq.push(s) {
		m.DequeFull.Add(1)
		if !w.runOne() {
			runtime.Gosched()
		}
	}

	w.sched.idle.signal()
	return h, nil
}

// join implements task_join (§4.D): cooperative, never sleeps on the
// semaphore.
func (w *worker) join(h Handle) error {
	s, ok := deref(w.sched, h)
	if !ok {
		return stale(ErrStaleHandle)
	}
	for s.active.Load() != 0 {
		if !w.runOne() {
			runtime.Gosched()
		}
	}
	return nil
}

// runOne pops from this worker's own deque, falling back to a bounded
// number of steal attempts against random peers. It reports whether it ran
// a task.
func (w *worker) runOne() bool {
	s, ok := w.dq.pop()
	if !ok {
		s, ok = w.trySteal()
	}
	if !ok {
		return false
	}
	w.execute(s)
	return true
}

func (w *worker) trySteal() (*slot, bool) {
	workers := w.sched.workers
	n := len(workers)
	if n <= 1 {
		return nil, false
	}
	m := w.sched.metrics
	for i := 0; i < w.sched.cfg.StealAttempts; i++ {
		m.StealAttempts.Add(1)
		v := int(xorshift32(&w.rng)) % (n - 1)
		if v >= w.idx {
			v++
		}
		if s, ok := workers[v].dq.steal(); ok {
			m.TasksStolen.Add(1)
			return s, true
		}
		m.StealFailures.Add(1)
	}
	return nil, false
}

func (w *worker) execute(s *slot) {
	h := s.storedHandle()
	param := s.param[:s.pLen]
	fn := s.fn
	ctx := &TaskContext{h: h, w: w}
	fn(ctx, param)
	w.sched.finish(s)
	w.sched.metrics.TasksRun.Add(1)
}

// loop is the background worker loop (§4.D): pop/steal/run, and sleep on
// the idle gate only when a full pass finds nothing.
func (w *worker) loop(ctx context.Context) {
	for {
		if w.runOne() {
			continue
		}
		w.sched.metrics.IdleWaits.Add(1)
		if err := w.sched.idle.wait(ctx); err != nil {
			return
		}
		if w.sched.closing.Load() {
			return
		}
	}
}
