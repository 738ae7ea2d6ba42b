package taskrun

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// idleGate implements the §4.C idle protocol: a signed atomic counter capped
// at +1 (one banked wakeup) paired with a counting semaphore. status equals
// "signals issued minus waiters asleep"; a worker only ever blocks when it
// decrements status below zero, and every such transition is paired with
// exactly one semaphore acquire.
//
// The semaphore is golang.org/x/sync/semaphore.Weighted, the closest Go
// analogue of the original's sema_t. Weighted models "N permits available to
// acquire", the opposite polarity of a classic post/wait semaphore that
// starts at 0, so idleGate pre-acquires its full capacity at construction —
// leaving 0 available — and thereafter Release(1)/Acquire(ctx,1) behave
// exactly like sem_post/sem_wait.
type idleGate struct {
	status atomic.Int32
	sem    *semaphore.Weighted
}

func newIdleGate(capacity int) *idleGate {
	g := &idleGate{sem: semaphore.NewWeighted(int64(capacity))}
	// exhaust all capacity up front so the semaphore starts with 0 available,
	// matching sema_init(s, 0) in the original.
	_ = g.sem.Acquire(context.Background(), int64(capacity))
	return g
}

// signal banks one wakeup (capped at +1) and, if a worker was actually
// asleep (status was negative), posts the semaphore to wake exactly one.
func (g *idleGate) signal() {
	for {
		old := g.status.Load()
		nw := old + 1
		if nw > 1 {
			nw = 1
		}
		if g.status.CompareAndSwap(old, nw) {
			if old < 0 {
				g.sem.Release(1)
			}
			return
		}
	}
}

// wait decrements status; if the pre-decrement value was already below the
// banked-wakeup threshold, it blocks on the semaphore until signalled.
func (g *idleGate) wait(ctx context.Context) error {
	newVal := g.status.Add(-1)
	prev := newVal + 1
	if prev < 1 {
		return g.sem.Acquire(ctx, 1)
	}
	return nil
}

// flush wakes up to n sleepers without blocking the caller, used during
// scheduler teardown. It drives the same signal() protocol n times rather
// than releasing the semaphore directly, so it can never over-release.
func (g *idleGate) flush(n int) {
	for i := 0; i < n; i++ {
		g.signal()
	}
}
