package proactor

import (
	"container/heap"

	"github.com/go-foundations/taskrun"
)

// timerEntry is a single armed timer (§3 "Proactor timer"). It is owned
// exclusively by the loop goroutine.
type timerEntry struct {
	id         uint32
	deadlineNs int64
	repeatNs   int64
	parent     taskrun.Handle
	fn         taskrun.Func
	param      [taskrun.ParamMax]byte
	paramLen   int
	tombstoned bool
	watcher    *watcherSide // back-reference for timed watchers, nilable
	index      int
}

// timerHeap is a min-heap keyed on deadline, with lazy deletion via the
// tombstoned flag. The design note explicitly allows substituting a proper
// binary heap for the original's fragile descending-array binary search, as
// long as the ordering properties of §4.E hold; this is that substitution.
type timerHeap []*timerEntry

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadlineNs < h[j].deadlineNs }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	e := x.(*timerEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// timerStore indexes armed timers both by heap order (for "what's due
// next") and by id (for cancel/update).
type timerStore struct {
	h    timerHeap
	byID map[uint32]*timerEntry
}

func newTimerStore() *timerStore {
	return &timerStore{byID: make(map[uint32]*timerEntry)}
}

func (ts *timerStore) insert(e *timerEntry) {
	ts.byID[e.id] = e
	heap.Push(&ts.h, e)
}

// cancel tombstones a timer; an unknown or already-fired id is silently
// ignored (§6.2).
func (ts *timerStore) cancel(id uint32) {
	e, ok := ts.byID[id]
	if !ok || e.tombstoned {
		return
	}
	e.tombstoned = true
	delete(ts.byID, id)
}

func (ts *timerStore) update(id uint32, deadlineNs, repeatNs int64) {
	e, ok := ts.byID[id]
	if !ok || e.tombstoned {
		return
	}
	e.deadlineNs = deadlineNs
	e.repeatNs = repeatNs
	heap.Fix(&ts.h, e.index)
}

// peek discards tombstoned roots and returns the earliest live timer
// without removing it, or nil if none remain.
func (ts *timerStore) peek() *timerEntry {
	for len(ts.h) > 0 {
		top := ts.h[0]
		if top.tombstoned {
			heap.Pop(&ts.h)
			continue
		}
		return top
	}
	return nil
}

// popDue removes and returns the earliest live timer if its deadline has
// passed, or nil otherwise.
func (ts *timerStore) popDue(nowNs int64) *timerEntry {
	e := ts.peek()
	if e == nil || e.deadlineNs > nowNs {
		return nil
	}
	heap.Pop(&ts.h)
	delete(ts.byID, e.id)
	return e
}

// reinsert is used for repeat timers: the entry is reused at a new
// deadline rather than reallocated.
func (ts *timerStore) reinsert(e *timerEntry, deadlineNs int64) {
	e.deadlineNs = deadlineNs
	e.tombstoned = false
	ts.byID[e.id] = e
	heap.Push(&ts.h, e)
}
