package taskrun

import "sync/atomic"

// Metrics accumulates scheduler-wide counters, in the spirit of the
// teacher's Metrics struct (GetMetrics in the original workerpool), adapted
// to the work-stealing primitives this module actually schedules.
type Metrics struct {
	TasksRun       atomic.Int64
	TasksStolen    atomic.Int64
	StealAttempts  atomic.Int64
	StealFailures  atomic.Int64
	IdleWaits      atomic.Int64
	PoolExhausted  atomic.Int64
	DequeFull      atomic.Int64
	InvalidArgErrs atomic.Int64
}

// NewMetrics returns a zeroed Metrics ready for use.
func NewMetrics() *Metrics { return &Metrics{} }

// Snapshot is a point-in-time copy of Metrics' counters, safe to log or
// serialize.
type Snapshot struct {
	TasksRun       int64
	TasksStolen    int64
	StealAttempts  int64
	StealFailures  int64
	IdleWaits      int64
	PoolExhausted  int64
	DequeFull      int64
	InvalidArgErrs int64
}

// Snapshot reads all counters into a plain struct.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		TasksRun:       m.TasksRun.Load(),
		TasksStolen:    m.TasksStolen.Load(),
		StealAttempts:  m.StealAttempts.Load(),
		StealFailures:  m.StealFailures.Load(),
		IdleWaits:      m.IdleWaits.Load(),
		PoolExhausted:  m.PoolExhausted.Load(),
		DequeFull:      m.DequeFull.Load(),
		InvalidArgErrs: m.InvalidArgErrs.Load(),
	}
}
