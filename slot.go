package taskrun

import "sync/atomic"

// ParamMax is the largest parameter buffer a task may carry inline, the same
// 96 bytes as the original design. With this slot layout a slot (header plus
// buffer) is 144 bytes on 64-bit platforms, so it spans more than one 64-byte
// cache line.
const ParamMax = 96

// Func is a task body. It receives a TaskContext scoped to the worker
// currently executing it (so it can spawn and join children correctly,
// without requiring thread-local storage) and the inline parameter bytes it
// was given at Run.
type Func func(ctx *TaskContext, param []byte)

// slot is one entry in a worker's pool. Only the owning worker ever writes
// fn, param, parent and generation (single-writer discipline); active
// and handle are read cross-worker and so are atomic.
type slot struct {
	fn     Func
	param  [ParamMax]byte
	pLen   int
	parent Handle

	active     atomic.Int64
	generation atomic.Uint32 // holds a uint8 value; widened to dodge padding
	handle     atomic.Uint64
}

func (s *slot) isFree() bool { return s.active.Load() == 0 }

// storedHandle returns the handle last minted for this slot.
func (s *slot) storedHandle() Handle { return Handle(s.handle.Load()) }
