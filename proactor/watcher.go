package proactor

import "github.com/go-foundations/taskrun"

// watcherSide is one armed direction (read or write) of a watched fd
// (§3 "Proactor watcher").
type watcherSide struct {
	fd       int
	write    bool
	parent   taskrun.Handle
	fn       taskrun.Func
	param    [taskrun.ParamMax]byte
	paramLen int
	timer    *timerEntry // linked one-shot timeout for a timed watcher, nilable
}

// fdEntry groups both directions for one fd plus its index into the
// proactor's poll-fd array, mirroring the "two watchers per fd, stored at
// index 2i and 2i+1" layout from §3 — here folded into one struct per fd
// sharing a single pollFD slot with a combined event mask, which is the
// natural poll(2)/WSAPoll representation of the same state machine.
type fdEntry struct {
	fd      int
	read    *watcherSide
	write   *watcherSide
	pollIdx int
}

func (e *fdEntry) armedBits() int16 {
	var bits int16
	if e.read != nil {
		bits |= evRead
	}
	if e.write != nil {
		bits |= evWrite
	}
	return bits
}

func (e *fdEntry) empty() bool { return e.read == nil && e.write == nil }
