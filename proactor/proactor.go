// Package proactor implements a single-threaded I/O reactor that runs as an
// ordinary task on a taskrun.Scheduler: timers and fd readiness watchers are
// armed from any goroutine via a lock-free-at-the-edges control channel, and
// fired callbacks are submitted back onto the scheduler from the loop's own
// worker.
package proactor

import (
	"sync/atomic"
	"time"

	"github.com/go-foundations/taskrun"
)

// atomicU32 is a monotonically increasing, wraparound-skipping-zero id
// counter shared by concurrent producer goroutines calling AddTimer or
// AddTimedRecvWatcher/AddTimedSendWatcher.
type atomicU32 struct{ v atomic.Uint32 }

func (a *atomicU32) next() uint32 {
	for {
		id := a.v.Add(1)
		if id != 0 {
			return id
		}
	}
}

// Proactor owns one control-channel socketpair and the single task that
// drains it (§3, §4.E). All Add*/Cancel*/Update* methods are safe to call
// from any goroutine; the loop itself runs on whichever scheduler worker
// picked up its task.
type Proactor struct {
	sch      *taskrun.Scheduler
	producer rawConn
	registry *fnRegistry
	logger   taskrun.Logger

	nextTimerID atomicU32
	closed      atomic.Bool
	done        chan struct{}
}

// Option configures a Proactor at Create time.
type Option func(*Proactor)

// WithLogger overrides the default no-op logger.
func WithLogger(l taskrun.Logger) Option {
	return func(p *Proactor) { p.logger = l }
}

// Create starts the proactor's loop as a task parented under parent (0 for
// a root task) and returns once the loop task has been submitted. Like
// Scheduler.Run, it must be called from sch's own worker-0 goroutine.
func Create(sch *taskrun.Scheduler, parent taskrun.Handle, opts ...Option) (*Proactor, error) {
	producer, consumer, err := newSocketPair()
	if err != nil {
		return nil, err
	}

	p := &Proactor{
		sch:      sch,
		producer: producer,
		registry: newFnRegistry(),
		logger:   nopProactorLogger{},
		done:     make(chan struct{}),
	}
	for _, o := range opts {
		o(p)
	}

	loop := &loopState{
		p:        p,
		consumer: consumer,
		timers:   newTimerStore(),
		fdTable:  make(map[int]*fdEntry),
		pollfds:  []pollFD{{fd: consumer.Fd(), events: evRead}},
		entries:  []*fdEntry{nil},
	}

	_, err = sch.Run(parent, func(ctx *taskrun.TaskContext, _ []byte) {
		defer close(p.done)
		defer consumer.Close()
		loop.run(ctx)
	}, nil)
	if err != nil {
		producer.Close()
		consumer.Close()
		return nil, err
	}
	return p, nil
}

// Destroy closes the producer end of the control channel, which the loop
// observes as EOF and uses to shut itself down, then waits for the loop
// task to exit.
func (p *Proactor) Destroy() {
	p.closed.Store(true)
	p.producer.Close()
	<-p.done
}

func (p *Proactor) send(op opcode, payload []byte) error {
	if p.closed.Load() {
		return ErrProactorClosed
	}
	frame, err := buildFrame(op, payload)
	if err != nil {
		return err
	}
	off := 0
	for off < len(frame) {
		n, err := p.producer.Write(frame[off:])
		if err != nil {
			return err
		}
		off += n
	}
	return nil
}

// AddTimer arms a one-shot (repeatMs == 0) or repeating timer, firing fn as
// a new task parented under parent after timeoutMs. It returns the timer's
// id, usable with CancelTimer/UpdateTimer.
func (p *Proactor) AddTimer(timeoutMs, repeatMs int64, parent taskrun.Handle, fn taskrun.Func, param []byte) (uint32, error) {
	if fn == nil {
		return 0, taskrun.ErrNilFunc
	}
	if len(param) > taskrun.ParamMax {
		return 0, taskrun.ErrParamTooLarge
	}
	id := p.nextTimerID.next()
	fnID := p.registry.put(fn)
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond).UnixNano()
	payload := encodeTimerPayload(deadline, fnID, id, parent, repeatMs*int64(time.Millisecond), param)
	if err := p.send(opAddTimer, payload); err != nil {
		return 0, err
	}
	return id, nil
}

// CancelTimer disarms a timer previously returned by AddTimer. Cancelling
// an unknown or already-fired id is a silent no-op (§6.2).
func (p *Proactor) CancelTimer(id uint32) error {
	return p.send(opCancelTimer, encodeCancelTimer(id))
}

// UpdateTimer rearms an existing timer with a new deadline and repeat
// interval. The new deadline is timeoutMs after the moment UpdateTimer is
// called, not after the loop processes the request.
func (p *Proactor) UpdateTimer(id uint32, timeoutMs, repeatMs int64) error {
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond).UnixNano()
	return p.send(opUpdateTimer, encodeUpdateTimer(id, deadline, repeatMs*int64(time.Millisecond)))
}

// AddRecvWatcher arms fn to run once fd becomes readable (or errors). Only
// one recv watcher may be armed per fd at a time.
func (p *Proactor) AddRecvWatcher(fd int, parent taskrun.Handle, fn taskrun.Func, param []byte) error {
	return p.addWatcher(opAddRecvWatcher, fd, parent, fn, param)
}

// AddSendWatcher arms fn to run once fd becomes writable (or errors). Only
// one send watcher may be armed per fd at a time.
func (p *Proactor) AddSendWatcher(fd int, parent taskrun.Handle, fn taskrun.Func, param []byte) error {
	return p.addWatcher(opAddSendWatcher, fd, parent, fn, param)
}

func (p *Proactor) addWatcher(op opcode, fd int, parent taskrun.Handle, fn taskrun.Func, param []byte) error {
	if fn == nil {
		return taskrun.ErrNilFunc
	}
	if len(param) > taskrun.ParamMax {
		return taskrun.ErrParamTooLarge
	}
	fnID := p.registry.put(fn)
	return p.send(op, encodeWatcherPayload(fd, parent, fnID, param))
}

// AddTimedRecvWatcher arms ioFn to run once fd becomes readable, or
// timeoutFn if timeoutMs elapses first; whichever fires first disarms the
// other (§3 "timed watcher").
func (p *Proactor) AddTimedRecvWatcher(fd int, timeoutMs int64, parent taskrun.Handle, ioFn, timeoutFn taskrun.Func, param []byte) error {
	return p.addTimedWatcher(opAddRecvTimedWatcher, fd, timeoutMs, parent, ioFn, timeoutFn, param)
}

// AddTimedSendWatcher is AddTimedRecvWatcher for the writable direction.
func (p *Proactor) AddTimedSendWatcher(fd int, timeoutMs int64, parent taskrun.Handle, ioFn, timeoutFn taskrun.Func, param []byte) error {
	return p.addTimedWatcher(opAddSendTimedWatcher, fd, timeoutMs, parent, ioFn, timeoutFn, param)
}

func (p *Proactor) addTimedWatcher(op opcode, fd int, timeoutMs int64, parent taskrun.Handle, ioFn, timeoutFn taskrun.Func, param []byte) error {
	if ioFn == nil || timeoutFn == nil {
		return taskrun.ErrNilFunc
	}
	if len(param) > taskrun.ParamMax {
		return taskrun.ErrParamTooLarge
	}
	wFnID := p.registry.put(ioFn)
	tFnID := p.registry.put(timeoutFn)
	id := p.nextTimerID.next()
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond).UnixNano()

	wPayload := encodeWatcherPayload(fd, parent, wFnID, param)
	tPayload := encodeTimerPayload(deadline, tFnID, id, parent, 0, nil)
	payload := make([]byte, 0, len(wPayload)+len(tPayload))
	payload = append(payload, wPayload...)
	payload = append(payload, tPayload...)
	return p.send(op, payload)
}

// CancelRecvWatcher disarms a previously armed recv watcher (and its linked
// timeout, if any) for fd. An fd with no armed recv watcher is a no-op.
func (p *Proactor) CancelRecvWatcher(fd int) error {
	return p.send(opCancelRecvWatcher, encodeCancelWatcher(fd))
}

// CancelSendWatcher disarms a previously armed send watcher (and its linked
// timeout, if any) for fd. An fd with no armed send watcher is a no-op.
func (p *Proactor) CancelSendWatcher(fd int) error {
	return p.send(opCancelSendWatcher, encodeCancelWatcher(fd))
}

// nopProactorLogger is the zero-value Logger used until WithLogger overrides
// it, matching the scheduler's default of never requiring a caller to wire
// up logging just to get correct behavior.
type nopProactorLogger struct{}

func (nopProactorLogger) Debugf(string, ...any) {}
func (nopProactorLogger) Infof(string, ...any)  {}
func (nopProactorLogger) Warnf(string, ...any)  {}
func (nopProactorLogger) Errorf(string, ...any) {}
