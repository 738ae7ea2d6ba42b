package proactor

import (
	"time"

	"github.com/go-foundations/taskrun"
)

// loopState is the private, single-goroutine-owned state of one proactor's
// run loop (§4.E). Nothing here is touched from outside the goroutine that
// calls run; all cross-goroutine communication happens over the control
// channel and fnRegistry.
type loopState struct {
	p        *Proactor
	consumer rawConn
	timers   *timerStore
	fdTable  map[int]*fdEntry
	pollfds  []pollFD
	entries  []*fdEntry // index-aligned with pollfds; entries[0] is nil (control fd)
	readBuf  [1024]byte
}

// run is the proactor's task body: read due timers, compute the poll
// deadline, block in doPoll, dispatch whatever became ready, repeat until
// the control channel is closed out from under it by Destroy.
func (ls *loopState) run(ctx *taskrun.TaskContext) {
	for {
		now := time.Now().UnixNano()

		for {
			e := ls.timers.popDue(now)
			if e == nil {
				break
			}
			if e.watcher != nil {
				ls.disarmWatcherSide(e.watcher)
			}
			ctx.Run(e.parent, e.fn, e.param[:e.paramLen])
			if e.repeatNs > 0 {
				ls.timers.reinsert(e, now+e.repeatNs)
			}
		}

		timeoutMs := -1
		if next := ls.timers.peek(); next != nil {
			d := next.deadlineNs - now
			if d < 0 {
				d = 0
			}
			timeoutMs = int(d / int64(time.Millisecond))
		}

		if err := doPoll(ls.pollfds, timeoutMs); err != nil {
			ls.p.logger.Errorf("proactor: poll failed, aborting loop: %v", err)
			return
		}

		if ls.pollfds[0].revents != 0 {
			if ls.drainControl() {
				return
			}
		}

		for i := 1; i < len(ls.pollfds); i++ {
			pf := &ls.pollfds[i]
			if pf.revents == 0 {
				continue
			}
			fe := ls.entries[i]
			ready := pf.revents
			fired := false

			if fe.read != nil && ready&(evRead|evError) != 0 {
				ws := fe.read
				fe.read = nil
				if ws.timer != nil {
					ls.timers.cancel(ws.timer.id)
				}
				ctx.Run(ws.parent, ws.fn, ws.param[:ws.paramLen])
				fired = true
			}
			if fe.write != nil && ready&(evWrite|evError) != 0 {
				ws := fe.write
				fe.write = nil
				if ws.timer != nil {
					ls.timers.cancel(ws.timer.id)
				}
				ctx.Run(ws.parent, ws.fn, ws.param[:ws.paramLen])
				fired = true
			}
			if !fired {
				continue
			}
			if fe.empty() {
				ls.removeFDAt(i)
				i--
			} else {
				ls.pollfds[i].events = fe.armedBits()
			}
		}
	}
}

// drainControl reads and dispatches as many complete frames as are
// currently available, returning true if the control channel has been
// closed (the shutdown signal from Destroy) or a malformed frame forces an
// abort.
func (ls *loopState) drainControl() bool {
	n, err := ls.consumer.Read(ls.readBuf[:])
	if err != nil {
		if err == errWouldBlock {
			return false
		}
		ls.p.logger.Errorf("proactor: control channel read error, aborting: %v", err)
		return true
	}
	if n == 0 {
		return true
	}

	off := 0
	for off+frameHeaderSize <= n {
		op := opcode(ls.readBuf[off])
		length := int(ls.readBuf[off+1])
		if length < frameHeaderSize || off+length > n {
			ls.p.logger.Errorf("proactor: malformed control frame, aborting")
			return true
		}
		payload := ls.readBuf[off+frameHeaderSize : off+length]
		if err := ls.dispatch(op, payload); err != nil {
			ls.p.logger.Errorf("proactor: %v, aborting", err)
			return true
		}
		off += length
	}
	return false
}

func (ls *loopState) dispatch(op opcode, payload []byte) error {
	switch op {
	case opAddTimer:
		tp := decodeTimerPayload(payload)
		e := &timerEntry{
			id:         tp.id,
			deadlineNs: tp.deadlineNs,
			repeatNs:   tp.repeatNs,
			parent:     tp.parent,
			fn:         ls.p.registry.take(tp.fnID),
		}
		e.paramLen = copy(e.param[:], tp.param)
		ls.timers.insert(e)

	case opCancelTimer:
		ls.timers.cancel(getU32(payload))

	case opUpdateTimer:
		id := getU32(payload[0:4])
		deadline := int64(getU64(payload[4:12]))
		repeat := int64(getU32(payload[12:16]))
		ls.timers.update(id, deadline, repeat)

	case opAddRecvWatcher, opAddSendWatcher:
		wp := decodeWatcherPayload(payload)
		fn := ls.p.registry.take(wp.fnID)
		_, err := ls.armWatcher(wp.fd, op == opAddSendWatcher, wp.parent, fn, wp.param, nil)
		return err

	case opAddRecvTimedWatcher, opAddSendTimedWatcher:
		wp, tp := splitWatcherThenTimer(payload)
		wfn := ls.p.registry.take(wp.fnID)
		tfn := ls.p.registry.take(tp.fnID)
		timerEnt := &timerEntry{id: tp.id, deadlineNs: tp.deadlineNs, parent: tp.parent, fn: tfn}
		timerEnt.paramLen = copy(timerEnt.param[:], tp.param)

		ws, err := ls.armWatcher(wp.fd, op == opAddSendTimedWatcher, wp.parent, wfn, wp.param, timerEnt)
		if err != nil {
			return err
		}
		timerEnt.watcher = ws
		ls.timers.insert(timerEnt)

	case opCancelRecvWatcher:
		ls.disarmDirection(int(getU32(payload)), false)

	case opCancelSendWatcher:
		ls.disarmDirection(int(getU32(payload)), true)

	default:
		return errUnknownOpcode
	}
	return nil
}

func splitWatcherThenTimer(payload []byte) (watcherPayload, timerPayload) {
	wLen := watcherPayloadFixedLen + int(payload[20])
	wp := decodeWatcherPayload(payload[:wLen])
	tp := decodeTimerPayload(payload[wLen:])
	return wp, tp
}

// armWatcher arms one direction of fd, allocating its fdEntry and poll-fd
// slot on first use. A direction already armed for fd is a design-bug class
// protocol violation (§7), not a silently ignored race.
func (ls *loopState) armWatcher(fd int, write bool, parent taskrun.Handle, fn taskrun.Func, param []byte, timer *timerEntry) (*watcherSide, error) {
	fe, ok := ls.fdTable[fd]
	if !ok {
		fe = &fdEntry{fd: fd, pollIdx: len(ls.pollfds)}
		ls.fdTable[fd] = fe
		ls.pollfds = append(ls.pollfds, pollFD{fd: int32(fd)})
		ls.entries = append(ls.entries, fe)
	}

	ws := &watcherSide{fd: fd, write: write, parent: parent, fn: fn, timer: timer}
	ws.paramLen = copy(ws.param[:], param)

	if write {
		if fe.write != nil {
			return nil, errDuplicateWatcher
		}
		fe.write = ws
	} else {
		if fe.read != nil {
			return nil, errDuplicateWatcher
		}
		fe.read = ws
	}
	ls.pollfds[fe.pollIdx].events = fe.armedBits()
	return ws, nil
}

func (ls *loopState) disarmDirection(fd int, write bool) {
	fe, ok := ls.fdTable[fd]
	if !ok {
		return
	}
	var ws *watcherSide
	if write {
		ws, fe.write = fe.write, nil
	} else {
		ws, fe.read = fe.read, nil
	}
	if ws != nil && ws.timer != nil {
		ls.timers.cancel(ws.timer.id)
	}
	if fe.empty() {
		ls.removeFDAt(fe.pollIdx)
	} else {
		ls.pollfds[fe.pollIdx].events = fe.armedBits()
	}
}

// disarmWatcherSide removes a specific watcherSide that lost a timed-watcher
// race against its linked timer.
func (ls *loopState) disarmWatcherSide(ws *watcherSide) {
	fe, ok := ls.fdTable[ws.fd]
	if !ok {
		return
	}
	if fe.read == ws {
		fe.read = nil
	}
	if fe.write == ws {
		fe.write = nil
	}
	if fe.empty() {
		ls.removeFDAt(fe.pollIdx)
	} else {
		ls.pollfds[fe.pollIdx].events = fe.armedBits()
	}
}

// removeFDAt swaps the last poll-fd slot into idx and shrinks both parallel
// slices, fixing up the moved entry's pollIdx back-reference.
func (ls *loopState) removeFDAt(idx int) {
	fe := ls.entries[idx]
	delete(ls.fdTable, fe.fd)

	last := len(ls.pollfds) - 1
	if idx != last {
		ls.pollfds[idx] = ls.pollfds[last]
		ls.entries[idx] = ls.entries[last]
		ls.entries[idx].pollIdx = idx
	}
	ls.pollfds = ls.pollfds[:last]
	ls.entries = ls.entries[:last]
}
