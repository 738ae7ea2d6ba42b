package proactor

import (
	"encoding/binary"
	"sync"

	"github.com/go-foundations/taskrun"
)

// opcode identifies a control-channel command (§4.F). Frames are
// [opcode:u8][length:u8][payload...], length counting the whole frame and
// capped at 255 bytes.
type opcode byte

const (
	opAddTimer opcode = iota + 1
	opCancelTimer
	opUpdateTimer
	opAddRecvWatcher
	opAddSendWatcher
	opAddRecvTimedWatcher
	opAddSendTimedWatcher
	opCancelRecvWatcher
	opCancelSendWatcher
)

const frameHeaderSize = 2
const maxFrameSize = 255

// fn values cannot be serialized as bytes, so the wire payload carries a
// registry handle in the "fn" field's place: same-process substitute for
// the original's raw function pointer, resolved back to the real
// taskrun.Func by the loop goroutine during decode. put is called from
// arbitrary caller goroutines submitting work; take is called only from
// the loop goroutine, but both sides share the same map and counter, so
// both are guarded.
type fnRegistry struct {
	mu   sync.Mutex
	next uint64
	m    map[uint64]taskrun.Func
}

func newFnRegistry() *fnRegistry { return &fnRegistry{m: make(map[uint64]taskrun.Func)} }

func (r *fnRegistry) put(fn taskrun.Func) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	id := r.next
	r.m[id] = fn
	return id
}

func (r *fnRegistry) take(id uint64) taskrun.Func {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn := r.m[id]
	delete(r.m, id)
	return fn
}

func buildFrame(op opcode, payload []byte) ([]byte, error) {
	total := frameHeaderSize + len(payload)
	if total > maxFrameSize {
		return nil, errFrameTooLarge
	}
	frame := make([]byte, total)
	frame[0] = byte(op)
	frame[1] = byte(total)
	copy(frame[frameHeaderSize:], payload)
	return frame, nil
}

// The helpers below read and write the little-endian fixed-width fields of
// the watcher, timer and cancel/update payloads.
func putHandle(b []byte, h taskrun.Handle)  { binary.LittleEndian.PutUint64(b, uint64(h)) }
func getHandle(b []byte) taskrun.Handle     { return taskrun.Handle(binary.LittleEndian.Uint64(b)) }
func putU64(b []byte, v uint64)             { binary.LittleEndian.PutUint64(b, v) }
func getU64(b []byte) uint64                { return binary.LittleEndian.Uint64(b) }
func putU32(b []byte, v uint32)             { binary.LittleEndian.PutUint32(b, v) }
func getU32(b []byte) uint32                { return binary.LittleEndian.Uint32(b) }

// timerPayload is [deadline u64][fnID u64][id u32][parent u64][repeat u32][paramLen u8][param...]
func encodeTimerPayload(deadlineNs int64, fnID uint64, id uint32, parent taskrun.Handle, repeatNs int64, param []byte) []byte {
	b := make([]byte, 8+8+4+8+4+1+len(param))
	putU64(b[0:8], uint64(deadlineNs))
	putU64(b[8:16], fnID)
	putU32(b[16:20], id)
	putHandle(b[20:28], parent)
	putU32(b[28:32], uint32(repeatNs))
	b[32] = byte(len(param))
	copy(b[33:], param)
	return b
}

type timerPayload struct {
	deadlineNs int64
	fnID       uint64
	id         uint32
	parent     taskrun.Handle
	repeatNs   int64
	param      []byte
}

func decodeTimerPayload(b []byte) timerPayload {
	pLen := int(b[32])
	return timerPayload{
		deadlineNs: int64(getU64(b[0:8])),
		fnID:       getU64(b[8:16]),
		id:         getU32(b[16:20]),
		parent:     getHandle(b[20:28]),
		repeatNs:   int64(getU32(b[28:32])),
		param:      append([]byte(nil), b[33:33+pLen]...),
	}
}

const timerPayloadFixedLen = 33

// watcherPayload is [fd u32][parent u64][fnID u64][paramLen u8][param...]
func encodeWatcherPayload(fd int, parent taskrun.Handle, fnID uint64, param []byte) []byte {
	b := make([]byte, 4+8+8+1+len(param))
	putU32(b[0:4], uint32(fd))
	putHandle(b[4:12], parent)
	putU64(b[12:20], fnID)
	b[20] = byte(len(param))
	copy(b[21:], param)
	return b
}

type watcherPayload struct {
	fd     int
	parent taskrun.Handle
	fnID   uint64
	param  []byte
}

func decodeWatcherPayload(b []byte) watcherPayload {
	pLen := int(b[20])
	return watcherPayload{
		fd:     int(getU32(b[0:4])),
		parent: getHandle(b[4:12]),
		fnID:   getU64(b[12:20]),
		param:  append([]byte(nil), b[21:21+pLen]...),
	}
}

const watcherPayloadFixedLen = 21

func encodeCancelTimer(id uint32) []byte {
	b := make([]byte, 4)
	putU32(b, id)
	return b
}

func encodeUpdateTimer(id uint32, deadlineNs int64, repeatNs int64) []byte {
	b := make([]byte, 4+8+4)
	putU32(b[0:4], id)
	putU64(b[4:12], uint64(deadlineNs))
	putU32(b[12:16], uint32(repeatNs))
	return b
}

func encodeCancelWatcher(fd int) []byte {
	b := make([]byte, 4)
	putU32(b, uint32(fd))
	return b
}
