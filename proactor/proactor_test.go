//go:build !windows

package proactor_test

import (
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-foundations/taskrun"
	"github.com/go-foundations/taskrun/proactor"
)

func newTestScheduler(t *testing.T) *taskrun.Scheduler {
	t.Helper()
	sch := taskrun.New(taskrun.WithWorkers(4))
	t.Cleanup(sch.Destroy)
	return sch
}

// TestProactor_OneShotTimerFires exercises the one-shot timer scenario (a
// timer armed for a short delay fires exactly once, on the scheduler).
func TestProactor_OneShotTimerFires(t *testing.T) {
	sch := newTestScheduler(t)
	pr, err := proactor.Create(sch, 0)
	require.NoError(t, err)
	t.Cleanup(pr.Destroy)

	fired := make(chan struct{})
	_, err = pr.AddTimer(20, 0, 0, func(*taskrun.TaskContext, []byte) {
		close(fired)
	}, nil)
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("one-shot timer did not fire")
	}
}

// TestProactor_RepeatTimerFiresMultipleTimes exercises a repeating timer,
// verifying it keeps firing until explicitly cancelled.
func TestProactor_RepeatTimerFiresMultipleTimes(t *testing.T) {
	sch := newTestScheduler(t)
	pr, err := proactor.Create(sch, 0)
	require.NoError(t, err)
	t.Cleanup(pr.Destroy)

	var count atomic.Int32
	id, err := pr.AddTimer(5, 5, 0, func(*taskrun.TaskContext, []byte) {
		count.Add(1)
	}, nil)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for count.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, pr.CancelTimer(id))
	assert.GreaterOrEqual(t, count.Load(), int32(3))
}

// TestProactor_CancelTimerIsSilentOnUnknownID exercises the "unknown or
// already-fired id is silently ignored" contract.
func TestProactor_CancelTimerIsSilentOnUnknownID(t *testing.T) {
	sch := newTestScheduler(t)
	pr, err := proactor.Create(sch, 0)
	require.NoError(t, err)
	t.Cleanup(pr.Destroy)

	assert.NoError(t, pr.CancelTimer(999999))
}

// TestProactor_RecvWatcherFiresOnReadable exercises a plain (untimed) recv
// watcher across a real pipe fd.
func TestProactor_RecvWatcherFiresOnReadable(t *testing.T) {
	sch := newTestScheduler(t)
	pr, err := proactor.Create(sch, 0)
	require.NoError(t, err)
	t.Cleanup(pr.Destroy)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close(); w.Close() })

	fired := make(chan struct{})
	err = pr.AddRecvWatcher(int(r.Fd()), 0, func(*taskrun.TaskContext, []byte) {
		close(fired)
	}, nil)
	require.NoError(t, err)

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("recv watcher did not fire")
	}
}

// TestProactor_TimedRecvWatcher_IOWinsRace exercises the timed-watcher race
// where the fd becomes ready before the linked timeout.
func TestProactor_TimedRecvWatcher_IOWinsRace(t *testing.T) {
	sch := newTestScheduler(t)
	pr, err := proactor.Create(sch, 0)
	require.NoError(t, err)
	t.Cleanup(pr.Destroy)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close(); w.Close() })

	var ioFired, timeoutFired atomic.Bool
	err = pr.AddTimedRecvWatcher(int(r.Fd()), 500,
		0,
		func(*taskrun.TaskContext, []byte) { ioFired.Store(true) },
		func(*taskrun.TaskContext, []byte) { timeoutFired.Store(true) },
		nil,
	)
	require.NoError(t, err)

	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for !ioFired.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// give the timeout a chance to fire too, if the race were lost
	time.Sleep(700 * time.Millisecond)

	assert.True(t, ioFired.Load())
	assert.False(t, timeoutFired.Load())
}

// TestProactor_TimedRecvWatcher_TimeoutWinsRace exercises the opposite
// race outcome: nothing ever becomes ready, so the linked timer fires and
// disarms the I/O side.
func TestProactor_TimedRecvWatcher_TimeoutWinsRace(t *testing.T) {
	sch := newTestScheduler(t)
	pr, err := proactor.Create(sch, 0)
	require.NoError(t, err)
	t.Cleanup(pr.Destroy)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close(); w.Close() })

	var ioFired, timeoutFired atomic.Bool
	err = pr.AddTimedRecvWatcher(int(r.Fd()), 30,
		0,
		func(*taskrun.TaskContext, []byte) { ioFired.Store(true) },
		func(*taskrun.TaskContext, []byte) { timeoutFired.Store(true) },
		nil,
	)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for !timeoutFired.Load() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	assert.True(t, timeoutFired.Load())
	assert.False(t, ioFired.Load())
}

// TestProactor_CancelRecvWatcherIsNoopWithoutArmedWatcher covers cancelling
// a direction that was never armed.
func TestProactor_CancelRecvWatcherIsNoopWithoutArmedWatcher(t *testing.T) {
	sch := newTestScheduler(t)
	pr, err := proactor.Create(sch, 0)
	require.NoError(t, err)
	t.Cleanup(pr.Destroy)

	assert.NoError(t, pr.CancelRecvWatcher(12345))
}

// TestProactor_DestroyWithoutAnyArmedWork covers clean shutdown when
// nothing was ever armed.
func TestProactor_DestroyWithoutAnyArmedWork(t *testing.T) {
	sch := newTestScheduler(t)
	pr, err := proactor.Create(sch, 0)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		pr.Destroy()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Destroy did not return")
	}
}

// TestProactor_DestroyWithArmedTimerAndWatcher covers clean shutdown when
// a timer and a watcher are still outstanding.
func TestProactor_DestroyWithArmedTimerAndWatcher(t *testing.T) {
	sch := newTestScheduler(t)
	pr, err := proactor.Create(sch, 0)
	require.NoError(t, err)

	r, w, err := os.Pipe()
	require.NoError(t, err)
	t.Cleanup(func() { r.Close(); w.Close() })

	_, err = pr.AddTimer(10_000, 0, 0, func(*taskrun.TaskContext, []byte) {}, nil)
	require.NoError(t, err)
	require.NoError(t, pr.AddRecvWatcher(int(r.Fd()), 0, func(*taskrun.TaskContext, []byte) {}, nil))

	done := make(chan struct{})
	go func() {
		pr.Destroy()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Destroy did not return with outstanding timer/watcher")
	}
}
