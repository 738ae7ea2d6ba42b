package taskrun

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_WriteAndJoin(t *testing.T) {
	sch := New(WithWorkers(4))
	defer sch.Destroy()

	var x atomic.Int64
	h, err := sch.Run(0, func(ctx *TaskContext, param []byte) {
		x.Store(42)
	}, nil)
	require.NoError(t, err)
	require.NoError(t, sch.Join(h))
	assert.EqualValues(t, 42, x.Load())
}

func TestScheduler_Fibonacci20(t *testing.T) {
	sch := New(WithWorkers(4))
	defer sch.Destroy()

	var fib func(ctx *TaskContext, n int) int64
	fib = func(ctx *TaskContext, n int) int64 {
		if n < 2 {
			return int64(n)
		}
		var a, b int64
		ha, _ := ctx.Run(ctx.Handle(), func(c *TaskContext, _ []byte) { a = fib(c, n-1) }, nil)
		hb, _ := ctx.Run(ctx.Handle(), func(c *TaskContext, _ []byte) { b = fib(c, n-2) }, nil)
		_ = ctx.Join(ha)
		_ = ctx.Join(hb)
		return a + b
	}

	var result int64
	h, err := sch.Run(0, func(ctx *TaskContext, _ []byte) {
		result = fib(ctx, 20)
	}, nil)
	require.NoError(t, err)
	require.NoError(t, sch.Join(h))
	assert.EqualValues(t, 6765, result)
}

func TestScheduler_CompletionTreeWaitsForAllDescendants(t *testing.T) {
	sch := New(WithWorkers(4))
	defer sch.Destroy()

	var count atomic.Int64
	root, err := sch.Run(0, func(ctx *TaskContext, _ []byte) {
		for i := 0; i < 50; i++ {
			ctx.Run(ctx.Handle(), func(c *TaskContext, _ []byte) {
				for j := 0; j < 10; j++ {
					c.Run(c.Handle(), func(*TaskContext, []byte) {
						count.Add(1)
					}, nil)
				}
			}, nil)
		}
	}, nil)
	require.NoError(t, err)
	require.NoError(t, sch.Join(root))
	assert.EqualValues(t, 500, count.Load())
}

func TestScheduler_InvalidArguments(t *testing.T) {
	sch := New(WithWorkers(2))
	defer sch.Destroy()

	_, err := sch.Run(0, nil, nil)
	assert.ErrorIs(t, err, ErrNilFunc)

	big := make([]byte, ParamMax+1)
	_, err = sch.Run(0, func(*TaskContext, []byte) {}, big)
	assert.ErrorIs(t, err, ErrParamTooLarge)

	_, err = sch.Run(Handle(0xDEADBEEF), func(*TaskContext, []byte) {}, nil)
	assert.ErrorIs(t, err, ErrBadParent)
}

func TestScheduler_StaleHandleJoinReturnsImmediately(t *testing.T) {
	sch := New(WithWorkers(2), WithTaskPoolSize(8), WithDequeCapacity(8))
	defer sch.Destroy()

	h, err := sch.Run(0, func(*TaskContext, []byte) {}, nil)
	require.NoError(t, err)
	require.NoError(t, sch.Join(h))

	// allocate past this worker's full pool so the slot is reused at a new
	// generation; h must then be unjoinable-but-harmless: join returns a
	// Stale-kind error rather than blocking or panicking.
	for i := 0; i < 64; i++ {
		hh, err := sch.Run(0, func(*TaskContext, []byte) {}, nil)
		require.NoError(t, err)
		require.NoError(t, sch.Join(hh))
	}
	err = sch.Join(h)
	assert.ErrorIs(t, err, ErrStaleHandle)
	var taskErr *Error
	require.ErrorAs(t, err, &taskErr)
	assert.Equal(t, KindStale, taskErr.Kind)
}

func TestScheduler_NoLostWakeupUnderLoad(t *testing.T) {
	sch := New(WithWorkers(8))
	defer sch.Destroy()

	const m = 2000
	var total atomic.Int64
	root, err := sch.Run(0, func(ctx *TaskContext, _ []byte) {
		for i := 0; i < m; i++ {
			h, _ := ctx.Run(ctx.Handle(), func(c *TaskContext, _ []byte) {
				total.Add(1)
			}, nil)
			_ = ctx.Join(h)
		}
	}, nil)
	require.NoError(t, err)
	require.NoError(t, sch.Join(root))
	assert.EqualValues(t, m, total.Load())
	assert.GreaterOrEqual(t, sch.idle.status.Load(), int32(-sch.NumWorkers()))
}
