// Package demo holds the illustrative parallel clients named in §6.3:
// parallel for-each, parallel in-place merge sort, and in-place bitonic
// sort, all built on taskrun's public Run/Join API. None of this package is
// part of the scheduler's contract.
package demo

import "github.com/go-foundations/taskrun"

// l1Budget is the byte footprint under which ParallelFor and the sorts fall
// back to a serial pass, matching the original's 32 KiB default.
const l1Budget = 32 * 1024

// ForEachFunc processes a contiguous half-open range [start, end) of an
// externally-owned collection.
type ForEachFunc func(start, end int)

// ParallelFor splits [0, n) recursively, by element count and elemSize, until
// one piece's byte footprint fits l1Budget, then calls fn serially on each
// leaf range. It is grounded directly on parallel_for.c's parallelForSplit:
// a single root task is created, its two halves are spawned as children of
// it (not of the caller), and the whole tree is joined before returning.
func ParallelFor(sch *taskrun.Scheduler, n, elemSize int, fn ForEachFunc) {
	if n <= 0 {
		return
	}
	root, _ := sch.Run(0, func(ctx *taskrun.TaskContext, _ []byte) {
		parallelForSplit(ctx, 0, n, elemSize, fn)
	}, nil)
	_ = sch.Join(root)
}

func parallelForSplit(ctx *taskrun.TaskContext, start, end, elemSize int, fn ForEachFunc) {
	count := end - start
	if count*elemSize <= l1Budget {
		fn(start, end)
		return
	}
	mid := start + count/2
	h1, _ := ctx.Run(ctx.Handle(), func(c *taskrun.TaskContext, _ []byte) {
		parallelForSplit(c, start, mid, elemSize, fn)
	}, nil)
	h2, _ := ctx.Run(ctx.Handle(), func(c *taskrun.TaskContext, _ []byte) {
		parallelForSplit(c, mid, end, elemSize, fn)
	}, nil)
	_ = ctx.Join(h1)
	_ = ctx.Join(h2)
}
