package demo

import (
	"sort"

	"github.com/go-foundations/taskrun"
)

const intSize = 8

// ParallelMergeSort sorts data in place. It recursively splits data until a
// half's byte footprint fits l1Budget, sorts each half (as sibling tasks
// joined by their shared parent), then merges in place.
//
// The source's own in-place-merge variants disagree on blockSwap logic, and
// one has a size-arithmetic bug; rather than port either, this merges by
// repeated single-element rotation — simple, in-place and provably correct,
// at the cost of the source's more elaborate O(n log n) rotate-and-recurse
// scheme.
func ParallelMergeSort(sch *taskrun.Scheduler, data []int) {
	if len(data) < 2 {
		return
	}
	root, _ := sch.Run(0, func(ctx *taskrun.TaskContext, _ []byte) {
		mergeSortSplit(ctx, data)
	}, nil)
	_ = sch.Join(root)
}

func mergeSortSplit(ctx *taskrun.TaskContext, data []int) {
	n := len(data)
	if n*intSize <= l1Budget {
		sort.Ints(data)
		return
	}
	mid := n / 2
	h1, _ := ctx.Run(ctx.Handle(), func(c *taskrun.TaskContext, _ []byte) { mergeSortSplit(c, data[:mid]) }, nil)
	h2, _ := ctx.Run(ctx.Handle(), func(c *taskrun.TaskContext, _ []byte) { mergeSortSplit(c, data[mid:]) }, nil)
	_ = ctx.Join(h1)
	_ = ctx.Join(h2)
	mergeInPlace(data, 0, mid, n)
}

// mergeInPlace merges the two already-sorted runs data[lo:mid] and
// data[mid:hi] in place, using single-element rotations to shift a
// misplaced element from the right run into the left run.
func mergeInPlace(data []int, lo, mid, hi int) {
	if lo >= mid || mid >= hi || data[mid-1] <= data[mid] {
		return
	}
	start2 := mid
	for lo < mid && start2 < hi {
		if data[lo] <= data[start2] {
			lo++
			continue
		}
		value := data[start2]
		for i := start2; i > lo; i-- {
			data[i] = data[i-1]
		}
		data[lo] = value
		lo++
		mid++
		start2++
	}
}

// ParallelBitonicSort sorts data in place using the classic bitonic
// network. It only applies to power-of-two lengths (a bitonic network
// requirement); other lengths fall back to a serial sort.
func ParallelBitonicSort(sch *taskrun.Scheduler, data []int) {
	n := len(data)
	if n < 2 {
		return
	}
	if n&(n-1) != 0 {
		sort.Ints(data)
		return
	}
	root, _ := sch.Run(0, func(ctx *taskrun.TaskContext, _ []byte) {
		bitonicSplit(ctx, data, true)
	}, nil)
	_ = sch.Join(root)
}

func bitonicSplit(ctx *taskrun.TaskContext, data []int, ascending bool) {
	n := len(data)
	if n <= 1 {
		return
	}
	if n*intSize <= l1Budget {
		bitonicSerial(data, ascending)
		return
	}
	mid := n / 2
	h1, _ := ctx.Run(ctx.Handle(), func(c *taskrun.TaskContext, _ []byte) { bitonicSplit(c, data[:mid], true) }, nil)
	h2, _ := ctx.Run(ctx.Handle(), func(c *taskrun.TaskContext, _ []byte) { bitonicSplit(c, data[mid:], false) }, nil)
	_ = ctx.Join(h1)
	_ = ctx.Join(h2)
	bitonicMerge(data, ascending)
}

func bitonicSerial(data []int, ascending bool) {
	n := len(data)
	if n <= 1 {
		return
	}
	mid := n / 2
	bitonicSerial(data[:mid], true)
	bitonicSerial(data[mid:], false)
	bitonicMerge(data, ascending)
}

func bitonicMerge(data []int, ascending bool) {
	n := len(data)
	if n <= 1 {
		return
	}
	mid := n / 2
	for i := 0; i < mid; i++ {
		if (data[i] > data[i+mid]) == ascending {
			data[i], data[i+mid] = data[i+mid], data[i]
		}
	}
	bitonicMerge(data[:mid], ascending)
	bitonicMerge(data[mid:], ascending)
}
