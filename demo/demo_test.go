package demo

import (
	"math/rand"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/go-foundations/taskrun"
	"github.com/stretchr/testify/assert"
)

func TestParallelFor_SumMatchesSerial(t *testing.T) {
	sch := taskrun.New(taskrun.WithWorkers(4))
	defer sch.Destroy()

	const n = 1_000_000
	data := make([]int64, n)
	for i := range data {
		data[i] = int64(i + 1)
	}

	var total atomic.Int64
	ParallelFor(sch, n, 8, func(start, end int) {
		var local int64
		for i := start; i < end; i++ {
			local += data[i]
		}
		total.Add(local)
	})

	assert.EqualValues(t, 500000500000, total.Load())
}

func TestParallelFor_EmptyRangeNoop(t *testing.T) {
	sch := taskrun.New(taskrun.WithWorkers(2))
	defer sch.Destroy()

	called := false
	ParallelFor(sch, 0, 8, func(int, int) { called = true })
	assert.False(t, called)
}

func TestParallelMergeSort_BoundaryInputs(t *testing.T) {
	sch := taskrun.New(taskrun.WithWorkers(4))
	defer sch.Destroy()

	cases := [][]int{
		{},
		{1},
		{1, 2, 3, 4, 5},
		{5, 4, 3, 2, 1},
		{3, 3, 3, 3},
		{2, 1},
	}
	for _, c := range cases {
		got := append([]int(nil), c...)
		ParallelMergeSort(sch, got)
		want := append([]int(nil), c...)
		sort.Ints(want)
		assert.Equal(t, want, got)
	}
}

func TestParallelMergeSort_LargeRandom(t *testing.T) {
	sch := taskrun.New(taskrun.WithWorkers(4))
	defer sch.Destroy()

	r := rand.New(rand.NewSource(1))
	data := make([]int, 50000)
	for i := range data {
		data[i] = r.Intn(1 << 20)
	}
	want := append([]int(nil), data...)
	sort.Ints(want)

	ParallelMergeSort(sch, data)
	assert.Equal(t, want, data)
}

func TestParallelBitonicSort_E4Example(t *testing.T) {
	sch := taskrun.New(taskrun.WithWorkers(4))
	defer sch.Destroy()

	data := []int{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}
	ParallelBitonicSort(sch, data)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, data)
}

func TestParallelBitonicSort_PowerOfTwo(t *testing.T) {
	sch := taskrun.New(taskrun.WithWorkers(4))
	defer sch.Destroy()

	r := rand.New(rand.NewSource(2))
	data := make([]int, 1024)
	for i := range data {
		data[i] = r.Intn(1 << 16)
	}
	want := append([]int(nil), data...)
	sort.Ints(want)

	ParallelBitonicSort(sch, data)
	assert.Equal(t, want, data)
}
