package index

import (
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/annkit/bitset"
	"github.com/hupe1980/annkit/feder"
	"github.com/hupe1980/annkit/internal/cpu"
	"github.com/hupe1980/annkit/internal/queue"
	"github.com/hupe1980/annkit/space"
)

// minPartitionRows keeps small scans on a single goroutine.
const minPartitionRows = 8192

// RowSource exposes stored rows to the exhaustive scans.
type RowSource[E space.Element] interface {
	Rows() int
	Row(i int) ([]E, int64)
}

// BruteForceKNN returns the exact k nearest eligible rows of src, nearest
// first. query must already be prepared for sp. Large sources are scanned
// in parallel partitions whose results are merged.
func BruteForceKNN[E space.Element](src RowSource[E], sp space.Space[E], query []E, k int, filter bitset.View, trace feder.Recorder) []Result {
	parts := partitions(src.Rows())
	lists := make([][]Result, len(parts))

	scan(parts, func(p int, lo, hi int) {
		lists[p] = knnPartition(src, sp, query, k, filter, trace, lo, hi)
	})
	return MergeNResults(k, lists...)
}

// BruteForceRange returns every eligible row of src within radius of
// query, nearest first.
func BruteForceRange[E space.Element](src RowSource[E], sp space.Space[E], query []E, radius float32, filter bitset.View, trace feder.Recorder) []Result {
	parts := partitions(src.Rows())
	lists := make([][]Result, len(parts))

	scan(parts, func(p int, lo, hi int) {
		lists[p] = rangePartition(src, sp, query, radius, filter, trace, lo, hi)
	})

	res := slices.Concat(lists...)
	SortCloserFirst(res)
	return res
}

func knnPartition[E space.Element](src RowSource[E], sp space.Space[E], query []E, k int, filter bitset.View, trace feder.Recorder, lo, hi int) []Result {
	dist, param := sp.DistFunc(), sp.DistFuncParam()
	q := queue.NewMax(k)
	for i := lo; i < hi; i++ {
		row, label := src.Row(i)
		if bitset.Excluded(filter, label) {
			continue
		}
		d := dist(query, row, param)
		if trace != nil {
			trace.AddVisit(0, -1, label, d)
		}
		q.PushBounded(queue.Item{ID: uint32(i), Distance: d}, k)
	}

	items := q.DrainAscending()
	out := make([]Result, len(items))
	for i, it := range items {
		_, label := src.Row(int(it.ID))
		out[i] = Result{Distance: it.Distance, Label: label}
	}
	return out
}

func rangePartition[E space.Element](src RowSource[E], sp space.Space[E], query []E, radius float32, filter bitset.View, trace feder.Recorder, lo, hi int) []Result {
	dist, param := sp.DistFunc(), sp.DistFuncParam()
	var out []Result
	for i := lo; i < hi; i++ {
		row, label := src.Row(i)
		if bitset.Excluded(filter, label) {
			continue
		}
		d := dist(query, row, param)
		if trace != nil {
			trace.AddVisit(0, -1, label, d)
		}
		if d <= radius {
			out = append(out, Result{Distance: d, Label: label})
		}
	}
	return out
}

type span struct{ lo, hi int }

func partitions(rows int) []span {
	if rows == 0 {
		return nil
	}
	workers := max(1, cpu.Get().LogicalCores)
	size := max(minPartitionRows, (rows+workers-1)/workers)

	parts := make([]span, 0, (rows+size-1)/size)
	for lo := 0; lo < rows; lo += size {
		parts = append(parts, span{lo: lo, hi: min(rows, lo+size)})
	}
	return parts
}

func scan(parts []span, fn func(p, lo, hi int)) {
	if len(parts) == 1 {
		fn(0, parts[0].lo, parts[0].hi)
		return
	}
	var g errgroup.Group
	g.SetLimit(max(1, cpu.Get().LogicalCores))
	for p, s := range parts {
		g.Go(func() error {
			fn(p, s.lo, s.hi)
			return nil
		})
	}
	_ = g.Wait()
}
