package index

import (
	"container/heap"
)

// ApplyRangeFilter sorts res nearest first and keeps the results with
// lo <= Distance <= hi. It filters in place and returns the shortened
// slice.
func ApplyRangeFilter(res []Result, lo, hi float32) []Result {
	SortCloserFirst(res)
	out := res[:0]
	for _, r := range res {
		if r.Distance >= lo && r.Distance <= hi {
			out = append(out, r)
		}
	}
	return out
}

// MergeNResults merges nearest-first lists into one nearest-first list of
// at most k results. On equal distances the earlier list wins.
func MergeNResults(k int, lists ...[]Result) []Result {
	res := make([]Result, 0, k)
	return MergeNResultsInto(res, k, lists...)
}

// MergeNResultsInto is MergeNResults appending into dst[:0].
func MergeNResultsInto(dst []Result, k int, lists ...[]Result) []Result {
	dst = dst[:0]

	var buf [8][]Result
	active := buf[:0]
	for _, l := range lists {
		if len(l) > 0 {
			active = append(active, l)
		}
	}

	switch len(active) {
	case 0:
		return dst
	case 1:
		return append(dst, active[0][:min(k, len(active[0]))]...)
	case 2:
		return merge2(dst, active[0], active[1], k)
	}

	h := make(mergeHeap, 0, len(active))
	for i, l := range active {
		h = append(h, mergeItem{res: l[0], list: i})
	}
	heap.Init(&h)

	for h.Len() > 0 && len(dst) < k {
		it := h[0]
		dst = append(dst, it.res)
		if next := it.elem + 1; next < len(active[it.list]) {
			h[0] = mergeItem{res: active[it.list][next], list: it.list, elem: next}
			heap.Fix(&h, 0)
		} else {
			heap.Pop(&h)
		}
	}
	return dst
}

func merge2(dst, a, b []Result, k int) []Result {
	i, j := 0, 0
	for len(dst) < k && (i < len(a) || j < len(b)) {
		if j >= len(b) || (i < len(a) && a[i].Distance <= b[j].Distance) {
			dst = append(dst, a[i])
			i++
		} else {
			dst = append(dst, b[j])
			j++
		}
	}
	return dst
}

type mergeItem struct {
	res  Result
	list int
	elem int
}

type mergeHeap []mergeItem

func (h mergeHeap) Len() int { return len(h) }
func (h mergeHeap) Less(i, j int) bool {
	if h[i].res.Distance != h[j].res.Distance {
		return h[i].res.Distance < h[j].res.Distance
	}
	return h[i].list < h[j].list
}
func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *mergeHeap) Push(x any)   { *h = append(*h, x.(mergeItem)) }
func (h *mergeHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
