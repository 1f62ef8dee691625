// Package queue provides the binary heaps used by graph traversal and
// exhaustive scans.
package queue

// Item is a candidate row and its distance to the query.
type Item struct {
	ID       uint32
	Distance float32
}

// Queue is a value-based binary heap of Items. A min-queue keeps the
// nearest item on top; a max-queue keeps the farthest.
type Queue struct {
	max   bool
	items []Item
}

// NewMin returns an empty min-queue.
func NewMin(capacity int) *Queue {
	return &Queue{items: make([]Item, 0, capacity)}
}

// NewMax returns an empty max-queue.
func NewMax(capacity int) *Queue {
	return &Queue{max: true, items: make([]Item, 0, capacity)}
}

// Len returns the number of items.
func (q *Queue) Len() int { return len(q.items) }

// Reset empties the queue, keeping its storage.
func (q *Queue) Reset() { q.items = q.items[:0] }

// Top returns the top item without removing it.
func (q *Queue) Top() (Item, bool) {
	if len(q.items) == 0 {
		return Item{}, false
	}
	return q.items[0], true
}

// Push inserts it.
func (q *Queue) Push(it Item) {
	q.items = append(q.items, it)
	q.up(len(q.items) - 1)
}

// Pop removes and returns the top item.
func (q *Queue) Pop() (Item, bool) {
	n := len(q.items)
	if n == 0 {
		return Item{}, false
	}
	top := q.items[0]
	q.items[0] = q.items[n-1]
	q.items = q.items[:n-1]
	if n > 1 {
		q.down(0)
	}
	return top, true
}

// PushBounded inserts it into a max-queue holding at most limit items,
// evicting the farthest. It reports whether it was kept.
func (q *Queue) PushBounded(it Item, limit int) bool {
	if len(q.items) < limit {
		q.Push(it)
		return true
	}
	if limit == 0 || it.Distance >= q.items[0].Distance {
		return false
	}
	q.items[0] = it
	q.down(0)
	return true
}

// Items returns the backing slice in heap order. It is valid until the
// next mutation.
func (q *Queue) Items() []Item { return q.items }

// DrainAscending empties the queue and returns its items nearest first.
func (q *Queue) DrainAscending() []Item {
	out := make([]Item, len(q.items))
	if q.max {
		for i := len(out) - 1; i >= 0; i-- {
			out[i], _ = q.Pop()
		}
	} else {
		for i := range out {
			out[i], _ = q.Pop()
		}
	}
	return out
}

func (q *Queue) less(i, j int) bool {
	if q.max {
		return q.items[i].Distance > q.items[j].Distance
	}
	return q.items[i].Distance < q.items[j].Distance
}

func (q *Queue) up(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if !q.less(i, p) {
			return
		}
		q.items[i], q.items[p] = q.items[p], q.items[i]
		i = p
	}
}

func (q *Queue) down(i int) {
	n := len(q.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		best := l
		if r := l + 1; r < n && q.less(r, l) {
			best = r
		}
		if !q.less(best, i) {
			return
		}
		q.items[i], q.items[best] = q.items[best], q.items[i]
		i = best
	}
}
