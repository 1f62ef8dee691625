// Package feder records how a search traverses an index so the traversal
// can be visualized and tuned.
package feder

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	gojson "github.com/goccy/go-json"
)

// Recorder is an append-only sink for traversal events.
type Recorder interface {
	// AddSeed records an entry point on a level.
	AddSeed(level int, id int64)
	// AddVisit records that the search evaluated the edge from -> to on
	// level and measured dist between the query and to.
	AddVisit(level int, from, to int64, dist float32)
}

// Visit is one traversed edge.
type Visit struct {
	Level    int     `json:"level"`
	From     int64   `json:"from"`
	To       int64   `json:"to"`
	Distance float32 `json:"distance"`
}

// Result is the Recorder used for visualization. It keeps every visit in
// order together with the set of distinct ids touched.
//
// Result is safe for concurrent use.
type Result struct {
	mu     sync.Mutex
	visits []Visit
	seeds  []Visit
	ids    *roaring64.Bitmap
}

var _ Recorder = (*Result)(nil)

// NewResult returns an empty Result.
func NewResult() *Result {
	return &Result{ids: roaring64.New()}
}

// AddSeed implements Recorder.
func (r *Result) AddSeed(level int, id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seeds = append(r.seeds, Visit{Level: level, From: id, To: id})
	if id >= 0 {
		r.ids.Add(uint64(id))
	}
}

// AddVisit implements Recorder.
func (r *Result) AddVisit(level int, from, to int64, dist float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.visits = append(r.visits, Visit{Level: level, From: from, To: to, Distance: dist})
	if to >= 0 {
		r.ids.Add(uint64(to))
	}
}

// Visits returns a copy of the recorded visits in order.
func (r *Result) Visits() []Visit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Visit, len(r.visits))
	copy(out, r.visits)
	return out
}

// Seeds returns a copy of the recorded entry points.
func (r *Result) Seeds() []Visit {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Visit, len(r.seeds))
	copy(out, r.seeds)
	return out
}

// IDs returns the distinct ids touched, in ascending order.
func (r *Result) IDs() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]int64, 0, r.ids.GetCardinality())
	it := r.ids.Iterator()
	for it.HasNext() {
		out = append(out, int64(it.Next()))
	}
	return out
}

// Len returns the number of recorded visits.
func (r *Result) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.visits)
}

// MarshalJSON implements json.Marshaler.
func (r *Result) MarshalJSON() ([]byte, error) {
	return gojson.Marshal(struct {
		Seeds  []Visit `json:"seeds"`
		Visits []Visit `json:"visit_info"`
		IDs    []int64 `json:"id_set"`
	}{
		Seeds:  r.Seeds(),
		Visits: r.Visits(),
		IDs:    r.IDs(),
	})
}

// Discard is a Recorder that drops every event.
var Discard Recorder = discard{}

type discard struct{}

func (discard) AddSeed(int, int64)                  {}
func (discard) AddVisit(int, int64, int64, float32) {}

// OrDiscard returns r, or Discard if r is nil.
func OrDiscard(r Recorder) Recorder {
	if r == nil {
		return Discard
	}
	return r
}
