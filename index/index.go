package index

import (
	"io"
	"sort"

	"github.com/hupe1980/annkit/bitset"
	"github.com/hupe1980/annkit/feder"
	"github.com/hupe1980/annkit/persistence"
	"github.com/hupe1980/annkit/space"
)

// Result is one neighbour: its label and its distance to the query.
type Result struct {
	Distance float32
	Label    int64
}

// Results sorts nearest first. Ties keep insertion order under sort.Stable.
type Results []Result

func (r Results) Len() int           { return len(r) }
func (r Results) Less(i, j int) bool { return r[i].Distance < r[j].Distance }
func (r Results) Swap(i, j int)      { r[i], r[j] = r[j], r[i] }

// SearchParam carries per-call search tuning. A nil *SearchParam selects
// the backend's defaults.
type SearchParam struct {
	// EF is the candidate list size for graph backends.
	EF int
	// ForTuning searches exactly as configured, without raising EF to k.
	ForTuning bool
}

// Algorithm is an ANN index over vectors of element type E.
//
// Implementations are safe for concurrent searches. Whether AddPoint may
// run concurrently with searches is backend-specific; both bundled
// backends allow it.
type Algorithm[E space.Element] interface {
	// AddPoint inserts point under label. Duplicate labels are stored as
	// distinct rows.
	AddPoint(point []E, label int64) error

	// SearchKNN returns up to k eligible rows approximately nearest to
	// query. The order of the results is backend-defined.
	SearchKNN(query []E, k int, filter bitset.View, p *SearchParam, trace feder.Recorder) ([]Result, error)

	// SearchKNNBF returns the exact k nearest eligible rows, nearest first.
	SearchKNNBF(query []E, k int, filter bitset.View) ([]Result, error)

	// SearchRange returns eligible rows with distance <= radius.
	SearchRange(query []E, radius float32, filter bitset.View, p *SearchParam, trace feder.Recorder) ([]Result, error)

	// SearchRangeBF is the exhaustive form of SearchRange.
	SearchRangeBF(query []E, radius float32, filter bitset.View) ([]Result, error)

	// SaveIndex writes the index in the persistence format.
	SaveIndex(w io.Writer) error

	// Count returns the number of stored rows.
	Count() int

	// Space returns the distance space the index was built with.
	Space() space.Space[E]
}

// CloserFirstSearcher is implemented by backends that can produce
// nearest-first results more cheaply than sorting SearchKNN output.
type CloserFirstSearcher[E space.Element] interface {
	SearchKNNCloserFirst(query []E, k int, filter bitset.View) ([]Result, error)
}

// CompressionSetter is implemented by backends whose SaveIndex output can
// be block-compressed.
type CompressionSetter interface {
	SetCompression(c persistence.CompressionType)
}

// SearchKNNCloserFirst returns SearchKNN results nearest first, using the
// backend's own implementation when it has one.
func SearchKNNCloserFirst[E space.Element](a Algorithm[E], query []E, k int, filter bitset.View) ([]Result, error) {
	if cf, ok := a.(CloserFirstSearcher[E]); ok {
		return cf.SearchKNNCloserFirst(query, k, filter)
	}
	res, err := a.SearchKNN(query, k, filter, nil, nil)
	if err != nil {
		return nil, err
	}
	SortCloserFirst(res)
	return res, nil
}

// SortCloserFirst stable-sorts res by ascending distance.
func SortCloserFirst(res []Result) {
	sort.Stable(Results(res))
}
