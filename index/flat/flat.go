// Package flat implements an exact index that scans every stored row.
package flat

import (
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"github.com/hupe1980/annkit/bitset"
	"github.com/hupe1980/annkit/feder"
	"github.com/hupe1980/annkit/index"
	"github.com/hupe1980/annkit/persistence"
	"github.com/hupe1980/annkit/space"
)

// ErrFull is returned by AddPoint once row ordinals are exhausted.
var ErrFull = errors.New("flat: row capacity exhausted")

// maxRows bounds the row count so every ordinal fits a uint32 result id.
var maxRows uint64 = math.MaxUint32

var (
	_ index.Algorithm[float32]           = (*Flat[float32])(nil)
	_ index.Algorithm[uint8]             = (*Flat[uint8])(nil)
	_ index.CloserFirstSearcher[float32] = (*Flat[float32])(nil)
	_ index.CompressionSetter            = (*Flat[float32])(nil)
)

// Options contains configuration options for the flat index.
type Options struct {
	// Dim is the fixed vector dimensionality. Required.
	Dim int

	// Metric selects the distance space.
	Metric space.Metric

	// Compression is applied to the body written by SaveIndex.
	Compression persistence.CompressionType
}

// DefaultOptions contains the default configuration options for the flat index.
var DefaultOptions = Options{
	Metric: space.L2,
}

// Flat stores rows in one contiguous arena. Searches snapshot the arena
// under a read lock and scan it without holding the lock, so a single
// writer never blocks readers for long.
type Flat[E space.Element] struct {
	mu       sync.RWMutex
	sp       space.Space[E]
	opts     Options
	data     []E
	labels   []int64
	readOnly bool
}

// New creates an empty flat index.
func New[E space.Element](optFns ...func(o *Options)) (*Flat[E], error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	sp, err := space.New[E](opts.Metric, opts.Dim)
	if err != nil {
		return nil, err
	}
	return &Flat[E]{sp: sp, opts: opts}, nil
}

// AddPoint appends point under label.
func (f *Flat[E]) AddPoint(point []E, label int64) error {
	p, err := index.PrepareQuery(f.sp, point)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readOnly {
		return index.ErrReadOnly
	}
	if uint64(len(f.labels)) >= maxRows {
		return ErrFull
	}
	f.data = append(f.data, p...)
	f.labels = append(f.labels, label)
	return nil
}

// arena is an immutable view of the rows present when it was taken.
// Appends never touch elements below a snapshot's length.
type arena[E space.Element] struct {
	data   []E
	labels []int64
	dim    int
}

func (a arena[E]) Rows() int { return len(a.labels) }

func (a arena[E]) Row(i int) ([]E, int64) {
	off := i * a.dim
	return a.data[off : off+a.dim : off+a.dim], a.labels[i]
}

func (f *Flat[E]) snapshot() arena[E] {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return arena[E]{data: f.data, labels: f.labels, dim: f.sp.Dim()}
}

// SearchKNN scans every row. Results are nearest first; the search
// parameters are ignored. trace receives one level-0 visit per scanned row.
func (f *Flat[E]) SearchKNN(query []E, k int, filter bitset.View, _ *index.SearchParam, trace feder.Recorder) ([]index.Result, error) {
	if err := index.ValidateK(k); err != nil {
		return nil, err
	}
	q, err := index.PrepareQuery(f.sp, query)
	if err != nil {
		return nil, err
	}
	return index.BruteForceKNN[E](f.snapshot(), f.sp, q, k, filter, trace), nil
}

// SearchKNNBF is SearchKNN without tracing.
func (f *Flat[E]) SearchKNNBF(query []E, k int, filter bitset.View) ([]index.Result, error) {
	return f.SearchKNN(query, k, filter, nil, nil)
}

// SearchKNNCloserFirst implements index.CloserFirstSearcher.
func (f *Flat[E]) SearchKNNCloserFirst(query []E, k int, filter bitset.View) ([]index.Result, error) {
	return f.SearchKNN(query, k, filter, nil, nil)
}

// SearchRange returns every eligible row within radius, nearest first.
func (f *Flat[E]) SearchRange(query []E, radius float32, filter bitset.View, _ *index.SearchParam, trace feder.Recorder) ([]index.Result, error) {
	if err := index.ValidateRadius(f.sp.Metric(), radius); err != nil {
		return nil, err
	}
	q, err := index.PrepareQuery(f.sp, query)
	if err != nil {
		return nil, err
	}
	return index.BruteForceRange[E](f.snapshot(), f.sp, q, radius, filter, trace), nil
}

// SearchRangeBF is SearchRange without tracing.
func (f *Flat[E]) SearchRangeBF(query []E, radius float32, filter bitset.View) ([]index.Result, error) {
	return f.SearchRange(query, radius, filter, nil, nil)
}

// Count returns the number of stored rows.
func (f *Flat[E]) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.labels)
}

// Space returns the distance space.
func (f *Flat[E]) Space() space.Space[E] { return f.sp }

// ReadOnly reports whether the rows alias a read-only mapping.
func (f *Flat[E]) ReadOnly() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.readOnly
}

// SetCompression implements index.CompressionSetter.
func (f *Flat[E]) SetCompression(c persistence.CompressionType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opts.Compression = c
}

// SaveIndex writes the index: the row arena followed by the labels.
func (f *Flat[E]) SaveIndex(w io.Writer) error {
	f.mu.RLock()
	a := arena[E]{data: f.data, labels: f.labels, dim: f.sp.Dim()}
	comp := f.opts.Compression
	f.mu.RUnlock()

	h := persistence.FileHeader{
		IndexType:   persistence.IndexTypeFlat,
		ElemKind:    persistence.ElemKindOf[E](),
		Metric:      f.sp.Metric(),
		Compression: comp,
		Dim:         uint32(a.dim),
		Count:       uint64(a.Rows()),
	}
	return index.Encode(w, h, func(pw *persistence.Writer) error {
		if err := persistence.WriteSlice(pw, a.data); err != nil {
			return err
		}
		return persistence.WriteSlice(pw, a.labels)
	})
}

// Stats describes a flat index.
type Stats struct {
	Count       int
	Dim         int
	Metric      space.Metric
	MemoryBytes int64
	ReadOnly    bool
}

// Stats returns size information about the index.
func (f *Flat[E]) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return Stats{
		Count:       len(f.labels),
		Dim:         f.sp.Dim(),
		Metric:      f.sp.Metric(),
		MemoryBytes: int64(len(f.labels))*int64(f.sp.DataSize()) + int64(len(f.labels))*8,
		ReadOnly:    f.readOnly,
	}
}

func (s Stats) String() string {
	return fmt.Sprintf("flat: %d rows, dim %d, %s, %d bytes", s.Count, s.Dim, s.Metric, s.MemoryBytes)
}
