package annkit

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/annkit/config"
	"github.com/hupe1980/annkit/index"
	"github.com/hupe1980/annkit/index/flat"
	"github.com/hupe1980/annkit/index/hnsw"
	"github.com/hupe1980/annkit/persistence"
	"github.com/hupe1980/annkit/space"
)

// Kind names an index algorithm.
type Kind string

const (
	// KindFlat is the exhaustive index.
	KindFlat Kind = "FLAT"
	// KindHNSW is the hierarchical navigable small world graph.
	KindHNSW Kind = "HNSW"
)

// Kinds lists the supported index kinds.
func Kinds() []Kind {
	return []Kind{KindFlat, KindHNSW}
}

// ParseKind parses an index kind case-insensitively.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case KindFlat:
		return KindFlat, nil
	case KindHNSW:
		return KindHNSW, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownIndexKind, s)
	}
}

// NewConfig returns a fresh parameter set for kind. Each call returns an
// independent config, so concurrent operations never share one.
func NewConfig(kind Kind) (config.Config, error) {
	switch kind {
	case KindFlat:
		return flat.NewConfig(), nil
	case KindHNSW:
		return hnsw.NewConfig(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIndexKind, kind)
	}
}

// Index is a typed ANN index of one kind. Every operation validates its
// parameter document against the kind's schema for the operation's phase
// before touching the backend.
//
// Index is safe for concurrent use. Searches run concurrently with each
// other and with Add. Build, Add and the Load family exclude each other;
// an overlapping call fails with ErrConcurrentMutation.
type Index[E space.Element] struct {
	kind   Kind
	opts   options
	logger *Logger

	mutating atomic.Bool

	mu      sync.RWMutex
	algo    index.Algorithm[E]
	backing io.Closer
	closed  bool
}

// New returns an empty index of kind. The kind name is case-insensitive.
func New[E space.Element](kind string, optFns ...Option) (*Index[E], error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}
	opts := applyOptions(optFns)
	return &Index[E]{
		kind:   k,
		opts:   opts,
		logger: opts.logger.WithKind(k),
	}, nil
}

// Kind returns the index kind.
func (ix *Index[E]) Kind() Kind { return ix.kind }

// Count returns the number of stored rows, or 0 before Build.
func (ix *Index[E]) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.algo == nil {
		return 0
	}
	return ix.algo.Count()
}

// Dim returns the vector dimension, or 0 before Build.
func (ix *Index[E]) Dim() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.algo == nil {
		return 0
	}
	return ix.algo.Space().Dim()
}

// Metric returns the distance metric the index was built with.
func (ix *Index[E]) Metric() (space.Metric, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	if ix.algo == nil {
		return 0, ErrNotBuilt
	}
	return ix.algo.Space().Metric(), nil
}

// Close releases the mapping behind a memory-mapped index. The index
// cannot be used afterwards.
func (ix *Index[E]) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		return nil
	}
	ix.closed = true
	ix.algo = nil
	return closeBacking(ix.backing)
}

func closeBacking(c io.Closer) error {
	if c == nil {
		return nil
	}
	return c.Close()
}

// beginMutation claims the single mutation slot.
func (ix *Index[E]) beginMutation() (func(), error) {
	if !ix.mutating.CompareAndSwap(false, true) {
		return nil, ErrConcurrentMutation
	}
	return func() { ix.mutating.Store(false) }, nil
}

// backend returns the current algorithm under a read lock, which the
// caller releases with the returned func.
func (ix *Index[E]) backend() (index.Algorithm[E], func(), error) {
	ix.mu.RLock()
	switch {
	case ix.closed:
		ix.mu.RUnlock()
		return nil, nil, ErrClosed
	case ix.algo == nil:
		ix.mu.RUnlock()
		return nil, nil, ErrNotBuilt
	}
	return ix.algo, ix.mu.RUnlock, nil
}

// swap installs a new backend and releases the previous mapping.
func (ix *Index[E]) swap(a index.Algorithm[E], backing io.Closer) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.closed {
		_ = closeBacking(backing)
		return ErrClosed
	}
	old := ix.backing
	ix.algo = a
	ix.backing = backing
	return closeBacking(old)
}

// prepare validates doc for phase against a fresh config of the index
// kind.
func (ix *Index[E]) prepare(doc config.Document, phase config.Phase) (config.Config, error) {
	cfg, err := NewConfig(ix.kind)
	if err != nil {
		return nil, err
	}
	if err := config.Prepare(cfg, doc, phase); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withMetric makes doc carry the index metric. A query document naming
// another metric is rejected.
func withMetric(doc config.Document, m space.Metric) (config.Document, error) {
	if r, ok := doc.Lookup("metric_type"); ok {
		got, err := space.ParseMetric(r.String())
		if err != nil || got != m {
			return doc, &config.ParamError{
				Param: "metric_type",
				Code:  config.ErrOutOfRange,
				Msg:   fmt.Sprintf("metric_type %s does not match index metric %s", r.String(), m),
			}
		}
	}
	return doc.With("metric_type", m.String())
}

// newBackend creates an empty backend from validated TRAIN parameters.
func (ix *Index[E]) newBackend(cfg config.Config, metric space.Metric, dim int) (index.Algorithm[E], error) {
	var (
		a   index.Algorithm[E]
		err error
	)
	switch c := cfg.(type) {
	case *hnsw.Config:
		a, err = hnsw.New[E](func(o *hnsw.Options) {
			o.Dim = dim
			o.Metric = metric
			o.Heuristic = ix.opts.heuristic
			o.Compression = ix.opts.compression
			c.Options(o)
		})
	case *flat.Config:
		a, err = flat.New[E](func(o *flat.Options) {
			o.Dim = dim
			o.Metric = metric
			o.Compression = ix.opts.compression
		})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownIndexKind, cfg)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// searchParam converts validated SEARCH or RANGE_SEARCH parameters.
func searchParam(cfg config.Config) *index.SearchParam {
	p := &index.SearchParam{ForTuning: cfg.Base().ForTuning.Value()}
	if c, ok := cfg.(*hnsw.Config); ok {
		p.EF = int(c.EF.Value())
	}
	return p
}

// decode reads a serialized backend of the index kind from r.
func (ix *Index[E]) decode(r io.Reader) (index.Algorithm[E], error) {
	switch ix.kind {
	case KindHNSW:
		return hnsw.Load[E](r)
	default:
		return flat.Load[E](r)
	}
}

// view decodes a backend that aliases data.
func (ix *Index[E]) view(data []byte) (index.Algorithm[E], error) {
	switch ix.kind {
	case KindHNSW:
		return hnsw.LoadMmap[E](data)
	default:
		return flat.LoadMmap[E](data)
	}
}

// applyCompression overrides the compression recorded in a loaded file
// when WithCompression was given.
func (ix *Index[E]) applyCompression(a index.Algorithm[E]) {
	if ix.opts.compression == persistence.CompressionNone {
		return
	}
	if cs, ok := a.(index.CompressionSetter); ok {
		cs.SetCompression(ix.opts.compression)
	}
}
