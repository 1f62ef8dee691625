// Package hnsw implements the Hierarchical Navigable Small World (HNSW) graph for approximate nearest neighbor search.
package hnsw

import (
	"errors"
	"io"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/hupe1980/annkit/bitset"
	"github.com/hupe1980/annkit/feder"
	"github.com/hupe1980/annkit/index"
	"github.com/hupe1980/annkit/internal/queue"
	"github.com/hupe1980/annkit/internal/visited"
	"github.com/hupe1980/annkit/persistence"
	"github.com/hupe1980/annkit/space"
)

const (
	// mmax0Multiplier is the multiplier for calculating maximum connections at layer 0.
	mmax0Multiplier = 2

	// minimumM is the minimum valid value for M.
	minimumM = 2

	// maxLevelCap bounds the level drawn for a new node.
	maxLevelCap = 32

	// DefaultM is the default number of bidirectional links.
	DefaultM = 30

	// DefaultEFConstruction is the default candidate list size during insertion.
	DefaultEFConstruction = 360

	// DefaultEF is the search candidate list size used when none is given.
	DefaultEF = 16

	// DefaultSeed seeds level assignment.
	DefaultSeed = 100
)

var (
	// ErrInvalidM is returned by New when M is below the minimum.
	ErrInvalidM = errors.New("hnsw: M must be at least 2")

	// ErrFull is returned by AddPoint once node ids are exhausted.
	ErrFull = errors.New("hnsw: node capacity exhausted")
)

var (
	_ index.Algorithm[float32]           = (*HNSW[float32])(nil)
	_ index.Algorithm[uint8]             = (*HNSW[uint8])(nil)
	_ index.CloserFirstSearcher[float32] = (*HNSW[float32])(nil)
	_ index.CompressionSetter            = (*HNSW[float32])(nil)
)

// Options represents the options for configuring HNSW.
type Options struct {
	Dim            int
	Metric         space.Metric
	M              int
	EFConstruction int
	Seed           int64
	Heuristic      bool
	Compression    persistence.CompressionType
}

var DefaultOptions = Options{
	Metric:         space.L2,
	M:              DefaultM,
	EFConstruction: DefaultEFConstruction,
	Seed:           DefaultSeed,
	Heuristic:      true,
}

// HNSW represents the Hierarchical Navigable Small World graph.
//
// Node ids are dense insertion positions. Inserts are serialized by mu;
// searches hold the read side, so they observe a consistent graph.
type HNSW[E space.Element] struct {
	mu sync.RWMutex

	sp    space.Space[E]
	dist  space.DistFunc[E]
	param *space.Param
	dim   int

	// Node storage
	data   []E
	labels []int64
	levels []uint8
	links  [][][]uint32 // links[id][level]

	entryPoint uint32
	maxLevel   int

	// Configuration
	maxConnectionsPerLayer int
	maxConnectionsLayer0   int
	layerMultiplier        float64
	opts                   Options
	rng                    *rand.Rand

	readOnly bool

	scratchPool sync.Pool
}

// scratch holds per-search buffers.
type scratch struct {
	visited    *visited.Set
	candidates *queue.Queue
	results    *queue.Queue
}

// New creates a new HNSW instance.
func New[E space.Element](optFns ...func(o *Options)) (*HNSW[E], error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.M < minimumM {
		return nil, ErrInvalidM
	}
	if opts.EFConstruction < 1 {
		opts.EFConstruction = DefaultEFConstruction
	}

	sp, err := space.New[E](opts.Metric, opts.Dim)
	if err != nil {
		return nil, err
	}
	return newWithSpace(sp, opts), nil
}

func newWithSpace[E space.Element](sp space.Space[E], opts Options) *HNSW[E] {
	h := &HNSW[E]{
		sp:                     sp,
		dist:                   sp.DistFunc(),
		param:                  sp.DistFuncParam(),
		dim:                    sp.Dim(),
		maxConnectionsPerLayer: opts.M,
		maxConnectionsLayer0:   opts.M * mmax0Multiplier,
		layerMultiplier:        1 / math.Log(float64(opts.M)),
		opts:                   opts,
		rng:                    rand.New(rand.NewSource(opts.Seed)), //nolint:gosec
		maxLevel:               -1,
	}
	h.scratchPool.New = func() any {
		return &scratch{
			visited:    visited.New(1024),
			candidates: queue.NewMin(64),
			results:    queue.NewMax(64),
		}
	}
	return h
}

func (h *HNSW[E]) getScratch() *scratch {
	s := h.scratchPool.Get().(*scratch)
	s.visited.Reset()
	s.candidates.Reset()
	s.results.Reset()
	return s
}

func (h *HNSW[E]) vector(id uint32) []E {
	off := int(id) * h.dim
	return h.data[off : off+h.dim : off+h.dim]
}

func (h *HNSW[E]) distTo(v []E, id uint32) float32 {
	return h.dist(v, h.vector(id), h.param)
}

func (h *HNSW[E]) connections(id uint32, level int) []uint32 {
	l := h.links[id]
	if level >= len(l) {
		return nil
	}
	return l[level]
}

// randomLevel draws a level from the exponential distribution with
// scale 1/ln(M).
func (h *HNSW[E]) randomLevel() int {
	r := h.rng.Float64()
	for r == 0 {
		r = h.rng.Float64()
	}
	level := int(math.Floor(-math.Log(r) * h.layerMultiplier))
	return min(level, maxLevelCap)
}

// AddPoint inserts point under label. Duplicate labels become distinct
// nodes.
func (h *HNSW[E]) AddPoint(point []E, label int64) error {
	p, err := index.PrepareQuery(h.sp, point)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.readOnly {
		return index.ErrReadOnly
	}
	if len(h.labels) >= math.MaxUint32 {
		return ErrFull
	}

	id := uint32(len(h.labels))
	level := h.randomLevel()

	h.data = append(h.data, p...)
	h.labels = append(h.labels, label)
	h.levels = append(h.levels, uint8(level))
	h.links = append(h.links, make([][]uint32, level+1))

	if h.maxLevel < 0 {
		h.entryPoint = id
		h.maxLevel = level
		return nil
	}

	ep := h.entryPoint
	epDist := h.distTo(p, ep)

	// Greedy descent through the levels above the new node.
	for l := h.maxLevel; l > level; l-- {
		ep, epDist = h.greedy(p, ep, epDist, l, nil)
	}

	s := h.getScratch()
	defer h.scratchPool.Put(s)

	for l := min(level, h.maxLevel); l >= 0; l-- {
		h.searchLayer(s, p, ep, epDist, l, h.opts.EFConstruction, nil, nil)
		candidates := s.results.DrainAscending()

		maxM := h.maxConnectionsPerLayer
		if l == 0 {
			maxM = h.maxConnectionsLayer0
		}
		neighbors := h.selectNeighbors(candidates, maxM)
		h.links[id][l] = neighbors
		for _, n := range neighbors {
			h.addConnection(n, id, l)
		}

		ep, epDist = candidates[0].ID, candidates[0].Distance
		s.visited.Reset()
		s.candidates.Reset()
	}

	if level > h.maxLevel {
		h.entryPoint = id
		h.maxLevel = level
	}
	return nil
}

// greedy walks level l from ep towards query and returns the closest node
// found.
func (h *HNSW[E]) greedy(query []E, ep uint32, epDist float32, l int, trace feder.Recorder) (uint32, float32) {
	for changed := true; changed; {
		changed = false
		for _, next := range h.connections(ep, l) {
			d := h.distTo(query, next)
			if trace != nil {
				trace.AddVisit(l, h.labels[ep], h.labels[next], d)
			}
			if d < epDist {
				ep, epDist = next, d
				changed = true
			}
		}
	}
	return ep, epDist
}

// searchLayer runs a beam search of width ef on level l and leaves the
// best ef eligible nodes in s.results.
//
// The entry point is always explored even if the filter excludes it.
// Candidates are only pruned against the result bound when there is no
// filter, so traversal does not get trapped in excluded regions.
func (h *HNSW[E]) searchLayer(s *scratch, query []E, ep uint32, epDist float32, l int, ef int, filter bitset.View, trace feder.Recorder) {
	s.visited.Visit(ep)
	s.candidates.Push(queue.Item{ID: ep, Distance: epDist})
	if !bitset.Excluded(filter, h.labels[ep]) {
		s.results.Push(queue.Item{ID: ep, Distance: epDist})
	}

	for s.candidates.Len() > 0 {
		curr, _ := s.candidates.Pop()

		if s.results.Len() >= ef {
			if worst, _ := s.results.Top(); curr.Distance > worst.Distance {
				break
			}
		}

		for _, next := range h.connections(curr.ID, l) {
			if !s.visited.Visit(next) {
				continue
			}
			d := h.distTo(query, next)
			if trace != nil {
				trace.AddVisit(l, h.labels[curr.ID], h.labels[next], d)
			}

			if filter == nil && s.results.Len() >= ef {
				if worst, _ := s.results.Top(); d > worst.Distance {
					continue
				}
			}

			s.candidates.Push(queue.Item{ID: next, Distance: d})
			if !bitset.Excluded(filter, h.labels[next]) {
				s.results.PushBounded(queue.Item{ID: next, Distance: d}, ef)
			}
		}
	}
}

// selectNeighbors picks at most m neighbors from candidates, which are
// sorted nearest first.
func (h *HNSW[E]) selectNeighbors(candidates []queue.Item, m int) []uint32 {
	if !h.opts.Heuristic || len(candidates) <= m {
		return selectNeighborsSimple(candidates, m)
	}
	return h.selectNeighborsHeuristic(candidates, m)
}

func selectNeighborsSimple(candidates []queue.Item, m int) []uint32 {
	n := min(len(candidates), m)
	out := make([]uint32, n)
	for i := range n {
		out[i] = candidates[i].ID
	}
	return out
}

// selectNeighborsHeuristic keeps a candidate only if it is closer to the
// base node than to every neighbor already selected, then fills any
// remaining slots with the nearest pruned candidates.
func (h *HNSW[E]) selectNeighborsHeuristic(candidates []queue.Item, m int) []uint32 {
	result := make([]uint32, 0, m)
	taken := make([]bool, len(candidates))

	for i, cand := range candidates {
		if len(result) >= m {
			break
		}
		candVec := h.vector(cand.ID)
		good := true
		for _, r := range result {
			if h.distTo(candVec, r) < cand.Distance {
				good = false
				break
			}
		}
		if good {
			result = append(result, cand.ID)
			taken[i] = true
		}
	}

	for i, cand := range candidates {
		if len(result) >= m {
			break
		}
		if !taken[i] {
			result = append(result, cand.ID)
		}
	}
	return result
}

// addConnection links source to target on level l, pruning source's
// neighbor list when it is full.
func (h *HNSW[E]) addConnection(source, target uint32, l int) {
	conns := h.links[source][l]
	if slices.Contains(conns, target) {
		return
	}

	maxM := h.maxConnectionsPerLayer
	if l == 0 {
		maxM = h.maxConnectionsLayer0
	}
	if len(conns) < maxM {
		h.links[source][l] = append(conns, target)
		return
	}

	vSource := h.vector(source)
	candidates := make([]queue.Item, 0, len(conns)+1)
	for _, c := range conns {
		candidates = append(candidates, queue.Item{ID: c, Distance: h.distTo(vSource, c)})
	}
	candidates = append(candidates, queue.Item{ID: target, Distance: h.distTo(vSource, target)})
	slices.SortStableFunc(candidates, func(a, b queue.Item) int {
		switch {
		case a.Distance < b.Distance:
			return -1
		case a.Distance > b.Distance:
			return 1
		}
		return 0
	})
	h.links[source][l] = h.selectNeighbors(candidates, maxM)
}

func (h *HNSW[E]) searchEF(k int, p *index.SearchParam) int {
	ef := DefaultEF
	if p != nil && p.EF > 0 {
		ef = p.EF
	}
	if p == nil || !p.ForTuning {
		ef = max(ef, k)
	}
	return ef
}

// descend runs the greedy phase from the entry point down to level 1.
// The caller holds the read lock and the graph is not empty.
func (h *HNSW[E]) descend(query []E, trace feder.Recorder) (uint32, float32) {
	ep := h.entryPoint
	epDist := h.distTo(query, ep)
	for l := h.maxLevel; l > 0; l-- {
		if trace != nil {
			trace.AddSeed(l, h.labels[ep])
		}
		ep, epDist = h.greedy(query, ep, epDist, l, trace)
	}
	if trace != nil {
		trace.AddSeed(0, h.labels[ep])
	}
	return ep, epDist
}

// SearchKNN returns up to k approximate nearest eligible rows, farthest
// first. The beam width is p.EF, raised to k unless p.ForTuning is set.
func (h *HNSW[E]) SearchKNN(query []E, k int, filter bitset.View, p *index.SearchParam, trace feder.Recorder) ([]index.Result, error) {
	if err := index.ValidateK(k); err != nil {
		return nil, err
	}
	q, err := index.PrepareQuery(h.sp, query)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.maxLevel < 0 {
		return []index.Result{}, nil
	}

	ef := h.searchEF(k, p)
	ep, epDist := h.descend(q, trace)

	s := h.getScratch()
	defer h.scratchPool.Put(s)
	h.searchLayer(s, q, ep, epDist, 0, ef, filter, trace)

	for s.results.Len() > k {
		s.results.Pop()
	}
	out := make([]index.Result, s.results.Len())
	for i := range out {
		it, _ := s.results.Pop()
		out[i] = index.Result{Distance: it.Distance, Label: h.labels[it.ID]}
	}
	return out, nil
}

// SearchKNNCloserFirst implements index.CloserFirstSearcher.
func (h *HNSW[E]) SearchKNNCloserFirst(query []E, k int, filter bitset.View) ([]index.Result, error) {
	res, err := h.SearchKNN(query, k, filter, nil, nil)
	if err != nil {
		return nil, err
	}
	slices.Reverse(res)
	return res, nil
}

// SearchKNNBF is an exact scan over every node.
func (h *HNSW[E]) SearchKNNBF(query []E, k int, filter bitset.View) ([]index.Result, error) {
	if err := index.ValidateK(k); err != nil {
		return nil, err
	}
	q, err := index.PrepareQuery(h.sp, query)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return index.BruteForceKNN[E](h.rows(), h.sp, q, k, filter, nil), nil
}

// SearchRange returns eligible rows within radius, nearest first. The beam
// widens geometrically until its farthest member lies beyond radius or the
// whole reachable graph has been collected.
func (h *HNSW[E]) SearchRange(query []E, radius float32, filter bitset.View, p *index.SearchParam, trace feder.Recorder) ([]index.Result, error) {
	if err := index.ValidateRadius(h.sp.Metric(), radius); err != nil {
		return nil, err
	}
	q, err := index.PrepareQuery(h.sp, query)
	if err != nil {
		return nil, err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.maxLevel < 0 {
		return []index.Result{}, nil
	}

	ef := DefaultEF
	if p != nil && p.EF > 0 {
		ef = p.EF
	}
	ep, epDist := h.descend(q, trace)

	s := h.getScratch()
	defer h.scratchPool.Put(s)

	var items []queue.Item
	for {
		s.visited.Reset()
		s.candidates.Reset()
		s.results.Reset()
		h.searchLayer(s, q, ep, epDist, 0, ef, filter, trace)
		items = s.results.DrainAscending()

		if len(items) < ef || items[len(items)-1].Distance > radius || ef >= len(h.labels) {
			break
		}
		ef = min(ef*2, len(h.labels))
		// Later rounds repeat the same traversal; only the first is traced.
		trace = nil
	}

	out := make([]index.Result, 0, len(items))
	for _, it := range items {
		if it.Distance <= radius {
			out = append(out, index.Result{Distance: it.Distance, Label: h.labels[it.ID]})
		}
	}
	return out, nil
}

// SearchRangeBF is an exact scan over every node.
func (h *HNSW[E]) SearchRangeBF(query []E, radius float32, filter bitset.View) ([]index.Result, error) {
	if err := index.ValidateRadius(h.sp.Metric(), radius); err != nil {
		return nil, err
	}
	q, err := index.PrepareQuery(h.sp, query)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return index.BruteForceRange[E](h.rows(), h.sp, q, radius, filter, nil), nil
}

type rows[E space.Element] struct{ h *HNSW[E] }

func (r rows[E]) Rows() int { return len(r.h.labels) }

func (r rows[E]) Row(i int) ([]E, int64) { return r.h.vector(uint32(i)), r.h.labels[i] }

func (h *HNSW[E]) rows() rows[E] { return rows[E]{h: h} }

// Count returns the number of nodes.
func (h *HNSW[E]) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.labels)
}

// Space returns the distance space.
func (h *HNSW[E]) Space() space.Space[E] { return h.sp }

// Options returns the construction options.
func (h *HNSW[E]) Options() Options {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.opts
}

// ReadOnly reports whether the vectors alias a read-only mapping.
func (h *HNSW[E]) ReadOnly() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.readOnly
}

// SetCompression implements index.CompressionSetter.
func (h *HNSW[E]) SetCompression(c persistence.CompressionType) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.opts.Compression = c
}

// SaveIndex writes the graph. See persist.go for the layout.
func (h *HNSW[E]) SaveIndex(w io.Writer) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.encode(w)
}
