package annkit

import (
	"context"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/annkit/bitset"
	"github.com/hupe1980/annkit/config"
	"github.com/hupe1980/annkit/feder"
	"github.com/hupe1980/annkit/index"
	"github.com/hupe1980/annkit/index/hnsw"
	"github.com/hupe1980/annkit/internal/cpu"
	"github.com/hupe1980/annkit/space"
)

// SearchResult holds k results per query in row-major order. Rows with
// fewer than k matches are padded with label -1 at the worst possible
// distance.
//
// Distances are similarity scores (larger is closer) for IP and COSINE
// and distances (smaller is closer) otherwise. Each row is ordered
// closest first.
type SearchResult struct {
	K         int
	Labels    []int64
	Distances []float32
	// Visits holds one trace per query when trace_visit is set.
	Visits []*feder.Result
}

// Row returns the labels and distances of query i.
func (r *SearchResult) Row(i int) ([]int64, []float32) {
	lo, hi := i*r.K, (i+1)*r.K
	return r.Labels[lo:hi], r.Distances[lo:hi]
}

// RangeResult holds the matches of every query in one flat list. The
// matches of query i are Labels[Lims[i]:Lims[i+1]], ordered closest
// first.
type RangeResult struct {
	Lims      []int
	Labels    []int64
	Distances []float32
	Visits    []*feder.Result
}

// Row returns the labels and distances of query i.
func (r *RangeResult) Row(i int) ([]int64, []float32) {
	lo, hi := r.Lims[i], r.Lims[i+1]
	return r.Labels[lo:hi], r.Distances[lo:hi]
}

// forEachQuery runs fn for every query index on a bounded pool.
func forEachQuery(ctx context.Context, n int, fn func(i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, cpu.Get().LogicalCores))
	for i := range n {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := fn(i); err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func traceRequested(doc config.Document) bool {
	r, ok := doc.Lookup("trace_visit")
	return ok && r.Bool()
}

// prepareQuery injects the index metric into doc and validates it for
// phase.
func (ix *Index[E]) prepareQuery(doc config.Document, m space.Metric, phase config.Phase) (config.Config, error) {
	doc, err := withMetric(doc, m)
	if err != nil {
		return nil, err
	}
	return ix.prepare(doc, phase)
}

func newSearchResult(nq, k int, m space.Metric, trace bool) *SearchResult {
	res := &SearchResult{
		K:         k,
		Labels:    make([]int64, nq*k),
		Distances: make([]float32, nq*k),
	}
	for i := range res.Labels {
		res.Labels[i] = -1
		res.Distances[i] = m.ToScore(math.MaxFloat32)
	}
	if trace {
		res.Visits = make([]*feder.Result, nq)
	}
	return res
}

func (r *SearchResult) fill(i int, hits []index.Result, m space.Metric) {
	labels, dists := r.Row(i)
	for j, h := range hits[:min(len(hits), r.K)] {
		labels[j] = h.Label
		dists[j] = m.ToScore(h.Distance)
	}
}

// Search validates doc for the SEARCH phase and returns the k
// approximately nearest eligible rows for each query. filter excludes
// rows by label and may be nil.
//
// With trace_visit the FEDER phase is validated too and every query's
// traversal is recorded in SearchResult.Visits. for_tuning searches with
// ef exactly as given.
func (ix *Index[E]) Search(ctx context.Context, queries [][]E, doc config.Document, filter bitset.View) (res *SearchResult, err error) {
	return ix.search(ctx, queries, doc, filter, false)
}

// SearchBF is the exact form of Search. It scans every row.
func (ix *Index[E]) SearchBF(ctx context.Context, queries [][]E, doc config.Document, filter bitset.View) (res *SearchResult, err error) {
	return ix.search(ctx, queries, doc, filter, true)
}

func (ix *Index[E]) search(ctx context.Context, queries [][]E, doc config.Document, filter bitset.View, exact bool) (res *SearchResult, err error) {
	start := time.Now()
	k := 0
	defer func() {
		err = translateError(err)
		ix.logger.LogSearch(ctx, len(queries), k, time.Since(start), err)
		ix.opts.metricsCollector.RecordSearch(string(ix.kind), len(queries), k, time.Since(start), err)
	}()

	a, done, err := ix.backend()
	if err != nil {
		return nil, err
	}
	defer done()

	metric := a.Space().Metric()
	phase := config.PhaseSearch
	if !exact && traceRequested(doc) {
		phase |= config.PhaseFeder
	}
	cfg, err := ix.prepareQuery(doc, metric, phase)
	if err != nil {
		return nil, err
	}
	base := cfg.Base()
	k = int(base.K.Value())
	p := searchParam(cfg)
	trace := !exact && base.TraceVisit.Value()

	res = newSearchResult(len(queries), k, metric, trace)
	err = forEachQuery(ctx, len(queries), func(i int) error {
		var hits []index.Result
		var err error
		if exact {
			hits, err = a.SearchKNNBF(queries[i], k, filter)
		} else {
			var rec feder.Recorder
			if trace {
				fr := feder.NewResult()
				res.Visits[i] = fr
				rec = fr
			}
			hits, err = a.SearchKNN(queries[i], k, filter, p, rec)
			index.SortCloserFirst(hits)
		}
		if err != nil {
			return err
		}
		res.fill(i, hits, metric)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// rangeBounds converts radius and range_filter into an inclusive band of
// internal distances.
func rangeBounds(m space.Metric, radius, rangeFilter float32) (lo, hi float32) {
	lo = float32(math.Inf(-1))
	if !math.IsInf(float64(rangeFilter), 1) {
		lo = m.FromScore(rangeFilter)
	}
	return lo, m.FromScore(radius)
}

// RangeSearch validates doc for the RANGE_SEARCH phase and returns, for
// each query, every eligible row inside the band given by radius and
// range_filter. For distance metrics the band is range_filter <= d <=
// radius; for IP and COSINE it is radius <= s <= range_filter. Matches
// are sorted closest first before range_filter is applied.
func (ix *Index[E]) RangeSearch(ctx context.Context, queries [][]E, doc config.Document, filter bitset.View) (res *RangeResult, err error) {
	start := time.Now()
	total := 0
	defer func() {
		err = translateError(err)
		ix.logger.LogRangeSearch(ctx, len(queries), total, time.Since(start), err)
		ix.opts.metricsCollector.RecordRangeSearch(string(ix.kind), len(queries), total, time.Since(start), err)
	}()

	a, done, err := ix.backend()
	if err != nil {
		return nil, err
	}
	defer done()

	metric := a.Space().Metric()
	phase := config.PhaseRangeSearch
	if traceRequested(doc) {
		phase |= config.PhaseFeder
	}
	cfg, err := ix.prepareQuery(doc, metric, phase)
	if err != nil {
		return nil, err
	}
	base := cfg.Base()
	lo, hi := rangeBounds(metric, base.Radius.Value(), base.RangeFilter.Value())
	p := searchParam(cfg)
	trace := base.TraceVisit.Value()

	perQuery := make([][]index.Result, len(queries))
	var visits []*feder.Result
	if trace {
		visits = make([]*feder.Result, len(queries))
	}
	err = forEachQuery(ctx, len(queries), func(i int) error {
		var rec feder.Recorder
		if trace {
			fr := feder.NewResult()
			visits[i] = fr
			rec = fr
		}
		hits, err := a.SearchRange(queries[i], hi, filter, p, rec)
		if err != nil {
			return err
		}
		perQuery[i] = index.ApplyRangeFilter(hits, lo, hi)
		return nil
	})
	if err != nil {
		return nil, err
	}

	res = &RangeResult{Lims: make([]int, len(queries)+1), Visits: visits}
	for i, hits := range perQuery {
		total += len(hits)
		res.Lims[i+1] = total
	}
	res.Labels = make([]int64, 0, total)
	res.Distances = make([]float32, 0, total)
	for _, hits := range perQuery {
		for _, h := range hits {
			res.Labels = append(res.Labels, h.Label)
			res.Distances = append(res.Distances, metric.ToScore(h.Distance))
		}
	}
	return res, nil
}

// GetIndexMeta validates doc for the FEDER phase and returns an overview
// of the top overview_levels levels of the graph. Only HNSW indexes
// support it.
func (ix *Index[E]) GetIndexMeta(doc config.Document) (*feder.HNSWMeta, error) {
	a, done, err := ix.backend()
	if err != nil {
		return nil, err
	}
	defer done()

	h, ok := a.(*hnsw.HNSW[E])
	if !ok {
		return nil, fmt.Errorf("%w: index meta on %s", ErrNotSupported, ix.kind)
	}
	cfg, err := ix.prepare(doc, config.PhaseFeder)
	if err != nil {
		return nil, translateError(err)
	}
	return h.Meta(int(cfg.(*hnsw.Config).OverviewLevels.Value())), nil
}
