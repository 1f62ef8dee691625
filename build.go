package annkit

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/annkit/config"
	"github.com/hupe1980/annkit/index"
	"github.com/hupe1980/annkit/internal/cpu"
	"github.com/hupe1980/annkit/space"
)

// Dataset is a batch of vectors to insert.
type Dataset[E space.Element] struct {
	// Vectors holds one vector per row. All rows share one dimension.
	Vectors [][]E
	// Labels holds the label of each row. When nil, rows are labelled by
	// their ordinal, continuing after the rows already in the index.
	Labels []int64
}

// Rows returns the number of vectors.
func (ds Dataset[E]) Rows() int { return len(ds.Vectors) }

func (ds Dataset[E]) labels(offset int) ([]int64, error) {
	if ds.Labels == nil {
		labels := make([]int64, len(ds.Vectors))
		for i := range labels {
			labels[i] = int64(offset + i)
		}
		return labels, nil
	}
	if len(ds.Labels) != len(ds.Vectors) {
		return nil, fmt.Errorf("%w: %d vectors but %d labels", ErrInvalidQuery, len(ds.Vectors), len(ds.Labels))
	}
	return ds.Labels, nil
}

func buildThreads(b *config.BaseConfig) int {
	return int(b.NumBuildThread.Or(int32(cpu.Get().LogicalCores)))
}

// Build validates doc for the TRAIN phase and builds a new index from ds,
// replacing any previous contents once the build succeeds. A failed
// build leaves the index as it was.
//
// The dim parameter defaults to the dataset's dimension and is required
// when ds is empty.
func (ix *Index[E]) Build(ctx context.Context, ds Dataset[E], doc config.Document) (err error) {
	start := time.Now()
	dim, threads := 0, 0
	defer func() {
		err = translateError(err)
		ix.logger.LogBuild(ctx, ds.Rows(), dim, threads, time.Since(start), err)
		ix.opts.metricsCollector.RecordBuild(string(ix.kind), ds.Rows(), time.Since(start), err)
	}()

	release, err := ix.beginMutation()
	if err != nil {
		return err
	}
	defer release()

	cfg, err := ix.prepare(doc, config.PhaseTrain)
	if err != nil {
		return err
	}
	base := cfg.Base()
	metric, err := base.Metric()
	if err != nil {
		return err
	}

	if dim, err = datasetDim(base, ds); err != nil {
		return err
	}
	threads = buildThreads(base)

	a, err := ix.newBackend(cfg, metric, dim)
	if err != nil {
		return err
	}
	labels, err := ds.labels(0)
	if err != nil {
		return err
	}
	if err := index.AddPoints(ctx, a, ds.Vectors, labels, threads, ix.opts.resources); err != nil {
		return err
	}
	return ix.swap(a, nil)
}

func datasetDim[E space.Element](base *config.BaseConfig, ds Dataset[E]) (int, error) {
	if d, ok := base.Dim.Get(); ok {
		if ds.Rows() > 0 && len(ds.Vectors[0]) != int(d) {
			return 0, &index.ErrDimensionMismatch{Expected: int(d), Actual: len(ds.Vectors[0])}
		}
		return int(d), nil
	}
	if ds.Rows() == 0 {
		return 0, &config.ParamError{
			Param: "dim",
			Code:  config.ErrMissingRequiredParam,
			Msg:   "param dim is required to build from an empty dataset",
		}
	}
	return len(ds.Vectors[0]), nil
}

// Add inserts ds into a built index. doc is validated for the TRAIN
// phase; only num_build_thread is consulted and a metric_type other than
// the index's is rejected.
func (ix *Index[E]) Add(ctx context.Context, ds Dataset[E], doc config.Document) (err error) {
	start := time.Now()
	dim, threads := 0, 0
	defer func() {
		err = translateError(err)
		ix.logger.LogBuild(ctx, ds.Rows(), dim, threads, time.Since(start), err)
		ix.opts.metricsCollector.RecordBuild(string(ix.kind), ds.Rows(), time.Since(start), err)
	}()

	release, err := ix.beginMutation()
	if err != nil {
		return err
	}
	defer release()

	a, done, err := ix.backend()
	if err != nil {
		return err
	}
	defer done()

	dim = a.Space().Dim()
	if doc, err = withMetric(doc, a.Space().Metric()); err != nil {
		return err
	}
	if !doc.Has("dim") {
		if doc, err = doc.With("dim", dim); err != nil {
			return err
		}
	}
	cfg, err := ix.prepare(doc, config.PhaseTrain)
	if err != nil {
		return err
	}
	if d := int(cfg.Base().Dim.Value()); d != dim {
		return &index.ErrDimensionMismatch{Expected: dim, Actual: d}
	}
	threads = buildThreads(cfg.Base())

	labels, err := ds.labels(a.Count())
	if err != nil {
		return err
	}
	return index.AddPoints(ctx, a, ds.Vectors, labels, threads, ix.opts.resources)
}
