package index

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/annkit/resource"
	"github.com/hupe1980/annkit/space"
)

// AddPoints inserts points[i] under labels[i] using up to threads
// goroutines. When rc is non-nil every insert also holds one of its build
// worker slots, bounding concurrency across indexes. The first failure
// cancels the remaining inserts; rows inserted before it are kept.
func AddPoints[E space.Element](ctx context.Context, a Algorithm[E], points [][]E, labels []int64, threads int, rc *resource.Controller) error {
	if len(points) != len(labels) {
		return fmt.Errorf("%w: %d points but %d labels", ErrInvalidQuery, len(points), len(labels))
	}
	dim := a.Space().Dim()
	for i, p := range points {
		if err := ValidateQuery(p, dim); err != nil {
			return fmt.Errorf("point %d: %w", i, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, threads))
	for i := range points {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := rc.AcquireWorker(gctx); err != nil {
				return err
			}
			defer rc.ReleaseWorker()

			if err := a.AddPoint(points[i], labels[i]); err != nil {
				return fmt.Errorf("point %d: %w", i, err)
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// gctx is always cancelled once Wait returns; only the caller's
	// context says whether the batch was interrupted.
	return ctx.Err()
}
