package kmeans

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// scanPartitions accumulates one pass with each partition scanned by its own
// goroutine. All partitions assign against the same start-of-pass centroids,
// which are only read until the pass commits. Partials are reduced in
// partition order.
func (e *Engine) scanPartitions(ctx context.Context, p Partitioner) (*accumulator, error) {
	parts := p.Partitions(e.workers)
	partials := make([]*accumulator, len(parts))

	g, gctx := errgroup.WithContext(ctx)
	for i, part := range parts {
		g.Go(func() error {
			acc, err := e.scan(gctx, part)
			if err != nil {
				return err
			}
			partials[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := newAccumulator(e.clusterCount, e.dimensionCount)
	for _, acc := range partials {
		total.merge(acc)
	}
	return total, nil
}
