package sampling

import (
	"context"
	"math/rand/v2"

	"github.com/23skdu/bandcluster/internal/kmeans"
)

// Slice serves pre-extracted samples held in memory. It is both a random
// and an exhaustive source.
type Slice struct {
	samples []kmeans.FeatureVector
	rng     *rand.Rand
}

// NewSlice wraps samples. rng is only needed for Draw and may be nil
// otherwise.
func NewSlice(samples []kmeans.FeatureVector, rng *rand.Rand) *Slice {
	return &Slice{samples: samples, rng: rng}
}

// Draw returns a copy of a uniformly chosen sample.
func (s *Slice) Draw(ctx context.Context) (kmeans.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(s.samples) == 0 {
		return nil, ErrNoValidSamples
	}
	return s.samples[s.rng.IntN(len(s.samples))].Clone(), nil
}

// Scan passes every sample to fn in order.
func (s *Slice) Scan(ctx context.Context, fn func(kmeans.FeatureVector) error) error {
	for i, v := range s.samples {
		if i%scanCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// Partitions splits the samples into at most n contiguous chunks.
func (s *Slice) Partitions(n int) []kmeans.SampleSource {
	if n < 1 {
		n = 1
	}
	n = min(n, len(s.samples))
	parts := make([]kmeans.SampleSource, 0, n)
	lo := 0
	for i := 0; i < n; i++ {
		hi := len(s.samples) * (i + 1) / n
		if hi > lo {
			parts = append(parts, &Slice{samples: s.samples[lo:hi]})
		}
		lo = hi
	}
	return parts
}
