package kmeans

import (
	"context"
	"errors"
)

// seqDraws returns its vectors in order, cycling when exhausted.
type seqDraws struct {
	vs []FeatureVector
	i  int
}

func (s *seqDraws) Draw(context.Context) (FeatureVector, error) {
	v := s.vs[s.i%len(s.vs)]
	s.i++
	return v.Clone(), nil
}

// samples is an in-memory SampleSource that reuses one buffer per Scan.
type samples []FeatureVector

func (s samples) Scan(ctx context.Context, fn func(FeatureVector) error) error {
	if len(s) == 0 {
		return nil
	}
	buf := make(FeatureVector, len(s[0]))
	for _, v := range s {
		if err := ctx.Err(); err != nil {
			return err
		}
		copy(buf, v)
		if err := fn(buf); err != nil {
			return err
		}
	}
	return nil
}

// partitioned splits samples into contiguous chunks.
type partitioned struct {
	samples
}

func (p partitioned) Partitions(n int) []SampleSource {
	out := make([]SampleSource, 0, n)
	size := (len(p.samples) + n - 1) / n
	for start := 0; start < len(p.samples); start += size {
		end := min(start+size, len(p.samples))
		out = append(out, p.samples[start:end])
	}
	return out
}

// failingAfter yields its samples then fails with err.
type failingAfter struct {
	samples
	err error
}

func (f failingAfter) Scan(ctx context.Context, fn func(FeatureVector) error) error {
	if err := f.samples.Scan(ctx, fn); err != nil {
		return err
	}
	return f.err
}

var errSourceBroken = errors.New("band read failed")

func scalars(xs ...float64) []FeatureVector {
	out := make([]FeatureVector, len(xs))
	for i, x := range xs {
		out[i] = FeatureVector{x}
	}
	return out
}

// seeded returns an initialized engine whose centroids are exactly seeds.
func seeded(t interface {
	Helper()
	Fatalf(string, ...any)
}, seeds []FeatureVector, opts ...Option) *Engine {
	t.Helper()
	e, err := New(len(seeds), len(seeds[0]), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := e.Initialize(context.Background(), &seqDraws{vs: seeds}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return e
}
