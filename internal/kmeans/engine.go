package kmeans

import (
	"cmp"
	"context"
	"encoding/binary"
	"math"
	"slices"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	errs "github.com/23skdu/bandcluster/internal/errors"
	"github.com/23skdu/bandcluster/internal/metrics"
)

// Engine owns the centroids and member counts of one clustering run.
//
// Lifecycle: New, then Initialize exactly once, then Iterate any number of
// times. Clusters may be read after Initialize. An Engine is not safe for
// concurrent use.
type Engine struct {
	clusterCount   int
	dimensionCount int

	means       []FeatureVector
	counts      []int
	initialized bool

	maxDrawAttempts int
	workers         int
	logger          zerolog.Logger
}

// Pass describes one committed Iterate call.
type Pass struct {
	Samples       int
	EmptyClusters int
	Duration      time.Duration
}

// New creates an engine for clusterCount clusters of dimensionCount-length
// vectors. Centroids start at zero until Initialize.
func New(clusterCount, dimensionCount int, opts ...Option) (*Engine, error) {
	const op = "kmeans.New"
	if clusterCount <= 0 {
		return nil, errs.WrapConfigurationError(ErrInvalidClusterCount, op, "invalid cluster count").
			WithContext("cluster_count", clusterCount)
	}
	if dimensionCount <= 0 {
		return nil, errs.WrapConfigurationError(ErrInvalidDimensionCount, op, "invalid dimension count").
			WithContext("dimension_count", dimensionCount)
	}

	e := &Engine{
		clusterCount:    clusterCount,
		dimensionCount:  dimensionCount,
		means:           newVectors(clusterCount, dimensionCount),
		counts:          make([]int, clusterCount),
		maxDrawAttempts: DefaultMaxDrawAttempts,
		workers:         1,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.maxDrawAttempts <= 0 {
		return nil, errs.WrapConfigurationError(ErrInvalidOption, op, "max draw attempts must be positive").
			WithContext("max_draw_attempts", e.maxDrawAttempts)
	}
	if e.workers <= 0 {
		return nil, errs.WrapConfigurationError(ErrInvalidOption, op, "workers must be positive").
			WithContext("workers", e.workers)
	}
	return e, nil
}

// ClusterCount returns the number of clusters.
func (e *Engine) ClusterCount() int { return e.clusterCount }

// DimensionCount returns the feature vector length.
func (e *Engine) DimensionCount() int { return e.dimensionCount }

// Initialized reports whether Initialize has completed successfully.
func (e *Engine) Initialized() bool { return e.initialized }

// Initialize seeds every centroid, in index order, with a vector drawn from
// src that differs from all previously accepted seeds. Each centroid gets at
// most maxDrawAttempts draws; running out returns ErrSamplingExhausted and
// leaves the engine uninitialized.
func (e *Engine) Initialize(ctx context.Context, src RandomSource) error {
	const op = "kmeans.Initialize"
	if e.initialized {
		return errs.WrapStateError(ErrAlreadyInitialized, op, "initialize called twice")
	}

	seeds := newVectors(e.clusterCount, e.dimensionCount)
	buckets := make(map[uint64][]int, e.clusterCount)
	draws := 0

	for c := 0; c < e.clusterCount; c++ {
		accepted := false
		for attempt := 0; attempt < e.maxDrawAttempts && !accepted; attempt++ {
			v, err := src.Draw(ctx)
			draws++
			metrics.SeedDrawsTotal.Inc()
			if err != nil {
				metrics.InitFailuresTotal.WithLabelValues("source").Inc()
				return err
			}
			if len(v) != e.dimensionCount {
				metrics.InitFailuresTotal.WithLabelValues("dimension").Inc()
				return errs.WrapValidationError(ErrDimensionMismatch, op, "drawn vector has wrong length").
					WithContext("expected", e.dimensionCount).
					WithContext("actual", len(v))
			}

			h := hashVector(v)
			if containsEqual(seeds, buckets[h], v) {
				metrics.SeedRejectionsTotal.Inc()
				continue
			}
			copy(seeds[c], v)
			buckets[h] = append(buckets[h], c)
			accepted = true
		}
		if !accepted {
			metrics.InitFailuresTotal.WithLabelValues("exhausted").Inc()
			return errs.WrapSamplingError(ErrSamplingExhausted, op, "no distinct seed within draw budget").
				WithContext("centroid", c).
				WithContext("accepted", c).
				WithContext("max_draw_attempts", e.maxDrawAttempts)
		}
	}

	e.means = seeds
	clear(e.counts)
	e.initialized = true

	e.logger.Debug().
		Int("clusters", e.clusterCount).
		Int("dimensions", e.dimensionCount).
		Int("draws", draws).
		Msg("Centroids initialized")
	return nil
}

// Iterate runs one Lloyd pass over src. Every sample is assigned to its
// nearest start-of-pass centroid, then each non-empty cluster moves to the
// mean of its members. Empty clusters keep their centroid.
//
// The pass is all-or-nothing: if src fails, the error is returned as is and
// neither centroids nor counts change.
func (e *Engine) Iterate(ctx context.Context, src SampleSource) (Pass, error) {
	const op = "kmeans.Iterate"
	if !e.initialized {
		return Pass{}, errs.WrapStateError(ErrNotInitialized, op, "iterate before initialize")
	}

	start := time.Now()
	var (
		acc *accumulator
		err error
	)
	if p, ok := src.(Partitioner); ok && e.workers > 1 {
		acc, err = e.scanPartitions(ctx, p)
	} else {
		acc, err = e.scan(ctx, src)
	}
	if err != nil {
		metrics.PassesTotal.WithLabelValues("aborted").Inc()
		e.logger.Debug().Err(err).Msg("Pass aborted")
		return Pass{}, err
	}

	empty := e.commit(acc)
	pass := Pass{
		Samples:       acc.samples,
		EmptyClusters: empty,
		Duration:      time.Since(start),
	}

	metrics.PassesTotal.WithLabelValues("committed").Inc()
	metrics.PassDurationSeconds.Observe(pass.Duration.Seconds())
	metrics.SamplesConsumedTotal.Add(float64(pass.Samples))
	metrics.EmptyClusters.Set(float64(empty))

	e.logger.Debug().
		Int("samples", pass.Samples).
		Int("empty_clusters", empty).
		Dur("duration", pass.Duration).
		Msg("Pass committed")
	return pass, nil
}

// Clusters returns a snapshot of every cluster sorted ascending by member
// count. Equal counts keep index order.
func (e *Engine) Clusters() (ClusterSet, error) {
	if !e.initialized {
		return nil, errs.WrapStateError(ErrNotInitialized, "kmeans.Clusters", "clusters before initialize")
	}

	set := make(ClusterSet, e.clusterCount)
	for c := range set {
		set[c] = Cluster{
			Centroid:    e.means[c].Clone(),
			MemberCount: e.counts[c],
		}
	}
	slices.SortStableFunc(set, func(a, b Cluster) int {
		return cmp.Compare(a.MemberCount, b.MemberCount)
	})
	return set, nil
}

// Centroids returns copies of the current centroids in cluster index order.
func (e *Engine) Centroids() ([]FeatureVector, error) {
	if !e.initialized {
		return nil, errs.WrapStateError(ErrNotInitialized, "kmeans.Centroids", "centroids before initialize")
	}
	return cloneVectors(e.means), nil
}

// scan accumulates one sequential pass.
func (e *Engine) scan(ctx context.Context, src SampleSource) (*accumulator, error) {
	acc := newAccumulator(e.clusterCount, e.dimensionCount)
	if err := src.Scan(ctx, func(v FeatureVector) error {
		return acc.add(e.means, v)
	}); err != nil {
		return nil, err
	}
	return acc, nil
}

// commit moves every non-empty cluster to its mean and records counts.
// It returns the number of empty clusters.
func (e *Engine) commit(acc *accumulator) int {
	empty := 0
	for c, n := range acc.counts {
		if n == 0 {
			empty++
			continue
		}
		mean := e.means[c]
		sum := acc.sums[c]
		for d := range mean {
			mean[d] = sum[d] / float64(n)
		}
	}
	copy(e.counts, acc.counts)
	return empty
}

// accumulator holds per-cluster sums and counts for one pass or partition.
type accumulator struct {
	sums    []FeatureVector
	counts  []int
	samples int
}

func newAccumulator(clusters, dim int) *accumulator {
	return &accumulator{
		sums:   newVectors(clusters, dim),
		counts: make([]int, clusters),
	}
}

// add assigns v to its nearest centroid.
func (a *accumulator) add(means []FeatureVector, v FeatureVector) error {
	if len(v) != len(means[0]) {
		return errs.WrapValidationError(ErrDimensionMismatch, "kmeans.Iterate", "sample has wrong length").
			WithContext("expected", len(means[0])).
			WithContext("actual", len(v)).
			WithContext("sample", a.samples)
	}
	c, _ := nearest(means, v)
	sum := a.sums[c]
	for d, x := range v {
		sum[d] += x
	}
	a.counts[c]++
	a.samples++
	return nil
}

// merge adds other into a.
func (a *accumulator) merge(other *accumulator) {
	for c := range a.sums {
		sum := a.sums[c]
		for d, x := range other.sums[c] {
			sum[d] += x
		}
		a.counts[c] += other.counts[c]
	}
	a.samples += other.samples
}

// hashVector hashes the bit patterns of v. Signed zeros hash alike so that
// vectors equal under == share a bucket.
func hashVector(v FeatureVector) uint64 {
	h := xxhash.New()
	var buf [8]byte
	for _, x := range v {
		if x == 0 {
			x = 0
		}
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(x))
		_, _ = h.Write(buf[:])
	}
	return h.Sum64()
}

// containsEqual reports whether any seed listed in bucket equals v.
func containsEqual(seeds []FeatureVector, bucket []int, v FeatureVector) bool {
	for _, i := range bucket {
		if seeds[i].Equal(v) {
			return true
		}
	}
	return false
}

