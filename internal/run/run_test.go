package run

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/23skdu/bandcluster/internal/errors"
	"github.com/23skdu/bandcluster/internal/kmeans"
	"github.com/23skdu/bandcluster/internal/logging"
	"github.com/23skdu/bandcluster/internal/metrics"
	"github.com/23skdu/bandcluster/internal/sampling"
	"github.com/23skdu/bandcluster/internal/scene"
)

func vectors(vals ...float64) []kmeans.FeatureVector {
	out := make([]kmeans.FeatureVector, len(vals))
	for i, v := range vals {
		out[i] = kmeans.FeatureVector{v}
	}
	return out
}

// fixedDraws hands out seeds in order.
type fixedDraws struct {
	seeds []kmeans.FeatureVector
	i     int
}

func (d *fixedDraws) Draw(context.Context) (kmeans.FeatureVector, error) {
	v := d.seeds[d.i%len(d.seeds)].Clone()
	d.i++
	return v, nil
}

// cancelAfter cancels the run once the nth scan completes.
type cancelAfter struct {
	kmeans.SampleSource
	n      int
	scans  int
	cancel context.CancelFunc
}

func (c *cancelAfter) Scan(ctx context.Context, fn func(kmeans.FeatureVector) error) error {
	err := c.SampleSource.Scan(ctx, fn)
	c.scans++
	if c.scans == c.n {
		c.cancel()
	}
	return err
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.ClusterCount = 2
	cfg.MaxPasses = 5
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		sentinel error
	}{
		{"clusters", func(c *Config) { c.ClusterCount = 0 }, ErrInvalidClusterCount},
		{"passes", func(c *Config) { c.MaxPasses = 0 }, ErrInvalidMaxPasses},
		{"tolerance", func(c *Config) { c.Tolerance = -0.1 }, ErrInvalidTolerance},
		{"workers", func(c *Config) { c.Workers = 0 }, ErrInvalidWorkers},
		{"draws", func(c *Config) { c.MaxDrawAttempts = 0 }, ErrInvalidDrawAttempts},
	}
	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			r, err := New(cfg, logging.DiscardLogger())
			assert.Nil(t, r)
			require.ErrorIs(t, err, tt.sentinel)
			assert.Equal(t, errs.ErrorTypeConfiguration, errs.TypeOf(err))
		})
	}
}

func TestConfig_Policy(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, FixedPasses{N: cfg.MaxPasses}, cfg.Policy())

	cfg.Tolerance = 0.5
	assert.Equal(t, MovementThreshold{MaxPasses: cfg.MaxPasses, Tolerance: 0.5}, cfg.Policy())
}

func TestRun_FixedPasses(t *testing.T) {
	r, err := New(testConfig(), logging.DiscardLogger())
	require.NoError(t, err)

	samples := sampling.NewSlice(vectors(1, 2, 3, 10, 11, 12), nil)
	res, err := r.Run(context.Background(), 1, &fixedDraws{seeds: vectors(1, 12)}, samples)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 5, res.Passes)
	assert.False(t, res.Converged)
	assert.Equal(t, 6, res.Samples)
	assert.Equal(t, 0.0, res.Shift)
	require.Len(t, res.Clusters, 2)
	assert.Equal(t, 6, res.Clusters.TotalMembers())

	centroids := []float64{res.Clusters[0].Centroid[0], res.Clusters[1].Centroid[0]}
	assert.ElementsMatch(t, []float64{2, 11}, centroids)
}

func TestRun_MovementThresholdConverges(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPasses = 50
	cfg.Tolerance = 1e-9
	r, err := New(cfg, logging.DiscardLogger())
	require.NoError(t, err)

	samples := sampling.NewSlice(vectors(1, 2, 3, 10, 11, 12), nil)
	res, err := r.Run(context.Background(), 1, &fixedDraws{seeds: vectors(1, 12)}, samples)
	require.NoError(t, err)

	assert.True(t, res.Converged)
	// seeds move on pass one, the fixed point is confirmed on pass two
	assert.Equal(t, 2, res.Passes)
}

func TestRun_OnPass(t *testing.T) {
	r, err := New(testConfig(), logging.DiscardLogger())
	require.NoError(t, err)

	var reports []PassReport
	r.OnPass(func(rep PassReport) { reports = append(reports, rep) })

	samples := sampling.NewSlice(vectors(1, 2, 3, 10, 11, 12), nil)
	_, err = r.Run(context.Background(), 1, &fixedDraws{seeds: vectors(1, 12)}, samples)
	require.NoError(t, err)

	require.Len(t, reports, 5)
	assert.Equal(t, PassReport{Pass: 1, Samples: 6, Shift: 1}, reports[0])
	assert.Equal(t, PassReport{Pass: 5, Samples: 6, Shift: 0}, reports[4])
}

func TestRun_WithPolicy(t *testing.T) {
	r, err := New(testConfig(), logging.DiscardLogger())
	require.NoError(t, err)
	r.WithPolicy(FixedPasses{N: 1})

	samples := sampling.NewSlice(vectors(1, 2, 3), nil)
	res, err := r.Run(context.Background(), 1, &fixedDraws{seeds: vectors(1, 3)}, samples)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Passes)
}

func TestRun_CanceledBetweenPasses(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPasses = 10
	r, err := New(cfg, logging.DiscardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	scan := &cancelAfter{SampleSource: sampling.NewSlice(vectors(1, 2, 9, 10), nil), n: 2, cancel: cancel}
	res, err := r.Run(ctx, 1, &fixedDraws{seeds: vectors(1, 10)}, scan)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 2, res.Passes)
	assert.Len(t, res.Clusters, 2)
	assert.Equal(t, 4, res.Clusters.TotalMembers())
}

// cancelDuringScan cancels the run from inside a scan and reports the
// context error, as a source watching ctx would.
type cancelDuringScan struct {
	cancel context.CancelFunc
}

func (c cancelDuringScan) Scan(ctx context.Context, _ func(kmeans.FeatureVector) error) error {
	c.cancel()
	return ctx.Err()
}

func TestRun_CanceledDuringPass(t *testing.T) {
	r, err := New(testConfig(), logging.DiscardLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	canceled := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("canceled"))
	failed := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("failed"))

	res, err := r.Run(ctx, 1, &fixedDraws{seeds: vectors(1, 10)}, cancelDuringScan{cancel: cancel})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res)
	assert.Equal(t, 0, res.Passes)
	assert.Positive(t, res.Duration)
	assert.Equal(t, canceled+1, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("canceled")))
	assert.Equal(t, failed, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("failed")))
}

func TestRun_SeedingFailure(t *testing.T) {
	cfg := testConfig()
	cfg.MaxDrawAttempts = 3
	r, err := New(cfg, logging.DiscardLogger())
	require.NoError(t, err)

	samples := sampling.NewSlice(vectors(5, 5), nil)
	res, err := r.Run(context.Background(), 1, &fixedDraws{seeds: vectors(5)}, samples)
	require.ErrorIs(t, err, kmeans.ErrSamplingExhausted)
	assert.Equal(t, 0, res.Passes)
	assert.Positive(t, res.Duration)
	assert.Nil(t, res.Clusters)
}

func TestRun_SourceFailure(t *testing.T) {
	r, err := New(testConfig(), logging.DiscardLogger())
	require.NoError(t, err)

	boom := errors.New("boom")
	failing := failingScan{err: boom}
	_, err = r.Run(context.Background(), 1, &fixedDraws{seeds: vectors(1, 2)}, failing)
	assert.ErrorIs(t, err, boom)
}

type failingScan struct{ err error }

func (f failingScan) Scan(context.Context, func(kmeans.FeatureVector) error) error { return f.err }

func TestRunScene(t *testing.T) {
	s, err := scene.New(4, []scene.Band{
		{Name: "red", Values: []float64{1, 1, 1, -1, 50, 50, 50, 50}, NoData: -1, HasNoData: true},
		{Name: "nir", Values: []float64{2, 2, 2, 2, 60, 60, 60, 60}},
	})
	require.NoError(t, err)

	cfg := testConfig()
	cfg.Workers = 2
	r, err := New(cfg, logging.DiscardLogger())
	require.NoError(t, err)

	res, err := r.RunScene(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 7, res.Samples)
	require.Len(t, res.Clusters, 2)
	assert.Equal(t, 3, res.Clusters[0].MemberCount)
	assert.Equal(t, kmeans.FeatureVector{1, 2}, res.Clusters[0].Centroid)
	assert.Equal(t, 4, res.Clusters[1].MemberCount)
	assert.Equal(t, kmeans.FeatureVector{50, 60}, res.Clusters[1].Centroid)
}

func TestRunScene_NoValidPixels(t *testing.T) {
	s, err := scene.New(2, []scene.Band{{Name: "b", Values: []float64{-1, -1}, NoData: -1, HasNoData: true}})
	require.NoError(t, err)

	r, err := New(testConfig(), logging.DiscardLogger())
	require.NoError(t, err)
	_, err = r.RunScene(context.Background(), s)
	assert.ErrorIs(t, err, sampling.ErrNoValidSamples)
}

func TestRunScene_IgnoresInfinitePixels(t *testing.T) {
	s, err := scene.New(4, []scene.Band{
		{Name: "b", Values: []float64{0, 1, math.Inf(1), math.Inf(-1)}},
	})
	require.NoError(t, err)

	cfg := testConfig()
	cfg.MaxPasses = 3
	r, err := New(cfg, logging.DiscardLogger())
	require.NoError(t, err)

	res, err := r.RunScene(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Samples)
	assert.Equal(t, 2, res.Clusters.TotalMembers())
	assert.ElementsMatch(t, []float64{0, 1}, []float64{res.Clusters[0].Centroid[0], res.Clusters[1].Centroid[0]})
}
