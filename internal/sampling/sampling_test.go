package sampling

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/bandcluster/internal/kmeans"
	"github.com/23skdu/bandcluster/internal/scene"
)

func testScene(t *testing.T) *scene.Scene {
	t.Helper()
	s, err := scene.New(4, []scene.Band{
		{Name: "b1", Values: []float64{0, 1, 2, 3, 4, 5, 6, 7, math.NaN(), 9, 10, 11}},
		{Name: "b2", Values: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100, -1}, NoData: -1, HasNoData: true},
	})
	require.NoError(t, err)
	return s
}

func collect(t *testing.T, src kmeans.SampleSource) []kmeans.FeatureVector {
	t.Helper()
	var out []kmeans.FeatureVector
	require.NoError(t, src.Scan(context.Background(), func(v kmeans.FeatureVector) error {
		out = append(out, v.Clone())
		return nil
	}))
	return out
}

func TestScan_VisitsValidPixelsOnce(t *testing.T) {
	s := testScene(t)
	scan := NewScan(s)
	assert.Equal(t, uint64(10), scan.Len())

	got := collect(t, scan)
	require.Len(t, got, 10)
	assert.Equal(t, kmeans.FeatureVector{0, 0}, got[0])
	assert.Equal(t, kmeans.FeatureVector{9, 90}, got[8])
	assert.Equal(t, kmeans.FeatureVector{10, 100}, got[9])

	again := collect(t, scan)
	assert.Equal(t, got, again, "consistent order across scans")
}

func TestScan_PartitionsCoverScanExactly(t *testing.T) {
	s := testScene(t)
	scan := NewScan(s)
	want := collect(t, scan)

	for _, n := range []int{1, 2, 3, 4, 10, 50} {
		parts := scan.Partitions(n)
		assert.LessOrEqual(t, len(parts), n)
		var got []kmeans.FeatureVector
		for _, p := range parts {
			got = append(got, collect(t, p)...)
		}
		assert.Equal(t, want, got, "n=%d", n)
	}
}

func TestScan_StopsOnCallbackError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := NewScan(testScene(t)).Scan(context.Background(), func(kmeans.FeatureVector) error {
		calls++
		if calls == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestScan_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewScan(testScene(t)).Scan(ctx, func(kmeans.FeatureVector) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRandomDraw_OnlyValidPixels(t *testing.T) {
	s := testScene(t)
	draw, err := NewRandomDraw(s, NewRand(7))
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		v, err := draw.Draw(context.Background())
		require.NoError(t, err)
		require.Len(t, v, 2)
		assert.False(t, math.IsNaN(v[0]))
		assert.NotEqual(t, -1.0, v[1])
	}
}

func TestRandomDraw_Reproducible(t *testing.T) {
	s := testScene(t)
	a, err := NewRandomDraw(s, NewRand(42))
	require.NoError(t, err)
	b, err := NewRandomDraw(s, NewRand(42))
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		va, err := a.Draw(context.Background())
		require.NoError(t, err)
		vb, err := b.Draw(context.Background())
		require.NoError(t, err)
		assert.Equal(t, va, vb)
	}
}

func TestRandomDraw_NoValidPixels(t *testing.T) {
	s, err := scene.New(2, []scene.Band{{Name: "b", Values: []float64{math.NaN(), math.NaN()}}})
	require.NoError(t, err)
	_, err = NewRandomDraw(s, NewRand(1))
	assert.ErrorIs(t, err, ErrNoValidSamples)
}

func TestRandomDraw_SeedsEngine(t *testing.T) {
	s := testScene(t)
	draw, err := NewRandomDraw(s, NewRand(3))
	require.NoError(t, err)

	e, err := kmeans.New(5, 2)
	require.NoError(t, err)
	require.NoError(t, e.Initialize(context.Background(), draw))

	_, err = e.Iterate(context.Background(), NewScan(s))
	require.NoError(t, err)
	set, err := e.Clusters()
	require.NoError(t, err)
	assert.Equal(t, 10, set.TotalMembers())
}

func TestSlice(t *testing.T) {
	samples := []kmeans.FeatureVector{{1}, {2}, {3}, {4}, {5}}
	src := NewSlice(samples, NewRand(9))

	assert.Equal(t, samples, collect(t, src))

	var parted []kmeans.FeatureVector
	for _, p := range src.Partitions(3) {
		parted = append(parted, collect(t, p)...)
	}
	assert.Equal(t, samples, parted)
	assert.Len(t, src.Partitions(10), 5)

	v, err := src.Draw(context.Background())
	require.NoError(t, err)
	assert.Contains(t, samples, v)
	v[0] = 99
	assert.NotContains(t, samples, kmeans.FeatureVector{99})

	_, err = NewSlice(nil, NewRand(1)).Draw(context.Background())
	assert.ErrorIs(t, err, ErrNoValidSamples)
}
