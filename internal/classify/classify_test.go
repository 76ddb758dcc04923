package classify

import (
	"context"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "github.com/23skdu/bandcluster/internal/errors"
	"github.com/23skdu/bandcluster/internal/kmeans"
	"github.com/23skdu/bandcluster/internal/metrics"
	"github.com/23skdu/bandcluster/internal/scene"
)

func twoClusters() kmeans.ClusterSet {
	return kmeans.ClusterSet{
		{Centroid: kmeans.FeatureVector{10, 10}, MemberCount: 1},
		{Centroid: kmeans.FeatureVector{0, 0}, MemberCount: 5},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, 1)
	require.ErrorIs(t, err, ErrNoClusters)
	assert.Equal(t, errs.ErrorTypeValidation, errs.TypeOf(err))

	_, err = New(kmeans.ClusterSet{
		{Centroid: kmeans.FeatureVector{1, 2}},
		{Centroid: kmeans.FeatureVector{1}},
	}, 1)
	assert.ErrorIs(t, err, ErrRaggedClusters)
}

func TestClassifier_Label(t *testing.T) {
	set := twoClusters()
	c, err := New(set, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Classes())

	assert.Equal(t, int32(1), c.Label(kmeans.FeatureVector{1, 1}))
	assert.Equal(t, int32(0), c.Label(kmeans.FeatureVector{9, 8}))
	assert.Equal(t, int32(0), c.Label(kmeans.FeatureVector{5, 5}), "ties go to the lower rank")

	set[0].Centroid[0] = 1000
	assert.Equal(t, int32(0), c.Label(kmeans.FeatureVector{9, 8}), "classifier keeps its own copy")
}

func TestClassifier_Scene(t *testing.T) {
	s, err := scene.New(3, []scene.Band{
		{Name: "a", Values: []float64{0, 10, math.NaN(), 1, 9, 0}},
		{Name: "b", Values: []float64{0, 10, 3, -5, 11, 1}, NoData: -5, HasNoData: true},
	})
	require.NoError(t, err)

	c, err := New(twoClusters(), 4)
	require.NoError(t, err)

	before := testutil.ToFloat64(metrics.PixelsClassifiedTotal.WithLabelValues("false"))
	labels, err := c.Scene(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, 3, labels.Width)
	assert.Equal(t, []int32{1, 0, NoClass, NoClass, 0, 1}, labels.Classes)
	assert.Equal(t, []int{2, 2}, labels.Counts)
	assert.Equal(t, 2, labels.Invalid())
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.PixelsClassifiedTotal.WithLabelValues("false")))
}

func TestClassifier_SceneManyRows(t *testing.T) {
	const width, height = 5, 3*rowsPerTask + 7
	vals := make([]float64, width*height)
	for i := range vals {
		if i%2 == 1 {
			vals[i] = 10
		}
	}
	s, err := scene.New(width, []scene.Band{{Name: "a", Values: vals}, {Name: "b", Values: vals}})
	require.NoError(t, err)

	c, err := New(twoClusters(), 3)
	require.NoError(t, err)
	labels, err := c.Scene(context.Background(), s)
	require.NoError(t, err)

	for i, k := range labels.Classes {
		want := int32(1)
		if i%2 == 1 {
			want = 0
		}
		require.Equal(t, want, k, "pixel %d", i)
	}
	assert.Equal(t, len(vals), labels.Counts[0]+labels.Counts[1])
	assert.Equal(t, 0, labels.Invalid())
}

func TestClassifier_SceneErrors(t *testing.T) {
	s, err := scene.New(1, []scene.Band{{Name: "a", Values: []float64{1}}})
	require.NoError(t, err)

	c, err := New(twoClusters(), 1)
	require.NoError(t, err)
	_, err = c.Scene(context.Background(), s)
	assert.ErrorIs(t, err, ErrBandMismatch)

	two, err := scene.New(1, []scene.Band{{Name: "a", Values: []float64{1}}, {Name: "b", Values: []float64{1}}})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.Scene(ctx, two)
	assert.ErrorIs(t, err, context.Canceled)
}
