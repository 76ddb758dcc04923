// Package classify assigns scene pixels to the clusters of a finished run.
package classify

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	errs "github.com/23skdu/bandcluster/internal/errors"
	"github.com/23skdu/bandcluster/internal/kmeans"
	"github.com/23skdu/bandcluster/internal/metrics"
	"github.com/23skdu/bandcluster/internal/scene"
)

// NoClass labels pixels that are invalid in at least one band.
const NoClass int32 = -1

// rowsPerTask is the number of scene rows one labelling task handles.
const rowsPerTask = 64

var (
	ErrNoClusters     = errors.New("classify: cluster set is empty")
	ErrBandMismatch   = errors.New("classify: scene band count does not match centroids")
	ErrRaggedClusters = errors.New("classify: centroids differ in length")
)

// Classifier labels feature vectors with the rank of their nearest cluster.
type Classifier struct {
	set     kmeans.ClusterSet
	dims    int
	workers int
}

// New builds a classifier over a snapshot of set. workers bounds the
// goroutines used by Scene; values below one mean one.
func New(set kmeans.ClusterSet, workers int) (*Classifier, error) {
	const op = "classify.New"
	if len(set) == 0 {
		return nil, errs.WrapValidationError(ErrNoClusters, op, "nothing to classify against")
	}
	dims := len(set[0].Centroid)
	own := make(kmeans.ClusterSet, len(set))
	for i, c := range set {
		if len(c.Centroid) != dims {
			return nil, errs.WrapValidationError(ErrRaggedClusters, op, "invalid cluster set").
				WithContext("cluster", i)
		}
		own[i] = kmeans.Cluster{Centroid: c.Centroid.Clone(), MemberCount: c.MemberCount}
	}
	return &Classifier{set: own, dims: dims, workers: max(workers, 1)}, nil
}

// Classes returns the number of labels the classifier can produce.
func (c *Classifier) Classes() int {
	return len(c.set)
}

// Label returns the rank of the cluster nearest to v.
func (c *Classifier) Label(v kmeans.FeatureVector) int32 {
	return int32(c.set.Nearest(v))
}

// Labels is a per-pixel classification of a scene.
type Labels struct {
	Width   int
	Classes []int32
	// Counts[k] is the number of pixels labelled k.
	Counts []int
}

// Invalid returns the number of pixels labelled NoClass.
func (l *Labels) Invalid() int {
	n := len(l.Classes)
	for _, c := range l.Counts {
		n -= c
	}
	return n
}

// Scene labels every pixel of s.
func (c *Classifier) Scene(ctx context.Context, s *scene.Scene) (*Labels, error) {
	if s.BandCount() != c.dims {
		return nil, errs.WrapValidationError(ErrBandMismatch, "classify.Scene", "dimension mismatch").
			WithContext("bands", s.BandCount()).
			WithContext("dimensions", c.dims)
	}

	out := &Labels{
		Width:   s.Width,
		Classes: make([]int32, s.Len()),
		Counts:  make([]int, len(c.set)),
	}

	tasks := (s.Height + rowsPerTask - 1) / rowsPerTask
	partials := make([][]int, tasks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for t := 0; t < tasks; t++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			lo := t * rowsPerTask * s.Width
			hi := min((t+1)*rowsPerTask, s.Height) * s.Width
			partials[t] = c.labelRange(s, out.Classes, lo, hi)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, counts := range partials {
		for k, n := range counts {
			out.Counts[k] += n
		}
	}

	invalid := out.Invalid()
	metrics.PixelsClassifiedTotal.WithLabelValues("true").Add(float64(len(out.Classes) - invalid))
	metrics.PixelsClassifiedTotal.WithLabelValues("false").Add(float64(invalid))
	return out, nil
}

func (c *Classifier) labelRange(s *scene.Scene, classes []int32, lo, hi int) []int {
	counts := make([]int, len(c.set))
	buf := make(kmeans.FeatureVector, c.dims)
	for i := lo; i < hi; i++ {
		if !s.IsValid(i) {
			classes[i] = NoClass
			continue
		}
		k := c.Label(s.Pixel(i, buf))
		classes[i] = k
		counts[k]++
	}
	return counts
}
