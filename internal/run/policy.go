package run

import (
	"math"

	"github.com/23skdu/bandcluster/internal/kmeans"
)

// StopPolicy decides, after each committed pass, whether a run is finished.
// pass is 1-based; shift is the largest Euclidean distance any centroid
// moved during that pass.
type StopPolicy interface {
	Done(pass int, shift float64) (done, converged bool)
}

// FixedPasses stops after exactly N passes.
type FixedPasses struct {
	N int
}

func (p FixedPasses) Done(pass int, _ float64) (bool, bool) {
	return pass >= p.N, false
}

// MovementThreshold stops once no centroid moved more than Tolerance in a
// pass, or after MaxPasses.
type MovementThreshold struct {
	MaxPasses int
	Tolerance float64
}

func (p MovementThreshold) Done(pass int, shift float64) (bool, bool) {
	if shift <= p.Tolerance {
		return true, true
	}
	return pass >= p.MaxPasses, false
}

// maxShift returns the largest Euclidean distance between paired centroids.
func maxShift(prev, next []kmeans.FeatureVector) float64 {
	var worst float64
	for c := range prev {
		worst = max(worst, kmeans.SquaredDistance(prev[c], next[c]))
	}
	return math.Sqrt(worst)
}
