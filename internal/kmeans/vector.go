package kmeans

import "gonum.org/v1/gonum/floats"

// FeatureVector is a fixed-length sample or centroid.
type FeatureVector []float64

// Clone returns a detached copy of v.
func (v FeatureVector) Clone() FeatureVector {
	if v == nil {
		return nil
	}
	out := make(FeatureVector, len(v))
	copy(out, v)
	return out
}

// Equal reports whether v and w are component-wise equal.
func (v FeatureVector) Equal(w FeatureVector) bool {
	return floats.Equal(v, w)
}

// SquaredDistance returns the squared Euclidean distance between x and y.
// Both must have the same length.
func SquaredDistance(x, y FeatureVector) float64 {
	var dist float64
	for d := range x {
		diff := y[d] - x[d]
		dist += diff * diff
	}
	return dist
}

// nearest returns the index of the centroid closest to v. Ties go to the
// lowest index.
func nearest(centroids []FeatureVector, v FeatureVector) (int, float64) {
	best := 0
	bestDist := SquaredDistance(centroids[0], v)
	for c := 1; c < len(centroids); c++ {
		if dist := SquaredDistance(centroids[c], v); dist < bestDist {
			best = c
			bestDist = dist
		}
	}
	return best, bestDist
}

// newVectors allocates n zero vectors of length dim backed by one slice.
func newVectors(n, dim int) []FeatureVector {
	backing := make([]float64, n*dim)
	out := make([]FeatureVector, n)
	for i := range out {
		out[i] = backing[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return out
}

// cloneVectors deep-copies vs.
func cloneVectors(vs []FeatureVector) []FeatureVector {
	if len(vs) == 0 {
		return nil
	}
	out := newVectors(len(vs), len(vs[0]))
	for i, v := range vs {
		copy(out[i], v)
	}
	return out
}
