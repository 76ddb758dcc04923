package kmeans

// Cluster is a snapshot of one cluster: its centroid and member count at the
// moment it was extracted. The centroid is never shared with the engine.
type Cluster struct {
	Centroid    FeatureVector
	MemberCount int
}

// ClusterSet holds clusters ordered ascending by member count. Clusters with
// equal counts keep their engine index order.
type ClusterSet []Cluster

// Centroids returns copies of the centroids in set order.
func (s ClusterSet) Centroids() []FeatureVector {
	out := make([]FeatureVector, len(s))
	for i, c := range s {
		out[i] = c.Centroid.Clone()
	}
	return out
}

// TotalMembers returns the sum of all member counts.
func (s ClusterSet) TotalMembers() int {
	total := 0
	for _, c := range s {
		total += c.MemberCount
	}
	return total
}

// Nearest returns the position in s of the centroid closest to v, or -1 for
// an empty set. Ties go to the lowest position.
func (s ClusterSet) Nearest(v FeatureVector) int {
	if len(s) == 0 {
		return -1
	}
	best := 0
	bestDist := SquaredDistance(s[0].Centroid, v)
	for i := 1; i < len(s); i++ {
		if dist := SquaredDistance(s[i].Centroid, v); dist < bestDist {
			best = i
			bestDist = dist
		}
	}
	return best
}
