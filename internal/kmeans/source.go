package kmeans

import "context"

// RandomSource yields one randomly drawn sample per call. Repeated draws may
// return equal vectors.
type RandomSource interface {
	Draw(ctx context.Context) (FeatureVector, error)
}

// SampleSource yields every valid sample of a dataset exactly once per Scan
// call, in a consistent order. Invalid or missing samples must be filtered
// out before fn sees them. The vector passed to fn is only valid for the
// duration of the call. If fn returns an error Scan stops and returns it.
type SampleSource interface {
	Scan(ctx context.Context, fn func(FeatureVector) error) error
}

// Partitioner is implemented by sources that can split a scan into disjoint
// sub-scans whose union is exactly one full scan.
type Partitioner interface {
	Partitions(n int) []SampleSource
}
