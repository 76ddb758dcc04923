// Package kmeans implements batch (Lloyd) k-means over fixed-length feature
// vectors, such as the per-band values of multispectral pixels.
//
// An Engine is driven by its caller:
//
//	eng, err := kmeans.New(8, 4)
//	err = eng.Initialize(ctx, randomSource)
//	for pass := 0; pass < n; pass++ {
//	    _, err = eng.Iterate(ctx, scanSource)
//	}
//	set, err := eng.Clusters()
//
// The engine never decides when to stop iterating. Stopping policies live
// with the caller (see internal/run).
package kmeans
