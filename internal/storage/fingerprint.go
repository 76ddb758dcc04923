package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/23skdu/bandcluster/internal/kmeans"
)

// Fingerprint returns a stable hash of set covering rank order, member
// counts and the exact bits of every centroid component. Two runs with
// identical inputs and seed produce the same fingerprint.
func Fingerprint(set kmeans.ClusterSet) uint64 {
	d := xxhash.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = d.Write(buf[:])
	}

	put(uint64(len(set)))
	for _, c := range set {
		put(uint64(c.MemberCount))
		put(uint64(len(c.Centroid)))
		for _, x := range c.Centroid {
			put(math.Float64bits(x))
		}
	}
	return d.Sum64()
}

// FingerprintString formats Fingerprint as fixed-width hex.
func FingerprintString(set kmeans.ClusterSet) string {
	return fmt.Sprintf("%016x", Fingerprint(set))
}
