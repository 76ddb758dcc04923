// Package sampling provides the sample sources consumed by the k-means engine:
// random single draws for seeding and exhaustive scans for passes.
package sampling

import (
	"errors"
	"math/rand/v2"
)

// ErrNoValidSamples is returned when a source has nothing to draw from.
var ErrNoValidSamples = errors.New("sampling: no valid samples")

// scanCheckInterval is how many samples a scan processes between context
// checks.
const scanCheckInterval = 4096

// NewRand returns a reproducible generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
