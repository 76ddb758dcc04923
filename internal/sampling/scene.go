package sampling

import (
	"context"
	"math/rand/v2"

	"github.com/RoaringBitmap/roaring/v2"

	errs "github.com/23skdu/bandcluster/internal/errors"
	"github.com/23skdu/bandcluster/internal/kmeans"
	"github.com/23skdu/bandcluster/internal/scene"
)

// RandomDraw draws uniformly among the valid pixels of a scene.
type RandomDraw struct {
	scene *scene.Scene
	valid *roaring.Bitmap
	n     uint64
	rng   *rand.Rand
}

// NewRandomDraw returns a random source over s driven by rng.
func NewRandomDraw(s *scene.Scene, rng *rand.Rand) (*RandomDraw, error) {
	valid := s.Valid()
	n := valid.GetCardinality()
	if n == 0 {
		return nil, errs.WrapSamplingError(ErrNoValidSamples, "sampling.NewRandomDraw", "scene has no valid pixels").
			WithContext("pixels", s.Len())
	}
	return &RandomDraw{scene: s, valid: valid, n: n, rng: rng}, nil
}

// Draw returns the band vector of a random valid pixel.
func (r *RandomDraw) Draw(ctx context.Context) (kmeans.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, err := r.valid.Select(uint32(r.rng.Uint64N(r.n)))
	if err != nil {
		return nil, errs.WrapSamplingError(err, "sampling.Draw", "rank out of range")
	}
	return r.scene.Pixel(int(idx), nil), nil
}

// Scan visits the valid pixels of a scene in ascending index order.
type Scan struct {
	scene *scene.Scene
	valid *roaring.Bitmap
}

// NewScan returns an exhaustive source over every valid pixel of s.
func NewScan(s *scene.Scene) *Scan {
	return &Scan{scene: s, valid: s.Valid()}
}

// Len returns the number of samples one Scan yields.
func (s *Scan) Len() uint64 {
	return s.valid.GetCardinality()
}

// Scan implements kmeans.SampleSource. The vector passed to fn is reused.
func (s *Scan) Scan(ctx context.Context, fn func(kmeans.FeatureVector) error) error {
	buf := make(kmeans.FeatureVector, s.scene.BandCount())
	it := s.valid.Iterator()
	for n := 0; it.HasNext(); n++ {
		if n%scanCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		s.scene.Pixel(int(it.Next()), buf)
		if err := fn(buf); err != nil {
			return err
		}
	}
	return nil
}

// Partitions splits the valid pixels into at most n contiguous runs of
// near-equal size.
func (s *Scan) Partitions(n int) []kmeans.SampleSource {
	total := s.valid.GetCardinality()
	if n < 1 {
		n = 1
	}
	if uint64(n) > total {
		n = int(total)
	}
	parts := make([]kmeans.SampleSource, 0, n)
	var lo uint64
	for i := 0; i < n; i++ {
		hi := total * uint64(i+1) / uint64(n)
		if hi == lo {
			continue
		}
		first, _ := s.valid.Select(uint32(lo))
		last, _ := s.valid.Select(uint32(hi - 1))

		part := roaring.New()
		part.AddRange(uint64(first), uint64(last)+1)
		part.And(s.valid)
		parts = append(parts, &Scan{scene: s.scene, valid: part})
		lo = hi
	}
	return parts
}
