// Package scene holds multispectral pixel data as per-band value planes and
// tracks which pixels carry a valid sample in every band.
package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/RoaringBitmap/roaring/v2"

	errs "github.com/23skdu/bandcluster/internal/errors"
)

// Scene validation errors
var (
	ErrNoBands         = errors.New("scene: at least one band is required")
	ErrInvalidWidth    = errors.New("scene: width must be positive")
	ErrBandLength      = errors.New("scene: bands must have equal length")
	ErrRaggedRaster    = errors.New("scene: pixel count is not a multiple of width")
	ErrTooManyPixels   = errors.New("scene: pixel count exceeds 2^32")
	ErrUnknownBand     = errors.New("scene: band not found")
	ErrUnsupportedType = errors.New("scene: unsupported column type")
)

// Band is one spectral plane in row-major pixel order.
type Band struct {
	Name   string
	Values []float64
	// NoData marks pixels without a measurement when HasNoData is set.
	NoData    float64
	HasNoData bool
}

// Scene is a set of equally sized bands covering Width x Height pixels.
type Scene struct {
	Width  int
	Height int
	Bands  []Band

	valid *roaring.Bitmap
}

// New validates bands and computes the validity mask. A pixel is valid when
// every band holds a finite value other than its no-data value there.
func New(width int, bands []Band) (*Scene, error) {
	const op = "scene.New"
	if len(bands) == 0 {
		return nil, errs.WrapValidationError(ErrNoBands, op, "empty band list")
	}
	if width <= 0 {
		return nil, errs.WrapValidationError(ErrInvalidWidth, op, "invalid width").WithContext("width", width)
	}

	n := len(bands[0].Values)
	for _, b := range bands[1:] {
		if len(b.Values) != n {
			return nil, errs.WrapValidationError(ErrBandLength, op, "band length mismatch").
				WithContext("band", b.Name).
				WithContext("expected", n).
				WithContext("actual", len(b.Values))
		}
	}
	if n%width != 0 {
		return nil, errs.WrapValidationError(ErrRaggedRaster, op, "ragged raster").
			WithContext("pixels", n).
			WithContext("width", width)
	}
	if uint64(n) > math.MaxUint32 {
		return nil, errs.WrapValidationError(ErrTooManyPixels, op, "scene too large").WithContext("pixels", n)
	}

	s := &Scene{
		Width:  width,
		Height: n / width,
		Bands:  bands,
	}
	s.valid = s.computeMask()
	return s, nil
}

func (s *Scene) computeMask() *roaring.Bitmap {
	mask := roaring.New()
	n := s.Len()
	if n == 0 {
		return mask
	}
	mask.AddRange(0, uint64(n))
	for _, b := range s.Bands {
		for i, v := range b.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) || (b.HasNoData && v == b.NoData) {
				mask.Remove(uint32(i))
			}
		}
	}
	mask.RunOptimize()
	return mask
}

// Len returns the number of pixels.
func (s *Scene) Len() int {
	return len(s.Bands[0].Values)
}

// BandCount returns the feature vector length of every pixel.
func (s *Scene) BandCount() int {
	return len(s.Bands)
}

// BandNames returns the band names in feature order.
func (s *Scene) BandNames() []string {
	names := make([]string, len(s.Bands))
	for i, b := range s.Bands {
		names[i] = b.Name
	}
	return names
}

// Valid returns a copy of the validity mask.
func (s *Scene) Valid() *roaring.Bitmap {
	return s.valid.Clone()
}

// ValidCount returns the number of valid pixels.
func (s *Scene) ValidCount() uint64 {
	return s.valid.GetCardinality()
}

// IsValid reports whether pixel i has a value in every band.
func (s *Scene) IsValid(i int) bool {
	return i >= 0 && i < s.Len() && s.valid.Contains(uint32(i))
}

// Pixel writes the band values of pixel i into dst, growing it if needed,
// and returns it.
func (s *Scene) Pixel(i int, dst []float64) []float64 {
	if cap(dst) < len(s.Bands) {
		dst = make([]float64, len(s.Bands))
	}
	dst = dst[:len(s.Bands)]
	for b := range s.Bands {
		dst[b] = s.Bands[b].Values[i]
	}
	return dst
}

// XY converts a pixel index to column and row.
func (s *Scene) XY(i int) (x, y int) {
	return i % s.Width, i / s.Width
}

func (s *Scene) String() string {
	return fmt.Sprintf("scene %dx%d bands=%d valid=%d", s.Width, s.Height, len(s.Bands), s.ValidCount())
}
