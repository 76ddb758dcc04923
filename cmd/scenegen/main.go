package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/23skdu/bandcluster/internal/logging"
	bcmem "github.com/23skdu/bandcluster/internal/memory"
	"github.com/23skdu/bandcluster/internal/sampling"
	"github.com/23skdu/bandcluster/internal/scene"
	"github.com/23skdu/bandcluster/internal/storage"
)

var (
	ErrInvalidSize     = errors.New("width and height must be positive")
	ErrInvalidBands    = errors.New("bands must be positive")
	ErrInvalidClasses  = errors.New("classes must be positive")
	ErrInvalidFraction = errors.New("no-data fraction must be in [0, 1)")
)

// params describes a synthetic scene.
type params struct {
	Width    int
	Height   int
	Bands    int
	Classes  int
	Spread   float64
	NoData   float64
	Fraction float64
	Seed     uint64
}

func (p params) validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return ErrInvalidSize
	case p.Bands <= 0:
		return ErrInvalidBands
	case p.Classes <= 0:
		return ErrInvalidClasses
	case p.Fraction < 0 || p.Fraction >= 1:
		return ErrInvalidFraction
	}
	return nil
}

// generate builds a scene whose pixels are drawn from Classes gaussian
// blobs. Each class owns a horizontal stripe of rows so the ground truth is
// visible in the labels output. It also returns the class of every pixel.
func generate(p params) (*scene.Scene, []int, error) {
	if err := p.validate(); err != nil {
		return nil, nil, err
	}
	rng := sampling.NewRand(p.Seed)

	centers := make([][]float64, p.Classes)
	for c := range centers {
		centers[c] = make([]float64, p.Bands)
		for b := range centers[c] {
			centers[c][b] = 100 + 800*rng.Float64()
		}
	}

	n := p.Width * p.Height
	truth := make([]int, n)
	bands := make([]scene.Band, p.Bands)
	for b := range bands {
		bands[b] = scene.Band{
			Name:      fmt.Sprintf("b%02d", b+1),
			Values:    make([]float64, n),
			NoData:    p.NoData,
			HasNoData: true,
		}
	}

	for i := 0; i < n; i++ {
		row := i / p.Width
		class := min(row*p.Classes/p.Height, p.Classes-1)
		truth[i] = class
		for b := range bands {
			bands[b].Values[i] = centers[class][b] + p.Spread*rng.NormFloat64()
		}
		if p.Fraction > 0 && rng.Float64() < p.Fraction {
			bands[rng.IntN(p.Bands)].Values[i] = p.NoData
		}
	}

	s, err := scene.New(p.Width, bands)
	if err != nil {
		return nil, nil, err
	}
	return s, truth, nil
}

// writeArrow writes s as an Arrow IPC stream, one float64 column per band.
func writeArrow(w io.Writer, s *scene.Scene, sceneID string) error {
	fields := make([]arrow.Field, len(s.Bands))
	for i, b := range s.Bands {
		fields[i] = arrow.Field{Name: b.Name, Type: arrow.PrimitiveTypes.Float64}
	}
	md := arrow.NewMetadata([]string{"bandcluster.scene_id", "bandcluster.width"}, []string{sceneID, fmt.Sprint(s.Width)})
	schema := arrow.NewSchema(fields, &md)

	mem := bcmem.NewTrackingAllocator(nil)
	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	for lo := 0; lo < s.Len(); lo += batchRows {
		hi := min(lo+batchRows, s.Len())
		for i, band := range s.Bands {
			b.Field(i).(*array.Float64Builder).AppendValues(band.Values[lo:hi], nil)
		}
		rec := b.NewRecord()
		err := writer.Write(rec)
		rec.Release()
		if err != nil {
			_ = writer.Close()
			return err
		}
	}
	return writer.Close()
}

const batchRows = 64 * 1024

func main() {
	var p params
	out := flag.String("out", "scene.parquet", "Output file (.parquet, or .arrow for an Arrow IPC stream)")
	flag.IntVar(&p.Width, "width", 512, "Scene width in pixels")
	flag.IntVar(&p.Height, "height", 512, "Scene height in pixels")
	flag.IntVar(&p.Bands, "bands", 4, "Number of spectral bands")
	flag.IntVar(&p.Classes, "classes", 5, "Number of land-cover classes")
	flag.Float64Var(&p.Spread, "spread", 20, "Standard deviation of each class around its center")
	flag.Float64Var(&p.NoData, "no-data", -9999, "No-data value")
	flag.Float64Var(&p.Fraction, "no-data-fraction", 0.02, "Fraction of pixels with a no-data band")
	flag.Uint64Var(&p.Seed, "seed", 1, "Generator seed")
	flag.Parse()

	logger, err := logging.NewLogger(logging.Config{Format: "console", Level: "info", Output: os.Stderr})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if err := generateAndWrite(p, *out, logger); err != nil {
		logger.Error().Err(err).Msg("Scene generation failed")
		os.Exit(1)
	}
}

func generateAndWrite(p params, out string, logger zerolog.Logger) error {
	s, _, err := generate(p)
	if err != nil {
		return err
	}
	sceneID := uuid.NewString()

	kind := "scene_parquet"
	write := func(w io.Writer) error { return scene.WriteParquet(w, s) }
	if ext := strings.ToLower(filepath.Ext(out)); ext == ".arrow" || ext == ".ipc" {
		kind = "scene_ipc"
		write = func(w io.Writer) error { return writeArrow(w, s, sceneID) }
	}

	n, err := storage.WriteFile(out, kind, write)
	if err != nil {
		return err
	}
	logger.Info().
		Str("scene_id", sceneID).
		Str("path", out).
		Str("scene", s.String()).
		Float64("valid_fraction", float64(s.ValidCount())/math.Max(1, float64(s.Len()))).
		Int64("bytes", n).
		Msg("Scene written")
	return nil
}
