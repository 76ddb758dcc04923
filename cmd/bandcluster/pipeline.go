package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/rs/zerolog"

	"github.com/23skdu/bandcluster/internal/classify"
	errs "github.com/23skdu/bandcluster/internal/errors"
	"github.com/23skdu/bandcluster/internal/health"
	bcmem "github.com/23skdu/bandcluster/internal/memory"
	"github.com/23skdu/bandcluster/internal/run"
	"github.com/23skdu/bandcluster/internal/scene"
	"github.com/23skdu/bandcluster/internal/storage"
)

// outcome is what one invocation produced.
type outcome struct {
	Result      *run.Result
	Labels      *classify.Labels
	Fingerprint string
	Written     map[string]int64
}

// loadScene reads the input file, choosing the decoder by extension.
func loadScene(cfg *Config) (*scene.Scene, error) {
	const op = "bandcluster.loadScene"
	opts := scene.Options{Width: cfg.Width, Bands: cfg.Bands, NoData: cfg.NoData}

	f, err := os.Open(cfg.InputPath)
	if err != nil {
		return nil, errs.WrapSourceError(err, op, "cannot open input").WithContext("path", cfg.InputPath)
	}
	defer func() { _ = f.Close() }()

	switch strings.ToLower(filepath.Ext(cfg.InputPath)) {
	case ".arrow", ".arrows", ".ipc":
		return readArrowStream(f, opts)
	default:
		info, err := f.Stat()
		if err != nil {
			return nil, errs.WrapSourceError(err, op, "cannot stat input").WithContext("path", cfg.InputPath)
		}
		return scene.ReadParquet(f, info.Size(), opts)
	}
}

func readArrowStream(r io.Reader, opts scene.Options) (*scene.Scene, error) {
	const op = "bandcluster.readArrowStream"
	reader, err := ipc.NewReader(r, ipc.WithAllocator(bcmem.NewTrackingAllocator(nil)))
	if err != nil {
		return nil, errs.WrapStorageError(err, op, "cannot open arrow stream")
	}
	defer reader.Release()

	var recs []arrow.Record
	defer func() {
		for _, rec := range recs {
			rec.Release()
		}
	}()
	for reader.Next() {
		rec := reader.Record()
		rec.Retain()
		recs = append(recs, rec)
	}
	if err := reader.Err(); err != nil && err != io.EOF {
		return nil, errs.WrapStorageError(err, op, "cannot read arrow stream")
	}
	return scene.FromRecords(recs, opts)
}

// execute runs the full pipeline: load, cluster, classify, write. Phase
// changes are reported to progress, which may be nil.
func execute(ctx context.Context, cfg *Config, logger zerolog.Logger, progress *health.Progress) (*outcome, error) {
	if progress == nil {
		progress = health.NewProgress()
	}
	out, err := pipeline(ctx, cfg, logger, progress)
	if err != nil {
		progress.Fail(err)
		return out, err
	}
	progress.SetPhase(health.PhaseDone)
	return out, nil
}

func pipeline(ctx context.Context, cfg *Config, logger zerolog.Logger, progress *health.Progress) (*outcome, error) {
	progress.SetPhase(health.PhaseLoading)
	s, err := loadScene(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info().
		Str("input", cfg.InputPath).
		Int("width", s.Width).
		Int("height", s.Height).
		Strs("bands", s.BandNames()).
		Uint64("valid_pixels", s.ValidCount()).
		Msg("Scene loaded")

	runner, err := run.New(cfg.RunConfig(), logger)
	if err != nil {
		return nil, err
	}
	runner.OnPass(func(rep run.PassReport) { progress.ObservePass(rep.Pass, rep.Shift) })
	progress.SetPhase(health.PhaseClustering)
	res, err := runner.RunScene(ctx, s)
	if err != nil {
		return nil, err
	}

	out := &outcome{
		Result:      res,
		Fingerprint: storage.FingerprintString(res.Clusters),
		Written:     make(map[string]int64),
	}

	if cfg.LabelsParquet != "" {
		classifier, err := classify.New(res.Clusters, cfg.Workers)
		if err != nil {
			return nil, err
		}
		out.Labels, err = classifier.Scene(ctx, s)
		if err != nil {
			return nil, err
		}
	}

	progress.SetPhase(health.PhaseWriting)
	writes := []struct {
		path string
		kind string
		fn   func(io.Writer) error
	}{
		{cfg.ClustersParquet, storage.KindClustersParquet, func(w io.Writer) error {
			return storage.WriteClustersParquet(w, res.Clusters)
		}},
		{cfg.ClustersIPC, storage.KindClustersIPC, func(w io.Writer) error {
			return storage.WriteClustersIPC(w, res.Clusters)
		}},
		{cfg.LabelsParquet, storage.KindLabelsParquet, func(w io.Writer) error {
			return storage.WriteLabelsParquet(w, out.Labels.Classes, out.Labels.Width)
		}},
	}
	for _, wr := range writes {
		if wr.path == "" {
			continue
		}
		n, err := storage.WriteFile(wr.path, wr.kind, wr.fn)
		if err != nil {
			return nil, err
		}
		out.Written[wr.kind] = n
		logger.Info().Str("kind", wr.kind).Str("path", wr.path).Int64("bytes", n).Msg("Output written")
	}
	return out, nil
}

// logSummary reports the clusters of a finished run, smallest first.
func logSummary(logger zerolog.Logger, out *outcome) {
	res := out.Result
	for rank, c := range res.Clusters {
		logger.Info().
			Int("rank", rank).
			Int("members", c.MemberCount).
			Str("centroid", fmt.Sprint([]float64(c.Centroid))).
			Msg("Cluster")
	}
	ev := logger.Info().
		Str("run_id", res.RunID).
		Int("passes", res.Passes).
		Bool("converged", res.Converged).
		Float64("shift", res.Shift).
		Int("samples", res.Samples).
		Str("fingerprint", out.Fingerprint).
		Dur("duration", res.Duration)
	if out.Labels != nil {
		ev = ev.Int("unclassified", out.Labels.Invalid())
	}
	ev.Msg("Clustering finished")
}
