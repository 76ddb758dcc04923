// Package run drives a k-means engine through a complete clustering run:
// seeding, repeated passes and the stopping decision the engine leaves to
// its caller.
package run

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	errs "github.com/23skdu/bandcluster/internal/errors"
	"github.com/23skdu/bandcluster/internal/kmeans"
	"github.com/23skdu/bandcluster/internal/metrics"
	"github.com/23skdu/bandcluster/internal/sampling"
	"github.com/23skdu/bandcluster/internal/scene"
	"github.com/23skdu/bandcluster/internal/tracing"
)

// Config validation errors
var (
	ErrInvalidClusterCount = errors.New("cluster_count must be positive")
	ErrInvalidMaxPasses    = errors.New("max_passes must be positive")
	ErrInvalidTolerance    = errors.New("tolerance must not be negative")
	ErrInvalidWorkers      = errors.New("workers must be positive")
	ErrInvalidDrawAttempts = errors.New("max_draw_attempts must be positive")
)

// Config describes one clustering run. Tolerance zero means the run always
// makes MaxPasses passes; there is no implicit convergence threshold.
type Config struct {
	ClusterCount    int
	MaxPasses       int
	Tolerance       float64
	Seed            uint64
	Workers         int
	MaxDrawAttempts int
}

// DefaultConfig returns a fixed-pass configuration.
func DefaultConfig() Config {
	return Config{
		ClusterCount:    8,
		MaxPasses:       20,
		Tolerance:       0,
		Seed:            1,
		Workers:         1,
		MaxDrawAttempts: kmeans.DefaultMaxDrawAttempts,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	const op = "run.Config.Validate"
	switch {
	case c.ClusterCount <= 0:
		return errs.WrapConfigurationError(ErrInvalidClusterCount, op, "invalid config")
	case c.MaxPasses <= 0:
		return errs.WrapConfigurationError(ErrInvalidMaxPasses, op, "invalid config")
	case c.Tolerance < 0:
		return errs.WrapConfigurationError(ErrInvalidTolerance, op, "invalid config")
	case c.Workers <= 0:
		return errs.WrapConfigurationError(ErrInvalidWorkers, op, "invalid config")
	case c.MaxDrawAttempts <= 0:
		return errs.WrapConfigurationError(ErrInvalidDrawAttempts, op, "invalid config")
	}
	return nil
}

// Policy returns the stopping policy the configuration describes.
func (c Config) Policy() StopPolicy {
	if c.Tolerance > 0 {
		return MovementThreshold{MaxPasses: c.MaxPasses, Tolerance: c.Tolerance}
	}
	return FixedPasses{N: c.MaxPasses}
}

// Result summarizes a run.
type Result struct {
	RunID     string
	Clusters  kmeans.ClusterSet
	Passes    int
	Samples   int
	Converged bool
	// Shift is the largest centroid movement of the last pass.
	Shift    float64
	Duration time.Duration
}

// PassReport describes one committed pass.
type PassReport struct {
	Pass          int
	Samples       int
	EmptyClusters int
	Shift         float64
}

// Runner executes clustering runs.
type Runner struct {
	cfg    Config
	policy StopPolicy
	logger zerolog.Logger
	onPass func(PassReport)
}

// New validates cfg and returns a runner.
func New(cfg Config, logger zerolog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, policy: cfg.Policy(), logger: logger}, nil
}

// WithPolicy replaces the stopping policy derived from the config.
func (r *Runner) WithPolicy(p StopPolicy) *Runner {
	r.policy = p
	return r
}

// OnPass registers fn to be called after every committed pass.
func (r *Runner) OnPass(fn func(PassReport)) *Runner {
	r.onPass = fn
	return r
}

// RunScene clusters the valid pixels of s, seeding from a generator derived
// from the configured seed.
func (r *Runner) RunScene(ctx context.Context, s *scene.Scene) (*Result, error) {
	draw, err := sampling.NewRandomDraw(s, sampling.NewRand(r.cfg.Seed))
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, s.BandCount(), draw, sampling.NewScan(s))
}

// Run seeds an engine from random and iterates over scan until the stopping
// policy says so. Cancellation is checked between passes; on cancellation
// the returned result reflects the last committed pass.
func (r *Runner) Run(ctx context.Context, dims int, random kmeans.RandomSource, scan kmeans.SampleSource) (*Result, error) {
	start := time.Now()
	res := &Result{RunID: uuid.NewString()}
	logger := r.logger.With().Str("run_id", res.RunID).Logger()

	ctx, span := tracing.StartSpan(ctx, "bandcluster.run",
		attribute.String("run_id", res.RunID),
		attribute.Int("clusters", r.cfg.ClusterCount),
		attribute.Int("dimensions", dims),
	)
	defer span.End()

	fail := func(err error) (*Result, error) {
		res.Duration = time.Since(start)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			metrics.RunsTotal.WithLabelValues("canceled").Inc()
			logger.Warn().Err(err).Int("passes", res.Passes).Msg("Clustering run canceled")
			return res, err
		}
		span.SetError(err)
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(err).Int("passes", res.Passes).Msg("Clustering run failed")
		return res, err
	}

	engine, err := kmeans.New(r.cfg.ClusterCount, dims,
		kmeans.WithWorkers(r.cfg.Workers),
		kmeans.WithMaxDrawAttempts(r.cfg.MaxDrawAttempts),
		kmeans.WithLogger(logger),
	)
	if err != nil {
		return fail(err)
	}

	if err := r.initialize(ctx, engine, random); err != nil {
		return fail(err)
	}

	prev, err := engine.Centroids()
	if err != nil {
		return fail(err)
	}

	for {
		if err := ctx.Err(); err != nil {
			if set, cerr := engine.Clusters(); cerr == nil {
				res.Clusters = set
			}
			return fail(err)
		}

		pass, err := r.iterate(ctx, engine, scan, res.Passes+1)
		if err != nil {
			if set, cerr := engine.Clusters(); cerr == nil {
				res.Clusters = set
			}
			return fail(err)
		}
		res.Passes++
		res.Samples = pass.Samples

		next, err := engine.Centroids()
		if err != nil {
			return fail(err)
		}
		res.Shift = maxShift(prev, next)
		prev = next
		metrics.CentroidShift.Set(res.Shift)

		logger.Info().
			Int("pass", res.Passes).
			Int("samples", pass.Samples).
			Int("empty_clusters", pass.EmptyClusters).
			Float64("shift", res.Shift).
			Dur("duration", pass.Duration).
			Msg("Pass complete")
		if r.onPass != nil {
			r.onPass(PassReport{
				Pass:          res.Passes,
				Samples:       pass.Samples,
				EmptyClusters: pass.EmptyClusters,
				Shift:         res.Shift,
			})
		}

		done, converged := r.policy.Done(res.Passes, res.Shift)
		if done {
			res.Converged = converged
			break
		}
	}

	set, err := engine.Clusters()
	if err != nil {
		return fail(err)
	}
	res.Clusters = set
	res.Duration = time.Since(start)

	metrics.RunsTotal.WithLabelValues("completed").Inc()
	metrics.RunDurationSeconds.Observe(res.Duration.Seconds())
	logger.Info().
		Int("passes", res.Passes).
		Bool("converged", res.Converged).
		Int("samples", res.Samples).
		Dur("duration", res.Duration).
		Msg("Clustering run complete")
	return res, nil
}

func (r *Runner) initialize(ctx context.Context, engine *kmeans.Engine, random kmeans.RandomSource) error {
	ctx, span := tracing.StartSpan(ctx, "kmeans.initialize")
	defer span.End()

	err := engine.Initialize(ctx, random)
	span.SetError(err)
	return err
}

func (r *Runner) iterate(ctx context.Context, engine *kmeans.Engine, scan kmeans.SampleSource, n int) (kmeans.Pass, error) {
	ctx, span := tracing.StartSpan(ctx, "kmeans.pass", attribute.Int("pass", n))
	defer span.End()

	pass, err := engine.Iterate(ctx, scan)
	if err != nil {
		span.SetError(err)
		return pass, err
	}
	span.SetAttributes(
		attribute.Int("samples", pass.Samples),
		attribute.Int("empty_clusters", pass.EmptyClusters),
	)
	return pass, nil
}
