package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/23skdu/bandcluster/internal/health"
	"github.com/23skdu/bandcluster/internal/logging"
	"github.com/23skdu/bandcluster/internal/tracing"
)

var version = "dev"

func main() {
	os.Exit(realMain(os.Args[1:]))
}

func realMain(args []string) int {
	cfg, err := LoadConfig(".env", args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "bandcluster: %v\n", err)
		return 2
	}
	if err := ValidateConfig(&cfg); err != nil {
		fmt.Fprintf(os.Stderr, "bandcluster: invalid configuration: %v\n", err)
		return 2
	}

	logger, err := logging.NewLogger(cfg.LoggingConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "bandcluster: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.TraceSampleRate > 0 {
		shutdown, err := tracing.InitTracer(ctx, tracing.SpanConfig{
			ServiceName:    "bandcluster",
			ServiceVersion: version,
			SampleRate:     cfg.TraceSampleRate,
			Endpoint:       cfg.TraceEndpoint,
		})
		if err != nil {
			logger.Error().Err(err).Msg("Failed to initialize tracing")
			return 1
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn().Err(err).Msg("Tracer shutdown failed")
			}
		}()
	}

	progress := health.NewProgress()
	hm := health.NewHealthManager(version, logger)
	hm.RegisterChecker(progress)

	if cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux(hm), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info().Str("address", cfg.MetricsAddr).Msg("Starting metrics server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer func() { _ = srv.Close() }()
	}

	out, err := execute(ctx, &cfg, logger, progress)
	if err != nil {
		logger.Error().Err(err).Msg("Clustering failed")
		return 1
	}
	logSummary(logger, out)
	return 0
}

func metricsMux(hm *health.HealthManager) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", hm.HTTPHandler())
	return mux
}
