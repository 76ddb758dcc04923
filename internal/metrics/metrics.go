package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PassesTotal counts k-means passes by outcome ("committed", "aborted")
	PassesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandcluster_passes_total",
			Help: "Total number of k-means passes by outcome",
		},
		[]string{"status"},
	)

	// PassDurationSeconds measures the wall time of one full pass
	PassDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bandcluster_pass_duration_seconds",
			Help:    "Duration of a single k-means pass over the dataset",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// SamplesConsumedTotal counts samples assigned in committed passes
	SamplesConsumedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandcluster_samples_consumed_total",
			Help: "Total number of samples assigned in committed passes",
		},
	)

	// EmptyClusters reports clusters left without members by the last pass
	EmptyClusters = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandcluster_empty_clusters",
			Help: "Number of clusters with zero members after the last pass",
		},
	)

	// SeedDrawsTotal counts vectors drawn while seeding centroids
	SeedDrawsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandcluster_seed_draws_total",
			Help: "Total number of random draws made during initialization",
		},
	)

	// SeedRejectionsTotal counts drawn vectors rejected as duplicates
	SeedRejectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandcluster_seed_rejections_total",
			Help: "Total number of drawn seeds rejected as duplicates of accepted centroids",
		},
	)

	// InitFailuresTotal counts initializations that failed
	InitFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandcluster_init_failures_total",
			Help: "Total number of failed initializations by reason",
		},
		[]string{"reason"},
	)

	// CentroidShift reports the largest centroid movement of the last pass
	CentroidShift = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandcluster_centroid_shift",
			Help: "Largest Euclidean centroid movement observed in the last pass",
		},
	)

	// RunsTotal counts clustering runs by outcome
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandcluster_runs_total",
			Help: "Total number of clustering runs by outcome",
		},
		[]string{"status"},
	)

	// RunDurationSeconds measures a complete clustering run
	RunDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bandcluster_run_duration_seconds",
			Help:    "Duration of a complete clustering run",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		},
	)

	// OutputBytesWritten tracks bytes written per output kind
	OutputBytesWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandcluster_output_bytes_written_total",
			Help: "Total bytes written to result files",
		},
		[]string{"kind"},
	)

	// PixelsClassifiedTotal counts labelled pixels by validity
	PixelsClassifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bandcluster_pixels_classified_total",
			Help: "Total number of pixels labelled by the classifier",
		},
		[]string{"valid"},
	)

	// ArrowBytesAllocatedTotal tracks bytes requested from Arrow allocators
	ArrowBytesAllocatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandcluster_arrow_bytes_allocated_total",
			Help: "Total bytes allocated for Arrow buffers",
		},
	)

	// ArrowBytesFreedTotal tracks bytes returned to Arrow allocators
	ArrowBytesFreedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bandcluster_arrow_bytes_freed_total",
			Help: "Total bytes freed from Arrow buffers",
		},
	)

	// ArrowAllocationsActive tracks live Arrow buffers
	ArrowAllocationsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bandcluster_arrow_allocations_active",
			Help: "Number of Arrow buffers currently allocated",
		},
	)
)
