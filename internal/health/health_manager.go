package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/23skdu/bandcluster/internal/tracing"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	StatusHealthy   HealthStatus = "healthy"
	StatusDegraded  HealthStatus = "degraded"
	StatusUnhealthy HealthStatus = "unhealthy"
)

// ComponentHealth represents the health of a single component
type ComponentHealth struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// SystemHealth represents the overall process health
type SystemHealth struct {
	Status     HealthStatus                `json:"status"`
	Timestamp  time.Time                   `json:"timestamp"`
	Uptime     time.Duration               `json:"uptime"`
	Version    string                      `json:"version"`
	Components map[string]*ComponentHealth `json:"components"`
	System     *SystemInfo                 `json:"system"`
	CheckCount int64                       `json:"check_count"`
}

// SystemInfo provides runtime information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	HeapAlloc     uint64 `json:"heap_alloc_bytes"`
	HeapInuse     uint64 `json:"heap_inuse_bytes"`
	NumGC         uint32 `json:"num_gc"`
}

// HealthChecker defines the interface for component health checks
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) *ComponentHealth
}

var (
	checkDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bandcluster_health_check_duration_seconds",
			Help:    "Duration of health checks",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"component"},
	)
	componentStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bandcluster_component_health_status",
			Help: "Current component health status (1=healthy, 0.5=degraded, 0=unhealthy)",
		},
		[]string{"component"},
	)
)

// HealthManager manages health checks for all components
type HealthManager struct {
	startTime    time.Time
	version      string
	logger       zerolog.Logger
	checkCounter atomic.Int64

	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthManager creates a new health manager
func NewHealthManager(version string, logger zerolog.Logger) *HealthManager {
	return &HealthManager{
		startTime: time.Now(),
		version:   version,
		checkers:  make(map[string]HealthChecker),
		logger:    logger,
	}
}

// RegisterChecker registers a health checker
func (hm *HealthManager) RegisterChecker(checker HealthChecker) {
	hm.mu.Lock()
	hm.checkers[checker.Name()] = checker
	hm.mu.Unlock()
	hm.logger.Debug().Str("component", checker.Name()).Msg("Registered health checker")
}

// CheckHealth performs health checks on all registered components
func (hm *HealthManager) CheckHealth(ctx context.Context) *SystemHealth {
	ctx, span := tracing.StartSpan(ctx, "health.check")
	defer span.End()

	count := hm.checkCounter.Add(1)
	health := &SystemHealth{
		Status:     StatusHealthy,
		Timestamp:  time.Now(),
		Uptime:     time.Since(hm.startTime),
		Version:    hm.version,
		Components: make(map[string]*ComponentHealth),
		System:     systemInfo(),
		CheckCount: count,
	}

	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	for name := range hm.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	checkers := make([]HealthChecker, len(names))
	for i, name := range names {
		checkers[i] = hm.checkers[name]
	}
	hm.mu.RUnlock()

	for _, checker := range checkers {
		start := time.Now()
		component := checker.Check(ctx)
		checkDuration.WithLabelValues(checker.Name()).Observe(time.Since(start).Seconds())
		componentStatus.WithLabelValues(checker.Name()).Set(statusValue(component.Status))

		health.Components[checker.Name()] = component
		switch {
		case component.Status == StatusUnhealthy:
			health.Status = StatusUnhealthy
		case component.Status == StatusDegraded && health.Status == StatusHealthy:
			health.Status = StatusDegraded
		}
	}

	span.SetAttributes(
		attribute.String("health.status", string(health.Status)),
		attribute.Int("health.components", len(checkers)),
	)
	hm.logger.Debug().
		Str("overall_status", string(health.Status)).
		Int("components_checked", len(checkers)).
		Msg("Health check completed")
	return health
}

func statusValue(s HealthStatus) float64 {
	switch s {
	case StatusHealthy:
		return 1
	case StatusDegraded:
		return 0.5
	default:
		return 0
	}
}

func systemInfo() *SystemInfo {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return &SystemInfo{
		GoVersion:     runtime.Version(),
		NumGoroutines: runtime.NumGoroutine(),
		HeapAlloc:     m.HeapAlloc,
		HeapInuse:     m.HeapInuse,
		NumGC:         m.NumGC,
	}
}

// HTTPHandler returns an http handler for health checks
func (hm *HealthManager) HTTPHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		health := hm.CheckHealth(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if health.Status == StatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			http.Error(w, "Failed to encode health response", http.StatusInternalServerError)
		}
	})
}
