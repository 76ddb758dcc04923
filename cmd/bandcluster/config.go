package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/23skdu/bandcluster/internal/kmeans"
	"github.com/23skdu/bandcluster/internal/logging"
	"github.com/23skdu/bandcluster/internal/run"
)

const envPrefix = "BANDCLUSTER"

// Config validation errors
var (
	ErrInvalidInputPath    = errors.New("input cannot be empty")
	ErrInvalidWidth        = errors.New("width must be positive")
	ErrInvalidClusterCount = errors.New("clusters must be positive")
	ErrInvalidMaxPasses    = errors.New("max_passes must be positive")
	ErrInvalidTolerance    = errors.New("tolerance must not be negative")
	ErrInvalidWorkers      = errors.New("workers must be positive")
	ErrInvalidDrawAttempts = errors.New("max_draw_attempts must be positive")
	ErrInvalidLogFormat    = errors.New("log_format must be 'json' or 'console'")
	ErrInvalidLogLevel     = errors.New("log_level must be debug, info, warn, or error")
	ErrInvalidSampleRate   = errors.New("trace_sample_rate must be between 0 and 1")
	ErrInvalidNoData       = errors.New("no_data must be a list of band:value pairs")
)

// Config is the complete command configuration. Values come from defaults,
// then an optional .env file and the environment, then command-line flags.
type Config struct {
	InputPath string             `envconfig:"INPUT"`
	Bands     []string           `envconfig:"BANDS"`
	Width     int                `envconfig:"WIDTH"`
	NoData    map[string]float64 `envconfig:"NO_DATA"`

	ClusterCount    int     `envconfig:"CLUSTERS" default:"8"`
	MaxPasses       int     `envconfig:"MAX_PASSES" default:"20"`
	Tolerance       float64 `envconfig:"TOLERANCE" default:"0"`
	Seed            uint64  `envconfig:"SEED" default:"1"`
	Workers         int     `envconfig:"WORKERS" default:"1"`
	MaxDrawAttempts int     `envconfig:"MAX_DRAW_ATTEMPTS" default:"1000"`

	ClustersParquet string `envconfig:"CLUSTERS_PARQUET"`
	ClustersIPC     string `envconfig:"CLUSTERS_IPC"`
	LabelsParquet   string `envconfig:"LABELS_PARQUET"`

	// MetricsAddr enables the Prometheus endpoint when set.
	MetricsAddr     string  `envconfig:"METRICS_ADDR"`
	LogFormat       string  `envconfig:"LOG_FORMAT" default:"json"`
	LogLevel        string  `envconfig:"LOG_LEVEL" default:"info"`
	TraceSampleRate float64 `envconfig:"TRACE_SAMPLE_RATE" default:"0"`
	// TraceEndpoint sends spans to an OTLP collector instead of stdout.
	TraceEndpoint   string  `envconfig:"TRACE_ENDPOINT"`
}

// DefaultConfig returns a Config with default values
func DefaultConfig() Config {
	return Config{
		ClusterCount:    8,
		MaxPasses:       20,
		Tolerance:       0,
		Seed:            1,
		Workers:         1,
		MaxDrawAttempts: kmeans.DefaultMaxDrawAttempts,
		LogFormat:       "json",
		LogLevel:        "info",
	}
}

// ValidateConfig validates the configuration and returns an error if invalid
func ValidateConfig(cfg *Config) error {
	if cfg.InputPath == "" {
		return ErrInvalidInputPath
	}
	if cfg.Width <= 0 {
		return ErrInvalidWidth
	}
	if cfg.ClusterCount <= 0 {
		return ErrInvalidClusterCount
	}
	if cfg.MaxPasses <= 0 {
		return ErrInvalidMaxPasses
	}
	if cfg.Tolerance < 0 {
		return ErrInvalidTolerance
	}
	if cfg.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if cfg.MaxDrawAttempts <= 0 {
		return ErrInvalidDrawAttempts
	}
	if cfg.LogFormat != "json" && cfg.LogFormat != "console" {
		return ErrInvalidLogFormat
	}
	if cfg.LogLevel != "debug" && cfg.LogLevel != "info" && cfg.LogLevel != "warn" && cfg.LogLevel != "error" {
		return ErrInvalidLogLevel
	}
	if cfg.TraceSampleRate < 0 || cfg.TraceSampleRate > 1 {
		return ErrInvalidSampleRate
	}
	return nil
}

// RunConfig extracts the clustering parameters.
func (c *Config) RunConfig() run.Config {
	return run.Config{
		ClusterCount:    c.ClusterCount,
		MaxPasses:       c.MaxPasses,
		Tolerance:       c.Tolerance,
		Seed:            c.Seed,
		Workers:         c.Workers,
		MaxDrawAttempts: c.MaxDrawAttempts,
	}
}

// LoggingConfig extracts the logger settings.
func (c *Config) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Format = c.LogFormat
	cfg.Level = c.LogLevel
	return cfg
}

// LoadConfig builds the configuration from dotenv, the environment and
// args. A missing dotenv file is not an error.
func LoadConfig(dotenv string, args []string) (Config, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	cfg := DefaultConfig()
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}

	flags := flag.NewFlagSet("bandcluster", flag.ContinueOnError)
	flags.StringVar(&cfg.InputPath, "input", cfg.InputPath, "Scene file (.parquet, or .arrow for an Arrow IPC stream)")
	flags.Var((*bandList)(&cfg.Bands), "bands", "Comma-separated band columns in feature order (default: all numeric columns)")
	flags.IntVar(&cfg.Width, "width", cfg.Width, "Scene width in pixels")
	flags.Var((*noDataMap)(&cfg.NoData), "no-data", "Per-band no-data values as band:value pairs")
	flags.IntVar(&cfg.ClusterCount, "clusters", cfg.ClusterCount, "Number of clusters")
	flags.IntVar(&cfg.MaxPasses, "max-passes", cfg.MaxPasses, "Maximum number of passes")
	flags.Float64Var(&cfg.Tolerance, "tolerance", cfg.Tolerance, "Stop once no centroid moves further than this (0 runs every pass)")
	flags.Uint64Var(&cfg.Seed, "seed", cfg.Seed, "Seed for centroid sampling")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "Goroutines used per pass")
	flags.IntVar(&cfg.MaxDrawAttempts, "max-draw-attempts", cfg.MaxDrawAttempts, "Draws allowed per centroid while seeding")
	flags.StringVar(&cfg.ClustersParquet, "clusters-parquet", cfg.ClustersParquet, "Write clusters to this Parquet file")
	flags.StringVar(&cfg.ClustersIPC, "clusters-ipc", cfg.ClustersIPC, "Write clusters to this Arrow IPC stream file")
	flags.StringVar(&cfg.LabelsParquet, "labels-parquet", cfg.LabelsParquet, "Write per-pixel classes to this Parquet file")
	flags.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Address to serve Prometheus metrics on")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: json or console")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	flags.Float64Var(&cfg.TraceSampleRate, "trace-sample-rate", cfg.TraceSampleRate, "Fraction of runs traced (0 disables tracing)")
	flags.StringVar(&cfg.TraceEndpoint, "trace-endpoint", cfg.TraceEndpoint, "OTLP gRPC collector address (default: stdout)")
	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type bandList []string

func (b *bandList) String() string {
	if b == nil {
		return ""
	}
	return strings.Join(*b, ",")
}

func (b *bandList) Set(s string) error {
	*b = nil
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			*b = append(*b, name)
		}
	}
	return nil
}

type noDataMap map[string]float64

func (m *noDataMap) String() string {
	if m == nil || len(*m) == 0 {
		return ""
	}
	pairs := make([]string, 0, len(*m))
	for k, v := range *m {
		pairs = append(pairs, k+":"+strconv.FormatFloat(v, 'g', -1, 64))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}

func (m *noDataMap) Set(s string) error {
	out := make(map[string]float64)
	for _, pair := range strings.Split(s, ",") {
		if pair = strings.TrimSpace(pair); pair == "" {
			continue
		}
		band, value, ok := strings.Cut(pair, ":")
		if !ok || band == "" {
			return ErrInvalidNoData
		}
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidNoData, err)
		}
		out[band] = f
	}
	*m = out
	return nil
}
