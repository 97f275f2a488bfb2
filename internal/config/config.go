// Package config assembles the command configuration from an optional .env
// file, STANDSIM_* environment variables and command line flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"standsim/internal/blob"
	"standsim/internal/core"
)

// Metrics backends.
const (
	MetricsNone       = "none"
	MetricsExpvar     = "expvar"
	MetricsPrometheus = "prometheus"
)

// Config holds the standsim command configuration.
type Config struct {
	Scenario  string `env:"STANDSIM_SCENARIO"`
	Inventory string `env:"STANDSIM_INVENTORY"`
	Out       string `env:"STANDSIM_OUT"`

	LogLevel  string `env:"STANDSIM_LOG_LEVEL"   envDefault:"info"`
	LogFormat string `env:"STANDSIM_LOG_FORMAT"  envDefault:"text"`
	Workers   int    `env:"STANDSIM_WORKERS"     envDefault:"0"`
	Locale    string `env:"STANDSIM_LOCALE"`
	Metrics   string `env:"STANDSIM_METRICS"     envDefault:"none"`
	Trace     string `env:"STANDSIM_TRACE_FILE"`

	Storage StorageConfig
	Blob    BlobConfig
}

// StorageConfig selects the run history backend.
type StorageConfig struct {
	Driver      string `env:"STANDSIM_STORAGE_DRIVER" envDefault:"sqlite"`
	SQLitePath  string `env:"STANDSIM_SQLITE_PATH"    envDefault:"standsim.db"`
	PostgresDSN string `env:"STANDSIM_POSTGRES_DSN"`
}

// BlobConfig selects the report artifact store.
type BlobConfig struct {
	Driver     string `env:"STANDSIM_BLOB_DRIVER"        envDefault:"fs"`
	FSRoot     string `env:"STANDSIM_BLOB_FS_ROOT"`
	S3Bucket   string `env:"STANDSIM_BLOB_S3_BUCKET"`
	S3Region   string `env:"STANDSIM_BLOB_S3_REGION"`
	S3Endpoint string `env:"STANDSIM_BLOB_S3_ENDPOINT"`
	S3Prefix   string `env:"STANDSIM_BLOB_S3_PREFIX"`
	PathStyle  bool   `env:"STANDSIM_BLOB_S3_PATH_STYLE"`
}

// Load reads envFile when it exists, parses the environment and then args.
// Variables already set in the environment win over the file.
func Load(fset *flag.FlagSet, args []string, envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	fset.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to the scenario file")
	fset.StringVar(&cfg.Inventory, "inventory", cfg.Inventory, "inventory file or directory, overrides the scenario LOAD operation")
	fset.StringVar(&cfg.Out, "out", cfg.Out, "directory for report artifacts, overrides the scenario output_path")
	fset.IntVar(&cfg.Workers, "workers", cfg.Workers, "plots processed concurrently per step (0 = number of CPUs)")
	fset.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.Level(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format %q: want text or json", c.LogFormat))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	switch strings.ToLower(c.Metrics) {
	case "", MetricsNone, MetricsExpvar, MetricsPrometheus:
	default:
		errs = append(errs, fmt.Errorf("metrics %q: want none, expvar or prometheus", c.Metrics))
	}
	if strings.EqualFold(c.Storage.Driver, string(core.StoragePostgres)) && c.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("postgres storage needs STANDSIM_POSTGRES_DSN"))
	}
	if strings.EqualFold(c.Blob.Driver, string(blob.DriverS3)) && c.Blob.S3Bucket == "" {
		errs = append(errs, errors.New("s3 blob storage needs STANDSIM_BLOB_S3_BUCKET"))
	}
	return errors.Join(errs...)
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

// NewLogger builds the slog logger described by the configuration.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// StorageDriver is the run history backend.
func (c Config) StorageDriver() core.StorageDriver {
	return core.StorageDriver(strings.ToLower(c.Storage.Driver))
}

// BlobStore is the artifact store configuration. root is used when no
// filesystem root is configured.
func (c Config) BlobStore(root string) blob.Config {
	cfg := blob.Config{
		Driver: blob.Driver(c.Blob.Driver),
		FSRoot: c.Blob.FSRoot,
		S3: blob.S3Config{
			Bucket:    c.Blob.S3Bucket,
			Region:    c.Blob.S3Region,
			Endpoint:  c.Blob.S3Endpoint,
			Prefix:    c.Blob.S3Prefix,
			PathStyle: c.Blob.PathStyle,
		},
	}
	if cfg.FSRoot == "" {
		cfg.FSRoot = root
	}
	return cfg
}
