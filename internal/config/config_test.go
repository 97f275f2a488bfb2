package config

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"standsim/internal/blob"
	"standsim/internal/core"
)

func newFlags() *flag.FlagSet {
	fs := flag.NewFlagSet("standsim", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newFlags(), nil, "")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" || cfg.Workers != 0 || cfg.Metrics != MetricsNone {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.StorageDriver() != core.StorageSQLite || cfg.Storage.SQLitePath != "standsim.db" {
		t.Fatalf("unexpected storage defaults %+v", cfg.Storage)
	}
	bc := cfg.BlobStore("out")
	if bc.Driver != blob.DriverFilesystem || bc.FSRoot != "out" {
		t.Fatalf("unexpected blob defaults %+v", bc)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	content := "STANDSIM_WORKERS=3\nSTANDSIM_LOCALE=es\nSTANDSIM_LOG_FORMAT=json\n"
	if err := os.WriteFile(envFile, []byte(content), 0o600); err != nil {
		t.Fatalf("write env: %v", err)
	}
	// godotenv sets variables on the process; t.Setenv restores them.
	for _, key := range []string{"STANDSIM_WORKERS", "STANDSIM_LOG_FORMAT"} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
	t.Setenv("STANDSIM_LOCALE", "en")
	t.Setenv("STANDSIM_BLOB_DRIVER", "s3")
	t.Setenv("STANDSIM_BLOB_S3_BUCKET", "reports")
	t.Setenv("STANDSIM_BLOB_S3_PATH_STYLE", "true")

	cfg, err := Load(newFlags(), []string{"-workers", "5", "-scenario", "thin.json", "-log-level", "debug"}, envFile)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Workers != 5 || cfg.Scenario != "thin.json" || cfg.LogLevel != "debug" {
		t.Fatalf("flags must win: %+v", cfg)
	}
	if cfg.Locale != "en" {
		t.Fatalf("environment must win over the .env file, got %q", cfg.Locale)
	}
	if cfg.LogFormat != "json" {
		t.Fatalf(".env values must apply when unset, got %q", cfg.LogFormat)
	}
	bc := cfg.BlobStore("out")
	if bc.Driver != blob.DriverS3 || bc.S3.Bucket != "reports" || !bc.S3.PathStyle {
		t.Fatalf("unexpected blob config %+v", bc)
	}
}

func TestLoadMissingEnvFile(t *testing.T) {
	if _, err := Load(newFlags(), nil, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("a missing .env file is optional: %v", err)
	}
}

func TestValidateReportsEveryError(t *testing.T) {
	cfg := Config{
		LogLevel:  "loud",
		LogFormat: "xml",
		Workers:   -1,
		Metrics:   "statsd",
		Storage:   StorageConfig{Driver: "postgres"},
		Blob:      BlobConfig{Driver: "s3"},
	}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"log level", "log format", "workers", "metrics", "STANDSIM_POSTGRES_DSN", "STANDSIM_BLOB_S3_BUCKET"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in %v", want, err)
		}
	}
}

func TestLoadRejectsBadEnv(t *testing.T) {
	t.Setenv("STANDSIM_WORKERS", "many")
	if _, err := Load(newFlags(), nil, ""); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Config{LogLevel: "warn", LogFormat: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "plot", 7)
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"plot":7`) {
		t.Fatalf("unexpected log output %q", out)
	}
	if !logger.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatal("warn level should be enabled")
	}
}
