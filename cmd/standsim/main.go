// Command standsim runs a forest growth scenario over a plot inventory and
// writes one report per plot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"standsim/internal/adapters/reports"
	"standsim/internal/blob"
	"standsim/internal/config"
	"standsim/internal/core"
	"standsim/internal/reader"
	"standsim/internal/report"
	"standsim/internal/scenario"
	"standsim/pkg/pluginapi"
	"standsim/plugins/psylvestris"
	"standsim/plugins/sylves"
)

const defaultOutput = "output"

var (
	exitFunc = os.Exit
	envFile  = ".env"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := cli(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	exitFunc(code)
}

func cli(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("standsim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfg, err := config.Load(fs, args, envFile)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			_, _ = fmt.Fprintf(stderr, "standsim: %v\n", err)
		}
		return 2
	}
	logger := cfg.NewLogger(stderr)
	if cfg.Scenario == "" {
		logger.Error("scenario path is required")
		return 2
	}
	if err := run(ctx, cfg, logger, stdout); err != nil {
		logger.Error("standsim failed", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger, stdout io.Writer) error {
	sc, err := scenario.Load(cfg.Scenario)
	if err != nil {
		return err
	}
	inv, err := reader.Load(inventoryPath(cfg, sc), reader.Options{Logger: logger, Date: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("read inventory: %w", err)
	}

	out := cfg.Out
	if out == "" {
		out = sc.OutputPath
	}
	if out == "" {
		out = defaultOutput
	}

	store, err := core.OpenRunStore(ctx, cfg.StorageDriver(), cfg.Storage.SQLitePath, cfg.Storage.PostgresDSN)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer func() { _ = store.Close() }()

	metrics, flush, err := newMetrics(cfg, out, logger)
	if err != nil {
		return err
	}
	defer flush()

	audit := core.NewLogAuditRecorder(logger)
	opts := []core.ServiceOption{
		core.WithLogger(logger),
		core.WithMetricsRecorder(metrics),
		core.WithAuditRecorder(audit),
		core.WithRunStore(store),
		core.WithWorkers(cfg.Workers),
	}
	if cfg.Trace != "" {
		f, err := os.Create(cfg.Trace)
		if err != nil {
			return fmt.Errorf("open trace file: %w", err)
		}
		defer func() { _ = f.Close() }()
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
	}
	svc, err := core.NewService(opts...)
	if err != nil {
		return err
	}
	for _, p := range []pluginapi.Plugin{psylvestris.Plugin{}, sylves.Plugin{}} {
		if _, err := svc.InstallPlugin(p); err != nil {
			return fmt.Errorf("install plugin %s: %w", p.Name(), err)
		}
	}

	sim, record, runErr := svc.Run(ctx, sc.Scenario, inv)
	steps := sim.Steps()
	if len(steps) == 0 {
		return runErr
	}
	if runErr != nil {
		logger.Warn("reporting the steps completed before the failure", "steps", len(steps))
	}

	artifacts, err := blob.Open(ctx, cfg.BlobStore(out))
	if err != nil {
		return errors.Join(runErr, fmt.Errorf("open artifact store: %w", err))
	}
	worker := reports.NewWorker(artifacts, reports.WithLogger(logger), reports.WithAuditRecorder(audit))
	worker.Start()
	defer func() { _ = worker.Stop(context.Background()) }()

	locale := sc.Locale
	if cfg.Locale != "" {
		locale = cfg.Locale
	}
	queued, err := worker.EnqueueExport(ctx, reports.ExportInput{
		RunID: record.ID,
		Steps: steps,
		Options: report.Options{
			Scenario: sc.Name,
			Type:     sc.OutputType,
			Decimals: sc.DecimalNumbers,
			Locale:   locale,
			Zip:      sc.ZipCompression,
		},
	})
	if err != nil {
		return errors.Join(runErr, err)
	}
	exported, err := worker.Wait(ctx, queued.ID)
	if err != nil {
		return errors.Join(runErr, fmt.Errorf("export reports: %w", err))
	}
	for _, a := range exported.Artifacts {
		location := a.URL
		if location == "" {
			location = a.Key
		}
		if _, err := fmt.Fprintln(stdout, location); err != nil {
			return err
		}
	}
	logger.Info("reports written", "run", record.ID, "artifacts", len(exported.Artifacts), "driver", string(artifacts.Driver()))
	return runErr
}

// inventoryPath prefers the -inventory flag over the LOAD operation. Paths
// taken from the scenario are relative to the scenario file.
func inventoryPath(cfg config.Config, sc scenario.Config) string {
	if cfg.Inventory != "" {
		return cfg.Inventory
	}
	path := sc.Inventory()
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(cfg.Scenario), path)
}

// newMetrics returns the configured recorder and a flush hook run after the
// simulation. Prometheus metrics are written as a textfile next to the
// reports.
func newMetrics(cfg config.Config, out string, logger *slog.Logger) (core.MetricsRecorder, func(), error) {
	switch strings.ToLower(cfg.Metrics) {
	case config.MetricsExpvar:
		rec := core.NewExpvarMetricsRecorder("")
		return rec, func() {
			for op, stats := range rec.Snapshot().Operations {
				logger.Info("metrics", "operation", op, "success", stats.Success, "errors", stats.Errors, "total_ms", stats.TotalMS)
			}
		}, nil
	case config.MetricsPrometheus:
		reg := prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(reg, "standsim")
		if err != nil {
			return nil, nil, fmt.Errorf("prometheus metrics: %w", err)
		}
		return rec, func() {
			if err := os.MkdirAll(out, 0o750); err != nil {
				logger.Warn("metrics not written", "error", err)
				return
			}
			if err := prometheus.WriteToTextfile(filepath.Join(out, "metrics.prom"), reg); err != nil {
				logger.Warn("metrics not written", "error", err)
			}
		}, nil
	default:
		return nil, func() {}, nil
	}
}
