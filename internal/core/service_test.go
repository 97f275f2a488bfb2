package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"standsim/internal/harvest"
	"standsim/internal/infra/persistence/memory"
	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

type captureAuditRecorder struct {
	entries []AuditEntry
}

func (c *captureAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	c.entries = append(c.entries, entry)
}

type captureTracer struct {
	started []string
	ended   []spanRecord
}

type spanRecord struct {
	op  string
	err error
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	c.started = append(c.started, op)
	return ctx, &captureSpan{tracer: c, op: op}
}

func (c *captureTracer) has(op string, success bool) bool {
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (s *captureSpan) End(err error) {
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, err: err})
}

type growthPlugin struct {
	name  string
	key   string
	model pluginapi.TreeModel
	rule  domain.Rule
}

func (p growthPlugin) Name() string    { return p.name }
func (p growthPlugin) Version() string { return "0.1.0" }

func (p growthPlugin) Register(registry pluginapi.Registry) error {
	if err := registry.RegisterTreeModel(p.key, p.model); err != nil {
		return err
	}
	registry.RegisterRule(p.rule)
	return nil
}

func fixedClock() Clock {
	ticks := []time.Time{
		time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		time.Date(2024, 5, 1, 10, 0, 2, 0, time.UTC),
	}
	i := 0
	return ClockFunc(func() time.Time {
		now := ticks[i%len(ticks)]
		i++
		return now
	})
}

func TestServiceRunRecordsHistoryAndObservability(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	metrics := &captureMetricsRecorder{}
	tracer := &captureTracer{}
	store := memory.NewStore()

	svc, err := NewService(
		WithAuditRecorder(audit),
		WithMetricsRecorder(metrics),
		WithTracer(tracer),
		WithRunStore(store),
		WithClock(fixedClock()),
		WithWorkers(2),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if _, err := svc.InstallPlugin(growthPlugin{name: "growth", key: "growth", model: growthModel{survival: 0.9, increment: 1}}); err != nil {
		t.Fatalf("install: %v", err)
	}

	sim, record, err := svc.Run(ctx, threeStepScenario(), stand(t))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sim.Steps()) != 3 || len(record.Steps) != 3 {
		t.Fatalf("expected 3 steps, sim=%d record=%d", len(sim.Steps()), len(record.Steps))
	}
	if record.ID == "" || record.Scenario != "pinar" {
		t.Fatalf("unexpected record header %+v", record)
	}
	if got := record.FinishedAt.Sub(record.StartedAt); got != 2*time.Second {
		t.Fatalf("expected clock driven duration, got %v", got)
	}
	harvested := record.Steps[2]
	if harvested.Operation != string(OperationHarvest) || len(harvested.Plots) != 2 {
		t.Fatalf("unexpected harvest record %+v", harvested)
	}
	if harvested.Plots[0].Cut == 0 {
		t.Fatal("expected cut records in the harvest snapshot")
	}

	stored, ok, err := svc.GetRun(ctx, record.ID)
	if err != nil || !ok {
		t.Fatalf("expected stored run, ok=%v err=%v", ok, err)
	}
	if len(stored.Steps) != 3 {
		t.Fatalf("stored run lost steps: %d", len(stored.Steps))
	}
	runs, err := svc.ListRuns(ctx)
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected a single listed run, got %d (%v)", len(runs), err)
	}

	if !metrics.has("run", true) || !metrics.has("engine.apply", true) || !metrics.has("engine.plot", true) {
		t.Fatalf("missing metrics %+v", metrics.calls)
	}
	if !tracer.has("run", true) || !tracer.has("engine.apply", true) {
		t.Fatalf("missing spans %+v", tracer.ended)
	}
	if len(audit.entries) != 1 || audit.entries[0].Status != AuditStatusSuccess || audit.entries[0].RunID != record.ID {
		t.Fatalf("unexpected audit entries %+v", audit.entries)
	}
}

func TestServiceRunFailureIsAuditedAndNotStored(t *testing.T) {
	ctx := context.Background()
	audit := &captureAuditRecorder{}
	tracer := &captureTracer{}
	svc, err := NewService(WithAuditRecorder(audit), WithTracer(tracer))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	sc := Scenario{Name: "typo", Operations: []Operation{{Kind: OperationHarvest, ModelKey: "cut_down_by_talest"}}}

	sim, record, err := svc.Run(ctx, sc, stand(t))
	if !errors.Is(err, ErrUnknownModel) {
		t.Fatalf("expected unknown model, got %v", err)
	}
	if !strings.Contains(err.Error(), harvest.KeyByTallest) {
		t.Fatalf("expected a suggestion in %q", err)
	}
	if sim == nil || len(sim.Steps()) != 0 {
		t.Fatal("expected an empty simulation back")
	}
	if _, ok, _ := svc.GetRun(ctx, record.ID); ok {
		t.Fatal("failed runs must not be stored")
	}
	if len(audit.entries) != 1 || audit.entries[0].Status != AuditStatusError || audit.entries[0].Error == "" {
		t.Fatalf("unexpected audit entries %+v", audit.entries)
	}
	if !tracer.has("run", false) {
		t.Fatal("expected failed run span")
	}
}

func TestServiceInstallPlugin(t *testing.T) {
	logger := &captureLogger{}
	svc, err := NewService(WithLogger(logger))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	plugins := svc.RegisteredPlugins()
	if len(plugins) != 1 || plugins[0].Name != "harvest" || len(plugins[0].Models) != 3 {
		t.Fatalf("expected built-in harvest plugin, got %+v", plugins)
	}

	rulesBefore := len(svc.Rules().Rules())
	meta, err := svc.InstallPlugin(growthPlugin{name: "alpha", key: "Alpha ", model: growthModel{}, rule: warnRule{years: 5}})
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if len(meta.Models) != 1 || meta.Models[0] != "alpha" || len(meta.Rules) != 1 {
		t.Fatalf("unexpected metadata %+v", meta)
	}
	if len(svc.Rules().Rules()) != rulesBefore+1 {
		t.Fatal("plugin rule not merged into the engine")
	}
	if _, err := svc.ResolveModel(Operation{ModelKey: "ALPHA"}); err != nil {
		t.Fatalf("resolve normalised key: %v", err)
	}

	if _, err := svc.InstallPlugin(growthPlugin{name: "alpha", key: "other", model: growthModel{}}); err == nil {
		t.Fatal("expected duplicate plugin name to fail")
	}
	if _, err := svc.InstallPlugin(growthPlugin{name: "beta", key: "alpha", model: growthModel{}}); err == nil {
		t.Fatal("expected duplicate model key to fail")
	}
	if _, err := svc.InstallPlugin(nil); err == nil {
		t.Fatal("expected nil plugin to fail")
	}
	names := []string{}
	for _, p := range svc.RegisteredPlugins() {
		names = append(names, p.Name)
	}
	if strings.Join(names, ",") != "alpha,harvest" {
		t.Fatalf("unexpected plugin order %v", names)
	}
	if keys := svc.ModelKeys(); len(keys) != 4 {
		t.Fatalf("expected 4 model keys, got %v", keys)
	}
	if logger.count("debug", "plugin installed") != 2 {
		t.Fatal("expected install log lines")
	}
}
