package core

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"standsim/internal/harvest"
	"standsim/internal/infra/persistence/memory"
	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

// Service runs scenarios against installed plugins and keeps the run history.
type Service struct {
	mu       sync.RWMutex
	registry *PluginRegistry
	rules    *domain.RulesEngine
	plugins  map[string]PluginMetadata
	store    domain.RunStore

	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	audit   AuditRecorder
	clock   Clock
	workers int
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(metrics MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithTracer sets the span factory.
func WithTracer(tracer Tracer) ServiceOption {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithAuditRecorder sets the audit sink.
func WithAuditRecorder(audit AuditRecorder) ServiceOption {
	return func(s *Service) {
		if audit != nil {
			s.audit = audit
		}
	}
}

// WithClock overrides the clock used for run timestamps.
func WithClock(clock Clock) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithRunStore sets the run history backend. The default keeps runs in memory.
func WithRunStore(store domain.RunStore) ServiceOption {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkers bounds the number of plots processed concurrently.
func WithWorkers(n int) ServiceOption {
	return func(s *Service) { s.workers = n }
}

// NewService constructs a service with the built-in rules and harvest models
// installed.
func NewService(opts ...ServiceOption) (*Service, error) {
	s := &Service{
		registry: NewPluginRegistry(),
		rules:    NewDefaultRulesEngine(),
		plugins:  make(map[string]PluginMetadata),
		store:    memory.NewStore(),
		logger:   noopLogger{},
		metrics:  noopMetricsRecorder{},
		tracer:   noopTracer{},
		audit:    noopAuditRecorder{},
		clock:    systemClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.InstallPlugin(harvest.Plugin{}); err != nil {
		return nil, err
	}
	return s, nil
}

// Store returns the run history backend.
func (s *Service) Store() domain.RunStore { return s.store }

// Rules returns the rules engine evaluated after every step.
func (s *Service) Rules() *domain.RulesEngine { return s.rules }

// InstallPlugin registers a plugin, wiring its rules into the active engine.
func (s *Service) InstallPlugin(plugin pluginapi.Plugin) (PluginMetadata, error) {
	if plugin == nil {
		return PluginMetadata{}, errors.New("plugin cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plugins[plugin.Name()]; ok {
		return PluginMetadata{}, fmt.Errorf("plugin %s already registered", plugin.Name())
	}

	staged := NewPluginRegistry()
	if err := plugin.Register(staged); err != nil {
		return PluginMetadata{}, fmt.Errorf("plugin %s: %w", plugin.Name(), err)
	}
	if err := s.registry.merge(staged); err != nil {
		return PluginMetadata{}, fmt.Errorf("plugin %s: %w", plugin.Name(), err)
	}

	meta := PluginMetadata{
		Name:    plugin.Name(),
		Version: plugin.Version(),
		Models:  staged.Keys(),
	}
	for _, rule := range staged.Rules() {
		s.rules.Register(rule)
		meta.Rules = append(meta.Rules, rule.Name())
	}
	s.plugins[plugin.Name()] = meta
	s.logger.Debug("plugin installed", "plugin", meta.Name, "version", meta.Version, "models", meta.Models)
	return meta, nil
}

// RegisteredPlugins returns metadata describing installed plugins, sorted by
// name.
func (s *Service) RegisteredPlugins() []PluginMetadata {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PluginMetadata, 0, len(s.plugins))
	for _, meta := range s.plugins {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ResolveModel implements ModelResolver over the installed plugins.
func (s *Service) ResolveModel(op Operation) (Model, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.ResolveModel(op)
}

// ModelKeys lists every installed model key.
func (s *Service) ModelKeys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registry.Keys()
}

// Run executes sc over inv and stores the run record. The simulation is
// returned even when a step fails so callers can report the steps completed so
// far.
func (s *Service) Run(ctx context.Context, sc Scenario, inv *domain.Inventory) (sim *Simulation, record domain.RunRecord, err error) {
	record = domain.RunRecord{
		ID:        uuid.NewString(),
		Scenario:  sc.Name,
		StartedAt: s.clock.Now(),
	}
	ctx, span := s.tracer.Start(ctx, "run")
	defer func() {
		duration := record.FinishedAt.Sub(record.StartedAt)
		s.metrics.Observe(ctx, "run", err == nil, duration)
		span.End(err)
		entry := AuditEntry{
			Operation:  "run",
			Status:     AuditStatusSuccess,
			RunID:      record.ID,
			Scenario:   sc.Name,
			Duration:   duration,
			OccurredAt: record.FinishedAt,
		}
		if err != nil {
			entry.Status = AuditStatusError
			entry.Error = err.Error()
		}
		s.audit.Record(ctx, entry)
	}()

	s.logger.Info("run started", "run", record.ID, "scenario", sc.Name, "operations", len(sc.Operations))
	sim = NewSimulation(NewEngine(s.logger, s.metrics, s.workers), s.rules)
	sim.tracer = s.tracer
	runErr := sim.Run(ctx, sc, inv, s)

	record.FinishedAt = s.clock.Now()
	record.Steps = stepRecords(sim.Steps())
	record.Violations = sim.Violations()
	if runErr != nil {
		s.logger.Error("run failed", "run", record.ID, "steps", len(record.Steps), "error", runErr)
		return sim, record, runErr
	}
	if err := s.store.SaveRun(ctx, record); err != nil {
		return sim, record, fmt.Errorf("save run %s: %w", record.ID, err)
	}
	s.logger.Info("run finished", "run", record.ID, "steps", len(record.Steps),
		"violations", len(record.Violations), "elapsed", record.FinishedAt.Sub(record.StartedAt))
	return sim, record, nil
}

// GetRun loads a stored run.
func (s *Service) GetRun(ctx context.Context, id string) (domain.RunRecord, bool, error) {
	return s.store.GetRun(ctx, id)
}

// ListRuns returns the stored run history.
func (s *Service) ListRuns(ctx context.Context) ([]domain.RunRecord, error) {
	return s.store.ListRuns(ctx)
}

func stepRecords(steps []*Step) []domain.StepRecord {
	out := make([]domain.StepRecord, 0, len(steps))
	for _, step := range steps {
		rec := domain.StepRecord{
			ID:          step.ID,
			Operation:   string(step.Kind),
			Description: step.Description,
			Age:         step.Age,
			Years:       step.Years,
		}
		for _, plot := range step.Inventory.Plots() {
			rec.Plots = append(rec.Plots, domain.SnapshotPlot(plot, step.Inventory.ShouldPrint(plot.ID)))
		}
		out = append(out, rec)
	}
	return out
}
