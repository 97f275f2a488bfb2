package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

// Step is the outcome of one scenario operation. Its inventory is never
// mutated once the step is appended. HarvestModel holds the label of a
// tree-level harvest model and is empty for every other operation.
type Step struct {
	ID           int
	Kind         OperationKind
	Description  string
	Age          float64
	Gate         domain.AgeGate
	Years        float64
	HarvestModel string
	Quantity     float64
	ByMeans      string
	Operation    Operation
	Inventory    *domain.Inventory
}

// HasQuantity reports whether the step carries a cut quantity.
func (s *Step) HasQuantity() bool { return s.Kind == OperationHarvest }

// ModelResolver maps an operation to its model.
type ModelResolver interface {
	ResolveModel(op Operation) (Model, error)
}

// Simulation owns the ordered step history of one run.
type Simulation struct {
	engine  *Engine
	rules   *domain.RulesEngine
	logger  Logger
	tracer  Tracer
	metrics MetricsRecorder

	steps      []*Step
	violations []domain.Violation
}

// NewSimulation returns an empty simulation driven by engine. A nil rules
// engine disables step rules.
func NewSimulation(engine *Engine, rules *domain.RulesEngine) *Simulation {
	if rules == nil {
		rules = domain.NewRulesEngine()
	}
	return &Simulation{
		engine:  engine,
		rules:   rules,
		logger:  engine.logger,
		tracer:  noopTracer{},
		metrics: engine.metrics,
	}
}

// AddStep appends a step. The first step starts at op.Init with an empty
// gate; later steps advance the previous age by op.Time.
func (s *Simulation) AddStep(inv *domain.Inventory, op Operation, model Model) *Step {
	step := &Step{
		ID:          len(s.steps) + 1,
		Kind:        op.Kind,
		Description: op.Description,
		Years:       op.Years(),
		Quantity:    op.Quantity,
		ByMeans:     op.CutLabel(),
		Operation:   op,
		Inventory:   inv,
	}
	if last := s.Last(); last == nil {
		step.Age = op.Init
	} else {
		step.Age = last.Age + op.Years()
		step.Gate = op.Gate
	}
	if hm, ok := model.(pluginapi.HarvestModel); ok {
		step.HarvestModel = hm.Name()
	}
	s.steps = append(s.steps, step)
	return step
}

// Steps returns the step history in order.
func (s *Simulation) Steps() []*Step { return append([]*Step(nil), s.steps...) }

// Step returns the step at position i.
func (s *Simulation) Step(i int) (*Step, bool) {
	if i < 0 || i >= len(s.steps) {
		return nil, false
	}
	return s.steps[i], true
}

// First returns the first step or nil.
func (s *Simulation) First() *Step {
	if len(s.steps) == 0 {
		return nil
	}
	return s.steps[0]
}

// Last returns the last step or nil.
func (s *Simulation) Last() *Step {
	if len(s.steps) == 0 {
		return nil
	}
	return s.steps[len(s.steps)-1]
}

// Violations returns the non-blocking rule findings of all steps.
func (s *Simulation) Violations() []domain.Violation {
	return append([]domain.Violation(nil), s.violations...)
}

// Run executes the scenario over inv, the inventory read for its LOAD
// operation. Every operation appends exactly one step.
func (s *Simulation) Run(ctx context.Context, sc Scenario, inv *domain.Inventory, resolver ModelResolver) error {
	if inv == nil {
		return errors.New("simulation: nil inventory")
	}
	current := inv
	for _, op := range sc.Operations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if op.Kind == OperationLoad {
			s.AddStep(current, op, nil)
			continue
		}
		model, err := resolver.ResolveModel(op)
		if err != nil {
			return fmt.Errorf("operation %d (%s): %w", len(s.steps)+1, op.Kind, err)
		}
		next, err := s.apply(ctx, current, op, model)
		if err != nil {
			return fmt.Errorf("operation %d (%s): %w", len(s.steps)+1, op.Kind, err)
		}
		next.CorrectPlots(current, op.Gate, op.Years())

		res, err := s.rules.Evaluate(ctx, stepView{op: op, next: next, prev: current})
		if err != nil {
			return err
		}
		if res.HasBlocking() {
			return domain.RuleViolationError{Result: res}
		}
		for _, v := range res.Violations {
			s.logger.Warn("rule violation", "rule", v.Rule, "severity", string(v.Severity), "plot", v.PlotID, "message", v.Message)
		}
		s.violations = append(s.violations, res.Violations...)

		s.AddStep(next, op, model)
		current = next
	}
	return nil
}

func (s *Simulation) apply(ctx context.Context, inv *domain.Inventory, op Operation, model Model) (out *domain.Inventory, err error) {
	ctx, span := s.tracer.Start(ctx, "engine.apply")
	started := time.Now()
	defer func() {
		s.metrics.Observe(ctx, "engine.apply", err == nil, time.Since(started))
		span.End(err)
	}()
	return s.engine.Apply(ctx, inv, op, model)
}

type stepView struct {
	op   Operation
	next *domain.Inventory
	prev *domain.Inventory
}

func (v stepView) Operation() string                    { return string(v.op.Kind) }
func (v stepView) ModelKey() string                     { return normalizeKey(v.op.ModelKey) }
func (v stepView) Years() float64                       { return v.op.Years() }
func (v stepView) ListPlots() []*domain.Plot            { return v.next.Plots() }
func (v stepView) FindPlot(id int) (*domain.Plot, bool) { return v.next.Plot(id) }
func (v stepView) FindPreviousPlot(id int) (*domain.Plot, bool) {
	return v.prev.Plot(id)
}
