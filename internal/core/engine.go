package core

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

// ErrUnsupportedOperation is returned when an operation kind cannot be applied
// with the resolved model.
var ErrUnsupportedOperation = errors.New("unsupported operation")

// Model is a resolved scenario model: a pluginapi.TreeModel,
// pluginapi.StandModel or pluginapi.HarvestModel.
type Model any

// Engine applies one operation to one inventory. Plots are independent within
// an operation, so they are processed concurrently; the output keeps the input
// plot order.
type Engine struct {
	logger  Logger
	metrics MetricsRecorder
	clock   Clock
	workers int
}

// NewEngine builds an engine. Nil collaborators fall back to no-ops and a
// non-positive worker count uses GOMAXPROCS.
func NewEngine(logger Logger, metrics MetricsRecorder, workers int) *Engine {
	if logger == nil {
		logger = noopLogger{}
	}
	if metrics == nil {
		metrics = noopMetricsRecorder{}
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{logger: logger, metrics: metrics, clock: systemClock{}, workers: workers}
}

// Apply dispatches on the operation kind and the model role.
func (e *Engine) Apply(ctx context.Context, inv *domain.Inventory, op Operation, model Model) (*domain.Inventory, error) {
	switch op.Kind {
	case OperationInit:
		switch m := model.(type) {
		case pluginapi.TreeModel:
			return e.InitializeTreeModel(ctx, inv, op, m)
		case pluginapi.StandModel:
			return e.InitializeStandModel(ctx, inv, op, m)
		}
	case OperationExecution:
		switch m := model.(type) {
		case pluginapi.TreeModel:
			return e.ApplyTreeModel(ctx, inv, op, m)
		case pluginapi.StandModel:
			return e.ApplyTreeStandModel(ctx, inv, op, m)
		}
	case OperationHarvest:
		switch m := model.(type) {
		case pluginapi.HarvestModel:
			return e.ApplyHarvestModel(ctx, inv, op, m)
		case pluginapi.StandModel:
			return e.ApplyHarvestStandModel(ctx, inv, op, m)
		}
	}
	return nil, fmt.Errorf("%w: %s with %T", ErrUnsupportedOperation, op.Kind, model)
}

type plotFunc func(ctx context.Context, plot *domain.Plot) (*domain.Plot, error)

// eachPlot runs fn for every plot. A plot whose fn fails is logged and left
// out of the result; only context cancellation aborts the operation.
func (e *Engine) eachPlot(ctx context.Context, inv *domain.Inventory, op Operation, gated bool, fn plotFunc) (*domain.Inventory, error) {
	plots := inv.Plots()
	results := make([]*domain.Plot, len(plots))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, plot := range plots {
		if gated && !op.Gate.Contains(plot.Age) {
			e.logger.Info("plot was not added", "plot", plot.ID, "age", plot.Age, "operation", string(op.Kind),
				"min_age", op.Gate.Min, "max_age", op.Gate.Max)
			continue
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			started := time.Now()
			next, err := fn(gctx, plot)
			e.metrics.Observe(gctx, "engine.plot", err == nil, time.Since(started))
			if err != nil {
				e.logger.Error("plot excluded", "plot", plot.ID, "operation", string(op.Kind), "error", err)
				return nil
			}
			results[i] = next
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := domain.NewInventory(e.clock.Now())
	for _, plot := range results {
		if plot != nil {
			out.AddPlot(plot, true)
		}
	}
	return out, nil
}

func (e *Engine) modelFailed(ctx context.Context, op Operation, plot *domain.Plot, call string, err error, attrs ...any) {
	e.metrics.Observe(ctx, "engine.model", false, 0)
	args := append([]any{"operation", string(op.Kind), "plot", plot.ID, "call", call, "error", err}, attrs...)
	e.logger.Error("model call failed", args...)
}

// InitializeTreeModel full-clones every plot, lets the model fill missing
// fields and recalculates the aggregates. No age gate applies.
func (e *Engine) InitializeTreeModel(ctx context.Context, inv *domain.Inventory, op Operation, model pluginapi.TreeModel) (*domain.Inventory, error) {
	return e.eachPlot(ctx, inv, op, false, func(ctx context.Context, plot *domain.Plot) (*domain.Plot, error) {
		next := plot.Clone(true)
		if err := model.Initialize(next); err != nil {
			e.modelFailed(ctx, op, plot, "initialize", err)
		}
		return next.Recalculate(), nil
	})
}

// InitializeStandModel full-clones every plot and lets the stand model derive
// its aggregates. The model owns the aggregates, so nothing is recalculated.
func (e *Engine) InitializeStandModel(ctx context.Context, inv *domain.Inventory, op Operation, model pluginapi.StandModel) (*domain.Inventory, error) {
	return e.eachPlot(ctx, inv, op, false, func(ctx context.Context, plot *domain.Plot) (*domain.Plot, error) {
		next := plot.Clone(true)
		if err := model.Initialize(next); err != nil {
			e.modelFailed(ctx, op, plot, "initialize", err)
		}
		return next, nil
	})
}

// ApplyTreeStandModel grows every gated plot with a stand model. A failing
// model leaves the cloned plot unchanged.
func (e *Engine) ApplyTreeStandModel(ctx context.Context, inv *domain.Inventory, op Operation, model pluginapi.StandModel) (*domain.Inventory, error) {
	return e.eachPlot(ctx, inv, op, true, func(ctx context.Context, plot *domain.Plot) (*domain.Plot, error) {
		next := plot.Clone(false)
		if err := model.ApplyGrowModel(plot, next, op.Time); err != nil {
			e.modelFailed(ctx, op, plot, "apply_grow_model", err)
		}
		return next, nil
	})
}

// ApplyHarvestStandModel thins every gated plot with a stand model. A failing
// model leaves the cloned plot unchanged and it is still reported.
func (e *Engine) ApplyHarvestStandModel(ctx context.Context, inv *domain.Inventory, op Operation, model pluginapi.StandModel) (*domain.Inventory, error) {
	return e.eachPlot(ctx, inv, op, true, func(ctx context.Context, plot *domain.Plot) (*domain.Plot, error) {
		next := plot.Clone(false)
		if err := model.ApplyCutDownModel(plot, next, op.CutMethod, op.Quantity, op.Time, op.Gate); err != nil {
			e.modelFailed(ctx, op, plot, "apply_cut_down_model", err)
		}
		return next, nil
	})
}

// ApplyHarvestModel thins every gated plot tree by tree. A failing harvest
// excludes the plot.
func (e *Engine) ApplyHarvestModel(ctx context.Context, inv *domain.Inventory, op Operation, model pluginapi.HarvestModel) (*domain.Inventory, error) {
	return e.eachPlot(ctx, inv, op, true, func(_ context.Context, plot *domain.Plot) (*domain.Plot, error) {
		next, err := model.Apply(plot, op.Time, op.Quantity)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", model.Name(), err)
		}
		return next.Recalculate(), nil
	})
}

// ApplyTreeModel runs survival, growth and ingrowth on every gated plot.
func (e *Engine) ApplyTreeModel(ctx context.Context, inv *domain.Inventory, op Operation, model pluginapi.TreeModel) (*domain.Inventory, error) {
	return e.eachPlot(ctx, inv, op, true, func(ctx context.Context, plot *domain.Plot) (*domain.Plot, error) {
		return e.growPlot(ctx, op, model, plot)
	})
}

func selectionCriteria(model pluginapi.TreeModel) domain.Criteria {
	criteria := domain.Criteria{}
	if cp, ok := model.(pluginapi.CriteriaProvider); ok {
		criteria = cp.SelectionCriteria()
	}
	criteria.Where = append([]domain.Condition{domain.AliveOnly()}, criteria.Where...)
	return criteria
}

func (e *Engine) growPlot(ctx context.Context, op Operation, model pluginapi.TreeModel, plot *domain.Plot) (*domain.Plot, error) {
	next := plot.Clone(false)
	source, err := domain.SelectAndOrder(plot.Trees(), selectionCriteria(model))
	if err != nil {
		return nil, fmt.Errorf("select trees: %w", err)
	}

	survivors := make([]*domain.Tree, 0, len(source))
	dead := make([]*domain.Tree, 0, len(source))
	for _, tree := range source {
		ratio, err := model.Survives(op.Time, next, tree)
		if err != nil {
			e.modelFailed(ctx, op, plot, "survives", err, "tree", tree.TreeID)
			ratio = 0
		}
		// A tree with no surviving share is dropped without a dead record.
		if ratio <= 0 {
			continue
		}
		survivor := tree.Clone()
		survivor.Expan = ratio * tree.Expan
		fragment := tree.Clone()
		fragment.Status = domain.StatusDead
		fragment.Expan = (1 - ratio) * tree.Expan
		if err := model.Grow(op.Time, next, tree, survivor); err != nil {
			e.modelFailed(ctx, op, plot, "grow", err, "tree", tree.TreeID)
		}
		survivors = append(survivors, survivor)
		dead = append(dead, fragment)
	}

	var added []*domain.Tree
	area, err := model.AddTree(op.Time, next)
	if err != nil {
		e.modelFailed(ctx, op, plot, "add_tree", err)
		area = 0
	}
	if area > 0 {
		classes, err := model.NewTreeDistribution(op.Time, next, area)
		if err != nil {
			e.modelFailed(ctx, op, plot, "new_tree_distribution", err)
		} else {
			survivors, added = DistributeIngrowth(survivors, area, classes)
		}
	}

	all := make([]*domain.Tree, 0, len(survivors)+len(dead)+len(added))
	all = append(all, survivors...)
	all = append(all, dead...)
	all = append(all, added...)
	for _, tree := range all {
		if err := next.AddTree(tree); err != nil {
			return nil, err
		}
	}
	if err := model.ProcessPlot(op.Time, next, all); err != nil {
		e.modelFailed(ctx, op, plot, "process_plot", err)
	}
	return next.Recalculate(), nil
}
