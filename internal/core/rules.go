package core

import (
	"context"
	"fmt"
	"math"

	"standsim/pkg/domain"
)

const expanTolerance = 1e-6

// NewDefaultRulesEngine builds a rules engine with the built-in step checks.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(StatusPartitionRule())
	engine.Register(ExpanConservationRule())
	return engine
}

type statusPartitionRule struct{}

// StatusPartitionRule blocks a step when a tree sits in a collection that
// does not match its status.
func StatusPartitionRule() domain.Rule { return statusPartitionRule{} }

func (statusPartitionRule) Name() string { return "status_partition" }

func (r statusPartitionRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	var res domain.Result
	for _, plot := range view.ListPlots() {
		groups := []struct {
			status domain.Status
			trees  []*domain.Tree
		}{
			{domain.StatusAlive, plot.Trees()},
			{domain.StatusDead, plot.DeadTrees()},
			{domain.StatusCut, plot.CutTrees()},
			{domain.StatusIngrowth, plot.IngrowthTrees()},
		}
		for _, g := range groups {
			for _, tree := range g.trees {
				if tree.Status != g.status {
					res.Violations = append(res.Violations, domain.Violation{
						Rule:     r.Name(),
						Severity: domain.SeverityBlock,
						PlotID:   plot.ID,
						Message:  fmt.Sprintf("tree %d with status %q stored as %q", tree.TreeID, tree.Status, g.status),
					})
				}
			}
		}
	}
	return res, nil
}

type expanConservationRule struct{}

// ExpanConservationRule warns when the expan of a tree-level step does not add
// up: alive plus dead (or cut) minus ingrowth must equal the alive expan the
// plot started with. Trees with no surviving share are dropped without a dead
// record, which this rule reports.
func ExpanConservationRule() domain.Rule { return expanConservationRule{} }

func (expanConservationRule) Name() string { return "expan_conservation" }

func (r expanConservationRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	var res domain.Result
	op := OperationKind(view.Operation())
	if op != OperationExecution && op != OperationHarvest {
		return res, nil
	}
	for _, plot := range view.ListPlots() {
		prev, ok := view.FindPreviousPlot(plot.ID)
		if !ok || len(prev.Trees()) == 0 || plot == prev {
			continue
		}
		before := sumExpan(prev.Trees())
		after := sumExpan(plot.Trees()) + sumExpan(plot.DeadTrees()) + sumExpan(plot.CutTrees()) - sumExpan(plot.IngrowthTrees())
		if len(plot.AllTrees()) == 0 {
			// stand-level plots carry no trees after growth
			continue
		}
		if math.Abs(before-after) > expanTolerance*math.Max(1, before) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityWarn,
				PlotID:   plot.ID,
				Message:  fmt.Sprintf("expan %.4f before step, %.4f accounted for after", before, after),
			})
		}
	}
	return res, nil
}

func sumExpan(trees []*domain.Tree) float64 {
	var s float64
	for _, t := range trees {
		s += t.Expan
	}
	return s
}
