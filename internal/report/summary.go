// Package report renders per-plot simulation reports: a stand summary of
// every step transition, the plot aggregates per step and the tree lists.
package report

import (
	"math"

	"standsim/internal/core"
	"standsim/pkg/domain"
)

// Mass aggregates one group of trees. Optional figures are nil when the
// group does not report them or they cannot be derived.
type Mass struct {
	N  float64  `json:"n"`
	Dg *float64 `json:"dg,omitempty"`
	G  *float64 `json:"g,omitempty"`
	V  *float64 `json:"v,omitempty"`
}

// SummaryRow is one printed step transition.
type SummaryRow struct {
	Step      int     `json:"step"`
	Age       float64 `json:"age"`
	DominantH float64 `json:"dominant_h"`
	Before    Mass    `json:"before"`
	Harvested *Mass   `json:"harvested,omitempty"`
	After     *Mass   `json:"after,omitempty"`
	Dead      *Mass   `json:"dead,omitempty"`
	Ingrowth  *Mass   `json:"ingrowth,omitempty"`
}

// Summarize pairs every step of plotID with the following one:
//
//	INIT|EXECUTION -> EXECUTION  before, dead and ingrowth of the next step
//	INIT|EXECUTION -> HARVEST    before (plus dead and ingrowth after an
//	                             EXECUTION), harvested and after of the next
//	INIT|EXECUTION -> end        before, dead and ingrowth
//	HARVEST -> HARVEST           before, harvested and after of the next
//
// Other transitions print nothing. A row is printed only when the plot age
// lies inside the gate of the next operation.
func Summarize(steps []*core.Step, plotID int) []SummaryRow {
	var rows []SummaryRow
	for i, step := range steps {
		plot, ok := step.Inventory.Plot(plotID)
		if !ok {
			continue
		}
		var next *core.Step
		var nextPlot *domain.Plot
		gate := domain.DefaultAgeGate()
		if i+1 < len(steps) {
			next = steps[i+1]
			gate = next.Operation.Gate
			nextPlot, _ = next.Inventory.Plot(plotID)
		}
		if !gate.Contains(plot.Age) {
			continue
		}

		row := SummaryRow{Step: step.ID, Age: plot.Age, DominantH: plot.DominantH, Before: standing(plot)}
		var prev *SummaryRow
		if len(rows) > 0 {
			prev = &rows[len(rows)-1]
		}
		switch {
		case step.Kind == core.OperationHarvest && next != nil && next.Kind == core.OperationHarvest:
			row.harvest(nextPlot)
		case step.Kind != core.OperationInit && step.Kind != core.OperationExecution:
			continue
		case next == nil:
			row.losses(plot, prev)
		case next.Kind == core.OperationExecution:
			row.losses(nextPlot, prev)
		case next.Kind == core.OperationHarvest:
			if step.Kind == core.OperationExecution {
				row.losses(plot, prev)
			}
			row.harvest(nextPlot)
		default:
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// losses fills the dead and ingrowth groups from plot. Stand-level plots
// carry no trees; their dead density is the drop in standing density since
// the previous row, net of what that row harvested.
func (r *SummaryRow) losses(plot *domain.Plot, prev *SummaryRow) {
	if plot == nil {
		return
	}
	if len(plot.AllTrees()) > 0 {
		dead := treeMass(plot.DeadTrees())
		dead.G = nil
		r.Dead = &dead
		if added := plot.IngrowthTrees(); len(added) > 0 {
			in := treeMass(added)
			in.Dg, in.V = nil, nil
			r.Ingrowth = &in
		}
		return
	}
	if prev == nil {
		return
	}
	n := prev.Before.N - r.Before.N
	if prev.Harvested != nil {
		n -= prev.Harvested.N
	}
	r.Dead = &Mass{N: n}
}

// harvest fills the harvested and after groups from the plot left by the
// harvest. Stand-level harvests are the difference between before and after.
func (r *SummaryRow) harvest(after *domain.Plot) {
	if after == nil {
		return
	}
	left := standing(after)
	r.After = &left
	if len(after.AllTrees()) > 0 {
		cut := treeMass(after.CutTrees())
		cut.G = nil
		r.Harvested = &cut
		return
	}
	cut := Mass{N: r.Before.N - left.N}
	g := *r.Before.G - *left.G
	cut.Dg = quadraticDiameter(g, cut.N)
	v := *r.Before.V - *left.V
	cut.V = &v
	r.Harvested = &cut
}

func standing(plot *domain.Plot) Mass {
	return Mass{
		N:  plot.Density,
		Dg: ptr(plot.QMDBH),
		G:  ptr(plot.BasalArea),
		V:  ptr(plot.Vol),
	}
}

// treeMass sums expan, basal area (m2/ha) and volume (m3/ha) over trees.
func treeMass(trees []*domain.Tree) Mass {
	var n, g, v float64
	for _, t := range trees {
		n += t.Expan
		g += t.Expan * t.BasalArea / 10000
		v += t.Expan * t.Vol / 1000
	}
	return Mass{N: n, Dg: quadraticDiameter(g, n), G: &g, V: &v}
}

// quadraticDiameter is the diameter (cm) of the mean basal area tree, nil
// when it is undefined.
func quadraticDiameter(g, n float64) *float64 {
	if n <= 0 || g < 0 {
		return nil
	}
	return ptr(200 * math.Sqrt(g/math.Pi/n))
}

func ptr(v float64) *float64 { return &v }
