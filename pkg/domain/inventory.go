package domain

import (
	"fmt"
	"time"
)

// Default age gate bounds applied when an operation does not set them.
const (
	DefaultMinAge = 0
	DefaultMaxAge = 1000
)

// AgeGate restricts an operation to plots whose age lies in [Min, Max].
type AgeGate struct {
	Min float64
	Max float64
}

// DefaultAgeGate admits every realistic stand age.
func DefaultAgeGate() AgeGate { return AgeGate{Min: DefaultMinAge, Max: DefaultMaxAge} }

// Contains reports whether age lies inside the gate, bounds included.
func (g AgeGate) Contains(age float64) bool { return g.Min <= age && age <= g.Max }

// Inventory is an ordered set of plots. Once attached to a completed step it
// must not be mutated; clone plots before moving forward.
type Inventory struct {
	Date time.Time

	plots     map[int]*Plot
	order     []int
	printable map[int]bool
}

// NewInventory returns an empty inventory stamped with the given date.
func NewInventory(date time.Time) *Inventory {
	return &Inventory{
		Date:      date,
		plots:     make(map[int]*Plot),
		printable: make(map[int]bool),
	}
}

// AddPlot stores the plot, replacing an existing plot with the same id in place.
func (inv *Inventory) AddPlot(plot *Plot, printable bool) {
	if _, exists := inv.plots[plot.ID]; !exists {
		inv.order = append(inv.order, plot.ID)
	}
	inv.plots[plot.ID] = plot
	inv.printable[plot.ID] = printable
}

// Plot returns the plot with the given id.
func (inv *Inventory) Plot(id int) (*Plot, bool) {
	p, ok := inv.plots[id]
	return p, ok
}

// Plots returns the plots in insertion order.
func (inv *Inventory) Plots() []*Plot {
	out := make([]*Plot, 0, len(inv.order))
	for _, id := range inv.order {
		out = append(out, inv.plots[id])
	}
	return out
}

// PlotIDs returns the plot ids in insertion order.
func (inv *Inventory) PlotIDs() []int {
	return append([]int(nil), inv.order...)
}

// Len returns the number of plots.
func (inv *Inventory) Len() int { return len(inv.order) }

// Empty reports whether the inventory holds no plots.
func (inv *Inventory) Empty() bool { return len(inv.order) == 0 }

// ShouldPrint reports whether the plot was produced by the step rather than
// carried over to fill a gap. Unknown ids are not printable.
func (inv *Inventory) ShouldPrint(id int) bool { return inv.printable[id] }

// Tree finds a living tree in a plot.
func (inv *Inventory) Tree(plotID, treeID int) (*Tree, error) {
	p, ok := inv.plots[plotID]
	if !ok {
		return nil, fmt.Errorf("inventory: plot %d not found", plotID)
	}
	t, ok := p.Tree(treeID)
	if !ok {
		return nil, fmt.Errorf("inventory: tree %d not found in plot %d", treeID, plotID)
	}
	return t, nil
}

// CorrectPlots advances the ages of this inventory against its predecessor.
// For each plot of prev, the step length applies only when the previous age
// lies inside the gate. Plots dropped by the step are carried over as full
// clones of their previous state and flagged as not printable.
func (inv *Inventory) CorrectPlots(prev *Inventory, gate AgeGate, years float64) {
	if prev == nil {
		return
	}
	for _, old := range prev.Plots() {
		var delta float64
		if gate.Contains(old.Age) {
			delta = years
		}
		if cur, ok := inv.plots[old.ID]; ok {
			cur.Age += delta
			continue
		}
		carried := old.Clone(true)
		carried.Age += delta
		inv.AddPlot(carried, false)
	}
}

// TotalExpan sums the alive expan of every plot.
func (inv *Inventory) TotalExpan() float64 {
	var sum float64
	for _, p := range inv.Plots() {
		for _, t := range p.Trees() {
			sum += t.Expan
		}
	}
	return sum
}
