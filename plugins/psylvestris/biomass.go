package psylvestris

import (
	"math"

	"standsim/pkg/domain"
)

// biomass fills the Ruiz-Peinado et al. (2011) components (kg).
func biomass(tree *domain.Tree) {
	d, h := tree.DBH, tree.Height
	tree.WSW = 0.0154 * d * d * h
	tree.WThickB = 0
	if d > 37.5 {
		tree.WThickB = 0.540*(d-37.5)*(d-37.5) - 0.0119*(d-37.5)*(d-37.5)*h
	}
	tree.WB27 = 0.0295 * math.Pow(d, 2.742) * math.Pow(h, -0.899)
	tree.WTBL = 0.530 * math.Pow(d, 2.199) * math.Pow(h, -1.153)
	tree.WR = 0.130 * d * d
	tree.WT = tree.WSW + tree.WB27 + tree.WThickB + tree.WTBL + tree.WR
}

// plotTotals sums the wood uses (m3) and biomass (t) of the alive trees.
func plotTotals(plot *domain.Plot) {
	var uses [8]float64
	var wsw, wthickb, wb27, wtbl, wr, wt float64
	for _, t := range plot.Trees() {
		uses[0] += t.Unwinding
		uses[1] += t.Veneer
		uses[2] += t.SawBig
		uses[3] += t.SawSmall
		uses[4] += t.SawCanter
		uses[5] += t.Post
		uses[6] += t.Stake
		uses[7] += t.Chips
		wsw += t.WSW
		wthickb += t.WThickB
		wb27 += t.WB27
		wtbl += t.WTBL
		wr += t.WR
		wt += t.WT
	}
	plot.Unwinding, plot.Veneer = uses[0]/1000, uses[1]/1000
	plot.SawBig, plot.SawSmall, plot.SawCanter = uses[2]/1000, uses[3]/1000, uses[4]/1000
	plot.Post, plot.Stake, plot.Chips = uses[5]/1000, uses[6]/1000, uses[7]/1000

	plot.WSW = wsw / 1000
	plot.WThickB = wthickb / 1000
	plot.WB27 = wb27 / 1000
	plot.WTBL = wtbl / 1000
	plot.WR = wr / 1000
	plot.WT = wt / 1000
}
