// Package psylvestris implements the Pinus sylvestris individual-tree growth
// model for the Sistema Ibérico Meridional (iuFOR, University of Valladolid).
// It is calibrated for 5-year steps.
package psylvestris

import (
	"errors"
	"fmt"
	"math"

	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

// CalibratedYears is the step length the equations were fitted for.
const CalibratedYears = 5

var errNoDiameter = errors.New("psylvestris: tree without diameter")

// Model is the Pinus sylvestris SIM tree model. It keeps no state.
type Model struct{}

var (
	_ pluginapi.TreeModel        = Model{}
	_ pluginapi.CriteriaProvider = Model{}
)

// SelectionCriteria visits trees from the largest diameter down, the order
// basal area of larger trees (BAL) is accumulated in.
func (Model) SelectionCriteria() domain.Criteria {
	return domain.Criteria{OrderBy: domain.ByDBH(true)}
}

func byDiameterDesc(plot *domain.Plot) ([]*domain.Tree, error) {
	return domain.SelectAndOrder(plot.Trees(), domain.Criteria{
		Where:   []domain.Condition{domain.AliveOnly()},
		OrderBy: domain.ByDBH(true),
	})
}

// SiteIndex returns the dominant height at a base age of 100 years (Bravo and
// Montero 2001).
func SiteIndex(dominantH, age float64) float64 {
	if age <= 0 {
		return 0
	}
	return dominantH * 0.8534446 / math.Pow(1-math.Exp(-0.270*age/10), 2.2779)
}

// Initialize fills heights and crowns missing from the inventory and derives
// the per-tree volume, wood use and biomass fields.
func (m Model) Initialize(plot *domain.Plot) error {
	if plot.Age > 0 {
		plot.SI = SiteIndex(plot.DominantH, plot.Age)
	}
	trees, err := byDiameterDesc(plot)
	if err != nil {
		return err
	}
	var bal float64
	for _, tree := range trees {
		if tree.DBH <= 0 {
			return fmt.Errorf("%w: tree %d", errNoDiameter, tree.TreeID)
		}
		bal = basalArea(tree, bal)
		if tree.Height == 0 {
			tree.Height = (13 + (27.0392+1.4853*plot.DominantH*10-0.1437*plot.QMDBH*10)*
				math.Exp(-8.0048/math.Sqrt(tree.DBH*10))) / 10
		}
		tree.HDRatio = tree.Height * 100 / tree.DBH
		crown(tree, plot, true)
		derived(tree)
	}
	plotTotals(plot)
	return nil
}

// basalArea sets the section and BAL fields of tree and returns the
// accumulated BAL (m2/ha) including it.
func basalArea(tree *domain.Tree, bal float64) float64 {
	tree.BAL = bal
	tree.BasalArea = math.Pi * (tree.DBH / 2) * (tree.DBH / 2)
	tree.BAHa = tree.BasalArea * tree.Expan / 10000
	tree.NormalCircumference = math.Pi * tree.DBH
	return bal + tree.BAHa
}

// crown fills the Lizarralde et al. (2004) crown variables. During
// initialization measured values are kept.
func crown(tree *domain.Tree, plot *domain.Plot, keepMeasured bool) {
	ba := plot.BasalArea
	if !keepMeasured || tree.HLCW == 0 {
		tree.HLCW = tree.Height / (1 + math.Exp(-0.0012*tree.Height*10-0.0102*tree.BAL-0.0168*ba))
	}
	if !keepMeasured || tree.HCB == 0 {
		tree.HCB = tree.HLCW / (1 + math.Exp(1.2425*(ba/(tree.Height*10))+0.0047*ba-0.5725*math.Log(ba)-0.0082*tree.BAL))
	}
	tree.CR = 1 - tree.HCB/tree.Height
	tree.LCW = 0.1 * (0.2518 * tree.DBH * 10) * math.Pow(tree.CR, 0.2386+0.0046*(tree.Height-tree.HCB)*10)
}

func derived(tree *domain.Tree) {
	volume(tree)
	merchantable(tree)
	biomass(tree)
}

// Survives is the competition-induced mortality of Bravo-Oviedo et al. (2006).
func (Model) Survives(_ int, plot *domain.Plot, tree *domain.Tree) (float64, error) {
	if tree.DBH <= 0 {
		return 0, fmt.Errorf("%w: tree %d", errNoDiameter, tree.TreeID)
	}
	var cv float64
	if plot.MeanDBH > 0 {
		cv = math.Sqrt(math.Max(0, plot.QMDBH*plot.QMDBH-plot.MeanDBH*plot.MeanDBH)) / plot.MeanDBH
	}
	return 1 / (1 + math.Exp(-6.8548+9.792/tree.DBH+0.121*tree.BAL*cv+0.037*plot.SI)), nil
}

// Grow applies the Lizarralde (2008) diameter and height increments.
func (Model) Grow(_ int, plot *domain.Plot, prev, next *domain.Tree) error {
	if prev.DBH <= 0 {
		return fmt.Errorf("%w: tree %d", errNoDiameter, prev.TreeID)
	}
	var dbhInc float64
	if plot.SI != 0 {
		logD := math.Log(prev.DBH * 10)
		dbhInc = math.Exp(-0.37110 + 0.2525*logD + 0.7090*math.Log((prev.CR+0.2)/1.2) +
			0.9087*math.Log(plot.SI) - 0.1545*math.Sqrt(plot.BasalArea) - 0.0004*(prev.BAL*prev.BAL/logD))
	}
	next.DBH += dbhInc / 10

	var hInc float64
	if dbhInc != 0 {
		hInc = math.Exp(3.1222 - 0.4939*math.Log(dbhInc*10) + 1.3763*math.Log(plot.SI) -
			0.0061*prev.BAL + 0.1876*math.Log(prev.CR))
	}
	next.Height += hInc / 100
	return nil
}

// AddTree is the ingrowth model of Bravo et al. (2008): basal area (m2/ha)
// enters only when the ingrowth probability reaches 0.43.
func (Model) AddTree(_ int, plot *domain.Plot) (float64, error) {
	prob := 1 / (1 + math.Exp(-(8.2739 - 0.3022*plot.QMDBH)))
	if prob < 0.43 {
		return 0, nil
	}
	return math.Max(0, 5.7855-0.1703*plot.QMDBH), nil
}

// NewTreeDistribution splits the ingrowth over three diameter classes.
func (Model) NewTreeDistribution(_ int, _ *domain.Plot, area float64) ([]pluginapi.DiameterClass, error) {
	return []pluginapi.DiameterClass{
		{Min: 0, Max: 12.5, Area: 0.0384 * area},
		{Min: 12.5, Max: 22.5, Area: 0.2718 * area},
		{Min: 22.5, Max: math.MaxFloat64, Area: 0.6898 * area},
	}, nil
}

// ProcessPlot recomputes the derived fields of every alive tree after growth.
func (Model) ProcessPlot(_ int, plot *domain.Plot, _ []*domain.Tree) error {
	trees, err := byDiameterDesc(plot)
	if err != nil {
		return err
	}
	var bal float64
	for _, tree := range trees {
		if tree.DBH <= 0 {
			continue
		}
		bal = basalArea(tree, bal)
		tree.HDRatio = tree.Height * 100 / tree.DBH
		crown(tree, plot, false)
		derived(tree)
	}
	plotTotals(plot)
	return nil
}
