// Package harvest implements the tree-level thinning models: three cut
// strategies combined with tallest-first, smallest-first and systematic
// removal.
package harvest

import (
	"fmt"

	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

// Strategy measures how much of a stand a scan has covered.
type Strategy interface {
	Method() pluginapi.CutMethod
	// Threshold is the accumulated amount kept standing for a cut of percent.
	Threshold(trees []*domain.Tree, percent float64) float64
	// Accumulate is the amount a single tree adds to the scan.
	Accumulate(tree *domain.Tree) float64
	// ExcessExpan converts the overshoot of the boundary tree past the
	// threshold back into expan, which is the part of that tree to remove.
	ExcessExpan(tree *domain.Tree, accumulated, threshold float64) float64
}

// NewStrategy returns the strategy for a cut method.
func NewStrategy(method pluginapi.CutMethod) (Strategy, error) {
	switch method {
	case pluginapi.CutPercentOfTrees:
		return percentOfTrees{}, nil
	case pluginapi.CutVolume:
		return volume{}, nil
	case pluginapi.CutArea:
		return area{}, nil
	}
	return nil, fmt.Errorf("harvest: unsupported cut method %q", method)
}

func keptShare(total, percent float64) float64 {
	return total * (100 - percent) / 100
}

func sum(trees []*domain.Tree, f func(*domain.Tree) float64) float64 {
	var s float64
	for _, t := range trees {
		s += f(t)
	}
	return s
}

// excess rescales the overshoot by the tree's own contribution.
func excess(tree *domain.Tree, contribution, accumulated, threshold float64) float64 {
	if contribution == 0 {
		return 0
	}
	return (accumulated - threshold) / contribution * tree.Expan
}

type percentOfTrees struct{}

func (percentOfTrees) Method() pluginapi.CutMethod { return pluginapi.CutPercentOfTrees }

func (s percentOfTrees) Threshold(trees []*domain.Tree, percent float64) float64 {
	return keptShare(sum(trees, s.Accumulate), percent)
}

func (percentOfTrees) Accumulate(t *domain.Tree) float64 { return t.Expan }

func (percentOfTrees) ExcessExpan(_ *domain.Tree, accumulated, threshold float64) float64 {
	return accumulated - threshold
}

type volume struct{}

func (volume) Method() pluginapi.CutMethod { return pluginapi.CutVolume }

func (s volume) Threshold(trees []*domain.Tree, percent float64) float64 {
	return keptShare(sum(trees, s.Accumulate), percent)
}

func (volume) Accumulate(t *domain.Tree) float64 { return t.Vol * t.Expan }

func (s volume) ExcessExpan(t *domain.Tree, accumulated, threshold float64) float64 {
	return excess(t, s.Accumulate(t), accumulated, threshold)
}

type area struct{}

func (area) Method() pluginapi.CutMethod { return pluginapi.CutArea }

func (s area) Threshold(trees []*domain.Tree, percent float64) float64 {
	return keptShare(sum(trees, s.Accumulate), percent)
}

func (area) Accumulate(t *domain.Tree) float64 { return t.BasalArea * t.Expan / 10000 }

func (s area) ExcessExpan(t *domain.Tree, accumulated, threshold float64) float64 {
	return excess(t, s.Accumulate(t), accumulated, threshold)
}
