package pluginapi

import (
	"fmt"
	"strings"

	"standsim/pkg/domain"
)

// CutMethod selects the quantity a harvest accumulates while scanning trees.
type CutMethod string

// Supported cut methods, keyed as they appear in scenario files.
const (
	CutPercentOfTrees CutMethod = "PERCENTOFTREES"
	CutVolume         CutMethod = "VOLUME"
	CutArea           CutMethod = "AREA"
)

var cutLabels = map[CutMethod]string{
	CutPercentOfTrees: "Percent of trees",
	CutVolume:         "Volumen",
	CutArea:           "Area",
}

// CutMethods lists the supported methods in a stable order.
func CutMethods() []CutMethod {
	return []CutMethod{CutPercentOfTrees, CutVolume, CutArea}
}

// ParseCutMethod resolves a scenario key, ignoring case.
func ParseCutMethod(raw string) (CutMethod, error) {
	m := CutMethod(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := cutLabels[m]; !ok {
		return "", fmt.Errorf("unknown cut method %q", raw)
	}
	return m, nil
}

// Label is the report label of the method.
func (m CutMethod) Label() string {
	if l, ok := cutLabels[m]; ok {
		return l
	}
	return "Empty"
}

// DiameterClass is one ingrowth class: trees with Min <= dbh < Max share Area
// square metres per hectare of added basal area.
type DiameterClass struct {
	Min  float64
	Max  float64
	Area float64
}

// TreeModel is an individual-tree growth model. The engine calls a model from
// several goroutines at once, one plot per goroutine, so implementations must
// not keep per-plot state on the receiver.
type TreeModel interface {
	// Initialize fills missing measured fields of every tree and the plot
	// site indices.
	Initialize(plot *domain.Plot) error
	// Survives returns the surviving fraction of the tree expan for the step.
	Survives(years int, plot *domain.Plot, tree *domain.Tree) (float64, error)
	// Grow writes the diameter and height increment into next.
	Grow(years int, plot *domain.Plot, prev, next *domain.Tree) error
	// AddTree returns the ingrowth basal area (m2/ha); zero disables ingrowth.
	AddTree(years int, plot *domain.Plot) (float64, error)
	// NewTreeDistribution splits the ingrowth area into diameter classes. A nil
	// slice spreads it over every surviving tree.
	NewTreeDistribution(years int, plot *domain.Plot, area float64) ([]DiameterClass, error)
	// ProcessPlot recomputes per-tree derived fields after growth.
	ProcessPlot(years int, plot *domain.Plot, trees []*domain.Tree) error
}

// CriteriaProvider is implemented by tree models that need survivors visited
// in a specific order.
type CriteriaProvider interface {
	SelectionCriteria() domain.Criteria
}

// StandModel is a whole-stand model working on plot aggregates only.
type StandModel interface {
	Initialize(plot *domain.Plot) error
	ApplyGrowModel(prev, next *domain.Plot, years int) error
	ApplyCutDownModel(prev, next *domain.Plot, method CutMethod, quantity float64, years int, gate domain.AgeGate) error
}

// HarvestModel removes trees from a plot and returns the harvested plot with
// survivors alive and removed fragments tagged as cut.
type HarvestModel interface {
	Name() string
	Apply(plot *domain.Plot, years int, quantity float64) (*domain.Plot, error)
}

// HarvestFactory builds a harvest model for a cut method.
type HarvestFactory func(method CutMethod) (HarvestModel, error)
