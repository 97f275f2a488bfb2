package harvest

import (
	"fmt"

	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

// Registry keys of the built-in harvest models.
const (
	KeyByTallest  = "cut_down_by_tallest"
	KeyBySmallest = "cut_down_by_smallest"
	KeySystematic = "cut_down_systematic"
)

// Report labels of the built-in harvest models.
const (
	NameByTallest  = "Cut Down by Tallest"
	NameBySmallest = "Cut Down by Smallest"
	NameSystematic = "Systematics cut down"
)

func validatePercent(quantity float64) error {
	if quantity < 0 || quantity > 100 {
		return fmt.Errorf("harvest: cut quantity %g outside [0,100]", quantity)
	}
	return nil
}

func aliveByDBH(plot *domain.Plot, desc bool) ([]*domain.Tree, error) {
	return domain.SelectAndOrder(plot.Trees(), domain.Criteria{
		Where:   []domain.Condition{domain.AliveOnly()},
		OrderBy: domain.ByDBH(desc),
	})
}

func addAll(plot *domain.Plot, trees ...*domain.Tree) error {
	for _, t := range trees {
		if err := plot.AddTree(t); err != nil {
			return err
		}
	}
	return nil
}

// Ordered scans alive trees by diameter and keeps them until the strategy
// threshold is reached. The boundary tree is split and every later tree in the
// scan is cut in full.
type Ordered struct {
	name     string
	desc     bool
	strategy Strategy
}

// NewByTallest keeps the largest diameters and cuts from below.
func NewByTallest(method pluginapi.CutMethod) (pluginapi.HarvestModel, error) {
	s, err := NewStrategy(method)
	if err != nil {
		return nil, err
	}
	return &Ordered{name: NameByTallest, desc: true, strategy: s}, nil
}

// NewBySmallest keeps the smallest diameters and cuts from above.
func NewBySmallest(method pluginapi.CutMethod) (pluginapi.HarvestModel, error) {
	s, err := NewStrategy(method)
	if err != nil {
		return nil, err
	}
	return &Ordered{name: NameBySmallest, desc: false, strategy: s}, nil
}

func (m *Ordered) Name() string { return m.name }

// Method reports the cut method the model was built for.
func (m *Ordered) Method() pluginapi.CutMethod { return m.strategy.Method() }

func (m *Ordered) Apply(plot *domain.Plot, _ int, quantity float64) (*domain.Plot, error) {
	if err := validatePercent(quantity); err != nil {
		return nil, err
	}
	trees, err := aliveByDBH(plot, m.desc)
	if err != nil {
		return nil, err
	}
	next := plot.Clone(false)
	threshold := m.strategy.Threshold(trees, quantity)

	var (
		accumulated float64
		cutRest     bool
	)
	for _, tree := range trees {
		accumulated += m.strategy.Accumulate(tree)
		if cutRest {
			cut := tree.Clone()
			cut.Status = domain.StatusCut
			if err := addAll(next, cut); err != nil {
				return nil, err
			}
			continue
		}

		kept := tree.Clone()
		if accumulated >= threshold {
			cutRest = true
			removed := m.strategy.ExcessExpan(tree, accumulated, threshold)
			if removed > tree.Expan {
				removed = tree.Expan
			}
			if removed > 0 {
				cut := tree.Clone()
				cut.Status = domain.StatusCut
				cut.Expan = removed
				kept.Expan -= removed
				if err := addAll(next, cut); err != nil {
					return nil, err
				}
			}
		}
		if kept.Expan > 0 {
			if err := addAll(next, kept); err != nil {
				return nil, err
			}
		}
	}
	return next, nil
}

// Systematic removes the same share of expan from every alive tree.
type Systematic struct{}

// NewSystematic ignores the cut method: the share is always a percent of
// expan per tree.
func NewSystematic(pluginapi.CutMethod) (pluginapi.HarvestModel, error) {
	return Systematic{}, nil
}

func (Systematic) Name() string { return NameSystematic }

func (Systematic) Apply(plot *domain.Plot, _ int, quantity float64) (*domain.Plot, error) {
	if err := validatePercent(quantity); err != nil {
		return nil, err
	}
	trees, err := aliveByDBH(plot, false)
	if err != nil {
		return nil, err
	}
	next := plot.Clone(false)
	for _, tree := range trees {
		kept := tree.Clone()
		kept.Expan = tree.Expan * (100 - quantity) / 100
		if err := addAll(next, kept); err != nil {
			return nil, err
		}
		cut := tree.Clone()
		cut.Status = domain.StatusCut
		cut.Expan = tree.Expan - kept.Expan
		if cut.Expan > 0 {
			if err := addAll(next, cut); err != nil {
				return nil, err
			}
		}
	}
	return next, nil
}

// Plugin installs the built-in harvest models.
type Plugin struct{}

func (Plugin) Name() string    { return "harvest" }
func (Plugin) Version() string { return "1.0.0" }

func (Plugin) Register(registry pluginapi.Registry) error {
	for key, factory := range map[string]pluginapi.HarvestFactory{
		KeyByTallest:  NewByTallest,
		KeyBySmallest: NewBySmallest,
		KeySystematic: NewSystematic,
	} {
		if err := registry.RegisterHarvestModel(key, factory); err != nil {
			return err
		}
	}
	return nil
}
