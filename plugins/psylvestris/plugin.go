package psylvestris

import (
	"context"
	"fmt"

	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

// Key is the model key scenarios use to select this model.
const Key = "psylvestris_sim"

// Plugin installs the Pinus sylvestris SIM tree model.
type Plugin struct{}

func (Plugin) Name() string    { return "psylvestris" }
func (Plugin) Version() string { return "1.0.0" }

func (Plugin) Register(registry pluginapi.Registry) error {
	if err := registry.RegisterTreeModel(Key, Model{}); err != nil {
		return err
	}
	registry.RegisterRule(stepLengthRule{})
	return nil
}

type stepLengthRule struct{}

func (stepLengthRule) Name() string { return "psylvestris_step_length" }

// Evaluate warns about growth steps of this model whose length differs from
// the calibrated one.
func (r stepLengthRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	var res domain.Result
	if view.Operation() != "EXECUTION" || view.ModelKey() != Key || view.Years() == CalibratedYears {
		return res, nil
	}
	res.Violations = append(res.Violations, domain.Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityWarn,
		Message:  fmt.Sprintf("Pinus sylvestris SIM is calibrated for %d year steps, got %g", CalibratedYears, view.Years()),
	})
	return res, nil
}
