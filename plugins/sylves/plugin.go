package sylves

import (
	"context"
	"fmt"

	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

// Key is the model key scenarios use to select this model.
const Key = "psylvestris_stand_sylves"

// Plugin installs the SILVES stand model.
type Plugin struct{}

func (Plugin) Name() string    { return "sylves" }
func (Plugin) Version() string { return "1.0.0" }

func (Plugin) Register(registry pluginapi.Registry) error {
	if err := registry.RegisterStandModel(Key, Model{}); err != nil {
		return err
	}
	registry.RegisterRule(stepRule{})
	return nil
}

// stepRule warns when growth steps differ from the calibrated length or a
// thinning spans time.
type stepRule struct{}

func (stepRule) Name() string { return "sylves_step_length" }

func (r stepRule) Evaluate(_ context.Context, view domain.RuleView) (domain.Result, error) {
	var res domain.Result
	if view.ModelKey() != Key {
		return res, nil
	}
	var msg string
	switch {
	case view.Operation() == "EXECUTION" && view.Years() != CalibratedYears:
		msg = fmt.Sprintf("SILVES is calibrated for %d year steps, got %g", CalibratedYears, view.Years())
	case view.Operation() == "HARVEST" && view.Years() != 0:
		msg = fmt.Sprintf("SILVES thinnings are instantaneous, got %g years", view.Years())
	default:
		return res, nil
	}
	res.Violations = append(res.Violations, domain.Violation{
		Rule:     r.Name(),
		Severity: domain.SeverityWarn,
		Message:  msg,
	})
	return res, nil
}
