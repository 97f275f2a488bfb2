package core

import (
	"fmt"
	"strings"

	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

// OperationKind tags a scenario operation.
type OperationKind string

const (
	OperationLoad      OperationKind = "LOAD"
	OperationInit      OperationKind = "INIT"
	OperationExecution OperationKind = "EXECUTION"
	OperationHarvest   OperationKind = "HARVEST"
)

// ParseOperationKind resolves a scenario operation tag, ignoring case.
func ParseOperationKind(raw string) (OperationKind, error) {
	kind := OperationKind(strings.ToUpper(strings.TrimSpace(raw)))
	switch kind {
	case OperationLoad, OperationInit, OperationExecution, OperationHarvest:
		return kind, nil
	}
	return "", fmt.Errorf("unknown operation %q", raw)
}

// Operation is one immutable scenario step.
type Operation struct {
	Kind        OperationKind
	ModelKey    string
	Description string
	// Time is the step length in years.
	Time int
	// Init is the starting age of the first step.
	Init      float64
	Gate      domain.AgeGate
	CutMethod pluginapi.CutMethod
	// Quantity is the harvest percentage.
	Quantity float64
	// Inventory names the source read by a LOAD operation.
	Inventory string
}

// Years returns Time as a float for age arithmetic.
func (o Operation) Years() float64 { return float64(o.Time) }

// CutLabel is the report label of the cut method, "Empty" when the operation
// carries none.
func (o Operation) CutLabel() string { return o.CutMethod.Label() }

// Scenario is the ordered operation list of one simulation.
type Scenario struct {
	Name       string
	Operations []Operation
}
