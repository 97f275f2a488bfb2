// Package domain defines the stand records (trees, plots, inventories) and the
// selection and rule primitives shared by the simulator and its plugins.
package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrUnknownField is returned by string-keyed accessors when a name is not part
// of the fixed tree or plot schema.
var ErrUnknownField = errors.New("domain: unknown field")

// Status tags the lineage of a tree record within a plot.
type Status string

// Tree statuses. The empty string marks a living tree.
const (
	StatusAlive    Status = ""
	StatusDead     Status = "M"
	StatusCut      Status = "C"
	StatusIngrowth Status = "I"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusAlive, StatusDead, StatusCut, StatusIngrowth:
		return true
	}
	return false
}

// Tree is one tree record. Expan is the number of trees per hectare the record
// stands for; splitting a record must preserve the total expan mass.
type Tree struct {
	InventoryID int
	PlotID      int
	TreeID      int

	NumberOfTrees float64
	Specie        float64
	Quality       float64
	Shape         float64
	SpecialParam  float64
	Remarks       float64
	Age130        float64
	SocialClass   float64
	TreeAge       float64
	CoordX        float64
	CoordY        float64

	Expan               float64
	DBH1                float64
	DBH2                float64
	DBH                 float64
	StumpH              float64
	Height              float64
	Bark1               float64
	Bark2               float64
	Bark                float64
	NormalCircumference float64
	HDRatio             float64
	BasalArea           float64
	BAL                 float64
	BAHa                float64

	CR   float64
	LCW  float64
	HCB  float64
	HLCW float64

	Vol         float64
	BoleVol     float64
	BarkVol     float64
	FirewoodVol float64
	VolHa       float64

	WSW     float64
	WSB     float64
	WCork   float64
	WThickB float64
	WSTB    float64
	WB27    float64
	WB2T    float64
	WThinB  float64
	WB05    float64
	WL      float64
	WTBL    float64
	WBL07   float64
	WR      float64
	WT      float64

	Unwinding float64
	Veneer    float64
	SawBig    float64
	SawSmall  float64
	SawCanter float64
	Post      float64
	Stake     float64
	Chips     float64
	DBHOC     float64
	HUncork   float64
	NB        float64
	CorkCycle float64
	Status    Status
}

// NewTree returns a living tree with the given identity.
func NewTree(plotID, treeID int) *Tree {
	return &Tree{PlotID: plotID, TreeID: treeID}
}

// Clone returns an independent copy of the tree.
func (t *Tree) Clone() *Tree {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// Alive reports whether the tree carries the living status.
func (t *Tree) Alive() bool { return t.Status == StatusAlive }

// Value returns a numeric field by schema name. Integer fields are widened to
// float64. The status field is not numeric and yields ErrUnknownField.
func (t *Tree) Value(name string) (float64, error) {
	switch name {
	case "INVENTORY_ID":
		return float64(t.InventoryID), nil
	case "PLOT_ID":
		return float64(t.PlotID), nil
	case "TREE_ID":
		return float64(t.TreeID), nil
	case "status":
		return 0, fmt.Errorf("%w: status is not numeric", ErrUnknownField)
	}
	ptr, ok := treeFloatFields[name]
	if !ok {
		return 0, fmt.Errorf("%w: tree.%s", ErrUnknownField, name)
	}
	return *ptr(t), nil
}

// SetValue assigns a field by schema name, coercing the value per field kind:
// identifiers become integers, status becomes a string, everything else float64.
func (t *Tree) SetValue(name string, value any) error {
	switch name {
	case "INVENTORY_ID", "PLOT_ID", "TREE_ID":
		n, err := toInt(value)
		if err != nil {
			return fmt.Errorf("tree.%s: %w", name, err)
		}
		switch name {
		case "INVENTORY_ID":
			t.InventoryID = n
		case "PLOT_ID":
			t.PlotID = n
		default:
			t.TreeID = n
		}
		return nil
	case "status":
		s := Status(strings.TrimSpace(toString(value)))
		if !s.Valid() {
			return fmt.Errorf("tree.status: invalid value %q", s)
		}
		t.Status = s
		return nil
	}
	ptr, ok := treeFloatFields[name]
	if !ok {
		return fmt.Errorf("%w: tree.%s", ErrUnknownField, name)
	}
	f, err := toFloat(value)
	if err != nil {
		return fmt.Errorf("tree.%s: %w", name, err)
	}
	*ptr(t) = f
	return nil
}

// Add accumulates delta onto a numeric field.
func (t *Tree) Add(name string, delta float64) error {
	switch name {
	case "INVENTORY_ID", "PLOT_ID", "TREE_ID":
		cur, _ := t.Value(name)
		return t.SetValue(name, cur+delta)
	}
	ptr, ok := treeFloatFields[name]
	if !ok {
		return fmt.Errorf("%w: tree.%s", ErrUnknownField, name)
	}
	*ptr(t) += delta
	return nil
}

// Subtract removes delta from a numeric field.
func (t *Tree) Subtract(name string, delta float64) error {
	return t.Add(name, -delta)
}

// String renders the tree identity for log lines.
func (t *Tree) String() string {
	return fmt.Sprintf("tree %d/%d status=%q expan=%g", t.PlotID, t.TreeID, string(t.Status), t.Expan)
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, nil
		}
		f, err := strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", v, err)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unsupported value type %T", value)
	}
}

func toInt(value any) (int, error) {
	f, err := toFloat(value)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func toString(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case Status:
		return string(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
