package domain

import (
	"fmt"
	"sort"
)

// Comparison operators understood by Condition.
type Comparison string

const (
	Equal        Comparison = "=="
	Greater      Comparison = ">"
	GreaterEqual Comparison = ">="
	Less         Comparison = "<"
	LessEqual    Comparison = "<="
)

// Condition is one filter clause over a tree field. A string Value compares
// against the status field; anything else compares numerically.
type Condition struct {
	Field string
	Op    Comparison
	Value any
}

// Order sorts by a single tree field.
type Order struct {
	Field string
	Desc  bool
}

// Criteria combines a conjunctive filter with an optional ordering.
type Criteria struct {
	Where   []Condition
	OrderBy *Order
}

// AliveOnly filters the living trees.
func AliveOnly() Condition {
	return Condition{Field: "status", Op: Equal, Value: string(StatusAlive)}
}

// ByDBH orders by diameter.
func ByDBH(desc bool) *Order { return &Order{Field: "dbh", Desc: desc} }

func (c Condition) matches(t *Tree) (bool, error) {
	if c.Field == "status" {
		want := toString(c.Value)
		got := string(t.Status)
		switch c.Op {
		case Equal:
			return got == want, nil
		default:
			return false, fmt.Errorf("status supports only %s, got %s", Equal, c.Op)
		}
	}
	got, err := t.Value(c.Field)
	if err != nil {
		return false, err
	}
	want, err := toFloat(c.Value)
	if err != nil {
		return false, fmt.Errorf("criteria %s: %w", c.Field, err)
	}
	switch c.Op {
	case Equal:
		return got == want, nil
	case Greater:
		return got > want, nil
	case GreaterEqual:
		return got >= want, nil
	case Less:
		return got < want, nil
	case LessEqual:
		return got <= want, nil
	}
	return false, fmt.Errorf("criteria %s: unknown operator %q", c.Field, c.Op)
}

// SelectAndOrder returns the trees that satisfy every condition, stably sorted
// when an order is given. Unknown sort fields compare as zero; unknown filter
// fields are reported as ErrUnknownField.
func SelectAndOrder(trees []*Tree, criteria Criteria) ([]*Tree, error) {
	out := make([]*Tree, 0, len(trees))
	for _, t := range trees {
		keep := true
		for _, cond := range criteria.Where {
			ok, err := cond.matches(t)
			if err != nil {
				return nil, err
			}
			if !ok {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, t)
		}
	}
	if criteria.OrderBy == nil {
		return out, nil
	}
	field, desc := criteria.OrderBy.Field, criteria.OrderBy.Desc
	key := func(t *Tree) float64 {
		v, err := t.Value(field)
		if err != nil {
			return 0
		}
		return v
	}
	sort.SliceStable(out, func(i, j int) bool {
		if desc {
			return key(out[i]) > key(out[j])
		}
		return key(out[i]) < key(out[j])
	})
	return out, nil
}
