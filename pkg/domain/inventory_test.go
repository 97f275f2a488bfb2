package domain

import (
	"context"
	"errors"
	"testing"
	"time"
)

func plotAged(id int, age float64) *Plot {
	p := NewPlot(id)
	p.Age = age
	return p
}

func TestInventoryOrderAndPrintable(t *testing.T) {
	inv := NewInventory(time.Now())
	inv.AddPlot(plotAged(3, 10), true)
	inv.AddPlot(plotAged(1, 20), false)
	inv.AddPlot(plotAged(3, 15), true)

	ids := inv.PlotIDs()
	if len(ids) != 2 || ids[0] != 3 || ids[1] != 1 {
		t.Fatalf("unexpected order %v", ids)
	}
	if p, _ := inv.Plot(3); p.Age != 15 {
		t.Fatalf("expected replacement in place")
	}
	if !inv.ShouldPrint(3) || inv.ShouldPrint(1) || inv.ShouldPrint(42) {
		t.Fatalf("printable flags wrong")
	}
	if _, err := inv.Tree(42, 1); err == nil {
		t.Fatalf("expected missing plot error")
	}
}

func TestCorrectPlotsAdvancesAndCarriesOver(t *testing.T) {
	prev := NewInventory(time.Now())
	prev.AddPlot(plotAged(1, 15), true)
	kept := plotAged(2, 55)
	prev.AddPlot(kept, true)
	dropped := plotAged(3, 60)
	if err := dropped.AddTree(&Tree{PlotID: 3, TreeID: 1, Expan: 10}); err != nil {
		t.Fatalf("add tree: %v", err)
	}
	prev.AddPlot(dropped, true)

	next := NewInventory(time.Now())
	next.AddPlot(plotAged(2, 55), true)
	next.CorrectPlots(prev, AgeGate{Min: 20, Max: 100}, 10)

	if next.Len() != 3 {
		t.Fatalf("expected 3 plots after correction, got %d", next.Len())
	}
	p1, _ := next.Plot(1)
	if p1.Age != 15 || next.ShouldPrint(1) {
		t.Fatalf("out-of-gate plot should keep age and be hidden: age=%v", p1.Age)
	}
	p2, _ := next.Plot(2)
	if p2.Age != 65 || !next.ShouldPrint(2) {
		t.Fatalf("in-gate plot should advance: age=%v", p2.Age)
	}
	p3, _ := next.Plot(3)
	if p3.Age != 70 || next.ShouldPrint(3) {
		t.Fatalf("carried plot should advance once: age=%v", p3.Age)
	}
	if len(p3.Trees()) != 1 || p3.Trees()[0] == dropped.Trees()[0] {
		t.Fatalf("carried plot must own cloned trees")
	}
	if dropped.Age != 60 {
		t.Fatalf("previous inventory mutated")
	}
}

func TestAgeGateBoundsInclusive(t *testing.T) {
	g := AgeGate{Min: 20, Max: 100}
	for age, want := range map[float64]bool{19.9: false, 20: true, 55: true, 100: true, 100.1: false} {
		if g.Contains(age) != want {
			t.Fatalf("age %v: want %v", age, want)
		}
	}
	if !DefaultAgeGate().Contains(0) || !DefaultAgeGate().Contains(1000) {
		t.Fatalf("default gate too narrow")
	}
}

func TestSelectAndOrder(t *testing.T) {
	dead := &Tree{TreeID: 4, DBH: 50, Status: StatusDead}
	trees := []*Tree{
		{TreeID: 1, DBH: 20},
		{TreeID: 2, DBH: 35},
		{TreeID: 3, DBH: 20},
		dead,
	}
	got, err := SelectAndOrder(trees, Criteria{Where: []Condition{AliveOnly()}, OrderBy: ByDBH(true)})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 3 || got[0].TreeID != 2 || got[1].TreeID != 1 || got[2].TreeID != 3 {
		t.Fatalf("unexpected order %v", got)
	}

	got, err = SelectAndOrder(trees, Criteria{
		Where:   []Condition{{Field: "dbh", Op: GreaterEqual, Value: 20}, {Field: "dbh", Op: Less, Value: 50}},
		OrderBy: &Order{Field: "missing_field"},
	})
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if len(got) != 3 || got[0].TreeID != 1 {
		t.Fatalf("unknown order field should keep input order, got %v", got)
	}

	if _, err := SelectAndOrder(trees, Criteria{Where: []Condition{{Field: "nope", Op: Equal, Value: 1}}}); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("expected unknown field error, got %v", err)
	}
}

type staticRule struct {
	name string
	err  error
}

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, RuleView) (Result, error) {
	if r.err != nil {
		return Result{}, r.err
	}
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type emptyView struct{}

func (emptyView) Operation() string                  { return "EXECUTION" }
func (emptyView) ModelKey() string                   { return "" }
func (emptyView) Years() float64                     { return 5 }
func (emptyView) ListPlots() []*Plot                 { return nil }
func (emptyView) FindPlot(int) (*Plot, bool)         { return nil, false }
func (emptyView) FindPreviousPlot(int) (*Plot, bool) { return nil, false }

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{name: "warn"})
	engine.Register(nil)
	res, err := engine.Evaluate(context.Background(), emptyView{})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 1 || res.HasBlocking() {
		t.Fatalf("unexpected result %+v", res)
	}
	res.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock, Message: "bad"}}})
	if !res.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	if msg := (RuleViolationError{Result: res}).Error(); msg != "step blocked by rule block: bad" {
		t.Fatalf("unexpected message %q", msg)
	}

	engine.Register(staticRule{name: "broken", err: errors.New("boom")})
	if _, err := engine.Evaluate(context.Background(), emptyView{}); err == nil {
		t.Fatalf("expected rule error")
	}
}

