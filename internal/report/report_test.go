package report

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"standsim/internal/core"
	"standsim/internal/scenario"
	"standsim/pkg/domain"
)

type standState struct {
	age, density, qmdbh, ba, vol float64
}

func plotAt(id int, s standState, trees ...*domain.Tree) *domain.Plot {
	p := domain.NewPlot(id)
	p.Age, p.Density, p.QMDBH, p.BasalArea, p.Vol = s.age, s.density, s.qmdbh, s.ba, s.vol
	p.DominantH = 12
	for _, t := range trees {
		_ = p.AddTree(t)
	}
	return p
}

func tree(id int, status domain.Status, expan, ba, vol float64) *domain.Tree {
	t := domain.NewTree(1, id)
	t.Status, t.Expan, t.BasalArea, t.Vol = status, expan, ba, vol
	return t
}

func step(id int, kind core.OperationKind, printable bool, plots ...*domain.Plot) *core.Step {
	inv := domain.NewInventory(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	for _, p := range plots {
		inv.AddPlot(p, printable)
	}
	op := core.Operation{Kind: kind, Gate: domain.DefaultAgeGate()}
	s := &core.Step{ID: id, Kind: kind, Operation: op, Inventory: inv, ByMeans: op.CutLabel()}
	if kind == core.OperationHarvest {
		s.Quantity = 30
		s.HarvestModel = "Cut Down by Tallest"
	}
	return s
}

func treeSteps() []*core.Step {
	return []*core.Step{
		step(1, core.OperationInit, true, plotAt(1, standState{30, 500, 20, 15.7, 120},
			tree(1, domain.StatusAlive, 500, 314, 240))),
		step(2, core.OperationExecution, true, plotAt(1, standState{35, 490, 21, 17, 140},
			tree(1, domain.StatusAlive, 480, 346, 280),
			tree(1, domain.StatusDead, 20, 400, 300),
			tree(2, domain.StatusIngrowth, 10, 50, 0))),
		step(3, core.OperationHarvest, false, plotAt(1, standState{35, 460, 21, 16, 130},
			tree(1, domain.StatusAlive, 460, 346, 280),
			tree(1, domain.StatusCut, 30, 500, 400))),
	}
}

func near(t *testing.T, what string, got *float64, want float64) {
	t.Helper()
	if got == nil {
		t.Fatalf("%s: missing, want %v", what, want)
	}
	if math.Abs(*got-want) > 1e-3 {
		t.Fatalf("%s: got %v, want %v", what, *got, want)
	}
}

func TestSummarizeTreeLevel(t *testing.T) {
	rows := Summarize(treeSteps(), 1)
	if len(rows) != 2 {
		t.Fatalf("expected two rows, got %+v", rows)
	}
	first, second := rows[0], rows[1]
	if first.Step != 1 || first.Before.N != 500 || first.Harvested != nil || first.After != nil {
		t.Fatalf("unexpected first row %+v", first)
	}
	if first.Dead == nil || first.Dead.N != 20 || first.Dead.G != nil {
		t.Fatalf("unexpected dead group %+v", first.Dead)
	}
	near(t, "dead Dg", first.Dead.Dg, 22.5676)
	near(t, "dead V", first.Dead.V, 6)
	if first.Ingrowth == nil || first.Ingrowth.N != 10 || first.Ingrowth.Dg != nil {
		t.Fatalf("unexpected ingrowth %+v", first.Ingrowth)
	}
	near(t, "ingrowth G", first.Ingrowth.G, 0.05)

	if second.Step != 2 || second.Dead == nil || second.Dead.N != 20 {
		t.Fatalf("unexpected second row %+v", second)
	}
	if second.Harvested == nil || second.Harvested.N != 30 || second.After == nil || second.After.N != 460 {
		t.Fatalf("unexpected harvest groups %+v %+v", second.Harvested, second.After)
	}
	near(t, "harvested Dg", second.Harvested.Dg, 25.2313)
	near(t, "harvested V", second.Harvested.V, 12)
}

func TestSummarizeStandLevel(t *testing.T) {
	steps := []*core.Step{
		step(1, core.OperationInit, true, plotAt(1, standState{20, 1000, 15, 17.67, 80})),
		step(2, core.OperationExecution, true, plotAt(1, standState{25, 950, 17, 22, 110})),
		step(3, core.OperationHarvest, true, plotAt(1, standState{25, 700, 17.6, 17, 85})),
		step(4, core.OperationExecution, true, plotAt(1, standState{30, 680, 19, 20, 105})),
	}
	rows := Summarize(steps, 1)
	if len(rows) != 3 {
		t.Fatalf("expected three rows, got %d", len(rows))
	}
	if rows[0].Dead != nil {
		t.Fatalf("the first row has no previous density: %+v", rows[0].Dead)
	}
	if rows[1].Dead == nil || rows[1].Dead.N != 50 {
		t.Fatalf("unexpected dead density %+v", rows[1].Dead)
	}
	cut := rows[1].Harvested
	if cut == nil || cut.N != 250 {
		t.Fatalf("unexpected harvest %+v", cut)
	}
	near(t, "harvest Dg", cut.Dg, 15.9577)
	near(t, "harvest V", cut.V, 25)
	if rows[2].Step != 4 || rows[2].Dead == nil || rows[2].Dead.N != 20 {
		t.Fatalf("dead density must net out the previous harvest: %+v", rows[2])
	}
}

func TestSummarizeRespectsNextGate(t *testing.T) {
	steps := treeSteps()
	steps[1].Operation.Gate = domain.AgeGate{Min: 31, Max: 100}
	rows := Summarize(steps, 1)
	if len(rows) != 1 || rows[0].Step != 2 {
		t.Fatalf("the first transition is outside the gate: %+v", rows)
	}
	if len(Summarize(steps, 42)) != 0 {
		t.Fatal("unknown plot must not produce rows")
	}
}

func TestRenderWorkbook(t *testing.T) {
	cases := []struct {
		locale  string
		summary string
		plots   string
		node    string
		action  string
	}{
		{"en", "Summary", "Plots", "Node 1 - Trees", "Initialization"},
		{"es-ES", "Resumen", "Parcelas", "Nodo 1 - Pies", "Inicialización"},
	}
	for _, tc := range cases {
		out, err := Render(context.Background(), treeSteps(), Options{Scenario: "thinning", Locale: tc.locale, Decimals: 2})
		if err != nil {
			t.Fatalf("%s: render: %v", tc.locale, err)
		}
		if len(out) != 1 || out[0].Name != "Output_Plot_1.xlsx" {
			t.Fatalf("%s: unexpected artifacts %+v", tc.locale, out)
		}
		f, err := excelize.OpenReader(bytes.NewReader(out[0].Body))
		if err != nil {
			t.Fatalf("%s: open: %v", tc.locale, err)
		}
		sheets := map[string]bool{}
		for _, s := range f.GetSheetList() {
			sheets[s] = true
		}
		if !sheets[tc.summary] || !sheets[tc.plots] || !sheets[tc.node] || len(sheets) != 4 {
			t.Fatalf("%s: unexpected sheets %v", tc.locale, f.GetSheetList())
		}
		checks := []struct{ sheet, cell, want string }{
			{tc.summary, "A8", "30"},
			{tc.summary, "C8", "500"},
			{tc.summary, "N8", "20"},
			{tc.summary, "O8", "22.57"},
			{tc.summary, "G9", "30"},
			{tc.summary, "K4", "thinning"},
			{tc.plots, "E2", tc.action},
			{tc.plots, "H4", "30"},
		}
		for _, c := range checks {
			got, err := f.GetCellValue(c.sheet, c.cell)
			if err != nil || got != c.want {
				t.Fatalf("%s: %s!%s = %q (%v), want %q", tc.locale, c.sheet, c.cell, got, err, c.want)
			}
		}
		rows, err := f.GetRows(tc.node)
		if err != nil || len(rows) != 2 {
			t.Fatalf("%s: expected header plus one tree, got %d rows (%v)", tc.locale, len(rows), err)
		}
		_ = f.Close()
	}
}

func TestRenderJSONAndZip(t *testing.T) {
	steps := treeSteps()
	second := plotAt(2, standState{30, 800, 18, 20, 150})
	steps[0].Inventory.AddPlot(second, true)

	out, err := Render(context.Background(), steps, Options{Type: scenario.OutputJSON, Decimals: 1})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(out) != 2 || out[1].Name != "Output_Plot_2.json" {
		t.Fatalf("unexpected artifacts %+v", out)
	}
	var doc struct {
		Locale  string       `json:"locale"`
		Header  Header       `json:"header"`
		Summary []SummaryRow `json:"summary"`
		Steps   []StepReport `json:"steps"`
	}
	if err := json.Unmarshal(out[0].Body, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Locale != "en" || doc.Header.PlotID != 1 || len(doc.Summary) != 2 || len(doc.Steps) != 3 {
		t.Fatalf("unexpected document %+v", doc)
	}
	if dg := doc.Summary[0].Dead.Dg; dg == nil || *dg != 22.6 {
		t.Fatalf("summary values must be rounded, got %v", dg)
	}
	if doc.Steps[2].Printable || len(doc.Steps[2].Trees) != 0 || doc.Steps[2].Info.Value == nil {
		t.Fatalf("unexpected harvest step %+v", doc.Steps[2])
	}

	zipped, err := Render(context.Background(), steps, Options{Scenario: "my run", Zip: true})
	if err != nil {
		t.Fatalf("render zip: %v", err)
	}
	if len(zipped) != 1 || zipped[0].Name != "my_run.zip" {
		t.Fatalf("unexpected bundle %+v", zipped)
	}
	zr, err := zip.NewReader(bytes.NewReader(zipped[0].Body), int64(len(zipped[0].Body)))
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	if len(zr.File) != 2 || zr.File[0].Name != "Output_Plot_1.xlsx" {
		t.Fatalf("unexpected zip entries %d", len(zr.File))
	}
}

func TestRenderHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Render(ctx, treeSteps(), Options{}); err == nil {
		t.Fatal("expected cancellation error")
	}
}

func TestLabelsFallback(t *testing.T) {
	l, err := NewLabels("fr")
	if err != nil {
		t.Fatalf("labels: %v", err)
	}
	if l.Locale() != "en" || l.Get("before") != "Main stand before thinning" || l.Get("DENSITY") != "DENSITY" {
		t.Fatalf("unexpected fallback labels %s", l.Locale())
	}
}
