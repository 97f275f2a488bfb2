package report

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"standsim/internal/blob"
	"standsim/internal/core"
	"standsim/internal/scenario"
	"standsim/pkg/domain"
)

// FilePrefix starts the name of every per-plot artifact.
const FilePrefix = "Output_Plot_"

// Options control rendering.
type Options struct {
	Scenario string
	// Model labels the header; the first INIT or EXECUTION model key is used
	// when empty.
	Model    string
	Type     scenario.OutputType
	Decimals int
	Locale   string
	Zip      bool
}

func (o Options) outputType() scenario.OutputType {
	if o.Type == "" {
		return scenario.OutputXLSX
	}
	return o.Type
}

// Header identifies the plot and run a report belongs to.
type Header struct {
	PlotID      int     `json:"plot_id"`
	InventoryID int     `json:"inventory_id"`
	StudyArea   string  `json:"study_area"`
	Forest      string  `json:"forest"`
	MainSpecie  string  `json:"main_specie"`
	SpecieIFNID float64 `json:"specie_ifn_id"`
	Model       string  `json:"model"`
	Scenario    string  `json:"scenario"`
}

// StepInfo describes the operation behind a step, with localized captions.
type StepInfo struct {
	ID        int      `json:"id"`
	Age       float64  `json:"age"`
	MinAge    float64  `json:"min_age"`
	MaxAge    float64  `json:"max_age"`
	Action    string   `json:"action"`
	Years     float64  `json:"years"`
	HarvestBy string   `json:"harvest_by,omitempty"`
	Value     *float64 `json:"value,omitempty"`
	ByMeans   string   `json:"by_means,omitempty"`
}

func (s StepInfo) cells() []any {
	var value any = ""
	if s.Value != nil {
		value = *s.Value
	}
	return []any{s.ID, s.Age, s.MinAge, s.MaxAge, s.Action, s.Years, s.HarvestBy, value, s.ByMeans}
}

var stepColumns = []string{"Id", "Age", "Min age", "Max age", "Action", "Years", "Harvest by", "Value", "By means of"}

// StepReport is the state of the plot after one step. Plot is nil when the
// plot was not part of the step inventory; Trees is empty unless Printable.
type StepReport struct {
	Info      StepInfo         `json:"info"`
	Plot      map[string]any   `json:"plot,omitempty"`
	Printable bool             `json:"printable"`
	Trees     []map[string]any `json:"trees,omitempty"`
}

// Report is the rendered history of one plot.
type Report struct {
	Header  Header       `json:"header"`
	Summary []SummaryRow `json:"summary"`
	Steps   []StepReport `json:"steps"`

	decimals int
	labels   *Labels
}

// Build collects the report of plotID over steps.
func Build(steps []*core.Step, plotID int, opts Options) (*Report, error) {
	labels, err := NewLabels(opts.Locale)
	if err != nil {
		return nil, err
	}
	r := &Report{
		Header:   Header{PlotID: plotID, Model: opts.Model, Scenario: opts.Scenario},
		Summary:  Summarize(steps, plotID),
		decimals: opts.Decimals,
		labels:   labels,
	}
	if r.decimals < 0 {
		r.decimals = scenario.DefaultDecimals
	}
	for i, step := range steps {
		if r.Header.Model == "" && (step.Kind == core.OperationInit || step.Kind == core.OperationExecution) {
			r.Header.Model = step.Operation.ModelKey
		}
		plot, ok := step.Inventory.Plot(plotID)
		if ok && i == 0 {
			r.Header.InventoryID = plot.InventoryID
			r.Header.StudyArea = plot.StudyArea
			r.Header.Forest = plot.Forest
			r.Header.MainSpecie = plot.MainSpecie
			r.Header.SpecieIFNID = plot.SpecieIFNID
		}
		sr := StepReport{Info: r.stepInfo(step)}
		if ok {
			sr.Plot = r.plotValues(plot)
			sr.Printable = step.Inventory.ShouldPrint(plotID)
		}
		if sr.Printable {
			for _, group := range [][]*domain.Tree{plot.Trees(), plot.DeadTrees(), plot.CutTrees(), plot.IngrowthTrees()} {
				for _, tree := range group {
					sr.Trees = append(sr.Trees, r.treeValues(tree))
				}
			}
		}
		r.Steps = append(r.Steps, sr)
	}
	return r, nil
}

func (r *Report) stepInfo(step *core.Step) StepInfo {
	info := StepInfo{
		ID:      step.ID,
		Age:     step.Age,
		MinAge:  step.Gate.Min,
		MaxAge:  step.Gate.Max,
		Action:  r.labels.Get(string(step.Kind)),
		Years:   step.Years,
		ByMeans: r.labels.Get(step.ByMeans),
	}
	if step.HarvestModel != "" {
		info.HarvestBy = r.labels.Get(step.HarvestModel)
	}
	if step.HasQuantity() {
		info.Value = ptr(step.Quantity)
	}
	return info
}

func (r *Report) plotValues(plot *domain.Plot) map[string]any {
	out := make(map[string]any, len(domain.PlotVariables))
	for _, name := range domain.PlotVariables {
		v, err := plot.Field(name)
		if err != nil {
			continue
		}
		out[name] = r.roundAny(v)
	}
	return out
}

func (r *Report) treeValues(tree *domain.Tree) map[string]any {
	out := make(map[string]any, len(domain.TreeVariables))
	for _, name := range domain.TreeVariables {
		v, err := tree.Field(name)
		if err != nil {
			continue
		}
		out[name] = r.roundAny(v)
	}
	return out
}

func (r *Report) round(v float64) float64 {
	p := math.Pow(10, float64(r.decimals))
	return math.Round(v*p) / p
}

func (r *Report) roundAny(v any) any {
	if f, ok := v.(float64); ok {
		return r.round(f)
	}
	return v
}

func (r *Report) roundMass(m *Mass) *Mass {
	if m == nil {
		return nil
	}
	out := Mass{N: r.round(m.N)}
	for _, pair := range []struct{ src, dst **float64 }{{&m.Dg, &out.Dg}, {&m.G, &out.G}, {&m.V, &out.V}} {
		if *pair.src != nil {
			*pair.dst = ptr(r.round(**pair.src))
		}
	}
	return &out
}

// WriteJSON renders the report as one JSON document with rounded values.
func (r *Report) WriteJSON(w io.Writer) error {
	doc := struct {
		Locale string `json:"locale"`
		*Report
	}{Locale: r.labels.Locale(), Report: &Report{Header: r.Header, Steps: r.Steps}}
	for _, row := range r.Summary {
		row.Age, row.DominantH = r.round(row.Age), r.round(row.DominantH)
		row.Before = *r.roundMass(&row.Before)
		row.Harvested = r.roundMass(row.Harvested)
		row.After = r.roundMass(row.After)
		row.Dead = r.roundMass(row.Dead)
		row.Ingrowth = r.roundMass(row.Ingrowth)
		doc.Summary = append(doc.Summary, row)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Artifact is one rendered report file.
type Artifact struct {
	Name        string
	ContentType string
	Body        []byte
}

// FileName is the artifact name of plotID.
func FileName(plotID int, t scenario.OutputType) string {
	return fmt.Sprintf("%s%d%s", FilePrefix, plotID, t.Extension())
}

// Render builds one artifact per plot of the first step, in inventory order,
// or a single zip bundle of them when opts.Zip is set.
func Render(ctx context.Context, steps []*core.Step, opts Options) ([]Artifact, error) {
	if len(steps) == 0 {
		return nil, nil
	}
	t := opts.outputType()
	var out []Artifact
	for _, id := range steps[0].Inventory.PlotIDs() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rep, err := Build(steps, id, opts)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		a := Artifact{Name: FileName(id, t)}
		switch t {
		case scenario.OutputJSON:
			a.ContentType = blob.ContentTypeJSON
			err = rep.WriteJSON(&buf)
		default:
			a.ContentType = blob.ContentTypeXLSX
			err = rep.WriteXLSX(&buf)
		}
		if err != nil {
			return nil, fmt.Errorf("plot %d: %w", id, err)
		}
		a.Body = buf.Bytes()
		out = append(out, a)
	}
	if !opts.Zip {
		return out, nil
	}
	bundle, err := Bundle(bundleName(opts.Scenario), out)
	if err != nil {
		return nil, err
	}
	return []Artifact{bundle}, nil
}

func bundleName(scenarioName string) string {
	if scenarioName == "" {
		return "Output.zip"
	}
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		}
		return '_'
	}, scenarioName)
	return safe + ".zip"
}

// Bundle compresses artifacts into one zip archive.
func Bundle(name string, artifacts []Artifact) (Artifact, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, a := range artifacts {
		w, err := zw.Create(a.Name)
		if err != nil {
			return Artifact{}, fmt.Errorf("zip %s: %w", a.Name, err)
		}
		if _, err := w.Write(a.Body); err != nil {
			return Artifact{}, fmt.Errorf("zip %s: %w", a.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return Artifact{}, fmt.Errorf("zip: %w", err)
	}
	return Artifact{Name: name, ContentType: blob.ContentTypeZip, Body: buf.Bytes()}, nil
}
