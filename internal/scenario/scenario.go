// Package scenario reads the JSON scenario files that drive a simulation:
// output settings plus the ordered operation list.
package scenario

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"standsim/internal/core"
	"standsim/pkg/domain"
	"standsim/pkg/pluginapi"
)

// ErrInvalidScenario wraps every validation failure of a scenario file.
var ErrInvalidScenario = errors.New("invalid scenario")

// OutputType selects the report renderer.
type OutputType string

const (
	OutputXLSX OutputType = "XLSX"
	OutputJSON OutputType = "JSON"
)

// Extension is the file extension of the report type.
func (t OutputType) Extension() string { return "." + strings.ToLower(string(t)) }

// DefaultDecimals is used when the file does not set decimal_numbers.
const DefaultDecimals = 2

// Config is a parsed and validated scenario file.
type Config struct {
	Name           string
	OutputPath     string
	ZipCompression bool
	OutputType     OutputType
	DecimalNumbers int
	Locale         string
	Scenario       core.Scenario
}

// Inventory returns the source named by the first LOAD operation.
func (c Config) Inventory() string {
	for _, op := range c.Scenario.Operations {
		if op.Kind == core.OperationLoad && op.Inventory != "" {
			return op.Inventory
		}
	}
	return ""
}

var (
	topKeys = []string{"name", "output_path", "zip_compression", "output_type", "decimal_numbers", "locale", "operations", "overwrite_output_file"}
	opKeys  = []string{"operation", "model_path", "description", "time", "init", "min_age", "max_age", "cut_down", "volumen", "inventory"}
)

// Load reads and parses a scenario file.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open scenario: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Parse(f)
}

// Parse decodes a scenario document. Every problem found is reported, joined
// into one error wrapping ErrInvalidScenario.
func Parse(r io.Reader) (Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, fmt.Errorf("read scenario: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidScenario, err)
	}

	p := &parser{}
	p.unknownKeys("scenario", raw, topKeys)
	cfg := Config{
		Name:           p.str("name", raw["name"]),
		OutputPath:     p.str("output_path", raw["output_path"]),
		ZipCompression: p.flag("zip_compression", raw["zip_compression"]),
		OutputType:     OutputXLSX,
		DecimalNumbers: DefaultDecimals,
		Locale:         "en",
	}
	if v := p.str("output_type", raw["output_type"]); v != "" {
		cfg.OutputType = p.outputType(v)
	}
	if _, ok := raw["decimal_numbers"]; ok {
		cfg.DecimalNumbers = int(p.num("decimal_numbers", raw["decimal_numbers"]))
		if cfg.DecimalNumbers < 0 || cfg.DecimalNumbers > 10 {
			p.fail("decimal_numbers must lie in [0,10], got %d", cfg.DecimalNumbers)
		}
	}
	if v := p.str("locale", raw["locale"]); v != "" {
		cfg.Locale = v
	}
	if strings.TrimSpace(cfg.Name) == "" {
		p.fail("name is required")
	}
	cfg.Scenario = core.Scenario{Name: cfg.Name, Operations: p.operations(raw["operations"])}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	return cfg, nil
}

type parser struct {
	errs []error
}

func (p *parser) fail(format string, args ...any) {
	p.errs = append(p.errs, fmt.Errorf(format, args...))
}

func (p *parser) unknownKeys(where string, raw map[string]json.RawMessage, known []string) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if contains(known, k) {
			continue
		}
		p.fail("%s: unknown key %q%s", where, k, hint(k, known))
	}
}

// hint formats a "did you mean" suffix, empty when nothing is close.
func hint(input string, candidates []string) string {
	if s := core.Suggest(input, candidates); s != "" {
		return fmt.Sprintf(" (did you mean %q?)", s)
	}
	return ""
}

func cutMethodNames() []string {
	methods := pluginapi.CutMethods()
	out := make([]string, len(methods))
	for i, m := range methods {
		out[i] = string(m)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (p *parser) str(key string, raw json.RawMessage) string {
	if raw == nil {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		p.fail("%s: expected a string, got %s", key, raw)
	}
	return s
}

// num accepts JSON numbers and numeric strings.
func (p *parser) num(key string, raw json.RawMessage) float64 {
	if raw == nil {
		return 0
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		p.fail("%s: %v", key, err)
		return 0
	}
	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
	default:
		p.fail("%s: expected a number, got %s", key, raw)
		return 0
	}
	if text == "" {
		return 0
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		p.fail("%s: expected a number, got %q", key, text)
	}
	return f
}

// flag accepts booleans and the "YES"/"NO" strings older files use.
func (p *parser) flag(key string, raw json.RawMessage) bool {
	if raw == nil {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}
	switch strings.ToUpper(p.str(key, raw)) {
	case "YES", "TRUE":
		return true
	case "NO", "FALSE", "":
		return false
	}
	p.fail("%s: expected a boolean, got %s", key, raw)
	return false
}

func (p *parser) outputType(v string) OutputType {
	t := OutputType(strings.ToUpper(strings.TrimSpace(v)))
	switch t {
	case OutputXLSX, OutputJSON:
		return t
	}
	p.fail("output_type: unsupported %q (want XLSX or JSON)", v)
	return OutputXLSX
}

func (p *parser) operations(raw json.RawMessage) []core.Operation {
	if raw == nil {
		p.fail("operations are required")
		return nil
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		p.fail("operations: %v", err)
		return nil
	}
	type numbered struct {
		n   int
		key string
	}
	order := make([]numbered, 0, len(entries))
	for k := range entries {
		n, err := strconv.Atoi(strings.TrimSpace(k))
		if err != nil {
			p.fail("operations: key %q is not a number", k)
			continue
		}
		order = append(order, numbered{n, k})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].n < order[j].n })
	if len(order) == 0 && len(p.errs) == 0 {
		p.fail("operations are required")
	}

	ops := make([]core.Operation, 0, len(order))
	for _, o := range order {
		if op, ok := p.operation(o.key, entries[o.key]); ok {
			ops = append(ops, op)
		}
	}
	return ops
}

func (p *parser) operation(id string, raw json.RawMessage) (core.Operation, bool) {
	where := "operation " + id
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		p.fail("%s: %v", where, err)
		return core.Operation{}, false
	}
	before := len(p.errs)
	p.unknownKeys(where, fields, opKeys)

	kindRaw := p.str(where+": operation", fields["operation"])
	kind, err := core.ParseOperationKind(kindRaw)
	if err != nil {
		kinds := []string{string(core.OperationLoad), string(core.OperationInit), string(core.OperationExecution), string(core.OperationHarvest)}
		p.fail("%s: %v%s", where, err, hint(kindRaw, kinds))
	}

	op := core.Operation{
		Kind:        kind,
		ModelKey:    strings.TrimSpace(p.str(where+": model_path", fields["model_path"])),
		Description: p.str(where+": description", fields["description"]),
		Time:        int(p.num(where+": time", fields["time"])),
		Init:        p.num(where+": init", fields["init"]),
		Gate:        domain.DefaultAgeGate(),
		Quantity:    p.num(where+": volumen", fields["volumen"]),
		Inventory:   p.str(where+": inventory", fields["inventory"]),
	}
	if _, ok := fields["min_age"]; ok {
		op.Gate.Min = p.num(where+": min_age", fields["min_age"])
	}
	if _, ok := fields["max_age"]; ok {
		op.Gate.Max = p.num(where+": max_age", fields["max_age"])
	}

	if op.Time < 0 {
		p.fail("%s: time must not be negative", where)
	}
	if op.Gate.Min > op.Gate.Max {
		p.fail("%s: min_age %g exceeds max_age %g", where, op.Gate.Min, op.Gate.Max)
	}
	if kind != core.OperationLoad && kind != "" && op.ModelKey == "" {
		p.fail("%s: model_path is required for %s", where, kind)
	}
	if kind == core.OperationHarvest {
		cut := p.str(where+": cut_down", fields["cut_down"])
		if cut == "" {
			p.fail("%s: cut_down is required for HARVEST", where)
		} else if m, err := pluginapi.ParseCutMethod(cut); err != nil {
			p.fail("%s: %v%s", where, err, hint(cut, cutMethodNames()))
		} else {
			op.CutMethod = m
		}
		if op.Quantity < 0 || op.Quantity > 100 {
			p.fail("%s: volumen must lie in [0,100], got %g", where, op.Quantity)
		}
	}
	return op, len(p.errs) == before
}
