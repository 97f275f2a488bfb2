// Package reader loads forest inventories from Excel workbooks and
// SPARQL-style JSON result documents.
package reader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"standsim/internal/core"
	"standsim/pkg/domain"
)

// ErrMissingInput reports an inventory source that does not exist.
var ErrMissingInput = errors.New("reader: missing input file")

// Kind selects one of the two record streams of an inventory.
type Kind string

const (
	Plots Kind = "plots"
	Trees Kind = "trees"
)

// Row is one record keyed by schema field name.
type Row map[string]string

// Source yields the plot and tree rows of an inventory. Tree rows carry their
// owning PLOT_ID.
type Source interface {
	Rows(kind Kind) ([]Row, error)
	Close() error
}

// Options tune Load and Build.
type Options struct {
	Logger core.Logger
	Date   time.Time
}

func (o Options) logger() core.Logger {
	if o.Logger == nil {
		return nopLogger{}
	}
	return o.Logger
}

// Open picks a source by path: .xlsx and .xlsm workbooks, a combined JSON
// document, or a directory holding plots.json and trees.json.
func Open(path string) (Source, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, err
	}
	if info.IsDir() {
		return OpenJSONPair(filepath.Join(path, "plots.json"), filepath.Join(path, "trees.json"))
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return OpenExcel(path)
	case ".json":
		return OpenJSON(path)
	default:
		return nil, fmt.Errorf("reader: unsupported inventory format %q", filepath.Ext(path))
	}
}

// Load opens path and builds the inventory it describes.
func Load(path string, opts Options) (*domain.Inventory, error) {
	src, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	inv, err := Build(src, opts)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	opts.logger().Info("inventory loaded", "path", path, "plots", inv.Len())
	return inv, nil
}

// Build reads every plot, then every tree onto its plot. All loaded plots are
// printable. Unknown columns and unparsable cells are logged and left at zero.
func Build(src Source, opts Options) (*domain.Inventory, error) {
	log := opts.logger()
	date := opts.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	inv := domain.NewInventory(date)

	plots, err := src.Rows(Plots)
	if err != nil {
		return nil, err
	}
	fields := newFieldCheck(log, Plots, domain.PlotVariables, domain.IsPlotField)
	for i, row := range plots {
		if _, ok := row["PLOT_ID"]; !ok {
			log.Warn("plot row without PLOT_ID skipped", "row", i+1)
			continue
		}
		plot := domain.NewPlot(0)
		fields.observe(row)
		for name, value := range row {
			if !domain.IsPlotField(name) {
				continue
			}
			if err := plot.SetValue(name, value); err != nil {
				log.Warn("invalid plot value", "row", i+1, "field", name, "value", value, "error", err)
			}
		}
		inv.AddPlot(plot, true)
	}

	trees, err := src.Rows(Trees)
	if err != nil {
		return nil, err
	}
	fields = newFieldCheck(log, Trees, domain.TreeVariables, domain.IsTreeField)
	for i, row := range trees {
		tree := domain.NewTree(0, 0)
		fields.observe(row)
		for name, value := range row {
			// Loaded trees are always alive.
			if name == "status" || !domain.IsTreeField(name) {
				continue
			}
			if err := tree.SetValue(name, value); err != nil {
				log.Warn("invalid tree value", "row", i+1, "field", name, "value", value, "error", err)
			}
		}
		plot, ok := inv.Plot(tree.PlotID)
		if !ok {
			log.Warn("tree of unknown plot skipped", "row", i+1, "plot", tree.PlotID, "tree", tree.TreeID)
			continue
		}
		if err := plot.AddTree(tree); err != nil {
			log.Warn("tree skipped", "row", i+1, "plot", tree.PlotID, "tree", tree.TreeID, "error", err)
		}
	}
	return inv, nil
}

// fieldCheck warns once per stream about unknown and absent columns.
type fieldCheck struct {
	log    core.Logger
	kind   Kind
	schema []string
	known  func(string) bool
	seen   map[string]bool
	done   bool
}

func newFieldCheck(log core.Logger, kind Kind, schema []string, known func(string) bool) *fieldCheck {
	return &fieldCheck{log: log, kind: kind, schema: schema, known: known, seen: map[string]bool{}}
}

func (c *fieldCheck) observe(row Row) {
	for name := range row {
		if c.seen[name] {
			continue
		}
		c.seen[name] = true
		if !c.known(name) {
			c.log.Warn("unknown inventory field ignored", "kind", string(c.kind), "field", name)
		}
	}
	if c.done {
		return
	}
	c.done = true
	var missing []string
	for _, name := range c.schema {
		if _, ok := row[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		c.log.Debug("fields not in inventory default to zero", "kind", string(c.kind), "fields", missing)
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
