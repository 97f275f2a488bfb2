package reader

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// jsonFields maps SPARQL result variables onto schema field names. Variables
// not listed keep their name.
var jsonFields = map[string]string{
	"plot":      "PLOT_ID",
	"provincia": "PROVINCE",
	"plotlat":   "LATITUDE",
	"plotlong":  "LONGITUDE",
	"age":       "AGE",
	"tree":      "TREE_ID",
	"species":   "specie",
	"treelat":   "coord_y",
	"treelong":  "coord_x",
	"height":    "height",
	"dbh1":      "dbh_1",
	"dbh2":      "dbh_2",
	"dbh":       "dbh",
	"expan":     "expan",
}

// idFields hold identifiers that SPARQL endpoints return as IRIs.
var idFields = map[string]bool{"INVENTORY_ID": true, "PLOT_ID": true, "TREE_ID": true, "specie": true}

type sparqlDocument struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]sparqlTerm `json:"bindings"`
	} `json:"results"`
}

type sparqlTerm struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// JSON reads the plots and trees SPARQL result documents.
type JSON struct {
	docs map[Kind]*sparqlDocument
}

// OpenJSON reads a single document holding both result sets under the
// "plots" and "trees" keys.
func OpenJSON(path string) (*JSON, error) {
	raw, err := readInput(path)
	if err != nil {
		return nil, err
	}
	var combined map[Kind]*sparqlDocument
	if err := json.Unmarshal(raw, &combined); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	for _, kind := range []Kind{Plots, Trees} {
		if combined[kind] == nil {
			return nil, fmt.Errorf("decode %s: missing %q results", path, kind)
		}
	}
	return &JSON{docs: combined}, nil
}

// OpenJSONPair reads the plots and trees documents from separate files.
func OpenJSONPair(plotsPath, treesPath string) (*JSON, error) {
	docs := make(map[Kind]*sparqlDocument, 2)
	for kind, path := range map[Kind]string{Plots: plotsPath, Trees: treesPath} {
		raw, err := readInput(path)
		if err != nil {
			return nil, err
		}
		var doc sparqlDocument
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
		docs[kind] = &doc
	}
	return &JSON{docs: docs}, nil
}

func readInput(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
	}
	return raw, err
}

// Rows returns the bindings of kind with variables renamed to schema fields.
// Unbound variables are left out of the row.
func (j *JSON) Rows(kind Kind) ([]Row, error) {
	doc, ok := j.docs[kind]
	if !ok {
		return nil, fmt.Errorf("reader: unknown record kind %q", kind)
	}
	out := make([]Row, 0, len(doc.Results.Bindings))
	for _, binding := range doc.Results.Bindings {
		vars := doc.Head.Vars
		if len(vars) == 0 {
			for name := range binding {
				vars = append(vars, name)
			}
		}
		row := make(Row, len(vars))
		for _, name := range vars {
			term, ok := binding[name]
			if !ok {
				continue
			}
			field := name
			if mapped, ok := jsonFields[name]; ok {
				field = mapped
			}
			value := strings.TrimSpace(term.Value)
			if idFields[field] {
				value = TrailingID(value)
			}
			row[field] = value
		}
		out = append(out, row)
	}
	return out, nil
}

func (*JSON) Close() error { return nil }

// TrailingID reduces an IRI such as http://example.org/plot/P12 to its
// trailing integer "12". Numbers and values without a trailing integer are
// returned unchanged.
func TrailingID(value string) string {
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return value
	}
	seg := value
	if i := strings.LastIndexAny(seg, "/#:"); i >= 0 {
		seg = seg[i+1:]
	}
	end := len(seg)
	start := end
	for start > 0 && seg[start-1] >= '0' && seg[start-1] <= '9' {
		start--
	}
	if start == end {
		return value
	}
	return seg[start:end]
}
