package reader

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the Excel inventory layout.
const (
	PlotSheet = "Parcelas"
	TreeSheet = "PiesMayores"
)

// Excel reads an inventory workbook whose sheets start with a header row.
type Excel struct {
	file   *excelize.File
	sheets map[Kind]string
}

// OpenExcel opens the workbook at path.
func OpenExcel(path string) (*Excel, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return &Excel{file: f, sheets: map[Kind]string{Plots: PlotSheet, Trees: TreeSheet}}, nil
}

// Rows returns the data rows of the sheet holding kind, keyed by header.
// Blank rows are skipped and short rows padded with empty cells.
func (x *Excel) Rows(kind Kind) ([]Row, error) {
	sheet, ok := x.sheets[kind]
	if !ok {
		return nil, fmt.Errorf("reader: unknown record kind %q", kind)
	}
	rows, err := x.file.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.TrimSpace(name)
	}
	out := make([]Row, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		if blank(cells) {
			continue
		}
		row := make(Row, len(header))
		for i, name := range header {
			if name == "" {
				continue
			}
			if i < len(cells) {
				row[name] = strings.TrimSpace(cells[i])
			} else {
				row[name] = ""
			}
		}
		out = append(out, row)
	}
	return out, nil
}

func (x *Excel) Close() error { return x.file.Close() }

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
