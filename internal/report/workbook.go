package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"standsim/pkg/domain"
)

const summaryFirstRow = 8

// summaryGroups are the merged captions above the summary columns.
var summaryGroups = []struct {
	key      string
	from, to string
}{
	{"before", "C6", "F6"},
	{"harvested", "G6", "I6"},
	{"after", "J6", "M6"},
	{"dead", "N6", "P6"},
	{"ingrowth", "Q6", "R6"},
}

var summaryColumns = []string{
	"Age", "Ho",
	"N", "Dg", "G", "V",
	"N", "Dg", "V",
	"N", "Dg", "G", "V",
	"N", "Dg", "V",
	"N", "G",
}

// WriteXLSX renders the report as a workbook with a summary sheet, a plots
// sheet and one tree sheet per printable step.
func (r *Report) WriteXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	wb := workbook{f: f, r: r, labels: r.labels}
	summary := r.labels.Get("Summary")
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return fmt.Errorf("summary sheet: %w", err)
	}
	if err := wb.summary(summary); err != nil {
		return err
	}
	if err := wb.plots(); err != nil {
		return err
	}
	if err := wb.trees(); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type workbook struct {
	f      *excelize.File
	r      *Report
	labels *Labels
}

func (wb workbook) set(sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return wb.f.SetCellValue(sheet, cell, value)
}

func (wb workbook) summary(sheet string) error {
	f, h := wb.f, wb.r.Header
	if err := f.SetColWidth(sheet, "D", "D", 20); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "J", "K", 18); err != nil {
		return err
	}
	block := []struct {
		col   int
		key   string
		value any
	}{
		{4, "Study area", h.StudyArea},
		{4, "Forest", h.Forest},
		{4, "Main species", h.MainSpecie},
		{4, "specie_ifn", h.SpecieIFNID},
		{10, "Inventory", strconv.Itoa(h.InventoryID)},
		{10, "Plot", strconv.Itoa(h.PlotID)},
		{10, "Model", h.Model},
		{10, "Scenario", h.Scenario},
	}
	for i, item := range block {
		row := i%4 + 1
		if err := wb.set(sheet, item.col, row, wb.labels.Get(item.key)); err != nil {
			return err
		}
		if err := wb.set(sheet, item.col+1, row, item.value); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	for _, g := range summaryGroups {
		if err := f.MergeCell(sheet, g.from, g.to); err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, g.from, wb.labels.Get(g.key)); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, g.from, g.to, bold); err != nil {
			return err
		}
	}
	for i, key := range summaryColumns {
		if err := wb.set(sheet, i+1, summaryFirstRow-1, wb.labels.Get(key)); err != nil {
			return err
		}
	}

	for i, row := range wb.r.Summary {
		n := summaryFirstRow + i
		for col, v := range summaryCells(row) {
			if v == nil {
				continue
			}
			if err := wb.set(sheet, col+1, n, wb.r.round(*v)); err != nil {
				return err
			}
		}
	}
	return nil
}

// summaryCells lays a row out over the summary columns; nil cells stay blank.
func summaryCells(row SummaryRow) []*float64 {
	cells := make([]*float64, len(summaryColumns))
	cells[0], cells[1] = ptr(row.Age), ptr(row.DominantH)
	cells[2], cells[3], cells[4], cells[5] = ptr(row.Before.N), row.Before.Dg, row.Before.G, row.Before.V
	if m := row.Harvested; m != nil {
		cells[6], cells[7], cells[8] = ptr(m.N), m.Dg, m.V
	}
	if m := row.After; m != nil {
		cells[9], cells[10], cells[11], cells[12] = ptr(m.N), m.Dg, m.G, m.V
	}
	if m := row.Dead; m != nil {
		cells[13], cells[14], cells[15] = ptr(m.N), m.Dg, m.V
	}
	if m := row.Ingrowth; m != nil {
		cells[16], cells[17] = ptr(m.N), m.G
	}
	return cells
}

func (wb workbook) plots() error {
	sheet := wb.labels.Get("Plots")
	if _, err := wb.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("plots sheet: %w", err)
	}
	header := make([]any, 0, len(stepColumns)+len(domain.PlotVariables))
	for _, key := range stepColumns {
		header = append(header, wb.labels.Get(key))
	}
	for _, name := range domain.PlotVariables {
		header = append(header, name)
	}
	if err := wb.f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for _, step := range wb.r.Steps {
		values := step.Info.cells()
		if step.Plot != nil {
			for _, name := range domain.PlotVariables {
				values = append(values, step.Plot[name])
			}
		}
		cell, err := excelize.CoordinatesToCellName(1, step.Info.ID+1)
		if err != nil {
			return err
		}
		if err := wb.f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return nil
}

func (wb workbook) trees() error {
	for _, step := range wb.r.Steps {
		if !step.Printable {
			continue
		}
		sheet := fmt.Sprintf("%s %d - %s", wb.labels.Get("Node"), step.Info.ID, wb.labels.Get("Trees"))
		if _, err := wb.f.NewSheet(sheet); err != nil {
			return fmt.Errorf("tree sheet %d: %w", step.Info.ID, err)
		}
		header := make([]any, len(domain.TreeVariables))
		for i, name := range domain.TreeVariables {
			header[i] = name
		}
		if err := wb.f.SetSheetRow(sheet, "A1", &header); err != nil {
			return err
		}
		for i, tree := range step.Trees {
			values := make([]any, len(domain.TreeVariables))
			for j, name := range domain.TreeVariables {
				values[j] = tree[name]
			}
			cell, err := excelize.CoordinatesToCellName(1, i+2)
			if err != nil {
				return err
			}
			if err := wb.f.SetSheetRow(sheet, cell, &values); err != nil {
				return err
			}
		}
	}
	return nil
}
