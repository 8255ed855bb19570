package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/Tiliavir/timereg/internal/model"
)

const (
	entriesSheet = "Entries"
	summarySheet = "Summary"
)

var entryHeader = []any{"ID", "Date", "Project", "Category", "Description", "Hours"}

// WriteXLSX writes a workbook with one row per entry and a summary sheet.
func WriteXLSX(w io.Writer, entries []model.TimeEntry, s Summary) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), entriesSheet); err != nil {
		return fmt.Errorf("renaming sheet: %w", err)
	}
	if err := f.SetSheetRow(entriesSheet, "A1", &entryHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, e := range entries {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{e.ID, e.Date, e.Project, e.Category, e.Description, e.Hours}
		if err := f.SetSheetRow(entriesSheet, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	if len(entries) > 0 {
		total, err := excelize.CoordinatesToCellName(6, len(entries)+2)
		if err != nil {
			return err
		}
		if err := f.SetCellFormula(entriesSheet, total, fmt.Sprintf("SUM(F2:F%d)", len(entries)+1)); err != nil {
			return fmt.Errorf("writing total: %w", err)
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("adding summary sheet: %w", err)
	}
	rows := [][]any{
		{"Week", s.WeekLabel},
		{"Week start", s.WeekStart},
		{"Today", s.Today},
		{"Week total", s.Week},
		{"Month " + s.Month, s.MonthSum},
		{},
		{"Project", "Hours"},
	}
	for _, p := range s.Projects {
		rows = append(rows, []any{p.Project, p.Hours})
	}
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("writing summary row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}
