package cmd

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Tiliavir/timereg/internal/collection"
	"github.com/Tiliavir/timereg/internal/model"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	hoursStyle   = cellStyle.Align(lipgloss.Right)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warningStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

const hoursColumn = 5

// entryTable renders entries as a bordered table.
func entryTable(entries []model.TimeEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Date,
			e.Project,
			e.Category,
			e.Description,
			strconv.FormatFloat(e.Hours, 'f', -1, 64),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("ID", "Date", "Project", "Category", "Description", "Hours").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == hoursColumn:
				return hoursStyle
			default:
				return cellStyle
			}
		})
	return t.String()
}

// printPage writes one page of the derived view, its position and the weekly
// warning if any.
func printPage(w io.Writer, p collection.Page) {
	if p.Matched == 0 {
		fmt.Fprintln(w, "No entries found.")
	} else {
		fmt.Fprintln(w, entryTable(p.Entries))
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("Page %d/%d · %d entries", p.Page, p.TotalPages, p.Matched)))
	}
	if p.Warning != "" {
		fmt.Fprintln(w, warningStyle.Render(p.Warning))
	}
}

// describeError formats a failed collection operation for the terminal,
// listing the offending fields of a validation failure.
func describeError(err error) string {
	var ce *collection.Error
	if !errors.As(err, &ce) {
		return errorStyle.Render(err.Error())
	}
	switch ce.Kind {
	case collection.KindValidation:
		s := errorStyle.Render("Invalid entry:")
		for _, f := range ce.Fields {
			s += fmt.Sprintf("\n  %s: %s", f.Field, f.Message)
		}
		return s
	case collection.KindAPI:
		if ce.StatusCode != 0 {
			return errorStyle.Render(fmt.Sprintf("Server rejected the request (%d): %s", ce.StatusCode, ce.Message))
		}
	}
	return errorStyle.Render(ce.Message)
}
