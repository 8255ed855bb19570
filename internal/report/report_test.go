package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Tiliavir/timereg/internal/model"
)

func TestCsvEscape(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"with space", "with space"},
		{"with,comma", `"with,comma"`},
		{`with"quote`, `"with""quote"`},
		{"with\nnewline", "\"with\nnewline\""},
		{"with\rreturn", "\"with\rreturn\""},
		{"", ""},
	}
	for _, tt := range tests {
		got := csvEscape(tt.input)
		if got != tt.want {
			t.Errorf("csvEscape(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

// Friday 2026-02-27; the Sunday week starts 2026-02-22.
var now = time.Date(2026, 2, 27, 15, 0, 0, 0, time.UTC)

func fixture() []model.TimeEntry {
	return []model.TimeEntry{
		{ID: 1, Date: "2026-02-27", Project: "ECM", Description: "today", Hours: 2},
		{ID: 2, Date: "2026-02-27T07:00:00Z", Project: "Intranet", Description: "today too", Hours: 1.5},
		{ID: 3, Date: "2026-02-22", Project: "ECM", Description: "sunday", Hours: 4},
		{ID: 4, Date: "2026-02-21", Project: "ECM", Description: "last week", Hours: 8},
		{ID: 5, Date: "2026-02-02", Description: "no project, \"quoted\"", Hours: 3},
		{ID: 6, Date: "2026-01-31", Project: "ECM", Description: "last month", Hours: 5},
		{ID: 7, Date: "garbage", Project: "ECM", Hours: 9},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(fixture(), now)

	assert.Equal(t, "2026-02-27", s.Date)
	assert.Equal(t, "2026-02-22", s.WeekStart)
	assert.Equal(t, "2026-W09", s.WeekLabel)
	assert.InDelta(t, 3.5, s.Today, 1e-9)
	assert.InDelta(t, 7.5, s.Week, 1e-9)
	assert.InDelta(t, 18.5, s.MonthSum, 1e-9)
	assert.Equal(t, []ProjectTotal{{"ECM", 6}, {"Intranet", 1.5}}, s.Projects)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil, now)
	assert.Zero(t, s.Week)
	assert.NotNil(t, s.Projects)
}

func TestWriteSummary(t *testing.T) {
	s := Summarize(fixture(), now)

	var md bytes.Buffer
	require.NoError(t, WriteSummary(&md, s, "md"))
	assert.Contains(t, md.String(), "Week 2026-W09 (from 2026-02-22)")
	assert.Contains(t, md.String(), "7h 30m")

	var csv bytes.Buffer
	require.NoError(t, WriteSummary(&csv, s, "csv"))
	assert.Equal(t, "project,hours\nECM,6\nIntranet,1.5\n", csv.String())

	var js bytes.Buffer
	require.NoError(t, WriteSummary(&js, s, "json"))
	var back Summary
	require.NoError(t, json.Unmarshal(js.Bytes(), &back))
	assert.Equal(t, s, back)

	assert.Error(t, WriteSummary(&bytes.Buffer{}, s, "yaml"))
}

func TestWriteEntries(t *testing.T) {
	entries := fixture()[3:5]

	var csv bytes.Buffer
	require.NoError(t, WriteEntries(&csv, entries, "csv"))
	assert.Equal(t,
		"id,date,project,category,description,hours\n"+
			"4,2026-02-21,ECM,,last week,8\n"+
			"5,2026-02-02,,,\"no project, \"\"quoted\"\"\",3\n",
		csv.String())

	var md bytes.Buffer
	require.NoError(t, WriteEntries(&md, []model.TimeEntry{{Date: "2026-02-21", Description: "a|b", Hours: 0.25}}, "md"))
	assert.Contains(t, md.String(), `| 2026-02-21 |  |  | a\|b | 0.25 |`)

	var js bytes.Buffer
	require.NoError(t, WriteEntries(&js, nil, "json"))
	assert.Equal(t, "[]", strings.TrimSpace(js.String()))

	assert.Error(t, WriteEntries(&bytes.Buffer{}, entries, "pdf"))
}

func TestWriteXLSX(t *testing.T) {
	entries := fixture()[:3]
	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, entries, Summarize(entries, now)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(entriesSheet)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 4)
	assert.Equal(t, []string{"ID", "Date", "Project", "Category", "Description", "Hours"}, rows[0])
	assert.Equal(t, "ECM", rows[1][2])
	assert.Equal(t, "today", rows[1][4])

	formula, err := f.GetCellFormula(entriesSheet, "F5")
	require.NoError(t, err)
	assert.Equal(t, "SUM(F2:F4)", formula)

	week, err := f.GetCellValue(summarySheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "2026-W09", week)
}
