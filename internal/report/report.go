// Package report aggregates time entries and renders them for export.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Tiliavir/timereg/internal/model"
	"github.com/Tiliavir/timereg/internal/timecalc"
)

// NoProject labels entries without a project.
const NoProject = "(none)"

// ProjectTotal is the hours of one project in the reported week.
type ProjectTotal struct {
	Project string  `json:"project"`
	Hours   float64 `json:"hours"`
}

// Summary holds the totals shown by `treg report`.
type Summary struct {
	Date      string         `json:"date"`
	WeekStart string         `json:"week_start"`
	WeekLabel string         `json:"week"`
	Month     string         `json:"month"`
	Today     float64        `json:"today_hours"`
	Week      float64        `json:"week_hours"`
	MonthSum  float64        `json:"month_hours"`
	Projects  []ProjectTotal `json:"projects"`
}

// Summarize totals entries for the day, the Sunday-aligned week and the
// calendar month containing now. Project totals cover the week.
func Summarize(entries []model.TimeEntry, now time.Time) Summary {
	loc := now.Location()
	weekFrom, weekTo := timecalc.SundayWeek(now)
	today := timecalc.DateKey(now)
	month := now.Format("2006-01")

	s := Summary{
		Date:      today,
		WeekStart: timecalc.DateKey(weekFrom),
		WeekLabel: timecalc.ISOWeekLabel(now),
		Month:     month,
		Projects:  []ProjectTotal{},
	}
	perProject := map[string]float64{}
	for _, e := range entries {
		d, err := timecalc.ParseDate(e.Date, loc)
		if err != nil {
			continue
		}
		key := timecalc.DateKey(d)
		if key == today {
			s.Today += e.Hours
		}
		if strings.HasPrefix(key, month) {
			s.MonthSum += e.Hours
		}
		if !d.Before(weekFrom) && d.Before(weekTo) {
			s.Week += e.Hours
			p := e.Project
			if p == "" {
				p = NoProject
			}
			perProject[p] += e.Hours
		}
	}
	for p, h := range perProject {
		s.Projects = append(s.Projects, ProjectTotal{Project: p, Hours: h})
	}
	sort.Slice(s.Projects, func(i, j int) bool { return s.Projects[i].Project < s.Projects[j].Project })
	return s
}

// WriteSummary renders s as md, csv or json.
func WriteSummary(w io.Writer, s Summary, format string) error {
	switch format {
	case "csv":
		fmt.Fprintln(w, "project,hours")
		for _, p := range s.Projects {
			fmt.Fprintf(w, "%s,%s\n", csvEscape(p.Project), decimal(p.Hours))
		}
		return nil
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case "md", "":
		fmt.Fprintf(w, "Week %s (from %s)\n", s.WeekLabel, s.WeekStart)
		fmt.Fprintln(w, "--------------------------------")
		for _, p := range s.Projects {
			fmt.Fprintf(w, "%-20s%10s\n", p.Project, timecalc.FormatHours(p.Hours))
		}
		fmt.Fprintln(w, "--------------------------------")
		fmt.Fprintf(w, "%-20s%10s\n", "Today", timecalc.FormatHours(s.Today))
		fmt.Fprintf(w, "%-20s%10s\n", "Week", timecalc.FormatHours(s.Week))
		fmt.Fprintf(w, "%-20s%10s\n", "Month "+s.Month, timecalc.FormatHours(s.MonthSum))
		return nil
	default:
		return fmt.Errorf("unknown report format %q (want md, csv or json)", format)
	}
}

// WriteEntries renders entries as csv, json or md. xlsx is handled by WriteXLSX.
func WriteEntries(w io.Writer, entries []model.TimeEntry, format string) error {
	switch format {
	case "csv", "":
		fmt.Fprintln(w, "id,date,project,category,description,hours")
		for _, e := range entries {
			fmt.Fprintf(w, "%d,%s,%s,%s,%s,%s\n",
				e.ID,
				csvEscape(e.Date),
				csvEscape(e.Project),
				csvEscape(e.Category),
				csvEscape(e.Description),
				decimal(e.Hours),
			)
		}
		return nil
	case "json":
		if entries == nil {
			entries = []model.TimeEntry{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	case "md":
		fmt.Fprintln(w, "| Date | Project | Category | Description | Hours |")
		fmt.Fprintln(w, "|---|---|---|---|---:|")
		for _, e := range entries {
			fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
				mdEscape(e.Date), mdEscape(e.Project), mdEscape(e.Category),
				mdEscape(e.Description), decimal(e.Hours))
		}
		return nil
	default:
		return fmt.Errorf("unknown export format %q (want csv, json, md or xlsx)", format)
	}
}

func decimal(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func mdEscape(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\n\r") {
		return s
	}
	// Escape internal double quotes by doubling them.
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
