package collection

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Tiliavir/timereg/internal/model"
	"github.com/Tiliavir/timereg/internal/timecalc"
)

// WeeklyHourLimit is the most hours that may be logged in one week.
const WeeklyHourLimit = 100

// DateRange is an inclusive range of ISO dates. An empty bound is open.
type DateRange struct {
	Start string
	End   string
}

// Filter holds the independent predicates of a derived view. Zero fields
// match everything.
type Filter struct {
	Search    string
	DateRange *DateRange
	Date      string
	Project   string
	Category  string
}

// IsZero reports whether the filter matches every entry.
func (f Filter) IsZero() bool {
	return f.Search == "" && f.DateRange == nil && f.Date == "" && f.Project == "" && f.Category == ""
}

// ApplyFilter returns the entries matching every predicate of f, in their
// original order. The input slice is never modified.
func ApplyFilter(entries []model.TimeEntry, f Filter) []model.TimeEntry {
	search := strings.ToLower(f.Search)
	out := make([]model.TimeEntry, 0, len(entries))
	for _, e := range entries {
		if search != "" && !strings.Contains(strings.ToLower(e.Description), search) {
			continue
		}
		if f.Project != "" && e.Project != f.Project {
			continue
		}
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if f.Date != "" && dateKey(e.Date) != dateKey(f.Date) {
			continue
		}
		if f.DateRange != nil && !inRange(e.Date, *f.DateRange) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// dateKey reduces a date or timestamp to its YYYY-MM-DD prefix, or "" when
// it does not parse.
func dateKey(s string) string {
	t, err := timecalc.ParseDate(s, time.UTC)
	if err != nil {
		return ""
	}
	return timecalc.DateKey(t)
}

func inRange(date string, r DateRange) bool {
	d := dateKey(date)
	if d == "" {
		return false
	}
	if r.Start != "" && d < dateKey(r.Start) {
		return false
	}
	if r.End != "" && d > dateKey(r.End) {
		return false
	}
	return true
}

// SortKey selects the ordering of a derived view.
type SortKey string

const (
	SortNone  SortKey = ""
	SortDate  SortKey = "date"
	SortHours SortKey = "hours"
)

// ParseSortKey validates a user-supplied sort key.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(strings.ToLower(strings.TrimSpace(s))); k {
	case SortNone, SortDate, SortHours:
		return k, nil
	default:
		return SortNone, fmt.Errorf("unknown sort key %q (want date or hours)", s)
	}
}

// SortDirection is the order applied for a sort key.
type SortDirection int

const (
	Ascending SortDirection = iota
	Descending
)

func (d SortDirection) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// SortDirectionFor is the direction policy per key: dates run oldest first,
// hours run largest first.
func SortDirectionFor(key SortKey) SortDirection {
	if key == SortHours {
		return Descending
	}
	return Ascending
}

// ApplySort returns a stably sorted copy of entries. Dates compare as ISO
// strings.
func ApplySort(entries []model.TimeEntry, key SortKey) []model.TimeEntry {
	out := slices.Clone(entries)
	if out == nil {
		out = []model.TimeEntry{}
	}
	var compare func(a, b model.TimeEntry) int
	switch key {
	case SortDate:
		compare = func(a, b model.TimeEntry) int { return strings.Compare(a.Date, b.Date) }
	case SortHours:
		compare = func(a, b model.TimeEntry) int { return cmp.Compare(a.Hours, b.Hours) }
	default:
		return out
	}
	if SortDirectionFor(key) == Descending {
		asc := compare
		compare = func(a, b model.TimeEntry) int { return asc(b, a) }
	}
	slices.SortStableFunc(out, compare)
	return out
}

// Paginate returns page (1-based) of view holding at most pageSize entries.
// Pages past the end and non-positive arguments yield an empty slice.
func Paginate(view []model.TimeEntry, page, pageSize int) []model.TimeEntry {
	if page < 1 || pageSize < 1 || page-1 >= PageCount(len(view), pageSize) {
		return []model.TimeEntry{}
	}
	// page-1 < PageCount, so start < len(view) and cannot overflow.
	start := (page - 1) * pageSize
	end := start + min(pageSize, len(view)-start)
	return slices.Clone(view[start:end])
}

// PageCount returns the number of pages needed for n entries.
func PageCount(n, pageSize int) int {
	if n <= 0 || pageSize < 1 {
		return 0
	}
	pages := n / pageSize
	if n%pageSize != 0 {
		pages++
	}
	return pages
}

// sumHours totals the hours of entries dated within [from, to), skipping
// the entry with id exclude.
func sumHours(entries []model.TimeEntry, from, to time.Time, exclude int64) float64 {
	var total float64
	for _, e := range entries {
		if exclude != 0 && e.ID == exclude {
			continue
		}
		d, err := timecalc.ParseDate(e.Date, from.Location())
		if err != nil {
			continue
		}
		if !d.Before(from) && d.Before(to) {
			total += e.Hours
		}
	}
	return total
}

// WeekHours totals the hours logged in the Sunday-aligned week containing day.
func WeekHours(entries []model.TimeEntry, day time.Time) float64 {
	from, to := timecalc.SundayWeek(day)
	return sumHours(entries, from, to, 0)
}

// WeeklyHoursMessage returns a warning when the entries of the seven days
// ending on the day of now add up to more than WeeklyHourLimit, and "" otherwise.
func WeeklyHoursMessage(view []model.TimeEntry, now time.Time) string {
	from, to := timecalc.TrailingWeek(now)
	total := sumHours(view, from, to.Add(time.Second), 0)
	if total <= WeeklyHourLimit {
		return ""
	}
	return fmt.Sprintf("You have logged %s hours in the last 7 days, over the %d-hour weekly limit.",
		formatHours(total), WeeklyHourLimit)
}

func formatHours(h float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", h), "0"), ".")
}
