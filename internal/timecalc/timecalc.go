package timecalc

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// DateLayout is the ISO 8601 calendar date format used for entry dates.
const DateLayout = "2006-01-02"

var (
	idMu   sync.Mutex
	lastID int64
)

// GenerateID returns a millisecond clock value for t, bumped past the last
// value handed out so ids stay unique within the process.
func GenerateID(t time.Time) int64 {
	idMu.Lock()
	defer idMu.Unlock()
	id := t.UnixMilli()
	if id <= lastID {
		id = lastID + 1
	}
	lastID = id
	return id
}

// ParseDate parses an entry date. Plain dates ("2026-02-27") and full ISO
// timestamps ("2026-02-27T09:00:00Z") are accepted; only the date part is kept.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if len(s) < len(DateLayout) {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	t, err := time.ParseInLocation(DateLayout, s[:len(DateLayout)], loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// DateKey formats t as an entry date.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// FormatDuration formats seconds as a human-readable string like "1h 40m" or "45m" or "30s".
func FormatDuration(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s)
}

// FormatHours renders fractional hours with FormatDuration.
func FormatHours(hours float64) string {
	return FormatDuration(int64(math.Round(hours * 3600)))
}

// SundayWeek returns the Sunday-aligned week containing t as the half-open
// interval [sunday 00:00, next sunday 00:00).
func SundayWeek(t time.Time) (time.Time, time.Time) {
	start := StartOfDay(t).AddDate(0, 0, -int(t.Weekday()))
	return start, start.AddDate(0, 0, 7)
}

// TrailingWeek returns the seven calendar days ending on the day of now,
// inclusive on both ends.
func TrailingWeek(now time.Time) (time.Time, time.Time) {
	return StartOfDay(now).AddDate(0, 0, -6), EndOfDay(now)
}

// ISOWeekLabel returns a label like "2026-W09".
func ISOWeekLabel(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// StartOfDay returns 00:00:00 of the same day.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59 of the same day.
func EndOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Hours converts a duration to fractional hours.
func Hours(d time.Duration) float64 {
	return d.Seconds() / 3600
}
