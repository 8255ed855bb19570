package msgraph

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/Tiliavir/timereg/internal/collection"
	"github.com/Tiliavir/timereg/internal/logger"
	"github.com/Tiliavir/timereg/internal/model"
	"github.com/Tiliavir/timereg/internal/timecalc"
)

// Importer is the part of the collection manager the sync needs.
type Importer interface {
	Entries() []model.TimeEntry
	Add(ctx context.Context, d model.Draft) (model.TimeEntry, error)
}

var _ Importer = (*collection.Manager)(nil)

// SyncResult holds counters for a sync operation.
type SyncResult struct {
	Imported int
	Skipped  int
	// Rejected counts events refused by validation or the weekly limit.
	Rejected int
	Errors   int
}

// SyncOptions configures a sync run.
type SyncOptions struct {
	DryRun   bool
	Project  string
	Category string
	// Timezone is the IANA zone used for event times without an offset.
	Timezone string
}

// parseGraphTime parses a Graph API dateTime string in the given timezone.
// Graph returns times like "2026-02-27T09:00:00.0000000" without a zone suffix
// when a Prefer: outlook.timezone header is set.
func parseGraphTime(dt, tz string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, dt); err == nil {
		return t, nil
	}

	loc := time.UTC
	if tz != "" {
		if l, err := time.LoadLocation(tz); err == nil {
			loc = l
		}
	}

	for _, layout := range []string{
		"2006-01-02T15:04:05.0000000",
		"2006-01-02T15:04:05",
	} {
		if t, err := time.ParseInLocation(layout, dt, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse graph time %q", dt)
}

// shouldSkip returns true if the event should not be imported.
func shouldSkip(event CalendarEvent) bool {
	switch {
	case event.IsCancelled, event.IsAllDay:
		return true
	case event.Sensitivity == "private":
		return true
	case event.ShowAs == "free":
		return true
	case event.Start.DateTime == "" || event.End.DateTime == "":
		return true
	}
	return false
}

// MapEventToDraft converts a Graph CalendarEvent into an entry draft. The
// subject fills both text fields so either form variant accepts it.
func MapEventToDraft(event CalendarEvent, opts SyncOptions) (model.Draft, error) {
	start, err := parseGraphTime(event.Start.DateTime, opts.Timezone)
	if err != nil {
		return model.Draft{}, fmt.Errorf("parsing start time: %w", err)
	}
	end, err := parseGraphTime(event.End.DateTime, opts.Timezone)
	if err != nil {
		return model.Draft{}, fmt.Errorf("parsing end time: %w", err)
	}

	// Whole seconds.
	hours := math.Round(timecalc.Hours(end.Sub(start))*3600) / 3600
	subject := strings.TrimSpace(event.Subject)
	return model.Draft{
		Date:        timecalc.DateKey(start),
		Project:     opts.Project,
		Category:    opts.Category,
		Description: subject,
		Comment:     subject,
		Hours:       &hours,
	}, nil
}

// dedupeKey identifies an imported event among existing entries.
func dedupeKey(date, project, description string) string {
	if len(date) > len(timecalc.DateLayout) {
		date = date[:len(timecalc.DateLayout)]
	}
	return date + "\x00" + project + "\x00" + strings.ToLower(strings.TrimSpace(description))
}

// SyncEvents adds every importable event through imp, so validation and the
// weekly limit apply as for manual entries. Events that match an existing
// entry on date, project and description are skipped. Progress goes to out.
func SyncEvents(ctx context.Context, imp Importer, events []CalendarEvent, opts SyncOptions, out io.Writer) (SyncResult, error) {
	var result SyncResult

	seen := map[string]bool{}
	for _, e := range imp.Entries() {
		seen[dedupeKey(e.Date, e.Project, e.Description)] = true
	}

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if shouldSkip(event) {
			continue
		}

		draft, err := MapEventToDraft(event, opts)
		if err != nil {
			fmt.Fprintf(out, "  ! Error mapping event %q: %v\n", event.Subject, err)
			result.Errors++
			continue
		}

		key := dedupeKey(draft.Date, draft.Project, draft.Description)
		if seen[key] {
			fmt.Fprintf(out, "  – Skipped:  %s (already exists)\n", event.Subject)
			result.Skipped++
			continue
		}

		dur := timecalc.FormatHours(*draft.Hours)
		if opts.DryRun {
			seen[key] = true
			fmt.Fprintf(out, "  ✓ Would import: %s %s (%s)\n", draft.Date, event.Subject, dur)
			result.Imported++
			continue
		}

		if _, err := imp.Add(ctx, draft); err != nil {
			switch {
			case collection.IsKind(err, collection.KindValidation), collection.IsKind(err, collection.KindCapacity):
				fmt.Fprintf(out, "  ✗ Rejected: %s: %v\n", event.Subject, err)
				result.Rejected++
			default:
				logger.Error("importing event failed", "subject", event.Subject, "error", err)
				fmt.Fprintf(out, "  ! Error saving %q: %v\n", event.Subject, err)
				result.Errors++
			}
			continue
		}
		seen[key] = true
		fmt.Fprintf(out, "  ✓ Imported: %s %s (%s)\n", draft.Date, event.Subject, dur)
		result.Imported++
	}

	return result, nil
}
