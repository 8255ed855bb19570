package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/timereg/internal/msgraph"
	"github.com/Tiliavir/timereg/internal/timecalc"
)

var (
	outlookSyncFrom     string
	outlookSyncTo       string
	outlookSyncDate     string
	outlookSyncToday    bool
	outlookSyncDryRun   bool
	outlookSyncProject  string
	outlookSyncCategory string
	outlookSyncTZ       string
)

var outlookCmd = &cobra.Command{
	Use:   "outlook",
	Short: "Outlook calendar integration",
}

var outlookSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import Outlook calendar events as time entries",
	Long: `Import Outlook calendar events as time entries. Cancelled, all-day,
private and free events are ignored. Events matching an existing entry on
date, project and description are skipped, so running sync twice is safe.
Imported entries are validated and count towards the weekly limit.`,
	Args: cobra.NoArgs,
	RunE: runOutlookSync,
}

func init() {
	outlookSyncCmd.Flags().StringVar(&outlookSyncFrom, "from", "", "Start date (YYYY-MM-DD); required when --to is specified")
	outlookSyncCmd.Flags().StringVar(&outlookSyncTo, "to", "", "End date (YYYY-MM-DD); defaults to today")
	outlookSyncCmd.Flags().StringVar(&outlookSyncDate, "date", "", "Sync a specific date (YYYY-MM-DD)")
	outlookSyncCmd.Flags().BoolVar(&outlookSyncToday, "today", false, "Sync only today (default)")
	outlookSyncCmd.Flags().BoolVar(&outlookSyncDryRun, "dry-run", false, "Print planned operations without writing")
	outlookSyncCmd.Flags().StringVar(&outlookSyncProject, "project", "", "Project for imported events (default from config)")
	outlookSyncCmd.Flags().StringVar(&outlookSyncCategory, "category", "", "Category for imported events (default from config)")
	outlookSyncCmd.Flags().StringVar(&outlookSyncTZ, "timezone", "", "IANA timezone for event times (e.g. Europe/Berlin)")
	outlookCmd.AddCommand(outlookSyncCmd)
}

func runOutlookSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	from, to, err := syncWindow(time.Now(), outlookSyncDate, outlookSyncFrom, outlookSyncTo)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opts := msgraph.SyncOptions{
		DryRun:   outlookSyncDryRun,
		Project:  firstNonEmpty(outlookSyncProject, cfg.Outlook.DefaultProject),
		Category: firstNonEmpty(outlookSyncCategory, cfg.Outlook.DefaultCategory),
		Timezone: firstNonEmpty(outlookSyncTZ, cfg.Outlook.Timezone),
	}

	m, err := loadManager(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(exitCode(err))
	}

	dryTag := ""
	if opts.DryRun {
		dryTag = " [dry-run]"
	}
	fmt.Printf("Syncing Outlook events (%s → %s)%s...\n",
		timecalc.DateKey(from), timecalc.DateKey(to), dryTag)
	fmt.Println()

	tok, oauthCfg, err := msgraph.Authorize(ctx, cfg.Outlook.TenantID, cfg.Outlook.ClientID, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Authentication failed: %v\n", err)
		os.Exit(1)
	}
	client := msgraph.NewClient(ctx, tok, oauthCfg)

	events, err := client.GetCalendarView(ctx, from, to, opts.Timezone)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to fetch calendar events: %v\n", err)
		os.Exit(2)
	}

	result, err := msgraph.SyncEvents(ctx, m, events, opts, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sync error: %v\n", err)
		os.Exit(2)
	}

	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  %d imported\n", result.Imported)
	fmt.Printf("  %d skipped\n", result.Skipped)
	if result.Rejected > 0 {
		fmt.Printf("  %d rejected\n", result.Rejected)
	}
	if result.Errors > 0 {
		fmt.Printf("  %d errors\n", result.Errors)
		os.Exit(2)
	}
	return nil
}

// syncWindow turns the date flags into the local-time window to import.
// A single date wins over a range; without either the window is today.
func syncWindow(now time.Time, date, fromArg, toArg string) (time.Time, time.Time, error) {
	day := func(flag, v string) (time.Time, error) {
		t, err := time.ParseInLocation(timecalc.DateLayout, v, now.Location())
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid --%s value %q: %w", flag, v, err)
		}
		return t, nil
	}

	switch {
	case date != "":
		d, err := day("date", date)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return timecalc.StartOfDay(d), timecalc.EndOfDay(d), nil
	case fromArg == "" && toArg == "":
		return timecalc.StartOfDay(now), timecalc.EndOfDay(now), nil
	case fromArg == "":
		return time.Time{}, time.Time{}, errors.New("--from is required when --to is specified")
	}

	from, err := day("from", fromArg)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to := now
	if toArg != "" {
		if to, err = day("to", toArg); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("--to %s is before --from %s", timecalc.DateKey(to), timecalc.DateKey(from))
	}
	return timecalc.StartOfDay(from), timecalc.EndOfDay(to), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
