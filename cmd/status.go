package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/timereg/internal/collection"
	"github.com/Tiliavir/timereg/internal/timecalc"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend status and this week's hours",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	now := time.Now()

	fmt.Printf("Backend: %s\n", cfg.API.BaseURL)
	m, err := loadManager(cmd.Context())
	if err != nil {
		fmt.Println(errorStyle.Render("Unreachable."))
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(exitCode(err))
	}

	entries := m.Entries()
	var today float64
	for _, e := range entries {
		if d, err := timecalc.ParseDate(e.Date, now.Location()); err == nil && timecalc.SameDay(d, now) {
			today += e.Hours
		}
	}
	weekFrom, _ := timecalc.SundayWeek(now)
	week := collection.WeekHours(entries, now)

	fmt.Printf("Entries: %d\n", len(entries))
	fmt.Printf("Today: %s logged.\n", timecalc.FormatHours(today))
	fmt.Printf("Week of %s: %s of %d hours.\n",
		timecalc.DateKey(weekFrom), timecalc.FormatHours(week), collection.WeeklyHourLimit)
	if warning := m.View().Warning; warning != "" {
		fmt.Println(warningStyle.Render(warning))
	}
	return nil
}
