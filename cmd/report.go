package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/timereg/internal/report"
	"github.com/Tiliavir/timereg/internal/timecalc"
)

var (
	reportDate   string
	reportFormat string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show today's, this week's and this month's totals",
	Long: `Show hours logged today, in the Sunday-aligned week and in the calendar
month, with the week's hours per project.`,
	Args: cobra.NoArgs,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDate, "date", "", "Report as of this date (YYYY-MM-DD, default today)")
	reportCmd.Flags().StringVar(&reportFormat, "format", "md", "Output format: md, csv, json")
}

func runReport(cmd *cobra.Command, args []string) error {
	now := time.Now()
	if reportDate != "" {
		d, err := timecalc.ParseDate(reportDate, time.Local)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid --date value %q: %v\n", reportDate, err)
			os.Exit(1)
		}
		now = d.Add(12 * time.Hour)
	}

	m, err := loadManager(cmd.Context())
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(exitCode(err))
	}

	s := report.Summarize(m.Entries(), now)
	if err := report.WriteSummary(cmd.OutOrStdout(), s, reportFormat); err != nil {
		return err
	}
	return nil
}
