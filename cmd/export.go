package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/timereg/internal/collection"
	"github.com/Tiliavir/timereg/internal/model"
	"github.com/Tiliavir/timereg/internal/report"
)

var (
	exportFormat  string
	exportOut     string
	exportFrom    string
	exportTo      string
	exportProject string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export time entries",
	Long: `Export time entries ordered by date, to stdout or to --out.
The xlsx format adds a summary sheet and needs --out.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "Output format: csv, json, md, xlsx")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to this file instead of stdout")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "First date (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Last date (YYYY-MM-DD)")
	exportCmd.Flags().StringVarP(&exportProject, "project", "p", "", "Only entries of this project")
}

func runExport(cmd *cobra.Command, args []string) error {
	if err := checkExportFormat(exportFormat, exportOut); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	m, err := loadManager(cmd.Context())
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(exitCode(err))
	}

	f := collection.Filter{Project: exportProject}
	if exportFrom != "" || exportTo != "" {
		f.DateRange = &collection.DateRange{Start: exportFrom, End: exportTo}
	}
	entries := collection.ApplySort(collection.ApplyFilter(m.Entries(), f), collection.SortDate)

	if err := writeExport(cmd.OutOrStdout(), exportOut, exportFormat, entries, time.Now()); err != nil {
		return err
	}
	if exportOut != "" {
		fmt.Fprintf(os.Stderr, "Exported %d entries to %s\n", len(entries), exportOut)
	}
	return nil
}

// checkExportFormat rejects unknown formats before anything is written.
func checkExportFormat(format, out string) error {
	switch format {
	case "csv", "json", "md":
		return nil
	case "xlsx":
		if out == "" {
			return errors.New("--out is required for xlsx exports")
		}
		return nil
	default:
		return fmt.Errorf("unknown export format %q (want csv, json, md or xlsx)", format)
	}
}

// writeExport renders entries to the file at path, or to w when path is
// empty. A failed export removes the partial file.
func writeExport(w io.Writer, path, format string, entries []model.TimeEntry, now time.Time) (err error) {
	if path == "" {
		return renderExport(w, format, entries, now)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing export file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	return renderExport(file, format, entries, now)
}

func renderExport(w io.Writer, format string, entries []model.TimeEntry, now time.Time) error {
	if format == "xlsx" {
		return report.WriteXLSX(w, entries, report.Summarize(entries, now))
	}
	return report.WriteEntries(w, entries, format)
}
