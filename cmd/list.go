package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/timereg/internal/collection"
)

var (
	listSearch   string
	listFrom     string
	listTo       string
	listDate     string
	listProject  string
	listCategory string
	listSort     string
	listPage     int
	listPageSize int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List time entries",
	Long: `List time entries, filtered, sorted and paginated.
Filters combine: an entry is shown only if it matches all of them.
--sort date lists oldest first, --sort hours lists the longest first.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "Case-insensitive text in the description")
	listCmd.Flags().StringVar(&listFrom, "from", "", "First date of a range (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listTo, "to", "", "Last date of a range (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listDate, "date", "", "Only entries on this date (YYYY-MM-DD)")
	listCmd.Flags().StringVarP(&listProject, "project", "p", "", "Only entries of this project")
	listCmd.Flags().StringVarP(&listCategory, "category", "c", "", "Only entries of this category")
	listCmd.Flags().StringVar(&listSort, "sort", "", "Sort by date or hours")
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page to show")
	listCmd.Flags().IntVar(&listPageSize, "page-size", 0, "Entries per page (default from config)")
}

func runList(cmd *cobra.Command, args []string) error {
	key, err := collection.ParseSortKey(listSort)
	if err != nil {
		return err
	}

	m, err := loadManager(cmd.Context())
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(exitCode(err))
	}

	m.SetFilter(listFilter())
	m.SetSort(key)
	if listPageSize > 0 {
		m.SetPageSize(listPageSize)
	}
	m.SetPage(listPage)

	printPage(cmd.OutOrStdout(), m.View())
	return nil
}

func listFilter() collection.Filter {
	f := collection.Filter{
		Search:   listSearch,
		Date:     listDate,
		Project:  listProject,
		Category: listCategory,
	}
	if listFrom != "" || listTo != "" {
		f.DateRange = &collection.DateRange{Start: listFrom, End: listTo}
	}
	return f
}
