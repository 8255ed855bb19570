package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/timereg/internal/collection"
	"github.com/Tiliavir/timereg/internal/model"
	"github.com/Tiliavir/timereg/internal/timecalc"
)

var editFlags entryFlags

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change a time entry",
	Long: `Change a time entry. Fields not given keep their current value.
The weekly limit is checked without the entry's previous hours.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

func init() {
	editFlags.register(editCmd.Flags())
}

func runEdit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	m, err := loadManager(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(exitCode(err))
	}

	existing, ok := m.Get(id)
	if !ok {
		fmt.Fprintf(os.Stderr, "No entry with id %d.\n", id)
		os.Exit(1)
	}

	variant := model.FormVariant(cfg.View.FormVariant)
	d := editFlags.draft(cmd.Flags(), draftOf(existing, variant))
	if editFlags.interactive {
		if d, err = fillDraft(d, variant); err != nil {
			return err
		}
	}

	entry, err := m.Update(ctx, id, d)
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		if collection.IsKind(err, collection.KindNotFound) {
			os.Exit(1)
		}
		os.Exit(exitCode(err))
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Updated entry %d: %s %s (%s)",
		entry.ID, entry.Date, entry.Description, timecalc.FormatHours(entry.Hours))))
	return nil
}

// draftOf turns a stored entry back into a draft, putting its text in the
// field the variant requires.
func draftOf(e model.TimeEntry, variant model.FormVariant) model.Draft {
	hours := e.Hours
	d := model.Draft{
		Date:     e.Date,
		Project:  e.Project,
		Category: e.Category,
		Hours:    &hours,
	}
	if variant == model.VariantComment {
		d.Comment = e.Description
	} else {
		d.Description = e.Description
	}
	return d
}
