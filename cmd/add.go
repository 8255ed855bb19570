package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/Tiliavir/timereg/internal/model"
	"github.com/Tiliavir/timereg/internal/timecalc"
)

// entryFlags are the draft fields shared by add and edit.
type entryFlags struct {
	date        string
	project     string
	category    string
	description string
	comment     string
	hours       float64
	interactive bool
}

func (f *entryFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.date, "date", "d", "", "Date of the work (YYYY-MM-DD, default today)")
	fs.StringVarP(&f.project, "project", "p", "", "Project")
	fs.StringVarP(&f.category, "category", "c", "", "Category")
	fs.StringVarP(&f.description, "description", "m", "", "What was done")
	fs.StringVar(&f.comment, "comment", "", "Comment (used when the form variant is comment)")
	fs.Float64VarP(&f.hours, "hours", "H", 0, "Hours worked, more than 0 and at most 24")
	fs.BoolVarP(&f.interactive, "interactive", "i", false, "Fill the entry in a form")
}

// draft builds a draft from base, replacing every field set on the command line.
func (f *entryFlags) draft(fs *pflag.FlagSet, base model.Draft) model.Draft {
	d := base
	if fs.Changed("date") {
		d.Date = f.date
	}
	if fs.Changed("project") {
		d.Project = f.project
	}
	if fs.Changed("category") {
		d.Category = f.category
	}
	if fs.Changed("description") {
		d.Description = f.description
	}
	if fs.Changed("comment") {
		d.Comment = f.comment
	}
	if fs.Changed("hours") {
		h := f.hours
		d.Hours = &h
	}
	return d
}

var addFlags entryFlags

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a time entry",
	Example: `  treg add --hours 2.5 --project ECM --description "Code review"
  treg add -i`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

func init() {
	addFlags.register(addCmd.Flags())
}

func runAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	m, err := loadManager(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(exitCode(err))
	}

	d := addFlags.draft(cmd.Flags(), model.Draft{})
	if addFlags.interactive {
		if d, err = fillDraft(d, model.FormVariant(cfg.View.FormVariant)); err != nil {
			return err
		}
	}

	entry, err := m.Add(ctx, d)
	if err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(exitCode(err))
	}

	fmt.Println(successStyle.Render(fmt.Sprintf("Added entry %d: %s %s (%s)",
		entry.ID, entry.Date, entry.Description, timecalc.FormatHours(entry.Hours))))
	if warning := m.View().Warning; warning != "" {
		fmt.Println(warningStyle.Render(warning))
	}
	return nil
}

// draftForm holds the text values edited in the entry form.
type draftForm struct {
	Date     string
	Project  string
	Category string
	Text     string
	Hours    string
}

func newDraftForm(d model.Draft, variant model.FormVariant) *draftForm {
	fm := &draftForm{
		Date:     d.Date,
		Project:  d.Project,
		Category: d.Category,
		Text:     d.Description,
	}
	if variant == model.VariantComment {
		fm.Text = d.Comment
	}
	if fm.Date == "" {
		fm.Date = timecalc.DateKey(time.Now())
	}
	if d.Hours != nil {
		fm.Hours = strconv.FormatFloat(*d.Hours, 'f', -1, 64)
	}
	return fm
}

// Draft converts the form values back into a draft.
func (fm *draftForm) Draft(variant model.FormVariant) model.Draft {
	d := model.Draft{
		Date:     strings.TrimSpace(fm.Date),
		Project:  fm.Project,
		Category: fm.Category,
	}
	if variant == model.VariantComment {
		d.Comment = fm.Text
	} else {
		d.Description = fm.Text
	}
	if h, err := strconv.ParseFloat(strings.TrimSpace(fm.Hours), 64); err == nil {
		d.Hours = &h
	}
	return d
}

// newEntryForm builds the add/edit form. Its field checks mirror the
// collection's validation so mistakes are caught before submitting.
func newEntryForm(fm *draftForm, variant model.FormVariant) *huh.Form {
	textTitle := "Description"
	if variant == model.VariantComment {
		textTitle = "Comment"
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Date").
				Description("YYYY-MM-DD").
				Value(&fm.Date).
				Validate(func(s string) error {
					if _, err := timecalc.ParseDate(strings.TrimSpace(s), time.Local); err != nil {
						return errors.New("date must be formatted as YYYY-MM-DD")
					}
					return nil
				}),
			huh.NewInput().
				Title("Project").
				Value(&fm.Project),
			huh.NewInput().
				Title("Category").
				Value(&fm.Category),
			huh.NewInput().
				Title(textTitle).
				Value(&fm.Text).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("%s is required", strings.ToLower(textTitle))
					}
					return nil
				}),
			huh.NewInput().
				Title("Hours").
				Value(&fm.Hours).
				Validate(func(s string) error {
					h, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
					if err != nil {
						return errors.New("hours must be a number")
					}
					if h <= 0 || h > 24 {
						return errors.New("hours must be greater than 0 and at most 24")
					}
					return nil
				}),
		),
	).WithTheme(huh.ThemeDracula())
}

// fillDraft lets the user complete d in the entry form.
func fillDraft(d model.Draft, variant model.FormVariant) (model.Draft, error) {
	fm := newDraftForm(d, variant)
	if err := newEntryForm(fm, variant).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return model.Draft{}, errors.New("cancelled")
		}
		return model.Draft{}, err
	}
	return fm.Draft(variant), nil
}
