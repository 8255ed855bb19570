package collection

import (
	"math"
	"strings"
	"time"

	"github.com/Tiliavir/timereg/internal/model"
	"github.com/Tiliavir/timereg/internal/timecalc"
)

// MaxEntryHours is the upper bound for a single entry.
const MaxEntryHours = 24

// Validate checks a draft and returns every violation found, hours first,
// then the required text field for the variant, then the date format.
// An empty result means the draft is acceptable.
func Validate(d model.Draft, variant model.FormVariant) []model.FieldError {
	var errs []model.FieldError

	switch {
	case d.Hours == nil || math.IsNaN(*d.Hours):
		errs = append(errs, model.FieldError{Field: "hours", Message: "Hours is required."})
	case *d.Hours <= 0 || *d.Hours > MaxEntryHours:
		errs = append(errs, model.FieldError{Field: "hours", Message: "Hours must be greater than 0 and at most 24."})
	}

	if variant == model.VariantComment {
		if strings.TrimSpace(d.Comment) == "" {
			errs = append(errs, model.FieldError{Field: "comment", Message: "Comment is required."})
		}
	} else if strings.TrimSpace(d.Description) == "" {
		errs = append(errs, model.FieldError{Field: "description", Message: "Description is required."})
	}

	if d.Date != "" {
		if _, err := timecalc.ParseDate(d.Date, time.UTC); err != nil {
			errs = append(errs, model.FieldError{Field: "date", Message: "Date must be formatted as YYYY-MM-DD."})
		}
	}

	return errs
}
