package model

import "time"

// TimeEntry is a single registered block of work.
type TimeEntry struct {
	ID          int64     `json:"id"`
	Date        string    `json:"date"`
	Project     string    `json:"project"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Hours       float64   `json:"hours"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Draft is the user-supplied input for a new or edited entry.
// Hours is nil when the field was left empty.
type Draft struct {
	Date        string
	Project     string
	Category    string
	Description string
	Comment     string
	Hours       *float64
}

// Text returns the free-text body the variant requires: the comment for
// VariantComment, the description otherwise.
func (d Draft) Text(variant FormVariant) string {
	if variant == VariantComment {
		return d.Comment
	}
	return d.Description
}

// FormVariant selects which text field a draft must carry.
type FormVariant string

const (
	VariantDescription FormVariant = "description"
	VariantComment     FormVariant = "comment"
)

// FieldError is a single validation failure on a draft.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// DayFile is the top-level structure stored in each daily JSON file.
type DayFile struct {
	Date    string      `json:"date"`
	Entries []TimeEntry `json:"entries"`
}
