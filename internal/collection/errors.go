package collection

import (
	"errors"
	"strings"

	"github.com/Tiliavir/timereg/internal/entrystore"
	"github.com/Tiliavir/timereg/internal/model"
)

// Kind classifies a failed collection operation.
type Kind string

const (
	KindValidation Kind = "validation"
	KindCapacity   Kind = "capacity"
	KindTransport  Kind = "transport"
	KindAPI        Kind = "api"
	KindBusy       Kind = "busy"
	KindNotFound   Kind = "not_found"
)

// Error is the user-facing failure of a collection operation. Fields is set
// for validation failures, StatusCode for API failures.
type Error struct {
	Kind       Kind
	Message    string
	StatusCode int
	Fields     []model.FieldError
	Err        error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a collection error of the given kind.
func IsKind(err error, kind Kind) bool {
	var ce *Error
	return errors.As(err, &ce) && ce.Kind == kind
}

func validationError(fields []model.FieldError) *Error {
	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f.Message)
	}
	return &Error{
		Kind:    KindValidation,
		Message: strings.Join(msgs, " "),
		Fields:  fields,
	}
}

// fromStore converts an entry store failure into a collection error.
func fromStore(err error) *Error {
	var se *entrystore.Error
	if errors.As(err, &se) {
		kind := KindAPI
		if se.Kind == entrystore.KindTransport {
			kind = KindTransport
		}
		return &Error{Kind: kind, Message: se.Message, StatusCode: se.StatusCode, Err: err}
	}
	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}
