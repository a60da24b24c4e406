package account

import (
	"errors"
	"strings"
)

// Sentinel errors. Every error returned by this package wraps one of these.
var (
	// ErrInvalidFormat is returned when a description string does not split
	// into two or three colon-separated fields.
	ErrInvalidFormat = errors.New("invalid account description")

	// ErrInvalidLevel is returned when a level is neither "full" nor "readonly".
	ErrInvalidLevel = errors.New("invalid account level")

	// ErrReservedUsername is returned for the username "api", which belongs
	// to the system's own internal account.
	ErrReservedUsername = errors.New("reserved username")

	// ErrMissingField is returned when a record lacks a required key.
	ErrMissingField = errors.New("missing account field")

	// ErrWrongType is returned when a record field is not a string.
	ErrWrongType = errors.New("account field has wrong type")

	// ErrConflictingFields is returned when a record sets both password and
	// password_file.
	ErrConflictingFields = errors.New("conflicting account fields")

	// ErrInvalidShape is returned for list entries that are neither strings
	// nor objects.
	ErrInvalidShape = errors.New("invalid account entry")

	// ErrSecretUnavailable is returned when a password file cannot be read.
	ErrSecretUnavailable = errors.New("account secret unavailable")
)

var kinds = []error{
	ErrInvalidFormat,
	ErrInvalidLevel,
	ErrReservedUsername,
	ErrMissingField,
	ErrWrongType,
	ErrConflictingFields,
	ErrInvalidShape,
	ErrSecretUnavailable,
}

// kindOf returns the sentinel wrapped by err, or nil.
func kindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// ValidationError describes one defect found by Validate.
type ValidationError struct {
	// Kind is the sentinel error classifying the defect.
	Kind error

	// Key is the configuration key the account list was read from.
	Key string

	// Message is the operator-facing description, with Key interpolated.
	Message string
}

func (e ValidationError) Error() string { return e.Message }

func (e ValidationError) Unwrap() error { return e.Kind }

// ValidationErrors is the result of Validate. A nil or empty value means the
// list is valid.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	return strings.Join(errs.Messages(), "; ")
}

// Unwrap exposes each defect so errors.Is matches any of their kinds.
func (errs ValidationErrors) Unwrap() []error {
	out := make([]error, len(errs))
	for i, e := range errs {
		out[i] = e
	}
	return out
}

// Err returns errs as an error, or nil when there are no defects.
func (errs ValidationErrors) Err() error {
	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Messages returns the operator-facing message of every defect.
func (errs ValidationErrors) Messages() []string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return msgs
}
