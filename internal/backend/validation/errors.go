package validation

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// ErrorCode identifies the kind of a field violation.
type ErrorCode string

const (
	InvalidUrl          ErrorCode = "InvalidUrl"
	InvalidColor        ErrorCode = "InvalidColor"
	InvalidSize         ErrorCode = "InvalidSize"
	InvalidFormat       ErrorCode = "InvalidFormat"
	UnsupportedLogoType ErrorCode = "UnsupportedLogoType"
	LogoTooLarge        ErrorCode = "LogoTooLarge"
)

// FieldError is a single violated constraint.
type FieldError struct {
	Field   string    `json:"field"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError carries every violation found in one request.
type ValidationError struct {
	errs error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0)
	for _, err := range multierr.Errors(e.errs) {
		msgs = append(msgs, err.Error())
	}
	return "invalid request: " + strings.Join(msgs, "; ")
}

// Unwrap exposes the individual field errors to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	return multierr.Errors(e.errs)
}

// Fields returns the violations in the order they were found.
func (e *ValidationError) Fields() []FieldError {
	fields := make([]FieldError, 0)
	for _, err := range multierr.Errors(e.errs) {
		var fe *FieldError
		if errors.As(err, &fe) {
			fields = append(fields, *fe)
		}
	}
	return fields
}

// HasCode reports whether any violation carries code.
func (e *ValidationError) HasCode(code ErrorCode) bool {
	for _, f := range e.Fields() {
		if f.Code == code {
			return true
		}
	}
	return false
}
