package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoData is returned when no dataset snapshot has been published yet.
var ErrNoData = errors.New("no dataset loaded")

// InvalidFieldError reports a query referencing a column that does not exist
// in the dataset schema. Validation errors are terminal: no partial result
// is produced.
type InvalidFieldError struct {
	Field     string
	Available []string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("unknown field %q (available: %s)",
		e.Field, strings.Join(e.Available, ", "))
}

// TypeMismatchError reports an aggregation or filter that is incompatible
// with the referenced column's declared type.
type TypeMismatchError struct {
	Field    string
	Expected string
	Got      string
	Operator string
}

func (e *TypeMismatchError) Error() string {
	if e.Operator != "" {
		return fmt.Sprintf("field %q: operator %q expects %s, got %s",
			e.Field, e.Operator, e.Expected, e.Got)
	}
	return fmt.Sprintf("field %q: expected %s, got %s", e.Field, e.Expected, e.Got)
}

// IsValidationError reports whether err is a terminal validation failure
// (unknown field or type mismatch) as opposed to a degradable condition.
func IsValidationError(err error) bool {
	var invalid *InvalidFieldError
	var mismatch *TypeMismatchError
	return errors.As(err, &invalid) || errors.As(err, &mismatch)
}
