package migrate

import (
	"errors"
	"fmt"
	"strings"
)

// Standard sentinel errors for common operations.
var (
	// ErrNoChanges is returned when writing a plan that contains no
	// statements.
	ErrNoChanges = errors.New("migrate: no schema changes detected")

	// ErrUnsafe is returned when a plan contains destructive statements and
	// unsafe execution has not been enabled.
	ErrUnsafe = errors.New("migrate: unsafe schema changes detected")
)

// IntrospectionError reports a catalog row that could not be interpreted.
// Rows that fail to parse do not abort the read of a table; they are
// collected and returned together so a single run surfaces every problem.
type IntrospectionError struct {
	Table  string
	Column string // Optional: the column the row describes.
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *IntrospectionError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("migrate: introspecting %s.%s: %v", e.Table, e.Column, e.Err)
	}
	return fmt.Sprintf("migrate: introspecting %s: %v", e.Table, e.Err)
}

// Unwrap returns the underlying error.
func (e *IntrospectionError) Unwrap() error {
	return e.Err
}

// NewIntrospectionError returns a new IntrospectionError.
func NewIntrospectionError(table, column string, err error) *IntrospectionError {
	return &IntrospectionError{Table: table, Column: column, Err: err}
}

// IsIntrospection returns true if the error is an IntrospectionError.
func IsIntrospection(err error) bool {
	if err == nil {
		return false
	}
	var e *IntrospectionError
	return errors.As(err, &e)
}

// MissingPrecisionError is returned when a live numeric column carries no
// precision in the catalog. The desired model cannot round-trip such a
// column, so it must be declared explicitly.
type MissingPrecisionError struct {
	Table  string
	Column string
}

// Error returns the error string.
func (e *MissingPrecisionError) Error() string {
	return fmt.Sprintf("migrate: %s.%s: numeric column has no precision; declare one on the field", e.Table, e.Column)
}

// NewMissingPrecisionError returns a new MissingPrecisionError.
func NewMissingPrecisionError(table, column string) *MissingPrecisionError {
	return &MissingPrecisionError{Table: table, Column: column}
}

// IsMissingPrecision returns true if the error is a MissingPrecisionError.
func IsMissingPrecision(err error) bool {
	if err == nil {
		return false
	}
	var e *MissingPrecisionError
	return errors.As(err, &e)
}

// UnsafeError is returned by Apply when the computed plan contains
// destructive statements and the migration was not configured to run them.
// Nothing has been executed when this error is returned.
type UnsafeError struct {
	Statements []string
}

// Error returns the error string.
func (e *UnsafeError) Error() string {
	var sb strings.Builder
	sb.WriteString("migrate: refusing to run destructive statements:")
	for _, s := range e.Statements {
		sb.WriteString("\n\t")
		sb.WriteString(s)
	}
	return sb.String()
}

// Is reports whether the target error matches UnsafeError.
// This allows errors.Is(unsafeErr, ErrUnsafe) to return true.
func (e *UnsafeError) Is(err error) bool {
	return err == ErrUnsafe
}

// IsUnsafe returns true if the error is an UnsafeError.
func IsUnsafe(err error) bool {
	if err == nil {
		return false
	}
	var e *UnsafeError
	return errors.As(err, &e) || errors.Is(err, ErrUnsafe)
}

// StatementError wraps a failure to execute one statement of a plan.
type StatementError struct {
	Statement string
	Err       error
}

// Error returns the error string.
func (e *StatementError) Error() string {
	return fmt.Sprintf("migrate: executing %q: %v", e.Statement, e.Err)
}

// Unwrap returns the underlying error.
func (e *StatementError) Unwrap() error {
	return e.Err
}

// AggregateError represents multiple errors collected during an operation.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "migrate: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("migrate: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// Unwrap returns the collected errors, so errors.Is and errors.As see
// through the aggregate.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// NewAggregateError returns a new AggregateError if there are errors,
// otherwise returns nil.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &AggregateError{Errors: filtered}
}
