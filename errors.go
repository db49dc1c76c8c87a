package velopg

import (
	"errors"
	"fmt"

	"github.com/syssam/velopg/migrate"
	"github.com/syssam/velopg/pgwire"
)

// The reconciliation and wire error types callers match on. They live in
// the packages that raise them; the root package re-exports them so one
// import covers the whole error surface.
type (
	// IntrospectionError marks a catalog row the inspector could not parse.
	IntrospectionError = migrate.IntrospectionError

	// MissingPrecisionError marks a live NUMERIC column without a declared
	// precision.
	MissingPrecisionError = migrate.MissingPrecisionError

	// UnsafeError carries the destructive statements a refused plan holds.
	UnsafeError = migrate.UnsafeError

	// StatementError marks the plan statement that failed to run.
	StatementError = migrate.StatementError

	// AggregateError collects independent failures from one operation.
	AggregateError = migrate.AggregateError

	// VersionError marks a server version string that could not be parsed.
	VersionError = pgwire.VersionError

	// CapabilityError marks an operation the connected server version does
	// not support.
	CapabilityError = pgwire.CapabilityError
)

// Standard sentinel errors for common operations.
var (
	// ErrNoChanges is returned when a plan holds no statements.
	ErrNoChanges = migrate.ErrNoChanges

	// ErrUnsafe is returned when a plan holds destructive statements and
	// unsafe changes were not allowed.
	ErrUnsafe = migrate.ErrUnsafe
)

// IsUnsafe returns true if the error is an UnsafeError.
func IsUnsafe(err error) bool {
	return migrate.IsUnsafe(err)
}

// IsIntrospection returns true if the error is an IntrospectionError.
func IsIntrospection(err error) bool {
	return migrate.IsIntrospection(err)
}

// IsMissingPrecision returns true if the error is a MissingPrecisionError.
func IsMissingPrecision(err error) bool {
	return migrate.IsMissingPrecision(err)
}

// ConnError represents a failure to establish the backing connection.
type ConnError struct {
	Err error // Underlying connect error
}

// Error returns the error string.
func (e *ConnError) Error() string {
	return fmt.Sprintf("velopg: connect: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnError) Unwrap() error {
	return e.Err
}

// NewConnError returns a new ConnError wrapping the given error.
func NewConnError(err error) *ConnError {
	return &ConnError{Err: err}
}

// IsConnError returns true if the error is a ConnError.
func IsConnError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConnError
	return errors.As(err, &e)
}

// ReconcileError wraps a reconciliation failure with the entity it belongs
// to.
type ReconcileError struct {
	Entity string // Entity being reconciled
	Err    error  // Underlying error
}

// Error returns the error string.
func (e *ReconcileError) Error() string {
	return fmt.Sprintf("velopg: reconciling %s: %v", e.Entity, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// NewReconcileError returns a new ReconcileError for the given entity.
func NewReconcileError(entity string, err error) *ReconcileError {
	return &ReconcileError{Entity: entity, Err: err}
}

// IsReconcileError returns true if the error is a ReconcileError.
func IsReconcileError(err error) bool {
	if err == nil {
		return false
	}
	var e *ReconcileError
	return errors.As(err, &e)
}

// ConfigError represents a failure to load or validate an options file.
type ConfigError struct {
	Path string // Options file path
	Err  error  // Underlying error
}

// Error returns the error string.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("velopg: options %q: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError returns a new ConfigError for the given path.
func NewConfigError(path string, err error) *ConfigError {
	return &ConfigError{Path: path, Err: err}
}

// IsConfigError returns true if the error is a ConfigError.
func IsConfigError(err error) bool {
	if err == nil {
		return false
	}
	var e *ConfigError
	return errors.As(err, &e)
}
