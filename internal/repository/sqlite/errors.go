package sqlite

import (
	"errors"
	"fmt"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sakif/vinyl-storefront/internal/apperror"
)

// ErrDatabaseNotReady is returned when a call gave up waiting for
// initialization. It matches apperror.ErrNotReady.
var ErrDatabaseNotReady = fmt.Errorf("sqlite: waiting for initialization: %w", apperror.ErrNotReady)

// InitializationError reports which step of open → schema → seed failed.
// It matches apperror.ErrNotInitialized and the underlying cause.
type InitializationError struct {
	Stage string
	Err   error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("sqlite: initialization failed during %s: %v", e.Stage, e.Err)
}

func (e *InitializationError) Unwrap() []error {
	return []error{apperror.ErrNotInitialized, e.Err}
}

// QueryError is the single failure type of the execution primitive.
// Err is the cause: ErrDatabaseNotReady, a *ConstraintViolation, a context
// error, or whatever the driver returned.
type QueryError struct {
	Statement string
	Err       error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("sqlite: query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ConstraintKind names which kind of constraint rejected a write.
type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintCheck      ConstraintKind = "check"
	ConstraintForeignKey ConstraintKind = "foreign_key"
	ConstraintNotNull    ConstraintKind = "not_null"
	ConstraintPrimaryKey ConstraintKind = "primary_key"
	ConstraintOther      ConstraintKind = "constraint"
)

// ConstraintViolation is a write rejected by a UNIQUE, CHECK, FOREIGN KEY or
// NOT NULL constraint. It matches apperror.ErrConflict so the UI can say
// "already registered" instead of a generic failure.
type ConstraintViolation struct {
	Kind ConstraintKind
	Code int // SQLite extended result code
	Err  error
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("%s constraint violated: %v", e.Kind, e.Err)
}

func (e *ConstraintViolation) Unwrap() []error {
	return []error{apperror.ErrConflict, e.Err}
}

// IsConstraint reports whether err carries a ConstraintViolation of the
// given kind. An empty kind matches any constraint.
func IsConstraint(err error, kind ConstraintKind) bool {
	var cv *ConstraintViolation
	if !errors.As(err, &cv) {
		return false
	}
	return kind == "" || cv.Kind == kind
}

// classify wraps a driver error in a QueryError, promoting constraint
// failures to ConstraintViolation.
//
// The decision is made on SQLite's extended result code, never on the error
// text. The primary code lives in the low byte; the extended code tells which
// constraint fired.
func classify(stmt string, err error) error {
	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code&0xff == sqlite3.SQLITE_CONSTRAINT {
			err = &ConstraintViolation{Kind: constraintKind(code), Code: code, Err: err}
		}
	}
	return &QueryError{Statement: stmt, Err: err}
}

func constraintKind(code int) ConstraintKind {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE:
		return ConstraintUnique
	case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return ConstraintPrimaryKey
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		return ConstraintCheck
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return ConstraintForeignKey
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		return ConstraintNotNull
	}
	return ConstraintOther
}
