package sqlite

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Errors returned by the sqlite package.
//
// Check them with errors.Is():
//
//	if errors.Is(err, sqlite.ErrAlreadyOpen) {
//	    // close first
//	}
var (
	// ErrAlreadyOpen is returned by Open and Create when a connection is already held.
	ErrAlreadyOpen = errors.New("sqlite: database is already open")

	// ErrNotOpen is returned by query operations on a closed database.
	ErrNotOpen = errors.New("sqlite: database is not open")

	// ErrInMemoryOpen is returned by Open for the in-memory path; use Create.
	ErrInMemoryOpen = errors.New("sqlite: in-memory database can't be opened (use Create)")

	// ErrNotExist is returned by Open when the database file is missing.
	ErrNotExist = errors.New("sqlite: database file does not exist")

	// ErrNotDatabase is returned by Open when the file lacks the SQLite header.
	ErrNotDatabase = errors.New("sqlite: file is not a SQLite database")

	// ErrNilInit is returned by Create when no init function is given.
	ErrNilInit = errors.New("sqlite: operations for the created database were not specified")

	// ErrInitFailed wraps the error returned by a Create init function.
	ErrInitFailed = errors.New("sqlite: database init failed")

	// ErrArity is returned when placeholder and argument counts differ.
	ErrArity = errors.New("sqlite: number of placeholders and arguments does not match")

	// ErrUnsupportedType is returned when a Go value has no Value variant.
	ErrUnsupportedType = errors.New("sqlite: unsupported value type")

	// ErrIntegerOverflow is returned for an unsigned integer that does not
	// fit SQLite's signed 64-bit INTEGER.
	ErrIntegerOverflow = errors.New("sqlite: integer overflows int64")

	// ErrFinalized is returned when a finalized statement is executed again.
	ErrFinalized = errors.New("sqlite: statement already finalized")

	// ErrNestedTransaction is returned by Transaction when called from
	// inside another Transaction on the same Database.
	ErrNestedTransaction = errors.New("sqlite: transaction already in progress")

	// ErrReturnsRows is returned when a statement run in no-result mode
	// produces a row.
	ErrReturnsRows = errors.New("sqlite: statement returned rows")

	// ErrConvertedColumn is returned when the driver converted a cell by
	// its declared column type and the stored value can't be recovered.
	ErrConvertedColumn = errors.New("sqlite: column value converted by declared type")

	// ErrConstraint matches engine errors caused by a constraint violation
	// (UNIQUE, NOT NULL, CHECK, PRIMARY KEY, FOREIGN KEY).
	ErrConstraint = errors.New("sqlite: constraint violation")
)

// EngineError is an error reported by the SQLite engine at one stage of
// statement execution.
type EngineError struct {
	// Op is the stage that failed: open, prepare, bind, step, finalize or close.
	Op string

	// Code and ExtendedCode are the SQLite result codes (0 if unknown).
	Code         int
	ExtendedCode int

	// Err is the underlying driver error.
	Err error
}

// Error implements error.
func (e *EngineError) Error() string {
	if e.Code == 0 {
		return fmt.Sprintf("sqlite %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("sqlite %s: %v (%d)", e.Op, e.Err, e.ExtendedCode)
}

// Unwrap returns the driver error.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrConstraint) true for constraint violations.
func (e *EngineError) Is(target error) bool {
	return target == ErrConstraint && e.IsConstraint()
}

// IsConstraint reports whether the engine rejected the statement because
// of a constraint.
func (e *EngineError) IsConstraint() bool {
	return e.Code == int(sqlite3.ErrConstraint)
}

// engineError wraps err as an *EngineError for stage op, pulling result
// codes out of the go-sqlite3 error when there is one.
func engineError(op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *EngineError
	if errors.As(err, &existing) {
		return err
	}

	e := &EngineError{Op: op, Err: err}
	var se sqlite3.Error
	if errors.As(err, &se) {
		e.Code = int(se.Code)
		e.ExtendedCode = int(se.ExtendedCode)
	}
	return e
}
