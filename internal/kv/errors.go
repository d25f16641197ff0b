package kv

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match with errors.Is.
var (
	// ErrNotFound indicates no row matched a token under the ReturnNotFound policy.
	ErrNotFound = errors.New("token not present")

	// ErrDuplicateKey indicates Put hit the UNIQUE constraint on token.
	ErrDuplicateKey = errors.New("duplicate token")

	// ErrUnsupportedParameterType indicates a value outside {Text, Int32, Int64}.
	ErrUnsupportedParameterType = errors.New("unsupported parameter type")

	// ErrParameterIndex indicates positional parameters are not exactly 1..n.
	ErrParameterIndex = errors.New("invalid parameter index")

	// ErrEmptyResult indicates a single-row lookup matched zero rows under FailFast.
	ErrEmptyResult = errors.New("expected exactly one row, got none")

	// ErrMultipleRows indicates a single-row lookup matched more than one row.
	ErrMultipleRows = errors.New("expected exactly one row, got several")

	// ErrTokenTooLong indicates a token wider than the token column.
	ErrTokenTooLong = errors.New("token exceeds column width")

	// ErrInvalidTable indicates a table name that is not a plain SQL identifier.
	ErrInvalidTable = errors.New("invalid table name")
)

// StorageError wraps a failure from statement execution or result collapse.
type StorageError struct {
	// Op is the store operation: "ensure_schema", "put", "update", "get", "count".
	Op string

	// Table is the table the statement targeted.
	Table string

	// Err is the driver error or a collapse sentinel.
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("kv %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// NotFoundError reports a token with no row under the ReturnNotFound policy.
type NotFoundError struct {
	Token string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("token %q not present", e.Token)
}

// Is reports ErrNotFound so callers need not know the concrete type.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// DuplicateKeyError reports a Put of a token that already exists in unique mode.
type DuplicateKeyError struct {
	Token string
	Err   error // driver error
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("token %q already present", e.Token)
}

func (e *DuplicateKeyError) Is(target error) bool {
	return target == ErrDuplicateKey
}

func (e *DuplicateKeyError) Unwrap() error {
	return e.Err
}

// UnsupportedParameterTypeError reports a parameter outside the Param union.
// Index is the positional index, or 0 when the value was converted standalone.
type UnsupportedParameterTypeError struct {
	Index int
	Value any
}

func (e *UnsupportedParameterTypeError) Error() string {
	if e.Index > 0 {
		return fmt.Sprintf("parameter %d: unsupported type %T", e.Index, e.Value)
	}
	return fmt.Sprintf("unsupported parameter type %T", e.Value)
}

func (e *UnsupportedParameterTypeError) Is(target error) bool {
	return target == ErrUnsupportedParameterType
}

// IsNotFound reports whether err is, or wraps, a not-found lookup.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsStorageError reports whether err is, or wraps, a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
