package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/lib/pq"
)

const uniqueViolationCode = "23505"

// ParseError reports a field that could not be interpreted on an incoming
// record. It never fails the record on its own; the offending field is
// dropped and the error is surfaced in the record result.
type ParseError struct {
	Field   string
	Value   any
	Message string
}

func NewParseError(field string, value any, msg string) *ParseError {
	return &ParseError{
		Field:   field,
		Value:   value,
		Message: msg,
	}
}

func NewParseErrorf(field string, value any, format string, args ...any) *ParseError {
	return NewParseError(field, value, fmt.Sprintf(format, args...))
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("field '%s': %s", e.Field, e.Message)
}

func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// ConflictError is a unique constraint violation on insert. The coordinator
// retries the record once as an update before escalating to a RecordError.
type ConflictError struct {
	Table      string
	Constraint string
	cause      error
}

func NewConflictError(table string, cause error) *ConflictError {
	ce := &ConflictError{Table: table, cause: cause}
	var pqErr *pq.Error
	if errors.As(cause, &pqErr) {
		ce.Constraint = pqErr.Constraint
	}
	return ce
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("duplicate key on %s", e.Table)
	if e.Constraint != "" {
		msg += fmt.Sprintf(" (constraint %s)", e.Constraint)
	}
	return msg
}

func (e *ConflictError) Unwrap() error {
	return e.cause
}

func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// RecordError marks a single record as failed. The batch carries on; the
// index and natural key identify the record in the batch result.
type RecordError struct {
	Index      int
	NaturalKey string
	cause      error
}

func NewRecordError(index int, naturalKey string, cause error) *RecordError {
	return &RecordError{
		Index:      index,
		NaturalKey: naturalKey,
		cause:      cause,
	}
}

func (e *RecordError) Error() string {
	parts := []string{fmt.Sprintf("record %d", e.Index)}
	if e.NaturalKey != "" {
		parts = append(parts, fmt.Sprintf("key '%s'", e.NaturalKey))
	}
	msg := strings.Join(parts, " ")
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *RecordError) Unwrap() error {
	return e.cause
}

func IsRecordError(err error) bool {
	var re *RecordError
	return errors.As(err, &re)
}

// StoreUnavailableError means the catalog database cannot be reached.
// Processing the rest of the batch would fail every record the same way,
// so the coordinator aborts immediately.
type StoreUnavailableError struct {
	Op    string
	cause error
}

func NewStoreUnavailableError(op string, cause error) *StoreUnavailableError {
	return &StoreUnavailableError{Op: op, cause: cause}
}

func (e *StoreUnavailableError) Error() string {
	msg := "catalog store unavailable"
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *StoreUnavailableError) Unwrap() error {
	return e.cause
}

func IsStoreUnavailable(err error) bool {
	var se *StoreUnavailableError
	return errors.As(err, &se)
}

// ClassifyStoreError maps a driver error from a repository call into the
// domain taxonomy. Unique violations become ConflictError, connection and
// shutdown failures become StoreUnavailableError, anything else passes
// through unchanged.
func ClassifyStoreError(op, table string, err error) error {
	if err == nil {
		return nil
	}

	// Statement timeouts surface as context errors from database/sql; a store
	// that cannot answer inside its deadline is unavailable for this batch.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return NewStoreUnavailableError(op, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code == uniqueViolationCode {
			return NewConflictError(table, err)
		}
		// Class 08 is connection exceptions, 57 is operator intervention
		// (shutdown, crash recovery).
		class := pqErr.Code.Class()
		if class == "08" || class == "57" {
			return NewStoreUnavailableError(op, err)
		}
		return err
	}

	msg := err.Error()
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "bad connection") {
		return NewStoreUnavailableError(op, err)
	}

	return err
}

func (e *RecordError) ToHTTPError() *httperror.HTTPError {
	return httperror.NewHTTPError(http.StatusUnprocessableEntity, e.Error()).AddMetaValue("record_index", fmt.Sprintf("%d", e.Index)).AddMetaValue("natural_key", e.NaturalKey)
}
