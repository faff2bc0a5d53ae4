// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common conditions.
var (
	ErrUnknownType        = errors.New("unknown type")
	ErrUnsupportedSRID    = errors.New("unsupported srid")
	ErrDuplicateAttribute = errors.New("duplicate attribute name")
	ErrFieldNotFound      = errors.New("field not found")
	ErrFieldType          = errors.New("field has wrong type")
	ErrBufferFull         = errors.New("buffer is full")
	ErrSchemaNotFound     = errors.New("schema not found")
	ErrWriterClosed       = errors.New("storage writer is closed")
	ErrSourceClosed       = errors.New("record source is closed")
	ErrConnectionLost     = errors.New("connection lost")
)

// ParseError reports malformed spec text. Remainder is the unparsed input
// starting at the offending token.
type ParseError struct {
	Remainder string
	Message   string
	Err       error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at %q: %s", e.Remainder, e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ValidationError reports a schema or field-role configuration problem.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field=%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// SkippedRecordError reports a record that was dropped from a batch. It is
// a warning: the batch continues unless strict mode is on.
type SkippedRecordError struct {
	FeatureID string
	Reason    string
}

func (e *SkippedRecordError) Error() string {
	return fmt.Sprintf("skipped record: feature_id=%s: %s", e.FeatureID, e.Reason)
}

// IsWarning always returns true; skipped records never abort on their own.
func (e *SkippedRecordError) IsWarning() bool {
	return true
}

// SinkError reports a write failure on the output sink. Records is the
// number of complete records written before the failure.
type SinkError struct {
	Records int64
	Err     error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink error after %d records: %v", e.Records, e.Err)
}

func (e *SinkError) Unwrap() error {
	return e.Err
}

// StorageError represents a storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	return e.Operation == "write" || e.Operation == "upload" || e.Operation == "create"
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	return errors.Is(err, ErrConnectionLost)
}

// IsSkipped reports whether err carries a SkippedRecordError.
func IsSkipped(err error) bool {
	var skipped *SkippedRecordError
	return errors.As(err, &skipped)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
