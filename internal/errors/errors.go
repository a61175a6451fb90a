// Package errors consolidates error definitions for the entire project.
//
// This file provides:
// - Sentinel errors for all error conditions
// - Error category checking functions
// - Error wrapping utilities
// - A ValidationErrors collection for batch validation
package errors

import (
	"errors"
	"fmt"
)

// ============================================================================
// Sentinel errors for common conditions
// ============================================================================

var (
	// Input errors: the request itself is malformed. Surfaced before any
	// partition I/O is attempted.
	ErrMissingPrimaryKeyColumn = errors.New("missing primary key column")
	ErrInvalidWriteMode        = errors.New("invalid write mode")
	ErrInvalidDateRange        = errors.New("date_from is after date_to")
	ErrInvalidLayer            = errors.New("invalid layer")
	ErrInvalidEngine           = errors.New("invalid storage engine")
	ErrNoSymbols               = errors.New("at least one symbol required")
	ErrMissingField            = errors.New("missing required field")
	ErrInvalidConfig           = errors.New("invalid configuration")
	ErrInvalidRecord           = errors.New("invalid record")

	// Storage errors: fatal filesystem failures. The failed partition or
	// file path is attached by NewStorage.
	ErrStorageIO = errors.New("storage I/O error")

	// Manifest errors.
	ErrCorruptManifestLine = errors.New("corrupt manifest line")
	ErrManifestClosed      = errors.New("manifest is closed")

	// Fetch errors.
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrUnknownFetcher    = errors.New("unknown fetcher")

	// Job/queue errors.
	ErrQueueClosed    = errors.New("queue is closed")
	ErrRunNotFound    = errors.New("run not found")
	ErrInvalidMessage = errors.New("invalid job message")

	// State errors.
	ErrAlreadyRunning = errors.New("service already running")
	ErrNotRunning     = errors.New("service not running")

	// Internal errors
	ErrInternal = errors.New("internal error")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// Join is a convenience wrapper for errors.Join
var Join = errors.Join

// New is a convenience wrapper for errors.New
var New = errors.New

// IsInput returns true if err is a request input error.
func IsInput(err error) bool {
	return errors.Is(err, ErrMissingPrimaryKeyColumn) ||
		errors.Is(err, ErrInvalidWriteMode) ||
		errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrInvalidLayer) ||
		errors.Is(err, ErrInvalidEngine) ||
		errors.Is(err, ErrNoSymbols) ||
		errors.Is(err, ErrMissingField) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, ErrInvalidMessage)
}

// IsStorage returns true if err is a fatal storage I/O error.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorageIO)
}

// IsSourceUnavailable returns true if err is an upstream fetch failure.
func IsSourceUnavailable(err error) bool {
	return errors.Is(err, ErrSourceUnavailable)
}

// IsRetriable returns true if the error is potentially retriable by the
// caller. Storage failures are retriable because the write path re-derives
// the same idempotency key and either replays the manifest hit or redoes
// the merge; input errors are not.
func IsRetriable(err error) bool {
	return errors.Is(err, ErrStorageIO) ||
		errors.Is(err, ErrSourceUnavailable)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewStorage wraps a filesystem failure, attaching the partition or file
// path it occurred on.
func NewStorage(err error, path string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrStorageIO, path, err)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidValue creates an invalid value error.
func NewInvalidValue(field string, value interface{}, reason string) error {
	return fmt.Errorf("invalid %s '%v': %s: %w", field, value, reason, ErrInvalidConfig)
}

// ============================================================================
// Validation Errors Collection
// ============================================================================

// ValidationErrors collects multiple validation errors.
type ValidationErrors struct {
	Errors []error
}

// NewValidationErrors creates a new ValidationErrors collector.
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{}
}

// Add adds an error to the collection.
func (v *ValidationErrors) Add(err error) {
	if err != nil {
		v.Errors = append(v.Errors, err)
	}
}

// AddField adds a field validation error.
func (v *ValidationErrors) AddField(field, reason string) {
	v.Errors = append(v.Errors, fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig))
}

// HasErrors returns true if there are any errors.
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface.
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	if len(v.Errors) == 1 {
		return v.Errors[0].Error()
	}

	msg := fmt.Sprintf("validation failed with %d errors:", len(v.Errors))
	for _, err := range v.Errors {
		msg += "\n  - " + err.Error()
	}
	return msg
}

// Err returns nil if no errors, otherwise returns the ValidationErrors.
func (v *ValidationErrors) Err() error {
	if len(v.Errors) == 0 {
		return nil
	}
	return v
}

// Unwrap exposes the collected errors for errors.Is/As support.
func (v *ValidationErrors) Unwrap() []error {
	return v.Errors
}
