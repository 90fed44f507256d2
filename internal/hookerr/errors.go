package hookerr

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline's failure modes.
var (
	// ErrUnrecognizedPayload - stdin payload matches no known tool (exit cleanly, emit nothing)
	ErrUnrecognizedPayload = errors.New("unrecognized payload")

	// ErrCursorConflict - a concurrent invocation won the cursor commit (reload and recompute once)
	ErrCursorConflict = errors.New("cursor conflict")

	// ErrSourceRead - I/O failure reading the transcript or event stream (abort without advancing the cursor)
	ErrSourceRead = errors.New("source read failure")

	// ErrBackendDelivery - a backend rejected or failed delivery (logged per backend, cursor stays advanced)
	ErrBackendDelivery = errors.New("backend delivery failure")

	// ErrInvalidConfig - configuration validation failure (surfaced to the operator, not swallowed)
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// UnrecognizedPayload wraps a message as an unrecognized-payload error.
func UnrecognizedPayload(message string) error {
	return fmt.Errorf("%s: %w", message, ErrUnrecognizedPayload)
}

// SourceRead wraps an underlying I/O error as a source read failure.
func SourceRead(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%v: %w", err, ErrSourceRead)
}

// Delivery wraps a backend error, tagging the backend name.
func Delivery(backend string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("backend %s: %v: %w", backend, err, ErrBackendDelivery)
}

// InvalidConfig wraps a message as a configuration validation error.
func InvalidConfig(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidConfig)
}

// IsRetryable reports whether the pipeline should retry the operation.
// Only a lost cursor race is retried, and only once.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrCursorConflict)
}

// Category returns the taxonomy name for structured logging.
func Category(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnrecognizedPayload):
		return "UnrecognizedPayload"
	case errors.Is(err, ErrCursorConflict):
		return "CursorConflict"
	case errors.Is(err, ErrSourceRead):
		return "SourceReadFailure"
	case errors.Is(err, ErrBackendDelivery):
		return "BackendDeliveryFailure"
	case errors.Is(err, ErrInvalidConfig):
		return "InvalidConfig"
	default:
		return "Unknown"
	}
}
