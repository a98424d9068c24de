package telemetry

import (
	"errors"
	"fmt"
)

// Error represents a telemetry pipeline error with categorization.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes for pipeline operations.
const (
	// ErrCodeNoData indicates no data was found.
	ErrCodeNoData = "NO_DATA"

	// ErrCodeValidation indicates validation failed.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeConfiguration indicates invalid configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"

	// ErrCodeDatabase indicates a database operation failed.
	ErrCodeDatabase = "DATABASE_ERROR"

	// ErrCodeConnectivity indicates the message bus or the relational
	// store is unreachable. Connectivity errors are logged and leave the
	// pipeline in a degraded state awaiting reconnect; they are never
	// propagated to a synchronous caller.
	ErrCodeConnectivity = "CONNECTIVITY_ERROR"

	// ErrCodeAttribution indicates an inbound message arrived for a topic
	// unknown to the subscription registry. Such messages are dropped.
	ErrCodeAttribution = "ATTRIBUTION_ERROR"

	// ErrCodePersistence indicates a topic record commit failed. The
	// message's fan-out is skipped; there is no retry.
	ErrCodePersistence = "PERSISTENCE_ERROR"
)

// Common errors.
var (
	// ErrNoData is returned when a query returns no results.
	// This is not necessarily an error condition in all cases.
	ErrNoData = &Error{
		Code:    ErrCodeNoData,
		Message: "no data found",
	}

	// ErrTopicUnknown is returned when a topic cannot be attributed to a
	// device/zone pair via the subscription registry.
	ErrTopicUnknown = &Error{
		Code:    ErrCodeAttribution,
		Message: "topic not present in subscription registry",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// IsNoData checks if an error is ErrNoData.
func IsNoData(err error) bool {
	var telErr *Error
	if errors.As(err, &telErr) {
		return telErr.Code == ErrCodeNoData
	}
	return errors.Is(err, ErrNoData)
}

// IsTopicUnknown checks if an error is an attribution failure.
func IsTopicUnknown(err error) bool {
	var telErr *Error
	if errors.As(err, &telErr) {
		return telErr.Code == ErrCodeAttribution
	}
	return errors.Is(err, ErrTopicUnknown)
}
