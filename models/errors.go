package models

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// ErrorKind classifies a failure so callers can decide whether to retry,
// skip, or surface it.
type ErrorKind string

const (
	// ErrValidation marks missing or malformed request parameters.
	// Never retried.
	ErrValidation ErrorKind = "validation_error"
	// ErrUpstreamFetch marks a transient upstream I/O failure during
	// backfill. Retried with backoff; exhausting the retry budget pauses
	// the job instead of failing it.
	ErrUpstreamFetch ErrorKind = "upstream_fetch_error"
	// ErrDataIntegrity marks a single event failing an invariant check.
	// The event is skipped and counted; the batch continues.
	ErrDataIntegrity ErrorKind = "data_integrity_error"
	// ErrInsufficientHistory marks a forecast or anomaly request that
	// lacks enough data points. Surfaced, not retried.
	ErrInsufficientHistory ErrorKind = "insufficient_history_error"
	// ErrConfiguration marks a bad date range, unknown tool, or other
	// fatal setup problem. The job or request fails immediately.
	ErrConfiguration ErrorKind = "configuration_error"
	// ErrServiceUnavailable marks the store or upstream being unreachable
	// beyond the retry budget or a caller-supplied timeout.
	ErrServiceUnavailable ErrorKind = "service_unavailable"
)

// AdvisorError is the typed error carried across the engine. It wraps an
// optional cause and is matchable with errors.As.
type AdvisorError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *AdvisorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AdvisorError) Unwrap() error { return e.Cause }

// NewError builds an AdvisorError with a fixed message.
func NewError(kind ErrorKind, message string) *AdvisorError {
	return &AdvisorError{Kind: kind, Message: message}
}

// Errorf builds an AdvisorError with a formatted message.
func Errorf(kind ErrorKind, format string, args ...interface{}) *AdvisorError {
	return &AdvisorError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError attaches a cause to a kinded error.
func WrapError(kind ErrorKind, message string, cause error) *AdvisorError {
	return &AdvisorError{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the error kind, defaulting to service_unavailable for
// untyped errors so handlers always have a status to report.
func KindOf(err error) ErrorKind {
	var ae *AdvisorError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ErrServiceUnavailable
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error kind to the response status used by handlers.
func HTTPStatus(err error) int {
	return StatusForKind(KindOf(err))
}

// StatusForKind maps a bare kind to a response status, for callers that
// only carry the kind over the wire.
func StatusForKind(kind ErrorKind) int {
	switch kind {
	case ErrValidation, ErrDataIntegrity:
		return fiber.StatusBadRequest
	case ErrConfiguration:
		return fiber.StatusUnprocessableEntity
	case ErrInsufficientHistory:
		return fiber.StatusConflict
	case ErrServiceUnavailable, ErrUpstreamFetch:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}
