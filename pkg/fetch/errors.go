package fetch

import (
	"errors"
	"fmt"

	"github.com/farescout/farescout/pkg/queue"
)

// ErrorClass represents a classification of upstream failures.
type ErrorClass string

const (
	// ErrorClassRateLimit marks upstream rate-limit rejections (429/420).
	// These are retried by the admission queue.
	ErrorClassRateLimit ErrorClass = "rate_limit"

	// ErrorClassTransport marks network failures and 5xx responses.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassMalformed marks responses that could not be parsed.
	ErrorClassMalformed ErrorClass = "malformed"

	// ErrorClassClient marks other 4xx responses.
	ErrorClassClient ErrorClass = "client"
)

// UpstreamError carries the classification of a failed upstream call.
type UpstreamError struct {
	StatusCode int
	Class      ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s error (status %d): %s: %v",
			e.Class, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s error (status %d): %s",
		e.Class, e.StatusCode, e.Message)
}

// Unwrap lets errors.Is recognize rate-limit rejections via
// queue.ErrRateLimited so the admission queue requeues them.
func (e *UpstreamError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Class == ErrorClassRateLimit {
		return queue.ErrRateLimited
	}
	return nil
}

// newRateLimitError builds a rate-limit rejection tagged for the queue.
func newRateLimitError(statusCode int, message string) *UpstreamError {
	return &UpstreamError{
		StatusCode: statusCode,
		Class:      ErrorClassRateLimit,
		Message:    message,
		Err:        fmt.Errorf("%s: %w", message, queue.ErrRateLimited),
	}
}

// ClassOf extracts the error class, defaulting to transport for plain
// network errors.
func ClassOf(err error) ErrorClass {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Class
	}
	if errors.Is(err, queue.ErrRateLimited) || errors.Is(err, queue.ErrRetriesExhausted) {
		return ErrorClassRateLimit
	}
	return ErrorClassTransport
}
