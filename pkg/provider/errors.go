package provider

import (
	"errors"
	"fmt"

	"github.com/goose-agent/core/pkg/message"
)

// ContextLengthExceededError is returned by Complete when the assembled
// request (system prompt + messages + tools) exceeds the model's context
// window even after the budgeter has trimmed resources. The reply loop
// treats this as a one-shot signal to drop the lowest-priority remaining
// resource and retry, not as a terminal failure.
type ContextLengthExceededError struct {
	Provider string
	Limit    int
	Message  string
	Cause    error
}

func (e *ContextLengthExceededError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: context length exceeded (limit %d): %s (caused by: %v)", e.Provider, e.Limit, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: context length exceeded (limit %d): %s", e.Provider, e.Limit, e.Message)
}

func (e *ContextLengthExceededError) Unwrap() error { return e.Cause }

func (e *ContextLengthExceededError) Kind() message.ToolErrorKind {
	return message.ErrContextLengthExceeded
}

// NewContextLengthExceededError builds a ContextLengthExceededError.
func NewContextLengthExceededError(providerName string, limit int, msg string, cause error) *ContextLengthExceededError {
	return &ContextLengthExceededError{Provider: providerName, Limit: limit, Message: msg, Cause: cause}
}

// IsContextLengthExceeded reports whether err (or anything it wraps) is a
// ContextLengthExceededError.
func IsContextLengthExceeded(err error) bool {
	var e *ContextLengthExceededError
	return errors.As(err, &e)
}

// RateLimitError signals a transient, retryable backoff condition.
type RateLimitError struct {
	Provider          string
	RetryAfterSeconds *int
	Message           string
	Cause             error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfterSeconds != nil {
		return fmt.Sprintf("%s: rate limited (retry after %ds): %s", e.Provider, *e.RetryAfterSeconds, e.Message)
	}
	return fmt.Sprintf("%s: rate limited: %s", e.Provider, e.Message)
}

func (e *RateLimitError) Unwrap() error { return e.Cause }

func (e *RateLimitError) Kind() message.ToolErrorKind { return message.ErrExecution }

// NewRateLimitError builds a RateLimitError.
func NewRateLimitError(providerName string, retryAfter *int, msg string, cause error) *RateLimitError {
	return &RateLimitError{Provider: providerName, RetryAfterSeconds: retryAfter, Message: msg, Cause: cause}
}

// IsRateLimitError reports whether err is a RateLimitError.
func IsRateLimitError(err error) bool {
	var e *RateLimitError
	return errors.As(err, &e)
}

// UpstreamError wraps a non-retryable failure surfaced by the backend
// itself (invalid request, model not found, auth failure, ...).
type UpstreamError struct {
	Provider   string
	StatusCode int
	ErrorCode  string
	Message    string
	Cause      error
}

func (e *UpstreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s upstream error (%d): %s - %s (caused by: %v)", e.Provider, e.StatusCode, e.ErrorCode, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s upstream error (%d): %s - %s", e.Provider, e.StatusCode, e.ErrorCode, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Cause }

func (e *UpstreamError) Kind() message.ToolErrorKind { return message.ErrExecution }

// NewUpstreamError builds an UpstreamError.
func NewUpstreamError(providerName string, statusCode int, errorCode, msg string, cause error) *UpstreamError {
	return &UpstreamError{Provider: providerName, StatusCode: statusCode, ErrorCode: errorCode, Message: msg, Cause: cause}
}

// NetworkError wraps a connection-level failure reaching the backend
// (DNS, dial, TLS, timeout before any HTTP response was read).
type NetworkError struct {
	Provider string
	Message  string
	Cause    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s network error: %s (caused by: %v)", e.Provider, e.Message, e.Cause)
}

func (e *NetworkError) Unwrap() error { return e.Cause }

func (e *NetworkError) Kind() message.ToolErrorKind { return message.ErrTransport }

// NewNetworkError builds a NetworkError.
func NewNetworkError(providerName, msg string, cause error) *NetworkError {
	return &NetworkError{Provider: providerName, Message: msg, Cause: cause}
}

// ErrorKind classifies any error returned from Complete using the shared
// ToolErrorKind taxonomy, falling back to ErrExecution for anything that
// doesn't declare a Kind.
func ErrorKind(err error) message.ToolErrorKind {
	type kinded interface{ Kind() message.ToolErrorKind }
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return message.ErrExecution
}

// IsRetryable reports whether the reply loop's retry policy should retry
// this error with exponential backoff (RateLimitError, NetworkError) as
// opposed to failing the turn or triggering a budgeter retry.
func IsRetryable(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var ne *NetworkError
	return errors.As(err, &ne)
}
