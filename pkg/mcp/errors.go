package mcp

import (
	"errors"
	"fmt"

	"github.com/goose-agent/core/pkg/message"
)

// ClientError represents an error returned by the MCP server inside a
// JSON-RPC error object.
type ClientError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *ClientError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("MCP error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// Kind maps a JSON-RPC error code to the abstract error taxonomy.
func (e *ClientError) Kind() message.ToolErrorKind {
	switch e.Code {
	case ErrorCodeToolNotFound, ErrorCodeResourceNotFound:
		return message.ErrNotFound
	case ErrorCodeInvalidParams, ErrorCodeInvalidRequest:
		return message.ErrInvalidParameters
	case ErrorCodeToolExecutionFail:
		return message.ErrExecution
	case ErrorCodeUnauthorized:
		return message.ErrInvalidParameters
	default:
		return message.ErrExecution
	}
}

// NewClientError creates a new MCP client error.
func NewClientError(code int, msg string, data interface{}) *ClientError {
	return &ClientError{Code: code, Message: msg, Data: data}
}

// Common MCP errors
var (
	ErrParseError     = &ClientError{Code: ErrorCodeParseError, Message: "Parse error"}
	ErrInvalidRequest = &ClientError{Code: ErrorCodeInvalidRequest, Message: "Invalid request"}
	ErrMethodNotFound = &ClientError{Code: ErrorCodeMethodNotFound, Message: "Method not found"}
	ErrInvalidParams  = &ClientError{Code: ErrorCodeInvalidParams, Message: "Invalid params"}
	ErrInternalError  = &ClientError{Code: ErrorCodeInternalError, Message: "Internal error"}

	ErrToolNotFound      = &ClientError{Code: ErrorCodeToolNotFound, Message: "Tool not found"}
	ErrToolExecutionFail = &ClientError{Code: ErrorCodeToolExecutionFail, Message: "Tool execution failed"}
	ErrResourceNotFound  = &ClientError{Code: ErrorCodeResourceNotFound, Message: "Resource not found"}
	ErrUnauthorized      = &ClientError{Code: ErrorCodeUnauthorized, Message: "Unauthorized"}
)

// TransportError represents a transport-level error: IO, framing, or a
// closed connection. Every pending request on the owning transport is
// failed with one of these when the transport dies.
type TransportError struct {
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("transport error: %s", e.Message)
}

func (e *TransportError) Unwrap() error { return e.Cause }

func (e *TransportError) Kind() message.ToolErrorKind { return message.ErrTransport }

// NewTransportError creates a new transport error.
func NewTransportError(msg string, cause error) *TransportError {
	return &TransportError{Message: msg, Cause: cause}
}

// TimeoutError represents a per-call or initialization deadline exceeded.
type TimeoutError struct {
	Operation string
}

func (e *TimeoutError) Error() string { return fmt.Sprintf("timeout: %s", e.Operation) }

func (e *TimeoutError) Kind() message.ToolErrorKind { return message.ErrTimeout }

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(operation string) *TimeoutError {
	return &TimeoutError{Operation: operation}
}

// InitializationError represents an extension that failed to come up
// within its initialization deadline.
type InitializationError struct {
	Message string
	Cause   error
}

func (e *InitializationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("initialization failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("initialization failed: %s", e.Message)
}

func (e *InitializationError) Unwrap() error { return e.Cause }

func (e *InitializationError) Kind() message.ToolErrorKind { return message.ErrInitialization }

// NewInitializationError creates a new initialization error.
func NewInitializationError(msg string, cause error) *InitializationError {
	return &InitializationError{Message: msg, Cause: cause}
}

// CancelledError represents a caller-initiated abort; it must never be
// escalated to Execution.
type CancelledError struct {
	Cause error
}

func (e *CancelledError) Error() string { return fmt.Sprintf("cancelled: %v", e.Cause) }

func (e *CancelledError) Unwrap() error { return e.Cause }

func (e *CancelledError) Kind() message.ToolErrorKind { return message.ErrCancelled }

// NewCancelledError creates a new cancelled error.
func NewCancelledError(cause error) *CancelledError {
	return &CancelledError{Cause: cause}
}

// ErrorKind classifies any error returned by this package into the
// abstract taxonomy shared across the system. Unrecognized errors default
// to Execution, matching the "tool/extension runtime error" catch-all.
func ErrorKind(err error) message.ToolErrorKind {
	type kinded interface{ Kind() message.ToolErrorKind }
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return message.ErrExecution
}
