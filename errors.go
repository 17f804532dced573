package checkout

import "fmt"

// ErrorKind categorizes a failure for recovery handling.
type ErrorKind string

const (
	ErrorKindValidation ErrorKind = "validation_error" // Client-side field check failed; nothing reached the network.
	ErrorKindNetwork    ErrorKind = "network_error"    // Transport or HTTP failure talking to the gateway.
	ErrorKindProtocol   ErrorKind = "protocol_error"   // Response arrived but lacked a field the flow depends on.
	ErrorKindState      ErrorKind = "state_error"      // Action attempted without the required prior state.
)

// Error is the structured failure surfaced by the widget and the backend.
// None of these are fatal: every error sets a visible message and leaves the
// widget in a recoverable state.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"` // offending input field for validation errors

	cause error
}

// Error makes *Error satisfy the stdlib error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// NewValidationError reports a client-side field check failure. field names
// the offending input.
func NewValidationError(field, message string) *Error {
	return &Error{Kind: ErrorKindValidation, Field: field, Message: message}
}

// NewNetworkError reports a transport or HTTP failure. message is the text
// extracted from a structured error body when present, else a generic
// fallback; cause carries the raw underlying error for caller-side handling.
func NewNetworkError(message string, cause error) *Error {
	return &Error{Kind: ErrorKindNetwork, Message: message, cause: cause}
}

// NewProtocolError reports a response that arrived without a field the flow
// depends on, such as a redirect instruction with no URL.
func NewProtocolError(message string) *Error {
	return &Error{Kind: ErrorKindProtocol, Message: message}
}

// NewStateError reports an action attempted without its required prior
// state; the action is rejected synchronously and no request is sent.
func NewStateError(message string) *Error {
	return &Error{Kind: ErrorKindState, Message: message}
}
