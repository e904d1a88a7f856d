package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ModelHint is appended to upstream failures so operators know the usual fix.
const ModelHint = "Try a different HF_*_MODEL; not all models are served by the provider."

// ErrorKind classifies gateway failures.
type ErrorKind string

const (
	// KindClient is missing or empty caller input.
	KindClient ErrorKind = "client_error"
	// KindConfiguration is a missing credential or model on the server side.
	KindConfiguration ErrorKind = "configuration_error"
	// KindUpstreamTransport is a network failure or timeout after the gateway retry.
	KindUpstreamTransport ErrorKind = "upstream_transport_error"
	// KindUpstreamProtocol is a hard non-2xx status or an unusable upstream payload.
	KindUpstreamProtocol ErrorKind = "upstream_protocol_error"
	// KindModelUnavailable is a 404 or "not found" answer for a model candidate.
	KindModelUnavailable ErrorKind = "model_unavailable"
	// KindOutputValidation is synthesis text that does not match the schema.
	KindOutputValidation ErrorKind = "output_validation_error"
)

// Error is the structured error used across the gateway.
type Error struct {
	Kind    ErrorKind
	Message string
	// Status is the upstream HTTP status when one was received.
	Status int
	// Body is the upstream response text, already bounded by the gateway.
	Body  string
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus maps the kind to the status the API responds with.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindClient:
		return http.StatusBadRequest
	case KindConfiguration:
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

// NewClientError returns a KindClient error.
func NewClientError(message string) *Error {
	return &Error{Kind: KindClient, Message: message}
}

// NewConfigurationError returns a KindConfiguration error.
func NewConfigurationError(message string) *Error {
	return &Error{Kind: KindConfiguration, Message: message}
}

// NewTransportError wraps a network failure.
func NewTransportError(message string, cause error) *Error {
	return &Error{Kind: KindUpstreamTransport, Message: message, Cause: cause}
}

// NewProtocolError describes an upstream answer the gateway cannot use.
func NewProtocolError(message string, status int, body string) *Error {
	return &Error{Kind: KindUpstreamProtocol, Message: message, Status: status, Body: body}
}

// NewModelUnavailableError reports that model is not served by the endpoint.
func NewModelUnavailableError(model string, status int) *Error {
	return &Error{Kind: KindModelUnavailable, Message: fmt.Sprintf("model not found: %s", model), Status: status}
}

// NewValidationError reports synthesis output that failed the schema check.
func NewValidationError(message string) *Error {
	return &Error{Kind: KindOutputValidation, Message: message}
}

// IsKind reports whether err is an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
