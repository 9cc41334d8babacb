// Package faults defines the failure taxonomy shared by the proxy layers and
// the translation of every failure into the client-facing error envelope.
package faults

import (
	"errors"
	"fmt"
	"net/http"
)

// ClientError is a malformed or unsupported request. No upstream call is made.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// NewClientError constructs a ClientError with a formatted message.
func NewClientError(status int, format string, args ...any) *ClientError {
	return &ClientError{StatusCode: status, Message: fmt.Sprintf(format, args...)}
}

// PlatformNotSupported reports an identifier missing from the registry.
func PlatformNotSupported(id string) *ClientError {
	return NewClientError(http.StatusNotFound, "Platform '%s' not supported", id)
}

// UpstreamError is a non-2xx response from the upstream platform.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream responded with status %d", e.StatusCode)
}

// TransportError is any failure with no upstream HTTP status attached:
// connection, timeout, DNS or decoding faults.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return "transport failure"
	}
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Envelope is the uniform error body returned to clients.
type Envelope struct {
	StatusCode int    `json:"-"`
	Detail     string `json:"detail"`
}

// Translate maps err onto exactly one envelope.
func Translate(err error) Envelope {
	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		return Envelope{StatusCode: clientErr.StatusCode, Detail: clientErr.Message}
	}

	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return Envelope{StatusCode: upstreamErr.StatusCode, Detail: upstreamErr.Body}
	}

	detail := ""
	if err != nil {
		detail = err.Error()
	}
	if detail == "" {
		detail = http.StatusText(http.StatusInternalServerError)
	}
	return Envelope{StatusCode: http.StatusInternalServerError, Detail: detail}
}
