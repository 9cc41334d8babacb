package faults

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		detail string
	}{
		{
			name:   "platform not supported",
			err:    PlatformNotSupported("gemini"),
			status: http.StatusNotFound,
			detail: "Platform 'gemini' not supported",
		},
		{
			name:   "wrapped client error",
			err:    fmt.Errorf("normalize: %w", NewClientError(http.StatusBadRequest, "malformed authorization header")),
			status: http.StatusBadRequest,
			detail: "malformed authorization header",
		},
		{
			name:   "upstream error keeps status and raw body",
			err:    &UpstreamError{StatusCode: http.StatusTooManyRequests, Body: `{"error":"rate limited"}`},
			status: http.StatusTooManyRequests,
			detail: `{"error":"rate limited"}`,
		},
		{
			name:   "transport error",
			err:    &TransportError{Err: errors.New("dial tcp: lookup api.example.invalid: no such host")},
			status: http.StatusInternalServerError,
			detail: "dial tcp: lookup api.example.invalid: no such host",
		},
		{
			name:   "unclassified error",
			err:    context.DeadlineExceeded,
			status: http.StatusInternalServerError,
			detail: "context deadline exceeded",
		},
		{
			name:   "empty message",
			err:    errors.New(""),
			status: http.StatusInternalServerError,
			detail: "Internal Server Error",
		},
		{
			name:   "nil error",
			err:    nil,
			status: http.StatusInternalServerError,
			detail: "Internal Server Error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Translate(tt.err)
			assert.Equal(t, tt.status, env.StatusCode)
			assert.Equal(t, tt.detail, env.Detail)
		})
	}
}

func TestTransportErrorUnwrap(t *testing.T) {
	err := &TransportError{Err: context.Canceled}
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, "transport failure", (&TransportError{}).Error())
}

func TestEnvelopeJSON(t *testing.T) {
	data, err := json.Marshal(Envelope{StatusCode: 404, Detail: "Platform 'x' not supported"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"detail":"Platform 'x' not supported"}`, string(data))
}
