package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatproxy/internal/config"
	"chatproxy/internal/faults"
)

func sseEvents(n int) []string {
	events := make([]string, 0, n+1)
	for i := 1; i <= n; i++ {
		events = append(events, fmt.Sprintf("data: {\"choices\":[{\"delta\":{\"content\":\"%d \"}}]}\n\n", i))
	}
	return append(events, "data: [DONE]\n\n")
}

func eventServer(t *testing.T, events []string, gap time.Duration) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "text/event-stream" {
			http.Error(w, "expected event stream", http.StatusNotAcceptable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, event := range events {
			_, _ = io.WriteString(w, event)
			flusher.Flush()
			time.Sleep(gap)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func drain(s *Stream) []string {
	var out []string
	for chunk := range s.Chunks() {
		out = append(out, string(chunk))
	}
	return out
}

func TestRelayPreservesChunks(t *testing.T) {
	events := sseEvents(5)
	srv := eventServer(t, events, 0)

	c := newTestClient(t, nil)
	s, err := c.Relay(t.Context(), newTarget(srv.URL, true))
	require.NoError(t, err)
	defer s.Close()

	got := strings.Join(drain(s), "")
	require.NoError(t, s.Err())

	assert.Equal(t, strings.Join(events, ""), got)

	frames := strings.SplitAfter(got, "\n\n")
	require.Equal(t, "", frames[len(frames)-1])
	assert.Equal(t, events, frames[:len(frames)-1])
	assert.True(t, strings.HasSuffix(got, "data: [DONE]\n\n"))
}

func TestRelaySmallReads(t *testing.T) {
	events := sseEvents(3)
	srv := eventServer(t, events, 0)

	c := newTestClient(t, func(cfg *config.UpstreamConfig) {
		cfg.ReadSize = 7
		cfg.StreamBuffer = 1
	})
	s, err := c.Relay(t.Context(), newTarget(srv.URL, true))
	require.NoError(t, err)
	defer s.Close()

	got := drain(s)
	require.NoError(t, s.Err())
	for _, chunk := range got {
		assert.LessOrEqual(t, len(chunk), 7)
	}
	assert.Equal(t, strings.Join(events, ""), strings.Join(got, ""))
}

func TestRelayUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"invalid api key"}}`)
	}))
	defer srv.Close()

	c := newTestClient(t, nil)
	s, err := c.Relay(t.Context(), newTarget(srv.URL, true))
	require.Error(t, err)
	assert.Nil(t, s)

	var upstreamErr *faults.UpstreamError
	require.True(t, errors.As(err, &upstreamErr))
	assert.Equal(t, http.StatusUnauthorized, upstreamErr.StatusCode)
	assert.Contains(t, upstreamErr.Body, "invalid api key")
}

func TestRelayConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	c := newTestClient(t, nil)
	_, err := c.Relay(t.Context(), newTarget(endpoint, true))

	var transportErr *faults.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.NotEmpty(t, err.Error())
}

func TestRelayCloseCancelsUpstream(t *testing.T) {
	upstreamDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(upstreamDone)
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: first\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	c := newTestClient(t, nil)
	s, err := c.Relay(t.Context(), newTarget(srv.URL, true))
	require.NoError(t, err)

	first := <-s.Chunks()
	assert.Equal(t, "data: first\n\n", string(first))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	select {
	case <-upstreamDone:
	case <-time.After(5 * time.Second):
		t.Fatal("upstream connection was not released after Close")
	}
}

func TestRelayParentCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "data: first\n\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(t.Context())
	c := newTestClient(t, nil)
	s, err := c.Relay(ctx, newTarget(srv.URL, true))
	require.NoError(t, err)
	defer s.Close()

	<-s.Chunks()
	cancel()

	done := make(chan []string)
	go func() { done <- drain(s) }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not end after context cancellation")
	}
	assert.Error(t, s.Err())
}

func TestRelayMidStreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "data: partial\n\n")
		w.(http.Flusher).Flush()

		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	c := newTestClient(t, nil)
	s, err := c.Relay(t.Context(), newTarget(srv.URL, true))
	require.NoError(t, err)
	defer s.Close()

	got := drain(s)
	assert.Equal(t, []string{"data: partial\n\n"}, got)

	var transportErr *faults.TransportError
	require.True(t, errors.As(s.Err(), &transportErr), "got %v", s.Err())
}
