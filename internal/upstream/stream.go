package upstream

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"chatproxy/internal/metrics"
	"chatproxy/internal/router"
)

// Stream is an open upstream event stream. A producer goroutine reads the
// upstream body and hands each fragment, unmodified and in order, to Chunks.
type Stream struct {
	chunks   chan []byte
	done     chan struct{}
	cancel   context.CancelFunc
	body     io.ReadCloser
	readSize int
	err      error
}

// Relay opens a streaming upstream exchange. Upstream status and transport
// failures are reported here, before any byte reaches the client.
func (c *Client) Relay(ctx context.Context, target router.Target) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := c.newRequest(ctx, target, contentTypeEventStream)
	if err != nil {
		cancel()
		return nil, transportFault(err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	c.logger.Debug("opening relay",
		zap.String("platform", target.Platform),
		zap.String("model", target.Model),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, transportFault(err)
	}

	metrics.UpstreamLatency.WithLabelValues(target.Platform, metrics.ModeStream).Observe(time.Since(start).Seconds())

	if !isSuccess(resp.StatusCode) {
		defer cancel()
		defer resp.Body.Close()
		return nil, upstreamFault(resp)
	}

	s := &Stream{
		chunks:   make(chan []byte, c.streamBuffer),
		done:     make(chan struct{}),
		cancel:   cancel,
		body:     resp.Body,
		readSize: c.readSize,
	}
	go s.pump(ctx)

	return s, nil
}

func (s *Stream) pump(ctx context.Context) {
	defer close(s.done)
	defer close(s.chunks)
	defer s.body.Close()

	for {
		buf := make([]byte, s.readSize)
		n, err := s.body.Read(buf)
		if n > 0 {
			select {
			case s.chunks <- buf[:n]:
			case <-ctx.Done():
				s.err = ctx.Err()
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.err = transportFault(err)
			}
			return
		}
	}
}

// Chunks yields upstream fragments until the upstream closes or fails.
func (s *Stream) Chunks() <-chan []byte {
	return s.chunks
}

// Err reports why the stream ended. It is nil after a clean upstream close
// and is only meaningful once Chunks has been drained.
func (s *Stream) Err() error {
	return s.err
}

// Close tears down the upstream connection and waits for the producer.
// It is safe to call more than once.
func (s *Stream) Close() error {
	s.cancel()
	<-s.done
	return nil
}
