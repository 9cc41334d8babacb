package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"chatproxy/internal/config"
	"chatproxy/internal/faults"
	"chatproxy/internal/metrics"
	"chatproxy/internal/router"
)

const (
	contentTypeJSON        = "application/json"
	contentTypeEventStream = "text/event-stream"
	userAgent              = "chatproxy/0.1"
	maxErrorBodyBytes      = 1 << 20
)

// Client issues upstream calls over one pooled HTTP client shared by all
// requests.
type Client struct {
	httpClient   *http.Client
	logger       *zap.Logger
	timeout      time.Duration
	streamBuffer int
	readSize     int
}

// New constructs a Client from the upstream configuration.
func New(cfg config.UpstreamConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		httpClient:   newHTTPClient(cfg),
		logger:       logger,
		timeout:      cfg.Timeout,
		streamBuffer: max(cfg.StreamBuffer, 1),
		readSize:     max(cfg.ReadSize, 1),
	}
}

// Close releases idle upstream connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

func newHTTPClient(cfg config.UpstreamConfig) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: cfg.DialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConns,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.ResponseHeaderTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	// No client-wide Timeout: it would also bound relayed stream bodies.
	return &http.Client{
		Transport: transport,
	}
}

// Forward performs one buffered upstream exchange and returns the upstream
// JSON body unchanged.
func (c *Client) Forward(ctx context.Context, target router.Target) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := c.newRequest(ctx, target, contentTypeJSON)
	if err != nil {
		return nil, &faults.TransportError{Err: err}
	}

	c.logger.Debug("forwarding request",
		zap.String("platform", target.Platform),
		zap.String("model", target.Model),
		zap.Int("payload_bytes", len(target.Payload)),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, transportFault(err)
	}
	defer resp.Body.Close()

	metrics.UpstreamLatency.WithLabelValues(target.Platform, metrics.ModeBuffered).Observe(time.Since(start).Seconds())

	if !isSuccess(resp.StatusCode) {
		return nil, upstreamFault(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportFault(fmt.Errorf("read upstream response: %w", err))
	}
	if !gjson.ValidBytes(body) {
		return nil, &faults.TransportError{Err: errors.New("upstream returned a response body that is not valid JSON")}
	}

	return body, nil
}

func (c *Client) newRequest(ctx context.Context, target router.Target, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target.Endpoint, bytes.NewReader(target.Payload))
	if err != nil {
		return nil, fmt.Errorf("construct upstream request for platform %s", target.Platform)
	}

	for key, values := range target.Header {
		req.Header[key] = append([]string(nil), values...)
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("User-Agent", userAgent)

	return req, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

// upstreamFault reads a bounded amount of the error body.
func upstreamFault(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if err != nil && len(body) == 0 {
		return &faults.UpstreamError{StatusCode: resp.StatusCode, Body: http.StatusText(resp.StatusCode)}
	}
	return &faults.UpstreamError{StatusCode: resp.StatusCode, Body: string(body)}
}

// transportFault strips the request URL from client errors so the detail
// carries only the cause.
func transportFault(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Err != nil {
		err = urlErr.Err
	}
	return &faults.TransportError{Err: err}
}
