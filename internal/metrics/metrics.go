// Package metrics provides the Prometheus collectors for the proxy.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets spans upstream latencies from 100ms to 2 minutes.
var LLMBuckets = []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120}

// Request modes.
const (
	ModeBuffered = "buffered"
	ModeStream   = "stream"
)

// Relay failure reasons.
const (
	ReasonUpstream   = "upstream"
	ReasonClientGone = "client_gone"
)

var (
	// RequestsTotal counts chat completion requests by platform, mode and response status.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatproxy_requests_total",
			Help: "Chat completion requests",
		},
		[]string{"platform", "mode", "status"},
	)

	// UpstreamLatency records time until upstream response headers arrive.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatproxy_upstream_latency_seconds",
			Help:    "Upstream latency until response headers",
			Buckets: LLMBuckets,
		},
		[]string{"platform", "mode"},
	)

	// ActiveRelays tracks open streaming relays.
	ActiveRelays = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chatproxy_relays_active",
			Help: "Active streaming relays",
		},
	)

	// RelayedChunksTotal counts chunks written to streaming clients.
	RelayedChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatproxy_relay_chunks_total",
			Help: "Relayed stream chunks",
		},
		[]string{"platform"},
	)

	// RelayFailuresTotal counts streams that ended before the upstream finished.
	RelayFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatproxy_relay_failures_total",
			Help: "Relays terminated early",
		},
		[]string{"platform", "reason"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		UpstreamLatency,
		ActiveRelays,
		RelayedChunksTotal,
		RelayFailuresTotal,
	)
}
