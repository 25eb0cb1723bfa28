package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voiceclone_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RateLimitDenials counts requests rejected by the rate limiter, per route.
	RateLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voiceclone_rate_limit_denials_total",
			Help: "Total number of rate-limited requests",
		},
		[]string{"path"},
	)

	// ProviderCalls counts outbound voice-provider calls by operation and outcome.
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voiceclone_provider_calls_total",
			Help: "Total number of voice provider API calls",
		},
		[]string{"operation", "result"},
	)

	// ProviderLatency measures outbound provider call latency per operation.
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voiceclone_provider_latency_seconds",
			Help:    "Voice provider call latency",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// SynthesizedBytes totals the audio bytes returned by synthesis calls.
	SynthesizedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "voiceclone_synthesized_bytes_total",
			Help: "Total synthesized audio bytes written to disk",
		},
	)
)
