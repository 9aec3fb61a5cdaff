package llm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	opGenerate = "generate"
	opStream   = "stream"
)

var (
	providerRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_provider_requests_total",
			Help: "Provider calls issued by the manager, by operation.",
		},
		[]string{"provider", "operation"},
	)
	providerRequestFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_provider_request_failures_total",
			Help: "Provider calls that returned an error, by operation.",
		},
		[]string{"provider", "operation"},
	)
	providerRequestLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_provider_request_latency_ms",
			Help:    "Provider generate round-trip latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"provider"},
	)
	generateFailoverTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_generate_failover_total",
			Help: "Fallback attempts after a generate target failed.",
		},
		[]string{"from", "to"},
	)
	providerHealthy = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "llm_provider_healthy",
			Help: "Provider health probe result (1 healthy, 0 unhealthy).",
		},
		[]string{"provider"},
	)
	providerHealthCheckLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_provider_health_check_latency_ms",
			Help:    "Provider health probe latency in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(
		providerRequestsTotal,
		providerRequestFailuresTotal,
		providerRequestLatencyMs,
		generateFailoverTotal,
		providerHealthy,
		providerHealthCheckLatencyMs,
	)
}

func observeRequest(provider, operation string, latency time.Duration, err error) {
	providerRequestsTotal.WithLabelValues(provider, operation).Inc()
	if err != nil {
		providerRequestFailuresTotal.WithLabelValues(provider, operation).Inc()
	}
	if operation == opGenerate && latency > 0 {
		providerRequestLatencyMs.WithLabelValues(provider).Observe(float64(latency.Milliseconds()))
	}
}

func observeFailover(from, to string) {
	generateFailoverTotal.WithLabelValues(from, to).Inc()
}

func observeHealthCheck(provider string, healthy bool, latency time.Duration) {
	if healthy {
		providerHealthy.WithLabelValues(provider).Set(1)
	} else {
		providerHealthy.WithLabelValues(provider).Set(0)
	}
	if latency > 0 {
		providerHealthCheckLatencyMs.WithLabelValues(provider).Observe(float64(latency.Milliseconds()))
	}
}
