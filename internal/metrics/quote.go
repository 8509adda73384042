package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// QuotesVerified tracks QVL verification outcomes by TEE kind and result.
	QuotesVerified = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "verified_total",
			Help:      "Total number of attestation quotes/reports verified.",
		},
		[]string{"tee", "result"}, // tee: tdx|sgx|sevsnp|azure_vtpm, result: ok|<error kind>
	)

	// QuoteVerifyDuration tracks verification latency.
	QuoteVerifyDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "verify_duration_seconds",
			Help:      "Duration of a full quote/report verification call.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
		},
		[]string{"tee"},
	)

	// ChainValidations tracks PCK/VCEK chain verification outcomes.
	ChainValidations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "validations_total",
			Help:      "Total number of certificate chain validations.",
		},
		[]string{"kind", "status"}, // kind: pck|vcek, status: valid|expired|revoked|invalid
	)

	// TcbEvaluations tracks TCB policy evaluation outcomes.
	TcbEvaluations = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tcb",
			Name:      "evaluations_total",
			Help:      "Total number of TCB info evaluations.",
		},
		[]string{"tee", "status"},
	)
)
