package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "vybium"
	subsystem        = "zkvm_host"
)

var (
	// Execution metrics
	executionCycles = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "execution_cycles",
			Help:      "Cycles executed by the guest per proving run",
			Buckets:   prometheus.ExponentialBuckets(16, 8, 10),
		},
	)

	executionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "execution_duration_seconds",
			Help:      "Time taken to execute the guest",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// Proving metrics
	shardsProvedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "shards_proved_total",
			Help:      "Total number of shard proving attempts",
		},
		[]string{"status"}, // status: "success", "error"
	)

	provingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "proving_duration_seconds",
			Help:      "Time taken to produce a complete proof set",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 600},
		},
	)

	// Verification metrics
	verificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "verification_total",
			Help:      "Total number of proof set verifications",
		},
		[]string{"result"}, // result: "accept" or the failing error code
	)

	verificationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: subsystem,
			Name:      "verification_duration_seconds",
			Help:      "Time taken to verify a proof set",
			Buckets:   prometheus.DefBuckets,
		},
	)
)
