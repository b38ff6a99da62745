// Package metrics holds the prometheus instruments for the promise ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ledger"

var (
	PromisesRegistered = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "promises_registered_total",
		Help:      "Promise registrations by outcome.",
	}, []string{"result"})

	PromisesEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "promises_evaluated_total",
		Help:      "Promise evaluations by outcome.",
	}, []string{"result"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Registry operation latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	FeedPublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "feed_publish_failures_total",
		Help:      "Verdict feed publishes that failed after commit.",
	})

	AdapterLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "adapter_lookups_total",
		Help:      "Chain adapter lookups by adapter and outcome.",
	}, []string{"adapter", "result"})
)

// Outcome labels.
const (
	ResultOK        = "ok"
	ResultDuplicate = "duplicate"
	ResultConflict  = "conflict"
	ResultNotFound  = "not_found"
	ResultInvalid   = "invalid"
	ResultError     = "error"
)
