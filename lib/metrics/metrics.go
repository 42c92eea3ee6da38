// Package metrics defines the Prometheus collectors exposed by the distributor
// service when monitoring is enabled.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPDuration observes request handling time per API handler.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tds",
		Name:      "http_request_duration_seconds",
		Help:      "Time spent serving API requests.",
	}, []string{"handler"})

	// EndpointFailovers counts cursor advances caused by endpoint failures.
	EndpointFailovers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tds",
		Name:      "endpoint_failovers_total",
		Help:      "Number of times a failing endpoint caused a failover to the next one.",
	})

	// TransferAttempts counts individual submission attempts, including retries.
	TransferAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tds",
		Name:      "transfer_attempts_total",
		Help:      "Number of token transfer submission attempts.",
	})

	// Transfers counts finished transfer executions by outcome.
	Transfers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tds",
		Name:      "transfers_total",
		Help:      "Number of transfer executions by outcome.",
	}, []string{"outcome"})
)

// Outcome label values for Transfers.
const (
	OutcomeConfirmed = "confirmed"
	OutcomeFailed    = "failed"
)
