// Package metrics provides Prometheus metrics for sync root management.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registration metrics
	registrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroot_registrations_total",
			Help: "Total sync root register/unregister requests by outcome",
		},
		[]string{"op", "result"},
	)

	registrationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncroot_registration_duration_seconds",
			Help:    "Time spent in sync root register/unregister requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// Placeholder metrics
	placeholderHandlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncroot_placeholder_handles_total",
			Help: "Placeholder handles checked by the handle guard",
		},
		[]string{"result"},
	)

	// Cancellation metrics
	cancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncroot_cancellations_total",
			Help: "Cancellation signals that transitioned to requested",
		},
	)

	continuationsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncroot_cancellation_continuations_pending",
			Help: "Continuations waiting on a cancellation signal",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRegistration records a register or unregister request.
func RecordRegistration(op, result string, duration time.Duration) {
	registrationsTotal.WithLabelValues(op, result).Inc()
	registrationDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordPlaceholderHandle records a handle guard check.
func RecordPlaceholderHandle(valid bool) {
	result := "valid"
	if !valid {
		result = "invalid"
	}
	placeholderHandlesTotal.WithLabelValues(result).Inc()
}

// RecordCancellation records a signal moving to requested.
func RecordCancellation() {
	cancellationsTotal.Inc()
}

// AddPendingContinuations adjusts the number of waiting continuations.
func AddPendingContinuations(delta int) {
	continuationsPending.Add(float64(delta))
}
