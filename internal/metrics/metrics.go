package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "staybook"

// Outcome labels for admission and cancel counters.
const (
	OutcomeSuccess         = "success"
	OutcomeConflict        = "conflict"
	OutcomeValidation      = "validation"
	OutcomeNotFound        = "not_found"
	OutcomeForbidden       = "forbidden"
	OutcomeAlreadyCanceled = "already_canceled"
	OutcomeError           = "error"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	reservations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_attempts_total",
			Help:      "Reservation admission attempts by outcome.",
		},
		[]string{"outcome"},
	)

	cancellations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_cancellations_total",
			Help:      "Reservation cancel attempts by outcome.",
		},
		[]string{"outcome"},
	)

	admissionLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "admission_duration_seconds",
			Help:      "Time spent holding the room lock during admission.",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, reservations, cancellations, admissionLatency)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncReservation(outcome string) {
	reservations.WithLabelValues(outcome).Inc()
}

func IncCancellation(outcome string) {
	cancellations.WithLabelValues(outcome).Inc()
}

func ObserveAdmission(d time.Duration) {
	admissionLatency.Observe(d.Seconds())
}
