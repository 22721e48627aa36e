package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// BookingMetrics tracks the write paths that reserve stock.
type BookingMetrics struct {
	operations   *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	lockWait     prometheus.Histogram
	availability *prometheus.CounterVec
}

// NewBookingMetrics registers the booking metrics on the provided registerer.
// A nil registerer yields a recorder that drops every observation.
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	if reg == nil {
		return &BookingMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "booking_operations_total",
		Help: "Booking operations by operation and outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "booking_operation_duration_seconds",
		Help:    "Duration of booking operations in seconds, lock wait included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "booking_lock_wait_seconds",
		Help:    "Time spent waiting for variant booking locks.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})
	availability := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "availability_checks_total",
		Help: "Variant availability evaluations by result.",
	}, []string{"result"})
	reg.MustRegister(operations, duration, lockWait, availability)
	return &BookingMetrics{
		operations:   operations,
		duration:     duration,
		lockWait:     lockWait,
		availability: availability,
	}
}

// ObserveOperation records one finished booking operation.
func (m *BookingMetrics) ObserveOperation(operation, outcome string, took time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	op := normalizeLabel(operation)
	m.operations.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(op).Observe(took.Seconds())
}

func (m *BookingMetrics) ObserveLockWait(took time.Duration) {
	if m == nil || m.lockWait == nil {
		return
	}
	m.lockWait.Observe(took.Seconds())
}

func (m *BookingMetrics) IncAvailability(available bool) {
	if m == nil || m.availability == nil {
		return
	}
	result := "unavailable"
	if available {
		result = "available"
	}
	m.availability.WithLabelValues(result).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
