package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	ErrorTypeDeadlineExceeded = "deadline_exceeded"
	ErrorTypeBusinessRule     = "business_rule"
	ErrorTypeDB               = "db"
	ErrorTypeUnknown          = "unknown"

	DBReasonLockTimeout          = "db_lock_timeout"
	DBReasonSerializationFailure = "serialization_failure"
	DBReasonUniqueViolation      = "unique_violation"
	DBReasonUnknown              = "unknown"
)

// FulfillmentMetrics captures allocation, payment and sweeper health signals.
type FulfillmentMetrics struct {
	reservations     *prometheus.CounterVec
	reserveDuration  prometheus.Observer
	paymentEvents    *prometheus.CounterVec
	orderTransitions *prometheus.CounterVec
	sweepRuns        *prometheus.CounterVec
	sweepExpired     prometheus.Counter
	rateLimitDenied  *prometheus.CounterVec
}

var (
	fulfillmentOnce sync.Once
	fulfillment     *FulfillmentMetrics
)

// Fulfillment returns the process-wide fulfillment metrics.
func Fulfillment() *FulfillmentMetrics {
	fulfillmentOnce.Do(func() {
		fulfillment = newFulfillmentMetrics(prometheus.DefaultRegisterer)
	})
	return fulfillment
}

func newFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	m := &FulfillmentMetrics{
		reservations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolvault_license_reservations_total",
			Help: "License account reservation attempts by outcome.",
		}, []string{"outcome"}),
		reserveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "toolvault_license_reserve_duration_seconds",
			Help:    "Latency of pool reservation transactions.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		paymentEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolvault_payment_events_total",
			Help: "Gateway confirmation events by provider and result.",
		}, []string{"provider", "result"}),
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolvault_order_transitions_total",
			Help: "Order status transitions.",
		}, []string{"from", "to"}),
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolvault_expiry_sweep_runs_total",
			Help: "Expiry sweeper runs by outcome.",
		}, []string{"outcome"}),
		sweepExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "toolvault_expiry_sweep_expired_total",
			Help: "License accounts flipped to EXPIRED by the sweeper.",
		}),
		rateLimitDenied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "toolvault_rate_limit_denied_total",
			Help: "Requests denied by the token bucket limiter.",
		}, []string{"scope"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.reservations,
			m.reserveDuration.(prometheus.Collector),
			m.paymentEvents,
			m.orderTransitions,
			m.sweepRuns,
			m.sweepExpired,
			m.rateLimitDenied,
		)
	}
	return m
}

func (m *FulfillmentMetrics) RecordReservation(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
	m.reserveDuration.Observe(elapsed.Seconds())
}

func (m *FulfillmentMetrics) RecordPaymentEvent(provider, result string) {
	if m == nil {
		return
	}
	m.paymentEvents.WithLabelValues(strings.ToLower(provider), result).Inc()
}

func (m *FulfillmentMetrics) RecordOrderTransition(from, to string) {
	if m == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to).Inc()
}

func (m *FulfillmentMetrics) RecordSweepRun(outcome string, expired int64) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(outcome).Inc()
	if expired > 0 {
		m.sweepExpired.Add(float64(expired))
	}
}

func (m *FulfillmentMetrics) RecordRateLimitDenied(scope string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.WithLabelValues(scope).Inc()
}

// ClassifyError buckets an error for metric labels.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTypeDeadlineExceeded
	case isDBError(err):
		return ErrorTypeDB
	default:
		return ErrorTypeUnknown
	}
}

// ClassifyDBError maps driver-level failures onto stable reason labels.
func ClassifyDBError(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03":
			return DBReasonLockTimeout
		case "40001":
			return DBReasonSerializationFailure
		case "23505":
			return DBReasonUniqueViolation
		}
	}
	return DBReasonUnknown
}

func isDBError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return true
	}
	return errors.Is(err, gorm.ErrInvalidTransaction)
}
