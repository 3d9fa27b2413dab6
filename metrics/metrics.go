package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"raillink/entity"
)

var (
	// MessagesProcessed counts handled messages by outcome, see Outcome
	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "raillink",
			Name:      "messages_processed_total",
			Help:      "The total number of handled messages by handler and outcome",
		},
		[]string{"topic", "handler", "outcome"},
	)

	MessagesProcessingDuration = promauto.NewSummaryVec(
		prometheus.SummaryOpts{
			Namespace:  "raillink",
			Name:       "message_processing_duration_seconds",
			Help:       "Time spent handling a message, retries included",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{"topic", "handler"},
	)
)

var (
	// BookingsTotal counts booking attempts by outcome
	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "raillink",
			Name:      "bookings_total",
			Help:      "The total number of booking attempts by outcome",
		},
		[]string{"class", "outcome"},
	)

	CancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "raillink",
			Name:      "cancellations_total",
			Help:      "The total number of cancellation attempts by outcome",
		},
		[]string{"outcome"},
	)

	// TicketsCompleted counts tickets promoted to Completed by the synchronizer
	TicketsCompleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "raillink",
			Name:      "tickets_completed_total",
			Help:      "The total number of tickets completed by synchronizer passes",
		},
	)

	SyncPassDuration = promauto.NewSummary(
		prometheus.SummaryOpts{
			Namespace:  "raillink",
			Name:       "sync_pass_duration_seconds",
			Help:       "Time spent in a single synchronizer pass",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
	)
)

// Outcome turns an operation result into a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, entity.ErrSeatUnavailable):
		return "seat_unavailable"
	case errors.Is(err, entity.ErrInvalidStateTransition):
		return "invalid_state_transition"
	case errors.Is(err, entity.ErrNotFound):
		return "not_found"
	case errors.Is(err, entity.ErrValidation):
		return "validation"
	case entity.IsBusinessError(err):
		return "rejected"
	default:
		return "transaction_failure"
	}
}
