package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Transaction lifecycle metrics
	stateTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_transaction_state_transitions_total",
		Help: "State transition attempts per target state",
	}, []string{
		"provider",
		"target", // pending, authorized, done, cancel, error
		"result", // applied, already_processed, wrong_state
	})

	transactionsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_transactions_created_total",
		Help: "Transactions created per provider and operation",
	}, []string{
		"provider",
		"operation",
	})

	referenceConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_reference_conflicts_total",
		Help: "Reference uniqueness conflicts hit while creating transactions",
	})

	// Callback metrics
	callbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_callbacks_total",
		Help: "Callback executions on linked documents",
	}, []string{
		"result", // done, retry, invalid_hash, missing_record, failed
	})

	// Post-processing metrics
	postProcessingTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_post_processing_total",
		Help: "Post-processing attempts per outcome",
	}, []string{
		"result", // success, retry, failed
	})

	postProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_post_processing_duration_seconds",
		Help:    "Time to finalize a single transaction",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})

	// Webhook metrics
	webhookNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_notifications_total",
		Help: "Acquirer notifications received",
	}, []string{
		"provider",
		"result", // processed, invalid_signature, skipped, failed
	})

	// Acquirer API metrics
	acquirerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payment_acquirer_request_duration_seconds",
		Help:    "Duration of acquirer API calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{
		"provider",
		"endpoint",
		"status",
	})
)

// RecordStateTransition records one transaction classified by a state transition
func RecordStateTransition(provider, target, result string) {
	stateTransitionsTotal.WithLabelValues(provider, target, result).Inc()
}

// RecordTransactionCreated records a newly created transaction
func RecordTransactionCreated(provider, operation string) {
	transactionsCreatedTotal.WithLabelValues(provider, operation).Inc()
}

// RecordReferenceConflict records a reference collision caught by the unique index
func RecordReferenceConflict() {
	referenceConflictsTotal.Inc()
}

// RecordCallback records a callback outcome
func RecordCallback(result string) {
	callbacksTotal.WithLabelValues(result).Inc()
}

// RecordPostProcessing records a post-processing outcome and its duration in seconds
func RecordPostProcessing(result string, duration float64) {
	postProcessingTotal.WithLabelValues(result).Inc()
	postProcessingDuration.Observe(duration)
}

// RecordWebhookNotification records a received acquirer notification
func RecordWebhookNotification(provider, result string) {
	webhookNotificationsTotal.WithLabelValues(provider, result).Inc()
}

// RecordAcquirerRequest records an acquirer API call
func RecordAcquirerRequest(provider, endpoint, status string, duration float64) {
	acquirerRequestDuration.WithLabelValues(provider, endpoint, status).Observe(duration)
}
