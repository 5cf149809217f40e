package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/paysite/internal/payment/domain"
)

const (
	WebhookOutcomeProcessed = "processed"
	WebhookOutcomeDuplicate = "duplicate"
	WebhookOutcomeRejected  = "rejected"
	WebhookOutcomeInFlight  = "in_flight"
	WebhookOutcomeFailed    = "failed"
)

const (
	AuditResultWritten = "written"
	AuditResultSkipped = "skipped"
	AuditResultFailed  = "failed"
)

const (
	HookFailureError = "error"
	HookFailurePanic = "panic"
)

const (
	LedgerOpSeen   = "seen"
	LedgerOpMark   = "mark"
	LedgerOpLock   = "lock"
	LedgerOpUnlock = "unlock"
)

// WebhookMetrics are the Prometheus signals of the payment pipeline.
type WebhookMetrics struct {
	deliveries      *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	ledgerErrors    *prometheus.CounterVec
	auditRecords    *prometheus.CounterVec
	hookFailures    *prometheus.CounterVec
	checkouts       *prometheus.CounterVec
}

var (
	webhookMetricsOnce sync.Once
	webhookMetrics     *WebhookMetrics
)

// Webhook returns the process-wide pipeline metrics registered on the default registerer.
func Webhook() *WebhookMetrics {
	return WebhookWithConfig(Config{})
}

// WebhookWithConfig returns the singleton using config labels on first use.
func WebhookWithConfig(cfg Config) *WebhookMetrics {
	webhookMetricsOnce.Do(func() {
		webhookMetrics = NewWebhookMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return webhookMetrics
}

// ResetWebhookMetricsForTest resets the singleton for tests.
func ResetWebhookMetricsForTest() {
	webhookMetricsOnce = sync.Once{}
	webhookMetrics = nil
}

// NewWebhookMetrics registers the pipeline collectors on registerer. Collectors
// that are already registered are reused.
func NewWebhookMetrics(registerer prometheus.Registerer, cfg Config) *WebhookMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	return &WebhookMetrics{
		deliveries: registerCounterVec(registerer, prometheus.CounterOpts{
			Name:        "paysite_webhook_deliveries_total",
			Help:        "Webhook deliveries by event type and outcome.",
			ConstLabels: constLabels,
		}, []string{"event_type", "outcome"}),
		handlerDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:        "paysite_webhook_handler_duration_seconds",
			Help:        "Time spent dispatching a verified webhook event.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			ConstLabels: constLabels,
		}, []string{"event_type"}),
		ledgerErrors: registerCounterVec(registerer, prometheus.CounterOpts{
			Name:        "paysite_ledger_errors_total",
			Help:        "Idempotency ledger failures by backend and operation.",
			ConstLabels: constLabels,
		}, []string{"backend", "op"}),
		auditRecords: registerCounterVec(registerer, prometheus.CounterOpts{
			Name:        "paysite_audit_records_total",
			Help:        "Payment audit records by source and result.",
			ConstLabels: constLabels,
		}, []string{"source", "result"}),
		hookFailures: registerCounterVec(registerer, prometheus.CounterOpts{
			Name:        "paysite_customization_failures_total",
			Help:        "Customization hook failures that were isolated from the request.",
			ConstLabels: constLabels,
		}, []string{"hook", "reason"}),
		checkouts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name:        "paysite_checkout_requests_total",
			Help:        "Checkout creation requests by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
	}
}

func (m *WebhookMetrics) IncDelivery(eventType, outcome string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *WebhookMetrics) ObserveHandlerDuration(eventType string, d time.Duration) {
	if m == nil {
		return
	}
	m.handlerDuration.WithLabelValues(normalizeLabel(eventType)).Observe(d.Seconds())
}

func (m *WebhookMetrics) IncLedgerError(backend, op string) {
	if m == nil {
		return
	}
	m.ledgerErrors.WithLabelValues(normalizeLabel(backend), normalizeLabel(op)).Inc()
}

func (m *WebhookMetrics) IncAuditRecord(source, result string) {
	if m == nil {
		return
	}
	m.auditRecords.WithLabelValues(normalizeLabel(source), normalizeLabel(result)).Inc()
}

func (m *WebhookMetrics) IncHookFailure(hook, reason string) {
	if m == nil {
		return
	}
	m.hookFailures.WithLabelValues(normalizeLabel(hook), normalizeLabel(reason)).Inc()
}

func (m *WebhookMetrics) IncCheckout(outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ClassifyWebhookOutcome maps a delivery error to a low-cardinality outcome.
func ClassifyWebhookOutcome(err error) string {
	switch {
	case err == nil:
		return WebhookOutcomeProcessed
	case errors.Is(err, domain.ErrSignatureRejected):
		return WebhookOutcomeRejected
	case errors.Is(err, domain.ErrDeliveryInFlight):
		return WebhookOutcomeInFlight
	default:
		return WebhookOutcomeFailed
	}
}

// ClassifyCheckoutOutcome maps a checkout error to a low-cardinality outcome.
func ClassifyCheckoutOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, domain.ErrMalformedRequest):
		return "malformed"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return "upstream_error"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unknown"
	}
}

func constLabelsFor(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "paysite"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{"service": serviceName, "env": environment}
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return vec
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	vec := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return vec
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
