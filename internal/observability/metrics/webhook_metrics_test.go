package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/paysite/internal/payment/domain"
)

func TestClassifyWebhookOutcome(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "ok", err: nil, want: WebhookOutcomeProcessed},
		{name: "bad_signature", err: domain.ErrInvalidSignature, want: WebhookOutcomeRejected},
		{name: "stale", err: fmt.Errorf("verify: %w", domain.ErrTimestampOutsideTolerance), want: WebhookOutcomeRejected},
		{name: "in_flight", err: domain.ErrDeliveryInFlight, want: WebhookOutcomeInFlight},
		{name: "handler", err: errors.New("boom"), want: WebhookOutcomeFailed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyWebhookOutcome(tc.err); got != tc.want {
				t.Fatalf("expected outcome %q, got %q", tc.want, got)
			}
		})
	}
}

func TestClassifyCheckoutOutcome(t *testing.T) {
	if got := ClassifyCheckoutOutcome(fmt.Errorf("decode: %w", domain.ErrMalformedRequest)); got != "malformed" {
		t.Fatalf("expected malformed, got %q", got)
	}
	if got := ClassifyCheckoutOutcome(domain.ErrUpstreamUnavailable); got != "upstream_error" {
		t.Fatalf("expected upstream_error, got %q", got)
	}
}

func TestWebhookMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWebhookMetrics(registry, Config{ServiceName: "paysite", Environment: "test"})

	m.IncDelivery("checkout.session.completed", WebhookOutcomeProcessed)
	m.IncDelivery("checkout.session.completed", WebhookOutcomeDuplicate)
	m.IncDelivery("checkout.session.completed", WebhookOutcomeDuplicate)
	m.IncAuditRecord("webhook", AuditResultFailed)
	m.IncLedgerError("file", LedgerOpSeen)
	m.ObserveHandlerDuration("checkout.session.completed", 20*time.Millisecond)

	if got := testutil.ToFloat64(m.deliveries.WithLabelValues("checkout.session.completed", WebhookOutcomeDuplicate)); got != 2 {
		t.Fatalf("expected 2 duplicates, got %v", got)
	}
	if got := testutil.ToFloat64(m.auditRecords.WithLabelValues("webhook", AuditResultFailed)); got != 1 {
		t.Fatalf("expected 1 failed audit record, got %v", got)
	}
	if got := testutil.ToFloat64(m.ledgerErrors.WithLabelValues("file", LedgerOpSeen)); got != 1 {
		t.Fatalf("expected 1 ledger error, got %v", got)
	}
}

func TestWebhookMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewWebhookMetrics(registry, Config{})
	second := NewWebhookMetrics(registry, Config{})

	first.IncCheckout("created")
	second.IncCheckout("created")

	if got := testutil.ToFloat64(first.checkouts.WithLabelValues("created")); got != 2 {
		t.Fatalf("expected shared collector count 2, got %v", got)
	}
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{})

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/result", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/result", nil))

	if got := testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/result", "400")); got != 1 {
		t.Fatalf("expected 1 request, got %v", got)
	}
}
