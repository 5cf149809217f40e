package webhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/smallbiznis/paysite/internal/config"
	obscontext "github.com/smallbiznis/paysite/internal/observability/context"
	"github.com/smallbiznis/paysite/internal/observability/logger"
	"github.com/smallbiznis/paysite/internal/observability/metrics"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"github.com/smallbiznis/paysite/internal/payment/ledger"
	"github.com/smallbiznis/paysite/internal/payment/recorder"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	OutcomeProcessed = metrics.WebhookOutcomeProcessed
	OutcomeDuplicate = metrics.WebhookOutcomeDuplicate
)

// Verifier authenticates a raw webhook body against its signature header.
type Verifier interface {
	Verify(payload []byte, header string) (*domain.WebhookEvent, error)
}

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	Verifier   Verifier
	Ledger     ledger.Selected
	Dispatcher *Dispatcher
	Recorder   recorder.Recorder
	Metrics    *metrics.Metrics        `optional:"true"`
	Webhook    *metrics.WebhookMetrics `optional:"true"`
}

type Service struct {
	log        *zap.Logger
	verifier   Verifier
	ledger     ledger.Ledger
	backend    string
	lockTTL    time.Duration
	dispatcher *Dispatcher
	recorder   recorder.Recorder
	metrics    *metrics.Metrics
	webhook    *metrics.WebhookMetrics
}

func NewService(p Params) *Service {
	lockTTL := p.Cfg.Ledger.LockTTL
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &Service{
		log:        p.Log.Named("payment.webhook"),
		verifier:   p.Verifier,
		ledger:     p.Ledger.Ledger,
		backend:    p.Ledger.Backend,
		lockTTL:    lockTTL,
		dispatcher: p.Dispatcher,
		recorder:   p.Recorder,
		metrics:    p.Metrics,
		webhook:    p.Webhook,
	}
}

// IngestWebhook verifies, deduplicates, dispatches and records one delivery.
// The event id is marked processed only after dispatch succeeded, so a
// failed or interrupted delivery is processed again when redelivered.
func (s *Service) IngestWebhook(ctx context.Context, payload []byte, signature string, meta domain.RequestMeta) (string, error) {
	ctx = obscontext.WithDeliveryID(ctx, ulid.Make().String())
	ctx, span := otel.Tracer("paysite/payment").Start(ctx, "payment.webhook.ingest")
	defer span.End()

	log := logger.WithContext(ctx, s.log)

	event, err := s.verifier.Verify(payload, signature)
	if err != nil {
		log.Warn("webhook verification failed", zap.Error(err))
		span.SetStatus(codes.Error, "verification_failed")
		s.observe(ctx, "", err)
		return "", err
	}

	log = log.With(zap.String("event_id", event.ID), zap.String("event_type", event.Type))
	span.SetAttributes(
		attribute.String("payment.event_id", event.ID),
		attribute.String("payment.event_type", event.Type),
	)

	if s.alreadyProcessed(ctx, log, event.ID) {
		log.Info("webhook already processed")
		s.observeOutcome(ctx, event.Type, OutcomeDuplicate)
		return OutcomeDuplicate, nil
	}

	if locker, ok := s.ledger.(ledger.InFlightLocker); ok {
		release, acquired, err := locker.TryLock(ctx, event.ID, s.lockTTL)
		switch {
		case err != nil:
			log.Warn("webhook in-flight lock unavailable, continuing", zap.Error(err))
			s.webhook.IncLedgerError(s.backend, metrics.LedgerOpLock)
		case !acquired:
			log.Info("webhook delivery already in flight")
			s.observe(ctx, event.Type, domain.ErrDeliveryInFlight)
			return "", domain.ErrDeliveryInFlight
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn("webhook in-flight lock release failed", zap.Error(err))
					s.webhook.IncLedgerError(s.backend, metrics.LedgerOpUnlock)
				}
			}()
			// A concurrent delivery may have finished between Seen and TryLock.
			if s.alreadyProcessed(ctx, log, event.ID) {
				log.Info("webhook already processed")
				s.observeOutcome(ctx, event.Type, OutcomeDuplicate)
				return OutcomeDuplicate, nil
			}
		}
	}

	start := time.Now()
	err = s.dispatcher.Dispatch(ctx, event)
	s.webhook.ObserveHandlerDuration(event.Type, time.Since(start))
	if err != nil {
		log.Error("webhook handler failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "handler_failed")
		s.observe(ctx, event.Type, err)
		return "", fmt.Errorf("handle %s: %w", event.Type, err)
	}

	if event.Session != nil {
		s.recorder.RecordEvent(ctx, domain.PaymentEventRecord{
			SessionID: event.Session.ID,
			EventID:   event.ID,
			Source:    domain.EventSourceWebhook,
			Type:      event.Type,
			Status:    event.Session.PaymentStatus,
			Request:   meta,
			Payload:   event.Session.Snapshot(),
		})
	}

	first, err := s.ledger.Mark(ctx, event.ID)
	switch {
	case err != nil:
		log.Error("webhook event could not be marked processed", zap.Error(err))
		s.webhook.IncLedgerError(s.backend, metrics.LedgerOpMark)
	case !first:
		log.Debug("webhook event was marked by a concurrent delivery")
	}

	log.Info("webhook processed")
	s.observeOutcome(ctx, event.Type, OutcomeProcessed)
	return OutcomeProcessed, nil
}

// alreadyProcessed fails open: a ledger error counts as not processed.
func (s *Service) alreadyProcessed(ctx context.Context, log *zap.Logger, eventID string) bool {
	seen, err := s.ledger.Seen(ctx, eventID)
	if err != nil {
		log.Warn("webhook ledger lookup failed, processing anyway", zap.Error(err))
		s.webhook.IncLedgerError(s.backend, metrics.LedgerOpSeen)
		return false
	}
	return seen
}

func (s *Service) observe(ctx context.Context, eventType string, err error) {
	s.observeOutcome(ctx, eventType, metrics.ClassifyWebhookOutcome(err))
}

func (s *Service) observeOutcome(ctx context.Context, eventType, outcome string) {
	s.webhook.IncDelivery(eventType, outcome)
	s.metrics.RecordWebhookDelivery(ctx, eventType, outcome)
}

// IsRejected reports whether err means the delivery failed verification.
func IsRejected(err error) bool {
	return errors.Is(err, domain.ErrSignatureRejected)
}
