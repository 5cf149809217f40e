package recorder

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysite/internal/clock"
	"github.com/smallbiznis/paysite/internal/observability/logger"
	"github.com/smallbiznis/paysite/internal/observability/metrics"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Recorder writes the payment audit trail. It never fails its caller.
type Recorder interface {
	RecordEvent(ctx context.Context, record domain.PaymentEventRecord)
}

type Params struct {
	fx.In

	DB      *gorm.DB `optional:"true"`
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    domain.Repository
	Clock   clock.Clock
	Metrics *metrics.Metrics        `optional:"true"`
	Webhook *metrics.WebhookMetrics `optional:"true"`
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    domain.Repository
	clock   clock.Clock
	metrics *metrics.Metrics
	webhook *metrics.WebhookMetrics
}

func New(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payment.recorder"),
		genID:   p.GenID,
		repo:    p.Repo,
		clock:   clk,
		metrics: p.Metrics,
		webhook: p.Webhook,
	}
}

func (s *Service) RecordEvent(ctx context.Context, record domain.PaymentEventRecord) {
	log := logger.WithContext(ctx, s.log).With(
		zap.String("session_id", record.SessionID),
		zap.String("source", record.Source),
		zap.String("event_type", record.Type),
	)

	if s.db == nil || s.repo == nil {
		log.Debug("payment event not recorded, database disabled")
		s.webhook.IncAuditRecord(record.Source, metrics.AuditResultSkipped)
		return
	}

	if missing := missingFields(record); len(missing) > 0 {
		log.Error("payment event dropped, required fields missing", zap.Strings("missing", missing))
		s.webhook.IncAuditRecord(record.Source, metrics.AuditResultSkipped)
		return
	}

	ctx, span := otel.Tracer("paysite/payment").Start(ctx, "payment.record_event")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.source", record.Source),
		attribute.String("payment.event_type", record.Type),
	)

	payload, err := json.Marshal(record.Payload)
	if err != nil {
		log.Error("payment event payload not serializable", zap.Error(err))
		span.SetStatus(codes.Error, "payload_encoding")
		s.webhook.IncAuditRecord(record.Source, metrics.AuditResultFailed)
		return
	}

	row := &domain.PaymentEventRow{
		ID:              s.genID.Generate(),
		StripeSessionID: strings.TrimSpace(record.SessionID),
		StripeEventID:   optional(record.EventID),
		EventSource:     record.Source,
		EventType:       record.Type,
		EventStatus:     optional(record.Status),
		HTTPMethod:      optional(record.Request.Method),
		RequestIP:       optional(record.Request.IP),
		UserAgent:       optional(truncate(record.Request.UserAgent, 255)),
		Payload:         datatypes.JSON(payload),
		CreatedAt:       s.clock.Now(),
	}

	if err := s.repo.InsertEvent(ctx, s.db, row); err != nil {
		log.Error("payment event insert failed", zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert_failed")
		s.webhook.IncAuditRecord(record.Source, metrics.AuditResultFailed)
		return
	}

	log.Debug("payment event recorded", zap.String("id", row.ID.String()))
	s.webhook.IncAuditRecord(record.Source, metrics.AuditResultWritten)
	s.metrics.RecordPaymentEvent(ctx, record.Source, record.Type)
}

func missingFields(record domain.PaymentEventRecord) []string {
	var missing []string
	if strings.TrimSpace(record.SessionID) == "" {
		missing = append(missing, "session_id")
	}
	if strings.TrimSpace(record.Source) == "" {
		missing = append(missing, "source")
	}
	if strings.TrimSpace(record.Type) == "" {
		missing = append(missing, "type")
	}
	if record.Payload == nil {
		missing = append(missing, "payload")
	}
	return missing
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func truncate(v string, n int) string {
	if len(v) <= n {
		return v
	}
	return v[:n]
}
