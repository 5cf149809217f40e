package webhook

import (
	"context"

	"github.com/smallbiznis/paysite/internal/audit/masking"
	"github.com/smallbiznis/paysite/internal/customize"
	"github.com/smallbiznis/paysite/internal/observability/logger"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"go.uber.org/zap"
)

// CompletionHandler runs the site webhook hook for paid checkout sessions.
type CompletionHandler struct {
	hooks *customize.Invoker
	log   *zap.Logger
}

func NewCompletionHandler(hooks *customize.Invoker, log *zap.Logger) *CompletionHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &CompletionHandler{hooks: hooks, log: log.Named("payment.completion")}
}

func (h *CompletionHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	if event.Session == nil {
		logger.WithContext(ctx, h.log).Debug("completion event without checkout session", zap.String("event_id", event.ID))
		return nil
	}
	h.HandleSession(ctx, *event.Session)
	return nil
}

// HandleSession is a no-op unless the session is identified and paid.
func (h *CompletionHandler) HandleSession(ctx context.Context, session domain.Session) {
	log := logger.WithContext(ctx, h.log).With(zap.String("session_id", session.ID))
	if session.ID == "" || !session.IsPaid() {
		log.Debug("checkout session not paid, skipping", zap.String("payment_status", session.PaymentStatus))
		return
	}

	log.Info("checkout session completed",
		zap.Int64("amount_total", session.AmountTotal),
		zap.String("customer_email", masking.MaskEmail(session.CustomerEmail)),
		zap.Any("metadata", masking.MaskMetadata(session.Metadata)),
	)
	if h.hooks != nil {
		h.hooks.StripeWebhook(ctx, session)
	}
}
