package customize

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/smallbiznis/paysite/internal/observability/logger"
	"github.com/smallbiznis/paysite/internal/observability/metrics"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"go.uber.org/zap"
)

// Invoker calls site hooks so that their errors and panics never reach the
// payment flow. Every failure is logged and counted.
type Invoker struct {
	hooks   CustomizationHooks
	kind    string
	log     *zap.Logger
	metrics *metrics.Metrics
	webhook *metrics.WebhookMetrics
}

func NewInvoker(hooks CustomizationHooks, kind string, log *zap.Logger, m *metrics.Metrics, wm *metrics.WebhookMetrics) *Invoker {
	if hooks == nil {
		hooks = NopHooks{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Invoker{hooks: hooks, kind: kind, log: log, metrics: m, webhook: wm}
}

// Kind is the customization kind in use, empty for NopHooks.
func (i *Invoker) Kind() string { return i.kind }

// PaymentIndex returns the rewritten request, or req itself when the hook fails.
func (i *Invoker) PaymentIndex(ctx context.Context, req domain.PaymentRequest) domain.PaymentRequest {
	var out domain.PaymentRequest
	err := i.call(ctx, HookPaymentIndex, func() (any, error) {
		var err error
		out, err = i.hooks.OnPaymentIndex(ctx, req)
		return nil, err
	})
	if err != nil {
		return req
	}
	return out
}

func (i *Invoker) StripeWebhook(ctx context.Context, session domain.Session) {
	_ = i.call(ctx, HookStripeWebhook, func() (any, error) {
		return i.hooks.OnStripeWebhook(ctx, session)
	})
}

func (i *Invoker) SaveSuccessfulPayment(ctx context.Context, session domain.Session) {
	_ = i.call(ctx, HookSaveSuccessfulPayment, func() (any, error) {
		return i.hooks.SaveStripeSuccessfulPayment(ctx, session)
	})
}

func (i *Invoker) call(ctx context.Context, hook string, fn func() (any, error)) (err error) {
	log := logger.WithContext(ctx, i.log).With(zap.String("hook", hook), zap.String("kind", i.kind))
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %s panicked: %v", domain.ErrCustomizationFailure, hook, r)
			log.Error("customization hook panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()),
			)
			i.webhook.IncHookFailure(hook, metrics.HookFailurePanic)
			i.metrics.RecordCustomizationCall(ctx, hook, metrics.HookFailurePanic)
		}
	}()

	result, callErr := fn()
	if callErr != nil {
		log.Error("customization hook failed", zap.Error(callErr), zap.Duration("duration", time.Since(start)))
		i.webhook.IncHookFailure(hook, metrics.HookFailureError)
		i.metrics.RecordCustomizationCall(ctx, hook, metrics.HookFailureError)
		return fmt.Errorf("%w: %s: %v", domain.ErrCustomizationFailure, hook, callErr)
	}

	log.Debug("customization hook executed", zap.Any("result", result), zap.Duration("duration", time.Since(start)))
	i.metrics.RecordCustomizationCall(ctx, hook, "ok")
	return nil
}
