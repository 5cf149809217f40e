package webhook

import (
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideDispatcher registers the completion handler for every event type
// that finalizes a paid checkout session.
func ProvideDispatcher(log *zap.Logger, completion *CompletionHandler) *Dispatcher {
	d := NewDispatcher(log)
	d.Register(domain.EventTypeCheckoutSessionCompleted, completion)
	d.Register(domain.EventTypeCheckoutAsyncPaymentSucceeded, completion)
	return d
}

var Module = fx.Module("payment.webhook",
	fx.Provide(NewCompletionHandler),
	fx.Provide(ProvideDispatcher),
	fx.Provide(NewService),
)
