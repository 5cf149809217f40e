package customize

import (
	"context"

	"github.com/smallbiznis/paysite/internal/payment/domain"
)

const (
	HookPaymentIndex          = "on_payment_index"
	HookStripeWebhook         = "on_stripe_webhook"
	HookSaveSuccessfulPayment = "save_stripe_successful_payment"
)

// CustomizationHooks are the site-specific extension points of the payment flow.
type CustomizationHooks interface {
	// OnPaymentIndex may rewrite the checkout request before line items are built.
	OnPaymentIndex(ctx context.Context, req domain.PaymentRequest) (domain.PaymentRequest, error)
	OnStripeWebhook(ctx context.Context, session domain.Session) (any, error)
	SaveStripeSuccessfulPayment(ctx context.Context, session domain.Session) (any, error)
}

// NopHooks leaves every request unchanged.
type NopHooks struct{}

func (NopHooks) OnPaymentIndex(_ context.Context, req domain.PaymentRequest) (domain.PaymentRequest, error) {
	return req, nil
}

func (NopHooks) OnStripeWebhook(context.Context, domain.Session) (any, error) {
	return nil, nil
}

func (NopHooks) SaveStripeSuccessfulPayment(context.Context, domain.Session) (any, error) {
	return nil, nil
}

// Result is the outcome report returned by the built-in hooks.
type Result struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}
