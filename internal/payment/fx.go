package payment

import (
	"github.com/smallbiznis/paysite/internal/audit/masking"
	"github.com/smallbiznis/paysite/internal/clock"
	"github.com/smallbiznis/paysite/internal/config"
	"github.com/smallbiznis/paysite/internal/payment/adapters/stripe"
	"github.com/smallbiznis/paysite/internal/payment/checkout"
	"github.com/smallbiznis/paysite/internal/payment/ledger"
	"github.com/smallbiznis/paysite/internal/payment/recorder"
	"github.com/smallbiznis/paysite/internal/payment/repository"
	"github.com/smallbiznis/paysite/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(fx.Annotate(recorder.New, fx.As(new(recorder.Recorder)))),
	fx.Provide(fx.Annotate(
		func(cfg config.Config, log *zap.Logger) *stripe.CheckoutClient {
			log.Named("payment.stripe").Info("stripe client configured",
				zap.String("api_base", cfg.Stripe.APIBase),
				zap.String("secret_key", masking.MaskSecret(cfg.Stripe.SecretKey)),
				zap.String("webhook_secret", masking.MaskSecret(cfg.Stripe.WebhookSecret)),
				zap.Duration("timeout", cfg.Stripe.Timeout),
				zap.Duration("tolerance", cfg.Stripe.Tolerance),
			)
			return stripe.NewCheckoutClient(cfg.Stripe)
		},
		fx.As(new(checkout.SessionClient)),
	)),
	fx.Provide(func(cfg config.Config, clk clock.Clock) webhook.Verifier {
		return stripe.NewVerifier(cfg.Stripe.WebhookSecret, cfg.Stripe.Tolerance, clk)
	}),
	ledger.Module,
	webhook.Module,
	fx.Provide(checkout.NewService),
)
