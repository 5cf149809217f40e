package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/smallbiznis/paysite/internal/audit/masking"
	"github.com/smallbiznis/paysite/internal/config"
	"github.com/smallbiznis/paysite/internal/customize"
	"github.com/smallbiznis/paysite/internal/observability/logger"
	"github.com/smallbiznis/paysite/internal/observability/metrics"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"github.com/smallbiznis/paysite/internal/payment/recorder"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SessionPlaceholder is replaced by the provider with the created session id.
const SessionPlaceholder = "{CHECKOUT_SESSION_ID}"

// SessionClient is the hosted checkout API.
type SessionClient interface {
	CreateSession(ctx context.Context, params domain.CreateSessionParams) (domain.Session, error)
	RetrieveSession(ctx context.Context, sessionID string) (domain.Session, error)
}

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Client   SessionClient
	Hooks    *customize.Invoker
	Recorder recorder.Recorder
	Metrics  *metrics.Metrics        `optional:"true"`
	Webhook  *metrics.WebhookMetrics `optional:"true"`
}

type Service struct {
	log       *zap.Logger
	client    SessionClient
	hooks     *customize.Invoker
	recorder  recorder.Recorder
	resultURL string
	currency  string
	metrics   *metrics.Metrics
	webhook   *metrics.WebhookMetrics
}

func NewService(p Params) *Service {
	hooks := p.Hooks
	if hooks == nil {
		hooks = customize.NewInvoker(customize.NopHooks{}, "", p.Log, p.Metrics, p.Webhook)
	}
	return &Service{
		log:       p.Log.Named("payment.checkout"),
		client:    p.Client,
		hooks:     hooks,
		recorder:  p.Recorder,
		resultURL: strings.TrimSpace(p.Cfg.ResultURL),
		currency:  p.Cfg.Checkout.Currency,
		metrics:   p.Metrics,
		webhook:   p.Webhook,
	}
}

// Created is the outcome of a successful checkout creation.
type Created struct {
	Session      domain.Session
	BackURL      string
	PaysiteTitle string
}

// Create decodes did, lets the site rewrite the request, and opens a hosted
// checkout session. No provider call is made for a malformed request.
func (s *Service) Create(ctx context.Context, did string, meta domain.RequestMeta) (Created, error) {
	ctx, span := otel.Tracer("paysite/payment").Start(ctx, "payment.checkout.create")
	defer span.End()

	created, err := s.create(ctx, did, meta)
	outcome := metrics.ClassifyCheckoutOutcome(err)
	s.webhook.IncCheckout(outcome)
	s.metrics.RecordCheckoutSession(ctx, outcome)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return created, err
}

func (s *Service) create(ctx context.Context, did string, meta domain.RequestMeta) (Created, error) {
	log := logger.WithContext(ctx, s.log)

	req, err := DecodeRequest(did)
	if err != nil {
		log.Warn("invalid payment request", zap.Error(err))
		return Created{}, err
	}
	log.Debug("incoming payment request", zap.String("oid", req.OID), zap.Int("cart_items", len(req.Cart)))

	if req.OID != "" {
		req = s.hooks.PaymentIndex(ctx, req)
	}
	if err := ValidateRequest(req); err != nil {
		log.Warn("invalid payment request", zap.String("oid", req.OID), zap.Error(err))
		return Created{}, err
	}

	params := s.sessionParams(req)
	log.Debug("creating checkout session", zap.Int("line_items", len(params.LineItems)))

	session, err := s.client.CreateSession(ctx, params)
	if err != nil {
		log.Error("checkout session creation failed", zap.Error(err))
		return Created{}, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("payment.session_id", session.ID))

	s.recorder.RecordEvent(ctx, domain.PaymentEventRecord{
		SessionID: session.ID,
		Source:    domain.EventSourceIndex,
		Type:      domain.EventTypeCheckoutSessionCreated,
		Status:    "created",
		Request:   meta,
		Payload:   session.Snapshot(),
	})

	log.Info("checkout session created",
		zap.String("session_id", session.ID),
		zap.String("oid", req.OID),
		zap.String("customer_email", masking.MaskEmail(req.CustomerEmail)),
	)
	return Created{Session: session, BackURL: req.BackURL, PaysiteTitle: req.PaysiteTitle}, nil
}

func (s *Service) sessionParams(req domain.PaymentRequest) domain.CreateSessionParams {
	returnURL := s.resultURL + "?sid=" + SessionPlaceholder
	params := domain.CreateSessionParams{
		Mode:          "payment",
		SuccessURL:    returnURL,
		CancelURL:     returnURL,
		CustomerEmail: req.CustomerEmail,
		LineItems:     LineItems(req.Cart, s.currency),
	}
	if req.OID != "" {
		params.ClientReferenceID = req.OID
		params.Metadata = map[string]string{"oid": req.OID}
	}
	return params
}

// Result loads the session the buyer returned from, records the return and
// lets the site persist a successful payment.
func (s *Service) Result(ctx context.Context, sessionID string, meta domain.RequestMeta) (domain.Session, error) {
	ctx, span := otel.Tracer("paysite/payment").Start(ctx, "payment.checkout.result")
	defer span.End()
	log := logger.WithContext(ctx, s.log)

	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Session{}, fmt.Errorf("%w: missing session id", domain.ErrMalformedRequest)
	}
	span.SetAttributes(attribute.String("payment.session_id", sessionID))

	session, err := s.client.RetrieveSession(ctx, sessionID)
	if err != nil {
		log.Error("checkout session retrieval failed", zap.String("session_id", sessionID), zap.Error(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "retrieve_failed")
		return domain.Session{}, err
	}

	s.recorder.RecordEvent(ctx, domain.PaymentEventRecord{
		SessionID: session.ID,
		Source:    domain.EventSourceResult,
		Type:      domain.EventTypeCheckoutSessionReturned,
		Status:    session.PaymentStatus,
		Request:   meta,
		Payload:   session.Snapshot(),
	})

	s.hooks.SaveSuccessfulPayment(ctx, session)

	log.Info("checkout session returned",
		zap.String("session_id", session.ID),
		zap.String("payment_status", session.PaymentStatus),
	)
	return session, nil
}
