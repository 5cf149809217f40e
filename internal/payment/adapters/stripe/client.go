package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/paysite/internal/config"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v82"
)

const defaultAPIBase = "https://api.stripe.com"

type stripeErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CheckoutClient talks to the Checkout Sessions API. Calls are bounded by the
// configured timeout and never retried.
type CheckoutClient struct {
	apiKey  string
	apiBase string
	client  *http.Client
}

func NewCheckoutClient(cfg config.StripeConfig) *CheckoutClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if base == "" {
		base = defaultAPIBase
	}
	return &CheckoutClient{
		apiKey:  strings.TrimSpace(cfg.SecretKey),
		apiBase: base,
		client:  &http.Client{Timeout: timeout},
	}
}

// CreateSession creates a hosted checkout session.
func (c *CheckoutClient) CreateSession(ctx context.Context, params domain.CreateSessionParams) (domain.Session, error) {
	return c.doRequest(ctx, http.MethodPost, "/v1/checkout/sessions", encodeCreateParams(params), uuid.NewString())
}

// RetrieveSession loads a checkout session by id.
func (c *CheckoutClient) RetrieveSession(ctx context.Context, sessionID string) (domain.Session, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.Session{}, domain.ErrMalformedRequest
	}
	return c.doRequest(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, "")
}

func (c *CheckoutClient) doRequest(
	ctx context.Context,
	method string,
	path string,
	values url.Values,
	idempotencyKey string,
) (domain.Session, error) {
	if c.apiKey == "" {
		return domain.Session{}, fmt.Errorf("%w: missing api key", domain.ErrUpstreamUnavailable)
	}

	var body io.Reader
	if values != nil {
		body = strings.NewReader(values.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if err != nil {
		return domain.Session{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Stripe-Version", stripego.APIVersion)
	if values != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: read response: %v", domain.ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		message := "stripe_request_failed"
		var stripeErr stripeErrorResponse
		if json.Unmarshal(raw, &stripeErr) == nil && strings.TrimSpace(stripeErr.Error.Message) != "" {
			message = strings.TrimSpace(stripeErr.Error.Message)
		}
		if resp.StatusCode == http.StatusNotFound {
			return domain.Session{}, fmt.Errorf("%w: %w: %s", domain.ErrUpstreamUnavailable, domain.ErrSessionNotFound, message)
		}
		return domain.Session{}, fmt.Errorf("%w: status %d: %s", domain.ErrUpstreamUnavailable, resp.StatusCode, message)
	}

	session, err := DecodeSession(raw)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: decode session: %v", domain.ErrUpstreamUnavailable, err)
	}
	if session.ID == "" {
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, errors.New("stripe_response_invalid"))
	}
	return session, nil
}

func encodeCreateParams(params domain.CreateSessionParams) url.Values {
	values := url.Values{}
	mode := params.Mode
	if mode == "" {
		mode = "payment"
	}
	values.Set("mode", mode)
	values.Set("success_url", params.SuccessURL)
	values.Set("cancel_url", params.CancelURL)
	if params.CustomerEmail != "" {
		values.Set("customer_email", params.CustomerEmail)
	}
	if params.ClientReferenceID != "" {
		values.Set("client_reference_id", params.ClientReferenceID)
	}
	for key, value := range params.Metadata {
		values.Set("metadata["+key+"]", value)
	}

	for i, item := range params.LineItems {
		prefix := "line_items[" + strconv.Itoa(i) + "]"
		values.Set(prefix+"[quantity]", strconv.FormatInt(item.Quantity, 10))
		values.Set(prefix+"[price_data][currency]", item.PriceData.Currency)
		values.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.PriceData.UnitAmount, 10))
		values.Set(prefix+"[price_data][product_data][name]", item.PriceData.ProductData.Name)
		for key, value := range item.PriceData.ProductData.Metadata {
			values.Set(prefix+"[price_data][product_data][metadata]["+key+"]", metadataString(value))
		}
	}
	return values
}

// metadataString flattens a cart metadata value; the API only stores strings.
func metadataString(value any) string {
	switch cast := value.(type) {
	case nil:
		return ""
	case string:
		return cast
	case float64:
		return strconv.FormatFloat(cast, 'f', -1, 64)
	case json.Number:
		return cast.String()
	case bool:
		return strconv.FormatBool(cast)
	case int:
		return strconv.Itoa(cast)
	case int64:
		return strconv.FormatInt(cast, 10)
	default:
		encoded, err := json.Marshal(cast)
		if err != nil {
			return fmt.Sprint(cast)
		}
		return string(encoded)
	}
}
