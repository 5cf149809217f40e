package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/paysite/internal/clock"
	"github.com/smallbiznis/paysite/internal/payment/domain"
)

const SignatureHeader = "Stripe-Signature"

// Verifier authenticates webhook bodies signed with the endpoint secret.
type Verifier struct {
	secret    []byte
	tolerance time.Duration
	clock     clock.Clock
}

// NewVerifier returns a verifier for secret. A zero tolerance disables the
// timestamp window check.
func NewVerifier(secret string, tolerance time.Duration, clk clock.Clock) *Verifier {
	if clk == nil {
		clk = clock.New()
	}
	return &Verifier{
		secret:    []byte(strings.TrimSpace(secret)),
		tolerance: tolerance,
		clock:     clk,
	}
}

// Verify checks header against payload and decodes the event. payload must be
// the exact request body.
func (v *Verifier) Verify(payload []byte, header string) (*domain.WebhookEvent, error) {
	if len(payload) == 0 {
		return nil, domain.ErrEmptyPayload
	}
	timestamp, signatures, err := parseStripeSignature(header)
	if err != nil {
		return nil, err
	}

	expected := v.computeSignature(timestamp, payload)
	matched := false
	for _, signature := range signatures {
		decoded, err := hex.DecodeString(signature)
		if err != nil {
			continue
		}
		if hmac.Equal(decoded, expected) {
			matched = true
			break
		}
	}
	if !matched {
		return nil, domain.ErrInvalidSignature
	}

	if v.tolerance > 0 {
		signedAt := time.Unix(timestamp, 0)
		age := v.clock.Now().Sub(signedAt)
		if age > v.tolerance || age < -v.tolerance {
			return nil, domain.ErrTimestampOutsideTolerance
		}
	}

	return decodeEvent(payload)
}

func (v *Verifier) computeSignature(timestamp int64, payload []byte) []byte {
	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return mac.Sum(nil)
}

// Sign builds a header the way the provider does. Used by tests and the
// local webhook replay tooling.
func Sign(secret string, payload []byte, timestamp time.Time) string {
	v := &Verifier{secret: []byte(strings.TrimSpace(secret))}
	sig := v.computeSignature(timestamp.Unix(), payload)
	return "t=" + strconv.FormatInt(timestamp.Unix(), 10) + ",v1=" + hex.EncodeToString(sig)
}

func parseStripeSignature(header string) (int64, []string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0, nil, domain.ErrMalformedHeader
	}

	var rawTimestamp string
	signatures := []string{}
	for _, part := range strings.Split(header, ",") {
		piece := strings.TrimSpace(part)
		if piece == "" {
			continue
		}
		keyValue := strings.SplitN(piece, "=", 2)
		if len(keyValue) != 2 {
			continue
		}
		key := strings.TrimSpace(keyValue[0])
		value := strings.TrimSpace(keyValue[1])
		switch key {
		case "t":
			rawTimestamp = value
		case "v1":
			signatures = append(signatures, value)
		}
	}
	if rawTimestamp == "" || len(signatures) == 0 {
		return 0, nil, domain.ErrMalformedHeader
	}
	timestamp, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return 0, nil, domain.ErrMalformedHeader
	}
	return timestamp, signatures, nil
}

type stripeEvent struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Created int64           `json:"created"`
	Data    stripeEventData `json:"data"`
}

type stripeEventData struct {
	Object json.RawMessage `json:"object"`
}

type objectKind struct {
	Object string `json:"object"`
}

func decodeEvent(payload []byte) (*domain.WebhookEvent, error) {
	var event stripeEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrMalformedEvent
	}
	if strings.TrimSpace(event.ID) == "" || strings.TrimSpace(event.Type) == "" {
		return nil, domain.ErrMalformedEvent
	}

	out := &domain.WebhookEvent{
		ID:     event.ID,
		Type:   event.Type,
		Object: event.Data.Object,
		Raw:    payload,
	}
	if event.Created > 0 {
		out.Created = time.Unix(event.Created, 0).UTC()
	}

	var kind objectKind
	if len(event.Data.Object) > 0 && json.Unmarshal(event.Data.Object, &kind) == nil && kind.Object == "checkout.session" {
		session, err := DecodeSession(event.Data.Object)
		if err != nil {
			return nil, domain.ErrMalformedEvent
		}
		out.Session = &session
	}
	return out, nil
}
