package stripe

import (
	"encoding/json"

	"github.com/smallbiznis/paysite/internal/payment/domain"
	stripego "github.com/stripe/stripe-go/v82"
)

// DecodeSession decodes a checkout session object as returned by the API or
// embedded in an event.
func DecodeSession(raw []byte) (domain.Session, error) {
	var cs stripego.CheckoutSession
	if err := json.Unmarshal(raw, &cs); err != nil {
		return domain.Session{}, err
	}
	return sessionFromStripe(&cs, raw), nil
}

func sessionFromStripe(cs *stripego.CheckoutSession, raw []byte) domain.Session {
	email := cs.CustomerEmail
	if email == "" && cs.CustomerDetails != nil {
		email = cs.CustomerDetails.Email
	}
	return domain.Session{
		ID:                cs.ID,
		URL:               cs.URL,
		PaymentStatus:     string(cs.PaymentStatus),
		AmountTotal:       cs.AmountTotal,
		Currency:          string(cs.Currency),
		CustomerEmail:     email,
		ClientReferenceID: cs.ClientReferenceID,
		Metadata:          cs.Metadata,
		Raw:               json.RawMessage(append([]byte(nil), raw...)),
	}
}
