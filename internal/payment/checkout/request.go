package checkout

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/smallbiznis/paysite/internal/payment/domain"
)

// wireRequest mirrors the loosely typed JSON merchants put into did. Numbers
// may arrive as JSON numbers or numeric strings, and an empty metadata object
// may arrive as [].
type wireRequest struct {
	Cart          []wireItem `json:"cart"`
	OID           flexString `json:"oid"`
	CustomerEmail flexString `json:"customer_email"`
	BackURL       flexString `json:"back_url"`
	PaysiteTitle  flexString `json:"paysite_title"`
}

type wireItem struct {
	Name     flexString   `json:"name"`
	Price    flexInt      `json:"price"`
	Qty      flexInt      `json:"qty"`
	Metadata flexMetadata `json:"metadata"`
}

// DecodeRequest turns the did parameter into a PaymentRequest. Every failure
// wraps domain.ErrMalformedRequest.
func DecodeRequest(did string) (domain.PaymentRequest, error) {
	did = strings.TrimSpace(did)
	if did == "" {
		return domain.PaymentRequest{}, fmt.Errorf("%w: missing payment data", domain.ErrMalformedRequest)
	}

	raw, err := decodeBase64(did)
	if err != nil {
		return domain.PaymentRequest{}, fmt.Errorf("%w: invalid base64 payment data", domain.ErrMalformedRequest)
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return domain.PaymentRequest{}, fmt.Errorf("%w: payment data is not a JSON object", domain.ErrMalformedRequest)
	}

	var wire wireRequest
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return domain.PaymentRequest{}, fmt.Errorf("%w: invalid JSON payment data: %v", domain.ErrMalformedRequest, err)
	}

	req := domain.PaymentRequest{
		OID:           string(wire.OID),
		CustomerEmail: strings.TrimSpace(string(wire.CustomerEmail)),
		BackURL:       strings.TrimSpace(string(wire.BackURL)),
		PaysiteTitle:  strings.TrimSpace(string(wire.PaysiteTitle)),
	}
	for _, item := range wire.Cart {
		req.Cart = append(req.Cart, domain.CartItem{
			Name:     strings.TrimSpace(string(item.Name)),
			Price:    int64(item.Price),
			Qty:      int64(item.Qty),
			Metadata: map[string]any(item.Metadata),
		})
	}
	return req, nil
}

func decodeBase64(s string) ([]byte, error) {
	if raw, err := base64.StdEncoding.DecodeString(s); err == nil {
		return raw, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// flexString accepts a JSON string, number or null.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*f = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("expected string or number, got %s", data)
		}
		*f = flexString(n.String())
		return nil
	}
}

// flexInt accepts a JSON number or numeric string. Fractions are truncated.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = 0
		return nil
	}
	text := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		text = strings.TrimSpace(text)
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt64/100 {
		return fmt.Errorf("expected integer, got %s", data)
	}
	*f = flexInt(math.Trunc(v))
	return nil
}

// flexMetadata accepts an object, an empty array or null.
type flexMetadata map[string]any

func (f *flexMetadata) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var list []any
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		if len(list) > 0 {
			return fmt.Errorf("metadata must be an object")
		}
		*f = map[string]any{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*f = m
	return nil
}
