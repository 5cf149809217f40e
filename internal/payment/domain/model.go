package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

const (
	EventTypeCheckoutSessionCreated        = "checkout.session.created"
	EventTypeCheckoutSessionReturned       = "checkout.session.returned"
	EventTypeCheckoutSessionCompleted      = "checkout.session.completed"
	EventTypeCheckoutAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

const (
	EventSourceIndex   = "index"
	EventSourceResult  = "result"
	EventSourceWebhook = "webhook"
)

// Session is the subset of a hosted checkout session this service reads.
type Session struct {
	ID                string            `json:"id"`
	URL               string            `json:"url,omitempty"`
	PaymentStatus     string            `json:"payment_status"`
	AmountTotal       int64             `json:"amount_total"`
	Currency          string            `json:"currency,omitempty"`
	CustomerEmail     string            `json:"customer_email,omitempty"`
	ClientReferenceID string            `json:"client_reference_id,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`

	// Raw is the provider JSON the session was decoded from.
	Raw json.RawMessage `json:"-"`
}

func (s Session) IsPaid() bool {
	return s.PaymentStatus == PaymentStatusPaid
}

// Snapshot returns the provider JSON when available, otherwise the session itself.
func (s Session) Snapshot() any {
	if len(s.Raw) > 0 {
		return s.Raw
	}
	return s
}

// WebhookEvent is a verified provider notification.
type WebhookEvent struct {
	ID      string
	Type    string
	Created time.Time
	// Session is nil when the event object is not a checkout session.
	Session *Session
	Object  json.RawMessage
	Raw     []byte
}

// RequestMeta describes the inbound HTTP request that produced an event.
type RequestMeta struct {
	Method    string
	IP        string
	UserAgent string
}

// PaymentEventRecord is one audit entry as handed to the recorder.
type PaymentEventRecord struct {
	SessionID string
	EventID   string
	Source    string
	Type      string
	Status    string
	Request   RequestMeta
	Payload   any
}

// PaymentEventRow is the persisted, append-only form of a PaymentEventRecord.
type PaymentEventRow struct {
	ID              snowflake.ID   `gorm:"primaryKey;autoIncrement:false"`
	StripeSessionID string         `gorm:"column:stripe_session_id;size:255;not null;index"`
	StripeEventID   *string        `gorm:"column:stripe_event_id;size:255"`
	EventSource     string         `gorm:"column:event_source;size:20;not null"`
	EventType       string         `gorm:"column:event_type;size:100;not null"`
	EventStatus     *string        `gorm:"column:event_status;size:50"`
	HTTPMethod      *string        `gorm:"column:http_method;size:10"`
	RequestIP       *string        `gorm:"column:request_ip;size:45"`
	UserAgent       *string        `gorm:"column:user_agent;size:255"`
	Payload         datatypes.JSON `gorm:"column:payload;not null"`
	CreatedAt       time.Time      `gorm:"column:created_at;not null"`
}

func (PaymentEventRow) TableName() string { return "st_payment_events" }

// ProcessedEvent marks a webhook event id as handled.
type ProcessedEvent struct {
	EventID     string    `gorm:"column:event_id;primaryKey;size:255"`
	ProcessedAt time.Time `gorm:"column:processed_at;not null"`
}

func (ProcessedEvent) TableName() string { return "st_webhook_events" }

// CartItem is one entry of the encoded cart. Price is in whole currency
// units and capped so the minor-unit amount stays within the provider range.
type CartItem struct {
	Name     string         `json:"name" validate:"required"`
	Price    int64          `json:"price" validate:"gte=0,lte=999999999"`
	Qty      int64          `json:"qty" validate:"gte=1,lte=999999"`
	Metadata map[string]any `json:"metadata"`
}

// PaymentRequest is the decoded checkout payload.
type PaymentRequest struct {
	Cart          []CartItem `json:"cart" validate:"dive"`
	OID           string     `json:"oid,omitempty"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	BackURL       string     `json:"back_url,omitempty"`
	PaysiteTitle  string     `json:"paysite_title,omitempty"`
}

// LineItem is one provider-format checkout line.
type LineItem struct {
	PriceData PriceData `json:"price_data"`
	Quantity  int64     `json:"quantity"`
}

type PriceData struct {
	Currency    string      `json:"currency"`
	UnitAmount  int64       `json:"unit_amount"`
	ProductData ProductData `json:"product_data"`
}

type ProductData struct {
	Name     string         `json:"name"`
	Metadata map[string]any `json:"metadata"`
}

// CreateSessionParams are the hosted checkout session parameters.
type CreateSessionParams struct {
	Mode              string
	SuccessURL        string
	CancelURL         string
	CustomerEmail     string
	ClientReferenceID string
	Metadata          map[string]string
	LineItems         []LineItem
}
