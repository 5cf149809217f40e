package customize

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/smallbiznis/paysite/internal/config"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const KindBooking = "booking"

const (
	defaultBookingTable   = "bookings"
	defaultBookingProduct = "Szállásfoglalás"
)

type bookingRow struct {
	ID               int64   `gorm:"column:id"`
	BookerName       string  `gorm:"column:booker_name"`
	BookerEmail      string  `gorm:"column:booker_email"`
	BookerHUF        float64 `gorm:"column:booker_huf"`
	BookerDepositHUF float64 `gorm:"column:booker_deposit_huf"`
	BookerPersons    int64   `gorm:"column:booker_persons"`
	BookerDays       int64   `gorm:"column:booker_days"`
}

// BookingFactory builds hooks for accommodation sites that keep their
// reservations in a bookings table of the shared database.
type BookingFactory struct{}

func NewBookingFactory() BookingFactory { return BookingFactory{} }

func (BookingFactory) Kind() string { return KindBooking }

func (BookingFactory) New(site config.SiteSettings, deps Deps) (CustomizationHooks, error) {
	table := strings.TrimSpace(site.Booking.Table)
	if table == "" {
		table = defaultBookingTable
	}
	product := strings.TrimSpace(site.Booking.ProductName)
	if product == "" {
		product = defaultBookingProduct
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHooks{
		db:      deps.DB,
		log:     log.Named("customize.booking"),
		table:   table,
		source:  strings.TrimSpace(site.Booking.Source),
		product: product,
	}, nil
}

type BookingHooks struct {
	db      *gorm.DB
	log     *zap.Logger
	table   string
	source  string
	product string
}

// OnPaymentIndex replaces the cart with the booking referenced by oid. Any
// lookup problem leaves the request as it was.
func (h *BookingHooks) OnPaymentIndex(ctx context.Context, req domain.PaymentRequest) (domain.PaymentRequest, error) {
	bookingID, ok := parseBookingID(req.OID)
	if !ok {
		h.log.Debug("no valid oid provided", zap.String("oid", req.OID))
		return req, nil
	}
	if h.db == nil {
		h.log.Warn("database not available, skipping booking load", zap.Int64("oid", bookingID))
		return req, nil
	}

	var booking bookingRow
	err := h.db.WithContext(ctx).
		Table(h.table).
		Select("id, booker_name, booker_email, booker_huf, booker_deposit_huf, booker_persons, booker_days").
		Where("id = ?", bookingID).
		Take(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		h.log.Warn("booking not found", zap.Int64("oid", bookingID))
		return req, nil
	}
	if err != nil {
		return req, fmt.Errorf("load booking %d: %w", bookingID, err)
	}

	var pricePerDay int64
	if booking.BookerDays > 0 {
		pricePerDay = int64(booking.BookerHUF / float64(booking.BookerDays))
	}

	metadata := map[string]any{
		"booking_id": booking.ID,
		"persons":    booking.BookerPersons,
		"days":       booking.BookerDays,
	}
	if h.source != "" {
		metadata["source"] = h.source
	}

	req.CustomerEmail = booking.BookerEmail
	req.Cart = []domain.CartItem{{
		Name:     h.product + " – " + booking.BookerName,
		Price:    pricePerDay,
		Qty:      1,
		Metadata: metadata,
	}}

	h.log.Info("cart populated from booking", zap.Int64("oid", bookingID), zap.Int64("price", pricePerDay))
	return req, nil
}

func (h *BookingHooks) OnStripeWebhook(ctx context.Context, session domain.Session) (any, error) {
	return h.SaveStripeSuccessfulPayment(ctx, session)
}

// SaveStripeSuccessfulPayment credits the paid amount to the booking once.
// A booking that already carries a deposit is left untouched.
func (h *BookingHooks) SaveStripeSuccessfulPayment(ctx context.Context, session domain.Session) (any, error) {
	if !session.IsPaid() {
		return Result{Message: "payment status is " + session.PaymentStatus}, nil
	}
	bookingID, ok := sessionBookingID(session)
	if !ok {
		return Result{Message: "booking id not present in session"}, nil
	}
	if session.AmountTotal <= 0 {
		return Result{Message: fmt.Sprintf("amount not valid: %d", session.AmountTotal)}, nil
	}
	if h.db == nil {
		return nil, errors.New("booking database not configured")
	}
	amount := float64(session.AmountTotal) / 100

	var result Result
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var booking bookingRow
		err := tx.Table(h.table).
			Select("id, booker_deposit_huf").
			Where("id = ?", bookingID).
			Take(&booking).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			result = Result{Message: fmt.Sprintf("booking %d not found", bookingID)}
			return nil
		}
		if err != nil {
			return err
		}
		if booking.BookerDepositHUF > 0 {
			result = Result{Status: true, Message: fmt.Sprintf("deposit already recorded: %v", booking.BookerDepositHUF)}
			return nil
		}

		res := tx.Table(h.table).
			Where("id = ? AND (booker_deposit_huf IS NULL OR booker_deposit_huf <= 0)", bookingID).
			Updates(map[string]any{
				"booker_deposit_huf":    amount,
				"booker_deposit_origin": "stripe",
				"valid_record":          "yes",
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			result = Result{Status: true, Message: "deposit recorded concurrently"}
			return nil
		}
		result = Result{Status: true, Message: fmt.Sprintf("saved %d => %v", bookingID, amount)}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("credit booking %d: %w", bookingID, err)
	}

	h.log.Info("booking payment processed",
		zap.Int64("booking_id", bookingID),
		zap.Bool("status", result.Status),
		zap.String("message", result.Message),
	)
	return result, nil
}

func parseBookingID(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func sessionBookingID(session domain.Session) (int64, bool) {
	for _, candidate := range []string{
		session.Metadata["booking_id"],
		session.Metadata["oid"],
		session.ClientReferenceID,
	} {
		if id, ok := parseBookingID(candidate); ok {
			return id, true
		}
	}
	return 0, false
}
