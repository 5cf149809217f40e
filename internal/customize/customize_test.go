package customize

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/paysite/internal/config"
	"github.com/smallbiznis/paysite/internal/observability/metrics"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubHooks struct {
	index   func(context.Context, domain.PaymentRequest) (domain.PaymentRequest, error)
	webhook func(context.Context, domain.Session) (any, error)
	calls   int
}

func (s *stubHooks) OnPaymentIndex(ctx context.Context, req domain.PaymentRequest) (domain.PaymentRequest, error) {
	s.calls++
	return s.index(ctx, req)
}

func (s *stubHooks) OnStripeWebhook(ctx context.Context, session domain.Session) (any, error) {
	s.calls++
	return s.webhook(ctx, session)
}

func (s *stubHooks) SaveStripeSuccessfulPayment(ctx context.Context, session domain.Session) (any, error) {
	s.calls++
	return s.webhook(ctx, session)
}

type stubFactory struct{ kind string }

func (f stubFactory) Kind() string { return f.kind }

func (f stubFactory) New(config.SiteSettings, Deps) (CustomizationHooks, error) {
	return NopHooks{}, nil
}

func setupBookingsDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE bookings (
		id INTEGER PRIMARY KEY,
		booker_name TEXT,
		booker_email TEXT,
		booker_huf REAL,
		booker_deposit_huf REAL,
		booker_deposit_origin TEXT,
		booker_persons INTEGER,
		booker_days INTEGER,
		valid_record TEXT
	)`).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO bookings (id, booker_name, booker_email, booker_huf, booker_deposit_huf, booker_persons, booker_days, valid_record)
		 VALUES (42, 'Kiss Anna', 'anna@example.com', 89700, 0, 2, 3, 'no')`,
	).Error)
	return db
}

func newBookingHooks(t *testing.T, db *gorm.DB) CustomizationHooks {
	t.Helper()
	hooks, err := NewRegistry(NewBookingFactory()).NewHooks("Booking", config.SiteSettings{
		Booking: config.BookingSettings{Source: "apartmanszallo"},
	}, Deps{DB: db, Log: zap.NewNop()})
	require.NoError(t, err)
	return hooks
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubFactory{kind: " Booking "}, nil, stubFactory{kind: ""})
	assert.True(t, r.KindExists("booking"))
	assert.False(t, r.KindExists(""))

	_, err := r.NewHooks("shop", config.SiteSettings{}, Deps{})
	assert.ErrorIs(t, err, ErrKindNotFound)

	var nilRegistry *Registry
	assert.False(t, nilRegistry.KindExists("booking"))
}

func TestInvokerIsolatesErrorsAndPanics(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	wm := metrics.NewWebhookMetrics(reg, metrics.Config{})

	original := domain.PaymentRequest{OID: "1", Cart: []domain.CartItem{{Name: "Room", Price: 1, Qty: 1}}}

	failing := &stubHooks{
		index: func(context.Context, domain.PaymentRequest) (domain.PaymentRequest, error) {
			return domain.PaymentRequest{}, errors.New("db down")
		},
		webhook: func(context.Context, domain.Session) (any, error) {
			panic("hook exploded")
		},
	}
	inv := NewInvoker(failing, "stub", zap.New(core), nil, wm)

	got := inv.PaymentIndex(context.Background(), original)
	assert.Equal(t, original, got)

	require.NotPanics(t, func() {
		inv.StripeWebhook(context.Background(), domain.Session{ID: "cs_1", PaymentStatus: "paid"})
		inv.SaveSuccessfulPayment(context.Background(), domain.Session{ID: "cs_1", PaymentStatus: "paid"})
	})
	assert.Equal(t, 3, failing.calls)
	assert.Equal(t, 1, logs.FilterMessage("customization hook failed").Len())
	assert.Equal(t, 2, logs.FilterMessage("customization hook panicked").Len())
}

func TestInvokerReturnsRewrittenRequest(t *testing.T) {
	hooks := &stubHooks{
		index: func(_ context.Context, req domain.PaymentRequest) (domain.PaymentRequest, error) {
			req.CustomerEmail = "buyer@example.com"
			return req, nil
		},
	}
	inv := NewInvoker(hooks, "stub", zap.NewNop(), nil, nil)

	got := inv.PaymentIndex(context.Background(), domain.PaymentRequest{OID: "7"})
	assert.Equal(t, "buyer@example.com", got.CustomerEmail)
	assert.Equal(t, "7", got.OID)
}

func TestBookingOnPaymentIndexBuildsCart(t *testing.T) {
	hooks := newBookingHooks(t, setupBookingsDB(t))

	req, err := hooks.OnPaymentIndex(context.Background(), domain.PaymentRequest{OID: "42"})
	require.NoError(t, err)
	require.Len(t, req.Cart, 1)

	item := req.Cart[0]
	assert.Equal(t, "Szállásfoglalás – Kiss Anna", item.Name)
	assert.Equal(t, int64(29900), item.Price)
	assert.Equal(t, int64(1), item.Qty)
	assert.Equal(t, int64(42), item.Metadata["booking_id"])
	assert.Equal(t, int64(3), item.Metadata["days"])
	assert.Equal(t, "apartmanszallo", item.Metadata["source"])
	assert.Equal(t, "anna@example.com", req.CustomerEmail)
}

func TestBookingOnPaymentIndexLeavesRequestAlone(t *testing.T) {
	hooks := newBookingHooks(t, setupBookingsDB(t))
	original := domain.PaymentRequest{Cart: []domain.CartItem{{Name: "Room", Price: 29900, Qty: 1}}}

	for _, oid := range []string{"", "abc", "12a", "999"} {
		req := original
		req.OID = oid
		got, err := hooks.OnPaymentIndex(context.Background(), req)
		require.NoError(t, err, oid)
		assert.Equal(t, req, got, oid)
	}

	noDB := newBookingHooks(t, nil)
	req := original
	req.OID = "42"
	got, err := noDB.OnPaymentIndex(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestBookingSaveSuccessfulPaymentCreditsOnce(t *testing.T) {
	db := setupBookingsDB(t)
	hooks := newBookingHooks(t, db)
	session := domain.Session{
		ID:            "cs_test_1",
		PaymentStatus: domain.PaymentStatusPaid,
		AmountTotal:   8970000,
		Metadata:      map[string]string{"oid": "42"},
	}

	out, err := hooks.SaveStripeSuccessfulPayment(context.Background(), session)
	require.NoError(t, err)
	assert.True(t, out.(Result).Status)

	var row struct {
		BookerDepositHUF    float64 `gorm:"column:booker_deposit_huf"`
		BookerDepositOrigin string  `gorm:"column:booker_deposit_origin"`
		ValidRecord         string  `gorm:"column:valid_record"`
	}
	require.NoError(t, db.Table("bookings").Where("id = ?", 42).Take(&row).Error)
	assert.Equal(t, 89700.0, row.BookerDepositHUF)
	assert.Equal(t, "stripe", row.BookerDepositOrigin)
	assert.Equal(t, "yes", row.ValidRecord)

	session.AmountTotal = 100
	out, err = hooks.OnStripeWebhook(context.Background(), session)
	require.NoError(t, err)
	assert.Contains(t, out.(Result).Message, "already recorded")

	require.NoError(t, db.Table("bookings").Where("id = ?", 42).Take(&row).Error)
	assert.Equal(t, 89700.0, row.BookerDepositHUF)
}

func TestBookingSaveSuccessfulPaymentSkips(t *testing.T) {
	hooks := newBookingHooks(t, setupBookingsDB(t))

	cases := map[string]domain.Session{
		"unpaid":      {ID: "cs_1", PaymentStatus: domain.PaymentStatusUnpaid, AmountTotal: 100, ClientReferenceID: "42"},
		"no booking":  {ID: "cs_1", PaymentStatus: domain.PaymentStatusPaid, AmountTotal: 100},
		"zero amount": {ID: "cs_1", PaymentStatus: domain.PaymentStatusPaid, ClientReferenceID: "42"},
		"unknown id":  {ID: "cs_1", PaymentStatus: domain.PaymentStatusPaid, AmountTotal: 100, ClientReferenceID: "7"},
	}
	for name, session := range cases {
		out, err := hooks.SaveStripeSuccessfulPayment(context.Background(), session)
		require.NoError(t, err, name)
		assert.False(t, out.(Result).Status, name)
	}
}

func TestNewSiteInvokerResolvesSite(t *testing.T) {
	sites := config.NewStaticSitesHolder(config.SitesConfig{Sites: map[string]config.SiteSettings{
		"apartmanszallo.hu": {Hooks: "booking"},
		"shop.example":      {Hooks: "unknown"},
	}})
	registry := NewRegistry(NewBookingFactory())

	cases := map[string]string{
		"Apartmanszallo.hu": KindBooking,
		"shop.example":      "",
		"missing.example":   "",
	}
	for site, want := range cases {
		inv := NewSiteInvoker(Params{
			Cfg:      config.Config{SiteName: site},
			Sites:    sites,
			Registry: registry,
			Log:      zap.NewNop(),
		})
		assert.Equal(t, want, inv.Kind(), site)
	}
}
