package webhook

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/paysite/internal/clock"
	"github.com/smallbiznis/paysite/internal/config"
	"github.com/smallbiznis/paysite/internal/customize"
	"github.com/smallbiznis/paysite/internal/observability/metrics"
	"github.com/smallbiznis/paysite/internal/payment/adapters/stripe"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"github.com/smallbiznis/paysite/internal/payment/ledger"
	"github.com/smallbiznis/paysite/internal/payment/recorder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type unavailableRepo struct{}

func (unavailableRepo) InsertEvent(context.Context, *gorm.DB, *domain.PaymentEventRow) error {
	return errors.New("database is locked")
}

func (unavailableRepo) ListBySession(context.Context, *gorm.DB, string) ([]domain.PaymentEventRow, error) {
	return nil, errors.New("database is locked")
}

func newAuditRecorder(t *testing.T, repo domain.Repository) *recorder.Service {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.PaymentEventRow{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	return recorder.New(recorder.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repo,
		Clock: clock.NewFakeClock(now),
	})
}

func TestCompletedDeliverySurvivesAuditStorageFailure(t *testing.T) {
	hooks := &countingHooks{}
	wm := metrics.NewWebhookMetrics(prometheus.NewRegistry(), metrics.Config{})
	invoker := customize.NewInvoker(hooks, "test", zap.NewNop(), nil, wm)
	l := ledger.NewMemoryLedger(clock.NewFakeClock(now))

	svc := NewService(Params{
		Cfg:        config.Config{Ledger: config.LedgerConfig{LockTTL: time.Minute}},
		Log:        zap.NewNop(),
		Verifier:   stripe.NewVerifier(testSecret, 5*time.Minute, clock.NewFakeClock(now)),
		Ledger:     ledger.Selected{Ledger: l, Backend: "memory"},
		Dispatcher: ProvideDispatcher(zap.NewNop(), NewCompletionHandler(invoker, zap.NewNop())),
		Recorder:   newAuditRecorder(t, unavailableRepo{}),
		Webhook:    wm,
	})

	payload := eventPayload("evt_audit_down", domain.EventTypeCheckoutSessionCompleted, "paid")
	outcome, err := svc.IngestWebhook(context.Background(), payload, stripe.Sign(testSecret, payload, now), domain.RequestMeta{Method: "POST"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeProcessed, outcome)
	assert.Equal(t, 1, hooks.count())

	seen, err := l.Seen(context.Background(), "evt_audit_down")
	require.NoError(t, err)
	assert.True(t, seen)

	outcome, err = svc.IngestWebhook(context.Background(), payload, stripe.Sign(testSecret, payload, now), domain.RequestMeta{Method: "POST"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	assert.Equal(t, 1, hooks.count())
}
