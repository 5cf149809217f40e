package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.PaymentEventRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func strPtr(v string) *string { return &v }

func TestInsertAndListBySession(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	r := Provide()

	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rows := []*domain.PaymentEventRow{
		{
			ID:              snowflake.ID(2),
			StripeSessionID: "cs_test_1",
			EventSource:     domain.EventSourceIndex,
			EventType:       domain.EventTypeCheckoutSessionCreated,
			EventStatus:     strPtr("created"),
			HTTPMethod:      strPtr("POST"),
			Payload:         datatypes.JSON(`{"id":"cs_test_1"}`),
			CreatedAt:       now,
		},
		{
			ID:              snowflake.ID(1),
			StripeSessionID: "cs_test_1",
			StripeEventID:   strPtr("evt_1"),
			EventSource:     domain.EventSourceWebhook,
			EventType:       domain.EventTypeCheckoutSessionCompleted,
			EventStatus:     strPtr("paid"),
			Payload:         datatypes.JSON(`{"id":"cs_test_1","payment_status":"paid"}`),
			CreatedAt:       now.Add(time.Minute),
		},
		{
			ID:              snowflake.ID(3),
			StripeSessionID: "cs_other",
			EventSource:     domain.EventSourceResult,
			EventType:       domain.EventTypeCheckoutSessionReturned,
			Payload:         datatypes.JSON(`{}`),
			CreatedAt:       now,
		},
	}
	for _, row := range rows {
		if err := r.InsertEvent(ctx, db, row); err != nil {
			t.Fatalf("insert %d: %v", row.ID, err)
		}
	}

	got, err := r.ListBySession(ctx, db, "cs_test_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].EventSource != domain.EventSourceIndex || got[1].EventSource != domain.EventSourceWebhook {
		t.Fatalf("unexpected order %s, %s", got[0].EventSource, got[1].EventSource)
	}
	if got[0].StripeEventID != nil {
		t.Fatalf("expected null event id for index row")
	}
	if got[1].StripeEventID == nil || *got[1].StripeEventID != "evt_1" {
		t.Fatalf("expected evt_1, got %v", got[1].StripeEventID)
	}
}

func TestInsertDuplicateIDFails(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	r := Provide()

	row := &domain.PaymentEventRow{
		ID:              snowflake.ID(7),
		StripeSessionID: "cs_dup",
		EventSource:     domain.EventSourceIndex,
		EventType:       domain.EventTypeCheckoutSessionCreated,
		Payload:         datatypes.JSON(`{}`),
		CreatedAt:       time.Now().UTC(),
	}
	if err := r.InsertEvent(ctx, db, row); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := r.InsertEvent(ctx, db, row); err == nil {
		t.Fatalf("expected primary key violation")
	}
}
