package domain

import (
	"context"

	"gorm.io/gorm"
)

// Repository persists audit rows. The connection is passed per call so the
// caller controls transactions and request scoping.
type Repository interface {
	InsertEvent(ctx context.Context, db *gorm.DB, row *PaymentEventRow) error
	ListBySession(ctx context.Context, db *gorm.DB, sessionID string) ([]PaymentEventRow, error)
}
