package ledger

import (
	"context"

	"github.com/smallbiznis/paysite/internal/clock"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLLedger stores marks in st_webhook_events, keyed by event id.
type SQLLedger struct {
	db    *gorm.DB
	clock clock.Clock
}

func NewSQLLedger(db *gorm.DB, clk clock.Clock) *SQLLedger {
	if clk == nil {
		clk = clock.New()
	}
	return &SQLLedger{db: db, clock: clk}
}

func (l *SQLLedger) Seen(ctx context.Context, eventID string) (bool, error) {
	id, err := normalizeID(eventID)
	if err != nil {
		return false, err
	}
	var count int64
	err = l.db.WithContext(ctx).
		Model(&domain.ProcessedEvent{}).
		Where("event_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (l *SQLLedger) Mark(ctx context.Context, eventID string) (bool, error) {
	id, err := normalizeID(eventID)
	if err != nil {
		return false, err
	}
	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.ProcessedEvent{EventID: id, ProcessedAt: l.clock.Now()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

var _ Ledger = (*SQLLedger)(nil)
