package repository

import (
	"context"

	"github.com/smallbiznis/paysite/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) InsertEvent(ctx context.Context, db *gorm.DB, row *domain.PaymentEventRow) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO st_payment_events (
			id, stripe_session_id, stripe_event_id, event_source, event_type,
			event_status, http_method, request_ip, user_agent, payload, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.ID,
		row.StripeSessionID,
		row.StripeEventID,
		row.EventSource,
		row.EventType,
		row.EventStatus,
		row.HTTPMethod,
		row.RequestIP,
		row.UserAgent,
		row.Payload,
		row.CreatedAt,
	).Error
}

func (r *repo) ListBySession(ctx context.Context, db *gorm.DB, sessionID string) ([]domain.PaymentEventRow, error) {
	var rows []domain.PaymentEventRow
	err := db.WithContext(ctx).Raw(
		`SELECT id, stripe_session_id, stripe_event_id, event_source, event_type,
			event_status, http_method, request_ip, user_agent, payload, created_at
		 FROM st_payment_events
		 WHERE stripe_session_id = ?
		 ORDER BY created_at ASC, id ASC`,
		sessionID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
