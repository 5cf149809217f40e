package ledger

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrEmptyEventID = errors.New("empty_event_id")

// Ledger remembers which webhook event ids were fully processed.
type Ledger interface {
	// Seen reports whether eventID was already marked.
	Seen(ctx context.Context, eventID string) (bool, error)
	// Mark records eventID. It is an atomic add-if-absent: the returned bool
	// is true only for the first writer.
	Mark(ctx context.Context, eventID string) (bool, error)
}

// InFlightLocker is implemented by backends that can hold a short-lived
// per-event lock while a delivery is being processed.
type InFlightLocker interface {
	TryLock(ctx context.Context, eventID string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

func normalizeID(eventID string) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", ErrEmptyEventID
	}
	return eventID, nil
}
