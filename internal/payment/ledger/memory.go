package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/smallbiznis/paysite/internal/clock"
)

// MemoryLedger is a process-local ledger for tests and single-node development.
type MemoryLedger struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	locks map[string]time.Time
	clock clock.Clock
}

func NewMemoryLedger(clk clock.Clock) *MemoryLedger {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryLedger{
		seen:  map[string]struct{}{},
		locks: map[string]time.Time{},
		clock: clk,
	}
}

func (l *MemoryLedger) Seen(_ context.Context, eventID string) (bool, error) {
	id, err := normalizeID(eventID)
	if err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[id]
	return ok, nil
}

func (l *MemoryLedger) Mark(_ context.Context, eventID string) (bool, error) {
	id, err := normalizeID(eventID)
	if err != nil {
		return false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[id]; ok {
		return false, nil
	}
	l.seen[id] = struct{}{}
	return true, nil
}

func (l *MemoryLedger) TryLock(_ context.Context, eventID string, ttl time.Duration) (func(context.Context) error, bool, error) {
	id, err := normalizeID(eventID)
	if err != nil {
		return nil, false, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if expires, held := l.locks[id]; held && now.Before(expires) {
		return nil, false, nil
	}
	expires := now.Add(ttl)
	l.locks[id] = expires

	release := func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		if current, ok := l.locks[id]; ok && current.Equal(expires) {
			delete(l.locks, id)
		}
		return nil
	}
	return release, true, nil
}

var (
	_ Ledger         = (*MemoryLedger)(nil)
	_ InFlightLocker = (*MemoryLedger)(nil)
	_ Ledger         = (*FileLedger)(nil)
)
