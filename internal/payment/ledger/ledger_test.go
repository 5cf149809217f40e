package ledger

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paysite/internal/clock"
	"github.com/smallbiznis/paysite/internal/config"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.ProcessedEvent{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// newTestRedis skips when no redis is reachable, like the job queue tests do.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "127.0.0.1:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 13})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		t.Skipf("Skipping Redis-dependent test: %v", err)
	}
	t.Cleanup(func() {
		_ = client.FlushDB(context.Background()).Err()
		_ = client.Close()
	})
	return client
}

func ledgers(t *testing.T) map[string]Ledger {
	return map[string]Ledger{
		"file":   NewFileLedger(filepath.Join(t.TempDir(), "logs", "webhook_ids.log")),
		"memory": NewMemoryLedger(nil),
		"sql":    NewSQLLedger(setupTestDB(t), nil),
	}
}

func TestLedgerSeenAndMark(t *testing.T) {
	ctx := context.Background()
	for name, l := range ledgers(t) {
		t.Run(name, func(t *testing.T) {
			seen, err := l.Seen(ctx, "evt_1")
			if err != nil || seen {
				t.Fatalf("expected unseen event, got %v %v", seen, err)
			}

			first, err := l.Mark(ctx, "evt_1")
			if err != nil || !first {
				t.Fatalf("expected first mark to win, got %v %v", first, err)
			}
			second, err := l.Mark(ctx, "evt_1")
			if err != nil || second {
				t.Fatalf("expected second mark to lose, got %v %v", second, err)
			}

			seen, err = l.Seen(ctx, "evt_1")
			if err != nil || !seen {
				t.Fatalf("expected seen event, got %v %v", seen, err)
			}
			seen, _ = l.Seen(ctx, "evt_2")
			if seen {
				t.Fatalf("evt_2 must not be seen")
			}

			if _, err := l.Mark(ctx, "  "); err != ErrEmptyEventID {
				t.Fatalf("expected ErrEmptyEventID, got %v", err)
			}
		})
	}
}

func TestLedgerConcurrentMarksHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	for name, l := range ledgers(t) {
		if name == "sql" {
			// sqlite shared-cache memory databases serialize writers with SQLITE_LOCKED errors.
			continue
		}
		t.Run(name, func(t *testing.T) {
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				winners int
			)
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					ok, err := l.Mark(ctx, "evt_race")
					if err != nil {
						t.Errorf("mark: %v", err)
						return
					}
					if ok {
						mu.Lock()
						winners++
						mu.Unlock()
					}
				}()
			}
			wg.Wait()
			if winners != 1 {
				t.Fatalf("expected exactly one winner, got %d", winners)
			}
		})
	}
}

// Each worker gets its own FileLedger, so only the file lock orders them.
func TestFileLedgersSharingPathHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "webhook_ids.log")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := NewFileLedger(path).Mark(ctx, "evt_shared")
			if err != nil {
				t.Errorf("mark: %v", err)
				return
			}
			if ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if winners != 1 {
		t.Fatalf("expected exactly one winner, got %d", winners)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if got := strings.TrimSpace(string(raw)); got != "evt_shared" {
		t.Fatalf("unexpected ledger contents %q", got)
	}
}

func TestFileLedgerFormatIsOneIDPerLine(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "webhook_ids.log")
	if err := os.WriteFile(path, []byte("evt_legacy\n"), 0o640); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	l := NewFileLedger(path)

	if seen, _ := l.Seen(ctx, "evt_legacy"); !seen {
		t.Fatalf("expected ids written by earlier deployments to be honoured")
	}
	for _, id := range []string{"evt_a", "evt_b", "evt_a"} {
		if _, err := l.Mark(ctx, id); err != nil {
			t.Fatalf("mark %s: %v", id, err)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if got := strings.Split(strings.TrimSpace(string(raw)), "\n"); strings.Join(got, ",") != "evt_legacy,evt_a,evt_b" {
		t.Fatalf("unexpected ledger contents %q", got)
	}

	if _, err := l.Mark(ctx, "evt\nforged"); err == nil {
		t.Fatalf("expected ids with line breaks to be refused")
	}
}

func TestMemoryLedgerInFlightLock(t *testing.T) {
	ctx := context.Background()
	fake := clock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	l := NewMemoryLedger(fake)

	release, ok, err := l.TryLock(ctx, "evt_1", 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected lock, got %v %v", ok, err)
	}
	if _, ok, _ := l.TryLock(ctx, "evt_1", 30*time.Second); ok {
		t.Fatalf("expected second lock to fail while held")
	}
	if _, ok, _ := l.TryLock(ctx, "evt_2", 30*time.Second); !ok {
		t.Fatalf("locks must be per event")
	}

	fake.Advance(31 * time.Second)
	releaseLater, ok, _ := l.TryLock(ctx, "evt_1", 30*time.Second)
	if !ok {
		t.Fatalf("expected expired lock to be reacquired")
	}
	// The stale holder must not drop the new holder's lock.
	_ = release(ctx)
	if _, ok, _ := l.TryLock(ctx, "evt_1", 30*time.Second); ok {
		t.Fatalf("stale release removed a live lock")
	}
	_ = releaseLater(ctx)
	if _, ok, _ := l.TryLock(ctx, "evt_1", 30*time.Second); !ok {
		t.Fatalf("expected lock after release")
	}
}

func TestRedisLedger(t *testing.T) {
	ctx := context.Background()
	l := NewRedisLedger(newTestRedis(t), time.Hour)

	if first, err := l.Mark(ctx, "evt_r1"); err != nil || !first {
		t.Fatalf("expected first mark, got %v %v", first, err)
	}
	if again, _ := l.Mark(ctx, "evt_r1"); again {
		t.Fatalf("expected duplicate mark to lose")
	}
	if seen, _ := l.Seen(ctx, "evt_r1"); !seen {
		t.Fatalf("expected evt_r1 to be seen")
	}

	release, ok, err := l.TryLock(ctx, "evt_r1", 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("expected lock, got %v %v", ok, err)
	}
	if _, ok, _ := l.TryLock(ctx, "evt_r1", 5*time.Second); ok {
		t.Fatalf("expected lock to be exclusive")
	}
	if err := release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok, _ := l.TryLock(ctx, "evt_r1", 5*time.Second); !ok {
		t.Fatalf("expected lock after release")
	}
}

func TestNewSelectsBackend(t *testing.T) {
	base := config.Config{Ledger: config.LedgerConfig{FilePath: filepath.Join(t.TempDir(), "ids.log")}}

	cases := []struct {
		backend string
		db      *gorm.DB
		want    string
	}{
		{backend: config.LedgerBackendFile, want: config.LedgerBackendFile},
		{backend: config.LedgerBackendMemory, want: config.LedgerBackendMemory},
		{backend: config.LedgerBackendSQL, want: config.LedgerBackendFile},
		{backend: config.LedgerBackendSQL, db: setupTestDB(t), want: config.LedgerBackendSQL},
	}
	for _, tc := range cases {
		cfg := base
		cfg.Ledger.Backend = tc.backend
		selected, err := New(Params{Cfg: cfg, DB: tc.db, Clock: clock.New(), Log: zap.NewNop()})
		if err != nil {
			t.Fatalf("%s: %v", tc.backend, err)
		}
		if selected.Backend != tc.want {
			t.Fatalf("%s: expected backend %s, got %s", tc.backend, tc.want, selected.Backend)
		}
	}

	cfg := base
	cfg.Ledger.Backend = config.LedgerBackendRedis
	if _, err := New(Params{Cfg: cfg, Clock: clock.New(), Log: zap.NewNop()}); err == nil {
		t.Fatalf("expected redis backend without addr to fail")
	}
}
