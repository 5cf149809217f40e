package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/paysite/internal/clock"
	"github.com/smallbiznis/paysite/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle `optional:"true"`
	Cfg       config.Config
	DB        *gorm.DB `optional:"true"`
	Clock     clock.Clock
	Log       *zap.Logger
}

// Selected is the active ledger plus its backend name for logs and metrics.
type Selected struct {
	Ledger  Ledger
	Backend string
}

// New builds the ledger selected by LEDGER_BACKEND. The sql backend falls
// back to the file ledger when no database is available.
func New(p Params) (Selected, error) {
	log := p.Log.Named("payment.ledger")
	cfg := p.Cfg.Ledger

	switch cfg.Backend {
	case config.LedgerBackendMemory:
		return Selected{Ledger: NewMemoryLedger(p.Clock), Backend: cfg.Backend}, nil

	case config.LedgerBackendSQL:
		if p.DB == nil {
			log.Warn("sql ledger requested without a database, using file ledger", zap.String("path", cfg.FilePath))
			return Selected{Ledger: NewFileLedger(cfg.FilePath), Backend: config.LedgerBackendFile}, nil
		}
		return Selected{Ledger: NewSQLLedger(p.DB, p.Clock), Backend: cfg.Backend}, nil

	case config.LedgerBackendRedis:
		addr := strings.TrimSpace(p.Cfg.Redis.Addr)
		if addr == "" {
			return Selected{}, errors.New("ledger redis addr is required")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: strings.TrimSpace(p.Cfg.Redis.Password),
			DB:       p.Cfg.Redis.DB,
		})
		if p.Lifecycle != nil {
			p.Lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error {
					if err := client.Ping(ctx).Err(); err != nil {
						// Seen fails open, so an unreachable redis only weakens dedup.
						log.Warn("ledger redis not reachable", zap.String("addr", addr), zap.Error(err))
					}
					return nil
				},
				OnStop: func(context.Context) error { return client.Close() },
			})
		}
		return Selected{Ledger: NewRedisLedger(client, cfg.RedisTTL), Backend: cfg.Backend}, nil

	case config.LedgerBackendFile, "":
		log.Info("file ledger selected", zap.String("path", cfg.FilePath))
		return Selected{Ledger: NewFileLedger(cfg.FilePath), Backend: config.LedgerBackendFile}, nil

	default:
		return Selected{}, fmt.Errorf("%w: %s", config.ErrUnknownLedgerBackend, cfg.Backend)
	}
}

var Module = fx.Module("payment.ledger", fx.Provide(New))
