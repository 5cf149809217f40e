package migration

import (
	"github.com/smallbiznis/paysite/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if conn == nil || !cfg.Database.AutoMigrate {
			return nil
		}
		if err := Run(conn, cfg.Database.Type); err != nil {
			// The payment flow must keep working without the audit tables.
			log.Error("database migrations failed", zap.Error(err))
			return nil
		}
		log.Info("database migrations applied", zap.String("type", cfg.Database.Type))
		return nil
	}),
)
