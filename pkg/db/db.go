package db

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/paysite/internal/audit/masking"
	"github.com/smallbiznis/paysite/internal/config"
	"github.com/smallbiznis/paysite/internal/observability/logger"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormprometheus "gorm.io/plugin/prometheus"
)

var ErrDisabled = errors.New("database_disabled")

// Open connects to the configured database, installs tracing and pool
// metrics, and verifies the connection with a ping.
func Open(ctx context.Context, cfg config.DatabaseConfig, debug bool, log *zap.Logger) (*gorm.DB, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	dialector, err := Dialect(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 logger.NewGormLogger(log, logger.DefaultGormLoggerConfig(debug)),
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	if err := conn.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.Name), otelgorm.WithoutQueryVariables())); err != nil {
		return nil, err
	}
	if cfg.Type != "sqlite" {
		if err := conn.Use(gormprometheus.New(gormprometheus.Config{
			DBName:          cfg.Name,
			RefreshInterval: 30,
			StartServer:     false,
		})); err != nil {
			return nil, err
		}
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, err
	}
	if cfg.MaxIdleConn > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConn)
	}
	if cfg.MaxOpenConn > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConn)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return conn, nil
}

// New provides the shared *gorm.DB. It returns nil when no database is
// configured or reachable; every consumer treats nil as "storage disabled".
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *gorm.DB {
	log = log.Named("db")
	dbCfg := cfg.Database

	if !dbCfg.Enabled {
		log.Info("database disabled",
			zap.String("source", dbCfg.Source),
			zap.String("reason", dbCfg.Reason),
			zap.Strings("missing", dbCfg.Missing),
		)
		return nil
	}

	conn, err := Open(context.Background(), dbCfg, cfg.Debug > 0, log)
	if err != nil {
		log.Warn("database unavailable, audit storage disabled",
			zap.String("source", dbCfg.Source),
			zap.String("type", dbCfg.Type),
			zap.String("host", dbCfg.Host),
			zap.String("name", dbCfg.Name),
			zap.String("password", masking.MaskSecret(dbCfg.Password)),
			zap.Error(err),
		)
		return nil
	}
	log.Info("database connected",
		zap.String("source", dbCfg.Source),
		zap.String("type", dbCfg.Type),
		zap.String("host", dbCfg.Host),
		zap.String("name", dbCfg.Name),
	)

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})
	return conn
}

var Module = fx.Module("db", fx.Provide(New))
