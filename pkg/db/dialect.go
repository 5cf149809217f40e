package db

import (
	"fmt"
	"net"

	"github.com/smallbiznis/paysite/internal/config"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Dialect builds the gorm dialector for a resolved database config.
func Dialect(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Type {
	case "mysql", "mariadb", "":
		return mysql.New(mysql.Config{
			DSN:                      mysqlDSN(cfg),
			DefaultStringSize:        255,
			DisableDatetimePrecision: true,
			DontSupportRenameIndex:   true,
		}), nil
	case "postgres":
		return postgres.Open(fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.Host,
			cfg.User,
			cfg.Password,
			cfg.Name,
			cfg.Port,
		)), nil
	case "sqlite":
		return sqlite.Open(cfg.Name), nil
	default:
		return nil, fmt.Errorf("unsupported %s type", cfg.Type)
	}
}

// mysqlDSN supports unix sockets ("localhost:/var/run/mysqld/mysqld.sock" in
// WordPress configs leaves a path in Port) as well as TCP.
func mysqlDSN(cfg config.DatabaseConfig) string {
	charset := cfg.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	address := fmt.Sprintf("tcp(%s)", net.JoinHostPort(cfg.Host, cfg.Port))
	if len(cfg.Port) > 0 && cfg.Port[0] == '/' {
		address = fmt.Sprintf("unix(%s)", cfg.Port)
	}
	return fmt.Sprintf("%s:%s@%s/%s?charset=%s&parseTime=True&loc=UTC",
		cfg.User,
		cfg.Password,
		address,
		cfg.Name,
		charset,
	)
}
