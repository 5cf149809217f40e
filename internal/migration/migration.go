package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/smallbiznis/paysite/internal/payment/domain"
	"gorm.io/gorm"
)

//go:embed sql/mysql/*.sql sql/postgres/*.sql
var embeddedMigrations embed.FS

// The state table is prefixed like the service tables so it never collides
// with the host CMS schema.
const migrationsTable = "st_schema_migrations"

// Run creates the audit and ledger tables. MySQL and Postgres use the
// embedded SQL files; SQLite (tests, local runs) falls back to AutoMigrate.
func Run(conn *gorm.DB, dialect string) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if dialect == "sqlite" {
		return conn.AutoMigrate(&domain.PaymentEventRow{}, &domain.ProcessedEvent{})
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return runSQL(sqlDB, dialect)
}

func runSQL(db *sql.DB, dialect string) error {
	sub, err := fs.Sub(embeddedMigrations, "sql/"+dialect)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	var driver database.Driver
	switch dialect {
	case "mysql", "mariadb", "":
		dialect = "mysql"
		driver, err = mysql.WithInstance(db, &mysql.Config{MigrationsTable: migrationsTable})
	case "postgres":
		driver, err = postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	default:
		return fmt.Errorf("migrations not available for %s", dialect)
	}
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, dialect, driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
