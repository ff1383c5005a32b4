// Package database opens the SQL store and bootstraps its schema. Postgres
// (lib/pq) is the production driver; SQLite (modernc) serves single-node
// deployments and tests. Queries in the repositories use $N placeholders,
// which both drivers accept.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Open connects and pings the database.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverPostgres:
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// one writer at a time; busy_timeout makes the rest wait instead of failing
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(4)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(25)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Migrate creates every table the modules need.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	stmts := schema(driver)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "_pragma=") {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)"
}

func schema(driver string) []string {
	serial := "BIGSERIAL PRIMARY KEY"
	if driver == DriverSQLite {
		serial = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin      BOOLEAN NOT NULL DEFAULT FALSE,
			created_at    TIMESTAMP NOT NULL,
			updated_at    TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS accounts (
			id             TEXT PRIMARY KEY,
			cookie         TEXT NOT NULL,
			enabled        BOOLEAN NOT NULL DEFAULT TRUE,
			auto_confirm   BOOLEAN NOT NULL DEFAULT FALSE,
			remark         TEXT NOT NULL DEFAULT '',
			pause_duration INTEGER NOT NULL DEFAULT 0,
			created_at     TIMESTAMP NOT NULL,
			updated_at     TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS ai_settings (
			account_id           TEXT PRIMARY KEY REFERENCES accounts(id) ON DELETE CASCADE,
			enabled              BOOLEAN NOT NULL DEFAULT FALSE,
			max_discount_percent INTEGER NOT NULL DEFAULT 0,
			max_discount_amount  TEXT NOT NULL DEFAULT '0',
			max_bargain_rounds   INTEGER NOT NULL DEFAULT 0,
			custom_prompts       TEXT NOT NULL DEFAULT '',
			updated_at           TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			order_id         TEXT PRIMARY KEY,
			account_id       TEXT NOT NULL,
			item_id          TEXT NOT NULL DEFAULT '',
			item_title       TEXT NOT NULL DEFAULT '',
			buyer_id         TEXT NOT NULL DEFAULT '',
			spec_name        TEXT NOT NULL DEFAULT '',
			spec_value       TEXT NOT NULL DEFAULT '',
			quantity         INTEGER NOT NULL DEFAULT 1,
			amount           TEXT NOT NULL DEFAULT '0',
			status           TEXT NOT NULL,
			system_shipped   BOOLEAN NOT NULL DEFAULT FALSE,
			is_bargain       BOOLEAN NOT NULL DEFAULT FALSE,
			receiver_name    TEXT NOT NULL DEFAULT '',
			receiver_phone   TEXT NOT NULL DEFAULT '',
			receiver_address TEXT NOT NULL DEFAULT '',
			created_at       TIMESTAMP NOT NULL,
			updated_at       TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_account_created ON orders (account_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders (status)`,
		`CREATE TABLE IF NOT EXISTS cards (
			id            ` + serial + `,
			name          TEXT NOT NULL,
			type          TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			enabled       BOOLEAN NOT NULL DEFAULT TRUE,
			item_id       TEXT NOT NULL DEFAULT '',
			text_content  TEXT NOT NULL DEFAULT '',
			api_config    TEXT NOT NULL DEFAULT '',
			image_url     TEXT NOT NULL DEFAULT '',
			delay_seconds INTEGER NOT NULL DEFAULT 0,
			is_multi_spec BOOLEAN NOT NULL DEFAULT FALSE,
			spec_name     TEXT NOT NULL DEFAULT '',
			spec_value    TEXT NOT NULL DEFAULT '',
			created_at    TIMESTAMP NOT NULL,
			updated_at    TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS card_stock_lines (
			id         ` + serial + `,
			card_id    BIGINT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
			line_no    INTEGER NOT NULL,
			content    TEXT NOT NULL,
			order_id   TEXT,
			claimed_at TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_card_free ON card_stock_lines (card_id, order_id, line_no)`,
		`CREATE TABLE IF NOT EXISTS shipments (
			id         TEXT PRIMARY KEY,
			order_id   TEXT NOT NULL,
			mode       TEXT NOT NULL,
			card_id    BIGINT,
			status     TEXT NOT NULL,
			message    TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_shipments_order ON shipments (order_id, created_at)`,
	}
}
