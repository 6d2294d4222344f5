package store

import (
	"context"
	"fmt"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id BIGSERIAL PRIMARY KEY,
		sku VARCHAR(100),
		name VARCHAR(255) NOT NULL,
		price BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id BIGSERIAL PRIMARY KEY,
		order_number VARCHAR(50) NOT NULL DEFAULT '',
		billing_email VARCHAR(100) NOT NULL DEFAULT '',
		billing_first_name VARCHAR(100) NOT NULL DEFAULT '',
		billing_last_name VARCHAR(100) NOT NULL DEFAULT '',
		status VARCHAR(30) NOT NULL,
		synced BOOLEAN NOT NULL DEFAULT FALSE,
		synced_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id BIGSERIAL PRIMARY KEY,
		order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id BIGINT,
		quantity INTEGER NOT NULL DEFAULT 1,
		unit_total BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
	`CREATE TABLE IF NOT EXISTS sync_logs (
		id BIGSERIAL PRIMARY KEY,
		attempt_id VARCHAR(36) NOT NULL UNIQUE,
		order_id BIGINT NOT NULL,
		order_number VARCHAR(50) NOT NULL DEFAULT '',
		customer_email VARCHAR(100) NOT NULL DEFAULT '',
		customer_name VARCHAR(255) NOT NULL DEFAULT '',
		products_data TEXT NOT NULL,
		sync_status VARCHAR(20) NOT NULL,
		response_code INTEGER,
		response_message TEXT NOT NULL DEFAULT '',
		response_data TEXT NOT NULL DEFAULT '',
		sync_time TIMESTAMPTZ NOT NULL,
		execution_time DOUBLE PRECISION NOT NULL DEFAULT 0,
		retry_count INTEGER NOT NULL DEFAULT 0,
		trigger_source VARCHAR(20) NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_logs_order_id ON sync_logs(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_logs_sync_status ON sync_logs(sync_status)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_logs_sync_time ON sync_logs(sync_time)`,
	`CREATE TABLE IF NOT EXISTS sync_settings (
		name VARCHAR(64) PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sku TEXT,
		name TEXT NOT NULL,
		price INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_number TEXT NOT NULL DEFAULT '',
		billing_email TEXT NOT NULL DEFAULT '',
		billing_first_name TEXT NOT NULL DEFAULT '',
		billing_last_name TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		synced BOOLEAN NOT NULL DEFAULT 0,
		synced_at TIMESTAMP,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id INTEGER NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		product_id INTEGER,
		quantity INTEGER NOT NULL DEFAULT 1,
		unit_total INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_order_items_order_id ON order_items(order_id)`,
	`CREATE TABLE IF NOT EXISTS sync_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attempt_id TEXT NOT NULL UNIQUE,
		order_id INTEGER NOT NULL,
		order_number TEXT NOT NULL DEFAULT '',
		customer_email TEXT NOT NULL DEFAULT '',
		customer_name TEXT NOT NULL DEFAULT '',
		products_data TEXT NOT NULL,
		sync_status TEXT NOT NULL,
		response_code INTEGER,
		response_message TEXT NOT NULL DEFAULT '',
		response_data TEXT NOT NULL DEFAULT '',
		sync_time TIMESTAMP NOT NULL,
		execution_time REAL NOT NULL DEFAULT 0,
		retry_count INTEGER NOT NULL DEFAULT 0,
		trigger_source TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_logs_order_id ON sync_logs(order_id)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_logs_sync_status ON sync_logs(sync_status)`,
	`CREATE INDEX IF NOT EXISTS idx_sync_logs_sync_time ON sync_logs(sync_time)`,
	`CREATE TABLE IF NOT EXISTS sync_settings (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
}

// migrate applies the schema for the driver. Statements are idempotent.
func (s *Store) migrate(ctx context.Context, driver string) error {
	stmts := postgresSchema
	if driver == "sqlite" {
		stmts = sqliteSchema
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}
