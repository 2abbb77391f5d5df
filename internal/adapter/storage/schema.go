package storage

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		account_uuid CHAR(36) NOT NULL UNIQUE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		booking_id CHAR(36) PRIMARY KEY,
		account_id BIGINT NOT NULL,
		resource_id VARCHAR(64) NOT NULL,
		resource_display_name VARCHAR(255) NOT NULL,
		created_by VARCHAR(64) NOT NULL,
		created_at DATETIME(6) NOT NULL,
		INDEX idx_bookings_account_created (account_id, created_at)
	)`,
}

// Migrate creates the ledger and account tables when they are missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
