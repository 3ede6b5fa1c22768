package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

const maxConnectInterval = 10 * time.Second

// OpenDB opens and pings the database selected by DB_DRIVER. The ping is
// retried with exponential backoff up to DBConnectAttempts times so the
// service can start before its database.
func OpenDB(ctx context.Context, cfg Config) (*sql.DB, error) {
	db, err := sql.Open(cfg.DBDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.DBDriver == "sqlite" {
		// one writer; also keeps ":memory:" databases on a single connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	if err := pingWithRetry(ctx, db, cfg.DBConnectAttempts); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func pingWithRetry(ctx context.Context, db *sql.DB, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = maxConnectInterval

	var err error
	for i := 0; i < attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		sleep := bo.NextBackOff()
		if sleep == backoff.Stop {
			sleep = maxConnectInterval
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-time.After(sleep):
		}
	}
	return err
}

// Statements are idempotent and shared by both drivers.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS baskets (
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS basket_items (
		id VARCHAR(36) PRIMARY KEY,
		basket_id VARCHAR(36) NOT NULL REFERENCES baskets(id),
		user_id VARCHAR(255) NOT NULL,
		name VARCHAR(255) NOT NULL,
		qty DOUBLE PRECISION,
		price DOUBLE PRECISION,
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_baskets_user_id ON baskets(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_basket_items_basket_id ON basket_items(basket_id)`,
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
