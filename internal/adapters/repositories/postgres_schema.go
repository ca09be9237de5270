package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InitSchema creates the Postgres tables used by the order, batch, confirmation
// and route cache adapters.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	createOrdersQuery := `
	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		order_number TEXT NOT NULL,
		status TEXT NOT NULL,
		shipping_method TEXT NOT NULL DEFAULT 'standard',
		destination JSONB NOT NULL,
		items JSONB NOT NULL,
		total_value NUMERIC(12, 2) NOT NULL,
		customer JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		special_instructions TEXT NOT NULL DEFAULT '',
		priority BOOLEAN NOT NULL DEFAULT FALSE
	);
	`

	createBatchesQuery := `
	CREATE TABLE IF NOT EXISTS delivery_batches (
		id TEXT PRIMARY KEY,
		delivery_day TEXT NOT NULL,
		delivery_date DATE NOT NULL,
		status TEXT NOT NULL,
		driver JSONB,
		route JSONB,
		history JSONB NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		archived_at TIMESTAMPTZ
	);
	`

	// order_id is the primary key: a stop belongs to exactly one batch.
	createStopsQuery := `
	CREATE TABLE IF NOT EXISTS batch_stops (
		order_id TEXT PRIMARY KEY,
		batch_id TEXT NOT NULL REFERENCES delivery_batches(id) ON DELETE CASCADE,
		stop_number INTEGER NOT NULL,
		payload JSONB NOT NULL,
		UNIQUE (batch_id, stop_number) DEFERRABLE INITIALLY DEFERRED
	);
	`

	createConfirmationsQuery := `
	CREATE TABLE IF NOT EXISTS delivery_confirmations (
		stop_id TEXT PRIMARY KEY,
		id TEXT NOT NULL,
		batch_id TEXT NOT NULL,
		delivered_at TIMESTAMPTZ NOT NULL,
		photo_ref TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT ''
	);
	`

	createDistanceCacheQuery := `
	CREATE TABLE IF NOT EXISTS distance_cache (
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		distance_miles DOUBLE PRECISION NOT NULL,
		duration_seconds INTEGER NOT NULL,
		PRIMARY KEY (origin, destination)
	);
	`

	createGeocodeCacheQuery := `
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL
	);
	`

	statements := []string{
		createOrdersQuery,
		createBatchesQuery,
		createStopsQuery,
		createConfirmationsQuery,
		createDistanceCacheQuery,
		createGeocodeCacheQuery,
		`CREATE INDEX IF NOT EXISTS idx_delivery_batches_day ON delivery_batches(delivery_day, delivery_date);`,
		`CREATE INDEX IF NOT EXISTS idx_batch_stops_batch ON batch_stops(batch_id, stop_number);`,
		`CREATE INDEX IF NOT EXISTS idx_distance_cache_destination_origin ON distance_cache(destination, origin);`,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}
