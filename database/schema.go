package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements bootstrap the two tables the engine owns. The legacy
// orders table read by the backfill source belongs to the marketplace and
// is not created here.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS sales_events (
		order_id       TEXT PRIMARY KEY,
		artisan_id     TEXT NOT NULL,
		product_id     TEXT NOT NULL,
		category       TEXT NOT NULL DEFAULT '',
		buyer_id       TEXT NOT NULL DEFAULT '',
		quantity       INTEGER NOT NULL,
		unit_price     NUMERIC(20,4) NOT NULL,
		discount       NUMERIC(20,4) NOT NULL DEFAULT 0,
		tax            NUMERIC(20,4) NOT NULL DEFAULT 0,
		shipping_cost  NUMERIC(20,4) NOT NULL DEFAULT 0,
		total_amount   NUMERIC(20,4) NOT NULL,
		net_amount     NUMERIC(20,4) NOT NULL,
		payment_status TEXT NOT NULL,
		order_status   TEXT NOT NULL DEFAULT '',
		event_time     TIMESTAMPTZ NOT NULL,
		region         TEXT NOT NULL DEFAULT '',
		currency       TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_events_time ON sales_events (event_time)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_events_artisan ON sales_events (artisan_id, event_time)`,
	`CREATE INDEX IF NOT EXISTS idx_sales_events_product ON sales_events (product_id, event_time)`,
	`CREATE TABLE IF NOT EXISTS backfill_jobs (
		job_id          TEXT PRIMARY KEY,
		start_date      TIMESTAMPTZ NOT NULL,
		end_date        TIMESTAMPTZ NOT NULL,
		chunk_size      INTEGER NOT NULL,
		cursor_order_id TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL,
		processed_count INTEGER NOT NULL DEFAULT 0,
		error_count     INTEGER NOT NULL DEFAULT 0,
		dry_run         BOOLEAN NOT NULL DEFAULT FALSE,
		last_error      TEXT NOT NULL DEFAULT '',
		created_at      TIMESTAMPTZ NOT NULL,
		updated_at      TIMESTAMPTZ NOT NULL,
		completed_at    TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_backfill_jobs_status ON backfill_jobs (status, created_at)`,
}

// EnsureSchema creates the engine's tables if they do not exist yet.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
