package infra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS generation_jobs (
    id                   UUID PRIMARY KEY,
    user_id              TEXT NOT NULL,
    type                 TEXT NOT NULL,
    status               TEXT NOT NULL DEFAULT 'pending',
    webhook_status       TEXT NOT NULL DEFAULT 'pending',
    request_id           TEXT NOT NULL DEFAULT '',
    prompt               TEXT NOT NULL,
    image_url            TEXT NOT NULL DEFAULT '',
    duration_seconds     INT NOT NULL DEFAULT 0,
    result_url           TEXT NOT NULL DEFAULT '',
    error_message        TEXT NOT NULL DEFAULT '',
    created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    webhook_delivered_at TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_generation_jobs_user_created
    ON generation_jobs (user_id, created_at DESC);

CREATE INDEX IF NOT EXISTS idx_generation_jobs_stale
    ON generation_jobs (created_at)
    WHERE webhook_status = 'pending';

CREATE TABLE IF NOT EXISTS effects (
    id            TEXT PRIMARY KEY,
    name          TEXT NOT NULL,
    category      TEXT NOT NULL DEFAULT '',
    prompt        TEXT NOT NULL,
    display_order INT NOT NULL DEFAULT 0
);
`

// EnsureSchema applies the idempotent schema bootstrap through database/sql.
// Separate from the pgx pool on purpose: bootstrap runs once at startup and
// must not hold pool connections while DDL executes.
func EnsureSchema(ctx context.Context, databaseURL string) error {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
