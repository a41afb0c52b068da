package repository

import (
	"context"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS snapshots (
    ticker      TEXT PRIMARY KEY,
    sector      TEXT NOT NULL DEFAULT '',
    industry    TEXT NOT NULL DEFAULT '',
    payload     JSONB NOT NULL,
    fetched_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`,
	`CREATE TABLE IF NOT EXISTS price_bars (
    ticker  TEXT NOT NULL,
    date    DATE NOT NULL,
    open    DOUBLE PRECISION NOT NULL,
    high    DOUBLE PRECISION NOT NULL,
    low     DOUBLE PRECISION NOT NULL,
    close   DOUBLE PRECISION NOT NULL,
    volume  DOUBLE PRECISION NOT NULL,
    PRIMARY KEY (ticker, date)
)`,
	`CREATE TABLE IF NOT EXISTS analyses (
    ticker       TEXT PRIMARY KEY,
    sector       TEXT NOT NULL DEFAULT '',
    action       TEXT NOT NULL,
    confidence   TEXT NOT NULL,
    conviction   SMALLINT NOT NULL,
    upside_pct   DOUBLE PRECISION,
    payload      JSONB NOT NULL,
    analyzed_at  TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_action ON analyses (action, conviction DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_analyses_analyzed_at ON analyses (analyzed_at)`,
	`CREATE TABLE IF NOT EXISTS analysis_failures (
    id         BIGSERIAL PRIMARY KEY,
    ticker     TEXT NOT NULL,
    error      TEXT NOT NULL,
    failed_at  TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_failures_failed_at ON analysis_failures (failed_at DESC)`,
}

// RunMigrations creates every table the screener uses. Statements are
// idempotent.
func RunMigrations(ctx context.Context, pool PgxPool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
