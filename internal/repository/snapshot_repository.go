package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"equity-screener/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

// SnapshotRepository stores the latest fundamentals per ticker as a JSONB
// document.
type SnapshotRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewSnapshotRepository(pool PgxPool, tracer trace.Tracer) *SnapshotRepository {
	return &SnapshotRepository{pool: pool, tracer: tracer}
}

func (r *SnapshotRepository) UpsertSnapshots(ctx context.Context, snapshots []domain.FinancialSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "snapshot-repo.upsert-snapshots")
	defer span.End()

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		s.Ticker = domain.NormalizeTicker(s.Ticker)
		payload, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode snapshot %s: %w", s.Ticker, err)
		}
		batch.Queue(
			`INSERT INTO snapshots (ticker, sector, industry, payload, fetched_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (ticker) DO UPDATE SET
			     sector = EXCLUDED.sector,
			     industry = EXCLUDED.industry,
			     payload = EXCLUDED.payload,
			     fetched_at = EXCLUDED.fetched_at`,
			s.Ticker, s.Sector, s.Industry, payload, s.FetchedAt.UTC(),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListSnapshots returns the stored snapshots for tickers, or every stored
// snapshot when tickers is empty. Results are ordered by ticker.
func (r *SnapshotRepository) ListSnapshots(ctx context.Context, tickers []string) ([]domain.FinancialSnapshot, error) {
	_, span := r.tracer.Start(ctx, "snapshot-repo.list-snapshots")
	defer span.End()

	query := `SELECT payload FROM snapshots ORDER BY ticker`
	var args []any
	if len(tickers) > 0 {
		normalized := make([]string, 0, len(tickers))
		for _, t := range tickers {
			normalized = append(normalized, domain.NormalizeTicker(t))
		}
		query = `SELECT payload FROM snapshots WHERE ticker = ANY($1) ORDER BY ticker`
		args = append(args, normalized)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FinancialSnapshot
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var s domain.FinancialSnapshot
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, fmt.Errorf("decode snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
