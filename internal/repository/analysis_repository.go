package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"equity-screener/internal/domain"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type AnalysisRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewAnalysisRepository(pool PgxPool, tracer trace.Tracer) *AnalysisRepository {
	return &AnalysisRepository{pool: pool, tracer: tracer}
}

// SaveRun upserts the latest record per ticker and appends the run's
// failures in a single round trip. A record that cannot be encoded is stored
// as a failure for its ticker so the rest of the run still lands.
func (r *AnalysisRepository) SaveRun(ctx context.Context, records []domain.AnalysisRecord, failures []domain.BatchFailure) error {
	if len(records) == 0 && len(failures) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "analysis-repo.save-run")
	defer span.End()

	failures = slices.Clip(failures)
	batch := &pgx.Batch{}
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			log.Printf("analysis %s not stored: %v", rec.Ticker, err)
			failures = append(failures, domain.BatchFailure{
				Ticker:   rec.Ticker,
				Error:    fmt.Sprintf("encode analysis: %v", err),
				FailedAt: rec.AnalyzedAt,
			})
			continue
		}
		batch.Queue(
			`INSERT INTO analyses (ticker, sector, action, confidence, conviction, upside_pct, payload, analyzed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (ticker) DO UPDATE SET
			     sector = EXCLUDED.sector,
			     action = EXCLUDED.action,
			     confidence = EXCLUDED.confidence,
			     conviction = EXCLUDED.conviction,
			     upside_pct = EXCLUDED.upside_pct,
			     payload = EXCLUDED.payload,
			     analyzed_at = EXCLUDED.analyzed_at`,
			rec.Ticker,
			rec.Sector,
			string(rec.Signal.Action),
			string(rec.Valuation.Confidence),
			int16(rec.Signal.Conviction),
			rec.Valuation.UpsidePct,
			payload,
			rec.AnalyzedAt.UTC(),
		)
	}
	for _, f := range failures {
		batch.Queue(
			`INSERT INTO analysis_failures (ticker, error, failed_at) VALUES ($1, $2, $3)`,
			f.Ticker, f.Error, f.FailedAt.UTC(),
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (r *AnalysisRepository) ListRecords(ctx context.Context, filter domain.AnalysisFilter) ([]domain.AnalysisRecord, error) {
	_, span := r.tracer.Start(ctx, "analysis-repo.list-records")
	defer span.End()

	args := make([]any, 0, 6)
	var sb strings.Builder
	sb.WriteString(`SELECT payload FROM analyses WHERE 1=1`)

	if filter.Ticker != "" {
		args = append(args, domain.NormalizeTicker(filter.Ticker))
		sb.WriteString(fmt.Sprintf(" AND ticker = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		sb.WriteString(fmt.Sprintf(" AND action = $%d", len(args)))
	}
	if filter.Confidence != "" {
		args = append(args, string(filter.Confidence))
		sb.WriteString(fmt.Sprintf(" AND confidence = $%d", len(args)))
	}
	if filter.Sector != "" {
		args = append(args, filter.Sector)
		sb.WriteString(fmt.Sprintf(" AND sector = $%d", len(args)))
	}
	if filter.MinConviction > 0 {
		args = append(args, int16(filter.MinConviction))
		sb.WriteString(fmt.Sprintf(" AND conviction >= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	args = append(args, limit)
	sb.WriteString(fmt.Sprintf(" ORDER BY conviction DESC, upside_pct DESC NULLS LAST, ticker LIMIT $%d", len(args)))

	rows, err := r.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.AnalysisRecord, 0, limit)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec domain.AnalysisRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("decode analysis: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// GetRecord returns nil without error when ticker has never been analyzed.
func (r *AnalysisRepository) GetRecord(ctx context.Context, ticker string) (*domain.AnalysisRecord, error) {
	_, span := r.tracer.Start(ctx, "analysis-repo.get-record")
	defer span.End()

	var payload []byte
	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM analyses WHERE ticker = $1`,
		domain.NormalizeTicker(ticker),
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec domain.AnalysisRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &rec, nil
}

func (r *AnalysisRepository) ListFailures(ctx context.Context, limit int) ([]domain.BatchFailure, error) {
	_, span := r.tracer.Start(ctx, "analysis-repo.list-failures")
	defer span.End()

	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.pool.Query(ctx,
		`SELECT ticker, error, failed_at FROM analysis_failures ORDER BY failed_at DESC, ticker LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var failures []domain.BatchFailure
	for rows.Next() {
		var f domain.BatchFailure
		if err := rows.Scan(&f.Ticker, &f.Error, &f.FailedAt); err != nil {
			return nil, err
		}
		f.FailedAt = f.FailedAt.UTC()
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// DeleteStale removes analyses and failures recorded before cutoff and
// reports how many rows went.
func (r *AnalysisRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	_, span := r.tracer.Start(ctx, "analysis-repo.delete-stale")
	defer span.End()

	tag, err := r.pool.Exec(ctx, `DELETE FROM analyses WHERE analyzed_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	deleted := tag.RowsAffected()

	tag, err = r.pool.Exec(ctx, `DELETE FROM analysis_failures WHERE failed_at < $1`, cutoff.UTC())
	if err != nil {
		return deleted, err
	}
	return deleted + tag.RowsAffected(), nil
}
