package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"equity-screener/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

func noopTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("test")
}

func TestUpsertBarsBatchesStatements(t *testing.T) {
	batchResults := &stubBatchResults{}
	pool := &stubPool{batchResults: batchResults}
	repo := NewPriceRepository(pool, noopTracer())

	bars := []domain.PriceBar{
		{Ticker: "aapl", Date: time.Unix(0, 0), Close: 10},
		{Ticker: "AAPL", Date: time.Unix(86400, 0), Close: 11},
	}
	if err := repo.UpsertBars(context.Background(), bars); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.queuedBatch == nil || pool.queuedBatch.Len() != len(bars) {
		t.Fatalf("expected batch of size %d", len(bars))
	}
	if batchResults.execCalls != len(bars) {
		t.Fatalf("expected %d Exec calls, got %d", len(bars), batchResults.execCalls)
	}
	if got := pool.queuedBatch.QueuedQueries[0].Arguments[0]; got != "AAPL" {
		t.Fatalf("expected normalized ticker, got %v", got)
	}
}

func TestUpsertBarsEmptyIsNoop(t *testing.T) {
	pool := &stubPool{}
	if err := NewPriceRepository(pool, noopTracer()).UpsertBars(context.Background(), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.queuedBatch != nil {
		t.Fatal("expected no batch for empty input")
	}
}

func TestGetBarsReturnsOldestFirst(t *testing.T) {
	day := func(n int) time.Time { return time.Date(2024, 1, n, 0, 0, 0, 0, time.UTC) }
	rows := [][]any{
		{"AAPL", day(3), 1.0, 2.0, 0.5, 3.0, 100.0},
		{"AAPL", day(2), 1.0, 2.0, 0.5, 2.0, 100.0},
		{"AAPL", day(1), 1.0, 2.0, 0.5, 1.0, 100.0},
	}
	pool := &stubPool{rowsData: rows}
	repo := NewPriceRepository(pool, noopTracer())

	bars, err := repo.GetBars(context.Background(), "aapl", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d", len(bars))
	}
	if !bars[0].Date.Equal(day(1)) || bars[2].Close != 3.0 {
		t.Fatalf("expected ascending bars, got %+v", bars)
	}
	if pool.queryArgs[0] != "AAPL" || pool.queryArgs[1] != 3 {
		t.Fatalf("unexpected query args %v", pool.queryArgs)
	}
}

func TestGetBarsPropagatesQueryError(t *testing.T) {
	pool := &stubPool{queryErr: fmt.Errorf("boom")}
	if _, err := NewPriceRepository(pool, noopTracer()).GetBars(context.Background(), "AAPL", 10); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunMigrationsExecutesSchema(t *testing.T) {
	pool := &stubPool{}
	if err := RunMigrations(context.Background(), pool); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.execSQL) != len(schema) {
		t.Fatalf("expected %d statements, got %d", len(schema), len(pool.execSQL))
	}
}

func TestRunMigrationsStopsOnError(t *testing.T) {
	pool := &stubPool{execErr: fmt.Errorf("denied")}
	if err := RunMigrations(context.Background(), pool); err == nil {
		t.Fatal("expected error")
	}
	if len(pool.execSQL) != 1 {
		t.Fatalf("expected to stop after first statement, ran %d", len(pool.execSQL))
	}
}

type stubPool struct {
	batchResults pgx.BatchResults
	queuedBatch  *pgx.Batch
	rowsData     [][]any
	rowData      []any
	rowErr       error
	queryErr     error
	execErr      error
	execTag      pgconn.CommandTag

	execSQL   []string
	querySQL  string
	queryArgs []any
}

func (s *stubPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	s.execSQL = append(s.execSQL, sql)
	return s.execTag, s.execErr
}

func (s *stubPool) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	s.queuedBatch = b
	if s.batchResults != nil {
		return s.batchResults
	}
	return &stubBatchResults{}
}

func (s *stubPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	s.querySQL = sql
	s.queryArgs = args
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	if s.rowsData == nil {
		return &stubRows{}, nil
	}
	dataCopy := make([][]any, len(s.rowsData))
	for i := range s.rowsData {
		row := make([]any, len(s.rowsData[i]))
		copy(row, s.rowsData[i])
		dataCopy[i] = row
	}
	return &stubRows{data: dataCopy}, nil
}

func (s *stubPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	s.querySQL = sql
	s.queryArgs = args
	return &stubRow{data: s.rowData, err: s.rowErr}
}

type stubBatchResults struct {
	execCalls int
	failAt    int
}

func (s *stubBatchResults) Exec() (pgconn.CommandTag, error) {
	s.execCalls++
	if s.failAt > 0 && s.execCalls == s.failAt {
		return pgconn.CommandTag{}, fmt.Errorf("exec %d failed", s.execCalls)
	}
	return pgconn.CommandTag{}, nil
}

func (s *stubBatchResults) Query() (pgx.Rows, error) { return &stubRows{}, nil }

func (s *stubBatchResults) QueryRow() pgx.Row { return &stubRow{} }

func (s *stubBatchResults) Close() error { return nil }

type stubRows struct {
	data [][]any
	idx  int
}

func (r *stubRows) Close() {}

func (r *stubRows) Err() error { return nil }

func (r *stubRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (r *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }

func (r *stubRows) Next() bool {
	if len(r.data) == 0 || r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *stubRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.data) {
		return fmt.Errorf("invalid scan index")
	}
	return assign(r.data[r.idx-1], dest)
}

func (r *stubRows) Values() ([]any, error) { return nil, nil }

func (r *stubRows) RawValues() [][]byte { return nil }

func (r *stubRows) Conn() *pgx.Conn { return nil }

type stubRow struct {
	data []any
	err  error
}

func (r *stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if r.data == nil {
		return pgx.ErrNoRows
	}
	return assign(r.data, dest)
}

func assign(row []any, dest []any) error {
	for i, d := range dest {
		switch ptr := d.(type) {
		case *string:
			*ptr = row[i].(string)
		case *time.Time:
			*ptr = row[i].(time.Time)
		case *float64:
			*ptr = row[i].(float64)
		case *[]byte:
			*ptr = row[i].([]byte)
		default:
			return fmt.Errorf("unsupported dest type %T", d)
		}
	}
	return nil
}
