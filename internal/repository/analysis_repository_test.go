package repository

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"equity-screener/internal/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

func sampleRecord(ticker string) domain.AnalysisRecord {
	return domain.AnalysisRecord{
		Ticker: ticker,
		Sector: "Technology",
		Valuation: domain.ValuationResult{
			Status:     domain.StatusUndervalued,
			Confidence: domain.ConfidenceHigh,
			UpsidePct:  domain.Float(0.31),
		},
		Signal: domain.Signal{
			Recommendation: "STRONG BUY",
			Action:         domain.ActionStrongBuy,
			Conviction:     5,
		},
		AnalyzedAt: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSaveRunBatchesRecordsAndFailures(t *testing.T) {
	batchResults := &stubBatchResults{}
	pool := &stubPool{batchResults: batchResults}
	repo := NewAnalysisRepository(pool, noopTracer())

	records := []domain.AnalysisRecord{sampleRecord("AAPL"), sampleRecord("MSFT")}
	failures := []domain.BatchFailure{{Ticker: "BAD", Error: "boom", FailedAt: time.Now()}}
	if err := repo.SaveRun(context.Background(), records, failures); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.queuedBatch.Len() != 3 || batchResults.execCalls != 3 {
		t.Fatalf("expected 3 queued statements, got %d (%d execs)", pool.queuedBatch.Len(), batchResults.execCalls)
	}

	args := pool.queuedBatch.QueuedQueries[0].Arguments
	if args[2] != "STRONG BUY" || args[3] != "High" || args[4] != int16(5) {
		t.Fatalf("unexpected indexed columns %v", args[:5])
	}
	if !strings.Contains(pool.queuedBatch.QueuedQueries[2].SQL, "analysis_failures") {
		t.Fatalf("expected failure insert last, got %s", pool.queuedBatch.QueuedQueries[2].SQL)
	}
}

func TestSaveRunSurfacesExecError(t *testing.T) {
	pool := &stubPool{batchResults: &stubBatchResults{failAt: 2}}
	repo := NewAnalysisRepository(pool, noopTracer())
	err := repo.SaveRun(context.Background(), []domain.AnalysisRecord{sampleRecord("A"), sampleRecord("B")}, nil)
	if err == nil {
		t.Fatal("expected error from second statement")
	}
}

func TestSaveRunEmptyIsNoop(t *testing.T) {
	pool := &stubPool{}
	if err := NewAnalysisRepository(pool, noopTracer()).SaveRun(context.Background(), nil, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.queuedBatch != nil {
		t.Fatal("expected no batch")
	}
}

func TestListRecordsBuildsFilter(t *testing.T) {
	payload, _ := json.Marshal(sampleRecord("AAPL"))
	pool := &stubPool{rowsData: [][]any{{payload}}}
	repo := NewAnalysisRepository(pool, noopTracer())

	got, err := repo.ListRecords(context.Background(), domain.AnalysisFilter{
		Ticker:        "aapl",
		Action:        domain.ActionStrongBuy,
		Confidence:    domain.ConfidenceHigh,
		Sector:        "Technology",
		MinConviction: 4,
		Limit:         500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Signal.Action != domain.ActionStrongBuy {
		t.Fatalf("unexpected records %+v", got)
	}
	for _, clause := range []string{"ticker = $1", "action = $2", "confidence = $3", "sector = $4", "conviction >= $5", "LIMIT $6"} {
		if !strings.Contains(pool.querySQL, clause) {
			t.Fatalf("expected %q in %s", clause, pool.querySQL)
		}
	}
	if pool.queryArgs[0] != "AAPL" || pool.queryArgs[5] != maxListLimit {
		t.Fatalf("unexpected args %v", pool.queryArgs)
	}
}

func TestListRecordsDefaultLimit(t *testing.T) {
	pool := &stubPool{}
	if _, err := NewAnalysisRepository(pool, noopTracer()).ListRecords(context.Background(), domain.AnalysisFilter{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pool.queryArgs) != 1 || pool.queryArgs[0] != defaultListLimit {
		t.Fatalf("expected only the default limit, got %v", pool.queryArgs)
	}
}

func TestGetRecordFoundAndMissing(t *testing.T) {
	payload, _ := json.Marshal(sampleRecord("NVDA"))
	pool := &stubPool{rowData: []any{payload}}
	repo := NewAnalysisRepository(pool, noopTracer())

	rec, err := repo.GetRecord(context.Background(), "nvda")
	if err != nil || rec == nil || rec.Ticker != "NVDA" {
		t.Fatalf("unexpected record %+v err %v", rec, err)
	}

	missing, err := NewAnalysisRepository(&stubPool{}, noopTracer()).GetRecord(context.Background(), "ZZZ")
	if err != nil || missing != nil {
		t.Fatalf("expected nil record without error, got %+v %v", missing, err)
	}
}

func TestListFailures(t *testing.T) {
	at := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	pool := &stubPool{rowsData: [][]any{{"BAD", "no snapshot", at}}}
	got, err := NewAnalysisRepository(pool, noopTracer()).ListFailures(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Error != "no snapshot" || !got[0].FailedAt.Equal(at) {
		t.Fatalf("unexpected failures %+v", got)
	}
	if pool.queryArgs[0] != defaultListLimit {
		t.Fatalf("expected default limit, got %v", pool.queryArgs[0])
	}
}

func TestDeleteStaleSumsBothTables(t *testing.T) {
	pool := &stubPool{execTag: pgconn.NewCommandTag("DELETE 3")}
	n, err := NewAnalysisRepository(pool, noopTracer()).DeleteStale(context.Background(), time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 6 || len(pool.execSQL) != 2 {
		t.Fatalf("expected 6 rows over 2 statements, got %d over %d", n, len(pool.execSQL))
	}
}

func TestSaveRunStoresUnencodableRecordAsFailure(t *testing.T) {
	batchResults := &stubBatchResults{}
	pool := &stubPool{batchResults: batchResults}
	repo := NewAnalysisRepository(pool, noopTracer())

	bad := sampleRecord("BAD")
	bad.Valuation.IntrinsicValue = domain.Float(math.NaN())
	failures := make([]domain.BatchFailure, 0, 4)
	failures = append(failures, domain.BatchFailure{Ticker: "GONE", Error: "no fundamentals data", FailedAt: time.Now()})

	if err := repo.SaveRun(context.Background(), []domain.AnalysisRecord{sampleRecord("AAPL"), bad}, failures); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pool.queuedBatch.Len() != 3 || batchResults.execCalls != 3 {
		t.Fatalf("expected 3 statements, got %d (%d execs)", pool.queuedBatch.Len(), batchResults.execCalls)
	}

	queued := pool.queuedBatch.QueuedQueries
	if !strings.Contains(queued[0].SQL, "INSERT INTO analyses") || queued[0].Arguments[0] != "AAPL" {
		t.Fatalf("expected AAPL upsert first, got %s %v", queued[0].SQL, queued[0].Arguments)
	}
	last := queued[2]
	if !strings.Contains(last.SQL, "analysis_failures") || last.Arguments[0] != "BAD" {
		t.Fatalf("expected BAD stored as failure, got %s %v", last.SQL, last.Arguments)
	}
	if msg, _ := last.Arguments[1].(string); !strings.Contains(msg, "encode analysis") {
		t.Fatalf("unexpected failure message %q", msg)
	}
	if len(failures) != 1 || failures[:cap(failures)][1].Ticker != "" {
		t.Fatal("caller's failure slice was modified")
	}
}
