package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"equity-screener/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// priceLookbackBars covers the three-year return window plus slack.
const priceLookbackBars = 800

var (
	ErrNotFound       = errors.New("analysis not found")
	ErrNotInitialized = errors.New("analysis service is not fully initialized")
)

type SnapshotRepository interface {
	UpsertSnapshots(ctx context.Context, snapshots []domain.FinancialSnapshot) error
	ListSnapshots(ctx context.Context, tickers []string) ([]domain.FinancialSnapshot, error)
}

type PriceRepository interface {
	UpsertBars(ctx context.Context, bars []domain.PriceBar) error
	GetBars(ctx context.Context, ticker string, limit int) ([]domain.PriceBar, error)
}

type AnalysisRepository interface {
	SaveRun(ctx context.Context, records []domain.AnalysisRecord, failures []domain.BatchFailure) error
	ListRecords(ctx context.Context, filter domain.AnalysisFilter) ([]domain.AnalysisRecord, error)
	GetRecord(ctx context.Context, ticker string) (*domain.AnalysisRecord, error)
	ListFailures(ctx context.Context, limit int) ([]domain.BatchFailure, error)
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
}

type ResultCache interface {
	GetRecord(ctx context.Context, ticker string) (*domain.AnalysisRecord, error)
	SetRecords(ctx context.Context, records []domain.AnalysisRecord) error
	GetReport(ctx context.Context) (*domain.BatchReport, error)
	SetReport(ctx context.Context, report domain.BatchReport) error
}

type ChartRenderer interface {
	RenderAnalysisChart(bars []domain.PriceBar, rec domain.AnalysisRecord) ([]byte, error)
}

// AnalysisService loads inputs from storage, runs the analyzer and
// publishes the results to the repository and cache. Every dependency
// except the analyzer may be nil; the service then keeps the last report
// in memory.
type AnalysisService struct {
	tracer    trace.Tracer
	analyzer  *Analyzer
	snapshots SnapshotRepository
	prices    PriceRepository
	analyses  AnalysisRepository
	cache     ResultCache
	charts    ChartRenderer

	mu     sync.RWMutex
	latest *domain.BatchReport
}

func NewAnalysisService(
	tracer trace.Tracer,
	analyzer *Analyzer,
	snapshots SnapshotRepository,
	prices PriceRepository,
	analyses AnalysisRepository,
) *AnalysisService {
	return NewAnalysisServiceWithCache(tracer, analyzer, snapshots, prices, analyses, nil, nil)
}

func NewAnalysisServiceWithCache(
	tracer trace.Tracer,
	analyzer *Analyzer,
	snapshots SnapshotRepository,
	prices PriceRepository,
	analyses AnalysisRepository,
	cache ResultCache,
	charts ChartRenderer,
) *AnalysisService {
	return &AnalysisService{
		tracer:    tracer,
		analyzer:  analyzer,
		snapshots: snapshots,
		prices:    prices,
		analyses:  analyses,
		cache:     cache,
		charts:    charts,
	}
}

// Analyze runs the pipeline over inputs held in memory. Nothing is
// persisted.
func (s *AnalysisService) Analyze(ctx context.Context, inputs []domain.TickerInput) (domain.BatchReport, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.analyze")
	defer span.End()

	if s.analyzer == nil {
		return domain.BatchReport{}, ErrNotInitialized
	}
	report := s.analyzer.Analyze(ctx, inputs)
	span.SetAttributes(
		attribute.Int("analysis.records", len(report.Records)),
		attribute.Int("analysis.failures", len(report.Failures)),
	)
	return report, nil
}

// Ingest stores snapshots and price bars for later runs.
func (s *AnalysisService) Ingest(ctx context.Context, inputs []domain.TickerInput) error {
	ctx, span := s.tracer.Start(ctx, "analysis-service.ingest")
	defer span.End()

	if s.snapshots == nil || s.prices == nil {
		return ErrNotInitialized
	}

	snapshots := make([]domain.FinancialSnapshot, 0, len(inputs))
	var bars []domain.PriceBar
	for _, in := range inputs {
		ticker := domain.NormalizeTicker(in.Snapshot.Ticker)
		if ticker == "" {
			return fmt.Errorf("%w: input without ticker", ErrInvalidInput)
		}
		snap := in.Snapshot
		snap.Ticker = ticker
		if snap.FetchedAt.IsZero() {
			snap.FetchedAt = time.Now().UTC()
		}
		snapshots = append(snapshots, snap)
		for _, b := range in.Prices {
			b.Ticker = ticker
			bars = append(bars, b)
		}
	}

	if err := s.snapshots.UpsertSnapshots(ctx, snapshots); err != nil {
		return fmt.Errorf("store snapshots: %w", err)
	}
	if err := s.prices.UpsertBars(ctx, bars); err != nil {
		return fmt.Errorf("store price bars: %w", err)
	}
	return nil
}

// RunBatch analyzes the stored snapshots for tickers, or every stored
// snapshot when tickers is empty. Requested tickers without a snapshot are
// reported as failures.
func (s *AnalysisService) RunBatch(ctx context.Context, tickers []string) (domain.BatchReport, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.run-batch")
	defer span.End()

	if s.analyzer == nil || s.snapshots == nil {
		return domain.BatchReport{}, ErrNotInitialized
	}

	tickers = normalizeTickers(tickers)
	snapshots, err := s.snapshots.ListSnapshots(ctx, tickers)
	if err != nil {
		return domain.BatchReport{}, fmt.Errorf("list snapshots: %w", err)
	}

	byTicker := make(map[string]domain.FinancialSnapshot, len(snapshots))
	for _, snap := range snapshots {
		byTicker[domain.NormalizeTicker(snap.Ticker)] = snap
	}
	if len(tickers) == 0 {
		for t := range byTicker {
			tickers = append(tickers, t)
		}
	}

	inputs := make([]domain.TickerInput, 0, len(tickers))
	for _, t := range tickers {
		snap, ok := byTicker[t]
		if !ok {
			inputs = append(inputs, domain.TickerInput{Snapshot: domain.FinancialSnapshot{Ticker: t}})
			continue
		}
		in := domain.TickerInput{Snapshot: snap}
		if s.prices != nil {
			bars, err := s.prices.GetBars(ctx, t, priceLookbackBars)
			if err != nil {
				log.Printf("price bars for %s unavailable: %v", t, err)
			}
			in.Prices = bars
		}
		inputs = append(inputs, in)
	}

	report := s.analyzer.Analyze(ctx, inputs)
	span.SetAttributes(
		attribute.Int("analysis.records", len(report.Records)),
		attribute.Int("analysis.failures", len(report.Failures)),
	)

	var persistErr error
	if s.analyses != nil {
		if err := s.analyses.SaveRun(ctx, report.Records, report.Failures); err != nil {
			persistErr = fmt.Errorf("persist analyses: %w", err)
		}
	}
	s.publish(ctx, report)
	return report, persistErr
}

func (s *AnalysisService) publish(ctx context.Context, report domain.BatchReport) {
	stored := report
	s.mu.Lock()
	s.latest = &stored
	s.mu.Unlock()

	if s.cache == nil {
		return
	}
	if err := s.cache.SetRecords(ctx, report.Records); err != nil {
		log.Printf("cache analyses: %v", err)
	}
	slim := report
	slim.Records = nil
	if err := s.cache.SetReport(ctx, slim); err != nil {
		log.Printf("cache report: %v", err)
	}
}

// GetAnalysis returns the latest record for ticker from the cache, falling
// back to the repository and then the last in-memory run.
func (s *AnalysisService) GetAnalysis(ctx context.Context, ticker string) (*domain.AnalysisRecord, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.get-analysis")
	defer span.End()

	ticker = domain.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", ErrInvalidInput)
	}

	if s.cache != nil {
		rec, err := s.cache.GetRecord(ctx, ticker)
		if err != nil {
			log.Printf("cache read for %s: %v", ticker, err)
		} else if rec != nil {
			return rec, nil
		}
	}

	if s.analyses != nil {
		rec, err := s.analyses.GetRecord(ctx, ticker)
		if err != nil {
			return nil, fmt.Errorf("get analysis %s: %w", ticker, err)
		}
		if rec == nil {
			return nil, ErrNotFound
		}
		if s.cache != nil {
			if err := s.cache.SetRecords(ctx, []domain.AnalysisRecord{*rec}); err != nil {
				log.Printf("cache analysis %s: %v", ticker, err)
			}
		}
		return rec, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest != nil {
		for i := range s.latest.Records {
			if s.latest.Records[i].Ticker == ticker {
				rec := s.latest.Records[i]
				return &rec, nil
			}
		}
	}
	return nil, ErrNotFound
}

// ListAnalyses validates filter and returns matching records ordered by
// conviction, then upside.
func (s *AnalysisService) ListAnalyses(ctx context.Context, filter domain.AnalysisFilter) ([]domain.AnalysisRecord, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.list-analyses")
	defer span.End()

	filter, err := NormalizeFilter(filter)
	if err != nil {
		return nil, err
	}
	if s.analyses != nil {
		return s.analyses.ListRecords(ctx, filter)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return []domain.AnalysisRecord{}, nil
	}
	return FilterRecords(s.latest.Records, filter), nil
}

// LatestReport returns the summary of the most recent run with its
// failures.
func (s *AnalysisService) LatestReport(ctx context.Context) (*domain.BatchReport, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.latest-report")
	defer span.End()

	if s.cache != nil {
		report, err := s.cache.GetReport(ctx)
		if err != nil {
			log.Printf("cache report read: %v", err)
		} else if report != nil {
			return report, nil
		}
	}

	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest != nil {
		slim := *latest
		slim.Records = nil
		return &slim, nil
	}

	if s.analyses == nil {
		return nil, ErrNotFound
	}
	records, err := s.analyses.ListRecords(ctx, domain.AnalysisFilter{Limit: maxFilterLimit})
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	failures, err := s.analyses.ListFailures(ctx, maxFilterLimit)
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}
	if len(records) == 0 && len(failures) == 0 {
		return nil, ErrNotFound
	}
	if failures == nil {
		failures = []domain.BatchFailure{}
	}
	return &domain.BatchReport{Failures: failures, Summary: Summarize(records, failures)}, nil
}

// PruneStale deletes stored analyses older than retention.
func (s *AnalysisService) PruneStale(ctx context.Context, retention time.Duration) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.prune-stale")
	defer span.End()

	if s.analyses == nil || retention <= 0 {
		return 0, nil
	}
	return s.analyses.DeleteStale(ctx, time.Now().UTC().Add(-retention))
}

// Chart renders the price history of ticker with its bands and valuation
// levels as a PNG.
func (s *AnalysisService) Chart(ctx context.Context, ticker string) ([]byte, error) {
	ctx, span := s.tracer.Start(ctx, "analysis-service.chart")
	defer span.End()

	if s.charts == nil || s.prices == nil {
		return nil, ErrNotInitialized
	}
	rec, err := s.GetAnalysis(ctx, ticker)
	if err != nil {
		return nil, err
	}
	bars, err := s.prices.GetBars(ctx, rec.Ticker, priceLookbackBars)
	if err != nil {
		return nil, fmt.Errorf("get price bars for %s: %w", rec.Ticker, err)
	}
	return s.charts.RenderAnalysisChart(bars, *rec)
}

func normalizeTickers(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, t := range in {
		t = domain.NormalizeTicker(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// ParseTickers accepts a comma or space separated list and returns unique
// upper-case tickers in order.
func ParseTickers(raw string) []string {
	return normalizeTickers(strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' }))
}
