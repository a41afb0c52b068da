package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"equity-screener/internal/config"
	"equity-screener/internal/domain"
	"equity-screener/internal/relative"
	"equity-screener/internal/signal"
	"equity-screener/internal/technical"
	"equity-screener/internal/valuation"

	"golang.org/x/sync/errgroup"
)

const defaultWorkers = 8

var errNoFundamentals = errors.New("no fundamentals data")

// Analyzer runs the full per-ticker pipeline over an in-memory batch. It is
// safe for concurrent use.
type Analyzer struct {
	valuation *valuation.Engine
	ranker    *relative.Ranker
	technical *technical.Engine
	fusion    *signal.Engine
	workers   int
	now       func() time.Time
	logf      func(format string, args ...any)
}

// NewAnalyzer builds every engine from one policy. workers bounds the number
// of tickers processed at once; zero or less uses the default.
func NewAnalyzer(policy config.Policy, workers int, logf func(format string, args ...any)) *Analyzer {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Analyzer{
		valuation: valuation.NewEngine(policy, logf),
		ranker:    relative.NewRanker(policy),
		technical: technical.NewEngine(policy),
		fusion:    signal.NewEngine(policy),
		workers:   workers,
		now:       func() time.Time { return time.Now().UTC() },
		logf:      logf,
	}
}

// Analyze values every input. Sector peer data is derived from the whole
// batch before any ticker runs. A failing ticker becomes a BatchFailure and
// never stops the others; cancelling ctx only stops tickers that have not
// started. Records and failures are sorted by ticker.
func (a *Analyzer) Analyze(ctx context.Context, inputs []domain.TickerInput) domain.BatchReport {
	report := domain.BatchReport{StartedAt: a.now()}

	snapshots := make([]domain.FinancialSnapshot, 0, len(inputs))
	for _, in := range inputs {
		if in.Snapshot.Ticker != "" {
			snapshots = append(snapshots, in.Snapshot)
		}
	}
	batch := relative.NewBatch(snapshots)
	medians := a.ranker.PeerMedians(batch)

	var (
		mu       sync.Mutex
		records  = make([]domain.AnalysisRecord, 0, len(inputs))
		failures []domain.BatchFailure
	)
	fail := func(ticker string, err error) {
		mu.Lock()
		failures = append(failures, domain.BatchFailure{Ticker: ticker, Error: err.Error(), FailedAt: a.now()})
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(a.workers)
	for _, in := range inputs {
		ticker := domain.NormalizeTicker(in.Snapshot.Ticker)
		if ctx.Err() != nil {
			fail(ticker, fmt.Errorf("not analyzed: %w", ctx.Err()))
			continue
		}
		g.Go(func() error {
			rec, err := a.analyzeOne(in, batch, medians)
			if err != nil {
				a.logf("%s: analysis failed: %v", ticker, err)
				fail(ticker, err)
				return nil
			}
			mu.Lock()
			records = append(records, rec)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	slices.SortFunc(records, func(x, y domain.AnalysisRecord) int { return strings.Compare(x.Ticker, y.Ticker) })
	slices.SortFunc(failures, func(x, y domain.BatchFailure) int { return strings.Compare(x.Ticker, y.Ticker) })

	report.Records = records
	report.Failures = failures
	if report.Failures == nil {
		report.Failures = []domain.BatchFailure{}
	}
	report.FinishedAt = a.now()
	report.Summary = Summarize(records, failures)
	return report
}

func (a *Analyzer) analyzeOne(in domain.TickerInput, batch *relative.Batch, medians map[string]float64) (rec domain.AnalysisRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	s := in.Snapshot.Sanitize()
	s.Ticker = domain.NormalizeTicker(s.Ticker)
	if s.Ticker == "" {
		return rec, errors.New("missing ticker")
	}
	if s.CurrentPrice == nil && s.MarketCap == nil && len(s.FreeCashFlow) == 0 {
		return rec, errNoFundamentals
	}

	var peerMedian *float64
	if m, ok := medians[s.Sector]; ok {
		peerMedian = domain.Float(m)
	}

	val := a.valuation.Value(s, peerMedian)
	rel := a.ranker.Rank(s, batch)
	tech := a.technical.Analyze(in.Prices)
	sig := a.fusion.Fuse(&val, &rel, &tech)

	price := s.CurrentPrice
	if price == nil {
		price = tech.CurrentPrice
	}

	return domain.AnalysisRecord{
		Ticker:       s.Ticker,
		Sector:       s.Sector,
		Industry:     s.Industry,
		CurrentPrice: price,
		Valuation:    val,
		Relative:     rel,
		Technical:    tech,
		Signal:       sig,
		AnalyzedAt:   a.now(),
	}, nil
}
