package service

import (
	"context"
	"testing"
	"time"

	"equity-screener/internal/config"
	"equity-screener/internal/domain"
	"equity-screener/internal/relative"
)

func quietLogf(string, ...any) {}

func techSnapshot(ticker string, evEBITDA float64) domain.FinancialSnapshot {
	return domain.FinancialSnapshot{
		Ticker:             ticker,
		Sector:             "Technology",
		Industry:           "Software",
		CurrentPrice:       domain.Float(200),
		MarketCap:          domain.Float(3e12),
		SharesOutstanding:  domain.Float(15e9),
		Beta:               domain.Float(1.1),
		ForwardPE:          domain.Float(evEBITDA + 5),
		EVToEBITDA:         domain.Float(evEBITDA),
		FreeCashFlow:       []*float64{domain.Float(98e9), domain.Float(89e9), domain.Float(80e9)},
		TotalDebt:          domain.Float(100e9),
		InterestExpense:    domain.Float(3e9),
		RevenueGrowth:      domain.Float(0.08),
		EBITDA:             domain.Float(130e9),
		EBITDAMargin:       domain.Float(0.34),
		TotalRevenue:       domain.Float(380e9),
		AnalystTargetPrice: domain.Float(250),
		NumberOfAnalysts:   domain.Int(30),
	}
}

func risingBars(n int) []domain.PriceBar {
	start := time.Date(2022, 1, 3, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.PriceBar, n)
	for i := range bars {
		c := 100 + float64(i)*0.1
		if i%2 == 1 {
			c -= 0.3
		}
		bars[i] = domain.PriceBar{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1e6}
	}
	return bars
}

func newTestAnalyzer(workers int) *Analyzer {
	return NewAnalyzer(config.DefaultPolicy(), workers, quietLogf)
}

func TestAnalyzeSortsAndIsolatesFailures(t *testing.T) {
	inputs := []domain.TickerInput{
		{Snapshot: techSnapshot("msft", 20), Prices: risingBars(300)},
		{Snapshot: domain.FinancialSnapshot{Ticker: "GHOST"}},
		{Snapshot: techSnapshot("AAPL", 18)},
		{Snapshot: techSnapshot("NVDA", 22)},
	}
	report := newTestAnalyzer(2).Analyze(context.Background(), inputs)

	if len(report.Records) != 3 || len(report.Failures) != 1 {
		t.Fatalf("expected 3 records and 1 failure, got %d/%d", len(report.Records), len(report.Failures))
	}
	for i, want := range []string{"AAPL", "MSFT", "NVDA"} {
		if report.Records[i].Ticker != want {
			t.Fatalf("record %d: expected %s, got %s", i, want, report.Records[i].Ticker)
		}
	}
	if f := report.Failures[0]; f.Ticker != "GHOST" || f.Error != "no fundamentals data" {
		t.Fatalf("unexpected failure %+v", f)
	}
	if report.Summary.Analyzed != 3 || report.Summary.Failed != 1 {
		t.Fatalf("unexpected summary counts %+v", report.Summary)
	}
	if report.FinishedAt.Before(report.StartedAt) {
		t.Fatal("finish must not precede start")
	}
}

func TestAnalyzeUsesSectorPeerMedian(t *testing.T) {
	inputs := []domain.TickerInput{
		{Snapshot: techSnapshot("AAA", 18)},
		{Snapshot: techSnapshot("BBB", 20)},
		{Snapshot: techSnapshot("CCC", 22)},
	}
	report := newTestAnalyzer(4).Analyze(context.Background(), inputs)
	for _, rec := range report.Records {
		if rec.Valuation.ExitMultipleSource != "Sector Peer Median" {
			t.Fatalf("%s: expected peer median source, got %q", rec.Ticker, rec.Valuation.ExitMultipleSource)
		}
		if rec.Relative.Status == domain.RelativeInsufficientPeers || rec.Relative.Status == "" {
			t.Fatalf("%s: expected a ranked relative status, got %q", rec.Ticker, rec.Relative.Status)
		}
	}

	lone := newTestAnalyzer(4).Analyze(context.Background(), inputs[:1])
	if src := lone.Records[0].Valuation.ExitMultipleSource; src == "Sector Peer Median" {
		t.Fatal("a lone ticker must not get a peer median")
	}
}

func TestAnalyzeMergesTechnicalAndSignal(t *testing.T) {
	report := newTestAnalyzer(1).Analyze(context.Background(), []domain.TickerInput{
		{Snapshot: techSnapshot("MSFT", 20), Prices: risingBars(300)},
	})
	rec := report.Records[0]
	if rec.Technical.BandPosition == domain.BandNotApplicable || rec.Technical.UpperBand == nil {
		t.Fatalf("expected technical state, got %+v", rec.Technical)
	}
	if rec.Signal.Recommendation == "" || rec.Signal.Conviction < 1 || rec.Signal.Conviction > 5 {
		t.Fatalf("unexpected signal %+v", rec.Signal)
	}
	if rec.Signal.EntryPrice == nil || *rec.Signal.EntryPrice != *rec.Technical.LowerBand {
		t.Fatal("entry price must be the lower band")
	}
	if *rec.CurrentPrice != 200 {
		t.Fatalf("expected snapshot price, got %v", *rec.CurrentPrice)
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	inputs := []domain.TickerInput{
		{Snapshot: techSnapshot("AAA", 18), Prices: risingBars(120)},
		{Snapshot: techSnapshot("BBB", 20), Prices: risingBars(260)},
		{Snapshot: techSnapshot("CCC", 22)},
	}
	a := newTestAnalyzer(1).Analyze(context.Background(), inputs)
	b := newTestAnalyzer(8).Analyze(context.Background(), inputs)
	for i := range a.Records {
		x, y := a.Records[i], b.Records[i]
		if x.Ticker != y.Ticker || x.Signal.Rationale != y.Signal.Rationale ||
			domain.Value(x.Valuation.IntrinsicValue) != domain.Value(y.Valuation.IntrinsicValue) {
			t.Fatalf("runs differ at %d: %+v vs %+v", i, x.Signal, y.Signal)
		}
	}
}

func TestAnalyzeRecoversFromPanics(t *testing.T) {
	// A zero analyzer has no engines, so every ticker panics in its worker.
	a := &Analyzer{
		ranker:  relative.NewRanker(config.DefaultPolicy()),
		workers: 2,
		now:     time.Now,
		logf:    quietLogf,
	}
	report := a.Analyze(context.Background(), []domain.TickerInput{
		{Snapshot: techSnapshot("AAA", 18)},
		{Snapshot: techSnapshot("BBB", 20)},
	})
	if len(report.Records) != 0 || len(report.Failures) != 2 {
		t.Fatalf("expected two failures, got %d records %d failures", len(report.Records), len(report.Failures))
	}
	if report.Failures[0].Ticker != "AAA" {
		t.Fatalf("failures must be sorted, got %s first", report.Failures[0].Ticker)
	}
}

func TestAnalyzeCancelledContextSkipsTickers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report := newTestAnalyzer(2).Analyze(ctx, []domain.TickerInput{{Snapshot: techSnapshot("AAA", 18)}})
	if len(report.Records) != 0 || len(report.Failures) != 1 {
		t.Fatalf("expected the ticker to be skipped, got %+v", report)
	}
}

func TestAnalyzeEmptyBatch(t *testing.T) {
	report := newTestAnalyzer(0).Analyze(context.Background(), nil)
	if report.Records == nil || report.Failures == nil {
		t.Fatal("empty batch must still return non-nil slices")
	}
	if report.Summary.Distribution[domain.ActionHold] != 0 {
		t.Fatalf("unexpected distribution %v", report.Summary.Distribution)
	}
}

func TestAnalyzeDegenerateCapitalStructureStaysFinite(t *testing.T) {
	negDebt := techSnapshot("NEGD", 20)
	negDebt.TotalDebt = domain.Float(-*negDebt.MarketCap)
	zeroCap := techSnapshot("ZCAP", 21)
	zeroCap.MarketCap = domain.Float(0)
	negCap := techSnapshot("NCAP", 19)
	negCap.MarketCap = domain.Float(-*negCap.TotalDebt)

	inputs := []domain.TickerInput{
		{Snapshot: techSnapshot("AAPL", 18)},
		{Snapshot: negDebt},
		{Snapshot: zeroCap},
		{Snapshot: negCap},
	}
	report := newTestAnalyzer(4).Analyze(context.Background(), inputs)

	if len(report.Records) != 4 || len(report.Failures) != 0 {
		t.Fatalf("expected 4 records and no failures, got %d/%+v", len(report.Records), report.Failures)
	}
	for _, rec := range report.Records {
		v := rec.Valuation
		if !v.Finite() {
			t.Fatalf("%s: non-finite valuation %+v", rec.Ticker, v)
		}
		if v.WACC != nil && (*v.WACC < 0.06 || *v.WACC > 0.20) {
			t.Fatalf("%s: wacc %v out of bounds", rec.Ticker, *v.WACC)
		}
		if v.IntrinsicValue != nil && *v.IntrinsicValue > 400.01 {
			t.Fatalf("%s: intrinsic value %v above twice the price", rec.Ticker, *v.IntrinsicValue)
		}
	}
}
