package bot

import (
	"strings"
	"testing"
	"time"

	"equity-screener/internal/domain"
)

func TestStartTelegramBotSkipsWithoutToken(t *testing.T) {
	if alerts := StartTelegramBot("", nil, nil); alerts != nil {
		t.Fatal("expected nil dispatcher without token")
	}
}

func TestParseTickerArg(t *testing.T) {
	ticker, err := parseTickerArg([]string{" msft "})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ticker != "MSFT" {
		t.Fatalf("expected MSFT, got %s", ticker)
	}

	if _, err := parseTickerArg(nil); err == nil {
		t.Fatal("expected error without ticker")
	}
	if _, err := parseTickerArg([]string{"A", "B"}); err == nil {
		t.Fatal("expected error with two tickers")
	}
}

func TestParseTopArgs(t *testing.T) {
	cases := []struct {
		args    []string
		want    int
		wantErr bool
	}{
		{args: nil, want: defaultTopLimit},
		{args: []string{"3"}, want: 3},
		{args: []string{"0"}, wantErr: true},
		{args: []string{"11"}, wantErr: true},
		{args: []string{"x"}, wantErr: true},
		{args: []string{"1", "2"}, wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseTopArgs(tc.args)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("args %v: expected error", tc.args)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("args %v: expected %d, got %d err=%v", tc.args, tc.want, got, err)
		}
	}
}

func TestFormatRecordHandlesMissingValues(t *testing.T) {
	msg := formatRecord(domain.AnalysisRecord{
		Ticker: "JPM",
		Valuation: domain.ValuationResult{
			Status:     domain.StatusInsufficientData,
			Confidence: domain.ConfidenceLow,
			Warning:    "Implied perpetuity growth above ceiling",
		},
		Relative:  domain.RelativeValuationResult{Status: domain.RelativeInsufficientPeers},
		Technical: domain.TechnicalResult{BandPosition: domain.BandNotApplicable, RSI: 50},
		Signal:    domain.Signal{Recommendation: "HOLD (Low Confidence)", Conviction: 3, Rationale: "Fair value; neutral technicals"},
	})

	for _, want := range []string{"JPM  HOLD (Low Confidence)", "Price: N/A", "Upside: N/A", "Warning: Implied"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in message:\n%s", want, msg)
		}
	}
}

func TestFormatTopBuysLimits(t *testing.T) {
	picks := []domain.TopPick{
		{Ticker: "A", Recommendation: "STRONG BUY", Conviction: 5, UpsidePct: domain.Float(0.5), CurrentPrice: domain.Float(10)},
		{Ticker: "B", Recommendation: "BUY", Conviction: 4, UpsidePct: domain.Float(0.2), CurrentPrice: domain.Float(20)},
		{Ticker: "C", Recommendation: "BUY", Conviction: 4},
	}
	msg := formatTopBuys(picks, 2)
	if !strings.Contains(msg, "1. A STRONG BUY conv 5 upside +50.0% at $10.00") {
		t.Fatalf("unexpected first line:\n%s", msg)
	}
	if strings.Contains(msg, "3. C") {
		t.Fatalf("expected limit to drop third pick:\n%s", msg)
	}
	if formatTopBuys(nil, 5) != "No buy signals in the latest run." {
		t.Fatal("expected empty message")
	}
}

func TestFormatSummary(t *testing.T) {
	failures := make([]domain.BatchFailure, 12)
	for i := range failures {
		failures[i] = domain.BatchFailure{Ticker: "T" + string(rune('A'+i)), Error: "no fundamentals data"}
	}
	msg := formatSummary(domain.BatchReport{
		FinishedAt: time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC),
		Failures:   failures,
		Summary: domain.Summary{
			Analyzed:     40,
			Failed:       12,
			Distribution: map[domain.SignalAction]int{domain.ActionBuy: 7, domain.ActionHold: 33},
			Confidence:   map[domain.Confidence]int{domain.ConfidenceHigh: 25, domain.ConfidenceLow: 15},
		},
	})

	for _, want := range []string{"Analyzed 40, failed 12", "BUY          7", "STRONG SELL  0", "High    25", "TA: no fundamentals data", "... and 2 more"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in summary:\n%s", want, msg)
		}
	}
}
