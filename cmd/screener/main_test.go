package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"equity-screener/internal/domain"
	"equity-screener/internal/tui"
)

func TestParseOptions(t *testing.T) {
	getenv := func(key string) string {
		if key == "ANALYSIS_WORKERS" {
			return "3"
		}
		if key == "POLICY_FILE" {
			return "policy.toml"
		}
		return ""
	}

	opts, err := parseOptions([]string{"--input", "batch.json"}, getenv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.workers != 3 {
		t.Fatalf("expected workers=3 from env, got %d", opts.workers)
	}
	if opts.policyFile != "policy.toml" {
		t.Fatalf("expected policy from env, got %q", opts.policyFile)
	}
	if opts.ingest || opts.browse {
		t.Fatalf("expected ingest and tui off by default, got %+v", opts)
	}

	opts, err = parseOptions([]string{"--input", "-", "--workers", "1", "--output", "out.json", "--tui"}, getenv)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.input != "-" || opts.workers != 1 || opts.output != "out.json" || !opts.browse {
		t.Fatalf("unexpected options: %+v", opts)
	}

	if _, err := parseOptions(nil, getenv); err == nil {
		t.Fatal("expected missing input error")
	}
	if _, err := parseOptions([]string{"--input", "x", "--workers", "0"}, getenv); err == nil {
		t.Fatal("expected invalid workers error")
	}
}

func TestDefaultWorkerCount(t *testing.T) {
	cases := map[string]int{"": defaultWorkers, "abc": defaultWorkers, "-2": defaultWorkers, "12": 12}
	for raw, want := range cases {
		getenv := func(string) string { return raw }
		if got := defaultWorkerCount(getenv); got != want {
			t.Fatalf("ANALYSIS_WORKERS=%q: expected %d, got %d", raw, want, got)
		}
	}
}

func TestDecodeInputs(t *testing.T) {
	raw := `[{"snapshot":{"ticker":"AAPL","sector":"Technology"},"prices":[{"close":190.5}]}]`
	inputs, err := decodeInputs(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inputs) != 1 || inputs[0].Snapshot.Ticker != "AAPL" || len(inputs[0].Prices) != 1 {
		t.Fatalf("unexpected inputs: %+v", inputs)
	}

	if _, err := decodeInputs(strings.NewReader(`[]`)); err == nil {
		t.Fatal("expected empty batch error")
	}
	if _, err := decodeInputs(strings.NewReader(`{"ticker":`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestPrintSummary(t *testing.T) {
	report := domain.BatchReport{
		Summary: domain.Summary{
			Analyzed: 2,
			Failed:   12,
			Distribution: map[domain.SignalAction]int{
				domain.ActionStrongBuy: 1,
				domain.ActionHold:      1,
			},
			Confidence: map[domain.Confidence]int{
				domain.ConfidenceHigh: 1,
				domain.ConfidenceLow:  1,
			},
			TopBuys: []domain.TopPick{{
				Ticker:         "NVDA",
				Recommendation: "STRONG BUY",
				Conviction:     5,
				UpsidePct:      domain.Float(0.425),
				CurrentPrice:   domain.Float(120),
			}},
		},
	}
	for i := 0; i < 12; i++ {
		report.Failures = append(report.Failures, domain.BatchFailure{
			Ticker: fmt.Sprintf("F%02d", i),
			Error:  strings.Repeat("x", 80),
		})
	}

	var buf bytes.Buffer
	printSummary(&buf, report, 0)
	out := buf.String()

	for _, want := range []string{
		"Total stocks analyzed: 2",
		"Failed: 12",
		"  STRONG BUY:   1 #",
		"    NVDA:      STRONG BUY | Conv: 5/5 | Upside:   +42.5% | Price: $120.00",
		"Data Quality: High=1, Medium=0, Low=1",
		"Failed tickers (12):",
		"  F09: " + strings.Repeat("x", 60) + "\n",
		"  ... and 2 more",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in summary:\n%s", want, out)
		}
	}
	if strings.Contains(out, "F10") {
		t.Fatalf("expected only the first 10 failures:\n%s", out)
	}
}

func TestRunWritesRecordsAndBrowses(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "batch.json")
	if err := os.WriteFile(input, []byte(`[{"snapshot":{"ticker":"EMPTY"}}]`), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	output := filepath.Join(dir, "records.json")

	origTUI := runTUIFunc
	defer func() { runTUIFunc = origTUI }()
	var browsed tui.Services
	runTUIFunc = func(svc tui.Services) error {
		browsed = svc
		return nil
	}

	var buf bytes.Buffer
	err := run(context.Background(), options{input: input, output: output, workers: 2, browse: true}, &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(buf.String(), "EMPTY: no fundamentals data") {
		t.Fatalf("expected failure line, got:\n%s", buf.String())
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	var records []domain.AnalysisRecord
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}

	if browsed.Analyses == nil {
		t.Fatal("expected the TUI to receive the run")
	}
	report, err := browsed.Analyses.LatestReport(context.Background())
	if err != nil || report.Summary.Failed != 1 {
		t.Fatalf("unexpected report: %+v err=%v", report, err)
	}
}

func TestReportQuerierFilters(t *testing.T) {
	q := reportQuerier{report: domain.BatchReport{Records: []domain.AnalysisRecord{
		{Ticker: "AAA", Signal: domain.Signal{Action: domain.ActionBuy, Conviction: 3}},
		{Ticker: "BBB", Signal: domain.Signal{Action: domain.ActionSell, Conviction: 2}},
	}}}

	got, err := q.ListAnalyses(context.Background(), domain.AnalysisFilter{Action: "buy"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Ticker != "AAA" {
		t.Fatalf("unexpected records: %+v", got)
	}

	if _, err := q.ListAnalyses(context.Background(), domain.AnalysisFilter{Confidence: "bogus"}); err == nil {
		t.Fatal("expected invalid filter error")
	}

	report, err := q.LatestReport(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Records != nil {
		t.Fatal("expected slim report")
	}
}
