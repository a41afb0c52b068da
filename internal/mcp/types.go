package mcp

import (
	"fmt"
	"strings"

	"equity-screener/internal/domain"
	"equity-screener/internal/service"
)

const maxBatchTickers = 500

type analyzeBatchInput struct {
	Tickers []string `json:"tickers,omitempty" jsonschema:"tickers to analyze; empty analyzes every stored snapshot"`
}

type analyzeBatchOutput struct {
	Analyzed int                   `json:"analyzed"`
	Failed   int                   `json:"failed"`
	Summary  domain.Summary        `json:"summary"`
	Failures []domain.BatchFailure `json:"failures"`
}

type getAnalysisInput struct {
	Ticker string `json:"ticker" jsonschema:"ticker symbol (e.g. AAPL)"`
}

type getAnalysisOutput struct {
	Analysis *domain.AnalysisRecord `json:"analysis"`
}

type listAnalysesInput struct {
	Ticker        string `json:"ticker,omitempty" jsonschema:"optional ticker symbol"`
	Signal        string `json:"signal,omitempty" jsonschema:"optional signal: STRONG BUY, BUY, HOLD, SELL, STRONG SELL"`
	Confidence    string `json:"confidence,omitempty" jsonschema:"optional valuation confidence: High, Medium, Low"`
	Sector        string `json:"sector,omitempty" jsonschema:"optional sector name"`
	MinConviction int    `json:"min_conviction,omitempty" jsonschema:"minimum conviction 1-5"`
	Limit         int    `json:"limit,omitempty" jsonschema:"number of analyses to return, max 200"`
}

type listAnalysesOutput struct {
	Analyses []domain.AnalysisRecord `json:"analyses"`
}

type getReportInput struct{}

type getReportOutput struct {
	Report *domain.BatchReport `json:"report"`
}

func normalizeTicker(ticker string) (string, error) {
	ticker = domain.NormalizeTicker(ticker)
	if ticker == "" {
		return "", fmt.Errorf("ticker is required")
	}
	if strings.ContainsAny(ticker, " /?#") {
		return "", fmt.Errorf("invalid ticker: %s", ticker)
	}
	return ticker, nil
}

func normalizeBatchTickers(tickers []string) ([]string, error) {
	out := make([]string, 0, len(tickers))
	seen := make(map[string]struct{}, len(tickers))
	for _, raw := range tickers {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		t, err := normalizeTicker(raw)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	if len(out) > maxBatchTickers {
		return nil, fmt.Errorf("at most %d tickers per batch", maxBatchTickers)
	}
	return out, nil
}

func normalizeAnalysisFilter(in listAnalysesInput) (domain.AnalysisFilter, error) {
	filter := domain.AnalysisFilter{
		Action:        domain.SignalAction(in.Signal),
		Confidence:    domain.Confidence(in.Confidence),
		Sector:        in.Sector,
		MinConviction: in.MinConviction,
		Limit:         in.Limit,
	}
	if strings.TrimSpace(in.Ticker) != "" {
		ticker, err := normalizeTicker(in.Ticker)
		if err != nil {
			return domain.AnalysisFilter{}, err
		}
		filter.Ticker = ticker
	}
	return service.NormalizeFilter(filter)
}

func batchOutput(report domain.BatchReport) analyzeBatchOutput {
	failures := report.Failures
	if failures == nil {
		failures = []domain.BatchFailure{}
	}
	return analyzeBatchOutput{
		Analyzed: report.Summary.Analyzed,
		Failed:   report.Summary.Failed,
		Summary:  report.Summary,
		Failures: failures,
	}
}
