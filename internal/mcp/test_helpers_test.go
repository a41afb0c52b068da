package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"equity-screener/internal/domain"
	"equity-screener/internal/service"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
)

type stubAnalysisService struct {
	records []domain.AnalysisRecord
	report  domain.BatchReport

	lastFilter  domain.AnalysisFilter
	lastTickers []string
	runCalls    int
}

func (s *stubAnalysisService) GetAnalysis(ctx context.Context, ticker string) (*domain.AnalysisRecord, error) {
	for _, rec := range s.records {
		if rec.Ticker == ticker {
			copy := rec
			return &copy, nil
		}
	}
	return nil, service.ErrNotFound
}

func (s *stubAnalysisService) ListAnalyses(ctx context.Context, filter domain.AnalysisFilter) ([]domain.AnalysisRecord, error) {
	s.lastFilter = filter
	return append([]domain.AnalysisRecord(nil), s.records...), nil
}

func (s *stubAnalysisService) LatestReport(ctx context.Context) (*domain.BatchReport, error) {
	report := s.report
	return &report, nil
}

func (s *stubAnalysisService) RunBatch(ctx context.Context, tickers []string) (domain.BatchReport, error) {
	s.runCalls++
	s.lastTickers = append([]string(nil), tickers...)
	return s.report, nil
}

func testServer() (*sdkmcp.Server, *stubAnalysisService) {
	analyzedAt := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)
	records := []domain.AnalysisRecord{{
		Ticker:       "AAPL",
		Sector:       "Technology",
		CurrentPrice: domain.Float(190),
		Valuation: domain.ValuationResult{
			IntrinsicValue: domain.Float(240),
			UpsidePct:      domain.Float(0.263),
			Status:         domain.StatusUndervalued,
			Confidence:     domain.ConfidenceHigh,
		},
		Relative:  domain.RelativeValuationResult{Status: domain.RelativeCheap},
		Technical: domain.TechnicalResult{BandPosition: domain.BandLowerHalf, RSI: 41},
		Signal: domain.Signal{
			Recommendation: "BUY",
			Action:         domain.ActionBuy,
			Conviction:     4,
		},
		AnalyzedAt: analyzedAt,
	}}
	failures := []domain.BatchFailure{{Ticker: "ZZZZ", Error: "no fundamentals data", FailedAt: analyzedAt}}
	svc := &stubAnalysisService{
		records: records,
		report: domain.BatchReport{
			StartedAt:  analyzedAt,
			FinishedAt: analyzedAt.Add(time.Second),
			Failures:   failures,
			Summary:    service.Summarize(records, failures),
		},
	}

	srv := NewServer(nil, svc, svc, ServerConfig{RequestTimeout: time.Second})
	return srv, svc
}

func connectInMemory(ctx context.Context, srv *sdkmcp.Server) (*sdkmcp.ClientSession, context.CancelFunc, error) {
	clientTransport, serverTransport := sdkmcp.NewInMemoryTransports()
	runCtx, cancel := context.WithCancel(ctx)
	go func() { _ = srv.Run(runCtx, serverTransport) }()

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "mcp-test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return session, cancel, nil
}

type authRoundTripper struct {
	token string
	base  http.RoundTripper
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	if t.token != "" {
		clone.Header.Set("Authorization", "Bearer "+t.token)
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

func decodeResourceJSON(result *sdkmcp.ReadResourceResult, out any) error {
	if len(result.Contents) == 0 {
		return nil
	}
	return json.Unmarshal([]byte(result.Contents[0].Text), out)
}
