package mcp

import (
	"context"

	"equity-screener/internal/domain"
)

// AnalysisReader exposes read operations over stored analysis results.
type AnalysisReader interface {
	GetAnalysis(ctx context.Context, ticker string) (*domain.AnalysisRecord, error)
	ListAnalyses(ctx context.Context, filter domain.AnalysisFilter) ([]domain.AnalysisRecord, error)
	LatestReport(ctx context.Context) (*domain.BatchReport, error)
}

// BatchRunner runs the analysis pipeline over stored snapshots.
type BatchRunner interface {
	RunBatch(ctx context.Context, tickers []string) (domain.BatchReport, error)
}
