package tui

import (
	"context"

	"equity-screener/internal/domain"
)

// AnalysisQuerier provides analysis results to the TUI.
type AnalysisQuerier interface {
	ListAnalyses(ctx context.Context, filter domain.AnalysisFilter) ([]domain.AnalysisRecord, error)
	LatestReport(ctx context.Context) (*domain.BatchReport, error)
}

// Services bundles all service dependencies injected into the TUI.
type Services struct {
	Analyses AnalysisQuerier
	Username string
}
