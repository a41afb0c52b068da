package tui

import (
	"errors"
	"strings"
	"testing"

	"equity-screener/internal/domain"
)

func testReport() *domain.BatchReport {
	return &domain.BatchReport{
		Failures: []domain.BatchFailure{{Ticker: "ZZZZ", Error: "no fundamentals data"}},
		Summary: domain.Summary{
			Analyzed:     4,
			Failed:       1,
			Distribution: map[domain.SignalAction]int{domain.ActionStrongBuy: 1, domain.ActionBuy: 1, domain.ActionHold: 2},
			Confidence:   map[domain.Confidence]int{domain.ConfidenceHigh: 3, domain.ConfidenceLow: 1},
			TopBuys: []domain.TopPick{
				{Ticker: "NVDA", Recommendation: "STRONG BUY", Conviction: 5, UpsidePct: domain.Float(0.45), CurrentPrice: domain.Float(120)},
			},
		},
	}
}

func TestDashboardUpdateReportMsg(t *testing.T) {
	m := NewDashboardModel(testServices())
	m.SetSize(120, 40)

	updated, _ := m.Update(reportMsg(testReport()))
	if updated.Report() == nil || updated.Report().Summary.Analyzed != 4 {
		t.Fatalf("unexpected report %+v", updated.Report())
	}
}

func TestDashboardKeepsReportOnError(t *testing.T) {
	m := NewDashboardModel(testServices())
	m.SetSize(120, 40)

	updated, _ := m.Update(reportMsg(testReport()))
	updated, _ = updated.Update(reportErrMsg{err: errors.New("redis down")})
	if updated.Report() == nil {
		t.Fatal("expected previous report to be kept")
	}
	if !strings.Contains(updated.View(), "Top Buys") {
		t.Fatal("expected report view despite refresh error")
	}
}

func TestDashboardViewEmpty(t *testing.T) {
	m := NewDashboardModel(testServices())
	m.SetSize(120, 40)
	m.loading = false

	view := m.View()
	if !strings.Contains(view, "No analysis run yet") {
		t.Fatalf("unexpected empty view: %q", view)
	}
}

func TestDashboardViewWithData(t *testing.T) {
	m := NewDashboardModel(testServices())
	m.SetSize(120, 40)
	m.report = testReport()
	m.loading = false

	view := m.View()
	for _, want := range []string{"Signal Distribution", "Valuation Confidence", "NVDA", "+45.0%"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected %q in dashboard view", want)
		}
	}
}
