package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"equity-screener/internal/domain"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Dashboard message types.
type reportMsg *domain.BatchReport
type reportErrMsg struct{ err error }
type dashTickMsg time.Time

const dashboardRefresh = 30 * time.Second

// DashboardModel shows the signal distribution, confidence counts and top
// buys of the latest run.
type DashboardModel struct {
	services Services
	report   *domain.BatchReport
	loading  bool
	err      error
	width    int
	height   int
}

// NewDashboardModel creates a new dashboard model.
func NewDashboardModel(svc Services) DashboardModel {
	return DashboardModel{
		services: svc,
		loading:  true,
	}
}

// Init fires initial data fetch commands.
func (m DashboardModel) Init() tea.Cmd {
	return tea.Batch(m.fetchReportCmd(), m.tickCmd())
}

// Update handles incoming messages.
func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case reportMsg:
		m.report = (*domain.BatchReport)(msg)
		m.loading = false
		m.err = nil
		return m, nil

	case reportErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case dashTickMsg:
		return m, tea.Batch(m.fetchReportCmd(), m.tickCmd())
	}

	return m, nil
}

// View renders the dashboard.
func (m DashboardModel) View() string {
	if m.loading && m.report == nil {
		return SubtextStyle.Render("Loading latest run...")
	}
	if m.report == nil {
		if m.err != nil {
			return ErrorStyle.Render(fmt.Sprintf("Error: %v", m.err))
		}
		return SubtextStyle.Render("No analysis run yet")
	}

	leftWidth := m.width/2 - 2
	if leftWidth < 40 {
		leftWidth = 40
	}
	rightWidth := m.width - leftWidth - 4
	if rightWidth < 30 {
		rightWidth = 30
	}

	distBox := BorderStyle.Width(leftWidth).Render(m.renderDistribution(leftWidth))
	confBox := BorderStyle.Width(rightWidth).Render(m.renderConfidence(rightWidth))
	topRow := lipgloss.JoinHorizontal(lipgloss.Top, distBox, confBox)

	buysBox := BorderStyle.Width(m.width - 2).Render(m.renderTopBuys())
	return lipgloss.JoinVertical(lipgloss.Left, topRow, buysBox)
}

// SetSize updates the model dimensions.
func (m *DashboardModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// Report returns the loaded report (for testing).
func (m DashboardModel) Report() *domain.BatchReport { return m.report }

func (m DashboardModel) renderDistribution(width int) string {
	s := m.report.Summary
	lines := []string{
		HeaderStyle.Render("  Signal Distribution"),
		SubtextStyle.Render(fmt.Sprintf("  %d analyzed, %d failed", s.Analyzed, s.Failed)),
	}
	barWidth := width - 30
	if barWidth < 10 {
		barWidth = 10
	}
	for _, action := range domain.AllActions {
		lines = append(lines, "  "+RenderCountBar(string(action), s.Distribution[action], s.Analyzed, barWidth, ActionStyle(action)))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderConfidence(width int) string {
	s := m.report.Summary
	lines := []string{HeaderStyle.Render("  Valuation Confidence"), ""}
	barWidth := width - 30
	if barWidth < 10 {
		barWidth = 10
	}
	for _, c := range []domain.Confidence{domain.ConfidenceHigh, domain.ConfidenceMedium, domain.ConfidenceLow} {
		lines = append(lines, "  "+RenderCountBar(string(c), s.Confidence[c], s.Analyzed, barWidth, ConfidenceStyle(c)))
	}
	if !m.report.FinishedAt.IsZero() {
		lines = append(lines, "", SubtextStyle.Render("  Finished "+m.report.FinishedAt.Local().Format(time.RFC822)))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) renderTopBuys() string {
	lines := []string{HeaderStyle.Render("  Top Buys")}
	picks := m.report.Summary.TopBuys
	if len(picks) == 0 {
		lines = append(lines, SubtextStyle.Render("  No buy signals"))
		return strings.Join(lines, "\n")
	}
	for i, p := range picks {
		action := domain.ParseAction(p.Recommendation)
		lines = append(lines, fmt.Sprintf("  %2d. %-6s %s %s  upside %s  at %s",
			i+1, p.Ticker,
			ActionStyle(action).Render(fmt.Sprintf("%-28s", p.Recommendation)),
			convictionDots(p.Conviction),
			upsideStyle(p.UpsidePct).Render(formatPct(p.UpsidePct)),
			formatUSDPtr(p.CurrentPrice),
		))
	}
	return strings.Join(lines, "\n")
}

func (m DashboardModel) fetchReportCmd() tea.Cmd {
	return func() tea.Msg {
		if m.services.Analyses == nil {
			return reportErrMsg{err: fmt.Errorf("analysis service not available")}
		}
		report, err := m.services.Analyses.LatestReport(context.Background())
		if err != nil {
			return reportErrMsg{err: err}
		}
		return reportMsg(report)
	}
}

func (m DashboardModel) tickCmd() tea.Cmd {
	return tea.Tick(dashboardRefresh, func(t time.Time) tea.Msg {
		return dashTickMsg(t)
	})
}
