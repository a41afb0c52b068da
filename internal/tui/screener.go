package tui

import (
	"context"
	"fmt"
	"strings"

	"equity-screener/internal/domain"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Screener message types.
type screenerMsg []domain.AnalysisRecord
type screenerErrMsg struct{ err error }

const screenerLimit = 200

var (
	signalOptions     = append([]string{"ALL"}, actionNames()...)
	confidenceOptions = []string{"ALL", "High", "Medium", "Low"}
	sectorOptions     = []string{
		"ALL", "Technology", "Financial Services", "Healthcare", "Consumer Cyclical",
		"Consumer Defensive", "Communication Services", "Industrials", "Energy",
		"Basic Materials", "Real Estate", "Utilities",
	}
)

func actionNames() []string {
	out := make([]string, len(domain.AllActions))
	for i, a := range domain.AllActions {
		out[i] = string(a)
	}
	return out
}

// ScreenerModel lists analyses with signal, confidence and sector filters
// and shows the detail of the selected row.
type ScreenerModel struct {
	services      Services
	records       []domain.AnalysisRecord
	signalIdx     int
	confidenceIdx int
	sectorIdx     int
	cursor        int
	scrollOffset  int
	loading       bool
	err           error
	width         int
	height        int
}

// NewScreenerModel creates a new screener model.
func NewScreenerModel(svc Services) ScreenerModel {
	return ScreenerModel{
		services: svc,
		loading:  true,
	}
}

// Init fires initial fetch.
func (m ScreenerModel) Init() tea.Cmd {
	return m.fetchRecordsCmd()
}

// Update handles incoming messages.
func (m ScreenerModel) Update(msg tea.Msg) (ScreenerModel, tea.Cmd) {
	switch msg := msg.(type) {
	case screenerMsg:
		m.records = []domain.AnalysisRecord(msg)
		m.loading = false
		m.cursor = 0
		m.scrollOffset = 0
		m.err = nil
		return m, nil

	case screenerErrMsg:
		m.err = msg.err
		m.loading = false
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, DefaultKeyMap.FilterSignal):
			m.signalIdx = (m.signalIdx + 1) % len(signalOptions)
			m.loading = true
			return m, m.fetchRecordsCmd()

		case key.Matches(msg, DefaultKeyMap.FilterConfidence):
			m.confidenceIdx = (m.confidenceIdx + 1) % len(confidenceOptions)
			m.loading = true
			return m, m.fetchRecordsCmd()

		case key.Matches(msg, DefaultKeyMap.FilterSector):
			m.sectorIdx = (m.sectorIdx + 1) % len(sectorOptions)
			m.loading = true
			return m, m.fetchRecordsCmd()

		case key.Matches(msg, DefaultKeyMap.Refresh):
			m.loading = true
			return m, m.fetchRecordsCmd()

		case key.Matches(msg, DefaultKeyMap.Down):
			if m.cursor < len(m.records)-1 {
				m.cursor++
			}
			if m.cursor >= m.scrollOffset+m.visibleRows() {
				m.scrollOffset = m.cursor - m.visibleRows() + 1
			}
			return m, nil

		case key.Matches(msg, DefaultKeyMap.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			if m.cursor < m.scrollOffset {
				m.scrollOffset = m.cursor
			}
			return m, nil
		}
	}

	return m, nil
}

// View renders the screener.
func (m ScreenerModel) View() string {
	var sections []string

	sections = append(sections, HeaderStyle.Render("  Screener"))
	sections = append(sections, "")
	sections = append(sections, m.renderFilters())
	sections = append(sections, SubtextStyle.Render(strings.Repeat("─", max(m.width-2, 10))))

	if m.loading {
		sections = append(sections, SubtextStyle.Render("  Loading..."))
		return strings.Join(sections, "\n")
	}

	if m.err != nil {
		sections = append(sections, ErrorStyle.Render(fmt.Sprintf("  Error: %v", m.err)))
		return strings.Join(sections, "\n")
	}

	if len(m.records) == 0 {
		sections = append(sections, SubtextStyle.Render("  No analyses match the current filters"))
		return strings.Join(sections, "\n")
	}

	sections = append(sections, SubtextStyle.Render(
		fmt.Sprintf("    %-6s %-12s %-5s %10s %10s  %8s  %-7s %-18s %-11s",
			"Ticker", "Signal", "Conv", "Price", "IV", "Upside", "Conf", "Peers", "Band"),
	))

	end := m.scrollOffset + m.visibleRows()
	if end > len(m.records) {
		end = len(m.records)
	}
	for i := m.scrollOffset; i < end; i++ {
		row := FormatRecordRow(m.records[i])
		if i == m.cursor {
			sections = append(sections, SelectedStyle.Render("> "+row))
		} else {
			sections = append(sections, "  "+row)
		}
	}

	if len(m.records) > m.visibleRows() {
		sections = append(sections, SubtextStyle.Render(
			fmt.Sprintf("  Showing %d-%d of %d (j/k to move)", m.scrollOffset+1, end, len(m.records)),
		))
	}

	sections = append(sections, "")
	sections = append(sections, RenderRecordDetail(m.records[m.cursor]))

	sections = append(sections, "")
	sections = append(sections, SubtextStyle.Render("  [s] signal  [c] confidence  [x] sector  [R] refresh  [j/k] move  * low confidence"))

	return strings.Join(sections, "\n")
}

// SetSize updates the model dimensions.
func (m *ScreenerModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// FilterState returns current filter indices (for testing).
func (m ScreenerModel) FilterState() (signalIdx, confidenceIdx, sectorIdx int) {
	return m.signalIdx, m.confidenceIdx, m.sectorIdx
}

// RecordCount returns the number of loaded records (for testing).
func (m ScreenerModel) RecordCount() int { return len(m.records) }

func (m ScreenerModel) renderFilters() string {
	signalChip := m.renderChip("Signal", signalOptions, m.signalIdx)
	confChip := m.renderChip("Conf", confidenceOptions, m.confidenceIdx)
	sectorChip := SubtextStyle.Render("Sector: ") + ActiveTabStyle.Render(sectorOptions[m.sectorIdx])
	return "  " + lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, signalChip, "  ", confChip),
		sectorChip,
	)
}

func (m ScreenerModel) renderChip(label string, options []string, active int) string {
	var parts []string
	parts = append(parts, SubtextStyle.Render(label+": "))
	for i, opt := range options {
		display := strings.ToUpper(opt)
		if i == active {
			parts = append(parts, ActiveTabStyle.Render(display))
		} else {
			parts = append(parts, SubtextStyle.Render(display))
		}
		parts = append(parts, " ")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m ScreenerModel) buildFilter() domain.AnalysisFilter {
	filter := domain.AnalysisFilter{Limit: screenerLimit}

	if m.signalIdx > 0 && m.signalIdx < len(signalOptions) {
		filter.Action = domain.SignalAction(signalOptions[m.signalIdx])
	}
	if m.confidenceIdx > 0 && m.confidenceIdx < len(confidenceOptions) {
		filter.Confidence = domain.Confidence(confidenceOptions[m.confidenceIdx])
	}
	if m.sectorIdx > 0 && m.sectorIdx < len(sectorOptions) {
		filter.Sector = sectorOptions[m.sectorIdx]
	}
	return filter
}

func (m ScreenerModel) fetchRecordsCmd() tea.Cmd {
	filter := m.buildFilter()
	return func() tea.Msg {
		if m.services.Analyses == nil {
			return screenerErrMsg{err: fmt.Errorf("analysis service not available")}
		}
		records, err := m.services.Analyses.ListAnalyses(context.Background(), filter)
		if err != nil {
			return screenerErrMsg{err: err}
		}
		return screenerMsg(records)
	}
}

func (m ScreenerModel) visibleRows() int {
	// header, filters, table header, detail pane and help footer
	available := m.height - 20
	if available < 5 {
		return 5
	}
	return available
}
