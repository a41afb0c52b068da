package tui

import (
	"fmt"
	"math"
	"strings"

	"equity-screener/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

// FormatRecordRow renders an analysis record as a single table line.
func FormatRecordRow(rec domain.AnalysisRecord) string {
	action := domain.ParseAction(rec.Signal.Recommendation)
	label := string(action)
	if strings.HasSuffix(rec.Signal.Recommendation, domain.LowConfidenceSuffix) {
		label += "*"
	}

	return fmt.Sprintf("%-6s %s %s %10s %10s  %s  %s %-18s %-11s",
		rec.Ticker,
		ActionStyle(action).Render(fmt.Sprintf("%-12s", label)),
		convictionDots(rec.Signal.Conviction),
		formatUSDPtr(rec.CurrentPrice),
		formatUSDPtr(rec.Valuation.IntrinsicValue),
		upsideStyle(rec.Valuation.UpsidePct).Render(fmt.Sprintf("%8s", formatPct(rec.Valuation.UpsidePct))),
		ConfidenceStyle(rec.Valuation.Confidence).Render(fmt.Sprintf("%-7s", rec.Valuation.Confidence)),
		truncateText(string(rec.Relative.Status), 18),
		truncateText(string(rec.Technical.BandPosition), 11),
	)
}

// RenderRecordDetail renders the valuation, relative and technical blocks
// of one record.
func RenderRecordDetail(rec domain.AnalysisRecord) string {
	v := rec.Valuation
	t := rec.Technical
	lines := []string{
		HeaderStyle.Render(fmt.Sprintf("  %s  %s / %s", rec.Ticker, rec.Sector, rec.Industry)),
		fmt.Sprintf("  Signal: %s  conviction %d/5", ActionStyle(domain.ParseAction(rec.Signal.Recommendation)).Render(rec.Signal.Recommendation), rec.Signal.Conviction),
		fmt.Sprintf("  IV %s (buy %s)  WACC %s  growth %s  %s via %s",
			formatUSDPtr(v.IntrinsicValue), formatUSDPtr(v.BuyPrice), formatRatio(v.WACC), formatRatio(v.FCFGrowthRate), v.Status, v.TerminalMethod),
		fmt.Sprintf("  %s %s vs sector median %s (pct %s)  %s",
			rec.Relative.MultipleName, formatNum(rec.Relative.MultipleValue), formatNum(rec.Relative.SectorMedian), formatNum(rec.Relative.SectorPercentile), rec.Relative.Status),
		fmt.Sprintf("  RSI %.1f  %%B %s  bands %s / %s  1Y %s  Sharpe %s",
			t.RSI, formatNum(t.PercentB), formatUSDPtr(t.LowerBand), formatUSDPtr(t.UpperBand), formatRatio(t.Return1Y), formatNum(t.Sharpe52W)),
	}
	if rec.Signal.Rationale != "" {
		lines = append(lines, SubtextStyle.Render("  "+rec.Signal.Rationale))
	}
	for _, note := range []string{v.Note, v.Warning, rec.Relative.Note} {
		if note != "" {
			lines = append(lines, SubtextStyle.Render("  "+note))
		}
	}
	return strings.Join(lines, "\n")
}

// RenderCountBar renders an ASCII bar for count out of total.
func RenderCountBar(label string, count, total, barWidth int, style lipgloss.Style) string {
	if barWidth <= 0 {
		barWidth = 20
	}
	share := 0.0
	if total > 0 {
		share = float64(count) / float64(total)
	}
	filled := int(math.Round(share * float64(barWidth)))
	if filled > barWidth {
		filled = barWidth
	}
	empty := barWidth - filled

	bar := style.Render(strings.Repeat("█", filled)) + SubtextStyle.Render(strings.Repeat("░", empty))
	return fmt.Sprintf("%-12s %s %4d (%.0f%%)", label, bar, count, share*100)
}

func convictionDots(n int) string {
	if n < 0 {
		n = 0
	}
	if n > 5 {
		n = 5
	}
	return strings.Repeat("●", n) + strings.Repeat("○", 5-n)
}

func upsideStyle(p *float64) lipgloss.Style {
	switch {
	case p == nil:
		return UpsideNAStyle
	case *p > 0:
		return UpsideUpStyle
	case *p < 0:
		return UpsideDownStyle
	default:
		return UpsideNAStyle
	}
}

func formatUSDPtr(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return formatUSD(*p)
}

func formatUSD(v float64) string {
	if v >= 1000 {
		return "$" + addCommas(fmt.Sprintf("%.0f", v))
	}
	return fmt.Sprintf("$%.2f", v)
}

func addCommas(s string) string {
	n := len(s)
	if n <= 3 {
		return s
	}
	var result strings.Builder
	for i, ch := range s {
		if i > 0 && (n-i)%3 == 0 {
			result.WriteByte(',')
		}
		result.WriteRune(ch)
	}
	return result.String()
}

func formatPct(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprintf("%+.1f%%", *p*100)
}

func formatRatio(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.1f%%", *p*100)
}

func formatNum(p *float64) string {
	if p == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *p)
}

func truncateText(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
