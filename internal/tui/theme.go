package tui

import (
	"equity-screener/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

var (
	// Tab bar styles
	TabStyle       = lipgloss.NewStyle().Padding(0, 2)
	ActiveTabStyle = TabStyle.Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))
	InactiveTabStyle = TabStyle.
				Foreground(lipgloss.Color("#888888"))

	// Upside colors
	UpsideUpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	UpsideDownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	UpsideNAStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	// Signal action colors
	StrongBuyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Bold(true)
	BuyStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("#7CFC00"))
	HoldStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	SellStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF8C00"))
	StrongSellStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true)

	// Confidence colors
	ConfidenceHighStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00"))
	ConfidenceMedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFF00"))
	ConfidenceLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))

	// General styles
	HeaderStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA"))
	SubtextStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	BorderStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#555555"))
	ErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	SelectedStyle = lipgloss.NewStyle().Background(lipgloss.Color("#3C3C5C"))
)

// ActionStyle returns the color used for a signal action.
func ActionStyle(action domain.SignalAction) lipgloss.Style {
	switch action {
	case domain.ActionStrongBuy:
		return StrongBuyStyle
	case domain.ActionBuy:
		return BuyStyle
	case domain.ActionSell:
		return SellStyle
	case domain.ActionStrongSell:
		return StrongSellStyle
	default:
		return HoldStyle
	}
}

// ConfidenceStyle returns the color used for a valuation confidence.
func ConfidenceStyle(c domain.Confidence) lipgloss.Style {
	switch c {
	case domain.ConfidenceHigh:
		return ConfidenceHighStyle
	case domain.ConfidenceMedium:
		return ConfidenceMedStyle
	default:
		return ConfidenceLowStyle
	}
}
