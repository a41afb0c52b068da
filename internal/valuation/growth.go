package valuation

import (
	"math"
	"strings"

	"equity-screener/internal/domain"
	"equity-screener/internal/numeric"
)

// cashFlowBasis is the starting free cash flow and growth rate for the
// projection, with the confidence the history supports.
type cashFlowBasis struct {
	base       float64
	growth     float64
	confidence domain.Confidence
	reason     reason
}

// cashFlow picks the base FCF and growth. When the history is empty or
// entirely negative it falls back to a revenue or market-cap proxy. The
// bool is false, with an explanatory note, when neither is possible.
func (e *Engine) cashFlow(s domain.FinancialSnapshot) (cashFlowBasis, string, bool) {
	history := make([]float64, 0, len(s.FreeCashFlow))
	for _, v := range s.FreeCashFlow {
		if v != nil {
			history = append(history, *v)
		}
	}

	if len(history) == 0 {
		if basis, ok := e.proxyBasis(s); ok {
			e.logf("valuation: %s: no FCF data, using proxy", s.Ticker)
			return basis, "", true
		}
		return cashFlowBasis{}, noteNoCashFlow, false
	}

	if allNegative(history) {
		if basis, ok := e.proxyBasis(s); ok {
			e.logf("valuation: %s: all FCF negative, using proxy", s.Ticker)
			return basis, "", true
		}
		return cashFlowBasis{}, noteNegativeFCF, false
	}

	g := e.policy.Growth
	growth := numeric.Clamp(e.historicalGrowth(history), g.Floor, g.Cap)
	if limit, ok := g.SectorCaps[strings.ToLower(s.Sector)]; ok {
		growth = math.Min(growth, limit)
	}
	return cashFlowBasis{
		base:       history[0],
		growth:     growth,
		confidence: historyConfidence(history, s.Beta),
		reason:     reasonHistory,
	}, "", true
}

// proxyBasis estimates FCF as a thin margin on revenue, or on market cap
// when revenue is unavailable. Both need a known revenue growth rate.
func (e *Engine) proxyBasis(s domain.FinancialSnapshot) (cashFlowBasis, bool) {
	g := e.policy.Growth
	if s.RevenueGrowth == nil {
		return cashFlowBasis{}, false
	}
	var base float64
	switch {
	case numeric.Positive(s.TotalRevenue):
		base = *s.TotalRevenue * g.ProxyMargin
	case numeric.Positive(s.MarketCap):
		base = *s.MarketCap * g.ProxyMargin
	default:
		return cashFlowBasis{}, false
	}
	growth := math.Max(*s.RevenueGrowth*g.ProxyGrowthFactor, g.ProxyGrowthFloor)
	return cashFlowBasis{
		base:       base,
		growth:     numeric.Clamp(growth, g.Floor, g.Cap),
		confidence: domain.ConfidenceLow,
		reason:     reasonProxy,
	}, true
}

// historicalGrowth is the CAGR between the oldest and newest years when both
// are positive, otherwise the simple relative change.
func (e *Engine) historicalGrowth(history []float64) float64 {
	n := len(history)
	newest, oldest := history[0], history[n-1]
	switch {
	case n >= 2 && newest > 0 && oldest > 0:
		return math.Pow(newest/oldest, 1/float64(n-1)) - 1
	case n >= 2 && oldest != 0:
		return (newest - oldest) / math.Abs(oldest)
	default:
		return e.policy.Growth.Default
	}
}

func historyConfidence(history []float64, beta *float64) domain.Confidence {
	positive, negative := true, false
	for _, v := range history {
		if v <= 0 {
			positive = false
		}
		if v < 0 {
			negative = true
		}
	}
	switch {
	case len(history) >= 3 && positive && beta != nil && *beta != 0:
		return domain.ConfidenceHigh
	case len(history) < 3 || negative:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceHigh
	}
}

func allNegative(values []float64) bool {
	for _, v := range values {
		if v >= 0 {
			return false
		}
	}
	return true
}

// project compounds base over the projection horizon with a growth rate that
// decays each year down to a floor.
func (e *Engine) project(base, growth float64) []float64 {
	d := e.policy.DCF
	g := e.policy.Growth
	out := make([]float64, d.ProjectionYears)
	prev := base
	for year := 1; year <= d.ProjectionYears; year++ {
		decay := math.Max(1-g.DecayStep*float64(year), g.DecayFloor)
		prev *= 1 + growth*decay
		out[year-1] = prev
	}
	return out
}
