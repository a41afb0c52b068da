// Package valuation estimates per-share intrinsic value from a fundamentals
// snapshot. Operating companies go through a two-method DCF; banks and REITs
// are valued off book value.
package valuation

import (
	"log"
	"strings"

	"equity-screener/internal/config"
	"equity-screener/internal/domain"
	"equity-screener/internal/numeric"
)

const (
	methodExitOnly = "Exit Multiple Only"
	methodBlended  = "Blended (Exit+Perp)"
)

const (
	noteMissingShares  = "Shares outstanding missing or zero, cannot calculate per-share value"
	notePBUnreliable   = "P/B ratio unavailable or unreliable"
	noteNoCashFlow     = "No FCF or revenue data available"
	noteNegativeFCF    = "All FCF values negative, no revenue data for proxy"
	noteInternalError  = "Valuation failed on malformed input"
	noteNonFinite      = "Valuation produced a non-finite figure"
	noteREIT           = "REIT: DCF skipped, using P/B-based valuation (FFO unavailable)"
	noteBankFormat     = "Financial sector: using ROE-adjusted P/B (fair P/B=%.2f)"
	notePriceCapFormat = "Intrinsic value capped at %.0fx current price (model limitation)"
	noteAnalystFormat  = "IV capped by analyst consensus (target=$%.2f, %d analysts)"
	warnImpliedFormat  = "Implied growth rate (%.1f%%) exceeds GDP growth ceiling (%.0f%%)"
)

// Engine values single tickers. It is immutable after construction and safe
// for concurrent use.
type Engine struct {
	policy       config.Policy
	assetLight   map[string]struct{}
	exitChain    chain
	revenueChain chain
	logf         func(format string, args ...any)
}

// NewEngine clones policy so later changes to the caller's copy are not
// observed. A nil logf logs through the standard logger.
func NewEngine(policy config.Policy, logf func(format string, args ...any)) *Engine {
	if logf == nil {
		logf = log.Printf
	}
	p := policy.Clone()
	e := &Engine{
		policy:     p,
		assetLight: make(map[string]struct{}, len(p.Financials.AssetLightTickers)),
		logf:       logf,
	}
	for _, t := range p.Financials.AssetLightTickers {
		e.assetLight[domain.NormalizeTicker(t)] = struct{}{}
	}
	e.exitChain = e.newExitChain()
	e.revenueChain = e.newRevenueChain()
	return e
}

// Value returns the valuation for snapshot. peerMedian is the sector peer
// EV/EBITDA median when one is known. Value never panics; malformed input
// yields an Insufficient Data result.
func (e *Engine) Value(snapshot domain.FinancialSnapshot, peerMedian *float64) (res domain.ValuationResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logf("valuation: %s: recovered from panic: %v", snapshot.Ticker, r)
			res = insufficient(noteInternalError)
		}
	}()

	s := snapshot.Sanitize()
	if peerMedian != nil && !numeric.Finite(*peerMedian) {
		peerMedian = nil
	}

	res = e.route(s, peerMedian)
	if !res.Finite() {
		e.logf("valuation: %s: non-finite result discarded", s.Ticker)
		return insufficient(noteNonFinite)
	}
	return res
}

func (e *Engine) route(s domain.FinancialSnapshot, peerMedian *float64) domain.ValuationResult {
	switch {
	case isREIT(s.Sector):
		e.logf("valuation: %s: REIT, skipping DCF", s.Ticker)
		return e.reit(s)
	case isFinancial(s.Sector) && !e.isAssetLight(s):
		e.logf("valuation: %s: financial sector, skipping DCF", s.Ticker)
		return e.bank(s)
	case isFinancial(s.Sector):
		e.logf("valuation: %s: asset-light financial, using DCF", s.Ticker)
	}

	if !numeric.Positive(s.SharesOutstanding) {
		e.logf("valuation: %s: shares outstanding missing or zero", s.Ticker)
		return insufficient(noteMissingShares)
	}
	return e.dcf(s, peerMedian)
}

func insufficient(note string) domain.ValuationResult {
	return domain.ValuationResult{
		Status:     domain.StatusInsufficientData,
		Confidence: domain.ConfidenceLow,
		Note:       note,
	}
}

func isFinancial(sector string) bool {
	switch strings.ToLower(sector) {
	case "financial services", "financials":
		return true
	}
	return false
}

func isREIT(sector string) bool {
	return strings.EqualFold(sector, "real estate")
}

// isAssetLight reports whether a financial-sector ticker earns on intangibles
// rather than its balance sheet and should be valued by DCF.
func (e *Engine) isAssetLight(s domain.FinancialSnapshot) bool {
	if _, ok := e.assetLight[s.Ticker]; ok {
		return true
	}
	if s.ReturnOnEquity == nil || s.PriceToBook == nil {
		return false
	}
	f := e.policy.Financials
	return *s.ReturnOnEquity > f.AssetLightROE && *s.PriceToBook > f.AssetLightPB
}
