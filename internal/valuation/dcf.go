package valuation

import (
	"fmt"
	"math"

	"equity-screener/internal/domain"
	"equity-screener/internal/numeric"
)

// dcf runs the two-method discounted cash flow for an operating company.
// Shares outstanding have already been checked.
func (e *Engine) dcf(s domain.FinancialSnapshot, peerMedian *float64) domain.ValuationResult {
	p := e.policy
	var a assessment
	e.checkEarningsQuality(s, &a)

	basis, note, ok := e.cashFlow(s)
	if !ok {
		e.logf("valuation: %s: %s", s.Ticker, note)
		return insufficient(note)
	}
	a.add(basis.confidence, basis.reason, "")

	shares := *s.SharesOutstanding
	debt := math.Max(domain.Value(s.TotalDebt), 0)
	cash := math.Max(domain.Value(s.TotalCash), 0)
	years := p.DCF.ProjectionYears

	projected := e.project(basis.base, basis.growth)
	fcfN := projected[years-1]
	rate := e.wacc(s)

	in := multipleInput{snapshot: s, peerMedian: peerMedian}
	multiple, source := e.exitChain.resolve(in)
	baseEBITDA := e.baseEBITDA(s)

	var tvExit float64
	switch {
	case baseEBITDA != nil && *baseEBITDA > 0:
		ebitda := e.project(*baseEBITDA, basis.growth)
		tvExit = ebitda[years-1] * multiple
	case numeric.Positive(s.TotalRevenue) && (baseEBITDA == nil || *baseEBITDA < 0):
		revMultiple, revSource := e.revenueChain.resolve(in)
		revenue := e.project(*s.TotalRevenue, basis.growth)
		tvExit = revenue[years-1] * revMultiple
		multiple = revMultiple
		source = fmt.Sprintf("EV/Revenue (%s)", revSource)
		e.logf("valuation: %s: negative EBITDA, using EV/Revenue x%.1f", s.Ticker, revMultiple)
	default:
		tvExit = fcfN * multiple
		e.logf("valuation: %s: EBITDA unavailable, applying exit multiple to FCF", s.Ticker)
	}

	var tvPerp *float64
	terminalGrowth := p.Discount.TerminalGrowthRate
	if spread := rate - terminalGrowth; spread >= p.Discount.MinWACCGrowthSpread {
		tvPerp = domain.Float(fcfN * (1 + terminalGrowth) / spread)
	} else {
		e.logf("valuation: %s: WACC-g spread below %.2f, perpetuity method skipped", s.Ticker, p.Discount.MinWACCGrowthSpread)
	}

	var implied *float64
	var warning string
	if denom := tvExit + fcfN; tvExit > 0 && denom != 0 {
		g := (tvExit*rate - fcfN) / denom
		implied = &g
		if g > p.Growth.MaxImpliedGrowthRate {
			warning = fmt.Sprintf(warnImpliedFormat, g*100, p.Growth.MaxImpliedGrowthRate*100)
			e.logf("valuation: %s: %s", s.Ticker, warning)
		}
	}

	var pvFCF float64
	for i, fcf := range projected {
		pvFCF += fcf / math.Pow(1+rate, float64(i+1))
	}
	discount := math.Pow(1+rate, float64(years))
	perShare := func(terminal float64) float64 {
		return (pvFCF + terminal/discount - debt + cash) / shares
	}

	ivExit := perShare(tvExit)
	var ivPerp *float64
	if tvPerp != nil {
		if v := perShare(*tvPerp); v >= 0 {
			ivPerp = &v
		}
	}

	iv := ivExit
	method := methodExitOnly
	if ivPerp != nil && *ivPerp > 0 && ivExit > 0 && implied != nil && *implied > p.Growth.MaxImpliedGrowthRate {
		w := e.blendWeight(a.level())
		iv = w*ivExit + (1-w)**ivPerp
		a.add(domain.ConfidenceMedium, reasonBlend, "")
		method = methodBlended
		e.logf("valuation: %s: blending terminal methods, implied growth %.1f%%", s.Ticker, *implied*100)
	}

	if iv < p.DCF.IVFloor {
		iv = p.DCF.IVFloor
		a.add(domain.ConfidenceLow, reasonFloor, "")
	}

	price := domain.Value(s.CurrentPrice)
	iv = e.capAtPrice(iv, price, &a)
	if ivPerp != nil && price > 0 {
		capped := math.Min(*ivPerp, price*p.DCF.IVCapMultiplier)
		ivPerp = &capped
	}
	ivExit = math.Max(ivExit, p.DCF.IVFloor)

	iv = e.capAtConsensus(iv, s, &a)

	buy := 0.0
	if iv > 0 {
		buy = iv * (1 - p.DCF.MarginOfSafety)
	}
	var upside *float64
	if price > 0 && iv > 0 {
		upside = domain.Float((iv - price) / price)
	}

	return domain.ValuationResult{
		IntrinsicValue:          domain.Float(numeric.Round(iv, 2)),
		BuyPrice:                domain.Float(numeric.Round(buy, 2)),
		UpsidePct:               numeric.RoundPtr(upside, 4),
		WACC:                    domain.Float(numeric.Round(rate, 4)),
		FCFGrowthRate:           domain.Float(numeric.Round(basis.growth, 4)),
		Status:                  e.status(upside),
		Confidence:              a.level(),
		Note:                    a.note(),
		TerminalMethod:          method,
		ExitMultipleUsed:        domain.Float(numeric.Round(multiple, 2)),
		ExitMultipleSource:      source,
		IVExitMultiple:          domain.Float(numeric.Round(ivExit, 2)),
		IVPerpetualGrowth:       numeric.RoundPtr(ivPerp, 2),
		ImpliedPerpetuityGrowth: numeric.RoundPtr(implied, 4),
		Warning:                 warning,
	}
}

// checkEarningsQuality records at most one Low downgrade for negative EPS
// or a non-positive or thin EBITDA margin.
func (e *Engine) checkEarningsQuality(s domain.FinancialSnapshot, a *assessment) {
	margin := s.EBITDAMargin
	switch {
	case s.TrailingEPS != nil && *s.TrailingEPS < 0:
		a.add(domain.ConfidenceLow, reasonEarnings, fmt.Sprintf("Negative trailing EPS ($%.2f)", *s.TrailingEPS))
	case margin != nil && *margin <= 0:
		a.add(domain.ConfidenceLow, reasonEarnings, fmt.Sprintf("Non-positive EBITDA margin (%.1f%%)", *margin*100))
	case margin != nil && *margin < e.policy.DCF.MinEBITDAMargin:
		a.add(domain.ConfidenceLow, reasonEarnings, fmt.Sprintf("Thin EBITDA margin (%.1f%%)", *margin*100))
	}
}

// baseEBITDA prefers the reported figure, then revenue times margin, then
// enterprise value over the EV/EBITDA multiple.
func (e *Engine) baseEBITDA(s domain.FinancialSnapshot) *float64 {
	usable := func(v *float64) bool { return v != nil && *v >= 0 }

	ebitda := s.EBITDA
	if !usable(ebitda) && numeric.Positive(s.TotalRevenue) && numeric.Positive(s.EBITDAMargin) {
		ebitda = domain.Float(*s.TotalRevenue * *s.EBITDAMargin)
	}
	if !usable(ebitda) && s.EVToEBITDA != nil && *s.EVToEBITDA > 1 && numeric.Positive(s.MarketCap) {
		ev := *s.MarketCap + domain.Value(s.TotalDebt)
		ebitda = domain.Float(ev / *s.EVToEBITDA)
	}
	return ebitda
}

func (e *Engine) blendWeight(c domain.Confidence) float64 {
	w := e.policy.DCF.BlendExitWeight
	switch c {
	case domain.ConfidenceHigh:
		return w.High
	case domain.ConfidenceMedium:
		return w.Medium
	default:
		return w.Low
	}
}

// capAtConsensus limits iv when it sits far above a well-covered analyst
// target.
func (e *Engine) capAtConsensus(iv float64, s domain.FinancialSnapshot, a *assessment) float64 {
	ap := e.policy.Analyst
	target := s.AnalystTargetPrice
	count := s.NumberOfAnalysts
	if !numeric.Positive(target) || count == nil || *count < ap.MinAnalysts {
		return iv
	}
	if iv <= *target*ap.MaxDeviation {
		return iv
	}
	a.add(domain.ConfidenceLow, reasonAnalystCap, fmt.Sprintf(noteAnalystFormat, *target, *count))
	return *target * ap.CapMultiple
}

func (e *Engine) status(upside *float64) domain.ValuationStatus {
	switch {
	case upside == nil:
		return domain.StatusInsufficientData
	case *upside > e.policy.DCF.MarginOfSafety:
		return domain.StatusUndervalued
	case *upside < e.policy.Signal.SellDownside:
		return domain.StatusOvervalued
	default:
		return domain.StatusFairValue
	}
}
