package valuation

import (
	"math"

	"equity-screener/internal/domain"
	"equity-screener/internal/numeric"
)

func (e *Engine) cappedBeta(beta *float64) float64 {
	d := e.policy.Discount
	if beta == nil {
		return d.DefaultBeta
	}
	return numeric.Clamp(*beta, d.BetaFloor, d.BetaCap)
}

// costOfEquity is the CAPM rate for the snapshot's bounded beta.
func (e *Engine) costOfEquity(beta *float64) float64 {
	d := e.policy.Discount
	return d.RiskFreeRate + e.cappedBeta(beta)*d.EquityRiskPremium
}

// afterTaxCostOfDebt uses interest over debt when both are reported and
// falls back to the risk-free rate plus a credit spread.
func (e *Engine) afterTaxCostOfDebt(s domain.FinancialSnapshot) float64 {
	d := e.policy.Discount
	interest := domain.Value(s.InterestExpense)
	debt := domain.Value(s.TotalDebt)
	if interest == 0 || debt <= 0 {
		return d.RiskFreeRate + d.DebtSpread
	}
	pretax := numeric.Clamp(math.Abs(interest)/debt, d.CostOfDebtFloor, d.CostOfDebtCap)
	return pretax * (1 - d.TaxRate)
}

// wacc weights equity and debt by market value, then applies the industry
// floor and the global bounds. A negative debt figure counts as no debt.
func (e *Engine) wacc(s domain.FinancialSnapshot) float64 {
	d := e.policy.Discount
	rate := d.DefaultWACC
	if numeric.Positive(s.MarketCap) {
		mcap := *s.MarketCap
		debt := math.Max(domain.Value(s.TotalDebt), 0)
		total := mcap + debt
		rate = mcap/total*e.costOfEquity(s.Beta) + debt/total*e.afterTaxCostOfDebt(s)
	}
	if !numeric.Finite(rate) {
		rate = d.DefaultWACC
	}
	if floor, ok := d.IndustryWACCFloors[s.Industry]; ok {
		rate = math.Max(rate, floor)
	}
	return numeric.Clamp(rate, d.WACCFloor, d.WACCCap)
}
