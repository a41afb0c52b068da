package domain

import (
	"math"
	"strings"
	"time"
)

// FinancialSnapshot is the fundamentals input for one ticker. Optional
// figures are pointers so an absent value never reads as zero.
type FinancialSnapshot struct {
	Ticker   string `json:"ticker"`
	Sector   string `json:"sector"`
	Industry string `json:"industry"`

	CurrentPrice      *float64 `json:"current_price"`
	MarketCap         *float64 `json:"market_cap"`
	SharesOutstanding *float64 `json:"shares_outstanding"`
	Beta              *float64 `json:"beta"`

	// FreeCashFlow is ordered most recent year first.
	FreeCashFlow  []*float64 `json:"free_cash_flow"`
	EBITDA        *float64   `json:"ebitda"`
	EBITDAMargin  *float64   `json:"ebitda_margin"`
	TotalRevenue  *float64   `json:"total_revenue"`
	RevenueGrowth *float64   `json:"revenue_growth"`

	TotalDebt       *float64 `json:"total_debt"`
	TotalCash       *float64 `json:"total_cash"`
	InterestExpense *float64 `json:"interest_expense"`

	PriceToBook    *float64 `json:"price_to_book"`
	TrailingPE     *float64 `json:"trailing_pe"`
	ForwardPE      *float64 `json:"forward_pe"`
	EVToEBITDA     *float64 `json:"ev_to_ebitda"`
	EVToRevenue    *float64 `json:"enterprise_to_revenue"`
	TrailingEPS    *float64 `json:"trailing_eps"`
	ReturnOnEquity *float64 `json:"return_on_equity"`

	AnalystTargetPrice *float64 `json:"analyst_target_price"`
	NumberOfAnalysts   *int     `json:"number_of_analysts"`

	FetchedAt time.Time `json:"fetched_at"`
}

// Sanitize returns a copy with NaN and infinite figures dropped to absent
// and the ticker normalized.
func (s FinancialSnapshot) Sanitize() FinancialSnapshot {
	out := s
	out.Ticker = NormalizeTicker(s.Ticker)
	out.Sector = strings.TrimSpace(s.Sector)
	out.Industry = strings.TrimSpace(s.Industry)
	for _, f := range []**float64{
		&out.CurrentPrice, &out.MarketCap, &out.SharesOutstanding, &out.Beta,
		&out.EBITDA, &out.EBITDAMargin, &out.TotalRevenue, &out.RevenueGrowth,
		&out.TotalDebt, &out.TotalCash, &out.InterestExpense,
		&out.PriceToBook, &out.TrailingPE, &out.ForwardPE, &out.EVToEBITDA,
		&out.EVToRevenue, &out.TrailingEPS, &out.ReturnOnEquity, &out.AnalystTargetPrice,
	} {
		*f = finiteOrNil(*f)
	}
	if s.FreeCashFlow != nil {
		out.FreeCashFlow = make([]*float64, len(s.FreeCashFlow))
		for i, v := range s.FreeCashFlow {
			out.FreeCashFlow[i] = finiteOrNil(v)
		}
	}
	return out
}

// PriceBar is one daily OHLCV observation.
type PriceBar struct {
	Ticker string    `json:"ticker,omitempty"`
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// TickerInput bundles everything the per-ticker pipeline consumes.
type TickerInput struct {
	Snapshot FinancialSnapshot `json:"snapshot"`
	Prices   []PriceBar        `json:"prices"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Int returns a pointer to v.
func Int(v int) *int {
	return &v
}

// Value dereferences p, returning zero when absent.
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func NormalizeTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

func finiteOrNil(p *float64) *float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return nil
	}
	v := *p
	return &v
}
