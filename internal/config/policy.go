package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidPolicy = errors.New("invalid policy")

// Policy holds every coefficient the analytical engines use. Engines keep
// their own clone, so a Policy is never mutated after construction.
type Policy struct {
	Discount   DiscountPolicy        `toml:"discount"`
	Growth     GrowthPolicy          `toml:"growth"`
	DCF        DCFPolicy             `toml:"dcf"`
	Exit       ExitMultiplePolicy    `toml:"exit_multiples"`
	Revenue    RevenueMultiplePolicy `toml:"revenue_multiples"`
	Analyst    AnalystPolicy         `toml:"analyst"`
	Financials FinancialsPolicy      `toml:"financials"`
	Technical  TechnicalPolicy       `toml:"technical"`
	Signal     SignalPolicy          `toml:"signal"`
	Relative   RelativePolicy        `toml:"relative"`
}

type DiscountPolicy struct {
	RiskFreeRate        float64            `toml:"risk_free_rate"`
	EquityRiskPremium   float64            `toml:"equity_risk_premium"`
	TerminalGrowthRate  float64            `toml:"terminal_growth_rate"`
	DefaultWACC         float64            `toml:"default_wacc"`
	WACCFloor           float64            `toml:"wacc_floor"`
	WACCCap             float64            `toml:"wacc_cap"`
	DefaultBeta         float64            `toml:"default_beta"`
	BetaFloor           float64            `toml:"beta_floor"`
	BetaCap             float64            `toml:"beta_cap"`
	TaxRate             float64            `toml:"tax_rate"`
	DebtSpread          float64            `toml:"debt_spread"`
	CostOfDebtFloor     float64            `toml:"cost_of_debt_floor"`
	CostOfDebtCap       float64            `toml:"cost_of_debt_cap"`
	MinWACCGrowthSpread float64            `toml:"min_wacc_growth_spread"`
	IndustryWACCFloors  map[string]float64 `toml:"industry_wacc_floors"`
}

type GrowthPolicy struct {
	Floor                float64 `toml:"floor"`
	Cap                  float64 `toml:"cap"`
	Default              float64 `toml:"default"`
	DecayStep            float64 `toml:"decay_step"`
	DecayFloor           float64 `toml:"decay_floor"`
	ProxyMargin          float64 `toml:"proxy_margin"`
	ProxyGrowthFactor    float64 `toml:"proxy_growth_factor"`
	ProxyGrowthFloor     float64 `toml:"proxy_growth_floor"`
	MaxImpliedGrowthRate float64 `toml:"max_implied_growth_rate"`
	// SectorCaps is keyed by lower-case sector name.
	SectorCaps map[string]float64 `toml:"sector_caps"`
}

type DCFPolicy struct {
	ProjectionYears int          `toml:"projection_years"`
	MarginOfSafety  float64      `toml:"margin_of_safety"`
	IVCapMultiplier float64      `toml:"iv_cap_multiplier"`
	IVFloor         float64      `toml:"iv_floor"`
	MinEBITDAMargin float64      `toml:"min_ebitda_margin"`
	BlendExitWeight BlendWeights `toml:"blend_exit_weight"`
}

// BlendWeights is the exit-multiple share of a blended value per confidence
// level; the perpetuity method takes the remainder.
type BlendWeights struct {
	High   float64 `toml:"high"`
	Medium float64 `toml:"medium"`
	Low    float64 `toml:"low"`
}

type ExitMultiplePolicy struct {
	Default        float64            `toml:"default"`
	Floor          float64            `toml:"floor"`
	Cap            float64            `toml:"cap"`
	TickerMin      float64            `toml:"ticker_min"`
	TickerMax      float64            `toml:"ticker_max"`
	Sector         map[string]float64 `toml:"sector"`
	Industry       map[string]float64 `toml:"industry"`
	IndustryFloors map[string]float64 `toml:"industry_floors"`
}

type RevenueMultiplePolicy struct {
	Default  float64            `toml:"default"`
	Floor    float64            `toml:"floor"`
	Cap      float64            `toml:"cap"`
	Sector   map[string]float64 `toml:"sector"`
	Industry map[string]float64 `toml:"industry"`
}

type AnalystPolicy struct {
	MinAnalysts  int     `toml:"min_analysts"`
	MaxDeviation float64 `toml:"max_deviation"`
	CapMultiple  float64 `toml:"cap_multiple"`
}

type FinancialsPolicy struct {
	AssetLightTickers []string `toml:"asset_light_tickers"`
	AssetLightROE     float64  `toml:"asset_light_roe"`
	AssetLightPB      float64  `toml:"asset_light_pb"`
	PBSanityMin       float64  `toml:"pb_sanity_min"`
	PBSanityMax       float64  `toml:"pb_sanity_max"`
	BankFairPBFloor   float64  `toml:"bank_fair_pb_floor"`
	BankFairPBCap     float64  `toml:"bank_fair_pb_cap"`
	BankFallbackPB    float64  `toml:"bank_fallback_pb"`
	BankCheapRatio    float64  `toml:"bank_cheap_ratio"`
	BankRichRatio     float64  `toml:"bank_rich_ratio"`
	REITFairPB        float64  `toml:"reit_fair_pb"`
	REITCheapPB       float64  `toml:"reit_cheap_pb"`
	REITRichPB        float64  `toml:"reit_rich_pb"`
}

type TechnicalPolicy struct {
	BollingerWindow    int     `toml:"bollinger_window"`
	BollingerStdDev    float64 `toml:"bollinger_std_dev"`
	RSIPeriod          int     `toml:"rsi_period"`
	Return1MDays       int     `toml:"return_1m_days"`
	Return6MDays       int     `toml:"return_6m_days"`
	Return1YDays       int     `toml:"return_1y_days"`
	Return3YDays       int     `toml:"return_3y_days"`
	VolatilityWindow   int     `toml:"volatility_window"`
	TradingDaysPerYear int     `toml:"trading_days_per_year"`
}

type SignalPolicy struct {
	RSIOversold        float64 `toml:"rsi_oversold"`
	RSIOverbought      float64 `toml:"rsi_overbought"`
	PercentBLow        float64 `toml:"percent_b_low"`
	PercentBHigh       float64 `toml:"percent_b_high"`
	StrongBuyUpside    float64 `toml:"strong_buy_upside"`
	BuyUpside          float64 `toml:"buy_upside"`
	SellDownside       float64 `toml:"sell_downside"`
	StrongSellDownside float64 `toml:"strong_sell_downside"`
}

type RelativePolicy struct {
	CheapPercentile     float64 `toml:"cheap_percentile"`
	ExpensivePercentile float64 `toml:"expensive_percentile"`
	MinComparables      int     `toml:"min_comparables"`
	MinFallbackPeers    int     `toml:"min_fallback_peers"`
	PeerMedianMin       float64 `toml:"peer_median_min"`
	PeerMedianMax       float64 `toml:"peer_median_max"`
	PeerMedianMinCount  int     `toml:"peer_median_min_count"`
}

// DefaultPolicy returns the built-in coefficient set.
func DefaultPolicy() Policy {
	return Policy{
		Discount: DiscountPolicy{
			RiskFreeRate:        0.043,
			EquityRiskPremium:   0.055,
			TerminalGrowthRate:  0.025,
			DefaultWACC:         0.10,
			WACCFloor:           0.06,
			WACCCap:             0.20,
			DefaultBeta:         1.0,
			BetaFloor:           0.5,
			BetaCap:             2.5,
			TaxRate:             0.21,
			DebtSpread:          0.015,
			CostOfDebtFloor:     0.01,
			CostOfDebtCap:       0.15,
			MinWACCGrowthSpread: 0.03,
			IndustryWACCFloors: map[string]float64{
				"Biotechnology": 0.12,
				"Drug Manufacturers - Specialty & Generic": 0.10,
				"Airlines":            0.14,
				"Travel Services":     0.12,
				"Oil & Gas E&P":       0.11,
				"Oil & Gas Midstream": 0.09,
			},
		},
		Growth: GrowthPolicy{
			Floor:                -0.05,
			Cap:                  0.25,
			Default:              0.05,
			DecayStep:            0.1,
			DecayFloor:           0.1,
			ProxyMargin:          0.05,
			ProxyGrowthFactor:    0.5,
			ProxyGrowthFloor:     0.02,
			MaxImpliedGrowthRate: 0.04,
			SectorCaps: map[string]float64{
				"utilities":          0.10,
				"energy":             0.10,
				"consumer staples":   0.12,
				"consumer defensive": 0.12,
			},
		},
		DCF: DCFPolicy{
			ProjectionYears: 5,
			MarginOfSafety:  0.25,
			IVCapMultiplier: 2.0,
			IVFloor:         0.0,
			MinEBITDAMargin: 0.02,
			BlendExitWeight: BlendWeights{High: 0.6, Medium: 0.5, Low: 0.4},
		},
		Exit: ExitMultiplePolicy{
			Default:   12.0,
			Floor:     8.0,
			Cap:       25.0,
			TickerMin: 1.0,
			TickerMax: 100.0,
			Sector: map[string]float64{
				"Technology":             20.0,
				"Information Technology": 20.0,
				"Communication Services": 14.0,
				"Healthcare":             15.0,
				"Consumer Discretionary": 14.0,
				"Consumer Cyclical":      14.0,
				"Consumer Staples":       14.0,
				"Consumer Defensive":     14.0,
				"Industrials":            12.0,
				"Materials":              10.0,
				"Basic Materials":        10.0,
				"Energy":                 8.0,
				"Utilities":              10.0,
				"Real Estate":            16.0,
				"Financial Services":     10.0,
				"Financials":             10.0,
			},
			Industry: map[string]float64{
				"Aerospace & Defense":              15.0,
				"Airlines":                         6.0,
				"Biotechnology":                    12.0,
				"Credit Services":                  22.0,
				"Financial Data & Stock Exchanges": 22.0,
			},
			IndustryFloors: map[string]float64{
				"Airlines": 6.0,
			},
		},
		Revenue: RevenueMultiplePolicy{
			Default: 2.0,
			Floor:   1.0,
			Cap:     10.0,
			Sector: map[string]float64{
				"Technology":             6.0,
				"Information Technology": 6.0,
				"Communication Services": 3.0,
				"Healthcare":             4.0,
				"Consumer Discretionary": 1.5,
				"Consumer Cyclical":      1.5,
				"Consumer Staples":       1.5,
				"Consumer Defensive":     1.5,
				"Industrials":            1.5,
				"Materials":              1.0,
				"Basic Materials":        1.0,
				"Energy":                 1.0,
				"Utilities":              1.5,
				"Real Estate":            4.0,
			},
			Industry: map[string]float64{
				"Biotechnology": 6.0,
				"Drug Manufacturers - Specialty & Generic": 4.0,
			},
		},
		Analyst: AnalystPolicy{
			MinAnalysts:  5,
			MaxDeviation: 3.0,
			CapMultiple:  2.0,
		},
		Financials: FinancialsPolicy{
			AssetLightTickers: []string{
				"V", "MA", "PYPL", "SPGI", "MCO", "MSCI", "FDS",
				"ICE", "NDAQ", "CBOE", "FIS", "FISV", "GPN",
			},
			AssetLightROE:   0.25,
			AssetLightPB:    5.0,
			PBSanityMin:     0.05,
			PBSanityMax:     200,
			BankFairPBFloor: 0.5,
			BankFairPBCap:   4.0,
			BankFallbackPB:  1.5,
			BankCheapRatio:  0.75,
			BankRichRatio:   1.5,
			REITFairPB:      1.5,
			REITCheapPB:     1.0,
			REITRichPB:      2.5,
		},
		Technical: TechnicalPolicy{
			BollingerWindow:    20,
			BollingerStdDev:    2.0,
			RSIPeriod:          14,
			Return1MDays:       21,
			Return6MDays:       126,
			Return1YDays:       252,
			Return3YDays:       756,
			VolatilityWindow:   252,
			TradingDaysPerYear: 252,
		},
		Signal: SignalPolicy{
			RSIOversold:        30,
			RSIOverbought:      70,
			PercentBLow:        0.2,
			PercentBHigh:       0.8,
			StrongBuyUpside:    0.30,
			BuyUpside:          0.15,
			SellDownside:       -0.10,
			StrongSellDownside: -0.25,
		},
		Relative: RelativePolicy{
			CheapPercentile:     0.30,
			ExpensivePercentile: 0.70,
			MinComparables:      3,
			MinFallbackPeers:    2,
			PeerMedianMin:       1.0,
			PeerMedianMax:       100.0,
			PeerMedianMinCount:  3,
		},
	}
}

// LoadPolicy layers an optional TOML file over DefaultPolicy.
func LoadPolicy(path string) (Policy, error) {
	p := DefaultPolicy()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &p); err != nil {
		return Policy{}, fmt.Errorf("parse policy file %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return Policy{}, err
	}
	return p.Clone(), nil
}

// Validate rejects coefficient sets the engines cannot honour.
func (p Policy) Validate() error {
	d := p.Discount
	switch {
	case d.WACCFloor <= 0 || d.WACCCap <= d.WACCFloor:
		return fmt.Errorf("%w: wacc bounds [%v, %v]", ErrInvalidPolicy, d.WACCFloor, d.WACCCap)
	case d.BetaFloor < 0 || d.BetaCap < d.BetaFloor:
		return fmt.Errorf("%w: beta bounds [%v, %v]", ErrInvalidPolicy, d.BetaFloor, d.BetaCap)
	case d.CostOfDebtFloor < 0 || d.CostOfDebtCap < d.CostOfDebtFloor:
		return fmt.Errorf("%w: cost of debt bounds [%v, %v]", ErrInvalidPolicy, d.CostOfDebtFloor, d.CostOfDebtCap)
	case d.TaxRate < 0 || d.TaxRate >= 1:
		return fmt.Errorf("%w: tax rate %v", ErrInvalidPolicy, d.TaxRate)
	}
	if p.Growth.Cap < p.Growth.Floor {
		return fmt.Errorf("%w: growth bounds [%v, %v]", ErrInvalidPolicy, p.Growth.Floor, p.Growth.Cap)
	}
	if p.DCF.ProjectionYears <= 0 {
		return fmt.Errorf("%w: projection years %d", ErrInvalidPolicy, p.DCF.ProjectionYears)
	}
	if p.DCF.MarginOfSafety < 0 || p.DCF.MarginOfSafety >= 1 {
		return fmt.Errorf("%w: margin of safety %v", ErrInvalidPolicy, p.DCF.MarginOfSafety)
	}
	if p.DCF.IVCapMultiplier <= 0 {
		return fmt.Errorf("%w: iv cap multiplier %v", ErrInvalidPolicy, p.DCF.IVCapMultiplier)
	}
	for name, w := range map[string]float64{
		"high": p.DCF.BlendExitWeight.High, "medium": p.DCF.BlendExitWeight.Medium, "low": p.DCF.BlendExitWeight.Low,
	} {
		if w < 0 || w > 1 {
			return fmt.Errorf("%w: blend weight %s=%v", ErrInvalidPolicy, name, w)
		}
	}
	if p.Exit.Floor <= 0 || p.Exit.Cap < p.Exit.Floor {
		return fmt.Errorf("%w: exit multiple bounds [%v, %v]", ErrInvalidPolicy, p.Exit.Floor, p.Exit.Cap)
	}
	if p.Revenue.Floor <= 0 || p.Revenue.Cap < p.Revenue.Floor {
		return fmt.Errorf("%w: revenue multiple bounds [%v, %v]", ErrInvalidPolicy, p.Revenue.Floor, p.Revenue.Cap)
	}
	t := p.Technical
	if t.BollingerWindow < 2 || t.RSIPeriod < 1 || t.VolatilityWindow < 2 || t.TradingDaysPerYear <= 0 {
		return fmt.Errorf("%w: technical windows %+v", ErrInvalidPolicy, t)
	}
	r := p.Relative
	if r.CheapPercentile < 0 || r.ExpensivePercentile > 1 || r.CheapPercentile > r.ExpensivePercentile {
		return fmt.Errorf("%w: percentile thresholds [%v, %v]", ErrInvalidPolicy, r.CheapPercentile, r.ExpensivePercentile)
	}
	if r.MinComparables < 1 || r.PeerMedianMinCount < 1 {
		return fmt.Errorf("%w: peer counts %d/%d", ErrInvalidPolicy, r.MinComparables, r.PeerMedianMinCount)
	}
	return nil
}

// Clone returns a deep copy whose tables share no memory with p.
func (p Policy) Clone() Policy {
	out := p
	out.Discount.IndustryWACCFloors = maps.Clone(p.Discount.IndustryWACCFloors)
	out.Growth.SectorCaps = maps.Clone(p.Growth.SectorCaps)
	out.Exit.Sector = maps.Clone(p.Exit.Sector)
	out.Exit.Industry = maps.Clone(p.Exit.Industry)
	out.Exit.IndustryFloors = maps.Clone(p.Exit.IndustryFloors)
	out.Revenue.Sector = maps.Clone(p.Revenue.Sector)
	out.Revenue.Industry = maps.Clone(p.Revenue.Industry)
	out.Financials.AssetLightTickers = slices.Clone(p.Financials.AssetLightTickers)
	return out
}
