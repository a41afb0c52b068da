package domain

import "strings"

type ValuationStatus string

const (
	StatusUndervalued      ValuationStatus = "Undervalued"
	StatusFairValue        ValuationStatus = "Fair Value"
	StatusOvervalued       ValuationStatus = "Overvalued"
	StatusInsufficientData ValuationStatus = "Insufficient Data"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Severity orders confidence levels; higher is worse.
func (c Confidence) Severity() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	default:
		return 2
	}
}

func (c Confidence) IsValid() bool {
	return c == ConfidenceHigh || c == ConfidenceMedium || c == ConfidenceLow
}

type RelativeStatus string

const (
	RelativeCheap             RelativeStatus = "Cheap vs Peers"
	RelativeInLine            RelativeStatus = "In-Line"
	RelativeExpensive         RelativeStatus = "Expensive vs Peers"
	RelativeInsufficientPeers RelativeStatus = "Insufficient Peers"
	RelativeNotApplicable     RelativeStatus = "N/A"
)

type BandPosition string

const (
	BandAboveUpper    BandPosition = "Above Upper"
	BandUpperHalf     BandPosition = "Upper Half"
	BandLowerHalf     BandPosition = "Lower Half"
	BandBelowLower    BandPosition = "Below Lower"
	BandNotApplicable BandPosition = "N/A"
)

// SignalAction is the recommendation without any confidence suffix.
type SignalAction string

const (
	ActionStrongBuy  SignalAction = "STRONG BUY"
	ActionBuy        SignalAction = "BUY"
	ActionHold       SignalAction = "HOLD"
	ActionSell       SignalAction = "SELL"
	ActionStrongSell SignalAction = "STRONG SELL"
)

// LowConfidenceSuffix is appended to a recommendation backed by a
// low-confidence valuation.
const LowConfidenceSuffix = " (Low Confidence)"

// AllActions lists actions from most bullish to most bearish.
var AllActions = []SignalAction{ActionStrongBuy, ActionBuy, ActionHold, ActionSell, ActionStrongSell}

func (a SignalAction) IsValid() bool {
	switch a {
	case ActionStrongBuy, ActionBuy, ActionHold, ActionSell, ActionStrongSell:
		return true
	}
	return false
}

func (a SignalAction) IsBuy() bool {
	return a == ActionBuy || a == ActionStrongBuy
}

func (a SignalAction) IsSell() bool {
	return a == ActionSell || a == ActionStrongSell
}

// ParseAction strips the confidence suffix from a recommendation string.
func ParseAction(recommendation string) SignalAction {
	return SignalAction(strings.TrimSuffix(strings.TrimSpace(recommendation), LowConfidenceSuffix))
}

type ValuationResult struct {
	IntrinsicValue          *float64        `json:"intrinsic_value"`
	BuyPrice                *float64        `json:"buy_price"`
	UpsidePct               *float64        `json:"upside_pct"`
	WACC                    *float64        `json:"wacc"`
	FCFGrowthRate           *float64        `json:"fcf_growth_rate"`
	Status                  ValuationStatus `json:"valuation_status"`
	Confidence              Confidence      `json:"confidence"`
	Note                    string          `json:"dcf_note"`
	TerminalMethod          string          `json:"terminal_method"`
	ExitMultipleUsed        *float64        `json:"exit_multiple_used"`
	ExitMultipleSource      string          `json:"exit_multiple_source"`
	IVExitMultiple          *float64        `json:"iv_exit_multiple"`
	IVPerpetualGrowth       *float64        `json:"iv_perpetual_growth"`
	ImpliedPerpetuityGrowth *float64        `json:"implied_perpetuity_growth"`
	Warning                 string          `json:"valuation_warning"`
}

// Finite reports whether every numeric field is absent or a finite number.
func (v ValuationResult) Finite() bool {
	for _, p := range []*float64{
		v.IntrinsicValue, v.BuyPrice, v.UpsidePct, v.WACC, v.FCFGrowthRate,
		v.ExitMultipleUsed, v.IVExitMultiple, v.IVPerpetualGrowth, v.ImpliedPerpetuityGrowth,
	} {
		if p != nil && finiteOrNil(p) == nil {
			return false
		}
	}
	return true
}

type RelativeValuationResult struct {
	MultipleName     string         `json:"primary_multiple_name"`
	MultipleValue    *float64       `json:"primary_multiple_value"`
	SectorMedian     *float64       `json:"sector_median"`
	SectorPercentile *float64       `json:"sector_percentile"`
	Status           RelativeStatus `json:"relative_status"`
	Note             string         `json:"relative_note"`
}

type TechnicalResult struct {
	CurrentPrice *float64     `json:"current_price"`
	SMA          *float64     `json:"sma_20"`
	UpperBand    *float64     `json:"upper_band"`
	LowerBand    *float64     `json:"lower_band"`
	PercentB     *float64     `json:"percent_b"`
	Bandwidth    *float64     `json:"bandwidth"`
	PriceVsUpper *float64     `json:"price_vs_upper"`
	PriceVsLower *float64     `json:"price_vs_lower"`
	BandPosition BandPosition `json:"band_position"`
	RSI          float64      `json:"rsi"`
	Performance
}

type Performance struct {
	Return1M  *float64 `json:"return_1m"`
	Return6M  *float64 `json:"return_6m"`
	Return1Y  *float64 `json:"return_1y"`
	Return3Y  *float64 `json:"return_3y"`
	StdDev52W *float64 `json:"std_dev_52w"`
	Sharpe52W *float64 `json:"sharpe_52w"`
}

type Signal struct {
	Recommendation string       `json:"signal"`
	Action         SignalAction `json:"action"`
	Conviction     int          `json:"conviction"`
	Rationale      string       `json:"rationale"`
	EntryPrice     *float64     `json:"entry_price"`
	ExitPrice      *float64     `json:"exit_price"`
	TargetPrice    *float64     `json:"target_price"`
}
