// Package signal fuses the valuation, peer ranking and technical state of a
// ticker into one recommendation with a conviction score.
package signal

import (
	"fmt"
	"math"
	"strings"

	"equity-screener/internal/config"
	"equity-screener/internal/domain"
)

const (
	baseConviction = 3
	minConviction  = 1
	maxConviction  = 5
)

// bandZone collapses the four band positions into the three columns of the
// decision matrix.
type bandZone int

const (
	zoneBelow bandZone = iota
	zoneBetween
	zoneAbove
)

var decisionMatrix = map[domain.ValuationStatus][3]domain.SignalAction{
	domain.StatusUndervalued:      {domain.ActionStrongBuy, domain.ActionBuy, domain.ActionHold},
	domain.StatusFairValue:        {domain.ActionBuy, domain.ActionHold, domain.ActionSell},
	domain.StatusOvervalued:       {domain.ActionHold, domain.ActionSell, domain.ActionStrongSell},
	domain.StatusInsufficientData: {domain.ActionHold, domain.ActionHold, domain.ActionHold},
}

type Engine struct {
	policy config.SignalPolicy
}

func NewEngine(policy config.Policy) *Engine {
	return &Engine{policy: policy.Signal}
}

// inputs is the flattened view of the three analyses with defaults for
// anything missing.
type inputs struct {
	status       domain.ValuationStatus
	confidence   domain.Confidence
	iv           *float64
	upside       *float64
	relStatus    domain.RelativeStatus
	percentile   *float64
	multipleName string
	band         domain.BandPosition
	price        *float64
	lower        *float64
	upper        *float64
	percentB     *float64
	rsi          *float64
}

func flatten(val *domain.ValuationResult, rel *domain.RelativeValuationResult, tech *domain.TechnicalResult) inputs {
	in := inputs{
		status:       domain.StatusInsufficientData,
		confidence:   domain.ConfidenceMedium,
		relStatus:    domain.RelativeNotApplicable,
		multipleName: "N/A",
		band:         domain.BandNotApplicable,
	}
	if val != nil {
		if val.Status != "" {
			in.status = val.Status
		}
		if val.Confidence != "" {
			in.confidence = val.Confidence
		}
		in.iv = val.IntrinsicValue
		in.upside = val.UpsidePct
	}
	if rel != nil {
		if rel.Status != "" {
			in.relStatus = rel.Status
		}
		if rel.MultipleName != "" {
			in.multipleName = rel.MultipleName
		}
		in.percentile = rel.SectorPercentile
	}
	if tech != nil {
		if tech.BandPosition != "" {
			in.band = tech.BandPosition
		}
		in.price = tech.CurrentPrice
		in.lower = tech.LowerBand
		in.upper = tech.UpperBand
		in.percentB = tech.PercentB
		if !math.IsNaN(tech.RSI) {
			rsi := tech.RSI
			in.rsi = &rsi
		}
	}
	return in
}

// Fuse combines the three analyses. Any nil input is treated as missing.
func (e *Engine) Fuse(val *domain.ValuationResult, rel *domain.RelativeValuationResult, tech *domain.TechnicalResult) domain.Signal {
	in := flatten(val, rel, tech)

	action := e.applyRSI(Lookup(in.status, in.band), in.rsi)
	recommendation := string(action)
	if in.confidence == domain.ConfidenceLow {
		recommendation += domain.LowConfidenceSuffix
	}

	return domain.Signal{
		Recommendation: recommendation,
		Action:         action,
		Conviction:     e.conviction(action, in),
		Rationale:      e.rationale(action, in),
		EntryPrice:     in.lower,
		ExitPrice:      in.upper,
		TargetPrice:    in.iv,
	}
}

// Lookup returns the decision-matrix action for a valuation status and band
// position. Unknown statuses hold; an unknown band counts as between bands.
func Lookup(status domain.ValuationStatus, band domain.BandPosition) domain.SignalAction {
	row, ok := decisionMatrix[status]
	if !ok {
		return domain.ActionHold
	}
	return row[zoneOf(band)]
}

func zoneOf(band domain.BandPosition) bandZone {
	switch band {
	case domain.BandBelowLower:
		return zoneBelow
	case domain.BandAboveUpper:
		return zoneAbove
	default:
		return zoneBetween
	}
}

// applyRSI strengthens a plain BUY or SELL when momentum is stretched in the
// same direction. HOLD is never changed.
func (e *Engine) applyRSI(action domain.SignalAction, rsi *float64) domain.SignalAction {
	if rsi == nil {
		return action
	}
	switch {
	case action == domain.ActionBuy && *rsi < e.policy.RSIOversold:
		return domain.ActionStrongBuy
	case action == domain.ActionSell && *rsi > e.policy.RSIOverbought:
		return domain.ActionStrongSell
	}
	return action
}

func (e *Engine) conviction(action domain.SignalAction, in inputs) int {
	score := baseConviction

	switch in.status {
	case domain.StatusUndervalued:
		score++
	case domain.StatusOvervalued:
		score--
	}

	if in.percentB != nil {
		switch {
		case *in.percentB < e.policy.PercentBLow:
			score++
		case *in.percentB > e.policy.PercentBHigh:
			score--
		}
	}

	if in.rsi != nil {
		switch {
		case action.IsBuy() && *in.rsi < e.policy.RSIOversold:
			score++
		case action.IsSell() && *in.rsi > e.policy.RSIOverbought:
			score++
		}
	}

	switch in.relStatus {
	case domain.RelativeCheap:
		score++
	case domain.RelativeExpensive:
		score--
	}

	return max(minConviction, min(maxConviction, score))
}

func (e *Engine) rationale(action domain.SignalAction, in inputs) string {
	parts := []string{string(action) + ":"}

	switch {
	case in.iv != nil && in.price != nil && in.upside != nil:
		direction := "above"
		if *in.upside > 0 {
			direction = "below"
		}
		parts = append(parts, fmt.Sprintf("Trading %.0f%% %s intrinsic value ($%.2f vs $%.2f).",
			math.Abs(*in.upside)*100, direction, *in.price, *in.iv))
	case in.status != domain.StatusInsufficientData:
		parts = append(parts, fmt.Sprintf("Valuation: %s.", in.status))
	}

	if in.lower != nil && in.upper != nil {
		switch in.band {
		case domain.BandBelowLower:
			parts = append(parts, fmt.Sprintf("Price near lower Bollinger Band ($%.2f).", *in.lower))
		case domain.BandAboveUpper:
			parts = append(parts, fmt.Sprintf("Price near upper Bollinger Band ($%.2f).", *in.upper))
		default:
			parts = append(parts, fmt.Sprintf("Price between Bollinger Bands ($%.2f-$%.2f).", *in.lower, *in.upper))
		}
	}

	if in.rsi != nil {
		switch {
		case *in.rsi < e.policy.RSIOversold:
			parts = append(parts, fmt.Sprintf("RSI oversold at %.0f.", *in.rsi))
		case *in.rsi > e.policy.RSIOverbought:
			parts = append(parts, fmt.Sprintf("RSI overbought at %.0f.", *in.rsi))
		default:
			parts = append(parts, fmt.Sprintf("RSI at %.0f.", *in.rsi))
		}
	}

	switch {
	case in.relStatus == domain.RelativeCheap && in.percentile != nil:
		parts = append(parts, fmt.Sprintf("Cheap vs sector peers (%.0fth percentile %s).", *in.percentile*100, in.multipleName))
	case in.relStatus == domain.RelativeExpensive && in.percentile != nil:
		parts = append(parts, fmt.Sprintf("Expensive vs sector peers (%.0fth percentile %s).", *in.percentile*100, in.multipleName))
	case in.relStatus == domain.RelativeInLine:
		parts = append(parts, "In-line with sector peers.")
	}

	return strings.Join(parts, " ")
}
