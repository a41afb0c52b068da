// Package technical derives Bollinger, RSI and volatility readings from a
// daily price series.
package technical

import (
	"math"
	"sort"

	"equity-screener/internal/config"
	"equity-screener/internal/domain"
	"equity-screener/internal/numeric"

	"gonum.org/v1/gonum/stat"
)

const neutralRSI = 50.0

// Engine computes price-only indicators for one ticker. It holds no state
// beyond its policy and is safe for concurrent use.
type Engine struct {
	policy       config.TechnicalPolicy
	riskFreeRate float64
}

func NewEngine(policy config.Policy) *Engine {
	return &Engine{
		policy:       policy.Technical,
		riskFreeRate: policy.Discount.RiskFreeRate,
	}
}

// Analyze returns Bollinger state, RSI and trailing performance for bars.
func (e *Engine) Analyze(bars []domain.PriceBar) domain.TechnicalResult {
	closes := extractCloses(normalizeBars(bars))
	res := e.Bollinger(closes)
	res.RSI = e.RSI(closes)
	res.Performance = e.Performance(closes)
	return res
}

// Bollinger evaluates the bands on the most recent window of closes.
func (e *Engine) Bollinger(closes []float64) domain.TechnicalResult {
	res := domain.TechnicalResult{BandPosition: domain.BandNotApplicable, RSI: neutralRSI}
	window := e.policy.BollingerWindow
	if len(closes) < window {
		return res
	}

	current := closes[len(closes)-1]
	sma, std := stat.MeanStdDev(closes[len(closes)-window:], nil)
	upper := sma + e.policy.BollingerStdDev*std
	lower := sma - e.policy.BollingerStdDev*std

	percentB := 0.5
	if upper != lower {
		percentB = (current - lower) / (upper - lower)
	}

	res.CurrentPrice = domain.Float(numeric.Round(current, 2))
	res.SMA = domain.Float(numeric.Round(sma, 2))
	res.UpperBand = domain.Float(numeric.Round(upper, 2))
	res.LowerBand = domain.Float(numeric.Round(lower, 2))
	res.PercentB = domain.Float(numeric.Round(percentB, 4))
	if sma != 0 {
		res.Bandwidth = domain.Float(numeric.Round((upper-lower)/sma, 4))
	}
	if upper != 0 {
		res.PriceVsUpper = domain.Float(numeric.Round((current-upper)/upper, 4))
	}
	if lower != 0 {
		res.PriceVsLower = domain.Float(numeric.Round((current-lower)/lower, 4))
	}
	res.BandPosition = bandPosition(percentB)
	return res
}

func bandPosition(percentB float64) domain.BandPosition {
	switch {
	case percentB > 1:
		return domain.BandAboveUpper
	case percentB >= 0.5:
		return domain.BandUpperHalf
	case percentB >= 0:
		return domain.BandLowerHalf
	default:
		return domain.BandBelowLower
	}
}

// RSI returns the latest Wilder-smoothed RSI, or 50 when there are not
// enough closes to seed the averages.
func (e *Engine) RSI(closes []float64) float64 {
	period := e.policy.RSIPeriod
	if len(closes) < period+1 {
		return neutralRSI
	}

	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		avgGain = (avgGain*float64(period-1) + math.Max(delta, 0)) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + math.Max(-delta, 0)) / float64(period)
	}
	return rsiFromAvg(avgGain, avgLoss)
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	if avgGain == 0 {
		return 0
	}
	rs := avgGain / avgLoss
	return numeric.Round(100-(100/(1+rs)), 2)
}

// Performance returns trailing simple returns, annualised volatility and
// the Sharpe ratio over the trailing year.
func (e *Engine) Performance(closes []float64) domain.Performance {
	var perf domain.Performance
	n := len(closes)
	if n == 0 {
		return perf
	}

	perf.Return1M = e.trailingReturn(closes, e.policy.Return1MDays)
	perf.Return6M = e.trailingReturn(closes, e.policy.Return6MDays)
	perf.Return1Y = e.trailingReturn(closes, e.policy.Return1YDays)
	perf.Return3Y = e.trailingReturn(closes, e.policy.Return3YDays)

	window := e.policy.VolatilityWindow
	if n < window+1 {
		return perf
	}
	returns := dailyReturns(closes[n-window-1:])
	if len(returns) < 2 {
		return perf
	}
	annualized := stat.StdDev(returns, nil) * math.Sqrt(float64(e.policy.TradingDaysPerYear))
	if !numeric.Finite(annualized) {
		return perf
	}
	perf.StdDev52W = domain.Float(numeric.Round(annualized, 4))
	if perf.Return1Y != nil && annualized > 0 {
		perf.Sharpe52W = domain.Float(numeric.Round((*perf.Return1Y-e.riskFreeRate)/annualized, 2))
	}
	return perf
}

func (e *Engine) trailingReturn(closes []float64, days int) *float64 {
	n := len(closes)
	if days <= 0 || n <= days {
		return nil
	}
	past := closes[n-1-days]
	if past <= 0 {
		return nil
	}
	return domain.Float(numeric.Round((closes[n-1]-past)/past, 4))
}

func dailyReturns(closes []float64) []float64 {
	out := make([]float64, 0, len(closes))
	for i := 1; i < len(closes); i++ {
		if closes[i-1] == 0 {
			continue
		}
		out = append(out, closes[i]/closes[i-1]-1)
	}
	return out
}

// normalizeBars drops bars without a usable close and orders the rest by
// date.
func normalizeBars(in []domain.PriceBar) []domain.PriceBar {
	out := make([]domain.PriceBar, 0, len(in))
	for _, b := range in {
		if !numeric.Finite(b.Close) {
			continue
		}
		out = append(out, b)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func extractCloses(bars []domain.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
