package service

import (
	"cmp"
	"slices"

	"equity-screener/internal/domain"
)

const topBuysLimit = 10

// Summarize counts signals and valuation confidence over records and picks
// the strongest buy-side names: conviction first, then upside, both
// descending.
func Summarize(records []domain.AnalysisRecord, failures []domain.BatchFailure) domain.Summary {
	sum := domain.Summary{
		Analyzed:     len(records),
		Failed:       len(failures),
		Distribution: make(map[domain.SignalAction]int, len(domain.AllActions)),
		Confidence: map[domain.Confidence]int{
			domain.ConfidenceHigh:   0,
			domain.ConfidenceMedium: 0,
			domain.ConfidenceLow:    0,
		},
		TopBuys: []domain.TopPick{},
	}
	for _, a := range domain.AllActions {
		sum.Distribution[a] = 0
	}

	buys := make([]domain.AnalysisRecord, 0, len(records))
	for _, rec := range records {
		action := domain.ParseAction(rec.Signal.Recommendation)
		if !action.IsValid() {
			action = domain.ActionHold
		}
		sum.Distribution[action]++
		if rec.Valuation.Confidence.IsValid() {
			sum.Confidence[rec.Valuation.Confidence]++
		}
		if action.IsBuy() {
			buys = append(buys, rec)
		}
	}

	slices.SortStableFunc(buys, func(x, y domain.AnalysisRecord) int {
		if c := cmp.Compare(y.Signal.Conviction, x.Signal.Conviction); c != 0 {
			return c
		}
		return cmp.Compare(domain.Value(y.Valuation.UpsidePct), domain.Value(x.Valuation.UpsidePct))
	})
	for _, rec := range buys[:min(len(buys), topBuysLimit)] {
		sum.TopBuys = append(sum.TopBuys, domain.TopPick{
			Ticker:         rec.Ticker,
			Recommendation: rec.Signal.Recommendation,
			Conviction:     rec.Signal.Conviction,
			UpsidePct:      rec.Valuation.UpsidePct,
			CurrentPrice:   rec.CurrentPrice,
		})
	}
	return sum
}
