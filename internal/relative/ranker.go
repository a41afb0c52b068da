// Package relative ranks a ticker's valuation multiple against its sector
// peers in the same batch.
package relative

import (
	"fmt"

	"equity-screener/internal/config"
	"equity-screener/internal/domain"
	"equity-screener/internal/numeric"
)

// Multiple names a valuation multiple and how to read it from a snapshot.
type Multiple struct {
	Name  string
	value func(domain.FinancialSnapshot) *float64
}

var (
	ForwardPE = Multiple{Name: "Forward P/E", value: func(s domain.FinancialSnapshot) *float64 { return s.ForwardPE }}
	PriceBook = Multiple{Name: "P/B", value: func(s domain.FinancialSnapshot) *float64 { return s.PriceToBook }}
	EVEBITDA  = Multiple{Name: "EV/EBITDA", value: func(s domain.FinancialSnapshot) *float64 { return s.EVToEBITDA }}
)

var sectorMultiples = map[string]Multiple{
	"Technology":             ForwardPE,
	"Information Technology": ForwardPE,
	"Communication Services": ForwardPE,
	"Financial Services":     PriceBook,
	"Financials":             PriceBook,
	"Real Estate":            PriceBook,
}

// MultipleFor returns the multiple used to compare tickers in sector.
func MultipleFor(sector string) Multiple {
	if m, ok := sectorMultiples[sector]; ok {
		return m
	}
	return EVEBITDA
}

// Batch is a read-only view of every snapshot in one run, grouped by
// sector. Build it once before fanning out.
type Batch struct {
	bySector map[string][]domain.FinancialSnapshot
	size     int
}

func NewBatch(snapshots []domain.FinancialSnapshot) *Batch {
	b := &Batch{bySector: make(map[string][]domain.FinancialSnapshot), size: len(snapshots)}
	for _, s := range snapshots {
		s = s.Sanitize()
		b.bySector[s.Sector] = append(b.bySector[s.Sector], s)
	}
	return b
}

// Len reports the number of snapshots in the batch.
func (b *Batch) Len() int {
	if b == nil {
		return 0
	}
	return b.size
}

// peerValues returns the positive values of m for sector members other
// than ticker.
func (b *Batch) peerValues(sector, ticker string, m Multiple) []float64 {
	if b == nil {
		return nil
	}
	var out []float64
	for _, peer := range b.bySector[sector] {
		if peer.Ticker == ticker {
			continue
		}
		if v := m.value(peer); numeric.Positive(v) {
			out = append(out, *v)
		}
	}
	return out
}

type Ranker struct {
	policy config.RelativePolicy
}

func NewRanker(policy config.Policy) *Ranker {
	return &Ranker{policy: policy.Relative}
}

// Rank places snapshot within its sector peers in batch.
func (r *Ranker) Rank(snapshot domain.FinancialSnapshot, batch *Batch) domain.RelativeValuationResult {
	s := snapshot.Sanitize()
	m := MultipleFor(s.Sector)

	own := m.value(s)
	if !numeric.Positive(own) {
		return domain.RelativeValuationResult{
			MultipleName: m.Name,
			Status:       domain.RelativeNotApplicable,
			Note:         fmt.Sprintf("Missing %s value for %s", m.Name, s.Ticker),
		}
	}

	value := *own
	peers := batch.peerValues(s.Sector, s.Ticker, m)
	if len(peers)+1 < r.policy.MinComparables && m.Name != EVEBITDA.Name {
		fallbackPeers := batch.peerValues(s.Sector, s.Ticker, EVEBITDA)
		if fallback := EVEBITDA.value(s); numeric.Positive(fallback) && len(fallbackPeers) >= r.policy.MinFallbackPeers {
			m, value, peers = EVEBITDA, *fallback, fallbackPeers
		}
	}

	all := append(peers, value)
	median, _ := numeric.Median(all)
	res := domain.RelativeValuationResult{
		MultipleName:  m.Name,
		MultipleValue: domain.Float(numeric.Round(value, 2)),
		SectorMedian:  domain.Float(numeric.Round(median, 2)),
	}

	if len(all) < r.policy.MinComparables {
		res.SectorPercentile = domain.Float(0.5)
		res.Status = domain.RelativeInsufficientPeers
		res.Note = fmt.Sprintf("Only %d tickers in %s sector", len(all), s.Sector)
		return res
	}

	pct := PercentileRank(value, all)
	res.SectorPercentile = domain.Float(numeric.Round(pct, 4))
	switch {
	case pct < r.policy.CheapPercentile:
		res.Status = domain.RelativeCheap
	case pct > r.policy.ExpensivePercentile:
		res.Status = domain.RelativeExpensive
	default:
		res.Status = domain.RelativeInLine
	}
	return res
}

// PeerMedians returns the median EV/EBITDA per sector over values inside the
// configured sanity band. Sectors with too few values are omitted.
func (r *Ranker) PeerMedians(batch *Batch) map[string]float64 {
	out := make(map[string]float64)
	if batch == nil {
		return out
	}
	for sector, members := range batch.bySector {
		var values []float64
		for _, s := range members {
			v := s.EVToEBITDA
			if v != nil && *v > r.policy.PeerMedianMin && *v < r.policy.PeerMedianMax {
				values = append(values, *v)
			}
		}
		if len(values) < r.policy.PeerMedianMinCount {
			continue
		}
		if median, ok := numeric.Median(values); ok {
			out[sector] = median
		}
	}
	return out
}

// PercentileRank is the midrank percentile of value within values: the
// share strictly below plus half the share equal.
func PercentileRank(value float64, values []float64) float64 {
	if len(values) == 0 {
		return 0.5
	}
	var below, equal int
	for _, v := range values {
		switch {
		case v < value:
			below++
		case v == value:
			equal++
		}
	}
	return (float64(below) + 0.5*float64(equal)) / float64(len(values))
}
