package valuation

import (
	"equity-screener/internal/domain"
	"equity-screener/internal/numeric"
)

// multipleInput is what a fallback rule may look at.
type multipleInput struct {
	snapshot   domain.FinancialSnapshot
	peerMedian *float64
}

// rule is one step of a fallback chain. value reports false when the rule
// does not apply; bound, when set, clamps the value it produced.
type rule struct {
	name  string
	value func(in multipleInput) (float64, bool)
	bound func(in multipleInput, v float64) float64
}

type chain []rule

// resolve returns the first applicable rule's value and its name. The last
// rule of every chain always applies.
func (c chain) resolve(in multipleInput) (float64, string) {
	for _, r := range c {
		v, ok := r.value(in)
		if !ok {
			continue
		}
		if r.bound != nil {
			v = r.bound(in, v)
		}
		return v, r.name
	}
	return 0, ""
}

func lookup(table map[string]float64, key string) (float64, bool) {
	v, ok := table[key]
	return v, ok
}

func (e *Engine) newExitChain() chain {
	p := e.policy.Exit
	clamp := func(in multipleInput, v float64) float64 {
		floor, ok := p.IndustryFloors[in.snapshot.Industry]
		if !ok {
			floor = p.Floor
		}
		return numeric.Clamp(v, floor, p.Cap)
	}
	tickerMultiple := func(in multipleInput) (float64, bool) {
		v := in.snapshot.EVToEBITDA
		if v == nil || *v <= p.TickerMin || *v >= p.TickerMax {
			return 0, false
		}
		return *v, true
	}
	blendWith := func(table map[string]float64, key func(domain.FinancialSnapshot) string) func(multipleInput) (float64, bool) {
		return func(in multipleInput) (float64, bool) {
			own, ok := tickerMultiple(in)
			if !ok {
				return 0, false
			}
			def, ok := lookup(table, key(in.snapshot))
			if !ok {
				return 0, false
			}
			return (own + def) / 2, true
		}
	}
	industry := func(s domain.FinancialSnapshot) string { return s.Industry }
	sector := func(s domain.FinancialSnapshot) string { return s.Sector }

	return chain{
		{name: "Sector Peer Median", bound: clamp, value: func(in multipleInput) (float64, bool) {
			if !numeric.Positive(in.peerMedian) {
				return 0, false
			}
			return *in.peerMedian, true
		}},
		{name: "Blended (Ticker + Industry)", bound: clamp, value: blendWith(p.Industry, industry)},
		{name: "Blended (Ticker + Sector)", bound: clamp, value: blendWith(p.Sector, sector)},
		{name: "Ticker EV/EBITDA", bound: clamp, value: tickerMultiple},
		{name: "Industry Default", bound: clamp, value: func(in multipleInput) (float64, bool) {
			return lookup(p.Industry, in.snapshot.Industry)
		}},
		{name: "Sector Default", bound: clamp, value: func(in multipleInput) (float64, bool) {
			return lookup(p.Sector, in.snapshot.Sector)
		}},
		{name: "Global Default", value: func(multipleInput) (float64, bool) {
			return p.Default, true
		}},
	}
}

func (e *Engine) newRevenueChain() chain {
	p := e.policy.Revenue
	return chain{
		{
			name: "Company EV/Revenue",
			value: func(in multipleInput) (float64, bool) {
				if !numeric.Positive(in.snapshot.EVToRevenue) {
					return 0, false
				}
				return *in.snapshot.EVToRevenue, true
			},
			bound: func(_ multipleInput, v float64) float64 {
				return numeric.Clamp(v, p.Floor, p.Cap)
			},
		},
		{name: "Industry Revenue Default", value: func(in multipleInput) (float64, bool) {
			return lookup(p.Industry, in.snapshot.Industry)
		}},
		{name: "Sector Revenue Default", value: func(in multipleInput) (float64, bool) {
			return lookup(p.Sector, in.snapshot.Sector)
		}},
		{name: "Global Revenue Default", value: func(multipleInput) (float64, bool) {
			return p.Default, true
		}},
	}
}

// ExitMultiple resolves the terminal EV/EBITDA multiple and the name of the
// rule that produced it.
func (e *Engine) ExitMultiple(s domain.FinancialSnapshot, peerMedian *float64) (float64, string) {
	return e.exitChain.resolve(multipleInput{snapshot: s.Sanitize(), peerMedian: peerMedian})
}

// RevenueMultiple resolves the EV/Revenue multiple used when EBITDA is
// unusable.
func (e *Engine) RevenueMultiple(s domain.FinancialSnapshot) (float64, string) {
	return e.revenueChain.resolve(multipleInput{snapshot: s.Sanitize()})
}
