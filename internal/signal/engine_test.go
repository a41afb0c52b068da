package signal

import (
	"strings"
	"testing"

	"equity-screener/internal/config"
	"equity-screener/internal/domain"
)

func newTestEngine() *Engine {
	return NewEngine(config.DefaultPolicy())
}

func valuation(status domain.ValuationStatus, iv, upside *float64, confidence domain.Confidence) *domain.ValuationResult {
	return &domain.ValuationResult{Status: status, IntrinsicValue: iv, UpsidePct: upside, Confidence: confidence}
}

func peers(status domain.RelativeStatus, percentile float64) *domain.RelativeValuationResult {
	return &domain.RelativeValuationResult{
		MultipleName:     "EV/EBITDA",
		MultipleValue:    domain.Float(15),
		SectorMedian:     domain.Float(14),
		SectorPercentile: domain.Float(percentile),
		Status:           status,
	}
}

func technical(position domain.BandPosition, rsi float64, percentB *float64) *domain.TechnicalResult {
	return &domain.TechnicalResult{
		CurrentPrice: domain.Float(200),
		SMA:          domain.Float(195),
		UpperBand:    domain.Float(210),
		LowerBand:    domain.Float(180),
		PercentB:     percentB,
		BandPosition: position,
		RSI:          rsi,
	}
}

func undervalued() *domain.ValuationResult {
	return valuation(domain.StatusUndervalued, domain.Float(280), domain.Float(0.40), domain.ConfidenceHigh)
}

func fair() *domain.ValuationResult {
	return valuation(domain.StatusFairValue, domain.Float(200), domain.Float(0), domain.ConfidenceHigh)
}

func overvalued() *domain.ValuationResult {
	return valuation(domain.StatusOvervalued, domain.Float(150), domain.Float(-0.25), domain.ConfidenceHigh)
}

func TestDecisionMatrixIsComplete(t *testing.T) {
	want := map[domain.ValuationStatus]map[domain.BandPosition]domain.SignalAction{
		domain.StatusUndervalued: {
			domain.BandBelowLower: domain.ActionStrongBuy, domain.BandLowerHalf: domain.ActionBuy,
			domain.BandUpperHalf: domain.ActionBuy, domain.BandAboveUpper: domain.ActionHold,
			domain.BandNotApplicable: domain.ActionBuy,
		},
		domain.StatusFairValue: {
			domain.BandBelowLower: domain.ActionBuy, domain.BandLowerHalf: domain.ActionHold,
			domain.BandUpperHalf: domain.ActionHold, domain.BandAboveUpper: domain.ActionSell,
			domain.BandNotApplicable: domain.ActionHold,
		},
		domain.StatusOvervalued: {
			domain.BandBelowLower: domain.ActionHold, domain.BandLowerHalf: domain.ActionSell,
			domain.BandUpperHalf: domain.ActionSell, domain.BandAboveUpper: domain.ActionStrongSell,
			domain.BandNotApplicable: domain.ActionSell,
		},
		domain.StatusInsufficientData: {
			domain.BandBelowLower: domain.ActionHold, domain.BandLowerHalf: domain.ActionHold,
			domain.BandUpperHalf: domain.ActionHold, domain.BandAboveUpper: domain.ActionHold,
			domain.BandNotApplicable: domain.ActionHold,
		},
	}
	for status, row := range want {
		for band, action := range row {
			if got := Lookup(status, band); got != action {
				t.Fatalf("%s/%s: expected %s, got %s", status, band, action, got)
			}
		}
	}
	if got := Lookup("Mystery", domain.BandBelowLower); got != domain.ActionHold {
		t.Fatalf("unknown status should hold, got %s", got)
	}
}

func TestFuseMatrixWithNeutralRSI(t *testing.T) {
	cases := []struct {
		val  *domain.ValuationResult
		band domain.BandPosition
		want string
	}{
		{undervalued(), domain.BandBelowLower, "STRONG BUY"},
		{undervalued(), domain.BandUpperHalf, "BUY"},
		{undervalued(), domain.BandAboveUpper, "HOLD"},
		{fair(), domain.BandBelowLower, "BUY"},
		{fair(), domain.BandAboveUpper, "SELL"},
		{overvalued(), domain.BandBelowLower, "HOLD"},
		{overvalued(), domain.BandUpperHalf, "SELL"},
		{overvalued(), domain.BandAboveUpper, "STRONG SELL"},
	}
	for _, tc := range cases {
		sig := newTestEngine().Fuse(tc.val, peers(domain.RelativeInLine, 0.5), technical(tc.band, 50, domain.Float(0.6)))
		if sig.Recommendation != tc.want {
			t.Fatalf("%s/%s: expected %s, got %s", tc.val.Status, tc.band, tc.want, sig.Recommendation)
		}
	}
}

func TestRSIModifiers(t *testing.T) {
	e := newTestEngine()
	rel := peers(domain.RelativeInLine, 0.5)

	if sig := e.Fuse(fair(), rel, technical(domain.BandBelowLower, 25, domain.Float(-0.1))); sig.Action != domain.ActionStrongBuy {
		t.Fatalf("oversold RSI should upgrade BUY, got %s", sig.Action)
	}
	if sig := e.Fuse(fair(), rel, technical(domain.BandAboveUpper, 75, domain.Float(1.2))); sig.Action != domain.ActionStrongSell {
		t.Fatalf("overbought RSI should upgrade SELL, got %s", sig.Action)
	}
	if sig := e.Fuse(overvalued(), rel, technical(domain.BandBelowLower, 25, domain.Float(-0.1))); sig.Action != domain.ActionHold {
		t.Fatalf("oversold RSI must not change HOLD, got %s", sig.Action)
	}
	if sig := e.Fuse(undervalued(), rel, technical(domain.BandAboveUpper, 75, domain.Float(1.2))); sig.Action != domain.ActionHold {
		t.Fatalf("overbought RSI must not change HOLD, got %s", sig.Action)
	}
	if sig := e.Fuse(fair(), rel, technical(domain.BandBelowLower, 50, domain.Float(-0.1))); sig.Action != domain.ActionBuy {
		t.Fatalf("neutral RSI should leave BUY, got %s", sig.Action)
	}
}

func TestConvictionBounds(t *testing.T) {
	e := newTestEngine()
	statuses := []domain.ValuationStatus{domain.StatusUndervalued, domain.StatusFairValue, domain.StatusOvervalued}
	bands := []domain.BandPosition{domain.BandBelowLower, domain.BandUpperHalf, domain.BandAboveUpper}
	rels := []domain.RelativeStatus{domain.RelativeCheap, domain.RelativeInLine, domain.RelativeExpensive}
	for _, status := range statuses {
		for _, band := range bands {
			for _, rsi := range []float64{20, 50, 80} {
				for _, rel := range rels {
					for _, pb := range []float64{-0.2, 0.5, 1.3} {
						sig := e.Fuse(valuation(status, domain.Float(200), domain.Float(0), domain.ConfidenceHigh), peers(rel, 0.5), technical(band, rsi, domain.Float(pb)))
						if sig.Conviction < 1 || sig.Conviction > 5 {
							t.Fatalf("conviction %d out of range for %s/%s/%v/%s", sig.Conviction, status, band, rsi, rel)
						}
					}
				}
			}
		}
	}
}

func TestConvictionExtremes(t *testing.T) {
	e := newTestEngine()

	best := e.Fuse(undervalued(), peers(domain.RelativeCheap, 0.15), technical(domain.BandBelowLower, 25, domain.Float(0.1)))
	if best.Conviction != 5 {
		t.Fatalf("expected conviction 5, got %d", best.Conviction)
	}

	worst := e.Fuse(overvalued(), peers(domain.RelativeExpensive, 0.85), technical(domain.BandAboveUpper, 75, domain.Float(0.9)))
	if worst.Conviction != 1 {
		t.Fatalf("expected conviction 1, got %d", worst.Conviction)
	}

	neutral := e.Fuse(fair(), peers(domain.RelativeInLine, 0.5), technical(domain.BandUpperHalf, 50, domain.Float(0.6)))
	if neutral.Conviction != 3 {
		t.Fatalf("expected conviction 3, got %d", neutral.Conviction)
	}
}

func TestLowConfidenceSuffix(t *testing.T) {
	val := undervalued()
	val.Confidence = domain.ConfidenceLow
	sig := newTestEngine().Fuse(val, peers(domain.RelativeInLine, 0.5), technical(domain.BandLowerHalf, 50, domain.Float(0.3)))
	if sig.Recommendation != "BUY (Low Confidence)" || sig.Action != domain.ActionBuy {
		t.Fatalf("unexpected recommendation %q (%s)", sig.Recommendation, sig.Action)
	}
	if strings.Contains(sig.Rationale, "Low Confidence") {
		t.Fatalf("rationale must use the bare action: %q", sig.Rationale)
	}

	sig = newTestEngine().Fuse(undervalued(), peers(domain.RelativeInLine, 0.5), technical(domain.BandLowerHalf, 50, domain.Float(0.3)))
	if strings.Contains(sig.Recommendation, "Low Confidence") {
		t.Fatalf("unexpected suffix on %q", sig.Recommendation)
	}
}

func TestRationale(t *testing.T) {
	e := newTestEngine()

	sig := e.Fuse(undervalued(), peers(domain.RelativeCheap, 0.25), technical(domain.BandBelowLower, 28, domain.Float(-0.1)))
	want := "STRONG BUY: Trading 40% below intrinsic value ($200.00 vs $280.00). " +
		"Price near lower Bollinger Band ($180.00). RSI oversold at 28. " +
		"Cheap vs sector peers (25th percentile EV/EBITDA)."
	if sig.Rationale != want {
		t.Fatalf("unexpected rationale:\n got %q\nwant %q", sig.Rationale, want)
	}

	sig = e.Fuse(overvalued(), peers(domain.RelativeInLine, 0.5), technical(domain.BandUpperHalf, 72, domain.Float(0.7)))
	want = "STRONG SELL: Trading 25% above intrinsic value ($200.00 vs $150.00). " +
		"Price between Bollinger Bands ($180.00-$210.00). RSI overbought at 72. In-line with sector peers."
	if sig.Rationale != want {
		t.Fatalf("unexpected rationale:\n got %q\nwant %q", sig.Rationale, want)
	}

	noIV := valuation(domain.StatusFairValue, nil, nil, domain.ConfidenceMedium)
	sig = e.Fuse(noIV, nil, nil)
	if sig.Rationale != "HOLD: Valuation: Fair Value." {
		t.Fatalf("unexpected rationale %q", sig.Rationale)
	}
}

func TestPriceLevels(t *testing.T) {
	sig := newTestEngine().Fuse(undervalued(), peers(domain.RelativeInLine, 0.5), technical(domain.BandUpperHalf, 50, domain.Float(0.6)))
	if *sig.EntryPrice != 180 || *sig.ExitPrice != 210 || *sig.TargetPrice != 280 {
		t.Fatalf("unexpected levels entry=%v exit=%v target=%v", *sig.EntryPrice, *sig.ExitPrice, *sig.TargetPrice)
	}
}

func TestFuseNilInputs(t *testing.T) {
	e := newTestEngine()

	sig := e.Fuse(nil, nil, nil)
	if sig.Recommendation != "HOLD" || sig.Conviction != 3 {
		t.Fatalf("expected neutral HOLD, got %q/%d", sig.Recommendation, sig.Conviction)
	}
	if sig.EntryPrice != nil || sig.ExitPrice != nil || sig.TargetPrice != nil {
		t.Fatalf("expected no price levels: %+v", sig)
	}
	if sig.Rationale != "HOLD:" {
		t.Fatalf("unexpected rationale %q", sig.Rationale)
	}

	if sig := e.Fuse(nil, peers(domain.RelativeInLine, 0.5), technical(domain.BandUpperHalf, 50, domain.Float(0.6))); sig.Action != domain.ActionHold {
		t.Fatalf("nil valuation should hold, got %s", sig.Action)
	}
	if sig := e.Fuse(undervalued(), nil, technical(domain.BandLowerHalf, 50, domain.Float(0.3))); !sig.Action.IsBuy() {
		t.Fatalf("nil peers should not block a buy, got %s", sig.Action)
	}
	sig = e.Fuse(undervalued(), peers(domain.RelativeInLine, 0.5), nil)
	if sig.Action != domain.ActionBuy || sig.EntryPrice != nil {
		t.Fatalf("nil technicals should count as between bands: %+v", sig)
	}
	sig = e.Fuse(undervalued(), peers(domain.RelativeInLine, 0.5), technical(domain.BandNotApplicable, 50, nil))
	if sig.Action != domain.ActionBuy {
		t.Fatalf("N/A band should count as between bands, got %s", sig.Action)
	}
}
