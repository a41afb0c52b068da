package chart

import (
	"bytes"
	"image/png"
	"math"
	"testing"
	"time"

	"equity-screener/internal/config"
	"equity-screener/internal/domain"
)

func TestRenderAnalysisChart(t *testing.T) {
	renderer := NewRenderer(config.DefaultPolicy())
	rec := domain.AnalysisRecord{
		Ticker: "AAPL",
		Valuation: domain.ValuationResult{
			IntrinsicValue: domain.Float(230),
			BuyPrice:       domain.Float(172.5),
		},
	}

	out, err := renderer.RenderAnalysisChart(buildTestBars(260), rec)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("output is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != defaultChartWidth || b.Dy() != defaultChartHeight {
		t.Fatalf("unexpected size %v", b)
	}
}

func TestRenderAnalysisChartWithoutValuation(t *testing.T) {
	renderer := NewRenderer(config.DefaultPolicy())
	if _, err := renderer.RenderAnalysisChart(buildTestBars(10), domain.AnalysisRecord{Ticker: "NEW"}); err != nil {
		t.Fatalf("short series without levels should still render: %v", err)
	}
}

func TestRenderAnalysisChartNeedsTwoBars(t *testing.T) {
	renderer := NewRenderer(config.DefaultPolicy())
	bars := buildTestBars(3)
	bars[1].Close = math.NaN()
	bars[2].Close = 0
	if _, err := renderer.RenderAnalysisChart(bars, domain.AnalysisRecord{Ticker: "X"}); err == nil {
		t.Fatal("expected error for a single usable bar")
	}
}

func TestIncludeLevelPinsDistantValues(t *testing.T) {
	minV, maxV := includeLevel(100, 120, 130)
	if minV != 100 || maxV != 130 {
		t.Fatalf("nearby level should widen range, got %v-%v", minV, maxV)
	}
	minV, maxV = includeLevel(100, 120, 500)
	if maxV != 120 {
		t.Fatalf("distant level must not widen range, got %v", maxV)
	}
}

func TestBollingerSeriesWarmup(t *testing.T) {
	r := NewRenderer(config.DefaultPolicy())
	closes := extractCloses(buildTestBars(30))
	upper, mean, lower := r.bollingerSeries(closes)
	if !math.IsNaN(mean[r.window-2]) || math.IsNaN(mean[r.window-1]) {
		t.Fatal("bands must start at the first full window")
	}
	last := len(closes) - 1
	if !(lower[last] < mean[last] && mean[last] < upper[last]) {
		t.Fatalf("expected ordered bands, got %v %v %v", lower[last], mean[last], upper[last])
	}
}

func buildTestBars(count int) []domain.PriceBar {
	base := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	out := make([]domain.PriceBar, 0, count)
	price := 180.0
	for i := 0; i < count; i++ {
		step := float64((i%9)-4) * 0.8
		open := price
		close := price + step
		out = append(out, domain.PriceBar{
			Ticker: "AAPL",
			Date:   base.AddDate(0, 0, i),
			Open:   open,
			High:   math.Max(open, close) + 1.1,
			Low:    math.Min(open, close) - 1.0,
			Close:  close,
			Volume: 1e6 + float64((i%17)*8e4),
		})
		price = close
	}
	return out
}
