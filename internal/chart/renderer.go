package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sort"

	"equity-screener/internal/config"
	"equity-screener/internal/domain"

	"gonum.org/v1/gonum/stat"
)

const (
	defaultChartWidth  = 960
	defaultChartHeight = 640
	maxChartBars       = 180
)

var (
	colBackground = color.RGBA{R: 250, G: 252, B: 255, A: 255}
	colGrid       = color.RGBA{R: 225, G: 232, B: 240, A: 255}
	colBull       = color.RGBA{R: 18, G: 140, B: 126, A: 255}
	colBear       = color.RGBA{R: 210, G: 61, B: 87, A: 255}
	colWick       = color.RGBA{R: 58, G: 64, B: 90, A: 255}
	colLineA      = color.RGBA{R: 62, G: 106, B: 214, A: 255}
	colLineB      = color.RGBA{R: 255, G: 149, B: 0, A: 255}
	colBand       = color.RGBA{R: 104, G: 122, B: 146, A: 255}
	colTarget     = color.RGBA{R: 142, G: 68, B: 173, A: 255}
)

// Renderer draws the price history of one ticker with its Bollinger bands,
// valuation levels and RSI. It is stateless apart from its policy.
type Renderer struct {
	window     int
	stdDev     float64
	rsiPeriod  int
	oversold   float64
	overbought float64
}

func NewRenderer(policy config.Policy) *Renderer {
	return &Renderer{
		window:     policy.Technical.BollingerWindow,
		stdDev:     policy.Technical.BollingerStdDev,
		rsiPeriod:  policy.Technical.RSIPeriod,
		oversold:   policy.Signal.RSIOversold,
		overbought: policy.Signal.RSIOverbought,
	}
}

// RenderAnalysisChart returns a PNG. The top panel shows candles, bands,
// the intrinsic value and the buy price; the bottom panel shows RSI.
func (r *Renderer) RenderAnalysisChart(bars []domain.PriceBar, rec domain.AnalysisRecord) ([]byte, error) {
	series := normalizeBars(bars)
	if len(series) < 2 {
		return nil, fmt.Errorf("need at least 2 price bars to render chart for %s", rec.Ticker)
	}

	closes := extractCloses(series)
	upper, mean, lower := r.bollingerSeries(closes)
	rsi := rsiSeries(closes, r.rsiPeriod)
	if len(series) > maxChartBars {
		cut := len(series) - maxChartBars
		series = series[cut:]
		upper, mean, lower = upper[cut:], mean[cut:], lower[cut:]
		if rsi != nil {
			rsi = rsi[cut:]
		}
	}

	img := image.NewRGBA(image.Rect(0, 0, defaultChartWidth, defaultChartHeight))
	fillRect(img, img.Bounds(), colBackground)

	mainRect := image.Rect(60, 20, defaultChartWidth-20, (defaultChartHeight*72)/100)
	auxRect := image.Rect(60, mainRect.Max.Y+16, defaultChartWidth-20, defaultChartHeight-30)
	drawGrid(img, mainRect, 8, 6)
	drawGrid(img, auxRect, 8, 3)

	minV, maxV := priceBounds(series, upper, lower)
	levels := valuationLevels(rec)
	for _, lvl := range levels {
		minV, maxV = includeLevel(minV, maxV, lvl.value)
	}

	drawCandles(img, mainRect, series, minV, maxV)
	drawSeries(img, mainRect, upper, minV, maxV, colBand)
	drawSeries(img, mainRect, mean, minV, maxV, colLineB)
	drawSeries(img, mainRect, lower, minV, maxV, colBand)
	for _, lvl := range levels {
		drawDashedValueLine(img, mainRect, lvl.value, minV, maxV, lvl.col)
	}

	drawHorizontalValueLine(img, auxRect, r.oversold, 0, 100, colBand)
	drawHorizontalValueLine(img, auxRect, r.overbought, 0, 100, colBand)
	drawSeries(img, auxRect, rsi, 0, 100, colLineA)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type level struct {
	value float64
	col   color.RGBA
}

func valuationLevels(rec domain.AnalysisRecord) []level {
	var out []level
	if v := rec.Valuation.IntrinsicValue; v != nil && *v > 0 {
		out = append(out, level{value: *v, col: colTarget})
	}
	if v := rec.Valuation.BuyPrice; v != nil && *v > 0 {
		out = append(out, level{value: *v, col: colBull})
	}
	return out
}

// includeLevel widens the price range to show a level unless it sits so far
// away that the candles would collapse; such levels are pinned to the edge.
func includeLevel(minV, maxV, v float64) (float64, float64) {
	span := maxV - minV
	if v < minV && v >= minV-span {
		minV = v
	}
	if v > maxV && v <= maxV+span {
		maxV = v
	}
	return minV, maxV
}

func (r *Renderer) bollingerSeries(closes []float64) (upper, mean, lower []float64) {
	upper = make([]float64, len(closes))
	mean = make([]float64, len(closes))
	lower = make([]float64, len(closes))
	for i := range closes {
		upper[i], mean[i], lower[i] = math.NaN(), math.NaN(), math.NaN()
		if r.window < 2 || i < r.window-1 {
			continue
		}
		m, s := stat.MeanStdDev(closes[i-r.window+1:i+1], nil)
		mean[i] = m
		upper[i] = m + r.stdDev*s
		lower[i] = m - r.stdDev*s
	}
	return upper, mean, lower
}

func normalizeBars(in []domain.PriceBar) []domain.PriceBar {
	out := make([]domain.PriceBar, 0, len(in))
	for _, b := range in {
		if math.IsNaN(b.Close) || b.Close <= 0 {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func priceBounds(bars []domain.PriceBar, upper, lower []float64) (float64, float64) {
	minV, maxV := bars[0].Close, bars[0].Close
	for _, b := range bars {
		low, high := b.Low, b.High
		if low <= 0 {
			low = b.Close
		}
		if high <= 0 {
			high = b.Close
		}
		minV = math.Min(minV, math.Min(low, b.Close))
		maxV = math.Max(maxV, math.Max(high, b.Close))
	}
	minL, _ := finiteBounds(lower)
	_, maxU := finiteBounds(upper)
	if !allNaN(lower) {
		minV = math.Min(minV, minL)
	}
	if !allNaN(upper) {
		maxV = math.Max(maxV, maxU)
	}
	if maxV <= minV {
		maxV = minV + 1
	}
	return minV, maxV
}

func allNaN(values []float64) bool {
	for _, v := range values {
		if !math.IsNaN(v) {
			return false
		}
	}
	return true
}

func drawCandles(img *image.RGBA, rect image.Rectangle, bars []domain.PriceBar, minPrice, maxPrice float64) {
	candleWidth := max(3, (rect.Dx()-10)/len(bars)-1)
	for i, b := range bars {
		open := b.Open
		if open <= 0 {
			open = b.Close
		}
		high := math.Max(b.High, math.Max(open, b.Close))
		low := b.Low
		if low <= 0 {
			low = math.Min(open, b.Close)
		}

		x := mapIndexToX(i, len(bars), rect)
		drawLine(img, x, mapValueToY(high, minPrice, maxPrice, rect), x, mapValueToY(low, minPrice, maxPrice, rect), colWick)

		openY := mapValueToY(open, minPrice, maxPrice, rect)
		closeY := mapValueToY(b.Close, minPrice, maxPrice, rect)
		top := min(openY, closeY)
		bottom := max(openY, closeY)
		if bottom-top < 2 {
			bottom = top + 2
		}

		bodyColor := colBull
		if b.Close < open {
			bodyColor = colBear
		}
		fillRect(img, image.Rect(x-candleWidth/2, top, x+candleWidth/2+1, bottom+1), bodyColor)
	}
}

func drawDashedValueLine(img *image.RGBA, rect image.Rectangle, value, minV, maxV float64, col color.RGBA) {
	y := mapValueToY(value, minV, maxV, rect)
	for x := rect.Min.X; x < rect.Max.X; x += 12 {
		drawLine(img, x, y, min(x+7, rect.Max.X), y, col)
	}
}

func drawSeries(img *image.RGBA, rect image.Rectangle, series []float64, minV, maxV float64, col color.RGBA) {
	lastX, lastY := -1, -1
	for i, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			lastX, lastY = -1, -1
			continue
		}
		x := mapIndexToX(i, len(series), rect)
		y := mapValueToY(v, minV, maxV, rect)
		if lastX >= 0 {
			drawLine(img, lastX, lastY, x, y, col)
		}
		lastX, lastY = x, y
	}
}

func drawGrid(img *image.RGBA, rect image.Rectangle, verticalLines, horizontalLines int) {
	for i := 0; i <= verticalLines; i++ {
		x := rect.Min.X + (rect.Dx()*i)/max(1, verticalLines)
		drawLine(img, x, rect.Min.Y, x, rect.Max.Y, colGrid)
	}
	for i := 0; i <= horizontalLines; i++ {
		y := rect.Min.Y + (rect.Dy()*i)/max(1, horizontalLines)
		drawLine(img, rect.Min.X, y, rect.Max.X, y, colGrid)
	}
}

func drawHorizontalValueLine(img *image.RGBA, rect image.Rectangle, value, minV, maxV float64, col color.RGBA) {
	y := mapValueToY(value, minV, maxV, rect)
	drawLine(img, rect.Min.X, y, rect.Max.X, y, col)
}

func mapIndexToX(idx, total int, rect image.Rectangle) int {
	if total <= 1 {
		return rect.Min.X
	}
	return rect.Min.X + (idx*(rect.Dx()-1))/(total-1)
}

func mapValueToY(value, minV, maxV float64, rect image.Rectangle) int {
	if maxV <= minV {
		return rect.Max.Y
	}
	ratio := (value - minV) / (maxV - minV)
	ratio = math.Max(0, math.Min(1, ratio))
	return rect.Max.Y - int(ratio*float64(rect.Dy()-1))
}

func finiteBounds(values []float64) (float64, float64) {
	minV := math.Inf(1)
	maxV := math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if math.IsInf(minV, 1) || math.IsInf(maxV, -1) {
		return 0, 1
	}
	if minV == maxV {
		return minV, maxV + 1
	}
	return minV, maxV
}

func extractCloses(bars []domain.PriceBar) []float64 {
	out := make([]float64, len(bars))
	for i := range bars {
		out[i] = bars[i].Close
	}
	return out
}

func rsiSeries(closes []float64, period int) []float64 {
	if len(closes) <= period {
		return nil
	}
	out := make([]float64, len(closes))
	for i := range out {
		out[i] = math.NaN()
	}
	var gainSum, lossSum float64
	for i := 1; i <= period; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gainSum += d
		} else {
			lossSum -= d
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	out[period] = rsiFromAvg(avgGain, avgLoss)
	for i := period + 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		gain := math.Max(d, 0)
		loss := math.Max(-d, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiFromAvg(avgGain, avgLoss)
	}
	return out
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func fillRect(img *image.RGBA, rect image.Rectangle, col color.RGBA) {
	r := rect.Intersect(img.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			img.SetRGBA(x, y, col)
		}
	}
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int, col color.RGBA) {
	dx := abs(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -abs(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		if image.Pt(x0, y0).In(img.Bounds()) {
			img.SetRGBA(x0, y0, col)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 >= dy {
			if x0 == x1 {
				break
			}
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			if y0 == y1 {
				break
			}
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
