package handler

import (
	"net/http"
	"strconv"
	"strings"

	"equity-screener/internal/domain"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type runRequest struct {
	Tickers []string `json:"tickers"`
}

// GetAnalyses godoc
// @Summary      List analyses
// @Description  Returns the latest analysis per ticker ordered by conviction, then upside
// @Tags         analyses
// @Produce      json
// @Param        ticker          query  string  false  "Ticker (e.g., AAPL)"
// @Param        signal          query  string  false  "Signal (STRONG BUY, BUY, HOLD, SELL, STRONG SELL)"
// @Param        confidence      query  string  false  "Valuation confidence (High, Medium, Low)"
// @Param        sector          query  string  false  "Sector name"
// @Param        min_conviction  query  int     false  "Minimum conviction (1-5)"
// @Param        limit           query  int     false  "Number of records (default 50, max 200)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/analyses [get]
func (h *Handler) GetAnalyses(c *gin.Context) {
	if h.analysisService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-analyses")
	defer span.End()

	filter := domain.AnalysisFilter{
		Ticker:     strings.TrimSpace(c.Query("ticker")),
		Action:     domain.SignalAction(strings.TrimSpace(c.Query("signal"))),
		Confidence: domain.Confidence(strings.TrimSpace(c.Query("confidence"))),
		Sector:     strings.TrimSpace(c.Query("sector")),
	}
	if filter.Ticker != "" {
		span.SetAttributes(attribute.String("ticker", domain.NormalizeTicker(filter.Ticker)))
	}

	if raw := strings.TrimSpace(c.Query("min_conviction")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 5 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_conviction must be between 1 and 5"})
			return
		}
		filter.MinConviction = n
	}

	limit := 50
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 200"})
			return
		}
		limit = n
	}
	filter.Limit = limit

	records, err := h.analysisService.ListAnalyses(ctx, filter)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": records})
}

// GetAnalysis godoc
// @Summary      Get the latest analysis for a ticker
// @Tags         analyses
// @Produce      json
// @Param        ticker  path  string  true  "Ticker"
// @Success      200  {object}  domain.AnalysisRecord
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/analyses/{ticker} [get]
func (h *Handler) GetAnalysis(c *gin.Context) {
	if h.analysisService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-analysis")
	defer span.End()

	ticker := domain.NormalizeTicker(c.Param("ticker"))
	span.SetAttributes(attribute.String("ticker", ticker))

	rec, err := h.analysisService.GetAnalysis(ctx, ticker)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// GetAnalysisChart godoc
// @Summary      Get the analysis chart for a ticker
// @Description  Returns a PNG with price, Bollinger bands, intrinsic value and buy price
// @Tags         analyses
// @Produce      png
// @Param        ticker  path  string  true  "Ticker"
// @Success      200  {file}  binary
// @Failure      404  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/analyses/{ticker}/chart [get]
func (h *Handler) GetAnalysisChart(c *gin.Context) {
	if h.analysisService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-analysis-chart")
	defer span.End()

	png, err := h.analysisService.Chart(ctx, c.Param("ticker"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// RunAnalysis godoc
// @Summary      Run an analysis batch
// @Description  Analyzes the stored snapshots for the given tickers, or all stored tickers when none are given
// @Tags         analyses
// @Accept       json
// @Produce      json
// @Param        request  body  runRequest  false  "Tickers to analyze"
// @Success      200  {object}  domain.BatchReport
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/analyses/run [post]
func (h *Handler) RunAnalysis(c *gin.Context) {
	if h.analysisService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.run-analysis")
	defer span.End()

	var req runRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}
	span.SetAttributes(attribute.Int("tickers", len(req.Tickers)))

	report, err := h.analysisService.RunBatch(ctx, req.Tickers)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// IngestSnapshots godoc
// @Summary      Store snapshots and price history
// @Tags         analyses
// @Accept       json
// @Produce      json
// @Param        request  body  []domain.TickerInput  true  "Snapshots with price bars"
// @Success      202  {object}  map[string]int
// @Failure      400  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/snapshots [post]
func (h *Handler) IngestSnapshots(c *gin.Context) {
	if h.analysisService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.ingest-snapshots")
	defer span.End()

	var inputs []domain.TickerInput
	if err := c.ShouldBindJSON(&inputs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if err := h.analysisService.Ingest(ctx, inputs); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"stored": len(inputs)})
}

// GetReport godoc
// @Summary      Latest batch report
// @Description  Signal distribution, confidence counts, top buys and failures of the last run
// @Tags         analyses
// @Produce      json
// @Success      200  {object}  domain.BatchReport
// @Failure      404  {object}  map[string]string
// @Router       /api/report [get]
func (h *Handler) GetReport(c *gin.Context) {
	if h.analysisService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "analysis service unavailable"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-report")
	defer span.End()

	report, err := h.analysisService.LatestReport(ctx)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
