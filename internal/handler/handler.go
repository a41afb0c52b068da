package handler

import (
	"errors"
	"net/http"

	"equity-screener/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer          trace.Tracer
	analysisService *service.AnalysisService
}

func New(tracer trace.Tracer, analysisService *service.AnalysisService) *Handler {
	return &Handler{
		tracer:          tracer,
		analysisService: analysisService,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/analyses", h.GetAnalyses)
	r.GET("/api/analyses/:ticker", h.GetAnalysis)
	r.GET("/api/analyses/:ticker/chart", h.GetAnalysisChart)
	r.POST("/api/analyses/run", h.RunAnalysis)
	r.POST("/api/snapshots", h.IngestSnapshots)
	r.GET("/api/report", h.GetReport)
}

// Health godoc
// @Summary      Health check
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// writeServiceError maps service sentinel errors onto HTTP status codes.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrNotInitialized):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
