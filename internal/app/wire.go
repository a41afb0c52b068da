// Package app assembles the analysis service from whichever backing
// stores are configured.
package app

import (
	"time"

	"equity-screener/internal/cache"
	"equity-screener/internal/chart"
	"equity-screener/internal/config"
	"equity-screener/internal/repository"
	"equity-screener/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

// NewAnalysisService wires repositories when pool is set and the result
// cache when client is set. Absent stores stay nil interfaces so the
// service falls back to its in-memory report.
func NewAnalysisService(
	tracer trace.Tracer,
	cfg *config.Config,
	policy config.Policy,
	pool *pgxpool.Pool,
	client *redis.Client,
) *service.AnalysisService {
	analyzer := service.NewAnalyzer(policy, cfg.AnalysisWorkers, nil)

	var (
		snapshots service.SnapshotRepository
		prices    service.PriceRepository
		analyses  service.AnalysisRepository
		results   service.ResultCache
	)
	if pool != nil {
		snapshots = repository.NewSnapshotRepository(pool, tracer)
		prices = repository.NewPriceRepository(pool, tracer)
		analyses = repository.NewAnalysisRepository(pool, tracer)
	}
	if client != nil {
		results = cache.NewResultCache(client, time.Duration(cfg.ResultCacheHours)*time.Hour)
	}

	return service.NewAnalysisServiceWithCache(tracer, analyzer, snapshots, prices, analyses, results, chart.NewRenderer(policy))
}

// PollInterval converts the configured minutes, defaulting to a day.
func PollInterval(cfg *config.Config) time.Duration {
	if cfg.AnalysisPollMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(cfg.AnalysisPollMinutes) * time.Minute
}

// Retention converts the configured days; zero disables pruning.
func Retention(cfg *config.Config) time.Duration {
	if cfg.ResultRetentionDays <= 0 {
		return 0
	}
	return time.Duration(cfg.ResultRetentionDays) * 24 * time.Hour
}
