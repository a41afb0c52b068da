package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"equity-screener/internal/domain"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long an analysis is considered fresh.
const DefaultTTL = 24 * time.Hour

const (
	recordKeyPrefix = "analysis:"
	reportKey       = "report:latest"
)

// ResultCache keeps the latest analysis per ticker and the last batch report
// in Redis. Entries expire after the configured freshness window.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ResultCache{client: client, ttl: ttl}
}

func recordKey(ticker string) string {
	return recordKeyPrefix + domain.NormalizeTicker(ticker)
}

// GetRecord returns nil without error on a miss.
func (c *ResultCache) GetRecord(ctx context.Context, ticker string) (*domain.AnalysisRecord, error) {
	var rec domain.AnalysisRecord
	ok, err := c.get(ctx, recordKey(ticker), &rec)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

// SetRecords caches every encodable record. Records that fail to encode are
// skipped and reported in the returned error.
func (c *ResultCache) SetRecords(ctx context.Context, records []domain.AnalysisRecord) error {
	if len(records) == 0 {
		return nil
	}
	var skipped []error
	pipe := c.client.Pipeline()
	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			skipped = append(skipped, fmt.Errorf("encode cached analysis %s: %w", rec.Ticker, err))
			continue
		}
		pipe.Set(ctx, recordKey(rec.Ticker), payload, c.ttl)
	}
	if pipe.Len() > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("cache analyses: %w", err)
		}
	}
	return errors.Join(skipped...)
}

// GetReport returns the last cached batch report, or nil on a miss.
func (c *ResultCache) GetReport(ctx context.Context) (*domain.BatchReport, error) {
	var report domain.BatchReport
	ok, err := c.get(ctx, reportKey, &report)
	if err != nil || !ok {
		return nil, err
	}
	return &report, nil
}

func (c *ResultCache) SetReport(ctx context.Context, report domain.BatchReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode cached report: %w", err)
	}
	if err := c.client.Set(ctx, reportKey, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache report: %w", err)
	}
	return nil
}

func (c *ResultCache) get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read cache %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("decode cache %s: %w", key, err)
	}
	return true, nil
}
