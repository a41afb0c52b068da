package service

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"strings"

	"equity-screener/internal/domain"
)

var ErrInvalidInput = errors.New("invalid input")

const (
	defaultFilterLimit = 50
	maxFilterLimit     = 200
)

// NormalizeFilter canonicalises user input and rejects unknown signal or
// confidence values.
func NormalizeFilter(filter domain.AnalysisFilter) (domain.AnalysisFilter, error) {
	filter.Ticker = domain.NormalizeTicker(filter.Ticker)
	filter.Sector = strings.TrimSpace(filter.Sector)

	if filter.Action != "" {
		filter.Action = domain.ParseAction(strings.ToUpper(string(filter.Action)))
		if !filter.Action.IsValid() {
			return filter, fmt.Errorf("%w: unknown signal %q", ErrInvalidInput, filter.Action)
		}
	}
	if filter.Confidence != "" {
		c := strings.TrimSpace(string(filter.Confidence))
		if c != "" {
			c = strings.ToUpper(c[:1]) + strings.ToLower(c[1:])
		}
		filter.Confidence = domain.Confidence(c)
		if !filter.Confidence.IsValid() {
			return filter, fmt.Errorf("%w: unknown confidence %q", ErrInvalidInput, filter.Confidence)
		}
	}
	if filter.MinConviction < 0 || filter.MinConviction > 5 {
		return filter, fmt.Errorf("%w: min conviction %d outside 0-5", ErrInvalidInput, filter.MinConviction)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultFilterLimit
	}
	if filter.Limit > maxFilterLimit {
		filter.Limit = maxFilterLimit
	}
	return filter, nil
}

// FilterRecords applies filter in memory with the same ordering the
// repository uses.
func FilterRecords(records []domain.AnalysisRecord, filter domain.AnalysisFilter) []domain.AnalysisRecord {
	out := make([]domain.AnalysisRecord, 0, len(records))
	for _, rec := range records {
		switch {
		case filter.Ticker != "" && rec.Ticker != filter.Ticker:
			continue
		case filter.Action != "" && rec.Signal.Action != filter.Action:
			continue
		case filter.Confidence != "" && rec.Valuation.Confidence != filter.Confidence:
			continue
		case filter.Sector != "" && !strings.EqualFold(rec.Sector, filter.Sector):
			continue
		case rec.Signal.Conviction < filter.MinConviction:
			continue
		}
		out = append(out, rec)
	}

	slices.SortStableFunc(out, func(x, y domain.AnalysisRecord) int {
		if c := cmp.Compare(y.Signal.Conviction, x.Signal.Conviction); c != 0 {
			return c
		}
		if c := cmp.Compare(domain.Value(y.Valuation.UpsidePct), domain.Value(x.Valuation.UpsidePct)); c != 0 {
			return c
		}
		return strings.Compare(x.Ticker, y.Ticker)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}
