package job

import (
	"context"
	"log"
	"sync"
	"time"

	"equity-screener/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultPollInterval = 24 * time.Hour

type BatchRunner interface {
	RunBatch(ctx context.Context, tickers []string) (domain.BatchReport, error)
}

// AlertNotifier receives records whose signal turned strong since the
// previous run.
type AlertNotifier interface {
	NotifyAnalyses(ctx context.Context, records []domain.AnalysisRecord) error
}

// AnalysisPoller periodically re-runs the analysis batch.
type AnalysisPoller struct {
	tracer   trace.Tracer
	runner   BatchRunner
	tickers  []string
	interval time.Duration

	mu       sync.Mutex
	notifier AlertNotifier
	last     map[string]domain.SignalAction
}

func NewAnalysisPoller(tracer trace.Tracer, runner BatchRunner, tickers []string, interval time.Duration) *AnalysisPoller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &AnalysisPoller{
		tracer:   tracer,
		runner:   runner,
		tickers:  append([]string(nil), tickers...),
		interval: interval,
		last:     make(map[string]domain.SignalAction),
	}
}

func (p *AnalysisPoller) SetNotifier(n AlertNotifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifier = n
}

// Start runs a batch immediately and then on every interval. Blocks until
// ctx is cancelled.
func (p *AnalysisPoller) Start(ctx context.Context) {
	if p.runner == nil {
		log.Println("Analysis poller disabled: no analysis service")
		<-ctx.Done()
		return
	}

	log.Printf("Analysis poller starting (every %s)...", p.interval)
	p.runOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Analysis poller stopped")
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *AnalysisPoller) runOnce(ctx context.Context) {
	if p.tracer != nil {
		var span trace.Span
		ctx, span = p.tracer.Start(ctx, "analysis-job.run")
		defer span.End()
		span.SetAttributes(attribute.Int("analysis.requested", len(p.tickers)))
	}

	report, err := p.runner.RunBatch(ctx, p.tickers)
	if err != nil {
		log.Printf("analysis batch error: %v", err)
		if len(report.Records) == 0 {
			return
		}
	}
	log.Printf("analysis batch finished: %d analyzed, %d failed", report.Summary.Analyzed, report.Summary.Failed)

	alerts := p.strongTransitions(report.Records)
	p.mu.Lock()
	notifier := p.notifier
	p.mu.Unlock()
	if notifier == nil || len(alerts) == 0 {
		return
	}
	if err := notifier.NotifyAnalyses(ctx, alerts); err != nil {
		log.Printf("analysis alert dispatch error: %v", err)
	}
}

// strongTransitions returns STRONG BUY and STRONG SELL records whose action
// differs from the previous run, and remembers every action seen.
func (p *AnalysisPoller) strongTransitions(records []domain.AnalysisRecord) []domain.AnalysisRecord {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []domain.AnalysisRecord
	for _, rec := range records {
		action := domain.ParseAction(rec.Signal.Recommendation)
		prev, seen := p.last[rec.Ticker]
		p.last[rec.Ticker] = action
		if action != domain.ActionStrongBuy && action != domain.ActionStrongSell {
			continue
		}
		if seen && prev == action {
			continue
		}
		out = append(out, rec)
	}
	return out
}
