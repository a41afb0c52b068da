package job

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/trace"
)

const retentionTick = time.Hour

type StalePruner interface {
	PruneStale(ctx context.Context, retention time.Duration) (int64, error)
}

// RetentionJob deletes stored analyses older than the retention window.
type RetentionJob struct {
	tracer    trace.Tracer
	pruner    StalePruner
	retention time.Duration
	tick      time.Duration
}

func NewRetentionJob(tracer trace.Tracer, pruner StalePruner, retention time.Duration) *RetentionJob {
	return &RetentionJob{
		tracer:    tracer,
		pruner:    pruner,
		retention: retention,
		tick:      retentionTick,
	}
}

func (j *RetentionJob) Start(ctx context.Context) {
	if j == nil || j.pruner == nil || j.retention <= 0 {
		<-ctx.Done()
		return
	}

	log.Println("Analysis retention job starting...")
	ticker := time.NewTicker(j.tick)
	defer ticker.Stop()

	j.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Analysis retention job stopped")
			return
		case <-ticker.C:
			j.runCleanup(ctx)
		}
	}
}

func (j *RetentionJob) runCleanup(ctx context.Context) {
	if j.tracer != nil {
		var span trace.Span
		ctx, span = j.tracer.Start(ctx, "retention-job.cleanup")
		defer span.End()
	}
	deleted, err := j.pruner.PruneStale(ctx, j.retention)
	if err != nil {
		log.Printf("analysis retention error: %v", err)
		return
	}
	if deleted > 0 {
		log.Printf("analysis retention removed %d row(s)", deleted)
	}
}
