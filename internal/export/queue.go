package export

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/taskmcp/taskmcp/internal/types"
)

var (
	tracer = otel.Tracer("github.com/taskmcp/taskmcp/internal/export")
	meter  = otel.Meter("github.com/taskmcp/taskmcp/internal/export")
)

// JobKind names one of the three job shapes the export queue accepts, per
// spec.md §4.5.
type JobKind int

const (
	JobExportEntity JobKind = iota
	JobDeleteEntity
	JobCascade
)

// Job is one unit of export work. KnownPath is only meaningful for
// JobDeleteEntity (the path recorded in the sync-state index at enqueue
// time, in case the render-time lookup can no longer resolve it).
type Job struct {
	Kind       JobKind
	EntityType types.EntityType
	EntityID   types.ID
	KnownPath  string
}

const queueCapacity = 1024

// Queue is the per-vault single-consumer job queue. The decorator enqueues;
// one goroutine drains it serially, so file writes within a vault never
// race each other.
type Queue struct {
	ch      chan Job
	logger  *slog.Logger
	wg      sync.WaitGroup
	process func(context.Context, Job)

	enqueued metric.Int64Counter
	dropped  metric.Int64Counter
	failed   metric.Int64Counter
}

// NewQueue starts the consumer goroutine bound to ctx; process handles one
// job. When ctx is cancelled the consumer drains the jobs already buffered
// and exits; Enqueue does not check ctx.
func NewQueue(ctx context.Context, logger *slog.Logger, process func(context.Context, Job)) *Queue {
	enqueued, _ := meter.Int64Counter("export_jobs_enqueued_total")
	dropped, _ := meter.Int64Counter("export_jobs_dropped_total")
	failed, _ := meter.Int64Counter("export_jobs_failed_total")

	q := &Queue{
		ch:       make(chan Job, queueCapacity),
		logger:   logger,
		process:  process,
		enqueued: enqueued,
		dropped:  dropped,
		failed:   failed,
	}
	q.wg.Add(1)
	go q.run(ctx)
	return q
}

// Enqueue posts a job without blocking the caller (the store write remains
// the source of truth per spec.md §4.5); a full queue drops the job and
// logs it rather than blocking the mutating call.
func (q *Queue) Enqueue(job Job) {
	select {
	case q.ch <- job:
		if q.enqueued != nil {
			q.enqueued.Add(context.Background(), 1, metric.WithAttributes(jobKindAttr(job.Kind)))
		}
	default:
		q.logger.Warn("export queue full, dropping job", "kind", job.Kind, "entityId", job.EntityID)
		if q.dropped != nil {
			q.dropped.Add(context.Background(), 1, metric.WithAttributes(jobKindAttr(job.Kind)))
		}
	}
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case job, ok := <-q.ch:
			if !ok {
				return
			}
			q.handle(ctx, job)
		case <-ctx.Done():
			// Drain whatever is already buffered before exiting.
			for {
				select {
				case job := <-q.ch:
					q.handle(ctx, job)
				default:
					return
				}
			}
		}
	}
}

func (q *Queue) handle(ctx context.Context, job Job) {
	spanCtx, span := tracer.Start(ctx, "export.job")
	span.SetAttributes(
		attribute.Int("kind", int(job.Kind)),
		attribute.String("entityId", job.EntityID.String()),
	)
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			q.logger.Warn("export job panicked", "entityId", job.EntityID, "recover", r)
			if q.failed != nil {
				q.failed.Add(context.Background(), 1, metric.WithAttributes(jobKindAttr(job.Kind)))
			}
		}
	}()
	q.process(spanCtx, job)
}

// Wait blocks until the consumer goroutine has exited (used by tests and by
// graceful shutdown after ctx is cancelled).
func (q *Queue) Wait() {
	q.wg.Wait()
}

func jobKindAttr(kind JobKind) attribute.KeyValue {
	switch kind {
	case JobExportEntity:
		return attribute.String("kind", "export_entity")
	case JobDeleteEntity:
		return attribute.String("kind", "delete_entity")
	case JobCascade:
		return attribute.String("kind", "cascade")
	default:
		return attribute.String("kind", "unknown")
	}
}
