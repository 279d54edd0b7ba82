// Package jobrunner runs the fixed pool of workers that drain the job queue.
package jobrunner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/converti/converti-api/internal/observability/statsd"
)

// Processor handles one job id. Implementations own all error reporting,
// so Process has no return value.
type Processor interface {
	Process(ctx context.Context, jobID string)
}

// RunnerOptions configures the worker pool.
type RunnerOptions struct {
	Queue     *Queue
	Processor Processor
	Logger    *slog.Logger

	// Concurrency is the number of worker goroutines; defaults to 1.
	Concurrency int
	// Metrics receives queue depth gauges (optional).
	Metrics statsd.Sink
	// DepthInterval controls how often queue depth is reported; defaults to 15s.
	DepthInterval time.Duration
}

// Runner pulls job ids off the queue and hands them to the processor.
type Runner struct {
	queue         *Queue
	processor     Processor
	logger        *slog.Logger
	workers       int
	metrics       statsd.Sink
	depthInterval time.Duration
}

// NewRunner validates options and constructs a Runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Queue == nil {
		return nil, errors.New("queue is required")
	}
	if opts.Processor == nil {
		return nil, errors.New("processor is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = 1
	}
	interval := opts.DepthInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}

	return &Runner{
		queue:         opts.Queue,
		processor:     opts.Processor,
		logger:        logger.With("component", "job_runner"),
		workers:       workers,
		metrics:       opts.Metrics,
		depthInterval: interval,
	}, nil
}

// Run starts the workers and blocks until ctx is cancelled and every
// in-flight job has returned. Ids still queued at shutdown are dropped.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting job runner", "workers", r.workers, "queue_capacity", r.queue.Cap())

	var wg sync.WaitGroup
	for i := range r.workers {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r.workerLoop(ctx, worker)
		}(i)
	}

	if r.metrics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.reportDepth(ctx)
		}()
	}

	wg.Wait()

	if dropped := r.queue.Len(); dropped > 0 {
		r.logger.WarnContext(context.WithoutCancel(ctx), "job runner stopped with queued jobs", "dropped", dropped)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return nil
	}
	return ctx.Err()
}

func (r *Runner) workerLoop(ctx context.Context, worker int) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-r.queue.jobs():
			r.processJob(ctx, worker, id)
		}
	}
}

func (r *Runner) processJob(ctx context.Context, worker int, id string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "job processor panicked", "job_id", id, "worker", worker, "panic", rec)
		}
	}()
	r.processor.Process(ctx, id)
}

func (r *Runner) reportDepth(ctx context.Context) {
	ticker := time.NewTicker(r.depthInterval)
	defer ticker.Stop()

	for {
		r.metrics.Gauge("jobs.queue_depth", float64(r.queue.Len()), nil)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
