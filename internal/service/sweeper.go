package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/converti/converti-api/config"
	"github.com/converti/converti-api/internal/core"
	obserrors "github.com/converti/converti-api/internal/observability/errors"
	"github.com/converti/converti-api/internal/observability/metrics"
	"github.com/converti/converti-api/internal/observability/statsd"
)

// SweeperServiceOptions groups dependencies for SweeperService.
type SweeperServiceOptions struct {
	Registry core.JobRegistry     // Required: job registry
	Storage  core.JobStorage      // Required: job storage
	Remover  core.JobRemover      // Required: removes a job with all its artifacts
	Config   config.SweeperConfig // Required: retention configuration
	Logger   *slog.Logger         // Optional: structured logger
	Metrics  statsd.Sink          // Optional: metrics sink (StatsD-compatible)
	Clock    func() time.Time     // Optional: defaults to time.Now
}

// SweeperService enforces job retention.
//
// This service manages:
// - Removing jobs whose creation time is past the retention window.
// - Removing stale job directories that no longer have a record.
type SweeperService struct {
	registry core.JobRegistry
	storage  core.JobStorage
	remover  core.JobRemover
	config   config.SweeperConfig
	logger   *slog.Logger
	metrics  statsd.Sink
	now      func() time.Time
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	ExpiredJobs int64
	OrphanDirs  int64
	Elapsed     time.Duration
}

// NewSweeperService constructs a new SweeperService.
func NewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	switch {
	case opts.Registry == nil:
		return nil, errors.New("JobRegistry is required")
	case opts.Storage == nil:
		return nil, errors.New("JobStorage is required")
	case opts.Remover == nil:
		return nil, errors.New("JobRemover is required")
	}

	cfg := opts.Config
	cfg.Sanitize()

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "sweeper_service")
		logger.Debug("SweeperService initialized",
			"interval", cfg.Interval,
			"retention_days", cfg.RetentionDays,
		)
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &SweeperService{
		registry: opts.Registry,
		storage:  opts.Storage,
		remover:  opts.Remover,
		config:   cfg,
		logger:   logger,
		metrics:  opts.Metrics,
		now:      now,
	}, nil
}

// MustNewSweeperService constructs a new SweeperService and wraps any error.
func MustNewSweeperService(opts SweeperServiceOptions) (*SweeperService, error) {
	svc, err := NewSweeperService(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create SweeperService: %w", err)
	}
	return svc, nil
}

// Run sweeps at the configured interval until the context is cancelled.
// Returns nil on graceful shutdown (context.Canceled) or when retention is disabled.
func (s *SweeperService) Run(ctx context.Context) error {
	if !s.config.Enabled() {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "job retention disabled, sweeper not started")
		}
		return nil
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "starting sweeper service",
			"interval", s.config.Interval,
			"retention", s.config.Retention(),
		)
	}

	s.waitWithJitter(ctx)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	if _, err := s.Sweep(ctx); err != nil {
		s.logSweepError(err, "initial sweep")
	}

	for {
		select {
		case <-ctx.Done():
			if s.logger != nil {
				s.logger.InfoContext(ctx, "sweeper service stopping", "reason", ctx.Err())
			}
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logSweepError(err, "sweep")
			}
		}
	}
}

// waitWithJitter delays up to 10% of the interval.
func (s *SweeperService) waitWithJitter(ctx context.Context) {
	maxJitter := int64(s.config.Interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		}
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}

// Sweep runs every retention step once. With retention disabled it deletes nothing.
func (s *SweeperService) Sweep(ctx context.Context) (SweepResult, error) {
	if !s.config.Enabled() {
		return SweepResult{}, nil
	}

	start := time.Now()
	cutoff := s.now().Add(-s.config.Retention())

	var (
		result             SweepResult
		errs               []error
		allContextCanceled = true
		data               = sweepMetrics{}
	)

	steps := []sweepStep{
		{
			fn:        func(ctx context.Context) (int64, error) { return s.expireJobs(ctx, cutoff) },
			label:     "expire jobs",
			operation: "expire_jobs",
			count:     &data.ExpiredCount,
			metricErr: &data.ExpiredErr,
		},
		{
			fn:        func(ctx context.Context) (int64, error) { return s.removeOrphanDirs(ctx, cutoff) },
			label:     "remove orphan directories",
			operation: "remove_orphans",
			count:     &data.OrphanCount,
			metricErr: &data.OrphanErr,
		},
	}

	for _, step := range steps {
		count, err := step.fn(ctx)
		*step.count = count
		*step.metricErr = suppressContextCancellation(err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
			allContextCanceled = allContextCanceled && isContextCancellation(err)
		}
		s.emitStepMetric(step.operation, count, *step.metricErr)
	}

	result.ExpiredJobs = data.ExpiredCount
	result.OrphanDirs = data.OrphanCount
	result.Elapsed = time.Since(start)
	data.Elapsed = result.Elapsed
	s.emitSweepMetrics(data)

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allContextCanceled && isContextCancellation(joined) {
			return result, context.Canceled
		}
		return result, fmt.Errorf("sweep failed: %w", joined)
	}
	return result, nil
}

type sweepFunc func(context.Context) (int64, error)

type sweepStep struct {
	fn        sweepFunc
	label     string
	operation string
	count     *int64
	metricErr *error
}

// expireJobs removes registry jobs created before cutoff.
func (s *SweeperService) expireJobs(ctx context.Context, cutoff time.Time) (int64, error) {
	var (
		removed int64
		errs    []error
	)
	for _, job := range s.registry.List() {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if !job.CreatedAt.Before(cutoff) {
			continue
		}
		if err := s.remover.Remove(ctx, job.ID); err != nil {
			errs = append(errs, fmt.Errorf("job %s: %w", job.ID, err))
			continue
		}
		removed++
	}

	if removed > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "expired jobs removed", "count", removed, "cutoff", cutoff)
	}
	return removed, errors.Join(errs...)
}

// removeOrphanDirs deletes stale directories that have no registry record.
func (s *SweeperService) removeOrphanDirs(ctx context.Context, cutoff time.Time) (int64, error) {
	kept := make(map[string]struct{})
	for _, job := range s.registry.List() {
		kept[job.ID] = struct{}{}
	}

	dirs, err := s.storage.ListJobDirs()
	if err != nil {
		return 0, err
	}

	var (
		removed int64
		errs    []error
	)
	for _, dir := range dirs {
		if ctx.Err() != nil {
			return removed, ctx.Err()
		}
		if _, ok := kept[dir.ID]; ok || !dir.ModTime.Before(cutoff) {
			continue
		}
		if err := s.storage.RemoveJob(dir.ID); err != nil {
			errs = append(errs, fmt.Errorf("dir %s: %w", dir.ID, err))
			continue
		}
		removed++
	}

	if removed > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "orphan job directories removed", "count", removed, "cutoff", cutoff)
	}
	return removed, errors.Join(errs...)
}

type sweepMetrics struct {
	ExpiredCount int64
	ExpiredErr   error
	OrphanCount  int64
	OrphanErr    error
	Elapsed      time.Duration
}

func (s *SweeperService) emitSweepMetrics(m sweepMetrics) {
	if s.metrics == nil {
		return
	}

	total := m.ExpiredCount + m.OrphanCount
	firstErr := firstError(m.ExpiredErr, m.OrphanErr)

	result := metrics.ResultSuccess
	if firstErr != nil {
		result = metrics.ResultError
	} else if total == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{"result": result}
	if firstErr != nil {
		if class := obserrors.Classify(firstErr); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("sweeper.sweep", 1, tags)
	if m.Elapsed > 0 {
		s.metrics.Timing("sweeper.sweep_duration", m.Elapsed, maps.Clone(tags))
	}
	if firstErr == nil {
		s.metrics.Gauge("sweeper.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *SweeperService) emitStepMetric(operation string, count int64, err error) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	} else if count == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"operation": operation,
		"result":    result,
	}
	if err != nil {
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("sweeper.sweep_step", 1, tags)
	if err == nil && count > 0 {
		s.metrics.Count("sweeper.jobs_removed", count, maps.Clone(tags))
	}
}

func (s *SweeperService) logSweepError(err error, label string) {
	if err == nil || s.logger == nil {
		return
	}
	if isContextCancellation(err) {
		s.logger.Debug(label+" cancelled by context", "error", err)
		return
	}
	s.logger.Error(label+" failed", "error", err)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
