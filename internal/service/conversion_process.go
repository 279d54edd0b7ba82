package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/converti/converti-api/internal/core"
	"github.com/converti/converti-api/internal/domain/model"
	apperrors "github.com/converti/converti-api/internal/errors"
	"github.com/converti/converti-api/internal/observability/metrics"
)

// errJobCancelled aborts a registry update on a job that was cancelled underneath the worker.
var errJobCancelled = errors.New("job cancelled")

// Process runs every file of the job through its capability. It is called by
// the worker pool and never returns an error: every outcome is recorded on the job.
func (s *ConversionService) Process(ctx context.Context, id string) {
	started := s.now()

	job, err := s.registry.Update(id, func(j *model.Job) error {
		if j.Status == model.JobStatusCancelled {
			return errJobCancelled
		}
		j.Status = model.JobStatusProcessing
		j.Error = nil
		return nil
	})
	switch {
	case apperrors.IsNotFound(err):
		s.logger.DebugContext(ctx, "job vanished before processing", "job_id", id)
		return
	case errors.Is(err, errJobCancelled):
		s.teardownCancelled(ctx, id)
		return
	case err != nil:
		s.logger.ErrorContext(ctx, "failed to claim job", "job_id", id, "error", err)
		return
	}
	s.mirror(ctx, job)

	if cancelled := s.processFiles(ctx, job); cancelled {
		s.teardownCancelled(ctx, id)
		return
	}
	s.finalize(ctx, id, started)
}

// processFiles converts the files in order and reports whether a cancellation was observed.
func (s *ConversionService) processFiles(ctx context.Context, claimed model.Job) bool {
	for i := range claimed.Results {
		current, ok := s.registry.Get(claimed.ID)
		if !ok || current.Status == model.JobStatusCancelled {
			return true
		}

		res := current.Results[i]
		status, msg := s.convertFile(ctx, current, res)

		updated, err := s.registry.Update(claimed.ID, func(j *model.Job) error {
			j.Results[i].Status = status
			j.Results[i].Error = msg
			return nil
		})
		if err == nil {
			updated, err = s.registry.IncrementProcessed(claimed.ID)
		}
		if apperrors.IsNotFound(err) {
			return true
		}
		if err != nil {
			s.logger.ErrorContext(ctx, "failed to record file result",
				"job_id", claimed.ID,
				"file", res.SourceName,
				"error", err,
			)
			continue
		}
		s.mirror(ctx, updated)
	}
	return false
}

// convertFile runs one conversion and maps its outcome to a file status and message.
func (s *ConversionService) convertFile(ctx context.Context, job model.Job, res model.FileResult) (model.JobStatus, *string) {
	started := s.now()
	err := s.convertSafely(ctx, job, res)
	took := s.now().Sub(started)
	category := string(job.Category)

	if err == nil {
		metrics.EmitFileOutcome(s.metrics, category, metrics.ResultSuccess, nil, took)
		return model.JobStatusCompleted, nil
	}
	metrics.EmitFileOutcome(s.metrics, category, metrics.ResultError, err, took)

	var convErr *model.ConversionError
	if errors.As(err, &convErr) {
		s.logger.WarnContext(ctx, "conversion failed",
			"job_id", job.ID,
			"file", res.SourceName,
			"error", convErr.Message,
		)
		return model.JobStatusFailed, model.StringPtr(convErr.Message)
	}

	s.logger.ErrorContext(ctx, "unexpected conversion error",
		"job_id", job.ID,
		"file", res.SourceName,
		"error", err,
	)
	return model.JobStatusFailed, model.StringPtr(model.UnexpectedFailure(err))
}

// convertSafely turns a panicking capability into an ordinary error.
func (s *ConversionService) convertSafely(ctx context.Context, job model.Job, res model.FileResult) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if err := os.MkdirAll(filepath.Dir(res.OutputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return s.dispatcher.Convert(ctx, model.ConversionRequest{
		Category:     job.Category,
		SourcePath:   res.SourcePath,
		OutputPath:   res.OutputPath,
		TargetFormat: job.TargetFormat,
	})
}

// finalize moves the job to its terminal status unless a cancel got there first.
func (s *ConversionService) finalize(ctx context.Context, id string, started time.Time) {
	job, err := s.registry.Update(id, func(j *model.Job) error {
		if j.Status == model.JobStatusCancelled {
			return errJobCancelled
		}
		if failed := j.FailedCount(); failed > 0 {
			j.Status = model.JobStatusFailed
			j.Error = model.StringPtr(model.FailureSummary(failed))
			return nil
		}
		j.Status = model.JobStatusCompleted
		j.Error = nil
		return nil
	})
	if errors.Is(err, errJobCancelled) || apperrors.IsNotFound(err) {
		s.teardownCancelled(ctx, id)
		return
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to finalize job", "job_id", id, "error", err)
		return
	}

	if job.Status == model.JobStatusFailed && job.FailedCount() == job.TotalFiles {
		if err := s.storage.RemoveOutputs(id); err != nil {
			s.logger.WarnContext(ctx, "failed to remove partial outputs", "job_id", id, "error", err)
		}
	}

	s.emitTerminal(job, s.now().Sub(started))
	s.mirror(ctx, job)
	s.publish(ctx, job)
	s.logger.InfoContext(ctx, "job finished",
		"job_id", id,
		"status", job.Status,
		"failed_files", job.FailedCount(),
		"duration", s.now().Sub(started),
	)
}

// teardownCancelled marks unfinished files cancelled and removes the job.
// The first teardown stamps the job error and announces the cancellation, so
// concurrent callers publish exactly one event.
func (s *ConversionService) teardownCancelled(ctx context.Context, id string) error {
	announce := false
	job, err := s.registry.Update(id, func(j *model.Job) error {
		j.Status = model.JobStatusCancelled
		for i := range j.Results {
			switch j.Results[i].Status {
			case model.JobStatusPending, model.JobStatusProcessing:
				j.Results[i].Status = model.JobStatusCancelled
				j.Results[i].Error = model.StringPtr(model.CancelledFileMessage)
			}
		}
		if j.Error == nil {
			j.Error = model.StringPtr(model.CancelledJobMessage)
			announce = true
		}
		return nil
	})
	if err != nil && !apperrors.IsNotFound(err) {
		s.logger.ErrorContext(ctx, "failed to mark job cancelled", "job_id", id, "error", err)
	}

	if err == nil && announce {
		s.emitTerminal(job, 0)
		s.publish(ctx, job)
		s.logger.InfoContext(ctx, "job cancelled", "job_id", id, "processed_files", job.ProcessedFiles)
	}

	return s.Remove(ctx, id)
}

// mirror writes the public job view to the status cache.
func (s *ConversionService) mirror(ctx context.Context, job model.Job) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(job.View())
	if err != nil {
		s.logger.WarnContext(ctx, "failed to encode job view", "job_id", job.ID, "error", err)
		return
	}
	if err := s.cache.Set(ctx, core.JobCacheKey(job.ID), payload, s.cacheTTL); err != nil {
		s.logger.WarnContext(ctx, "failed to mirror job status", "job_id", job.ID, "error", err)
	}
}

func (s *ConversionService) publish(ctx context.Context, job model.Job) {
	if s.events == nil {
		return
	}
	typ, ok := model.EventTypeFor(job.Status)
	if !ok {
		return
	}
	event := model.JobEvent{Type: typ, Job: job.View(), OccurredAt: s.now().UTC()}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to publish job event",
			"job_id", job.ID,
			"event", typ,
			"error", err,
		)
	}
}

func (s *ConversionService) emitTerminal(job model.Job, took time.Duration) {
	in := metrics.JobMetric{
		Category:   string(job.Category),
		Transition: string(job.Status),
		Result:     metrics.ResultSuccess,
		Duration:   took,
	}
	switch job.Status {
	case model.JobStatusFailed:
		in.Result = metrics.ResultError
		in.Err = errors.New(model.FailureSummary(job.FailedCount()))
	case model.JobStatusCancelled:
		in.Result = metrics.ResultNoop
	}
	metrics.EmitJobLifecycle(s.metrics, in)
}
