package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/converti/converti-api/internal/core"
	"github.com/converti/converti-api/internal/domain/model"
	apperrors "github.com/converti/converti-api/internal/errors"
)

// DeleteResult reports what a delete request did.
type DeleteResult struct {
	// Deleted is true when the job and its files are gone.
	Deleted bool
	// Cancelling is true when a worker still owns the job and will remove it
	// after the current file.
	Cancelling bool
}

// Delete cancels or removes a job depending on its status.
func (s *ConversionService) Delete(ctx context.Context, id string) (DeleteResult, error) {
	// Pending jobs are cancelled in the same update so a worker claim refuses them.
	var prior model.JobStatus
	_, err := s.registry.Update(id, func(j *model.Job) error {
		prior = j.Status
		switch j.Status {
		case model.JobStatusPending, model.JobStatusProcessing:
			j.Status = model.JobStatusCancelled
		}
		return nil
	})
	if apperrors.IsNotFound(err) {
		return DeleteResult{}, apperrors.NotFound("Job not found")
	}
	if err != nil {
		return DeleteResult{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to delete job")
	}

	switch prior {
	case model.JobStatusProcessing, model.JobStatusCancelled:
		s.logger.InfoContext(ctx, "job cancellation requested", "job_id", id)
		return DeleteResult{Cancelling: true}, nil
	case model.JobStatusPending:
		err = s.teardownCancelled(ctx, id)
	default:
		err = s.Remove(ctx, id)
	}
	if err != nil {
		return DeleteResult{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to delete job files")
	}

	s.logger.InfoContext(ctx, "job deleted", "job_id", id, "status", prior)
	return DeleteResult{Deleted: true}, nil
}

// Remove deletes the job directory, record, mirrored status and replicated
// archive. It is idempotent. Only a failure to delete local files is returned.
func (s *ConversionService) Remove(ctx context.Context, id string) error {
	var errs []error
	if err := s.storage.RemoveJob(id); err != nil {
		errs = append(errs, fmt.Errorf("remove job files: %w", err))
	}
	s.registry.Delete(id)

	if s.cache != nil {
		if _, err := s.cache.Delete(ctx, core.JobCacheKey(id)); err != nil {
			s.logger.WarnContext(ctx, "failed to drop mirrored job status", "job_id", id, "error", err)
		}
	}
	if s.archives != nil {
		if err := s.archives.DeleteArchive(ctx, id); err != nil {
			s.logger.WarnContext(ctx, "failed to delete replicated archive", "job_id", id, "error", err)
		}
	}

	return errors.Join(errs...)
}

var _ core.JobRemover = (*ConversionService)(nil)
