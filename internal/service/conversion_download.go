package service

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/converti/converti-api/internal/domain/model"
	apperrors "github.com/converti/converti-api/internal/errors"
)

// Archive returns the path of the job's download bundle, building it on first use.
// Concurrent requests for one job share a single build.
func (s *ConversionService) Archive(ctx context.Context, id string) (string, error) {
	job, ok := s.registry.Get(id)
	if !ok {
		return "", apperrors.NotFound("Job not found")
	}
	if job.Status != model.JobStatusCompleted {
		return "", apperrors.Validation("Job is not completed yet")
	}

	v, err, _ := s.archiveGroup.Do(id, func() (any, error) {
		return s.buildArchive(ctx, job)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (s *ConversionService) buildArchive(ctx context.Context, job model.Job) (string, error) {
	existing := s.storage.ArchivePath(job.ID)
	if _, err := os.Stat(existing); err == nil {
		return existing, nil
	}

	names := make([]string, 0, len(job.Results))
	for _, r := range job.Results {
		if r.Status == model.JobStatusCompleted {
			names = append(names, r.OutputName)
		}
	}

	built, err := s.storage.BuildArchive(job.ID, names)
	if errors.Is(err, fs.ErrNotExist) {
		return "", apperrors.NotFound("Converted files not found")
	}
	if err != nil {
		return "", apperrors.MapFSError(err, "Failed to build archive")
	}

	s.logger.InfoContext(ctx, "archive built", "job_id", job.ID, "files", len(names))

	if s.archives != nil {
		if err := s.archives.PutArchive(ctx, job.ID, built); err != nil {
			s.logger.WarnContext(ctx, "failed to replicate archive", "job_id", job.ID, "error", err)
		}
	}
	return built, nil
}

// OutputFile resolves one completed output of a job. Only the last path
// element of filename is considered.
func (s *ConversionService) OutputFile(id, filename string) (model.FileResult, error) {
	job, ok := s.registry.Get(id)
	if !ok {
		return model.FileResult{}, apperrors.NotFound("Job not found")
	}

	name := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	res, ok := job.FindOutput(name)
	if !ok || res.Status != model.JobStatusCompleted {
		return model.FileResult{}, apperrors.NotFound("File not found for this job")
	}
	if _, err := os.Stat(res.OutputPath); err != nil {
		return model.FileResult{}, apperrors.NotFound("Converted file missing")
	}
	return res, nil
}
