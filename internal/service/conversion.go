package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/converti/converti-api/internal/core"
	"github.com/converti/converti-api/internal/domain/model"
	apperrors "github.com/converti/converti-api/internal/errors"
	"github.com/converti/converti-api/internal/observability/metrics"
	"github.com/converti/converti-api/internal/observability/statsd"
	"golang.org/x/sync/singleflight"
)

// defaultCacheTTL bounds how long a mirrored job view lives when no TTL is configured.
const defaultCacheTTL = 24 * time.Hour

// ConversionServiceOptions groups dependencies for ConversionService.
type ConversionServiceOptions struct {
	Registry   core.JobRegistry          // Required: job state
	Storage    core.JobStorage           // Required: on-disk job layout
	Queue      core.JobQueue             // Required: worker pool intake
	Dispatcher core.ConversionDispatcher // Required: conversion capabilities
	Cache      core.CacheRepository      // Optional: job status mirror
	CacheTTL   time.Duration             // Optional: mirror TTL, defaults to 24h
	Archives   core.ArchiveStore         // Optional: archive replication
	Events     core.EventPublisher       // Optional: terminal job events
	Logger     *slog.Logger              // Optional: structured logger
	Metrics    statsd.Sink               // Optional: metrics sink (StatsD-compatible)
	Clock      func() time.Time          // Optional: defaults to time.Now
}

// ConversionService owns the job lifecycle.
//
// This service manages:
// - Accepting uploads and queueing jobs.
// - Processing the files of a job one by one.
// - Cooperative cancellation and removal of jobs.
// - Building download archives.
type ConversionService struct {
	registry   core.JobRegistry
	storage    core.JobStorage
	queue      core.JobQueue
	dispatcher core.ConversionDispatcher
	cache      core.CacheRepository
	cacheTTL   time.Duration
	archives   core.ArchiveStore
	events     core.EventPublisher
	logger     *slog.Logger
	metrics    statsd.Sink
	now        func() time.Time

	archiveGroup singleflight.Group
}

// NewConversionService constructs a new ConversionService.
func NewConversionService(opts ConversionServiceOptions) (*ConversionService, error) {
	switch {
	case opts.Registry == nil:
		return nil, errors.New("JobRegistry is required")
	case opts.Storage == nil:
		return nil, errors.New("JobStorage is required")
	case opts.Queue == nil:
		return nil, errors.New("JobQueue is required")
	case opts.Dispatcher == nil:
		return nil, errors.New("ConversionDispatcher is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &ConversionService{
		registry:   opts.Registry,
		storage:    opts.Storage,
		queue:      opts.Queue,
		dispatcher: opts.Dispatcher,
		cache:      opts.Cache,
		cacheTTL:   ttl,
		archives:   opts.Archives,
		events:     opts.Events,
		logger:     logger.With("component", "conversion_service"),
		metrics:    opts.Metrics,
		now:        now,
	}, nil
}

// MustNewConversionService constructs a new ConversionService and wraps any error.
func MustNewConversionService(opts ConversionServiceOptions) (*ConversionService, error) {
	svc, err := NewConversionService(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ConversionService: %w", err)
	}
	return svc, nil
}

// Upload is one file of a submission. Open is called once and the reader is closed after copying.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// SubmitRequest is a batch conversion request.
type SubmitRequest struct {
	Category     string
	TargetFormat string
	Files        []Upload
}

// Catalog returns the available categories and their target formats.
func (s *ConversionService) Catalog() map[model.Category][]string {
	return s.dispatcher.Catalog()
}

// Get returns a snapshot of the job.
func (s *ConversionService) Get(id string) (model.Job, error) {
	job, ok := s.registry.Get(id)
	if !ok {
		return model.Job{}, apperrors.NotFound("Job not found")
	}
	return job, nil
}

// Submit validates the request, stores the uploads and queues the job.
func (s *ConversionService) Submit(ctx context.Context, req SubmitRequest) (model.Job, error) {
	category, format, err := s.validateSubmit(req)
	if err != nil {
		return model.Job{}, err
	}

	job := s.registry.Create(category, format, len(req.Files))
	if err := s.storage.Prepare(job.ID); err != nil {
		s.rollbackSubmit(ctx, job.ID)
		return model.Job{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to prepare job storage")
	}

	results, err := s.storeUploads(job.ID, format, req.Files)
	if err != nil {
		s.rollbackSubmit(ctx, job.ID)
		return model.Job{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to store uploaded files")
	}

	job, err = s.registry.Update(job.ID, func(j *model.Job) error {
		j.Results = results
		return nil
	})
	if err != nil {
		s.rollbackSubmit(ctx, job.ID)
		return model.Job{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to record job files")
	}

	// Mirror before the worker can see the job so a stale pending view never
	// overwrites a later transition.
	s.mirror(ctx, job)

	if err := s.queue.Enqueue(job.ID); err != nil {
		s.rollbackSubmit(ctx, job.ID)
		s.emitSubmit(category, err)
		if errors.Is(err, model.ErrQueueFull) {
			s.logger.WarnContext(ctx, "job queue full, rejecting submission", "category", category)
			return model.Job{}, apperrors.Unavailablef("Too many jobs in progress, try again later")
		}
		return model.Job{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Failed to queue job")
	}

	s.emitSubmit(category, nil)
	s.logger.InfoContext(ctx, "job submitted",
		"job_id", job.ID,
		"category", category,
		"target_format", format,
		"files", job.TotalFiles,
	)
	return job, nil
}

func (s *ConversionService) validateSubmit(req SubmitRequest) (model.Category, string, error) {
	category := model.Category(req.Category)
	if _, ok := s.dispatcher.Catalog()[category]; !ok {
		return "", "", apperrors.ValidationField("category",
			fmt.Sprintf("Unsupported category '%s'", req.Category))
	}

	format := model.NormalizeFormat(req.TargetFormat)
	if !s.dispatcher.Supports(category, format) {
		return "", "", apperrors.ValidationField("target_format",
			fmt.Sprintf("Unsupported target format '%s'", format))
	}

	if len(req.Files) == 0 {
		return "", "", apperrors.ValidationField("files", "No files were provided for conversion")
	}
	return category, format, nil
}

func (s *ConversionService) storeUploads(jobID, format string, files []Upload) ([]model.FileResult, error) {
	inputs := make(map[string]struct{}, len(files))
	outputs := make(map[string]struct{}, len(files))
	results := make([]model.FileResult, 0, len(files))
	outDir := s.storage.OutputDir(jobID)

	for index, upload := range files {
		safe := safeUploadName(upload.Name, index)
		stored := uniqueName(safe, inputs)
		inputs[stored] = struct{}{}

		out := uniqueName(outputName(safe, format), outputs)
		outputs[out] = struct{}{}

		src, err := s.saveUpload(jobID, stored, upload)
		if err != nil {
			return nil, err
		}

		results = append(results, model.FileResult{
			SourceName: safe,
			SourcePath: src,
			OutputName: out,
			OutputPath: filepath.Join(outDir, out),
			Status:     model.JobStatusPending,
		})
	}
	return results, nil
}

func (s *ConversionService) saveUpload(jobID, name string, upload Upload) (string, error) {
	if upload.Open == nil {
		return "", fmt.Errorf("upload %q has no content", name)
	}
	rc, err := upload.Open()
	if err != nil {
		return "", fmt.Errorf("open upload %q: %w", name, err)
	}
	defer rc.Close()

	return s.storage.SaveUpload(jobID, name, rc)
}

func (s *ConversionService) rollbackSubmit(ctx context.Context, id string) {
	if err := s.Remove(ctx, id); err != nil {
		s.logger.ErrorContext(ctx, "failed to roll back submission", "job_id", id, "error", err)
	}
}

func (s *ConversionService) emitSubmit(category model.Category, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitJobLifecycle(s.metrics, metrics.JobMetric{
		Category:   string(category),
		Transition: "submitted",
		Result:     result,
		Err:        err,
	})
}

// safeUploadName keeps the last path element of a client supplied name.
// Empty or dot-only names fall back to file_<index>.
func safeUploadName(name string, index int) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), `\`, "/"))
	switch base {
	case "", ".", "..", "/":
		return fmt.Sprintf("file_%d", index)
	}
	return base
}

// outputName swaps the extension of name for the target format.
func outputName(name, format string) string {
	stem, _ := splitExt(name)
	return stem + "." + format
}

// uniqueName returns candidate, or stem_N.ext with the smallest N not in taken.
func uniqueName(candidate string, taken map[string]struct{}) string {
	if _, ok := taken[candidate]; !ok {
		return candidate
	}
	stem, ext := splitExt(candidate)
	for i := 1; ; i++ {
		next := fmt.Sprintf("%s_%d%s", stem, i, ext)
		if _, ok := taken[next]; !ok {
			return next
		}
	}
}

// splitExt splits name into stem and extension. Dotfiles such as .env have no extension.
func splitExt(name string) (string, string) {
	ext := filepath.Ext(name)
	if ext == name {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}
