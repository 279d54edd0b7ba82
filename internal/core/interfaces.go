// Package core defines the ports the conversion engine depends on.
// Concrete implementations live under internal/data and internal/adapters.
package core

import (
	"context"
	"io"
	"time"

	"github.com/converti/converti-api/internal/domain/model"
)

// JobRegistry is the single source of truth for job state.
// Every method is safe for concurrent use and returns snapshots that share no
// mutable state with the stored record.
type JobRegistry interface {
	// Create registers a pending job with zero processed files and no results.
	Create(category model.Category, targetFormat string, totalFiles int) model.Job

	// Get returns a snapshot of the job, or false if it does not exist.
	Get(id string) (model.Job, bool)

	// Update applies fn to a working copy of the job and stores it atomically.
	// The mutation is rejected if it breaks a lifecycle invariant.
	Update(id string, fn func(*model.Job) error) (model.Job, error)

	// IncrementProcessed bumps the processed counter by one.
	// It returns a Conflict error once every file is already accounted for.
	IncrementProcessed(id string) (model.Job, error)

	// Delete removes the job. Deleting an unknown id is a no-op.
	Delete(id string)

	// List returns a snapshot of every job.
	List() []model.Job
}

// JobDir is a job directory found on disk.
type JobDir struct {
	ID      string
	ModTime time.Time
}

// JobStorage owns the on-disk layout of job files.
type JobStorage interface {
	Root() string
	JobDir(id string) string
	InputDir(id string) string
	OutputDir(id string) string
	ArchivePath(id string) string

	// Prepare creates the input and output directories for a job.
	Prepare(id string) error
	// SaveUpload streams r into the job's input directory under name and returns the full path.
	SaveUpload(id, name string, r io.Reader) (string, error)
	// RemoveJob deletes the job directory tree. Missing directories are not an error.
	RemoveJob(id string) error
	// RemoveOutputs deletes the job's output directory.
	RemoveOutputs(id string) error
	// ListJobDirs enumerates job directories under the root.
	ListJobDirs() ([]JobDir, error)
	// BuildArchive zips the named output files into the job's archive path.
	BuildArchive(id string, names []string) (string, error)
}

// JobQueue hands job ids to the worker pool.
type JobQueue interface {
	// Enqueue schedules a job. It returns model.ErrQueueFull instead of blocking.
	Enqueue(id string) error
}

// ConversionDispatcher routes a conversion to the capability registered for its category.
type ConversionDispatcher interface {
	// Catalog returns the enabled categories and their supported target formats.
	Catalog() map[model.Category][]string
	// Supports reports whether category is enabled and accepts targetFormat.
	Supports(category model.Category, targetFormat string) bool
	// Convert runs one conversion. Declared failures are *model.ConversionError.
	Convert(ctx context.Context, req model.ConversionRequest) error
}

// ArchiveStore replicates finished download bundles to object storage.
type ArchiveStore interface {
	PutArchive(ctx context.Context, jobID, path string) error
	DeleteArchive(ctx context.Context, jobID string) error
}

// EventPublisher announces terminal job transitions.
type EventPublisher interface {
	Publish(ctx context.Context, event model.JobEvent) error
}

// JobRemover deletes every trace of a job.
type JobRemover interface {
	Remove(ctx context.Context, id string) error
}
