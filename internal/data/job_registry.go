package data

import (
	"sort"
	"strings"
	"sync"

	"github.com/converti/converti-api/internal/core"
	"github.com/converti/converti-api/internal/domain/model"
	apperrors "github.com/converti/converti-api/internal/errors"
	"github.com/google/uuid"
)

// JobRegistryOptions groups dependencies for NewJobRegistry.
type JobRegistryOptions struct {
	TimeProvider TimeProvider
}

// JobRegistry is the in-memory, mutex-guarded store of job records.
// All reads return clones and all writes go through validated read-modify-write.
type JobRegistry struct {
	mu    sync.RWMutex
	jobs  map[string]*model.Job
	clock TimeProvider
}

// NewJobRegistry creates an empty registry.
func NewJobRegistry(opts JobRegistryOptions) *JobRegistry {
	clock := opts.TimeProvider
	if clock == nil {
		clock = &RealTimeProvider{}
	}
	return &JobRegistry{
		jobs:  make(map[string]*model.Job),
		clock: clock,
	}
}

func newJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Create registers a pending job with no results.
func (r *JobRegistry) Create(category model.Category, targetFormat string, totalFiles int) model.Job {
	job := &model.Job{
		ID:           newJobID(),
		Category:     category,
		TargetFormat: targetFormat,
		TotalFiles:   totalFiles,
		CreatedAt:    r.clock.Now(),
		Status:       model.JobStatusPending,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	return job.Clone()
}

// Get returns a snapshot of the job.
func (r *JobRegistry) Get(id string) (model.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return job.Clone(), true
}

// Update applies fn to a working copy and commits it if every invariant still holds.
// Errors returned by fn abort the update and are passed through unchanged.
func (r *JobRegistry) Update(id string, fn func(*model.Job) error) (model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.jobs[id]
	if !ok {
		return model.Job{}, apperrors.NotFoundf("Job %s not found", id)
	}

	next := current.Clone()
	if err := fn(&next); err != nil {
		return model.Job{}, err
	}
	if err := validateUpdate(current, &next); err != nil {
		return model.Job{}, err
	}

	r.jobs[id] = &next
	return next.Clone(), nil
}

// IncrementProcessed bumps the processed counter by one.
// It fails with a Conflict error when every file is already accounted for.
func (r *JobRegistry) IncrementProcessed(id string) (model.Job, error) {
	return r.Update(id, func(j *model.Job) error {
		j.ProcessedFiles++
		return nil
	})
}

// Delete removes the job if present.
func (r *JobRegistry) Delete(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}

// List returns snapshots of every job ordered by creation time.
func (r *JobRegistry) List() []model.Job {
	r.mu.RLock()
	out := make([]model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func validateUpdate(prev, next *model.Job) error {
	switch {
	case next.ID != prev.ID,
		next.Category != prev.Category,
		next.TargetFormat != prev.TargetFormat,
		next.TotalFiles != prev.TotalFiles,
		!next.CreatedAt.Equal(prev.CreatedAt):
		return apperrors.Conflictf("job %s: identity fields are immutable", prev.ID)
	}

	if !next.Status.Valid() {
		return apperrors.Conflictf("job %s: unknown status %q", prev.ID, next.Status)
	}
	if !prev.Status.CanTransitionTo(next.Status) {
		return apperrors.Conflictf("job %s: illegal transition %s -> %s", prev.ID, prev.Status, next.Status)
	}

	if next.ProcessedFiles < prev.ProcessedFiles {
		return apperrors.Conflictf("job %s: processed count cannot decrease", prev.ID)
	}
	if next.ProcessedFiles < 0 || next.ProcessedFiles > next.TotalFiles {
		return apperrors.Conflictf("job %s: processed count %d outside [0, %d]",
			prev.ID, next.ProcessedFiles, next.TotalFiles)
	}

	if len(next.Results) != len(prev.Results) {
		if len(prev.Results) != 0 || len(next.Results) != next.TotalFiles {
			return apperrors.Conflictf("job %s: results must be set once with %d entries", prev.ID, next.TotalFiles)
		}
	}
	for i := range next.Results {
		if !next.Results[i].Status.Valid() {
			return apperrors.Conflictf("job %s: file %d has unknown status %q", prev.ID, i, next.Results[i].Status)
		}
	}

	return nil
}

var _ core.JobRegistry = (*JobRegistry)(nil)
