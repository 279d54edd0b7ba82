// Package model defines the core data types shared by the conversion job engine.
package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// JobStatus represents the lifecycle state of a job or of a single file within it.
type JobStatus string

const (
	// JobStatusPending indicates the job (or file) has not been picked up yet.
	JobStatusPending JobStatus = "pending"
	// JobStatusProcessing indicates a worker owns the job.
	JobStatusProcessing JobStatus = "processing"
	// JobStatusCompleted indicates every file converted successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates at least one file failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusCancelled indicates the job was cancelled by a delete request.
	JobStatusCancelled JobStatus = "cancelled"
)

// Messages recorded on cancelled jobs and files.
const (
	CancelledFileMessage = "Cancelled"
	CancelledJobMessage  = "Cancelled by user"
)

// ErrQueueFull is returned by the work queue when no more jobs can be accepted.
var ErrQueueFull = errors.New("job queue is full")

// Valid returns true if the JobStatus is known.
func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transitions are possible.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// CanTransitionTo reports whether moving from s to next is allowed.
// Re-setting the current status is always allowed.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s == next {
		return true
	}
	switch s {
	case JobStatusPending:
		return next == JobStatusProcessing || next == JobStatusCancelled
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed || next == JobStatusCancelled
	default:
		return false
	}
}

// FileResult is the outcome of converting one uploaded file.
type FileResult struct {
	SourceName string
	SourcePath string
	OutputName string
	OutputPath string
	Status     JobStatus
	Error      *string
}

// Job is one batch conversion request.
type Job struct {
	ID             string
	Category       Category
	TargetFormat   string
	TotalFiles     int
	CreatedAt      time.Time
	Status         JobStatus
	ProcessedFiles int
	Results        []FileResult
	Error          *string
}

// Progress returns processed/total clamped to 1.0, or 0 when the job has no files.
func (j Job) Progress() float64 {
	if j.TotalFiles <= 0 {
		return 0
	}
	p := float64(j.ProcessedFiles) / float64(j.TotalFiles)
	if p > 1 {
		return 1
	}
	return p
}

// FailedCount returns the number of results in the failed state.
func (j Job) FailedCount() int {
	n := 0
	for _, r := range j.Results {
		if r.Status == JobStatusFailed {
			n++
		}
	}
	return n
}

// Clone returns a deep copy that shares no mutable state with j.
func (j Job) Clone() Job {
	out := j
	out.Error = cloneString(j.Error)
	if j.Results != nil {
		out.Results = make([]FileResult, len(j.Results))
		for i, r := range j.Results {
			r.Error = cloneString(r.Error)
			out.Results[i] = r
		}
	}
	return out
}

// FindOutput returns the result whose output name matches name.
func (j Job) FindOutput(name string) (FileResult, bool) {
	for _, r := range j.Results {
		if r.OutputName == name {
			return r, true
		}
	}
	return FileResult{}, false
}

// FailureSummary formats the job-level error for n failed files.
func FailureSummary(n int) string {
	return fmt.Sprintf("%d file(s) failed during conversion", n)
}

// UnexpectedFailure formats the per-file error for a non-declared failure.
func UnexpectedFailure(err error) string {
	return "Unexpected error: " + err.Error()
}

// StringPtr returns a pointer to a copy of s.
func StringPtr(s string) *string {
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// NormalizeFormat lowercases and trims a requested target format.
func NormalizeFormat(format string) string {
	return strings.ToLower(strings.TrimSpace(format))
}
