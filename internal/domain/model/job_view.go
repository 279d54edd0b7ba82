package model

import "time"

// FileResultView is the public representation of a FileResult.
type FileResultView struct {
	SourceName string    `json:"sourceName"`
	OutputName string    `json:"outputName"`
	Status     JobStatus `json:"status"`
	Error      *string   `json:"error"`
}

// JobView is the public representation of a Job. Filesystem paths are never exposed.
type JobView struct {
	JobID          string           `json:"jobId"`
	Category       Category         `json:"category"`
	TargetFormat   string           `json:"targetFormat"`
	Status         JobStatus        `json:"status"`
	Progress       float64          `json:"progress"`
	TotalFiles     int              `json:"totalFiles"`
	ProcessedFiles int              `json:"processedFiles"`
	CreatedAt      time.Time        `json:"createdAt"`
	Error          *string          `json:"error"`
	Results        []FileResultView `json:"results"`
}

// View converts the job into its public representation.
func (j Job) View() JobView {
	results := make([]FileResultView, len(j.Results))
	for i, r := range j.Results {
		results[i] = FileResultView{
			SourceName: r.SourceName,
			OutputName: r.OutputName,
			Status:     r.Status,
			Error:      cloneString(r.Error),
		}
	}
	return JobView{
		JobID:          j.ID,
		Category:       j.Category,
		TargetFormat:   j.TargetFormat,
		Status:         j.Status,
		Progress:       j.Progress(),
		TotalFiles:     j.TotalFiles,
		ProcessedFiles: j.ProcessedFiles,
		CreatedAt:      j.CreatedAt,
		Error:          cloneString(j.Error),
		Results:        results,
	}
}

// JobEventType names a terminal lifecycle event.
type JobEventType string

const (
	// JobEventCompleted is emitted when every file converted.
	JobEventCompleted JobEventType = "job.completed"
	// JobEventFailed is emitted when at least one file failed.
	JobEventFailed JobEventType = "job.failed"
	// JobEventCancelled is emitted when a running or pending job was cancelled.
	JobEventCancelled JobEventType = "job.cancelled"
)

// JobEvent is published when a job reaches a terminal state.
type JobEvent struct {
	Type       JobEventType `json:"type"`
	Job        JobView      `json:"job"`
	OccurredAt time.Time    `json:"occurredAt"`
}

// EventTypeFor maps a terminal status to its event type.
func EventTypeFor(status JobStatus) (JobEventType, bool) {
	switch status {
	case JobStatusCompleted:
		return JobEventCompleted, true
	case JobStatusFailed:
		return JobEventFailed, true
	case JobStatusCancelled:
		return JobEventCancelled, true
	default:
		return "", false
	}
}
