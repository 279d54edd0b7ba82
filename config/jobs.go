package config

import (
	"strings"
	"time"
)

// StorageConfig locates the on-disk job tree.
type StorageConfig struct {
	// JobStorageDir is the root under which each job owns <root>/<id>/.
	JobStorageDir string `env:"JOB_STORAGE_DIR" envDefault:"./storage/jobs"`
}

// Sanitize applies guardrails to storage configuration values.
func (s *StorageConfig) Sanitize() {
	s.JobStorageDir = strings.TrimSpace(s.JobStorageDir)
	if s.JobStorageDir == "" {
		s.JobStorageDir = "./storage/jobs"
	}
}

// WorkerConfig sizes the worker pool and its queue.
type WorkerConfig struct {
	// MaxConcurrentJobs is the number of jobs processed at once.
	MaxConcurrentJobs int `env:"MAX_CONCURRENT_JOBS" envDefault:"4"`

	// QueueCapacity bounds the number of accepted jobs waiting for a worker.
	// Submissions beyond it are rejected.
	QueueCapacity int `env:"QUEUE_CAPACITY" envDefault:"100"`
}

// Sanitize applies guardrails to worker configuration values.
func (w *WorkerConfig) Sanitize() {
	if w.MaxConcurrentJobs < 1 {
		w.MaxConcurrentJobs = 1
	}
	if w.MaxConcurrentJobs > 256 {
		w.MaxConcurrentJobs = 256
	}
	if w.QueueCapacity < 1 {
		w.QueueCapacity = 1
	}
}

// DefaultSweepInterval is the fixed cadence of the retention sweeper.
const DefaultSweepInterval = 6 * time.Hour

// SweeperConfig controls job retention.
type SweeperConfig struct {
	// RetentionDays is how long a job and its files are kept. 0 or less disables sweeping.
	RetentionDays int `env:"JOB_RETENTION_DAYS" envDefault:"7"`

	// Interval is the sweep cadence. Not read from the environment.
	Interval time.Duration
}

// Sanitize applies guardrails to sweeper configuration values.
func (s *SweeperConfig) Sanitize() {
	if s.Interval <= 0 {
		s.Interval = DefaultSweepInterval
	}
}

// Enabled reports whether retention sweeping is on.
func (s *SweeperConfig) Enabled() bool {
	return s.RetentionDays > 0
}

// Retention returns the retention window as a duration.
func (s *SweeperConfig) Retention() time.Duration {
	if s.RetentionDays <= 0 {
		return 0
	}
	return time.Duration(s.RetentionDays) * 24 * time.Hour
}
