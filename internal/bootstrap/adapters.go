package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/converti/converti-api/config"
	"github.com/converti/converti-api/internal/adapters/jobrunner"
	"github.com/converti/converti-api/internal/adapters/sweeper"
	"github.com/converti/converti-api/internal/core"
	"github.com/converti/converti-api/internal/observability/statsd"
)

// JobRunnerConfig contains configuration for the conversion worker pool.
type JobRunnerConfig struct {
	Queue       *jobrunner.Queue
	Processor   jobrunner.Processor
	Concurrency int
	Logger      *slog.Logger
	Metrics     statsd.Sink
}

// RunJobRunner starts the worker pool and blocks until ctx is cancelled.
func RunJobRunner(ctx context.Context, cfg JobRunnerConfig) error {
	runner, err := jobrunner.NewRunner(jobrunner.RunnerOptions{
		Queue:       cfg.Queue,
		Processor:   cfg.Processor,
		Logger:      cfg.Logger,
		Concurrency: cfg.Concurrency,
		Metrics:     cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create job runner: %w", err)
	}

	return runner.Run(ctx)
}

// SweeperConfig contains configuration for the retention sweeper.
type SweeperConfig struct {
	Registry core.JobRegistry
	Storage  core.JobStorage
	Remover  core.JobRemover
	Logger   *slog.Logger
	Config   config.SweeperConfig
	Metrics  statsd.Sink
}

// RunSweeper starts the retention sweeper.
func RunSweeper(ctx context.Context, cfg SweeperConfig) error {
	runner, err := sweeper.NewRunner(sweeper.RunnerOptions{
		Registry: cfg.Registry,
		Storage:  cfg.Storage,
		Remover:  cfg.Remover,
		Logger:   cfg.Logger,
		Config:   cfg.Config,
		Metrics:  cfg.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create sweeper runner: %w", err)
	}

	return runner.Run(ctx)
}
