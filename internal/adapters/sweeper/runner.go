// Package sweeper provides adapters for running the retention sweeper.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/converti/converti-api/config"
	"github.com/converti/converti-api/internal/core"
	"github.com/converti/converti-api/internal/observability/statsd"
	"github.com/converti/converti-api/internal/service"
)

// Runner provides a simple adapter to run the sweeper loop.
type Runner struct {
	sweeper *service.SweeperService
	logger  *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Registry core.JobRegistry
	Storage  core.JobStorage
	Config   config.SweeperConfig
	Logger   *slog.Logger

	// Remover deletes expired jobs. When nil, jobs are dropped from the
	// registry and storage only, which suits a process without a conversion service.
	Remover core.JobRemover
	Metrics statsd.Sink
}

// NewRunner creates a new sweeper runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	remover := opts.Remover
	if remover == nil {
		remover = &storageRemover{registry: opts.Registry, storage: opts.Storage}
	}

	svc, err := service.NewSweeperService(service.SweeperServiceOptions{
		Registry: opts.Registry,
		Storage:  opts.Storage,
		Remover:  remover,
		Config:   opts.Config,
		Logger:   opts.Logger,
		Metrics:  opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire sweeper service: %w", err)
	}

	return &Runner{sweeper: svc, logger: opts.Logger}, nil
}

func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.Registry == nil {
		return errors.New("job registry is required")
	}
	if opts.Storage == nil {
		return errors.New("job storage is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// Run starts the sweeper loop and runs until the context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting sweeper runner")
	return r.sweeper.Run(ctx)
}

// SweepOnce runs a single sweep.
func (r *Runner) SweepOnce(ctx context.Context) (service.SweepResult, error) {
	return r.sweeper.Sweep(ctx)
}

// storageRemover removes a job from the registry and disk.
type storageRemover struct {
	registry core.JobRegistry
	storage  core.JobStorage
}

func (a *storageRemover) Remove(_ context.Context, id string) error {
	a.registry.Delete(id)
	return a.storage.RemoveJob(id)
}
