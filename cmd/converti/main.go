package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/converti/converti-api/config"
	"github.com/converti/converti-api/internal/adapters/objectstore"
	"github.com/converti/converti-api/internal/bootstrap"
	"github.com/redis/go-redis/v9"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	if err = bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}

	infra, err := initInfrastructure(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := infra.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close infrastructure failed", "error", cerr)
		}
	}()

	deps := &bootstrap.ServiceDeps{
		Config:      &cfg,
		RedisClient: infra.redis,
		Archives:    infra.archives,
		Logger:      logger,
	}
	if infra.events != nil {
		deps.Events = infra.events.Publisher
	}

	services, err := bootstrap.NewServices(deps)
	if err != nil {
		return err
	}
	if services.Observability.MetricsSink != nil {
		defer func() { _ = services.Observability.MetricsSink.Close() }()
	}

	return bootstrap.RunServicesWithShutdown(&bootstrap.ServiceOrchestrationConfig{
		Config:   &cfg,
		Services: services,
		Logger:   logger,
	})
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting converti service",
		"app_name", cfg.AppName,
		"api_prefix", cfg.APIPrefix,
		"storage_dir", cfg.Storage.JobStorageDir,
		"retention_days", cfg.Sweeper.RetentionDays,
		"enabled_services", bootstrap.GetEnabledServices(cfg))
}

// infrastructure holds the optional backing services; each is nil when disabled.
type infrastructure struct {
	redis    redis.UniversalClient
	archives *objectstore.ArchiveStore
	events   *bootstrap.EventBus
}

// Close releases every connection that was opened.
func (i *infrastructure) Close() error {
	var errs []error
	if i.events != nil {
		if err := i.events.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

// initInfrastructure connects the optional integrations that are enabled.
// A failure closes whatever was already opened.
func initInfrastructure(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{}
	fail := func(err error) (*infrastructure, error) {
		if cerr := infra.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return nil, err
	}

	if cfg.Redis.Enabled {
		client, err := bootstrap.ConnectRedis(ctx, bootstrap.DatabaseConfig{RedisConfig: cfg.Redis, Logger: logger})
		if err != nil {
			return fail(fmt.Errorf("connect redis: %w", err))
		}
		infra.redis = client
	}

	if cfg.ObjectStore.Enabled {
		store, err := bootstrap.ConnectObjectStore(ctx, cfg.ObjectStore, logger)
		if err != nil {
			return fail(fmt.Errorf("connect object store: %w", err))
		}
		infra.archives = store
	}

	if cfg.Events.Enabled {
		bus, err := bootstrap.ConnectEvents(ctx, cfg.Events, logger)
		if err != nil {
			return fail(fmt.Errorf("connect event broker: %w", err))
		}
		infra.events = bus
	}

	return infra, nil
}
