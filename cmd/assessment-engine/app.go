package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/assessment-engine/internal/cache"
	"github.com/SAP-F-2025/assessment-engine/internal/config"
	"github.com/SAP-F-2025/assessment-engine/internal/events"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories/memory"
	"github.com/SAP-F-2025/assessment-engine/internal/repositories/postgres"
	"github.com/SAP-F-2025/assessment-engine/internal/services"
	"github.com/SAP-F-2025/assessment-engine/internal/utils"
	"github.com/SAP-F-2025/assessment-engine/internal/validator"
	"github.com/SAP-F-2025/assessment-engine/pkg"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// app holds the process-wide dependencies built from configuration.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	repo      repositories.Repository
	publisher events.EventPublisher
	manager   services.ServiceManager
	redis     *redis.Client
}

func newApp(ctx context.Context, v *viper.Viper) (*app, error) {
	cfg, err := config.LoadConfig(v)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := utils.NewSlog(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	if err := a.openStorage(ctx); err != nil {
		return nil, err
	}

	a.publisher, err = cfg.Events.CreateEventPublisher(logger.With("component", "events"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}

	chain := cfg.Grading.BuildChain(logger.With("component", "grading"))
	logger.Info("Grading chain configured", "tiers", chain.Tiers())

	a.manager = services.NewServiceManager(a.repo, chain, a.publisher, validator.New(), cfg.ManagerConfig(), logger)
	return a, nil
}

func (a *app) openStorage(ctx context.Context) error {
	switch a.cfg.StorageDriver {
	case config.StorageDriverMemory:
		a.logger.Warn("Using in-memory storage, data is lost on exit")
		a.repo = memory.NewRepository(memory.NewStore())
		return nil
	case config.StorageDriverPostgres:
	default:
		return fmt.Errorf("unsupported storage driver %q", a.cfg.StorageDriver)
	}

	db, err := pkg.InitDatabase(a.cfg)
	if err != nil {
		return err
	}

	cacheService := cache.NewNoopCache()
	if a.cfg.Redis.Enabled {
		a.redis, err = pkg.NewRedisClient(ctx, a.cfg)
		if err != nil {
			if sqlDB, dbErr := db.DB(); dbErr == nil {
				sqlDB.Close()
			}
			return err
		}
		cacheService = cache.NewRedisCache(a.redis, "assessment:", a.logger.With("component", "cache"))
	}

	a.repo = postgres.NewRepository(db, cacheService, a.logger.With("component", "postgres"))
	return nil
}

// Close waits for dispatched tasks and releases every connection.
func (a *app) Close() error {
	if a.manager != nil {
		a.manager.Wait()
	}

	var errs []error
	if a.publisher != nil {
		errs = append(errs, a.publisher.Close())
	}
	if a.repo != nil {
		errs = append(errs, a.repo.Close())
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	return errors.Join(errs...)
}
