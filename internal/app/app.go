package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ammiranda/tree_changelist/cache"
	"github.com/ammiranda/tree_changelist/config"
	"github.com/ammiranda/tree_changelist/handlers"
	"github.com/ammiranda/tree_changelist/repository"
)

// App holds the wired registry and the resources it owns
type App struct {
	Config   *config.AppConfig
	Registry *handlers.Registry
	Logger   *slog.Logger
	cleanup  func(context.Context) error
}

// Provider returns the configuration source. Settings come from AWS
// Secrets Manager when AWS_SECRET_NAME is set, otherwise from the
// environment.
func Provider(ctx context.Context) (config.Provider, error) {
	if os.Getenv("AWS_SECRET_NAME") == "" {
		return config.NewEnvProvider(""), nil
	}
	return config.NewAWSConfigProvider(ctx)
}

// New loads the configuration, opens storage and the cache, and registers
// one admin per configured entity
func New(ctx context.Context, provider config.Provider) (*App, error) {
	cfg, err := config.LoadAppConfig(ctx, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := config.NewLogger(os.Stdout, cfg.Environment, cfg.LogLevel)

	repos, cleanup, err := repository.Open(ctx, repository.Options{
		Backend:    cfg.StorageBackend,
		SQLitePath: cfg.SQLitePath,
		BoltPath:   cfg.BoltPath,
		Provider:   provider,
	}, cfg.EntityNames())
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	nodeCache, err := cache.NewProvider(ctx, cfg.CacheBackend, cfg.CacheTTL)
	if err != nil {
		cleanup(ctx)
		return nil, err
	}

	registry := handlers.NewRegistry(cfg.AdminPrefix, logger)
	for _, entity := range cfg.Entities {
		admin := handlers.NewTreeAdmin(entity, repos[entity.Name], nodeCache, logger)
		if err := registry.Register(admin); err != nil {
			cleanup(ctx)
			return nil, err
		}
	}

	logger.Info("admin configured",
		"storage", cfg.StorageBackend,
		"cache", cfg.CacheBackend,
		"prefix", registry.Prefix(),
		"entities", cfg.EntityNames(),
	)

	return &App{
		Config:   cfg,
		Registry: registry,
		Logger:   logger,
		cleanup:  cleanup,
	}, nil
}

// Close releases the storage connection
func (a *App) Close(ctx context.Context) error {
	return a.cleanup(ctx)
}
