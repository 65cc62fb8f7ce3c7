package repository

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ammiranda/tree_changelist/config"
)

// Storage backends selectable through STORAGE_BACKEND
const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendBolt     = "bolt"
)

// Options selects and configures a storage backend
type Options struct {
	Backend    string
	SQLitePath string
	BoltPath   string
	// Provider supplies the PostgreSQL connection settings
	Provider config.Provider
}

// Open initializes the configured backend once and returns a repository per
// entity. All repositories share the backend's connection; the returned
// cleanup function closes it.
func Open(ctx context.Context, opts Options, entities []string) (map[string]Repository, func(context.Context) error, error) {
	if len(entities) == 0 {
		return nil, nil, fmt.Errorf("no entities to open storage for: %w", ErrInvalidInput)
	}

	repos := make(map[string]Repository, len(entities))
	var owner Repository

	switch opts.Backend {
	case BackendMemory, "":
		for _, entity := range entities {
			repos[entity] = NewMemoryRepository()
		}
		return repos, func(context.Context) error { return nil }, nil

	case BackendSQLite:
		base := NewSQLiteRepository(opts.SQLitePath, entities[0])
		if err := base.Initialize(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize sqlite repository: %w", err)
		}
		owner = base
		for _, entity := range entities {
			repos[entity] = base.WithEntity(entity)
		}

	case BackendPostgres:
		base, err := NewPostgresRepository(ctx, opts.Provider, entities[0])
		if err != nil {
			return nil, nil, err
		}
		if err := base.Initialize(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize postgres repository: %w", err)
		}
		owner = base
		for _, entity := range entities {
			repos[entity] = base.WithEntity(entity)
		}

	case BackendBolt:
		path := opts.BoltPath
		if path == "" {
			path = filepath.Join(filepath.Dir(DefaultSQLitePath()), "tree_changelist.bolt")
		}
		base := NewBoltRepository(path, entities[0])
		if err := base.Initialize(ctx); err != nil {
			return nil, nil, fmt.Errorf("failed to initialize bolt repository: %w", err)
		}
		owner = base
		for _, entity := range entities {
			fork, err := base.WithEntity(entity)
			if err != nil {
				base.Cleanup(ctx)
				return nil, nil, err
			}
			repos[entity] = fork
		}

	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}

	return repos, owner.Cleanup, nil
}
