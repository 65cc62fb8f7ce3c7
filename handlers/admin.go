package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ammiranda/tree_changelist/cache"
	"github.com/ammiranda/tree_changelist/config"
	"github.com/ammiranda/tree_changelist/models"
	"github.com/ammiranda/tree_changelist/repository"
	"github.com/ammiranda/tree_changelist/tree"
)

// TreeAdmin serves the changelist of one registered entity
type TreeAdmin struct {
	entity config.EntityConfig
	repo   repository.Repository
	cache  cache.CacheProvider
	logger *slog.Logger
}

// NewTreeAdmin creates the admin for entity. A nil provider disables caching.
func NewTreeAdmin(entity config.EntityConfig, repo repository.Repository, provider cache.CacheProvider, logger *slog.Logger) *TreeAdmin {
	if provider == nil {
		provider = cache.NoopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TreeAdmin{
		entity: entity,
		repo:   repo,
		cache:  provider,
		logger: logger,
	}
}

// Entity returns the entity configuration
func (a *TreeAdmin) Entity() config.EntityConfig {
	return a.entity
}

func (a *TreeAdmin) log(ctx context.Context) *slog.Logger {
	return LoggerFrom(ctx, a.logger).With("entity", a.entity.Name)
}

func (a *TreeAdmin) cacheKey() string {
	return cache.Key(a.entity.Name)
}

// LoadNodes returns every node of the entity in (tree_id, lft) order
func (a *TreeAdmin) LoadNodes(ctx context.Context) ([]*models.Node, error) {
	if nodes, found := a.cache.GetNodes(ctx, a.cacheKey()); found {
		return nodes, nil
	}

	nodes, err := a.repo.ListNodes(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", a.entity.Name, err)
	}

	a.cache.SetNodes(ctx, a.cacheKey(), nodes)
	return nodes, nil
}

// Structure builds the structure payload for the whole entity
func (a *TreeAdmin) Structure(ctx context.Context) (models.Structure, error) {
	nodes, err := a.LoadNodes(ctx)
	if err != nil {
		return nil, err
	}
	return a.buildStructure(ctx, nodes), nil
}

func (a *TreeAdmin) buildStructure(ctx context.Context, nodes []*models.Node) models.Structure {
	structure := tree.BuildStructure(models.RowsOf(nodes))
	if dangling := structure.Dangling(); len(dangling) > 0 {
		a.log(ctx).Warn("structure references unlisted parents", "node_ids", dangling)
	}
	return structure
}

// Move dispatches a posted move form. Storage is only touched for a valid
// move code and the cached listing is dropped after an applied move.
func (a *TreeAdmin) Move(ctx context.Context, form models.MoveNodeForm) (tree.Outcome, error) {
	dispatcher := tree.NewDispatcher(a.repo, a.log(ctx))

	outcome, err := dispatcher.DispatchForm(ctx, form)
	if err != nil {
		return outcome, err
	}
	if outcome.Applied {
		a.invalidate(ctx)
	}
	return outcome, nil
}

// CreateNode validates req and appends a node under its parent, or as the
// last root
func (a *TreeAdmin) CreateNode(ctx context.Context, req models.CreateNodeRequest) (*models.Node, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrInvalidInput, err)
	}

	var parentID *int64
	if req.ParentID > 0 {
		parentID = &req.ParentID
	}

	id, err := a.repo.CreateNode(ctx, req.Label, parentID)
	if err != nil {
		return nil, err
	}
	a.invalidate(ctx)

	return a.repo.GetNode(ctx, id)
}

// DeleteNode removes a node and its subtree
func (a *TreeAdmin) DeleteNode(ctx context.Context, id int64) error {
	if err := a.repo.DeleteNode(ctx, id); err != nil {
		return err
	}
	a.invalidate(ctx)
	return nil
}

func (a *TreeAdmin) invalidate(ctx context.Context) {
	if err := a.cache.InvalidateCache(ctx, a.cacheKey()); err != nil {
		a.log(ctx).Warn("failed to invalidate cache", "error", err)
	}
}
