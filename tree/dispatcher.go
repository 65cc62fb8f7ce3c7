package tree

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ammiranda/tree_changelist/models"
	"github.com/ammiranda/tree_changelist/repository"
)

// Store is the part of the tree storage the dispatcher needs. Neighbour
// lookups return nil, nil when there is no such neighbour.
type Store interface {
	GetNode(ctx context.Context, id int64) (*models.Node, error)
	GetPreviousSibling(ctx context.Context, node *models.Node) (*models.Node, error)
	GetNextSibling(ctx context.Context, node *models.Node) (*models.Node, error)
	GetParent(ctx context.Context, node *models.Node) (*models.Node, error)
	RepositionBefore(ctx context.Context, node, ref *models.Node) error
	RepositionAfter(ctx context.Context, node, ref *models.Node) error
	RepositionAsLastChildOf(ctx context.Context, node, ref *models.Node) error
}

// Reason explains the outcome of a dispatched move
type Reason string

const (
	ReasonApplied         Reason = "applied"
	ReasonInvalidMoveCode Reason = "invalid move code"
	ReasonNotFound        Reason = "node not found"
	ReasonNoNeighbor      Reason = "no neighbor"
)

// Outcome reports whether a move changed the tree
type Outcome struct {
	Applied bool
	Reason  Reason
}

// Dispatcher maps move codes onto neighbour-relative repositioning calls
type Dispatcher struct {
	store  Store
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher over store. A nil logger uses slog.Default.
func NewDispatcher(store Store, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		store:  store,
		logger: logger,
	}
}

// DispatchForm parses the posted move fields and dispatches them. The move
// code is checked before the node is looked up.
func (d *Dispatcher) DispatchForm(ctx context.Context, form models.MoveNodeForm) (Outcome, error) {
	code, err := models.ParseMoveCode(form.Move)
	if err != nil {
		return d.skip(ctx, form.NodeID, form.Move, ReasonInvalidMoveCode), nil
	}

	nodeID, err := strconv.ParseInt(strings.TrimSpace(form.NodeID), 10, 64)
	if err != nil || nodeID <= 0 {
		return d.skip(ctx, form.NodeID, code.String(), ReasonNotFound), nil
	}

	return d.Dispatch(ctx, nodeID, code)
}

// Dispatch applies a single move. Invalid codes, unknown nodes and missing
// neighbours are no-ops; only storage failures are returned as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, nodeID int64, code models.MoveCode) (Outcome, error) {
	id := strconv.FormatInt(nodeID, 10)

	if err := code.Validate(); err != nil {
		return d.skip(ctx, id, code.String(), ReasonInvalidMoveCode), nil
	}

	node, err := d.store.GetNode(ctx, nodeID)
	if err != nil {
		if errors.Is(err, repository.ErrNodeNotFound) {
			return d.skip(ctx, id, code.String(), ReasonNotFound), nil
		}
		return Outcome{}, fmt.Errorf("failed to load node %d: %w", nodeID, err)
	}

	var (
		ref      *models.Node
		relocate func(ctx context.Context, node, ref *models.Node) error
	)
	switch code {
	case models.MoveUp:
		ref, err = d.store.GetPreviousSibling(ctx, node)
		relocate = d.store.RepositionBefore
	case models.MoveDown:
		ref, err = d.store.GetNextSibling(ctx, node)
		relocate = d.store.RepositionAfter
	case models.MoveLeft:
		ref, err = d.store.GetParent(ctx, node)
		relocate = d.store.RepositionAfter
	case models.MoveRight:
		ref, err = d.store.GetPreviousSibling(ctx, node)
		relocate = d.store.RepositionAsLastChildOf
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to find %s neighbor of node %d: %w", code, nodeID, err)
	}
	if ref == nil {
		return d.skip(ctx, id, code.String(), ReasonNoNeighbor), nil
	}

	if err := relocate(ctx, node, ref); err != nil {
		return Outcome{}, fmt.Errorf("failed to move node %d %s: %w", nodeID, code, err)
	}

	d.logger.DebugContext(ctx, "node moved",
		"node_id", nodeID,
		"move", code.String(),
		"ref_id", ref.ID,
	)
	return Outcome{Applied: true, Reason: ReasonApplied}, nil
}

func (d *Dispatcher) skip(ctx context.Context, nodeID, move string, reason Reason) Outcome {
	d.logger.InfoContext(ctx, "move ignored",
		"node_id", nodeID,
		"move", move,
		"reason", string(reason),
	)
	return Outcome{Reason: reason}
}
