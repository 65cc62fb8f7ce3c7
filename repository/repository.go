package repository

import (
	"context"
	"errors"

	"github.com/ammiranda/tree_changelist/models"
)

// Repository defines the interface for data access operations.
// It stores the nodes of one admin entity as a nested-set forest and owns
// every renumbering of tree_id, lft, rght and level.
type Repository interface {
	// Initialize performs any necessary setup for the repository.
	// This may include establishing database connections, running migrations,
	// or any other initialization required for the repository to function.
	// Returns an error if initialization fails.
	Initialize(ctx context.Context) error

	// Cleanup performs any necessary cleanup operations for the repository.
	// Returns an error if cleanup fails.
	Cleanup(ctx context.Context) error

	// CreateNode creates a new node as the last child of parentID, or as the
	// last root when parentID is nil.
	// Returns:
	//   - The ID of the newly created node
	//   - ErrNodeNotFound if the parent does not exist
	//   - ErrInvalidInput if the label is empty
	CreateNode(ctx context.Context, label string, parentID *int64) (int64, error)

	// GetNode retrieves a node by its ID.
	// Returns ErrNodeNotFound if no node exists with the given ID.
	GetNode(ctx context.Context, id int64) (*models.Node, error)

	// ListNodes returns every node in depth-first order (tree_id, lft).
	ListNodes(ctx context.Context) ([]*models.Node, error)

	// GetPreviousSibling returns the sibling immediately before node, or nil.
	GetPreviousSibling(ctx context.Context, node *models.Node) (*models.Node, error)

	// GetNextSibling returns the sibling immediately after node, or nil.
	GetNextSibling(ctx context.Context, node *models.Node) (*models.Node, error)

	// GetParent returns the parent of node, or nil for a root.
	GetParent(ctx context.Context, node *models.Node) (*models.Node, error)

	// RepositionBefore moves node (with its subtree) to sit immediately before ref.
	RepositionBefore(ctx context.Context, node, ref *models.Node) error

	// RepositionAfter moves node (with its subtree) to sit immediately after ref.
	RepositionAfter(ctx context.Context, node, ref *models.Node) error

	// RepositionAsLastChildOf moves node (with its subtree) under ref as its last child.
	RepositionAsLastChildOf(ctx context.Context, node, ref *models.Node) error

	// DeleteNode deletes a node and all its descendants.
	// Returns ErrNodeNotFound if no node exists with the given ID.
	DeleteNode(ctx context.Context, id int64) error
}

// Common errors
var (
	// ErrNodeNotFound is returned when a requested node does not exist
	ErrNodeNotFound = errors.New("node not found")
	// ErrInvalidInput is returned when the input parameters are invalid
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidMove is returned when a node would be moved relative to itself
	// or one of its own descendants
	ErrInvalidMove = errors.New("invalid move")
)
