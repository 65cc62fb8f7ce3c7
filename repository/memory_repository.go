package repository

import (
	"context"
	"sync"

	"github.com/ammiranda/tree_changelist/models"
)

// MemoryRepository implements Repository in process memory. It backs tests,
// the Lambda demo and single-process deployments that need no persistence.
type MemoryRepository struct {
	mu     sync.RWMutex
	forest *Forest
	nextID int64
}

// NewMemoryRepository creates a new in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		forest: NewForest(nil),
	}
}

// Initialize performs any necessary setup
func (m *MemoryRepository) Initialize(ctx context.Context) error {
	return nil
}

// Cleanup drops every node
func (m *MemoryRepository) Cleanup(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forest = NewForest(nil)
	m.nextID = 0
	return nil
}

// CreateNode creates a new node
func (m *MemoryRepository) CreateNode(ctx context.Context, label string, parentID *int64) (int64, error) {
	if label == "" {
		return 0, ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID + 1
	if err := m.forest.Append(&models.Node{ID: id, Label: label, ParentID: parentID}); err != nil {
		return 0, err
	}
	m.nextID = id
	m.forest.Renumber()
	return id, nil
}

// GetNode retrieves a node by ID
func (m *MemoryRepository) GetNode(ctx context.Context, id int64) (*models.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	node := m.forest.Get(id)
	if node == nil {
		return nil, ErrNodeNotFound
	}
	return node, nil
}

// ListNodes returns all nodes in depth-first order
func (m *MemoryRepository) ListNodes(ctx context.Context) ([]*models.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forest.Nodes(), nil
}

// GetPreviousSibling returns the sibling immediately before node
func (m *MemoryRepository) GetPreviousSibling(ctx context.Context, node *models.Node) (*models.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forest.PreviousSibling(node.ID), nil
}

// GetNextSibling returns the sibling immediately after node
func (m *MemoryRepository) GetNextSibling(ctx context.Context, node *models.Node) (*models.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forest.NextSibling(node.ID), nil
}

// GetParent returns the parent of node
func (m *MemoryRepository) GetParent(ctx context.Context, node *models.Node) (*models.Node, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.forest.Parent(node.ID), nil
}

// RepositionBefore moves node immediately before ref
func (m *MemoryRepository) RepositionBefore(ctx context.Context, node, ref *models.Node) error {
	return m.move(node, ref, PositionLeft)
}

// RepositionAfter moves node immediately after ref
func (m *MemoryRepository) RepositionAfter(ctx context.Context, node, ref *models.Node) error {
	return m.move(node, ref, PositionRight)
}

// RepositionAsLastChildOf moves node under ref as its last child
func (m *MemoryRepository) RepositionAsLastChildOf(ctx context.Context, node, ref *models.Node) error {
	return m.move(node, ref, PositionLastChild)
}

func (m *MemoryRepository) move(node, ref *models.Node, pos Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.forest.Move(node.ID, ref.ID, pos); err != nil {
		return err
	}
	m.forest.Renumber()
	return nil
}

// DeleteNode deletes a node and its children
func (m *MemoryRepository) DeleteNode(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.forest.Remove(id); err != nil {
		return err
	}
	m.forest.Renumber()
	return nil
}
