package tree

import (
	"context"
	"errors"
	"testing"

	"github.com/ammiranda/tree_changelist/models"
	"github.com/ammiranda/tree_changelist/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingStore wraps a memory repository and records every call
type recordingStore struct {
	*repository.MemoryRepository
	calls   []string
	moveErr error
}

func (s *recordingStore) GetNode(ctx context.Context, id int64) (*models.Node, error) {
	s.calls = append(s.calls, "GetNode")
	return s.MemoryRepository.GetNode(ctx, id)
}

func (s *recordingStore) GetPreviousSibling(ctx context.Context, node *models.Node) (*models.Node, error) {
	s.calls = append(s.calls, "GetPreviousSibling")
	return s.MemoryRepository.GetPreviousSibling(ctx, node)
}

func (s *recordingStore) GetNextSibling(ctx context.Context, node *models.Node) (*models.Node, error) {
	s.calls = append(s.calls, "GetNextSibling")
	return s.MemoryRepository.GetNextSibling(ctx, node)
}

func (s *recordingStore) GetParent(ctx context.Context, node *models.Node) (*models.Node, error) {
	s.calls = append(s.calls, "GetParent")
	return s.MemoryRepository.GetParent(ctx, node)
}

func (s *recordingStore) RepositionBefore(ctx context.Context, node, ref *models.Node) error {
	s.calls = append(s.calls, "RepositionBefore")
	if s.moveErr != nil {
		return s.moveErr
	}
	return s.MemoryRepository.RepositionBefore(ctx, node, ref)
}

func (s *recordingStore) RepositionAfter(ctx context.Context, node, ref *models.Node) error {
	s.calls = append(s.calls, "RepositionAfter")
	if s.moveErr != nil {
		return s.moveErr
	}
	return s.MemoryRepository.RepositionAfter(ctx, node, ref)
}

func (s *recordingStore) RepositionAsLastChildOf(ctx context.Context, node, ref *models.Node) error {
	s.calls = append(s.calls, "RepositionAsLastChildOf")
	if s.moveErr != nil {
		return s.moveErr
	}
	return s.MemoryRepository.RepositionAsLastChildOf(ctx, node, ref)
}

// setupStore seeds:
//
//	1
//	├── 2
//	└── 3
//	4
func setupStore(t *testing.T) *recordingStore {
	ctx := context.Background()
	repo := repository.NewMemoryRepository()

	root, err := repo.CreateNode(ctx, "root", nil)
	require.NoError(t, err)
	_, err = repo.CreateNode(ctx, "a", &root)
	require.NoError(t, err)
	_, err = repo.CreateNode(ctx, "b", &root)
	require.NoError(t, err)
	_, err = repo.CreateNode(ctx, "other", nil)
	require.NoError(t, err)

	return &recordingStore{MemoryRepository: repo}
}

func order(t *testing.T, s *recordingStore) []int64 {
	nodes, err := s.ListNodes(context.Background())
	require.NoError(t, err)
	ids := make([]int64, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	return ids
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		nodeID    int64
		code      models.MoveCode
		applied   bool
		reason    Reason
		mutation  string
		order     []int64
		parentOf3 *int64
	}{
		{"up", 3, models.MoveUp, true, ReasonApplied, "RepositionBefore", []int64{1, 3, 2, 4}, parent(1)},
		{"up first sibling", 2, models.MoveUp, false, ReasonNoNeighbor, "", []int64{1, 2, 3, 4}, parent(1)},
		{"down", 2, models.MoveDown, true, ReasonApplied, "RepositionAfter", []int64{1, 3, 2, 4}, parent(1)},
		{"down last sibling", 3, models.MoveDown, false, ReasonNoNeighbor, "", []int64{1, 2, 3, 4}, parent(1)},
		{"down last root", 4, models.MoveDown, false, ReasonNoNeighbor, "", []int64{1, 2, 3, 4}, parent(1)},
		{"left", 3, models.MoveLeft, true, ReasonApplied, "RepositionAfter", []int64{1, 2, 3, 4}, nil},
		{"left root", 1, models.MoveLeft, false, ReasonNoNeighbor, "", []int64{1, 2, 3, 4}, parent(1)},
		{"right", 3, models.MoveRight, true, ReasonApplied, "RepositionAsLastChildOf", []int64{1, 2, 3, 4}, parent(2)},
		{"right first sibling", 2, models.MoveRight, false, ReasonNoNeighbor, "", []int64{1, 2, 3, 4}, parent(1)},
		{"right root", 4, models.MoveRight, true, ReasonApplied, "RepositionAsLastChildOf", []int64{1, 2, 3, 4}, parent(1)},
		{"unknown node", 99, models.MoveUp, false, ReasonNotFound, "", []int64{1, 2, 3, 4}, parent(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupStore(t)
			d := NewDispatcher(store, nil)

			outcome, err := d.Dispatch(ctx, tt.nodeID, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.applied, outcome.Applied)
			assert.Equal(t, tt.reason, outcome.Reason)
			assert.Equal(t, tt.order, order(t, store))

			if tt.mutation != "" {
				assert.Equal(t, tt.mutation, store.calls[len(store.calls)-1])
			} else {
				for _, call := range store.calls {
					assert.NotContains(t, call, "Reposition")
				}
			}

			node, err := store.MemoryRepository.GetNode(ctx, 3)
			require.NoError(t, err)
			assert.Equal(t, tt.parentOf3, node.ParentID)
		})
	}
}

func TestDispatchLeftPlacesAfterParent(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)
	d := NewDispatcher(store, nil)

	outcome, err := d.Dispatch(ctx, 2, models.MoveLeft)
	require.NoError(t, err)
	assert.True(t, outcome.Applied)

	// 2 becomes the root right after its old parent, ahead of 4
	assert.Equal(t, []int64{1, 3, 2, 4}, order(t, store))
	node, err := store.GetNode(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, node.ParentID)
	assert.Equal(t, 0, node.Level)
}

func TestDispatchInvalidCode(t *testing.T) {
	ctx := context.Background()

	for _, code := range []models.MoveCode{0, 5, -1} {
		store := setupStore(t)
		d := NewDispatcher(store, nil)

		outcome, err := d.Dispatch(ctx, 2, code)
		require.NoError(t, err)
		assert.Equal(t, Outcome{Reason: ReasonInvalidMoveCode}, outcome)
		assert.Empty(t, store.calls, "no store call for code %d", code)
	}
}

func TestDispatchForm(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		form   models.MoveNodeForm
		reason Reason
		calls  int
	}{
		{"valid", models.MoveNodeForm{Action: "move", NodeID: "3", Move: "1"}, ReasonApplied, 3},
		{"move five", models.MoveNodeForm{Action: "move", NodeID: "3", Move: "5"}, ReasonInvalidMoveCode, 0},
		{"move text", models.MoveNodeForm{Action: "move", NodeID: "3", Move: "x"}, ReasonInvalidMoveCode, 0},
		{"move empty", models.MoveNodeForm{Action: "move", NodeID: "3"}, ReasonInvalidMoveCode, 0},
		{"bad code before bad node", models.MoveNodeForm{Action: "move", NodeID: "x", Move: "9"}, ReasonInvalidMoveCode, 0},
		{"node text", models.MoveNodeForm{Action: "move", NodeID: "abc", Move: "1"}, ReasonNotFound, 0},
		{"node zero", models.MoveNodeForm{Action: "move", NodeID: "0", Move: "1"}, ReasonNotFound, 0},
		{"node missing", models.MoveNodeForm{Action: "move", NodeID: "404", Move: "2"}, ReasonNotFound, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := setupStore(t)
			d := NewDispatcher(store, nil)

			outcome, err := d.DispatchForm(ctx, tt.form)
			require.NoError(t, err)
			assert.Equal(t, tt.reason, outcome.Reason)
			assert.Len(t, store.calls, tt.calls)
		})
	}
}

func TestDispatchStoreError(t *testing.T) {
	store := setupStore(t)
	store.moveErr = errors.New("database is locked")
	d := NewDispatcher(store, nil)

	_, err := d.Dispatch(context.Background(), 3, models.MoveUp)
	assert.ErrorIs(t, err, store.moveErr)
}
