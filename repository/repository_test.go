package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ammiranda/tree_changelist/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type backendFactory func(t *testing.T) Repository

var backends = map[string]backendFactory{
	"memory": func(t *testing.T) Repository {
		return NewMemoryRepository()
	},
	"sqlite": func(t *testing.T) Repository {
		return NewSQLiteRepository(filepath.Join(t.TempDir(), "tree.db"), "nodes")
	},
	"bolt": func(t *testing.T) Repository {
		return NewBoltRepository(filepath.Join(t.TempDir(), "tree.bolt"), "nodes")
	},
}

// setupRepository initializes a repository and registers its cleanup
func setupRepository(t *testing.T, factory backendFactory) Repository {
	repo := factory(t)
	require.NoError(t, repo.Initialize(context.Background()))
	t.Cleanup(func() {
		if err := repo.Cleanup(context.Background()); err != nil {
			t.Errorf("Failed to cleanup repository: %v", err)
		}
	})
	return repo
}

// seed creates the sample forest used across backend tests:
//
//	root
//	├── a
//	│   └── a1
//	└── b
//	other
func seed(t *testing.T, repo Repository) map[string]int64 {
	ctx := context.Background()
	ids := map[string]int64{}

	create := func(label string, parent string) {
		var parentID *int64
		if parent != "" {
			id := ids[parent]
			parentID = &id
		}
		id, err := repo.CreateNode(ctx, label, parentID)
		require.NoError(t, err)
		ids[label] = id
	}

	create("root", "")
	create("a", "root")
	create("b", "root")
	create("a1", "a")
	create("other", "")
	return ids
}

func labels(t *testing.T, repo Repository) []string {
	nodes, err := repo.ListNodes(context.Background())
	require.NoError(t, err)
	out := make([]string, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Label)
	}
	return out
}

func levels(t *testing.T, repo Repository) map[string]int {
	nodes, err := repo.ListNodes(context.Background())
	require.NoError(t, err)
	out := make(map[string]int, len(nodes))
	for _, n := range nodes {
		out[n.Label] = n.Level
	}
	return out
}

func mustGet(t *testing.T, repo Repository, id int64) *models.Node {
	node, err := repo.GetNode(context.Background(), id)
	require.NoError(t, err)
	return node
}

func TestRepositories(t *testing.T) {
	for name, factory := range backends {
		factory := factory
		t.Run(name, func(t *testing.T) {
			t.Run("CreateAndList", func(t *testing.T) { testCreateAndList(t, setupRepository(t, factory)) })
			t.Run("Neighbours", func(t *testing.T) { testNeighbours(t, setupRepository(t, factory)) })
			t.Run("Reposition", func(t *testing.T) { testReposition(t, setupRepository(t, factory)) })
			t.Run("InvalidMove", func(t *testing.T) { testInvalidMove(t, setupRepository(t, factory)) })
			t.Run("Delete", func(t *testing.T) { testDelete(t, setupRepository(t, factory)) })
			t.Run("Errors", func(t *testing.T) { testErrors(t, setupRepository(t, factory)) })
		})
	}
}

func testCreateAndList(t *testing.T, repo Repository) {
	ids := seed(t, repo)

	// Test pre-order listing
	assert.Equal(t, []string{"root", "a", "a1", "b", "other"}, labels(t, repo))
	assert.Equal(t, map[string]int{"root": 0, "a": 1, "a1": 2, "b": 1, "other": 0}, levels(t, repo))

	// Test nested-set bounds of the first tree
	root := mustGet(t, repo, ids["root"])
	assert.Nil(t, root.ParentID)
	assert.Equal(t, int64(1), root.Lft)
	assert.Equal(t, int64(8), root.Rght)

	a1 := mustGet(t, repo, ids["a1"])
	require.NotNil(t, a1.ParentID)
	assert.Equal(t, ids["a"], *a1.ParentID)
	assert.Equal(t, root.TreeID, a1.TreeID)

	other := mustGet(t, repo, ids["other"])
	assert.Greater(t, other.TreeID, root.TreeID)
}

func testNeighbours(t *testing.T, repo Repository) {
	ctx := context.Background()
	ids := seed(t, repo)

	// Test previous sibling
	prev, err := repo.GetPreviousSibling(ctx, mustGet(t, repo, ids["b"]))
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "a", prev.Label)

	prev, err = repo.GetPreviousSibling(ctx, mustGet(t, repo, ids["a"]))
	assert.NoError(t, err)
	assert.Nil(t, prev)

	// Test next sibling across roots
	next, err := repo.GetNextSibling(ctx, mustGet(t, repo, ids["root"]))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "other", next.Label)

	next, err = repo.GetNextSibling(ctx, mustGet(t, repo, ids["other"]))
	assert.NoError(t, err)
	assert.Nil(t, next)

	// Test parent
	parent, err := repo.GetParent(ctx, mustGet(t, repo, ids["a1"]))
	require.NoError(t, err)
	require.NotNil(t, parent)
	assert.Equal(t, "a", parent.Label)

	parent, err = repo.GetParent(ctx, mustGet(t, repo, ids["root"]))
	assert.NoError(t, err)
	assert.Nil(t, parent)
}

func testReposition(t *testing.T, repo Repository) {
	ctx := context.Background()
	ids := seed(t, repo)

	// Test moving b before a
	require.NoError(t, repo.RepositionBefore(ctx, mustGet(t, repo, ids["b"]), mustGet(t, repo, ids["a"])))
	assert.Equal(t, []string{"root", "b", "a", "a1", "other"}, labels(t, repo))

	// Test moving a1 after its parent
	require.NoError(t, repo.RepositionAfter(ctx, mustGet(t, repo, ids["a1"]), mustGet(t, repo, ids["a"])))
	assert.Equal(t, []string{"root", "b", "a", "a1", "other"}, labels(t, repo))
	assert.Equal(t, 1, levels(t, repo)["a1"])
	assert.Equal(t, ids["root"], *mustGet(t, repo, ids["a1"]).ParentID)

	// Test indenting a1 under a
	require.NoError(t, repo.RepositionAsLastChildOf(ctx, mustGet(t, repo, ids["a1"]), mustGet(t, repo, ids["a"])))
	assert.Equal(t, 2, levels(t, repo)["a1"])

	// Test moving other under root
	require.NoError(t, repo.RepositionAsLastChildOf(ctx, mustGet(t, repo, ids["other"]), mustGet(t, repo, ids["root"])))
	assert.Equal(t, []string{"root", "b", "a", "a1", "other"}, labels(t, repo))
	assert.Equal(t, map[string]int{"root": 0, "b": 1, "a": 1, "a1": 2, "other": 1}, levels(t, repo))

	root := mustGet(t, repo, ids["root"])
	assert.Equal(t, int64(1), root.Lft)
	assert.Equal(t, int64(10), root.Rght)

	// Test promoting a after root
	require.NoError(t, repo.RepositionAfter(ctx, mustGet(t, repo, ids["a"]), mustGet(t, repo, ids["root"])))
	assert.Equal(t, []string{"root", "b", "other", "a", "a1"}, labels(t, repo))
	a := mustGet(t, repo, ids["a"])
	assert.Nil(t, a.ParentID)
	assert.Equal(t, 0, a.Level)
}

func testInvalidMove(t *testing.T, repo Repository) {
	ctx := context.Background()
	ids := seed(t, repo)

	err := repo.RepositionAsLastChildOf(ctx, mustGet(t, repo, ids["root"]), mustGet(t, repo, ids["a1"]))
	assert.ErrorIs(t, err, ErrInvalidMove)

	// Test the forest is untouched
	assert.Equal(t, []string{"root", "a", "a1", "b", "other"}, labels(t, repo))
}

func testDelete(t *testing.T, repo Repository) {
	ctx := context.Background()
	ids := seed(t, repo)

	// Test deleting a subtree
	require.NoError(t, repo.DeleteNode(ctx, ids["a"]))
	assert.Equal(t, []string{"root", "b", "other"}, labels(t, repo))

	_, err := repo.GetNode(ctx, ids["a1"])
	assert.ErrorIs(t, err, ErrNodeNotFound)

	root := mustGet(t, repo, ids["root"])
	assert.Equal(t, int64(4), root.Rght)

	// Test deleting a missing node
	assert.ErrorIs(t, repo.DeleteNode(ctx, ids["a"]), ErrNodeNotFound)
}

func testErrors(t *testing.T, repo Repository) {
	ctx := context.Background()

	// Test empty label
	_, err := repo.CreateNode(ctx, "", nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	// Test unknown parent
	missing := int64(404)
	_, err = repo.CreateNode(ctx, "orphan", &missing)
	assert.ErrorIs(t, err, ErrNodeNotFound)

	// Test unknown node
	_, err = repo.GetNode(ctx, 404)
	assert.ErrorIs(t, err, ErrNodeNotFound)

	nodes, err := repo.ListNodes(ctx)
	assert.NoError(t, err)
	assert.Empty(t, nodes)
}

func TestRebind(t *testing.T) {
	query := "SELECT id FROM tree_nodes WHERE entity = ? AND id = ?"
	assert.Equal(t, query, rebind(query, false))
	assert.Equal(t, "SELECT id FROM tree_nodes WHERE entity = $1 AND id = $2", rebind(query, true))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("entities are isolated", func(t *testing.T) {
		for _, opts := range []Options{
			{Backend: BackendMemory},
			{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "tree.db")},
			{Backend: BackendBolt, BoltPath: filepath.Join(t.TempDir(), "tree.bolt")},
		} {
			repos, cleanup, err := Open(ctx, opts, []string{"pages", "menus"})
			require.NoError(t, err, opts.Backend)
			require.Len(t, repos, 2)

			_, err = repos["pages"].CreateNode(ctx, "home", nil)
			require.NoError(t, err)

			pages, err := repos["pages"].ListNodes(ctx)
			require.NoError(t, err)
			menus, err := repos["menus"].ListNodes(ctx)
			require.NoError(t, err)
			assert.Len(t, pages, 1, opts.Backend)
			assert.Empty(t, menus, opts.Backend)

			assert.NoError(t, cleanup(ctx))
		}
	})

	t.Run("no entities", func(t *testing.T) {
		_, _, err := Open(ctx, Options{Backend: BackendMemory}, nil)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, _, err := Open(ctx, Options{Backend: "cassandra"}, []string{"nodes"})
		assert.Error(t, err)
	})
}
