package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ammiranda/tree_changelist/models"
)

const nodeColumns = "id, label, parent_id, tree_id, lft, rght, level"

// postgresEntityLock serializes mutations of one entity for the rest of the
// transaction. Without it two READ COMMITTED transactions can renumber the
// same starting forest and interleave their row updates.
const postgresEntityLock = "SELECT pg_advisory_xact_lock(hashtext(?))"

// sqlRepository holds the queries shared by the SQLite and PostgreSQL
// backends. Queries are written with ? placeholders and rebound per dialect.
type sqlRepository struct {
	db        *sql.DB
	entity    string
	numbered  bool
	returning bool
	// lock, when set, is run with lockKey before the forest is loaded
	lock string
}

func (r *sqlRepository) lockKey() string {
	return "tree_nodes:" + r.entity
}

func (r *sqlRepository) bind(query string) string {
	return rebind(query, r.numbered)
}

// rebind rewrites ? placeholders as $1, $2, ... when numbered is set
func rebind(query string, numbered bool) string {
	if !numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*models.Node, error) {
	var node models.Node
	var parentID sql.NullInt64
	if err := row.Scan(&node.ID, &node.Label, &parentID, &node.TreeID, &node.Lft, &node.Rght, &node.Level); err != nil {
		return nil, err
	}
	if parentID.Valid {
		node.ParentID = &parentID.Int64
	}
	return &node, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *sqlRepository) queryNodes(ctx context.Context, q queryer, query string, args ...any) ([]*models.Node, error) {
	rows, err := q.QueryContext(ctx, r.bind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("error querying nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*models.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning node: %w", err)
		}
		nodes = append(nodes, node)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}
	return nodes, nil
}

// queryNode returns nil, nil when the query yields no row
func (r *sqlRepository) queryNode(ctx context.Context, q queryer, query string, args ...any) (*models.Node, error) {
	node, err := scanNode(q.QueryRowContext(ctx, r.bind(query), args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("error getting node: %w", err)
	}
	return node, nil
}

func (r *sqlRepository) listAll(ctx context.Context, q queryer) ([]*models.Node, error) {
	return r.queryNodes(ctx, q,
		"SELECT "+nodeColumns+" FROM tree_nodes WHERE entity = ? ORDER BY tree_id, lft",
		r.entity,
	)
}

// ListNodes retrieves all nodes in depth-first order
func (r *sqlRepository) ListNodes(ctx context.Context) ([]*models.Node, error) {
	return r.listAll(ctx, r.db)
}

// GetNode retrieves a node by ID
func (r *sqlRepository) GetNode(ctx context.Context, id int64) (*models.Node, error) {
	node, err := r.queryNode(ctx, r.db,
		"SELECT "+nodeColumns+" FROM tree_nodes WHERE entity = ? AND id = ?",
		r.entity, id,
	)
	if err != nil {
		return nil, err
	}
	if node == nil {
		return nil, ErrNodeNotFound
	}
	return node, nil
}

// GetPreviousSibling returns the sibling immediately before node.
// Roots are ordered by tree_id, other siblings by lft.
func (r *sqlRepository) GetPreviousSibling(ctx context.Context, node *models.Node) (*models.Node, error) {
	if node.ParentID == nil {
		return r.queryNode(ctx, r.db,
			"SELECT "+nodeColumns+" FROM tree_nodes WHERE entity = ? AND parent_id IS NULL AND tree_id < ? ORDER BY tree_id DESC LIMIT 1",
			r.entity, node.TreeID,
		)
	}
	return r.queryNode(ctx, r.db,
		"SELECT "+nodeColumns+" FROM tree_nodes WHERE entity = ? AND parent_id = ? AND lft < ? ORDER BY lft DESC LIMIT 1",
		r.entity, *node.ParentID, node.Lft,
	)
}

// GetNextSibling returns the sibling immediately after node
func (r *sqlRepository) GetNextSibling(ctx context.Context, node *models.Node) (*models.Node, error) {
	if node.ParentID == nil {
		return r.queryNode(ctx, r.db,
			"SELECT "+nodeColumns+" FROM tree_nodes WHERE entity = ? AND parent_id IS NULL AND tree_id > ? ORDER BY tree_id ASC LIMIT 1",
			r.entity, node.TreeID,
		)
	}
	return r.queryNode(ctx, r.db,
		"SELECT "+nodeColumns+" FROM tree_nodes WHERE entity = ? AND parent_id = ? AND lft > ? ORDER BY lft ASC LIMIT 1",
		r.entity, *node.ParentID, node.Lft,
	)
}

// GetParent returns the parent of node, or nil for a root
func (r *sqlRepository) GetParent(ctx context.Context, node *models.Node) (*models.Node, error) {
	if node.ParentID == nil {
		return nil, nil
	}
	parent, err := r.GetNode(ctx, *node.ParentID)
	if errors.Is(err, ErrNodeNotFound) {
		return nil, nil
	}
	return parent, err
}

// CreateNode inserts a node as the last child of parentID (or last root) and
// renumbers the forest
func (r *sqlRepository) CreateNode(ctx context.Context, label string, parentID *int64) (int64, error) {
	if label == "" {
		return 0, ErrInvalidInput
	}

	var id int64
	err := r.withForest(ctx, func(tx *sql.Tx, f *Forest) error {
		if parentID != nil && f.Get(*parentID) == nil {
			return ErrNodeNotFound
		}

		var err error
		id, err = r.insert(ctx, tx, label, parentID)
		if err != nil {
			return err
		}
		return f.Append(&models.Node{ID: id, Label: label, ParentID: parentID})
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *sqlRepository) insert(ctx context.Context, tx *sql.Tx, label string, parentID *int64) (int64, error) {
	if r.returning {
		var id int64
		err := tx.QueryRowContext(ctx,
			r.bind("INSERT INTO tree_nodes (entity, label, parent_id) VALUES (?, ?, ?) RETURNING id"),
			r.entity, label, parentID,
		).Scan(&id)
		if err != nil {
			return 0, fmt.Errorf("error creating node: %w", err)
		}
		return id, nil
	}

	result, err := tx.ExecContext(ctx,
		r.bind("INSERT INTO tree_nodes (entity, label, parent_id) VALUES (?, ?, ?)"),
		r.entity, label, parentID,
	)
	if err != nil {
		return 0, fmt.Errorf("error creating node: %w", err)
	}
	return result.LastInsertId()
}

// RepositionBefore moves node immediately before ref
func (r *sqlRepository) RepositionBefore(ctx context.Context, node, ref *models.Node) error {
	return r.move(ctx, node, ref, PositionLeft)
}

// RepositionAfter moves node immediately after ref
func (r *sqlRepository) RepositionAfter(ctx context.Context, node, ref *models.Node) error {
	return r.move(ctx, node, ref, PositionRight)
}

// RepositionAsLastChildOf moves node under ref as its last child
func (r *sqlRepository) RepositionAsLastChildOf(ctx context.Context, node, ref *models.Node) error {
	return r.move(ctx, node, ref, PositionLastChild)
}

func (r *sqlRepository) move(ctx context.Context, node, ref *models.Node, pos Position) error {
	return r.withForest(ctx, func(tx *sql.Tx, f *Forest) error {
		return f.Move(node.ID, ref.ID, pos)
	})
}

// DeleteNode deletes a node and its descendants, children first
func (r *sqlRepository) DeleteNode(ctx context.Context, id int64) error {
	return r.withForest(ctx, func(tx *sql.Tx, f *Forest) error {
		removed, err := f.Remove(id)
		if err != nil {
			return err
		}
		for i := len(removed) - 1; i >= 0; i-- {
			if _, err := tx.ExecContext(ctx,
				r.bind("DELETE FROM tree_nodes WHERE entity = ? AND id = ?"),
				r.entity, removed[i],
			); err != nil {
				return fmt.Errorf("error deleting node %d: %w", removed[i], err)
			}
		}
		return nil
	})
}

// withForest loads the entity's forest inside a transaction, lets change
// mutate it, then writes back every renumbered row before committing
func (r *sqlRepository) withForest(ctx context.Context, change func(tx *sql.Tx, f *Forest) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if r.lock != "" {
		if _, err := tx.ExecContext(ctx, r.bind(r.lock), r.lockKey()); err != nil {
			return fmt.Errorf("error locking %s: %w", r.entity, err)
		}
	}

	nodes, err := r.listAll(ctx, tx)
	if err != nil {
		return err
	}

	forest := NewForest(nodes)
	if err := change(tx, forest); err != nil {
		return err
	}

	for _, n := range forest.Renumber() {
		if _, err := tx.ExecContext(ctx,
			r.bind("UPDATE tree_nodes SET parent_id = ?, tree_id = ?, lft = ?, rght = ?, level = ? WHERE entity = ? AND id = ?"),
			n.ParentID, n.TreeID, n.Lft, n.Rght, n.Level, r.entity, n.ID,
		); err != nil {
			return fmt.Errorf("error updating node %d: %w", n.ID, err)
		}
	}

	return tx.Commit()
}
