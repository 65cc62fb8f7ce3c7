package repository

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ammiranda/tree_changelist/models"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"
)

// rootBucket holds one nested bucket per entity
var rootBucket = []byte("tree_nodes")

// BoltRepository implements Repository on an embedded bbolt file. Nodes are
// stored as JSON records keyed by their big-endian id.
type BoltRepository struct {
	db     *bolt.DB
	dbPath string
	entity []byte
	shared bool
}

// NewBoltRepository creates a new bbolt repository for entity
func NewBoltRepository(dbPath, entity string) *BoltRepository {
	return &BoltRepository{
		dbPath: dbPath,
		entity: []byte(entity),
	}
}

// Initialize opens the bolt file and creates the entity bucket
func (r *BoltRepository) Initialize(ctx context.Context) error {
	if dir := filepath.Dir(r.dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create bolt directory: %w", err)
		}
	}

	db, err := bolt.Open(r.dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return fmt.Errorf("failed to open bolt db: %w", err)
	}
	r.db = db

	if err := r.createBucket(); err != nil {
		db.Close()
		r.db = nil
		return err
	}
	return nil
}

func (r *BoltRepository) createBucket() error {
	err := r.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(rootBucket)
		if err != nil {
			return err
		}
		_, err = root.CreateBucketIfNotExists(r.entity)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create buckets: %w", err)
	}
	return nil
}

// WithEntity returns a repository for another entity sharing the open file.
// Cleanup on the returned repository leaves the file open.
func (r *BoltRepository) WithEntity(entity string) (*BoltRepository, error) {
	fork := &BoltRepository{
		db:     r.db,
		dbPath: r.dbPath,
		entity: []byte(entity),
		shared: true,
	}
	if err := fork.createBucket(); err != nil {
		return nil, err
	}
	return fork, nil
}

// Cleanup closes the bolt file
func (r *BoltRepository) Cleanup(ctx context.Context) error {
	if r.db != nil && !r.shared {
		return r.db.Close()
	}
	return nil
}

func itob(id int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func (r *BoltRepository) bucket(tx *bolt.Tx) (*bolt.Bucket, error) {
	root := tx.Bucket(rootBucket)
	if root == nil {
		return nil, fmt.Errorf("bucket %s not found", rootBucket)
	}
	b := root.Bucket(r.entity)
	if b == nil {
		return nil, fmt.Errorf("bucket %s/%s not found", rootBucket, r.entity)
	}
	return b, nil
}

// loadForest reads every record of the entity in (tree_id, lft) order
func (r *BoltRepository) loadForest(tx *bolt.Tx) (*Forest, error) {
	b, err := r.bucket(tx)
	if err != nil {
		return nil, err
	}

	var nodes []*models.Node
	err = b.ForEach(func(k, v []byte) error {
		var node models.Node
		if err := json.Unmarshal(v, &node); err != nil {
			return fmt.Errorf("failed to unmarshal node: %w", err)
		}
		nodes = append(nodes, &node)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].TreeID != nodes[j].TreeID {
			return nodes[i].TreeID < nodes[j].TreeID
		}
		return nodes[i].Lft < nodes[j].Lft
	})
	return NewForest(nodes), nil
}

func (r *BoltRepository) view(fn func(f *Forest) error) error {
	return r.db.View(func(tx *bolt.Tx) error {
		f, err := r.loadForest(tx)
		if err != nil {
			return err
		}
		return fn(f)
	})
}

// update applies change to the forest and writes back renumbered records
func (r *BoltRepository) update(change func(b *bolt.Bucket, f *Forest) error) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		b, err := r.bucket(tx)
		if err != nil {
			return err
		}
		f, err := r.loadForest(tx)
		if err != nil {
			return err
		}
		if err := change(b, f); err != nil {
			return err
		}
		for _, n := range f.Renumber() {
			data, err := json.Marshal(n)
			if err != nil {
				return fmt.Errorf("failed to marshal node: %w", err)
			}
			if err := b.Put(itob(n.ID), data); err != nil {
				return fmt.Errorf("failed to write node %d: %w", n.ID, err)
			}
		}
		return nil
	})
}

// CreateNode creates a new node
func (r *BoltRepository) CreateNode(ctx context.Context, label string, parentID *int64) (int64, error) {
	if label == "" {
		return 0, ErrInvalidInput
	}

	var id int64
	err := r.update(func(b *bolt.Bucket, f *Forest) error {
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		id = int64(seq)
		return f.Append(&models.Node{ID: id, Label: label, ParentID: parentID})
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetNode retrieves a node by ID
func (r *BoltRepository) GetNode(ctx context.Context, id int64) (*models.Node, error) {
	var node *models.Node
	err := r.db.View(func(tx *bolt.Tx) error {
		b, err := r.bucket(tx)
		if err != nil {
			return err
		}
		data := b.Get(itob(id))
		if data == nil {
			return ErrNodeNotFound
		}
		node = &models.Node{}
		return json.Unmarshal(data, node)
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

// ListNodes returns all nodes in depth-first order
func (r *BoltRepository) ListNodes(ctx context.Context) ([]*models.Node, error) {
	var nodes []*models.Node
	err := r.view(func(f *Forest) error {
		nodes = f.Nodes()
		return nil
	})
	return nodes, err
}

// GetPreviousSibling returns the sibling immediately before node
func (r *BoltRepository) GetPreviousSibling(ctx context.Context, node *models.Node) (*models.Node, error) {
	var sibling *models.Node
	err := r.view(func(f *Forest) error {
		sibling = f.PreviousSibling(node.ID)
		return nil
	})
	return sibling, err
}

// GetNextSibling returns the sibling immediately after node
func (r *BoltRepository) GetNextSibling(ctx context.Context, node *models.Node) (*models.Node, error) {
	var sibling *models.Node
	err := r.view(func(f *Forest) error {
		sibling = f.NextSibling(node.ID)
		return nil
	})
	return sibling, err
}

// GetParent returns the parent of node
func (r *BoltRepository) GetParent(ctx context.Context, node *models.Node) (*models.Node, error) {
	var parent *models.Node
	err := r.view(func(f *Forest) error {
		parent = f.Parent(node.ID)
		return nil
	})
	return parent, err
}

// RepositionBefore moves node immediately before ref
func (r *BoltRepository) RepositionBefore(ctx context.Context, node, ref *models.Node) error {
	return r.move(node, ref, PositionLeft)
}

// RepositionAfter moves node immediately after ref
func (r *BoltRepository) RepositionAfter(ctx context.Context, node, ref *models.Node) error {
	return r.move(node, ref, PositionRight)
}

// RepositionAsLastChildOf moves node under ref as its last child
func (r *BoltRepository) RepositionAsLastChildOf(ctx context.Context, node, ref *models.Node) error {
	return r.move(node, ref, PositionLastChild)
}

func (r *BoltRepository) move(node, ref *models.Node, pos Position) error {
	return r.update(func(b *bolt.Bucket, f *Forest) error {
		return f.Move(node.ID, ref.ID, pos)
	})
}

// DeleteNode deletes a node and its children
func (r *BoltRepository) DeleteNode(ctx context.Context, id int64) error {
	return r.update(func(b *bolt.Bucket, f *Forest) error {
		removed, err := f.Remove(id)
		if err != nil {
			return err
		}
		for _, rid := range removed {
			if err := b.Delete(itob(rid)); err != nil {
				return fmt.Errorf("failed to delete node %d: %w", rid, err)
			}
		}
		return nil
	})
}
