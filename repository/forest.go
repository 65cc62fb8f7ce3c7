package repository

import (
	"github.com/ammiranda/tree_changelist/models"
)

// Position says where a moved node lands relative to its reference node
type Position int

const (
	// PositionLeft places the node immediately before the reference
	PositionLeft Position = iota
	// PositionRight places the node immediately after the reference
	PositionRight
	// PositionLastChild places the node as the reference's last child
	PositionLastChild
)

// Forest is an in-memory nested-set model. Every storage backend loads its
// rows into a Forest, applies the structural change there and writes back the
// rows Renumber reports as changed.
type Forest struct {
	nodes    map[int64]*models.Node
	children map[int64][]int64
	roots    []int64
	saved    map[int64]models.Node
}

// NewForest builds a forest from nodes listed in (tree_id, lft) order.
// A node whose parent is not part of the listing is kept as a root.
func NewForest(nodes []*models.Node) *Forest {
	f := &Forest{
		nodes:    make(map[int64]*models.Node, len(nodes)),
		children: make(map[int64][]int64),
		saved:    make(map[int64]models.Node, len(nodes)),
	}
	for _, n := range nodes {
		f.nodes[n.ID] = n.Clone()
	}
	for _, n := range nodes {
		node := f.nodes[n.ID]
		if node.ParentID != nil {
			if _, ok := f.nodes[*node.ParentID]; ok {
				f.children[*node.ParentID] = append(f.children[*node.ParentID], node.ID)
				continue
			}
			node.ParentID = nil
		}
		f.roots = append(f.roots, node.ID)
	}
	f.snapshot()
	return f
}

func (f *Forest) snapshot() {
	f.saved = make(map[int64]models.Node, len(f.nodes))
	for id, n := range f.nodes {
		c := n.Clone()
		f.saved[id] = *c
	}
}

// Len returns the number of nodes
func (f *Forest) Len() int {
	return len(f.nodes)
}

// Get returns a copy of the node, or nil
func (f *Forest) Get(id int64) *models.Node {
	n, ok := f.nodes[id]
	if !ok {
		return nil
	}
	return n.Clone()
}

// Nodes returns copies of all nodes in depth-first order
func (f *Forest) Nodes() []*models.Node {
	out := make([]*models.Node, 0, len(f.nodes))
	f.walk(func(n *models.Node) {
		out = append(out, n.Clone())
	})
	return out
}

func (f *Forest) walk(visit func(n *models.Node)) {
	var rec func(id int64)
	rec = func(id int64) {
		visit(f.nodes[id])
		for _, child := range f.children[id] {
			rec(child)
		}
	}
	for _, root := range f.roots {
		rec(root)
	}
}

// siblings returns the ordered sibling list containing id
func (f *Forest) siblings(id int64) []int64 {
	n := f.nodes[id]
	if n.ParentID == nil {
		return f.roots
	}
	return f.children[*n.ParentID]
}

func (f *Forest) setSiblings(parentID *int64, ids []int64) {
	if parentID == nil {
		f.roots = ids
		return
	}
	if len(ids) == 0 {
		delete(f.children, *parentID)
		return
	}
	f.children[*parentID] = ids
}

func indexOf(ids []int64, id int64) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// PreviousSibling returns a copy of the sibling immediately before id, or nil
func (f *Forest) PreviousSibling(id int64) *models.Node {
	if _, ok := f.nodes[id]; !ok {
		return nil
	}
	sibs := f.siblings(id)
	i := indexOf(sibs, id)
	if i <= 0 {
		return nil
	}
	return f.Get(sibs[i-1])
}

// NextSibling returns a copy of the sibling immediately after id, or nil
func (f *Forest) NextSibling(id int64) *models.Node {
	if _, ok := f.nodes[id]; !ok {
		return nil
	}
	sibs := f.siblings(id)
	i := indexOf(sibs, id)
	if i < 0 || i == len(sibs)-1 {
		return nil
	}
	return f.Get(sibs[i+1])
}

// Parent returns a copy of the parent of id, or nil
func (f *Forest) Parent(id int64) *models.Node {
	n, ok := f.nodes[id]
	if !ok || n.ParentID == nil {
		return nil
	}
	return f.Get(*n.ParentID)
}

// isDescendant reports whether candidate lies in the subtree rooted at id
func (f *Forest) isDescendant(candidate, id int64) bool {
	for _, child := range f.children[id] {
		if child == candidate || f.isDescendant(candidate, child) {
			return true
		}
	}
	return false
}

// Append adds a new node as the last child of its parent, or as the last root
func (f *Forest) Append(node *models.Node) error {
	if _, exists := f.nodes[node.ID]; exists {
		return ErrInvalidInput
	}
	n := node.Clone()
	if n.ParentID != nil {
		if _, ok := f.nodes[*n.ParentID]; !ok {
			return ErrNodeNotFound
		}
		f.children[*n.ParentID] = append(f.children[*n.ParentID], n.ID)
	} else {
		f.roots = append(f.roots, n.ID)
	}
	f.nodes[n.ID] = n
	return nil
}

// Move relocates id and its subtree relative to ref
func (f *Forest) Move(id, ref int64, pos Position) error {
	node, ok := f.nodes[id]
	if !ok {
		return ErrNodeNotFound
	}
	target, ok := f.nodes[ref]
	if !ok {
		return ErrNodeNotFound
	}
	if id == ref || f.isDescendant(ref, id) {
		return ErrInvalidMove
	}

	// detach
	sibs := f.siblings(id)
	i := indexOf(sibs, id)
	detached := make([]int64, 0, len(sibs)-1)
	detached = append(detached, sibs[:i]...)
	detached = append(detached, sibs[i+1:]...)
	f.setSiblings(node.ParentID, detached)

	// attach
	switch pos {
	case PositionLastChild:
		parentID := target.ID
		node.ParentID = &parentID
		f.children[target.ID] = append(f.children[target.ID], id)
	case PositionLeft, PositionRight:
		var parentID *int64
		if target.ParentID != nil {
			p := *target.ParentID
			parentID = &p
		}
		node.ParentID = parentID
		sibs := f.siblings(ref)
		at := indexOf(sibs, ref)
		if pos == PositionRight {
			at++
		}
		attached := make([]int64, 0, len(sibs)+1)
		attached = append(attached, sibs[:at]...)
		attached = append(attached, id)
		attached = append(attached, sibs[at:]...)
		f.setSiblings(parentID, attached)
	default:
		return ErrInvalidMove
	}
	return nil
}

// Remove deletes id and its subtree, returning the removed ids in pre-order
func (f *Forest) Remove(id int64) ([]int64, error) {
	node, ok := f.nodes[id]
	if !ok {
		return nil, ErrNodeNotFound
	}

	var removed []int64
	var rec func(id int64)
	rec = func(id int64) {
		removed = append(removed, id)
		for _, child := range f.children[id] {
			rec(child)
		}
	}
	rec(id)

	sibs := f.siblings(id)
	i := indexOf(sibs, id)
	rest := make([]int64, 0, len(sibs)-1)
	rest = append(rest, sibs[:i]...)
	rest = append(rest, sibs[i+1:]...)
	f.setSiblings(node.ParentID, rest)

	for _, rid := range removed {
		delete(f.children, rid)
		delete(f.nodes, rid)
		delete(f.saved, rid)
	}
	return removed, nil
}

// Renumber recomputes tree_id, lft, rght and level for the whole forest and
// returns copies of the nodes that differ from the last renumbering (or from
// the loaded state), in depth-first order.
func (f *Forest) Renumber() []*models.Node {
	for i, root := range f.roots {
		counter := int64(1)
		var rec func(id int64, level int)
		rec = func(id int64, level int) {
			n := f.nodes[id]
			n.TreeID = int64(i + 1)
			n.Level = level
			n.Lft = counter
			counter++
			for _, child := range f.children[id] {
				rec(child, level+1)
			}
			n.Rght = counter
			counter++
		}
		rec(root, 0)
	}

	var changed []*models.Node
	f.walk(func(n *models.Node) {
		before, ok := f.saved[n.ID]
		if !ok || !sameNode(&before, n) {
			changed = append(changed, n.Clone())
		}
	})
	f.snapshot()
	return changed
}

func sameNode(a, b *models.Node) bool {
	if a.TreeID != b.TreeID || a.Lft != b.Lft || a.Rght != b.Rght || a.Level != b.Level || a.Label != b.Label {
		return false
	}
	if (a.ParentID == nil) != (b.ParentID == nil) {
		return false
	}
	return a.ParentID == nil || *a.ParentID == *b.ParentID
}
