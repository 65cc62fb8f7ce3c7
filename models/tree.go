package models

// Node represents a single stored record of a nested-set tree
type Node struct {
	ID       int64  `json:"id" dynamodbav:"id"`
	Label    string `json:"label" dynamodbav:"label"`
	ParentID *int64 `json:"parentId,omitempty" dynamodbav:"parentId,omitempty"`
	TreeID   int64  `json:"treeId" dynamodbav:"treeId"`
	Lft      int64  `json:"lft" dynamodbav:"lft"`
	Rght     int64  `json:"rght" dynamodbav:"rght"`
	Level    int    `json:"level" dynamodbav:"level"`
}

// IsRoot reports whether the node has no parent
func (n *Node) IsRoot() bool {
	return n.ParentID == nil
}

// Row returns the (id, parent, level) triple the structure builder consumes
func (n *Node) Row() Row {
	return Row{
		ID:       n.ID,
		ParentID: n.ParentID,
		Level:    n.Level,
	}
}

// Clone returns a copy of the node that shares no pointers with the original
func (n *Node) Clone() *Node {
	c := *n
	if n.ParentID != nil {
		parentID := *n.ParentID
		c.ParentID = &parentID
	}
	return &c
}

// Row is one entry of a depth-first listing of a forest
type Row struct {
	ID       int64
	ParentID *int64
	Level    int
}

// RowsOf converts an ordered node listing into builder rows, keeping order
func RowsOf(nodes []*Node) []Row {
	rows := make([]Row, 0, len(nodes))
	for _, n := range nodes {
		rows = append(rows, n.Row())
	}
	return rows
}
