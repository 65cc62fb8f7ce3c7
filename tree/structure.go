package tree

import (
	"github.com/ammiranda/tree_changelist/models"
)

// BuildStructure turns rows listed in (tree_id, lft) order into the per-node
// structure consumed by the changelist script.
//
// A parent referenced before its own row gets a placeholder entry with no
// level; the level is filled in once the parent's row is scanned. Rows are
// not reordered and nothing is validated.
func BuildStructure(rows []models.Row) models.Structure {
	structure := make(models.Structure, len(rows))

	entry := func(id int64) *models.StructureEntry {
		e, ok := structure[id]
		if !ok {
			e = &models.StructureEntry{Children: []int64{}}
			structure[id] = e
		}
		return e
	}

	for _, row := range rows {
		if row.ParentID != nil {
			parent := entry(*row.ParentID)
			parent.Children = append(parent.Children, row.ID)
		}

		e := entry(row.ID)
		level := row.Level
		e.Level = &level

		if row.ParentID == nil {
			e.Root = true
		}
	}

	return structure
}
