package models

import "sort"

// StructureEntry is the per-node view model handed to the changelist script.
// The short JSON keys are what the client script reads.
type StructureEntry struct {
	Children []int64 `json:"c"`
	Level    *int    `json:"l,omitempty"`
	Root     bool    `json:"r,omitempty"`
}

// Structure maps a node id to its entry
type Structure map[int64]*StructureEntry

// Dangling returns, in ascending order, the ids that were only ever seen as a
// parent reference and so have no known level.
func (s Structure) Dangling() []int64 {
	var ids []int64
	for id, entry := range s {
		if entry.Level == nil {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Roots returns the ids flagged as roots, in ascending order
func (s Structure) Roots() []int64 {
	var ids []int64
	for id, entry := range s {
		if entry.Root {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
