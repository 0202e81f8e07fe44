package catalog

import (
	"time"
)

// ItemKind distinguishes leaves (files) from containers (folders)
type ItemKind string

const (
	KindFile   ItemKind = "FILE"
	KindFolder ItemKind = "FOLDER"
)

// Valid reports whether k is one of the known kinds
func (k ItemKind) Valid() bool {
	return k == KindFile || k == KindFolder
}

// Item is a catalog node. For folders Size is derived from FILE descendants.
type Item struct {
	ID       string    `json:"id"`
	Kind     ItemKind  `json:"type"`
	URL      *string   `json:"url"`      // NULL for folders
	ParentID *string   `json:"parentId"` // NULL = root level
	Size     int64     `json:"size"`
	Date     time.Time `json:"date"`
}

// IsFolder returns true for FOLDER items
func (i *Item) IsFolder() bool {
	return i.Kind == KindFolder
}

// ParentIs reports whether the item's parent equals parentID (nil = root)
func (i *Item) ParentIs(parentID *string) bool {
	if i.ParentID == nil || parentID == nil {
		return i.ParentID == nil && parentID == nil
	}
	return *i.ParentID == *parentID
}
