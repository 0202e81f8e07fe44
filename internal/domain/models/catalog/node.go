package catalog

import "time"

// NodeView is an item with its subtree nested under Children.
// Children is nil (JSON null) for files and for folders without children.
type NodeView struct {
	ID       string      `json:"id"`
	URL      *string     `json:"url"`
	Kind     ItemKind    `json:"type"`
	ParentID *string     `json:"parentId"`
	Date     time.Time   `json:"date"`
	Size     int64       `json:"size"`
	Children []*NodeView `json:"children"`
}

// NewNodeView creates a childless view of an item
func NewNodeView(item Item) *NodeView {
	return &NodeView{
		ID:       item.ID,
		URL:      item.URL,
		Kind:     item.Kind,
		ParentID: item.ParentID,
		Date:     item.Date,
		Size:     item.Size,
	}
}
