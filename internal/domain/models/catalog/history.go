package catalog

import "time"

// HistoryRecord is an immutable snapshot of an item at Date.
// At most one record exists per (ItemID, Date).
type HistoryRecord struct {
	ItemID   string    `json:"id"`
	Kind     ItemKind  `json:"type"`
	URL      *string   `json:"url"`
	ParentID *string   `json:"parentId"`
	Size     int64     `json:"size"`
	Date     time.Time `json:"date"`
}

// SnapshotOf captures the current state of an item
func SnapshotOf(item Item) HistoryRecord {
	return HistoryRecord{
		ItemID:   item.ID,
		Kind:     item.Kind,
		URL:      item.URL,
		ParentID: item.ParentID,
		Size:     item.Size,
		Date:     item.Date,
	}
}
