package catalog

import (
	"context"

	"diskcatalog/internal/domain/models/catalog"
)

// QueryService provides read-only views of the catalog
type QueryService interface {
	// RecentFiles lists files updated within [date-24h, date]
	RecentFiles(ctx context.Context, date string) ([]*catalog.NodeView, error)

	// NodeInfo returns an item with its subtree nested under children
	NodeInfo(ctx context.Context, id string) (*catalog.NodeView, error)

	// HistoryOf returns snapshots with start <= date < end, newest first.
	// Nil bounds are open. An empty result is domain.ErrNotFound.
	HistoryOf(ctx context.Context, id string, start, end *string) ([]catalog.HistoryRecord, error)
}
