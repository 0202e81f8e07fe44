package catalog

import (
	"context"
	"time"

	"diskcatalog/internal/domain/models/catalog"
)

// HistoryLedger is the append-only log of item snapshots keyed by
// (item id, date). It holds no reference into the tree beyond the id.
type HistoryLedger interface {
	// Append stores a snapshot; an existing (itemID, date) record makes
	// this a no-op
	Append(ctx context.Context, record *catalog.HistoryRecord) error

	// Query returns records of itemID with start <= date < end, newest
	// first. Nil bounds are open.
	Query(ctx context.Context, itemID string, start, end *time.Time) ([]catalog.HistoryRecord, error)

	// Purge removes every record of itemID
	Purge(ctx context.Context, itemID string) error
}
