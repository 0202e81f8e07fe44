package memory

import (
	"context"
	"slices"
	"time"

	"diskcatalog/internal/domain/models/catalog"
	catalogRepo "diskcatalog/internal/domain/repositories/catalog"
)

// HistoryLedger implements catalogRepo.HistoryLedger on a Database
type HistoryLedger struct {
	db *Database
}

// NewHistoryLedger creates a new in-memory history ledger
func NewHistoryLedger(db *Database) catalogRepo.HistoryLedger {
	return &HistoryLedger{db: db}
}

// Append stores record unless one already exists for (ItemID, Date)
func (l *HistoryLedger) Append(ctx context.Context, record *catalog.HistoryRecord) error {
	return l.db.update(ctx, func(s *state) error {
		if _, exists := s.history.Get(*record); exists {
			return nil
		}
		s.history.Set(*record)
		return nil
	})
}

// Query returns itemID's records in [start, end), newest first
func (l *HistoryLedger) Query(ctx context.Context, itemID string, start, end *time.Time) ([]catalog.HistoryRecord, error) {
	var records []catalog.HistoryRecord
	err := l.db.view(ctx, func(s *state) error {
		pivot := catalog.HistoryRecord{ItemID: itemID}
		if start != nil {
			pivot.Date = *start
		}
		s.history.Ascend(pivot, func(r catalog.HistoryRecord) bool {
			if r.ItemID != itemID {
				return false
			}
			if end != nil && !r.Date.Before(*end) {
				return false
			}
			records = append(records, r)
			return true
		})
		return nil
	})
	slices.Reverse(records)
	return records, err
}

// Purge removes all of itemID's records
func (l *HistoryLedger) Purge(ctx context.Context, itemID string) error {
	return l.db.update(ctx, func(s *state) error {
		var doomed []catalog.HistoryRecord
		s.history.Ascend(catalog.HistoryRecord{ItemID: itemID}, func(r catalog.HistoryRecord) bool {
			if r.ItemID != itemID {
				return false
			}
			doomed = append(doomed, r)
			return true
		})
		for _, r := range doomed {
			s.history.Delete(r)
		}
		return nil
	})
}
