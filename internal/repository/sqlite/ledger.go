package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"diskcatalog/internal/domain/models/catalog"
	catalogRepo "diskcatalog/internal/domain/repositories/catalog"
)

// HistoryLedger implements catalogRepo.HistoryLedger on SQLite
type HistoryLedger struct {
	db *Database
}

// NewHistoryLedger creates a new SQLite history ledger
func NewHistoryLedger(db *Database) catalogRepo.HistoryLedger {
	return &HistoryLedger{db: db}
}

// Append stores record unless one already exists for (ItemID, Date)
func (l *HistoryLedger) Append(ctx context.Context, record *catalog.HistoryRecord) error {
	_, err := l.db.executor(ctx).ExecContext(ctx, `
		INSERT INTO item_history (item_id, date, kind, url, parent_id, size)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (item_id, date) DO NOTHING`,
		record.ItemID, toMicros(record.Date), string(record.Kind),
		nullable(record.URL), nullable(record.ParentID), record.Size)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Query returns itemID's records in [start, end), newest first
func (l *HistoryLedger) Query(ctx context.Context, itemID string, start, end *time.Time) ([]catalog.HistoryRecord, error) {
	conds := []string{"item_id = ?"}
	args := []any{itemID}
	if start != nil {
		conds = append(conds, "date >= ?")
		args = append(args, toMicros(*start))
	}
	if end != nil {
		conds = append(conds, "date < ?")
		args = append(args, toMicros(*end))
	}

	query := fmt.Sprintf(`
		SELECT item_id, kind, url, parent_id, size, date
		FROM item_history
		WHERE %s
		ORDER BY date DESC`, strings.Join(conds, " AND "))

	rows, err := l.db.executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []catalog.HistoryRecord
	for rows.Next() {
		var (
			r        catalog.HistoryRecord
			kind     string
			url      sql.NullString
			parentID sql.NullString
			micros   int64
		)
		if err := rows.Scan(&r.ItemID, &kind, &url, &parentID, &r.Size, &micros); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		r.Kind = catalog.ItemKind(kind)
		if url.Valid {
			r.URL = &url.String
		}
		if parentID.Valid {
			r.ParentID = &parentID.String
		}
		r.Date = fromMicros(micros)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Purge removes all of itemID's records
func (l *HistoryLedger) Purge(ctx context.Context, itemID string) error {
	if _, err := l.db.executor(ctx).ExecContext(ctx, "DELETE FROM item_history WHERE item_id = ?", itemID); err != nil {
		return fmt.Errorf("purge history: %w", err)
	}
	return nil
}
