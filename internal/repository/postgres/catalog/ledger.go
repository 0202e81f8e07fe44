package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	models "diskcatalog/internal/domain/models/catalog"
	catalogRepo "diskcatalog/internal/domain/repositories/catalog"
	"diskcatalog/internal/repository/postgres"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresHistoryLedger implements the HistoryLedger interface
type PostgresHistoryLedger struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewHistoryLedger creates a new history ledger
func NewHistoryLedger(config *postgres.RepositoryConfig) catalogRepo.HistoryLedger {
	return &PostgresHistoryLedger{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// Append stores record unless one already exists for (ItemID, Date)
func (r *PostgresHistoryLedger) Append(ctx context.Context, record *models.HistoryRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (item_id, date, kind, url, parent_id, size)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (item_id, date) DO NOTHING
	`, r.tables.History)

	_, err := postgres.GetExecutor(ctx, r.pool).Exec(ctx, query,
		record.ItemID,
		record.Date,
		string(record.Kind),
		record.URL,
		record.ParentID,
		record.Size,
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Query returns itemID's records in [start, end), newest first
func (r *PostgresHistoryLedger) Query(ctx context.Context, itemID string, start, end *time.Time) ([]models.HistoryRecord, error) {
	conds := []string{"item_id = $1"}
	args := []any{itemID}
	if start != nil {
		args = append(args, *start)
		conds = append(conds, fmt.Sprintf("date >= $%d", len(args)))
	}
	if end != nil {
		args = append(args, *end)
		conds = append(conds, fmt.Sprintf("date < $%d", len(args)))
	}

	query := fmt.Sprintf(`
		SELECT item_id, kind, url, parent_id, size, date
		FROM %s
		WHERE %s
		ORDER BY date DESC
	`, r.tables.History, strings.Join(conds, " AND "))

	rows, err := postgres.GetExecutor(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []models.HistoryRecord
	for rows.Next() {
		var (
			rec  models.HistoryRecord
			kind string
		)
		if err := rows.Scan(&rec.ItemID, &kind, &rec.URL, &rec.ParentID, &rec.Size, &rec.Date); err != nil {
			return nil, fmt.Errorf("scan history: %w", err)
		}
		rec.Kind = models.ItemKind(kind)
		rec.Date = rec.Date.UTC()
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Purge removes all of itemID's records
func (r *PostgresHistoryLedger) Purge(ctx context.Context, itemID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE item_id = $1`, r.tables.History)
	tag, err := postgres.GetExecutor(ctx, r.pool).Exec(ctx, query, itemID)
	if err != nil {
		return fmt.Errorf("purge history: %w", err)
	}
	r.logger.Debug("history purged", "item_id", itemID, "records", tag.RowsAffected())
	return nil
}
