package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"diskcatalog/internal/domain"
	models "diskcatalog/internal/domain/models/catalog"
	catalogRepo "diskcatalog/internal/domain/repositories/catalog"
	"diskcatalog/internal/repository/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const itemColumns = "id, kind, url, parent_id, size, date"

// PostgresTreeStore implements the TreeStore interface
type PostgresTreeStore struct {
	pool   *pgxpool.Pool
	tables *postgres.TableNames
	logger *slog.Logger
}

// NewTreeStore creates a new tree store
func NewTreeStore(config *postgres.RepositoryConfig) catalogRepo.TreeStore {
	return &PostgresTreeStore{
		pool:   config.Pool,
		tables: config.Tables,
		logger: config.Logger,
	}
}

// scanItem reads itemColumns followed by any extra columns
func scanItem(row pgx.Row, extra ...any) (models.Item, error) {
	var (
		item models.Item
		kind string
	)
	dest := append([]any{&item.ID, &kind, &item.URL, &item.ParentID, &item.Size, &item.Date}, extra...)
	if err := row.Scan(dest...); err != nil {
		return item, err
	}
	item.Kind = models.ItemKind(kind)
	item.Date = item.Date.UTC()
	return item, nil
}

func collectItems(rows pgx.Rows) ([]models.Item, error) {
	defer rows.Close()
	var items []models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get retrieves an item by ID
func (r *PostgresTreeStore) Get(ctx context.Context, id string) (*models.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, itemColumns, r.tables.Items)

	executor := postgres.GetExecutor(ctx, r.pool)
	item, err := scanItem(executor.QueryRow(ctx, query, id))
	if err != nil {
		if postgres.IsPgNoRowsError(err) {
			return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

// Children lists the direct children of id
func (r *PostgresTreeStore) Children(ctx context.Context, id string) ([]models.Item, error) {
	if _, err := r.Get(ctx, id); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE parent_id = $1
		ORDER BY id COLLATE "C"
	`, itemColumns, r.tables.Items)

	rows, err := postgres.GetExecutor(ctx, r.pool).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return collectItems(rows)
}

// Ancestors walks parent links from id up to the root
func (r *PostgresTreeStore) Ancestors(ctx context.Context, id string, includeSelf bool) ([]models.Item, error) {
	// depth bound stops the walk on corrupted (cyclic) data
	query := fmt.Sprintf(`
		WITH RECURSIVE chain AS (
			SELECT %[1]s, 0 AS depth FROM %[2]s WHERE id = $1
			UNION ALL
			SELECT i.id, i.kind, i.url, i.parent_id, i.size, i.date, c.depth + 1
			FROM %[2]s i JOIN chain c ON i.id = c.parent_id
			WHERE c.depth < 100000
		)
		SELECT %[1]s, depth FROM chain ORDER BY depth
	`, itemColumns, r.tables.Items)

	rows, err := postgres.GetExecutor(ctx, r.pool).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("walk ancestors: %w", err)
	}
	defer rows.Close()

	var (
		chain []models.Item
		found bool
	)
	for rows.Next() {
		var depth int
		item, err := scanItem(rows, &depth)
		if err != nil {
			return nil, fmt.Errorf("scan ancestor: %w", err)
		}
		if depth == 0 {
			found = true
			if !includeSelf {
				continue
			}
		}
		chain = append(chain, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	return chain, nil
}

// Descendants collects the subtree below id
func (r *PostgresTreeStore) Descendants(ctx context.Context, id string, includeSelf bool) ([]models.Item, error) {
	// UNION drops rows already visited
	query := fmt.Sprintf(`
		WITH RECURSIVE sub AS (
			SELECT %[1]s FROM %[2]s WHERE id = $1
			UNION
			SELECT i.id, i.kind, i.url, i.parent_id, i.size, i.date
			FROM %[2]s i JOIN sub s ON i.parent_id = s.id
		)
		SELECT %[1]s FROM sub
	`, itemColumns, r.tables.Items)

	rows, err := postgres.GetExecutor(ctx, r.pool).Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("walk descendants: %w", err)
	}
	all, err := collectItems(rows)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	if includeSelf {
		return all, nil
	}

	out := all[:0]
	for _, item := range all {
		if item.ID != id {
			out = append(out, item)
		}
	}
	return out, nil
}

// Upsert creates an item at the root or updates url/size/date of an existing one
func (r *PostgresTreeStore) Upsert(ctx context.Context, item *models.Item) error {
	executor := postgres.GetExecutor(ctx, r.pool)

	existing, err := r.getForUpdate(ctx, item.ID)
	if err != nil && !postgres.IsPgNoRowsError(err) {
		return fmt.Errorf("get item: %w", err)
	}

	if existing == nil {
		query := fmt.Sprintf(`
			INSERT INTO %s (id, kind, url, parent_id, size, date)
			VALUES ($1, $2, $3, NULL, $4, $5)
		`, r.tables.Items)
		if _, err := executor.Exec(ctx, query, item.ID, string(item.Kind), item.URL, item.Size, item.Date); err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		return nil
	}

	if existing.Kind != item.Kind {
		return fmt.Errorf("%w: item %s is %s, got %s", domain.ErrInvalidTransition, item.ID, existing.Kind, item.Kind)
	}
	if !item.Date.After(existing.Date) {
		return fmt.Errorf("%w: item %s updated at %s, got %s", domain.ErrStaleUpdate,
			item.ID, existing.Date.Format(time.RFC3339Nano), item.Date.Format(time.RFC3339Nano))
	}

	query := fmt.Sprintf(`UPDATE %s SET url = $2, size = $3, date = $4 WHERE id = $1`, r.tables.Items)
	if _, err := executor.Exec(ctx, query, item.ID, item.URL, item.Size, item.Date); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// getForUpdate reads an item, locking its row when called inside a transaction
func (r *PostgresTreeStore) getForUpdate(ctx context.Context, id string) (*models.Item, error) {
	lock := ""
	if postgres.GetTx(ctx) != nil {
		lock = "FOR UPDATE"
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 %s`, itemColumns, r.tables.Items, lock)

	item, err := scanItem(postgres.GetExecutor(ctx, r.pool).QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// SetParent moves id under parentID, or to the root when parentID is nil
func (r *PostgresTreeStore) SetParent(ctx context.Context, id string, parentID *string) error {
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}

	if parentID != nil {
		chain, err := r.Ancestors(ctx, *parentID, true)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: parent %s of %s does not exist", domain.ErrInvalidParent, *parentID, id)
			}
			return err
		}
		if !chain[0].IsFolder() {
			return fmt.Errorf("%w: parent %s of %s is not a folder", domain.ErrInvalidParent, *parentID, id)
		}
		for _, ancestor := range chain {
			if ancestor.ID == id {
				return fmt.Errorf("%w: %s cannot be moved under its own descendant %s", domain.ErrInvalidParent, id, *parentID)
			}
		}
	}

	query := fmt.Sprintf(`UPDATE %s SET parent_id = $2 WHERE id = $1`, r.tables.Items)
	if _, err := postgres.GetExecutor(ctx, r.pool).Exec(ctx, query, id, parentID); err != nil {
		if postgres.IsPgForeignKeyError(err) {
			return fmt.Errorf("%w: parent %s of %s does not exist", domain.ErrInvalidParent, *parentID, id)
		}
		return fmt.Errorf("set parent: %w", err)
	}
	return nil
}

// SetAggregate overwrites size and date of an item
func (r *PostgresTreeStore) SetAggregate(ctx context.Context, id string, size int64, date time.Time) error {
	query := fmt.Sprintf(`UPDATE %s SET size = $2, date = $3 WHERE id = $1`, r.tables.Items)

	tag, err := postgres.GetExecutor(ctx, r.pool).Exec(ctx, query, id, size, date)
	if err != nil {
		return fmt.Errorf("set aggregate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// RecomputeSize sums the sizes of all FILE descendants of folderID
func (r *PostgresTreeStore) RecomputeSize(ctx context.Context, folderID string) (int64, error) {
	if _, err := r.Get(ctx, folderID); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		WITH RECURSIVE sub AS (
			SELECT id, kind, size FROM %[1]s WHERE parent_id = $1
			UNION
			SELECT i.id, i.kind, i.size FROM %[1]s i JOIN sub s ON i.parent_id = s.id
		)
		SELECT COALESCE(SUM(size), 0)::BIGINT FROM sub WHERE kind = 'FILE'
	`, r.tables.Items)

	var total int64
	if err := postgres.GetExecutor(ctx, r.pool).QueryRow(ctx, query, folderID).Scan(&total); err != nil {
		return 0, fmt.Errorf("recompute size: %w", err)
	}
	return total, nil
}

// Remove deletes a descendant-closed set of items
func (r *PostgresTreeStore) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	executor := postgres.GetExecutor(ctx, r.pool)

	orphanQuery := fmt.Sprintf(`
		SELECT id, parent_id FROM %s
		WHERE parent_id = ANY($1) AND NOT (id = ANY($1))
		LIMIT 1
	`, r.tables.Items)
	var child, parent string
	err := executor.QueryRow(ctx, orphanQuery, ids).Scan(&child, &parent)
	if err == nil {
		return fmt.Errorf("remove %s: child %s is not part of the removal set", parent, child)
	}
	if !postgres.IsPgNoRowsError(err) {
		return fmt.Errorf("check removal set: %w", err)
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, r.tables.Items)
	tag, err := executor.Exec(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("remove items: %w", err)
	}
	r.logger.Debug("items removed", "requested", len(ids), "deleted", tag.RowsAffected())
	return nil
}

// ListByDate returns items whose date equals date
func (r *PostgresTreeStore) ListByDate(ctx context.Context, date time.Time) ([]models.Item, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE date = $1 ORDER BY id COLLATE "C"`, itemColumns, r.tables.Items)

	rows, err := postgres.GetExecutor(ctx, r.pool).Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("list by date: %w", err)
	}
	return collectItems(rows)
}

// ListFilesBetween returns files with from <= date <= to
func (r *PostgresTreeStore) ListFilesBetween(ctx context.Context, from, to time.Time) ([]models.Item, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE kind = 'FILE' AND date >= $1 AND date <= $2
		ORDER BY date, id COLLATE "C"
	`, itemColumns, r.tables.Items)

	rows, err := postgres.GetExecutor(ctx, r.pool).Query(ctx, query, from, to)
	if err != nil {
		return nil, fmt.Errorf("list recent files: %w", err)
	}
	return collectItems(rows)
}
