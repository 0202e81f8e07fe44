package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"diskcatalog/internal/domain"
	"diskcatalog/internal/domain/models/catalog"
	catalogRepo "diskcatalog/internal/domain/repositories/catalog"
)

const itemColumns = "id, kind, url, parent_id, size, date"

// removeChunk keeps IN lists well below SQLite's variable limit
const removeChunk = 500

// TreeStore implements catalogRepo.TreeStore on SQLite
type TreeStore struct {
	db *Database
}

// NewTreeStore creates a new SQLite tree store
func NewTreeStore(db *Database) catalogRepo.TreeStore {
	return &TreeStore{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

// scanItem reads itemColumns followed by any extra columns
func scanItem(row scanner, extra ...any) (catalog.Item, error) {
	var (
		item     catalog.Item
		kind     string
		url      sql.NullString
		parentID sql.NullString
		micros   int64
	)
	dest := append([]any{&item.ID, &kind, &url, &parentID, &item.Size, &micros}, extra...)
	if err := row.Scan(dest...); err != nil {
		return item, err
	}
	item.Kind = catalog.ItemKind(kind)
	if url.Valid {
		item.URL = &url.String
	}
	if parentID.Valid {
		item.ParentID = &parentID.String
	}
	item.Date = fromMicros(micros)
	return item, nil
}

func collectItems(rows *sql.Rows) ([]catalog.Item, error) {
	defer rows.Close()
	var items []catalog.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func toMicros(t time.Time) int64 { return t.UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func get(ctx context.Context, ex executor, id string) (*catalog.Item, error) {
	row := ex.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

// Get retrieves an item by ID
func (t *TreeStore) Get(ctx context.Context, id string) (*catalog.Item, error) {
	return get(ctx, t.db.executor(ctx), id)
}

// Children lists the direct children of id
func (t *TreeStore) Children(ctx context.Context, id string) ([]catalog.Item, error) {
	ex := t.db.executor(ctx)
	if _, err := get(ctx, ex, id); err != nil {
		return nil, err
	}

	rows, err := ex.QueryContext(ctx, "SELECT "+itemColumns+" FROM items WHERE parent_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}
	return collectItems(rows)
}

func ancestors(ctx context.Context, ex executor, id string, includeSelf bool) ([]catalog.Item, error) {
	// depth bound stops the walk on corrupted (cyclic) data
	query := `
		WITH RECURSIVE chain(id, kind, url, parent_id, size, date, depth) AS (
			SELECT id, kind, url, parent_id, size, date, 0 FROM items WHERE id = ?
			UNION ALL
			SELECT i.id, i.kind, i.url, i.parent_id, i.size, i.date, c.depth + 1
			FROM items i JOIN chain c ON i.id = c.parent_id
			WHERE c.depth < 100000
		)
		SELECT ` + itemColumns + `, depth FROM chain ORDER BY depth`

	rows, err := ex.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("walk ancestors: %w", err)
	}
	defer rows.Close()

	var (
		chain []catalog.Item
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

// Ancestors walks parent links from id up to the root
func (t *TreeStore) Ancestors(ctx context.Context, id string, includeSelf bool) ([]catalog.Item, error) {
	return ancestors(ctx, t.db.executor(ctx), id, includeSelf)
}

// Descendants collects the subtree below id
func (t *TreeStore) Descendants(ctx context.Context, id string, includeSelf bool) ([]catalog.Item, error) {
	// UNION (not UNION ALL) drops rows already visited
	query := `
		WITH RECURSIVE sub(id, kind, url, parent_id, size, date) AS (
			SELECT ` + itemColumns + ` FROM items WHERE id = ?
			UNION
			SELECT i.id, i.kind, i.url, i.parent_id, i.size, i.date
			FROM items i JOIN sub s ON i.parent_id = s.id
		)
		SELECT ` + itemColumns + ` FROM sub`

	rows, err := t.db.executor(ctx).QueryContext(ctx, query, id)
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
func (t *TreeStore) Upsert(ctx context.Context, item *catalog.Item) error {
	return t.db.update(ctx, func(ex executor) error {
		existing, err := get(ctx, ex, item.ID)
		if errors.Is(err, domain.ErrNotFound) {
			_, err := ex.ExecContext(ctx,
				"INSERT INTO items ("+itemColumns+") VALUES (?, ?, ?, NULL, ?, ?)",
				item.ID, string(item.Kind), nullable(item.URL), item.Size, toMicros(item.Date))
			if err != nil {
				return fmt.Errorf("insert item: %w", err)
			}
			return nil
		}
		if err != nil {
			return err
		}

		if existing.Kind != item.Kind {
			return fmt.Errorf("%w: item %s is %s, got %s", domain.ErrInvalidTransition, item.ID, existing.Kind, item.Kind)
		}
		if !item.Date.After(existing.Date) {
			return fmt.Errorf("%w: item %s updated at %s, got %s", domain.ErrStaleUpdate,
				item.ID, existing.Date.Format(time.RFC3339Nano), item.Date.Format(time.RFC3339Nano))
		}

		_, err = ex.ExecContext(ctx,
			"UPDATE items SET url = ?, size = ?, date = ? WHERE id = ?",
			nullable(item.URL), item.Size, toMicros(item.Date), item.ID)
		if err != nil {
			return fmt.Errorf("update item: %w", err)
		}
		return nil
	})
}

// SetParent moves id under parentID, or to the root when parentID is nil
func (t *TreeStore) SetParent(ctx context.Context, id string, parentID *string) error {
	return t.db.update(ctx, func(ex executor) error {
		if _, err := get(ctx, ex, id); err != nil {
			return err
		}

		if parentID != nil {
			chain, err := ancestors(ctx, ex, *parentID, true)
			if errors.Is(err, domain.ErrNotFound) {
				return fmt.Errorf("%w: parent %s of %s does not exist", domain.ErrInvalidParent, *parentID, id)
			}
			if err != nil {
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

		if _, err := ex.ExecContext(ctx, "UPDATE items SET parent_id = ? WHERE id = ?", nullable(parentID), id); err != nil {
			return fmt.Errorf("set parent: %w", err)
		}
		return nil
	})
}

// SetAggregate overwrites size and date of an item
func (t *TreeStore) SetAggregate(ctx context.Context, id string, size int64, date time.Time) error {
	res, err := t.db.executor(ctx).ExecContext(ctx,
		"UPDATE items SET size = ?, date = ? WHERE id = ?", size, toMicros(date), id)
	if err != nil {
		return fmt.Errorf("set aggregate: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// RecomputeSize sums the sizes of all FILE descendants of folderID
func (t *TreeStore) RecomputeSize(ctx context.Context, folderID string) (int64, error) {
	ex := t.db.executor(ctx)
	if _, err := get(ctx, ex, folderID); err != nil {
		return 0, err
	}

	query := `
		WITH RECURSIVE sub(id, kind, size) AS (
			SELECT id, kind, size FROM items WHERE parent_id = ?
			UNION
			SELECT i.id, i.kind, i.size FROM items i JOIN sub s ON i.parent_id = s.id
		)
		SELECT COALESCE(SUM(size), 0) FROM sub WHERE kind = 'FILE'`

	var total int64
	if err := ex.QueryRowContext(ctx, query, folderID).Scan(&total); err != nil {
		return 0, fmt.Errorf("recompute size: %w", err)
	}
	return total, nil
}

// Remove deletes a descendant-closed set of items
func (t *TreeStore) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return t.db.update(ctx, func(ex executor) error {
		// Chunks may split a parent from its children; check at commit
		if _, err := ex.ExecContext(ctx, "PRAGMA defer_foreign_keys = ON"); err != nil {
			return fmt.Errorf("defer foreign keys: %w", err)
		}

		victims := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			victims[id] = struct{}{}
		}

		for start := 0; start < len(ids); start += removeChunk {
			chunk := ids[start:min(start+removeChunk, len(ids))]
			placeholders, args := inList(chunk)

			rows, err := ex.QueryContext(ctx, "SELECT id, parent_id FROM items WHERE parent_id IN ("+placeholders+")", args...)
			if err != nil {
				return fmt.Errorf("check removal set: %w", err)
			}
			for rows.Next() {
				var child, parent string
				if err := rows.Scan(&child, &parent); err != nil {
					rows.Close()
					return fmt.Errorf("scan child: %w", err)
				}
				if _, ok := victims[child]; !ok {
					rows.Close()
					return fmt.Errorf("remove %s: child %s is not part of the removal set", parent, child)
				}
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return err
			}

			if _, err := ex.ExecContext(ctx, "DELETE FROM items WHERE id IN ("+placeholders+")", args...); err != nil {
				return fmt.Errorf("remove items: %w", err)
			}
		}
		return nil
	})
}

func inList(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

// ListByDate returns items whose date equals date
func (t *TreeStore) ListByDate(ctx context.Context, date time.Time) ([]catalog.Item, error) {
	rows, err := t.db.executor(ctx).QueryContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE date = ? ORDER BY id", toMicros(date))
	if err != nil {
		return nil, fmt.Errorf("list by date: %w", err)
	}
	return collectItems(rows)
}

// ListFilesBetween returns files with from <= date <= to
func (t *TreeStore) ListFilesBetween(ctx context.Context, from, to time.Time) ([]catalog.Item, error) {
	rows, err := t.db.executor(ctx).QueryContext(ctx,
		"SELECT "+itemColumns+" FROM items WHERE kind = 'FILE' AND date >= ? AND date <= ? ORDER BY date, id",
		toMicros(from), toMicros(to))
	if err != nil {
		return nil, fmt.Errorf("list recent files: %w", err)
	}
	return collectItems(rows)
}
