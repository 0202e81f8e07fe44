package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// EnsureSchema creates the catalog tables if they don't exist
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	createItems := `
		CREATE TABLE IF NOT EXISTS ` + tables.Items + ` (
			id        TEXT PRIMARY KEY,
			kind      TEXT NOT NULL CHECK (kind IN ('FILE', 'FOLDER')),
			url       VARCHAR(255),
			parent_id TEXT REFERENCES ` + tables.Items + `(id),
			size      BIGINT NOT NULL DEFAULT 0,
			date      TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := pool.Exec(ctx, createItems); err != nil {
		return fmt.Errorf("create %s: %w", tables.Items, err)
	}

	// No foreign key: history outlives moves and is purged explicitly
	createHistory := `
		CREATE TABLE IF NOT EXISTS ` + tables.History + ` (
			item_id   TEXT NOT NULL,
			date      TIMESTAMPTZ NOT NULL,
			kind      TEXT NOT NULL,
			url       VARCHAR(255),
			parent_id TEXT,
			size      BIGINT NOT NULL,
			PRIMARY KEY (item_id, date)
		)
	`
	if _, err := pool.Exec(ctx, createHistory); err != nil {
		return fmt.Errorf("create %s: %w", tables.History, err)
	}

	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_` + tables.Prefix + `items_parent ON ` + tables.Items + `(parent_id)`,
		`CREATE INDEX IF NOT EXISTS idx_` + tables.Prefix + `items_date ON ` + tables.Items + `(date, id)`,
	}
	for _, indexSQL := range indexes {
		if _, err := pool.Exec(ctx, indexSQL); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	return nil
}

// DropSchema drops the catalog tables
func DropSchema(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	for _, table := range []string{tables.History, tables.Items} {
		if _, err := pool.Exec(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE"); err != nil {
			return fmt.Errorf("drop %s: %w", table, err)
		}
	}
	return nil
}

// ClearCatalog deletes every item and snapshot, keeping the schema
func ClearCatalog(ctx context.Context, pool *pgxpool.Pool, tables *TableNames) error {
	_, err := pool.Exec(ctx, "TRUNCATE "+tables.History+", "+tables.Items)
	if err != nil {
		return fmt.Errorf("clear catalog: %w", err)
	}
	return nil
}
