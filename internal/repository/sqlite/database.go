package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"diskcatalog/internal/domain/repositories"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id        TEXT PRIMARY KEY,
	kind      TEXT NOT NULL CHECK (kind IN ('FILE', 'FOLDER')),
	url       TEXT,
	parent_id TEXT REFERENCES items(id),
	size      INTEGER NOT NULL DEFAULT 0,
	date      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_parent ON items(parent_id, id);
CREATE INDEX IF NOT EXISTS idx_items_date ON items(date, id);

CREATE TABLE IF NOT EXISTS item_history (
	item_id   TEXT NOT NULL,
	date      INTEGER NOT NULL,
	kind      TEXT NOT NULL,
	url       TEXT,
	parent_id TEXT,
	size      INTEGER NOT NULL,
	PRIMARY KEY (item_id, date)
);
`

// executor is satisfied by both *sql.DB and *sql.Tx
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Database wraps a SQLite handle. Writers in this process are serialized by
// writeMu; the connection runs with immediate transactions so other
// processes wait on the busy timeout instead of failing an upgrade.
type Database struct {
	db      *sql.DB
	writeMu sync.Mutex
	logger  *slog.Logger
}

// Open opens (creating if needed) the catalog at path. ":memory:" gives a
// private in-memory catalog.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Database, error) {
	db, err := sql.Open("sqlite", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Every connection to :memory: is a separate database
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	d := &Database{db: db, logger: logger}
	if err := d.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite catalog opened", "path", path)
	return d, nil
}

func dsn(path string) string {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
		"_txlock=immediate",
	}
	if path != ":memory:" {
		pragmas = append(pragmas, "_pragma=journal_mode(WAL)")
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	if path == ":memory:" {
		return "file::memory:" + sep + strings.Join(pragmas, "&")
	}
	return "file:" + path + sep + strings.Join(pragmas, "&")
}

// EnsureSchema creates the catalog tables if they don't exist
func (d *Database) EnsureSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// DropSchema drops the catalog tables
func (d *Database) DropSchema(ctx context.Context) error {
	return d.update(ctx, func(ex executor) error {
		for _, table := range []string{"item_history", "items"} {
			if _, err := ex.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return fmt.Errorf("drop %s: %w", table, err)
			}
		}
		return nil
	})
}

// Close closes the underlying handle
func (d *Database) Close() error {
	return d.db.Close()
}

// Ping checks the connection
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// ClearCatalog deletes every item and snapshot
func (d *Database) ClearCatalog(ctx context.Context) error {
	return d.update(ctx, func(ex executor) error {
		if _, err := ex.ExecContext(ctx, "DELETE FROM item_history"); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		if _, err := ex.ExecContext(ctx, "DELETE FROM items"); err != nil {
			return fmt.Errorf("clear items: %w", err)
		}
		return nil
	})
}

type txKey struct{}

func txFrom(ctx context.Context) *sql.Tx {
	tx, _ := ctx.Value(txKey{}).(*sql.Tx)
	return tx
}

// executor returns the transaction carried by ctx, or the database handle
func (d *Database) executor(ctx context.Context) executor {
	if tx := txFrom(ctx); tx != nil {
		return tx
	}
	return d.db
}

// update runs fn inside the transaction carried by ctx, or inside a new one
func (d *Database) update(ctx context.Context, fn func(ex executor) error) error {
	if tx := txFrom(ctx); tx != nil {
		return fn(tx)
	}
	return d.execTx(ctx, func(txCtx context.Context) error {
		return fn(txFrom(txCtx))
	})
}

func (d *Database) execTx(ctx context.Context, fn repositories.TxFn) error {
	if txFrom(ctx) != nil {
		return fn(ctx)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			d.logger.Warn("rollback failed", "error", err)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// TransactionManager implements repositories.TransactionManager over SQLite
type TransactionManager struct {
	db *Database
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(db *Database) repositories.TransactionManager {
	return &TransactionManager{db: db}
}

// ExecTx executes fn within a transaction
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return tm.db.execTx(ctx, fn)
}
