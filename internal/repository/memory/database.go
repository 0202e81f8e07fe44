package memory

import (
	"context"
	"sync"
	"time"

	"diskcatalog/internal/domain/models/catalog"
	"diskcatalog/internal/domain/repositories"

	"github.com/tidwall/btree"
)

// state is one immutable-once-committed version of the catalog.
//
//	items    id → item (the arena)
//	children (parent, child) pairs, the children index
//	byDate   (date, id) pairs for date lookups
//	history  snapshots ordered by (item id, date)
//
// All four trees copy lazily, so a transaction starts with an O(1) copy.
type state struct {
	items    *btree.Map[string, catalog.Item]
	children *btree.BTreeG[edge]
	byDate   *btree.BTreeG[dateKey]
	history  *btree.BTreeG[catalog.HistoryRecord]
}

type edge struct {
	parent string
	child  string
}

type dateKey struct {
	date time.Time
	id   string
}

func edgeLess(a, b edge) bool {
	if a.parent != b.parent {
		return a.parent < b.parent
	}
	return a.child < b.child
}

func dateLess(a, b dateKey) bool {
	if !a.date.Equal(b.date) {
		return a.date.Before(b.date)
	}
	return a.id < b.id
}

func historyLess(a, b catalog.HistoryRecord) bool {
	if a.ItemID != b.ItemID {
		return a.ItemID < b.ItemID
	}
	return a.Date.Before(b.Date)
}

func newState() *state {
	return &state{
		items:    btree.NewMap[string, catalog.Item](0),
		children: btree.NewBTreeG(edgeLess),
		byDate:   btree.NewBTreeG(dateLess),
		history:  btree.NewBTreeG(historyLess),
	}
}

func (s *state) copy() *state {
	return &state{
		items:    s.items.Copy(),
		children: s.children.Copy(),
		byDate:   s.byDate.Copy(),
		history:  s.history.Copy(),
	}
}

// Database is an in-process catalog store.
//
// Writers are serialized by writeMu and mutate a private copy of the
// committed state; commit swaps the copy in under mu. Readers hold mu's read
// lock for the duration of a read, so they always see one committed version.
type Database struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	current *state
}

// NewDatabase creates an empty in-memory catalog
func NewDatabase() *Database {
	return &Database{current: newState()}
}

type txKey struct{}

func txState(ctx context.Context) *state {
	s, _ := ctx.Value(txKey{}).(*state)
	return s
}

// view runs fn against the transaction state carried by ctx, or against the
// committed state while holding the read lock
func (db *Database) view(ctx context.Context, fn func(s *state) error) error {
	if s := txState(ctx); s != nil {
		return fn(s)
	}
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(db.current)
}

// update runs fn against the transaction state carried by ctx; outside a
// transaction fn runs in its own single-operation transaction
func (db *Database) update(ctx context.Context, fn func(s *state) error) error {
	if s := txState(ctx); s != nil {
		return fn(s)
	}
	return db.execTx(ctx, func(ctx context.Context) error {
		return fn(txState(ctx))
	})
}

func (db *Database) execTx(ctx context.Context, fn repositories.TxFn) error {
	if txState(ctx) != nil {
		return fn(ctx)
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	db.mu.Lock()
	working := db.current.copy()
	db.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, working)); err != nil {
		// working is simply dropped
		return err
	}

	db.mu.Lock()
	db.current = working
	db.mu.Unlock()
	return nil
}

// Clear drops every item and snapshot
func (db *Database) Clear() {
	db.writeMu.Lock()
	defer db.writeMu.Unlock()
	db.mu.Lock()
	db.current = newState()
	db.mu.Unlock()
}

// TransactionManager implements repositories.TransactionManager over a Database
type TransactionManager struct {
	db *Database
}

// NewTransactionManager creates a new transaction manager
func NewTransactionManager(db *Database) repositories.TransactionManager {
	return &TransactionManager{db: db}
}

// ExecTx executes fn as one atomic unit of work
func (tm *TransactionManager) ExecTx(ctx context.Context, fn repositories.TxFn) error {
	return tm.db.execTx(ctx, fn)
}
