package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"diskcatalog/internal/repository/storetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T, path string) *Database {
	t.Helper()
	db, err := Open(context.Background(), path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newBackend(t *testing.T) storetest.Backend {
	db := openTestDB(t, ":memory:")
	return storetest.Backend{
		Tree:   NewTreeStore(db),
		Ledger: NewHistoryLedger(db),
		Tx:     NewTransactionManager(db),
	}
}

func TestTreeStore(t *testing.T) {
	storetest.RunTreeStoreSuite(t, newBackend)
}

func TestHistoryLedger(t *testing.T) {
	storetest.RunHistoryLedgerSuite(t, newBackend)
}

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{
			name: "memory",
			path: ":memory:",
			want: "file::memory:?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate",
		},
		{
			name: "file",
			path: "/tmp/catalog.db",
			want: "file:/tmp/catalog.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate&_pragma=journal_mode(WAL)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dsn(tt.path))
		})
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "catalog.db")

	db, err := Open(ctx, path, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	backend := storetest.Backend{Tree: NewTreeStore(db), Ledger: NewHistoryLedger(db)}
	storetest.SeedSample(t, ctx, backend.Tree)
	require.NoError(t, db.Close())

	reopened := openTestDB(t, path)
	children, err := NewTreeStore(reopened).Children(ctx, "root")
	require.NoError(t, err)
	assert.Len(t, children, 2)

	require.NoError(t, reopened.ClearCatalog(ctx))
	_, err = NewTreeStore(reopened).Get(ctx, "root")
	assert.Error(t, err)
}
