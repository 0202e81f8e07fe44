// Package storetest holds behaviour tests shared by every catalog backend.
package storetest

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"diskcatalog/internal/domain"
	"diskcatalog/internal/domain/models/catalog"
	"diskcatalog/internal/domain/repositories"
	catalogRepo "diskcatalog/internal/domain/repositories/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Backend bundles one freshly emptied store
type Backend struct {
	Tree   catalogRepo.TreeStore
	Ledger catalogRepo.HistoryLedger
	Tx     repositories.TransactionManager
}

// Factory returns an empty backend for a single subtest
type Factory func(t *testing.T) Backend

var base = time.Date(2022, 2, 1, 12, 0, 0, 0, time.UTC)

func at(hours int) time.Time { return base.Add(time.Duration(hours) * time.Hour) }

func ptr(s string) *string { return &s }

func folder(id string, date time.Time) *catalog.Item {
	return &catalog.Item{ID: id, Kind: catalog.KindFolder, Date: date}
}

func file(id string, size int64, date time.Time) *catalog.Item {
	return &catalog.Item{ID: id, Kind: catalog.KindFile, URL: ptr("/" + id), Size: size, Date: date}
}

func ids(items []catalog.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func sortedIDs(items []catalog.Item) []string {
	out := ids(items)
	sort.Strings(out)
	return out
}

// SeedSample builds root/{a/{f1,f2}, f3}
func SeedSample(t *testing.T, ctx context.Context, tree catalogRepo.TreeStore) {
	t.Helper()
	require.NoError(t, tree.Upsert(ctx, folder("root", at(0))))
	require.NoError(t, tree.Upsert(ctx, folder("a", at(0))))
	require.NoError(t, tree.Upsert(ctx, file("f1", 10, at(0))))
	require.NoError(t, tree.Upsert(ctx, file("f2", 20, at(0))))
	require.NoError(t, tree.Upsert(ctx, file("f3", 5, at(0))))
	require.NoError(t, tree.SetParent(ctx, "a", ptr("root")))
	require.NoError(t, tree.SetParent(ctx, "f1", ptr("a")))
	require.NoError(t, tree.SetParent(ctx, "f2", ptr("a")))
	require.NoError(t, tree.SetParent(ctx, "f3", ptr("root")))
}

// ============================================================================
// TREE STORE
// ============================================================================

// RunTreeStoreSuite checks a TreeStore implementation
func RunTreeStoreSuite(t *testing.T, newBackend Factory) {
	ctx := context.Background()

	t.Run("get missing is not found", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.Tree.Get(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("upsert creates at root", func(t *testing.T) {
		b := newBackend(t)
		item := file("f", 7, at(0))
		item.ParentID = ptr("ignored")
		require.NoError(t, b.Tree.Upsert(ctx, item))

		got, err := b.Tree.Get(ctx, "f")
		require.NoError(t, err)
		assert.Nil(t, got.ParentID)
		assert.Equal(t, catalog.KindFile, got.Kind)
		assert.Equal(t, int64(7), got.Size)
		assert.Equal(t, "/f", *got.URL)
		assert.True(t, got.Date.Equal(at(0)))
	})

	t.Run("upsert updates fields and keeps parent", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)

		updated := file("f1", 99, at(1))
		updated.URL = ptr("/moved")
		require.NoError(t, b.Tree.Upsert(ctx, updated))

		got, err := b.Tree.Get(ctx, "f1")
		require.NoError(t, err)
		require.NotNil(t, got.ParentID)
		assert.Equal(t, "a", *got.ParentID)
		assert.Equal(t, int64(99), got.Size)
		assert.Equal(t, "/moved", *got.URL)
		assert.True(t, got.Date.Equal(at(1)))
	})

	t.Run("upsert rejects kind change", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Tree.Upsert(ctx, file("x", 1, at(0))))
		err := b.Tree.Upsert(ctx, folder("x", at(1)))
		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("upsert rejects stale and equal dates", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Tree.Upsert(ctx, file("x", 1, at(2))))
		assert.ErrorIs(t, b.Tree.Upsert(ctx, file("x", 2, at(2))), domain.ErrStaleUpdate)
		assert.ErrorIs(t, b.Tree.Upsert(ctx, file("x", 2, at(1))), domain.ErrStaleUpdate)

		got, err := b.Tree.Get(ctx, "x")
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Size)
	})

	t.Run("children ordered by id", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)

		children, err := b.Tree.Children(ctx, "root")
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "f3"}, ids(children))

		children, err = b.Tree.Children(ctx, "f1")
		require.NoError(t, err)
		assert.Empty(t, children)

		_, err = b.Tree.Children(ctx, "nope")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("ancestors nearest first", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)

		chain, err := b.Tree.Ancestors(ctx, "f1", false)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "root"}, ids(chain))

		chain, err = b.Tree.Ancestors(ctx, "f1", true)
		require.NoError(t, err)
		assert.Equal(t, []string{"f1", "a", "root"}, ids(chain))

		chain, err = b.Tree.Ancestors(ctx, "root", false)
		require.NoError(t, err)
		assert.Empty(t, chain)
	})

	t.Run("descendants", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)

		all, err := b.Tree.Descendants(ctx, "root", false)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "f1", "f2", "f3"}, sortedIDs(all))

		all, err = b.Tree.Descendants(ctx, "a", true)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "f1", "f2"}, sortedIDs(all))

		_, err = b.Tree.Descendants(ctx, "nope", true)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("set parent rejects file parent", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)
		err := b.Tree.SetParent(ctx, "f2", ptr("f1"))
		assert.ErrorIs(t, err, domain.ErrInvalidParent)
	})

	t.Run("set parent rejects missing parent", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)
		err := b.Tree.SetParent(ctx, "f2", ptr("ghost"))
		assert.ErrorIs(t, err, domain.ErrInvalidParent)
	})

	t.Run("set parent rejects cycles", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)
		assert.ErrorIs(t, b.Tree.SetParent(ctx, "root", ptr("a")), domain.ErrInvalidParent)
		assert.ErrorIs(t, b.Tree.SetParent(ctx, "a", ptr("a")), domain.ErrInvalidParent)
	})

	t.Run("set parent moves and detaches", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)

		require.NoError(t, b.Tree.SetParent(ctx, "f3", ptr("a")))
		children, err := b.Tree.Children(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, []string{"f1", "f2", "f3"}, ids(children))

		require.NoError(t, b.Tree.SetParent(ctx, "f3", nil))
		got, err := b.Tree.Get(ctx, "f3")
		require.NoError(t, err)
		assert.Nil(t, got.ParentID)
	})

	t.Run("recompute size sums files only", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)
		require.NoError(t, b.Tree.SetAggregate(ctx, "a", 1000, at(1)))

		size, err := b.Tree.RecomputeSize(ctx, "root")
		require.NoError(t, err)
		assert.Equal(t, int64(35), size)

		size, err = b.Tree.RecomputeSize(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, int64(30), size)
	})

	t.Run("set aggregate bypasses monotonicity", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)
		require.NoError(t, b.Tree.SetAggregate(ctx, "a", 30, at(0)))

		got, err := b.Tree.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, int64(30), got.Size)

		assert.ErrorIs(t, b.Tree.SetAggregate(ctx, "nope", 1, at(0)), domain.ErrNotFound)
	})

	t.Run("remove subtree", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)

		require.NoError(t, b.Tree.Remove(ctx, []string{"a", "f1", "f2"}))
		_, err := b.Tree.Get(ctx, "f1")
		assert.ErrorIs(t, err, domain.ErrNotFound)

		children, err := b.Tree.Children(ctx, "root")
		require.NoError(t, err)
		assert.Equal(t, []string{"f3"}, ids(children))
	})

	t.Run("remove rejects orphaning", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)

		assert.Error(t, b.Tree.Remove(ctx, []string{"a"}))
		_, err := b.Tree.Get(ctx, "a")
		assert.NoError(t, err)
	})

	t.Run("list by date", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)
		require.NoError(t, b.Tree.Upsert(ctx, file("f1", 11, at(3))))

		items, err := b.Tree.ListByDate(ctx, at(3))
		require.NoError(t, err)
		assert.Equal(t, []string{"f1"}, ids(items))

		items, err = b.Tree.ListByDate(ctx, at(0))
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "f2", "f3", "root"}, sortedIDs(items))
	})

	t.Run("list files between is inclusive", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Tree.Upsert(ctx, file("early", 1, at(0))))
		require.NoError(t, b.Tree.Upsert(ctx, file("mid", 1, at(12))))
		require.NoError(t, b.Tree.Upsert(ctx, file("late", 1, at(24))))
		require.NoError(t, b.Tree.Upsert(ctx, file("after", 1, at(25))))
		require.NoError(t, b.Tree.Upsert(ctx, folder("dir", at(12))))

		items, err := b.Tree.ListFilesBetween(ctx, at(0), at(24))
		require.NoError(t, err)
		assert.Equal(t, []string{"early", "mid", "late"}, ids(items))
	})

	t.Run("transaction rollback discards writes", func(t *testing.T) {
		b := newBackend(t)
		SeedSample(t, ctx, b.Tree)

		boom := errors.New("boom")
		err := b.Tx.ExecTx(ctx, func(txCtx context.Context) error {
			require.NoError(t, b.Tree.Upsert(txCtx, file("f9", 1, at(1))))
			require.NoError(t, b.Tree.SetParent(txCtx, "f9", ptr("a")))
			require.NoError(t, b.Tree.Remove(txCtx, []string{"f3"}))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = b.Tree.Get(ctx, "f9")
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = b.Tree.Get(ctx, "f3")
		assert.NoError(t, err)
	})

	t.Run("transaction commits and nests", func(t *testing.T) {
		b := newBackend(t)
		err := b.Tx.ExecTx(ctx, func(txCtx context.Context) error {
			if err := b.Tree.Upsert(txCtx, folder("d", at(0))); err != nil {
				return err
			}
			return b.Tx.ExecTx(txCtx, func(inner context.Context) error {
				if err := b.Tree.Upsert(inner, file("x", 3, at(0))); err != nil {
					return err
				}
				return b.Tree.SetParent(inner, "x", ptr("d"))
			})
		})
		require.NoError(t, err)

		size, err := b.Tree.RecomputeSize(ctx, "d")
		require.NoError(t, err)
		assert.Equal(t, int64(3), size)
	})
}

// ============================================================================
// HISTORY LEDGER
// ============================================================================

// RunHistoryLedgerSuite checks a HistoryLedger implementation
func RunHistoryLedgerSuite(t *testing.T, newBackend Factory) {
	ctx := context.Background()

	record := func(id string, size int64, date time.Time) *catalog.HistoryRecord {
		return &catalog.HistoryRecord{ItemID: id, Kind: catalog.KindFile, URL: ptr("/" + id), Size: size, Date: date}
	}

	dates := func(records []catalog.HistoryRecord) []time.Time {
		out := make([]time.Time, 0, len(records))
		for _, r := range records {
			out = append(out, r.Date.UTC())
		}
		return out
	}

	t.Run("append is idempotent per date", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Ledger.Append(ctx, record("x", 1, at(0))))
		require.NoError(t, b.Ledger.Append(ctx, record("x", 2, at(0))))

		records, err := b.Ledger.Query(ctx, "x", nil, nil)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, int64(1), records[0].Size)
	})

	t.Run("query newest first with half-open range", func(t *testing.T) {
		b := newBackend(t)
		for h := 0; h < 4; h++ {
			require.NoError(t, b.Ledger.Append(ctx, record("x", int64(h), at(h))))
		}
		require.NoError(t, b.Ledger.Append(ctx, record("y", 9, at(1))))

		records, err := b.Ledger.Query(ctx, "x", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{at(3), at(2), at(1), at(0)}, dates(records))

		start, end := at(1), at(3)
		records, err = b.Ledger.Query(ctx, "x", &start, &end)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{at(2), at(1)}, dates(records))

		records, err = b.Ledger.Query(ctx, "x", nil, &start)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{at(0)}, dates(records))

		records, err = b.Ledger.Query(ctx, "x", &end, nil)
		require.NoError(t, err)
		assert.Equal(t, []time.Time{at(3)}, dates(records))
	})

	t.Run("query unknown id is empty", func(t *testing.T) {
		b := newBackend(t)
		records, err := b.Ledger.Query(ctx, "ghost", nil, nil)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("purge removes one item only", func(t *testing.T) {
		b := newBackend(t)
		require.NoError(t, b.Ledger.Append(ctx, record("x", 1, at(0))))
		require.NoError(t, b.Ledger.Append(ctx, record("x", 1, at(1))))
		require.NoError(t, b.Ledger.Append(ctx, record("y", 1, at(0))))

		require.NoError(t, b.Ledger.Purge(ctx, "x"))
		records, err := b.Ledger.Query(ctx, "x", nil, nil)
		require.NoError(t, err)
		assert.Empty(t, records)

		records, err = b.Ledger.Query(ctx, "y", nil, nil)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("snapshot preserves fields", func(t *testing.T) {
		b := newBackend(t)
		r := &catalog.HistoryRecord{ItemID: "d", Kind: catalog.KindFolder, ParentID: ptr("p"), Size: 42, Date: at(5)}
		require.NoError(t, b.Ledger.Append(ctx, r))

		records, err := b.Ledger.Query(ctx, "d", nil, nil)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, catalog.KindFolder, records[0].Kind)
		assert.Nil(t, records[0].URL)
		require.NotNil(t, records[0].ParentID)
		assert.Equal(t, "p", *records[0].ParentID)
		assert.Equal(t, int64(42), records[0].Size)
	})
}
