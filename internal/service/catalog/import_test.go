package catalog

import (
	"context"
	"testing"

	"diskcatalog/internal/domain"
	catalogSvc "diskcatalog/internal/domain/services/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// BATCH APPLICATION
// ============================================================================

func TestImport_SizesAcrossBatches(t *testing.T) {
	f := newFixture(t)

	f.mustImport(t, date1, folderDesc("f1", nil))
	f.mustImport(t, date2, fileDesc("c1", 50, strPtr("f1")))
	f.mustImport(t, date3, fileDesc("c2", 30, strPtr("f1")))

	folder := f.mustGet(t, "f1")
	assert.Equal(t, int64(80), folder.Size)
	assert.True(t, folder.Date.Equal(mustTime(t, date3)))
}

func TestImport_ForwardReference(t *testing.T) {
	f := newFixture(t)

	result := f.mustImport(t, date1,
		fileDesc("c1", 50, strPtr("f1")),
		fileDesc("c2", 30, strPtr("f2")),
		folderDesc("f2", strPtr("f1")),
		folderDesc("f1", nil),
	)
	assert.Equal(t, 4, result.Created)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 2, result.Aggregated)
	assert.Equal(t, 4, result.Snapshots)

	assert.Equal(t, int64(80), f.mustGet(t, "f1").Size)
	assert.Equal(t, int64(30), f.mustGet(t, "f2").Size)
	assert.Equal(t, "f2", *f.mustGet(t, "c2").ParentID)
}

func TestImport_UpdateBubblesDateAndSize(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, date1,
		folderDesc("root", nil),
		folderDesc("sub", strPtr("root")),
		fileDesc("a", 10, strPtr("sub")),
		fileDesc("b", 5, strPtr("root")),
	)

	result := f.mustImport(t, date2, fileDesc("a", 25, strPtr("sub")))
	assert.Equal(t, 1, result.Updated)

	assert.Equal(t, int64(30), f.mustGet(t, "root").Size)
	assert.Equal(t, int64(25), f.mustGet(t, "sub").Size)
	assert.True(t, f.mustGet(t, "root").Date.Equal(mustTime(t, date2)))
	assert.True(t, f.mustGet(t, "sub").Date.Equal(mustTime(t, date2)))
	assert.True(t, f.mustGet(t, "b").Date.Equal(mustTime(t, date1)))
}

func TestImport_EmptyFolderHasZeroSize(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, date1, folderDesc("empty", nil))
	assert.Equal(t, int64(0), f.mustGet(t, "empty").Size)
}

func TestImport_MoveReaggregatesBothChains(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, date1,
		folderDesc("left", nil),
		folderDesc("right", nil),
		fileDesc("x", 40, strPtr("left")),
		fileDesc("y", 2, strPtr("right")),
	)

	f.mustImport(t, date2, fileDesc("x", 40, strPtr("right")))

	left := f.mustGet(t, "left")
	assert.Equal(t, int64(0), left.Size)
	assert.True(t, left.Date.Equal(mustTime(t, date2)))
	assert.Equal(t, int64(42), f.mustGet(t, "right").Size)
}

func TestImport_MoveToRoot(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, date1, folderDesc("d", nil), fileDesc("x", 7, strPtr("d")))

	f.mustImport(t, date2, fileDesc("x", 7, nil))

	assert.Nil(t, f.mustGet(t, "x").ParentID)
	assert.Equal(t, int64(0), f.mustGet(t, "d").Size)
}

func TestImport_SwapParentsWithinBatch(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, date1,
		folderDesc("a", nil),
		folderDesc("b", strPtr("a")),
		fileDesc("x", 3, strPtr("b")),
	)

	// b becomes the root and a moves under it
	f.mustImport(t, date2, folderDesc("a", strPtr("b")), folderDesc("b", nil))

	assert.Equal(t, "b", *f.mustGet(t, "a").ParentID)
	assert.Nil(t, f.mustGet(t, "b").ParentID)
	assert.Equal(t, int64(3), f.mustGet(t, "b").Size)
	assert.Equal(t, int64(0), f.mustGet(t, "a").Size)
}

func TestImport_SameDateBatchesShareFolder(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, date1, folderDesc("d", nil), fileDesc("a", 1, strPtr("d")))
	f.mustImport(t, date1, fileDesc("b", 2, strPtr("d")))

	assert.Equal(t, int64(3), f.mustGet(t, "d").Size)
}

// ============================================================================
// REJECTIONS (whole batch, no partial effect)
// ============================================================================

func TestImport_Rejections(t *testing.T) {
	seed := func(t *testing.T) *fixture {
		f := newFixture(t)
		f.mustImport(t, date2,
			folderDesc("root", nil),
			folderDesc("sub", strPtr("root")),
			fileDesc("leaf", 10, strPtr("sub")),
		)
		return f
	}

	tests := []struct {
		name   string
		date   string
		items  []catalogSvc.ItemDescriptor
		target error
	}{
		{
			name:   "malformed date",
			date:   "2022/11/9 12:00:00",
			items:  []catalogSvc.ItemDescriptor{fileDesc("new", 1, nil)},
			target: domain.ErrMalformedTimestamp,
		},
		{
			name:   "duplicate ids",
			date:   date3,
			items:  []catalogSvc.ItemDescriptor{fileDesc("new", 1, nil), fileDesc("new", 2, nil)},
			target: domain.ErrValidation,
		},
		{
			name:   "kind change",
			date:   date3,
			items:  []catalogSvc.ItemDescriptor{fileDesc("new", 1, nil), folderDesc("leaf", nil)},
			target: domain.ErrInvalidTransition,
		},
		{
			name:   "equal date",
			date:   date2,
			items:  []catalogSvc.ItemDescriptor{fileDesc("new", 1, nil), fileDesc("leaf", 11, strPtr("sub"))},
			target: domain.ErrStaleUpdate,
		},
		{
			name:   "earlier date",
			date:   date1,
			items:  []catalogSvc.ItemDescriptor{fileDesc("leaf", 11, strPtr("sub"))},
			target: domain.ErrStaleUpdate,
		},
		{
			name:   "missing parent",
			date:   date3,
			items:  []catalogSvc.ItemDescriptor{fileDesc("new", 1, strPtr("ghost"))},
			target: domain.ErrInvalidParent,
		},
		{
			name:   "stored file as parent",
			date:   date3,
			items:  []catalogSvc.ItemDescriptor{fileDesc("new", 1, strPtr("leaf"))},
			target: domain.ErrInvalidParent,
		},
		{
			name:   "batch file as parent",
			date:   date3,
			items:  []catalogSvc.ItemDescriptor{fileDesc("new", 1, strPtr("other")), fileDesc("other", 1, nil)},
			target: domain.ErrInvalidParent,
		},
		{
			name:   "self parent",
			date:   date3,
			items:  []catalogSvc.ItemDescriptor{folderDesc("loop", strPtr("loop"))},
			target: domain.ErrCyclicReference,
		},
		{
			name: "cycle within batch",
			date: date3,
			items: []catalogSvc.ItemDescriptor{
				folderDesc("p", strPtr("q")),
				folderDesc("q", strPtr("r")),
				folderDesc("r", strPtr("p")),
				fileDesc("new", 1, nil),
			},
			target: domain.ErrCyclicReference,
		},
		{
			name:   "cycle through stored descendant",
			date:   date3,
			items:  []catalogSvc.ItemDescriptor{folderDesc("root", strPtr("sub"))},
			target: domain.ErrCyclicReference,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := seed(t)

			err := f.importErr(tt.date, tt.items...)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.ErrorIs(t, err, domain.ErrValidation)

			_, err = f.tree.Get(context.Background(), "new")
			assert.ErrorIs(t, err, domain.ErrNotFound, "no item of a rejected batch is persisted")

			leaf := f.mustGet(t, "leaf")
			assert.Equal(t, int64(10), leaf.Size)
			assert.True(t, leaf.Date.Equal(mustTime(t, date2)))
			assert.Equal(t, "sub", *leaf.ParentID)
			assert.Equal(t, "root", *f.mustGet(t, "sub").ParentID)
			assert.Nil(t, f.mustGet(t, "root").ParentID)
			assert.Equal(t, int64(10), f.mustGet(t, "root").Size)
			assert.Equal(t, 1, f.count(t))
		})
	}
}

func TestImport_StampsNewerAncestorsWithBatchDate(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, date3, folderDesc("root", nil))

	// root is newer than the batch; it is re-aggregated and stamped anyway
	f.mustImport(t, date2, fileDesc("late", 4, strPtr("root")))

	root := f.mustGet(t, "root")
	assert.Equal(t, int64(4), root.Size)
	assert.True(t, root.Date.Equal(mustTime(t, date2)))

	records, err := f.queries.HistoryOf(context.Background(), "root", nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.True(t, records[0].Date.Equal(mustTime(t, date3)))
	assert.True(t, records[1].Date.Equal(mustTime(t, date2)))
	assert.Equal(t, int64(4), records[1].Size)
}

// ============================================================================
// HISTORY MATERIALIZATION
// ============================================================================

func TestImport_SnapshotsBatchItemsAndAncestors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mustImport(t, date1,
		folderDesc("root", nil),
		folderDesc("sub", strPtr("root")),
		fileDesc("a", 10, strPtr("sub")),
		fileDesc("b", 5, strPtr("root")),
	)
	result := f.mustImport(t, date2, fileDesc("a", 20, strPtr("sub")))
	assert.Equal(t, 3, result.Snapshots)

	rootHistory, err := f.ledger.Query(ctx, "root", nil, nil)
	require.NoError(t, err)
	require.Len(t, rootHistory, 2)
	assert.True(t, rootHistory[0].Date.Equal(mustTime(t, date2)))
	assert.Equal(t, int64(25), rootHistory[0].Size)
	assert.Equal(t, int64(15), rootHistory[1].Size)

	bHistory, err := f.ledger.Query(ctx, "b", nil, nil)
	require.NoError(t, err)
	assert.Len(t, bHistory, 1)
}
