package catalog

import (
	"context"
	"testing"

	"diskcatalog/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedDeleteTree(t *testing.T) *fixture {
	f := newFixture(t)
	f.mustImport(t, date1,
		folderDesc("root", nil),
		folderDesc("f1", strPtr("root")),
		fileDesc("c1", 50, strPtr("f1")),
		fileDesc("c2", 30, strPtr("f1")),
		fileDesc("other", 7, strPtr("root")),
	)
	return f
}

func TestDeleteNode_CascadesAndReaggregates(t *testing.T) {
	f := seedDeleteTree(t)
	ctx := context.Background()

	result, err := f.deletes.DeleteNode(ctx, "f1", date2)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Removed)
	assert.Equal(t, 1, result.Aggregated)

	for _, id := range []string{"f1", "c1", "c2"} {
		_, err := f.tree.Get(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound, id)

		_, err = f.queries.HistoryOf(ctx, id, nil, nil)
		assert.ErrorIs(t, err, domain.ErrNotFound, id)
	}

	root := f.mustGet(t, "root")
	assert.Equal(t, int64(7), root.Size)
	assert.True(t, root.Date.Equal(mustTime(t, date2)))
	assert.True(t, f.mustGet(t, "other").Date.Equal(mustTime(t, date1)))
}

func TestDeleteNode_FileAtRoot(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, date1, fileDesc("solo", 1, nil))

	result, err := f.deletes.DeleteNode(context.Background(), "solo", date2)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)
	assert.Equal(t, 0, result.Aggregated)
	assert.Equal(t, 0, f.count(t))
}

func TestDeleteNode_KeepsSurvivingHistory(t *testing.T) {
	f := seedDeleteTree(t)
	ctx := context.Background()

	_, err := f.deletes.DeleteNode(ctx, "c1", date2)
	require.NoError(t, err)

	records, err := f.queries.HistoryOf(ctx, "c2", nil, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, int64(30), f.mustGet(t, "f1").Size)
	assert.Equal(t, int64(37), f.mustGet(t, "root").Size)
}

func TestDeleteNode_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		date   string
		target error
	}{
		{name: "unknown id", id: "ghost", date: date2, target: domain.ErrNotFound},
		{name: "missing date", id: "c1", date: "", target: domain.ErrMalformedTimestamp},
		{name: "malformed date", id: "c1", date: "2022/11/9 12:00:00", target: domain.ErrMalformedTimestamp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := seedDeleteTree(t)
			_, err := f.deletes.DeleteNode(context.Background(), tt.id, tt.date)
			assert.ErrorIs(t, err, tt.target)

			assert.Equal(t, 3, f.count(t))
			assert.Equal(t, int64(87), f.mustGet(t, "root").Size)
		})
	}
}

func TestDeleteNode_AnyDateIsAccepted(t *testing.T) {
	tests := []struct {
		name string
		date string
	}{
		{name: "date equal to item date", date: date1},
		{name: "date before item date", date: "2022-09-10T12:00:00Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := seedDeleteTree(t)
			ctx := context.Background()

			result, err := f.deletes.DeleteNode(ctx, "c1", tt.date)
			require.NoError(t, err)
			assert.Equal(t, 1, result.Removed)
			assert.Equal(t, 2, result.Aggregated)

			_, err = f.tree.Get(ctx, "c1")
			assert.ErrorIs(t, err, domain.ErrNotFound)

			for _, id := range []string{"f1", "root"} {
				folder := f.mustGet(t, id)
				assert.True(t, folder.Date.Equal(mustTime(t, tt.date)), id)
			}
			assert.Equal(t, int64(30), f.mustGet(t, "f1").Size)
			assert.Equal(t, int64(37), f.mustGet(t, "root").Size)
		})
	}
}

func TestDeleteNode_StampsNewerAncestors(t *testing.T) {
	f := seedDeleteTree(t)
	ctx := context.Background()

	// other is touched at date3, which bumps root past date2
	f.mustImport(t, date3, fileDesc("other", 8, strPtr("root")))

	_, err := f.deletes.DeleteNode(ctx, "c1", date2)
	require.NoError(t, err)

	root := f.mustGet(t, "root")
	assert.True(t, root.Date.Equal(mustTime(t, date2)))
	assert.Equal(t, int64(38), root.Size)
}
