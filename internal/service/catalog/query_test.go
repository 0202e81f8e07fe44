package catalog

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"diskcatalog/internal/domain"
	models "diskcatalog/internal/domain/models/catalog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecentFiles_InclusiveWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mustImport(t, "2022-09-10T12:00:00Z", fileDesc("edge", 1, nil))
	f.mustImport(t, "2022-09-10T11:59:59.999999Z", fileDesc("just-before", 1, nil))
	f.mustImport(t, "2022-09-11T00:00:00Z", fileDesc("inside", 1, nil), folderDesc("dir", nil))
	f.mustImport(t, date1, fileDesc("end", 1, nil))
	f.mustImport(t, "2022-09-11T12:00:00.000001Z", fileDesc("after", 1, nil))

	views, err := f.queries.RecentFiles(ctx, date1)
	require.NoError(t, err)

	var ids []string
	for _, v := range views {
		ids = append(ids, v.ID)
		assert.Equal(t, models.KindFile, v.Kind)
		assert.Nil(t, v.Children)
	}
	assert.Equal(t, []string{"edge", "inside", "end"}, ids)
}

func TestRecentFiles_Empty(t *testing.T) {
	f := newFixture(t)
	views, err := f.queries.RecentFiles(context.Background(), date1)
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)

	_, err = f.queries.RecentFiles(context.Background(), "not a date")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestNodeInfo_NestsChildren(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, date1,
		folderDesc("root", nil),
		folderDesc("b-dir", strPtr("root")),
		folderDesc("a-empty", strPtr("root")),
		fileDesc("c-file", 5, strPtr("root")),
		fileDesc("inner", 9, strPtr("b-dir")),
	)

	view, err := f.queries.NodeInfo(context.Background(), "root")
	require.NoError(t, err)

	assert.Equal(t, int64(14), view.Size)
	require.Len(t, view.Children, 3)
	assert.Equal(t, "a-empty", view.Children[0].ID)
	assert.Equal(t, "b-dir", view.Children[1].ID)
	assert.Equal(t, "c-file", view.Children[2].ID)

	assert.Nil(t, view.Children[0].Children, "empty folder has null children")
	assert.Nil(t, view.Children[2].Children, "file has null children")
	require.Len(t, view.Children[1].Children, 1)
	assert.Equal(t, "inner", view.Children[1].Children[0].ID)
	assert.Equal(t, int64(9), view.Children[1].Size)
}

func TestNodeInfo_WireFormat(t *testing.T) {
	f := newFixture(t)
	f.mustImport(t, "2022-05-28T21:12:01.516Z", folderDesc("d", nil))

	view, err := f.queries.NodeInfo(context.Background(), "d")
	require.NoError(t, err)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "d",
		"url": null,
		"type": "FOLDER",
		"parentId": null,
		"date": "2022-05-28T21:12:01.516Z",
		"size": 0,
		"children": null
	}`, string(raw))
}

func TestNodeInfo_NotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.queries.NodeInfo(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestBuildTree_IgnoresParentLoops(t *testing.T) {
	a, b := "a", "b"
	items := []models.Item{
		{ID: "a", Kind: models.KindFolder, ParentID: &b},
		{ID: "b", Kind: models.KindFolder, ParentID: &a},
	}

	root := buildTree("a", items)
	require.NotNil(t, root)
	require.Len(t, root.Children, 1)
	assert.Equal(t, "b", root.Children[0].ID)
	assert.Nil(t, root.Children[0].Children)

	assert.Nil(t, buildTree("missing", items))
}

func TestHistoryOf_HalfOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.mustImport(t, date1, fileDesc("x", 1, nil))
	f.mustImport(t, date2, fileDesc("x", 2, nil))
	f.mustImport(t, date3, fileDesc("x", 3, nil))

	dates := func(records []models.HistoryRecord) []time.Time {
		var out []time.Time
		for _, r := range records {
			out = append(out, r.Date)
		}
		return out
	}

	all, err := f.queries.HistoryOf(ctx, "x", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{mustTime(t, date3), mustTime(t, date2), mustTime(t, date1)}, dates(all))

	start, end := date1, date3
	window, err := f.queries.HistoryOf(ctx, "x", &start, &end)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{mustTime(t, date2), mustTime(t, date1)}, dates(window))

	empty := "2022-09-11T12:00:00.000001Z"
	_, err = f.queries.HistoryOf(ctx, "x", &empty, &end)
	require.NoError(t, err)

	_, err = f.queries.HistoryOf(ctx, "x", &end, &end)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	bad := "13/13/2022"
	_, err = f.queries.HistoryOf(ctx, "x", &bad, nil)
	assert.ErrorIs(t, err, domain.ErrMalformedTimestamp)

	_, err = f.queries.HistoryOf(ctx, "never", nil, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
