package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diskcatalog/internal/domain"
	"diskcatalog/internal/repository/memory"
	serviceCatalog "diskcatalog/internal/service/catalog"
)

func TestParseFixture_Rejects(t *testing.T) {
	tests := map[string]string{
		"empty":      "steps: []",
		"both kinds": "steps:\n  - import: {updateDate: x}\n    delete: {id: a, date: x}",
		"neither":    "steps:\n  - {}",
		"bad yaml":   "steps: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseFixture([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestSampleFixture_Applies(t *testing.T) {
	fixture, err := LoadFixture("fixtures/sample.yaml")
	require.NoError(t, err)
	require.Len(t, fixture.Steps, 3)

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := memory.NewDatabase()
	tree := memory.NewTreeStore(db)
	ledger := memory.NewHistoryLedger(db)
	tx := memory.NewTransactionManager(db)

	imports := serviceCatalog.NewImportService(tree, ledger, tx, logger)
	deletes := serviceCatalog.NewDeleteService(tree, ledger, tx, logger)
	queries := serviceCatalog.NewQueryService(tree, ledger, logger)

	require.NoError(t, fixture.Apply(ctx, imports, deletes, logger))

	disk, err := queries.NodeInfo(ctx, "disk")
	require.NoError(t, err)
	assert.Equal(t, int64(3072+4096), disk.Size)
	require.Len(t, disk.Children, 2)
	assert.Equal(t, "music", disk.Children[0].ID)
	assert.Equal(t, "photos", disk.Children[1].ID)

	_, err = queries.NodeInfo(ctx, "notes.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestApply_StopsAtFirstFailure(t *testing.T) {
	fixture, err := ParseFixture([]byte(`
steps:
  - delete: {id: ghost, date: "2022-09-11T12:00:00Z"}
  - import:
      updateDate: "2022-09-11T12:00:00Z"
      items: [{id: a, type: FOLDER}]
`))
	require.NoError(t, err)

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := memory.NewDatabase()
	tree := memory.NewTreeStore(db)
	ledger := memory.NewHistoryLedger(db)
	tx := memory.NewTransactionManager(db)

	err = fixture.Apply(ctx,
		serviceCatalog.NewImportService(tree, ledger, tx, logger),
		serviceCatalog.NewDeleteService(tree, ledger, tx, logger),
		logger,
	)
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorContains(t, err, "steps[0]")

	_, err = tree.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
