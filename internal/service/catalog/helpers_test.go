package catalog

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	models "diskcatalog/internal/domain/models/catalog"
	catalogRepo "diskcatalog/internal/domain/repositories/catalog"
	catalogSvc "diskcatalog/internal/domain/services/catalog"
	"diskcatalog/internal/repository/memory"

	"github.com/stretchr/testify/require"
)

const (
	date1 = "2022-09-11T12:00:00Z"
	date2 = "2022-09-12T12:00:00Z"
	date3 = "2022-09-13T12:00:00Z"
)

type fixture struct {
	tree    catalogRepo.TreeStore
	ledger  catalogRepo.HistoryLedger
	imports catalogSvc.ImportService
	deletes catalogSvc.DeleteService
	queries catalogSvc.QueryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := memory.NewDatabase()
	tree := memory.NewTreeStore(db)
	ledger := memory.NewHistoryLedger(db)
	tx := memory.NewTransactionManager(db)
	return &fixture{
		tree:    tree,
		ledger:  ledger,
		imports: NewImportService(tree, ledger, tx, logger),
		deletes: NewDeleteService(tree, ledger, tx, logger),
		queries: NewQueryService(tree, ledger, logger),
	}
}

func strPtr(s string) *string { return &s }

func sizePtr(n int64) *int64 { return &n }

func folderDesc(id string, parentID *string) catalogSvc.ItemDescriptor {
	return catalogSvc.ItemDescriptor{ID: id, Kind: models.KindFolder, ParentID: parentID}
}

func fileDesc(id string, size int64, parentID *string) catalogSvc.ItemDescriptor {
	return catalogSvc.ItemDescriptor{ID: id, Kind: models.KindFile, URL: strPtr("/file/" + id), Size: sizePtr(size), ParentID: parentID}
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339Nano, s)
	require.NoError(t, err)
	return ts.UTC()
}

func (f *fixture) mustImport(t *testing.T, date string, items ...catalogSvc.ItemDescriptor) *catalogSvc.ImportResult {
	t.Helper()
	result, err := f.imports.Import(context.Background(), &catalogSvc.ImportRequest{Items: items, UpdateDate: date})
	require.NoError(t, err)
	return result
}

func (f *fixture) importErr(date string, items ...catalogSvc.ItemDescriptor) error {
	_, err := f.imports.Import(context.Background(), &catalogSvc.ImportRequest{Items: items, UpdateDate: date})
	return err
}

func (f *fixture) mustGet(t *testing.T, id string) *models.Item {
	t.Helper()
	item, err := f.tree.Get(context.Background(), id)
	require.NoError(t, err)
	return item
}

func (f *fixture) count(t *testing.T) int {
	t.Helper()
	items, err := f.tree.ListFilesBetween(context.Background(), time.Time{}, time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return len(items)
}
