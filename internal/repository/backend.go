package repository

import (
	"context"
	"fmt"
	"log/slog"

	"diskcatalog/internal/config"
	"diskcatalog/internal/domain/repositories"
	catalogRepo "diskcatalog/internal/domain/repositories/catalog"
	"diskcatalog/internal/repository/memory"
	"diskcatalog/internal/repository/postgres"
	postgresCatalog "diskcatalog/internal/repository/postgres/catalog"
	"diskcatalog/internal/repository/sqlite"
)

// Backend bundles the stores of one storage engine
type Backend struct {
	Name   string
	Tree   catalogRepo.TreeStore
	Ledger catalogRepo.HistoryLedger
	Tx     repositories.TransactionManager

	migrate func(ctx context.Context) error
	drop    func(ctx context.Context) error
	clear   func(ctx context.Context) error
	ping    func(ctx context.Context) error
	close   func()
}

// Open builds the backend selected by cfg.StorageBackend.
// Tables are not created here; call Migrate.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return openMemory(), nil
	case config.StorageSQLite:
		return openSQLite(ctx, cfg, logger)
	case config.StoragePostgres:
		return openPostgres(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func openMemory() *Backend {
	db := memory.NewDatabase()
	reset := func(context.Context) error {
		db.Clear()
		return nil
	}
	return &Backend{
		Name:    config.StorageMemory,
		Tree:    memory.NewTreeStore(db),
		Ledger:  memory.NewHistoryLedger(db),
		Tx:      memory.NewTransactionManager(db),
		migrate: func(context.Context) error { return nil },
		drop:    reset,
		clear:   reset,
		ping:    func(context.Context) error { return nil },
		close:   func() {},
	}
}

func openSQLite(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	db, err := sqlite.Open(ctx, cfg.SQLitePath, logger)
	if err != nil {
		return nil, err
	}
	closeDB := func() {
		if err := db.Close(); err != nil {
			logger.Warn("close sqlite", "error", err)
		}
	}
	return &Backend{
		Name:    config.StorageSQLite,
		Tree:    sqlite.NewTreeStore(db),
		Ledger:  sqlite.NewHistoryLedger(db),
		Tx:      sqlite.NewTransactionManager(db),
		migrate: db.EnsureSchema,
		drop:    db.DropSchema,
		clear:   db.ClearCatalog,
		ping:    db.Ping,
		close:   closeDB,
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the %s backend", config.StoragePostgres)
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	tables := postgres.NewTableNames(cfg.TablePrefix)
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}

	return &Backend{
		Name:   config.StoragePostgres,
		Tree:   postgresCatalog.NewTreeStore(repoConfig),
		Ledger: postgresCatalog.NewHistoryLedger(repoConfig),
		Tx:     postgres.NewTransactionManager(pool, logger),
		migrate: func(ctx context.Context) error {
			return postgres.EnsureSchema(ctx, pool, tables)
		},
		drop: func(ctx context.Context) error {
			return postgres.DropSchema(ctx, pool, tables)
		},
		clear: func(ctx context.Context) error {
			return postgres.ClearCatalog(ctx, pool, tables)
		},
		ping:  pool.Ping,
		close: pool.Close,
	}, nil
}

// Migrate creates the catalog tables if they don't exist
func (b *Backend) Migrate(ctx context.Context) error { return b.migrate(ctx) }

// Drop removes the catalog tables. The memory backend just empties itself.
func (b *Backend) Drop(ctx context.Context) error { return b.drop(ctx) }

// Clear deletes every item and snapshot
func (b *Backend) Clear(ctx context.Context) error { return b.clear(ctx) }

// Ping checks the storage engine is reachable
func (b *Backend) Ping(ctx context.Context) error { return b.ping(ctx) }

// Close releases connections
func (b *Backend) Close() { b.close() }
