package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"diskcatalog/internal/config"
	"diskcatalog/internal/repository"
	serviceCatalog "diskcatalog/internal/service/catalog"
)

var (
	cfg     *config.Config
	logger  *slog.Logger
	backend *repository.Backend

	rootCmd = &cobra.Command{
		Use:   "seed",
		Short: "Manage catalog storage and load fixtures",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Load .env file (silently ignore if it doesn't exist)
			_ = godotenv.Load()
			cfg = config.Load()

			if storage, _ := cmd.Flags().GetString("storage"); storage != "" {
				cfg.StorageBackend = storage
			}

			l, closer := config.NewLogger(cfg)
			logger = l
			cobra.OnFinalize(func() { _ = closer.Close() })

			b, err := repository.Open(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			backend = b
			cobra.OnFinalize(backend.Close)

			logger.Info("storage opened",
				"environment", cfg.Environment,
				"backend", backend.Name,
				"table_prefix", cfg.TablePrefix,
			)
			return nil
		},
	}

	schemaCmd = &cobra.Command{
		Use:   "schema",
		Short: "Create the catalog tables if they don't exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := backend.Migrate(cmd.Context()); err != nil {
				return fmt.Errorf("run schema: %w", err)
			}
			logger.Info("schema ready")
			return nil
		},
	}

	loadCmd = &cobra.Command{
		Use:   "load <fixtures.yaml>",
		Short: "Apply import batches and deletes from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fixture, err := LoadFixture(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if err := backend.Migrate(ctx); err != nil {
				return fmt.Errorf("run schema: %w", err)
			}

			imports := serviceCatalog.NewImportService(backend.Tree, backend.Ledger, backend.Tx, logger)
			deletes := serviceCatalog.NewDeleteService(backend.Tree, backend.Ledger, backend.Tx, logger)
			if err := fixture.Apply(ctx, imports, deletes, logger); err != nil {
				return err
			}

			logger.Info("fixture loaded", "path", args[0], "steps", len(fixture.Steps))
			return nil
		},
	}

	dropCmd = &cobra.Command{
		Use:   "drop",
		Short: "Drop the catalog tables (fresh start)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// SAFETY: Prevent destructive operations in production
			if cfg.Environment == "prod" {
				return fmt.Errorf("refusing to drop tables in the prod environment")
			}
			if err := backend.Drop(cmd.Context()); err != nil {
				return fmt.Errorf("drop tables: %w", err)
			}
			logger.Info("tables dropped", "table_prefix", cfg.TablePrefix)
			return nil
		},
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete every item and snapshot, keeping the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// SAFETY: Prevent destructive operations in production
			if cfg.Environment == "prod" {
				return fmt.Errorf("refusing to clear the catalog in the prod environment")
			}
			if err := backend.Clear(cmd.Context()); err != nil {
				return fmt.Errorf("clear catalog: %w", err)
			}
			logger.Info("catalog cleared")
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().String("storage", "", "storage backend override (memory, sqlite, postgres)")
	rootCmd.AddCommand(schemaCmd, loadCmd, clearCmd, dropCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Printf("seed: %v", err)
		stop()
		os.Exit(1)
	}
}
