package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"diskcatalog/internal/domain"
	models "diskcatalog/internal/domain/models/catalog"
	"diskcatalog/internal/domain/repositories"
	catalogRepo "diskcatalog/internal/domain/repositories/catalog"
	catalogSvc "diskcatalog/internal/domain/services/catalog"
)

// deleteService implements the DeleteService interface
type deleteService struct {
	tree      catalogRepo.TreeStore
	ledger    catalogRepo.HistoryLedger
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewDeleteService creates a new delete service
func NewDeleteService(
	tree catalogRepo.TreeStore,
	ledger catalogRepo.HistoryLedger,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) catalogSvc.DeleteService {
	return &deleteService{
		tree:      tree,
		ledger:    ledger,
		txManager: txManager,
		logger:    logger,
	}
}

// DeleteNode removes id with its subtree and history, then re-aggregates
// the surviving ancestors and stamps them with date
func (s *deleteService) DeleteNode(ctx context.Context, id, date string) (result *catalogSvc.DeleteResult, err error) {
	started := time.Now()
	defer func() { observe("delete", time.Since(started).Seconds(), err) }()

	asOf, err := ParseTimestamp("date", date)
	if err != nil {
		s.logger.Warn("delete rejected", "id", id, "reason", err.Error())
		return nil, err
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		result, err = s.deleteSubtree(txCtx, id, asOf)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			s.logger.Debug("delete target not found", "id", id)
		case errors.Is(err, domain.ErrValidation):
			s.logger.Warn("delete rejected", "id", id, "reason", err.Error())
		default:
			s.logger.Error("delete failed", "id", id, "error", err)
		}
		return nil, err
	}

	itemsRemovedTotal.Add(float64(result.Removed))
	s.logger.Info("node deleted",
		"id", id,
		"as_of", asOf,
		"removed", result.Removed,
		"aggregated", result.Aggregated,
	)
	return result, nil
}

func (s *deleteService) deleteSubtree(ctx context.Context, id string, asOf time.Time) (*catalogSvc.DeleteResult, error) {
	if _, err := s.tree.Get(ctx, id); err != nil {
		return nil, err
	}

	// Captured before removal
	ancestors, err := s.tree.Ancestors(ctx, id, false)
	if err != nil {
		return nil, fmt.Errorf("ancestors of %s: %w", id, err)
	}
	var folders []models.Item
	for _, ancestor := range ancestors {
		if !ancestor.IsFolder() {
			continue
		}
		folders = append(folders, ancestor)
	}

	victims, err := s.tree.Descendants(ctx, id, true)
	if err != nil {
		return nil, fmt.Errorf("descendants of %s: %w", id, err)
	}
	ids := make([]string, len(victims))
	for i, v := range victims {
		ids[i] = v.ID
	}

	if err := s.tree.Remove(ctx, ids); err != nil {
		return nil, fmt.Errorf("remove subtree of %s: %w", id, err)
	}
	for _, victim := range ids {
		if err := s.ledger.Purge(ctx, victim); err != nil {
			return nil, fmt.Errorf("purge history of %s: %w", victim, err)
		}
	}

	for _, folder := range folders {
		size, err := s.tree.RecomputeSize(ctx, folder.ID)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", folder.ID, err)
		}
		if err := s.tree.SetAggregate(ctx, folder.ID, size, asOf); err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", folder.ID, err)
		}
	}

	return &catalogSvc.DeleteResult{Removed: len(ids), Aggregated: len(folders)}, nil
}
