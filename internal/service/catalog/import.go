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

// importService implements the ImportService interface
type importService struct {
	tree      catalogRepo.TreeStore
	ledger    catalogRepo.HistoryLedger
	txManager repositories.TransactionManager
	logger    *slog.Logger
}

// NewImportService creates a new import service
func NewImportService(
	tree catalogRepo.TreeStore,
	ledger catalogRepo.HistoryLedger,
	txManager repositories.TransactionManager,
	logger *slog.Logger,
) catalogSvc.ImportService {
	return &importService{
		tree:      tree,
		ledger:    ledger,
		txManager: txManager,
		logger:    logger,
	}
}

// Import validates a batch and applies it as one unit of work
func (s *importService) Import(ctx context.Context, req *catalogSvc.ImportRequest) (result *catalogSvc.ImportResult, err error) {
	started := time.Now()
	defer func() { observe("import", time.Since(started).Seconds(), err) }()

	batchDate, err := ParseTimestamp("updateDate", req.UpdateDate)
	if err != nil {
		s.logger.Warn("import rejected", "reason", err.Error())
		return nil, err
	}
	if err := validateBatch(req); err != nil {
		s.logger.Warn("import rejected", "reason", err.Error(), "items", len(req.Items))
		return nil, err
	}

	err = s.txManager.ExecTx(ctx, func(txCtx context.Context) error {
		plan, err := newResolver(s.tree, req.Items, batchDate).plan(txCtx, req.Items)
		if err != nil {
			return err
		}
		result, err = s.apply(txCtx, plan)
		return err
	})
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			s.logger.Warn("import rejected", "reason", err.Error(), "items", len(req.Items))
		} else {
			s.logger.Error("import failed", "error", err, "items", len(req.Items))
		}
		return nil, err
	}

	importBatchSize.Observe(float64(len(req.Items)))
	s.logger.Info("import applied",
		"batch_date", batchDate,
		"created", result.Created,
		"updated", result.Updated,
		"aggregated", result.Aggregated,
		"snapshots", result.Snapshots,
	)
	return result, nil
}

// apply mutates the tree in four phases: upsert, detach, attach, aggregate.
// Detaching every moved item before attaching keeps the tree acyclic at
// each step, since the live edges stay a subset of the final tree.
func (s *importService) apply(ctx context.Context, plan *importPlan) (*catalogSvc.ImportResult, error) {
	result := &catalogSvc.ImportResult{}

	for _, d := range plan.order {
		item := &models.Item{
			ID:   d.ID,
			Kind: d.Kind,
			URL:  d.URL,
			Date: plan.batchDate,
		}
		if d.Size != nil {
			item.Size = *d.Size
		}
		if err := s.tree.Upsert(ctx, item); err != nil {
			return nil, fmt.Errorf("upsert %s: %w", d.ID, err)
		}
		if plan.isNew(d.ID) {
			result.Created++
		} else {
			result.Updated++
		}
	}

	for _, id := range plan.moved {
		if err := s.tree.SetParent(ctx, id, nil); err != nil {
			return nil, fmt.Errorf("detach %s: %w", id, err)
		}
	}

	for _, d := range plan.order {
		if d.ParentID == nil {
			continue
		}
		if stored, ok := plan.stored[d.ID]; ok && stored.ParentIs(d.ParentID) {
			continue
		}
		if err := s.tree.SetParent(ctx, d.ID, d.ParentID); err != nil {
			return nil, fmt.Errorf("attach %s: %w", d.ID, err)
		}
	}

	for _, folderID := range plan.affected {
		size, err := s.tree.RecomputeSize(ctx, folderID)
		if err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", folderID, err)
		}
		if err := s.tree.SetAggregate(ctx, folderID, size, plan.batchDate); err != nil {
			return nil, fmt.Errorf("aggregate %s: %w", folderID, err)
		}
		result.Aggregated++
	}

	snapshots, err := s.materializeHistory(ctx, plan.batchDate)
	if err != nil {
		return nil, err
	}
	result.Snapshots = snapshots

	return result, nil
}

// materializeHistory snapshots every item stamped with date
func (s *importService) materializeHistory(ctx context.Context, date time.Time) (int, error) {
	items, err := s.tree.ListByDate(ctx, date)
	if err != nil {
		return 0, fmt.Errorf("list items at %s: %w", date.Format(time.RFC3339Nano), err)
	}
	for _, item := range items {
		record := models.SnapshotOf(item)
		if err := s.ledger.Append(ctx, &record); err != nil {
			return 0, fmt.Errorf("snapshot %s: %w", item.ID, err)
		}
	}
	return len(items), nil
}
