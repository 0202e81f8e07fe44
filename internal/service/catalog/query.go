package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"diskcatalog/internal/config"
	"diskcatalog/internal/domain"
	models "diskcatalog/internal/domain/models/catalog"
	catalogRepo "diskcatalog/internal/domain/repositories/catalog"
	catalogSvc "diskcatalog/internal/domain/services/catalog"
)

// queryService implements the QueryService interface
type queryService struct {
	tree   catalogRepo.TreeStore
	ledger catalogRepo.HistoryLedger
	logger *slog.Logger
}

// NewQueryService creates a new query service
func NewQueryService(
	tree catalogRepo.TreeStore,
	ledger catalogRepo.HistoryLedger,
	logger *slog.Logger,
) catalogSvc.QueryService {
	return &queryService{
		tree:   tree,
		ledger: ledger,
		logger: logger,
	}
}

// RecentFiles lists files updated within [date-24h, date]
func (s *queryService) RecentFiles(ctx context.Context, date string) (views []*models.NodeView, err error) {
	started := time.Now()
	defer func() { observe("updates", time.Since(started).Seconds(), err) }()

	to, err := ParseTimestamp("date", date)
	if err != nil {
		return nil, err
	}
	from := to.Add(-config.RecentFilesWindow)

	files, err := s.tree.ListFilesBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("list recent files: %w", err)
	}

	views = make([]*models.NodeView, 0, len(files))
	for _, f := range files {
		views = append(views, models.NewNodeView(f))
	}
	return views, nil
}

// NodeInfo returns an item with its subtree nested under children
func (s *queryService) NodeInfo(ctx context.Context, id string) (view *models.NodeView, err error) {
	started := time.Now()
	defer func() { observe("nodes", time.Since(started).Seconds(), err) }()

	subtree, err := s.tree.Descendants(ctx, id, true)
	if err != nil {
		return nil, err
	}

	root := buildTree(id, subtree)
	if root == nil {
		return nil, fmt.Errorf("item %s: %w", id, domain.ErrNotFound)
	}

	s.logger.Debug("node tree built", "id", id, "item_count", len(subtree))
	return root, nil
}

// buildTree nests a flat subtree under rootID using a 3-pass build.
// Each node is attached at most once, so a corrupted parent loop cannot
// produce an infinite structure.
func buildTree(rootID string, items []models.Item) *models.NodeView {
	// First pass: create all nodes
	nodes := make(map[string]*models.NodeView, len(items))
	for _, item := range items {
		nodes[item.ID] = models.NewNodeView(item)
	}

	root, ok := nodes[rootID]
	if !ok {
		return nil
	}

	// Second pass: group children by parent
	byParent := make(map[string][]*models.NodeView)
	for _, item := range items {
		if item.ID == rootID || item.ParentID == nil {
			continue
		}
		if _, ok := nodes[*item.ParentID]; ok {
			byParent[*item.ParentID] = append(byParent[*item.ParentID], nodes[item.ID])
		}
	}

	// Third pass: attach from the root down, children ordered by id.
	// Nodes without children keep a nil slice.
	visited := map[string]struct{}{rootID: {}}
	stack := []*models.NodeView{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, child := range byParent[node.ID] {
			if _, seen := visited[child.ID]; seen {
				continue
			}
			visited[child.ID] = struct{}{}
			node.Children = append(node.Children, child)
			stack = append(stack, child)
		}
		slices.SortFunc(node.Children, func(a, b *models.NodeView) int {
			return strings.Compare(a.ID, b.ID)
		})
	}

	return root
}

// HistoryOf returns snapshots of id in [start, end), newest first
func (s *queryService) HistoryOf(ctx context.Context, id string, start, end *string) (records []models.HistoryRecord, err error) {
	started := time.Now()
	defer func() { observe("history", time.Since(started).Seconds(), err) }()

	from, err := parseOptionalTimestamp("dateStart", start)
	if err != nil {
		return nil, err
	}
	to, err := parseOptionalTimestamp("dateEnd", end)
	if err != nil {
		return nil, err
	}

	records, err = s.ledger.Query(ctx, id, from, to)
	if err != nil {
		return nil, fmt.Errorf("query history of %s: %w", id, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no history for item %s: %w", id, domain.ErrNotFound)
	}
	return records, nil
}
