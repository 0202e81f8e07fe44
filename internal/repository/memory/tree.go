package memory

import (
	"context"
	"fmt"
	"time"

	"diskcatalog/internal/domain"
	"diskcatalog/internal/domain/models/catalog"
	catalogRepo "diskcatalog/internal/domain/repositories/catalog"
)

// TreeStore implements catalogRepo.TreeStore on a Database
type TreeStore struct {
	db *Database
}

// NewTreeStore creates a new in-memory tree store
func NewTreeStore(db *Database) catalogRepo.TreeStore {
	return &TreeStore{db: db}
}

func notFound(id string) error {
	return &domain.NotFoundError{Message: fmt.Sprintf("item %s not found", id)}
}

// Get retrieves an item by ID
func (t *TreeStore) Get(ctx context.Context, id string) (*catalog.Item, error) {
	var item catalog.Item
	err := t.db.view(ctx, func(s *state) error {
		found, ok := s.items.Get(id)
		if !ok {
			return notFound(id)
		}
		item = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Children lists the direct children of id
func (t *TreeStore) Children(ctx context.Context, id string) ([]catalog.Item, error) {
	var children []catalog.Item
	err := t.db.view(ctx, func(s *state) error {
		if _, ok := s.items.Get(id); !ok {
			return notFound(id)
		}
		children = s.childrenOf(id)
		return nil
	})
	return children, err
}

// Ancestors walks parent links from id up to the root
func (t *TreeStore) Ancestors(ctx context.Context, id string, includeSelf bool) ([]catalog.Item, error) {
	var ancestors []catalog.Item
	err := t.db.view(ctx, func(s *state) error {
		var err error
		ancestors, err = s.ancestorsOf(id, includeSelf)
		return err
	})
	return ancestors, err
}

// Descendants collects the subtree below id breadth-first
func (t *TreeStore) Descendants(ctx context.Context, id string, includeSelf bool) ([]catalog.Item, error) {
	var descendants []catalog.Item
	err := t.db.view(ctx, func(s *state) error {
		var err error
		descendants, err = s.descendantsOf(id, includeSelf)
		return err
	})
	return descendants, err
}

// Upsert creates an item at the root or updates url/size/date of an existing one
func (t *TreeStore) Upsert(ctx context.Context, item *catalog.Item) error {
	return t.db.update(ctx, func(s *state) error {
		existing, ok := s.items.Get(item.ID)
		if !ok {
			created := *item
			created.ParentID = nil
			s.put(created)
			return nil
		}

		if existing.Kind != item.Kind {
			return fmt.Errorf("%w: item %s is %s, got %s", domain.ErrInvalidTransition, item.ID, existing.Kind, item.Kind)
		}
		if !item.Date.After(existing.Date) {
			return fmt.Errorf("%w: item %s updated at %s, got %s", domain.ErrStaleUpdate,
				item.ID, existing.Date.Format(time.RFC3339Nano), item.Date.Format(time.RFC3339Nano))
		}

		updated := existing
		updated.URL = item.URL
		updated.Size = item.Size
		updated.Date = item.Date
		s.replace(existing, updated)
		return nil
	})
}

// SetParent moves id under parentID, or to the root when parentID is nil
func (t *TreeStore) SetParent(ctx context.Context, id string, parentID *string) error {
	return t.db.update(ctx, func(s *state) error {
		item, ok := s.items.Get(id)
		if !ok {
			return notFound(id)
		}

		if parentID != nil {
			parent, ok := s.items.Get(*parentID)
			if !ok {
				return fmt.Errorf("%w: parent %s of %s does not exist", domain.ErrInvalidParent, *parentID, id)
			}
			if !parent.IsFolder() {
				return fmt.Errorf("%w: parent %s of %s is not a folder", domain.ErrInvalidParent, *parentID, id)
			}
			chain, err := s.ancestorsOf(*parentID, true)
			if err != nil {
				return err
			}
			for _, ancestor := range chain {
				if ancestor.ID == id {
					return fmt.Errorf("%w: %s cannot be moved under its own descendant %s", domain.ErrInvalidParent, id, *parentID)
				}
			}
		}

		if item.ParentIs(parentID) {
			return nil
		}
		if item.ParentID != nil {
			s.children.Delete(edge{parent: *item.ParentID, child: id})
		}
		if parentID != nil {
			pid := *parentID
			s.children.Set(edge{parent: pid, child: id})
			item.ParentID = &pid
		} else {
			item.ParentID = nil
		}
		s.items.Set(id, item)
		return nil
	})
}

// SetAggregate overwrites size and date of an item
func (t *TreeStore) SetAggregate(ctx context.Context, id string, size int64, date time.Time) error {
	return t.db.update(ctx, func(s *state) error {
		existing, ok := s.items.Get(id)
		if !ok {
			return notFound(id)
		}
		updated := existing
		updated.Size = size
		updated.Date = date
		s.replace(existing, updated)
		return nil
	})
}

// RecomputeSize sums the sizes of all FILE descendants of folderID
func (t *TreeStore) RecomputeSize(ctx context.Context, folderID string) (int64, error) {
	var total int64
	err := t.db.view(ctx, func(s *state) error {
		descendants, err := s.descendantsOf(folderID, false)
		if err != nil {
			return err
		}
		for _, d := range descendants {
			if d.Kind == catalog.KindFile {
				total += d.Size
			}
		}
		return nil
	})
	return total, err
}

// Remove deletes a descendant-closed set of items
func (t *TreeStore) Remove(ctx context.Context, ids []string) error {
	return t.db.update(ctx, func(s *state) error {
		victims := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			victims[id] = struct{}{}
		}

		for _, id := range ids {
			for _, child := range s.childIDs(id) {
				if _, ok := victims[child]; !ok {
					return fmt.Errorf("remove %s: child %s is not part of the removal set", id, child)
				}
			}
		}

		for _, id := range ids {
			item, ok := s.items.Get(id)
			if !ok {
				continue
			}
			if item.ParentID != nil {
				s.children.Delete(edge{parent: *item.ParentID, child: id})
			}
			s.byDate.Delete(dateKey{date: item.Date, id: id})
			s.items.Delete(id)
		}
		return nil
	})
}

// ListByDate returns items whose date equals date
func (t *TreeStore) ListByDate(ctx context.Context, date time.Time) ([]catalog.Item, error) {
	var items []catalog.Item
	err := t.db.view(ctx, func(s *state) error {
		s.byDate.Ascend(dateKey{date: date}, func(k dateKey) bool {
			if !k.date.Equal(date) {
				return false
			}
			if item, ok := s.items.Get(k.id); ok {
				items = append(items, item)
			}
			return true
		})
		return nil
	})
	return items, err
}

// ListFilesBetween returns files with from <= date <= to
func (t *TreeStore) ListFilesBetween(ctx context.Context, from, to time.Time) ([]catalog.Item, error) {
	var items []catalog.Item
	err := t.db.view(ctx, func(s *state) error {
		s.byDate.Ascend(dateKey{date: from}, func(k dateKey) bool {
			if k.date.After(to) {
				return false
			}
			if item, ok := s.items.Get(k.id); ok && item.Kind == catalog.KindFile {
				items = append(items, item)
			}
			return true
		})
		return nil
	})
	return items, err
}

// put inserts a new item and indexes it
func (s *state) put(item catalog.Item) {
	s.items.Set(item.ID, item)
	s.byDate.Set(dateKey{date: item.Date, id: item.ID})
	if item.ParentID != nil {
		s.children.Set(edge{parent: *item.ParentID, child: item.ID})
	}
}

// replace swaps old for updated, keeping the date index in sync
func (s *state) replace(old, updated catalog.Item) {
	if !old.Date.Equal(updated.Date) {
		s.byDate.Delete(dateKey{date: old.Date, id: old.ID})
		s.byDate.Set(dateKey{date: updated.Date, id: updated.ID})
	}
	s.items.Set(updated.ID, updated)
}

func (s *state) childIDs(id string) []string {
	var ids []string
	s.children.Ascend(edge{parent: id}, func(e edge) bool {
		if e.parent != id {
			return false
		}
		ids = append(ids, e.child)
		return true
	})
	return ids
}

func (s *state) childrenOf(id string) []catalog.Item {
	var children []catalog.Item
	for _, childID := range s.childIDs(id) {
		if child, ok := s.items.Get(childID); ok {
			children = append(children, child)
		}
	}
	return children
}

func (s *state) ancestorsOf(id string, includeSelf bool) ([]catalog.Item, error) {
	item, ok := s.items.Get(id)
	if !ok {
		return nil, notFound(id)
	}

	var chain []catalog.Item
	if includeSelf {
		chain = append(chain, item)
	}
	seen := map[string]struct{}{id: {}}
	for item.ParentID != nil {
		parentID := *item.ParentID
		if _, loop := seen[parentID]; loop {
			return nil, fmt.Errorf("%w: parent chain of %s loops at %s", domain.ErrCyclicReference, id, parentID)
		}
		seen[parentID] = struct{}{}

		parent, ok := s.items.Get(parentID)
		if !ok {
			return nil, fmt.Errorf("item %s references missing parent %s", item.ID, parentID)
		}
		chain = append(chain, parent)
		item = parent
	}
	return chain, nil
}

func (s *state) descendantsOf(id string, includeSelf bool) ([]catalog.Item, error) {
	root, ok := s.items.Get(id)
	if !ok {
		return nil, notFound(id)
	}

	var out []catalog.Item
	if includeSelf {
		out = append(out, root)
	}
	seen := map[string]struct{}{id: {}}
	queue := []string{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, child := range s.childrenOf(current) {
			if _, dup := seen[child.ID]; dup {
				continue
			}
			seen[child.ID] = struct{}{}
			out = append(out, child)
			queue = append(queue, child.ID)
		}
	}
	return out, nil
}
