package catalog

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"diskcatalog/internal/domain"
	models "diskcatalog/internal/domain/models/catalog"
	catalogRepo "diskcatalog/internal/domain/repositories/catalog"
	catalogSvc "diskcatalog/internal/domain/services/catalog"
)

// importPlan is a fully checked batch, ready to apply in order
type importPlan struct {
	batchDate time.Time

	// order lists descriptors so that a batch parent precedes its children
	order []*catalogSvc.ItemDescriptor

	// stored holds the pre-batch state of descriptors that already exist
	stored map[string]*models.Item

	// moved lists existing items whose parent changes, in batch order
	moved []string

	// affected lists every folder whose size/date must be recomputed
	affected []string
}

func (p *importPlan) isNew(id string) bool {
	_, ok := p.stored[id]
	return !ok
}

// resolver checks a batch against the stored tree and orders it
type resolver struct {
	tree      catalogRepo.TreeStore
	batchDate time.Time
	batch     map[string]*catalogSvc.ItemDescriptor

	// cache of stored items looked up while walking parents; nil = absent
	cache map[string]*models.Item
}

func newResolver(tree catalogRepo.TreeStore, items []catalogSvc.ItemDescriptor, batchDate time.Time) *resolver {
	batch := make(map[string]*catalogSvc.ItemDescriptor, len(items))
	for i := range items {
		batch[items[i].ID] = &items[i]
	}
	return &resolver{
		tree:      tree,
		batchDate: batchDate,
		batch:     batch,
		cache:     make(map[string]*models.Item),
	}
}

// lookup returns the stored item or nil
func (r *resolver) lookup(ctx context.Context, id string) (*models.Item, error) {
	if item, ok := r.cache[id]; ok {
		return item, nil
	}
	item, err := r.tree.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		r.cache[id] = nil
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.cache[id] = item
	return item, nil
}

// finalParent is id's parent once the batch is applied
func (r *resolver) finalParent(ctx context.Context, id string) (*string, error) {
	if d, ok := r.batch[id]; ok {
		return d.ParentID, nil
	}
	item, err := r.lookup(ctx, id)
	if err != nil || item == nil {
		return nil, err
	}
	return item.ParentID, nil
}

// plan runs the stateful pre-checks and orders the batch
func (r *resolver) plan(ctx context.Context, items []catalogSvc.ItemDescriptor) (*importPlan, error) {
	p := &importPlan{
		batchDate: r.batchDate,
		stored:    make(map[string]*models.Item),
	}

	for i := range items {
		d := &items[i]
		existing, err := r.lookup(ctx, d.ID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			if existing.Kind != d.Kind {
				return nil, fmt.Errorf("%w: item %s is %s, got %s", domain.ErrInvalidTransition, d.ID, existing.Kind, d.Kind)
			}
			if !r.batchDate.After(existing.Date) {
				return nil, fmt.Errorf("%w: item %s was updated at %s, batch date is %s", domain.ErrStaleUpdate,
					d.ID, existing.Date.Format(time.RFC3339Nano), r.batchDate.Format(time.RFC3339Nano))
			}
			p.stored[d.ID] = existing
			if !existing.ParentIs(d.ParentID) {
				p.moved = append(p.moved, d.ID)
			}
		}

		if err := r.checkParent(ctx, d); err != nil {
			return nil, err
		}
	}

	order, err := r.sort(items)
	if err != nil {
		return nil, err
	}
	p.order = order

	if err := r.checkFinalCycles(ctx, items); err != nil {
		return nil, err
	}

	affected, err := r.affectedFolders(ctx, p, items)
	if err != nil {
		return nil, err
	}
	p.affected = affected

	return p, nil
}

// checkParent: the parent must be a stored FOLDER or a FOLDER of this batch
func (r *resolver) checkParent(ctx context.Context, d *catalogSvc.ItemDescriptor) error {
	if d.ParentID == nil {
		return nil
	}
	parentID := *d.ParentID

	if parent, ok := r.batch[parentID]; ok {
		if parent.Kind != models.KindFolder {
			return fmt.Errorf("%w: parent %s of %s is a %s", domain.ErrInvalidParent, parentID, d.ID, parent.Kind)
		}
		return nil
	}

	parent, err := r.lookup(ctx, parentID)
	if err != nil {
		return err
	}
	if parent == nil {
		return fmt.Errorf("%w: parent %s of %s does not exist", domain.ErrInvalidParent, parentID, d.ID)
	}
	if !parent.IsFolder() {
		return fmt.Errorf("%w: parent %s of %s is a %s", domain.ErrInvalidParent, parentID, d.ID, parent.Kind)
	}
	return nil
}

// sort orders the batch parents-first (Kahn). Ready items are taken in
// their original order. Items left over sit on a cycle of batch parents.
func (r *resolver) sort(items []catalogSvc.ItemDescriptor) ([]*catalogSvc.ItemDescriptor, error) {
	children := make(map[string][]*catalogSvc.ItemDescriptor)
	var ready []*catalogSvc.ItemDescriptor
	for i := range items {
		d := &items[i]
		if d.ParentID != nil {
			if _, inBatch := r.batch[*d.ParentID]; inBatch {
				children[*d.ParentID] = append(children[*d.ParentID], d)
				continue
			}
		}
		ready = append(ready, d)
	}

	order := make([]*catalogSvc.ItemDescriptor, 0, len(items))
	for len(ready) > 0 {
		d := ready[0]
		ready = ready[1:]
		order = append(order, d)
		ready = append(ready, children[d.ID]...)
	}

	if len(order) < len(items) {
		placed := make(map[string]struct{}, len(order))
		for _, d := range order {
			placed[d.ID] = struct{}{}
		}
		var stuck []string
		for i := range items {
			if _, ok := placed[items[i].ID]; !ok {
				stuck = append(stuck, items[i].ID)
			}
		}
		return nil, fmt.Errorf("%w: parent links among %s form a cycle", domain.ErrCyclicReference, strings.Join(stuck, ", "))
	}
	return order, nil
}

// checkFinalCycles walks every batch item up the final tree. A cycle that
// sort cannot see runs through a stored folder, e.g. moving a folder under
// one of its stored descendants.
func (r *resolver) checkFinalCycles(ctx context.Context, items []catalogSvc.ItemDescriptor) error {
	// ids known to reach a root
	rooted := make(map[string]struct{})

	for i := range items {
		id := items[i].ID
		path := map[string]struct{}{id: {}}
		trail := []string{id}

		current := id
		for {
			parentID, err := r.finalParent(ctx, current)
			if err != nil {
				return err
			}
			if parentID == nil {
				break
			}
			if _, ok := rooted[*parentID]; ok {
				break
			}
			if _, loop := path[*parentID]; loop {
				return fmt.Errorf("%w: moving %s under %s makes it its own ancestor", domain.ErrCyclicReference, id, *items[i].ParentID)
			}
			path[*parentID] = struct{}{}
			trail = append(trail, *parentID)
			current = *parentID
		}

		for _, node := range trail {
			rooted[node] = struct{}{}
		}
	}
	return nil
}

// affectedFolders collects every folder to re-aggregate: batch folders,
// the final ancestor chain of each batch item and the old chain of each
// moved item. All of them are stamped with the batch date.
func (r *resolver) affectedFolders(ctx context.Context, p *importPlan, items []catalogSvc.ItemDescriptor) ([]string, error) {
	set := make(map[string]struct{})
	add := func(id string) { set[id] = struct{}{} }

	for i := range items {
		d := &items[i]
		if d.Kind == models.KindFolder {
			add(d.ID)
		}
		for parentID := d.ParentID; parentID != nil; {
			add(*parentID)
			next, err := r.finalParent(ctx, *parentID)
			if err != nil {
				return nil, err
			}
			parentID = next
		}
	}

	for _, id := range p.moved {
		old := p.stored[id]
		if old.ParentID == nil {
			continue
		}
		chain, err := r.tree.Ancestors(ctx, *old.ParentID, true)
		if err != nil {
			return nil, fmt.Errorf("old ancestors of %s: %w", id, err)
		}
		for _, folder := range chain {
			r.cache[folder.ID] = &folder
			add(folder.ID)
		}
	}

	affected := make([]string, 0, len(set))
	for id := range set {
		affected = append(affected, id)
	}
	slices.Sort(affected)
	return affected, nil
}
