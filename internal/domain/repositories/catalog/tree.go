package catalog

import (
	"context"
	"time"

	"diskcatalog/internal/domain/models/catalog"
)

// TreeStore owns item identity and the parent/child structure.
//
// Mutating methods participate in the transaction carried by ctx (see
// repositories.TransactionManager). Lookups of unknown ids return an error
// matching domain.ErrNotFound.
type TreeStore interface {
	// Get returns the item with the given id
	Get(ctx context.Context, id string) (*catalog.Item, error)

	// Children returns the direct children of id, ordered by id
	Children(ctx context.Context, id string) ([]catalog.Item, error)

	// Ancestors returns the parent chain from the nearest parent to the root
	Ancestors(ctx context.Context, id string, includeSelf bool) ([]catalog.Item, error)

	// Descendants returns the whole subtree below id (unordered)
	Descendants(ctx context.Context, id string, includeSelf bool) ([]catalog.Item, error)

	// Upsert creates an item or replaces kind-independent fields of an
	// existing one (url, size, date). New items are created at the root;
	// the parent link of an existing item is left untouched, use SetParent.
	// Fails with domain.ErrInvalidTransition when the kind differs and
	// domain.ErrStaleUpdate when item.Date is not after the stored date.
	Upsert(ctx context.Context, item *catalog.Item) error

	// SetParent links id under parentID (nil = root). Fails with
	// domain.ErrInvalidParent when parentID is not a stored FOLDER or the
	// link would make id its own ancestor.
	SetParent(ctx context.Context, id string, parentID *string) error

	// SetAggregate stores a derived size together with a date, bypassing
	// the monotonicity check of Upsert (used for folder aggregation)
	SetAggregate(ctx context.Context, id string, size int64, date time.Time) error

	// RecomputeSize sums Size over all FILE descendants of folderID
	RecomputeSize(ctx context.Context, folderID string) (int64, error)

	// Remove deletes the given ids. The set must be closed under
	// descendants; removing a node while keeping a child is an error.
	Remove(ctx context.Context, ids []string) error

	// ListByDate returns every item whose date equals date exactly
	ListByDate(ctx context.Context, date time.Time) ([]catalog.Item, error)

	// ListFilesBetween returns FILE items with from <= date <= to,
	// ordered by date then id
	ListFilesBetween(ctx context.Context, from, to time.Time) ([]catalog.Item, error)
}
