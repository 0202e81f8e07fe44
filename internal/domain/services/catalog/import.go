package catalog

import (
	"context"

	"diskcatalog/internal/domain/models/catalog"
)

// ImportService applies batches of item upserts atomically
type ImportService interface {
	// Import validates and applies a batch; any failure leaves the catalog unchanged
	Import(ctx context.Context, req *ImportRequest) (*ImportResult, error)
}

// ItemDescriptor is one item of an import batch.
// Absent and JSON null optional fields are treated the same.
type ItemDescriptor struct {
	ID       string           `json:"id" yaml:"id"`
	Kind     catalog.ItemKind `json:"type" yaml:"type"`
	URL      *string          `json:"url,omitempty" yaml:"url,omitempty"`
	ParentID *string          `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Size     *int64           `json:"size,omitempty" yaml:"size,omitempty"`
}

// ImportRequest is a batch sharing one update timestamp (ISO-8601)
type ImportRequest struct {
	Items      []ItemDescriptor `json:"items" yaml:"items"`
	UpdateDate string           `json:"updateDate" yaml:"updateDate"`
}

// ImportResult summarizes a committed batch
type ImportResult struct {
	Created    int `json:"created"`
	Updated    int `json:"updated"`
	Aggregated int `json:"aggregated"` // folders whose size/date were recomputed
	Snapshots  int `json:"snapshots"`  // items snapshotted at the batch date
}
