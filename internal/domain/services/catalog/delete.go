package catalog

import "context"

// DeleteService removes subtrees together with their history
type DeleteService interface {
	// DeleteNode removes id and all of its descendants, purges their history
	// and re-aggregates surviving ancestors stamped with date (ISO-8601)
	DeleteNode(ctx context.Context, id, date string) (*DeleteResult, error)
}

// DeleteResult summarizes a committed delete
type DeleteResult struct {
	Removed    int `json:"removed"`
	Aggregated int `json:"aggregated"`
}
