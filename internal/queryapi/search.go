package queryapi

import (
	"context"

	"github.com/dockfleet/dockfleet/internal/index"
)

// SearchLogs delegates directly to the indexing store's query_string
// search plus filters/aggregations (spec.md §4.6); the Query API adds no
// behavior of its own here beyond exposing the contract.
func (a *API) SearchLogs(ctx context.Context, q index.LogSearchQuery) (index.LogSearchResult, error) {
	return a.store.SearchLogs(ctx, q)
}
