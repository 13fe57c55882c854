// Package queryapi implements the Query/Aggregation API contracts
// (spec.md §4.6): container listing with the latest-stats join and
// stack/service grouping, log search, action dispatch routed through
// Swarm proxies transparently, and container environment lookup. This
// package defines the contracts only — the HTTP/WS surface that exposes
// them is internal/httpglue's concern.
package queryapi

import (
	"context"

	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/index"
)

// Store is the subset of internal/index.Store the Query API reads,
// narrowed to an interface so list/search logic can be exercised against
// a fake in tests.
type Store interface {
	LatestContainerStats(ctx context.Context) (map[string]index.LatestStat, error)
	SearchLogs(ctx context.Context, q index.LogSearchQuery) (index.LogSearchResult, error)
}

// API implements the Query/Aggregation API contracts (spec.md §4.6) over
// a host registry and an indexing store.
type API struct {
	registry hostclient.Registry
	store    Store
}

// New returns an API ready to serve requests.
func New(registry hostclient.Registry, store Store) *API {
	return &API{registry: registry, store: store}
}
