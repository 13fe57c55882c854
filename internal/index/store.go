// Package index persists logs, container stats, and host metrics to
// OpenSearch and serves the aggregation queries that power the dashboards
// (spec.md §4.4). It talks to the cluster over the base transport client
// rather than the generated typed API: the aggregation response shapes
// here are ad hoc nested JSON that doesn't map cleanly onto generated
// per-endpoint response structs, so decoding into local result types by
// hand gives more control over the handful of shapes actually used.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	opensearch "github.com/opensearch-project/opensearch-go/v4"
)

// Config describes how to reach the OpenSearch cluster.
type Config struct {
	Addresses   []string
	Username    string
	Password    string
	IndexPrefix string // default "dockfleet"
}

// Store is the OpenSearch-backed indexing store.
type Store struct {
	client *opensearch.Client

	logsIndex        string
	metricsIndex     string
	hostMetricsIndex string
}

// Open constructs a Store and verifies connectivity is at least
// configured (it does not probe the cluster; call EnsureIndices for that).
func Open(cfg Config) (*Store, error) {
	prefix := cfg.IndexPrefix
	if prefix == "" {
		prefix = "dockfleet"
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("new opensearch client: %w", err)
	}

	return &Store{
		client:           client,
		logsIndex:        prefix + "-logs",
		metricsIndex:     prefix + "-metrics",
		hostMetricsIndex: prefix + "-host-metrics",
	}, nil
}

// httpRequest builds a context-bound request with no body.
func httpRequest(ctx context.Context, method, path string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, method, path, nil)
}

// do issues a request against the cluster and decodes the JSON response
// body into out (if non-nil). path must be a cluster-relative path
// ("/index/_doc/id"); the transport fills in scheme and host from its
// connection pool.
func (s *Store) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("build request %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Perform(req)
	if err != nil {
		return fmt.Errorf("opensearch %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusNotFound {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("opensearch %s %s: status %d: %s", method, path, resp.StatusCode, string(b))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode response for %s %s: %w", method, path, err)
	}
	return nil
}
