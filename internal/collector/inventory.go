package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/dockfleet/dockfleet/internal/hostclient"
)

const (
	containerCacheTTL = 30 * time.Second
	nameCacheTTL      = 300 * time.Second
)

type containerCacheEntry struct {
	containers []hostclient.Container
	fetchedAt  time.Time
}

type nameCacheKey struct{ host, id string }

type nameCacheEntry struct {
	name      string
	fetchedAt time.Time
}

// ListContainers returns the cached container list for host, refreshing
// it from the host client when the cache is stale (spec.md §4.3 "lazy,
// triggered on demand" inventory refresh, 30s TTL for the consolidated
// list). A Swarm proxy's ListContainers is itself a cache read against the
// set last synthesized by the topology's 5-minute discovery pass, so no
// separate per-host fetch happens for those hosts.
func (c *Collector) ListContainers(ctx context.Context, host string) ([]hostclient.Container, error) {
	c.mu.Lock()
	entry, ok := c.containerCache[host]
	fresh := ok && c.clk.Since(entry.fetchedAt) < containerCacheTTL
	c.mu.Unlock()
	if fresh {
		return entry.containers, nil
	}

	client, ok := c.registry.Client(host)
	if !ok {
		return nil, fmt.Errorf("no host client registered for %q", host)
	}
	containers, err := client.ListContainers(ctx)
	if err != nil {
		return nil, err
	}

	now := c.clk.Now()
	c.mu.Lock()
	c.containerCache[host] = containerCacheEntry{containers: containers, fetchedAt: now}
	for _, ct := range containers {
		c.nameCache[nameCacheKey{host, ct.ID}] = nameCacheEntry{name: ct.Name, fetchedAt: now}
	}
	c.mu.Unlock()
	return containers, nil
}

// ContainerName resolves a container id to its last-known name for host,
// using a longer-lived cache (300s) than the consolidated inventory list
// — name-by-id lookups (e.g. for action dispatch or log enrichment
// against a Swarm-proxy host) happen far more often than a full re-list
// (spec.md §4.3).
func (c *Collector) ContainerName(host, id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.nameCache[nameCacheKey{host, id}]
	if !ok || c.clk.Since(entry.fetchedAt) >= nameCacheTTL {
		return "", false
	}
	return entry.name, true
}
