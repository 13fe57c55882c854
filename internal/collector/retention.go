package collector

import (
	"context"

	"github.com/dockfleet/dockfleet/internal/metrics"
)

// runRetentionSweep deletes documents older than the configured retention
// window from every index (spec.md §4.3); a failure on one index is
// logged and does not prevent the sweep from completing on the others
// (internal/index.Store.DeleteOlderThan already contains failures
// per-index).
func (c *Collector) runRetentionSweep(ctx context.Context) {
	start := c.clk.Now()
	errs := c.store.DeleteOlderThan(ctx, c.cfg.RetentionDays())
	for idx, err := range errs {
		c.log.Warn("retention sweep failed for index", "index", idx, "error", err)
	}
	metrics.RetentionSweepDuration.Observe(c.clk.Since(start).Seconds())
}

// runTopologyRefresh re-discovers Swarm nodes/services/tasks for every
// auto-discovery-enabled manager (spec.md §4.2); one manager's failure is
// logged and does not block the others (internal/collector.Registry
// already contains failures per-manager).
func (c *Collector) runTopologyRefresh(ctx context.Context) {
	start := c.clk.Now()
	errs := c.registry.RefreshTopologies(ctx)
	for manager, err := range errs {
		c.log.Warn("swarm topology refresh failed", "manager", manager, "error", err)
	}
	metrics.SwarmTopologyRefreshDuration.Observe(c.clk.Since(start).Seconds())
	metrics.SwarmProxiesActive.Set(float64(c.registry.ProxyCount()))
}
