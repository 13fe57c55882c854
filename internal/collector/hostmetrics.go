package collector

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/metrics"
)

// runMetricsCycle fans out one metrics-collection pass: host-wide metrics
// once per host, then per-running-container stats in sequence per host
// (spec.md §4.3).
func (c *Collector) runMetricsCycle(ctx context.Context) {
	start := c.clk.Now()
	hosts := c.registry.Hosts()

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range hosts {
		h := h
		g.Go(func() error {
			if err := c.collectHostMetrics(gctx, h); err != nil {
				c.log.Warn("metrics collection failed", "host", h.Name, "error", err)
				metrics.CollectorHostErrorsTotal.WithLabelValues(h.Name, "metrics").Inc()
			}
			return nil
		})
	}
	g.Wait()

	metrics.CollectorCyclesTotal.WithLabelValues("metrics").Inc()
	metrics.CollectorCycleDuration.WithLabelValues("metrics").Observe(c.clk.Since(start).Seconds())
}

func (c *Collector) collectHostMetrics(ctx context.Context, h hostclient.Host) error {
	client, ok := c.registry.Client(h.Name)
	if !ok {
		return fmt.Errorf("no host client registered for %q", h.Name)
	}

	hm, err := client.HostMetrics(ctx)
	if err != nil {
		return fmt.Errorf("host metrics: %w", err)
	}
	if err := c.store.IndexHostMetrics(ctx, hm); err != nil {
		metrics.IndexWriteFailuresTotal.WithLabelValues("host-metrics").Inc()
		return fmt.Errorf("index host metrics: %w", err)
	}

	// Swarm-proxy hosts are never reachable through the manager for
	// per-container stats; the write is omitted entirely rather than a
	// synthesized empty document (DESIGN.md Open Question #2).
	if h.Mode == hostclient.ModeSwarmProxy {
		return nil
	}

	containers, err := c.ListContainers(ctx, h.Name)
	if err != nil {
		return fmt.Errorf("list containers: %w", err)
	}
	metrics.ContainersTotal.WithLabelValues(h.Name).Set(float64(len(containers)))

	for _, ct := range containers {
		if ct.Status != hostclient.StatusRunning {
			continue
		}
		stats, err := client.ContainerStats(ctx, ct.ID, ct.Name)
		if err != nil {
			c.log.Warn("container stats fetch failed", "host", h.Name, "container", ct.Name, "error", err)
			continue
		}
		if stats.Unavailable {
			continue
		}
		if err := c.store.IndexContainerStats(ctx, stats); err != nil {
			metrics.IndexWriteFailuresTotal.WithLabelValues("metrics").Inc()
			c.log.Warn("container stats index failed", "host", h.Name, "container", ct.Name, "error", err)
		}
	}
	return nil
}
