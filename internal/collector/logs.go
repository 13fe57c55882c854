package collector

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/metrics"
)

// runLogCycle fans out one log-collection pass over every registered
// host concurrently (unbounded, per spec.md §4.3's "all per-host work
// within a cycle runs concurrently"); a single host's failure is logged
// and does not cancel the others.
func (c *Collector) runLogCycle(ctx context.Context) {
	start := c.clk.Now()
	hosts := c.registry.Hosts()

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range hosts {
		h := h
		g.Go(func() error {
			if err := c.collectHostLogs(gctx, h.Name); err != nil {
				c.log.Warn("log collection failed", "host", h.Name, "error", err)
				metrics.CollectorHostErrorsTotal.WithLabelValues(h.Name, "logs").Inc()
			}
			return nil
		})
	}
	g.Wait()

	metrics.CollectorCyclesTotal.WithLabelValues("logs").Inc()
	metrics.CollectorCycleDuration.WithLabelValues("logs").Observe(c.clk.Since(start).Seconds())
}

func (c *Collector) collectHostLogs(ctx context.Context, host string) error {
	client, ok := c.registry.Client(host)
	if !ok {
		return fmt.Errorf("no host client registered for %q", host)
	}
	containers, err := c.ListContainers(ctx, host)
	if err != nil {
		return fmt.Errorf("list containers: %w", err)
	}

	var entries []hostclient.LogEntry
	for _, ct := range containers {
		if ct.Status != hostclient.StatusRunning {
			continue
		}

		key := cursorKey{host: host, containerID: ct.ID}
		c.cursorMu.Lock()
		since, hasCursor := c.logCursors[key]
		c.cursorMu.Unlock()

		opts := hostclient.LogOptions{Tail: c.cfg.LogLinesPerFetch}
		if hasCursor {
			opts.Since = since
			opts.Tail = 0
		}

		batch, err := client.ContainerLogs(ctx, ct.ID, ct.Name, opts)
		if err != nil {
			c.log.Warn("container log fetch failed", "host", host, "container", ct.Name, "error", err)
			continue
		}
		if len(batch) == 0 {
			// A cycle that finds no logs leaves the cursor unchanged
			// (spec.md §8 property 2: cursor monotonicity).
			continue
		}
		entries = append(entries, batch...)

		maxTS := since
		for _, e := range batch {
			if e.Timestamp.After(maxTS) {
				maxTS = e.Timestamp
			}
		}
		// +1ms is the correctness-critical cursor-advance rule (spec.md
		// §4.3): it prevents re-ingesting the most recent line without
		// risking a gap before it.
		c.cursorMu.Lock()
		c.logCursors[key] = maxTS.Add(time.Millisecond)
		c.cursorMu.Unlock()
	}

	if len(entries) == 0 {
		return nil
	}

	failed, err := c.store.IndexLogs(ctx, entries)
	if err != nil {
		metrics.IndexWriteFailuresTotal.WithLabelValues("logs").Add(float64(len(entries)))
		return fmt.Errorf("index logs: %w", err)
	}
	if failed > 0 {
		metrics.IndexWriteFailuresTotal.WithLabelValues("logs").Add(float64(failed))
	}
	metrics.LogsIndexedTotal.WithLabelValues(host).Add(float64(len(entries) - failed))
	return nil
}
