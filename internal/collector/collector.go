package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dockfleet/dockfleet/internal/clock"
	"github.com/dockfleet/dockfleet/internal/config"
	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/logging"
)

// Store is the subset of internal/index.Store the collector writes
// through, narrowed to an interface so collection logic can be exercised
// against a fake in tests.
type Store interface {
	IndexLogs(ctx context.Context, entries []hostclient.LogEntry) (failed int, err error)
	IndexContainerStats(ctx context.Context, stats hostclient.Stats) error
	IndexHostMetrics(ctx context.Context, m hostclient.HostMetrics) error
	DeleteOlderThan(ctx context.Context, retentionDays int) map[string]error
}

// Registry is the host-lookup surface the collector needs: the shared
// hostclient.Registry contract plus the Swarm topology maintenance that
// only *collector.HostRegistry provides.
type Registry interface {
	hostclient.Registry
	RefreshTopologies(ctx context.Context) map[string]error
	ProxyCount() int
}

// Collector runs the Fleet Collector's independent loops (spec.md §4.3):
// log collection, metrics collection, the hourly retention sweep, and the
// 5-minute Swarm topology refresh. Container inventory refresh is lazy
// and cache-backed (see inventory.go) rather than its own loop.
type Collector struct {
	cfg      *config.Config
	registry Registry
	store    Store
	clk      clock.Clock
	log      *logging.Logger

	mu             sync.Mutex
	containerCache map[string]containerCacheEntry
	nameCache      map[nameCacheKey]nameCacheEntry

	cursorMu   sync.Mutex
	logCursors map[cursorKey]time.Time
}

type cursorKey struct{ host, containerID string }

// New returns a ready-to-run Collector.
func New(cfg *config.Config, registry Registry, store Store, clk clock.Clock, log *logging.Logger) *Collector {
	return &Collector{
		cfg:            cfg,
		registry:       registry,
		store:          store,
		clk:            clk,
		log:            log,
		containerCache: make(map[string]containerCacheEntry),
		nameCache:      make(map[nameCacheKey]nameCacheEntry),
		logCursors:     make(map[cursorKey]time.Time),
	}
}

// Run starts every loop and blocks until ctx is cancelled. Per-host
// failures within a cycle are logged and contained; they never propagate
// here (spec.md §5 "a failure on one host is logged and isolated", §7
// transient-error policy).
func (c *Collector) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.logLoop(gctx) })
	g.Go(func() error { return c.metricsLoop(gctx) })
	g.Go(func() error { return c.cronLoop(gctx) })

	return g.Wait()
}

func (c *Collector) logLoop(ctx context.Context) error {
	c.log.Info("log collection loop starting", "interval", c.cfg.LogInterval())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.clk.After(c.cfg.LogInterval()):
			c.runLogCycle(ctx)
		}
	}
}

func (c *Collector) metricsLoop(ctx context.Context) error {
	c.log.Info("metrics collection loop starting", "interval", c.cfg.MetricsInterval())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.clk.After(c.cfg.MetricsInterval()):
			c.runMetricsCycle(ctx)
		}
	}
}

// cronLoop drives the hourly retention sweep and the Swarm topology
// refresh (default every 5 minutes) off one robfig/cron/v3 scheduler
// (spec.md §4.3 retention sweep, §4.2 discovery cadence).
func (c *Collector) cronLoop(ctx context.Context) error {
	cr := cron.New()
	if _, err := cr.AddFunc("@hourly", func() { c.runRetentionSweep(ctx) }); err != nil {
		return fmt.Errorf("schedule retention sweep: %w", err)
	}
	spec := fmt.Sprintf("@every %s", c.cfg.SwarmRefreshInterval)
	if _, err := cr.AddFunc(spec, func() { c.runTopologyRefresh(ctx) }); err != nil {
		return fmt.Errorf("schedule swarm topology refresh: %w", err)
	}
	cr.Start()
	<-ctx.Done()
	stopCtx := cr.Stop()
	<-stopCtx.Done()
	return nil
}
