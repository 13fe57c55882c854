// Command dockfleet runs the Dockfleet controller: it loads
// configuration, builds the host registry, starts the Fleet Collector's
// loops, and serves the Query/Aggregation API and agent protocol over
// HTTP until SIGTERM/SIGINT.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dockfleet/dockfleet/internal/actionqueue"
	"github.com/dockfleet/dockfleet/internal/agentproto"
	"github.com/dockfleet/dockfleet/internal/clock"
	"github.com/dockfleet/dockfleet/internal/collector"
	"github.com/dockfleet/dockfleet/internal/config"
	"github.com/dockfleet/dockfleet/internal/httpglue"
	"github.com/dockfleet/dockfleet/internal/index"
	"github.com/dockfleet/dockfleet/internal/logging"
	"github.com/dockfleet/dockfleet/internal/queryapi"
)

// version and commit are set at build time via ldflags, mirroring the
// teacher's -X main.version/-X main.commit convention.
var version = "dev"
var commit = "unknown"

func versionString() string {
	if commit != "" && commit != "unknown" {
		return version + " (" + commit + ")"
	}
	return version
}

func main() {
	// Subcommand dispatch: "dockfleet agent" runs the poller instead of
	// the controller server. Bare "dockfleet" defaults to server mode.
	isAgent := len(os.Args) > 1 && os.Args[1] == "agent"

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.LogJSON)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if isAgent {
		runAgent(ctx, cfg, log)
		return
	}

	fmt.Println("Dockfleet " + versionString())
	fmt.Println("=============================================")
	values := cfg.Values()
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("%s=%s\n", k, values[k])
	}
	fmt.Println("=============================================")

	registry, err := collector.Build(cfg)
	if err != nil {
		log.Error("failed to build host registry", "error", err)
		os.Exit(1)
	}
	defer registry.Close()

	store, err := index.Open(index.Config{
		Addresses:   cfg.IndexAddresses,
		Username:    cfg.IndexUsername,
		Password:    cfg.IndexPassword,
		IndexPrefix: cfg.IndexPrefix,
	})
	if err != nil {
		log.Error("failed to open indexing store", "error", err)
		os.Exit(1)
	}
	if err := store.EnsureIndices(ctx); err != nil {
		log.Error("failed to ensure indices", "error", err)
		os.Exit(1)
	}

	coll := collector.New(cfg, registry, store, clock.Real{}, log)
	queue := actionqueue.New(cfg.ActionTimeout())
	api := queryapi.New(registry, store)
	agentHandlers := agentproto.New(queue, cfg.ActionWaitTimeout, log)
	httpSrv := httpglue.New(api, store, agentHandlers, log)

	go func() {
		if err := coll.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("collector exited with error", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				queue.CleanupOldActions(24 * time.Hour)
			case <-ctx.Done():
				return
			}
		}
	}()

	if cfg.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("GET /metrics", promhttp.Handler())
		go func() {
			addr := net.JoinHostPort("", cfg.MetricsPort)
			log.Info("metrics listening", "addr", addr)
			if err := http.ListenAndServe(addr, metricsMux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server error", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		_ = httpSrv.Shutdown(shutCtx)
	}()

	log.Info("dockfleet started", "version", version, "commit", commit, "hosts", len(registry.Hosts()))

	addr := net.JoinHostPort("", cfg.HTTPPort)
	if err := httpSrv.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("dockfleet exited with error", "error", err)
		os.Exit(1)
	}

	log.Info("dockfleet shutdown complete")
}
