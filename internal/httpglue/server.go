// Package httpglue exposes internal/queryapi and internal/agentproto over
// net/http. It is deliberately minimal (the base ServeMux, no router
// dependency): the HTTP/WebSocket surface shape itself is out of scope
// (spec.md §1 Non-goals) and this package exists only to make the Query
// API and agent protocol reachable and testable end to end.
package httpglue

import (
	"context"
	"net/http"
	"time"

	"github.com/dockfleet/dockfleet/internal/agentproto"
	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/index"
	"github.com/dockfleet/dockfleet/internal/logging"
	"github.com/dockfleet/dockfleet/internal/queryapi"
)

// DashboardReader is the subset of internal/index.Store the dashboard
// routes read, narrowed to an interface so Server can be tested against a
// fake indexing store.
type DashboardReader interface {
	DashboardSummary(ctx context.Context) (index.DashboardSummary, error)
	Metadata(ctx context.Context) (index.Metadata, error)
}

// QueryAPI is the subset of *queryapi.API the route handlers call,
// narrowed to an interface for the same reason.
type QueryAPI interface {
	ListContainers(ctx context.Context, filters queryapi.ContainerFilters, groupBy queryapi.GroupBy) ([]queryapi.ContainerGroup, error)
	SearchLogs(ctx context.Context, q index.LogSearchQuery) (index.LogSearchResult, error)
	GetContainerEnv(ctx context.Context, host string, c hostclient.Container) (map[string]string, error)
	DispatchAction(ctx context.Context, host, containerID string, action hostclient.ContainerAction) (queryapi.ActionResult, error)
	Exec(ctx context.Context, host, containerID string, argv []string) (queryapi.ActionResult, error)
}

// Server wires the Query API and agent protocol onto one ServeMux.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
	log    *logging.Logger
}

// New builds a Server with every route registered. agentHandlers may be
// nil when running in a mode that serves queries only.
func New(api QueryAPI, dash DashboardReader, agentHandlers *agentproto.Handlers, log *logging.Logger) *Server {
	s := &Server{mux: http.NewServeMux(), log: log}
	s.registerQueryRoutes(api, dash)
	if agentHandlers != nil {
		agentHandlers.Register(s.mux)
	}
	return s
}

// ListenAndServe starts the HTTP server on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	s.log.Info("query API listening", "addr", addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
