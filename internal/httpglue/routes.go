package httpglue

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/index"
	"github.com/dockfleet/dockfleet/internal/queryapi"
)

func (s *Server) registerQueryRoutes(api QueryAPI, dash DashboardReader) {
	s.mux.HandleFunc("GET /api/containers", s.handleListContainers(api))
	s.mux.HandleFunc("GET /api/logs/search", s.handleSearchLogs(api))
	s.mux.HandleFunc("GET /api/dashboard/summary", s.handleDashboardSummary(dash))
	s.mux.HandleFunc("GET /api/dashboard/metadata", s.handleMetadata(dash))
	s.mux.HandleFunc("POST /api/hosts/{host}/containers/{id}/action", s.handleDispatchAction(api))
	s.mux.HandleFunc("POST /api/hosts/{host}/containers/{id}/exec", s.handleExec(api))
	s.mux.HandleFunc("GET /api/hosts/{host}/containers/{id}/env", s.handleContainerEnv(api))
}

// handleListContainers implements `GET /api/containers?host=…&stack=…&group_by=host|stack`
// (spec.md §4.6 ListContainers).
func (s *Server) handleListContainers(api QueryAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		groupBy := queryapi.GroupBy(q.Get("group_by"))
		if groupBy == "" {
			groupBy = queryapi.GroupByHost
		}
		filters := queryapi.ContainerFilters{
			Hosts:  splitCSV(q.Get("host")),
			Stacks: splitCSV(q.Get("stack")),
		}
		groups, err := api.ListContainers(r.Context(), filters, groupBy)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

// handleSearchLogs implements `GET /api/logs/search` (spec.md §4.6
// SearchLogs), translating query parameters into an index.LogSearchQuery.
func (s *Server) handleSearchLogs(api QueryAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := index.LogSearchQuery{
			Query:         q.Get("q"),
			Hosts:         splitCSV(q.Get("host")),
			Containers:    splitCSV(q.Get("container")),
			StackProjects: splitCSV(q.Get("stack")),
			Levels:        splitCSV(q.Get("level")),
			HTTPStatusMin: atoiOr(q.Get("status_min"), 0),
			HTTPStatusMax: atoiOr(q.Get("status_max"), 0),
			From:          atoiOr(q.Get("from"), 0),
			Size:          atoiOr(q.Get("size"), 100),
		}
		result, err := api.SearchLogs(r.Context(), query)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// handleDashboardSummary implements `GET /api/dashboard/summary`
// (spec.md §4.4 "Dashboard summary").
func (s *Server) handleDashboardSummary(dash DashboardReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := dash.DashboardSummary(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

// handleMetadata implements `GET /api/dashboard/metadata` (spec.md §4.4
// "Metadata for query planning").
func (s *Server) handleMetadata(dash DashboardReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		meta, err := dash.Metadata(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, meta)
	}
}

// handleDispatchAction implements
// `POST /api/hosts/{host}/containers/{id}/action` with body
// `{"action": "restart"}` (spec.md §4.6 DispatchAction).
func (s *Server) handleDispatchAction(api QueryAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Action hostclient.ContainerAction `json:"action"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Action == "" {
			writeError(w, http.StatusBadRequest, "action is required")
			return
		}
		result, err := api.DispatchAction(r.Context(), r.PathValue("host"), r.PathValue("id"), body.Action)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// handleExec implements `POST /api/hosts/{host}/containers/{id}/exec`
// with body `{"argv": ["printenv"]}`.
func (s *Server) handleExec(api QueryAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Argv []string `json:"argv"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Argv) == 0 {
			writeError(w, http.StatusBadRequest, "argv is required")
			return
		}
		result, err := api.Exec(r.Context(), r.PathValue("host"), r.PathValue("id"), body.Argv)
		if err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// handleContainerEnv implements `GET /api/hosts/{host}/containers/{id}/env`
// (spec.md §4.6 GetContainerEnv). The query's stack_service parameter
// carries what ListContainers already knows about the container, since
// this route has no other source for it.
func (s *Server) handleContainerEnv(api QueryAPI) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := hostclient.Container{
			ID:           r.PathValue("id"),
			StackService: r.URL.Query().Get("stack_service"),
		}
		env, err := api.GetContainerEnv(r.Context(), r.PathValue("host"), c)
		if err != nil {
			var unreachable *queryapi.ErrContainerUnreachable
			if errors.As(err, &unreachable) {
				writeError(w, http.StatusGatewayTimeout, err.Error())
				return
			}
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, env)
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
