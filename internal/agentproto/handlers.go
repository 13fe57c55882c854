// Package agentproto implements the pull-mode agent protocol (spec.md §6):
// agent-reported hosts poll for work over plain HTTP instead of being
// dialed directly, since the controller cannot reach them. Handlers are
// thin translations between net/http and internal/actionqueue.Queue;
// transport security and authentication are explicitly out of scope
// (spec.md Non-goals).
package agentproto

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dockfleet/dockfleet/internal/actionqueue"
	"github.com/dockfleet/dockfleet/internal/logging"
)

// Queue is the subset of actionqueue.Queue the handlers need, narrowed to
// an interface so routing can be tested against a fake.
type Queue interface {
	Create(agent, kind string, payload map[string]any) actionqueue.Action
	Poll(agent string) []actionqueue.Action
	Complete(id string, success bool, output string) (actionqueue.Action, bool)
	WaitFor(ctx context.Context, id string, timeout time.Duration) actionqueue.Action
	Heartbeat(agent, status string)
}

// Handlers registers the agent-facing and controller-facing endpoints
// spec.md §6 names.
type Handlers struct {
	queue       Queue
	waitTimeout time.Duration
	log         *logging.Logger
}

// New returns Handlers ready to register on a *http.ServeMux.
// defaultWaitTimeout bounds a synchronous dispatch call whose body omits
// its own timeout_seconds override.
func New(queue Queue, defaultWaitTimeout time.Duration, log *logging.Logger) *Handlers {
	return &Handlers{queue: queue, waitTimeout: defaultWaitTimeout, log: log}
}

// Register adds every agent-protocol route to mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/agent/actions", h.handlePollActions)
	mux.HandleFunc("POST /api/agent/result", h.handleResult)
	mux.HandleFunc("POST /api/agent/heartbeat", h.handleHeartbeat)
	mux.HandleFunc("POST /api/agent/action", h.handleDispatchAction)
}

// handlePollActions implements `GET /api/agent/actions?agent_id=…`
// (spec.md §6): every action this agent currently owns that is newly
// transitioned to in_progress.
func (h *Handlers) handlePollActions(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	actions := h.queue.Poll(agentID)
	if actions == nil {
		actions = []actionqueue.Action{}
	}
	writeJSON(w, http.StatusOK, pollResponse{AgentID: agentID, Actions: actions})
}

// handleResult implements
// `POST /api/agent/result?agent_id=…&action_id=…&success=…&output=…`.
// agent_id is accepted for symmetry with the other endpoints but is not
// read or logged: an action id is already
// unique to the agent it was created for.
func (h *Handlers) handleResult(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	actionID := q.Get("action_id")
	if actionID == "" {
		writeError(w, http.StatusBadRequest, "action_id is required")
		return
	}
	success := q.Get("success") == "true"
	output := q.Get("output")

	action, ok := h.queue.Complete(actionID, success, output)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown action_id")
		return
	}
	writeJSON(w, http.StatusOK, resultResponse{Status: "ok", ActionID: action.ID})
}

// handleHeartbeat implements `POST /api/agent/heartbeat` with body
// `{agent_id, timestamp, status}`. timestamp is accepted for wire
// compatibility but last-seen is always stamped from the controller's own
// clock (spec.md §3 AgentInfo: "last-heartbeat-at" is server-observed).
func (h *Handlers) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var body heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed heartbeat body")
		return
	}
	if body.AgentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return
	}
	h.queue.Heartbeat(body.AgentID, body.Status)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDispatchAction implements `POST /api/agent/action`
// (controller-side requester): creates an action and, when wait=true,
// blocks up to timeout (defaulting to h.waitTimeout) for a terminal
// state, returning {status:"timeout"} on expiry (spec.md §6, §8 testable
// property "Action timeout").
func (h *Handlers) handleDispatchAction(w http.ResponseWriter, r *http.Request) {
	var body dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "malformed action body")
		return
	}
	if body.AgentID == "" || body.Kind == "" {
		writeError(w, http.StatusBadRequest, "agent_id and kind are required")
		return
	}

	action := h.queue.Create(body.AgentID, body.Kind, body.Payload)
	if !body.Wait {
		writeJSON(w, http.StatusAccepted, dispatchResponse{Status: "queued", Action: action})
		return
	}

	timeout := h.waitTimeout
	if body.TimeoutSeconds > 0 {
		timeout = time.Duration(body.TimeoutSeconds) * time.Second
	}
	final := h.queue.WaitFor(r.Context(), action.ID, timeout)
	if !isTerminal(final.State) {
		writeJSON(w, http.StatusOK, dispatchResponse{Status: "timeout", Action: final})
		return
	}
	writeJSON(w, http.StatusOK, dispatchResponse{Status: "ok", Action: final})
}

func isTerminal(s actionqueue.State) bool {
	switch s {
	case actionqueue.StateCompleted, actionqueue.StateFailed, actionqueue.StateExpired:
		return true
	}
	return false
}

type pollResponse struct {
	AgentID string               `json:"agent_id"`
	Actions []actionqueue.Action `json:"actions"`
}

type resultResponse struct {
	Status   string `json:"status"`
	ActionID string `json:"action_id"`
}

type heartbeatRequest struct {
	AgentID   string    `json:"agent_id"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

type dispatchRequest struct {
	AgentID        string         `json:"agent_id"`
	Kind           string         `json:"kind"`
	Payload        map[string]any `json:"payload,omitempty"`
	Wait           bool           `json:"wait,omitempty"`
	TimeoutSeconds int            `json:"timeout_seconds,omitempty"`
}

type dispatchResponse struct {
	Status string             `json:"status"`
	Action actionqueue.Action `json:"action"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
