package agentproto

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dockfleet/dockfleet/internal/actionqueue"
	"github.com/dockfleet/dockfleet/internal/logging"
)

func newTestMux(waitTimeout time.Duration) (*http.ServeMux, *actionqueue.Queue) {
	q := actionqueue.New(time.Minute)
	h := New(q, waitTimeout, logging.New(false))
	mux := http.NewServeMux()
	h.Register(mux)
	return mux, q
}

func doJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v, body=%s", err, w.Body.String())
	}
	return out
}

func TestHandlePollActionsRequiresAgentID(t *testing.T) {
	mux, _ := newTestMux(time.Second)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/agent/actions", nil)
	mux.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandlePollActionsReturnsDispatchedActions(t *testing.T) {
	mux, q := newTestMux(time.Second)
	q.Create("agent-1", "container_action", map[string]any{"op": "restart"})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/agent/actions?agent_id=agent-1", nil)
	mux.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	body := doJSON(t, w)
	actions, _ := body["actions"].([]any)
	if len(actions) != 1 {
		t.Fatalf("actions = %v, want 1 entry", actions)
	}
}

func TestHandleResultCompletesAction(t *testing.T) {
	mux, q := newTestMux(time.Second)
	action := q.Create("agent-1", "exec", nil)
	q.Poll("agent-1")

	w := httptest.NewRecorder()
	url := "/api/agent/result?agent_id=agent-1&action_id=" + action.ID + "&success=true&output=done"
	r := httptest.NewRequest(http.MethodPost, url, nil)
	mux.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	got, _ := q.Get(action.ID)
	if got.State != actionqueue.StateCompleted || got.Output != "done" {
		t.Errorf("action = %+v, want state=completed output=done", got)
	}
}

func TestHandleResultUnknownActionIs404(t *testing.T) {
	mux, _ := newTestMux(time.Second)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/agent/result?action_id=nope&success=true", nil)
	mux.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestHandleHeartbeatMarksAgentOnline(t *testing.T) {
	mux, q := newTestMux(time.Second)
	body := strings.NewReader(`{"agent_id":"agent-1","status":"ok"}`)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/agent/heartbeat", body)
	mux.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !q.IsOnline("agent-1", time.Minute) {
		t.Error("agent-1 not marked online after heartbeat")
	}
}

func TestHandleDispatchActionQueuesWithoutWait(t *testing.T) {
	mux, _ := newTestMux(time.Second)
	body := strings.NewReader(`{"agent_id":"agent-1","kind":"get_logs"}`)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/agent/action", body)
	mux.ServeHTTP(w, r)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	resp := doJSON(t, w)
	if resp["status"] != "queued" {
		t.Errorf("status field = %v, want queued", resp["status"])
	}
}

func TestHandleDispatchActionWaitTimesOutWhenAgentNeverPolls(t *testing.T) {
	mux, _ := newTestMux(50 * time.Millisecond)
	body := strings.NewReader(`{"agent_id":"agent-1","kind":"get_logs","wait":true}`)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/agent/action", body)
	mux.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := doJSON(t, w)
	if resp["status"] != "timeout" {
		t.Errorf("status field = %v, want timeout (spec.md §8 action-timeout property)", resp["status"])
	}
}

func TestHandleDispatchActionWaitReturnsOkWhenCompleted(t *testing.T) {
	mux, q := newTestMux(time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			actions := q.Poll("agent-1")
			if len(actions) == 1 {
				q.Complete(actions[0].ID, true, "restarted")
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	body := strings.NewReader(`{"agent_id":"agent-1","kind":"container_action","wait":true,"timeout_seconds":2}`)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/agent/action", body)
	mux.ServeHTTP(w, r)
	<-done

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	resp := doJSON(t, w)
	if resp["status"] != "ok" {
		t.Errorf("status field = %v, want ok", resp["status"])
	}
}
