package httpglue

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/index"
	"github.com/dockfleet/dockfleet/internal/logging"
	"github.com/dockfleet/dockfleet/internal/queryapi"
)

type fakeQueryAPI struct {
	groups     []queryapi.ContainerGroup
	listErr    error
	searchResp index.LogSearchResult
	env        map[string]string
	envErr     error
	actionResp queryapi.ActionResult
	actionErr  error
}

func (f *fakeQueryAPI) ListContainers(ctx context.Context, filters queryapi.ContainerFilters, groupBy queryapi.GroupBy) ([]queryapi.ContainerGroup, error) {
	return f.groups, f.listErr
}
func (f *fakeQueryAPI) SearchLogs(ctx context.Context, q index.LogSearchQuery) (index.LogSearchResult, error) {
	return f.searchResp, nil
}
func (f *fakeQueryAPI) GetContainerEnv(ctx context.Context, host string, c hostclient.Container) (map[string]string, error) {
	return f.env, f.envErr
}
func (f *fakeQueryAPI) DispatchAction(ctx context.Context, host, containerID string, action hostclient.ContainerAction) (queryapi.ActionResult, error) {
	return f.actionResp, f.actionErr
}
func (f *fakeQueryAPI) Exec(ctx context.Context, host, containerID string, argv []string) (queryapi.ActionResult, error) {
	return f.actionResp, f.actionErr
}

var _ QueryAPI = (*fakeQueryAPI)(nil)

type fakeDashboard struct {
	summary index.DashboardSummary
	meta    index.Metadata
}

func (f *fakeDashboard) DashboardSummary(ctx context.Context) (index.DashboardSummary, error) {
	return f.summary, nil
}
func (f *fakeDashboard) Metadata(ctx context.Context) (index.Metadata, error) {
	return f.meta, nil
}

var _ DashboardReader = (*fakeDashboard)(nil)

func newTestServer(api QueryAPI, dash DashboardReader) *Server {
	return New(api, dash, nil, logging.New(false))
}

func TestHandleListContainersReturnsGroups(t *testing.T) {
	api := &fakeQueryAPI{groups: []queryapi.ContainerGroup{{Key: "h1"}}}
	s := newTestServer(api, &fakeDashboard{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/containers?group_by=host", nil)
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got []queryapi.ContainerGroup
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Key != "h1" {
		t.Errorf("got = %+v", got)
	}
}

func TestHandleListContainersPropagatesError(t *testing.T) {
	api := &fakeQueryAPI{listErr: context.DeadlineExceeded}
	s := newTestServer(api, &fakeDashboard{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/containers", nil)
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestHandleDashboardSummary(t *testing.T) {
	dash := &fakeDashboard{summary: index.DashboardSummary{Errors24h: 3}}
	s := newTestServer(&fakeQueryAPI{}, dash)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/dashboard/summary", nil)
	s.mux.ServeHTTP(rec, req)

	var got index.DashboardSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Errors24h != 3 {
		t.Errorf("Errors24h = %d, want 3", got.Errors24h)
	}
}

func TestHandleDispatchActionParsesPathAndBody(t *testing.T) {
	api := &fakeQueryAPI{actionResp: queryapi.ActionResult{OK: true, Message: "restarted"}}
	s := newTestServer(api, &fakeDashboard{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/hosts/h1/containers/c1/action", jsonBody(`{"action":"restart"}`))
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got queryapi.ActionResult
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !got.OK || got.Message != "restarted" {
		t.Errorf("got = %+v", got)
	}
}

func TestHandleDispatchActionRejectsMissingAction(t *testing.T) {
	s := newTestServer(&fakeQueryAPI{}, &fakeDashboard{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/hosts/h1/containers/c1/action", jsonBody(`{}`))
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleContainerEnvReturnsGatewayTimeoutOnUnreachable(t *testing.T) {
	api := &fakeQueryAPI{envErr: &queryapi.ErrContainerUnreachable{Host: "h1", ContainerID: "c1"}}
	s := newTestServer(api, &fakeDashboard{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/hosts/h1/containers/c1/env", nil)
	s.mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("status = %d, want 504", rec.Code)
	}
}

func jsonBody(s string) io.Reader {
	return strings.NewReader(s)
}
