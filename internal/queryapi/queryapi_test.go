package queryapi

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/index"
)

type fakeAPI struct {
	containers []hostclient.Container
	execOK     bool
	execOutput string
	execErr    error
	serviceEnv map[string][]string
	actionOK   bool
	actionMsg  string
	actionErr  error
}

func (f *fakeAPI) ListContainers(ctx context.Context) ([]hostclient.Container, error) {
	return f.containers, nil
}
func (f *fakeAPI) ContainerStats(ctx context.Context, id, name string) (hostclient.Stats, error) {
	return hostclient.Stats{}, nil
}
func (f *fakeAPI) HostMetrics(ctx context.Context) (hostclient.HostMetrics, error) {
	return hostclient.HostMetrics{}, nil
}
func (f *fakeAPI) ContainerLogs(ctx context.Context, id, name string, opts hostclient.LogOptions) ([]hostclient.LogEntry, error) {
	return nil, nil
}
func (f *fakeAPI) ExecuteAction(ctx context.Context, id string, action hostclient.ContainerAction) (bool, string, error) {
	return f.actionOK, f.actionMsg, f.actionErr
}
func (f *fakeAPI) Exec(ctx context.Context, id string, argv []string) (bool, string, error) {
	return f.execOK, f.execOutput, f.execErr
}
func (f *fakeAPI) ServiceLogs(ctx context.Context, serviceName string, tail int) ([]hostclient.LogEntry, error) {
	return nil, nil
}
func (f *fakeAPI) RemoveService(ctx context.Context, name string) error      { return nil }
func (f *fakeAPI) ForceUpdateService(ctx context.Context, name string) error { return nil }
func (f *fakeAPI) UpdateServiceImage(ctx context.Context, name, tag string) error {
	return nil
}
func (f *fakeAPI) RemoveStack(ctx context.Context, stack string) error { return nil }
func (f *fakeAPI) ListStacksAndServices(ctx context.Context) ([]hostclient.StackService, error) {
	return nil, nil
}
func (f *fakeAPI) ServiceEnv(ctx context.Context, serviceName string) ([]string, error) {
	env, ok := f.serviceEnv[serviceName]
	if !ok {
		return nil, errors.New("service not found")
	}
	return env, nil
}
func (f *fakeAPI) Close() error { return nil }

var _ hostclient.API = (*fakeAPI)(nil)

type fakeRegistry struct {
	clients map[string]hostclient.API
	hosts   []hostclient.Host
}

func (r *fakeRegistry) Client(host string) (hostclient.API, bool) {
	c, ok := r.clients[host]
	return c, ok
}
func (r *fakeRegistry) Hosts() []hostclient.Host { return r.hosts }

var _ hostclient.Registry = (*fakeRegistry)(nil)

type fakeStore struct {
	latest map[string]index.LatestStat
}

func (s *fakeStore) LatestContainerStats(ctx context.Context) (map[string]index.LatestStat, error) {
	return s.latest, nil
}
func (s *fakeStore) SearchLogs(ctx context.Context, q index.LogSearchQuery) (index.LogSearchResult, error) {
	return index.LogSearchResult{}, nil
}

var _ Store = (*fakeStore)(nil)

func TestListContainersGroupByStackPrefersManagerStackLabels(t *testing.T) {
	api := &fakeAPI{containers: []hostclient.Container{
		{ID: "c1", Name: "web.1.abc", StackProject: "proj", StackService: "web"},
		{ID: "c2", Name: "db.1.xyz", StackProject: "proj", StackService: "db"},
	}}
	reg := &fakeRegistry{clients: map[string]hostclient.API{"h1": api}, hosts: []hostclient.Host{{Name: "h1"}}}
	a := New(reg, &fakeStore{latest: map[string]index.LatestStat{}})

	groups, err := a.ListContainers(context.Background(), ContainerFilters{}, GroupByStack)
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	keys := groupKeys(groups)
	want := []string{"proj/db", "proj/web"}
	if !equalSlices(keys, want) {
		t.Errorf("group keys = %v, want %v", keys, want)
	}
}

func TestListContainersGroupByStackFallsBackToNamePrefix(t *testing.T) {
	api := &fakeAPI{containers: []hostclient.Container{
		{ID: "c1", Name: "myapp-worker-1"},
	}}
	reg := &fakeRegistry{clients: map[string]hostclient.API{"h1": api}, hosts: []hostclient.Host{{Name: "h1"}}}
	a := New(reg, &fakeStore{latest: map[string]index.LatestStat{}})

	groups, err := a.ListContainers(context.Background(), ContainerFilters{}, GroupByStack)
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	keys := groupKeys(groups)
	if !equalSlices(keys, []string{"myapp/worker"}) {
		t.Errorf("group keys = %v, want [myapp/worker]", keys)
	}
}

func TestListContainersGroupByStackFallsBackToStandalone(t *testing.T) {
	api := &fakeAPI{containers: []hostclient.Container{{ID: "c1", Name: "adhoc"}}}
	reg := &fakeRegistry{clients: map[string]hostclient.API{"h1": api}, hosts: []hostclient.Host{{Name: "h1"}}}
	a := New(reg, &fakeStore{latest: map[string]index.LatestStat{}})

	groups, err := a.ListContainers(context.Background(), ContainerFilters{}, GroupByStack)
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	keys := groupKeys(groups)
	if !equalSlices(keys, []string{standaloneBucket}) {
		t.Errorf("group keys = %v, want [%s]", keys, standaloneBucket)
	}
}

func TestListContainersEnrichesFromLatestStats(t *testing.T) {
	api := &fakeAPI{containers: []hostclient.Container{{ID: "c1", Name: "web", Host: "h1"}}}
	reg := &fakeRegistry{clients: map[string]hostclient.API{"h1": api}, hosts: []hostclient.Host{{Name: "h1"}}}
	a := New(reg, &fakeStore{latest: map[string]index.LatestStat{"c1": {CPUPercent: 42}}})

	groups, err := a.ListContainers(context.Background(), ContainerFilters{}, GroupByHost)
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	if len(groups) != 1 || len(groups[0].Containers) != 1 {
		t.Fatalf("groups = %+v", groups)
	}
	got := groups[0].Containers[0].Stats
	if got == nil || got.CPUPercent != 42 {
		t.Errorf("Stats = %+v, want CPUPercent=42", got)
	}
}

func TestGetContainerEnvPrefersExec(t *testing.T) {
	api := &fakeAPI{execOK: true, execOutput: "FOO=bar\nBAZ=qux\n"}
	reg := &fakeRegistry{clients: map[string]hostclient.API{"h1": api}}
	a := New(reg, &fakeStore{})

	env, err := a.GetContainerEnv(context.Background(), "h1", hostclient.Container{ID: "c1"})
	if err != nil {
		t.Fatalf("GetContainerEnv() error = %v", err)
	}
	if env["FOO"] != "bar" || env["BAZ"] != "qux" {
		t.Errorf("env = %v", env)
	}
}

func TestGetContainerEnvFallsBackToServiceSpec(t *testing.T) {
	api := &fakeAPI{
		execErr:    errors.New("no exec access"),
		serviceEnv: map[string][]string{"web": {"FOO=bar"}},
	}
	reg := &fakeRegistry{clients: map[string]hostclient.API{"h1": api}}
	a := New(reg, &fakeStore{})

	env, err := a.GetContainerEnv(context.Background(), "h1", hostclient.Container{ID: "c1", StackService: "web"})
	if err != nil {
		t.Fatalf("GetContainerEnv() error = %v", err)
	}
	if env["FOO"] != "bar" {
		t.Errorf("env = %v, want FOO=bar from service spec fallback", env)
	}
}

func TestGetContainerEnvReturnsUnreachableWhenNoFallbackExists(t *testing.T) {
	api := &fakeAPI{execErr: errors.New("no exec access")}
	reg := &fakeRegistry{clients: map[string]hostclient.API{"h1": api}}
	a := New(reg, &fakeStore{})

	_, err := a.GetContainerEnv(context.Background(), "h1", hostclient.Container{ID: "c1"})
	var unreachable *ErrContainerUnreachable
	if !errors.As(err, &unreachable) {
		t.Errorf("error = %v, want *ErrContainerUnreachable", err)
	}
}

func TestDispatchActionRoutesThroughRegisteredClient(t *testing.T) {
	api := &fakeAPI{actionOK: true, actionMsg: "restarted"}
	reg := &fakeRegistry{clients: map[string]hostclient.API{"h1": api}}
	a := New(reg, &fakeStore{})

	result, err := a.DispatchAction(context.Background(), "h1", "c1", hostclient.ActionRestart)
	if err != nil {
		t.Fatalf("DispatchAction() error = %v", err)
	}
	if !result.OK || result.Message != "restarted" {
		t.Errorf("result = %+v", result)
	}
}

func TestDispatchActionUnknownHost(t *testing.T) {
	reg := &fakeRegistry{clients: map[string]hostclient.API{}}
	a := New(reg, &fakeStore{})

	if _, err := a.DispatchAction(context.Background(), "ghost", "c1", hostclient.ActionStop); err == nil {
		t.Error("expected error for unknown host")
	}
}

func groupKeys(groups []ContainerGroup) []string {
	keys := make([]string, len(groups))
	for i, g := range groups {
		keys[i] = g.Key
	}
	sort.Strings(keys)
	return keys
}

func equalSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
