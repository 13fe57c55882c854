package swarmhost

import (
	"context"
	"testing"

	"github.com/dockfleet/dockfleet/internal/hostclient"
)

// fakeManager implements ManagerAPI with an adjustable node/service/task
// set, letting tests simulate a node joining and leaving the cluster.
type fakeManager struct {
	hostclient.API // unimplemented methods panic if called — tests don't need them

	nodes       []hostclient.SwarmNode
	services    []hostclient.StackService
	tasks       map[string][]hostclient.SwarmTask
	localNodeID string
}

func (f *fakeManager) ListNodes(ctx context.Context) ([]hostclient.SwarmNode, error) {
	return f.nodes, nil
}

func (f *fakeManager) ListServiceTasks(ctx context.Context, serviceID string) ([]hostclient.SwarmTask, error) {
	return f.tasks[serviceID], nil
}

func (f *fakeManager) ListStacksAndServices(ctx context.Context) ([]hostclient.StackService, error) {
	return f.services, nil
}

func (f *fakeManager) LocalNodeID(ctx context.Context) (string, error) {
	return f.localNodeID, nil
}

func TestTopologyRefreshDiscoversWorkerProxies(t *testing.T) {
	fm := &fakeManager{
		localNodeID: "node-mgr",
		nodes: []hostclient.SwarmNode{
			{ID: "node-mgr", Hostname: "mgr", Status: "ready", Manager: true},
			{ID: "node-w1", Hostname: "w1", Status: "ready"},
			{ID: "node-w2", Hostname: "w2", Status: "ready"},
		},
		services: []hostclient.StackService{
			{Stack: "app", ServiceName: "web", ServiceID: "svc1", Image: "nginx:1.24"},
		},
		tasks: map[string][]hostclient.SwarmTask{
			"svc1": {
				{ID: "task1", ServiceID: "svc1", ServiceName: "web", NodeID: "node-w1", ContainerID: "cid1cid1cid1", Slot: 1, State: "running"},
				{ID: "task2", ServiceID: "svc1", ServiceName: "web", NodeID: "node-w2", ContainerID: "cid2cid2cid2", Slot: 2, State: "running"},
			},
		},
	}

	topo := NewTopology(fm)
	if err := topo.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	proxies := topo.Proxies()
	if len(proxies) != 2 {
		t.Fatalf("Proxies() = %d, want 2 (mgr excluded)", len(proxies))
	}
	if _, ok := proxies["w1"]; !ok {
		t.Error("missing proxy for w1")
	}
	w2, ok := proxies["w2"]
	if !ok {
		t.Fatal("missing proxy for w2")
	}
	containers, _ := w2.ListContainers(context.Background())
	if len(containers) != 1 || containers[0].Name != "web.2.task2" {
		t.Errorf("w2 containers = %+v, want one container named web.2.task2", containers)
	}
}

func TestTopologyRefreshRemovesVanishedNode(t *testing.T) {
	fm := &fakeManager{
		localNodeID: "node-mgr",
		nodes: []hostclient.SwarmNode{
			{ID: "node-mgr", Hostname: "mgr", Status: "ready", Manager: true},
			{ID: "node-w1", Hostname: "w1", Status: "ready"},
			{ID: "node-w2", Hostname: "w2", Status: "ready"},
		},
		services: []hostclient.StackService{{Stack: "app", ServiceName: "web", ServiceID: "svc1"}},
		tasks:    map[string][]hostclient.SwarmTask{},
	}
	topo := NewTopology(fm)
	if err := topo.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(topo.Proxies()) != 2 {
		t.Fatalf("initial Proxies() = %d, want 2", len(topo.Proxies()))
	}

	fm.nodes = []hostclient.SwarmNode{
		{ID: "node-mgr", Hostname: "mgr", Status: "ready", Manager: true},
		{ID: "node-w1", Hostname: "w1", Status: "ready"},
	}
	if err := topo.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh() error = %v", err)
	}

	proxies := topo.Proxies()
	if len(proxies) != 1 {
		t.Fatalf("Proxies() after removal = %d, want 1", len(proxies))
	}
	if _, ok := proxies["w2"]; ok {
		t.Error("w2 proxy still present after it left the node list")
	}
}
