package swarmhost

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dockfleet/dockfleet/internal/hostclient"
)

// ManagerAPI is the subset of hostclient.API plus Swarm-only calls a
// manager client must support for topology discovery (spec.md §4.2).
type ManagerAPI interface {
	hostclient.API
	ListNodes(ctx context.Context) ([]hostclient.SwarmNode, error)
	ListServiceTasks(ctx context.Context, serviceID string) ([]hostclient.SwarmTask, error)
	ListStacksAndServices(ctx context.Context) ([]hostclient.StackService, error)
	LocalNodeID(ctx context.Context) (string, error)
}

// Topology discovers Swarm nodes/services/tasks through one manager
// connection and maintains a Proxy per discovered worker node (spec.md
// §4.2). Safe for concurrent use; Refresh serializes with itself.
type Topology struct {
	manager ManagerAPI

	mu      sync.Mutex
	proxies map[string]*Proxy // keyed by node hostname
}

// NewTopology returns a Topology driven by manager.
func NewTopology(manager ManagerAPI) *Topology {
	return &Topology{manager: manager, proxies: make(map[string]*Proxy)}
}

// Proxies returns a snapshot of the currently discovered proxy clients.
func (t *Topology) Proxies() map[string]*Proxy {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]*Proxy, len(t.proxies))
	for k, v := range t.proxies {
		out[k] = v
	}
	return out
}

// Refresh runs ListNodes, ListStacksAndServices, and per-service
// ListServiceTasks in parallel (spec.md §4.2 discovery pass), synthesizes
// containers for every running task, and reconciles the proxy set:
// creating proxies for newly-ready nodes, dropping ones that disappeared.
func (t *Topology) Refresh(ctx context.Context) error {
	var nodes []hostclient.SwarmNode
	var services []hostclient.StackService
	var localNodeID string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		nodes, err = t.manager.ListNodes(gctx)
		return err
	})
	g.Go(func() (err error) {
		services, err = t.manager.ListStacksAndServices(gctx)
		return err
	})
	g.Go(func() (err error) {
		localNodeID, err = t.manager.LocalNodeID(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("swarm topology discovery: %w", err)
	}

	tasksByService, err := t.listAllTasks(ctx, services)
	if err != nil {
		return err
	}

	containersByNode := synthesizeContainers(services, tasksByService)
	t.reconcile(nodes, localNodeID, containersByNode)
	return nil
}

// listAllTasks fetches every service's tasks concurrently; one service's
// failure doesn't block the others (errgroup with per-call containment).
func (t *Topology) listAllTasks(ctx context.Context, services []hostclient.StackService) (map[string][]hostclient.SwarmTask, error) {
	results := make([][]hostclient.SwarmTask, len(services))

	g, gctx := errgroup.WithContext(ctx)
	for i, svc := range services {
		i, svc := i, svc
		g.Go(func() error {
			tasks, err := t.manager.ListServiceTasks(gctx, svc.ServiceID)
			if err != nil {
				return nil // a single unreachable service must not abort discovery
			}
			results[i] = tasks
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	byService := make(map[string][]hostclient.SwarmTask, len(services))
	for i, svc := range services {
		byService[svc.ServiceID] = results[i]
	}
	return byService, nil
}

// synthesizeContainers builds a Container record per running task (spec.md
// §4.2 container synthesis) and groups them by node id.
func synthesizeContainers(services []hostclient.StackService, tasksByService map[string][]hostclient.SwarmTask) map[string][]hostclient.Container {
	imageByService := make(map[string]string, len(services))
	stackByService := make(map[string]string, len(services))
	for _, svc := range services {
		imageByService[svc.ServiceID] = svc.Image
		stackByService[svc.ServiceID] = svc.Stack
	}

	byNode := make(map[string][]hostclient.Container)
	for serviceID, tasks := range tasksByService {
		for _, task := range tasks {
			if task.ContainerID == "" || task.State != "running" {
				continue
			}
			image := task.Image
			if image == "" {
				image = imageByService[serviceID]
			}
			id := task.ContainerID
			if len(id) > 12 {
				id = id[:12]
			}
			byNode[task.NodeID] = append(byNode[task.NodeID], hostclient.Container{
				ID:           id,
				Name:         fmt.Sprintf("%s.%d.%s", task.ServiceName, task.Slot, task.ID),
				Image:        image,
				Status:       hostclient.StatusRunning,
				StackProject: stackByService[serviceID],
				StackService: task.ServiceName,
				Labels: map[string]string{
					"com.docker.swarm.task.id":   task.ID,
					"com.docker.swarm.service.id": serviceID,
					"com.docker.stack.namespace":  stackByService[serviceID],
				},
			})
		}
	}
	return byNode
}

// reconcile creates proxies for newly-discovered ready worker nodes and
// closes/drops ones that vanished from the latest ListNodes result
// (spec.md §4.2 and the "Swarm add/remove" testable property).
func (t *Topology) reconcile(nodes []hostclient.SwarmNode, localNodeID string, containersByNode map[string][]hostclient.Container) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.ID == localNodeID || n.Status != "ready" {
			continue
		}
		seen[n.Hostname] = true

		proxy, ok := t.proxies[n.Hostname]
		if !ok {
			proxy = NewProxy(t.manager, n.ID, n.Hostname)
			t.proxies[n.Hostname] = proxy
		}
		proxy.SetContainers(containersByNode[n.ID])
	}

	for hostname, proxy := range t.proxies {
		if !seen[hostname] {
			proxy.Close()
			delete(t.proxies, hostname)
		}
	}
}
