// Package swarmhost implements the Swarm-proxy host-client variant and
// topology discovery (spec.md §4.1 "Swarm Proxy", §4.2 "Swarm Topology").
// A Proxy delegates every operation to a manager's hostclient.API and
// filters to one discovered node; its lifetime is owned by a Topology, not
// by the proxy itself.
package swarmhost

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dockfleet/dockfleet/internal/hostclient"
)

// Proxy is a virtual host client bound to one Swarm node, routed entirely
// through a manager connection it does not own.
type Proxy struct {
	manager  hostclient.API
	nodeID   string
	hostName string // discovered node hostname, used as the Host name

	mu         sync.RWMutex
	containers []hostclient.Container
}

var _ hostclient.API = (*Proxy)(nil)

// NewProxy returns a proxy for nodeID, reporting containers under hostName,
// routed through manager. manager is not closed by the proxy.
func NewProxy(manager hostclient.API, nodeID, hostName string) *Proxy {
	return &Proxy{manager: manager, nodeID: nodeID, hostName: hostName}
}

// NodeID reports the Swarm node this proxy is bound to.
func (p *Proxy) NodeID() string { return p.nodeID }

// SetContainers replaces the proxy's synthesized container set, called by
// topology discovery after each refresh (spec.md §4.2 container synthesis).
func (p *Proxy) SetContainers(containers []hostclient.Container) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.containers = containers
}

// ListContainers returns the last-synthesized set for this node. Filtering
// to the local node happens at synthesis time (Topology.Refresh), not here.
func (p *Proxy) ListContainers(ctx context.Context) ([]hostclient.Container, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]hostclient.Container, len(p.containers))
	copy(out, p.containers)
	return out, nil
}

// ContainerStats is never reachable through a manager connection for a
// worker-node container (spec.md §4.1 Swarm Proxy) — always reported as
// remote-unreachable so the collector can omit the write (Open Question #2).
func (p *Proxy) ContainerStats(ctx context.Context, id, name string) (hostclient.Stats, error) {
	return hostclient.Stats{}, hostclient.NewError(hostclient.KindRemoteUnreachable, "ContainerStats", p.hostName,
		fmt.Errorf("container %s is on a remote swarm node, not reachable via manager stats endpoint", id))
}

// HostMetrics degrades to aggregated container stats, which are themselves
// unavailable for proxy nodes — so this always reports an empty, flagged
// sample rather than erroring; spec.md §4.1 describes this degradation
// without requiring a hard failure.
func (p *Proxy) HostMetrics(ctx context.Context) (hostclient.HostMetrics, error) {
	return hostclient.HostMetrics{
		Host:        p.hostName,
		Timestamp:   time.Now().UTC(),
		Approximate: true,
	}, nil
}

// ContainerLogs routes through the manager, passing opts (TaskID
// included) to the manager client unchanged.
func (p *Proxy) ContainerLogs(ctx context.Context, id, name string, opts hostclient.LogOptions) ([]hostclient.LogEntry, error) {
	return p.manager.ContainerLogs(ctx, id, name, opts)
}

// ExecuteAction dispatches through the manager connection (spec.md §4.6
// DispatchAction — routed to the manager when the target host isn't one).
func (p *Proxy) ExecuteAction(ctx context.Context, id string, action hostclient.ContainerAction) (bool, string, error) {
	return p.manager.ExecuteAction(ctx, id, action)
}

// Exec dispatches through the manager connection.
func (p *Proxy) Exec(ctx context.Context, id string, argv []string) (bool, string, error) {
	return p.manager.Exec(ctx, id, argv)
}

// ServiceLogs, RemoveService, ForceUpdateService, UpdateServiceImage,
// RemoveStack, and ListStacksAndServices are cluster-wide Swarm operations
// with no "per node" meaning, so the proxy simply forwards to the manager.
func (p *Proxy) ServiceLogs(ctx context.Context, serviceName string, tail int) ([]hostclient.LogEntry, error) {
	return p.manager.ServiceLogs(ctx, serviceName, tail)
}

func (p *Proxy) RemoveService(ctx context.Context, name string) error {
	return p.manager.RemoveService(ctx, name)
}

func (p *Proxy) ForceUpdateService(ctx context.Context, name string) error {
	return p.manager.ForceUpdateService(ctx, name)
}

func (p *Proxy) UpdateServiceImage(ctx context.Context, name, newTag string) error {
	return p.manager.UpdateServiceImage(ctx, name, newTag)
}

func (p *Proxy) RemoveStack(ctx context.Context, stack string) error {
	return p.manager.RemoveStack(ctx, stack)
}

func (p *Proxy) ListStacksAndServices(ctx context.Context) ([]hostclient.StackService, error) {
	return p.manager.ListStacksAndServices(ctx)
}

func (p *Proxy) ServiceEnv(ctx context.Context, serviceName string) ([]string, error) {
	return p.manager.ServiceEnv(ctx, serviceName)
}

// Close is a no-op: the proxy does not own the manager connection.
func (p *Proxy) Close() error { return nil }
