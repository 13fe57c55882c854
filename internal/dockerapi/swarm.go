package dockerapi

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/moby/moby/api/types/swarm"
	"github.com/moby/moby/client"

	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/imageref"
)

// ServiceLogs fetches the last `tail` lines for every task of a Swarm
// service by name (spec.md §4.1 swarm log retrieval).
func (c *Client) ServiceLogs(ctx context.Context, serviceName string, tail int) ([]hostclient.LogEntry, error) {
	svc, err := c.findServiceByName(ctx, serviceName)
	if err != nil {
		return nil, err
	}

	logOpts := client.ServiceLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Tail:       fmt.Sprintf("%d", tail),
	}
	reader, err := c.api.ServiceLogs(ctx, svc.ID, logOpts)
	if err != nil {
		return nil, hostclient.NewError(hostclient.KindTransient, "ServiceLogs", c.hostName, err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, hostclient.NewError(hostclient.KindTransient, "ServiceLogs", c.hostName, fmt.Errorf("read service logs: %w", err))
	}

	return c.toLogEntries(raw, svc.ID, serviceName, nil), nil
}

func (c *Client) findServiceByName(ctx context.Context, name string) (swarm.Service, error) {
	result, err := c.api.ServiceList(ctx, client.ServiceListOptions{})
	if err != nil {
		return swarm.Service{}, hostclient.NewError(hostclient.KindTransient, "findServiceByName", c.hostName, err)
	}
	for _, svc := range result.Items {
		if svc.Spec.Annotations.Name == name {
			return svc, nil
		}
	}
	return swarm.Service{}, hostclient.NewError(hostclient.KindConfig, "findServiceByName", c.hostName, fmt.Errorf("service %q not found", name))
}

// RemoveService removes a Swarm service by name.
func (c *Client) RemoveService(ctx context.Context, name string) error {
	svc, err := c.findServiceByName(ctx, name)
	if err != nil {
		return err
	}
	if _, err := c.api.ServiceRemove(ctx, svc.ID, client.ServiceRemoveOptions{}); err != nil {
		return hostclient.NewError(hostclient.KindTransient, "RemoveService", c.hostName, err)
	}
	return nil
}

// ForceUpdateService bumps TaskTemplate.ForceUpdate without changing the
// image, forcing Swarm to reschedule every task (spec.md §4.1).
func (c *Client) ForceUpdateService(ctx context.Context, name string) error {
	svc, err := c.findServiceByName(ctx, name)
	if err != nil {
		return err
	}
	spec := svc.Spec
	spec.TaskTemplate.ForceUpdate++
	_, err = c.api.ServiceUpdate(ctx, svc.ID, client.ServiceUpdateOptions{
		Version: svc.Version,
		Spec:    spec,
	})
	if err != nil {
		return hostclient.NewError(hostclient.KindTransient, "ForceUpdateService", c.hostName, err)
	}
	return nil
}

// UpdateServiceImage swaps the image tag (preserving registry/path,
// stripping any digest) and bumps ForceUpdate so Swarm always performs a
// rolling restart even when the new tag resolves to the same digest
// (spec.md §4.1 and §9 — ForceUpdate is required, not incidental).
func (c *Client) UpdateServiceImage(ctx context.Context, name, newTag string) error {
	svc, err := c.findServiceByName(ctx, name)
	if err != nil {
		return err
	}
	spec := svc.Spec
	if spec.TaskTemplate.ContainerSpec == nil {
		return hostclient.NewError(hostclient.KindConfig, "UpdateServiceImage", c.hostName, fmt.Errorf("service %q has no container spec", name))
	}
	spec.TaskTemplate.ContainerSpec.Image = imageref.WithTag(spec.TaskTemplate.ContainerSpec.Image, newTag)
	spec.TaskTemplate.ForceUpdate++

	_, err = c.api.ServiceUpdate(ctx, svc.ID, client.ServiceUpdateOptions{
		Version: svc.Version,
		Spec:    spec,
	})
	if err != nil {
		return hostclient.NewError(hostclient.KindTransient, "UpdateServiceImage", c.hostName, err)
	}
	return nil
}

// ServiceEnv returns a service's container spec Env lines, the fallback
// source for GetContainerEnv on a remote Swarm container the controller
// cannot exec into directly (spec.md §4.6).
func (c *Client) ServiceEnv(ctx context.Context, serviceName string) ([]string, error) {
	svc, err := c.findServiceByName(ctx, serviceName)
	if err != nil {
		return nil, err
	}
	if svc.Spec.TaskTemplate.ContainerSpec == nil {
		return nil, hostclient.NewError(hostclient.KindConfig, "ServiceEnv", c.hostName, fmt.Errorf("service %q has no container spec", serviceName))
	}
	return svc.Spec.TaskTemplate.ContainerSpec.Env, nil
}

// RemoveStack removes every service whose com.docker.stack.namespace label
// matches stack (spec.md §4.1 — Swarm has no native "stack" object; a stack
// is just a label convention over a set of services).
func (c *Client) RemoveStack(ctx context.Context, stack string) error {
	result, err := c.api.ServiceList(ctx, client.ServiceListOptions{})
	if err != nil {
		return hostclient.NewError(hostclient.KindTransient, "RemoveStack", c.hostName, err)
	}

	var removeErrs []error
	for _, svc := range result.Items {
		if svc.Spec.Labels["com.docker.stack.namespace"] != stack {
			continue
		}
		if _, err := c.api.ServiceRemove(ctx, svc.ID, client.ServiceRemoveOptions{}); err != nil {
			removeErrs = append(removeErrs, fmt.Errorf("%s: %w", svc.Spec.Annotations.Name, err))
		}
	}
	if len(removeErrs) > 0 {
		msgs := make([]string, len(removeErrs))
		for i, e := range removeErrs {
			msgs[i] = e.Error()
		}
		return hostclient.NewError(hostclient.KindTransient, "RemoveStack", c.hostName, fmt.Errorf("%s", strings.Join(msgs, "; ")))
	}
	return nil
}

// ListStacksAndServices enumerates Swarm stacks (by namespace label) and
// their member services.
func (c *Client) ListStacksAndServices(ctx context.Context) ([]hostclient.StackService, error) {
	result, err := c.api.ServiceList(ctx, client.ServiceListOptions{})
	if err != nil {
		return nil, hostclient.NewError(hostclient.KindTransient, "ListStacksAndServices", c.hostName, err)
	}

	out := make([]hostclient.StackService, 0, len(result.Items))
	for _, svc := range result.Items {
		stack := svc.Spec.Labels["com.docker.stack.namespace"]
		image := ""
		if svc.Spec.TaskTemplate.ContainerSpec != nil {
			image = svc.Spec.TaskTemplate.ContainerSpec.Image
		}
		out = append(out, hostclient.StackService{
			Stack:       stack,
			ServiceName: svc.Spec.Annotations.Name,
			ServiceID:   svc.ID,
			Image:       image,
			Replicas:    replicaCount(svc.Spec),
		})
	}
	return out, nil
}

func replicaCount(spec swarm.ServiceSpec) int {
	if spec.Mode.Replicated != nil && spec.Mode.Replicated.Replicas != nil {
		return int(*spec.Mode.Replicated.Replicas)
	}
	if spec.Mode.Global != nil {
		return -1 // one task per eligible node, not a fixed count
	}
	return 0
}

// ListNodes enumerates Swarm nodes (used by internal/collector for
// swarm-proxy auto-discovery, spec.md §4.6).
func (c *Client) ListNodes(ctx context.Context) ([]hostclient.SwarmNode, error) {
	result, err := c.api.NodeList(ctx, client.NodeListOptions{})
	if err != nil {
		return nil, hostclient.NewError(hostclient.KindTransient, "ListNodes", c.hostName, err)
	}
	out := make([]hostclient.SwarmNode, 0, len(result.Items))
	for _, n := range result.Items {
		out = append(out, hostclient.SwarmNode{
			ID:       n.ID,
			Hostname: n.Description.Hostname,
			Role:     string(n.Spec.Role),
			Status:   string(n.Status.State),
			Manager:  n.ManagerStatus != nil,
		})
	}
	return out, nil
}

// ListServiceTasks lists running tasks for a service, used to route
// per-task log/exec requests to the owning node (spec.md §4.6).
func (c *Client) ListServiceTasks(ctx context.Context, serviceID string) ([]hostclient.SwarmTask, error) {
	f := client.Filters{}
	f = f.Add("service", serviceID)
	f = f.Add("desired-state", "running")
	result, err := c.api.TaskList(ctx, client.TaskListOptions{Filters: f})
	if err != nil {
		return nil, hostclient.NewError(hostclient.KindTransient, "ListServiceTasks", c.hostName, err)
	}
	out := make([]hostclient.SwarmTask, 0, len(result.Items))
	for _, t := range result.Items {
		out = append(out, hostclient.SwarmTask{
			ID:           t.ID,
			ServiceID:    t.ServiceID,
			NodeID:       t.NodeID,
			ContainerID:  t.Status.ContainerStatus.ContainerID,
			Slot:         t.Slot,
			DesiredState: string(t.DesiredState),
			State:        string(t.Status.State),
			Image:        t.Spec.ContainerSpec.Image,
		})
	}
	return out, nil
}

// IsSwarmManager reports whether this client's daemon is an active, control
// plane-participating Swarm manager.
func (c *Client) IsSwarmManager(ctx context.Context) bool {
	result, err := c.api.Info(ctx, client.InfoOptions{})
	if err != nil {
		return false
	}
	return result.Info.Swarm.LocalNodeState == swarm.LocalNodeStateActive &&
		result.Info.Swarm.ControlAvailable
}

// LocalNodeID returns this manager's own Swarm node id, used by topology
// discovery to exclude itself from the set of nodes that need a proxy
// client (spec.md §4.2 — identified by node id, not hostname, to survive
// config-name/hostname skew).
func (c *Client) LocalNodeID(ctx context.Context) (string, error) {
	result, err := c.api.Info(ctx, client.InfoOptions{})
	if err != nil {
		return "", hostclient.NewError(hostclient.KindTransient, "LocalNodeID", c.hostName, err)
	}
	return result.Info.Swarm.NodeID, nil
}
