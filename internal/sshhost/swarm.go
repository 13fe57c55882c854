package sshhost

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/imageref"
)

// ServiceLogs runs `docker service logs`.
func (c *Client) ServiceLogs(ctx context.Context, serviceName string, tail int) ([]hostclient.LogEntry, error) {
	out, _, err := c.run(ctx, []string{"docker", "service", "logs", "-t", "--tail", strconv.Itoa(tail), serviceName})
	if err != nil {
		return nil, err
	}
	return c.toLogEntries([]byte(out), "", serviceName, nil), nil
}

// RemoveService runs `docker service rm`.
func (c *Client) RemoveService(ctx context.Context, name string) error {
	_, exitCode, err := c.run(ctx, []string{"docker", "service", "rm", name})
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return hostclient.NewError(hostclient.KindTransient, "RemoveService", c.hostName, fmt.Errorf("docker service rm exited %d", exitCode))
	}
	return nil
}

// ForceUpdateService runs `docker service update --force`.
func (c *Client) ForceUpdateService(ctx context.Context, name string) error {
	_, exitCode, err := c.run(ctx, []string{"docker", "service", "update", "--force", name})
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return hostclient.NewError(hostclient.KindTransient, "ForceUpdateService", c.hostName, fmt.Errorf("docker service update exited %d", exitCode))
	}
	return nil
}

// UpdateServiceImage reads the service's current image via `docker service
// inspect`, rewrites only the tag (preserving registry/path, stripping any
// digest), and applies it with `--force` so Swarm always restarts tasks.
func (c *Client) UpdateServiceImage(ctx context.Context, name, newTag string) error {
	out, _, err := c.run(ctx, []string{"docker", "service", "inspect", name, "--format", "{{json .Spec.TaskTemplate.ContainerSpec.Image}}"})
	if err != nil {
		return err
	}
	var currentImage string
	if jerr := json.Unmarshal([]byte(strings.TrimSpace(out)), &currentImage); jerr != nil {
		return hostclient.NewError(hostclient.KindTransient, "UpdateServiceImage", c.hostName, fmt.Errorf("decode current image: %w", jerr))
	}

	newImage := imageref.WithTag(currentImage, newTag)
	_, exitCode, err := c.run(ctx, []string{"docker", "service", "update", "--force", "--image", newImage, name})
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return hostclient.NewError(hostclient.KindTransient, "UpdateServiceImage", c.hostName, fmt.Errorf("docker service update exited %d", exitCode))
	}
	return nil
}

// ServiceEnv runs `docker service inspect` and reads the container spec's
// Env array, the fallback source for GetContainerEnv on a remote Swarm
// container the controller cannot exec into directly (spec.md §4.6).
func (c *Client) ServiceEnv(ctx context.Context, serviceName string) ([]string, error) {
	out, _, err := c.run(ctx, []string{"docker", "service", "inspect", serviceName, "--format", "{{json .Spec.TaskTemplate.ContainerSpec.Env}}"})
	if err != nil {
		return nil, err
	}
	var env []string
	if jerr := json.Unmarshal([]byte(strings.TrimSpace(out)), &env); jerr != nil {
		return nil, hostclient.NewError(hostclient.KindTransient, "ServiceEnv", c.hostName, fmt.Errorf("decode service env: %w", jerr))
	}
	return env, nil
}

// RemoveStack runs `docker stack rm`.
func (c *Client) RemoveStack(ctx context.Context, stack string) error {
	_, exitCode, err := c.run(ctx, []string{"docker", "stack", "rm", stack})
	if err != nil {
		return err
	}
	if exitCode != 0 {
		return hostclient.NewError(hostclient.KindTransient, "RemoveStack", c.hostName, fmt.Errorf("docker stack rm exited %d", exitCode))
	}
	return nil
}

// stackServiceRow mirrors `docker stack services <name> --format '{{json .}}'`.
type stackServiceRow struct {
	Name     string `json:"Name"`
	ID       string `json:"ID"`
	Image    string `json:"Image"`
	Replicas string `json:"Replicas"` // "2/2"
}

// ListStacksAndServices lists `docker stack ls` then, per stack, its
// services — Swarm has no single call for "every stack and its services".
func (c *Client) ListStacksAndServices(ctx context.Context) ([]hostclient.StackService, error) {
	stacksOut, _, err := c.run(ctx, []string{"docker", "stack", "ls", "--format", "{{.Name}}"})
	if err != nil {
		return nil, err
	}

	var result []hostclient.StackService
	for _, stack := range strings.Fields(stacksOut) {
		svcOut, _, err := c.run(ctx, []string{"docker", "stack", "services", stack, "--format", "{{json .}}"})
		if err != nil {
			continue
		}
		for _, line := range strings.Split(svcOut, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var row stackServiceRow
			if err := json.Unmarshal([]byte(line), &row); err != nil {
				continue
			}
			result = append(result, hostclient.StackService{
				Stack:       stack,
				ServiceName: row.Name,
				ServiceID:   row.ID,
				Image:       row.Image,
				Replicas:    parseReplicaCount(row.Replicas),
			})
		}
	}
	return result, nil
}

func parseReplicaCount(s string) int {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) == 0 {
		return 0
	}
	n, _ := strconv.Atoi(parts[0])
	return n
}

// ListNodes runs `docker node ls --format '{{json .}}'`.
func (c *Client) ListNodes(ctx context.Context) ([]hostclient.SwarmNode, error) {
	out, _, err := c.run(ctx, []string{"docker", "node", "ls", "--format", "{{json .}}"})
	if err != nil {
		return nil, err
	}
	var nodes []hostclient.SwarmNode
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row struct {
			ID           string `json:"ID"`
			Hostname     string `json:"Hostname"`
			ManagerStatus string `json:"ManagerStatus"`
			Status       string `json:"Status"`
		}
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			continue
		}
		nodes = append(nodes, hostclient.SwarmNode{
			ID:       row.ID,
			Hostname: row.Hostname,
			Status:   row.Status,
			Manager:  row.ManagerStatus != "",
		})
	}
	return nodes, nil
}

// ListServiceTasks runs `docker service ps --format '{{json .}}'`.
func (c *Client) ListServiceTasks(ctx context.Context, serviceID string) ([]hostclient.SwarmTask, error) {
	out, _, err := c.run(ctx, []string{"docker", "service", "ps", serviceID, "--format", "{{json .}}", "--filter", "desired-state=running"})
	if err != nil {
		return nil, err
	}
	var tasks []hostclient.SwarmTask
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var row struct {
			ID       string `json:"ID"`
			Name     string `json:"Name"`
			Node     string `json:"Node"`
			CurrentState string `json:"CurrentState"`
		}
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			continue
		}
		tasks = append(tasks, hostclient.SwarmTask{
			ID:        row.ID,
			ServiceID: serviceID,
			NodeID:    row.Node,
			State:     row.CurrentState,
		})
	}
	return tasks, nil
}
