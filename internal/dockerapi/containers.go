package dockerapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/moby/moby/client"

	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/logparse"
)

// ListContainers returns every container on the host, running or not
// (spec.md §3 Container — status is reported, not filtered out).
func (c *Client) ListContainers(ctx context.Context) ([]hostclient.Container, error) {
	result, err := c.api.ContainerList(ctx, client.ContainerListOptions{All: true})
	if err != nil {
		return nil, hostclient.NewError(hostclient.KindTransient, "ListContainers", c.hostName, err)
	}

	out := make([]hostclient.Container, 0, len(result.Items))
	for _, item := range result.Items {
		if c.filterLocal && item.Labels["com.docker.swarm.node.id"] != c.nodeID {
			continue
		}
		out = append(out, c.toContainer(item))
	}
	return out, nil
}

func (c *Client) toContainer(item client.ContainerSummary) hostclient.Container {
	name := strings.TrimPrefix(firstOr(item.Names, item.ID), "/")
	id := item.ID
	if len(id) > 12 {
		id = id[:12]
	}

	ports := make([]hostclient.PortMapping, 0, len(item.Ports))
	for _, p := range item.Ports {
		ports = append(ports, hostclient.PortMapping{
			PrivatePort: p.PrivatePort,
			PublicPort:  p.PublicPort,
			Type:        p.Type,
			IP:          p.IP,
		})
	}

	return hostclient.Container{
		ID:           id,
		Name:         name,
		Image:        item.Image,
		Status:       hostclient.ContainerStatus(item.State),
		Created:      time.Unix(item.Created, 0).UTC(),
		Host:         c.hostName,
		StackProject: item.Labels["com.docker.compose.project"],
		StackService: item.Labels["com.docker.compose.service"],
		Ports:        ports,
		Labels:       item.Labels,
	}
}

func firstOr(names []string, fallback string) string {
	if len(names) > 0 {
		return names[0]
	}
	return fallback
}

// statsJSON mirrors the Docker Engine API's /containers/{id}/stats response.
// The pack's vendored moby client only exposes the raw body (see
// client.ContainerStats); this is the stable, documented wire shape, not a
// fabricated type.
type statsJSON struct {
	CPUStats struct {
		CPUUsage struct {
			TotalUsage uint64 `json:"total_usage"`
		} `json:"cpu_usage"`
		SystemUsage uint64 `json:"system_cpu_usage"`
		OnlineCPUs  int    `json:"online_cpus"`
	} `json:"cpu_stats"`
	PreCPUStats struct {
		CPUUsage struct {
			TotalUsage uint64 `json:"total_usage"`
		} `json:"cpu_usage"`
		SystemUsage uint64 `json:"system_cpu_usage"`
	} `json:"precpu_stats"`
	MemoryStats struct {
		Usage uint64 `json:"usage"`
		Limit uint64 `json:"limit"`
	} `json:"memory_stats"`
	Networks map[string]struct {
		RxBytes uint64 `json:"rx_bytes"`
		TxBytes uint64 `json:"tx_bytes"`
	} `json:"networks"`
	BlkioStats struct {
		IoServiceBytesRecursive []struct {
			Op    string `json:"op"`
			Value uint64 `json:"value"`
		} `json:"io_service_bytes_recursive"`
	} `json:"blkio_stats"`
	Read time.Time `json:"read"`
}

// ContainerStats takes one non-streaming sample (spec.md §4.1: stream=false).
func (c *Client) ContainerStats(ctx context.Context, id, name string) (hostclient.Stats, error) {
	resp, err := c.api.ContainerStats(ctx, id, false)
	if err != nil {
		return hostclient.Stats{}, hostclient.NewError(hostclient.KindTransient, "ContainerStats", c.hostName, err)
	}
	defer resp.Body.Close()

	var s statsJSON
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return hostclient.Stats{}, hostclient.NewError(hostclient.KindTransient, "ContainerStats", c.hostName, fmt.Errorf("decode stats: %w", err))
	}

	deltaTotal := s.CPUStats.CPUUsage.TotalUsage - s.PreCPUStats.CPUUsage.TotalUsage
	deltaSystem := s.CPUStats.SystemUsage - s.PreCPUStats.SystemUsage
	cpus := s.CPUStats.OnlineCPUs
	if cpus == 0 {
		cpus = 1
	}

	usageMiB, limitMiB := hostclient.NormalizeMemory(s.MemoryStats.Usage, s.MemoryStats.Limit)

	var rx, tx uint64
	for _, n := range s.Networks {
		rx += n.RxBytes
		tx += n.TxBytes
	}

	var readBytes, writeBytes uint64
	for _, e := range s.BlkioStats.IoServiceBytesRecursive {
		switch strings.ToLower(e.Op) {
		case "read":
			readBytes += e.Value
		case "write":
			writeBytes += e.Value
		}
	}

	ts := s.Read
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	return hostclient.Stats{
		Host:            c.hostName,
		ContainerID:     id,
		Name:            name,
		Timestamp:       ts,
		CPUPercent:      hostclient.CPUPercent(deltaTotal, deltaSystem, cpus),
		MemUsageMiB:     usageMiB,
		MemLimitMiB:     limitMiB,
		RxBytes:         rx,
		TxBytes:         tx,
		BlockReadBytes:  readBytes,
		BlockWriteBytes: writeBytes,
	}, nil
}

// ContainerLogs fetches and parses a container's logs per opts.
func (c *Client) ContainerLogs(ctx context.Context, id, name string, opts hostclient.LogOptions) ([]hostclient.LogEntry, error) {
	tail := opts.Tail
	if tail == 0 && opts.Since.IsZero() {
		tail = 500
	}

	logOpts := client.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
	}
	if tail > 0 {
		logOpts.Tail = strconv.Itoa(tail)
	}
	if !opts.Since.IsZero() {
		logOpts.Since = opts.Since.Format(time.RFC3339Nano)
	}

	// Swarm workers: a supplied TaskID is tried first, against the same
	// container logs endpoint (this client makes no /tasks/{id}/logs
	// call); on failure the container id is used.
	fetchID := id
	if opts.TaskID != "" {
		fetchID = opts.TaskID
	}

	raw, err := c.fetchLogs(ctx, fetchID, logOpts)
	if err != nil && fetchID != id {
		raw, err = c.fetchLogs(ctx, id, logOpts)
	}
	if err != nil {
		return nil, hostclient.NewError(hostclient.KindTransient, "ContainerLogs", c.hostName, err)
	}

	return c.toLogEntries(raw, id, name, opts.Labels), nil
}

func (c *Client) fetchLogs(ctx context.Context, id string, opts client.ContainerLogsOptions) ([]byte, error) {
	reader, err := c.api.ContainerLogs(ctx, id, opts)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func (c *Client) toLogEntries(raw []byte, id, name string, labels map[string]string) []hostclient.LogEntry {
	parsed := logparse.ParseLog(raw, logparse.StreamStdout)
	entries := make([]hostclient.LogEntry, 0, len(parsed))
	for _, p := range parsed {
		if logparse.IsNoise(p.Text) {
			continue
		}
		stream := hostclient.StreamStdout
		if p.Stream == logparse.StreamStderr {
			stream = hostclient.StreamStderr
		}
		level, status := logparse.Scan(p.Text)
		entries = append(entries, hostclient.LogEntry{
			Timestamp:     p.Timestamp,
			Host:          c.hostName,
			ContainerID:   id,
			ContainerName: name,
			StackProject:  labels["com.docker.compose.project"],
			StackService:  labels["com.docker.compose.service"],
			Stream:        stream,
			Message:       p.Text,
			Level:         level,
			HTTPStatus:    status,
			Fields:        logparse.ParseStructuredFields(p.Text),
		})
	}
	return entries
}

// ExecuteAction performs a container lifecycle operation.
func (c *Client) ExecuteAction(ctx context.Context, id string, action hostclient.ContainerAction) (bool, string, error) {
	var err error
	switch action {
	case hostclient.ActionStart:
		_, err = c.api.ContainerStart(ctx, id, client.ContainerStartOptions{})
	case hostclient.ActionStop:
		timeout := 10
		_, err = c.api.ContainerStop(ctx, id, client.ContainerStopOptions{Timeout: &timeout})
	case hostclient.ActionRestart:
		_, err = c.api.ContainerRestart(ctx, id, client.ContainerRestartOptions{})
	case hostclient.ActionPause:
		_, err = c.api.ContainerPause(ctx, id)
	case hostclient.ActionUnpause:
		_, err = c.api.ContainerUnpause(ctx, id)
	case hostclient.ActionRemove:
		_, err = c.api.ContainerRemove(ctx, id, client.ContainerRemoveOptions{Force: true})
	default:
		return false, "", hostclient.NewError(hostclient.KindConfig, "ExecuteAction", c.hostName, fmt.Errorf("unknown action %q", action))
	}
	if err != nil {
		return false, err.Error(), hostclient.NewError(hostclient.KindTransient, "ExecuteAction", c.hostName, err)
	}
	return true, "", nil
}

// Exec runs argv inside a container, non-TTY, stdout+stderr combined.
func (c *Client) Exec(ctx context.Context, id string, argv []string) (bool, string, error) {
	execResp, err := c.api.ExecCreate(ctx, id, client.ExecCreateOptions{
		Cmd:          argv,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return false, "", hostclient.NewError(hostclient.KindTransient, "Exec", c.hostName, fmt.Errorf("exec create: %w", err))
	}

	attachResp, err := c.api.ExecAttach(ctx, execResp.ID, client.ExecAttachOptions{})
	if err != nil {
		return false, "", hostclient.NewError(hostclient.KindTransient, "Exec", c.hostName, fmt.Errorf("exec attach: %w", err))
	}
	defer attachResp.Close()

	raw, err := io.ReadAll(attachResp.Reader)
	if err != nil {
		return false, "", hostclient.NewError(hostclient.KindTransient, "Exec", c.hostName, fmt.Errorf("exec read: %w", err))
	}

	var combined bytes.Buffer
	for _, f := range logparse.ParseFrames(raw) {
		combined.Write(f.Payload)
	}
	output := combined.String()
	if output == "" {
		output = logparse.DecodeUTF8Lossy(raw)
	}

	inspectResp, err := c.api.ExecInspect(ctx, execResp.ID, client.ExecInspectOptions{})
	if err != nil {
		return false, output, hostclient.NewError(hostclient.KindTransient, "Exec", c.hostName, fmt.Errorf("exec inspect: %w", err))
	}

	return inspectResp.ExitCode == 0, output, nil
}
