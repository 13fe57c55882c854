package dockerapi

import (
	"context"
	"os/exec"
	"time"

	"github.com/moby/moby/client"

	"github.com/dockfleet/dockfleet/internal/gpuprobe"
	"github.com/dockfleet/dockfleet/internal/hostclient"
)

// HostMetrics samples host-wide resource usage. A direct Docker API client
// has no /proc access, so it approximates host CPU% by averaging the CPU%
// of the first hostMetricsSampleLimit running containers sampled this
// cycle (spec.md §4.1, §9 Open Question #1 — decision recorded in
// DESIGN.md: average, never sum, and flag Approximate), and Mem% by
// summing those containers' memory usage against the daemon's reported
// MemTotal. The GPU sample, when enabled,
// runs locally against the machine dockfleet itself is on — meaningful
// only for ModeLocal/agent-mode hosts, same as the original agent.
func (c *Client) HostMetrics(ctx context.Context) (hostclient.HostMetrics, error) {
	containers, err := c.ListContainers(ctx)
	if err != nil {
		return hostclient.HostMetrics{}, err
	}

	info, err := c.api.Info(ctx, client.InfoOptions{})
	if err != nil {
		return hostclient.HostMetrics{}, hostclient.NewError(hostclient.KindTransient, "HostMetrics", c.hostName, err)
	}

	limit := c.hostMetricsSampleLimit
	if limit <= 0 {
		limit = defaultHostMetricsSampleLimit
	}

	var cpuSum, memUsedSum, memTotal float64
	var sampled int
	for _, ct := range containers {
		if sampled >= limit {
			break
		}
		if ct.Status != hostclient.StatusRunning {
			continue
		}
		stats, err := c.ContainerStats(ctx, ct.ID, ct.Name)
		if err != nil {
			continue
		}
		cpuSum += stats.CPUPercent
		memUsedSum += stats.MemUsageMiB
		sampled++
	}

	memTotal = float64(info.Info.MemTotal) / (1024 * 1024)

	var cpuPercent, memPercent float64
	if sampled > 0 {
		cpuPercent = cpuSum / float64(sampled)
	}
	if memTotal > 0 {
		memPercent = (memUsedSum / memTotal) * 100
	}

	hm := hostclient.HostMetrics{
		Host:        c.hostName,
		Timestamp:   time.Now().UTC(),
		CPUPercent:  cpuPercent,
		MemTotalMiB: memTotal,
		MemUsedMiB:  memUsedSum,
		MemPercent:  memPercent,
		Approximate: true,
	}

	if c.gpuProbeEnabled {
		hm.GPU = gpuprobe.Probe(ctx, c.gpuProbeTimeout, runLocal)
	}

	return hm, nil
}

// runLocal executes argv as a local subprocess (os/exec) — the GPU probe
// tools only ever run against whatever machine dockfleet's process is on.
func runLocal(ctx context.Context, argv []string) (string, error) {
	out, err := exec.CommandContext(ctx, argv[0], argv[1:]...).CombinedOutput()
	return string(out), err
}
