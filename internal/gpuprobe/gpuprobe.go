// Package gpuprobe implements the host GPU sample in spec.md §3: try an
// AMD probe (rocm-smi), then an NVIDIA probe (nvidia-smi), each bounded by
// its own deadline, and return nothing rather than an error when neither
// tool is present. Grounded on the original agent's _get_gpu_metrics
// (original_source/agent/docker_collector.py), which shells the same two
// tools in the same order with the same 5-second timeout.
package gpuprobe

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/dockfleet/dockfleet/internal/hostclient"
)

// Runner executes argv and returns its combined stdout+stderr. Probe
// never cares whether argv ran locally (os/exec) or over SSH — callers
// supply whichever Runner matches their transport.
type Runner func(ctx context.Context, argv []string) (output string, err error)

// Probe tries rocm-smi then nvidia-smi, each capped at timeout, and
// returns nil if neither produced a parseable sample (no GPU, or neither
// tool installed — never an error, since the absence of a GPU is normal).
func Probe(ctx context.Context, timeout time.Duration, run Runner) *hostclient.GPUStats {
	if g := probeROCm(ctx, timeout, run); g != nil {
		return g
	}
	return probeNVIDIA(ctx, timeout, run)
}

func probeROCm(ctx context.Context, timeout time.Duration, run Runner) *hostclient.GPUStats {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := run(cctx, []string{"rocm-smi", "--showuse", "--showmeminfo", "vram", "--csv"})
	if err != nil || strings.TrimSpace(out) == "" {
		return nil
	}

	// Expected CSV: device,GPU use (%),VRAM Total Memory (B),VRAM Total Used Memory (B)
	// card0,0,1073741824,81498112
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		lower := strings.ToLower(line)
		if !strings.HasPrefix(lower, "card") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) < 4 {
			continue
		}
		use, err1 := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(parts[1], "%")), 64)
		total, err2 := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		used, err3 := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		return &hostclient.GPUStats{
			UtilizationPercent: use,
			VRAMUsedMiB:        used / (1024 * 1024),
			VRAMTotalMiB:       total / (1024 * 1024),
		}
	}
	return nil
}

func probeNVIDIA(ctx context.Context, timeout time.Duration, run Runner) *hostclient.GPUStats {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := run(cctx, []string{"nvidia-smi", "--query-gpu=utilization.gpu,memory.used,memory.total", "--format=csv,noheader,nounits"})
	if err != nil || strings.TrimSpace(out) == "" {
		return nil
	}

	line := strings.TrimSpace(out)
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	parts := strings.Split(line, ",")
	if len(parts) < 3 {
		return nil
	}
	use, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	used, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	total, err3 := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return nil
	}
	return &hostclient.GPUStats{
		UtilizationPercent: use,
		VRAMUsedMiB:        used,
		VRAMTotalMiB:       total,
	}
}
