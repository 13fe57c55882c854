package hostclient

// CPUPercent implements the normalized CPU% rule from spec.md §3/§8:
// when system CPU time is available, use Δtotal/Δsystem × cpus × 100;
// otherwise fall back to a Δtotal-nanosecond heuristic, normalized per
// core and capped at 100%.
func CPUPercent(deltaTotal, deltaSystem uint64, cpus int) float64 {
	if cpus <= 0 {
		cpus = 1
	}
	if deltaSystem > 0 {
		return (float64(deltaTotal) / float64(deltaSystem)) * float64(cpus) * 100.0
	}
	if deltaTotal == 0 {
		return 0
	}
	// No system CPU time reported (cgroup v1 on some kernels). Treat
	// deltaTotal as nanoseconds of CPU time consumed over a 1-second
	// sampling window, divided across the core count, capped at 100%.
	pct := float64(deltaTotal) / 1e9 * 100.0 / float64(cpus)
	if pct > 100.0 {
		pct = 100.0
	}
	return pct
}

const pebibyte = 1 << 50

// NormalizeMemory applies the §3 sanity rule: a limit above 1 PiB is
// treated as "unlimited", and synthesized as 2x usage (or 1024 MiB if
// usage is zero) so dashboards don't show a meaningless denominator.
func NormalizeMemory(usageBytes, limitBytes uint64) (usageMiB, limitMiB float64) {
	usageMiB = float64(usageBytes) / (1024 * 1024)
	if limitBytes > pebibyte {
		if usageBytes == 0 {
			return usageMiB, 1024
		}
		return usageMiB, usageMiB * 2
	}
	limitMiB = float64(limitBytes) / (1024 * 1024)
	return usageMiB, limitMiB
}
