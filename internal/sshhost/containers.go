package sshhost

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dockfleet/dockfleet/internal/gpuprobe"
	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/logparse"
)

// dockerPSRow mirrors one line of `docker ps -a --format '{{json .}}'`.
type dockerPSRow struct {
	ID      string `json:"ID"`
	Names   string `json:"Names"`
	Image   string `json:"Image"`
	State   string `json:"State"`
	Status  string `json:"Status"`
	Labels  string `json:"Labels"`
	Ports   string `json:"Ports"`
	Created string `json:"CreatedAt"`
}

// ListContainers runs `docker ps -a --format '{{json .}}'` and parses one
// JSON object per line, the standard way to get structured output from the
// Docker CLI without a daemon connection of our own.
func (c *Client) ListContainers(ctx context.Context) ([]hostclient.Container, error) {
	out, _, err := c.run(ctx, []string{"docker", "ps", "-a", "--format", "{{json .}}"})
	if err != nil {
		return nil, err
	}

	var result []hostclient.Container
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var row dockerPSRow
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			continue // skip a malformed line rather than failing the whole cycle
		}
		result = append(result, c.toContainer(row))
	}
	return result, nil
}

func (c *Client) toContainer(row dockerPSRow) hostclient.Container {
	id := row.ID
	if len(id) > 12 {
		id = id[:12]
	}
	labels := parseLabels(row.Labels)
	created, _ := time.Parse("2006-01-02 15:04:05 -0700 MST", row.Created)

	return hostclient.Container{
		ID:           id,
		Name:         strings.TrimPrefix(row.Names, "/"),
		Image:        row.Image,
		Status:       hostclient.ContainerStatus(strings.ToLower(row.State)),
		Created:      created.UTC(),
		Host:         c.hostName,
		StackProject: labels["com.docker.compose.project"],
		StackService: labels["com.docker.compose.service"],
		Labels:       labels,
	}
}

func parseLabels(raw string) map[string]string {
	labels := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) == 2 {
			labels[kv[0]] = kv[1]
		}
	}
	return labels
}

// ContainerStats runs `docker stats --no-stream --format '{{json .}}'`
// scoped to one container and converts the CLI's already-formatted
// percentage/size strings back into numeric form.
func (c *Client) ContainerStats(ctx context.Context, id, name string) (hostclient.Stats, error) {
	out, _, err := c.run(ctx, []string{"docker", "stats", "--no-stream", "--format", "{{json .}}", id})
	if err != nil {
		return hostclient.Stats{}, err
	}

	line := strings.TrimSpace(firstLine(out))
	if line == "" {
		return hostclient.Stats{}, hostclient.NewError(hostclient.KindRemoteUnreachable, "ContainerStats", c.hostName, fmt.Errorf("no stats output for %s", id))
	}

	var row struct {
		CPUPerc string `json:"CPUPerc"`
		MemUsage string `json:"MemUsage"` // "12MiB / 1.9GiB"
		NetIO    string `json:"NetIO"`    // "648B / 648B"
		BlockIO  string `json:"BlockIO"`  // "0B / 0B"
	}
	if err := json.Unmarshal([]byte(line), &row); err != nil {
		return hostclient.Stats{}, hostclient.NewError(hostclient.KindTransient, "ContainerStats", c.hostName, fmt.Errorf("decode stats: %w", err))
	}

	memUsed, memLimit := parseSlashPair(row.MemUsage, parseSizeMiB)
	rx, tx := parseSlashPair(row.NetIO, parseSizeBytes)
	blkR, blkW := parseSlashPair(row.BlockIO, parseSizeBytes)

	return hostclient.Stats{
		Host:            c.hostName,
		ContainerID:     id,
		Name:            name,
		Timestamp:       time.Now().UTC(),
		CPUPercent:      parsePercent(row.CPUPerc),
		MemUsageMiB:     memUsed,
		MemLimitMiB:     memLimit,
		RxBytes:         uint64(rx),
		TxBytes:         uint64(tx),
		BlockReadBytes:  uint64(blkR),
		BlockWriteBytes: uint64(blkW),
	}, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func parsePercent(s string) float64 {
	v, _ := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	return v
}

func parseSlashPair(s string, parse func(string) float64) (a, b float64) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, 0
	}
	return parse(strings.TrimSpace(parts[0])), parse(strings.TrimSpace(parts[1]))
}

// parseSizeMiB parses Docker's human sizes ("12MiB", "1.9GiB") into MiB.
func parseSizeMiB(s string) float64 {
	return parseHumanSize(s) / (1024 * 1024)
}

// parseSizeBytes parses Docker's human sizes into raw bytes.
func parseSizeBytes(s string) float64 {
	return parseHumanSize(s)
}

func parseHumanSize(s string) float64 {
	units := []struct {
		suffix string
		factor float64
	}{
		{"GiB", 1024 * 1024 * 1024},
		{"MiB", 1024 * 1024},
		{"KiB", 1024},
		{"GB", 1e9},
		{"MB", 1e6},
		{"kB", 1e3},
		{"B", 1},
	}
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			v, _ := strconv.ParseFloat(strings.TrimSuffix(s, u.suffix), 64)
			return v * u.factor
		}
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

// HostMetrics reads `/proc/stat`, `free -m`, and `df -m /` over the SSH
// session — the one host-client variant that actually has a shell on the
// host, so it reports real host CPU/mem/disk rather than the
// container-stat approximation the API-mode and Swarm-proxy variants fall
// back to (spec.md §4.1, §9 Open Question #1).
func (c *Client) HostMetrics(ctx context.Context) (hostclient.HostMetrics, error) {
	cpuPercent, err := c.readCPUPercent(ctx)
	if err != nil {
		return hostclient.HostMetrics{}, hostclient.NewError(hostclient.KindTransient, "HostMetrics", c.hostName, fmt.Errorf("cpu: %w", err))
	}

	memTotalMiB, memUsedMiB, err := c.readMemory(ctx)
	if err != nil {
		return hostclient.HostMetrics{}, hostclient.NewError(hostclient.KindTransient, "HostMetrics", c.hostName, fmt.Errorf("memory: %w", err))
	}

	diskTotalMiB, diskUsedMiB, err := c.readDisk(ctx)
	if err != nil {
		return hostclient.HostMetrics{}, hostclient.NewError(hostclient.KindTransient, "HostMetrics", c.hostName, fmt.Errorf("disk: %w", err))
	}

	var memPercent, diskPercent float64
	if memTotalMiB > 0 {
		memPercent = (memUsedMiB / memTotalMiB) * 100
	}
	if diskTotalMiB > 0 {
		diskPercent = (diskUsedMiB / diskTotalMiB) * 100
	}

	hm := hostclient.HostMetrics{
		Host:         c.hostName,
		Timestamp:    time.Now().UTC(),
		CPUPercent:   cpuPercent,
		MemTotalMiB:  memTotalMiB,
		MemUsedMiB:   memUsedMiB,
		MemPercent:   memPercent,
		DiskTotalMiB: diskTotalMiB,
		DiskUsedMiB:  diskUsedMiB,
		DiskPercent:  diskPercent,
	}

	if c.gpuProbeEnabled {
		hm.GPU = gpuprobe.Probe(ctx, c.gpuProbeTimeout, c.runGPUProbe)
	}

	return hm, nil
}

// runGPUProbe adapts c.run to gpuprobe.Runner, treating a nonzero exit
// code (tool not installed, no GPU) the same as a transport error so the
// probe moves on to its next candidate.
func (c *Client) runGPUProbe(ctx context.Context, argv []string) (string, error) {
	out, exitCode, err := c.run(ctx, argv)
	if err != nil {
		return out, err
	}
	if exitCode != 0 {
		return out, fmt.Errorf("%s exited %d", argv[0], exitCode)
	}
	return out, nil
}

// readCPUPercent samples /proc/stat's aggregate cpu line twice, one
// second apart, in a single round trip, and derives utilization from the
// non-idle delta over the total delta.
func (c *Client) readCPUPercent(ctx context.Context) (float64, error) {
	out, _, err := c.run(ctx, []string{"sh", "-c", "cat /proc/stat; sleep 1; cat /proc/stat"})
	if err != nil {
		return 0, err
	}

	var cpuLines []string
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "cpu ") {
			cpuLines = append(cpuLines, line)
		}
	}
	if len(cpuLines) < 2 {
		return 0, fmt.Errorf("expected two 'cpu ' lines, got %d", len(cpuLines))
	}

	total1, idle1, err := parseProcStatCPULine(cpuLines[0])
	if err != nil {
		return 0, err
	}
	total2, idle2, err := parseProcStatCPULine(cpuLines[len(cpuLines)-1])
	if err != nil {
		return 0, err
	}

	totalDelta := total2 - total1
	idleDelta := idle2 - idle1
	if totalDelta <= 0 {
		return 0, nil
	}
	return (1 - float64(idleDelta)/float64(totalDelta)) * 100, nil
}

// parseProcStatCPULine parses the aggregate "cpu  user nice system idle
// iowait irq softirq steal guest guest_nice" line into a jiffy total and
// an idle figure (idle + iowait).
func parseProcStatCPULine(line string) (total, idle uint64, err error) {
	fields := strings.Fields(line)
	if len(fields) < 5 {
		return 0, 0, fmt.Errorf("short /proc/stat cpu line: %q", line)
	}
	vals := make([]uint64, 0, len(fields)-1)
	for _, f := range fields[1:] {
		v, perr := strconv.ParseUint(f, 10, 64)
		if perr != nil {
			break
		}
		vals = append(vals, v)
		total += v
	}
	if len(vals) < 4 {
		return 0, 0, fmt.Errorf("could not parse /proc/stat cpu fields: %q", line)
	}
	idle = vals[3]
	if len(vals) > 4 {
		idle += vals[4] // iowait
	}
	return total, idle, nil
}

// readMemory runs `free -m` and reads the Mem: row's total/used columns.
func (c *Client) readMemory(ctx context.Context) (totalMiB, usedMiB float64, err error) {
	out, _, err := c.run(ctx, []string{"free", "-m"})
	if err != nil {
		return 0, 0, err
	}
	for _, line := range strings.Split(out, "\n") {
		if !strings.HasPrefix(line, "Mem:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return 0, 0, fmt.Errorf("unexpected 'free -m' Mem line: %q", line)
		}
		total, terr := strconv.ParseFloat(fields[1], 64)
		used, uerr := strconv.ParseFloat(fields[2], 64)
		if terr != nil || uerr != nil {
			return 0, 0, fmt.Errorf("parse 'free -m' Mem line: %q", line)
		}
		return total, used, nil
	}
	return 0, 0, fmt.Errorf("no Mem: line in 'free -m' output")
}

// readDisk runs `df -m /` and reads the root filesystem's total/used
// columns (1M-blocks/Used, already in MiB).
func (c *Client) readDisk(ctx context.Context) (totalMiB, usedMiB float64, err error) {
	out, _, err := c.run(ctx, []string{"df", "-m", "/"})
	if err != nil {
		return 0, 0, err
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return 0, 0, fmt.Errorf("unexpected 'df -m /' output: %q", out)
	}
	fields := strings.Fields(lines[len(lines)-1])
	if len(fields) < 3 {
		return 0, 0, fmt.Errorf("unexpected 'df -m /' fields: %q", lines[len(lines)-1])
	}
	total, terr := strconv.ParseFloat(fields[1], 64)
	used, uerr := strconv.ParseFloat(fields[2], 64)
	if terr != nil || uerr != nil {
		return 0, 0, fmt.Errorf("parse 'df -m /' line: %q", lines[len(lines)-1])
	}
	return total, used, nil
}

// ContainerLogs runs `docker logs` with the requested window and parses
// the combined output the same way the direct API client does.
func (c *Client) ContainerLogs(ctx context.Context, id, name string, opts hostclient.LogOptions) ([]hostclient.LogEntry, error) {
	argv := []string{"docker", "logs", "-t"}
	tail := opts.Tail
	if tail == 0 && opts.Since.IsZero() {
		tail = 500
	}
	if tail > 0 {
		argv = append(argv, "--tail", strconv.Itoa(tail))
	}
	if !opts.Since.IsZero() {
		argv = append(argv, "--since", opts.Since.Format(time.RFC3339Nano))
	}
	argv = append(argv, id)

	out, _, err := c.run(ctx, argv)
	if err != nil {
		return nil, err
	}

	return c.toLogEntries([]byte(out), id, name, opts.Labels), nil
}

func (c *Client) toLogEntries(raw []byte, id, name string, labels map[string]string) []hostclient.LogEntry {
	// `docker logs` over a shell session is never multiplexed-framed —
	// it's plain text, stdout and stderr already interleaved by the
	// remote terminal — so this always takes ParseLog's fallback path.
	parsed := logparse.ParseLog(raw, logparse.StreamStdout)
	entries := make([]hostclient.LogEntry, 0, len(parsed))
	for _, p := range parsed {
		if logparse.IsNoise(p.Text) {
			continue
		}
		level, status := logparse.Scan(p.Text)
		entries = append(entries, hostclient.LogEntry{
			Timestamp:     p.Timestamp,
			Host:          c.hostName,
			ContainerID:   id,
			ContainerName: name,
			StackProject:  labels["com.docker.compose.project"],
			StackService:  labels["com.docker.compose.service"],
			Stream:        hostclient.StreamStdout,
			Message:       p.Text,
			Level:         level,
			HTTPStatus:    status,
			Fields:        logparse.ParseStructuredFields(p.Text),
		})
	}
	return entries
}

// ExecuteAction runs the matching `docker <verb> <id>` subcommand.
func (c *Client) ExecuteAction(ctx context.Context, id string, action hostclient.ContainerAction) (bool, string, error) {
	verb, ok := actionVerbs[action]
	if !ok {
		return false, "", hostclient.NewError(hostclient.KindConfig, "ExecuteAction", c.hostName, fmt.Errorf("unknown action %q", action))
	}
	out, exitCode, err := c.run(ctx, []string{"docker", verb, id})
	if err != nil {
		return false, out, err
	}
	return exitCode == 0, out, nil
}

var actionVerbs = map[hostclient.ContainerAction]string{
	hostclient.ActionStart:   "start",
	hostclient.ActionStop:    "stop",
	hostclient.ActionRestart: "restart",
	hostclient.ActionPause:   "pause",
	hostclient.ActionUnpause: "unpause",
	hostclient.ActionRemove:  "rm",
}

// Exec runs `docker exec <id> <argv...>`, non-TTY, combined output.
func (c *Client) Exec(ctx context.Context, id string, argv []string) (bool, string, error) {
	full := append([]string{"docker", "exec", id}, argv...)
	out, exitCode, err := c.run(ctx, full)
	if err != nil {
		return false, out, err
	}
	return exitCode == 0, out, nil
}
