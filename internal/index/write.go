package index

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dockfleet/dockfleet/internal/hostclient"
)

// logDocID mirrors spec.md §3's LogEntry invariant: the same logical line
// always produces the same ID, making repeated ingestion attempts no-ops.
func logDocID(e hostclient.LogEntry) string {
	msg := e.Message
	if len(msg) > 100 {
		msg = msg[:100]
	}
	unique := fmt.Sprintf("%s:%s:%s:%s", e.Host, e.ContainerID, e.Timestamp.UTC().Format(time.RFC3339Nano), msg)
	sum := md5.Sum([]byte(unique))
	return fmt.Sprintf("%x", sum)
}

func statsDocID(host, containerID string, ts time.Time) string {
	unique := fmt.Sprintf("%s:%s:%s", host, containerID, ts.UTC().Format(time.RFC3339Nano))
	sum := md5.Sum([]byte(unique))
	return fmt.Sprintf("%x", sum)
}

func hostMetricsDocID(host string, ts time.Time) string {
	unique := fmt.Sprintf("%s:%s", host, ts.UTC().Format(time.RFC3339Nano))
	sum := md5.Sum([]byte(unique))
	return fmt.Sprintf("%x", sum)
}

type bulkActionLine struct {
	Index bulkActionMeta `json:"index"`
}

type bulkActionMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []struct {
		Index struct {
			Status int `json:"status"`
			Error  any `json:"error,omitempty"`
		} `json:"index"`
	} `json:"items"`
}

// IndexLogs bulk-indexes log entries with raise_on_error=false semantics:
// partial per-document failures are counted and returned, not treated as
// fatal. Duplicate IDs (same logical line) are silent no-ops.
func (s *Store) IndexLogs(ctx context.Context, entries []hostclient.LogEntry) (failed int, err error) {
	if len(entries) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		id := logDocID(e)
		if err := enc.Encode(bulkActionLine{Index: bulkActionMeta{Index: s.logsIndex, ID: id}}); err != nil {
			return 0, fmt.Errorf("encode bulk action line: %w", err)
		}
		doc := map[string]any{
			"timestamp":      e.Timestamp,
			"host":           e.Host,
			"container_id":   e.ContainerID,
			"container_name": e.ContainerName,
			"stack_project":  e.StackProject,
			"stack_service":  e.StackService,
			"stream":         e.Stream,
			"message":        e.Message,
			"level":          e.Level,
			"parsed_fields":  e.Fields,
		}
		if e.HTTPStatus != 0 {
			doc["http_status"] = e.HTTPStatus
		}
		if err := enc.Encode(doc); err != nil {
			return 0, fmt.Errorf("encode bulk doc: %w", err)
		}
	}

	var resp bulkResponse
	if err := s.do(ctx, "POST", "/_bulk", &buf, &resp); err != nil {
		return 0, fmt.Errorf("bulk index logs: %w", err)
	}
	if resp.Errors {
		for _, item := range resp.Items {
			if item.Index.Status >= 400 {
				failed++
			}
		}
	}
	return failed, nil
}

// IndexContainerStats upserts one container stats sample with a
// deterministic ID, so retrying a write after a transient failure leaves
// exactly one document behind.
func (s *Store) IndexContainerStats(ctx context.Context, stats hostclient.Stats) error {
	doc := map[string]any{
		"timestamp":         stats.Timestamp,
		"host":              stats.Host,
		"container_id":      stats.ContainerID,
		"container_name":    stats.Name,
		"cpu_percent":       stats.CPUPercent,
		"memory_usage_mib":  stats.MemUsageMiB,
		"memory_limit_mib":  stats.MemLimitMiB,
		"network_rx_bytes":  stats.RxBytes,
		"network_tx_bytes":  stats.TxBytes,
		"block_read_bytes":  stats.BlockReadBytes,
		"block_write_bytes": stats.BlockWriteBytes,
	}
	if stats.MemLimitMiB > 0 {
		doc["memory_percent"] = stats.MemUsageMiB / stats.MemLimitMiB * 100
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal container stats doc: %w", err)
	}
	id := statsDocID(stats.Host, stats.ContainerID, stats.Timestamp)
	path := fmt.Sprintf("/%s/_doc/%s", s.metricsIndex, id)
	return s.do(ctx, "PUT", path, bytes.NewReader(body), nil)
}

// IndexHostMetrics upserts one host metrics sample with a deterministic ID.
func (s *Store) IndexHostMetrics(ctx context.Context, m hostclient.HostMetrics) error {
	doc := map[string]any{
		"timestamp":       m.Timestamp,
		"host":            m.Host,
		"cpu_percent":     m.CPUPercent,
		"memory_total_mib": m.MemTotalMiB,
		"memory_used_mib": m.MemUsedMiB,
		"memory_percent":  m.MemPercent,
		"disk_total_mib":  m.DiskTotalMiB,
		"disk_used_mib":   m.DiskUsedMiB,
		"disk_percent":    m.DiskPercent,
		"approximate":     m.Approximate,
	}
	if m.GPU != nil {
		doc["gpu_percent"] = m.GPU.UtilizationPercent
		doc["vram_used_mib"] = m.GPU.VRAMUsedMiB
		doc["vram_total_mib"] = m.GPU.VRAMTotalMiB
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal host metrics doc: %w", err)
	}
	id := hostMetricsDocID(m.Host, m.Timestamp)
	path := fmt.Sprintf("/%s/_doc/%s", s.hostMetricsIndex, id)
	return s.do(ctx, "PUT", path, bytes.NewReader(body), nil)
}
