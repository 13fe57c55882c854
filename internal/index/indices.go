package index

import (
	"context"
	"fmt"
	"strings"
)

const logsMapping = `{
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0,
		"index.refresh_interval": "5s"
	},
	"mappings": {
		"properties": {
			"timestamp": {"type": "date"},
			"host": {"type": "keyword"},
			"container_id": {"type": "keyword"},
			"container_name": {"type": "keyword"},
			"stack_project": {"type": "keyword"},
			"stack_service": {"type": "keyword"},
			"stream": {"type": "keyword"},
			"message": {"type": "text", "analyzer": "standard"},
			"level": {"type": "keyword"},
			"http_status": {"type": "integer"},
			"parsed_fields": {"type": "object", "enabled": false}
		}
	}
}`

const metricsMapping = `{
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0
	},
	"mappings": {
		"properties": {
			"timestamp": {"type": "date"},
			"host": {"type": "keyword"},
			"container_id": {"type": "keyword"},
			"container_name": {"type": "keyword"},
			"cpu_percent": {"type": "float"},
			"memory_usage_mib": {"type": "float"},
			"memory_limit_mib": {"type": "float"},
			"memory_percent": {"type": "float"},
			"network_rx_bytes": {"type": "long"},
			"network_tx_bytes": {"type": "long"},
			"block_read_bytes": {"type": "long"},
			"block_write_bytes": {"type": "long"}
		}
	}
}`

const hostMetricsMapping = `{
	"settings": {
		"number_of_shards": 1,
		"number_of_replicas": 0
	},
	"mappings": {
		"properties": {
			"timestamp": {"type": "date"},
			"host": {"type": "keyword"},
			"cpu_percent": {"type": "float"},
			"memory_total_mib": {"type": "float"},
			"memory_used_mib": {"type": "float"},
			"memory_percent": {"type": "float"},
			"disk_total_mib": {"type": "float"},
			"disk_used_mib": {"type": "float"},
			"disk_percent": {"type": "float"},
			"gpu_percent": {"type": "float"},
			"vram_used_mib": {"type": "float"},
			"vram_total_mib": {"type": "float"},
			"approximate": {"type": "boolean"}
		}
	}
}`

// EnsureIndices creates the three logical indices if they don't already
// exist. Safe to call on every startup.
func (s *Store) EnsureIndices(ctx context.Context) error {
	for _, idx := range []struct {
		name    string
		mapping string
	}{
		{s.logsIndex, logsMapping},
		{s.metricsIndex, metricsMapping},
		{s.hostMetricsIndex, hostMetricsMapping},
	} {
		exists, err := s.indexExists(ctx, idx.name)
		if err != nil {
			return fmt.Errorf("check index %s: %w", idx.name, err)
		}
		if exists {
			continue
		}
		if err := s.do(ctx, "PUT", "/"+idx.name, strings.NewReader(idx.mapping), nil); err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}

func (s *Store) indexExists(ctx context.Context, name string) (bool, error) {
	req, err := httpRequest(ctx, "HEAD", "/"+name)
	if err != nil {
		return false, err
	}
	resp, err := s.client.Perform(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode == 200, nil
}
