package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// parseESTimestamp parses a date_histogram bucket's key_as_string, which
// OpenSearch emits with a fractional-seconds suffix that plain RFC3339
// rejects.
func parseESTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func marshalBody(v any) (*bytes.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal query body: %w", err)
	}
	return bytes.NewReader(b), nil
}

// DashboardSummary computes the last-24h error/warning/HTTP-status counts
// plus last-1h average resource usage (spec.md §4.4 "Dashboard summary").
func (s *Store) DashboardSummary(ctx context.Context) (DashboardSummary, error) {
	var out DashboardSummary

	yesterday := time.Now().Add(-24 * time.Hour)
	body := map[string]any{
		"size": 0,
		"query": map[string]any{
			"range": map[string]any{"timestamp": map[string]any{"gte": yesterday}},
		},
		"aggs": map[string]any{
			"errors":   map[string]any{"filter": map[string]any{"terms": map[string]any{"level": []string{"ERROR", "FATAL", "CRITICAL"}}}},
			"warnings": map[string]any{"filter": map[string]any{"term": map[string]any{"level": "WARN"}}},
			"http_4xx": map[string]any{"filter": map[string]any{"range": map[string]any{"http_status": map[string]any{"gte": 400, "lt": 500}}}},
			"http_5xx": map[string]any{"filter": map[string]any{"range": map[string]any{"http_status": map[string]any{"gte": 500, "lt": 600}}}},
		},
	}
	r, err := marshalBody(body)
	if err != nil {
		return out, err
	}

	var resp struct {
		Aggregations struct {
			Errors   struct{ DocCount int `json:"doc_count"` } `json:"errors"`
			Warnings struct{ DocCount int `json:"doc_count"` } `json:"warnings"`
			HTTP4xx  struct{ DocCount int `json:"doc_count"` } `json:"http_4xx"`
			HTTP5xx  struct{ DocCount int `json:"doc_count"` } `json:"http_5xx"`
		} `json:"aggregations"`
	}
	if err := s.do(ctx, "POST", "/"+s.logsIndex+"/_search", r, &resp); err != nil {
		return out, fmt.Errorf("dashboard log aggregations: %w", err)
	}
	out.Errors24h = resp.Aggregations.Errors.DocCount
	out.Warnings24h = resp.Aggregations.Warnings.DocCount
	out.HTTP4xx24h = resp.Aggregations.HTTP4xx.DocCount
	out.HTTP5xx24h = resp.Aggregations.HTTP5xx.DocCount

	oneHourAgo := time.Now().Add(-time.Hour)
	metricsBody := map[string]any{
		"size":  0,
		"query": map[string]any{"range": map[string]any{"timestamp": map[string]any{"gte": oneHourAgo}}},
		"aggs": map[string]any{
			"avg_cpu":    map[string]any{"avg": map[string]any{"field": "cpu_percent"}},
			"avg_memory": map[string]any{"avg": map[string]any{"field": "memory_percent"}},
			"avg_gpu":    map[string]any{"avg": map[string]any{"field": "gpu_percent"}},
		},
	}
	mr, err := marshalBody(metricsBody)
	if err != nil {
		return out, err
	}

	var metricsResp struct {
		Aggregations struct {
			AvgCPU    struct{ Value *float64 `json:"value"` } `json:"avg_cpu"`
			AvgMemory struct{ Value *float64 `json:"value"` } `json:"avg_memory"`
			AvgGPU    struct{ Value *float64 `json:"value"` } `json:"avg_gpu"`
		} `json:"aggregations"`
	}
	if err := s.do(ctx, "POST", "/"+s.hostMetricsIndex+"/_search", mr, &metricsResp); err != nil {
		return out, fmt.Errorf("dashboard host-metrics aggregations: %w", err)
	}
	if v := metricsResp.Aggregations.AvgCPU.Value; v != nil {
		out.AvgCPUPercent = *v
	}
	if v := metricsResp.Aggregations.AvgMemory.Value; v != nil {
		out.AvgMemoryPercent = *v
	}
	out.AvgGPUPercent = metricsResp.Aggregations.AvgGPU.Value

	return out, nil
}

type dateHistogramResp struct {
	Aggregations struct {
		OverTime struct {
			Buckets []struct {
				KeyAsString string `json:"key_as_string"`
				DocCount    int    `json:"doc_count"`
				AvgValue    *struct {
					Value *float64 `json:"value"`
				} `json:"avg_value,omitempty"`
			} `json:"buckets"`
		} `json:"over_time"`
	} `json:"aggregations"`
}

// ErrorTimeSeries buckets ERROR/FATAL/CRITICAL log counts over a fixed
// interval (spec.md §4.4 "Time series").
func (s *Store) ErrorTimeSeries(ctx context.Context, hours int, interval string) ([]TimeSeriesPoint, error) {
	start := time.Now().Add(-time.Duration(hours) * time.Hour)
	body := map[string]any{
		"size": 0,
		"query": map[string]any{"bool": map[string]any{"must": []map[string]any{
			{"range": map[string]any{"timestamp": map[string]any{"gte": start}}},
			{"terms": map[string]any{"level": []string{"ERROR", "FATAL", "CRITICAL"}}},
		}}},
		"aggs": map[string]any{
			"over_time": map[string]any{"date_histogram": map[string]any{"field": "timestamp", "fixed_interval": interval}},
		},
	}
	return s.docCountTimeSeries(ctx, s.logsIndex, body)
}

// HTTPStatusTimeSeries buckets log counts with http_status in
// [statusMin, statusMax) over a fixed interval.
func (s *Store) HTTPStatusTimeSeries(ctx context.Context, statusMin, statusMax, hours int, interval string) ([]TimeSeriesPoint, error) {
	start := time.Now().Add(-time.Duration(hours) * time.Hour)
	body := map[string]any{
		"size": 0,
		"query": map[string]any{"bool": map[string]any{"must": []map[string]any{
			{"range": map[string]any{"timestamp": map[string]any{"gte": start}}},
			{"range": map[string]any{"http_status": map[string]any{"gte": statusMin, "lt": statusMax}}},
		}}},
		"aggs": map[string]any{
			"over_time": map[string]any{"date_histogram": map[string]any{"field": "timestamp", "fixed_interval": interval}},
		},
	}
	return s.docCountTimeSeries(ctx, s.logsIndex, body)
}

func (s *Store) docCountTimeSeries(ctx context.Context, idx string, body map[string]any) ([]TimeSeriesPoint, error) {
	r, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	var resp dateHistogramResp
	if err := s.do(ctx, "POST", "/"+idx+"/_search", r, &resp); err != nil {
		return nil, fmt.Errorf("doc-count time series on %s: %w", idx, err)
	}
	return bucketsToDocCountPoints(resp), nil
}

func bucketsToDocCountPoints(resp dateHistogramResp) []TimeSeriesPoint {
	points := make([]TimeSeriesPoint, 0, len(resp.Aggregations.OverTime.Buckets))
	for _, b := range resp.Aggregations.OverTime.Buckets {
		ts, err := parseESTimestamp(b.KeyAsString)
		if err != nil {
			continue
		}
		points = append(points, TimeSeriesPoint{Timestamp: ts, Value: float64(b.DocCount)})
	}
	return points
}

// ResourceTimeSeries averages a host-metrics field over a fixed interval.
func (s *Store) ResourceTimeSeries(ctx context.Context, metric ResourceMetric, hours int, interval string) ([]TimeSeriesPoint, error) {
	start := time.Now().Add(-time.Duration(hours) * time.Hour)
	body := map[string]any{
		"size":  0,
		"query": map[string]any{"range": map[string]any{"timestamp": map[string]any{"gte": start}}},
		"aggs": map[string]any{
			"over_time": map[string]any{
				"date_histogram": map[string]any{"field": "timestamp", "fixed_interval": interval},
				"aggs":           map[string]any{"avg_value": map[string]any{"avg": map[string]any{"field": string(metric)}}},
			},
		},
	}
	r, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	var resp dateHistogramResp
	if err := s.do(ctx, "POST", "/"+s.hostMetricsIndex+"/_search", r, &resp); err != nil {
		return nil, fmt.Errorf("resource time series for %s: %w", metric, err)
	}

	points := make([]TimeSeriesPoint, 0, len(resp.Aggregations.OverTime.Buckets))
	for _, b := range resp.Aggregations.OverTime.Buckets {
		ts, err := parseESTimestamp(b.KeyAsString)
		if err != nil {
			continue
		}
		var v float64
		if b.AvgValue != nil && b.AvgValue.Value != nil {
			v = *b.AvgValue.Value
		}
		points = append(points, TimeSeriesPoint{Timestamp: ts, Value: v})
	}
	return points, nil
}

type byHostHistogramResp struct {
	Aggregations struct {
		ByHost struct {
			Buckets []struct {
				Key      string `json:"key"`
				OverTime struct {
					Buckets []struct {
						KeyAsString string `json:"key_as_string"`
						AvgValue    *struct {
							Value *float64 `json:"value"`
						} `json:"avg_value,omitempty"`
						AvgUsed *struct {
							Value *float64 `json:"value"`
						} `json:"avg_used,omitempty"`
						AvgTotal *struct {
							Value *float64 `json:"value"`
						} `json:"avg_total,omitempty"`
					} `json:"buckets"`
				} `json:"over_time"`
			} `json:"buckets"`
		} `json:"by_host"`
	} `json:"aggregations"`
}

// ResourceTimeSeriesByHost is ResourceTimeSeries grouped by host (spec.md
// §4.4 "Time series by host").
func (s *Store) ResourceTimeSeriesByHost(ctx context.Context, metric ResourceMetric, hours int, interval string) ([]TimeSeriesByHost, error) {
	start := time.Now().Add(-time.Duration(hours) * time.Hour)
	body := map[string]any{
		"size":  0,
		"query": map[string]any{"range": map[string]any{"timestamp": map[string]any{"gte": start}}},
		"aggs": map[string]any{
			"by_host": map[string]any{
				"terms": map[string]any{"field": "host", "size": 50},
				"aggs": map[string]any{
					"over_time": map[string]any{
						"date_histogram": map[string]any{"field": "timestamp", "fixed_interval": interval},
						"aggs":           map[string]any{"avg_value": map[string]any{"avg": map[string]any{"field": string(metric)}}},
					},
				},
			},
		},
	}
	r, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	var resp byHostHistogramResp
	if err := s.do(ctx, "POST", "/"+s.hostMetricsIndex+"/_search", r, &resp); err != nil {
		return nil, fmt.Errorf("resource time series by host for %s: %w", metric, err)
	}

	result := make([]TimeSeriesByHost, 0, len(resp.Aggregations.ByHost.Buckets))
	for _, hb := range resp.Aggregations.ByHost.Buckets {
		data := make([]TimeSeriesPoint, 0, len(hb.OverTime.Buckets))
		for _, tb := range hb.OverTime.Buckets {
			ts, err := parseESTimestamp(tb.KeyAsString)
			if err != nil {
				continue
			}
			var v float64
			if tb.AvgValue != nil && tb.AvgValue.Value != nil {
				v = *tb.AvgValue.Value
			}
			data = append(data, TimeSeriesPoint{Timestamp: ts, Value: v})
		}
		result = append(result, TimeSeriesByHost{Host: hb.Key, Data: data})
	}
	return result, nil
}

// VRAMPercentTimeSeriesByHost computes avg(used)/avg(total)*100 client-side
// per spec.md §4.4, filtered to documents with a non-zero vram total.
func (s *Store) VRAMPercentTimeSeriesByHost(ctx context.Context, hours int, interval string) ([]TimeSeriesByHost, error) {
	start := time.Now().Add(-time.Duration(hours) * time.Hour)
	body := map[string]any{
		"size": 0,
		"query": map[string]any{"bool": map[string]any{"must": []map[string]any{
			{"range": map[string]any{"timestamp": map[string]any{"gte": start}}},
			{"exists": map[string]any{"field": "vram_total_mib"}},
			{"range": map[string]any{"vram_total_mib": map[string]any{"gt": 0}}},
		}}},
		"aggs": map[string]any{
			"by_host": map[string]any{
				"terms": map[string]any{"field": "host", "size": 50},
				"aggs": map[string]any{
					"over_time": map[string]any{
						"date_histogram": map[string]any{"field": "timestamp", "fixed_interval": interval},
						"aggs": map[string]any{
							"avg_used":  map[string]any{"avg": map[string]any{"field": "vram_used_mib"}},
							"avg_total": map[string]any{"avg": map[string]any{"field": "vram_total_mib"}},
						},
					},
				},
			},
		},
	}
	r, err := marshalBody(body)
	if err != nil {
		return nil, err
	}
	var resp byHostHistogramResp
	if err := s.do(ctx, "POST", "/"+s.hostMetricsIndex+"/_search", r, &resp); err != nil {
		return nil, fmt.Errorf("vram time series by host: %w", err)
	}

	result := make([]TimeSeriesByHost, 0, len(resp.Aggregations.ByHost.Buckets))
	for _, hb := range resp.Aggregations.ByHost.Buckets {
		var data []TimeSeriesPoint
		for _, tb := range hb.OverTime.Buckets {
			ts, err := parseESTimestamp(tb.KeyAsString)
			if err != nil {
				continue
			}
			var used, total float64
			if tb.AvgUsed != nil && tb.AvgUsed.Value != nil {
				used = *tb.AvgUsed.Value
			}
			if tb.AvgTotal != nil && tb.AvgTotal.Value != nil {
				total = *tb.AvgTotal.Value
			}
			var pct float64
			if total > 0 {
				pct = used / total * 100
			}
			data = append(data, TimeSeriesPoint{Timestamp: ts, Value: pct})
		}
		if len(data) > 0 {
			result = append(result, TimeSeriesByHost{Host: hb.Key, Data: data})
		}
	}
	return result, nil
}

// LatestContainerStats performs the terms+top_hits join that lets the
// container listing show current CPU/mem without an N+1 query per
// container (spec.md §4.4 "Latest-stat join").
func (s *Store) LatestContainerStats(ctx context.Context) (map[string]LatestStat, error) {
	body := map[string]any{
		"size":  0,
		"query": map[string]any{"range": map[string]any{"timestamp": map[string]any{"gte": "now-5m"}}},
		"aggs": map[string]any{
			"by_container": map[string]any{
				"terms": map[string]any{"field": "container_id", "size": 1000},
				"aggs": map[string]any{
					"latest": map[string]any{
						"top_hits": map[string]any{
							"size":    1,
							"sort":    []map[string]any{{"timestamp": "desc"}},
							"_source": []string{"cpu_percent", "memory_percent", "memory_usage_mib", "container_id"},
						},
					},
				},
			},
		},
	}
	r, err := marshalBody(body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Aggregations struct {
			ByContainer struct {
				Buckets []struct {
					Key    string `json:"key"`
					Latest struct {
						Hits struct {
							Hits []struct {
								Source LatestStat `json:"_source"`
							} `json:"hits"`
						} `json:"hits"`
					} `json:"latest"`
				} `json:"buckets"`
			} `json:"by_container"`
		} `json:"aggregations"`
	}
	if err := s.do(ctx, "POST", "/"+s.metricsIndex+"/_search", r, &resp); err != nil {
		return nil, fmt.Errorf("latest container stats join: %w", err)
	}

	result := make(map[string]LatestStat, len(resp.Aggregations.ByContainer.Buckets))
	for _, b := range resp.Aggregations.ByContainer.Buckets {
		if len(b.Latest.Hits.Hits) == 0 {
			continue
		}
		result[b.Key] = b.Latest.Hits.Hits[0].Source
	}
	return result, nil
}

// SimilarLogCount counts log lines resembling message within the last
// hours hours, normalizing away dynamic content first (spec.md §4.4
// "Similar-log count"). Returns 0 when fewer than 2 meaningful words
// remain, to avoid overly broad matches.
func (s *Store) SimilarLogCount(ctx context.Context, message, containerName string, hours int) (int, error) {
	words := keyWords(message)
	if len(words) < 2 {
		return 0, nil
	}
	keyTerms := words
	if len(keyTerms) > 6 {
		keyTerms = keyTerms[:6]
	}
	minMatch := len(keyTerms) / 2
	if minMatch < 2 {
		minMatch = 2
	}

	cutoff := time.Now().Add(-time.Duration(hours) * time.Hour)
	filters := []map[string]any{
		{"range": map[string]any{"timestamp": map[string]any{"gte": cutoff}}},
	}
	if containerName != "" {
		filters = append(filters, map[string]any{"term": map[string]any{"container_name": containerName}})
	}

	body := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": []map[string]any{
					{"match": map[string]any{"message": map[string]any{
						"query":               strings.Join(keyTerms, " "),
						"operator":            "or",
						"minimum_should_match": fmt.Sprintf("%d", minMatch),
					}}},
				},
				"filter": filters,
			},
		},
	}
	r, err := marshalBody(body)
	if err != nil {
		return 0, err
	}

	var resp struct {
		Count int `json:"count"`
	}
	if err := s.do(ctx, "POST", "/"+s.logsIndex+"/_count", r, &resp); err != nil {
		return 0, fmt.Errorf("similar log count: %w", err)
	}
	return resp.Count, nil
}

// Metadata returns the known values for each filterable dimension, used
// to populate query-planning dropdowns (spec.md §4.4 "Metadata").
func (s *Store) Metadata(ctx context.Context) (Metadata, error) {
	body := map[string]any{
		"size": 0,
		"aggs": map[string]any{
			"hosts":      map[string]any{"terms": map[string]any{"field": "host", "size": 100}},
			"containers": map[string]any{"terms": map[string]any{"field": "container_name", "size": 500}},
			"projects":   map[string]any{"terms": map[string]any{"field": "stack_project", "size": 200}},
			"services":   map[string]any{"terms": map[string]any{"field": "stack_service", "size": 500}},
			"levels":     map[string]any{"terms": map[string]any{"field": "level", "size": 10}},
		},
	}
	r, err := marshalBody(body)
	if err != nil {
		return Metadata{}, err
	}

	var resp struct {
		Aggregations struct {
			Hosts      termsAgg `json:"hosts"`
			Containers termsAgg `json:"containers"`
			Projects   termsAgg `json:"projects"`
			Services   termsAgg `json:"services"`
			Levels     termsAgg `json:"levels"`
		} `json:"aggregations"`
	}
	if err := s.do(ctx, "POST", "/"+s.logsIndex+"/_search", r, &resp); err != nil {
		return Metadata{}, fmt.Errorf("metadata terms aggregations: %w", err)
	}

	return Metadata{
		Hosts:      resp.Aggregations.Hosts.terms(),
		Containers: resp.Aggregations.Containers.terms(),
		Projects:   resp.Aggregations.Projects.terms(),
		Services:   resp.Aggregations.Services.terms(),
		Levels:     resp.Aggregations.Levels.terms(),
	}, nil
}

type termsAgg struct {
	Buckets []struct {
		Key      string `json:"key"`
		DocCount int    `json:"doc_count"`
	} `json:"buckets"`
}

func (a termsAgg) terms() []TermCount {
	out := make([]TermCount, 0, len(a.Buckets))
	for _, b := range a.Buckets {
		out = append(out, TermCount{Key: b.Key, Count: b.DocCount})
	}
	return out
}

// SearchLogs runs a query_string full-text search plus term/range filters,
// accompanied by levels/hosts/containers terms aggregations (spec.md §4.4
// "Query/Aggregation API"). size is clamped to 10000.
func (s *Store) SearchLogs(ctx context.Context, q LogSearchQuery) (LogSearchResult, error) {
	var must []map[string]any
	if q.Query != "" {
		must = append(must, map[string]any{"query_string": map[string]any{"query": q.Query, "default_field": "message"}})
	} else {
		must = append(must, map[string]any{"match_all": map[string]any{}})
	}

	var filters []map[string]any
	if len(q.Hosts) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"host": q.Hosts}})
	}
	if len(q.Containers) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"container_name": q.Containers}})
	}
	if len(q.StackProjects) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"stack_project": q.StackProjects}})
	}
	if len(q.Levels) > 0 {
		filters = append(filters, map[string]any{"terms": map[string]any{"level": q.Levels}})
	}
	if q.HTTPStatusMin != 0 || q.HTTPStatusMax != 0 {
		rng := map[string]any{}
		if q.HTTPStatusMin != 0 {
			rng["gte"] = q.HTTPStatusMin
		}
		if q.HTTPStatusMax != 0 {
			rng["lte"] = q.HTTPStatusMax
		}
		filters = append(filters, map[string]any{"range": map[string]any{"http_status": rng}})
	}
	timeRange := map[string]any{}
	if !q.Start.IsZero() {
		timeRange["gte"] = q.Start
	}
	if !q.End.IsZero() {
		timeRange["lte"] = q.End
	}
	if len(timeRange) > 0 {
		filters = append(filters, map[string]any{"range": map[string]any{"timestamp": timeRange}})
	}

	size := q.Size
	if size <= 0 {
		size = 100
	}
	if size > 10000 {
		size = 10000
	}
	order := "asc"
	if q.SortDescending {
		order = "desc"
	}

	body := map[string]any{
		"query": map[string]any{"bool": map[string]any{"must": must, "filter": filters}},
		"sort":  []map[string]any{{"timestamp": map[string]any{"order": order}}},
		"from":  q.From,
		"size":  size,
		"aggs": map[string]any{
			"levels":     map[string]any{"terms": map[string]any{"field": "level", "size": 10}},
			"hosts":      map[string]any{"terms": map[string]any{"field": "host", "size": 50}},
			"containers": map[string]any{"terms": map[string]any{"field": "container_name", "size": 100}},
		},
	}
	r, err := marshalBody(body)
	if err != nil {
		return LogSearchResult{}, err
	}

	var resp struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string  `json:"_id"`
				Source LogHit  `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations struct {
			Levels     termsAgg `json:"levels"`
			Hosts      termsAgg `json:"hosts"`
			Containers termsAgg `json:"containers"`
		} `json:"aggregations"`
	}
	if err := s.do(ctx, "POST", "/"+s.logsIndex+"/_search", r, &resp); err != nil {
		return LogSearchResult{}, fmt.Errorf("search logs: %w", err)
	}

	hits := make([]LogHit, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		entry := h.Source
		entry.ID = h.ID
		hits = append(hits, entry)
	}

	return LogSearchResult{
		Total: resp.Hits.Total.Value,
		Hits:  hits,
		Aggregations: map[string][]TermCount{
			"levels":     resp.Aggregations.Levels.terms(),
			"hosts":      resp.Aggregations.Hosts.terms(),
			"containers": resp.Aggregations.Containers.terms(),
		},
	}, nil
}
