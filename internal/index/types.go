package index

import "time"

// DashboardSummary is the last-24h/last-1h rollup behind the dashboard
// landing view (spec.md §4.4 "Dashboard summary").
type DashboardSummary struct {
	Errors24h   int `json:"errors_24h"`
	Warnings24h int `json:"warnings_24h"`
	HTTP4xx24h  int `json:"http_4xx_24h"`
	HTTP5xx24h  int `json:"http_5xx_24h"`

	AvgCPUPercent    float64  `json:"avg_cpu_percent"`
	AvgMemoryPercent float64  `json:"avg_memory_percent"`
	AvgGPUPercent    *float64 `json:"avg_gpu_percent,omitempty"`
}

// TimeSeriesPoint is one bucket of a date histogram aggregation.
type TimeSeriesPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// TimeSeriesByHost groups a metric's time series under one host.
type TimeSeriesByHost struct {
	Host string            `json:"host"`
	Data []TimeSeriesPoint `json:"data"`
}

// LatestStat is the most recent known sample for one container, produced
// by the terms+top_hits join (spec.md §4.4 "Latest-stat join").
type LatestStat struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemUsageMiB   float64 `json:"memory_usage_mib"`
}

// TermCount is one bucket of a terms aggregation.
type TermCount struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// Metadata is the set of known values for query-planning filters
// (spec.md §4.4 "Metadata for query planning").
type Metadata struct {
	Hosts      []TermCount `json:"hosts"`
	Containers []TermCount `json:"containers"`
	Projects   []TermCount `json:"projects"`
	Services   []TermCount `json:"services"`
	Levels     []TermCount `json:"levels"`
}

// LogSearchQuery is the input to SearchLogs.
type LogSearchQuery struct {
	Query          string
	Hosts          []string
	Containers     []string
	StackProjects  []string
	Levels         []string
	HTTPStatusMin  int // 0 means unset
	HTTPStatusMax  int
	Start, End     time.Time
	SortDescending bool
	From, Size     int
}

// LogSearchResult is the output of SearchLogs.
type LogSearchResult struct {
	Total        int                    `json:"total"`
	Hits         []LogHit               `json:"hits"`
	Aggregations map[string][]TermCount `json:"aggregations"`
}

// LogHit is one matched log document, with its indexing ID attached.
type LogHit struct {
	ID            string         `json:"id"`
	Timestamp     time.Time      `json:"timestamp"`
	Host          string         `json:"host"`
	ContainerID   string         `json:"container_id"`
	ContainerName string         `json:"container_name"`
	StackProject  string         `json:"stack_project,omitempty"`
	StackService  string         `json:"stack_service,omitempty"`
	Stream        string         `json:"stream"`
	Message       string         `json:"message"`
	Level         string         `json:"level,omitempty"`
	HTTPStatus    int            `json:"http_status,omitempty"`
	Fields        map[string]any `json:"parsed_fields,omitempty"`
}

// ResourceMetric names a field averaged in a resource time series.
type ResourceMetric string

const (
	MetricCPUPercent    ResourceMetric = "cpu_percent"
	MetricMemoryPercent ResourceMetric = "memory_percent"
	MetricGPUPercent    ResourceMetric = "gpu_percent"
)
