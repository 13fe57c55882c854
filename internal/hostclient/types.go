// Package hostclient defines the capability surface shared by the three
// host-client backends (direct Docker API, SSH, Swarm proxy) and the
// entity types that flow out of them into the Fleet Collector.
package hostclient

import "time"

// Mode identifies how a Host is reached.
type Mode string

const (
	ModeAPI        Mode = "api"
	ModeSSH        Mode = "ssh"
	ModeLocal      Mode = "local"
	ModeSwarmProxy Mode = "swarm-proxy"
)

// Host is an operator-configured or Swarm-discovered Docker endpoint.
type Host struct {
	Name     string `json:"name"`
	Mode     Mode   `json:"mode"`
	Endpoint string `json:"endpoint"`

	IsManager           bool `json:"is_manager,omitempty"`
	RouteThroughManager bool `json:"route_through_manager,omitempty"`
	AutoDiscoverNodes   bool `json:"auto_discover_nodes,omitempty"`

	// NodeID anchors a swarm-proxy host to the manager's view of the
	// cluster. Empty for directly configured hosts.
	NodeID string `json:"node_id,omitempty"`
}

// ContainerStatus mirrors the Docker daemon's container state strings.
type ContainerStatus string

const (
	StatusRunning    ContainerStatus = "running"
	StatusPaused     ContainerStatus = "paused"
	StatusExited     ContainerStatus = "exited"
	StatusRestarting ContainerStatus = "restarting"
	StatusDead       ContainerStatus = "dead"
	StatusCreated    ContainerStatus = "created"
	StatusRemoving   ContainerStatus = "removing"
)

// PortMapping describes one published container port.
type PortMapping struct {
	PrivatePort uint16 `json:"private_port"`
	PublicPort  uint16 `json:"public_port,omitempty"`
	Type        string `json:"type"`
	IP          string `json:"ip,omitempty"`
}

// Container is a point-in-time view of one container on one host.
type Container struct {
	ID      string          `json:"id"` // 12-char short ID
	Name    string          `json:"name"`
	Image   string          `json:"image"`
	Status  ContainerStatus `json:"status"`
	Created time.Time       `json:"created_at"`
	Host    string          `json:"host"`

	StackProject string `json:"stack_project,omitempty"`
	StackService string `json:"stack_service,omitempty"`

	Ports  []PortMapping     `json:"ports,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

// Stats is a one-shot, non-streaming resource sample for a container.
type Stats struct {
	Host        string    `json:"host"`
	ContainerID string    `json:"container_id"`
	Name        string    `json:"name"`
	Timestamp   time.Time `json:"timestamp"`

	CPUPercent float64 `json:"cpu_percent"`

	MemUsageMiB float64 `json:"mem_usage_mib"`
	MemLimitMiB float64 `json:"mem_limit_mib"`

	RxBytes uint64 `json:"rx_bytes"`
	TxBytes uint64 `json:"tx_bytes"`

	BlockReadBytes  uint64 `json:"block_read_bytes"`
	BlockWriteBytes uint64 `json:"block_write_bytes"`

	// Unavailable is set when the host client could not collect stats for
	// this container (e.g. a Swarm worker container not reachable through
	// the manager). Timestamp and identity fields are still valid.
	Unavailable bool `json:"unavailable,omitempty"`
}

// GPUStats is an optional per-host GPU sample. Absence is not an error.
type GPUStats struct {
	UtilizationPercent float64 `json:"gpu_percent"`
	VRAMUsedMiB        float64 `json:"vram_used_mib"`
	VRAMTotalMiB       float64 `json:"vram_total_mib"`
}

// HostMetrics is a point-in-time resource sample for an entire host.
type HostMetrics struct {
	Host      string    `json:"host"`
	Timestamp time.Time `json:"timestamp"`

	CPUPercent float64 `json:"cpu_percent"`

	MemTotalMiB   float64 `json:"mem_total_mib"`
	MemUsedMiB    float64 `json:"mem_used_mib"`
	MemPercent    float64 `json:"mem_percent"`
	DiskTotalMiB  float64 `json:"disk_total_mib"`
	DiskUsedMiB   float64 `json:"disk_used_mib"`
	DiskPercent   float64 `json:"disk_percent"`

	GPU *GPUStats `json:"gpu,omitempty"`

	// Approximate is true when CPU%/Mem% were derived from container
	// stats (API-mode hosts without /proc access: CPU% averaged, memory
	// usage summed) rather than read directly from the host. See DESIGN.md Open Question #1.
	Approximate bool `json:"approximate,omitempty"`
}

// Stream identifies which Docker stream a log line came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// LogEntry is one normalized log line ready for indexing.
type LogEntry struct {
	Timestamp    time.Time         `json:"timestamp"`
	Host         string            `json:"host"`
	ContainerID  string            `json:"container_id"`
	ContainerName string           `json:"container_name"`
	StackProject string            `json:"stack_project,omitempty"`
	StackService string            `json:"stack_service,omitempty"`
	Stream       Stream            `json:"stream"`
	Message      string            `json:"message"`
	Level        string            `json:"level,omitempty"`
	HTTPStatus   int               `json:"http_status,omitempty"`
	Fields       map[string]any    `json:"parsed_fields,omitempty"`
}

// ContainerAction enumerates the lifecycle operations ExecuteAction supports.
type ContainerAction string

const (
	ActionStart    ContainerAction = "start"
	ActionStop     ContainerAction = "stop"
	ActionRestart  ContainerAction = "restart"
	ActionPause    ContainerAction = "pause"
	ActionUnpause  ContainerAction = "unpause"
	ActionRemove   ContainerAction = "remove"
)

// LogOptions controls ContainerLogs fetch behaviour.
type LogOptions struct {
	Since  time.Time // zero value means "not set"
	Tail   int       // 0 means "not set"; defaults to 500 when Since is zero too
	TaskID string    // for Swarm workers: tried first as the logs target, container id as fallback
	Labels map[string]string
}
