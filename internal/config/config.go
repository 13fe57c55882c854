// Package config loads Dockfleet's configuration from environment
// variables, optionally overlaid by a YAML file (spec.md §6 configuration
// surface: host list, indexing store URL/auth, collector intervals,
// retention days, action timeout, GPU probe flag). A handful of fields
// are mutable at runtime (e.g. from the Query/Aggregation API) and are
// protected by an RWMutex, since collector loops read them continuously
// while an HTTP handler may write them from a different goroutine.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dockfleet/dockfleet/internal/hostclient"
)

// HostConfig describes one operator-configured Docker endpoint (spec.md
// §6 "host list (name, mode, endpoint, swarm flags)"). It carries the
// connection secrets hostclient.Host deliberately omits.
type HostConfig struct {
	Name     string          `yaml:"name"`
	Mode     hostclient.Mode `yaml:"mode"`
	Endpoint string          `yaml:"endpoint"`

	IsManager           bool `yaml:"is_manager,omitempty"`
	RouteThroughManager bool `yaml:"route_through_manager,omitempty"`
	AutoDiscoverNodes   bool `yaml:"auto_discover_nodes,omitempty"`

	SSHUser     string `yaml:"ssh_user,omitempty"`
	SSHKeyPath  string `yaml:"ssh_key_path,omitempty"`
	SSHPassword string `yaml:"ssh_password,omitempty"`

	TLSCACert     string `yaml:"tls_ca_cert,omitempty"`
	TLSClientCert string `yaml:"tls_client_cert,omitempty"`
	TLSClientKey  string `yaml:"tls_client_key,omitempty"`
}

// Config holds all Dockfleet configuration. Mutable fields (LogInterval,
// MetricsInterval, RetentionDays, ActionTimeout) are protected by an
// RWMutex and must be accessed via getter/setter methods at runtime.
type Config struct {
	Hosts []HostConfig

	IndexAddresses []string
	IndexUsername  string
	IndexPassword  string
	IndexPrefix    string

	LogJSON        bool
	MetricsEnabled bool
	MetricsPort    string
	HTTPPort       string

	LogLinesPerFetch       int
	GPUProbeEnabled        bool
	HostMetricsSampleLimit int

	// Agent-mode only (cmd/dockfleet agent): which controller to poll and
	// how to identify this agent/host to it (spec.md §6).
	ServerAddr string
	AgentID    string
	DockerSock string

	AgentPollTimeout      time.Duration
	AgentHeartbeatTimeout time.Duration
	ActionWaitTimeout     time.Duration
	SSHConnectTimeout     time.Duration
	GPUProbeTimeout       time.Duration
	SwarmRefreshInterval  time.Duration

	mu              sync.RWMutex
	logInterval     time.Duration
	metricsInterval time.Duration
	retentionDays   int
	actionTimeout   time.Duration
}

// NewTestConfig creates a Config with sensible defaults for testing.
// Use the setter methods to override specific values.
func NewTestConfig() *Config {
	return &Config{
		IndexAddresses:         []string{"http://127.0.0.1:9200"},
		IndexPrefix:            "dockfleet",
		HTTPPort:               "8090",
		LogLinesPerFetch:       500,
		HostMetricsSampleLimit: 10,
		logInterval:            30 * time.Second,
		metricsInterval:        15 * time.Second,
		retentionDays:          7,
		actionTimeout:          60 * time.Second,
		AgentPollTimeout:       10 * time.Second,
		AgentHeartbeatTimeout:  5 * time.Second,
		ActionWaitTimeout:      30 * time.Second,
		SSHConnectTimeout:      30 * time.Second,
		GPUProbeTimeout:        5 * time.Second,
		SwarmRefreshInterval:   5 * time.Minute,
	}
}

// fileConfig mirrors the YAML config file schema. Scalars are pointers so
// an absent key leaves the env-derived default untouched; Hosts has no env
// equivalent at all, so the file is the only way to populate it.
type fileConfig struct {
	Hosts []HostConfig `yaml:"hosts"`

	IndexAddresses []string `yaml:"index_addresses"`
	IndexUsername  *string  `yaml:"index_username"`
	IndexPassword  *string  `yaml:"index_password"`
	IndexPrefix    *string  `yaml:"index_prefix"`

	LogIntervalSeconds     *int  `yaml:"log_interval_seconds"`
	MetricsIntervalSeconds *int  `yaml:"metrics_interval_seconds"`
	LogLinesPerFetch       *int  `yaml:"log_lines_per_fetch"`
	RetentionDays          *int  `yaml:"retention_days"`
	ActionTimeoutSeconds   *int  `yaml:"action_timeout_seconds"`
	GPUProbeEnabled        *bool `yaml:"gpu_probe_enabled"`
	HostMetricsSampleLimit *int  `yaml:"host_metrics_sample_limit"`
}

// Load reads configuration from environment variables, then overlays a
// YAML file named by DOCKFLEET_CONFIG_FILE if set (spec.md §6).
func Load() (*Config, error) {
	c := &Config{
		IndexAddresses:        envStrList("DOCKFLEET_INDEX_ADDRESSES", []string{"http://127.0.0.1:9200"}),
		IndexUsername:         envStr("DOCKFLEET_INDEX_USERNAME", ""),
		IndexPassword:         envStr("DOCKFLEET_INDEX_PASSWORD", ""),
		IndexPrefix:           envStr("DOCKFLEET_INDEX_PREFIX", "dockfleet"),
		LogJSON:               envBool("DOCKFLEET_LOG_JSON", true),
		MetricsEnabled:        envBool("DOCKFLEET_METRICS_ENABLED", false),
		MetricsPort:           envStr("DOCKFLEET_METRICS_PORT", "9090"),
		HTTPPort:              envStr("DOCKFLEET_HTTP_PORT", "8090"),
		ServerAddr:            envStr("DOCKFLEET_SERVER_ADDR", "http://127.0.0.1:8090"),
		AgentID:               envStr("DOCKFLEET_AGENT_ID", ""),
		DockerSock:            envStr("DOCKFLEET_DOCKER_SOCK", "/var/run/docker.sock"),
		LogLinesPerFetch:       envInt("DOCKFLEET_LOG_LINES_PER_FETCH", 500),
		GPUProbeEnabled:        envBool("DOCKFLEET_GPU_PROBE", false),
		HostMetricsSampleLimit: envInt("DOCKFLEET_HOST_METRICS_SAMPLE_LIMIT", 10),
		logInterval:            envDuration("DOCKFLEET_LOG_INTERVAL", 30*time.Second),
		metricsInterval:        envDuration("DOCKFLEET_METRICS_INTERVAL", 15*time.Second),
		retentionDays:          envInt("DOCKFLEET_RETENTION_DAYS", 7),
		actionTimeout:          envDuration("DOCKFLEET_ACTION_TIMEOUT", 60*time.Second),
		AgentPollTimeout:       envDuration("DOCKFLEET_AGENT_POLL_TIMEOUT", 10*time.Second),
		AgentHeartbeatTimeout: envDuration("DOCKFLEET_AGENT_HEARTBEAT_TIMEOUT", 5*time.Second),
		ActionWaitTimeout:     envDuration("DOCKFLEET_ACTION_WAIT_TIMEOUT", 30*time.Second),
		SSHConnectTimeout:     envDuration("DOCKFLEET_SSH_CONNECT_TIMEOUT", 30*time.Second),
		GPUProbeTimeout:       envDuration("DOCKFLEET_GPU_PROBE_TIMEOUT", 5*time.Second),
		SwarmRefreshInterval:  envDuration("DOCKFLEET_SWARM_REFRESH_INTERVAL", 5*time.Minute),
	}

	if path := envStr("DOCKFLEET_CONFIG_FILE", ""); path != "" {
		if err := c.overlayFile(path); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Config) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if len(fc.Hosts) > 0 {
		c.Hosts = fc.Hosts
	}
	if len(fc.IndexAddresses) > 0 {
		c.IndexAddresses = fc.IndexAddresses
	}
	if fc.IndexUsername != nil {
		c.IndexUsername = *fc.IndexUsername
	}
	if fc.IndexPassword != nil {
		c.IndexPassword = *fc.IndexPassword
	}
	if fc.IndexPrefix != nil {
		c.IndexPrefix = *fc.IndexPrefix
	}
	if fc.LogIntervalSeconds != nil {
		c.logInterval = time.Duration(*fc.LogIntervalSeconds) * time.Second
	}
	if fc.MetricsIntervalSeconds != nil {
		c.metricsInterval = time.Duration(*fc.MetricsIntervalSeconds) * time.Second
	}
	if fc.LogLinesPerFetch != nil {
		c.LogLinesPerFetch = *fc.LogLinesPerFetch
	}
	if fc.RetentionDays != nil {
		c.retentionDays = *fc.RetentionDays
	}
	if fc.ActionTimeoutSeconds != nil {
		c.actionTimeout = time.Duration(*fc.ActionTimeoutSeconds) * time.Second
	}
	if fc.GPUProbeEnabled != nil {
		c.GPUProbeEnabled = *fc.GPUProbeEnabled
	}
	if fc.HostMetricsSampleLimit != nil {
		c.HostMetricsSampleLimit = *fc.HostMetricsSampleLimit
	}
	return nil
}

// Validate checks configuration for invalid values.
func (c *Config) Validate() error {
	c.mu.RLock()
	li := c.logInterval
	mi := c.metricsInterval
	rd := c.retentionDays
	at := c.actionTimeout
	c.mu.RUnlock()

	var errs []error
	if li <= 0 {
		errs = append(errs, fmt.Errorf("DOCKFLEET_LOG_INTERVAL must be > 0, got %s", li))
	}
	if mi <= 0 {
		errs = append(errs, fmt.Errorf("DOCKFLEET_METRICS_INTERVAL must be > 0, got %s", mi))
	}
	if rd <= 0 {
		errs = append(errs, fmt.Errorf("DOCKFLEET_RETENTION_DAYS must be > 0, got %d", rd))
	}
	if at <= 0 {
		errs = append(errs, fmt.Errorf("DOCKFLEET_ACTION_TIMEOUT must be > 0, got %s", at))
	}
	if len(c.IndexAddresses) == 0 {
		errs = append(errs, errors.New("DOCKFLEET_INDEX_ADDRESSES must not be empty"))
	}
	for _, h := range c.Hosts {
		if h.Name == "" {
			errs = append(errs, errors.New("every configured host must have a name"))
			continue
		}
		switch h.Mode {
		case hostclient.ModeAPI, hostclient.ModeSSH, hostclient.ModeLocal, hostclient.ModeSwarmProxy:
		default:
			errs = append(errs, fmt.Errorf("host %s: invalid mode %q", h.Name, h.Mode))
		}
		if h.Mode != hostclient.ModeLocal && h.Endpoint == "" {
			errs = append(errs, fmt.Errorf("host %s: endpoint is required for mode %q", h.Name, h.Mode))
		}
	}
	return errors.Join(errs...)
}

// Values returns all configuration as a string map for display.
func (c *Config) Values() map[string]string {
	c.mu.RLock()
	li, mi, rd, at := c.logInterval, c.metricsInterval, c.retentionDays, c.actionTimeout
	c.mu.RUnlock()

	return map[string]string{
		"DOCKFLEET_INDEX_ADDRESSES":     strings.Join(c.IndexAddresses, ","),
		"DOCKFLEET_INDEX_PREFIX":        c.IndexPrefix,
		"DOCKFLEET_LOG_JSON":            fmt.Sprintf("%t", c.LogJSON),
		"DOCKFLEET_LOG_INTERVAL":        li.String(),
		"DOCKFLEET_METRICS_INTERVAL":    mi.String(),
		"DOCKFLEET_RETENTION_DAYS":      strconv.Itoa(rd),
		"DOCKFLEET_ACTION_TIMEOUT":      at.String(),
		"DOCKFLEET_LOG_LINES_PER_FETCH": strconv.Itoa(c.LogLinesPerFetch),
		"DOCKFLEET_GPU_PROBE":                 fmt.Sprintf("%t", c.GPUProbeEnabled),
		"DOCKFLEET_METRICS_ENABLED":           fmt.Sprintf("%t", c.MetricsEnabled),
		"DOCKFLEET_HOSTS_CONFIGURED":          strconv.Itoa(len(c.Hosts)),
		"DOCKFLEET_HTTP_PORT":                 c.HTTPPort,
		"DOCKFLEET_HOST_METRICS_SAMPLE_LIMIT": strconv.Itoa(c.HostMetricsSampleLimit),
	}
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envStrList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// LogInterval returns the current log-collection period (thread-safe).
func (c *Config) LogInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logInterval
}

// SetLogInterval updates the log-collection period at runtime (thread-safe).
func (c *Config) SetLogInterval(d time.Duration) {
	c.mu.Lock()
	c.logInterval = d
	c.mu.Unlock()
}

// MetricsInterval returns the current metrics-collection period (thread-safe).
func (c *Config) MetricsInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.metricsInterval
}

// SetMetricsInterval updates the metrics-collection period at runtime (thread-safe).
func (c *Config) SetMetricsInterval(d time.Duration) {
	c.mu.Lock()
	c.metricsInterval = d
	c.mu.Unlock()
}

// RetentionDays returns the current retention window in days (thread-safe).
func (c *Config) RetentionDays() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.retentionDays
}

// SetRetentionDays updates the retention window at runtime (thread-safe).
func (c *Config) SetRetentionDays(days int) {
	c.mu.Lock()
	c.retentionDays = days
	c.mu.Unlock()
}

// ActionTimeout returns the current action pending/in-progress timeout (thread-safe).
func (c *Config) ActionTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.actionTimeout
}

// SetActionTimeout updates the action timeout at runtime (thread-safe).
func (c *Config) SetActionTimeout(d time.Duration) {
	c.mu.Lock()
	c.actionTimeout = d
	c.mu.Unlock()
}
