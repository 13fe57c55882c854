package config

import (
	"os"
	"testing"
	"time"

	"github.com/dockfleet/dockfleet/internal/hostclient"
)

func unsetDockfleetEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"DOCKFLEET_CONFIG_FILE", "DOCKFLEET_INDEX_ADDRESSES", "DOCKFLEET_INDEX_PREFIX",
		"DOCKFLEET_LOG_JSON", "DOCKFLEET_LOG_INTERVAL", "DOCKFLEET_METRICS_INTERVAL",
		"DOCKFLEET_RETENTION_DAYS", "DOCKFLEET_ACTION_TIMEOUT", "DOCKFLEET_GPU_PROBE",
	} {
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	unsetDockfleetEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.IndexAddresses) != 1 || cfg.IndexAddresses[0] != "http://127.0.0.1:9200" {
		t.Errorf("IndexAddresses = %v, want [http://127.0.0.1:9200]", cfg.IndexAddresses)
	}
	if cfg.IndexPrefix != "dockfleet" {
		t.Errorf("IndexPrefix = %q, want dockfleet", cfg.IndexPrefix)
	}
	if cfg.LogInterval() != 30*time.Second {
		t.Errorf("LogInterval() = %s, want 30s", cfg.LogInterval())
	}
	if cfg.MetricsInterval() != 15*time.Second {
		t.Errorf("MetricsInterval() = %s, want 15s", cfg.MetricsInterval())
	}
	if cfg.RetentionDays() != 7 {
		t.Errorf("RetentionDays() = %d, want 7", cfg.RetentionDays())
	}
	if cfg.ActionTimeout() != 60*time.Second {
		t.Errorf("ActionTimeout() = %s, want 60s", cfg.ActionTimeout())
	}
	if !cfg.LogJSON {
		t.Error("LogJSON = false, want true")
	}
}

func TestLoadFromEnv(t *testing.T) {
	unsetDockfleetEnv(t)
	t.Setenv("DOCKFLEET_LOG_INTERVAL", "1m")
	t.Setenv("DOCKFLEET_METRICS_INTERVAL", "10s")
	t.Setenv("DOCKFLEET_RETENTION_DAYS", "14")
	t.Setenv("DOCKFLEET_LOG_JSON", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.LogInterval() != time.Minute {
		t.Errorf("LogInterval() = %s, want 1m", cfg.LogInterval())
	}
	if cfg.MetricsInterval() != 10*time.Second {
		t.Errorf("MetricsInterval() = %s, want 10s", cfg.MetricsInterval())
	}
	if cfg.RetentionDays() != 14 {
		t.Errorf("RetentionDays() = %d, want 14", cfg.RetentionDays())
	}
	if cfg.LogJSON {
		t.Error("LogJSON = true, want false")
	}
}

func TestLoadFromFileOverlay(t *testing.T) {
	unsetDockfleetEnv(t)

	dir := t.TempDir()
	path := dir + "/dockfleet.yaml"
	const body = `
hosts:
  - name: mgr
    mode: api
    endpoint: /var/run/docker.sock
    is_manager: true
    auto_discover_nodes: true
index_prefix: custom-prefix
retention_days: 3
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("DOCKFLEET_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Hosts) != 1 || cfg.Hosts[0].Name != "mgr" {
		t.Fatalf("Hosts = %+v, want one host named mgr", cfg.Hosts)
	}
	if cfg.Hosts[0].Mode != hostclient.ModeAPI || !cfg.Hosts[0].AutoDiscoverNodes {
		t.Errorf("Hosts[0] = %+v, want ModeAPI + AutoDiscoverNodes", cfg.Hosts[0])
	}
	if cfg.IndexPrefix != "custom-prefix" {
		t.Errorf("IndexPrefix = %q, want custom-prefix", cfg.IndexPrefix)
	}
	if cfg.RetentionDays() != 3 {
		t.Errorf("RetentionDays() = %d, want 3 (file overlay)", cfg.RetentionDays())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(_ *Config) {}, false},
		{"zero log interval", func(c *Config) { c.SetLogInterval(0) }, true},
		{"zero retention days", func(c *Config) { c.SetRetentionDays(0) }, true},
		{"zero action timeout", func(c *Config) { c.SetActionTimeout(0) }, true},
		{"no index addresses", func(c *Config) { c.IndexAddresses = nil }, true},
		{"host missing name", func(c *Config) {
			c.Hosts = []HostConfig{{Mode: hostclient.ModeAPI, Endpoint: "/var/run/docker.sock"}}
		}, true},
		{"host bad mode", func(c *Config) {
			c.Hosts = []HostConfig{{Name: "h1", Mode: "bogus", Endpoint: "x"}}
		}, true},
		{"host missing endpoint", func(c *Config) {
			c.Hosts = []HostConfig{{Name: "h1", Mode: hostclient.ModeSSH}}
		}, true},
		{"local host needs no endpoint", func(c *Config) {
			c.Hosts = []HostConfig{{Name: "h1", Mode: hostclient.ModeLocal}}
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr = %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvStr(t *testing.T) {
	const key = "DF_TEST_ENV_STR"
	t.Setenv(key, "custom")

	if got := envStr(key, "default"); got != "custom" {
		t.Errorf("got %q, want %q", got, "custom")
	}
	if got := envStr("DF_TEST_MISSING", "fallback"); got != "fallback" {
		t.Errorf("got %q, want %q", got, "fallback")
	}
}

func TestEnvStrList(t *testing.T) {
	const key = "DF_TEST_ENV_LIST"
	t.Setenv(key, "a, b ,c")

	got := envStrList(key, []string{"default"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
		}
	}
}

func TestEnvInt(t *testing.T) {
	const key = "DF_TEST_ENV_INT"

	t.Setenv(key, "42")
	if got := envInt(key, 0); got != 42 {
		t.Errorf("got %d, want 42", got)
	}

	t.Setenv(key, "notanumber")
	if got := envInt(key, 99); got != 99 {
		t.Errorf("got %d, want 99 (default on parse failure)", got)
	}
}

func TestEnvBool(t *testing.T) {
	const key = "DF_TEST_ENV_BOOL"

	t.Setenv(key, "true")
	if got := envBool(key, false); !got {
		t.Errorf("got false, want true")
	}

	t.Setenv(key, "invalid")
	if got := envBool(key, true); !got {
		t.Errorf("got false, want true (default on parse failure)")
	}
}

func TestEnvDuration(t *testing.T) {
	const key = "DF_TEST_ENV_DUR"

	t.Setenv(key, "5m")
	if got := envDuration(key, time.Hour); got != 5*time.Minute {
		t.Errorf("got %s, want 5m", got)
	}

	t.Setenv(key, "notaduration")
	if got := envDuration(key, time.Hour); got != time.Hour {
		t.Errorf("got %s, want 1h (default on parse failure)", got)
	}
}
