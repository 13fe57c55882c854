// Package dockerapi implements hostclient.API directly against the Docker
// Engine API, for hosts reachable over a unix socket or TCP/mTLS endpoint
// (spec.md §4.1, ModeAPI and ModeLocal).
package dockerapi

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/moby/moby/client"

	"github.com/dockfleet/dockfleet/internal/hostclient"
)

// defaultHostMetricsSampleLimit bounds HostMetrics' per-container stat
// fan-out when a Client isn't given an explicit limit (spec.md §4.1,
// matching the original agent's running[:10]).
const defaultHostMetricsSampleLimit = 10

// Client wraps a Docker Engine API client and adapts it to hostclient.API.
type Client struct {
	api      *client.Client
	hostName string

	// nodeID and filterLocal support auto-discovered manager hosts that
	// should only report containers scheduled locally (spec.md §4.1).
	nodeID      string
	filterLocal bool

	hostMetricsSampleLimit int

	gpuProbeEnabled bool
	gpuProbeTimeout time.Duration
}

var _ hostclient.API = (*Client)(nil)

// TLSConfig holds paths to TLS certificates for a remote/TCP Docker endpoint.
type TLSConfig struct {
	CACert     string
	ClientCert string
	ClientKey  string
}

func (t *TLSConfig) loadTLS() (*tls.Config, error) {
	caCert, err := os.ReadFile(t.CACert)
	if err != nil {
		return nil, fmt.Errorf("read CA cert %s: %w", t.CACert, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("parse CA cert %s", t.CACert)
	}
	cert, err := tls.LoadX509KeyPair(t.ClientCert, t.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load client cert/key: %w", err)
	}
	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// New connects to a Docker endpoint (unix socket path or tcp(s):// URL) and
// returns a Client implementing hostclient.API for hostName.
func New(hostName, endpoint string, tlsCfg *TLSConfig) (*Client, error) {
	var opts []client.Opt

	switch {
	case strings.HasPrefix(endpoint, "tcp://"), strings.HasPrefix(endpoint, "tcps://"):
		opts = append(opts, client.WithHost(endpoint))
		if tlsCfg != nil && tlsCfg.CACert != "" && tlsCfg.ClientCert != "" && tlsCfg.ClientKey != "" {
			tc, err := tlsCfg.loadTLS()
			if err != nil {
				return nil, hostclient.NewError(hostclient.KindFatal, "New", hostName, fmt.Errorf("configure TLS: %w", err))
			}
			if u, perr := url.Parse(endpoint); perr == nil {
				tc.ServerName = u.Hostname()
			}
			opts = append(opts, client.WithHTTPClient(&http.Client{
				Transport: &http.Transport{
					TLSClientConfig:       tc,
					IdleConnTimeout:       90 * time.Second,
					TLSHandshakeTimeout:   10 * time.Second,
					ResponseHeaderTimeout: 30 * time.Second,
				},
			}))
		}
	default:
		opts = append(opts,
			client.WithHost("unix://"+endpoint),
			client.WithHTTPClient(&http.Client{
				Transport: &http.Transport{
					DialContext: func(_ context.Context, _, _ string) (net.Conn, error) {
						return net.DialTimeout("unix", endpoint, 30*time.Second)
					},
				},
			}),
		)
	}

	api, err := client.New(opts...)
	if err != nil {
		return nil, hostclient.NewError(hostclient.KindFatal, "New", hostName, err)
	}
	return &Client{api: api, hostName: hostName, hostMetricsSampleLimit: defaultHostMetricsSampleLimit}, nil
}

// WithLocalNodeFilter restricts ListContainers to containers whose
// controlling Swarm task is scheduled on nodeID, for a client that
// doubles as the auto-discovery seed on a manager host (spec.md §4.1).
// Nothing in this module calls it; the filter is off unless it is called.
func (c *Client) WithLocalNodeFilter(nodeID string) *Client {
	c.nodeID = nodeID
	c.filterLocal = true
	return c
}

// WithHostMetricsSampleLimit overrides the number of running containers
// HostMetrics samples per cycle (spec.md §4.1). n <= 0 restores the
// default of 10.
func (c *Client) WithHostMetricsSampleLimit(n int) *Client {
	if n <= 0 {
		n = defaultHostMetricsSampleLimit
	}
	c.hostMetricsSampleLimit = n
	return c
}

// WithGPUProbe enables the rocm-smi/nvidia-smi GPU sample in HostMetrics
// (spec.md §3), each attempt bounded by timeout.
func (c *Client) WithGPUProbe(enabled bool, timeout time.Duration) *Client {
	c.gpuProbeEnabled = enabled
	c.gpuProbeTimeout = timeout
	return c
}

// Ping checks daemon reachability.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.api.Ping(ctx, client.PingOptions{})
	if err != nil {
		return hostclient.NewError(hostclient.KindTransient, "Ping", c.hostName, err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.api.Close()
}
