// Package sshhost implements hostclient.API over an SSH session that
// shells out to the remote `docker` CLI, for hosts that only expose SSH
// (spec.md §4.1 ModeSSH). It keeps a single lazy, mutex-guarded connection
// per host and reconnects on demand when the daemon reports it closed.
package sshhost

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/dockfleet/dockfleet/internal/hostclient"
)
// Dialer establishes the underlying TCP/SSH connection. Abstracted for
// testing — production code uses sshDial (net.Dial + ssh.NewClientConn).
type Dialer func(network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error)

// Client implements hostclient.API by running `docker` over SSH.
type Client struct {
	hostName string
	addr     string
	cfg      *ssh.ClientConfig
	dial     Dialer

	mu   sync.Mutex
	conn *ssh.Client

	gpuProbeEnabled bool
	gpuProbeTimeout time.Duration
}

var _ hostclient.API = (*Client)(nil)

// New returns a Client that connects to addr (host:port) with cfg on first
// use. The connection is not established until the first command runs.
func New(hostName, addr string, cfg *ssh.ClientConfig) *Client {
	return &Client{hostName: hostName, addr: addr, cfg: cfg, dial: sshDial}
}

// WithGPUProbe enables the rocm-smi/nvidia-smi GPU sample in HostMetrics
// (spec.md §3), each attempt bounded by timeout and run over this same
// SSH session.
func (c *Client) WithGPUProbe(enabled bool, timeout time.Duration) *Client {
	c.gpuProbeEnabled = enabled
	c.gpuProbeTimeout = timeout
	return c
}

func sshDial(network, addr string, cfg *ssh.ClientConfig) (*ssh.Client, error) {
	conn, err := net.DialTimeout(network, addr, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return ssh.NewClient(c, chans, reqs), nil
}

// connection returns the live SSH connection, dialing (or re-dialing after
// a closed connection) under c.mu.
func (c *Client) connection() (*ssh.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		// A cheap liveness probe: NewSession fails promptly on a dead conn.
		if sess, err := c.conn.NewSession(); err == nil {
			sess.Close()
			return c.conn, nil
		}
		c.conn.Close()
		c.conn = nil
	}

	conn, err := c.dial("tcp", c.addr, c.cfg)
	if err != nil {
		return nil, hostclient.NewError(hostclient.KindTransient, "connection", c.hostName, fmt.Errorf("dial %s: %w", c.addr, err))
	}
	c.conn = conn
	return conn, nil
}

// run executes argv as a single remote command line and returns combined
// stdout+stderr. ctx's deadline (if any) bounds the whole call.
func (c *Client) run(ctx context.Context, argv []string) (string, int, error) {
	conn, err := c.connection()
	if err != nil {
		return "", -1, err
	}

	sess, err := conn.NewSession()
	if err != nil {
		return "", -1, hostclient.NewError(hostclient.KindTransient, "run", c.hostName, fmt.Errorf("new session: %w", err))
	}
	defer sess.Close()

	var out bytes.Buffer
	sess.Stdout = &out
	sess.Stderr = &out

	done := make(chan error, 1)
	go func() { done <- sess.Run(shellJoin(argv)) }()

	select {
	case <-ctx.Done():
		sess.Close()
		return out.String(), -1, hostclient.NewError(hostclient.KindTransient, "run", c.hostName, ctx.Err())
	case err := <-done:
		if err != nil {
			if exitErr, ok := err.(*ssh.ExitError); ok {
				return out.String(), exitErr.ExitStatus(), nil
			}
			return out.String(), -1, hostclient.NewError(hostclient.KindTransient, "run", c.hostName, err)
		}
		return out.String(), 0, nil
	}
}

func shellJoin(argv []string) string {
	var sb bytes.Buffer
	for i, a := range argv {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(shellQuote(a))
	}
	return sb.String()
}

// shellQuote wraps a in single quotes, escaping any embedded single quote,
// so arguments containing spaces/metacharacters survive the remote shell.
func shellQuote(a string) string {
	out := make([]byte, 0, len(a)+2)
	out = append(out, '\'')
	for i := 0; i < len(a); i++ {
		if a[i] == '\'' {
			out = append(out, '\'', '\\', '\'', '\'')
			continue
		}
		out = append(out, a[i])
	}
	out = append(out, '\'')
	return string(out)
}

// Close closes the underlying SSH connection, if any.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// DefaultTimeout bounds the initial TCP+SSH handshake.
const DefaultTimeout = 10 * time.Second
