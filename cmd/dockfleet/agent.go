package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/dockfleet/dockfleet/internal/actionqueue"
	"github.com/dockfleet/dockfleet/internal/config"
	"github.com/dockfleet/dockfleet/internal/dockerapi"
	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/logging"
)

// runAgent runs Dockfleet in agent mode: a poller that pulls actions from
// a controller's agent protocol (internal/agentproto) and executes them
// against the local Docker daemon, for hosts the controller has no direct
// route to (spec.md §6 Controller↔Agent protocol). This is a separate
// code path from the controller server, grounded on the teacher's
// cluster/agent/agent.go reconnection loop — the exponential backoff and
// safeHandle panic-recovery idioms are kept, the gRPC/mTLS transport is
// replaced with the plain HTTP polling spec.md §6 specifies.
func runAgent(ctx context.Context, cfg *config.Config, log *logging.Logger) {
	if cfg.AgentID == "" {
		fmt.Fprintln(os.Stderr, "DOCKFLEET_AGENT_ID is required in agent mode")
		os.Exit(1)
	}
	if cfg.ServerAddr == "" {
		fmt.Fprintln(os.Stderr, "DOCKFLEET_SERVER_ADDR is required in agent mode")
		os.Exit(1)
	}

	client, err := dockerapi.New(cfg.AgentID, cfg.DockerSock, nil)
	if err != nil {
		log.Error("failed to create local Docker client", "error", err)
		os.Exit(1)
	}
	defer client.Close()
	client.WithHostMetricsSampleLimit(cfg.HostMetricsSampleLimit).WithGPUProbe(cfg.GPUProbeEnabled, cfg.GPUProbeTimeout)

	a := &agent{
		cfg:        cfg,
		client:     client,
		log:        log,
		httpClient: &http.Client{Timeout: cfg.AgentPollTimeout},
	}

	log.Info("agent starting", "server", cfg.ServerAddr, "agent_id", cfg.AgentID)
	a.run(ctx)
	log.Info("agent shutdown complete")
}

type agent struct {
	cfg        *config.Config
	client     *dockerapi.Client
	log        *logging.Logger
	httpClient *http.Client
}

// run polls for dispatched actions every AgentPollTimeout, heartbeats on
// the same cadence, and reconnects with exponential backoff whenever the
// controller is unreachable — the same shape as the teacher's
// reconnection loop, adapted from a persistent stream to stateless polls.
func (a *agent) run(ctx context.Context) {
	bo := newAgentBackoff()
	for {
		if ctx.Err() != nil {
			return
		}

		actions, err := a.poll(ctx)
		if err != nil {
			wait := bo.next()
			a.log.Warn("poll failed, retrying", "error", err, "backoff", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		bo.reset()

		for _, act := range actions {
			go a.safeHandle(act)
		}

		if err := a.heartbeat(ctx); err != nil {
			a.log.Warn("heartbeat failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(a.cfg.AgentPollTimeout):
		}
	}
}

// safeHandle executes one action and reports its result, recovering from
// any panic so a single bad action can never take the agent process down
// (mirrors the teacher's safeHandle).
func (a *agent) safeHandle(act actionqueue.Action) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("action handler panic", "action_id", act.ID, "kind", act.Kind, "panic", r)
		}
	}()

	success, output, err := a.execute(act)
	if err != nil {
		a.log.Error("action execution failed", "action_id", act.ID, "kind", act.Kind, "error", err)
		output = err.Error()
	}
	if postErr := a.postResult(act.ID, success, output); postErr != nil {
		a.log.Error("failed to report action result", "action_id", act.ID, "error", postErr)
	}
}

func (a *agent) execute(act actionqueue.Action) (bool, string, error) {
	containerID, _ := act.Payload["container_id"].(string)
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ActionTimeout())
	defer cancel()

	switch act.Kind {
	case "exec":
		argv := stringSlice(act.Payload["argv"])
		return a.client.Exec(ctx, containerID, argv)
	default:
		return a.client.ExecuteAction(ctx, containerID, hostclient.ContainerAction(act.Kind))
	}
}

func stringSlice(v any) []string {
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (a *agent) poll(ctx context.Context) ([]actionqueue.Action, error) {
	u := a.cfg.ServerAddr + "/api/agent/actions?agent_id=" + url.QueryEscape(a.cfg.AgentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("poll: unexpected status %d", resp.StatusCode)
	}
	var body struct {
		Actions []actionqueue.Action `json:"actions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return body.Actions, nil
}

func (a *agent) postResult(actionID string, success bool, output string) error {
	u := fmt.Sprintf("%s/api/agent/result?agent_id=%s&action_id=%s&success=%t&output=%s",
		a.cfg.ServerAddr, url.QueryEscape(a.cfg.AgentID), url.QueryEscape(actionID), success, url.QueryEscape(output))
	req, err := http.NewRequest(http.MethodPost, u, nil)
	if err != nil {
		return err
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("result: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (a *agent) heartbeat(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{"agent_id": a.cfg.AgentID, "status": "online"})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.ServerAddr+"/api/agent/heartbeat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// agentBackoff implements exponential backoff for reconnection attempts,
// capped at maxDelay (mirrors the teacher's cluster/agent backoff type).
type agentBackoff struct {
	attempt  int
	base     time.Duration
	maxDelay time.Duration
}

func newAgentBackoff() *agentBackoff {
	return &agentBackoff{base: 1 * time.Second, maxDelay: 30 * time.Second}
}

func (b *agentBackoff) next() time.Duration {
	shift := b.attempt
	if shift > 30 {
		shift = 30
	}
	delay := b.base << uint(shift)
	if delay > b.maxDelay || delay < 0 {
		delay = b.maxDelay
	}
	b.attempt++
	return delay
}

func (b *agentBackoff) reset() {
	b.attempt = 0
}
