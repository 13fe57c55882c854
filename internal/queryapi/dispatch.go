package queryapi

import (
	"context"
	"fmt"

	"github.com/dockfleet/dockfleet/internal/hostclient"
)

// ActionResult is the outcome of a DispatchAction call.
type ActionResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// DispatchAction executes a container lifecycle action (spec.md §4.6).
// Routing through a Swarm manager when host names a worker node is
// transparent here: registry.Client(host) already returns a
// *swarmhost.Proxy for a discovered worker, and Proxy.ExecuteAction
// forwards to its manager connection — the Query API only needs to look
// the host up once.
func (a *API) DispatchAction(ctx context.Context, host, containerID string, action hostclient.ContainerAction) (ActionResult, error) {
	client, ok := a.registry.Client(host)
	if !ok {
		return ActionResult{}, fmt.Errorf("unknown host %q", host)
	}
	ok2, message, err := client.ExecuteAction(ctx, containerID, action)
	if err != nil {
		return ActionResult{}, fmt.Errorf("execute %s on %s/%s: %w", action, host, containerID, err)
	}
	return ActionResult{OK: ok2, Message: message}, nil
}

// Exec runs argv inside a container, routed the same way DispatchAction is.
func (a *API) Exec(ctx context.Context, host, containerID string, argv []string) (ActionResult, error) {
	client, ok := a.registry.Client(host)
	if !ok {
		return ActionResult{}, fmt.Errorf("unknown host %q", host)
	}
	ok2, output, err := client.Exec(ctx, containerID, argv)
	if err != nil {
		return ActionResult{}, fmt.Errorf("exec on %s/%s: %w", host, containerID, err)
	}
	return ActionResult{OK: ok2, Message: output}, nil
}
