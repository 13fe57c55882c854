package queryapi

import (
	"context"
	"fmt"
	"strings"

	"github.com/dockfleet/dockfleet/internal/hostclient"
)

// ErrContainerUnreachable is returned by GetContainerEnv when neither a
// direct exec nor a service-spec fallback could produce an environment
// (spec.md §4.6: "never hang on containers we cannot reach").
type ErrContainerUnreachable struct {
	Host        string
	ContainerID string
}

func (e *ErrContainerUnreachable) Error() string {
	return fmt.Sprintf("container %s on %s is unreachable: no exec access and no service spec fallback", e.ContainerID, e.Host)
}

// GetContainerEnv returns a container's environment variables (spec.md
// §4.6). It first tries `Exec(["printenv"])`; if that fails and the
// container belongs to a Swarm service (StackService set), it falls back
// to the service spec's Env array — the only view available for a
// container on a worker node the controller has no direct access to.
func (a *API) GetContainerEnv(ctx context.Context, host string, c hostclient.Container) (map[string]string, error) {
	client, ok := a.registry.Client(host)
	if !ok {
		return nil, fmt.Errorf("unknown host %q", host)
	}

	if ok2, output, err := client.Exec(ctx, c.ID, []string{"printenv"}); err == nil && ok2 {
		return parseEnvLines(strings.Split(output, "\n")), nil
	}

	if c.StackService != "" {
		env, err := client.ServiceEnv(ctx, c.StackService)
		if err == nil {
			return parseEnvLines(env), nil
		}
	}

	return nil, &ErrContainerUnreachable{Host: host, ContainerID: c.ID}
}

func parseEnvLines(lines []string) map[string]string {
	out := make(map[string]string, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[key] = value
	}
	return out
}
