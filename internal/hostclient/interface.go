package hostclient

import "context"

// API is the capability interface implemented by the direct Docker API,
// SSH, and Swarm-proxy host-client variants (spec.md §4.1). Every method
// may fail with a *Error carrying a taxonomy Kind (spec.md §7).
type API interface {
	// ListContainers returns the union of all containers on the host,
	// regardless of state. A Docker-API client filters to containers
	// whose controlling Swarm task is scheduled on one node id only after
	// its WithLocalNodeFilter has been called; no caller in this module
	// calls it.
	ListContainers(ctx context.Context) ([]Container, error)

	// ContainerStats is a one-shot, non-streaming resource sample.
	ContainerStats(ctx context.Context, id, name string) (Stats, error)

	// HostMetrics samples host-wide CPU/mem/disk/GPU.
	HostMetrics(ctx context.Context) (HostMetrics, error)

	// ContainerLogs fetches and parses container logs per spec.md §4.1.
	ContainerLogs(ctx context.Context, id, name string, opts LogOptions) ([]LogEntry, error)

	// ExecuteAction performs a container lifecycle action.
	ExecuteAction(ctx context.Context, id string, action ContainerAction) (ok bool, message string, err error)

	// Exec runs argv inside a container, non-TTY, combined output.
	Exec(ctx context.Context, id string, argv []string) (ok bool, output string, err error)

	// ServiceLogs fetches logs for a Swarm service by name.
	ServiceLogs(ctx context.Context, serviceName string, tail int) ([]LogEntry, error)
	// RemoveService removes a Swarm service.
	RemoveService(ctx context.Context, name string) error
	// ForceUpdateService bumps TaskTemplate.ForceUpdate without changing the image.
	ForceUpdateService(ctx context.Context, name string) error
	// UpdateServiceImage swaps the image tag (preserving registry/path,
	// stripping any digest) and bumps ForceUpdate to guarantee a rolling restart.
	UpdateServiceImage(ctx context.Context, name, newTag string) error
	// RemoveStack removes every service under a stack namespace.
	RemoveStack(ctx context.Context, stack string) error
	// ListStacksAndServices enumerates Swarm stacks and their services.
	ListStacksAndServices(ctx context.Context) ([]StackService, error)
	// ServiceEnv returns a service's TaskTemplate.ContainerSpec.Env lines
	// (spec.md §4.6 GetContainerEnv's remote-Swarm-container fallback).
	ServiceEnv(ctx context.Context, serviceName string) ([]string, error)

	Close() error
}

// Registry is a name -> API lookup used by components that must route an
// operation to the right host client (the Query/Aggregation API, the
// Fleet Collector). Implementations are safe for concurrent use.
type Registry interface {
	Client(host string) (API, bool)
	Hosts() []Host
}
