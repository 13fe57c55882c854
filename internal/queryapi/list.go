package queryapi

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dockfleet/dockfleet/internal/hostclient"
	"github.com/dockfleet/dockfleet/internal/index"
)

// GroupBy selects how ListContainers buckets its result.
type GroupBy string

const (
	GroupByHost  GroupBy = "host"
	GroupByStack GroupBy = "stack"
)

const standaloneBucket = "_standalone"

// ContainerFilters narrows ListContainers to a subset of hosts/stacks.
// A zero-value ContainerFilters matches everything.
type ContainerFilters struct {
	Hosts  []string
	Stacks []string
}

// ContainerView is one container enriched with its latest known resource
// sample (spec.md §4.4 "Latest-stat join"). Stats is nil when no sample
// was indexed in the join window.
type ContainerView struct {
	hostclient.Container
	Stats *index.LatestStat `json:"stats,omitempty"`
}

// ContainerGroup buckets ContainerViews under one host or stack name.
type ContainerGroup struct {
	Key        string          `json:"key"`
	Containers []ContainerView `json:"containers"`
}

// ListContainers runs the latest-stats join then groups the result by
// host or by stack (spec.md §4.6). group_by=stack reconciles three name
// sources in priority order: the manager's stack listing (already carried
// on Container.StackProject/StackService for Swarm-synthesized
// containers), compose labels (also on StackProject/StackService for
// directly-listed containers), and finally a parsed container-name
// prefix, falling back to the "_standalone" bucket.
func (a *API) ListContainers(ctx context.Context, filters ContainerFilters, groupBy GroupBy) ([]ContainerGroup, error) {
	hosts := a.registry.Hosts()
	allowedHost := filterSet(filters.Hosts)

	var containers []hostclient.Container
	for _, h := range hosts {
		if allowedHost != nil && !allowedHost[h.Name] {
			continue
		}
		client, ok := a.registry.Client(h.Name)
		if !ok {
			continue
		}
		hostContainers, err := client.ListContainers(ctx)
		if err != nil {
			return nil, fmt.Errorf("list containers on %s: %w", h.Name, err)
		}
		for i := range hostContainers {
			hostContainers[i].Host = h.Name
		}
		containers = append(containers, hostContainers...)
	}

	latest, err := a.store.LatestContainerStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest container stats join: %w", err)
	}

	allowedStack := filterSet(filters.Stacks)
	groups := make(map[string][]ContainerView)
	for _, c := range containers {
		key := groupKey(c, groupBy)
		if allowedStack != nil && groupBy == GroupByStack && !allowedStack[key] {
			continue
		}
		groups[key] = append(groups[key], enrich(c, latest))
	}

	out := make([]ContainerGroup, 0, len(groups))
	for key, views := range groups {
		sort.Slice(views, func(i, j int) bool { return views[i].Name < views[j].Name })
		out = append(out, ContainerGroup{Key: key, Containers: views})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func groupKey(c hostclient.Container, groupBy GroupBy) string {
	if groupBy == GroupByHost {
		return c.Host
	}
	return stackKey(c)
}

// stackKey implements spec.md §4.6's three-source reconciliation for
// group_by=stack.
func stackKey(c hostclient.Container) string {
	if c.StackProject != "" && c.StackService != "" {
		return c.StackProject + "/" + c.StackService
	}
	if project, service, ok := parseComposeNamePrefix(c.Name); ok {
		return project + "/" + service
	}
	if c.StackProject != "" {
		return c.StackProject
	}
	return standaloneBucket
}

// parseComposeNamePrefix recognizes the docker-compose v2 container
// naming convention (`project-service-N` or `project_service_N`) for
// containers with no stack/compose labels attached — e.g. ones created
// outside compose but following the same naming habit.
func parseComposeNamePrefix(name string) (project, service string, ok bool) {
	for _, sep := range []string{"-", "_"} {
		parts := strings.Split(name, sep)
		if len(parts) >= 3 {
			if _, err := strconv.Atoi(parts[len(parts)-1]); err == nil {
				return parts[0], strings.Join(parts[1:len(parts)-1], sep), true
			}
		}
	}
	return "", "", false
}

func enrich(c hostclient.Container, latest map[string]index.LatestStat) ContainerView {
	view := ContainerView{Container: c}
	if stat, ok := latest[c.ID]; ok {
		view.Stats = &stat
	}
	return view
}

func filterSet(values []string) map[string]bool {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
