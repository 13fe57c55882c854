package swarmhost

import (
	"context"
	"testing"

	"github.com/dockfleet/dockfleet/internal/hostclient"
)

func TestProxyContainerStatsAlwaysUnreachable(t *testing.T) {
	p := NewProxy(nil, "node-w1", "w1")
	_, err := p.ContainerStats(context.Background(), "abc", "my-container")
	if !hostclient.IsKind(err, hostclient.KindRemoteUnreachable) {
		t.Errorf("ContainerStats() error = %v, want KindRemoteUnreachable", err)
	}
}

func TestProxyHostMetricsApproximate(t *testing.T) {
	p := NewProxy(nil, "node-w1", "w1")
	m, err := p.HostMetrics(context.Background())
	if err != nil {
		t.Fatalf("HostMetrics() error = %v", err)
	}
	if !m.Approximate {
		t.Error("HostMetrics().Approximate = false, want true for a proxy node")
	}
}

func TestProxySetAndListContainers(t *testing.T) {
	p := NewProxy(nil, "node-w1", "w1")
	want := []hostclient.Container{{ID: "abc", Name: "web.1.task1"}}
	p.SetContainers(want)

	got, err := p.ListContainers(context.Background())
	if err != nil {
		t.Fatalf("ListContainers() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "web.1.task1" {
		t.Errorf("ListContainers() = %+v, want %+v", got, want)
	}
}
