package main

import (
	"testing"
	"time"

	"github.com/dockfleet/dockfleet/internal/actionqueue"
	"github.com/dockfleet/dockfleet/internal/config"
	"github.com/dockfleet/dockfleet/internal/logging"
)

func TestAgentBackoffSequenceCapsAtMaxDelay(t *testing.T) {
	bo := newAgentBackoff()
	want := []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second, 30 * time.Second, 30 * time.Second}
	for i, w := range want {
		if got := bo.next(); got != w {
			t.Errorf("next() #%d = %v, want %v", i, got, w)
		}
	}
}

func TestAgentBackoffResetRestartsSequence(t *testing.T) {
	bo := newAgentBackoff()
	bo.next()
	bo.next()
	bo.reset()
	if got := bo.next(); got != 1*time.Second {
		t.Errorf("next() after reset = %v, want 1s", got)
	}
}

func TestStringSliceExtractsStringsFromJSONPayload(t *testing.T) {
	payload := map[string]any{"argv": []any{"printenv", "PATH"}}
	got := stringSlice(payload["argv"])
	want := []string{"printenv", "PATH"}
	if len(got) != len(want) {
		t.Fatalf("got = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestStringSliceReturnsNilForNonArrayPayload(t *testing.T) {
	if got := stringSlice("not-an-array"); got != nil {
		t.Errorf("got = %v, want nil", got)
	}
}

func TestSafeHandleRecoversFromExecutePanic(t *testing.T) {
	a := &agent{log: logging.New(false), cfg: config.NewTestConfig()}
	act := actionqueue.Action{ID: "a1", Kind: "bogus-kind-that-forces-nothing"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		a.safeHandle(act)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("safeHandle did not return")
	}
}
