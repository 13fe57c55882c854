package hostclient

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsKindWalksWrapChain(t *testing.T) {
	base := errors.New("connection reset")
	wrapped := NewError(KindTransient, "ContainerStats", "host-a", base)
	doubleWrapped := fmt.Errorf("collector cycle failed: %w", wrapped)

	if !IsKind(doubleWrapped, KindTransient) {
		t.Error("IsKind() = false for wrapped transient error, want true")
	}
	if IsKind(doubleWrapped, KindFatal) {
		t.Error("IsKind() = true for mismatched kind, want false")
	}
	if IsKind(base, KindTransient) {
		t.Error("IsKind() = true for a plain error with no hostclient.Error, want false")
	}
}

func TestErrorMessageIncludesHost(t *testing.T) {
	e := NewError(KindConfig, "ExecuteAction", "host-b", errors.New("unknown action"))
	got := e.Error()
	want := "ExecuteAction on host-b: config: unknown action"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
