package logparse

import "testing"

func TestIsNoise(t *testing.T) {
	if !IsNoise("W0101 00:00:00 cgroup.go:1 failed to parse CPU allowed micro secs: bad") {
		t.Error("IsNoise() = false for known-noise line, want true")
	}
	if IsNoise("2024-01-01 application started successfully") {
		t.Error("IsNoise() = true for ordinary line, want false")
	}
}
