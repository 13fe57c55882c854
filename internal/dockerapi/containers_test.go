package dockerapi

import (
	"encoding/binary"
	"testing"
)

func mkFrame(stream byte, payload string) []byte {
	buf := make([]byte, 8+len(payload))
	buf[0] = stream
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	return buf
}

func TestToLogEntriesFiltersNoiseAndScansLevel(t *testing.T) {
	c := &Client{hostName: "host-a"}

	var raw []byte
	raw = append(raw, mkFrame(1, "2024-01-01T00:00:00.000000000Z failed to parse CPU allowed micro secs\n")...)
	raw = append(raw, mkFrame(2, "2024-01-01T00:00:01.000000000Z error: connection refused status=502\n")...)

	entries := c.toLogEntries(raw, "abc123", "my-container", map[string]string{
		"com.docker.compose.project": "proj",
		"com.docker.compose.service": "svc",
	})

	if len(entries) != 1 {
		t.Fatalf("toLogEntries() = %d entries, want 1 (noise line dropped)", len(entries))
	}
	e := entries[0]
	if e.Level != "ERROR" || e.HTTPStatus != 502 {
		t.Errorf("entry = %+v, want Level=ERROR HTTPStatus=502", e)
	}
	if e.StackProject != "proj" || e.StackService != "svc" {
		t.Errorf("entry stack labels = %q/%q, want proj/svc", e.StackProject, e.StackService)
	}
	if e.Host != "host-a" || e.ContainerID != "abc123" || e.ContainerName != "my-container" {
		t.Errorf("entry identity = %+v", e)
	}
}

func TestFirstOr(t *testing.T) {
	if got := firstOr([]string{"/foo"}, "fallback"); got != "/foo" {
		t.Errorf("firstOr() = %q, want /foo", got)
	}
	if got := firstOr(nil, "fallback"); got != "fallback" {
		t.Errorf("firstOr(nil) = %q, want fallback", got)
	}
}
