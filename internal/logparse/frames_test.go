package logparse

import (
	"encoding/binary"
	"testing"
	"time"
)

func buildFrame(stream StreamKind, payload string) []byte {
	buf := make([]byte, 8+len(payload))
	buf[0] = byte(stream)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	return buf
}

func TestParseFramesRoundTrip(t *testing.T) {
	var raw []byte
	raw = append(raw, buildFrame(StreamStdout, "2024-01-02T03:04:05.123456789Z hello\n")...)
	raw = append(raw, buildFrame(StreamStderr, "2024-01-02T03:04:06.000000000Z oops\n")...)

	frames := ParseFrames(raw)
	if len(frames) != 2 {
		t.Fatalf("ParseFrames() returned %d frames, want 2", len(frames))
	}
	if frames[0].Stream != StreamStdout || frames[1].Stream != StreamStderr {
		t.Errorf("stream kinds = %v, %v", frames[0].Stream, frames[1].Stream)
	}
}

func TestParseFramesIncompleteTrailerDropped(t *testing.T) {
	full := buildFrame(StreamStdout, "complete\n")
	partial := buildFrame(StreamStdout, "truncated-payload")
	partial = partial[:len(partial)-5] // chop off the tail of the payload

	raw := append(full, partial...)
	frames := ParseFrames(raw)
	if len(frames) != 1 {
		t.Fatalf("ParseFrames() = %d frames, want 1 (incomplete trailer dropped)", len(frames))
	}
}

func TestParseLogTimestampSplit(t *testing.T) {
	raw := buildFrame(StreamStdout, "2024-06-01T12:00:00.500000001Z line one\n")
	lines := ParseLog(raw, StreamStdout)
	if len(lines) != 1 {
		t.Fatalf("ParseLog() = %d lines, want 1", len(lines))
	}
	want := time.Date(2024, 6, 1, 12, 0, 0, 500000000, time.UTC).Truncate(time.Microsecond)
	if !lines[0].Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", lines[0].Timestamp, want)
	}
	if lines[0].Text != "line one" {
		t.Errorf("Text = %q, want %q", lines[0].Text, "line one")
	}
}

func TestParseLogFallsBackToPlainText(t *testing.T) {
	raw := []byte("plain line without framing\nsecond line\n")
	lines := ParseLog(raw, StreamStdout)
	if len(lines) != 2 {
		t.Fatalf("ParseLog() fallback = %d lines, want 2", len(lines))
	}
	if lines[0].Text != "plain line without framing" {
		t.Errorf("Text = %q", lines[0].Text)
	}
}

func TestParseLogEmptyBlobProducesNoLines(t *testing.T) {
	if lines := ParseLog(nil, StreamStdout); len(lines) != 0 {
		t.Errorf("ParseLog(nil) = %d lines, want 0", len(lines))
	}
}

func TestDecodeUTF8LossyReplacesInvalidBytes(t *testing.T) {
	invalid := []byte{'h', 'i', 0xff, 0xfe}
	out := DecodeUTF8Lossy(invalid)
	if out[:2] != "hi" {
		t.Errorf("DecodeUTF8Lossy() = %q, want prefix %q", out, "hi")
	}
}
