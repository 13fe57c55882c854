// Package logparse turns the Docker multiplexed log/exec byte stream into
// structured log lines, and classifies each line with a best-effort level,
// HTTP status, and parsed JSON fields. It is a hot path — see ScanLine —
// and deliberately avoids per-call regex compilation.
package logparse

import (
	"encoding/binary"
	"strings"
	"time"
	"unicode/utf8"
)

// StreamKind identifies which Docker stream a frame came from.
type StreamKind byte

const (
	StreamStdin  StreamKind = 0
	StreamStdout StreamKind = 1
	StreamStderr StreamKind = 2
)

// Frame is one demultiplexed chunk of a Docker log/exec stream.
type Frame struct {
	Stream  StreamKind
	Payload []byte
}

// ParseFrames walks a multiplexed Docker stream: a sequence of
// [1-byte stream][3 bytes padding][4-byte big-endian size][size bytes payload].
// It advances frame by frame and returns every complete frame found; a
// trailing short/incomplete frame is silently dropped (the next read will
// re-deliver it once complete, same as the daemon's own framing).
func ParseFrames(raw []byte) []Frame {
	var frames []Frame
	for len(raw) >= 8 {
		kind := StreamKind(raw[0])
		size := binary.BigEndian.Uint32(raw[4:8])
		raw = raw[8:]
		if uint64(len(raw)) < uint64(size) {
			break
		}
		payload := raw[:size]
		raw = raw[size:]
		frames = append(frames, Frame{Stream: kind, Payload: payload})
	}
	return frames
}

// DecodeUTF8Lossy decodes b as UTF-8, substituting the replacement
// character for invalid sequences rather than failing.
func DecodeUTF8Lossy(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

// splitTimestamp detects and removes a leading RFC3339 timestamp (with an
// optional fractional part up to nanoseconds, truncated to microseconds)
// from a raw log line, as the Docker daemon prepends when timestamps are
// requested. Returns the zero time and the original line unchanged if no
// timestamp could be parsed.
func splitTimestamp(line string) (time.Time, string) {
	sp := strings.IndexByte(line, ' ')
	if sp < 0 {
		return time.Time{}, line
	}
	candidate := line[:sp]
	ts, err := time.Parse(time.RFC3339Nano, candidate)
	if err != nil {
		return time.Time{}, line
	}
	return ts.Truncate(time.Microsecond), line[sp+1:]
}

// ParsedLine is one fully decoded, timestamp-split log line.
type ParsedLine struct {
	Stream    StreamKind
	Timestamp time.Time // zero if the line carried no detectable timestamp
	Text      string
}

// ParseLog parses a raw Docker logs response body into lines. It first
// tries the multiplexed frame format; if no frames were found and the
// blob is non-empty, it falls back to treating raw as a single plain-text
// stream (TTY-attached containers skip the multiplexed header entirely).
func ParseLog(raw []byte, fallbackStream StreamKind) []ParsedLine {
	frames := ParseFrames(raw)
	if len(frames) == 0 && len(raw) > 0 {
		return splitLines(DecodeUTF8Lossy(raw), fallbackStream)
	}

	var lines []ParsedLine
	for _, f := range frames {
		lines = append(lines, splitLines(DecodeUTF8Lossy(f.Payload), f.Stream)...)
	}
	return lines
}

func splitLines(text string, stream StreamKind) []ParsedLine {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return nil
	}
	rawLines := strings.Split(text, "\n")
	out := make([]ParsedLine, 0, len(rawLines))
	for _, l := range rawLines {
		if l == "" {
			continue
		}
		ts, rest := splitTimestamp(l)
		out = append(out, ParsedLine{Stream: stream, Timestamp: ts, Text: rest})
	}
	return out
}
