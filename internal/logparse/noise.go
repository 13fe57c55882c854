package logparse

import "strings"

// knownNoise lists substrings of known-benign log lines that should be
// dropped silently from ingestion (spec.md §7 "Parse noise"). Matching is
// substring, not regex — these are fixed strings emitted verbatim by the
// Go runtime/cgroup subsystem, not patterns.
var knownNoise = []string{
	"failed to parse CPU allowed micro secs",
}

// IsNoise reports whether line is a known-benign line that should never
// reach the index.
func IsNoise(line string) bool {
	for _, n := range knownNoise {
		if strings.Contains(line, n) {
			return true
		}
	}
	return false
}
