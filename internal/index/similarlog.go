package index

import (
	"regexp"
	"strings"
)

var (
	reISOTimestamp  = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}[.\d]*Z?`)
	reClockTime     = regexp.MustCompile(`\b\d{2}:\d{2}:\d{2}[.\d]*\b`)
	reDateDash      = regexp.MustCompile(`\b\d{4}[-/]\d{2}[-/]\d{2}\b`)
	reDateSlash     = regexp.MustCompile(`\b\d{2}[-/]\d{2}[-/]\d{4}\b`)
	reUUID          = regexp.MustCompile(`(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
	reHex           = regexp.MustCompile(`(?i)\b[0-9a-f]{12,}\b`)
	reIPv4          = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	reNumber        = regexp.MustCompile(`\b\d+\b`)
	reNonAlphaNum   = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
	reExtraSpaces   = regexp.MustCompile(`\s+`)
)

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "her": true,
	"was": true, "one": true, "our": true, "out": true, "http": true,
	"https": true, "info": true, "get": true, "post": true, "put": true,
	"delete": true, "from": true, "has": true, "been": true, "moved": true,
	"will": true, "that": true, "this": true, "with": true, "have": true,
	"your": true, "usr": true, "local": true, "lib": true, "python": true,
	"site": true, "packages": true,
}

// keyWords strips timestamps, UUIDs, hex IDs, IPs, and digits from a
// message and returns every remaining word of at least 3 characters,
// skipping a fixed stop-word set; SimilarLogCount keeps the first 6
// (spec.md §4.4 "Similar-log count"). Mirrors the field-stripping order of the system this was
// distilled from.
func keyWords(message string) []string {
	s := message
	s = reISOTimestamp.ReplaceAllString(s, "")
	s = reClockTime.ReplaceAllString(s, "")
	s = reDateDash.ReplaceAllString(s, "")
	s = reDateSlash.ReplaceAllString(s, "")
	s = reUUID.ReplaceAllString(s, "")
	s = reHex.ReplaceAllString(s, "")
	s = reIPv4.ReplaceAllString(s, "")
	s = reNumber.ReplaceAllString(s, "")
	s = reNonAlphaNum.ReplaceAllString(s, " ")
	s = strings.TrimSpace(reExtraSpaces.ReplaceAllString(s, " "))

	var words []string
	for _, w := range strings.Fields(s) {
		lw := strings.ToLower(w)
		if len(lw) < 3 || stopWords[lw] {
			continue
		}
		words = append(words, lw)
	}
	return words
}
