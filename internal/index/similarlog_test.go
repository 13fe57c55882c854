package index

import "testing"

func TestKeyWordsStripsDynamicContentAndStopWords(t *testing.T) {
	msg := "2026-01-01T00:00:00.123Z ERROR request 550e8400-e29b-41d4-a716-446655440000 from 10.0.0.1 timed out after 503 retries"
	words := keyWords(msg)
	for _, w := range words {
		if w == "from" || w == "out" || w == "503" {
			t.Errorf("keyWords() kept stop word or stripped number %q", w)
		}
	}
	found := map[string]bool{}
	for _, w := range words {
		found[w] = true
	}
	if !found["error"] || !found["request"] || !found["timed"] || !found["retries"] {
		t.Errorf("keyWords() = %v, missing expected meaningful words", words)
	}
}

func TestKeyWordsOnlyStopWordsAndDigitsYieldsNone(t *testing.T) {
	msg := "200 and the for are but get post 42 1234"
	words := keyWords(msg)
	if len(words) != 0 {
		t.Errorf("keyWords() = %v, want none (all stop words/digits)", words)
	}
}
