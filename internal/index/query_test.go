package index

import (
	"testing"
	"time"
)

func TestParseESTimestampHandlesFractionalAndPlainRFC3339(t *testing.T) {
	cases := []string{
		"2026-01-01T00:00:00.000Z",
		"2026-01-01T00:00:00Z",
	}
	for _, c := range cases {
		if _, err := parseESTimestamp(c); err != nil {
			t.Errorf("parseESTimestamp(%q) error = %v", c, err)
		}
	}
	if _, err := parseESTimestamp("not-a-timestamp"); err == nil {
		t.Error("parseESTimestamp() on garbage input should error")
	}
}

func TestBucketsToDocCountPointsSkipsUnparseable(t *testing.T) {
	var resp dateHistogramResp
	resp.Aggregations.OverTime.Buckets = []struct {
		KeyAsString string `json:"key_as_string"`
		DocCount    int    `json:"doc_count"`
		AvgValue    *struct {
			Value *float64 `json:"value"`
		} `json:"avg_value,omitempty"`
	}{
		{KeyAsString: "2026-01-01T00:00:00.000Z", DocCount: 5},
		{KeyAsString: "garbage", DocCount: 99},
	}

	points := bucketsToDocCountPoints(resp)
	if len(points) != 1 {
		t.Fatalf("bucketsToDocCountPoints() = %d points, want 1 (garbage bucket dropped)", len(points))
	}
	if points[0].Value != 5 {
		t.Errorf("points[0].Value = %v, want 5", points[0].Value)
	}
	want := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if !points[0].Timestamp.Equal(want) {
		t.Errorf("points[0].Timestamp = %v, want %v", points[0].Timestamp, want)
	}
}

func TestTermsAggConvertsBuckets(t *testing.T) {
	var a termsAgg
	a.Buckets = []struct {
		Key      string `json:"key"`
		DocCount int    `json:"doc_count"`
	}{
		{Key: "host-a", DocCount: 3},
		{Key: "host-b", DocCount: 1},
	}
	got := a.terms()
	if len(got) != 2 || got[0].Key != "host-a" || got[0].Count != 3 {
		t.Errorf("terms() = %+v, want [{host-a 3} {host-b 1}]", got)
	}
}
