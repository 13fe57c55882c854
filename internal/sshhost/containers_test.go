package sshhost

import "testing"

func TestParseLabels(t *testing.T) {
	got := parseLabels("com.docker.compose.project=proj,com.docker.compose.service=svc,other=")
	if got["com.docker.compose.project"] != "proj" || got["com.docker.compose.service"] != "svc" {
		t.Errorf("parseLabels() = %v", got)
	}
}

func TestParsePercent(t *testing.T) {
	if got := parsePercent("12.34%"); got != 12.34 {
		t.Errorf("parsePercent() = %v, want 12.34", got)
	}
}

func TestParseHumanSize(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"12MiB", 12 * 1024 * 1024},
		{"1.9GiB", 1.9 * 1024 * 1024 * 1024},
		{"648B", 648},
		{"0B", 0},
	}
	for _, c := range cases {
		if got := parseHumanSize(c.in); got != c.want {
			t.Errorf("parseHumanSize(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseSlashPair(t *testing.T) {
	a, b := parseSlashPair("12MiB / 1.9GiB", parseSizeMiB)
	if a <= 0 || b <= 0 {
		t.Errorf("parseSlashPair() = (%v, %v), want both positive", a, b)
	}
}

func TestParseReplicaCount(t *testing.T) {
	if got := parseReplicaCount("2/3"); got != 2 {
		t.Errorf("parseReplicaCount(2/3) = %d, want 2", got)
	}
}
