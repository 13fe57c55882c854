package hostclient

import "testing"

func TestCPUPercent(t *testing.T) {
	cases := []struct {
		name                    string
		deltaTotal, deltaSystem uint64
		cpus                    int
		want                    float64
	}{
		{"half of one cpu", 50, 100, 1, 50},
		{"full across 4 cpus", 400, 100, 4, 1600},
		{"no system delta, zero total", 0, 0, 2, 0},
		{"no system delta, capped", 5_000_000_000, 0, 2, 100},
		{"no system delta, under cap", 500_000_000, 0, 2, 25},
		{"no system delta, exactly at cap", 2_000_000_000, 0, 2, 100},
		{"zero cpus treated as one", 50, 100, 0, 50},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CPUPercent(c.deltaTotal, c.deltaSystem, c.cpus)
			if got != c.want {
				t.Errorf("CPUPercent(%d, %d, %d) = %v, want %v", c.deltaTotal, c.deltaSystem, c.cpus, got, c.want)
			}
		})
	}
}

func TestNormalizeMemory(t *testing.T) {
	usageMiB, limitMiB := NormalizeMemory(512*1024*1024, 2*1024*1024*1024)
	if usageMiB != 512 || limitMiB != 2048 {
		t.Errorf("NormalizeMemory(within range) = (%v, %v), want (512, 2048)", usageMiB, limitMiB)
	}

	usageMiB, limitMiB = NormalizeMemory(256*1024*1024, pebibyte+1)
	if usageMiB != 256 || limitMiB != 512 {
		t.Errorf("NormalizeMemory(unlimited, nonzero usage) = (%v, %v), want (256, 512)", usageMiB, limitMiB)
	}

	usageMiB, limitMiB = NormalizeMemory(0, pebibyte+1)
	if usageMiB != 0 || limitMiB != 1024 {
		t.Errorf("NormalizeMemory(unlimited, zero usage) = (%v, %v), want (0, 1024)", usageMiB, limitMiB)
	}
}
