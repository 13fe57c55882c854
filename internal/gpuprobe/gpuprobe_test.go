package gpuprobe

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProbePrefersROCmOverNVIDIA(t *testing.T) {
	run := func(ctx context.Context, argv []string) (string, error) {
		switch argv[0] {
		case "rocm-smi":
			return "device,GPU use (%),VRAM Total Memory (B),VRAM Total Used Memory (B)\ncard0,42,1073741824,536870912", nil
		case "nvidia-smi":
			t.Fatal("nvidia-smi should not be called when rocm-smi succeeds")
		}
		return "", errors.New("unknown command")
	}

	got := Probe(context.Background(), time.Second, run)
	if got == nil {
		t.Fatal("got nil, want a GPUStats")
	}
	if got.UtilizationPercent != 42 {
		t.Errorf("UtilizationPercent = %v, want 42", got.UtilizationPercent)
	}
	if got.VRAMTotalMiB != 1024 {
		t.Errorf("VRAMTotalMiB = %v, want 1024", got.VRAMTotalMiB)
	}
	if got.VRAMUsedMiB != 512 {
		t.Errorf("VRAMUsedMiB = %v, want 512", got.VRAMUsedMiB)
	}
}

func TestProbeFallsBackToNVIDIAWhenROCmAbsent(t *testing.T) {
	run := func(ctx context.Context, argv []string) (string, error) {
		switch argv[0] {
		case "rocm-smi":
			return "", errors.New("executable file not found in $PATH")
		case "nvidia-smi":
			return "17, 2048, 8192", nil
		}
		return "", errors.New("unknown command")
	}

	got := Probe(context.Background(), time.Second, run)
	if got == nil {
		t.Fatal("got nil, want a GPUStats")
	}
	if got.UtilizationPercent != 17 || got.VRAMUsedMiB != 2048 || got.VRAMTotalMiB != 8192 {
		t.Errorf("got %+v, want {17 2048 8192}", got)
	}
}

func TestProbeReturnsNilWhenNeitherToolPresent(t *testing.T) {
	run := func(ctx context.Context, argv []string) (string, error) {
		return "", errors.New("executable file not found in $PATH")
	}

	if got := Probe(context.Background(), time.Second, run); got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}

func TestProbeReturnsNilOnMalformedROCmOutput(t *testing.T) {
	run := func(ctx context.Context, argv []string) (string, error) {
		if argv[0] == "rocm-smi" {
			return "device,GPU use (%),VRAM Total Memory (B),VRAM Total Used Memory (B)\nno data here", nil
		}
		return "", errors.New("not found")
	}

	if got := Probe(context.Background(), time.Second, run); got != nil {
		t.Errorf("got %+v, want nil", got)
	}
}
