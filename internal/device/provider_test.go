package device

import (
	"context"
	"testing"
	"time"

	"inferd/pkg/types"
)

func TestParseClass(t *testing.T) {
	if got := ParseClass(" Flagship "); got != ClassFlagship {
		t.Fatalf("ParseClass flagship: %v", got)
	}
	if got := ParseClass("nonsense"); got != ClassMidRange {
		t.Fatalf("unknown class should default to mid_range, got %v", got)
	}
}

func TestParseSoCVendor(t *testing.T) {
	if got := ParseSoCVendor("QUALCOMM"); got != SoCQualcomm {
		t.Fatalf("ParseSoCVendor: %v", got)
	}
	if got := ParseSoCVendor("rockchip"); got != SoCUnknown {
		t.Fatalf("unknown vendor should map to unknown, got %v", got)
	}
}

func TestProfile_Supports(t *testing.T) {
	p := Profile{Capabilities: []Capability{CapNEON, CapOpenCL}}
	if !p.Supports(CapOpenCL) {
		t.Fatalf("expected opencl support")
	}
	if p.Supports(CapQNN) {
		t.Fatalf("unexpected qnn support")
	}
}

func TestRequiredCapability(t *testing.T) {
	for _, b := range types.Backends() {
		if _, ok := RequiredCapability(b); !ok {
			t.Fatalf("no capability mapping for %s", b)
		}
	}
	if _, ok := RequiredCapability(types.Backend("bogus")); ok {
		t.Fatalf("unknown backend must not map to a capability")
	}
}

func TestNewStaticProvider_Defaults(t *testing.T) {
	p := NewStaticProvider(Profile{})
	prof := p.Profile()
	if prof.Cores <= 0 {
		t.Fatalf("cores not filled from runtime: %d", prof.Cores)
	}
	if !prof.Supports(CapNEON) {
		t.Fatalf("default profile should advertise neon")
	}
}

func TestRunBenchmark_MarksUnsupportedBackends(t *testing.T) {
	p := NewStaticProvider(Profile{
		SoC:          SoCQualcomm,
		Class:        ClassFlagship,
		Cores:        4,
		Capabilities: []Capability{CapNEON, CapOpenCL},
	})
	res, err := p.RunBenchmark(context.Background())
	if err != nil {
		t.Fatalf("RunBenchmark: %v", err)
	}
	if len(res.Results) != len(types.Backends()) {
		t.Fatalf("expected a result per backend, got %d", len(res.Results))
	}
	cpu, ok := res.Get(types.BackendCPUNeon)
	if !ok || !cpu.Success || cpu.PerformanceScore <= 0 {
		t.Fatalf("cpu result: %+v ok=%v", cpu, ok)
	}
	cl, _ := res.Get(types.BackendOpenCLAdreno)
	if !cl.Success {
		t.Fatalf("opencl should succeed with the capability present")
	}
	qnn, _ := res.Get(types.BackendQNNHexagon)
	if qnn.Success || qnn.PerformanceScore != 0 {
		t.Fatalf("qnn without capability must fail with zero score: %+v", qnn)
	}
	if res.MeasuredAt.IsZero() {
		t.Fatalf("MeasuredAt not set")
	}
	if res.Age(res.MeasuredAt.Add(time.Hour)) != time.Hour {
		t.Fatalf("Age miscomputed")
	}
}

func TestRunBenchmark_Cancellation(t *testing.T) {
	p := NewStaticProvider(Profile{Cores: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.RunBenchmark(ctx); err == nil {
		t.Fatalf("expected cancellation error")
	}
}
