package main

import (
	"testing"

	"inferd/internal/config"
	"inferd/internal/device"
)

func TestDeviceProvider_FromConfig(t *testing.T) {
	cfg := config.Config{Device: config.DeviceConfig{
		SoCVendor:    "Qualcomm",
		Class:        "flagship",
		Cores:        8,
		Capabilities: []string{" NEON ", "opencl", "qnn"},
	}}
	p := deviceProvider(cfg).Profile()
	if p.SoC != device.SoCQualcomm || p.Class != device.ClassFlagship || p.Cores != 8 {
		t.Fatalf("profile: %+v", p)
	}
	if !p.Supports(device.CapNEON) || !p.Supports(device.CapOpenCL) || !p.Supports(device.CapQNN) {
		t.Fatalf("capabilities not normalized: %v", p.Capabilities)
	}
}

func TestDeviceProvider_Defaults(t *testing.T) {
	p := deviceProvider(config.Config{}).Profile()
	if p.Class != device.ClassMidRange {
		t.Fatalf("default class: %v", p.Class)
	}
	if !p.Supports(device.CapNEON) {
		t.Fatalf("default capabilities must include neon")
	}
	if p.Cores <= 0 {
		t.Fatalf("cores: %d", p.Cores)
	}
}

func TestDefaultLoadParams(t *testing.T) {
	p := defaultLoadParams(config.Config{ContextSize: 4096, Threads: 6})
	if p.ContextSize != 4096 || p.Threads != 6 {
		t.Fatalf("load params: %+v", p)
	}
	if p = defaultLoadParams(config.Config{}); p.ContextSize != 0 || p.Threads != 0 {
		t.Fatalf("unspecified tunables must stay zero: %+v", p)
	}
}

func TestSetupLogger_LevelFallback(t *testing.T) {
	l := setupLogger(config.Config{LogLevel: "nonsense"})
	if l.GetLevel().String() != "info" {
		t.Fatalf("level: %s", l.GetLevel())
	}
	l = setupLogger(config.Config{LogLevel: "debug"})
	if l.GetLevel().String() != "debug" {
		t.Fatalf("level: %s", l.GetLevel())
	}
}
