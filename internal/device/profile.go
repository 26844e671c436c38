// Package device describes the host device to the routing and session layers:
// SoC/GPU identity, RAM, performance class, and hardware capability flags.
// The core never mutates a Profile; it is a read-only input to decisions.
package device

import (
	"context"
	"strings"
)

// Class is a coarse performance tier derived from device profiling.
type Class string

const (
	ClassLowEnd   Class = "low_end"
	ClassBudget   Class = "budget"
	ClassMidRange Class = "mid_range"
	ClassHighEnd  Class = "high_end"
	ClassFlagship Class = "flagship"
)

// ParseClass maps a string to a Class, defaulting to mid_range.
func ParseClass(s string) Class {
	switch Class(strings.ToLower(strings.TrimSpace(s))) {
	case ClassLowEnd, ClassBudget, ClassMidRange, ClassHighEnd, ClassFlagship:
		return Class(strings.ToLower(strings.TrimSpace(s)))
	default:
		return ClassMidRange
	}
}

// SoCVendor identifies the system-on-chip vendor.
type SoCVendor string

const (
	SoCQualcomm SoCVendor = "qualcomm"
	SoCMediaTek SoCVendor = "mediatek"
	SoCExynos   SoCVendor = "exynos"
	SoCTensor   SoCVendor = "tensor"
	SoCUnknown  SoCVendor = "unknown"
)

// ParseSoCVendor maps a string to a SoCVendor, defaulting to unknown.
func ParseSoCVendor(s string) SoCVendor {
	switch SoCVendor(strings.ToLower(strings.TrimSpace(s))) {
	case SoCQualcomm, SoCMediaTek, SoCExynos, SoCTensor:
		return SoCVendor(strings.ToLower(strings.TrimSpace(s)))
	default:
		return SoCUnknown
	}
}

// Capability is a hardware feature flag advertised by the device.
type Capability string

const (
	CapNEON   Capability = "neon"
	CapOpenCL Capability = "opencl"
	CapVulkan Capability = "vulkan"
	CapQNN    Capability = "qnn"
	CapFP16   Capability = "fp16"
	CapNPU    Capability = "npu"
)

// Profile is an immutable snapshot of device identity and capabilities.
type Profile struct {
	SoC            SoCVendor
	GPU            string
	TotalRAMMB     int
	AvailableRAMMB int
	AndroidAPI     int
	Class          Class
	Cores          int
	Capabilities   []Capability
}

// Supports reports whether the profile advertises capability c.
func (p Profile) Supports(c Capability) bool {
	for _, have := range p.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// Provider exposes the device capability snapshot and the benchmark
// primitive. RunBenchmark may be slow and must be safe to call from a
// background task.
type Provider interface {
	Profile() Profile
	RunBenchmark(ctx context.Context) (BenchmarkResults, error)
}
