package device

import (
	"time"

	"inferd/pkg/types"
)

// BenchmarkResult measures one backend's performance on this device.
type BenchmarkResult struct {
	Backend types.Backend
	// Relative performance score; higher is better.
	PerformanceScore float64
	// Wall-clock time of the benchmark workload.
	ExecutionTime time.Duration
	// Peak memory used by the workload, in MB.
	MemoryMB int
	// False when the backend could not complete the workload.
	Success bool
}

// BenchmarkResults groups per-backend measurements with a sampling time.
type BenchmarkResults struct {
	Results    map[types.Backend]BenchmarkResult
	MeasuredAt time.Time
}

// Get returns the result for backend b, if measured.
func (r BenchmarkResults) Get(b types.Backend) (BenchmarkResult, bool) {
	res, ok := r.Results[b]
	return res, ok
}

// Age returns the wall-clock age of the measurement.
func (r BenchmarkResults) Age(now time.Time) time.Duration {
	return now.Sub(r.MeasuredAt)
}
