package router

import (
	"inferd/internal/device"
	"inferd/pkg/types"
)

// matrixKey indexes the static selection matrix.
type matrixKey struct {
	Vendor device.SoCVendor
	Class  device.Class
}

// selectionMatrix is the ordered backend preference per (task, SoC vendor,
// device class). It is data, not code: new rows are added here without
// touching selection logic. Pairs absent from the table fall back to
// {cpu_neon}.
var selectionMatrix = map[types.ComputeTask]map[matrixKey][]types.Backend{
	types.TaskLLMInference: {
		{device.SoCQualcomm, device.ClassFlagship}: {types.BackendQNNHexagon, types.BackendOpenCLAdreno, types.BackendCPUNeon},
		{device.SoCQualcomm, device.ClassHighEnd}:  {types.BackendOpenCLAdreno, types.BackendQNNHexagon, types.BackendCPUNeon},
		{device.SoCQualcomm, device.ClassMidRange}: {types.BackendOpenCLAdreno, types.BackendCPUNeon},
		{device.SoCQualcomm, device.ClassBudget}:   {types.BackendCPUNeon},
		{device.SoCMediaTek, device.ClassFlagship}: {types.BackendVulkanMali, types.BackendCPUNeon},
		{device.SoCMediaTek, device.ClassHighEnd}:  {types.BackendVulkanMali, types.BackendCPUNeon},
		{device.SoCMediaTek, device.ClassMidRange}: {types.BackendCPUNeon, types.BackendVulkanMali},
		{device.SoCExynos, device.ClassFlagship}:   {types.BackendVulkanMali, types.BackendCPUNeon},
		{device.SoCExynos, device.ClassHighEnd}:    {types.BackendVulkanMali, types.BackendCPUNeon},
		{device.SoCTensor, device.ClassFlagship}:   {types.BackendVulkanMali, types.BackendCPUNeon},
	},
	types.TaskEmbedding: {
		{device.SoCQualcomm, device.ClassFlagship}: {types.BackendQNNHexagon, types.BackendCPUNeon},
		{device.SoCQualcomm, device.ClassHighEnd}:  {types.BackendQNNHexagon, types.BackendCPUNeon},
		{device.SoCQualcomm, device.ClassMidRange}: {types.BackendCPUNeon},
		{device.SoCMediaTek, device.ClassFlagship}: {types.BackendVulkanMali, types.BackendCPUNeon},
	},
	types.TaskSafetyCheck: {
		// Safety checks are latency-bound and small; CPU first everywhere.
		{device.SoCQualcomm, device.ClassFlagship}: {types.BackendCPUNeon, types.BackendQNNHexagon},
		{device.SoCQualcomm, device.ClassHighEnd}:  {types.BackendCPUNeon, types.BackendQNNHexagon},
	},
	types.TaskASR: {
		{device.SoCQualcomm, device.ClassFlagship}: {types.BackendQNNHexagon, types.BackendCPUNeon},
		{device.SoCQualcomm, device.ClassHighEnd}:  {types.BackendQNNHexagon, types.BackendCPUNeon},
		{device.SoCMediaTek, device.ClassFlagship}: {types.BackendVulkanMali, types.BackendCPUNeon},
	},
}

// severeAllowed lists backends permitted to stay ahead of the CPU under
// severe thermal pressure. The Hexagon DSP is the low-power inference path.
var severeAllowed = map[types.Backend]bool{
	types.BackendQNNHexagon: true,
}

// weights are the benchmark scoring coefficients for one task. Tunable
// constants, not a contract.
type weights struct {
	Perf    float64
	Latency float64
	Memory  float64
}

// taskWeights: LLM inference weights raw performance highest; safety checks
// weight latency highest; embedding is balanced and transcription leans on
// latency.
var taskWeights = map[types.ComputeTask]weights{
	types.TaskLLMInference: {Perf: 0.6, Latency: 0.3, Memory: 0.2},
	types.TaskSafetyCheck:  {Perf: 0.2, Latency: 0.6, Memory: 0.2},
	types.TaskEmbedding:    {Perf: 0.4, Latency: 0.3, Memory: 0.3},
	types.TaskASR:          {Perf: 0.3, Latency: 0.5, Memory: 0.2},
}

// candidatesFor returns the ordered preference list for (task, vendor, class),
// defaulting to CPU only.
func candidatesFor(task types.ComputeTask, vendor device.SoCVendor, class device.Class) []types.Backend {
	if rows, ok := selectionMatrix[task]; ok {
		if list, ok := rows[matrixKey{vendor, class}]; ok {
			out := make([]types.Backend, len(list))
			copy(out, list)
			return out
		}
	}
	return []types.Backend{types.BackendCPUNeon}
}

// score computes the weighted benchmark score for one measurement.
func score(w weights, r device.BenchmarkResult) float64 {
	execMs := float64(r.ExecutionTime.Milliseconds())
	return w.Perf*r.PerformanceScore +
		w.Latency*(1000.0/(execMs+1)) +
		w.Memory*(1000.0/(float64(r.MemoryMB)+1))
}
