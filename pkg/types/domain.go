package types

// Model represents a discoverable or loadable LLM model on disk.
type Model struct {
	// Stable identifier for the model.
	// example: tinyllama-q4
	ID string `json:"id" example:"tinyllama-q4"`
	// Human-friendly name.
	// example: TinyLlama (Q4)
	Name string `json:"name" example:"TinyLlama (Q4)"`
	// Absolute path to the model file on disk.
	// example: /home/user/models/TinyLlama.Q4_K_M.gguf
	Path string `json:"path" example:"/home/user/models/TinyLlama.Q4_K_M.gguf"`
	// Quantization level or variant string.
	// example: Q4_K_M
	Quant string `json:"quant" example:"Q4_K_M"`
	// Optional family (e.g., llama, mistral, phi).
	// example: llama
	Family string `json:"family,omitempty" example:"llama"`
}

// Backend identifies a concrete compute path for model execution.
type Backend string

const (
	// BackendCPUNeon executes on CPU vector instructions (NEON/SVE).
	BackendCPUNeon Backend = "cpu_neon"
	// BackendOpenCLAdreno executes GPU compute kernels via OpenCL on Adreno.
	BackendOpenCLAdreno Backend = "opencl_adreno"
	// BackendVulkanMali executes GPU compute via Vulkan on Mali.
	BackendVulkanMali Backend = "vulkan_mali"
	// BackendQNNHexagon executes on the Hexagon DSP through QNN.
	BackendQNNHexagon Backend = "qnn_hexagon"
)

// Backends lists the closed set of known backends.
func Backends() []Backend {
	return []Backend{BackendCPUNeon, BackendOpenCLAdreno, BackendVulkanMali, BackendQNNHexagon}
}

// Valid reports whether b is a member of the closed backend set.
func (b Backend) Valid() bool {
	switch b {
	case BackendCPUNeon, BackendOpenCLAdreno, BackendVulkanMali, BackendQNNHexagon:
		return true
	}
	return false
}

// ComputeTask classifies the workload a backend is selected for.
type ComputeTask string

const (
	TaskLLMInference ComputeTask = "llm_inference"
	TaskEmbedding    ComputeTask = "embedding_generation"
	TaskSafetyCheck  ComputeTask = "safety_check"
	TaskASR          ComputeTask = "asr_transcription"
)

// Valid reports whether t is a known compute task.
func (t ComputeTask) Valid() bool {
	switch t {
	case TaskLLMInference, TaskEmbedding, TaskSafetyCheck, TaskASR:
		return true
	}
	return false
}
