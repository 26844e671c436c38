package types

// LoadRequest asks the daemon to load a model from the registry or a path.
type LoadRequest struct {
	// Registry model id. Takes precedence over Path when both are set.
	// example: tinyllama-q4
	Model string `json:"model,omitempty" example:"tinyllama-q4"`
	// Absolute model file path for models outside the registry.
	Path string `json:"path,omitempty"`
	// Requested context window size in tokens; capped per device class.
	// example: 4096
	ContextSize int `json:"context_size,omitempty" example:"4096"`
	// Requested batch size; capped per device class.
	// example: 8
	BatchSize int `json:"batch_size,omitempty" example:"8"`
	// Requested thread count; capped at logical core count.
	// example: 4
	Threads int `json:"threads,omitempty" example:"4"`
	// Random seed; 0 or omitted lets the runtime choose.
	// example: 42
	Seed int64 `json:"seed,omitempty" example:"42"`
}

// LoadResponse reports the outcome of a model load.
type LoadResponse struct {
	// Unique id assigned to this load of the model.
	ModelID string `json:"model_id"`
	// Path the model was loaded from.
	Path string `json:"path"`
	// Effective context size after device-class adaptation.
	// example: 2048
	ContextSize int `json:"context_size" example:"2048"`
	// Effective batch size after device-class adaptation.
	// example: 2
	BatchSize int `json:"batch_size" example:"2"`
	// Effective thread count.
	// example: 4
	Threads int `json:"threads" example:"4"`
}

// SessionRequest creates (or recreates) a conversation session.
type SessionRequest struct {
	// Conversation id the session is keyed by; generated when empty.
	ConversationID string `json:"conversation_id,omitempty"`
	// Optional per-session system prompt overriding the daemon default.
	SystemPrompt string `json:"system_prompt,omitempty"`
}

// SessionResponse is the public view of a conversation session.
type SessionResponse struct {
	ConversationID string `json:"conversation_id"`
	ModelID        string `json:"model_id"`
	CreatedAt      int64  `json:"created_at_unix"`
	LastActivity   int64  `json:"last_activity_unix"`
	// Total tokens currently retained in the sliding window.
	TokenCount int `json:"token_count"`
	// Number of retained conversation exchanges.
	Exchanges int `json:"exchanges"`
}

// GenerateRequest carries a prompt plus caller sampling parameters.
// Parameters may be degraded by the server under thermal pressure.
type GenerateRequest struct {
	// Required prompt text.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Maximum number of new tokens to generate.
	// example: 256
	MaxTokens int `json:"max_tokens,omitempty" example:"256"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Repeat penalty.
	// example: 1.1
	RepeatPenalty float64 `json:"repeat_penalty,omitempty" example:"1.1"`
	// Optional stop sequences. Generation stops when any sequence is matched.
	Stop []string `json:"stop,omitempty"`
}

// EmbeddingRequest asks for an embedding vector over arbitrary text.
type EmbeddingRequest struct {
	Text string `json:"text"`
}

// EmbeddingResponse carries the embedding vector.
type EmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
	Dimension int       `json:"dimension"`
}

// BackendSelectRequest asks the router to pick a backend for a task.
type BackendSelectRequest struct {
	// example: llm_inference
	Task ComputeTask `json:"task" example:"llm_inference"`
}

// BackendRequest names a backend for switch/validate operations.
type BackendRequest struct {
	// example: cpu_neon
	Backend Backend `json:"backend" example:"cpu_neon"`
}

// BackendResponse reports a backend decision.
type BackendResponse struct {
	Backend Backend `json:"backend"`
	// Set by /backend/validate.
	Valid bool `json:"valid,omitempty"`
}

// ModelsResponse wraps the list of models returned by GET /models.
type ModelsResponse struct {
	Models []Model `json:"models"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Overall manager state (unloaded, loading, loaded, unloading).
	// example: loaded
	State string `json:"state" example:"loaded"`
	// Id of the currently loaded model, empty when unloaded.
	ModelID string `json:"model_id,omitempty"`
	// Path of the currently loaded model.
	ModelPath string `json:"model_path,omitempty"`
	// Number of live sessions.
	ActiveSessions int `json:"active_sessions"`
	// Current thermal state.
	// example: normal
	ThermalState string `json:"thermal_state" example:"normal"`
	// Last committed compute backend.
	// example: cpu_neon
	Backend string `json:"backend" example:"cpu_neon"`
	// Device performance class.
	// example: mid_range
	DeviceClass string `json:"device_class" example:"mid_range"`
	// Total generations completed since start.
	GenerationsTotal uint64 `json:"generations_total"`
	// Total conversation exchanges evicted by the sliding window.
	EvictionsTotal uint64 `json:"evictions_total"`
	// Uptime of the server in seconds.
	UptimeSeconds int64 `json:"uptime_seconds"`
	// Server time in unix seconds.
	ServerTimeUnix int64 `json:"server_time_unix"`
	// Last error observed by the manager (if any).
	LastError string `json:"last_error,omitempty"`
}
