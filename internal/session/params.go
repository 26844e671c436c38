package session

import (
	"inferd/internal/device"
	"inferd/internal/engine"
	"inferd/internal/thermal"
)

// GenerationParams are the caller-supplied sampling parameters for one
// request. They are adapted to the thermal state at stream start and never
// persisted.
type GenerationParams struct {
	MaxTokens     int
	Temperature   float32
	TopP          float32
	TopK          int
	RepeatPenalty float32
	Stop          []string
}

// Defaults applied when the corresponding GenerationParams fields are unset.
const (
	defaultMaxTokens   = 512
	defaultTemperature = 0.7
	defaultTopP        = 0.9
	defaultTopK        = 40
	minTemperature     = 0.1
	minTopP            = 0.1
)

func (p GenerationParams) withDefaults() GenerationParams {
	if p.MaxTokens <= 0 {
		p.MaxTokens = defaultMaxTokens
	}
	if p.Temperature <= 0 {
		p.Temperature = defaultTemperature
	}
	if p.TopP <= 0 {
		p.TopP = defaultTopP
	}
	if p.TopK <= 0 {
		p.TopK = defaultTopK
	}
	return p
}

// adaptToThermal degrades parameters for the thermal state read once at
// stream start; they are not re-adapted mid-stream.
func (p GenerationParams) adaptToThermal(state thermal.State) GenerationParams {
	switch state {
	case thermal.StateModerate:
		p.MaxTokens = capInt(p.MaxTokens, 512)
		p.Temperature = floorF(p.Temperature-0.1, minTemperature)
	case thermal.StateSevere:
		p.MaxTokens = capInt(p.MaxTokens, 256)
		p.Temperature = floorF(p.Temperature-0.2, minTemperature)
		p.TopP = floorF(p.TopP-0.1, minTopP)
	case thermal.StateCritical:
		p.MaxTokens = capInt(p.MaxTokens, 128)
		p.Temperature = minTemperature
		p.TopP = 0.5
	}
	return p
}

func (p GenerationParams) sampleParams() engine.SampleParams {
	return engine.SampleParams{
		MaxTokens:     p.MaxTokens,
		Temperature:   p.Temperature,
		TopP:          p.TopP,
		TopK:          p.TopK,
		RepeatPenalty: p.RepeatPenalty,
		Stop:          p.Stop,
	}
}

// classContextCap bounds the context window per device class; 0 means
// uncapped.
var classContextCap = map[device.Class]int{
	device.ClassLowEnd:   512,
	device.ClassBudget:   1024,
	device.ClassMidRange: 2048,
	device.ClassHighEnd:  4096,
	device.ClassFlagship: 0,
}

// classBatchSize scales decode batch size per device class.
var classBatchSize = map[device.Class]int{
	device.ClassLowEnd:   1,
	device.ClassBudget:   1,
	device.ClassMidRange: 2,
	device.ClassHighEnd:  4,
	device.ClassFlagship: 8,
}

// adaptLoadParams fits requested load parameters to the device class. The
// result is immutable for the lifetime of the loaded model.
func adaptLoadParams(p engine.LoadParams, profile device.Profile) engine.LoadParams {
	if p.ContextSize <= 0 {
		p.ContextSize = 2048
	}
	if limit := classContextCap[profile.Class]; limit > 0 && p.ContextSize > limit {
		p.ContextSize = limit
	}
	batch := classBatchSize[profile.Class]
	if batch <= 0 {
		batch = 1
	}
	if p.BatchSize <= 0 || p.BatchSize > batch {
		p.BatchSize = batch
	}
	if p.Threads <= 0 || p.Threads > profile.Cores {
		p.Threads = profile.Cores
	}
	if p.Threads <= 0 {
		p.Threads = 1
	}
	return p
}

func capInt(v, limit int) int {
	if v > limit {
		return limit
	}
	return v
}

func floorF(v, floor float32) float32 {
	if v < floor {
		return floor
	}
	return v
}
