// Package engine abstracts the native tensor-execution primitive. The session
// layer drives it as tokenize -> decode -> sample -> detokenize, exposed here
// as a pull-based token stream plus an embedding call. The real runtime is
// go-llama.cpp behind the 'llama' build tag; default builds get a stub that
// fails fast instead of mocking inference.
package engine

import (
	"context"
	"errors"
)

// ErrRuntimeUnavailable indicates the native runtime was not compiled in.
var ErrRuntimeUnavailable = errors.New("llama runtime not built (missing 'llama' build tag)")

// LoadParams are fixed for the lifetime of a loaded model.
type LoadParams struct {
	ContextSize int
	BatchSize   int
	Threads     int
	Seed        int64
}

// SampleParams control one generation pass.
type SampleParams struct {
	MaxTokens     int
	Temperature   float32
	TopP          float32
	TopK          int
	RepeatPenalty float32
	Stop          []string
}

// Token is one detokenized piece emitted by the runtime.
type Token struct {
	Text string
	// Index is the zero-based position within the generation.
	Index int
	// Confidence is the sampled token's probability, when the runtime
	// reports one; 0 otherwise.
	Confidence float64
}

// Stream is a pull-based token source for one generation. Next returns io.EOF
// on natural completion. Close releases per-generation decode state and must
// be safe to call after EOF or mid-stream.
type Stream interface {
	Next(ctx context.Context) (Token, error)
	Close() error
}

// Model is a loaded model handle.
type Model interface {
	// Start begins a generation over the fully rendered prompt.
	Start(prompt string, params SampleParams) (Stream, error)
	// Embed returns an embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// CountTokens estimates the token length of text using the model's
	// tokenizer. Used for sliding-window accounting.
	CountTokens(text string) int
	Close() error
}

// Engine loads models from disk.
type Engine interface {
	Load(ctx context.Context, path string, params LoadParams) (Model, error)
}

// Built reports whether the native llama runtime was compiled into this
// binary.
func Built() bool { return llamaBuilt }

// approxTokens is the fallback token-length estimate when the runtime
// tokenizer is unavailable: roughly four characters per token.
func approxTokens(text string) int {
	n := (len(text) + 3) / 4
	if n < 1 && len(text) > 0 {
		n = 1
	}
	return n
}
