//go:build !llama

package engine

import "context"

// This file provides a no-CGO stub compiled when the 'llama' build tag is NOT
// set, keeping default builds and CI CGO-free. The real engine lives in
// engine_llama.go (tagged 'llama').

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = false

type stubEngine struct{}

// New returns a stub engine that refuses to load models, so binaries built
// without the native runtime fail fast instead of mocking inference.
func New() Engine { return stubEngine{} }

func (stubEngine) Load(context.Context, string, LoadParams) (Model, error) {
	return nil, ErrRuntimeUnavailable
}
