//go:build llama

package engine

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

type llamaEngine struct{}

// New returns the in-process go-llama.cpp engine.
func New() Engine { return llamaEngine{} }

type llamaModel struct {
	mu     sync.Mutex
	model  *llama.LLama
	params LoadParams
}

func (llamaEngine) Load(_ context.Context, path string, params LoadParams) (Model, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(max(256, params.ContextSize)),
		llama.SetNBatch(max(1, params.BatchSize)),
		llama.EnableEmbeddings,
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaModel{model: m, params: params}, nil
}

func (m *llamaModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model != nil {
		m.model.Free()
		m.model = nil
	}
	return nil
}

func (m *llamaModel) CountTokens(text string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model == nil {
		return approxTokens(text)
	}
	n, _, err := m.model.TokenizeString(text, llama.SetTokens(m.params.ContextSize))
	if err != nil || n <= 0 {
		return approxTokens(text)
	}
	return int(n)
}

func (m *llamaModel) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	return m.model.Embeddings(text, llama.SetThreads(max(1, m.params.Threads)))
}

// llamaStream bridges go-llama.cpp's push-style token callback into the
// pull-based Stream contract. Predict runs in its own goroutine; the callback
// blocks handing each token over, and returns false once stop is set.
type llamaStream struct {
	tokens  chan Token
	done    chan struct{}
	stop    atomic.Bool
	err     error
	index   int
	closeMu sync.Mutex
	closed  bool
}

func (m *llamaModel) Start(prompt string, params SampleParams) (Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model == nil {
		return nil, errors.New("llama model not initialized")
	}
	s := &llamaStream{
		tokens: make(chan Token),
		done:   make(chan struct{}),
	}
	mdl := m.model
	po := predictOptions(params, m.params)
	mdl.SetTokenCallback(func(tok string) bool {
		if s.stop.Load() {
			return false
		}
		t := Token{Text: tok, Index: s.index}
		s.index++
		select {
		case s.tokens <- t:
			return true
		case <-s.done:
			return false
		}
	})
	go func() {
		_, err := mdl.Predict(prompt, po...)
		if err != nil && !s.stop.Load() {
			s.err = err
		}
		close(s.tokens)
	}()
	return s, nil
}

func (s *llamaStream) Next(ctx context.Context) (Token, error) {
	select {
	case <-ctx.Done():
		return Token{}, ctx.Err()
	case tok, ok := <-s.tokens:
		if !ok {
			if s.err != nil {
				return Token{}, s.err
			}
			return Token{}, io.EOF
		}
		return tok, nil
	}
}

func (s *llamaStream) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stop.Store(true)
	close(s.done)
	// Drain so the Predict goroutine can exit.
	for range s.tokens {
	}
	return nil
}

func predictOptions(p SampleParams, lp LoadParams) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, p.MaxTokens)),
		llama.SetThreads(max(1, lp.Threads)),
		llama.SetTopP(nzf(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(nzi(p.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(nzf(p.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(nzf(p.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if lp.Seed != 0 {
		po = append(po, llama.SetSeed(int(lp.Seed)))
	}
	if len(p.Stop) > 0 {
		po = append(po, llama.SetStopWords(p.Stop...))
	}
	return po
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func nzi(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func nzf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}
