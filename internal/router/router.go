// Package router selects and validates a compute backend per task using the
// device capability snapshot, the live thermal state, and cached benchmark
// measurements.
package router

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"inferd/internal/device"
	"inferd/internal/thermal"
	"inferd/pkg/types"
)

// DefaultBenchmarkTTL is how long a cached benchmark stays valid.
const DefaultBenchmarkTTL = 24 * time.Hour

// SelfTester runs a lightweight functional check of a backend without
// committing it.
type SelfTester interface {
	Test(ctx context.Context, b types.Backend) error
}

// TesterFunc adapts a function to the SelfTester interface.
type TesterFunc func(ctx context.Context, b types.Backend) error

func (f TesterFunc) Test(ctx context.Context, b types.Backend) error { return f(ctx, b) }

// Options configure a Router.
type Options struct {
	Provider device.Provider
	Thermal  thermal.Monitor
	// Store holds the benchmark and selection caches. Defaults to an
	// in-memory store.
	Store Store
	// Tester runs backend self-tests for Switch/Validate. Defaults to a
	// capability-only check.
	Tester       SelfTester
	Logger       zerolog.Logger
	BenchmarkTTL time.Duration
	// Clock is overridable in tests.
	Clock func() time.Time
}

// Router scores and selects compute backends. Side effects are limited to the
// injected Store and the committed current backend.
type Router struct {
	opts Options

	mu      sync.Mutex
	current types.Backend
	// benchFailed marks the last benchmark attempt as failed; benchLimiter
	// then keeps it from re-running on every selection while the cache
	// stays empty.
	benchFailed  bool
	benchLimiter *rate.Limiter
}

// selectionEntry is a cached routing decision plus the thermal state it was
// made under.
type selectionEntry struct {
	Backend types.Backend
	Thermal thermal.State
	At      time.Time
}

// New constructs a Router. Provider and Thermal are required.
func New(opts Options) *Router {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.BenchmarkTTL <= 0 {
		opts.BenchmarkTTL = DefaultBenchmarkTTL
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	r := &Router{
		opts:         opts,
		current:      types.BackendCPUNeon,
		benchLimiter: rate.NewLimiter(rate.Every(time.Minute), 1),
	}
	if opts.Tester == nil {
		r.opts.Tester = TesterFunc(r.capabilityTest)
	}
	return r
}

// Current returns the last committed backend, CPU before any selection.
func (r *Router) Current() types.Backend {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// SelectOptimal picks the best supported backend for task under the current
// thermal state, caching the decision. Benchmark failures degrade selection
// quality silently; they never abort selection.
func (r *Router) SelectOptimal(ctx context.Context, task types.ComputeTask) (types.Backend, error) {
	if !task.Valid() {
		return "", fmt.Errorf("unknown compute task: %s", task)
	}
	profile := r.opts.Provider.Profile()
	state := r.opts.Thermal.State()

	// Critical heat bypasses every cache and collapses to CPU.
	if state == thermal.StateCritical {
		r.commit(task, types.BackendCPUNeon, state, profile)
		return types.BackendCPUNeon, nil
	}

	selKey := selectionKey(task, profile)
	if v, ok := r.opts.Store.Get(selKey); ok {
		if entry, ok := v.(selectionEntry); ok && entry.Thermal == state {
			r.setCurrent(entry.Backend)
			return entry.Backend, nil
		}
	}

	bench, haveBench := r.benchmarkData(ctx, profile)
	candidates := candidatesFor(task, profile.SoC, profile.Class)
	candidates = applyThermalGate(candidates, state)

	chosen := candidates[0]
	if haveBench {
		w := taskWeights[task]
		best := -1.0
		for _, c := range candidates {
			res, ok := bench.Get(c)
			if !ok || !res.Success {
				continue
			}
			if s := score(w, res); s > best {
				best = s
				chosen = c
			}
		}
	}

	// Capability validation; unsupported choices fall back to CPU.
	if !supported(profile, chosen) {
		r.opts.Logger.Warn().
			Str("task", string(task)).
			Str("backend", string(chosen)).
			Msg("selected backend unsupported, falling back to cpu")
		fallbacksTotal.Inc()
		chosen = types.BackendCPUNeon
	}

	r.opts.Store.Set(selKey, selectionEntry{Backend: chosen, Thermal: state, At: r.opts.Clock()})
	r.commit(task, chosen, state, profile)
	return chosen, nil
}

// Switch commits newBackend as current after a support check and a functional
// self-test.
func (r *Router) Switch(ctx context.Context, b types.Backend) error {
	if err := r.check(ctx, b); err != nil {
		return err
	}
	r.setCurrent(b)
	r.opts.Logger.Info().Str("backend", string(b)).Msg("backend switched")
	return nil
}

// Validate runs the same support+self-test check as Switch without
// committing.
func (r *Router) Validate(ctx context.Context, b types.Backend) bool {
	return r.check(ctx, b) == nil
}

func (r *Router) check(ctx context.Context, b types.Backend) error {
	if !b.Valid() || !supported(r.opts.Provider.Profile(), b) {
		return ErrUnsupportedBackend(b)
	}
	if err := r.opts.Tester.Test(ctx, b); err != nil {
		return ErrBackendTest(b, err)
	}
	return nil
}

func (r *Router) setCurrent(b types.Backend) {
	r.mu.Lock()
	r.current = b
	r.mu.Unlock()
}

func (r *Router) commit(task types.ComputeTask, b types.Backend, state thermal.State, profile device.Profile) {
	r.setCurrent(b)
	selectionsTotal.WithLabelValues(string(task), string(b)).Inc()
	r.opts.Logger.Debug().
		Str("task", string(task)).
		Str("backend", string(b)).
		Str("thermal", state.String()).
		Str("soc", string(profile.SoC)).
		Str("class", string(profile.Class)).
		Msg("backend selected")
}

// benchmarkData returns cached benchmark results when fresh, otherwise runs
// the device benchmark primitive and caches the outcome. A failed run leaves
// the router with no benchmark data; selection proceeds on matrix order.
func (r *Router) benchmarkData(ctx context.Context, profile device.Profile) (device.BenchmarkResults, bool) {
	key := benchmarkKey(profile)
	if v, ok := r.opts.Store.Get(key); ok {
		if cached, ok := v.(device.BenchmarkResults); ok && cached.Age(r.opts.Clock()) < r.opts.BenchmarkTTL {
			return cached, true
		}
	}
	r.mu.Lock()
	retryGated := r.benchFailed && !r.benchLimiter.Allow()
	r.mu.Unlock()
	if retryGated {
		return device.BenchmarkResults{}, false
	}
	results, err := r.opts.Provider.RunBenchmark(ctx)
	if err != nil {
		benchmarkRunsTotal.WithLabelValues("error").Inc()
		r.opts.Logger.Warn().Err(err).Msg("device benchmark failed, selecting without measurements")
		r.mu.Lock()
		r.benchFailed = true
		r.mu.Unlock()
		return device.BenchmarkResults{}, false
	}
	benchmarkRunsTotal.WithLabelValues("ok").Inc()
	r.mu.Lock()
	r.benchFailed = false
	r.mu.Unlock()
	r.opts.Store.Set(key, results)
	return results, true
}

// capabilityTest is the default self-test: the capability flag must be
// present, and the CPU path must complete a trivial workload.
func (r *Router) capabilityTest(ctx context.Context, b types.Backend) error {
	if !supported(r.opts.Provider.Profile(), b) {
		return fmt.Errorf("capability missing for %s", b)
	}
	if b == types.BackendCPUNeon {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// applyThermalGate narrows candidates for the thermal state: critical
// collapses to CPU, severe drops backends not allow-listed for severe
// operation, anything cooler passes through unchanged.
func applyThermalGate(candidates []types.Backend, state thermal.State) []types.Backend {
	switch {
	case state == thermal.StateCritical:
		return []types.Backend{types.BackendCPUNeon}
	case state == thermal.StateSevere:
		kept := make([]types.Backend, 0, len(candidates))
		for _, c := range candidates {
			if c == types.BackendCPUNeon || severeAllowed[c] {
				kept = append(kept, c)
			}
		}
		if !contains(kept, types.BackendCPUNeon) {
			kept = append(kept, types.BackendCPUNeon)
		}
		return kept
	default:
		return candidates
	}
}

func supported(p device.Profile, b types.Backend) bool {
	need, ok := device.RequiredCapability(b)
	if !ok {
		return false
	}
	return p.Supports(need)
}

func contains(list []types.Backend, b types.Backend) bool {
	for _, v := range list {
		if v == b {
			return true
		}
	}
	return false
}

func selectionKey(task types.ComputeTask, p device.Profile) string {
	return "select/" + string(task) + "/" + string(p.SoC) + "/" + string(p.Class)
}

func benchmarkKey(p device.Profile) string {
	return "bench/" + string(p.SoC) + "/" + string(p.Class)
}
