// Package session owns model lifecycle and per-conversation generation
// state: device-class parameter adaptation at load, thermal-adaptive
// degradation per request, sliding-window context eviction, and the
// cancellable streaming token loop.
package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"inferd/internal/device"
	"inferd/internal/engine"
	"inferd/internal/safety"
	"inferd/internal/thermal"
	"inferd/pkg/types"
)

// State is the model lifecycle state of the manager.
type State string

const (
	StateUnloaded  State = "unloaded"
	StateLoading   State = "loading"
	StateLoaded    State = "loaded"
	StateUnloading State = "unloading"
)

// Defaults applied when the corresponding Config fields are unset.
const (
	defaultWindowTokens     = 2048
	defaultSafetyInterval   = 10
	defaultThermalPoll      = 5 * time.Second
	defaultCriticalCooldown = 30 * time.Second
	defaultDrainTimeout     = 5 * time.Second
	defaultSystemPrompt     = "You are a helpful assistant running on this device. Answer concisely."
)

// Config encapsulates all tunables and collaborators for Manager
// construction.
type Config struct {
	Engine    engine.Engine
	Provider  device.Provider
	Thermal   thermal.Monitor
	Safety    safety.Filter
	Publisher EventPublisher
	Logger    zerolog.Logger
	// WindowTokens is the sliding-window budget for retained exchanges.
	WindowTokens int
	// SystemPrompt is the default system prompt when a session has no
	// override.
	SystemPrompt string
	// SafetyInterval is how many tokens pass between partial-output
	// safety checks.
	SafetyInterval int
	// ThermalPollInterval drives the monitoring loop; CriticalCooldown is
	// the extended sleep once the device reports critical heat.
	ThermalPollInterval time.Duration
	CriticalCooldown    time.Duration
	// DrainTimeout bounds how long Unload waits for in-flight generations
	// before closing the model anyway.
	DrainTimeout time.Duration
}

// Manager owns the single loaded model and all conversation sessions.
// At most one model is loaded at a time; loading a new model first unloads
// and closes all sessions of the previous one.
type Manager struct {
	cfg Config

	mu         sync.RWMutex
	state      State
	model      engine.Model
	modelID    string
	modelPath  string
	loadParams engine.LoadParams
	lastErr    string
	sessions   map[string]*session

	monitorCancel context.CancelFunc
	monitorDone   chan struct{}

	startTime   time.Time
	generations atomic.Uint64
	evictions   atomic.Uint64
}

// LoadResult reports the effective parameters of a successful load.
type LoadResult struct {
	ModelID string
	Path    string
	Params  engine.LoadParams
}

// New constructs a Manager. Engine, Provider and Thermal are required;
// Safety defaults to allow-all and Publisher to a no-op.
func New(cfg Config) *Manager {
	if cfg.Safety == nil {
		cfg.Safety = safety.AllowAll{}
	}
	if cfg.Publisher == nil {
		cfg.Publisher = noopPublisher{}
	}
	if cfg.WindowTokens <= 0 {
		cfg.WindowTokens = defaultWindowTokens
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	if cfg.SafetyInterval <= 0 {
		cfg.SafetyInterval = defaultSafetyInterval
	}
	if cfg.ThermalPollInterval <= 0 {
		cfg.ThermalPollInterval = defaultThermalPoll
	}
	if cfg.CriticalCooldown <= 0 {
		cfg.CriticalCooldown = defaultCriticalCooldown
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = defaultDrainTimeout
	}
	return &Manager{
		cfg:       cfg,
		state:     StateUnloaded,
		sessions:  make(map[string]*session),
		startTime: time.Now(),
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// LoadModel loads mdl, adapting requested parameters to the device class.
// A previously loaded model is unloaded first, closing its sessions. On
// failure the manager stays Unloaded and the load is safe to retry.
func (m *Manager) LoadModel(ctx context.Context, mdl types.Model, req engine.LoadParams) (LoadResult, error) {
	if err := m.Unload(ctx); err != nil {
		return LoadResult{}, err
	}

	m.mu.Lock()
	m.state = StateLoading
	m.mu.Unlock()

	profile := m.cfg.Provider.Profile()
	params := adaptLoadParams(req, profile)

	model, err := m.cfg.Engine.Load(ctx, mdl.Path, params)
	if err != nil {
		m.mu.Lock()
		m.state = StateUnloaded
		m.lastErr = err.Error()
		m.mu.Unlock()
		m.cfg.Logger.Error().Err(err).Str("path", mdl.Path).Msg("model load failed")
		return LoadResult{}, ErrModelLoad(mdl.Path, err)
	}

	id := uuid.NewString()
	monitorCtx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.state = StateLoaded
	m.model = model
	m.modelID = id
	m.modelPath = mdl.Path
	m.loadParams = params
	m.lastErr = ""
	m.monitorCancel = cancel
	m.monitorDone = make(chan struct{})
	done := m.monitorDone
	m.mu.Unlock()

	go m.runThermalLoop(monitorCtx, done, m.cfg.Thermal.State())

	m.cfg.Logger.Info().
		Str("model_id", id).
		Str("path", mdl.Path).
		Int("context_size", params.ContextSize).
		Int("batch_size", params.BatchSize).
		Int("threads", params.Threads).
		Str("class", string(profile.Class)).
		Msg("model loaded")
	m.cfg.Publisher.Publish(Event{Name: "model_load", ModelID: id, Fields: map[string]any{
		"path": mdl.Path, "context_size": params.ContextSize,
	}})
	return LoadResult{ModelID: id, Path: mdl.Path, Params: params}, nil
}

// Unload drains in-flight generations, closes all sessions, stops thermal
// monitoring, and releases the model. It is a no-op when nothing is loaded.
func (m *Manager) Unload(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateLoaded {
		m.mu.Unlock()
		return nil
	}
	m.state = StateUnloading
	model := m.model
	id := m.modelID
	cancel := m.monitorCancel
	done := m.monitorDone
	sessions := m.sessions
	closed := len(sessions)
	m.sessions = make(map[string]*session)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.drainGenerations(ctx, sessions)
	if err := model.Close(); err != nil {
		m.cfg.Logger.Warn().Err(err).Str("model_id", id).Msg("model close reported error")
	}

	m.mu.Lock()
	m.state = StateUnloaded
	m.model = nil
	m.modelID = ""
	m.modelPath = ""
	m.monitorCancel = nil
	m.monitorDone = nil
	m.mu.Unlock()

	m.cfg.Logger.Info().Str("model_id", id).Int("sessions_closed", closed).Msg("model unloaded")
	m.cfg.Publisher.Publish(Event{Name: "model_unload", ModelID: id, Fields: map[string]any{
		"sessions_closed": closed,
	}})
	return nil
}

// drainGenerations waits for each session's in-flight generation to finish,
// bounded by DrainTimeout and the caller's context. Slots are acquired and
// never released; the sessions have already been detached from the manager.
func (m *Manager) drainGenerations(ctx context.Context, sessions map[string]*session) {
	deadline := time.After(m.cfg.DrainTimeout)
	for id, s := range sessions {
		select {
		case s.genCh <- struct{}{}:
			continue
		default:
		}
		select {
		case s.genCh <- struct{}{}:
		case <-deadline:
			m.cfg.Logger.Warn().Str("conversation_id", id).Msg("drain timeout, closing model with generation in flight")
			return
		case <-ctx.Done():
			m.cfg.Logger.Warn().Str("conversation_id", id).Msg("unload context canceled during drain")
			return
		}
	}
}

// CreateSession allocates a fresh session keyed by conversationID,
// overwriting any prior session of the same id. Fails when no model is
// loaded. An empty id gets a generated one.
func (m *Manager) CreateSession(conversationID, systemPrompt string) (View, error) {
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateLoaded {
		return View{}, ErrNoModel()
	}
	s := newSession(conversationID, m.modelID, systemPrompt, time.Now())
	m.sessions[conversationID] = s
	m.cfg.Publisher.Publish(Event{Name: "session_create", ModelID: m.modelID, ConversationID: conversationID})
	return s.view(), nil
}

// SessionContext returns a consistent snapshot of a session.
func (m *Manager) SessionContext(conversationID string) (View, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[conversationID]
	if !ok {
		return View{}, false
	}
	return s.view(), true
}

// ActiveSessions returns the number of live sessions.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseSession removes a session. Closing an unknown or already-closed id
// returns false and has no side effects.
func (m *Manager) CloseSession(conversationID string) bool {
	m.mu.Lock()
	_, ok := m.sessions[conversationID]
	if ok {
		delete(m.sessions, conversationID)
	}
	modelID := m.modelID
	m.mu.Unlock()
	if !ok {
		return false
	}
	m.cfg.Publisher.Publish(Event{Name: "session_close", ModelID: modelID, ConversationID: conversationID})
	return true
}

// CloseAllSessions removes every session and returns how many were closed.
func (m *Manager) CloseAllSessions() int {
	m.mu.Lock()
	n := len(m.sessions)
	m.sessions = make(map[string]*session)
	m.mu.Unlock()
	return n
}

// Embed returns an embedding vector for text using the loaded model.
func (m *Manager) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.RLock()
	model := m.model
	loaded := m.state == StateLoaded
	m.mu.RUnlock()
	if !loaded || model == nil {
		return nil, ErrNoModel()
	}
	vec, err := model.Embed(ctx, text)
	if err != nil {
		return nil, ErrEmbedding(err)
	}
	return vec, nil
}

// Status builds the manager's part of the /status payload.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	return types.StatusResponse{
		State:            string(m.state),
		ModelID:          m.modelID,
		ModelPath:        m.modelPath,
		ActiveSessions:   len(m.sessions),
		ThermalState:     m.cfg.Thermal.State().String(),
		DeviceClass:      string(m.cfg.Provider.Profile().Class),
		GenerationsTotal: m.generations.Load(),
		EvictionsTotal:   m.evictions.Load(),
		UptimeSeconds:    int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:   now.Unix(),
		LastError:        m.lastErr,
	}
}

// runThermalLoop watches the thermal signal while a model is loaded. It only
// reads the signal and never cancels in-flight generations; at critical heat
// it sleeps the extended cooldown interval as a passive throttle.
func (m *Manager) runThermalLoop(ctx context.Context, done chan struct{}, last thermal.State) {
	defer close(done)
	for {
		interval := m.cfg.ThermalPollInterval
		if last == thermal.StateCritical {
			interval = m.cfg.CriticalCooldown
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
		cur := m.cfg.Thermal.State()
		if cur == last {
			continue
		}
		m.cfg.Logger.Info().
			Str("from", last.String()).
			Str("to", cur.String()).
			Msg("thermal state changed")
		m.cfg.Publisher.Publish(Event{Name: "thermal_change", Fields: map[string]any{
			"from": last.String(), "to": cur.String(),
		}})
		last = cur
	}
}
