package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"inferd/internal/engine"
	"inferd/internal/session"
	"inferd/internal/thermal"
	"inferd/pkg/types"
)

// Service defines the session-manager methods required by the HTTP layer.
type Service interface {
	LoadModel(ctx context.Context, mdl types.Model, params engine.LoadParams) (session.LoadResult, error)
	Unload(ctx context.Context) error
	CreateSession(conversationID, systemPrompt string) (session.View, error)
	SessionContext(conversationID string) (session.View, bool)
	ActiveSessions() int
	CloseSession(conversationID string) bool
	CloseAllSessions() int
	Generate(ctx context.Context, conversationID, prompt string, params session.GenerationParams) (<-chan session.Result, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	Status() types.StatusResponse
}

// BackendService defines the router methods required by the HTTP layer.
type BackendService interface {
	SelectOptimal(ctx context.Context, task types.ComputeTask) (types.Backend, error)
	Switch(ctx context.Context, b types.Backend) error
	Validate(ctx context.Context, b types.Backend) bool
	Current() types.Backend
}

// ThermalSink receives thermal readings pushed by the platform sensing
// layer. Optional; when nil the ingestion endpoint is not mounted.
type ThermalSink interface {
	Set(thermal.State)
}

// Deps bundles the collaborators of the HTTP server.
type Deps struct {
	Service  Service
	Backends BackendService
	Registry []types.Model
	Thermal  ThermalSink
}

// NewMux builds the HTTP API.
func NewMux(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, map[string]any{"ok": true, "llama_built": engine.Built()})
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		st := d.Service.Status()
		st.Backend = string(d.Backends.Current())
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, st)
	})

	r.Get("/models", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, types.ModelsResponse{Models: d.Registry})
	})

	r.Post("/model/load", func(w http.ResponseWriter, r *http.Request) {
		var req types.LoadRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		mdl, ok := resolveModel(d.Registry, req)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "model not found: "+req.Model)
			return
		}
		res, err := d.Service.LoadModel(r.Context(), mdl, engine.LoadParams{
			ContextSize: req.ContextSize,
			BatchSize:   req.BatchSize,
			Threads:     req.Threads,
			Seed:        req.Seed,
		})
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, types.LoadResponse{
			ModelID:     res.ModelID,
			Path:        res.Path,
			ContextSize: res.Params.ContextSize,
			BatchSize:   res.Params.BatchSize,
			Threads:     res.Params.Threads,
		})
	})

	r.Post("/model/unload", func(w http.ResponseWriter, r *http.Request) {
		if err := d.Service.Unload(r.Context()); err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/sessions", func(w http.ResponseWriter, r *http.Request) {
		var req types.SessionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		view, err := d.Service.CreateSession(req.ConversationID, req.SystemPrompt)
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		writeJSON(w, sessionResponse(view))
	})

	r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		view, ok := d.Service.SessionContext(id)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "session not found: "+id)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, sessionResponse(view))
	})

	r.Delete("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if !d.Service.CloseSession(id) {
			writeJSONError(w, http.StatusNotFound, "session not found: "+id)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Delete("/sessions", func(w http.ResponseWriter, _ *http.Request) {
		n := d.Service.CloseAllSessions()
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, map[string]int{"closed": n})
	})

	r.Post("/sessions/{id}/generate", func(w http.ResponseWriter, r *http.Request) {
		handleGenerate(d.Service, w, r)
	})

	r.Post("/embeddings", func(w http.ResponseWriter, r *http.Request) {
		var req types.EmbeddingRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			writeJSONError(w, http.StatusBadRequest, "text is required")
			return
		}
		vec, err := d.Service.Embed(r.Context(), req.Text)
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, types.EmbeddingResponse{Embedding: vec, Dimension: len(vec)})
	})

	r.Get("/backend", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, types.BackendResponse{Backend: d.Backends.Current()})
	})

	r.Post("/backend/select", func(w http.ResponseWriter, r *http.Request) {
		var req types.BackendSelectRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		b, err := d.Backends.SelectOptimal(r.Context(), req.Task)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, types.BackendResponse{Backend: b})
	})

	r.Post("/backend/switch", func(w http.ResponseWriter, r *http.Request) {
		var req types.BackendRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := d.Backends.Switch(r.Context(), req.Backend); err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, types.BackendResponse{Backend: req.Backend})
	})

	r.Post("/backend/validate", func(w http.ResponseWriter, r *http.Request) {
		var req types.BackendRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		valid := d.Backends.Validate(r.Context(), req.Backend)
		w.Header().Set("Content-Type", "application/json")
		writeJSON(w, types.BackendResponse{Backend: req.Backend, Valid: valid})
	})

	if d.Thermal != nil {
		// Ingestion point for the platform thermal sensor; the core only
		// ever reads the signal.
		r.Post("/thermal", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				State string `json:"state"`
			}
			if !decodeJSON(w, r, &req) {
				return
			}
			d.Thermal.Set(thermal.ParseState(req.State))
			w.WriteHeader(http.StatusNoContent)
		})
	}

	r.Handle("/metrics", promhttp.Handler())
	MountSwagger(r)
	return r
}

// handleGenerate streams NDJSON generation events for one request.
func handleGenerate(svc Service, w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req types.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	lvl := requestLogLevel(r)
	start := time.Now()
	if lvl >= LevelInfo && zlog != nil {
		z := zlog.Info().Str("path", r.URL.Path).Str("session", id)
		if rid := middleware.GetReqID(r.Context()); rid != "" {
			z = z.Str("request_id", rid)
		}
		z.Msg("generate start")
	}

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()

	params := session.GenerationParams{
		MaxTokens:     req.MaxTokens,
		Temperature:   float32(req.Temperature),
		TopP:          float32(req.TopP),
		TopK:          req.TopK,
		RepeatPenalty: float32(req.RepeatPenalty),
		Stop:          req.Stop,
	}
	results, err := svc.Generate(ctx, id, req.Prompt, params)
	if err != nil {
		writeJSONError(w, statusFor(err), err.Error())
		if lvl >= LevelInfo && zlog != nil {
			zlog.Info().Int("status", statusFor(err)).Dur("dur", time.Since(start)).Err(err).Msg("generate end")
		}
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	var flush func()
	if f, ok := w.(http.Flusher); ok {
		flush = f.Flush
	}
	for res := range results {
		if _, err := w.Write(resultLine(res)); err != nil {
			// Client gone; ctx cancellation stops the producer.
			cancel()
			for range results {
			}
			return
		}
		if flush != nil {
			flush()
		}
	}
	if lvl >= LevelInfo && zlog != nil {
		zlog.Info().Str("status", "200").Dur("dur", time.Since(start)).Msg("generate end")
	}
}

// resolveModel finds the requested model in the registry, or accepts a raw
// path for models outside it.
func resolveModel(registryModels []types.Model, req types.LoadRequest) (types.Model, bool) {
	if req.Model != "" {
		for _, m := range registryModels {
			if m.ID == req.Model {
				return m, true
			}
		}
		return types.Model{}, false
	}
	if strings.TrimSpace(req.Path) != "" {
		return types.Model{ID: req.Path, Name: req.Path, Path: req.Path}, true
	}
	return types.Model{}, false
}

func sessionResponse(v session.View) types.SessionResponse {
	return types.SessionResponse{
		ConversationID: v.ConversationID,
		ModelID:        v.ModelID,
		CreatedAt:      v.CreatedAt.Unix(),
		LastActivity:   v.LastActivity.Unix(),
		TokenCount:     v.TokenCount,
		Exchanges:      len(v.Exchanges),
	}
}

// decodeJSON enforces content type and body limits, decoding into dst.
// It writes the error response itself and reports success.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
