package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"inferd/internal/engine"
	"inferd/internal/router"
	"inferd/internal/session"
	"inferd/internal/thermal"
	"inferd/pkg/types"
)

// fakeService scripts the session-manager surface.
type fakeService struct {
	loadRes    session.LoadResult
	loadErr    error
	unloadErr  error
	createView session.View
	createErr  error
	views      map[string]session.View
	closed     map[string]bool
	results    []session.Result
	genErr     error
	embedVec   []float32
	embedErr   error
	status     types.StatusResponse

	lastLoad   engine.LoadParams
	lastPrompt string
	lastParams session.GenerationParams
}

func (f *fakeService) LoadModel(_ context.Context, mdl types.Model, p engine.LoadParams) (session.LoadResult, error) {
	f.lastLoad = p
	if f.loadErr != nil {
		return session.LoadResult{}, f.loadErr
	}
	res := f.loadRes
	if res.Path == "" {
		res.Path = mdl.Path
	}
	return res, nil
}

func (f *fakeService) Unload(context.Context) error { return f.unloadErr }

func (f *fakeService) CreateSession(conversationID, _ string) (session.View, error) {
	if f.createErr != nil {
		return session.View{}, f.createErr
	}
	v := f.createView
	if v.ConversationID == "" {
		v.ConversationID = conversationID
	}
	return v, nil
}

func (f *fakeService) SessionContext(id string) (session.View, bool) {
	v, ok := f.views[id]
	return v, ok
}

func (f *fakeService) ActiveSessions() int { return len(f.views) }

func (f *fakeService) CloseSession(id string) bool {
	if f.closed == nil {
		return false
	}
	return f.closed[id]
}

func (f *fakeService) CloseAllSessions() int { return len(f.views) }

func (f *fakeService) Generate(ctx context.Context, _, prompt string, params session.GenerationParams) (<-chan session.Result, error) {
	f.lastPrompt = prompt
	f.lastParams = params
	if f.genErr != nil {
		return nil, f.genErr
	}
	ch := make(chan session.Result)
	go func() {
		defer close(ch)
		for _, r := range f.results {
			select {
			case ch <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

func (f *fakeService) Embed(context.Context, string) ([]float32, error) {
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.embedVec, nil
}

func (f *fakeService) Status() types.StatusResponse { return f.status }

// fakeBackends scripts the router surface.
type fakeBackends struct {
	current   types.Backend
	selected  types.Backend
	selectErr error
	switchErr error
	valid     bool

	lastTask   types.ComputeTask
	switchedTo types.Backend
}

func (f *fakeBackends) SelectOptimal(_ context.Context, task types.ComputeTask) (types.Backend, error) {
	f.lastTask = task
	return f.selected, f.selectErr
}

func (f *fakeBackends) Switch(_ context.Context, b types.Backend) error {
	if f.switchErr != nil {
		return f.switchErr
	}
	f.switchedTo = b
	return nil
}

func (f *fakeBackends) Validate(context.Context, types.Backend) bool { return f.valid }

func (f *fakeBackends) Current() types.Backend {
	if f.current == "" {
		return types.BackendCPUNeon
	}
	return f.current
}

func newTestMux(svc *fakeService, be *fakeBackends, reg []types.Model, sink ThermalSink) http.Handler {
	return NewMux(Deps{Service: svc, Backends: be, Registry: reg, Thermal: sink})
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return v
}

func TestHealthz(t *testing.T) {
	h := newTestMux(&fakeService{}, &fakeBackends{}, nil, nil)
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["ok"] != true {
		t.Fatalf("body: %v", body)
	}
}

func TestStatus_MergesCurrentBackend(t *testing.T) {
	svc := &fakeService{status: types.StatusResponse{State: "loaded", ThermalState: "normal"}}
	be := &fakeBackends{current: types.BackendQNNHexagon}
	rec := doJSON(t, newTestMux(svc, be, nil, nil), http.MethodGet, "/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	st := decodeBody[types.StatusResponse](t, rec)
	if st.Backend != "qnn_hexagon" || st.State != "loaded" {
		t.Fatalf("merged status: %+v", st)
	}
}

func TestModels(t *testing.T) {
	reg := []types.Model{{ID: "tiny", Path: "/m/tiny.gguf"}}
	rec := doJSON(t, newTestMux(&fakeService{}, &fakeBackends{}, reg, nil), http.MethodGet, "/models", nil)
	got := decodeBody[types.ModelsResponse](t, rec)
	if len(got.Models) != 1 || got.Models[0].ID != "tiny" {
		t.Fatalf("models: %+v", got)
	}
}

func TestModelLoad(t *testing.T) {
	reg := []types.Model{{ID: "tiny", Path: "/m/tiny.gguf"}}
	svc := &fakeService{loadRes: session.LoadResult{
		ModelID: "uuid-1",
		Params:  engine.LoadParams{ContextSize: 2048, BatchSize: 2, Threads: 4},
	}}
	h := newTestMux(svc, &fakeBackends{}, reg, nil)

	rec := doJSON(t, h, http.MethodPost, "/model/load", types.LoadRequest{Model: "tiny", ContextSize: 8192})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d body %s", rec.Code, rec.Body.String())
	}
	res := decodeBody[types.LoadResponse](t, rec)
	if res.ModelID != "uuid-1" || res.ContextSize != 2048 {
		t.Fatalf("response: %+v", res)
	}
	if svc.lastLoad.ContextSize != 8192 {
		t.Fatalf("requested params not forwarded: %+v", svc.lastLoad)
	}

	rec = doJSON(t, h, http.MethodPost, "/model/load", types.LoadRequest{Model: "ghost"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown model: %d", rec.Code)
	}

	// A raw path outside the registry is accepted.
	rec = doJSON(t, h, http.MethodPost, "/model/load", types.LoadRequest{Path: "/tmp/x.gguf"})
	if rec.Code != http.StatusOK {
		t.Fatalf("path load: %d body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, "/model/load", types.LoadRequest{})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty request: %d", rec.Code)
	}
}

func TestModelLoad_RuntimeUnavailable(t *testing.T) {
	svc := &fakeService{loadErr: session.ErrModelLoad("/m/x.gguf", engine.ErrRuntimeUnavailable)}
	reg := []types.Model{{ID: "x", Path: "/m/x.gguf"}}
	rec := doJSON(t, newTestMux(svc, &fakeBackends{}, reg, nil), http.MethodPost, "/model/load", types.LoadRequest{Model: "x"})
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("missing runtime must map to 503, got %d", rec.Code)
	}
}

func TestSessions(t *testing.T) {
	now := time.Now()
	svc := &fakeService{
		createView: session.View{ConversationID: "conv", ModelID: "m", CreatedAt: now, LastActivity: now},
		views: map[string]session.View{
			"conv": {ConversationID: "conv", ModelID: "m", TokenCount: 7, Exchanges: []session.Exchange{{}}},
		},
		closed: map[string]bool{"conv": true},
	}
	h := newTestMux(svc, &fakeBackends{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/sessions", types.SessionRequest{ConversationID: "conv"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}
	created := decodeBody[types.SessionResponse](t, rec)
	if created.ConversationID != "conv" {
		t.Fatalf("created: %+v", created)
	}

	rec = doJSON(t, h, http.MethodGet, "/sessions/conv", nil)
	got := decodeBody[types.SessionResponse](t, rec)
	if got.TokenCount != 7 || got.Exchanges != 1 {
		t.Fatalf("view: %+v", got)
	}

	rec = doJSON(t, h, http.MethodGet, "/sessions/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown session get: %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodDelete, "/sessions/conv", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodDelete, "/sessions/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("delete unknown: %d", rec.Code)
	}
}

func TestCreateSession_NoModel(t *testing.T) {
	svc := &fakeService{createErr: session.ErrNoModel()}
	rec := doJSON(t, newTestMux(svc, &fakeBackends{}, nil, nil), http.MethodPost, "/sessions", types.SessionRequest{})
	if rec.Code != http.StatusConflict {
		t.Fatalf("no model must map to 409, got %d", rec.Code)
	}
}

func TestGenerate_StreamsNDJSON(t *testing.T) {
	svc := &fakeService{results: []session.Result{
		session.Started{At: time.Now()},
		session.TokenEvent{Token: "hi", Index: 0, Partial: "hi"},
		session.Completed{Text: "hi", Tokens: 1, Elapsed: 120 * time.Millisecond, TokensPerSecond: 8.3, Reason: session.FinishCompleted},
	}}
	h := newTestMux(svc, &fakeBackends{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/sessions/conv/generate", types.GenerateRequest{Prompt: "hello", MaxTokens: 64})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Fatalf("content type: %q", ct)
	}
	if svc.lastPrompt != "hello" || svc.lastParams.MaxTokens != 64 {
		t.Fatalf("request not forwarded: %q %+v", svc.lastPrompt, svc.lastParams)
	}

	var kinds []string
	sc := bufio.NewScanner(rec.Body)
	for sc.Scan() {
		var line struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			t.Fatalf("bad NDJSON line %q: %v", sc.Text(), err)
		}
		kinds = append(kinds, line.Type)
	}
	want := []string{"started", "token", "completed"}
	if len(kinds) != len(want) {
		t.Fatalf("lines: %v", kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("line %d: got %q want %q", i, kinds[i], want[i])
		}
	}
}

func TestGenerate_Validation(t *testing.T) {
	h := newTestMux(&fakeService{}, &fakeBackends{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/sessions/conv/generate", types.GenerateRequest{Prompt: "  "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank prompt: %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/sessions/conv/generate", strings.NewReader(`{"prompt":"x"}`))
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("missing content type: %d", rec2.Code)
	}
}

func TestGenerate_ErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{session.ErrNoModel(), http.StatusConflict},
		{session.ErrSessionNotFound("conv"), http.StatusNotFound},
		{session.ErrBusy("conv"), http.StatusTooManyRequests},
	}
	for _, c := range cases {
		svc := &fakeService{genErr: c.err}
		rec := doJSON(t, newTestMux(svc, &fakeBackends{}, nil, nil),
			http.MethodPost, "/sessions/conv/generate", types.GenerateRequest{Prompt: "x"})
		if rec.Code != c.want {
			t.Fatalf("%v: got %d want %d", c.err, rec.Code, c.want)
		}
	}
}

func TestEmbeddings(t *testing.T) {
	svc := &fakeService{embedVec: []float32{0.1, 0.2}}
	h := newTestMux(svc, &fakeBackends{}, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/embeddings", types.EmbeddingRequest{Text: "hello"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d", rec.Code)
	}
	res := decodeBody[types.EmbeddingResponse](t, rec)
	if res.Dimension != 2 || len(res.Embedding) != 2 {
		t.Fatalf("response: %+v", res)
	}

	rec = doJSON(t, h, http.MethodPost, "/embeddings", types.EmbeddingRequest{Text: " "})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank text: %d", rec.Code)
	}

	svc.embedErr = session.ErrNoModel()
	rec = doJSON(t, h, http.MethodPost, "/embeddings", types.EmbeddingRequest{Text: "x"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("no model: %d", rec.Code)
	}
}

func TestBackendEndpoints(t *testing.T) {
	be := &fakeBackends{current: types.BackendOpenCLAdreno, selected: types.BackendQNNHexagon, valid: true}
	h := newTestMux(&fakeService{}, be, nil, nil)

	rec := doJSON(t, h, http.MethodGet, "/backend", nil)
	if got := decodeBody[types.BackendResponse](t, rec); got.Backend != types.BackendOpenCLAdreno {
		t.Fatalf("current: %+v", got)
	}

	rec = doJSON(t, h, http.MethodPost, "/backend/select", types.BackendSelectRequest{Task: types.TaskLLMInference})
	if got := decodeBody[types.BackendResponse](t, rec); got.Backend != types.BackendQNNHexagon {
		t.Fatalf("select: %+v", got)
	}
	if be.lastTask != types.TaskLLMInference {
		t.Fatalf("task not forwarded: %q", be.lastTask)
	}

	rec = doJSON(t, h, http.MethodPost, "/backend/switch", types.BackendRequest{Backend: types.BackendQNNHexagon})
	if rec.Code != http.StatusOK {
		t.Fatalf("switch: %d", rec.Code)
	}
	if be.switchedTo != types.BackendQNNHexagon {
		t.Fatalf("switch target: %q", be.switchedTo)
	}

	rec = doJSON(t, h, http.MethodPost, "/backend/validate", types.BackendRequest{Backend: types.BackendVulkanMali})
	if got := decodeBody[types.BackendResponse](t, rec); !got.Valid {
		t.Fatalf("validate: %+v", got)
	}
}

func TestBackendSwitch_Unsupported(t *testing.T) {
	be := &fakeBackends{switchErr: router.ErrUnsupportedBackend(types.BackendVulkanMali)}
	rec := doJSON(t, newTestMux(&fakeService{}, be, nil, nil),
		http.MethodPost, "/backend/switch", types.BackendRequest{Backend: types.BackendVulkanMali})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unsupported backend must map to 422, got %d", rec.Code)
	}
}

func TestThermalIngestion(t *testing.T) {
	sig := thermal.NewSignal(thermal.StateNormal)
	h := newTestMux(&fakeService{}, &fakeBackends{}, nil, sig)

	rec := doJSON(t, h, http.MethodPost, "/thermal", map[string]string{"state": "severe"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status: %d", rec.Code)
	}
	if sig.State() != thermal.StateSevere {
		t.Fatalf("signal not updated: %v", sig.State())
	}

	// Without a sink the endpoint is not mounted.
	h = newTestMux(&fakeService{}, &fakeBackends{}, nil, nil)
	rec = doJSON(t, h, http.MethodPost, "/thermal", map[string]string{"state": "severe"})
	if rec.Code == http.StatusNoContent {
		t.Fatalf("thermal endpoint should be absent without a sink")
	}
}
