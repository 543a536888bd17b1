package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IsseiKhai277/foodallergens/internal/engine"
	"github.com/IsseiKhai277/foodallergens/internal/llama"
	"github.com/IsseiKhai277/foodallergens/internal/llama/llamatest"
	"github.com/IsseiKhai277/foodallergens/internal/model"
	"github.com/IsseiKhai277/foodallergens/internal/result"
	"github.com/IsseiKhai277/foodallergens/internal/store"
)

func newTestServer(t *testing.T, e *llamatest.Engine, st store.Store) *Server {
	t.Helper()
	dir := t.TempDir()
	for _, n := range []string{"qwen2.5-1.5b.gguf", "phi-3.5.gguf"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("GGUF"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	s := New(engine.NewDriver(e), Options{
		Addr:         "127.0.0.1:0",
		ModelDir:     dir,
		DefaultModel: "qwen2.5-1.5b.gguf",
		CacheTTL:     time.Minute,
		CacheSize:    16,
	}, st)
	t.Cleanup(func() { s.Stop() })
	return s
}

func post(t *testing.T, s *Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func TestClassifyAndCache(t *testing.T) {
	e := &llamatest.Engine{Script: []string{"Contains", " soy", " and", " wheat"}}
	s := newTestServer(t, e, nil)

	w := post(t, s, "/classify", ClassifyRequest{Prompt: "soy sauce, wheat"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("X-Cache"); got != "miss" {
		t.Errorf("X-Cache = %q, want miss", got)
	}
	resp := decode[ClassifyResponse](t, w)
	if err := result.Validate(resp.Result); err != nil {
		t.Fatalf("Validate(%q): %v", resp.Result, err)
	}
	if resp.Payload != "soy,wheat" || strings.Join(resp.Labels, ",") != "soy,wheat" || resp.Model != "qwen2.5-1.5b.gguf" {
		t.Errorf("response = %+v", resp)
	}

	w = post(t, s, "/classify", ClassifyRequest{Prompt: "soy sauce, wheat"})
	if got := w.Header().Get("X-Cache"); got != "hit" {
		t.Errorf("second X-Cache = %q, want hit", got)
	}
	if again := decode[ClassifyResponse](t, w); again.Result != resp.Result {
		t.Errorf("cached result = %q, want %q", again.Result, resp.Result)
	}
	if n := len(e.Loaded()); n != 1 {
		t.Errorf("model loaded %d times, want 1", n)
	}
}

func TestClassifyErrorsAreNotCached(t *testing.T) {
	e := &llamatest.Engine{ContextErr: context.DeadlineExceeded}
	s := newTestServer(t, e, nil)

	for i := 0; i < 2; i++ {
		w := post(t, s, "/classify", ClassifyRequest{Prompt: "x", Model: "phi-3.5.gguf"})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		if got := w.Header().Get("X-Cache"); got != "miss" {
			t.Errorf("call %d X-Cache = %q", i, got)
		}
		resp := decode[ClassifyResponse](t, w)
		if resp.Error != result.ContextInitFailed || len(resp.Labels) != 0 {
			t.Errorf("response = %+v", resp)
		}
	}
}

func TestClassifyRejectsBadInput(t *testing.T) {
	s := newTestServer(t, &llamatest.Engine{}, nil)

	tests := []struct {
		name string
		body any
		code int
	}{
		{"empty prompt", ClassifyRequest{Prompt: "  "}, http.StatusBadRequest},
		{"traversal", ClassifyRequest{Prompt: "x", Model: "../secret.gguf"}, http.StatusBadRequest},
		{"unknown model", ClassifyRequest{Prompt: "x", Model: "gone.gguf"}, http.StatusNotFound},
		{"unknown field", map[string]string{"prompt": "x", "temperature": "1"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := post(t, s, "/classify", tt.body); w.Code != tt.code {
				t.Errorf("status = %d, want %d: %s", w.Code, tt.code, w.Body.String())
			}
		})
	}
}

func TestPredictBuildsPrompt(t *testing.T) {
	var seen string
	e := &llamatest.Engine{Script: []string{"EMPTY"}}
	e.Tokenize = func(text string, addBOS bool) []llama.Token {
		seen = text
		return []llama.Token{llamatest.BOS, 10}
	}
	s := newTestServer(t, e, nil)

	w := post(t, s, "/predict", PredictRequest{Ingredients: "water, salt", Model: "phi-3.5.gguf"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if !strings.HasPrefix(seen, "<|user|>") || !strings.Contains(seen, "Ingredients: water, salt") {
		t.Errorf("prompt = %q", seen)
	}
	if resp := decode[ClassifyResponse](t, w); resp.Payload != "EMPTY" || len(resp.Labels) != 0 {
		t.Errorf("response = %+v", resp)
	}
}

func TestModelsAndHealth(t *testing.T) {
	s := newTestServer(t, &llamatest.Engine{}, nil)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/models", nil))
	models := decode[[]engine.ModelInfo](t, w)
	if len(models) != 2 || models[0].Name != "phi-3.5.gguf" {
		t.Errorf("models = %+v", models)
	}

	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if health := decode[map[string]any](t, w); health["status"] != "ok" {
		t.Errorf("health = %v", health)
	}
}

func TestPredictions(t *testing.T) {
	st, err := store.OpenBadger("")
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if _, err := st.Save(context.Background(), model.Prediction{Model: "phi-3.5.gguf", Timestamp: time.Now()}); err != nil {
		t.Fatal(err)
	}
	s := newTestServer(t, &llamatest.Engine{}, st)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predictions/phi-3.5.gguf", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := decode[map[string]any](t, w)
	if body["count"] != float64(1) {
		t.Errorf("body = %v", body)
	}

	noStore := newTestServer(t, &llamatest.Engine{}, nil)
	w = httptest.NewRecorder()
	noStore.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predictions/x", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status without store = %d", w.Code)
	}
}

func TestStopBeforeStart(t *testing.T) {
	s := newTestServer(t, &llamatest.Engine{}, nil)
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("second Stop: %v", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.Start() }()
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("Start after Stop = %v, want http.ErrServerClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start kept serving after Stop")
	}
}
