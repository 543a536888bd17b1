package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/jellydator/ttlcache/v3"

	"github.com/IsseiKhai277/foodallergens/internal/engine"
	"github.com/IsseiKhai277/foodallergens/internal/output"
	"github.com/IsseiKhai277/foodallergens/internal/result"
)

// maxBody bounds request bodies; prompts are short.
const maxBody = 64 << 10

// ClassifyRequest is the body of POST /classify.
type ClassifyRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`
}

// PredictRequest is the body of POST /predict.
type PredictRequest struct {
	Ingredients string `json:"ingredients"`
	Model       string `json:"model,omitempty"`
}

// ClassifyResponse carries the encoded result and its decoded parts.
type ClassifyResponse struct {
	Result  string         `json:"result"`
	Model   string         `json:"model"`
	Metrics result.Metrics `json:"metrics"`
	Payload string         `json:"payload"`
	Labels  []string       `json:"labels"`
	Error   string         `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		output.Logger.Error("Error encoding response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"default_model": s.opts.DefaultModel,
		"cached":        s.cache.Len(),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.catalog.List()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if models == nil {
		models = []engine.ModelInfo{}
	}
	respondJSON(w, http.StatusOK, models)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	s.classify(w, req.Model, func(string) string { return req.Prompt })
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req PredictRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Ingredients) == "" {
		respondError(w, http.StatusBadRequest, "ingredients are required")
		return
	}
	s.classify(w, req.Model, func(name string) string {
		return engine.PromptFor(name, req.Ingredients)
	})
}

// classify resolves the model, builds the prompt for it and answers from the
// cache or a fresh session.
func (s *Server) classify(w http.ResponseWriter, name string, prompt func(model string) string) {
	if name == "" {
		name = s.opts.DefaultModel
	}
	if name == "" {
		respondError(w, http.StatusBadRequest, "model is required (no default model configured)")
		return
	}
	path, err := s.catalog.Resolve(name)
	switch {
	case errors.Is(err, engine.ErrBadModelName):
		respondError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	p := prompt(name)
	key := name + "\x00" + p

	var encoded string
	hit := false
	if item := s.cache.Get(key); item != nil {
		encoded, hit = item.Value(), true
		w.Header().Set("X-Cache", "hit")
	} else {
		encoded = s.driver.Classify(p, path)
		w.Header().Set("X-Cache", "miss")
	}

	res, err := result.Parse(encoded)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !hit && !res.IsError() {
		s.cache.Set(key, encoded, ttlcache.DefaultTTL)
	}

	labels := res.Labels()
	if labels == nil {
		labels = []string{}
	}
	respondJSON(w, http.StatusOK, ClassifyResponse{
		Result:  encoded,
		Model:   name,
		Metrics: res.Metrics,
		Payload: res.Payload,
		Labels:  labels,
		Error:   res.ErrorReason(),
	})
}

func (s *Server) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondError(w, http.StatusNotFound, "no prediction store configured")
		return
	}
	name := mux.Vars(r)["model"]
	preds, err := s.store.ListByModel(r.Context(), name)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"model":       name,
		"count":       len(preds),
		"predictions": preds,
	})
}
