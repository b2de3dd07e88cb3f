package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alem-hub/scorm-interceptor/internal/infrastructure/host"
	"github.com/alem-hub/scorm-interceptor/internal/interface/http/handlers"
	"github.com/alem-hub/scorm-interceptor/pkg/interceptor"
	"github.com/alem-hub/scorm-interceptor/pkg/logger"
)

const (
	defaultJournalLimit = 50
	maxJournalLimit     = 1000
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	handlers.HealthStatus
	Interceptor interceptor.Status `json:"interceptor"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := handlers.HealthStatus{Healthy: true}
	if s.deps.Health != nil {
		status = s.deps.Health.Check(r.Context())
	}

	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, HealthResponse{
		HealthStatus: status,
		Interceptor:  s.deps.Interceptor.Status(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Interceptor.Status())
}

// handleInit re-initializes the interceptor with the posted overrides.
func (s *Server) handleInit(w http.ResponseWriter, r *http.Request) {
	var overrides map[string]any
	if err := json.NewDecoder(r.Body).Decode(&overrides); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Body must be a JSON object")
		return
	}

	if err := s.deps.Interceptor.Init(overrides); err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, "invalid_config", err.Error())
		return
	}

	writeJSON(w, http.StatusAccepted, s.deps.Interceptor.Status())
}

func (s *Server) handleVerbs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Interceptor.Vocabulary().Names())
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultJournalLimit)
	if limit > maxJournalLimit {
		limit = maxJournalLimit
	}

	entries, err := s.deps.Interceptor.Journal().Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("failed to read journal", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "journal_unavailable", "Failed to read the statement journal")
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleFunctions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Registry.Functions())
}

// CallRequest is the body of POST /api/v1/scorm/{function}.
type CallRequest struct {
	Element string `json:"element"`
	Value   string `json:"value"`
}

// CallResponse carries what the host function returned.
type CallResponse struct {
	Result string `json:"result"`
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Element == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Body must contain an element")
		return
	}

	result, err := s.deps.Registry.Call(chi.URLParam(r, "function"), req.Element, req.Value)
	if errors.Is(err, host.ErrFunctionNotFound) {
		writeJSONError(w, http.StatusNotFound, "function_not_found", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, CallResponse{Result: result})
}

// handleSetAPI replaces the learner API object registered under name.
func (s *Server) handleSetAPI(w http.ResponseWriter, r *http.Request) {
	var learner host.StaticLearner
	if err := json.NewDecoder(r.Body).Decode(&learner); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_body", "Body must contain learnerId and learnerName")
		return
	}

	s.deps.Registry.DefineAPI(chi.URLParam(r, "name"), learner)
	w.WriteHeader(http.StatusNoContent)
}
