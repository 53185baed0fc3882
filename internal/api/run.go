package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/bosshunter/internal/hunter"
)

// Run history paging limits.
const (
	defaultRunsLimit = 20
	maxRunsLimit     = 500
)

// StartRunResponse is returned by POST /run/start.
type StartRunResponse struct {
	RunID  string        `json:"run_id"`
	Status hunter.Status `json:"status"`
}

// ThresholdRequest is the body of PUT /threshold.
type ThresholdRequest struct {
	Value *float64 `json:"value"`
}

// handleGetRun returns the controller status snapshot.
func (s *Server) handleGetRun(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.hunter.Status())
}

// handleStartRun starts a run. The run keeps going after the request
// returns; the controller detaches it from the request context.
func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	id, err := s.hunter.Start(r.Context())
	switch {
	case err == nil:
	case errors.Is(err, hunter.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, ErrCodeConflict, "a run is already active")
		return
	case errors.Is(err, hunter.ErrTemplateUnbound):
		writeError(w, http.StatusUnprocessableEntity, ErrCodeTemplates, err.Error())
		return
	default:
		s.logger.Error("starting run", "error", err)
		writeInternalError(w, "failed to start run")
		return
	}

	writeJSON(w, http.StatusAccepted, StartRunResponse{RunID: id, Status: s.hunter.Status()})
}

// handleStopRun stops the active run. Stopping an idle hunter is not an error.
func (s *Server) handleStopRun(w http.ResponseWriter, _ *http.Request) {
	s.hunter.Stop()
	writeJSON(w, http.StatusOK, s.hunter.Status())
}

// handleSetThreshold changes the confidence threshold.
func (s *Server) handleSetThreshold(w http.ResponseWriter, r *http.Request) {
	var req ThresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Value == nil {
		writeBadRequest(w, "value is required")
		return
	}

	if err := s.hunter.SetThreshold(*req.Value); err != nil {
		if errors.Is(err, hunter.ErrInvalidThreshold) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
			return
		}
		writeInternalError(w, "failed to set threshold")
		return
	}

	writeJSON(w, http.StatusOK, map[string]float64{"threshold": *req.Value})
}

// handleListRuns returns the most recent runs, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "run history is not available")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing runs", "error", err)
		writeInternalError(w, "failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// handleGetRunRecord returns one run by ID.
func (s *Server) handleGetRunRecord(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", "run history is not available")
		return
	}

	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, hunter.ErrRunNotFound) {
			writeNotFound(w, "run not found")
			return
		}
		s.logger.Error("getting run", "error", err)
		writeInternalError(w, "failed to get run")
		return
	}

	writeJSON(w, http.StatusOK, run)
}

// handleListTemplates reports, per label, whether a template is bound.
func (s *Server) handleListTemplates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"templates": s.templates.Info(),
	})
}

// parseLimit reads ?limit=N, defaulting when empty and capping at maxRunsLimit.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultRunsLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > maxRunsLimit {
		n = maxRunsLimit
	}
	return n, nil
}
