package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wren-reads/wren/internal/interview"
	"github.com/wren-reads/wren/internal/models"
)

type startRequest struct {
	SessionID string `json:"session_id"`
}

type turnRequest struct {
	Message *string `json:"message"`
}

// sessionView adds the derived lifecycle state to a stored session.
type sessionView struct {
	*models.Session
	State interview.State `json:"state"`
}

// decodeJSON reads an optional JSON body. An empty body leaves target untouched.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (s *Server) startSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.startSessionHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	res, err := s.interviewer.Start(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("Server.startSessionHandler: session started", "sessionID", res.SessionID, "turn", res.TurnCount)
	status := http.StatusCreated
	if res.TurnCount > 0 {
		status = http.StatusOK
	}
	writeJSONResponse(w, status, models.Success(res))
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.interviewer.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessions))
}

func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.interviewer.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sessionView{Session: sess, State: s.interviewer.State(sess)}))
}

func (s *Server) advanceHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req turnRequest
	if err := s.decodeJSON(w, r, &req); err != nil {
		slog.Warn("Server.advanceHandler: failed to decode JSON", "sessionID", id, "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.Message == nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("message is required"))
		return
	}
	slog.Debug("Server.advanceHandler: turn received", "sessionID", id, "message_length", len(*req.Message))

	res, err := s.interviewer.Advance(r.Context(), id, *req.Message)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(res))
}

func (s *Server) completeHandler(w http.ResponseWriter, r *http.Request) {
	res, err := s.interviewer.ForceComplete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(res))
}

func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.interviewer.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !sess.IsComplete || sess.Profile == nil {
		writeJSONResponse(w, http.StatusNotFound, models.Error("Profile not available until the interview is complete"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess.Profile))
}

// healthHandler provides a health check endpoint for monitoring and load balancing
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.opts.Backend != "" {
		healthData["store"] = s.opts.Backend
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}
