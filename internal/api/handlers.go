package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/terra-clan/apply-wizard/internal/models"
	"github.com/terra-clan/apply-wizard/internal/session"
	"github.com/terra-clan/apply-wizard/internal/wizard"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Fields  models.FieldErrors `json:"fields,omitempty"`
}

const maxBodyBytes = 1 << 20

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondErrorFields(w, status, code, message, nil)
}

func respondErrorFields(w http.ResponseWriter, status int, code, message string, fields models.FieldErrors) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
			Fields:  fields,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// respondWizardError maps errors of the wizard packages to status codes.
// Unexpected errors are logged with logMsg and reported as 500.
func respondWizardError(w http.ResponseWriter, err error, logMsg string) {
	var verr *wizard.ValidationError
	switch {
	case errors.As(err, &verr):
		respondErrorFields(w, http.StatusUnprocessableEntity, "validation_failed", verr.Error(), verr.Fields)
	case errors.Is(err, session.ErrInvalidID):
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, session.ErrSessionClosed):
		respondError(w, http.StatusNotFound, "not_found", "wizard not found")
	case errors.Is(err, models.ErrUnknownSection), errors.Is(err, models.ErrInvalidPatch):
		respondError(w, http.StatusBadRequest, "invalid_patch", err.Error())
	case errors.Is(err, wizard.ErrUnknownStep):
		respondError(w, http.StatusBadRequest, "unknown_step", err.Error())
	case errors.Is(err, wizard.ErrWrongStep):
		respondError(w, http.StatusConflict, "wrong_step", err.Error())
	case errors.Is(err, wizard.ErrResetNotConfirmed):
		respondError(w, http.StatusPreconditionRequired, "confirmation_required", err.Error())
	case errors.Is(err, wizard.ErrSubmitFailed):
		slog.Error("failed to submit application", "error", err)
		respondError(w, http.StatusBadGateway, "submit_failed", "submission failed, try again")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		slog.Error(logMsg, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", logMsg)
	}
}

// decodeBody decodes an optional JSON body into v. An empty body leaves
// v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Ping(r.Context()); err != nil {
		slog.Warn("readiness check failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, "not_ready", "service not ready")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
