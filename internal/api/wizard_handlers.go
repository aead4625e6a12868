package api

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/apply-wizard/internal/models"
	"github.com/terra-clan/apply-wizard/internal/wizard"
)

func (s *Server) handleCreateWizard(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create(r.Context())
	if err != nil {
		respondWizardError(w, err, "failed to create wizard")
		return
	}

	state, err := sess.State()
	if err != nil {
		respondWizardError(w, err, "failed to read wizard")
		return
	}

	w.Header().Set("Location", wizardPath(sess.ID(), ""))
	respondJSON(w, http.StatusCreated, state)
}

// handleResumeWizard redirects to the step the applicant was last on
func (s *Server) handleResumeWizard(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	route, err := sess.Route()
	if err != nil {
		respondWizardError(w, err, "failed to read wizard")
		return
	}

	http.Redirect(w, r, wizardPath(sess.ID(), route), http.StatusFound)
}

func (s *Server) handleCloseWizard(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	if err := s.sessions.Close(r.Context(), sess.ID()); err != nil {
		respondWizardError(w, err, "failed to close wizard")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": "wizard released, draft kept",
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := SessionFromContext(r.Context()).State()
	if err != nil {
		respondWizardError(w, err, "failed to read wizard")
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleGetStepView(w http.ResponseWriter, r *http.Request) {
	step, err := wizard.ParseStep(chi.URLParam(r, "step"))
	if err != nil {
		respondWizardError(w, err, "failed to parse step")
		return
	}

	view, err := SessionFromContext(r.Context()).StepView(step)
	if err != nil {
		respondWizardError(w, err, "failed to build step view")
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handlePatchSection(w http.ResponseWriter, r *http.Request) {
	section, err := models.ParseSection(chi.URLParam(r, "section"))
	if err != nil {
		respondWizardError(w, err, "failed to parse section")
		return
	}

	value, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "failed to read body")
		return
	}

	patch := models.SectionPatch{Section: section, Value: value}
	state, fieldErrs, err := SessionFromContext(r.Context()).Patch(patch)
	if err != nil {
		respondWizardError(w, err, "failed to apply patch")
		return
	}

	respondJSON(w, http.StatusOK, models.PatchResponse{State: state, FieldErrors: fieldErrs})
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	var req models.NextRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	state, err := SessionFromContext(r.Context()).Next(r.Context(), req.Values)
	if err != nil {
		respondWizardError(w, err, "failed to advance wizard")
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	state, err := SessionFromContext(r.Context()).Back()
	if err != nil {
		respondWizardError(w, err, "failed to go back")
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	var req models.ResetRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	sess := SessionFromContext(r.Context())
	state, err := sess.Reset(req.Confirm)
	if err != nil {
		respondWizardError(w, err, "failed to reset wizard")
		return
	}

	slog.Info("wizard reset", "id", sess.ID())
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	sess := SessionFromContext(r.Context())

	receipt, err := sess.Submit(r.Context())
	if err != nil {
		respondWizardError(w, err, "failed to submit application")
		return
	}

	state, err := sess.State()
	if err != nil {
		respondWizardError(w, err, "failed to read wizard")
		return
	}
	respondJSON(w, http.StatusOK, models.SubmitResponse{Receipt: receipt, State: state})
}

// handleEmailCheck answers with 200 even when the address is taken or the
// check failed; the outcome is carried in the response message.
func (s *Server) handleEmailCheck(w http.ResponseWriter, r *http.Request) {
	var req models.EmailCheckRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "email is required")
		return
	}

	sess := SessionFromContext(r.Context())
	resp, err := sess.CheckEmail(r.Context(), req.Email)
	if err != nil && resp.Message == "" {
		respondWizardError(w, err, "failed to check email")
		return
	}
	if err != nil {
		slog.Warn("email uniqueness check failed", "id", sess.ID(), "error", err)
	}
	respondJSON(w, http.StatusOK, resp)
}

// wizardPath builds the API path of a wizard, optionally followed by a route
func wizardPath(id, route string) string {
	return "/api/v1/wizards/" + id + route
}
