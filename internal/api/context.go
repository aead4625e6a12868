package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/apply-wizard/internal/session"
)

type contextKey string

const sessionContextKey contextKey = "wizard_session"

// SessionFromContext extracts the wizard session from context
func SessionFromContext(ctx context.Context) *session.Session {
	s, ok := ctx.Value(sessionContextKey).(*session.Session)
	if !ok {
		return nil
	}
	return s
}

// ContextWithSession adds the wizard session to context
func ContextWithSession(ctx context.Context, s *session.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// wizardCtx opens the wizard named by the {id} URL parameter
func (s *Server) wizardCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			respondError(w, http.StatusBadRequest, "validation_error", "wizard id is required")
			return
		}

		sess, err := s.sessions.Open(r.Context(), id)
		if err != nil {
			respondWizardError(w, err, "failed to open wizard")
			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithSession(r.Context(), sess)))
	})
}
