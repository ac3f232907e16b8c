package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vasapolrittideah/flowup/services/web/internal/model"
	"github.com/vasapolrittideah/flowup/services/web/internal/payload"
	"github.com/vasapolrittideah/flowup/services/web/internal/repository"
	"github.com/vasapolrittideah/flowup/services/web/internal/usecase"
	"github.com/vasapolrittideah/flowup/shared/interceptor"
	"github.com/vasapolrittideah/flowup/shared/utilities"
)

// WebHandler serves the landing page, the signed-in pages and the token API.
type WebHandler struct {
	profileQuery usecase.ProfileQueryUsecase
	logger       *zerolog.Logger
}

// NewWebHandler creates the handler for the signed-in pages and the token API.
func NewWebHandler(profileQuery usecase.ProfileQueryUsecase, logger *zerolog.Logger) *WebHandler {
	return &WebHandler{
		profileQuery: profileQuery,
		logger:       logger,
	}
}

type landingResponse struct {
	Name     string `json:"name"`
	LoginURL string `json:"login_url"`
	SignUp   string `json:"signup_url"`
}

type workspacesResponse struct {
	User    model.SessionUser `json:"user"`
	Profile *model.Profile    `json:"profile"`
}

func (h *WebHandler) Landing(w http.ResponseWriter, _ *http.Request) {
	utilities.WriteJSON(w, http.StatusOK, landingResponse{
		Name:     "FlowUp",
		LoginURL: "/auth/login",
		SignUp:   "/auth/login?screen_hint=signup",
	})
}

func (h *WebHandler) Workspaces(w http.ResponseWriter, r *http.Request) {
	session, ok := interceptor.SessionFromContext[*model.EnrichedSession](r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	profile, err := h.profileQuery.GetProfile(r.Context(), session.User.Sub, session.User.Email)
	if err != nil && !errors.Is(err, repository.ErrProfileNotFound) {
		h.logger.Error().Err(err).Str("sub", session.User.Sub).Msg("failed to load profile")
		utilities.WriteError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	utilities.WriteJSON(w, http.StatusOK, workspacesResponse{
		User:    session.User,
		Profile: profile,
	})
}

func (h *WebHandler) Profiles(w http.ResponseWriter, r *http.Request) {
	session, ok := interceptor.SessionFromContext[*model.EnrichedSession](r.Context())
	if !ok {
		utilities.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	utilities.WriteJSON(w, http.StatusOK, session.User)
}

// Token hands the identity token to the outbound document-store client.
func (h *WebHandler) Token(w http.ResponseWriter, r *http.Request) {
	session, ok := interceptor.SessionFromContext[*model.EnrichedSession](r.Context())
	if !ok || session.User.IDToken == "" {
		utilities.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	utilities.WriteJSON(w, http.StatusOK, payload.TokenResponse{IDToken: session.User.IDToken})
}
