package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/service"
)

// profilePath is where link failures land.
const profilePath = "/dashboard/profile"

// LinkHandler connects a GitHub account to the signed-in user.
type LinkHandler struct {
	link      *service.LinkService
	transient *TransientCookies
	logger    *slog.Logger
}

func NewLinkHandler(link *service.LinkService, transient *TransientCookies, logger *slog.Logger) *LinkHandler {
	return &LinkHandler{link: link, transient: transient, logger: logger}
}

// HandleStart redirects to GitHub to link an account.
//
// HTTP: GET /auth/start
func (h *LinkHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.link.BeginLink(r.Context(), clientIP(r), h.transient.For(w, r))
	if err != nil {
		redirectWithError(w, r, profilePath, userMessage(h.logger, err))
		return
	}
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// HandleCallback finishes linking and sends the browser to the repository
// picker.
//
// HTTP: GET /auth/callback?code=...&state=...
func (h *LinkHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("GitHub link denied", slog.String("error", errParam))
		redirectWithError(w, r, profilePath, "GitHub authorization was cancelled")
		return
	}

	session := auth.SessionFromContext(r.Context())
	result, err := h.link.CompleteLink(r.Context(), session, h.transient.For(w, r), q.Get("code"), q.Get("state"))
	if errors.Is(err, apperror.ErrUnauthenticated) {
		redirectWithError(w, r, "/login", "Not authenticated")
		return
	}
	if err != nil {
		redirectWithError(w, r, profilePath, userMessage(h.logger, err))
		return
	}
	http.Redirect(w, r, result.Redirect, http.StatusSeeOther)
}

// HandleStatus reports whether GitHub is connected.
//
// HTTP: GET /api/me/github
func (h *LinkHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.link.ConnectionStatus(r.Context(), auth.SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleDisconnect unlinks GitHub.
//
// HTTP: DELETE /api/me/github
func (h *LinkHandler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := h.link.Disconnect(r.Context(), auth.SessionFromContext(r.Context())); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{"message": "GitHub disconnected"})
}
