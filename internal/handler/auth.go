package handler

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/service"
)

// AuthHandler signs people in and out.
//
// HANDLER RESPONSIBILITIES:
//   - HandleMagicLinkRequest → email a one-time sign-in link
//   - HandleMagicLinkVerify  → redeem it, set the session cookie, redirect
//   - HandleGitHubLogin      → redirect to GitHub's authorize page
//   - HandleGitHubCallback   → finish GitHub sign-in, set the session cookie
//   - HandleLogout           → clear the session cookie
//
// Browser-facing endpoints answer with redirects, never JSON errors: a
// failure lands on /login with the message in the query string.
type AuthHandler struct {
	auth      *service.AuthService
	transient *TransientCookies
	secure    bool
	logger    *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, transient *TransientCookies, secure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:      authService,
		transient: transient,
		secure:    secure,
		logger:    logger,
	}
}

type magicLinkRequest struct {
	Email string `json:"email"`
	Next  string `json:"next"`
}

// HandleMagicLinkRequest emails a sign-in link.
//
// HTTP: POST /auth/magic-link
// REQUEST BODY: {"email": "ada@example.com", "next": "/matches"}
func (h *AuthHandler) HandleMagicLinkRequest(w http.ResponseWriter, r *http.Request) {
	var req magicLinkRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.auth.RequestMagicLink(r.Context(), clientIP(r), req.Email, req.Next); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"message": "Check your email for a sign-in link",
	})
}

// HandleMagicLinkVerify redeems a link.
//
// HTTP: GET /auth/magic-link/verify?id=...&token=...
func (h *AuthHandler) HandleMagicLinkVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := h.auth.VerifyMagicLink(r.Context(), q.Get("id"), q.Get("token"))
	if err != nil {
		h.redirectLoginError(w, r, err)
		return
	}
	auth.SetSessionCookie(w, result.Token, h.auth.SessionTTL(), h.secure)
	http.Redirect(w, r, result.Redirect, http.StatusSeeOther)
}

// HandleGitHubLogin redirects the browser to GitHub.
//
// HTTP: GET /auth/github/login
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	authURL, err := h.auth.BeginSignIn(r.Context(), clientIP(r), h.transient.For(w, r))
	if err != nil {
		h.redirectLoginError(w, r, err)
		return
	}
	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes GitHub sign-in.
//
// HTTP: GET /auth/github/callback?code=...&state=...
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if errParam := q.Get("error"); errParam != "" {
		h.logger.Info("GitHub sign-in denied", slog.String("error", errParam))
		redirectWithError(w, r, "/login", "GitHub authorization was cancelled")
		return
	}

	result, err := h.auth.CompleteSignIn(r.Context(), h.transient.For(w, r), q.Get("code"), q.Get("state"))
	if err != nil {
		h.redirectLoginError(w, r, err)
		return
	}
	auth.SetSessionCookie(w, result.Token, h.auth.SessionTTL(), h.secure)
	http.Redirect(w, r, result.Redirect, http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
//
// Sessions are stateless JWTs, so "logout" means deleting the cookie. POST
// keeps browsers and link prefetchers from logging people out by accident.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secure)
	writeSuccess(w, http.StatusOK, map[string]any{"redirect": "/login"})
}

func (h *AuthHandler) redirectLoginError(w http.ResponseWriter, r *http.Request, err error) {
	redirectWithError(w, r, "/login", userMessage(h.logger, err))
}

// userMessage is the text shown for err on a redirect target. Internal
// errors are logged and replaced with a generic message.
func userMessage(logger *slog.Logger, err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && statusFor(err) != http.StatusInternalServerError {
		return appErr.Message
	}
	logger.Error("auth flow failed", slog.String("error", err.Error()))
	return "Something went wrong. Please try again."
}

func redirectWithError(w http.ResponseWriter, r *http.Request, path, message string) {
	http.Redirect(w, r, path+"?error="+url.QueryEscape(message), http.StatusSeeOther)
}

// clientIP is the rate-limit key for anonymous endpoints. When the server
// trusts a proxy, RealIP middleware has already replaced RemoteAddr with the
// forwarded address.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
