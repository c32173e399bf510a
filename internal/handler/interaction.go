package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/model"
	"github.com/sakif/buildermatch/internal/service"
)

// InteractionHandler serves likes, passes, saves, matches and first
// messages.
type InteractionHandler struct {
	interactions *service.InteractionService
	logger       *slog.Logger
}

func NewInteractionHandler(interactions *service.InteractionService, logger *slog.Logger) *InteractionHandler {
	return &InteractionHandler{interactions: interactions, logger: logger}
}

// HandleLike likes a builder.
//
// HTTP: POST /api/people/{id}/like
// RESPONSE: {"success": true, "matched": true, "matchId": "...", "threadId": "...", "createdNewMatch": true}
func (h *InteractionHandler) HandleLike(w http.ResponseWriter, r *http.Request) {
	result, err := h.interactions.Like(r.Context(), auth.SessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]any{
		"matched":         result.Matched,
		"matchId":         result.MatchID,
		"threadId":        result.ThreadID,
		"createdNewMatch": result.CreatedNewMatch,
	})
}

// HTTP: POST /api/people/{id}/pass
func (h *InteractionHandler) HandlePass(w http.ResponseWriter, r *http.Request) {
	if err := h.interactions.Pass(r.Context(), auth.SessionFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// HTTP: POST /api/people/{id}/save
func (h *InteractionHandler) HandleSaveUser(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, model.UserTarget(r.PathValue("id")))
}

// HTTP: POST /api/projects/{id}/save
func (h *InteractionHandler) HandleSaveProject(w http.ResponseWriter, r *http.Request) {
	h.save(w, r, model.ProjectTarget(r.PathValue("id")))
}

func (h *InteractionHandler) save(w http.ResponseWriter, r *http.Request, target model.Target) {
	if err := h.interactions.Save(r.Context(), auth.SessionFromContext(r.Context()), target); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}

// HTTP: GET /api/interactions
func (h *InteractionHandler) HandleInteractions(w http.ResponseWriter, r *http.Request) {
	interactions, err := h.interactions.Interactions(r.Context(), auth.SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"interactions": interactions})
}

// HTTP: GET /api/matches
func (h *InteractionHandler) HandleMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.interactions.Matches(r.Context(), auth.SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

type startThreadRequest struct {
	Message string `json:"message"`
}

// HandleStartThread sends a first message to a builder.
//
// HTTP: POST /api/people/{id}/threads
// REQUEST BODY: {"message": "Hi! Loved your CLI project."}
func (h *InteractionHandler) HandleStartThread(w http.ResponseWriter, r *http.Request) {
	var req startThreadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	result, err := h.interactions.StartThreadDirect(r.Context(), auth.SessionFromContext(r.Context()), r.PathValue("id"), req.Message)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeSuccess(w, status, map[string]any{
		"threadId": result.ThreadID,
		"created":  result.Created,
	})
}
