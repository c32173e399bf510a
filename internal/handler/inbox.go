package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/service"
)

// InboxHandler serves threads and messages.
type InboxHandler struct {
	messaging *service.MessagingService
	logger    *slog.Logger
}

func NewInboxHandler(messaging *service.MessagingService, logger *slog.Logger) *InboxHandler {
	return &InboxHandler{messaging: messaging, logger: logger}
}

// HTTP: GET /api/threads
func (h *InboxHandler) HandleListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.messaging.ListThreads(r.Context(), auth.SessionFromContext(r.Context()))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"threads": threads})
}

// HTTP: GET /api/threads/{id}/messages
func (h *InboxHandler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	view, err := h.messaging.GetThreadMessages(r.Context(), auth.SessionFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// HandleSend appends a message.
//
// HTTP: POST /api/threads/{id}/messages
// REQUEST BODY: {"content": "..."}
func (h *InboxHandler) HandleSend(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	msg, err := h.messaging.SendMessage(r.Context(), auth.SessionFromContext(r.Context()), r.PathValue("id"), req.Content)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, map[string]any{"message": msg})
}

// HTTP: POST /api/threads/{id}/read
func (h *InboxHandler) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.messaging.MarkRead(r.Context(), auth.SessionFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, nil)
}
