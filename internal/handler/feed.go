package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/buildermatch/internal/apperror"
	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/service"
)

// FeedHandler serves the discovery feed.
type FeedHandler struct {
	feed   *service.FeedService
	logger *slog.Logger
}

func NewFeedHandler(feed *service.FeedService, logger *slog.Logger) *FeedHandler {
	return &FeedHandler{feed: feed, logger: logger}
}

// HandleFeed returns the current feed window.
//
// HTTP: GET /api/feed?limit=50&offset=0
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	feed, err := h.feed.GetFeed(r.Context(), auth.SessionFromContext(r.Context()), limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

// queryInt parses an optional non-negative integer query parameter.
// Absent means 0, which the service reads as "use the default".
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, apperror.ValidationFailed(name, name+" must be a non-negative integer")
	}
	return n, nil
}
