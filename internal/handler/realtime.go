package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sakif/buildermatch/internal/auth"
	"github.com/sakif/buildermatch/internal/service"
)

const (
	// pingPeriod keeps idle connections alive through proxies.
	pingPeriod = 30 * time.Second
	// pongWait must exceed pingPeriod: a client that misses one ping is
	// given until the next one to answer.
	pongWait   = 2 * pingPeriod
	writeWait  = 10 * time.Second
	maxReadMsg = 512
)

// RealtimeHandler pushes new messages of one thread over a websocket.
//
// CONNECTION LIFECYCLE:
//  1. Membership is checked BEFORE the upgrade, so outsiders get a normal
//     JSON 401/403 instead of a socket.
//  2. After the upgrade a reader goroutine drains client frames (we expect
//     only pongs and close frames) and notices when the socket dies.
//  3. The handler goroutine writes every published message as JSON and a
//     ping every 30s, until the reader or the subscription ends.
//
// The subscription is bound to the request context and torn down on return.
type RealtimeHandler struct {
	messaging *service.MessagingService
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// NewRealtimeHandler accepts upgrades from browsers on allowedOrigins
// (scheme://host[:port]).
func NewRealtimeHandler(messaging *service.MessagingService, allowedOrigins []string, logger *slog.Logger) *RealtimeHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[strings.TrimSuffix(strings.ToLower(o), "/")] = true
	}

	return &RealtimeHandler{
		messaging: messaging,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true // not a browser
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
			},
		},
		logger: logger,
	}
}

// HandleThreadSocket streams a thread's new messages.
//
// HTTP: GET /api/threads/{id}/ws (websocket upgrade)
func (h *RealtimeHandler) HandleThreadSocket(w http.ResponseWriter, r *http.Request) {
	threadID := r.PathValue("id")
	stream, stop, err := h.messaging.Subscribe(r.Context(), auth.SessionFromContext(r.Context()), threadID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	defer stop()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		h.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxReadMsg)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-stream:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
