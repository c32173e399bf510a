// Package realtime fans newly persisted messages out to every client that
// currently has the thread open.
//
// SUBSCRIPTION LIFECYCLE:
// A websocket handler calls Subscribe with the request context when a thread
// view opens. The returned channel receives every message published to that
// thread until the context is cancelled (socket closed, server shutdown) or
// the cleanup func is called, at which point the channel is closed and the
// subscriber forgotten. No subscription outlives its connection.
//
// DELIVERY:
// Publish never blocks: a subscriber whose buffer is full misses the event.
// Clients reload the thread on reconnect and dedupe by message id, so
// at-least-once-per-connected-client is all the hub promises.
package realtime

import (
	"context"
	"sync"

	"github.com/sakif/buildermatch/internal/model"
)

const defaultBufferSize = 32

// Hub is an in-process pub/sub keyed by thread id.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]chan model.Message
	nextID      int64
	bufferSize  int
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[int64]chan model.Message),
		bufferSize:  defaultBufferSize,
	}
}

// Subscribe registers interest in threadID. The returned cleanup is
// idempotent and also runs automatically when ctx is done.
func (h *Hub) Subscribe(ctx context.Context, threadID string) (<-chan model.Message, func()) {
	stream := make(chan model.Message, h.bufferSize)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subscribers[threadID] == nil {
		h.subscribers[threadID] = make(map[int64]chan model.Message)
	}
	h.subscribers[threadID][id] = stream
	h.mu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() { h.unsubscribe(threadID, id) })
	}

	go func() {
		<-ctx.Done()
		cleanup()
	}()

	return stream, cleanup
}

// Publish delivers msg to every current subscriber of msg.ThreadID.
func (h *Hub) Publish(msg model.Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, stream := range h.subscribers[msg.ThreadID] {
		select {
		case stream <- msg:
		default:
		}
	}
}

// Subscribers reports how many streams are open for threadID.
func (h *Hub) Subscribers(threadID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[threadID])
}

func (h *Hub) unsubscribe(threadID string, id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs := h.subscribers[threadID]
	stream, ok := subs[id]
	if !ok {
		return
	}
	delete(subs, id)
	close(stream)
	if len(subs) == 0 {
		delete(h.subscribers, threadID)
	}
}
