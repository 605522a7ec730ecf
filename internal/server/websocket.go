package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
)

// EventHub fans engine events out to connected websocket clients. Slow
// clients are dropped rather than allowed to back up the broadcast.
type EventHub struct {
	mu      sync.Mutex
	clients map[chan []byte]bool
}

// NewEventHub creates an empty hub.
func NewEventHub() *EventHub {
	return &EventHub{clients: make(map[chan []byte]bool)}
}

// Broadcast encodes event as JSON and sends it to every connected client.
// Safe to call from any goroutine; it is the engine's event sink.
func (h *EventHub) Broadcast(event interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- data:
		default:
			delete(h.clients, ch)
			close(ch)
		}
	}
}

// Handler upgrades the request to a websocket and streams events until the
// client disconnects.
func (h *EventHub) Handler(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil) //nolint:staticcheck
	if err != nil {
		log.Printf("server: websocket accept: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck

	ch := make(chan []byte, 64)
	h.mu.Lock()
	h.clients[ch] = true
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.clients[ch] {
			delete(h.clients, ch)
			close(ch)
		}
		h.mu.Unlock()
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-ch:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Write(writeCtx, websocket.MessageText, data) //nolint:staticcheck
			cancel()
			if err != nil {
				return
			}
		}
	}
}
