package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket"

	"lor-go-bridge/internal/director"
)

// WSHub fans director events out to connected websocket clients, so a UI
// watching /ws sees every channel and unit state change as it happens.
type WSHub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}

	events   chan director.Event
	done     chan struct{}
	stopOnce sync.Once
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// NewWSHub creates a hub. Run must be started for events to flow.
func NewWSHub(logger *slog.Logger) *WSHub {
	return &WSHub{
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
		events:  make(chan director.Event, 256),
		done:    make(chan struct{}),
	}
}

// Run delivers events until Stop. Each event is marshalled once and fanned
// out; a client whose send queue is full is dropped rather than allowed to
// hold the state stream back for everyone else.
func (h *WSHub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case event := <-h.events:
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error("ws marshal event", "type", event.Type, "err", err)
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					delete(h.clients, client)
					close(client.send)
					h.logger.Warn("ws client evicted (too slow)")
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop shuts the hub down and disconnects all clients. Safe to call
// multiple times.
func (h *WSHub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Broadcast queues a director event for delivery to every client.
func (h *WSHub) Broadcast(event director.Event) {
	select {
	case h.events <- event:
	default:
		h.logger.Warn("ws event queue full, dropping", "type", event.Type)
	}
}

// add registers a client; it reports false when the hub is already stopped.
func (h *WSHub) add(client *wsClient) bool {
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		return false
	default:
	}
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("ws client connected", "total", total)
	return true
}

// remove drops a client and closes its send queue. Idempotent: eviction
// and shutdown may already have done both.
func (h *WSHub) remove(client *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("ws client disconnected", "total", total)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	opts := &websocket.AcceptOptions{}
	if len(s.allowedOrigins) > 0 {
		opts.OriginPatterns = s.allowedOrigins
	}
	// If no allowedOrigins configured, nhooyr defaults to same-origin check.

	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		s.logger.Error("ws accept", "err", err)
		return
	}

	// Clients only listen; nothing they send should be large.
	conn.SetReadLimit(4096)

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	if !s.wsHub.add(client) {
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}

	go s.wsWritePump(client)
	s.wsReadPump(client)
}

func (s *Server) wsWritePump(client *wsClient) {
	for msg := range client.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := client.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			return
		}
	}
	// Send queue closed by the hub; the stream is over.
	client.conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Server) wsReadPump(client *wsClient) {
	defer s.wsHub.remove(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel the read when the hub shuts down so handleWS returns.
	go func() {
		select {
		case <-s.wsHub.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		_, _, err := client.conn.Read(ctx)
		if err != nil {
			return
		}
		// Incoming client messages are ignored.
	}
}
