// Package events broadcasts alert lifecycle events to websocket subscribers.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kiranshivaraju/soundwatch/pkg/models"
)

const broadcastBuffer = 64

// Hub maintains the set of active clients and broadcasts events to them.
// Run owns the client set; everything else talks to it over channels.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      atomic.Int64
	upgrader   websocket.Upgrader
}

// NewHub creates a hub. When allowedOrigin is non-empty, browser upgrades
// from any other origin are refused.
func NewHub(allowedOrigin string) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return allowedOrigin == "" || origin == "" || origin == allowedOrigin
			},
		},
	}
}

// Run serves register, unregister and broadcast until ctx is cancelled, then
// closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				h.remove(c)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.count.Add(1)
			slog.Debug("websocket client registered", "remote", c.conn.RemoteAddr().String())

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
				slog.Debug("websocket client unregistered", "remote", c.conn.RemoteAddr().String())
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					slog.Warn("websocket client too slow, dropping", "remote", c.conn.RemoteAddr().String())
					h.remove(c)
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	h.count.Add(-1)
	close(c.send)
}

// Publish queues evt for every connected client. It never blocks: when the
// broadcast buffer is full or the hub has stopped the event is dropped.
func (h *Hub) Publish(evt models.AlertEvent) {
	if evt.Timestamp == "" {
		evt.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	msg, err := json.Marshal(evt)
	if err != nil {
		slog.Error("marshal alert event", "type", evt.Type, "error", err)
		return
	}
	select {
	case <-h.done:
	case h.broadcast <- msg:
	default:
		slog.Warn("event broadcast buffer full, dropping", "type", evt.Type)
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int { return int(h.count.Load()) }

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	c := &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
