// Package websocket pushes data-refresh notifications to connected
// dashboard clients so they can refetch the derived tables without polling.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"edupulse/internal/infrastructure"
	"edupulse/internal/services"
)

// Message types pushed to clients
const (
	TypeConnection = "connection"
	TypeDataReload = "data:reload"
)

// Envelope is the wire format for every pushed message
type Envelope struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	running bool
	quit    chan struct{}

	logger *slog.Logger
}

// NewHub creates a new hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		logger:     infrastructure.WithComponent(logger, "websocket.hub"),
	}
}

// Start launches the hub loop
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

// Stop shuts the hub down and disconnects all clients
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
}

func (h *Hub) run() {
	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("hub shut down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client registered",
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr),
				slog.Int("total_clients", count))

			client.enqueue(h.envelope(TypeConnection, map[string]string{
				"status":    "connected",
				"client_id": client.id,
			}, client.traceID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.Info("client unregistered",
				slog.String("client_id", client.id),
				slog.Duration("connection_duration", time.Since(client.connectedAt)),
				slog.Int("total_clients", count))

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("dropping message, client buffer full",
						slog.String("client_id", client.id))
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast pushes a typed message to every connected client
func (h *Hub) Broadcast(ctx context.Context, msgType string, data interface{}) error {
	payload := h.envelope(msgType, data, infrastructure.GetTraceID(ctx))
	if payload == nil {
		return fmt.Errorf("marshal %s message", msgType)
	}

	select {
	case h.broadcast <- payload:
		return nil
	default:
		h.logger.WarnContext(ctx, "broadcast buffer full, dropping message",
			slog.String("type", msgType))
		return fmt.Errorf("broadcast buffer full")
	}
}

// NotifyDataReload implements services.Notifier
func (h *Hub) NotifyDataReload(ctx context.Context, status services.DataStatus) {
	if err := h.Broadcast(ctx, TypeDataReload, status); err != nil {
		h.logger.WarnContext(ctx, "data reload notification not delivered",
			slog.String("error", err.Error()))
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) envelope(msgType string, data interface{}, traceID string) []byte {
	payload, err := json.Marshal(Envelope{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
		TraceID:   traceID,
	})
	if err != nil {
		h.logger.Error("failed to marshal message",
			slog.String("type", msgType),
			slog.String("error", err.Error()))
		return nil
	}
	return payload
}
