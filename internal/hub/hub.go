// Package hub fans map and speech commands out to connected browser clients.
// A Hub implements domain.MapView and domain.Speaker.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/couchcryptid/cad-navigation-service/internal/domain"
	"github.com/couchcryptid/cad-navigation-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Message types sent to clients.
const (
	TypeSnapshot     = "snapshot"
	TypeView         = "view"
	TypeMarker       = "marker"
	TypeMarkerRemove = "marker_remove"
	TypeRoute        = "route"
	TypeRouteClear   = "route_clear"
	TypeFitBounds    = "fit_bounds"
	TypeNotice       = "notice"
	TypeSpeak        = "speak"
	TypeSpeechCancel = "speech_cancel"
	TypeState        = "state"
	TypePong         = "pong"
)

// Message is the envelope for every server-to-client frame.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Client is one connected websocket peer.
type Client struct {
	ID   string
	Send chan []byte
}

// NewClient creates a client with a buffered send queue.
func NewClient(id string, bufferSize int) *Client {
	return &Client{
		ID:   id,
		Send: make(chan []byte, bufferSize),
	}
}

// Option configures a Hub.
type Option func(*Hub)

// WithClock sets the clock used for speech completion estimates.
func WithClock(c clockwork.Clock) Option {
	return func(h *Hub) { h.clock = c }
}

// Hub tracks connected clients and the current map scene.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	sceneMu sync.Mutex
	scene   Scene

	speechMu sync.Mutex
	pending  map[string]chan struct{}
	voices   []domain.Voice

	clock   clockwork.Clock
	metrics *observability.Metrics
	logger  *slog.Logger
}

// New creates a Hub. Call Run to start delivering messages.
func New(metrics *observability.Metrics, logger *slog.Logger, opts ...Option) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan []byte, 256),
		scene:      newScene(),
		pending:    make(map[string]chan struct{}),
		clock:      clockwork.NewRealClock(),
		metrics:    metrics,
		logger:     logger.With("component", "hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run delivers registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.metrics.WSClients.Set(float64(total))
			h.sendSnapshot(client)
			h.logger.Debug("client registered", "client_id", client.ID, "total", total)

		case client := <-h.unregister:
			h.removeClient(client)

		case data := <-h.broadcast:
			h.fanout(data)
		}
	}
}

// Register queues a client for registration.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister queues a client for removal; its Send channel is closed.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends a message to every client. Messages are dropped when the
// broadcast queue is full.
func (h *Hub) Broadcast(msgType string, payload any) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		h.logger.Error("encode message failed", "type", msgType, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "type", msgType)
	}
}

// Send delivers a message to one client without blocking.
func (h *Hub) Send(client *Client, msgType string, payload any) {
	data, err := json.Marshal(Message{Type: msgType, Payload: payload})
	if err != nil {
		return
	}
	select {
	case client.Send <- data:
	default:
		h.logger.Debug("client send buffer full", "client_id", client.ID, "type", msgType)
	}
}

func (h *Hub) fanout(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Debug("client send buffer full", "client_id", client.ID)
		}
	}
}

func (h *Hub) sendSnapshot(client *Client) {
	h.Send(client, TypeSnapshot, h.Scene())
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.Send)
	total := len(h.clients)
	h.mu.Unlock()

	h.metrics.WSClients.Set(float64(total))
	h.logger.Debug("client unregistered", "client_id", client.ID, "total", total)
}

func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.Send)
	}
	h.clients = make(map[*Client]struct{})
	h.metrics.WSClients.Set(0)
}
