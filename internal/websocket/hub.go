package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"twexport/internal/infrastructure"
	"twexport/pkg/contracts/domain"
)

// Message types sent to clients
const (
	TypeConnection = "connection"
	TypeProgress   = "export:progress"
	TypeStatus     = "export:status"
)

const (
	broadcastBuffer = 256
	statsInterval   = 30 * time.Second
)

// Message is the envelope of every frame the hub sends
type Message struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// ExportStatus is the payload of an export:status message
type ExportStatus struct {
	ExportID string   `json:"export_id"`
	Status   string   `json:"status"`
	Message  string   `json:"message,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu      sync.RWMutex
	logger  *slog.Logger
	metrics *Metrics

	totalConnections int64
	messagesSent     int64
	messagesDropped  int64

	quit    chan struct{}
	running bool
}

// NewHub creates a hub. metrics may be nil.
func NewHub(logger *slog.Logger, metrics *Metrics) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		quit:       make(chan struct{}),
	}
}

// Start starts the hub's goroutines
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
	go h.reportStats()
}

// Run is the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// addClient registers the client and queues the connection message. Both
// happen under the lock so Stop cannot close the send channel in between.
func (h *Hub) addClient(client *Client) {
	ctx := client.context()
	data, err := encode(TypeConnection, map[string]string{
		"status":    "connected",
		"client_id": client.id,
	}, client.traceID)

	h.mu.Lock()
	defer h.mu.Unlock()

	select {
	case <-h.quit:
		close(client.send)
		h.logger.DebugContext(ctx, "hub stopped, rejecting client", slog.String("client_id", client.id))
		return
	default:
	}

	h.clients[client] = true
	h.totalConnections++
	h.metrics.recordConnect(ctx)
	h.logger.InfoContext(ctx, "client registered",
		slog.Int("total_clients", len(h.clients)),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	if err != nil {
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.WarnContext(ctx, "client buffer full on connect", slog.String("client_id", client.id))
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	h.metrics.recordDisconnect(ctx, time.Since(client.connectedAt))
	h.logger.InfoContext(ctx, "client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", time.Since(client.connectedAt)))
}

// fanOut sends under the lock so Stop cannot close a send channel mid-loop.
func (h *Hub) fanOut(message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sent, evicted := 0, 0
	for client := range h.clients {
		select {
		case client.send <- message:
			sent++
		default:
			close(client.send)
			delete(h.clients, client)
			evicted++
			h.metrics.recordDisconnect(client.context(), time.Since(client.connectedAt))
			h.logger.WarnContext(client.context(), "client send buffer full, disconnecting",
				slog.String("client_id", client.id))
		}
	}
	h.messagesSent += int64(sent)
	h.metrics.recordSent(context.Background(), sent)

	if evicted > 0 {
		h.logger.Warn("some clients missed a broadcast",
			slog.Int("sent", sent),
			slog.Int("evicted", evicted))
	}
}

// ReportProgress broadcasts one institutional fetch event. It never blocks
// the fetch: when the queue is full the event is dropped.
func (h *Hub) ReportProgress(ctx context.Context, p domain.FetchProgress) {
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now()
	}
	h.publish(ctx, TypeProgress, p)
}

// BroadcastStatus announces the final state of an export
func (h *Hub) BroadcastStatus(ctx context.Context, status ExportStatus) {
	h.publish(ctx, TypeStatus, status)
}

func (h *Hub) publish(ctx context.Context, msgType string, data interface{}) {
	payload, err := encode(msgType, data, infrastructure.GetTraceID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to marshal message",
			slog.String("type", msgType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- payload:
	default:
		h.mu.Lock()
		h.messagesDropped++
		h.mu.Unlock()
		h.metrics.recordDropped(ctx)
		h.logger.DebugContext(ctx, "broadcast queue full, message dropped", slog.String("type", msgType))
	}
}

func encode(msgType string, data interface{}, traceID string) ([]byte, error) {
	return json.Marshal(Message{
		Type:      msgType,
		Data:      data,
		Timestamp: time.Now().Format(time.RFC3339),
		TraceID:   traceID,
	})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// Stop stops the hub and closes every client
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.running {
		return
	}
	h.running = false
	close(h.quit)

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// Stats returns counters for the hub
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"messages_dropped":  h.messagesDropped,
		"broadcast_queue":   len(h.broadcast),
	}
}

func (h *Hub) reportStats() {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.quit:
			return
		case <-ticker.C:
			stats := h.Stats()
			h.logger.Debug("websocket hub stats",
				slog.Any("active_clients", stats["active_clients"]),
				slog.Any("messages_sent", stats["messages_sent"]),
				slog.Any("messages_dropped", stats["messages_dropped"]),
				slog.Any("broadcast_queue", stats["broadcast_queue"]))
		}
	}
}
