package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// SSEEvent is the payload pushed to connected dashboard clients.
type SSEEvent struct {
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
}

// SSEClient represents one connected dashboard stream.
type SSEClient struct {
	ID      string
	Channel chan SSEEvent
	Done    chan struct{}
}

// SSEManager tracks connected stream clients and fans broadcast events out
// to them. It implements backlog.Notifier so the processor can signal a
// finished pass without knowing about HTTP.
type SSEManager struct {
	clients map[string]*SSEClient
	mutex   sync.RWMutex
	logger  *slog.Logger
}

// NewSSEManager creates an empty manager.
func NewSSEManager(logger *slog.Logger) *SSEManager {
	return &SSEManager{
		clients: make(map[string]*SSEClient),
		logger:  logger,
	}
}

// AddClient registers a new stream client.
func (m *SSEManager) AddClient(client *SSEClient) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.clients[client.ID] = client
	m.logger.Debug("stream client connected",
		"client_id", client.ID, "total", len(m.clients))
}

// RemoveClient drops a stream client and closes its channels.
func (m *SSEManager) RemoveClient(clientID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if client, exists := m.clients[clientID]; exists {
		close(client.Channel)
		close(client.Done)
		delete(m.clients, clientID)
		m.logger.Debug("stream client disconnected",
			"client_id", clientID, "total", len(m.clients))
	}
}

// NotifyChanged tells every connected client that the backlog or result set
// changed and a fresh snapshot should be fetched.
func (m *SSEManager) NotifyChanged() {
	m.broadcast(SSEEvent{EventType: "backlog_changed", Timestamp: time.Now()})
}

func (m *SSEManager) broadcast(event SSEEvent) {
	m.mutex.RLock()

	if len(m.clients) == 0 {
		m.mutex.RUnlock()
		return
	}

	// Collect blocked clients and drop them after releasing the lock.
	var blocked []string
	for clientID, client := range m.clients {
		select {
		case client.Channel <- event:
		default:
			blocked = append(blocked, clientID)
		}
	}
	m.mutex.RUnlock()

	for _, clientID := range blocked {
		m.logger.Warn("stream client blocked, removing", "client_id", clientID)
		m.RemoveClient(clientID)
	}
}

// GetClientCount returns the number of connected clients.
func (m *SSEManager) GetClientCount() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients)
}

// CloseAll disconnects every client, used during shutdown.
func (m *SSEManager) CloseAll() {
	m.mutex.RLock()
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	m.mutex.RUnlock()

	for _, id := range ids {
		m.RemoveClient(id)
	}
}

// StreamUpdates handles the SSE connection for live dashboard refreshes.
func (c *Controller) StreamUpdates(ctx echo.Context) error {
	ctx.Response().Header().Set("Content-Type", "text/event-stream")
	ctx.Response().Header().Set("Cache-Control", "no-cache")
	ctx.Response().Header().Set("Connection", "keep-alive")

	client := &SSEClient{
		ID:      uuid.New().String(),
		Channel: make(chan SSEEvent, 16),
		Done:    make(chan struct{}),
	}
	c.sseManager.AddClient(client)
	defer c.sseManager.RemoveClient(client.ID)

	if err := c.sendSSEMessage(ctx, "connected", map[string]string{
		"clientId": client.ID,
	}); err != nil {
		return err
	}

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-client.Channel:
			if !ok {
				return nil
			}
			if err := c.sendSSEMessage(ctx, event.EventType, event); err != nil {
				c.logger.Debug("stream write failed, dropping client",
					"client_id", client.ID, "error", err)
				return nil
			}

		case <-ticker.C:
			if err := c.sendSSEMessage(ctx, "heartbeat", map[string]any{
				"timestamp": time.Now().Unix(),
				"clients":   c.sseManager.GetClientCount(),
			}); err != nil {
				return nil
			}

		case <-ctx.Request().Context().Done():
			return nil

		case <-client.Done:
			return nil
		}
	}
}

// sendSSEMessage writes one event to the response and flushes it.
func (c *Controller) sendSSEMessage(ctx echo.Context, event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling stream event: %w", err)
	}

	message := fmt.Sprintf("event: %s\ndata: %s\n\n", event, jsonData)

	// Slow or gone clients should not hang the broadcast path.
	if conn, ok := ctx.Response().Writer.(interface{ SetWriteDeadline(time.Time) error }); ok {
		if err := conn.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			c.logger.Debug("setting stream write deadline failed", "error", err)
		}
	}

	if _, err := ctx.Response().Write([]byte(message)); err != nil {
		return fmt.Errorf("writing stream event: %w", err)
	}
	if flusher, ok := ctx.Response().Writer.(http.Flusher); ok {
		flusher.Flush()
	}
	return nil
}
