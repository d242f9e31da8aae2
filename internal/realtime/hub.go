package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat, in seconds.
	PingInterval = 30
	PongWait     = 60

	sendBuffer = 64
)

// Media change events pushed to gallery viewers.
const (
	EventMediaCreated = "media_created"
	EventMediaUpdated = "media_updated"
	EventMediaDeleted = "media_deleted"
)

// Bridge relays events between server instances.
type Bridge interface {
	Publish(ctx context.Context, event string, payload []byte) error
	Subscribe(ctx context.Context, handler func(event string, payload []byte)) error
}

// Hub keeps the connected gallery viewers and fans media events out to them.
// With a Bridge, events go through the bridge and come back to every instance, this one included.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	bridge  Bridge
	logger  *zap.Logger
}

// NewHub creates a hub. bridge may be nil for a single instance.
func NewHub(bridge Bridge, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		clients: make(map[string]*Client),
		bridge:  bridge,
		logger:  logger,
	}
}

// Run subscribes to the bridge until ctx is done. It returns immediately without a bridge.
func (h *Hub) Run(ctx context.Context) error {
	if h.bridge == nil {
		return nil
	}
	return h.bridge.Subscribe(ctx, func(event string, payload []byte) {
		h.Broadcast(event, json.RawMessage(payload))
	})
}

// Register adds a client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("viewer connected", zap.String("client_id", c.ID), zap.Int("viewers", n))
}

// Unregister removes a client and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.ID]; ok {
		delete(h.clients, c.ID)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("viewer disconnected", zap.String("client_id", c.ID), zap.Int("viewers", n))
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to local clients only. Slow clients miss the event.
func (h *Hub) Broadcast(event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		var err error
		if data, err = json.Marshal(payload); err != nil {
			h.logger.Warn("marshal event", zap.String("event", event), zap.Error(err))
			return
		}
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// Publish delivers an event to viewers on every instance.
func (h *Hub) Publish(ctx context.Context, event string, payload interface{}) {
	if h.bridge == nil {
		h.Broadcast(event, payload)
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("marshal event", zap.String("event", event), zap.Error(err))
		return
	}
	if err := h.bridge.Publish(ctx, event, data); err != nil {
		h.logger.Warn("bridge publish failed, broadcasting locally", zap.String("event", event), zap.Error(err))
		h.Broadcast(event, json.RawMessage(data))
	}
}
