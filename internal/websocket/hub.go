package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dukerupert/chorewheel/internal/model"
)

// Message is a live update pushed to connected clients.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     int64          `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action string, id int64, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	h.send(msg, nil)
}

// BroadcastTo sends msg to unfiltered clients and to clients following one
// of members.
func (h *Hub) BroadcastTo(msg Message, members []int64) {
	h.send(msg, func(c *Client) bool {
		return c.memberID == 0 || slices.Contains(members, c.memberID)
	})
}

func (h *Hub) send(msg Message, want func(*Client) bool) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if want != nil && !want(c) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop rather than block the engine.
		}
	}
}

// OccurrenceChanged publishes an occurrence event to everyone following one
// of its assignees.
func (h *Hub) OccurrenceChanged(event string, occ model.Occurrence) {
	h.BroadcastTo(NewMessage("occurrence", event, occ.ID, map[string]any{
		"recurring_chore_id": occ.RecurringChoreID,
		"due_date":           occ.DueDate.Format(time.DateOnly),
		"status":             string(occ.Status),
		"assigned_user_ids":  occ.AssignedTo,
	}), occ.AssignedTo)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
