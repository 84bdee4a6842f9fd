package relay

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/campusdesk/meeting-gateway/internal/models"
)

// Hub holds every connected client plus a membership group per
// meeting id. Meeting events fan out to the meeting's members only;
// the connection-count signal goes to everyone.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	meetings  map[string]map[*Client]struct{}
	meetingOf map[*Client]string
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		meetings:  make(map[string]map[*Client]struct{}),
		meetingOf: make(map[*Client]string),
	}
}

// Add registers a connected client.
func (h *Hub) Add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

// Remove deregisters a client and drops it from its meeting group.
func (h *Hub) Remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	h.leaveLocked(c)
}

// JoinMeeting moves a client into a meeting's broadcast group. A
// client belongs to at most one meeting at a time. Clients not
// registered with the hub (HTTP fallback callers) are ignored.
func (h *Hub) JoinMeeting(c *Client, meetingID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, registered := h.clients[c]; !registered {
		return
	}

	h.leaveLocked(c)

	group, ok := h.meetings[meetingID]
	if !ok {
		group = make(map[*Client]struct{})
		h.meetings[meetingID] = group
	}
	group[c] = struct{}{}
	h.meetingOf[c] = meetingID
}

// Disband removes a meeting's broadcast group after the meeting ends.
func (h *Hub) Disband(meetingID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.meetings[meetingID] {
		delete(h.meetingOf, c)
	}
	delete(h.meetings, meetingID)
}

func (h *Hub) leaveLocked(c *Client) {
	meetingID, ok := h.meetingOf[c]
	if !ok {
		return
	}
	delete(h.meetingOf, c)

	group := h.meetings[meetingID]
	delete(group, c)
	if len(group) == 0 {
		delete(h.meetings, meetingID)
	}
}

// BroadcastGlobal emits an event to every connected client.
func (h *Hub) BroadcastGlobal(event string, data any) {
	frame, ok := marshalFrame(event, data)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		c.push(frame)
	}
}

// BroadcastMeeting emits an event to a meeting's members.
func (h *Hub) BroadcastMeeting(meetingID, event string, data any) {
	frame, ok := marshalFrame(event, data)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.meetings[meetingID] {
		c.push(frame)
	}
}

func marshalFrame(event string, data any) ([]byte, bool) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal broadcast payload")
		return nil, false
	}
	frame, err := json.Marshal(models.Envelope{Event: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("failed to marshal broadcast frame")
		return nil, false
	}
	return frame, true
}
