package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"teamhub-backend/pkg/logger"
	"teamhub-backend/pkg/metrics"
)

// Room names a broadcast scope. Conversation rooms fan out to everyone
// viewing a conversation; user rooms address all of one user's connections.
type Room string

// ConversationRoom returns the room for a conversation's subscribers
func ConversationRoom(conversationID uuid.UUID) Room {
	return Room("conversation:" + conversationID.String())
}

// UserRoom returns the personal room for a user's connections
func UserRoom(userID uuid.UUID) Room {
	return Room("user:" + userID.String())
}

// envelope is the wire format for every outbound event
type envelope struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Router maps rooms to subscribed clients and fans events out to them.
// Delivery is in-process only; each payload is marshaled once per publish.
// Slow consumers are skipped rather than allowed to stall the fan-out.
type Router struct {
	mu       sync.RWMutex
	rooms    map[Room]map[*Client]bool
	byClient map[*Client]map[Room]bool
}

// NewRouter creates a new Router
func NewRouter() *Router {
	return &Router{
		rooms:    make(map[Room]map[*Client]bool),
		byClient: make(map[*Client]map[Room]bool),
	}
}

// Join subscribes a client to a room
func (r *Router) Join(client *Client, room Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rooms[room] == nil {
		r.rooms[room] = make(map[*Client]bool)
		metrics.ChatRoomsActive.Inc()
	}
	r.rooms[room][client] = true

	if r.byClient[client] == nil {
		r.byClient[client] = make(map[Room]bool)
	}
	r.byClient[client][room] = true
}

// Leave unsubscribes a client from a room
func (r *Router) Leave(client *Client, room Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leave(client, room)
}

func (r *Router) leave(client *Client, room Room) {
	if clients, ok := r.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(r.rooms, room)
			metrics.ChatRoomsActive.Dec()
		}
	}
	if rooms, ok := r.byClient[client]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(r.byClient, client)
		}
	}
}

// LeaveAll removes a client from every room it joined and returns the
// rooms it was in
func (r *Router) LeaveAll(client *Client) []Room {
	r.mu.Lock()
	defer r.mu.Unlock()

	var rooms []Room
	for room := range r.byClient[client] {
		rooms = append(rooms, room)
	}
	for _, room := range rooms {
		r.leave(client, room)
	}
	return rooms
}

// Rooms returns a snapshot of the rooms a client has joined
func (r *Router) Rooms(client *Client) []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rooms []Room
	for room := range r.byClient[client] {
		rooms = append(rooms, room)
	}
	return rooms
}

// InRoom reports whether a client is subscribed to a room
func (r *Router) InRoom(client *Client, room Room) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byClient[client][room]
}

// Publish broadcasts an event to every client in a room
func (r *Router) Publish(room Room, event string, payload interface{}) {
	r.PublishExcept(room, nil, event, payload)
}

// PublishExcept broadcasts an event to every client in a room except one,
// typically the originator of the event
func (r *Router) PublishExcept(room Room, except *Client, event string, payload interface{}) {
	data, err := json.Marshal(envelope{Event: event, Data: payload, Timestamp: time.Now()})
	if err != nil {
		logger.Error("failed to marshal broadcast event")
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for client := range r.rooms[room] {
		if client == except {
			continue
		}
		select {
		case client.send <- data:
			metrics.ChatBroadcastDeliveredTotal.WithLabelValues(event).Inc()
		default:
			// Slow consumer; the client's own pumps will tear it down
			metrics.ChatBroadcastDroppedTotal.Inc()
		}
	}
}
