package realtime

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
)

// Envelope is the frame exchanged with clients in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Server to client events.
const (
	EventStatus         = "status"
	EventReceiveMessage = "receive_message"
	EventMessageSent    = "message_sent"
	EventMessageRead    = "message_read"
	EventError          = "error"
)

// Client to server events.
const (
	EventJoin        = "join"
	EventLeave       = "leave"
	EventMessage     = "message"
	EventSendMessage = "send_message"
	EventMarkRead    = "mark_read"
)

const sendBuffer = 32

// client is one websocket connection. Frames are queued on send and written
// by a single goroutine.
type client struct {
	id     string
	userID uint64
	send   chan []byte
}

// Hub holds the connections open on this instance, keyed by user room.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uint64]map[*client]struct{}
	log   *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{rooms: make(map[uint64]map[*client]struct{}), log: log}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.userID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[c.userID] = room
	}
	room[c] = struct{}{}
}

// remove reports whether c was in its room.
func (h *Hub) remove(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.userID]
	if !ok {
		return false
	}
	if _, ok := room[c]; !ok {
		return false
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, c.userID)
	}
	return true
}

// Deliver queues a pre-encoded frame on every local connection of userID and
// returns how many received it. A connection whose buffer is full misses
// the frame.
func (h *Hub) Deliver(userID uint64, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.rooms[userID] {
		select {
		case c.send <- frame:
			n++
		default:
			h.log.WithFields(logrus.Fields{"user_id": userID, "conn": c.id}).Warn("chat frame dropped")
		}
	}
	return n
}

func (h *Hub) has(c *client) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[c.userID][c]
	return ok
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}
