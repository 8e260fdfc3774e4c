package realtime

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/anonto42/campus-hub/backend/internal/models"
	"go.uber.org/zap"
)

const (
	EventAuthenticate  = "authenticate"
	EventAuthenticated = "authenticated"
	EventNotification  = "notification"
	EventError         = "error"
)

// Envelope is the frame exchanged with clients
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a frame for event carrying data.
func Encode(event string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Conn is one client connection's outbound queue.
type Conn struct {
	send    chan []byte
	actorID string // guarded by Hub.mu
}

func NewConn(buffer int) *Conn {
	return &Conn{send: make(chan []byte, buffer)}
}

// Messages exposes the frames queued for this connection.
func (c *Conn) Messages() <-chan []byte {
	return c.send
}

// RoomListener is told when an actor's room gains its first or loses its last connection
type RoomListener func(actorID string, open bool)

// Hub groups connections into per-actor rooms.
type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]map[*Conn]struct{}
	listeners []RoomListener
	logger    *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Conn]struct{}),
		logger: logger.Named("hub"),
	}
}

// OnRoomChange registers l. Listeners run outside the hub lock, so calls for
// one room may arrive out of order.
func (h *Hub) OnRoomChange(l RoomListener) {
	h.mu.Lock()
	h.listeners = append(h.listeners, l)
	h.mu.Unlock()
}

func (h *Hub) notify(listeners []RoomListener, actorID string, open bool) {
	for _, l := range listeners {
		l(actorID, open)
	}
}

// removeLocked drops c from its room and reports whether the room closed.
func (h *Hub) removeLocked(c *Conn) (string, bool) {
	actorID := c.actorID
	if actorID == "" {
		return "", false
	}
	c.actorID = ""
	room := h.rooms[actorID]
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, actorID)
		return actorID, true
	}
	return actorID, false
}

// Join puts c into actorID's room, leaving any room it was in before.
func (h *Hub) Join(actorID string, c *Conn) {
	h.mu.Lock()
	if c.actorID == actorID {
		h.mu.Unlock()
		return
	}
	prev, prevClosed := h.removeLocked(c)
	room, ok := h.rooms[actorID]
	if !ok {
		room = make(map[*Conn]struct{})
		h.rooms[actorID] = room
	}
	room[c] = struct{}{}
	c.actorID = actorID
	listeners := h.listeners
	h.mu.Unlock()

	if prevClosed {
		h.notify(listeners, prev, false)
	}
	if !ok {
		h.notify(listeners, actorID, true)
	}
	h.logger.Debug("Connection joined room", zap.String("actor", actorID))
}

// Leave removes c from its room. After Leave no frame is queued on c.
func (h *Hub) Leave(c *Conn) {
	h.mu.Lock()
	actorID, closed := h.removeLocked(c)
	listeners := h.listeners
	h.mu.Unlock()

	if closed {
		h.notify(listeners, actorID, false)
	}
}

// Deliver queues frame on every connection in actorID's room and returns how many took it.
// A connection whose queue is full misses the frame.
func (h *Hub) Deliver(actorID string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for c := range h.rooms[actorID] {
		select {
		case c.send <- frame:
			n++
		default:
			h.logger.Warn("Dropping frame for slow connection", zap.String("actor", actorID))
		}
	}
	return n
}

// Push sends a notification event to the recipient's room on this instance.
func (h *Hub) Push(_ context.Context, recipientID string, n *models.Notification) (bool, error) {
	frame, err := Encode(EventNotification, n)
	if err != nil {
		return false, err
	}
	return h.Deliver(recipientID, frame) > 0, nil
}

func (h *Hub) Online(actorID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[actorID]) > 0
}

// Rooms lists the actors with at least one connection.
func (h *Hub) Rooms() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}
