package sessionws

import (
	"encoding/json"
	"log"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
)

// Hub tracks which participants are connected to which session room. A
// participant connecting is what raises the session's join signal; the hub
// itself only fans presence events out to the other side of the room.
type Hub struct {
	rooms      map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *PresenceEvent
}

type Client struct {
	hub       *Hub
	conn      *websocket.Conn
	sessionID int64
	userID    int64
	send      chan []byte
}

type PresenceEvent struct {
	Type      string `json:"type"`
	SessionID int64  `json:"session_id"`
	UserID    int64  `json:"user_id"`
	Timestamp string `json:"timestamp"`
}

const (
	EventParticipantJoined = "participant.joined"
	EventParticipantLeft   = "participant.left"
)

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *PresenceEvent, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, sessionID, userID int64) *Client {
	return &Client{
		hub:       hub,
		conn:      conn,
		sessionID: sessionID,
		userID:    userID,
		send:      make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			room, ok := h.rooms[client.sessionID]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[client.sessionID] = room
			}
			room[client] = struct{}{}
			h.emit(client, EventParticipantJoined)
		case client := <-h.unregister:
			room, ok := h.rooms[client.sessionID]
			if !ok {
				continue
			}
			if _, exists := room[client]; exists {
				delete(room, client)
				close(client.send)
				if len(room) == 0 {
					delete(h.rooms, client.sessionID)
				}
				h.emit(client, EventParticipantLeft)
			}
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) emit(client *Client, eventType string) {
	select {
	case h.broadcast <- &PresenceEvent{
		Type:      eventType,
		SessionID: client.sessionID,
		UserID:    client.userID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}:
	default:
		log.Printf("sessionws: presence event dropped for session %d", client.sessionID)
	}
}

func (h *Hub) deliver(event *PresenceEvent) {
	room, ok := h.rooms[event.SessionID]
	if !ok {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	for client := range room {
		if client.userID == event.UserID {
			continue
		}
		select {
		case client.send <- payload:
		default:
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// WriteLoop pushes presence events to the peer until the send channel is
// closed by the hub.
func (c *Client) WriteLoop() {
	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
}

// ReadLoop blocks until the peer disconnects. Inbound frames are discarded;
// the socket exists to signal presence, not to carry content.
func (c *Client) ReadLoop() {
	defer c.hub.Unregister(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
