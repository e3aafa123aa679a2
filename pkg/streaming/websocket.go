// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package streaming provides a room-based websocket fan-out transport:
// clients join named rooms and receive every message broadcast to them,
// independent of what the messages mean. Domain semantics (which rooms
// exist, what an event payload looks like, the existence-check/init-snapshot
// contract for per-id subscriptions) live in internal/events, which wires
// this package to the store.
package streaming

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Command is a client-to-server message naming an action on a room. The Hub
// does not interpret it; the onCommand callback passed to ServeWebSocket does.
type Command struct {
	Action string `json:"action"` // e.g. "join"/"leave", or internal/events' sub_*/unsub_* actions
	Room   string `json:"room"`
}

// Message is a server-to-client broadcast.
type Message struct {
	Room      string      `json:"room"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
	Error     string      `json:"error,omitempty"`
}

// Hub tracks every connected client and which rooms it has joined, and
// fans out broadcasts to the room's members.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	upgrader websocket.Upgrader
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Client is one websocket connection and the rooms it currently belongs to.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan Message

	mu    sync.Mutex
	rooms map[string]struct{}
}

// ServeWebSocket upgrades the HTTP request and runs the client's read/write
// pumps until the connection closes. onCommand is invoked for every inbound
// Command so the caller can apply its own join-room contract (e.g. the
// existence-check -> join -> init-snapshot sequence for per-id rooms).
func (h *Hub) ServeWebSocket(w http.ResponseWriter, r *http.Request, onCommand func(c *Client, cmd Command)) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}

	client := &Client{
		hub:   h,
		conn:  conn,
		send:  make(chan Message, 32),
		rooms: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go client.writePump()
	client.readPump(onCommand)
}

// Join adds a client to a room; broadcasts to the room now reach it.
func (h *Hub) Join(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}

	c.mu.Lock()
	c.rooms[room] = struct{}{}
	c.mu.Unlock()
}

// Leave removes a client from a room.
func (h *Hub) Leave(room string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}

	c.mu.Lock()
	delete(c.rooms, room)
	c.mu.Unlock()
}

// Broadcast sends msg to every client currently joined to room. A client
// whose send buffer is full misses this message (it stays joined) rather
// than blocking the broadcaster.
func (h *Hub) Broadcast(room string, msg Message) {
	msg.Room = room
	msg.Timestamp = time.Now()

	h.mu.RLock()
	members := h.rooms[room]
	targets := make([]*Client, 0, len(members))
	for c := range members {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- msg:
		default:
			log.Printf("dropping broadcast to slow client in room %q", room)
		}
	}
}

// NewDirectClient creates a Client with no underlying websocket connection,
// for callers that want Hub-routed room messages delivered to a channel
// they read themselves instead of over a socket (the SSE fallback
// transport being the prototypical case).
func NewDirectClient(buffer int) *Client {
	return &Client{
		send:  make(chan Message, buffer),
		rooms: make(map[string]struct{}),
	}
}

// Receive returns the channel Hub-routed broadcasts are delivered to. Only
// meaningful for a Client built with NewDirectClient; a websocket-backed
// Client's send channel is owned by its writePump.
func (c *Client) Receive() <-chan Message { return c.send }

// Send delivers msg directly to one client (used for _init snapshots).
func (c *Client) Send(msg Message) {
	select {
	case c.send <- msg:
	default:
		log.Printf("dropping direct message to slow client")
	}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.clients, c)
	for room, members := range h.rooms {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

func (c *Client) readPump(onCommand func(c *Client, cmd Command)) {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
		close(c.send)
	}()

	for {
		var cmd Command
		if err := c.conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}
		if onCommand != nil {
			onCommand(c, cmd)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				log.Printf("websocket write error: %v", err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// MarshalData is a convenience for handlers building a Message from an
// arbitrary domain event struct (kept JSON-friendly by the model package).
func MarshalData(v interface{}) (json.RawMessage, error) {
	return json.Marshal(v)
}
