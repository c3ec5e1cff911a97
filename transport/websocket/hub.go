package websocket

import (
	"log"
	"sync"
)

// Hub tracks two transport-level facts and nothing else: which live
// connection currently speaks for each player (the connection registry), and
// which connections belong to each session's broadcast room. It never reads
// or mutates session state.
type Hub struct {
	mu sync.Mutex

	// rooms maps session id to the set of connections joined to it.
	rooms map[string]map[*Client]bool

	// players maps player id to its authoritative connection; owners is the
	// reverse index, needed because disconnects arrive keyed by connection.
	players map[string]*Client
	owners  map[*Client]string
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		rooms:   make(map[string]map[*Client]bool),
		players: make(map[string]*Client),
		owners:  make(map[*Client]string),
	}
}

// Register makes c the authoritative connection for the player. Any prior
// connection is silently superseded (last-connect-wins); its eventual close
// will no longer touch the player's registration.
func (h *Hub) Register(playerID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if prev, ok := h.players[playerID]; ok && prev != c {
		delete(h.owners, prev)
	}
	h.players[playerID] = c
	h.owners[c] = playerID
}

// Resolve returns the live connection for a player, or nil.
func (h *Hub) Resolve(playerID string) *Client {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.players[playerID]
}

// Unregister removes c from the registry and returns the player it spoke
// for. A superseded connection returns ok=false: the player already belongs
// to a newer connection and must not be disturbed.
func (h *Hub) Unregister(c *Client) (playerID string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	playerID, ok = h.owners[c]
	if !ok {
		return "", false
	}
	delete(h.owners, c)
	if h.players[playerID] == c {
		delete(h.players, playerID)
	}
	return playerID, true
}

// UnregisterPlayer drops the player's registration, if any.
func (h *Hub) UnregisterPlayer(playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c, ok := h.players[playerID]; ok {
		delete(h.players, playerID)
		delete(h.owners, c)
	}
}

// JoinRoom adds c to a session's broadcast room. A connection is in at most
// one room; joining a new one implicitly leaves the old.
func (h *Hub) JoinRoom(sessionID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.room != "" && c.room != sessionID {
		h.removeFromRoom(c.room, c)
	}
	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[*Client]bool)
	}
	h.rooms[sessionID][c] = true
	c.room = sessionID
}

// LeaveRoom removes c from a session's room. Empty rooms are dropped.
func (h *Hub) LeaveRoom(sessionID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(sessionID, c)
}

// DropFromRoom removes c from whatever room it is joined to. Used to scrub
// superseded connections whose player registration already moved on.
func (h *Hub) DropFromRoom(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.room != "" {
		h.removeFromRoom(c.room, c)
	}
}

// CloseRoom discards a room outright, used when a finished session is
// evicted. Connections stay usable for subsequent events.
func (h *Hub) CloseRoom(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[sessionID] {
		if c.room == sessionID {
			c.room = ""
		}
	}
	delete(h.rooms, sessionID)
}

// RoomSize returns the number of connections joined to a session's room.
func (h *Hub) RoomSize(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[sessionID])
}

// Broadcast fans an event out to every connection in the session's room,
// except the optionally excluded one. Delivery is best-effort: a connection
// that cannot keep up is dropped, never waited on.
func (h *Hub) Broadcast(sessionID, event string, payload any, exclude *Client) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("Failed to marshal %s broadcast: %v", event, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.rooms[sessionID] {
		if c == exclude {
			continue
		}
		h.deliver(c, data)
	}
}

// SendTo delivers a single event to one connection.
func (h *Hub) SendTo(c *Client, event string, payload any) {
	data, err := marshalEvent(event, payload)
	if err != nil {
		log.Printf("Failed to marshal %s event: %v", event, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.deliver(c, data)
}

// deliver queues data on the client's send channel, dropping the client if
// its buffer is full. Callers must hold h.mu.
func (h *Hub) deliver(c *Client, data []byte) {
	if c.dropped {
		return
	}
	select {
	case c.send <- data:
	default:
		h.drop(c)
	}
}

// drop severs a connection that stopped draining its send buffer. Callers
// must hold h.mu.
func (h *Hub) drop(c *Client) {
	if c.dropped {
		return
	}
	c.dropped = true
	if c.room != "" {
		h.removeFromRoom(c.room, c)
	}
	if playerID, ok := h.owners[c]; ok {
		delete(h.owners, c)
		if h.players[playerID] == c {
			delete(h.players, playerID)
		}
	}
	close(c.send)
	log.Printf("Dropped slow websocket client")
}

func (h *Hub) removeFromRoom(sessionID string, c *Client) {
	clients, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	if clients[c] {
		delete(clients, c)
		if c.room == sessionID {
			c.room = ""
		}
	}
	if len(clients) == 0 {
		delete(h.rooms, sessionID)
	}
}
