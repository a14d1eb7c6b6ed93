// Package gateway is the session protocol boundary: WebSocket connections,
// the JSON event envelope, and fan-out to room members.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"blindtest/internal/protocol"
)

// MessageHandler receives connection lifecycle and inbound messages.
type MessageHandler interface {
	HandleConnect(c *Conn)
	HandleMessage(c *Conn, data []byte)
	HandleDisconnect(c *Conn)
}

// ConnConfig holds WebSocket connection tuning.
type ConnConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// Conn is one client socket. Its room binding is set after create_room or
// join_room and read under the hub lock.
type Conn struct {
	ID string

	playerID string
	roomCode string

	ws   *websocket.Conn
	send chan []byte
	hub  *Hub

	connectedAt time.Time
}

type broadcastMessage struct {
	roomCode string
	playerID string // optional: if set, only deliver to this player's conns
	all      bool
	event    *protocol.Event
}

// Hub manages connection pools organized by room code and serializes
// fan-out through a buffered broadcast channel so the engine never blocks
// on a slow socket.
type Hub struct {
	mu    sync.RWMutex
	conns map[*Conn]bool
	rooms map[string]map[*Conn]bool

	upgrader    websocket.Upgrader
	config      ConnConfig
	broadcastCh chan broadcastMessage
	handler     MessageHandler
}

func NewHub(config ConnConfig) *Hub {
	return &Hub{
		conns: make(map[*Conn]bool),
		rooms: make(map[string]map[*Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:      config,
		broadcastCh: make(chan broadcastMessage, 1024),
	}
}

// SetHandler wires the message router; must be called before Upgrade.
func (h *Hub) SetHandler(handler MessageHandler) {
	h.handler = handler
}

// Run processes broadcast messages until the context ends.
func (h *Hub) Run(ctx context.Context) {
	log.Info().Msg("gateway hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("gateway hub shutting down")
			return
		case msg := <-h.broadcastCh:
			h.deliver(msg)
		}
	}
}

// Upgrade turns an HTTP request into a managed WebSocket connection.
func (h *Hub) Upgrade(w http.ResponseWriter, r *http.Request) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	c := &Conn{
		ID:          uuid.New().String(),
		ws:          ws,
		send:        make(chan []byte, 256),
		hub:         h,
		connectedAt: time.Now(),
	}

	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()

	go c.writePump()
	go c.readPump()

	log.Info().Str("connection_id", c.ID).Msg("WebSocket connection established")
	if h.handler != nil {
		h.handler.HandleConnect(c)
	}
	return nil
}

// Bind attaches a connection to a room and player after create/join.
func (h *Hub) Bind(c *Conn, roomCode, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbindLocked(c)
	c.roomCode = roomCode
	c.playerID = playerID
	if h.rooms[roomCode] == nil {
		h.rooms[roomCode] = make(map[*Conn]bool)
	}
	h.rooms[roomCode][c] = true
}

// Unbind detaches a connection from its room (explicit leave or kick).
func (h *Hub) Unbind(c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unbindLocked(c)
}

func (h *Hub) unbindLocked(c *Conn) {
	if c.roomCode == "" {
		return
	}
	if pool, ok := h.rooms[c.roomCode]; ok {
		delete(pool, c)
		if len(pool) == 0 {
			delete(h.rooms, c.roomCode)
		}
	}
	c.roomCode = ""
	c.playerID = ""
}

// UnbindPlayer detaches every connection a player holds in a room.
func (h *Hub) UnbindPlayer(roomCode, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[roomCode] {
		if c.playerID == playerID {
			h.unbindLocked(c)
		}
	}
}

// Binding returns the connection's current room and player ids.
func (h *Hub) Binding(c *Conn) (roomCode, playerID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return c.roomCode, c.playerID
}

// BroadcastToRoom sends an event to every connection in a room.
func (h *Hub) BroadcastToRoom(roomCode string, evt *protocol.Event) {
	h.enqueue(broadcastMessage{roomCode: roomCode, event: evt})
}

// SendToPlayer sends an event to one player's connections in a room.
func (h *Hub) SendToPlayer(roomCode, playerID string, evt *protocol.Event) {
	h.enqueue(broadcastMessage{roomCode: roomCode, playerID: playerID, event: evt})
}

// BroadcastAll sends an event to every connection (clock sync).
func (h *Hub) BroadcastAll(evt *protocol.Event) {
	h.enqueue(broadcastMessage{all: true, event: evt})
}

func (h *Hub) enqueue(msg broadcastMessage) {
	select {
	case h.broadcastCh <- msg:
	default:
		log.Warn().Str("event_type", string(msg.event.Type)).Msg("broadcast channel full, dropping message")
	}
}

func (h *Hub) deliver(msg broadcastMessage) {
	h.mu.RLock()
	var targets []*Conn
	if msg.all {
		for c := range h.conns {
			targets = append(targets, c)
		}
	} else {
		for c := range h.rooms[msg.roomCode] {
			if msg.playerID != "" && c.playerID != msg.playerID {
				continue
			}
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}
	data, err := json.Marshal(msg.event)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}
	for _, c := range targets {
		c.enqueue(data)
	}
}

// Send delivers one event to a single connection, bypassing room fan-out.
func (h *Hub) Send(c *Conn, evt *protocol.Event) {
	data, err := json.Marshal(evt)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event")
		return
	}
	c.enqueue(data)
}

// Stats reports active connection counts.
func (h *Hub) Stats() (total int, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns), len(h.rooms)
}

func (h *Hub) drop(c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.conns, c)
	h.unbindLocked(c)
	close(c.send)
	h.mu.Unlock()

	log.Info().Str("connection_id", c.ID).Msg("connection unregistered")
	if h.handler != nil {
		h.handler.HandleDisconnect(c)
	}
}

func (c *Conn) enqueue(data []byte) {
	defer func() {
		// send may have been closed by a concurrent drop; a slow/dead
		// connection is cleaned up by its own pumps.
		_ = recover()
	}()
	select {
	case c.send <- data:
	default:
		log.Warn().Str("connection_id", c.ID).Msg("connection send buffer full, dropping message")
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.hub.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("failed to write message")
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.hub.config.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.drop(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(c.hub.config.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("connection_id", c.ID).Msg("unexpected WebSocket close error")
			}
			break
		}
		if c.hub.handler != nil {
			c.hub.handler.HandleMessage(c, message)
		}
		c.ws.SetReadDeadline(time.Now().Add(c.hub.config.ReadTimeout))
	}
}
