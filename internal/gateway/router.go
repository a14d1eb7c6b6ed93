package gateway

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"blindtest/internal/game"
	"blindtest/internal/protocol"
)

// Router dispatches inbound events to the game engine. Each connection's
// messages arrive serially from its read pump, so handlers never race for a
// single connection.
type Router struct {
	registry *game.Registry
	hub      *Hub
	clock    clockwork.Clock
}

func NewRouter(registry *game.Registry, hub *Hub, clock clockwork.Clock) *Router {
	return &Router{registry: registry, hub: hub, clock: clock}
}

// HandleConnect sends an immediate clock sample so clients can align their
// countdown rendering before the first periodic tick.
func (rt *Router) HandleConnect(c *Conn) {
	rt.hub.Send(c, protocol.NewEvent(protocol.EventTimeSync, protocol.TimeSyncPayload{
		ServerTime: rt.clock.Now().UnixMilli(),
	}))
}

// HandleDisconnect starts the reconnect grace period for a bound seat.
func (rt *Router) HandleDisconnect(c *Conn) {
	roomCode, playerID := rt.hub.Binding(c)
	if roomCode == "" {
		return
	}
	if room, ok := rt.registry.Get(roomCode); ok {
		room.Disconnected(playerID)
	}
}

func (rt *Router) HandleMessage(c *Conn, data []byte) {
	var evt protocol.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		log.Warn().Err(err).Str("connection_id", c.ID).Msg("malformed event envelope")
		rt.sendError(c, "BAD_REQUEST", "malformed event")
		return
	}

	switch evt.Type {
	case protocol.EventCreateRoom:
		rt.handleCreateRoom(c, evt.Data)
	case protocol.EventJoinRoom:
		rt.handleJoinRoom(c, evt.Data)
	case protocol.EventLeaveRoom:
		rt.handleLeaveRoom(c)
	case protocol.EventKickPlayer:
		rt.handleKickPlayer(c, evt.Data)
	case protocol.EventToggleReady:
		rt.withRoom(c, func(room *game.Room, playerID string) { room.ToggleReady(playerID) })
	case protocol.EventUpdateSettings:
		rt.handleUpdateSettings(c, evt.Data)
	case protocol.EventStartGame:
		rt.withRoomErr(c, func(room *game.Room, playerID string) error { return room.StartGame(playerID) })
	case protocol.EventSubmitAnswer:
		rt.handleSubmitAnswer(c, evt.Data)
	case protocol.EventSendMessage:
		rt.handleSendMessage(c, evt.Data)
	case protocol.EventTogglePause:
		rt.withRoom(c, func(room *game.Room, playerID string) { room.TogglePause(playerID) })
	case protocol.EventSendEmote:
		rt.handleSendEmote(c, evt.Data)
	case protocol.EventBuzzerPress:
		rt.withRoom(c, func(room *game.Room, playerID string) { room.BuzzerPress(playerID) })
	case protocol.EventSubmitLyrics:
		rt.handleSubmitLyrics(c, evt.Data)
	default:
		rt.sendError(c, "BAD_REQUEST", "unknown event type: "+string(evt.Type))
	}
}

func (rt *Router) handleCreateRoom(c *Conn, data json.RawMessage) {
	var p protocol.CreateRoomPayload
	if !rt.decode(c, data, &p) {
		return
	}
	p.Pseudo = strings.TrimSpace(p.Pseudo)
	if p.Pseudo == "" {
		rt.sendError(c, "BAD_REQUEST", "pseudo is required")
		return
	}
	if code, _ := rt.hub.Binding(c); code != "" {
		rt.sendError(c, "BAD_REQUEST", "already in a room")
		return
	}

	room, player, err := rt.registry.CreateRoom(uuid.New().String(), p.Pseudo, p.AvatarURL, p.Settings)
	if err != nil {
		rt.sendGameError(c, err)
		return
	}
	rt.hub.Bind(c, room.Code, player.ID)
	rt.hub.Send(c, protocol.NewEvent(protocol.EventRoomCreated, protocol.RoomStatePayload{RoomState: room.State()}))
}

func (rt *Router) handleJoinRoom(c *Conn, data json.RawMessage) {
	var p protocol.JoinRoomPayload
	if !rt.decode(c, data, &p) {
		return
	}
	p.Pseudo = strings.TrimSpace(p.Pseudo)
	if p.Pseudo == "" {
		rt.sendError(c, "BAD_REQUEST", "pseudo is required")
		return
	}

	// Reconnection reuses the held seat's id, so the fresh uuid only sticks
	// for genuinely new players.
	room, player, err := rt.registry.JoinRoom(strings.ToUpper(strings.TrimSpace(p.RoomCode)), uuid.New().String(), p.Pseudo, p.AvatarURL)
	if err != nil {
		rt.sendGameError(c, err)
		return
	}
	rt.hub.Bind(c, room.Code, player.ID)
	rt.hub.Send(c, protocol.NewEvent(protocol.EventRoomJoined, protocol.RoomStatePayload{RoomState: room.State()}))
}

func (rt *Router) handleLeaveRoom(c *Conn) {
	roomCode, playerID := rt.hub.Binding(c)
	if roomCode == "" {
		return
	}
	rt.hub.Unbind(c)
	if room, ok := rt.registry.Get(roomCode); ok {
		room.Leave(playerID)
	}
}

func (rt *Router) handleKickPlayer(c *Conn, data json.RawMessage) {
	var p protocol.KickPlayerPayload
	if !rt.decode(c, data, &p) {
		return
	}
	roomCode, playerID := rt.hub.Binding(c)
	if roomCode == "" {
		return
	}
	room, ok := rt.registry.Get(roomCode)
	if !ok {
		return
	}
	if err := room.Kick(playerID, p.PlayerID); err != nil {
		rt.sendGameError(c, err)
		return
	}
	rt.hub.UnbindPlayer(roomCode, p.PlayerID)
}

func (rt *Router) handleUpdateSettings(c *Conn, data json.RawMessage) {
	var p protocol.Settings
	if !rt.decode(c, data, &p) {
		return
	}
	rt.withRoomErr(c, func(room *game.Room, playerID string) error {
		return room.UpdateSettings(playerID, p)
	})
}

func (rt *Router) handleSubmitAnswer(c *Conn, data json.RawMessage) {
	var p protocol.SubmitAnswerPayload
	if !rt.decode(c, data, &p) {
		return
	}
	rt.withRoom(c, func(room *game.Room, playerID string) {
		room.SubmitAnswer(playerID, p.Answer, p.Timestamp)
	})
}

func (rt *Router) handleSendMessage(c *Conn, data json.RawMessage) {
	var p protocol.SendMessagePayload
	if !rt.decode(c, data, &p) {
		return
	}
	rt.withRoom(c, func(room *game.Room, playerID string) {
		room.SendMessage(playerID, strings.TrimSpace(p.Message))
	})
}

func (rt *Router) handleSendEmote(c *Conn, data json.RawMessage) {
	var p protocol.SendEmotePayload
	if !rt.decode(c, data, &p) {
		return
	}
	rt.withRoom(c, func(room *game.Room, playerID string) {
		room.SendEmote(playerID, p.Emote)
	})
}

func (rt *Router) handleSubmitLyrics(c *Conn, data json.RawMessage) {
	var p protocol.SubmitLyricsPayload
	if !rt.decode(c, data, &p) {
		return
	}
	rt.withRoom(c, func(room *game.Room, playerID string) {
		room.SubmitLyrics(playerID, p.Answers)
	})
}

// withRoom resolves the connection's bound room and runs fn against it.
func (rt *Router) withRoom(c *Conn, fn func(room *game.Room, playerID string)) {
	roomCode, playerID := rt.hub.Binding(c)
	if roomCode == "" {
		rt.sendError(c, "ROOM_NOT_FOUND", "not in a room")
		return
	}
	room, ok := rt.registry.Get(roomCode)
	if !ok {
		rt.sendError(c, "ROOM_NOT_FOUND", "room no longer exists")
		return
	}
	fn(room, playerID)
}

func (rt *Router) withRoomErr(c *Conn, fn func(room *game.Room, playerID string) error) {
	rt.withRoom(c, func(room *game.Room, playerID string) {
		if err := fn(room, playerID); err != nil {
			rt.sendGameError(c, err)
		}
	})
}

func (rt *Router) decode(c *Conn, data json.RawMessage, v any) bool {
	if len(data) == 0 {
		rt.sendError(c, "BAD_REQUEST", "missing payload")
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		rt.sendError(c, "BAD_REQUEST", "malformed payload")
		return false
	}
	return true
}

// sendGameError maps engine sentinels to wire error codes; errors only ever
// go to the caller, never the room.
func (rt *Router) sendGameError(c *Conn, err error) {
	rt.sendError(c, game.ErrorCode(err), err.Error())
}

func (rt *Router) sendError(c *Conn, code, message string) {
	rt.hub.Send(c, protocol.NewEvent(protocol.EventError, protocol.ErrorPayload{
		Code:    code,
		Message: message,
	}))
}
