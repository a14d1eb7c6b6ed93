package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope for every message crossing the socket, in both
// directions. Type names are the wire contract.
type Event struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type EventType string

// Client -> server events.
const (
	EventCreateRoom     EventType = "create_room"
	EventJoinRoom       EventType = "join_room"
	EventLeaveRoom      EventType = "leave_room"
	EventKickPlayer     EventType = "kick_player"
	EventToggleReady    EventType = "toggle_ready"
	EventUpdateSettings EventType = "update_settings"
	EventStartGame      EventType = "start_game"
	EventSubmitAnswer   EventType = "submit_answer"
	EventSendMessage    EventType = "send_message"
	EventTogglePause    EventType = "toggle_pause"
	EventSendEmote      EventType = "send_emote"
	EventBuzzerPress    EventType = "buzzer_press"
	EventSubmitLyrics   EventType = "submit_lyrics"
)

// Server -> client events.
const (
	EventRoomCreated      EventType = "room_created"
	EventRoomJoined       EventType = "room_joined"
	EventRoomUpdated      EventType = "room_updated"
	EventPlayerKicked     EventType = "player_kicked"
	EventRoundStart       EventType = "round_start"
	EventAnswerResult     EventType = "answer_result"
	EventRoundEnd         EventType = "round_end"
	EventGameOver         EventType = "game_over"
	EventTimeSync         EventType = "time_sync"
	EventNewMessage       EventType = "new_message"
	EventEmoteReceived    EventType = "emote_received"
	EventBuzzerLocked     EventType = "buzzer_locked"
	EventBuzzerReleased   EventType = "buzzer_released"
	EventBuzzerTimeout    EventType = "buzzer_timeout"
	EventPlayerEliminated EventType = "player_eliminated"
	EventIntroTierUnlock  EventType = "intro_tier_unlock"
	EventLyricsData       EventType = "lyrics_data"
	EventLyricsResult     EventType = "lyrics_result"
	EventHintReceived     EventType = "hint_received"
	EventError            EventType = "error"
)

// NewEvent wraps a payload in an envelope. Marshal failures are programmer
// errors (all payloads are plain structs), so they surface as a panic rather
// than an error return on every call site.
func NewEvent(t EventType, payload any) *Event {
	var data json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			panic("protocol: unmarshalable payload for " + string(t) + ": " + err.Error())
		}
		data = b
	}
	return &Event{
		ID:        uuid.New().String(),
		Type:      t,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}
