package game

import "errors"

// Sentinel errors for rule violations. These are non-fatal: they are
// reported to the acting client only and never terminate a room.
var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrGameAlreadyStarted = errors.New("game already started")
	ErrNotHost            = errors.New("only the host can do that")
	ErrCooldown           = errors.New("answer cooldown in effect")
	ErrPseudoTaken        = errors.New("pseudo already taken in this room")
	ErrNotEnoughPlayers   = errors.New("not enough players to start")
	ErrPlayerNotFound     = errors.New("player not found")
	ErrBuzzerLocked       = errors.New("buzzer already locked")

	// ErrNoTracksAvailable is fatal to the room: the catalog could not
	// produce a track even with relaxed filters.
	ErrNoTracksAvailable = errors.New("no tracks available")
)

// ErrorCode maps a sentinel error to the wire error code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrRoomNotFound):
		return "ROOM_NOT_FOUND"
	case errors.Is(err, ErrRoomFull):
		return "ROOM_FULL"
	case errors.Is(err, ErrGameAlreadyStarted):
		return "GAME_ALREADY_STARTED"
	case errors.Is(err, ErrNotHost):
		return "NOT_HOST"
	case errors.Is(err, ErrCooldown):
		return "COOLDOWN"
	case errors.Is(err, ErrPseudoTaken):
		return "PSEUDO_TAKEN"
	case errors.Is(err, ErrNotEnoughPlayers):
		return "NOT_ENOUGH_PLAYERS"
	case errors.Is(err, ErrPlayerNotFound):
		return "PLAYER_NOT_FOUND"
	case errors.Is(err, ErrBuzzerLocked):
		return "BUZZER_LOCKED"
	case errors.Is(err, ErrNoTracksAvailable):
		return "NO_TRACKS_AVAILABLE"
	default:
		return "INTERNAL"
	}
}
