package game

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"blindtest/internal/catalog"
	"blindtest/internal/protocol"
)

// Broadcaster is how the engine reaches connected clients. Implementations
// must not block the caller; the engine emits while holding room state.
type Broadcaster interface {
	BroadcastToRoom(code string, evt *protocol.Event)
	SendToPlayer(code, playerID string, evt *protocol.Event)
}

// TrackSource supplies one track per round from the external catalog.
type TrackSource interface {
	FetchTrack(ctx context.Context, f catalog.Filters) (catalog.Track, error)
}

// ResultsSink receives the one-way game-over notification.
type ResultsSink interface {
	PublishGameOver(ctx context.Context, env protocol.GameOverEnvelope) error
}

// Deps bundles everything a room needs from the outside world.
type Deps struct {
	Broadcast Broadcaster
	Tracks    TrackSource
	Results   ResultsSink
	Clock     clockwork.Clock
	Config    Config
}

// Config holds engine tunables. Zero values are replaced by defaults.
type Config struct {
	MaxPlayers          int
	Countdown           time.Duration // fixed 3s lead-in before each round
	RevealDelay         time.Duration
	WrongAnswerCooldown time.Duration
	BuzzerWindow        time.Duration // answer window held by the buzzer lock
	DisconnectGrace     time.Duration
	EmptyRoomGrace      time.Duration
	MatchTolerance      int // extra edit distance allowed on top of the length-based default
	ChatLogLimit        int
}

func DefaultConfig() Config {
	return Config{
		MaxPlayers:          16,
		Countdown:           3 * time.Second,
		RevealDelay:         8 * time.Second,
		WrongAnswerCooldown: 3 * time.Second,
		BuzzerWindow:        10 * time.Second,
		DisconnectGrace:     30 * time.Second,
		EmptyRoomGrace:      60 * time.Second,
		MatchTolerance:      0,
		ChatLogLimit:        200,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxPlayers <= 0 {
		c.MaxPlayers = d.MaxPlayers
	}
	if c.Countdown <= 0 {
		c.Countdown = d.Countdown
	}
	if c.RevealDelay <= 0 {
		c.RevealDelay = d.RevealDelay
	}
	if c.WrongAnswerCooldown <= 0 {
		c.WrongAnswerCooldown = d.WrongAnswerCooldown
	}
	if c.BuzzerWindow <= 0 {
		c.BuzzerWindow = d.BuzzerWindow
	}
	if c.DisconnectGrace <= 0 {
		c.DisconnectGrace = d.DisconnectGrace
	}
	if c.EmptyRoomGrace <= 0 {
		c.EmptyRoomGrace = d.EmptyRoomGrace
	}
	if c.ChatLogLimit <= 0 {
		c.ChatLogLimit = d.ChatLogLimit
	}
	return c
}
