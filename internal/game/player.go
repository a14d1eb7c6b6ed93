package game

import (
	"time"

	"blindtest/internal/protocol"
)

// Player is one seat in a room. Its id is stable for the seat's lifetime:
// a reconnecting client reclaims the same Player by pseudo.
type Player struct {
	ID        string
	Pseudo    string
	AvatarURL string
	JoinedAt  time.Time

	Score     int
	Streak    int
	Ready     bool
	Connected bool
	TeamID    string

	// Elimination mode.
	Lives      int
	Eliminated bool

	// Timeline mode: placed cards, kept sorted by release year.
	Timeline []protocol.TimelineCard

	// Per-round state, reset when a round opens.
	AnsweredCorrectly bool
	FoundTitle        bool
	FoundArtist       bool
	Placed            bool
	LyricsDone        bool
	BuzzUsed          bool
	CooldownUntil     time.Time

	VotedPause bool
}

// resetRound clears the per-round flags.
func (p *Player) resetRound() {
	p.AnsweredCorrectly = false
	p.FoundTitle = false
	p.FoundArtist = false
	p.Placed = false
	p.LyricsDone = false
	p.BuzzUsed = false
	p.CooldownUntil = time.Time{}
}

// resetGame restores the per-game fields to mode defaults, keeping the seat.
func (p *Player) resetGame(s protocol.Settings) {
	p.resetRound()
	p.Score = 0
	p.Streak = 0
	p.Ready = false
	p.Eliminated = false
	p.Lives = s.Lives
	p.Timeline = nil
	p.TeamID = ""
	p.VotedPause = false
}

func (p *Player) state(hostID string) protocol.PlayerState {
	return protocol.PlayerState{
		ID:            p.ID,
		Pseudo:        p.Pseudo,
		AvatarURL:     p.AvatarURL,
		Score:         p.Score,
		Streak:        p.Streak,
		Ready:         p.Ready,
		Connected:     p.Connected,
		IsHost:        p.ID == hostID,
		Lives:         p.Lives,
		IsEliminated:  p.Eliminated,
		TeamID:        p.TeamID,
		TimelineCards: p.Timeline,
	}
}
