package game

import "blindtest/internal/protocol"

// Verdict is a strategy's judgment of one answer attempt.
type Verdict struct {
	Correct    bool
	ScoreDelta int
	CooldownMs int64
	FoundPart  string // "title", "artist" or "both" for dual-part answers
	Reveal     *protocol.TimelineReveal
	EndsRound  bool // terminal for the whole round (buzzer resolved)
	Ignore     bool // attempt not gradable right now; no penalty, no reply beyond an error
}

// Strategy is the pluggable rule set of a game mode. Every method is called
// with the room's state lock held; strategies never spawn their own
// goroutines and schedule follow-ups through the room's timers.
type Strategy interface {
	Name() string
	MinPlayers() int

	// OnRoundOpen runs after the round window is initialized and may adjust
	// rd.EndAt or attach mode state before the round is announced.
	OnRoundOpen(rm *Room, rd *Round)

	// Validate grades one free-text attempt.
	Validate(rm *Room, rd *Round, p *Player, text string) Verdict

	// RoundComplete reports whether the mode's early-termination predicate
	// holds (everyone answered, buzzer resolved, all cards placed).
	RoundComplete(rm *Room, rd *Round) bool

	// OnRoundEnd applies mode side effects while the result is assembled
	// (elimination decrements lives here).
	OnRoundEnd(rm *Room, rd *Round, res *protocol.RoundResult)

	// GameOver reports a mode-specific win condition that ends the game
	// before all rounds are played.
	GameOver(rm *Room) bool
}

func strategyFor(mode string) Strategy {
	switch mode {
	case ModeBuzzer:
		return &buzzerStrategy{}
	case ModeTimeline:
		return &timelineStrategy{}
	case ModeElimination:
		return &eliminationStrategy{}
	case ModeIntro:
		return &introStrategy{}
	case ModeLyrics:
		return &lyricsStrategy{}
	default:
		return &classicStrategy{}
	}
}
