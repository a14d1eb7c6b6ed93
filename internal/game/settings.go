package game

import "blindtest/internal/protocol"

// Game mode names. These travel on the wire in settings and round data.
const (
	ModeClassic     = "classic"
	ModeBuzzer      = "buzzer"
	ModeTimeline    = "timeline"
	ModeElimination = "elimination"
	ModeIntro       = "intro"
	ModeLyrics      = "lyrics"
)

func DefaultSettings() protocol.Settings {
	return protocol.Settings{
		Rounds:          10,
		RoundDurationMs: 30_000,
		GameMode:        ModeClassic,
		TimelineTarget:  5,
		Lives:           3,
	}
}

// normalizeSettings clamps user-supplied settings into sane bounds and
// fills in defaults for anything missing.
func normalizeSettings(s *protocol.Settings) protocol.Settings {
	out := DefaultSettings()
	if s == nil {
		return out
	}
	if s.Rounds > 0 {
		out.Rounds = s.Rounds
	}
	if out.Rounds > 50 {
		out.Rounds = 50
	}
	if s.RoundDurationMs > 0 {
		out.RoundDurationMs = s.RoundDurationMs
	}
	if out.RoundDurationMs < 5_000 {
		out.RoundDurationMs = 5_000
	}
	if out.RoundDurationMs > 120_000 {
		out.RoundDurationMs = 120_000
	}
	switch s.GameMode {
	case ModeClassic, ModeBuzzer, ModeTimeline, ModeElimination, ModeIntro, ModeLyrics:
		out.GameMode = s.GameMode
	}
	out.Difficulty = s.Difficulty
	out.Genre = s.Genre
	out.TeamMode = s.TeamMode
	out.PowerUps = s.PowerUps
	out.ProgressiveAudio = s.ProgressiveAudio
	if s.TimelineTarget > 0 {
		out.TimelineTarget = s.TimelineTarget
	}
	if s.Lives > 0 {
		out.Lives = s.Lives
	}
	if out.Lives > 9 {
		out.Lives = 9
	}
	return out
}
