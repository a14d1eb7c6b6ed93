package game

import (
	"time"

	"blindtest/internal/protocol"
)

const introTiers = 3

// Cumulative excerpt length per tier: each replay starts from the beginning
// with a longer audible window.
var introExcerpts = [introTiers]time.Duration{
	1 * time.Second,
	3 * time.Second,
	7 * time.Second,
}

const (
	introPhaseListening = "listening"
	introPhaseGuessing  = "guessing"
)

type introState struct {
	Tier  int
	Phase string
}

// introStrategy: the round alternates time-gated listening/guessing
// sub-phases over increasing excerpt tiers; earlier correct guesses score
// higher.
type introStrategy struct{}

func (s *introStrategy) Name() string    { return ModeIntro }
func (s *introStrategy) MinPlayers() int { return 1 }

func (s *introStrategy) OnRoundOpen(rm *Room, rd *Round) {
	rd.Intro = &introState{Tier: 1, Phase: introPhaseListening}
	s.announceTier(rm, rd)
	s.scheduleAdvance(rm, rd)
}

func (s *introStrategy) announceTier(rm *Room, rd *Round) {
	st := rd.Intro
	var dur time.Duration
	if st.Phase == introPhaseListening {
		dur = introExcerpts[st.Tier-1]
	} else {
		dur = s.guessWindow(rm, rd)
	}
	rm.broadcastLocked(protocol.NewEvent(protocol.EventIntroTierUnlock, protocol.IntroTierUnlockPayload{
		Tier:       st.Tier,
		Phase:      st.Phase,
		DurationMs: dur.Milliseconds(),
	}))
}

// guessWindow splits the time left after listening evenly across the
// remaining tiers.
func (s *introStrategy) guessWindow(rm *Room, rd *Round) time.Duration {
	total := rd.EndAt.Sub(rd.StartAt)
	var listening time.Duration
	for _, e := range introExcerpts {
		listening += e
	}
	guessing := total - listening
	if guessing <= 0 {
		guessing = total / 2
	}
	return guessing / introTiers
}

func (s *introStrategy) scheduleAdvance(rm *Room, rd *Round) {
	st := rd.Intro
	var d time.Duration
	if st.Phase == introPhaseListening {
		d = introExcerpts[st.Tier-1]
	} else {
		d = s.guessWindow(rm, rd)
	}
	rm.scheduleLocked(timerIntroTier, d, true, func() {
		s.advance(rm, rd)
	})
}

func (s *introStrategy) advance(rm *Room, rd *Round) {
	if rd.Closed {
		return
	}
	st := rd.Intro
	if st.Phase == introPhaseListening {
		st.Phase = introPhaseGuessing
	} else {
		if st.Tier >= introTiers {
			// Last guessing window ran out; the round-end timer owns the rest.
			return
		}
		st.Tier++
		st.Phase = introPhaseListening
	}
	s.announceTier(rm, rd)
	s.scheduleAdvance(rm, rd)
}

func (s *introStrategy) Validate(rm *Room, rd *Round, p *Player, text string) Verdict {
	// Earlier tiers weigh heavier: 1.0, 0.75, 0.5.
	weight := 1.0 - 0.25*float64(rd.Intro.Tier-1)
	return gradeClassic(rm, rd, p, text, weight)
}

func (s *introStrategy) RoundComplete(rm *Room, rd *Round) bool {
	return allActiveAnswered(rm)
}

func (s *introStrategy) OnRoundEnd(rm *Room, rd *Round, res *protocol.RoundResult) {}

func (s *introStrategy) GameOver(rm *Room) bool { return false }
