package game

import (
	"time"

	"blindtest/internal/protocol"
)

// buzzerState tracks the exclusive answer lock. At most one holder exists
// at any instant; the room's serialization is what makes the race fair.
type buzzerState struct {
	HolderID string
	LockedAt time.Time
	Used     map[string]bool // players who spent their buzz attempt
}

// buzzerStrategy: answers are only accepted from the current buzzer-lock
// holder. A wrong answer (or window timeout) releases the lock and locks
// that player out; the round ends on a correct answer or when every player
// has spent their buzz.
type buzzerStrategy struct{}

func (s *buzzerStrategy) Name() string    { return ModeBuzzer }
func (s *buzzerStrategy) MinPlayers() int { return 2 }

func (s *buzzerStrategy) OnRoundOpen(rm *Room, rd *Round) {
	rd.Buzzer = &buzzerState{Used: make(map[string]bool)}
	// No fixed end until a buzz resolves; the stretched window is a guard
	// so an abandoned room still terminates.
	rd.EndAt = rd.StartAt.Add(3 * rd.EndAt.Sub(rd.StartAt))
}

// Press races to acquire the lock. Called with the room lock held.
func (s *buzzerStrategy) Press(rm *Room, rd *Round, p *Player) {
	bz := rd.Buzzer
	if bz.HolderID != "" {
		// Second concurrent press is rejected, never queued.
		rm.sendErrorLocked(p.ID, ErrBuzzerLocked)
		return
	}
	if bz.Used[p.ID] {
		return
	}
	bz.HolderID = p.ID
	bz.LockedAt = rm.deps.Clock.Now()
	bz.Used[p.ID] = true
	p.BuzzUsed = true

	window := rm.deps.Config.BuzzerWindow
	rm.logger.Info().Str("player_id", p.ID).Msg("buzzer locked")
	rm.broadcastLocked(protocol.NewEvent(protocol.EventBuzzerLocked, protocol.BuzzerLockedPayload{
		PlayerID:     p.ID,
		Pseudo:       p.Pseudo,
		BuzzerTimeMs: window.Milliseconds(),
	}))

	holderID := p.ID
	rm.scheduleLocked(timerBuzzerWindow, window, true, func() {
		s.expireHolder(rm, rd, holderID)
	})
}

// expireHolder handles the holder running out their answer window. Same
// consequences as a wrong answer: streak gone, locked out for the round.
func (s *buzzerStrategy) expireHolder(rm *Room, rd *Round, holderID string) {
	bz := rd.Buzzer
	if rd.Closed || bz.HolderID != holderID {
		return
	}
	bz.HolderID = ""
	if p := rm.playerLocked(holderID); p != nil {
		p.Streak = 0
		p.CooldownUntil = rd.EndAt
	}
	rm.broadcastLocked(protocol.NewEvent(protocol.EventBuzzerTimeout, nil))
	if s.allBuzzesSpent(rm, rd) {
		rm.closeRoundLocked()
	}
}

// releaseIfHolder frees the lock when the holder leaves the room mid-buzz,
// so the remaining players are not stuck waiting out the answer window.
func (s *buzzerStrategy) releaseIfHolder(rm *Room, rd *Round, playerID string) {
	bz := rd.Buzzer
	if bz == nil || bz.HolderID != playerID {
		return
	}
	bz.HolderID = ""
	rm.cancelTimerLocked(timerBuzzerWindow)
	rm.broadcastLocked(protocol.NewEvent(protocol.EventBuzzerReleased, nil))
}

func (s *buzzerStrategy) Validate(rm *Room, rd *Round, p *Player, text string) Verdict {
	bz := rd.Buzzer
	if bz.HolderID != p.ID {
		return Verdict{Ignore: true}
	}

	titleOK, artistOK := matchParts(text, rd.Track.Title, rd.Track.Artist, rm.deps.Config.MatchTolerance)
	if titleOK || artistOK {
		// Speed is measured from the round start so an early buzz pays off.
		delta := scoreAnswer(bz.LockedAt, rd.StartAt, rd.EndAt, p.Streak)
		p.AnsweredCorrectly = true
		bz.HolderID = ""
		rm.cancelTimerLocked(timerBuzzerWindow)
		return Verdict{Correct: true, ScoreDelta: delta, EndsRound: true}
	}

	// Wrong answer: lose the lock, lockout for the rest of the round.
	bz.HolderID = ""
	rm.cancelTimerLocked(timerBuzzerWindow)
	rm.broadcastLocked(protocol.NewEvent(protocol.EventBuzzerReleased, nil))
	return Verdict{Correct: false, CooldownMs: rd.EndAt.Sub(rm.deps.Clock.Now()).Milliseconds()}
}

func (s *buzzerStrategy) RoundComplete(rm *Room, rd *Round) bool {
	if rd.Buzzer == nil {
		return false
	}
	return rd.Buzzer.HolderID == "" && s.allBuzzesSpent(rm, rd)
}

func (s *buzzerStrategy) allBuzzesSpent(rm *Room, rd *Round) bool {
	active := rm.activePlayersLocked()
	if len(active) == 0 {
		return true
	}
	for _, p := range active {
		if !rd.Buzzer.Used[p.ID] {
			return false
		}
	}
	return true
}

func (s *buzzerStrategy) OnRoundEnd(rm *Room, rd *Round, res *protocol.RoundResult) {}

func (s *buzzerStrategy) GameOver(rm *Room) bool { return false }
