package game

import "blindtest/internal/protocol"

// eliminationStrategy: classic grading, but a round without a correct
// answer costs a life. At zero lives the player is eliminated, still
// observing but excluded from grading. The game ends when one player (or
// team) remains.
type eliminationStrategy struct{}

func (s *eliminationStrategy) Name() string    { return ModeElimination }
func (s *eliminationStrategy) MinPlayers() int { return 2 }

func (s *eliminationStrategy) OnRoundOpen(rm *Room, rd *Round) {
	scheduleHalfTimeHint(rm, rd)
}

func (s *eliminationStrategy) Validate(rm *Room, rd *Round, p *Player, text string) Verdict {
	return gradeClassic(rm, rd, p, text, 1.0)
}

func (s *eliminationStrategy) RoundComplete(rm *Room, rd *Round) bool {
	return allActiveAnswered(rm)
}

func (s *eliminationStrategy) OnRoundEnd(rm *Room, rd *Round, res *protocol.RoundResult) {
	for _, p := range rm.players {
		if !p.Connected || p.Eliminated || p.AnsweredCorrectly {
			continue
		}
		p.Lives--
		if p.Lives <= 0 {
			p.Lives = 0
			p.Eliminated = true
			rm.logger.Info().Str("player_id", p.ID).Str("pseudo", p.Pseudo).Msg("player eliminated")
			rm.broadcastLocked(protocol.NewEvent(protocol.EventPlayerEliminated, protocol.PlayerEliminatedPayload{
				PlayerID: p.ID,
				Pseudo:   p.Pseudo,
			}))
		}
	}
}

func (s *eliminationStrategy) GameOver(rm *Room) bool {
	if rm.settings.TeamMode {
		alive := map[string]bool{}
		for _, p := range rm.players {
			if !p.Eliminated {
				alive[p.TeamID] = true
			}
		}
		return len(alive) <= 1
	}
	remaining := 0
	for _, p := range rm.players {
		if !p.Eliminated {
			remaining++
		}
	}
	return remaining <= 1
}
