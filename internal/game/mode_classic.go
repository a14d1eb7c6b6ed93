package game

import (
	"blindtest/internal/protocol"
)

// classicStrategy: free-text match against title and artist, with partial
// credit per part. A player is done once both parts are found.
type classicStrategy struct{}

func (s *classicStrategy) Name() string    { return ModeClassic }
func (s *classicStrategy) MinPlayers() int { return 1 }

func (s *classicStrategy) OnRoundOpen(rm *Room, rd *Round) {
	scheduleHalfTimeHint(rm, rd)
}

func (s *classicStrategy) Validate(rm *Room, rd *Round, p *Player, text string) Verdict {
	return gradeClassic(rm, rd, p, text, 1.0)
}

func (s *classicStrategy) RoundComplete(rm *Room, rd *Round) bool {
	return allActiveAnswered(rm)
}

func (s *classicStrategy) OnRoundEnd(rm *Room, rd *Round, res *protocol.RoundResult) {}

func (s *classicStrategy) GameOver(rm *Room) bool { return false }

// gradeClassic is the shared title/artist grading used by the classic,
// elimination, intro and lyrics modes. weight scales the score delta.
func gradeClassic(rm *Room, rd *Round, p *Player, text string, weight float64) Verdict {
	titleOK, artistOK := matchParts(text, rd.Track.Title, rd.Track.Artist, rm.deps.Config.MatchTolerance)

	newTitle := titleOK && !p.FoundTitle
	newArtist := artistOK && !p.FoundArtist
	if !newTitle && !newArtist {
		return Verdict{Correct: false}
	}

	full := scoreAnswer(rm.deps.Clock.Now(), rd.StartAt, rd.EndAt, p.Streak)
	if weight != 1.0 {
		full = int(float64(full) * weight)
	}

	delta := 0
	part := ""
	if newTitle {
		p.FoundTitle = true
		delta += full / 2
		part = "title"
	}
	if newArtist {
		p.FoundArtist = true
		delta += full / 2
		part = "artist"
	}
	if newTitle && newArtist {
		part = "both"
	}
	if p.FoundTitle && p.FoundArtist {
		p.AnsweredCorrectly = true
	}

	return Verdict{Correct: true, ScoreDelta: delta, FoundPart: part}
}

func allActiveAnswered(rm *Room) bool {
	active := rm.activePlayersLocked()
	if len(active) == 0 {
		return false
	}
	for _, p := range active {
		if !p.AnsweredCorrectly {
			return false
		}
	}
	return true
}

// scheduleHalfTimeHint broadcasts a masked-title hint at half window when
// power-ups are enabled.
func scheduleHalfTimeHint(rm *Room, rd *Round) {
	if !rm.settings.PowerUps {
		return
	}
	half := rd.EndAt.Sub(rd.StartAt) / 2
	hint := maskTitle(rd.Track.Title)
	rm.scheduleLocked(timerHint, half, true, func() {
		rm.broadcastLocked(protocol.NewEvent(protocol.EventHintReceived, protocol.HintReceivedPayload{
			Hint:     hint,
			HintType: "title",
		}))
	})
}
