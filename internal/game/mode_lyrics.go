package game

import (
	"strings"

	"blindtest/internal/protocol"
)

const (
	lyricsMaxBlanks     = 4
	lyricsBlankMinRunes = 4
	lyricsBlankScore    = 150
	lyricsBlankMask     = "____"
)

type lyricsState struct {
	Blanks      []string // expected words, in line order
	MaskedLines []string
	Sent        bool
}

// lyricsStrategy: an initial listening window, then a fill-in-the-blank
// challenge derived from the track's lyrics, with the classic title/artist
// guess running concurrently. Tracks without lyrics degrade to classic.
type lyricsStrategy struct{}

func (s *lyricsStrategy) Name() string    { return ModeLyrics }
func (s *lyricsStrategy) MinPlayers() int { return 1 }

func (s *lyricsStrategy) OnRoundOpen(rm *Room, rd *Round) {
	st := buildLyricsChallenge(rd.Track.Lyrics)
	rd.Lyrics = st
	if len(st.Blanks) == 0 {
		return
	}
	listen := rd.EndAt.Sub(rd.StartAt) / 3
	rm.scheduleLocked(timerLyricsReveal, listen, true, func() {
		st.Sent = true
		rm.broadcastLocked(protocol.NewEvent(protocol.EventLyricsData, protocol.LyricsDataPayload{
			Lines:      st.MaskedLines,
			Blanks:     len(st.Blanks),
			DurationMs: rd.EndAt.Sub(rm.deps.Clock.Now()).Milliseconds(),
		}))
	})
}

// buildLyricsChallenge blanks the longest word of each line, up to the
// blank budget. Deterministic so every client sees the same challenge.
func buildLyricsChallenge(lyrics string) *lyricsState {
	st := &lyricsState{}
	if strings.TrimSpace(lyrics) == "" {
		return st
	}
	for _, line := range strings.Split(lyrics, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if len(st.Blanks) >= lyricsMaxBlanks {
			st.MaskedLines = append(st.MaskedLines, line)
			continue
		}
		words := strings.Fields(line)
		best := -1
		for i, w := range words {
			if len([]rune(foldText(w))) < lyricsBlankMinRunes {
				continue
			}
			if best == -1 || len([]rune(w)) > len([]rune(words[best])) {
				best = i
			}
		}
		if best == -1 {
			st.MaskedLines = append(st.MaskedLines, line)
			continue
		}
		st.Blanks = append(st.Blanks, words[best])
		words[best] = lyricsBlankMask
		st.MaskedLines = append(st.MaskedLines, strings.Join(words, " "))
	}
	return st
}

// Grade checks the submitted blanks, per-blank equality after folding.
// Called with the room lock held.
func (s *lyricsStrategy) Grade(rm *Room, rd *Round, p *Player, answers []string) {
	st := rd.Lyrics
	if st == nil || !st.Sent || p.LyricsDone || len(st.Blanks) == 0 {
		return
	}
	p.LyricsDone = true

	correct := make([]bool, len(st.Blanks))
	delta := 0
	for i, want := range st.Blanks {
		if i >= len(answers) {
			break
		}
		if foldText(answers[i]) == foldText(want) {
			correct[i] = true
			delta += lyricsBlankScore
		}
	}
	if delta > 0 {
		p.Score += delta
		rd.Deltas[p.ID] += delta
	}
	rm.sendToLocked(p.ID, protocol.NewEvent(protocol.EventLyricsResult, protocol.LyricsResultPayload{
		Correct:    correct,
		ScoreDelta: delta,
	}))
	rm.broadcastStateLocked()
}

func (s *lyricsStrategy) Validate(rm *Room, rd *Round, p *Player, text string) Verdict {
	return gradeClassic(rm, rd, p, text, 1.0)
}

func (s *lyricsStrategy) RoundComplete(rm *Room, rd *Round) bool {
	active := rm.activePlayersLocked()
	if len(active) == 0 {
		return false
	}
	needLyrics := rd.Lyrics != nil && len(rd.Lyrics.Blanks) > 0
	for _, p := range active {
		if !p.AnsweredCorrectly {
			return false
		}
		if needLyrics && !p.LyricsDone {
			return false
		}
	}
	return true
}

func (s *lyricsStrategy) OnRoundEnd(rm *Room, rd *Round, res *protocol.RoundResult) {}

func (s *lyricsStrategy) GameOver(rm *Room) bool { return false }
