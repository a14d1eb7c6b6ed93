package game

import (
	"sort"
	"strconv"
	"strings"

	"blindtest/internal/protocol"
)

// timelineStrategy: the answer is an insertion index into the player's
// personal card sequence; it is correct when the track's release year keeps
// the sequence sorted at that index. The round ends per-player on placement
// and the game ends when anyone reaches the card target.
type timelineStrategy struct{}

func (s *timelineStrategy) Name() string    { return ModeTimeline }
func (s *timelineStrategy) MinPlayers() int { return 1 }

func (s *timelineStrategy) OnRoundOpen(rm *Room, rd *Round) {}

func (s *timelineStrategy) Validate(rm *Room, rd *Round, p *Player, text string) Verdict {
	if p.Placed {
		return Verdict{Ignore: true}
	}
	idx, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || idx < 0 || idx > len(p.Timeline) {
		return Verdict{Ignore: true}
	}

	year := rd.Track.Year
	p.Placed = true

	ok := indexConsistent(p.Timeline, idx, year)
	reveal := &protocol.TimelineReveal{
		Year:         year,
		CorrectIndex: lowestValidIndex(p.Timeline, year),
		Placed:       ok,
	}

	if !ok {
		// One placement attempt per round; no further cooldown needed.
		return Verdict{Correct: false, Reveal: reveal, CooldownMs: rd.EndAt.Sub(rm.deps.Clock.Now()).Milliseconds()}
	}

	card := protocol.TimelineCard{Title: rd.Track.Title, Artist: rd.Track.Artist, Year: year}
	p.Timeline = append(p.Timeline, protocol.TimelineCard{})
	copy(p.Timeline[idx+1:], p.Timeline[idx:])
	p.Timeline[idx] = card
	p.AnsweredCorrectly = true

	delta := scoreAnswer(rm.deps.Clock.Now(), rd.StartAt, rd.EndAt, p.Streak)
	return Verdict{Correct: true, ScoreDelta: delta, Reveal: reveal}
}

// indexConsistent reports whether inserting year at idx keeps the sequence
// sorted. Equal years are consistent on either side.
func indexConsistent(cards []protocol.TimelineCard, idx, year int) bool {
	if idx > 0 && cards[idx-1].Year > year {
		return false
	}
	if idx < len(cards) && cards[idx].Year < year {
		return false
	}
	return true
}

func lowestValidIndex(cards []protocol.TimelineCard, year int) int {
	return sort.Search(len(cards), func(i int) bool { return cards[i].Year >= year })
}

func (s *timelineStrategy) RoundComplete(rm *Room, rd *Round) bool {
	active := rm.activePlayersLocked()
	if len(active) == 0 {
		return false
	}
	for _, p := range active {
		if !p.Placed {
			return false
		}
	}
	return true
}

func (s *timelineStrategy) OnRoundEnd(rm *Room, rd *Round, res *protocol.RoundResult) {}

// GameOver fires when a player (or, in team mode, a team's combined cards)
// reaches the configured target.
func (s *timelineStrategy) GameOver(rm *Room) bool {
	target := rm.settings.TimelineTarget
	if target <= 0 {
		return false
	}
	if rm.settings.TeamMode {
		byTeam := map[string]int{}
		for _, p := range rm.players {
			byTeam[p.TeamID] += len(p.Timeline)
		}
		for _, n := range byTeam {
			if n >= target {
				return true
			}
		}
		return false
	}
	for _, p := range rm.players {
		if len(p.Timeline) >= target {
			return true
		}
	}
	return false
}
