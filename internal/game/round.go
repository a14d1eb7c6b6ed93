package game

import (
	"context"
	"time"

	"blindtest/internal/catalog"
	"blindtest/internal/protocol"
)

// Round is one track-guessing instance. It exists iff the room is in an
// active-round phase, and is converted into its RoundResult exactly once.
type Round struct {
	Number  int
	Track   catalog.Track
	StartAt time.Time
	EndAt   time.Time

	Closed bool
	Result *protocol.RoundResult

	Attempts map[string][]Attempt
	Deltas   map[string]int

	// Mode-specific state, attached by the strategy in OnRoundOpen.
	Buzzer *buzzerState
	Intro  *introState
	Lyrics *lyricsState
}

// Attempt is one graded submission.
type Attempt struct {
	Text     string
	ClientTs int64
	At       time.Time
	Correct  bool
}

// roundScopedTimers are cancelled whenever a round closes.
var roundScopedTimers = []string{
	timerRoundEnd, timerHint, timerIntroTier, timerBuzzerWindow, timerLyricsReveal,
}

func (r *Room) beginCountdownLocked() {
	r.phase = PhaseCountdown
	r.round = nil
	r.nextTrack = nil
	r.fetchFailed = false
	r.awaitingTrack = false

	go r.prefetchTrack()
	r.scheduleLocked(timerCountdown, r.deps.Config.Countdown, false, r.onCountdownDoneLocked)
	r.broadcastStateLocked()
}

// prefetchTrack fetches the next round's track while the countdown runs.
// On failure it retries once with the genre filter dropped before the error
// becomes fatal.
func (r *Room) prefetchTrack() {
	r.mu.Lock()
	filters := catalog.Filters{
		Genre:      r.settings.Genre,
		Difficulty: r.settings.Difficulty,
		Exclude:    append([]string(nil), r.usedTracks...),
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	track, err := r.deps.Tracks.FetchTrack(ctx, filters)
	if err != nil && filters.Genre != "" {
		relaxed := filters
		relaxed.Genre = ""
		r.logger.Warn().Err(err).Msg("track fetch failed, retrying without genre filter")
		track, err = r.deps.Tracks.FetchTrack(ctx, relaxed)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.phase != PhaseCountdown {
		return // round was aborted while fetching
	}
	if err != nil {
		r.logger.Error().Err(err).Msg("track fetch failed after relaxed retry")
		r.fetchFailed = true
		if r.awaitingTrack {
			r.fatalNoTracksLocked()
		}
		return
	}
	r.nextTrack = &track
	if r.awaitingTrack {
		r.openRoundLocked(track)
	}
}

func (r *Room) onCountdownDoneLocked() {
	switch {
	case r.nextTrack != nil:
		track := *r.nextTrack
		r.nextTrack = nil
		r.openRoundLocked(track)
	case r.fetchFailed:
		r.fatalNoTracksLocked()
	default:
		// Catalog is slow; the prefetch goroutine opens the round on arrival.
		r.awaitingTrack = true
	}
}

func (r *Room) fatalNoTracksLocked() {
	r.broadcastLocked(protocol.NewEvent(protocol.EventError, protocol.ErrorPayload{
		Code:    ErrorCode(ErrNoTracksAvailable),
		Message: ErrNoTracksAvailable.Error(),
	}))
	r.finishGameLocked(true)
}

func (r *Room) openRoundLocked(track catalog.Track) {
	now := r.deps.Clock.Now()
	duration := time.Duration(r.settings.RoundDurationMs) * time.Millisecond

	r.roundNum++
	rd := &Round{
		Number:   r.roundNum,
		Track:    track,
		StartAt:  now,
		EndAt:    now.Add(duration),
		Attempts: make(map[string][]Attempt),
		Deltas:   make(map[string]int),
	}
	r.round = rd
	r.phase = PhasePlaying
	if track.ID != "" {
		r.usedTracks = append(r.usedTracks, track.ID)
	}
	for _, p := range r.players {
		p.resetRound()
	}

	// The strategy may stretch the window (buzzer) or attach mode state and
	// schedule sub-phase timers (intro tiers, lyrics reveal, hints).
	r.strategy.OnRoundOpen(r, rd)

	r.logger.Info().
		Int("round", rd.Number).
		Str("game_mode", r.settings.GameMode).
		Time("end_at", rd.EndAt).
		Msg("round opened")

	r.broadcastLocked(protocol.NewEvent(protocol.EventRoundStart, protocol.RoundStartPayload{RoundData: r.roundDataLocked()}))
	r.scheduleLocked(timerRoundEnd, rd.EndAt.Sub(now), true, func() { r.closeRoundLocked() })
	r.broadcastStateLocked()

	if r.pendingPause {
		r.pendingPause = false
		r.pauseLocked()
		r.broadcastStateLocked()
	}
}

func (r *Room) roundDataLocked() protocol.RoundData {
	rd := r.round
	return protocol.RoundData{
		Number:      rd.Number,
		TotalRounds: r.settings.Rounds,
		GameMode:    r.settings.GameMode,
		PreviewURL:  rd.Track.PreviewURL,
		Cover:       rd.Track.Cover,
		StartAt:     rd.StartAt.UnixMilli(),
		EndAt:       rd.EndAt.UnixMilli(),
	}
}

// SubmitAnswer grades one attempt under the active mode. Wrong answers
// reset the streak and start a cooldown that rejects further submissions
// without grading.
func (r *Room) SubmitAnswer(playerID, text string, clientTs int64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rd := r.round
	if r.phase != PhasePlaying || rd == nil || rd.Closed || r.paused {
		return
	}
	p := r.playerLocked(playerID)
	if p == nil || !p.Connected || p.Eliminated {
		return
	}

	now := r.deps.Clock.Now()
	if now.Before(p.CooldownUntil) {
		r.sendToLocked(playerID, protocol.NewEvent(protocol.EventAnswerResult, protocol.AnswerResultPayload{
			Correct:       false,
			CooldownUntil: p.CooldownUntil.UnixMilli(),
		}))
		return
	}

	wasDone := p.AnsweredCorrectly
	v := r.strategy.Validate(r, rd, p, text)
	if v.Ignore {
		return
	}

	rd.Attempts[playerID] = append(rd.Attempts[playerID], Attempt{
		Text:     text,
		ClientTs: clientTs,
		At:       now,
		Correct:  v.Correct,
	})

	result := protocol.AnswerResultPayload{
		Correct:        v.Correct,
		FoundPart:      v.FoundPart,
		TimelineReveal: v.Reveal,
		ScoreDelta:     v.ScoreDelta,
	}

	if v.Correct {
		if v.ScoreDelta > 0 {
			p.Score += v.ScoreDelta
			rd.Deltas[playerID] += v.ScoreDelta
		}
		if p.AnsweredCorrectly && !wasDone {
			p.Streak++
		}
	} else {
		p.Streak = 0
		cd := time.Duration(v.CooldownMs) * time.Millisecond
		if cd <= 0 {
			cd = r.deps.Config.WrongAnswerCooldown
		}
		p.CooldownUntil = now.Add(cd)
		result.CooldownUntil = p.CooldownUntil.UnixMilli()
	}

	r.sendToLocked(playerID, protocol.NewEvent(protocol.EventAnswerResult, result))
	r.logger.Debug().
		Str("player_id", playerID).
		Bool("correct", v.Correct).
		Int("delta", v.ScoreDelta).
		Int("round", rd.Number).
		Msg("answer graded")

	if v.EndsRound || r.strategy.RoundComplete(r, rd) {
		r.closeRoundLocked()
		return
	}
	if v.Correct {
		r.broadcastStateLocked()
	}
}

// BuzzerPress races to acquire the buzzer lock; first valid press wins,
// ties broken by arrival order under the room's serialization.
func (r *Room) BuzzerPress(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rd := r.round
	if r.phase != PhasePlaying || rd == nil || rd.Closed || r.paused {
		return
	}
	p := r.playerLocked(playerID)
	if p == nil || !p.Connected || p.Eliminated {
		return
	}
	bs, ok := r.strategy.(*buzzerStrategy)
	if !ok {
		return
	}
	bs.Press(r, rd, p)
}

// SubmitLyrics grades the fill-in-the-blank half of a lyrics round.
func (r *Room) SubmitLyrics(playerID string, answers []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rd := r.round
	if r.phase != PhasePlaying || rd == nil || rd.Closed || r.paused {
		return
	}
	p := r.playerLocked(playerID)
	if p == nil || !p.Connected || p.Eliminated {
		return
	}
	ls, ok := r.strategy.(*lyricsStrategy)
	if !ok {
		return
	}
	ls.Grade(r, rd, p, answers)

	if r.strategy.RoundComplete(r, rd) {
		r.closeRoundLocked()
	}
}

// closeRoundLocked converts the round into its result. Idempotent: a second
// call returns the cached result and performs no further mutation.
func (r *Room) closeRoundLocked() *protocol.RoundResult {
	rd := r.round
	if rd == nil {
		return nil
	}
	if rd.Closed {
		return rd.Result
	}
	rd.Closed = true

	for _, name := range roundScopedTimers {
		r.cancelTimerLocked(name)
		delete(r.frozen, name)
	}

	// Letting the round run out breaks the streak the same way a wrong
	// answer does.
	for _, p := range r.activePlayersLocked() {
		if !p.AnsweredCorrectly {
			p.Streak = 0
		}
	}

	res := protocol.RoundResult{
		Number:    rd.Number,
		Title:     rd.Track.Title,
		Artist:    rd.Track.Artist,
		Year:      rd.Track.Year,
		Cover:     rd.Track.Cover,
		Timestamp: r.nowMsLocked(),
	}
	for _, p := range r.players {
		res.Players = append(res.Players, protocol.PlayerResult{
			PlayerID:   p.ID,
			Pseudo:     p.Pseudo,
			WasCorrect: p.AnsweredCorrectly,
			ScoreDelta: rd.Deltas[p.ID],
			Score:      p.Score,
		})
	}

	r.strategy.OnRoundEnd(r, rd, &res)
	rd.Result = &res
	r.phase = PhaseReveal

	r.logger.Info().Int("round", rd.Number).Msg("round closed")
	r.broadcastLocked(protocol.NewEvent(protocol.EventRoundEnd, protocol.RoundEndPayload{RoundResult: res}))
	r.broadcastStateLocked()
	r.scheduleLocked(timerReveal, r.deps.Config.RevealDelay, true, r.afterRevealLocked)
	return rd.Result
}

func (r *Room) afterRevealLocked() {
	if r.strategy.GameOver(r) || r.roundNum >= r.settings.Rounds {
		r.finishGameLocked(false)
		return
	}
	r.beginCountdownLocked()
}

// finishGameLocked moves the room to its terminal, reportable state and
// fires the one-way results notification.
func (r *Room) finishGameLocked(partial bool) {
	if r.phase == PhaseFinished {
		return
	}
	r.phase = PhaseFinished
	r.partial = partial
	r.round = nil

	// Keep disconnect grace timers running; everything game-scoped dies.
	for name := range r.timers {
		if len(name) >= len("disconnect:") && name[:len("disconnect:")] == "disconnect:" {
			continue
		}
		r.cancelTimerLocked(name)
	}
	r.clearPauseLocked()

	standings := r.standingsLocked()
	r.logger.Info().Bool("partial", partial).Int("rounds_played", r.roundNum).Msg("game over")
	r.broadcastLocked(protocol.NewEvent(protocol.EventGameOver, protocol.GameOverPayload{
		Standings: standings,
		Partial:   partial,
	}))
	r.broadcastStateLocked()

	if r.deps.Results != nil {
		env := protocol.GameOverEnvelope{
			RoomCode:   r.Code,
			GameMode:   r.settings.GameMode,
			Rounds:     r.roundNum,
			Partial:    partial,
			FinishedAt: r.nowMsLocked(),
			Standings:  standings,
		}
		logger := r.logger
		sink := r.deps.Results
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := sink.PublishGameOver(ctx, env); err != nil {
				logger.Error().Err(err).Msg("failed to publish game results")
			}
		}()
	}
}

// standingsLocked ranks players by score, descending; equal scores share a
// rank.
func (r *Room) standingsLocked() []protocol.Standing {
	sorted := append([]*Player(nil), r.players...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Score > sorted[j-1].Score; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	out := make([]protocol.Standing, 0, len(sorted))
	rank := 0
	prevScore := -1
	for i, p := range sorted {
		if i == 0 || p.Score != prevScore {
			rank = i + 1
		}
		prevScore = p.Score
		out = append(out, protocol.Standing{
			PlayerID: p.ID,
			Pseudo:   p.Pseudo,
			Score:    p.Score,
			Rank:     rank,
			TeamID:   p.TeamID,
		})
	}
	return out
}
