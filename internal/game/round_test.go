package game

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blindtest/internal/catalog"
	"blindtest/internal/protocol"
)

// startPlaying runs a room through the countdown into an open round.
func startPlaying(t *testing.T, env *testEnv, room *Room, hostID string) {
	t.Helper()
	require.NoError(t, room.StartGame(hostID))
	require.Equal(t, PhaseCountdown, room.Phase())
	env.clock.Advance(env.registry.deps.Config.Countdown)
	require.Eventually(t, func() bool {
		return room.Phase() == PhasePlaying
	}, time.Second, pollInterval, "round should open after the countdown")
}

func decodePayload[T any](t *testing.T, evt *protocol.Event) T {
	t.Helper()
	var out T
	require.NotNil(t, evt)
	require.NoError(t, json.Unmarshal(evt.Data, &out))
	return out
}

func TestClassicRoundFlow(t *testing.T) {
	env := newTestEnv()
	room, host, err := env.registry.CreateRoom("p1", "alice", "", env.settings(ModeClassic, 2))
	require.NoError(t, err)
	_, bob, err := env.registry.JoinRoom(room.Code, "p2", "bob", "")
	require.NoError(t, err)

	startPlaying(t, env, room, host.ID)

	starts := env.broadcast.roomEvents(protocol.EventRoundStart)
	require.Len(t, starts, 1)
	rd := decodePayload[protocol.RoundStartPayload](t, starts[0])
	assert.Equal(t, 1, rd.RoundData.Number)
	assert.Equal(t, 2, rd.RoundData.TotalRounds)
	assert.NotEmpty(t, rd.RoundData.PreviewURL)
	assert.Greater(t, rd.RoundData.EndAt, rd.RoundData.StartAt)

	// Host finds only the title: partial credit, not done yet.
	room.SubmitAnswer(host.ID, "bohemian rhapsody", env.clock.Now().UnixMilli())
	res := decodePayload[protocol.AnswerResultPayload](t, env.broadcast.lastDirect(host.ID, protocol.EventAnswerResult))
	assert.True(t, res.Correct)
	assert.Equal(t, "title", res.FoundPart)
	assert.Equal(t, PhasePlaying, room.Phase())

	// Then the artist: host is done, round still waits for bob.
	room.SubmitAnswer(host.ID, "queen", env.clock.Now().UnixMilli())
	assert.Equal(t, PhasePlaying, room.Phase())

	// Bob answers both at once: everyone answered, early close.
	room.SubmitAnswer(bob.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	res = decodePayload[protocol.AnswerResultPayload](t, env.broadcast.lastDirect(bob.ID, protocol.EventAnswerResult))
	assert.Equal(t, "both", res.FoundPart)
	assert.Equal(t, PhaseReveal, room.Phase())

	ends := env.broadcast.roomEvents(protocol.EventRoundEnd)
	require.Len(t, ends, 1)
	rr := decodePayload[protocol.RoundEndPayload](t, ends[0])
	assert.Equal(t, "Bohemian Rhapsody", rr.RoundResult.Title)
	assert.Equal(t, "Queen", rr.RoundResult.Artist)
	for _, pr := range rr.RoundResult.Players {
		assert.True(t, pr.WasCorrect, "player %s", pr.Pseudo)
		assert.Greater(t, pr.ScoreDelta, 0)
	}
}

func TestFasterAnswerScoresMore(t *testing.T) {
	env := newTestEnv()
	room, host, err := env.registry.CreateRoom("p1", "alice", "", env.settings(ModeClassic, 1))
	require.NoError(t, err)
	_, bob, err := env.registry.JoinRoom(room.Code, "p2", "bob", "")
	require.NoError(t, err)

	startPlaying(t, env, room, host.ID)

	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	env.clock.Advance(10 * time.Second)
	room.SubmitAnswer(bob.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())

	require.Equal(t, PhaseReveal, room.Phase())
	rr := decodePayload[protocol.RoundEndPayload](t, env.broadcast.roomEvents(protocol.EventRoundEnd)[0])
	deltas := map[string]int{}
	for _, pr := range rr.RoundResult.Players {
		deltas[pr.PlayerID] = pr.ScoreDelta
	}
	assert.Greater(t, deltas[host.ID], deltas[bob.ID], "earlier answer must score strictly more")
}

func TestWrongAnswerCooldown(t *testing.T) {
	env := newTestEnv()
	room, host, err := env.registry.CreateRoom("p1", "alice", "", env.settings(ModeClassic, 1))
	require.NoError(t, err)
	// A second player keeps the round open after the host answers.
	_, _, err = env.registry.JoinRoom(room.Code, "p2", "bob", "")
	require.NoError(t, err)

	startPlaying(t, env, room, host.ID)

	room.SubmitAnswer(host.ID, "wonderwall", env.clock.Now().UnixMilli())
	res := decodePayload[protocol.AnswerResultPayload](t, env.broadcast.lastDirect(host.ID, protocol.EventAnswerResult))
	assert.False(t, res.Correct)
	assert.Greater(t, res.CooldownUntil, env.clock.Now().UnixMilli())

	// A correct answer during cooldown is rejected without grading.
	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	res = decodePayload[protocol.AnswerResultPayload](t, env.broadcast.lastDirect(host.ID, protocol.EventAnswerResult))
	assert.False(t, res.Correct)

	room.mu.Lock()
	attempts := len(room.round.Attempts[host.ID])
	streak := room.playerLocked(host.ID).Streak
	room.mu.Unlock()
	assert.Equal(t, 1, attempts, "cooldown submissions are not recorded")
	assert.Equal(t, 0, streak, "wrong answer resets the streak")

	// After the cooldown the same answer grades normally.
	env.clock.Advance(env.registry.deps.Config.WrongAnswerCooldown)
	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	res = decodePayload[protocol.AnswerResultPayload](t, env.broadcast.lastDirect(host.ID, protocol.EventAnswerResult))
	assert.True(t, res.Correct)
}

func TestRoundEndsOnTimer(t *testing.T) {
	env := newTestEnv()
	room, host, err := env.registry.CreateRoom("p1", "alice", "", env.settings(ModeClassic, 2))
	require.NoError(t, err)

	startPlaying(t, env, room, host.ID)
	env.clock.Advance(30 * time.Second)

	require.Eventually(t, func() bool {
		return room.Phase() == PhaseReveal
	}, time.Second, pollInterval)

	rr := decodePayload[protocol.RoundEndPayload](t, env.broadcast.roomEvents(protocol.EventRoundEnd)[0])
	require.Len(t, rr.RoundResult.Players, 1)
	assert.False(t, rr.RoundResult.Players[0].WasCorrect)
	assert.Zero(t, rr.RoundResult.Players[0].ScoreDelta)
}

func TestCloseRoundIsIdempotent(t *testing.T) {
	env := newTestEnv()
	room, host, err := env.registry.CreateRoom("p1", "alice", "", env.settings(ModeClassic, 1))
	require.NoError(t, err)

	startPlaying(t, env, room, host.ID)

	room.mu.Lock()
	first := room.closeRoundLocked()
	second := room.closeRoundLocked()
	room.mu.Unlock()

	require.NotNil(t, first)
	assert.Same(t, first, second, "second close must return the cached result")
	assert.Len(t, env.broadcast.roomEvents(protocol.EventRoundEnd), 1)
}

func TestPauseAndResumePreserveRemainingTime(t *testing.T) {
	env := newTestEnv()
	room, host, err := env.registry.CreateRoom("p1", "alice", "", env.settings(ModeClassic, 1))
	require.NoError(t, err)
	_, bob, err := env.registry.JoinRoom(room.Code, "p2", "bob", "")
	require.NoError(t, err)

	startPlaying(t, env, room, host.ID)
	endBefore := room.State().Round.EndAt

	// Quorum for 2 players is 2 votes.
	room.TogglePause(host.ID)
	assert.False(t, room.State().Paused)
	assert.Equal(t, 1, room.State().PauseVotes)
	room.TogglePause(bob.ID)
	st := room.State()
	assert.True(t, st.Paused)
	assert.Equal(t, 0, st.PauseVotes, "votes reset when the pause lands")

	// Submissions are rejected while paused.
	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	room.mu.Lock()
	attempts := len(room.round.Attempts[host.ID])
	room.mu.Unlock()
	assert.Zero(t, attempts)

	// The round-end timer must not fire during the pause.
	env.clock.Advance(45 * time.Second)
	assert.Equal(t, PhasePlaying, room.Phase())

	room.TogglePause(host.ID)
	room.TogglePause(bob.ID)
	st = room.State()
	require.False(t, st.Paused)
	assert.Equal(t, endBefore+45_000, st.Round.EndAt, "deadline shifts by exactly the pause duration")

	// Remaining time still elapses normally after resume.
	env.clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool {
		return room.Phase() == PhaseReveal
	}, time.Second, pollInterval)
}

func TestPauseDuringCountdownDefersToRoundOpen(t *testing.T) {
	env := newTestEnv()
	room, host, err := env.registry.CreateRoom("p1", "alice", "", env.settings(ModeClassic, 1))
	require.NoError(t, err)

	require.NoError(t, room.StartGame(host.ID))
	require.Equal(t, PhaseCountdown, room.Phase())

	// Solo quorum is one vote. The countdown itself keeps running.
	room.TogglePause(host.ID)
	assert.False(t, room.State().Paused)

	env.clock.Advance(env.registry.deps.Config.Countdown)
	require.Eventually(t, func() bool {
		st := room.State()
		return st.Phase == string(PhasePlaying) && st.Paused
	}, time.Second, pollInterval, "deferred pause should land when the round opens")
}

func TestGameOverAfterAllRounds(t *testing.T) {
	env := newTestEnv()
	room, host, err := env.registry.CreateRoom("p1", "alice", "", env.settings(ModeClassic, 2))
	require.NoError(t, err)

	startPlaying(t, env, room, host.ID)
	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	require.Equal(t, PhaseReveal, room.Phase())

	// Reveal, countdown, second round.
	env.clock.Advance(env.registry.deps.Config.RevealDelay)
	require.Eventually(t, func() bool { return room.Phase() == PhaseCountdown }, time.Second, pollInterval)
	env.clock.Advance(env.registry.deps.Config.Countdown)
	require.Eventually(t, func() bool { return room.Phase() == PhasePlaying }, time.Second, pollInterval)

	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	require.Equal(t, PhaseReveal, room.Phase())
	env.clock.Advance(env.registry.deps.Config.RevealDelay)
	require.Eventually(t, func() bool { return room.Phase() == PhaseFinished }, time.Second, pollInterval)

	overs := env.broadcast.roomEvents(protocol.EventGameOver)
	require.Len(t, overs, 1)
	po := decodePayload[protocol.GameOverPayload](t, overs[0])
	assert.False(t, po.Partial)
	require.Len(t, po.Standings, 1)
	assert.Equal(t, 1, po.Standings[0].Rank)
	assert.Greater(t, po.Standings[0].Score, 0)

	require.Eventually(t, func() bool { return env.sink.count() == 1 }, time.Second, pollInterval,
		"finished game publishes exactly one results envelope")
	env.sink.mu.Lock()
	env2 := env.sink.published[0]
	env.sink.mu.Unlock()
	assert.Equal(t, room.Code, env2.RoomCode)
	assert.Equal(t, 2, env2.Rounds)
	assert.False(t, env2.Partial)
}

func TestStreakGrowsAcrossRounds(t *testing.T) {
	env := newTestEnv()
	room, host, err := env.registry.CreateRoom("p1", "alice", "", env.settings(ModeClassic, 3))
	require.NoError(t, err)

	startPlaying(t, env, room, host.ID)
	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	room.mu.Lock()
	streak := room.playerLocked(host.ID).Streak
	room.mu.Unlock()
	assert.Equal(t, 1, streak)

	env.clock.Advance(env.registry.deps.Config.RevealDelay)
	require.Eventually(t, func() bool { return room.Phase() == PhaseCountdown }, time.Second, pollInterval)
	env.clock.Advance(env.registry.deps.Config.Countdown)
	require.Eventually(t, func() bool { return room.Phase() == PhasePlaying }, time.Second, pollInterval)

	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	room.mu.Lock()
	streak = room.playerLocked(host.ID).Streak
	room.mu.Unlock()
	assert.Equal(t, 2, streak)
}

func TestStreakResetsWhenRoundTimesOut(t *testing.T) {
	env := newTestEnv()
	room, host, err := env.registry.CreateRoom("p1", "alice", "", env.settings(ModeClassic, 3))
	require.NoError(t, err)

	startPlaying(t, env, room, host.ID)
	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	room.mu.Lock()
	streak := room.playerLocked(host.ID).Streak
	room.mu.Unlock()
	require.Equal(t, 1, streak)

	env.clock.Advance(env.registry.deps.Config.RevealDelay)
	require.Eventually(t, func() bool { return room.Phase() == PhaseCountdown }, time.Second, pollInterval)
	env.clock.Advance(env.registry.deps.Config.Countdown)
	require.Eventually(t, func() bool { return room.Phase() == PhasePlaying }, time.Second, pollInterval)

	// Silence through round two: the run is broken.
	env.clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return room.Phase() == PhaseReveal }, time.Second, pollInterval)
	room.mu.Lock()
	streak = room.playerLocked(host.ID).Streak
	room.mu.Unlock()
	assert.Equal(t, 0, streak, "an unanswered round resets the streak")

	env.clock.Advance(env.registry.deps.Config.RevealDelay)
	require.Eventually(t, func() bool { return room.Phase() == PhaseCountdown }, time.Second, pollInterval)
	env.clock.Advance(env.registry.deps.Config.Countdown)
	require.Eventually(t, func() bool { return room.Phase() == PhasePlaying }, time.Second, pollInterval)

	// Round three pays the base rate, no consecutive bonus.
	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	res := decodePayload[protocol.AnswerResultPayload](t, env.broadcast.lastDirect(host.ID, protocol.EventAnswerResult))
	require.True(t, res.Correct)
	assert.Equal(t, 1000, res.ScoreDelta)
}

func TestTrackFetchRetriesWithoutGenre(t *testing.T) {
	env := newTestEnv()
	env.tracks.failWhen = func(f catalog.Filters) bool { return f.Genre != "" }
	settings := env.settings(ModeClassic, 1)
	settings.Genre = "rock"
	room, host, err := env.registry.CreateRoom("p1", "alice", "", settings)
	require.NoError(t, err)

	startPlaying(t, env, room, host.ID)

	env.tracks.mu.Lock()
	defer env.tracks.mu.Unlock()
	require.Len(t, env.tracks.filters, 2)
	assert.Equal(t, "rock", env.tracks.filters[0].Genre)
	assert.Empty(t, env.tracks.filters[1].Genre, "retry drops the genre filter")
}

func TestTrackFetchFailureEndsGame(t *testing.T) {
	env := newTestEnv()
	env.tracks.failWhen = func(catalog.Filters) bool { return true }
	room, host, err := env.registry.CreateRoom("p1", "alice", "", env.settings(ModeClassic, 1))
	require.NoError(t, err)

	require.NoError(t, room.StartGame(host.ID))
	env.clock.Advance(env.registry.deps.Config.Countdown)

	require.Eventually(t, func() bool {
		return room.Phase() == PhaseFinished
	}, time.Second, pollInterval)

	errs := env.broadcast.roomEvents(protocol.EventError)
	require.NotEmpty(t, errs)
	pe := decodePayload[protocol.ErrorPayload](t, errs[0])
	assert.Equal(t, "NO_TRACKS_AVAILABLE", pe.Code)

	po := decodePayload[protocol.GameOverPayload](t, env.broadcast.roomEvents(protocol.EventGameOver)[0])
	assert.True(t, po.Partial)
}

func TestReplayReturnsToLobby(t *testing.T) {
	env := newTestEnv()
	room, host, err := env.registry.CreateRoom("p1", "alice", "", env.settings(ModeClassic, 1))
	require.NoError(t, err)

	startPlaying(t, env, room, host.ID)
	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	env.clock.Advance(env.registry.deps.Config.RevealDelay)
	require.Eventually(t, func() bool { return room.Phase() == PhaseFinished }, time.Second, pollInterval)

	require.NoError(t, room.StartGame(host.ID))
	st := room.State()
	assert.Equal(t, string(PhaseWaiting), st.Phase)
	assert.Equal(t, 0, st.CurrentRound)
	assert.Zero(t, st.Players[0].Score, "scores reset for the replay")
}

func TestHalfTimeHintWithPowerUps(t *testing.T) {
	env := newTestEnv()
	settings := env.settings(ModeClassic, 1)
	settings.PowerUps = true
	room, host, err := env.registry.CreateRoom("p1", "alice", "", settings)
	require.NoError(t, err)

	startPlaying(t, env, room, host.ID)
	env.clock.Advance(15 * time.Second)

	require.Eventually(t, func() bool {
		return len(env.broadcast.roomEvents(protocol.EventHintReceived)) == 1
	}, time.Second, pollInterval)
	hint := decodePayload[protocol.HintReceivedPayload](t, env.broadcast.roomEvents(protocol.EventHintReceived)[0])
	assert.Equal(t, "B_______ R_______", hint.Hint)
	assert.Equal(t, "title", hint.HintType)
}
