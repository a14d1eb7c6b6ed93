package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blindtest/internal/protocol"
)

func eliminationRoom(t *testing.T, lives int) (*testEnv, *Room, *Player, *Player) {
	t.Helper()
	env := newTestEnv()
	settings := env.settings(ModeElimination, 10)
	settings.Lives = lives
	room, host, err := env.registry.CreateRoom("p1", "alice", "", settings)
	require.NoError(t, err)
	_, bob, err := env.registry.JoinRoom(room.Code, "p2", "bob", "")
	require.NoError(t, err)
	startPlaying(t, env, room, host.ID)
	return env, room, host, bob
}

func TestEliminationLosesLifeOnMissedRound(t *testing.T) {
	env, room, host, _ := eliminationRoom(t, 3)

	// Host answers, bob does not; the round runs out.
	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	env.clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return room.Phase() == PhaseReveal }, time.Second, pollInterval)

	st := room.State()
	byPseudo := map[string]protocol.PlayerState{}
	for _, p := range st.Players {
		byPseudo[p.Pseudo] = p
	}
	assert.Equal(t, 3, byPseudo["alice"].Lives)
	assert.Equal(t, 2, byPseudo["bob"].Lives)
	assert.False(t, byPseudo["bob"].IsEliminated)
}

func TestEliminationAtZeroLivesEndsGame(t *testing.T) {
	env, room, host, bob := eliminationRoom(t, 1)

	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	env.clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return room.Phase() == PhaseReveal }, time.Second, pollInterval)

	elims := env.broadcast.roomEvents(protocol.EventPlayerEliminated)
	require.Len(t, elims, 1)
	pe := decodePayload[protocol.PlayerEliminatedPayload](t, elims[0])
	assert.Equal(t, bob.ID, pe.PlayerID)

	// One player left: the game ends after the reveal.
	env.clock.Advance(env.registry.deps.Config.RevealDelay)
	require.Eventually(t, func() bool { return room.Phase() == PhaseFinished }, time.Second, pollInterval)

	po := decodePayload[protocol.GameOverPayload](t, env.broadcast.roomEvents(protocol.EventGameOver)[0])
	assert.Equal(t, host.ID, po.Standings[0].PlayerID, "the surviving player wins on score")
}

func TestEliminatedPlayerCannotAnswer(t *testing.T) {
	env := newTestEnv()
	settings := env.settings(ModeElimination, 10)
	settings.Lives = 1
	room, host, err := env.registry.CreateRoom("p1", "alice", "", settings)
	require.NoError(t, err)
	_, bob, err := env.registry.JoinRoom(room.Code, "p2", "bob", "")
	require.NoError(t, err)
	_, carol, err := env.registry.JoinRoom(room.Code, "p3", "carol", "")
	require.NoError(t, err)
	startPlaying(t, env, room, host.ID)

	// Bob misses the round and is eliminated; two players remain, so the
	// game continues.
	room.SubmitAnswer(host.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	room.SubmitAnswer(carol.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	env.clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return room.Phase() == PhaseReveal }, time.Second, pollInterval)
	require.Len(t, env.broadcast.roomEvents(protocol.EventPlayerEliminated), 1)

	env.clock.Advance(env.registry.deps.Config.RevealDelay)
	require.Eventually(t, func() bool { return room.Phase() == PhaseCountdown }, time.Second, pollInterval)
	env.clock.Advance(env.registry.deps.Config.Countdown)
	require.Eventually(t, func() bool { return room.Phase() == PhasePlaying }, time.Second, pollInterval)

	// The eliminated seat observes but is never graded.
	before := env.broadcast.directCount(bob.ID)
	room.SubmitAnswer(bob.ID, "queen bohemian rhapsody", env.clock.Now().UnixMilli())
	assert.Equal(t, before, env.broadcast.directCount(bob.ID))
	room.mu.Lock()
	score := room.playerLocked(bob.ID).Score
	room.mu.Unlock()
	assert.Zero(t, score)
}
