package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"blindtest/internal/catalog"
	"blindtest/internal/protocol"
)

// Room phases.
type Phase string

const (
	PhaseWaiting   Phase = "WAITING"
	PhaseCountdown Phase = "COUNTDOWN"
	PhasePlaying   Phase = "PLAYING"
	PhaseReveal    Phase = "REVEAL"
	PhaseFinished  Phase = "FINISHED"
)

// Named timers owned by a room. Pausable timers are frozen with their
// remaining duration when a pause quorum is reached.
const (
	timerCountdown    = "countdown"
	timerRoundEnd     = "round_end"
	timerReveal       = "reveal"
	timerHint         = "hint"
	timerIntroTier    = "intro_tier"
	timerBuzzerWindow = "buzzer_window"
	timerLyricsReveal = "lyrics_reveal"
)

type namedTimer struct {
	timer    timerHandle
	cancel   chan struct{}
	deadline time.Time
	fn       func()
	pausable bool
}

// timerHandle is the subset of clockwork.Timer the room uses.
type timerHandle interface {
	Chan() <-chan time.Time
	Stop() bool
}

type frozenTimer struct {
	remaining time.Duration
	fn        func()
}

// Room is one game session. All state is serialized behind mu: every
// client-originated operation and every timer callback takes the lock, so
// scores, the roster, pause votes and the active round are never mutated
// concurrently.
type Room struct {
	Code string

	mu   sync.Mutex
	deps Deps

	phase    Phase
	players  []*Player
	hostID   string
	settings protocol.Settings
	strategy Strategy

	roundNum int
	round    *Round
	partial  bool

	chat []protocol.NewMessagePayload

	paused       bool
	pausedAt     time.Time
	pendingPause bool
	frozen       map[string]frozenTimer

	// Track prefetch for the next round.
	nextTrack     *catalog.Track
	fetchFailed   bool
	awaitingTrack bool
	usedTracks    []string

	timers map[string]*namedTimer
	closed bool

	// onEmpty tells the registry the last player left.
	onEmpty func(code string)

	logger zerolog.Logger
}

func newRoom(code string, deps Deps, settings protocol.Settings, onEmpty func(string)) *Room {
	r := &Room{
		Code:     code,
		deps:     deps,
		phase:    PhaseWaiting,
		settings: settings,
		strategy: strategyFor(settings.GameMode),
		timers:   make(map[string]*namedTimer),
		frozen:   make(map[string]frozenTimer),
		onEmpty:  onEmpty,
		logger:   log.With().Str("room_code", code).Logger(),
	}
	return r
}

// Join adds a player, or reattaches a disconnected seat with the same
// pseudo once the game has started (reconnection-only late join).
func (r *Room) Join(playerID, pseudo, avatarURL string) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrRoomNotFound
	}

	// Reconnection path: any phase, seat held during the grace period.
	for _, p := range r.players {
		if p.Pseudo == pseudo && !p.Connected {
			p.Connected = true
			r.cancelTimerLocked("disconnect:" + p.ID)
			r.logger.Info().Str("player_id", p.ID).Str("pseudo", pseudo).Msg("player reconnected")
			r.broadcastStateLocked()
			return p, nil
		}
	}

	if r.phase != PhaseWaiting {
		return nil, ErrGameAlreadyStarted
	}
	if len(r.players) >= r.deps.Config.MaxPlayers {
		return nil, ErrRoomFull
	}
	for _, p := range r.players {
		if p.Pseudo == pseudo {
			return nil, ErrPseudoTaken
		}
	}

	p := &Player{
		ID:        playerID,
		Pseudo:    pseudo,
		AvatarURL: avatarURL,
		Connected: true,
		Lives:     r.settings.Lives,
		JoinedAt:  r.deps.Clock.Now(),
	}
	r.players = append(r.players, p)
	if r.hostID == "" {
		r.hostID = p.ID
	}
	r.logger.Info().Str("player_id", p.ID).Str("pseudo", pseudo).Int("players", len(r.players)).Msg("player joined")
	r.broadcastStateLocked()
	return p, nil
}

// Leave removes a player. Repeated leaves for an absent player are a no-op.
func (r *Room) Leave(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removePlayerLocked(playerID, "")
}

// Kick removes a target player, host-only. Any pending round attempt by the
// target is discarded.
func (r *Room) Kick(actorID, targetID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actorID != r.hostID {
		return ErrNotHost
	}
	if r.playerLocked(targetID) == nil {
		return nil // already absent, idempotent
	}
	r.broadcastLocked(protocol.NewEvent(protocol.EventPlayerKicked, protocol.PlayerKickedPayload{PlayerID: targetID}))
	r.removePlayerLocked(targetID, actorID)
	return nil
}

func (r *Room) removePlayerLocked(playerID, kickedBy string) {
	idx := -1
	for i, p := range r.players {
		if p.ID == playerID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	p := r.players[idx]
	r.players = append(r.players[:idx], r.players[idx+1:]...)
	r.cancelTimerLocked("disconnect:" + playerID)

	if r.round != nil && !r.round.Closed {
		delete(r.round.Attempts, playerID)
		delete(r.round.Deltas, playerID)
		// A held buzzer lock is the player's pending attempt; discard it so
		// the survivors are not stuck behind a departed holder.
		if bs, ok := r.strategy.(*buzzerStrategy); ok {
			bs.releaseIfHolder(r, r.round, playerID)
		}
	}

	ev := r.logger.Info().Str("player_id", playerID).Str("pseudo", p.Pseudo)
	if kickedBy != "" {
		ev = ev.Str("kicked_by", kickedBy)
	}
	ev.Int("players", len(r.players)).Msg("player removed")

	if r.hostID == playerID && len(r.players) > 0 {
		r.hostID = r.players[0].ID // next-joined becomes host
		r.logger.Info().Str("player_id", r.hostID).Msg("host promoted")
	}

	if len(r.players) == 0 {
		r.hostID = ""
		if r.onEmpty != nil {
			// Off the room lock: the registry takes its own lock, and its
			// teardown path re-checks emptiness before acting.
			go r.onEmpty(r.Code)
		}
		return
	}

	switch r.phase {
	case PhasePlaying:
		// The departed player no longer gates round completion.
		if r.round != nil && !r.round.Closed && r.strategy.RoundComplete(r, r.round) {
			r.closeRoundLocked()
			return
		}
	case PhaseCountdown, PhaseReveal:
		if len(r.activePlayersLocked()) == 0 {
			r.finishGameLocked(true)
			return
		}
	}
	r.broadcastStateLocked()
}

// Disconnected marks a player's socket as gone and starts the reconnect
// grace timer; expiry follows the same path as an explicit leave.
func (r *Room) Disconnected(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerLocked(playerID)
	if p == nil || !p.Connected {
		return
	}
	p.Connected = false
	r.logger.Info().Str("player_id", playerID).Dur("grace", r.deps.Config.DisconnectGrace).Msg("player disconnected")
	r.scheduleLocked("disconnect:"+playerID, r.deps.Config.DisconnectGrace, false, func() {
		r.removePlayerLocked(playerID, "")
	})
	r.broadcastStateLocked()
}

func (r *Room) ToggleReady(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerLocked(playerID)
	if p == nil || r.phase != PhaseWaiting {
		return
	}
	p.Ready = !p.Ready
	r.broadcastStateLocked()
}

// UpdateSettings replaces the room settings, host-only, lobby-only.
func (r *Room) UpdateSettings(actorID string, s protocol.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actorID != r.hostID {
		return ErrNotHost
	}
	if r.phase != PhaseWaiting {
		return ErrGameAlreadyStarted
	}
	r.settings = normalizeSettings(&s)
	r.strategy = strategyFor(r.settings.GameMode)
	for _, p := range r.players {
		p.Lives = r.settings.Lives
	}
	r.broadcastStateLocked()
	return nil
}

// StartGame begins the first countdown. Called on a FINISHED room it
// resets to the lobby instead (replay flow), roster preserved.
func (r *Room) StartGame(actorID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if actorID != r.hostID {
		return ErrNotHost
	}
	if r.phase == PhaseFinished {
		r.returnToLobbyLocked()
		return nil
	}
	if r.phase != PhaseWaiting {
		return ErrGameAlreadyStarted
	}
	if len(r.players) < r.strategy.MinPlayers() {
		return fmt.Errorf("%w: %s needs at least %d", ErrNotEnoughPlayers, r.strategy.Name(), r.strategy.MinPlayers())
	}

	r.roundNum = 0
	r.partial = false
	r.usedTracks = nil
	for _, p := range r.players {
		p.resetGame(r.settings)
	}
	if r.settings.TeamMode {
		r.assignTeamsLocked()
	}
	r.logger.Info().Str("game_mode", r.settings.GameMode).Int("rounds", r.settings.Rounds).Int("players", len(r.players)).Msg("game started")
	r.beginCountdownLocked()
	return nil
}

func (r *Room) returnToLobbyLocked() {
	r.phase = PhaseWaiting
	r.round = nil
	r.roundNum = 0
	r.partial = false
	r.clearPauseLocked()
	for _, p := range r.players {
		p.resetGame(r.settings)
	}
	r.logger.Info().Msg("returned to lobby")
	r.broadcastStateLocked()
}

// assignTeamsLocked deals players round-robin into two teams.
func (r *Room) assignTeamsLocked() {
	for i, p := range r.players {
		if i%2 == 0 {
			p.TeamID = "A"
		} else {
			p.TeamID = "B"
		}
	}
}

// TogglePause flips a player's pause vote. Reaching quorum freezes the
// round clock; a second quorum resumes it with remaining time preserved.
func (r *Room) TogglePause(playerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerLocked(playerID)
	if p == nil {
		return
	}
	switch r.phase {
	case PhaseCountdown, PhasePlaying, PhaseReveal:
	default:
		return
	}

	p.VotedPause = !p.VotedPause
	votes := 0
	for _, q := range r.players {
		if q.VotedPause {
			votes++
		}
	}
	quorum := r.pauseQuorumLocked()
	r.logger.Debug().Str("player_id", playerID).Int("votes", votes).Int("quorum", quorum).Bool("paused", r.paused).Msg("pause vote")

	if votes >= quorum {
		if r.paused {
			r.resumeLocked()
		} else if r.phase == PhaseCountdown {
			// The 3-second lead-in is never cancellable; take effect when
			// the round opens.
			r.pendingPause = true
			r.clearVotesLocked()
		} else {
			r.pauseLocked()
		}
	}
	r.broadcastStateLocked()
}

func (r *Room) pauseQuorumLocked() int {
	return len(r.players)/2 + 1
}

func (r *Room) clearVotesLocked() {
	for _, p := range r.players {
		p.VotedPause = false
	}
}

func (r *Room) clearPauseLocked() {
	r.paused = false
	r.pendingPause = false
	r.frozen = make(map[string]frozenTimer)
	r.clearVotesLocked()
}

func (r *Room) pauseLocked() {
	r.paused = true
	r.pausedAt = r.deps.Clock.Now()
	r.clearVotesLocked()
	for name, nt := range r.timers {
		if !nt.pausable {
			continue
		}
		r.frozen[name] = frozenTimer{remaining: nt.deadline.Sub(r.pausedAt), fn: nt.fn}
		r.cancelTimerLocked(name)
	}
	r.logger.Info().Msg("room paused")
}

func (r *Room) resumeLocked() {
	now := r.deps.Clock.Now()
	shift := now.Sub(r.pausedAt)
	if r.round != nil && !r.round.Closed {
		r.round.StartAt = r.round.StartAt.Add(shift)
		r.round.EndAt = r.round.EndAt.Add(shift)
	}
	for name, ft := range r.frozen {
		r.scheduleLocked(name, ft.remaining, true, ft.fn)
	}
	r.frozen = make(map[string]frozenTimer)
	r.paused = false
	r.clearVotesLocked()
	r.logger.Info().Dur("paused_for", shift).Msg("room resumed")
	if r.round != nil && !r.round.Closed {
		r.broadcastLocked(protocol.NewEvent(protocol.EventRoundStart, protocol.RoundStartPayload{RoundData: r.roundDataLocked()}))
	}
}

// SendMessage relays chat to the whole room and appends to the bounded log.
func (r *Room) SendMessage(playerID, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerLocked(playerID)
	if p == nil || message == "" {
		return
	}
	msg := protocol.NewMessagePayload{
		PlayerID:  p.ID,
		Pseudo:    p.Pseudo,
		Message:   message,
		Timestamp: r.nowMsLocked(),
	}
	r.chat = append(r.chat, msg)
	if len(r.chat) > r.deps.Config.ChatLogLimit {
		r.chat = r.chat[len(r.chat)-r.deps.Config.ChatLogLimit:]
	}
	r.broadcastLocked(protocol.NewEvent(protocol.EventNewMessage, msg))
}

// SendEmote is pure fan-out, no state kept.
func (r *Room) SendEmote(playerID, emote string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.playerLocked(playerID)
	if p == nil || emote == "" {
		return
	}
	r.broadcastLocked(protocol.NewEvent(protocol.EventEmoteReceived, protocol.EmoteReceivedPayload{
		PlayerID: p.ID,
		Pseudo:   p.Pseudo,
		Emote:    emote,
	}))
}

// State snapshots the room for clients.
func (r *Room) State() protocol.RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stateLocked()
}

func (r *Room) stateLocked() protocol.RoomState {
	players := make([]protocol.PlayerState, 0, len(r.players))
	votes := 0
	for _, p := range r.players {
		players = append(players, p.state(r.hostID))
		if p.VotedPause {
			votes++
		}
	}
	st := protocol.RoomState{
		Code:         r.Code,
		Phase:        string(r.phase),
		HostID:       r.hostID,
		Players:      players,
		Settings:     r.settings,
		CurrentRound: r.roundNum,
		Paused:       r.paused,
		PauseVotes:   votes,
		PauseQuorum:  r.pauseQuorumLocked(),
	}
	if r.settings.TeamMode {
		st.Teams = r.teamsLocked()
	}
	if r.round != nil && !r.round.Closed {
		rd := r.roundDataLocked()
		st.Round = &rd
	}
	return st
}

func (r *Room) teamsLocked() []protocol.TeamState {
	byID := map[string]*protocol.TeamState{}
	order := []string{}
	for _, p := range r.players {
		if p.TeamID == "" {
			continue
		}
		t, ok := byID[p.TeamID]
		if !ok {
			t = &protocol.TeamState{ID: p.TeamID, Name: "Team " + p.TeamID}
			byID[p.TeamID] = t
			order = append(order, p.TeamID)
		}
		t.Score += p.Score
		t.Players++
	}
	out := make([]protocol.TeamState, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	return out
}

func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players) == 0
}

func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Close tears the room down and cancels every pending callback so no stale
// timer can mutate it afterwards.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.cancelAllTimersLocked()
	r.logger.Info().Msg("room closed")
}

// --- internals ---

func (r *Room) playerLocked(id string) *Player {
	for _, p := range r.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// activePlayersLocked is the set eligible for grading: connected and not
// eliminated.
func (r *Room) activePlayersLocked() []*Player {
	var out []*Player
	for _, p := range r.players {
		if p.Connected && !p.Eliminated {
			out = append(out, p)
		}
	}
	return out
}

func (r *Room) nowMsLocked() int64 {
	return r.deps.Clock.Now().UnixMilli()
}

func (r *Room) broadcastLocked(evt *protocol.Event) {
	r.deps.Broadcast.BroadcastToRoom(r.Code, evt)
}

func (r *Room) sendToLocked(playerID string, evt *protocol.Event) {
	r.deps.Broadcast.SendToPlayer(r.Code, playerID, evt)
}

func (r *Room) sendErrorLocked(playerID string, err error) {
	r.sendToLocked(playerID, protocol.NewEvent(protocol.EventError, protocol.ErrorPayload{
		Code:    ErrorCode(err),
		Message: err.Error(),
	}))
}

func (r *Room) broadcastStateLocked() {
	r.broadcastLocked(protocol.NewEvent(protocol.EventRoomUpdated, protocol.RoomStatePayload{RoomState: r.stateLocked()}))
}

// scheduleLocked arms a named one-shot timer, replacing any previous timer
// with the same name. The callback runs with the room lock held, and only
// if the timer is still the registered one and the room is still open.
func (r *Room) scheduleLocked(name string, d time.Duration, pausable bool, fn func()) {
	r.cancelTimerLocked(name)
	if d < 0 {
		d = 0
	}
	nt := &namedTimer{
		timer:    r.deps.Clock.NewTimer(d),
		cancel:   make(chan struct{}),
		deadline: r.deps.Clock.Now().Add(d),
		fn:       fn,
		pausable: pausable,
	}
	r.timers[name] = nt

	go func() {
		select {
		case <-nt.timer.Chan():
			r.mu.Lock()
			if r.timers[name] == nt && !r.closed {
				delete(r.timers, name)
				fn()
			}
			r.mu.Unlock()
		case <-nt.cancel:
			stopAndDrainTimer(nt.timer)
		}
	}()
}

func (r *Room) cancelTimerLocked(name string) {
	if nt, ok := r.timers[name]; ok {
		close(nt.cancel)
		delete(r.timers, name)
	}
}

func (r *Room) cancelAllTimersLocked() {
	for name := range r.timers {
		r.cancelTimerLocked(name)
	}
}

// stopAndDrainTimer safely stops a timer and drains its channel, following
// the pattern from the time.Timer.Stop documentation.
func stopAndDrainTimer(t timerHandle) {
	if !t.Stop() {
		select {
		case <-t.Chan():
		default:
		}
	}
}
