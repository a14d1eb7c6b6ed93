// Package game is the session/round orchestration engine: room lifecycle,
// round scheduling, answer validation per game mode, pause coordination and
// the timestamps clients synchronize against.
package game

import (
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"

	"blindtest/internal/protocol"
)

const (
	codePrefix   = "BT-"
	codeLength   = 4
	codeAlphabet = "ABCDEFGHJKMNPQRSTUVWXYZ23456789" // no ambiguous glyphs
)

// Registry maps room codes to live rooms. It is the only cross-room shared
// structure; its lock is held only for map operations, never across room
// work.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[string]*Room
	teardowns map[string]*namedTimer
	deps      Deps
}

func NewRegistry(deps Deps) *Registry {
	deps.Config = deps.Config.withDefaults()
	return &Registry{
		rooms:     make(map[string]*Room),
		teardowns: make(map[string]*namedTimer),
		deps:      deps,
	}
}

// CreateRoom builds a room in WAITING with the creator as sole player and
// host.
func (g *Registry) CreateRoom(playerID, pseudo, avatarURL string, s *protocol.Settings) (*Room, *Player, error) {
	settings := normalizeSettings(s)

	g.mu.Lock()
	code := g.generateCodeLocked()
	room := newRoom(code, g.deps, settings, g.onRoomEmpty)
	g.rooms[code] = room
	g.mu.Unlock()

	p, err := room.Join(playerID, pseudo, avatarURL)
	if err != nil {
		g.mu.Lock()
		delete(g.rooms, code)
		g.mu.Unlock()
		return nil, nil, err
	}
	log.Info().Str("room_code", code).Str("pseudo", pseudo).Msg("room created")
	return room, p, nil
}

// JoinRoom appends a player, or reattaches a held seat on reconnect.
func (g *Registry) JoinRoom(code, playerID, pseudo, avatarURL string) (*Room, *Player, error) {
	room, ok := g.Get(code)
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	p, err := room.Join(playerID, pseudo, avatarURL)
	if err != nil {
		return nil, nil, err
	}
	g.cancelTeardown(code)
	return room, p, nil
}

func (g *Registry) Get(code string) (*Room, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	room, ok := g.rooms[code]
	return room, ok
}

// RoomCount reports live rooms, for the health endpoint.
func (g *Registry) RoomCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rooms)
}

// onRoomEmpty schedules teardown after a grace period, so a reconnecting
// party does not lose the room the instant the last socket drops.
func (g *Registry) onRoomEmpty(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.teardowns[code]; ok {
		return
	}
	nt := &namedTimer{
		timer:  g.deps.Clock.NewTimer(g.deps.Config.EmptyRoomGrace),
		cancel: make(chan struct{}),
	}
	g.teardowns[code] = nt
	log.Info().Str("room_code", code).Dur("grace", g.deps.Config.EmptyRoomGrace).Msg("room empty, teardown scheduled")

	go func() {
		select {
		case <-nt.timer.Chan():
			g.teardown(code, nt)
		case <-nt.cancel:
			stopAndDrainTimer(nt.timer)
		}
	}()
}

func (g *Registry) teardown(code string, nt *namedTimer) {
	g.mu.Lock()
	if g.teardowns[code] != nt {
		g.mu.Unlock()
		return
	}
	delete(g.teardowns, code)
	room, ok := g.rooms[code]
	g.mu.Unlock()

	if !ok {
		return
	}
	// Checked outside the registry lock; rooms never call back into the
	// registry while holding their own lock.
	if !room.Empty() {
		// Someone came back between the timer firing and now.
		return
	}

	g.mu.Lock()
	delete(g.rooms, code)
	g.mu.Unlock()

	room.Close()
	log.Info().Str("room_code", code).Msg("room torn down")
}

func (g *Registry) cancelTeardown(code string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if nt, ok := g.teardowns[code]; ok {
		close(nt.cancel)
		delete(g.teardowns, code)
	}
}

func (g *Registry) generateCodeLocked() string {
	for {
		b := make([]byte, codeLength)
		for i := range b {
			b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
		}
		code := codePrefix + string(b)
		if _, taken := g.rooms[code]; !taken {
			return code
		}
	}
}
