package game

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"blindtest/internal/catalog"
	"blindtest/internal/protocol"
)

// stubBroadcaster records every emitted event so tests can assert on the
// outbound wire traffic.
type stubBroadcaster struct {
	mu     sync.Mutex
	room   []*protocol.Event
	direct map[string][]*protocol.Event
}

func newStubBroadcaster() *stubBroadcaster {
	return &stubBroadcaster{direct: make(map[string][]*protocol.Event)}
}

func (b *stubBroadcaster) BroadcastToRoom(code string, evt *protocol.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.room = append(b.room, evt)
}

func (b *stubBroadcaster) SendToPlayer(code, playerID string, evt *protocol.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.direct[playerID] = append(b.direct[playerID], evt)
}

func (b *stubBroadcaster) roomEvents(t protocol.EventType) []*protocol.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []*protocol.Event
	for _, e := range b.room {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (b *stubBroadcaster) directCount(playerID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.direct[playerID])
}

func (b *stubBroadcaster) lastDirect(playerID string, t protocol.EventType) *protocol.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.direct[playerID]) - 1; i >= 0; i-- {
		if b.direct[playerID][i].Type == t {
			return b.direct[playerID][i]
		}
	}
	return nil
}

// stubTracks serves tracks from a fixed queue, repeating the last one, or
// fails according to failWhen.
type stubTracks struct {
	mu       sync.Mutex
	queue    []catalog.Track
	served   int
	filters  []catalog.Filters
	failWhen func(f catalog.Filters) bool
}

func (s *stubTracks) FetchTrack(ctx context.Context, f catalog.Filters) (catalog.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, f)
	if s.failWhen != nil && s.failWhen(f) {
		return catalog.Track{}, errors.New("catalog unavailable")
	}
	if len(s.queue) == 0 {
		return catalog.Track{}, errors.New("no tracks queued")
	}
	i := s.served
	if i >= len(s.queue) {
		i = len(s.queue) - 1
	}
	s.served++
	return s.queue[i], nil
}

type stubSink struct {
	mu        sync.Mutex
	published []protocol.GameOverEnvelope
}

func (s *stubSink) PublishGameOver(ctx context.Context, env protocol.GameOverEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, env)
	return nil
}

func (s *stubSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.published)
}

type testEnv struct {
	clock     *clockwork.FakeClock
	broadcast *stubBroadcaster
	tracks    *stubTracks
	sink      *stubSink
	registry  *Registry
}

func testTrack() catalog.Track {
	return catalog.Track{
		ID:         "trk-1",
		Title:      "Bohemian Rhapsody",
		Artist:     "Queen",
		PreviewURL: "https://cdn.example.com/preview/trk-1.mp3",
		Year:       1975,
	}
}

func newTestEnv(tracks ...catalog.Track) *testEnv {
	if len(tracks) == 0 {
		tracks = []catalog.Track{testTrack()}
	}
	env := &testEnv{
		clock:     clockwork.NewFakeClock(),
		broadcast: newStubBroadcaster(),
		tracks:    &stubTracks{queue: tracks},
		sink:      &stubSink{},
	}
	env.registry = NewRegistry(Deps{
		Broadcast: env.broadcast,
		Tracks:    env.tracks,
		Results:   env.sink,
		Clock:     env.clock,
		Config:    DefaultConfig(),
	})
	return env
}

func (e *testEnv) settings(mode string, rounds int) *protocol.Settings {
	return &protocol.Settings{
		Rounds:          rounds,
		RoundDurationMs: 30_000,
		GameMode:        mode,
	}
}

const pollInterval = 2 * time.Millisecond
