package presence

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yeshengliu/social-media/internal/event"
)

type fakeSession struct {
	id string

	mu     sync.Mutex
	sent   []event.WsEvent
	closed int
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id}
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Send(ev event.WsEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, ev)
	return true
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestRegistry_Join_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(zap.NewNop())
	s := newFakeSession("conn-1")

	// Given no one is connected
	_, ok := registry.Lookup("alice")
	req.False(ok)

	// When alice joins
	registry.Join("alice", s)

	// Then she is reachable under her session
	got, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(s, got)
}

func TestRegistry_Join_SameSessionIsNoOp(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(zap.NewNop())
	s := newFakeSession("conn-1")

	// Given alice is connected
	registry.Join("alice", s)

	// When the same connection joins again
	registry.Join("alice", s)

	// Then nothing changed and the session was not closed
	got, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(s, got)
	req.Zero(s.closeCount())
}

func TestRegistry_Join_ReplacesStaleSession(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(zap.NewNop())
	stale := newFakeSession("conn-1")
	fresh := newFakeSession("conn-2")

	// Given alice is connected on a stale session
	registry.Join("alice", stale)

	// When she reconnects on a new one
	registry.Join("alice", fresh)

	// Then the new session wins, the stale one is closed exactly once and
	// was never sent anything
	got, ok := registry.Lookup("alice")
	req.True(ok)
	req.Equal(fresh, got)
	req.Equal(1, stale.closeCount())
	req.Zero(stale.sentCount())

	// And a late disconnect of the stale session does not evict the new one
	registry.Leave(stale)
	got, ok = registry.Lookup("alice")
	req.True(ok)
	req.Equal(fresh, got)
}

func TestRegistry_Leave_IsIdempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(zap.NewNop())
	s := newFakeSession("conn-1")

	// Given alice is connected
	registry.Join("alice", s)

	// When she leaves twice
	registry.Leave(s)
	registry.Leave(s)

	// Then the registry is unchanged after the first call
	_, ok := registry.Lookup("alice")
	req.False(ok)
}

func TestRegistry_ConcurrentJoins_SingleEntryPerUser(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(zap.NewNop())
	s1 := newFakeSession("conn-1")
	s2 := newFakeSession("conn-2")

	// When two connections claim the same user concurrently
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		registry.Join("alice", s1)
	}()
	go func() {
		defer wg.Done()
		registry.Join("alice", s2)
	}()
	wg.Wait()

	// Then exactly one entry remains and the other connection was evicted
	got, ok := registry.Lookup("alice")
	req.True(ok)
	req.Contains([]Session{s1, s2}, got)
	req.Equal(1, s1.closeCount()+s2.closeCount())
}

func TestRegistry_Snapshot_ExcludesSelf(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry(zap.NewNop())

	// Given three connected users
	registry.Join("alice", newFakeSession("conn-1"))
	registry.Join("bob", newFakeSession("conn-2"))
	registry.Join("carol", newFakeSession("conn-3"))

	// When alice asks who is around
	users := registry.Snapshot("alice")

	// Then she sees everyone but herself
	req.Len(users, 2)
	req.Equal("bob", users[0].UserID)
	req.Equal("carol", users[1].UserID)
}
