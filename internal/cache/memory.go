package cache

import (
	"context"
	"sync"
	"time"

	"github.com/dom/medtrack/internal/domain"
	"github.com/google/uuid"
)

// Memory is a process-local ActorCache with the same tombstone rules as
// RedisActorCache. It is only correct when a single process serves every
// request, i.e. with the in-memory store.
type Memory struct {
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
	entries    map[uuid.UUID]memoryEntry
	tombstones map[uuid.UUID]time.Time
}

type memoryEntry struct {
	actor   domain.Actor
	expires time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:        ttl,
		now:        time.Now,
		entries:    make(map[uuid.UUID]memoryEntry),
		tombstones: make(map[uuid.UUID]time.Time),
	}
}

// WithClock replaces the time source used for expiry
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, id uuid.UUID) (*domain.Actor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.tombstoned(id, now) {
		return nil, false
	}
	e, ok := m.entries[id]
	if !ok {
		return nil, false
	}
	if m.ttl > 0 && !now.Before(e.expires) {
		delete(m.entries, id)
		return nil, false
	}
	actor := e.actor
	return &actor, true
}

func (m *Memory) Set(_ context.Context, actor *domain.Actor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.tombstoned(actor.ID, now) {
		return
	}
	m.entries[actor.ID] = memoryEntry{actor: *actor, expires: now.Add(m.ttl)}
}

func (m *Memory) Invalidate(_ context.Context, id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, id)
	m.tombstones[id] = m.now().Add(tombstoneTTL(m.ttl))
}

// tombstoned reports a live tombstone and drops an expired one. Caller
// holds mu.
func (m *Memory) tombstoned(id uuid.UUID, now time.Time) bool {
	until, ok := m.tombstones[id]
	if !ok {
		return false
	}
	if now.Before(until) {
		return true
	}
	delete(m.tombstones, id)
	return false
}
