package identity_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dom/medtrack/internal/cache"
	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/identity"
	"github.com/dom/medtrack/internal/repository"
	"github.com/dom/medtrack/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingCache records calls so tests can see cache traffic
type countingCache struct {
	actors      map[uuid.UUID]*domain.Actor
	hits        int
	invalidated []uuid.UUID
}

func newCountingCache() *countingCache {
	return &countingCache{actors: make(map[uuid.UUID]*domain.Actor)}
}

func (c *countingCache) Get(_ context.Context, id uuid.UUID) (*domain.Actor, bool) {
	a, ok := c.actors[id]
	if ok {
		c.hits++
	}
	return a, ok
}

func (c *countingCache) Set(_ context.Context, actor *domain.Actor) {
	c.actors[actor.ID] = actor
}

func (c *countingCache) Invalidate(_ context.Context, id uuid.UUID) {
	delete(c.actors, id)
	c.invalidated = append(c.invalidated, id)
}

// failingUsers fails every lookup
type failingUsers struct {
	repository.UserRepository
}

func (failingUsers) GetByID(context.Context, uuid.UUID) (*domain.User, error) {
	return nil, errors.New("connection refused")
}

// interleavedUsers runs afterRead once, between a successful lookup and
// the resolver's cache write, like an admin change landing mid-request
type interleavedUsers struct {
	repository.UserRepository
	afterRead func()
}

func (u *interleavedUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	user, err := u.UserRepository.GetByID(ctx, id)
	if u.afterRead != nil {
		hook := u.afterRead
		u.afterRead = nil
		hook()
	}
	return user, err
}

func TestResolveActor_NoSession(t *testing.T) {
	repos := memory.NewRepositories(memory.NewStore())
	resolver := identity.NewResolver(repos.User, nil)

	actor, err := resolver.ResolveActor(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, actor)
}

func TestResolveActor_ReadsRoleFromStore(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories(memory.NewStore())
	user := &domain.User{ID: uuid.New(), Email: "a@example.com", PasswordHash: "x", Role: domain.RoleAdmin}
	require.NoError(t, repos.User.Create(ctx, user))

	actorCache := newCountingCache()
	resolver := identity.NewResolver(repos.User, actorCache)
	sessionCtx := identity.WithSession(ctx, identity.Session{UserID: user.ID, Email: user.Email})

	actor, err := resolver.ResolveActor(sessionCtx)
	require.NoError(t, err)
	require.NotNil(t, actor)
	assert.Equal(t, user.ID, actor.ID)
	assert.Equal(t, domain.RoleAdmin, actor.Role)

	// Second call is served from the cache
	_, err = resolver.ResolveActor(sessionCtx)
	require.NoError(t, err)
	assert.Equal(t, 1, actorCache.hits)
}

func TestResolveActor_DeletedUser(t *testing.T) {
	repos := memory.NewRepositories(memory.NewStore())
	resolver := identity.NewResolver(repos.User, nil)
	ctx := identity.WithSession(context.Background(), identity.Session{UserID: uuid.New()})

	actor, err := resolver.ResolveActor(ctx)
	assert.NoError(t, err)
	assert.Nil(t, actor)
}

func TestResolveActor_StoreFailure(t *testing.T) {
	resolver := identity.NewResolver(failingUsers{}, nil)
	ctx := identity.WithSession(context.Background(), identity.Session{UserID: uuid.New()})

	actor, err := resolver.ResolveActor(ctx)
	assert.ErrorIs(t, err, domain.ErrStoreFailure)
	assert.Nil(t, actor)
}

func TestActorContext(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, identity.ActorFromContext(ctx))

	actor := &domain.Actor{ID: uuid.New(), Role: domain.RoleUser}
	assert.Equal(t, actor, identity.ActorFromContext(identity.WithActor(ctx, actor)))

	_, ok := identity.SessionFromContext(ctx)
	assert.False(t, ok)
}

func TestResolveActor_DeleteDuringLookupIsNotCached(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories(memory.NewStore())
	user := &domain.User{ID: uuid.New(), Email: "a@example.com", PasswordHash: "x", Role: domain.RoleAdmin}
	require.NoError(t, repos.User.Create(ctx, user))

	actorCache := cache.NewMemory(time.Minute)
	users := &interleavedUsers{UserRepository: repos.User}
	users.afterRead = func() {
		require.NoError(t, repos.User.Delete(ctx, user.ID))
		actorCache.Invalidate(ctx, user.ID)
	}
	resolver := identity.NewResolver(users, actorCache)
	sessionCtx := identity.WithSession(ctx, identity.Session{UserID: user.ID, Email: user.Email})

	// The in-flight request still sees the row it read
	actor, err := resolver.ResolveActor(sessionCtx)
	require.NoError(t, err)
	require.NotNil(t, actor)

	_, cached := actorCache.Get(ctx, user.ID)
	assert.False(t, cached)

	actor, err = resolver.ResolveActor(sessionCtx)
	assert.NoError(t, err)
	assert.Nil(t, actor)
}

func TestResolveActor_DemotionDuringLookupIsNotCached(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories(memory.NewStore())
	user := &domain.User{ID: uuid.New(), Email: "a@example.com", PasswordHash: "x", Role: domain.RoleAdmin}
	require.NoError(t, repos.User.Create(ctx, user))

	actorCache := cache.NewMemory(time.Minute)
	users := &interleavedUsers{UserRepository: repos.User}
	users.afterRead = func() {
		require.NoError(t, repos.User.UpdateRole(ctx, user.ID, domain.RoleUser))
		actorCache.Invalidate(ctx, user.ID)
	}
	resolver := identity.NewResolver(users, actorCache)
	sessionCtx := identity.WithSession(ctx, identity.Session{UserID: user.ID, Email: user.Email})

	actor, err := resolver.ResolveActor(sessionCtx)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, actor.Role)

	actor, err = resolver.ResolveActor(sessionCtx)
	require.NoError(t, err)
	require.NotNil(t, actor)
	assert.Equal(t, domain.RoleUser, actor.Role)
}
