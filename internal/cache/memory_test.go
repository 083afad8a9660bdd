package cache_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dom/medtrack/internal/cache"
	"github.com/dom/medtrack/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_SetGetExpire(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)
	c := cache.NewMemory(time.Minute).WithClock(func() time.Time { return now })
	actor := &domain.Actor{ID: uuid.New(), Email: "a@example.com", Role: domain.RoleAdmin}

	_, ok := c.Get(ctx, actor.ID)
	assert.False(t, ok)

	c.Set(ctx, actor)
	got, ok := c.Get(ctx, actor.ID)
	require.True(t, ok)
	assert.Equal(t, actor, got)

	// Callers cannot mutate the cached value
	got.Role = domain.RoleUser
	again, ok := c.Get(ctx, actor.ID)
	require.True(t, ok)
	assert.Equal(t, domain.RoleAdmin, again.Role)

	now = now.Add(time.Minute)
	_, ok = c.Get(ctx, actor.ID)
	assert.False(t, ok)
}

func TestMemory_InvalidateBlocksLateSet(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, time.March, 14, 12, 0, 0, 0, time.UTC)
	c := cache.NewMemory(time.Minute).WithClock(func() time.Time { return now })
	stale := &domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}

	c.Set(ctx, stale)
	c.Invalidate(ctx, stale.ID)
	_, ok := c.Get(ctx, stale.ID)
	assert.False(t, ok)

	// A resolver that read the user before the invalidation writes late
	c.Set(ctx, stale)
	_, ok = c.Get(ctx, stale.ID)
	assert.False(t, ok)

	// Once the tombstone lapses caching resumes
	now = now.Add(time.Minute)
	fresh := &domain.Actor{ID: stale.ID, Role: domain.RoleUser}
	c.Set(ctx, fresh)
	got, ok := c.Get(ctx, stale.ID)
	require.True(t, ok)
	assert.Equal(t, domain.RoleUser, got.Role)
}

func TestMemory_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := cache.NewMemory(time.Minute)
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := ids[i%len(ids)]
			c.Set(ctx, &domain.Actor{ID: id, Role: domain.RoleUser})
			c.Get(ctx, id)
			if i%5 == 0 {
				c.Invalidate(ctx, id)
			}
		}(i)
	}
	wg.Wait()
}
