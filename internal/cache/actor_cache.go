// Package cache keeps resolved actors close to the request path. The cache
// is best-effort: failures are logged and reported as misses, the user
// store stays the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dom/medtrack/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type ActorCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Actor, bool)
	Set(ctx context.Context, actor *domain.Actor)
	Invalidate(ctx context.Context, id uuid.UUID)
}

// Noop never stores anything. Used when no cache is configured.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Get(context.Context, uuid.UUID) (*domain.Actor, bool) { return nil, false }
func (Noop) Set(context.Context, *domain.Actor)                   {}
func (Noop) Invalidate(context.Context, uuid.UUID)                {}

// RedisActorCache stores actors as JSON under "<prefix>:actor:<id>".
// Invalidate leaves a tombstone under "<prefix>:actor-tomb:<id>" for one
// TTL. While it exists Get misses and Set is dropped, so a resolver that
// read the user before the invalidation cannot write the old actor back.
type RedisActorCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	log    zerolog.Logger
}

func NewRedisActorCache(client *redis.Client, ttl time.Duration, prefix string, log zerolog.Logger) *RedisActorCache {
	if prefix == "" {
		prefix = "medtrack"
	}
	return &RedisActorCache{client: client, ttl: ttl, prefix: prefix, log: log}
}

func (c *RedisActorCache) Key(id uuid.UUID) string {
	return c.prefix + ":actor:" + id.String()
}

func (c *RedisActorCache) TombstoneKey(id uuid.UUID) string {
	return c.prefix + ":actor-tomb:" + id.String()
}

func (c *RedisActorCache) Get(ctx context.Context, id uuid.UUID) (*domain.Actor, bool) {
	vals, err := c.client.MGet(ctx, c.Key(id), c.TombstoneKey(id)).Result()
	if err != nil {
		c.log.Warn().Err(err).Str("user_id", id.String()).Msg("actor cache get failed")
		return nil, false
	}
	if vals[1] != nil {
		return nil, false
	}
	raw, ok := vals[0].(string)
	if !ok {
		return nil, false
	}
	var actor domain.Actor
	if err := json.Unmarshal([]byte(raw), &actor); err != nil {
		c.log.Warn().Err(err).Str("user_id", id.String()).Msg("actor cache entry corrupt")
		return nil, false
	}
	return &actor, true
}

// Set writes the actor unless a tombstone exists. The tombstone is WATCHed,
// so an Invalidate landing between the check and the write aborts it.
func (c *RedisActorCache) Set(ctx context.Context, actor *domain.Actor) {
	raw, err := json.Marshal(actor)
	if err != nil {
		return
	}
	key, tomb := c.Key(actor.ID), c.TombstoneKey(actor.ID)

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, tomb).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return errTombstoned
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, c.ttl)
			return nil
		})
		return err
	}, tomb)

	switch {
	case err == nil, errors.Is(err, errTombstoned), errors.Is(err, redis.TxFailedErr):
	default:
		c.log.Warn().Err(err).Str("user_id", actor.ID.String()).Msg("actor cache set failed")
	}
}

func (c *RedisActorCache) Invalidate(ctx context.Context, id uuid.UUID) {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.Key(id))
		pipe.Set(ctx, c.TombstoneKey(id), "1", tombstoneTTL(c.ttl))
		return nil
	})
	if err != nil {
		c.log.Warn().Err(err).Str("user_id", id.String()).Msg("actor cache invalidate failed")
	}
}

var errTombstoned = errors.New("actor invalidated")

// tombstoneTTL outlives any entry written before the invalidation
func tombstoneTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return time.Minute
	}
	return ttl
}

// NewRedisClient parses url and pings the server. It returns nil when the
// server cannot be reached so callers fall back to Noop.
func NewRedisClient(ctx context.Context, url string, log zerolog.Logger) *redis.Client {
	if url == "" {
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn().Err(err).Msg("invalid REDIS_URL; actor cache disabled")
		return nil
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Warn().Err(err).Msg("redis ping failed; actor cache disabled")
		_ = client.Close()
		return nil
	}
	return client
}
