// Package identity resolves the calling actor for every operation.
//
// The identity provider (token validation in the auth service) places a
// Session in the request context. Resolver turns that session into an
// Actor by reading the user's current role from the user store. Having no
// session is a normal result, not an error.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/dom/medtrack/internal/cache"
	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/repository"
	"github.com/google/uuid"
)

type contextKey string

const (
	sessionKey contextKey = "session"
	actorKey   contextKey = "actor"
)

// Session is what the identity provider knows about the caller.
type Session struct {
	UserID uuid.UUID
	Email  string
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey).(Session)
	return s, ok
}

func WithActor(ctx context.Context, actor *domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the actor resolved earlier in the request, or nil.
func ActorFromContext(ctx context.Context) *domain.Actor {
	actor, _ := ctx.Value(actorKey).(*domain.Actor)
	return actor
}

type Resolver struct {
	users repository.UserRepository
	cache cache.ActorCache
}

func NewResolver(users repository.UserRepository, actorCache cache.ActorCache) *Resolver {
	if actorCache == nil {
		actorCache = cache.NewNoop()
	}
	return &Resolver{users: users, cache: actorCache}
}

// ResolveActor returns (nil, nil) when there is no session or the session's
// user no longer exists. The only error is a wrapped domain.ErrStoreFailure.
func (r *Resolver) ResolveActor(ctx context.Context) (*domain.Actor, error) {
	session, ok := SessionFromContext(ctx)
	if !ok || session.UserID == uuid.Nil {
		return nil, nil
	}

	if actor, ok := r.cache.Get(ctx, session.UserID); ok {
		return actor, nil
	}

	user, err := r.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: resolve actor: %w", domain.ErrStoreFailure, err)
	}

	actor := user.Actor()
	r.cache.Set(ctx, actor)
	return actor, nil
}
