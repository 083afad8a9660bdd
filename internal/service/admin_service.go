package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dom/medtrack/internal/authz"
	"github.com/dom/medtrack/internal/cache"
	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/metrics"
	"github.com/dom/medtrack/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const minPasswordLength = 6

type AdminService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	actorCache  cache.ActorCache
	bcryptCost  int
	log         zerolog.Logger
	now         Clock
}

func NewAdminService(userRepo repository.UserRepository, sessionRepo repository.SessionRepository, actorCache cache.ActorCache, bcryptCost int, log zerolog.Logger) *AdminService {
	if actorCache == nil {
		actorCache = cache.NewNoop()
	}
	return &AdminService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		actorCache:  actorCache,
		bcryptCost:  bcryptCost,
		log:         log.With().Str("component", "admin").Logger(),
		now:         time.Now,
	}
}

// WithClock replaces the service clock
func (s *AdminService) WithClock(now Clock) *AdminService {
	s.now = now
	return s
}

type CreateUserInput struct {
	Email    string
	Password string
	Role     domain.Role
}

func (s *AdminService) CreateUserAccount(ctx context.Context, actor *domain.Actor, input CreateUserInput) (*domain.User, error) {
	if err := s.gate(actor, "user.create"); err != nil {
		return nil, err
	}

	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	if len(input.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}
	role := input.Role
	if role == "" {
		role = domain.RoleUser
	}
	if !role.IsValid() {
		return nil, domain.ErrInvalidRole
	}

	hash, err := hashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailExists
		}
		return nil, storeErr("create user", err)
	}

	s.audit(actor, "user.create").
		Str("target_id", user.ID.String()).
		Str("email", user.Email).
		Str("role", string(user.Role)).
		Msg("user account created")
	return user, nil
}

// SetUserRole changes the target's role. The cached actor is dropped so the
// new role applies from the next request.
func (s *AdminService) SetUserRole(ctx context.Context, actor *domain.Actor, userID uuid.UUID, role domain.Role) (*domain.User, error) {
	if err := s.gate(actor, "user.set_role"); err != nil {
		return nil, err
	}
	if !role.IsValid() {
		return nil, domain.ErrInvalidRole
	}

	if err := s.userRepo.UpdateRole(ctx, userID, role); err != nil {
		return nil, storeErr("set user role", err)
	}
	s.actorCache.Invalidate(ctx, userID)

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("get user", err)
	}

	s.audit(actor, "user.set_role").
		Str("target_id", userID.String()).
		Str("role", string(role)).
		Msg("user role changed")
	return user, nil
}

// DeleteUserAccount removes the user and their sessions. Medications and
// doses the user owned are left in place.
func (s *AdminService) DeleteUserAccount(ctx context.Context, actor *domain.Actor, userID uuid.UUID) error {
	if err := s.gate(actor, "user.delete"); err != nil {
		return err
	}

	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return storeErr("delete user", err)
	}
	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		s.log.Warn().Err(err).Str("target_id", userID.String()).Msg("failed to delete sessions of deleted user")
	}
	s.actorCache.Invalidate(ctx, userID)

	s.audit(actor, "user.delete").
		Str("target_id", userID.String()).
		Msg("user account deleted")
	return nil
}

// ListUsers returns all accounts, newest first
func (s *AdminService) ListUsers(ctx context.Context, actor *domain.Actor) ([]*domain.User, error) {
	if err := s.gate(actor, "user.list"); err != nil {
		return nil, err
	}
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, storeErr("list users", err)
	}
	return users, nil
}

func (s *AdminService) gate(actor *domain.Actor, action string) error {
	if actor == nil {
		return domain.ErrUnauthenticated
	}
	if !authz.CanManageUsers(actor) {
		metrics.RecordDenial(action)
		s.log.Warn().
			Str("actor_id", actor.ID.String()).
			Str("action", action).
			Msg("admin action denied")
		return domain.ErrUnauthorized
	}
	return nil
}

func (s *AdminService) audit(actor *domain.Actor, action string) *zerolog.Event {
	return s.log.Info().
		Str("event", "audit").
		Str("action", action).
		Str("actor_id", actor.ID.String())
}
