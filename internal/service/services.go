package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/dom/medtrack/internal/cache"
	"github.com/dom/medtrack/internal/config"
	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/repository"
	"github.com/rs/zerolog"
)

type Services struct {
	Auth      *AuthService
	Adherence *AdherenceService
	Admin     *AdminService
}

func NewServices(repos *repository.Repositories, cfg *config.Config, actorCache cache.ActorCache, log zerolog.Logger) *Services {
	if actorCache == nil {
		actorCache = cache.NewNoop()
	}
	return &Services{
		Auth:      NewAuthService(repos.User, repos.Session, cfg, log),
		Adherence: NewAdherenceService(repos.Medication, repos.Dose, cfg.Location),
		Admin:     NewAdminService(repos.User, repos.Session, actorCache, cfg.BcryptCost, log),
	}
}

// Clock returns the current time. Services take one so tests can pin it.
type Clock func() time.Time

// storeErr maps a repository error onto the engine's error kinds.
func storeErr(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreFailure, op, err)
}
