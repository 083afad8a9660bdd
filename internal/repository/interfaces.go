package repository

import (
	"context"
	"errors"

	"github.com/dom/medtrack/internal/domain"
	"github.com/google/uuid"
)

// ErrNotFound is returned by every repository when the requested record
// does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when a unique constraint would be violated.
var ErrDuplicate = errors.New("duplicate record")

type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]*domain.User, error)
	UpdateRole(ctx context.Context, id uuid.UUID, role domain.Role) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type SessionRepository interface {
	Create(ctx context.Context, session *domain.UserSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.UserSession, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
}

type MedicationRepository interface {
	Create(ctx context.Context, medication *domain.Medication) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Medication, error)
	// GetByIDs returns the medications that still exist, keyed by id.
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Medication, error)
	// ListByOwner returns the owner's medications ordered by name.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Medication, error)
	Update(ctx context.Context, medication *domain.Medication) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// DoseRepository lists doses newest first by taken_at; doses with the same
// taken_at come back in creation order.
type DoseRepository interface {
	Create(ctx context.Context, dose *domain.Dose) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Dose, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Dose, error)
	ListByMedication(ctx context.Context, medicationID, userID uuid.UUID) ([]*domain.Dose, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Repositories struct {
	User       UserRepository
	Session    SessionRepository
	Medication MedicationRepository
	Dose       DoseRepository
}
