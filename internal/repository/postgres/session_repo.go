package postgres

import (
	"context"

	"github.com/dom/medtrack/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// sessionRepository stores refresh sessions. A session row is the claim on
// its refresh token: deleting it is how a refresh consumes the token.
type sessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *sessionRepository {
	return &sessionRepository{db: db}
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.UserSession) error {
	return translate(r.db.WithContext(ctx).Create(session).Error)
}

func (r *sessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.UserSession, error) {
	var session domain.UserSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&session).Error; err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

// Delete returns repository.ErrNotFound when no row was removed, so of two
// concurrent refreshes with the same token only one succeeds.
func (r *sessionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return affected(r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.UserSession{}))
}

// DeleteByUserID removes every session of the user; zero rows is fine.
func (r *sessionRepository) DeleteByUserID(ctx context.Context, userID uuid.UUID) error {
	return translate(r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&domain.UserSession{}).Error)
}
