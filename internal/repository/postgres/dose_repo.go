package postgres

import (
	"context"

	"github.com/dom/medtrack/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type doseRepository struct {
	db *gorm.DB
}

func NewDoseRepository(db *gorm.DB) *doseRepository {
	return &doseRepository{db: db}
}

func (r *doseRepository) Create(ctx context.Context, dose *domain.Dose) error {
	return translate(r.db.WithContext(ctx).Create(dose).Error)
}

func (r *doseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Dose, error) {
	var dose domain.Dose
	if err := r.db.WithContext(ctx).First(&dose, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &dose, nil
}

func (r *doseRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Dose, error) {
	var doses []*domain.Dose
	err := historyOrder(r.db.WithContext(ctx).Where("user_id = ?", userID)).
		Find(&doses).Error
	if err != nil {
		return nil, translate(err)
	}
	return doses, nil
}

func (r *doseRepository) ListByMedication(ctx context.Context, medicationID, userID uuid.UUID) ([]*domain.Dose, error) {
	var doses []*domain.Dose
	err := historyOrder(r.db.WithContext(ctx).
		Where("medication_id = ? AND user_id = ?", medicationID, userID)).
		Find(&doses).Error
	if err != nil {
		return nil, translate(err)
	}
	return doses, nil
}

func (r *doseRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return affected(r.db.WithContext(ctx).Delete(&domain.Dose{}, "id = ?", id))
}

func historyOrder(q *gorm.DB) *gorm.DB {
	return q.Order("taken_at DESC").Order("seq ASC")
}
