package postgres

import (
	"context"

	"github.com/dom/medtrack/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type medicationRepository struct {
	db *gorm.DB
}

func NewMedicationRepository(db *gorm.DB) *medicationRepository {
	return &medicationRepository{db: db}
}

func (r *medicationRepository) Create(ctx context.Context, medication *domain.Medication) error {
	return translate(r.db.WithContext(ctx).Create(medication).Error)
}

func (r *medicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Medication, error) {
	var medication domain.Medication
	if err := r.db.WithContext(ctx).First(&medication, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &medication, nil
}

func (r *medicationRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Medication, error) {
	found := make(map[uuid.UUID]*domain.Medication, len(ids))
	if len(ids) == 0 {
		return found, nil
	}

	var medications []*domain.Medication
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&medications).Error; err != nil {
		return nil, translate(err)
	}
	for _, m := range medications {
		found[m.ID] = m
	}
	return found, nil
}

func (r *medicationRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Medication, error) {
	var medications []*domain.Medication
	err := r.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("name ASC").
		Order("created_at ASC").
		Find(&medications).Error
	if err != nil {
		return nil, translate(err)
	}
	return medications, nil
}

// Update writes every mutable column. The owner and creation time are
// never written after insert.
func (r *medicationRepository) Update(ctx context.Context, medication *domain.Medication) error {
	return affected(r.db.WithContext(ctx).
		Model(medication).
		Select("*").
		Omit("id", "user_id", "created_at").
		Updates(medication))
}

func (r *medicationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return affected(r.db.WithContext(ctx).Delete(&domain.Medication{}, "id = ?", id))
}
