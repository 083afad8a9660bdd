package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dom/medtrack/internal/authz"
	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/metrics"
	"github.com/dom/medtrack/internal/repository"
	"github.com/google/uuid"
)

type AdherenceService struct {
	medRepo  repository.MedicationRepository
	doseRepo repository.DoseRepository
	loc      *time.Location
	now      Clock
}

func NewAdherenceService(medRepo repository.MedicationRepository, doseRepo repository.DoseRepository, loc *time.Location) *AdherenceService {
	if loc == nil {
		loc = time.UTC
	}
	return &AdherenceService{
		medRepo:  medRepo,
		doseRepo: doseRepo,
		loc:      loc,
		now:      time.Now,
	}
}

// WithClock replaces the service clock
func (s *AdherenceService) WithClock(now Clock) *AdherenceService {
	s.now = now
	return s
}

// Now is the engine clock in the configured location. Window checks use it.
func (s *AdherenceService) Now() time.Time {
	return s.now().In(s.loc)
}

type CreateMedicationInput struct {
	Name         string
	Dosage       string
	Frequency    string
	Instructions *string
	StartTime    string
	EndTime      string
	Color        *string
}

// UpdateMedicationInput is a partial patch. Nil fields are left alone; an
// empty Instructions or Color clears the value.
type UpdateMedicationInput struct {
	Name         *string
	Dosage       *string
	Frequency    *string
	Instructions *string
	StartTime    *string
	EndTime      *string
	Color        *string
}

// MedicationView is a medication with its window state at read time
type MedicationView struct {
	Medication *domain.Medication
	State      domain.WindowState
}

type ManualDoseInput struct {
	TakenAt time.Time
	Notes   *string
}

func (s *AdherenceService) CreateMedication(ctx context.Context, actor *domain.Actor, input CreateMedicationInput) (*MedicationView, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}

	start, err := domain.ParseTimeOfDay(input.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := domain.ParseTimeOfDay(input.EndTime)
	if err != nil {
		return nil, err
	}

	now := s.now()
	med := &domain.Medication{
		ID:           uuid.New(),
		OwnerID:      actor.ID,
		Name:         strings.TrimSpace(input.Name),
		Dosage:       strings.TrimSpace(input.Dosage),
		Frequency:    strings.TrimSpace(input.Frequency),
		Instructions: optional(input.Instructions),
		StartTime:    start,
		EndTime:      end,
		Color:        optional(input.Color),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := med.Validate(); err != nil {
		return nil, err
	}

	if err := s.medRepo.Create(ctx, med); err != nil {
		return nil, storeErr("create medication", err)
	}
	return s.view(med), nil
}

func (s *AdherenceService) UpdateMedication(ctx context.Context, actor *domain.Actor, medicationID uuid.UUID, input UpdateMedicationInput) (*MedicationView, error) {
	med, err := s.loadMedication(ctx, actor, medicationID, "medication.update")
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		med.Name = strings.TrimSpace(*input.Name)
	}
	if input.Dosage != nil {
		med.Dosage = strings.TrimSpace(*input.Dosage)
	}
	if input.Frequency != nil {
		med.Frequency = strings.TrimSpace(*input.Frequency)
	}
	if input.Instructions != nil {
		med.Instructions = optional(input.Instructions)
	}
	if input.Color != nil {
		med.Color = optional(input.Color)
	}
	if input.StartTime != nil {
		if med.StartTime, err = domain.ParseTimeOfDay(*input.StartTime); err != nil {
			return nil, err
		}
	}
	if input.EndTime != nil {
		if med.EndTime, err = domain.ParseTimeOfDay(*input.EndTime); err != nil {
			return nil, err
		}
	}
	if err := med.Validate(); err != nil {
		return nil, err
	}
	med.UpdatedAt = s.now()

	if err := s.medRepo.Update(ctx, med); err != nil {
		return nil, storeErr("update medication", err)
	}
	return s.view(med), nil
}

func (s *AdherenceService) GetMedication(ctx context.Context, actor *domain.Actor, medicationID uuid.UUID) (*MedicationView, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	med, err := s.medRepo.GetByID(ctx, medicationID)
	if err != nil {
		return nil, storeErr("get medication", err)
	}
	if !authz.CanViewMedication(actor, med) {
		metrics.RecordDenial("medication.view")
		return nil, domain.ErrUnauthorized
	}
	return s.view(med), nil
}

// ListMedications returns the actor's medications ordered by name, each
// with its current window state.
func (s *AdherenceService) ListMedications(ctx context.Context, actor *domain.Actor) ([]*MedicationView, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	meds, err := s.medRepo.ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, storeErr("list medications", err)
	}

	now := s.Now()
	views := make([]*MedicationView, 0, len(meds))
	for _, med := range meds {
		views = append(views, &MedicationView{Medication: med, State: med.WindowStateAt(now)})
	}
	return views, nil
}

// DeleteMedication removes the medication only. Its doses stay and show up
// in history without a medication.
func (s *AdherenceService) DeleteMedication(ctx context.Context, actor *domain.Actor, medicationID uuid.UUID) error {
	med, err := s.loadMedication(ctx, actor, medicationID, "medication.delete")
	if err != nil {
		return err
	}
	if err := s.medRepo.Delete(ctx, med.ID); err != nil {
		return storeErr("delete medication", err)
	}
	return nil
}

// RecordDose records a dose taken now. Outside the medication's window the
// call fails with domain.ErrOutOfWindowUnconfirmed unless
// confirmedOutsideWindow is set.
func (s *AdherenceService) RecordDose(ctx context.Context, actor *domain.Actor, medicationID uuid.UUID, confirmedOutsideWindow bool) (*domain.Dose, error) {
	med, err := s.loadMedication(ctx, actor, medicationID, "dose.record")
	if err != nil {
		return nil, err
	}

	now := s.Now()
	within := domain.IsWithinWindow(med.StartTime, med.EndTime, now)
	if err := domain.CheckRecordable(within, confirmedOutsideWindow); err != nil {
		metrics.RecordDoseEvent(metrics.DoseAdvisory)
		return nil, err
	}

	dose, err := s.insertDose(ctx, actor, med, now, nil)
	if err != nil {
		return nil, err
	}
	if within {
		metrics.RecordDoseEvent(metrics.DoseInWindow)
	} else {
		metrics.RecordDoseEvent(metrics.DoseConfirmed)
	}
	return dose, nil
}

// RecordManualDose records a back-dated dose. The window is not checked.
func (s *AdherenceService) RecordManualDose(ctx context.Context, actor *domain.Actor, medicationID uuid.UUID, input ManualDoseInput) (*domain.Dose, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	if input.TakenAt.IsZero() {
		return nil, fmt.Errorf("%w: takenAt is required", domain.ErrInvalidInput)
	}

	med, err := s.loadMedication(ctx, actor, medicationID, "dose.record_manual")
	if err != nil {
		return nil, err
	}

	dose, err := s.insertDose(ctx, actor, med, input.TakenAt, optional(input.Notes))
	if err != nil {
		return nil, err
	}
	metrics.RecordDoseEvent(metrics.DoseManual)
	return dose, nil
}

// ListHistory returns every dose of the actor, newest first, each joined
// to its medication if that still exists.
func (s *AdherenceService) ListHistory(ctx context.Context, actor *domain.Actor) ([]domain.HistoryEntry, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}

	doses, err := s.doseRepo.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, storeErr("list history", err)
	}

	seen := make(map[uuid.UUID]struct{}, len(doses))
	ids := make([]uuid.UUID, 0, len(doses))
	for _, d := range doses {
		if _, ok := seen[d.MedicationID]; ok {
			continue
		}
		seen[d.MedicationID] = struct{}{}
		ids = append(ids, d.MedicationID)
	}

	meds, err := s.medRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, storeErr("list history", err)
	}

	entries := make([]domain.HistoryEntry, 0, len(doses))
	for _, d := range doses {
		entries = append(entries, domain.HistoryEntry{Dose: d, Medication: meds[d.MedicationID]})
	}
	return entries, nil
}

func (s *AdherenceService) ListMedicationDoses(ctx context.Context, actor *domain.Actor, medicationID uuid.UUID) ([]*domain.Dose, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	med, err := s.medRepo.GetByID(ctx, medicationID)
	if err != nil {
		return nil, storeErr("get medication", err)
	}
	if !authz.CanViewMedication(actor, med) {
		metrics.RecordDenial("medication.view")
		return nil, domain.ErrUnauthorized
	}

	doses, err := s.doseRepo.ListByMedication(ctx, med.ID, actor.ID)
	if err != nil {
		return nil, storeErr("list medication doses", err)
	}
	return doses, nil
}

func (s *AdherenceService) GetDose(ctx context.Context, actor *domain.Actor, doseID uuid.UUID) (*domain.Dose, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	dose, err := s.doseRepo.GetByID(ctx, doseID)
	if err != nil {
		return nil, storeErr("get dose", err)
	}
	if !authz.CanViewDose(actor, dose) {
		metrics.RecordDenial("dose.view")
		return nil, domain.ErrUnauthorized
	}
	return dose, nil
}

func (s *AdherenceService) DeleteDose(ctx context.Context, actor *domain.Actor, doseID uuid.UUID) error {
	if actor == nil {
		return domain.ErrUnauthenticated
	}
	dose, err := s.doseRepo.GetByID(ctx, doseID)
	if err != nil {
		return storeErr("get dose", err)
	}
	if !authz.CanMutateDose(actor, dose) {
		metrics.RecordDenial("dose.delete")
		return domain.ErrUnauthorized
	}
	if err := s.doseRepo.Delete(ctx, dose.ID); err != nil {
		return storeErr("delete dose", err)
	}
	return nil
}

// loadMedication fetches a medication and runs the ownership gate for a
// mutating action.
func (s *AdherenceService) loadMedication(ctx context.Context, actor *domain.Actor, medicationID uuid.UUID, action string) (*domain.Medication, error) {
	if actor == nil {
		return nil, domain.ErrUnauthenticated
	}
	med, err := s.medRepo.GetByID(ctx, medicationID)
	if err != nil {
		return nil, storeErr("get medication", err)
	}
	if !authz.CanMutateMedication(actor, med) {
		metrics.RecordDenial(action)
		return nil, domain.ErrUnauthorized
	}
	return med, nil
}

func (s *AdherenceService) insertDose(ctx context.Context, actor *domain.Actor, med *domain.Medication, takenAt time.Time, notes *string) (*domain.Dose, error) {
	dose := &domain.Dose{
		ID:           uuid.New(),
		MedicationID: med.ID,
		UserID:       actor.ID,
		TakenAt:      takenAt,
		Notes:        notes,
		CreatedAt:    s.now(),
	}
	if err := s.doseRepo.Create(ctx, dose); err != nil {
		return nil, storeErr("record dose", err)
	}
	return dose, nil
}

func (s *AdherenceService) view(med *domain.Medication) *MedicationView {
	return &MedicationView{Medication: med, State: med.WindowStateAt(s.Now())}
}

// optional trims v and returns nil for an absent or blank value
func optional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
