// Package memory is an in-process implementation of the repository
// interfaces. Every call is atomic under one lock, matching the per-record
// guarantees of the Postgres store. Records are copied in and out so
// callers never share state with the store.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/repository"
	"github.com/google/uuid"
)

// Store holds all tables. Use NewRepositories to get the repository views.
type Store struct {
	mu          sync.RWMutex
	users       map[uuid.UUID]domain.User
	userOrder   map[uuid.UUID]int64
	sessions    map[uuid.UUID]domain.UserSession
	medications map[uuid.UUID]domain.Medication
	doses       map[uuid.UUID]domain.Dose
	seq         int64
	now         func() time.Time
}

func NewStore() *Store {
	return &Store{
		users:       make(map[uuid.UUID]domain.User),
		userOrder:   make(map[uuid.UUID]int64),
		sessions:    make(map[uuid.UUID]domain.UserSession),
		medications: make(map[uuid.UUID]domain.Medication),
		doses:       make(map[uuid.UUID]domain.Dose),
		now:         time.Now,
	}
}

func NewRepositories(s *Store) *repository.Repositories {
	return &repository.Repositories{
		User:       &userRepository{s},
		Session:    &sessionRepository{s},
		Medication: &medicationRepository{s},
		Dose:       &doseRepository{s},
	}
}

func (s *Store) next() int64 {
	s.seq++
	return s.seq
}

func newID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}

type userRepository struct{ s *Store }

func (r *userRepository) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range r.s.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.ID = newID(user.ID)
	if _, exists := r.s.users[user.ID]; exists {
		return repository.ErrDuplicate
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	now := r.s.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	r.s.users[user.ID] = *user
	r.s.userOrder[user.ID] = r.s.next()
	return nil
}

func (r *userRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepository) List(_ context.Context) ([]*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	users := make([]*domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		u := u
		users = append(users, &u)
	}
	sort.SliceStable(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.After(users[j].CreatedAt)
		}
		return r.s.userOrder[users[i].ID] > r.s.userOrder[users[j].ID]
	})
	return users, nil
}

func (r *userRepository) UpdateRole(_ context.Context, id uuid.UUID, role domain.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Role = role
	u.UpdatedAt = r.s.now()
	r.s.users[id] = u
	return nil
}

func (r *userRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)
	delete(r.s.userOrder, id)
	return nil
}

type sessionRepository struct{ s *Store }

func (r *sessionRepository) Create(_ context.Context, session *domain.UserSession) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	session.ID = newID(session.ID)
	if session.CreatedAt.IsZero() {
		session.CreatedAt = r.s.now()
	}
	r.s.sessions[session.ID] = *session
	return nil
}

func (r *sessionRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.UserSession, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sess, nil
}

func (r *sessionRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.sessions[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.sessions, id)
	return nil
}

func (r *sessionRepository) DeleteByUserID(_ context.Context, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, sess := range r.s.sessions {
		if sess.UserID == userID {
			delete(r.s.sessions, id)
		}
	}
	return nil
}

type medicationRepository struct{ s *Store }

func (r *medicationRepository) Create(_ context.Context, medication *domain.Medication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	medication.ID = newID(medication.ID)
	if _, exists := r.s.medications[medication.ID]; exists {
		return repository.ErrDuplicate
	}
	now := r.s.now()
	if medication.CreatedAt.IsZero() {
		medication.CreatedAt = now
	}
	medication.UpdatedAt = now
	r.s.medications[medication.ID] = *medication
	return nil
}

func (r *medicationRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Medication, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.medications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r *medicationRepository) GetByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Medication, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	found := make(map[uuid.UUID]*domain.Medication, len(ids))
	for _, id := range ids {
		if m, ok := r.s.medications[id]; ok {
			m := m
			found[id] = &m
		}
	}
	return found, nil
}

func (r *medicationRepository) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*domain.Medication, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var medications []*domain.Medication
	for _, m := range r.s.medications {
		if m.OwnerID == ownerID {
			m := m
			medications = append(medications, &m)
		}
	}
	sort.SliceStable(medications, func(i, j int) bool {
		if medications[i].Name != medications[j].Name {
			return medications[i].Name < medications[j].Name
		}
		return medications[i].CreatedAt.Before(medications[j].CreatedAt)
	})
	return medications, nil
}

func (r *medicationRepository) Update(_ context.Context, medication *domain.Medication) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.medications[medication.ID]
	if !ok {
		return repository.ErrNotFound
	}
	updated := *medication
	updated.OwnerID = stored.OwnerID
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = r.s.now()
	r.s.medications[medication.ID] = updated
	medication.UpdatedAt = updated.UpdatedAt
	return nil
}

func (r *medicationRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.medications[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.medications, id)
	return nil
}

type doseRepository struct{ s *Store }

func (r *doseRepository) Create(_ context.Context, dose *domain.Dose) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	dose.ID = newID(dose.ID)
	if _, exists := r.s.doses[dose.ID]; exists {
		return repository.ErrDuplicate
	}
	dose.Seq = r.s.next()
	if dose.CreatedAt.IsZero() {
		dose.CreatedAt = r.s.now()
	}
	r.s.doses[dose.ID] = *dose
	return nil
}

func (r *doseRepository) GetByID(_ context.Context, id uuid.UUID) (*domain.Dose, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	d, ok := r.s.doses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r *doseRepository) ListByUser(_ context.Context, userID uuid.UUID) ([]*domain.Dose, error) {
	return r.list(func(d domain.Dose) bool { return d.UserID == userID }), nil
}

func (r *doseRepository) ListByMedication(_ context.Context, medicationID, userID uuid.UUID) ([]*domain.Dose, error) {
	return r.list(func(d domain.Dose) bool {
		return d.MedicationID == medicationID && d.UserID == userID
	}), nil
}

func (r *doseRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.doses[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.doses, id)
	return nil
}

func (r *doseRepository) list(match func(domain.Dose) bool) []*domain.Dose {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var doses []*domain.Dose
	for _, d := range r.s.doses {
		if match(d) {
			d := d
			doses = append(doses, &d)
		}
	}
	sort.Slice(doses, func(i, j int) bool {
		if !doses[i].TakenAt.Equal(doses[j].TakenAt) {
			return doses[i].TakenAt.After(doses[j].TakenAt)
		}
		return doses[i].Seq < doses[j].Seq
	})
	return doses
}
