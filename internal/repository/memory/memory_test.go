package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dom/medtrack/internal/domain"
	"github.com/dom/medtrack/internal/repository"
	"github.com/dom/medtrack/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories(memory.NewStore())

	user := &domain.User{Email: " Mixed@Example.com", PasswordHash: "hash"}
	require.NoError(t, repos.User.Create(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, domain.RoleUser, user.Role)

	dup := &domain.User{Email: "mixed@example.com", PasswordHash: "hash"}
	assert.ErrorIs(t, repos.User.Create(ctx, dup), repository.ErrDuplicate)

	found, err := repos.User.GetByEmail(ctx, "MIXED@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	// Returned records are copies
	found.Role = domain.RoleAdmin
	again, err := repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, again.Role)

	require.NoError(t, repos.User.UpdateRole(ctx, user.ID, domain.RoleAdmin))
	again, err = repos.User.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, again.Role)

	assert.ErrorIs(t, repos.User.UpdateRole(ctx, uuid.New(), domain.RoleAdmin), repository.ErrNotFound)

	require.NoError(t, repos.User.Delete(ctx, user.ID))
	_, err = repos.User.GetByID(ctx, user.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repos.User.Delete(ctx, user.ID), repository.ErrNotFound)
}

func TestUserRepository_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories(memory.NewStore())
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	older := &domain.User{Email: "older@example.com", CreatedAt: base}
	newer := &domain.User{Email: "newer@example.com", CreatedAt: base.Add(time.Hour)}
	sameAsNewer := &domain.User{Email: "same@example.com", CreatedAt: base.Add(time.Hour)}
	require.NoError(t, repos.User.Create(ctx, older))
	require.NoError(t, repos.User.Create(ctx, newer))
	require.NoError(t, repos.User.Create(ctx, sameAsNewer))

	users, err := repos.User.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 3)
	assert.Equal(t, sameAsNewer.ID, users[0].ID)
	assert.Equal(t, newer.ID, users[1].ID)
	assert.Equal(t, older.ID, users[2].ID)
}

func TestMedicationRepository(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories(memory.NewStore())
	owner := uuid.New()

	b := &domain.Medication{OwnerID: owner, Name: "B", Dosage: "1", StartTime: datatypes.NewTime(8, 0, 0, 0), EndTime: datatypes.NewTime(9, 0, 0, 0)}
	a := &domain.Medication{OwnerID: owner, Name: "A", Dosage: "1", StartTime: datatypes.NewTime(8, 0, 0, 0), EndTime: datatypes.NewTime(9, 0, 0, 0)}
	foreign := &domain.Medication{OwnerID: uuid.New(), Name: "C", Dosage: "1"}
	for _, m := range []*domain.Medication{b, a, foreign} {
		require.NoError(t, repos.Medication.Create(ctx, m))
	}

	list, err := repos.Medication.ListByOwner(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "A", list[0].Name)
	assert.Equal(t, "B", list[1].Name)

	// Update ignores an attempted owner change
	patched := *a
	patched.OwnerID = uuid.New()
	patched.Name = "A2"
	require.NoError(t, repos.Medication.Update(ctx, &patched))
	stored, err := repos.Medication.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, owner, stored.OwnerID)
	assert.Equal(t, "A2", stored.Name)

	byID, err := repos.Medication.GetByIDs(ctx, []uuid.UUID{a.ID, uuid.New()})
	require.NoError(t, err)
	assert.Len(t, byID, 1)
	assert.Contains(t, byID, a.ID)

	require.NoError(t, repos.Medication.Delete(ctx, a.ID))
	assert.ErrorIs(t, repos.Medication.Delete(ctx, a.ID), repository.ErrNotFound)
	missing := *b
	missing.ID = uuid.New()
	assert.ErrorIs(t, repos.Medication.Update(ctx, &missing), repository.ErrNotFound)
}

func TestDoseRepository_Ordering(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories(memory.NewStore())
	userID := uuid.New()
	medID := uuid.New()
	noon := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	mk := func(takenAt time.Time) *domain.Dose {
		d := &domain.Dose{MedicationID: medID, UserID: userID, TakenAt: takenAt}
		require.NoError(t, repos.Dose.Create(ctx, d))
		return d
	}

	early := mk(noon.Add(-time.Hour))
	tie1 := mk(noon)
	tie2 := mk(noon)
	tie3 := mk(noon)
	late := mk(noon.Add(time.Hour))
	assert.Less(t, tie1.Seq, tie2.Seq)

	doses, err := repos.Dose.ListByUser(ctx, userID)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(doses))
	for _, d := range doses {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []uuid.UUID{late.ID, tie1.ID, tie2.ID, tie3.ID, early.ID}, ids)

	byMed, err := repos.Dose.ListByMedication(ctx, medID, userID)
	require.NoError(t, err)
	assert.Len(t, byMed, 5)

	other, err := repos.Dose.ListByMedication(ctx, medID, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestStore_ConcurrentDoseCreation(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories(memory.NewStore())
	userID := uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repos.Dose.Create(ctx, &domain.Dose{MedicationID: uuid.New(), UserID: userID, TakenAt: time.Now()})
		}()
	}
	wg.Wait()

	doses, err := repos.Dose.ListByUser(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, doses, 50)

	seen := make(map[int64]bool)
	for _, d := range doses {
		assert.False(t, seen[d.Seq], "duplicate seq %d", d.Seq)
		seen[d.Seq] = true
	}
}

func TestSessionRepository(t *testing.T) {
	ctx := context.Background()
	repos := memory.NewRepositories(memory.NewStore())
	userID := uuid.New()

	s1 := &domain.UserSession{UserID: userID, RefreshTokenHash: "h1", ExpiresAt: time.Now().Add(time.Hour)}
	s2 := &domain.UserSession{UserID: userID, RefreshTokenHash: "h2", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repos.Session.Create(ctx, s1))
	require.NoError(t, repos.Session.Create(ctx, s2))

	got, err := repos.Session.GetByID(ctx, s1.ID)
	require.NoError(t, err)
	assert.Equal(t, "h1", got.RefreshTokenHash)

	// A session can be consumed once
	require.NoError(t, repos.Session.Delete(ctx, s1.ID))
	assert.ErrorIs(t, repos.Session.Delete(ctx, s1.ID), repository.ErrNotFound)

	require.NoError(t, repos.Session.DeleteByUserID(ctx, userID))
	_, err = repos.Session.GetByID(ctx, s2.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, repos.Session.DeleteByUserID(ctx, userID))
}
