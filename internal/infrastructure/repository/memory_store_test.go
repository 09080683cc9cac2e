package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	appErrors "course-enrollment/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seededStore() *MemoryStore {
	store := NewMemoryStore()
	store.AddCourse(&domain.Course{ID: 3, Code: "CS101", Name: "Programming", Credits: 3}, 7, 2022)
	store.AddCourse(&domain.Course{ID: 4, Code: "MA201", Name: "Calculus", Credits: 4}, 8, 2022)
	store.AddClassGroup(&domain.ClassGroup{ID: 10, CourseID: 3, SemesterID: 1, MaxStudents: 2, Status: domain.ClassGroupStatusOpenForRegister})
	store.AddClassGroup(&domain.ClassGroup{ID: 11, CourseID: 4, SemesterID: 1, MaxStudents: 2, Status: domain.ClassGroupStatusOpenForRegister})
	return store
}

func TestMemoryStore_CurriculumFilter(t *testing.T) {
	store := seededStore()
	ctx := context.Background()

	groups, err := store.ClassGroups().GetByIDsForCurriculum(ctx, []int64{10, 11, 99}, 7, 2022)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(10), groups[0].ID)
	require.NotNil(t, groups[0].Course)
	assert.Equal(t, "CS101", groups[0].Course.Code)

	err = store.UnitOfWork().RunInTx(ctx, func(ctx context.Context, tx interfaces.EnrollmentTx) error {
		cg, err := tx.LockClassGroup(ctx, 11, 7, 2022)
		assert.Nil(t, cg)
		return err
	})
	require.NoError(t, err)
}

func TestMemoryStore_RollbackDiscardsWrites(t *testing.T) {
	store := seededStore()
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.UnitOfWork().RunInTx(ctx, func(ctx context.Context, tx interfaces.EnrollmentTx) error {
		cg, err := tx.LockClassGroup(ctx, 10, 7, 2022)
		require.NoError(t, err)
		cg.RegisteredStudents = 1
		require.NoError(t, tx.SaveClassGroupCapacity(ctx, cg))
		require.NoError(t, tx.CreateEnrollment(ctx, &domain.Enrollment{StudentID: 55, ClassGroupID: 10, Status: domain.EnrollmentStatusEnrolled}))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, store.ClassGroup(10).RegisteredStudents)
	assert.Empty(t, store.EnrollmentsFor(55, 10))
}

func TestMemoryStore_DuplicateEnrolledRowIsConflict(t *testing.T) {
	store := seededStore()
	store.AddEnrollment(&domain.Enrollment{StudentID: 55, ClassGroupID: 10, Status: domain.EnrollmentStatusEnrolled})
	ctx := context.Background()

	err := store.UnitOfWork().RunInTx(ctx, func(ctx context.Context, tx interfaces.EnrollmentTx) error {
		return tx.CreateEnrollment(ctx, &domain.Enrollment{StudentID: 55, ClassGroupID: 10, Status: domain.EnrollmentStatusEnrolled})
	})

	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))
	assert.Len(t, store.EnrollmentsFor(55, 10), 1)
}

func TestMemoryStore_FindEnrollmentPrefersEnrolled(t *testing.T) {
	store := seededStore()
	older := &domain.Enrollment{StudentID: 55, ClassGroupID: 10, Status: domain.EnrollmentStatusEnrolled}
	newer := &domain.Enrollment{StudentID: 55, ClassGroupID: 10, Status: domain.EnrollmentStatusCancelled}
	store.AddEnrollment(older)
	store.AddEnrollment(newer)
	ctx := context.Background()

	err := store.UnitOfWork().RunInTx(ctx, func(ctx context.Context, tx interfaces.EnrollmentTx) error {
		found, err := tx.FindEnrollment(ctx, 55, 10)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, older.ID, found.ID)
		return tx.UpdateEnrollmentStatus(ctx, older.ID, domain.EnrollmentStatusCancelled, time.Now())
	})
	require.NoError(t, err)

	err = store.UnitOfWork().RunInTx(ctx, func(ctx context.Context, tx interfaces.EnrollmentTx) error {
		found, err := tx.FindEnrollment(ctx, 55, 10)
		require.NoError(t, err)
		assert.Equal(t, newer.ID, found.ID)
		return nil
	})
	require.NoError(t, err)
}

func TestMemoryIdempotencyRepository(t *testing.T) {
	repo := NewMemoryIdempotencyRepository()
	ctx := context.Background()

	missing, err := repo.GetByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	key := &domain.IdempotencyKey{Key: "k1", UserID: 5, ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(ctx, key))
	err = repo.Create(ctx, key)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrConflict.Code))

	got, err := repo.GetByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.UserID)

	require.NoError(t, repo.Delete(ctx, "k1"))
	got, err = repo.GetByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, got)
}
