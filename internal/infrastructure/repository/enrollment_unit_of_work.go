package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "course-enrollment/internal/domain/enrollment"
	"course-enrollment/internal/infrastructure/database"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	appErrors "course-enrollment/pkg/errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ interfaces.EnrollmentUnitOfWork = (*EnrollmentUnitOfWork)(nil)

// EnrollmentUnitOfWork runs worker transactions with bounded lock waits.
type EnrollmentUnitOfWork struct {
	db               *gorm.DB
	lockTimeout      time.Duration
	statementTimeout time.Duration
}

func NewEnrollmentUnitOfWork(db *gorm.DB, lockTimeout, statementTimeout time.Duration) *EnrollmentUnitOfWork {
	return &EnrollmentUnitOfWork{
		db:               db,
		lockTimeout:      lockTimeout,
		statementTimeout: statementTimeout,
	}
}

func (u *EnrollmentUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.EnrollmentTx) error) error {
	tx := u.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return appErrors.WithCause(appErrors.Clone(appErrors.ErrUnavailable, "failed to begin enrollment transaction"), tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	// SET LOCAL does not accept bind parameters.
	if u.lockTimeout > 0 {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())).Error; err != nil {
			tx.Rollback()
			return database.TranslateError(fmt.Errorf("failed to set lock timeout: %w", err))
		}
	}
	if u.statementTimeout > 0 {
		if err := tx.Exec(fmt.Sprintf("SET LOCAL statement_timeout = '%dms'", u.statementTimeout.Milliseconds())).Error; err != nil {
			tx.Rollback()
			return database.TranslateError(fmt.Errorf("failed to set statement timeout: %w", err))
		}
	}

	if err := fn(ctx, &gormEnrollmentTx{tx: tx}); err != nil {
		if rbErr := tx.Rollback().Error; rbErr != nil && !errors.Is(rbErr, gorm.ErrInvalidTransaction) {
			return errors.Join(database.TranslateError(err), rbErr)
		}
		return database.TranslateError(err)
	}

	if err := tx.Commit().Error; err != nil {
		return database.TranslateError(fmt.Errorf("failed to commit enrollment transaction: %w", err))
	}
	return nil
}

type gormEnrollmentTx struct {
	tx *gorm.DB
}

func (t *gormEnrollmentTx) LockClassGroup(ctx context.Context, classGroupID, majorID int64, startAcademicYear int) (*domain.ClassGroup, error) {
	var classGroup domain.ClassGroup
	err := t.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("class_groups.id = ?", classGroupID).
		Where(curriculumMatchClause, majorID, startAcademicYear).
		Take(&classGroup).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock class group %d: %w", classGroupID, err)
	}
	return &classGroup, nil
}

func (t *gormEnrollmentTx) FindEnrollment(ctx context.Context, studentID, classGroupID int64) (*domain.Enrollment, error) {
	var enrollment domain.Enrollment
	err := t.tx.WithContext(ctx).
		Where("student_id = ? AND class_group_id = ?", studentID, classGroupID).
		Order(fmt.Sprintf("CASE WHEN status = %d THEN 0 ELSE 1 END, id DESC", domain.EnrollmentStatusEnrolled)).
		Take(&enrollment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}
	return &enrollment, nil
}

func (t *gormEnrollmentTx) CreateEnrollment(ctx context.Context, enrollment *domain.Enrollment) error {
	if err := t.tx.WithContext(ctx).Create(enrollment).Error; err != nil {
		return fmt.Errorf("failed to insert enrollment: %w", err)
	}
	return nil
}

func (t *gormEnrollmentTx) UpdateEnrollmentStatus(ctx context.Context, enrollmentID int64, status domain.EnrollmentStatus, at time.Time) error {
	updates := map[string]any{
		"status":     status,
		"updated_at": at,
	}
	if status == domain.EnrollmentStatusEnrolled {
		updates["enrollment_date"] = at
	}

	result := t.tx.WithContext(ctx).Model(&domain.Enrollment{}).
		Where("id = ?", enrollmentID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update enrollment %d: %w", enrollmentID, result.Error)
	}
	if result.RowsAffected == 0 {
		return appErrors.Clonef(appErrors.ErrNotFound, "enrollment %d not found", enrollmentID)
	}
	return nil
}

func (t *gormEnrollmentTx) SaveClassGroupCapacity(ctx context.Context, classGroup *domain.ClassGroup) error {
	err := t.tx.WithContext(ctx).Model(&domain.ClassGroup{}).
		Where("id = ?", classGroup.ID).
		Updates(map[string]any{
			"registered_students": classGroup.RegisteredStudents,
			"status":              classGroup.Status,
			"updated_at":          time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to update class group %d: %w", classGroup.ID, err)
	}
	return nil
}
