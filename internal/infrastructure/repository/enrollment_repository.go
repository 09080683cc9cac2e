package repository

import (
	"context"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"

	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	db *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) interfaces.EnrollmentRepository {
	return &EnrollmentRepository{
		db: db,
	}
}

func (r *EnrollmentRepository) GetByStudentAndClassGroups(ctx context.Context, studentID int64, classGroupIDs []int64) ([]*domain.Enrollment, error) {
	if len(classGroupIDs) == 0 {
		return nil, nil
	}

	var enrollments []*domain.Enrollment
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND class_group_id IN ?", studentID, classGroupIDs).
		Order("id").
		Find(&enrollments).Error
	if err != nil {
		return nil, err
	}
	return enrollments, nil
}

// GetEnrolledBySemester lists a student's ENROLLED rows for class groups of
// one semester with class group and course loaded.
func (r *EnrollmentRepository) GetEnrolledBySemester(ctx context.Context, studentID, semesterID int64) ([]*domain.Enrollment, error) {
	var enrollments []*domain.Enrollment
	err := r.db.WithContext(ctx).
		Joins("JOIN class_groups ON class_groups.id = enrollments.class_group_id").
		Preload("ClassGroup.Course").
		Where("enrollments.student_id = ? AND enrollments.status = ? AND class_groups.semester_id = ?",
			studentID, domain.EnrollmentStatusEnrolled, semesterID).
		Order("enrollments.id").
		Find(&enrollments).Error
	if err != nil {
		return nil, err
	}
	return enrollments, nil
}
