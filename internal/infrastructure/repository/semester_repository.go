package repository

import (
	"context"
	"errors"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"

	"gorm.io/gorm"
)

type SemesterRepository struct {
	db *gorm.DB
}

func NewSemesterRepository(db *gorm.DB) interfaces.SemesterRepository {
	return &SemesterRepository{
		db: db,
	}
}

func (r *SemesterRepository) GetByID(ctx context.Context, id int64) (*domain.Semester, error) {
	var semester domain.Semester
	err := r.db.WithContext(ctx).First(&semester, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &semester, nil
}

func (r *SemesterRepository) GetByCode(ctx context.Context, semesterCode string) (*domain.Semester, error) {
	var semester domain.Semester
	err := r.db.WithContext(ctx).First(&semester, "semester_code = ?", semesterCode).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &semester, nil
}
