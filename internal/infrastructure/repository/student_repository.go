package repository

import (
	"context"
	"errors"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"

	"gorm.io/gorm"
)

type StudentRepository struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) interfaces.StudentRepository {
	return &StudentRepository{
		db: db,
	}
}

func (r *StudentRepository) GetByID(ctx context.Context, id int64) (*domain.Student, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByUserID resolves the student profile linked to a user account.
func (r *StudentRepository) GetByUserID(ctx context.Context, userID int64) (*domain.Student, error) {
	return r.first(ctx, "user_id = ?", userID)
}

func (r *StudentRepository) first(ctx context.Context, query string, arg any) (*domain.Student, error) {
	var student domain.Student
	err := r.db.WithContext(ctx).Where(query, arg).First(&student).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &student, nil
}
