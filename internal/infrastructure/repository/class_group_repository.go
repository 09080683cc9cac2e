package repository

import (
	"context"
	"errors"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"

	"gorm.io/gorm"
)

// curriculumMatchClause restricts class_groups to those whose course is part
// of the curriculum for a major and admission year.
const curriculumMatchClause = `EXISTS (
	SELECT 1 FROM curriculum_courses cc
	JOIN curriculums cu ON cu.id = cc.curriculum_id
	WHERE cc.course_id = class_groups.course_id
	AND cu.major_id = ? AND cu.start_academic_year = ?)`

type ClassGroupRepository struct {
	db *gorm.DB
}

func NewClassGroupRepository(db *gorm.DB) interfaces.ClassGroupRepository {
	return &ClassGroupRepository{
		db: db,
	}
}

func (r *ClassGroupRepository) GetByID(ctx context.Context, id int64) (*domain.ClassGroup, error) {
	var classGroup domain.ClassGroup
	err := r.db.WithContext(ctx).Preload("Course").First(&classGroup, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &classGroup, nil
}

func (r *ClassGroupRepository) GetByIDsForCurriculum(ctx context.Context, ids []int64, majorID int64, startAcademicYear int) ([]*domain.ClassGroup, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var classGroups []*domain.ClassGroup
	err := r.db.WithContext(ctx).
		Preload("Course").
		Where("class_groups.id IN ?", ids).
		Where(curriculumMatchClause, majorID, startAcademicYear).
		Order("class_groups.id").
		Find(&classGroups).Error
	if err != nil {
		return nil, err
	}
	return classGroups, nil
}
