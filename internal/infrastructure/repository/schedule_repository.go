package repository

import (
	"context"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"

	"gorm.io/gorm"
)

type ScheduleRepository struct {
	db *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) interfaces.ScheduleRepository {
	return &ScheduleRepository{
		db: db,
	}
}

func (r *ScheduleRepository) GetByClassGroupIDs(ctx context.Context, classGroupIDs []int64) ([]*domain.ClassWeeklySchedule, error) {
	if len(classGroupIDs) == 0 {
		return nil, nil
	}

	var schedules []*domain.ClassWeeklySchedule
	err := r.db.WithContext(ctx).
		Where("class_group_id IN ?", classGroupIDs).
		Order("class_group_id, day_of_week, time_slot_id").
		Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	return schedules, nil
}
