package service

import (
	"context"
	"fmt"
	"sort"
	"strings"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	appErrors "course-enrollment/pkg/errors"
)

// ScheduleConflict describes the first collision found between two class
// groups: same weekday and time slot with at least one shared date.
type ScheduleConflict struct {
	ClassGroupID      int64
	OtherClassGroupID int64
	DayOfWeek         domain.DayOfWeek
	TimeSlotID        int64
	Dates             []string
	WithExisting      bool
}

func (c *ScheduleConflict) Error() string {
	kind := "requested class group"
	if c.WithExisting {
		kind = "enrolled class group"
	}
	return fmt.Sprintf("class group %d conflicts with %s %d on %s time slot %d (dates: %s)",
		c.ClassGroupID, kind, c.OtherClassGroupID, c.DayOfWeek, c.TimeSlotID, strings.Join(c.Dates, ", "))
}

// ConflictChecker rejects a set of class groups whose weekly schedules
// collide with each other or with the student's enrolled schedule.
type ConflictChecker struct {
	scheduleRepo   interfaces.ScheduleRepository
	enrollmentRepo interfaces.EnrollmentRepository
}

func NewConflictChecker(scheduleRepo interfaces.ScheduleRepository, enrollmentRepo interfaces.EnrollmentRepository) *ConflictChecker {
	return &ConflictChecker{
		scheduleRepo:   scheduleRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

// Check returns a Conflict error for the first collision and nil otherwise.
func (c *ConflictChecker) Check(ctx context.Context, studentID, semesterID int64, candidateIDs []int64) error {
	if len(candidateIDs) == 0 {
		return nil
	}

	enrolled, err := c.enrollmentRepo.GetEnrolledBySemester(ctx, studentID, semesterID)
	if err != nil {
		return fmt.Errorf("failed to load enrolled class groups: %w", err)
	}

	ids := append([]int64(nil), candidateIDs...)
	for _, e := range enrolled {
		ids = append(ids, e.ClassGroupID)
	}

	schedules, err := c.scheduleRepo.GetByClassGroupIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("failed to load class schedules: %w", err)
	}

	candidates := make(map[int64]bool, len(candidateIDs))
	for _, id := range candidateIDs {
		candidates[id] = true
	}
	existing := make(map[int64]bool, len(enrolled))
	for _, e := range enrolled {
		if !candidates[e.ClassGroupID] {
			existing[e.ClassGroupID] = true
		}
	}

	var candidateSchedules, existingSchedules []*domain.ClassWeeklySchedule
	for _, s := range schedules {
		switch {
		case candidates[s.ClassGroupID]:
			candidateSchedules = append(candidateSchedules, s)
		case existing[s.ClassGroupID]:
			existingSchedules = append(existingSchedules, s)
		}
	}

	if conflict := FindScheduleConflict(candidateSchedules, existingSchedules); conflict != nil {
		return appErrors.WithCause(appErrors.Clone(appErrors.ErrConflict, conflict.Error()), conflict)
	}
	return nil
}

// FindScheduleConflict checks every pair of candidate schedules belonging to
// different class groups, then every candidate against every existing one.
// The result is deterministic for a given input.
func FindScheduleConflict(candidates, existing []*domain.ClassWeeklySchedule) *ScheduleConflict {
	sorted := append([]*domain.ClassWeeklySchedule(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].ClassGroupID != sorted[j].ClassGroupID {
			return sorted[i].ClassGroupID < sorted[j].ClassGroupID
		}
		return sorted[i].ID < sorted[j].ID
	})

	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			a, b := sorted[i], sorted[j]
			if a.ClassGroupID == b.ClassGroupID {
				continue
			}
			if dates := overlap(a, b); len(dates) > 0 {
				return &ScheduleConflict{
					ClassGroupID:      a.ClassGroupID,
					OtherClassGroupID: b.ClassGroupID,
					DayOfWeek:         a.DayOfWeek,
					TimeSlotID:        a.TimeSlotID,
					Dates:             dates,
				}
			}
		}
	}

	for _, a := range sorted {
		for _, b := range existing {
			if dates := overlap(a, b); len(dates) > 0 {
				return &ScheduleConflict{
					ClassGroupID:      a.ClassGroupID,
					OtherClassGroupID: b.ClassGroupID,
					DayOfWeek:         a.DayOfWeek,
					TimeSlotID:        a.TimeSlotID,
					Dates:             dates,
					WithExisting:      true,
				}
			}
		}
	}
	return nil
}

// overlap returns the shared scheduled dates, sorted, when both entries sit
// in the same weekday and time slot.
func overlap(a, b *domain.ClassWeeklySchedule) []string {
	if a.DayOfWeek != b.DayOfWeek || a.TimeSlotID != b.TimeSlotID {
		return nil
	}

	dates := make(map[string]struct{}, len(a.ScheduledDates))
	for _, d := range a.ScheduledDates {
		dates[d] = struct{}{}
	}

	var shared []string
	seen := make(map[string]struct{})
	for _, d := range b.ScheduledDates {
		if _, ok := dates[d]; !ok {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		shared = append(shared, d)
	}
	sort.Strings(shared)
	return shared
}
