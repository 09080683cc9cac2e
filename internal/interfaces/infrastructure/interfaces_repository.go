package interfaces

import (
	"context"
	domain "course-enrollment/internal/domain/enrollment"
	"time"
)

type StudentRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Student, error)
	GetByUserID(ctx context.Context, userID int64) (*domain.Student, error)
}

type SemesterRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Semester, error)
	GetByCode(ctx context.Context, semesterCode string) (*domain.Semester, error)
}

type ClassGroupRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.ClassGroup, error)
	// GetByIDsForCurriculum returns the class groups among ids whose course
	// belongs to the curriculum of the given major and admission year.
	GetByIDsForCurriculum(ctx context.Context, ids []int64, majorID int64, startAcademicYear int) ([]*domain.ClassGroup, error)
}

type EnrollmentRepository interface {
	GetByStudentAndClassGroups(ctx context.Context, studentID int64, classGroupIDs []int64) ([]*domain.Enrollment, error)
	GetEnrolledBySemester(ctx context.Context, studentID, semesterID int64) ([]*domain.Enrollment, error)
}

type ScheduleRepository interface {
	GetByClassGroupIDs(ctx context.Context, classGroupIDs []int64) ([]*domain.ClassWeeklySchedule, error)
}

type SettingRepository interface {
	GetAll(ctx context.Context) ([]*domain.Setting, error)
	Upsert(ctx context.Context, setting *domain.Setting) error
}

// EnrollmentTx is the set of writes the enrollment worker performs while it
// holds the class group row lock.
type EnrollmentTx interface {
	// LockClassGroup selects the class group FOR UPDATE, filtered by the
	// curriculum match. It returns nil, nil when no row matches.
	LockClassGroup(ctx context.Context, classGroupID, majorID int64, startAcademicYear int) (*domain.ClassGroup, error)
	// FindEnrollment prefers the ENROLLED row, then the most recent one.
	FindEnrollment(ctx context.Context, studentID, classGroupID int64) (*domain.Enrollment, error)
	CreateEnrollment(ctx context.Context, enrollment *domain.Enrollment) error
	UpdateEnrollmentStatus(ctx context.Context, enrollmentID int64, status domain.EnrollmentStatus, at time.Time) error
	SaveClassGroupCapacity(ctx context.Context, classGroup *domain.ClassGroup) error
}

type EnrollmentUnitOfWork interface {
	// RunInTx commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx EnrollmentTx) error) error
}

type IdempotencyRepository interface {
	Create(ctx context.Context, key *domain.IdempotencyKey) error
	GetByKey(ctx context.Context, key string) (*domain.IdempotencyKey, error)
	Delete(ctx context.Context, key string) error
}
