package service

import (
	"context"
	domain "course-enrollment/internal/domain/enrollment"
	"course-enrollment/internal/domain/user"
)

type EnrollmentService interface {
	SubmitBatch(ctx context.Context, actor user.Actor, req *domain.BatchEnrollmentRequest) (*domain.BatchEnrollmentResponse, error)
	GetBatchStatus(ctx context.Context, actor user.Actor, batchID string) (*domain.BatchStatusResponse, error)
	GetStudentEnrollments(ctx context.Context, actor user.Actor, studentID, semesterID int64) ([]*domain.Enrollment, error)
}

// WorkResult is what the worker reports for one processed message.
type WorkResult struct {
	Status       domain.EnrollmentStatus `json:"status"`
	Reason       string                  `json:"reason,omitempty"`
	EnrollmentID *int64                  `json:"enrollmentId,omitempty"`
}

type EnrollmentWorker interface {
	Process(ctx context.Context, msg *domain.StudentEnrollmentMessage, finalAttempt bool) (*WorkResult, error)
}

type SettingService interface {
	Reload(ctx context.Context) error
	CurrentSemesterID(ctx context.Context) (int64, bool, error)
	IsMaintenanceMode(ctx context.Context) (bool, error)
}
