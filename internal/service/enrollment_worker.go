package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "course-enrollment/internal/domain/enrollment"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	serviceInterfaces "course-enrollment/internal/interfaces/service"
	appErrors "course-enrollment/pkg/errors"
	"course-enrollment/pkg/logger"

	"github.com/sirupsen/logrus"
)

var _ serviceInterfaces.EnrollmentWorker = (*EnrollmentWorker)(nil)

// EnrollmentWorker applies one enroll or unenroll message under the class
// group row lock and then writes the outcome to the status ledger.
type EnrollmentWorker struct {
	uow     interfaces.EnrollmentUnitOfWork
	ledger  interfaces.StatusLedger
	metrics *MetricsService
	now     func() time.Time
}

func NewEnrollmentWorker(uow interfaces.EnrollmentUnitOfWork, ledger interfaces.StatusLedger, metrics *MetricsService) *EnrollmentWorker {
	return &EnrollmentWorker{
		uow:     uow,
		ledger:  ledger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Process returns an error only for a retryable failure on a non-final
// attempt; nothing has been written in that case. Every other outcome,
// including business rejections, is reported in the result and recorded in
// the status ledger.
func (w *EnrollmentWorker) Process(ctx context.Context, msg *domain.StudentEnrollmentMessage, finalAttempt bool) (*serviceInterfaces.WorkResult, error) {
	start := time.Now()
	log := logger.WithFields(logrus.Fields{
		"batch_id":       msg.BatchID,
		"class_group_id": msg.ClassGroupID,
		"student_id":     msg.StudentID,
		"action":         msg.Action(),
	})

	var enrollmentID int64
	err := w.uow.RunInTx(ctx, func(ctx context.Context, tx interfaces.EnrollmentTx) error {
		var txErr error
		if msg.IsRegistration {
			enrollmentID, txErr = w.enroll(ctx, tx, msg)
		} else {
			enrollmentID, txErr = w.unenroll(ctx, tx, msg)
		}
		return txErr
	})

	if err != nil && appErrors.IsRetryable(err) && !finalAttempt {
		log.Warnf("Retryable failure, message will be redelivered: %v", err)
		return nil, err
	}

	result := &serviceInterfaces.WorkResult{}
	if err != nil {
		result.Status = domain.EnrollmentStatusFailed
		result.Reason = failureReason(err)
	} else {
		result.EnrollmentID = &enrollmentID
		result.Status = domain.EnrollmentStatusEnrolled
		if !msg.IsRegistration {
			result.Status = domain.EnrollmentStatusCancelled
		}
	}

	w.writeThrough(ctx, msg, result, log)

	w.metrics.RecordWorkerOutcome(string(msg.Action()), result.Status.String(), time.Since(start))
	entry := log.WithField("status", result.Status.String())
	if result.Reason != "" {
		entry.Warnf("Enrollment message processed: %s", result.Reason)
	} else {
		entry.Info("Enrollment message processed")
	}
	return result, nil
}

func (w *EnrollmentWorker) enroll(ctx context.Context, tx interfaces.EnrollmentTx, msg *domain.StudentEnrollmentMessage) (int64, error) {
	cg, err := w.lockClassGroup(ctx, tx, msg)
	if err != nil {
		return 0, err
	}
	if cg.IsFull() {
		return 0, appErrors.Clonef(appErrors.ErrBadRequest, "class group %d is full", cg.ID)
	}
	if cg.Status != domain.ClassGroupStatusOpenForRegister {
		return 0, appErrors.Clonef(appErrors.ErrBadRequest, "class group %d is not open for registration (status %s)", cg.ID, cg.Status)
	}

	existing, err := tx.FindEnrollment(ctx, msg.StudentID, cg.ID)
	if err != nil {
		return 0, err
	}

	now := w.now().UTC()
	var enrollmentID int64
	switch {
	case existing == nil:
		enrollment := &domain.Enrollment{
			StudentID:      msg.StudentID,
			ClassGroupID:   cg.ID,
			Status:         domain.EnrollmentStatusEnrolled,
			EnrollmentDate: now,
		}
		if err := tx.CreateEnrollment(ctx, enrollment); err != nil {
			return 0, err
		}
		enrollmentID = enrollment.ID
	case existing.Status == domain.EnrollmentStatusEnrolled:
		return 0, appErrors.Clonef(appErrors.ErrConflict, "student %d is already enrolled in class group %d", msg.StudentID, cg.ID)
	case existing.Status.Reusable():
		if err := tx.UpdateEnrollmentStatus(ctx, existing.ID, domain.EnrollmentStatusEnrolled, now); err != nil {
			return 0, err
		}
		enrollmentID = existing.ID
	default:
		return 0, appErrors.Clonef(appErrors.ErrBadRequest, "enrollment %d is %s and cannot be re-enrolled", existing.ID, existing.Status)
	}

	cg.RegisteredStudents++
	if cg.RegisteredStudents >= cg.MaxStudents {
		cg.Status = domain.ClassGroupStatusClosedForRegister
	}
	if err := tx.SaveClassGroupCapacity(ctx, cg); err != nil {
		return 0, err
	}
	return enrollmentID, nil
}

func (w *EnrollmentWorker) unenroll(ctx context.Context, tx interfaces.EnrollmentTx, msg *domain.StudentEnrollmentMessage) (int64, error) {
	cg, err := w.lockClassGroup(ctx, tx, msg)
	if err != nil {
		return 0, err
	}
	if cg.Status == domain.ClassGroupStatusLocked || cg.Status == domain.ClassGroupStatusCancelled {
		return 0, appErrors.Clonef(appErrors.ErrBadRequest, "class group %d is %s", cg.ID, cg.Status)
	}

	existing, err := tx.FindEnrollment(ctx, msg.StudentID, cg.ID)
	if err != nil {
		return 0, err
	}
	if existing == nil {
		return 0, appErrors.Clonef(appErrors.ErrNotFound, "student %d has no enrollment in class group %d", msg.StudentID, cg.ID)
	}
	if existing.Status != domain.EnrollmentStatusEnrolled {
		return 0, appErrors.Clonef(appErrors.ErrBadRequest, "enrollment %d is %s, not ENROLLED", existing.ID, existing.Status)
	}

	if err := tx.UpdateEnrollmentStatus(ctx, existing.ID, domain.EnrollmentStatusCancelled, w.now().UTC()); err != nil {
		return 0, err
	}

	if cg.RegisteredStudents > 0 {
		cg.RegisteredStudents--
	} else {
		logger.Warn("Class group %d has no registered students to release for enrollment %d", cg.ID, existing.ID)
	}
	if cg.Status == domain.ClassGroupStatusClosedForRegister && cg.RegisteredStudents < cg.MaxStudents {
		cg.Status = domain.ClassGroupStatusOpenForRegister
	}
	if err := tx.SaveClassGroupCapacity(ctx, cg); err != nil {
		return 0, err
	}
	return existing.ID, nil
}

func (w *EnrollmentWorker) lockClassGroup(ctx context.Context, tx interfaces.EnrollmentTx, msg *domain.StudentEnrollmentMessage) (*domain.ClassGroup, error) {
	cg, err := tx.LockClassGroup(ctx, msg.ClassGroupID, msg.MajorID, msg.StartAcademicYear)
	if err != nil {
		return nil, err
	}
	if cg == nil {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "class group %d not found in the student's curriculum", msg.ClassGroupID)
	}
	return cg, nil
}

// writeThrough records the outcome in the status ledger. Its failure is
// never returned: the relational side has already committed.
func (w *EnrollmentWorker) writeThrough(ctx context.Context, msg *domain.StudentEnrollmentMessage, result *serviceInterfaces.WorkResult, log *logrus.Entry) {
	update := &domain.StatusLedgerUpdate{
		BatchID:         msg.BatchID,
		ClassGroupID:    msg.ClassGroupID,
		StudentID:       msg.StudentID,
		Status:          result.Status,
		Action:          msg.Action(),
		RdbEnrollmentID: result.EnrollmentID,
		FailureReason:   result.Reason,
		UpdatedAt:       w.now(),
	}

	// The worker ctx may already be past its deadline after a lock timeout.
	writeCtx := context.WithoutCancel(ctx)
	err := w.ledger.UpdateOutcome(writeCtx, update)
	if err == nil {
		return
	}

	w.metrics.RecordLedgerWriteFailure()
	if result.Status == domain.EnrollmentStatusEnrolled {
		result.Status = domain.EnrollmentStatusEnrolledLedgerUpdateFailed
		result.Reason = fmt.Sprintf("relational store ENROLLED but status ledger update failed: %v", err)
		log.Errorf("CRITICAL: enrollment %d committed but status ledger update failed: %v", *result.EnrollmentID, err)
		return
	}

	if result.Reason != "" {
		result.Reason = fmt.Sprintf("%s. status ledger update failed: %v", result.Reason, err)
	} else {
		result.Reason = fmt.Sprintf("status ledger update failed: %v", err)
	}
	log.Errorf("CRITICAL: status ledger update failed for %s outcome: %v", result.Status, err)
}

func failureReason(err error) string {
	var appErr *appErrors.Error
	if !errors.As(err, &appErr) {
		return fmt.Sprintf("unknown error: %v", err)
	}
	if appErr.Retryable && appErr.Err != nil {
		return fmt.Sprintf("%s: %v", appErr.Message, appErr.Err)
	}
	return appErr.Message
}
