package service

import (
	"context"
	"fmt"
	"time"

	domain "course-enrollment/internal/domain/enrollment"
	"course-enrollment/internal/domain/user"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	serviceInterfaces "course-enrollment/internal/interfaces/service"
	appErrors "course-enrollment/pkg/errors"
	"course-enrollment/pkg/logger"

	"github.com/sirupsen/logrus"
)

const (
	BatchResultAccepted = "accepted"
	BatchResultRejected = "rejected"
)

var _ serviceInterfaces.EnrollmentService = (*EnrollmentService)(nil)

type EnrollmentService struct {
	studentRepo    interfaces.StudentRepository
	semesterRepo   interfaces.SemesterRepository
	classGroupRepo interfaces.ClassGroupRepository
	enrollmentRepo interfaces.EnrollmentRepository
	checker        *ConflictChecker
	settings       serviceInterfaces.SettingService
	ledger         interfaces.StatusLedger
	producer       interfaces.MessageProducer
	batchIDs       *BatchIDGenerator
	metrics        *MetricsService
	now            func() time.Time
}

func NewEnrollmentService(
	studentRepo interfaces.StudentRepository,
	semesterRepo interfaces.SemesterRepository,
	classGroupRepo interfaces.ClassGroupRepository,
	enrollmentRepo interfaces.EnrollmentRepository,
	checker *ConflictChecker,
	settings serviceInterfaces.SettingService,
	ledger interfaces.StatusLedger,
	producer interfaces.MessageProducer,
	metrics *MetricsService,
) *EnrollmentService {
	return &EnrollmentService{
		studentRepo:    studentRepo,
		semesterRepo:   semesterRepo,
		classGroupRepo: classGroupRepo,
		enrollmentRepo: enrollmentRepo,
		checker:        checker,
		settings:       settings,
		ledger:         ledger,
		producer:       producer,
		batchIDs:       NewBatchIDGenerator(),
		metrics:        metrics,
		now:            time.Now,
	}
}

// SubmitBatch validates a batch, records a PENDING ledger entry per accepted
// class group and enqueues one work message each. It does not wait for the
// worker.
func (s *EnrollmentService) SubmitBatch(ctx context.Context, actor user.Actor, req *domain.BatchEnrollmentRequest) (*domain.BatchEnrollmentResponse, error) {
	resp, err := s.submitBatch(ctx, actor, req)
	if err != nil {
		s.metrics.RecordBatch(BatchResultRejected)
		return nil, err
	}
	s.metrics.RecordBatch(BatchResultAccepted)
	return resp, nil
}

func (s *EnrollmentService) submitBatch(ctx context.Context, actor user.Actor, req *domain.BatchEnrollmentRequest) (*domain.BatchEnrollmentResponse, error) {
	if req == nil || (len(req.RegisterClassGroupIDs) == 0 && len(req.CancelClassGroupIDs) == 0) {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "registerClassGroupIds or cancelClassGroupIds is required")
	}

	maintenance, err := s.settings.IsMaintenanceMode(ctx)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if maintenance {
		return nil, appErrors.ErrMaintenance
	}

	student, err := s.resolveStudent(ctx, actor, req.StudentID)
	if err != nil {
		return nil, err
	}

	registerIDs := uniqueIDs(req.RegisterClassGroupIDs)
	cancelIDs := uniqueIDs(req.CancelClassGroupIDs)
	for _, id := range cancelIDs {
		if containsID(registerIDs, id) {
			return nil, appErrors.Clonef(appErrors.ErrBadRequest, "class group %d cannot be registered and cancelled in the same batch", id)
		}
	}

	allIDs := append(append([]int64(nil), cancelIDs...), registerIDs...)
	classGroups, err := s.classGroupRepo.GetByIDsForCurriculum(ctx, allIDs, student.MajorID, student.AcademicYear)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	byID := make(map[int64]*domain.ClassGroup, len(classGroups))
	for _, cg := range classGroups {
		byID[cg.ID] = cg
	}

	semesterID, err := s.resolveSemester(ctx, req.SemesterID, allIDs, byID)
	if err != nil {
		return nil, err
	}

	if err := s.checker.Check(ctx, student.ID, semesterID, registerIDs); err != nil {
		logger.Warn("Rejecting batch for student %d: %v", student.ID, err)
		return nil, appErrors.FromError(err)
	}

	existing, err := s.enrollmentRepo.GetByStudentAndClassGroups(ctx, student.ID, allIDs)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	enrolled := make(map[int64]bool, len(existing))
	for _, e := range existing {
		if e.Status == domain.EnrollmentStatusEnrolled {
			enrolled[e.ClassGroupID] = true
		}
	}

	var items []domain.BatchItem
	for _, id := range cancelIDs {
		if reason := cancelSkipReason(byID[id], semesterID, enrolled[id]); reason != "" {
			logger.Info("Skipping cancellation of class group %d for student %d: %s", id, student.ID, reason)
			continue
		}
		items = append(items, domain.BatchItem{ClassGroupID: id, IsRegistered: false})
	}
	for _, id := range registerIDs {
		if reason := registerSkipReason(byID[id], semesterID, enrolled[id]); reason != "" {
			logger.Info("Skipping registration of class group %d for student %d: %s", id, student.ID, reason)
			continue
		}
		items = append(items, domain.BatchItem{ClassGroupID: id, IsRegistered: true})
	}
	if len(items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "no valid class groups")
	}

	batchID := s.batchIDs.Next(semesterID, student.StudentCode)
	log := logger.WithFields(logrus.Fields{
		"batch_id":   batchID,
		"student_id": student.ID,
	})

	accepted := make([]domain.BatchItem, 0, len(items))
	for _, item := range items {
		msg := &domain.StudentEnrollmentMessage{
			StudentID:         student.ID,
			ClassGroupID:      item.ClassGroupID,
			MajorID:           student.MajorID,
			StartAcademicYear: student.AcademicYear,
			BatchID:           batchID,
			IsRegistration:    item.IsRegistered,
		}

		entry := domain.NewPendingEntry(batchID, item.ClassGroupID, student.ID, semesterID, msg.Action(), s.now())
		if err := s.ledger.PutPending(ctx, entry); err != nil {
			log.WithField("class_group_id", item.ClassGroupID).Errorf("Failed to record pending status, skipping item: %v", err)
			continue
		}

		if err := s.publish(ctx, msg); err != nil {
			s.metrics.RecordPublish(false)
			log.WithField("class_group_id", item.ClassGroupID).Errorf("Failed to enqueue enrollment message: %v", err)
			s.markEnqueueFailed(ctx, msg, err)
			continue
		}
		s.metrics.RecordPublish(true)
		accepted = append(accepted, item)
	}

	if len(accepted) == 0 {
		return nil, appErrors.Clone(appErrors.ErrInternal, "no class group could be queued for processing")
	}

	log.Infof("Accepted batch with %d of %d class groups", len(accepted), len(items))
	return &domain.BatchEnrollmentResponse{
		BatchID:            batchID,
		SemesterID:         semesterID,
		ValidClassGroupIDs: accepted,
	}, nil
}

func (s *EnrollmentService) publish(ctx context.Context, msg *domain.StudentEnrollmentMessage) error {
	body, err := domain.NewEnvelope(domain.MessageTypeStudentEnrollment, msg)
	if err != nil {
		return err
	}
	return s.producer.Publish(ctx, &interfaces.OutboundMessage{
		GroupKey:        msg.GroupKey(),
		DeduplicationID: msg.DeduplicationID(),
		Body:            body,
	})
}

func (s *EnrollmentService) markEnqueueFailed(ctx context.Context, msg *domain.StudentEnrollmentMessage, cause error) {
	update := &domain.StatusLedgerUpdate{
		BatchID:       msg.BatchID,
		ClassGroupID:  msg.ClassGroupID,
		StudentID:     msg.StudentID,
		Status:        domain.EnrollmentStatusFailed,
		Action:        msg.Action(),
		FailureReason: fmt.Sprintf("failed to enqueue: %v", cause),
		UpdatedAt:     s.now(),
	}
	if err := s.ledger.UpdateOutcome(ctx, update); err != nil {
		logger.Warn("Failed to mark %s/%d as failed: %v", msg.BatchID, msg.ClassGroupID, err)
	}
}

// resolveStudent returns the student the batch is for. Students act only for
// themselves; staff may name any student.
func (s *EnrollmentService) resolveStudent(ctx context.Context, actor user.Actor, studentID *int64) (*domain.Student, error) {
	if studentID == nil {
		if !actor.IsStudent() {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only students may enroll without a studentId")
		}
		return s.ownStudent(ctx, actor)
	}

	switch {
	case actor.CanActForStudents():
		student, err := s.studentRepo.GetByID(ctx, *studentID)
		if err != nil {
			return nil, appErrors.FromError(err)
		}
		if student == nil {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "student %d not found", *studentID)
		}
		return student, nil
	case actor.IsStudent():
		student, err := s.ownStudent(ctx, actor)
		if err != nil {
			return nil, err
		}
		if student.ID != *studentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only enroll themselves")
		}
		return student, nil
	default:
		return nil, appErrors.Clonef(appErrors.ErrForbidden, "role %s may not enroll on behalf of students", actor.Role)
	}
}

func (s *EnrollmentService) ownStudent(ctx context.Context, actor user.Actor) (*domain.Student, error) {
	student, err := s.studentRepo.GetByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "user has no linked student profile")
	}
	return student, nil
}

// resolveSemester picks the batch semester: the requested one, else the
// current_semester setting, else the semester of the first eligible group.
func (s *EnrollmentService) resolveSemester(ctx context.Context, requested *int64, ids []int64, byID map[int64]*domain.ClassGroup) (int64, error) {
	if requested != nil {
		semester, err := s.semesterRepo.GetByID(ctx, *requested)
		if err != nil {
			return 0, appErrors.FromError(err)
		}
		if semester == nil {
			return 0, appErrors.Clonef(appErrors.ErrNotFound, "semester %d not found", *requested)
		}
		return semester.ID, nil
	}

	current, ok, err := s.settings.CurrentSemesterID(ctx)
	if err != nil {
		return 0, appErrors.FromError(err)
	}
	if ok {
		return current, nil
	}

	for _, id := range ids {
		if cg := byID[id]; cg != nil {
			return cg.SemesterID, nil
		}
	}
	return 0, appErrors.Clone(appErrors.ErrBadRequest, "no semester could be determined for this batch")
}

func registerSkipReason(cg *domain.ClassGroup, semesterID int64, enrolled bool) string {
	switch {
	case cg == nil:
		return "not found in curriculum"
	case cg.SemesterID != semesterID:
		return fmt.Sprintf("belongs to semester %d", cg.SemesterID)
	case cg.Status != domain.ClassGroupStatusOpenForRegister:
		return fmt.Sprintf("status is %s", cg.Status)
	case enrolled:
		return "already enrolled"
	}
	return ""
}

func cancelSkipReason(cg *domain.ClassGroup, semesterID int64, enrolled bool) string {
	switch {
	case cg == nil:
		return "not found in curriculum"
	case cg.SemesterID != semesterID:
		return fmt.Sprintf("belongs to semester %d", cg.SemesterID)
	case cg.Status != domain.ClassGroupStatusOpenForRegister:
		return fmt.Sprintf("status is %s", cg.Status)
	case !enrolled:
		return "not enrolled"
	}
	return ""
}

// GetBatchStatus returns the ledger rows of a batch.
func (s *EnrollmentService) GetBatchStatus(ctx context.Context, actor user.Actor, batchID string) (*domain.BatchStatusResponse, error) {
	entries, err := s.ledger.QueryByBatch(ctx, batchID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	if len(entries) == 0 {
		return nil, appErrors.Clonef(appErrors.ErrNotFound, "batch %s not found", batchID)
	}

	if !actor.CanActForStudents() {
		if !actor.IsStudent() {
			return nil, appErrors.ErrForbidden
		}
		student, err := s.ownStudent(ctx, actor)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.StudentID != student.ID {
				return nil, appErrors.Clone(appErrors.ErrForbidden, "batch belongs to another student")
			}
		}
	}

	resp := &domain.BatchStatusResponse{
		BatchID: batchID,
		Items:   make([]domain.BatchStatusItem, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Items = append(resp.Items, e.Project())
	}
	return resp, nil
}

// GetStudentEnrollments lists the ENROLLED rows of a student in a semester.
// A zero semesterID means the current semester.
func (s *EnrollmentService) GetStudentEnrollments(ctx context.Context, actor user.Actor, studentID, semesterID int64) ([]*domain.Enrollment, error) {
	switch {
	case actor.CanActForStudents():
		student, err := s.studentRepo.GetByID(ctx, studentID)
		if err != nil {
			return nil, appErrors.FromError(err)
		}
		if student == nil {
			return nil, appErrors.Clonef(appErrors.ErrNotFound, "student %d not found", studentID)
		}
	case actor.IsStudent():
		student, err := s.ownStudent(ctx, actor)
		if err != nil {
			return nil, err
		}
		if student.ID != studentID {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "students may only read their own enrollments")
		}
	default:
		return nil, appErrors.ErrForbidden
	}

	if semesterID == 0 {
		current, ok, err := s.settings.CurrentSemesterID(ctx)
		if err != nil {
			return nil, appErrors.FromError(err)
		}
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, "semester_id is required")
		}
		semesterID = current
	}

	enrollments, err := s.enrollmentRepo.GetEnrolledBySemester(ctx, studentID, semesterID)
	if err != nil {
		return nil, appErrors.FromError(err)
	}
	return enrollments, nil
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
