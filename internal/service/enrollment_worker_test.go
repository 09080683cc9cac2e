package service

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "course-enrollment/internal/domain/enrollment"
	"course-enrollment/internal/infrastructure/ledger"
	"course-enrollment/internal/infrastructure/queue"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	appErrors "course-enrollment/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnrollmentWorker_CapacityScenario(t *testing.T) {
	store := newFixtureStore()
	l := ledger.NewMemoryLedger()
	worker := NewEnrollmentWorker(store.UnitOfWork(), l, nil)
	ctx := context.Background()

	res, err := worker.Process(ctx, enrollMsg(55, 10, "b1"), false)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentStatusEnrolled, res.Status)
	require.NotNil(t, res.EnrollmentID)
	cg := store.ClassGroup(10)
	assert.Equal(t, 2, cg.RegisteredStudents)
	assert.Equal(t, domain.ClassGroupStatusClosedForRegister, cg.Status)

	res, err = worker.Process(ctx, enrollMsg(56, 10, "b2"), false)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentStatusFailed, res.Status)
	assert.Contains(t, res.Reason, "full")
	assert.Empty(t, store.EnrollmentsFor(56, 10))
	assert.Equal(t, 2, store.ClassGroup(10).RegisteredStudents)

	res, err = worker.Process(ctx, unenrollMsg(55, 10, "b3"), false)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentStatusCancelled, res.Status)
	cg = store.ClassGroup(10)
	assert.Equal(t, 1, cg.RegisteredStudents)
	assert.Equal(t, domain.ClassGroupStatusOpenForRegister, cg.Status)

	entry := ledgerEntry(t, l, "b2", 10)
	require.NotNil(t, entry)
	assert.Equal(t, domain.EnrollmentStatusFailed, entry.Status)
	assert.Contains(t, entry.FailureReason, "full")
}

func TestEnrollmentWorker_RedeliveryIsIdempotent(t *testing.T) {
	store := newFixtureStore()
	worker := NewEnrollmentWorker(store.UnitOfWork(), ledger.NewMemoryLedger(), nil)
	ctx := context.Background()
	msg := enrollMsg(55, 11, "b1")

	first, err := worker.Process(ctx, msg, false)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentStatusEnrolled, first.Status)

	second, err := worker.Process(ctx, msg, false)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentStatusFailed, second.Status)
	assert.Contains(t, second.Reason, "already enrolled")

	assert.Equal(t, 1, store.ClassGroup(11).RegisteredStudents)
	assert.Len(t, store.EnrollmentsFor(55, 11), 1)
}

func TestEnrollmentWorker_RoundTripReusesRow(t *testing.T) {
	store := newFixtureStore()
	worker := NewEnrollmentWorker(store.UnitOfWork(), ledger.NewMemoryLedger(), nil)
	ctx := context.Background()
	before := store.ClassGroup(11).RegisteredStudents

	enrolled, err := worker.Process(ctx, enrollMsg(55, 11, "b1"), false)
	require.NoError(t, err)
	cancelled, err := worker.Process(ctx, unenrollMsg(55, 11, "b2"), false)
	require.NoError(t, err)
	assert.Equal(t, before, store.ClassGroup(11).RegisteredStudents)
	again, err := worker.Process(ctx, enrollMsg(55, 11, "b3"), false)
	require.NoError(t, err)

	require.Equal(t, domain.EnrollmentStatusEnrolled, again.Status)
	assert.Equal(t, *enrolled.EnrollmentID, *cancelled.EnrollmentID)
	assert.Equal(t, *enrolled.EnrollmentID, *again.EnrollmentID)

	rows := store.EnrollmentsFor(55, 11)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.EnrollmentStatusEnrolled, rows[0].Status)
	assert.Equal(t, before+1, store.ClassGroup(11).RegisteredStudents)
}

func TestEnrollmentWorker_LedgerFailureAfterCommit(t *testing.T) {
	store := newFixtureStore()
	worker := NewEnrollmentWorker(store.UnitOfWork(), newFailingLedger(), NewMetricsService())

	res, err := worker.Process(context.Background(), enrollMsg(55, 11, "b1"), false)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentStatusEnrolledLedgerUpdateFailed, res.Status)
	assert.Contains(t, res.Reason, "ProvisionedThroughputExceededException")
	require.NotNil(t, res.EnrollmentID)

	rows := store.EnrollmentsFor(55, 11)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.EnrollmentStatusEnrolled, rows[0].Status)
	assert.Equal(t, 1, store.ClassGroup(11).RegisteredStudents)
}

func TestEnrollmentWorker_LedgerFailureAppendsToReason(t *testing.T) {
	store := newFixtureStore()
	worker := NewEnrollmentWorker(store.UnitOfWork(), newFailingLedger(), nil)

	res, err := worker.Process(context.Background(), unenrollMsg(55, 11, "b1"), false)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentStatusFailed, res.Status)
	assert.Contains(t, res.Reason, "has no enrollment")
	assert.Contains(t, res.Reason, ". status ledger update failed: ProvisionedThroughputExceededException")
}

func TestEnrollmentWorker_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		msg    *domain.StudentEnrollmentMessage
		reason string
	}{
		{"not in curriculum", enrollMsg(55, 12, "b"), "not found in the student's curriculum"},
		{"locked group", enrollMsg(55, 13, "b"), "not open for registration"},
		{"unknown group", enrollMsg(55, 99, "b"), "not found"},
		{"unenroll without row", unenrollMsg(55, 11, "b"), "has no enrollment"},
		{"unenroll locked group", unenrollMsg(55, 13, "b"), "is LOCKED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFixtureStore()
			l := ledger.NewMemoryLedger()
			worker := NewEnrollmentWorker(store.UnitOfWork(), l, nil)

			res, err := worker.Process(context.Background(), tt.msg, false)
			require.NoError(t, err)
			assert.Equal(t, domain.EnrollmentStatusFailed, res.Status)
			assert.Contains(t, res.Reason, tt.reason)
			assert.Nil(t, res.EnrollmentID)

			entry := ledgerEntry(t, l, "b", tt.msg.ClassGroupID)
			require.NotNil(t, entry)
			assert.Equal(t, domain.EnrollmentStatusFailed, entry.Status)
			assert.Equal(t, res.Reason, entry.FailureReason)
		})
	}
}

func TestEnrollmentWorker_UnenrollCancelledRow(t *testing.T) {
	store := newFixtureStore()
	store.AddEnrollment(&domain.Enrollment{StudentID: 55, ClassGroupID: 11, Status: domain.EnrollmentStatusCancelled})
	worker := NewEnrollmentWorker(store.UnitOfWork(), ledger.NewMemoryLedger(), nil)

	res, err := worker.Process(context.Background(), unenrollMsg(55, 11, "b"), false)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentStatusFailed, res.Status)
	assert.Contains(t, res.Reason, "not ENROLLED")
}

func TestEnrollmentWorker_LockTimeoutRetriesUntilFinalAttempt(t *testing.T) {
	l := ledger.NewMemoryLedger()
	require.NoError(t, l.PutPending(context.Background(), domain.NewPendingEntry("b1", 11, 55, 1, domain.ActionEnroll, time.Now())))

	uow := &stubUnitOfWork{err: appErrors.WithCause(appErrors.ErrLockTimeout, errors.New("canceling statement due to lock timeout"))}
	worker := NewEnrollmentWorker(uow, l, nil)

	res, err := worker.Process(context.Background(), enrollMsg(55, 11, "b1"), false)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, appErrors.IsRetryable(err))
	assert.Equal(t, domain.EnrollmentStatusPending, ledgerEntry(t, l, "b1", 11).Status)

	res, err = worker.Process(context.Background(), enrollMsg(55, 11, "b1"), true)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentStatusFailed, res.Status)
	assert.Contains(t, res.Reason, "timed out waiting for row lock")
	assert.Equal(t, domain.EnrollmentStatusFailed, ledgerEntry(t, l, "b1", 11).Status)
	assert.Equal(t, 2, uow.calls)
}

func TestEnrollmentWorker_UnknownErrorIsNotRetried(t *testing.T) {
	uow := &stubUnitOfWork{err: errors.New("connection reset by peer")}
	worker := NewEnrollmentWorker(uow, ledger.NewMemoryLedger(), nil)

	res, err := worker.Process(context.Background(), enrollMsg(55, 11, "b1"), false)
	require.NoError(t, err)
	assert.Equal(t, domain.EnrollmentStatusFailed, res.Status)
	assert.Equal(t, "unknown error: connection reset by peer", res.Reason)
}

// Two students race for the last seat of group 10 through the partitioned
// queue; the first published wins.
func TestEnrollmentWorker_SameGroupOrderedThroughQueue(t *testing.T) {
	store := newFixtureStore()
	l := ledger.NewMemoryLedger()
	worker := NewEnrollmentWorker(store.UnitOfWork(), l, nil)
	dispatcher := NewMessageDispatcher(worker)

	q := queue.NewInMemoryQueue(16, queue.Options{Partitions: 4, MaxAttempts: 2, RetryBackoff: time.Millisecond})
	ctx := context.Background()
	for _, m := range []*domain.StudentEnrollmentMessage{enrollMsg(55, 10, "bA"), enrollMsg(56, 10, "bB")} {
		body, err := domain.NewEnvelope(domain.MessageTypeStudentEnrollment, m)
		require.NoError(t, err)
		require.NoError(t, q.Publish(ctx, &interfaces.OutboundMessage{GroupKey: m.GroupKey(), DeduplicationID: m.DeduplicationID(), Body: body}))
	}

	require.NoError(t, q.Start(dispatcher.Handle))
	defer q.Stop()

	require.Eventually(t, func() bool {
		a := ledgerEntry(t, l, "bA", 10)
		b := ledgerEntry(t, l, "bB", 10)
		return a != nil && b != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, domain.EnrollmentStatusEnrolled, ledgerEntry(t, l, "bA", 10).Status)
	b := ledgerEntry(t, l, "bB", 10)
	assert.Equal(t, domain.EnrollmentStatusFailed, b.Status)
	assert.Contains(t, b.FailureReason, "full")
	assert.Equal(t, 2, store.ClassGroup(10).RegisteredStudents)
	assert.Empty(t, store.EnrollmentsFor(56, 10))
}
