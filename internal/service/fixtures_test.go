package service

import (
	"context"
	"errors"

	domain "course-enrollment/internal/domain/enrollment"
	"course-enrollment/internal/domain/user"
	"course-enrollment/internal/infrastructure/ledger"
	"course-enrollment/internal/infrastructure/repository"
	interfaces "course-enrollment/internal/interfaces/infrastructure"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

const (
	testMajorID    = int64(7)
	testYear       = 2022
	testSemesterID = int64(1)
)

var (
	studentActor = user.Actor{UserID: 500, Role: user.RoleStudent}
	otherActor   = user.Actor{UserID: 501, Role: user.RoleStudent}
	adminActor   = user.Actor{UserID: 1, Role: user.RoleAdministrator}
	lecturer     = user.Actor{UserID: 2, Role: user.RoleLecturer}
)

// newFixtureStore seeds two students of major 7 / 2022 and these groups:
//
//	10  CS101  max 2, 1 registered, OPEN
//	11  MA201  max 30, OPEN
//	12  PH100  not in the curriculum
//	13  CS101  LOCKED
//	14  MA201  max 1, 1 registered, CLOSED
//	15  CS101  OPEN, semester 2
func newFixtureStore() *repository.MemoryStore {
	store := repository.NewMemoryStore()
	store.AddSemester(&domain.Semester{ID: 1, SemesterCode: "2025A", Name: "Spring 2025"})
	store.AddSemester(&domain.Semester{ID: 2, SemesterCode: "2025B", Name: "Fall 2025"})
	store.AddStudent(&domain.Student{ID: 55, UserID: 500, StudentCode: "S55", MajorID: testMajorID, AcademicYear: testYear})
	store.AddStudent(&domain.Student{ID: 56, UserID: 501, StudentCode: "S56", MajorID: testMajorID, AcademicYear: testYear})

	store.AddCourse(&domain.Course{ID: 3, Code: "CS101", Name: "Programming", Credits: 3}, testMajorID, testYear)
	store.AddCourse(&domain.Course{ID: 4, Code: "MA201", Name: "Calculus", Credits: 4}, testMajorID, testYear)
	store.AddCourse(&domain.Course{ID: 5, Code: "PH100", Name: "Physics", Credits: 3}, 8, testYear)

	store.AddClassGroup(&domain.ClassGroup{ID: 10, CourseID: 3, SemesterID: 1, GroupNumber: 1, MaxStudents: 2, RegisteredStudents: 1, Status: domain.ClassGroupStatusOpenForRegister})
	store.AddClassGroup(&domain.ClassGroup{ID: 11, CourseID: 4, SemesterID: 1, GroupNumber: 1, MaxStudents: 30, Status: domain.ClassGroupStatusOpenForRegister})
	store.AddClassGroup(&domain.ClassGroup{ID: 12, CourseID: 5, SemesterID: 1, GroupNumber: 1, MaxStudents: 30, Status: domain.ClassGroupStatusOpenForRegister})
	store.AddClassGroup(&domain.ClassGroup{ID: 13, CourseID: 3, SemesterID: 1, GroupNumber: 2, MaxStudents: 30, Status: domain.ClassGroupStatusLocked})
	store.AddClassGroup(&domain.ClassGroup{ID: 14, CourseID: 4, SemesterID: 1, GroupNumber: 2, MaxStudents: 1, RegisteredStudents: 1, Status: domain.ClassGroupStatusClosedForRegister})
	store.AddClassGroup(&domain.ClassGroup{ID: 15, CourseID: 3, SemesterID: 2, GroupNumber: 1, MaxStudents: 30, Status: domain.ClassGroupStatusOpenForRegister})
	return store
}

func setSetting(store *repository.MemoryStore, key, value string) {
	_ = store.Settings().Upsert(context.Background(), &domain.Setting{Key: key, Value: datatypes.JSON(value)})
}

func addSchedule(store *repository.MemoryStore, classGroupID int64, day domain.DayOfWeek, slot int64, dates ...string) {
	store.AddSchedule(&domain.ClassWeeklySchedule{
		ClassGroupID:   classGroupID,
		DayOfWeek:      day,
		TimeSlotID:     slot,
		ScheduledDates: pq.StringArray(dates),
	})
}

func enrollMsg(studentID, classGroupID int64, batchID string) *domain.StudentEnrollmentMessage {
	return &domain.StudentEnrollmentMessage{
		StudentID:         studentID,
		ClassGroupID:      classGroupID,
		MajorID:           testMajorID,
		StartAcademicYear: testYear,
		BatchID:           batchID,
		IsRegistration:    true,
	}
}

func unenrollMsg(studentID, classGroupID int64, batchID string) *domain.StudentEnrollmentMessage {
	m := enrollMsg(studentID, classGroupID, batchID)
	m.IsRegistration = false
	return m
}

func ledgerEntry(t interface{ Fatalf(string, ...any) }, l interfaces.StatusLedger, batchID string, classGroupID int64) *domain.StatusLedgerEntry {
	entries, err := l.QueryByBatch(context.Background(), batchID)
	if err != nil {
		t.Fatalf("query ledger: %v", err)
	}
	for _, e := range entries {
		if e.ClassGroupID == domain.ClassGroupKey(classGroupID) {
			return e
		}
	}
	return nil
}

// failingLedger accepts PENDING writes and rejects every outcome update.
type failingLedger struct {
	*ledger.MemoryLedger
}

func newFailingLedger() *failingLedger {
	return &failingLedger{MemoryLedger: ledger.NewMemoryLedger()}
}

func (l *failingLedger) UpdateOutcome(ctx context.Context, update *domain.StatusLedgerUpdate) error {
	return errors.New("ProvisionedThroughputExceededException")
}

// pendingFailingLedger rejects the PENDING write of one class group.
type pendingFailingLedger struct {
	*ledger.MemoryLedger
	failFor int64
}

func (l *pendingFailingLedger) PutPending(ctx context.Context, entry *domain.StatusLedgerEntry) error {
	if entry.ClassGroupID == domain.ClassGroupKey(l.failFor) {
		return errors.New("ConditionalCheckFailedException")
	}
	return l.MemoryLedger.PutPending(ctx, entry)
}

// recordingProducer remembers the group key of every published message.
type recordingProducer struct {
	next      interfaces.MessageProducer
	groupKeys []string
}

func (p *recordingProducer) Publish(ctx context.Context, msg *interfaces.OutboundMessage) error {
	p.groupKeys = append(p.groupKeys, msg.GroupKey)
	return p.next.Publish(ctx, msg)
}

func (p *recordingProducer) Close() error { return p.next.Close() }

// failingProducer rejects every publish.
type failingProducer struct{}

func (failingProducer) Publish(ctx context.Context, msg *interfaces.OutboundMessage) error {
	return errors.New("queue unavailable")
}

func (failingProducer) Close() error { return nil }

// stubUnitOfWork returns err from every transaction.
type stubUnitOfWork struct {
	err   error
	calls int
}

func (u *stubUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.EnrollmentTx) error) error {
	u.calls++
	return u.err
}
