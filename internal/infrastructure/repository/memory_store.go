package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	domain "course-enrollment/internal/domain/enrollment"
	"course-enrollment/internal/infrastructure/database"
	interfaces "course-enrollment/internal/interfaces/infrastructure"
	appErrors "course-enrollment/pkg/errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// MemoryStore is an in-memory implementation of every enrollment repository
// and of the enrollment unit of work, for tests and local demos. Transactions
// run on a copy of the mutable tables and are serialised by one mutex.
type MemoryStore struct {
	mu   sync.Mutex
	data *memoryData
}

type memoryData struct {
	students          map[int64]*domain.Student
	semesters         map[int64]*domain.Semester
	courses           map[int64]*domain.Course
	curriculums       map[int64]*domain.Curriculum
	curriculumCourses []*domain.CurriculumCourse
	classGroups       map[int64]*domain.ClassGroup
	enrollments       map[int64]*domain.Enrollment
	schedules         []*domain.ClassWeeklySchedule
	settings          map[string]*domain.Setting
	nextID            int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: &memoryData{
			students:    make(map[int64]*domain.Student),
			semesters:   make(map[int64]*domain.Semester),
			courses:     make(map[int64]*domain.Course),
			curriculums: make(map[int64]*domain.Curriculum),
			classGroups: make(map[int64]*domain.ClassGroup),
			enrollments: make(map[int64]*domain.Enrollment),
			settings:    make(map[string]*domain.Setting),
			nextID:      1000,
		},
	}
}

// cloneMutable copies the tables a transaction may write.
func (d *memoryData) cloneMutable() *memoryData {
	c := *d
	c.classGroups = make(map[int64]*domain.ClassGroup, len(d.classGroups))
	for id, cg := range d.classGroups {
		cp := *cg
		c.classGroups[id] = &cp
	}
	c.enrollments = make(map[int64]*domain.Enrollment, len(d.enrollments))
	for id, e := range d.enrollments {
		cp := *e
		c.enrollments[id] = &cp
	}
	return &c
}

func (d *memoryData) curriculumHasCourse(courseID, majorID int64, startAcademicYear int) bool {
	for _, cc := range d.curriculumCourses {
		if cc.CourseID != courseID {
			continue
		}
		cu, ok := d.curriculums[cc.CurriculumID]
		if ok && cu.MajorID == majorID && cu.StartAcademicYear == startAcademicYear {
			return true
		}
	}
	return false
}

func (d *memoryData) hasOtherEnrolled(id, studentID, classGroupID int64) bool {
	for _, e := range d.enrollments {
		if e.ID != id && e.StudentID == studentID && e.ClassGroupID == classGroupID && e.Status == domain.EnrollmentStatusEnrolled {
			return true
		}
	}
	return false
}

// Seeding

func (s *MemoryStore) AddStudent(student *domain.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *student
	s.data.students[student.ID] = &cp
}

func (s *MemoryStore) AddSemester(semester *domain.Semester) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *semester
	s.data.semesters[semester.ID] = &cp
}

// AddCourse registers a course and places it in the curriculum of the given
// major and admission year, creating the curriculum when needed.
func (s *MemoryStore) AddCourse(course *domain.Course, majorID int64, startAcademicYear int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *course
	s.data.courses[course.ID] = &cp

	var curriculumID int64
	for id, cu := range s.data.curriculums {
		if cu.MajorID == majorID && cu.StartAcademicYear == startAcademicYear {
			curriculumID = id
			break
		}
	}
	if curriculumID == 0 {
		s.data.nextID++
		curriculumID = s.data.nextID
		s.data.curriculums[curriculumID] = &domain.Curriculum{ID: curriculumID, MajorID: majorID, StartAcademicYear: startAcademicYear}
	}
	s.data.nextID++
	s.data.curriculumCourses = append(s.data.curriculumCourses, &domain.CurriculumCourse{
		ID:           s.data.nextID,
		CurriculumID: curriculumID,
		CourseID:     course.ID,
	})
}

func (s *MemoryStore) AddClassGroup(classGroup *domain.ClassGroup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *classGroup
	s.data.classGroups[classGroup.ID] = &cp
}

func (s *MemoryStore) AddSchedule(schedule *domain.ClassWeeklySchedule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *schedule
	s.data.schedules = append(s.data.schedules, &cp)
}

func (s *MemoryStore) AddEnrollment(enrollment *domain.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *enrollment
	if cp.ID == 0 {
		s.data.nextID++
		cp.ID = s.data.nextID
	}
	s.data.enrollments[cp.ID] = &cp
	enrollment.ID = cp.ID
}

// Inspection

func (s *MemoryStore) ClassGroup(id int64) *domain.ClassGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	cg, ok := s.data.classGroups[id]
	if !ok {
		return nil
	}
	cp := *cg
	return &cp
}

// EnrollmentsFor returns every row for a pair ordered by id.
func (s *MemoryStore) EnrollmentsFor(studentID, classGroupID int64) []domain.Enrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	var result []domain.Enrollment
	for _, e := range s.data.enrollments {
		if e.StudentID == studentID && e.ClassGroupID == classGroupID {
			result = append(result, *e)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

// Repository views

func (s *MemoryStore) Students() interfaces.StudentRepository       { return memoryStudents{s} }
func (s *MemoryStore) Semesters() interfaces.SemesterRepository     { return memorySemesters{s} }
func (s *MemoryStore) ClassGroups() interfaces.ClassGroupRepository { return memoryClassGroups{s} }
func (s *MemoryStore) Enrollments() interfaces.EnrollmentRepository { return memoryEnrollments{s} }
func (s *MemoryStore) Schedules() interfaces.ScheduleRepository     { return memorySchedules{s} }
func (s *MemoryStore) Settings() interfaces.SettingRepository       { return memorySettings{s} }
func (s *MemoryStore) UnitOfWork() interfaces.EnrollmentUnitOfWork  { return memoryUnitOfWork{s} }

type memoryStudents struct{ s *MemoryStore }

func (r memoryStudents) GetByID(ctx context.Context, id int64) (*domain.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if st, ok := r.s.data.students[id]; ok {
		cp := *st
		return &cp, nil
	}
	return nil, nil
}

func (r memoryStudents) GetByUserID(ctx context.Context, userID int64) (*domain.Student, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.data.students {
		if st.UserID == userID {
			cp := *st
			return &cp, nil
		}
	}
	return nil, nil
}

type memorySemesters struct{ s *MemoryStore }

func (r memorySemesters) GetByID(ctx context.Context, id int64) (*domain.Semester, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if sem, ok := r.s.data.semesters[id]; ok {
		cp := *sem
		return &cp, nil
	}
	return nil, nil
}

func (r memorySemesters) GetByCode(ctx context.Context, semesterCode string) (*domain.Semester, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, sem := range r.s.data.semesters {
		if sem.SemesterCode == semesterCode {
			cp := *sem
			return &cp, nil
		}
	}
	return nil, nil
}

type memoryClassGroups struct{ s *MemoryStore }

func (r memoryClassGroups) GetByID(ctx context.Context, id int64) (*domain.ClassGroup, error) {
	return r.s.ClassGroup(id), nil
}

func (r memoryClassGroups) GetByIDsForCurriculum(ctx context.Context, ids []int64, majorID int64, startAcademicYear int) ([]*domain.ClassGroup, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*domain.ClassGroup
	for _, id := range ids {
		cg, ok := r.s.data.classGroups[id]
		if !ok || !r.s.data.curriculumHasCourse(cg.CourseID, majorID, startAcademicYear) {
			continue
		}
		cp := *cg
		if course, ok := r.s.data.courses[cg.CourseID]; ok {
			c := *course
			cp.Course = &c
		}
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type memoryEnrollments struct{ s *MemoryStore }

func (r memoryEnrollments) GetByStudentAndClassGroups(ctx context.Context, studentID int64, classGroupIDs []int64) ([]*domain.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[int64]bool, len(classGroupIDs))
	for _, id := range classGroupIDs {
		wanted[id] = true
	}
	var result []*domain.Enrollment
	for _, e := range r.s.data.enrollments {
		if e.StudentID == studentID && wanted[e.ClassGroupID] {
			cp := *e
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (r memoryEnrollments) GetEnrolledBySemester(ctx context.Context, studentID, semesterID int64) ([]*domain.Enrollment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var result []*domain.Enrollment
	for _, e := range r.s.data.enrollments {
		if e.StudentID != studentID || e.Status != domain.EnrollmentStatusEnrolled {
			continue
		}
		cg, ok := r.s.data.classGroups[e.ClassGroupID]
		if !ok || cg.SemesterID != semesterID {
			continue
		}
		cp := *e
		cgCopy := *cg
		if course, ok := r.s.data.courses[cg.CourseID]; ok {
			c := *course
			cgCopy.Course = &c
		}
		cp.ClassGroup = &cgCopy
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

type memorySchedules struct{ s *MemoryStore }

func (r memorySchedules) GetByClassGroupIDs(ctx context.Context, classGroupIDs []int64) ([]*domain.ClassWeeklySchedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[int64]bool, len(classGroupIDs))
	for _, id := range classGroupIDs {
		wanted[id] = true
	}
	var result []*domain.ClassWeeklySchedule
	for _, sc := range r.s.data.schedules {
		if wanted[sc.ClassGroupID] {
			cp := *sc
			result = append(result, &cp)
		}
	}
	return result, nil
}

type memorySettings struct{ s *MemoryStore }

func (r memorySettings) GetAll(ctx context.Context) ([]*domain.Setting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	result := make([]*domain.Setting, 0, len(r.s.data.settings))
	for _, st := range r.s.data.settings {
		cp := *st
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

func (r memorySettings) Upsert(ctx context.Context, setting *domain.Setting) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *setting
	cp.UpdatedAt = time.Now().UTC()
	r.s.data.settings[setting.Key] = &cp
	return nil
}

type memoryUnitOfWork struct{ s *MemoryStore }

func (u memoryUnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.EnrollmentTx) error) error {
	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return appErrors.WithCause(appErrors.Clone(appErrors.ErrUnavailable, "failed to begin enrollment transaction"), err)
	}

	working := u.s.data.cloneMutable()
	if err := fn(ctx, &memoryTx{data: working}); err != nil {
		return database.TranslateError(err)
	}
	u.s.data = working
	return nil
}

type memoryTx struct {
	data *memoryData
}

func (t *memoryTx) LockClassGroup(ctx context.Context, classGroupID, majorID int64, startAcademicYear int) (*domain.ClassGroup, error) {
	cg, ok := t.data.classGroups[classGroupID]
	if !ok || !t.data.curriculumHasCourse(cg.CourseID, majorID, startAcademicYear) {
		return nil, nil
	}
	cp := *cg
	return &cp, nil
}

func (t *memoryTx) FindEnrollment(ctx context.Context, studentID, classGroupID int64) (*domain.Enrollment, error) {
	var best *domain.Enrollment
	for _, e := range t.data.enrollments {
		if e.StudentID != studentID || e.ClassGroupID != classGroupID {
			continue
		}
		switch {
		case best == nil:
			best = e
		case e.Status == domain.EnrollmentStatusEnrolled && best.Status != domain.EnrollmentStatusEnrolled:
			best = e
		case (e.Status == domain.EnrollmentStatusEnrolled) == (best.Status == domain.EnrollmentStatusEnrolled) && e.ID > best.ID:
			best = e
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (t *memoryTx) CreateEnrollment(ctx context.Context, enrollment *domain.Enrollment) error {
	if enrollment.Status == domain.EnrollmentStatusEnrolled && t.data.hasOtherEnrolled(0, enrollment.StudentID, enrollment.ClassGroupID) {
		return &pgconn.PgError{Code: database.SQLStateUniqueViolation, Message: "duplicate key value violates unique constraint \"uq_enrollments_active\""}
	}
	t.data.nextID++
	enrollment.ID = t.data.nextID
	now := time.Now().UTC()
	enrollment.CreatedAt = now
	enrollment.UpdatedAt = now
	cp := *enrollment
	t.data.enrollments[cp.ID] = &cp
	return nil
}

func (t *memoryTx) UpdateEnrollmentStatus(ctx context.Context, enrollmentID int64, status domain.EnrollmentStatus, at time.Time) error {
	e, ok := t.data.enrollments[enrollmentID]
	if !ok {
		return appErrors.Clonef(appErrors.ErrNotFound, "enrollment %d not found", enrollmentID)
	}
	if status == domain.EnrollmentStatusEnrolled && t.data.hasOtherEnrolled(e.ID, e.StudentID, e.ClassGroupID) {
		return &pgconn.PgError{Code: database.SQLStateUniqueViolation, Message: "duplicate key value violates unique constraint \"uq_enrollments_active\""}
	}
	e.Status = status
	e.UpdatedAt = at
	if status == domain.EnrollmentStatusEnrolled {
		e.EnrollmentDate = at
	}
	return nil
}

func (t *memoryTx) SaveClassGroupCapacity(ctx context.Context, classGroup *domain.ClassGroup) error {
	cg, ok := t.data.classGroups[classGroup.ID]
	if !ok {
		return appErrors.Clonef(appErrors.ErrNotFound, "class group %d not found", classGroup.ID)
	}
	if classGroup.RegisteredStudents < 0 || classGroup.RegisteredStudents > cg.MaxStudents {
		return appErrors.Clonef(appErrors.ErrInternal, "class group %d capacity check violated", classGroup.ID)
	}
	cg.RegisteredStudents = classGroup.RegisteredStudents
	cg.Status = classGroup.Status
	cg.UpdatedAt = time.Now().UTC()
	return nil
}
