package domain

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

// Course represents a course in the catalogue
type Course struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Code      string    `json:"code" gorm:"unique;not null"`
	Name      string    `json:"name" gorm:"not null"`
	Credits   int       `json:"credits" gorm:"not null"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Semester represents an academic term
type Semester struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	SemesterCode string    `json:"semester_code" gorm:"unique;not null"`
	Name         string    `json:"name" gorm:"not null"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// Curriculum is the programme a cohort (major + admission year) follows
type Curriculum struct {
	ID                int64 `json:"id" gorm:"primaryKey"`
	MajorID           int64 `json:"major_id" gorm:"not null"`
	StartAcademicYear int   `json:"start_academic_year" gorm:"not null"`
	EndAcademicYear   int   `json:"end_academic_year"`
}

func (Curriculum) TableName() string { return "curriculums" }

type CurriculumCourse struct {
	ID           int64 `json:"id" gorm:"primaryKey"`
	CurriculumID int64 `json:"curriculum_id" gorm:"not null"`
	CourseID     int64 `json:"course_id" gorm:"not null"`
}

// Student is the academic profile linked to a user account
type Student struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	UserID       int64     `json:"user_id" gorm:"unique;not null"`
	StudentCode  string    `json:"student_code" gorm:"unique;not null"`
	MajorID      int64     `json:"major_id" gorm:"not null"`
	AcademicYear int       `json:"academic_year" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// ClassGroup is one section of a course in one semester. RegisteredStudents
// and Status are only written by the enrollment worker under a row lock.
type ClassGroup struct {
	ID                 int64            `json:"id" gorm:"primaryKey"`
	CourseID           int64            `json:"course_id" gorm:"not null"`
	SemesterID         int64            `json:"semester_id" gorm:"not null"`
	GroupNumber        int              `json:"group_number" gorm:"not null"`
	MaxStudents        int              `json:"max_students" gorm:"not null"`
	RegisteredStudents int              `json:"registered_students" gorm:"not null;default:0"`
	Status             ClassGroupStatus `json:"status" gorm:"not null"`
	CreatedAt          time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
	Course             *Course          `json:"course,omitempty" gorm:"foreignKey:CourseID"`
}

func (cg *ClassGroup) IsFull() bool {
	return cg.RegisteredStudents >= cg.MaxStudents
}

// Enrollment is one student's relationship to one class group.
type Enrollment struct {
	ID             int64            `json:"id" gorm:"primaryKey"`
	StudentID      int64            `json:"student_id" gorm:"not null"`
	ClassGroupID   int64            `json:"class_group_id" gorm:"not null"`
	Status         EnrollmentStatus `json:"status" gorm:"not null"`
	EnrollmentDate time.Time        `json:"enrollment_date"`
	CreatedAt      time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
	ClassGroup     *ClassGroup      `json:"class_group,omitempty" gorm:"foreignKey:ClassGroupID"`
}

// ClassWeeklySchedule is one weekly slot of a class group together with the
// concrete dates it is held on (YYYY-MM-DD).
type ClassWeeklySchedule struct {
	ID             int64          `json:"id" gorm:"primaryKey"`
	ClassGroupID   int64          `json:"class_group_id" gorm:"not null"`
	DayOfWeek      DayOfWeek      `json:"day_of_week" gorm:"not null"`
	TimeSlotID     int64          `json:"time_slot_id" gorm:"not null"`
	RoomID         *int64         `json:"room_id,omitempty"`
	ScheduledDates pq.StringArray `json:"scheduled_dates" gorm:"type:text[]"`
}

// Setting is a key/value runtime setting such as current_semester.
type Setting struct {
	Key         string         `json:"key" gorm:"primaryKey"`
	Value       datatypes.JSON `json:"value" gorm:"type:jsonb"`
	Description string         `json:"description"`
	UpdatedAt   time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

const (
	SettingCurrentSemester       = "current_semester"
	SettingSystemMaintenanceMode = "system_maintenance_mode"
)
