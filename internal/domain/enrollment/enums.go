package domain

import "fmt"

// EnrollmentStatus values are persisted in the enrollments table and in the
// status ledger, so the numeric values must stay stable.
type EnrollmentStatus int

const (
	EnrollmentStatusEnrolled                   EnrollmentStatus = 0
	EnrollmentStatusPassed                     EnrollmentStatus = 1
	EnrollmentStatusFailed                     EnrollmentStatus = 2
	EnrollmentStatusWithdrawn                  EnrollmentStatus = 3
	EnrollmentStatusCancelled                  EnrollmentStatus = 4
	EnrollmentStatusPending                    EnrollmentStatus = 5
	EnrollmentStatusEnrolledLedgerUpdateFailed EnrollmentStatus = 6
)

func (s EnrollmentStatus) String() string {
	switch s {
	case EnrollmentStatusEnrolled:
		return "ENROLLED"
	case EnrollmentStatusPassed:
		return "PASSED"
	case EnrollmentStatusFailed:
		return "FAILED"
	case EnrollmentStatusWithdrawn:
		return "WITHDRAWN"
	case EnrollmentStatusCancelled:
		return "CANCELLED"
	case EnrollmentStatusPending:
		return "PENDING"
	case EnrollmentStatusEnrolledLedgerUpdateFailed:
		return "ENROLLED_DYNAMODB_UPDATE_FAILED"
	default:
		return fmt.Sprintf("EnrollmentStatus(%d)", int(s))
	}
}

// Reusable reports whether an existing row in this status may be flipped back
// to ENROLLED instead of inserting a new one.
func (s EnrollmentStatus) Reusable() bool {
	return s == EnrollmentStatusCancelled || s == EnrollmentStatusFailed
}

type ClassGroupStatus int

const (
	ClassGroupStatusOpenForRegister   ClassGroupStatus = 1
	ClassGroupStatusLocked            ClassGroupStatus = 2
	ClassGroupStatusCancelled         ClassGroupStatus = 3
	ClassGroupStatusInProgress        ClassGroupStatus = 4
	ClassGroupStatusClosedForRegister ClassGroupStatus = 5
)

func (s ClassGroupStatus) String() string {
	switch s {
	case ClassGroupStatusOpenForRegister:
		return "OPEN_FOR_REGISTER"
	case ClassGroupStatusLocked:
		return "LOCKED"
	case ClassGroupStatusCancelled:
		return "CANCELLED"
	case ClassGroupStatusInProgress:
		return "IN_PROGRESS"
	case ClassGroupStatusClosedForRegister:
		return "CLOSED_FOR_REGISTER"
	default:
		return fmt.Sprintf("ClassGroupStatus(%d)", int(s))
	}
}

type DayOfWeek int

const (
	Monday    DayOfWeek = 1
	Tuesday   DayOfWeek = 2
	Wednesday DayOfWeek = 3
	Thursday  DayOfWeek = 4
	Friday    DayOfWeek = 5
	Saturday  DayOfWeek = 6
	Sunday    DayOfWeek = 7
)

func (d DayOfWeek) String() string {
	switch d {
	case Monday:
		return "MONDAY"
	case Tuesday:
		return "TUESDAY"
	case Wednesday:
		return "WEDNESDAY"
	case Thursday:
		return "THURSDAY"
	case Friday:
		return "FRIDAY"
	case Saturday:
		return "SATURDAY"
	case Sunday:
		return "SUNDAY"
	default:
		return fmt.Sprintf("DayOfWeek(%d)", int(d))
	}
}

// EnrollmentAction is recorded on status ledger entries.
type EnrollmentAction string

const (
	ActionEnroll   EnrollmentAction = "ENROLL"
	ActionUnenroll EnrollmentAction = "UNENROLL"
)
