package user

import "fmt"

// Role mirrors the numeric role carried in access tokens.
type Role int

const (
	RoleGuest            Role = 0
	RoleStudent          Role = 1
	RoleLecturer         Role = 2
	RoleAcademicManager  Role = 3
	RoleHeadOfDepartment Role = 4
	RoleAdministrator    Role = 5
)

func (r Role) String() string {
	switch r {
	case RoleGuest:
		return "GUEST"
	case RoleStudent:
		return "STUDENT"
	case RoleLecturer:
		return "LECTURER"
	case RoleAcademicManager:
		return "ACADEMIC_MANAGER"
	case RoleHeadOfDepartment:
		return "HEAD_OF_DEPARTMENT"
	case RoleAdministrator:
		return "ADMINISTRATOR"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

func (r Role) Valid() bool {
	return r >= RoleGuest && r <= RoleAdministrator
}

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID int64 `json:"user_id"`
	Role   Role  `json:"role"`
}

// CanActForStudents reports whether the actor may submit or read enrollments
// on behalf of another student.
func (a Actor) CanActForStudents() bool {
	return a.Role == RoleAdministrator || a.Role == RoleAcademicManager
}

func (a Actor) IsStudent() bool {
	return a.Role == RoleStudent
}
