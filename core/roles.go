package core

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleDirector Role = "director"
	RoleTeacher  Role = "teacher"
	RoleStudent  Role = "student"
	RoleParent   Role = "parent"
)

var AllRoles = []Role{RoleAdmin, RoleDirector, RoleTeacher, RoleStudent, RoleParent}

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

// IsStaff reports whether the role belongs to school staff.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleDirector || r == RoleTeacher
}

// IsManagement reports whether the role is admin or director.
func (r Role) IsManagement() bool {
	return r == RoleAdmin || r == RoleDirector
}
