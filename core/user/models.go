package user

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/learnsphere/core"
)

type User struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Username  string        `json:"username"`
	Email     string        `json:"email"`
	Role      core.Role     `json:"role"`
	ClassID   string        `json:"class_id,omitempty"` // students only
	IsActive  bool          `json:"is_active"`
	Metadata  core.Metadata `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"` // UTC
	UpdatedAt time.Time     `json:"updated_at"` // UTC
}

func (u User) IsAdmin() bool    { return u.Role == core.RoleAdmin }
func (u User) IsDirector() bool { return u.Role == core.RoleDirector }
func (u User) IsTeacher() bool  { return u.Role == core.RoleTeacher }
func (u User) IsStudent() bool  { return u.Role == core.RoleStudent }
func (u User) IsParent() bool   { return u.Role == core.RoleParent }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Name     string        `json:"name" validate:"required,notblank"`
	Username string        `json:"username" validate:"required,min=3,alphanum_"`
	Email    string        `json:"email" validate:"omitempty,email"`
	Role     core.Role     `json:"role" validate:"required,role"`
	ClassID  string        `json:"class_id"`
	Metadata core.Metadata `json:"metadata"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.ClassID = core.CleanString(nu.ClassID)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	Name     string        `json:"name"`
	Email    *string       `json:"email" validate:"omitempty,email"`
	IsActive *bool         `json:"is_active"`
	ClassID  *string       `json:"class_id"`
	Metadata core.Metadata `json:"metadata"`
}

func (uu *UpdateUser) Validate(validate *validator.Validate) error {
	uu.Name = core.CleanString(uu.Name)
	if uu.Email != nil {
		email := core.CleanString(*uu.Email, true /* lower */)
		uu.Email = &email
	}
	if uu.ClassID != nil {
		classID := core.CleanString(*uu.ClassID)
		uu.ClassID = &classID
	}
	return validate.Struct(uu)
}

type GetFilter struct {
	ID       string
	Username string
}

type QueryFilter struct {
	Search   string      `query:"search"`
	Roles    []core.Role `query:"role"`
	ClassID  string      `query:"class_id"`
	IsActive *bool       `query:"-"` // parsed by the API handler
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.ClassID == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ClassID = core.CleanString(qf.ClassID)
}
