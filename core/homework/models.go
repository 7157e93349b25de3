package homework

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnsphere/core"
)

type Assignment struct {
	ID          string    `json:"id"`
	SubjectID   string    `json:"subject_id"`
	ClassID     string    `json:"class_id"`
	TeacherID   string    `json:"teacher_id"`
	Description string    `json:"description"`
	Deadline    time.Time `json:"deadline"`
	CreatedAt   time.Time `json:"created_at"`
}

// Submission is unique per (assignment, student).
type Submission struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	StudentID    string    `json:"student_id"`
	Content      string    `json:"content"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Grade        null.Int  `json:"grade"`
	Feedback     string    `json:"feedback"`
}

type NewAssignment struct {
	SubjectID   string    `json:"subject_id" validate:"required"`
	ClassID     string    `json:"class_id" validate:"required"`
	Description string    `json:"description" validate:"required,notblank"`
	Deadline    time.Time `json:"deadline" validate:"required"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

type NewSubmission struct {
	Content string `json:"content" validate:"required,notblank"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.Content = core.CleanString(ns.Content)
	return validate.Struct(ns)
}

type SubmissionGrade struct {
	Grade    *int   `json:"grade" validate:"omitempty,min=1,max=5"`
	Feedback string `json:"feedback" validate:"max=1000"`
}

type AssignmentFilter struct {
	ClassID   string `query:"class_id"`
	SubjectID string `query:"subject_id"`
}
