package notification

import (
	"time"

	"github.com/trezcool/learnsphere/core"
)

type Kind string

const (
	KindGrade      Kind = "grade"
	KindAbsence    Kind = "absence"
	KindAssignment Kind = "assignment"
	KindSubmission Kind = "submission"
)

// Notification is an in-app message. Only IsRead changes after creation.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	Kind        Kind      `json:"kind"`
	Message     string    `json:"message"`
	IsRead      bool      `json:"is_read"`
	CreatedAt   time.Time `json:"created_at"`
}

// GradeEvent describes a newly created grade.
type GradeEvent struct {
	GradeID   string
	StudentID string
	SubjectID string
	Value     int
	Comment   string
}

// AbsenceEvent describes a newly created absence.
type AbsenceEvent struct {
	StudentID string
	Date      core.Date
}

type AssignmentEvent struct {
	AssignmentID string
	ClassID      string
	SubjectID    string
	Description  string
	Deadline     time.Time
}

type SubmissionEvent struct {
	SubmissionID string
	AssignmentID string
	StudentID    string
	SubjectID    string
}
