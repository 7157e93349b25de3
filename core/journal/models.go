package journal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnsphere/core"
)

const (
	MinGrade = 1
	MaxGrade = 5
)

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusExcused Status = "excused"
)

var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// AuditAction is what a grade write did. The empty action means the value did not change.
type AuditAction string

const (
	AuditNone   AuditAction = ""
	AuditCreate AuditAction = "create"
	AuditUpdate AuditAction = "update"
	AuditDelete AuditAction = "delete"
)

// Grade is unique per (student, subject, date).
type Grade struct {
	ID        string        `json:"id"`
	StudentID string        `json:"student_id"`
	SubjectID string        `json:"subject_id"`
	TeacherID string        `json:"teacher_id"`
	Value     int           `json:"value"`
	Date      core.Date     `json:"date"`
	Comment   string        `json:"comment"`
	Metadata  core.Metadata `json:"metadata"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// GradeAudit is an append-only record of a grade change. It outlives the grade.
type GradeAudit struct {
	ID            string      `json:"id"`
	GradeID       string      `json:"grade_id"`
	ChangedBy     string      `json:"changed_by"`
	PreviousValue null.Int    `json:"previous_value"`
	NewValue      null.Int    `json:"new_value"`
	Action        AuditAction `json:"action"`
	CreatedAt     time.Time   `json:"created_at"`
}

// Attendance is unique per (student, date).
type Attendance struct {
	ID        string    `json:"id"`
	StudentID string    `json:"student_id"`
	Date      core.Date `json:"date"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RawValue is a grade as typed by a teacher. It accepts JSON strings and numbers.
type RawValue string

func (rv *RawValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*rv = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*rv = RawValue(s)
		return nil
	}
	*rv = RawValue(data)
	return nil
}

type InvalidGradeError struct {
	Raw string
}

func (err InvalidGradeError) Error() string {
	return fmt.Sprintf("invalid grade %q: must be an integer from %d to %d", err.Raw, MinGrade, MaxGrade)
}

// IsBlank reports whether no grade was typed.
func (rv RawValue) IsBlank() bool { return strings.TrimSpace(string(rv)) == "" }

// ParseGradeValue parses a raw grade, returning *InvalidGradeError when it is not an integer in [1,5].
func ParseGradeValue(raw RawValue) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || v < MinGrade || v > MaxGrade {
		return 0, &InvalidGradeError{Raw: string(raw)}
	}
	return v, nil
}

type GradeInput struct {
	StudentID string        `json:"student_id" validate:"required"`
	SubjectID string        `json:"subject_id" validate:"required"`
	Date      string        `json:"date" validate:"required,date"`
	Value     RawValue      `json:"value"`
	Comment   string        `json:"comment" validate:"max=500"`
	Metadata  core.Metadata `json:"metadata"`
}

func (in *GradeInput) Validate(validate *validator.Validate) error {
	in.Comment = core.CleanString(in.Comment)
	return validate.Struct(in)
}

type AttendanceInput struct {
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required,date"`
	Status    string `json:"status" validate:"required,attendance_status"`
}

func (in *AttendanceInput) Validate(validate *validator.Validate) error {
	in.Status = core.CleanString(in.Status, true /* lower */)
	return validate.Struct(in)
}

// BulkGrades is a gradebook submission: one class, one subject, one date.
type BulkGrades struct {
	ClassID   string           `json:"class_id" validate:"required"`
	SubjectID string           `json:"subject_id" validate:"required"`
	Date      string           `json:"date" validate:"required,date"`
	Entries   []BulkGradeEntry `json:"entries"`
}

type BulkGradeEntry struct {
	StudentID  string   `json:"student_id"`
	Value      RawValue `json:"value"`
	Comment    string   `json:"comment"`
	Competency string   `json:"competency"`
}

type BulkAttendance struct {
	ClassID string                `json:"class_id" validate:"required"`
	Date    string                `json:"date" validate:"required,date"`
	Entries []BulkAttendanceEntry `json:"entries"`
}

type BulkAttendanceEntry struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
}

// BulkResult reports how many rows were processed and why the others were skipped.
type BulkResult struct {
	Saved    int      `json:"saved"`
	Warnings []string `json:"warnings"`
}

type GradeFilter struct {
	StudentID string    `query:"student_id"`
	SubjectID string    `query:"subject_id"`
	ClassID   string    `query:"class_id"`
	From      core.Date `query:"from"`
	To        core.Date `query:"to"`
}

type AttendanceFilter struct {
	StudentID string    `query:"student_id"`
	ClassID   string    `query:"class_id"`
	Status    Status    `query:"status"`
	From      core.Date `query:"from"`
	To        core.Date `query:"to"`
}

type SubjectSummary struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	Count       int     `json:"count"`
	Sum         int     `json:"-"`
	Average     float64 `json:"average"`
}

// StudentSummary is the read-only aggregate of a student's grades and attendance.
type StudentSummary struct {
	StudentID   string           `json:"student_id"`
	StudentName string           `json:"student_name"`
	GradeCount  int              `json:"grade_count"`
	Average     float64          `json:"average"`
	Subjects    []SubjectSummary `json:"subjects"`
	Attendance  map[Status]int   `json:"attendance"`
}
