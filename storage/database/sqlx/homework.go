package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/homework"
)

const (
	assignmentColumns = "id, subject_id, class_id, teacher_id, description, deadline, created_at"
	submissionColumns = "id, assignment_id, student_id, content, submitted_at, grade, feedback"
)

type assignmentRow struct {
	ID          string      `db:"id"`
	SubjectID   string      `db:"subject_id"`
	ClassID     string      `db:"class_id"`
	TeacherID   null.String `db:"teacher_id"`
	Description string      `db:"description"`
	Deadline    time.Time   `db:"deadline"`
	CreatedAt   time.Time   `db:"created_at"`
}

func (row assignmentRow) assignment() homework.Assignment {
	return homework.Assignment{
		ID:          row.ID,
		SubjectID:   row.SubjectID,
		ClassID:     row.ClassID,
		TeacherID:   row.TeacherID.String,
		Description: row.Description,
		Deadline:    row.Deadline.UTC(),
		CreatedAt:   row.CreatedAt,
	}
}

type submissionRow struct {
	ID           string    `db:"id"`
	AssignmentID string    `db:"assignment_id"`
	StudentID    string    `db:"student_id"`
	Content      string    `db:"content"`
	SubmittedAt  time.Time `db:"submitted_at"`
	Grade        null.Int  `db:"grade"`
	Feedback     string    `db:"feedback"`
}

type homeworkRepository struct {
	baseRepository
}

var _ homework.Repository = (*homeworkRepository)(nil) // interface compliance check

func NewHomeworkRepository(exec core.DBExecutor) *homeworkRepository {
	return &homeworkRepository{baseRepository{exec: exec}}
}

func (repo homeworkRepository) CreateAssignment(ctx context.Context, a homework.Assignment, exec ...core.DBExecutor) (homework.Assignment, error) {
	a.ID = newID()
	a.Deadline = a.Deadline.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO assignments ("+assignmentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.SubjectID, a.ClassID, null.NewString(a.TeacherID, a.TeacherID != ""), a.Description, a.Deadline, a.CreatedAt)
	return a, errors.Wrap(err, "inserting assignment")
}

func (repo homeworkRepository) GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (homework.Assignment, error) {
	var row assignmentRow
	if err := get(ctx, repo.getExec(exec), &row, "SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id); err != nil {
		return homework.Assignment{}, trapNoRowsErr(err, "assignment", id, "finding assignment")
	}
	return row.assignment(), nil
}

func (repo homeworkRepository) QueryAssignments(ctx context.Context, filter homework.AssignmentFilter, exec ...core.DBExecutor) ([]homework.Assignment, error) {
	w := &where{}
	if filter.ClassID != "" {
		w.add("class_id = ?", filter.ClassID)
	}
	if filter.SubjectID != "" {
		w.add("subject_id = ?", filter.SubjectID)
	}

	var rows []assignmentRow
	q := "SELECT " + assignmentColumns + " FROM assignments" + w.String() + " ORDER BY deadline, id"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	list := make([]homework.Assignment, 0, len(rows))
	for _, r := range rows {
		list = append(list, r.assignment())
	}
	return list, nil
}

func (repo homeworkRepository) CreateSubmission(ctx context.Context, s homework.Submission, exec ...core.DBExecutor) (homework.Submission, error) {
	s.ID = newID()
	s.SubmittedAt = s.SubmittedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO submissions ("+submissionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		s.ID, s.AssignmentID, s.StudentID, s.Content, s.SubmittedAt, s.Grade, s.Feedback)
	return s, errors.Wrap(err, "inserting submission")
}

func (repo homeworkRepository) GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (homework.Submission, error) {
	var row submissionRow
	if err := get(ctx, repo.getExec(exec), &row, "SELECT "+submissionColumns+" FROM submissions WHERE id = ?", id); err != nil {
		return homework.Submission{}, trapNoRowsErr(err, "submission", id, "finding submission")
	}
	return homework.Submission(row), nil
}

func (repo homeworkRepository) SubmissionExists(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec),
		"SELECT id FROM submissions WHERE assignment_id = ? AND student_id = ?", assignmentID, studentID)
	return ok, errors.Wrap(err, "checking submission")
}

func (repo homeworkRepository) UpdateSubmission(ctx context.Context, s homework.Submission, exec ...core.DBExecutor) (homework.Submission, error) {
	n, err := execute(ctx, repo.getExec(exec),
		"UPDATE submissions SET content = ?, grade = ?, feedback = ? WHERE id = ?", s.Content, s.Grade, s.Feedback, s.ID)
	if err != nil {
		return homework.Submission{}, errors.Wrap(err, "updating submission")
	}
	if n == 0 {
		return homework.Submission{}, core.NewNotFoundError("submission", s.ID)
	}
	return s, nil
}

func (repo homeworkRepository) QuerySubmissions(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) ([]homework.Submission, error) {
	w := &where{}
	w.add("assignment_id = ?", assignmentID)
	if studentID != "" {
		w.add("student_id = ?", studentID)
	}

	var rows []submissionRow
	q := "SELECT " + submissionColumns + " FROM submissions" + w.String() + " ORDER BY submitted_at, id"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	list := make([]homework.Submission, 0, len(rows))
	for _, r := range rows {
		list = append(list, homework.Submission(r))
	}
	return list, nil
}
