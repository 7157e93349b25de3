package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/journal"
)

const (
	gradeColumns      = "id, student_id, subject_id, teacher_id, value, date, comment, metadata, created_at, updated_at"
	gradeAuditColumns = "id, grade_id, changed_by, previous_value, new_value, action, created_at"
	attendanceColumns = "id, student_id, date, status, created_at, updated_at"
)

type gradeRow struct {
	ID        string        `db:"id"`
	StudentID string        `db:"student_id"`
	SubjectID string        `db:"subject_id"`
	TeacherID null.String   `db:"teacher_id"`
	Value     int           `db:"value"`
	Date      core.Date     `db:"date"`
	Comment   string        `db:"comment"`
	Metadata  core.Metadata `db:"metadata"`
	CreatedAt time.Time     `db:"created_at"`
	UpdatedAt time.Time     `db:"updated_at"`
}

type gradeAuditRow struct {
	ID            string    `db:"id"`
	GradeID       string    `db:"grade_id"`
	ChangedBy     string    `db:"changed_by"`
	PreviousValue null.Int  `db:"previous_value"`
	NewValue      null.Int  `db:"new_value"`
	Action        string    `db:"action"`
	CreatedAt     time.Time `db:"created_at"`
}

type attendanceRow struct {
	ID        string    `db:"id"`
	StudentID string    `db:"student_id"`
	Date      core.Date `db:"date"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type journalRepository struct {
	baseRepository
}

var _ journal.Repository = (*journalRepository)(nil) // interface compliance check

func NewJournalRepository(exec core.DBExecutor) *journalRepository {
	return &journalRepository{baseRepository{exec: exec}}
}

func (repo journalRepository) unboilGrade(row gradeRow) journal.Grade {
	return journal.Grade{
		ID:        row.ID,
		StudentID: row.StudentID,
		SubjectID: row.SubjectID,
		TeacherID: row.TeacherID.String,
		Value:     row.Value,
		Date:      row.Date,
		Comment:   row.Comment,
		Metadata:  row.Metadata,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func (repo journalRepository) unboilAttendance(row attendanceRow) journal.Attendance {
	return journal.Attendance{
		ID:        row.ID,
		StudentID: row.StudentID,
		Date:      row.Date,
		Status:    journal.Status(row.Status),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

// Grades

func (repo journalRepository) getGrade(ctx context.Context, exe core.DBExecutor, id string, cond string, args ...interface{}) (journal.Grade, error) {
	var row gradeRow
	if err := get(ctx, exe, &row, "SELECT "+gradeColumns+" FROM grades WHERE "+cond, args...); err != nil {
		return journal.Grade{}, trapNoRowsErr(err, "grade", id, "finding grade")
	}
	return repo.unboilGrade(row), nil
}

func (repo journalRepository) GetGrade(ctx context.Context, id string, exec ...core.DBExecutor) (journal.Grade, error) {
	return repo.getGrade(ctx, repo.getExec(exec), id, "id = ?", id)
}

func (repo journalRepository) GetGradeByKey(ctx context.Context, studentID, subjectID string, date core.Date, exec ...core.DBExecutor) (journal.Grade, error) {
	return repo.getGrade(ctx, repo.getExec(exec), "", "student_id = ? AND subject_id = ? AND date = ?", studentID, subjectID, date)
}

func (repo journalRepository) CreateGrade(ctx context.Context, g journal.Grade, exec ...core.DBExecutor) (journal.Grade, error) {
	g.ID = newID()
	g.CreatedAt = g.CreatedAt.UTC()
	g.UpdatedAt = g.UpdatedAt.UTC()
	if g.Metadata == nil {
		g.Metadata = core.Metadata{}
	}
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO grades ("+gradeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		g.ID, g.StudentID, g.SubjectID, null.NewString(g.TeacherID, g.TeacherID != ""), g.Value, g.Date,
		g.Comment, g.Metadata, g.CreatedAt, g.UpdatedAt)
	return g, errors.Wrap(err, "inserting grade")
}

func (repo journalRepository) UpdateGrade(ctx context.Context, g journal.Grade, exec ...core.DBExecutor) (journal.Grade, error) {
	g.UpdatedAt = g.UpdatedAt.UTC()
	n, err := execute(ctx, repo.getExec(exec),
		"UPDATE grades SET teacher_id = ?, value = ?, comment = ?, metadata = ?, updated_at = ? WHERE id = ?",
		null.NewString(g.TeacherID, g.TeacherID != ""), g.Value, g.Comment, g.Metadata, g.UpdatedAt, g.ID)
	if err != nil {
		return journal.Grade{}, errors.Wrap(err, "updating grade")
	}
	if n == 0 {
		return journal.Grade{}, core.NewNotFoundError("grade", g.ID)
	}
	return g, nil
}

func (repo journalRepository) DeleteGrade(ctx context.Context, id string, exec ...core.DBExecutor) error {
	n, err := execute(ctx, repo.getExec(exec), "DELETE FROM grades WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	if n == 0 {
		return core.NewNotFoundError("grade", id)
	}
	return nil
}

func (repo journalRepository) QueryGrades(ctx context.Context, filter journal.GradeFilter, exec ...core.DBExecutor) ([]journal.Grade, error) {
	w := &where{}
	if filter.StudentID != "" {
		w.add("g.student_id = ?", filter.StudentID)
	}
	if filter.SubjectID != "" {
		w.add("g.subject_id = ?", filter.SubjectID)
	}
	if filter.ClassID != "" {
		w.add("g.student_id IN (SELECT id FROM users WHERE class_id = ?)", filter.ClassID)
	}
	if !filter.From.IsZero() {
		w.add("g.date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("g.date <= ?", filter.To)
	}

	var rows []gradeRow
	q := "SELECT g.id, g.student_id, g.subject_id, g.teacher_id, g.value, g.date, g.comment, g.metadata, g.created_at, g.updated_at " +
		"FROM grades g" + w.String() + " ORDER BY g.date DESC, g.created_at DESC, g.id"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying grades")
	}
	grades := make([]journal.Grade, 0, len(rows))
	for _, r := range rows {
		grades = append(grades, repo.unboilGrade(r))
	}
	return grades, nil
}

// Grade audits

func (repo journalRepository) CreateGradeAudit(ctx context.Context, a journal.GradeAudit, exec ...core.DBExecutor) (journal.GradeAudit, error) {
	a.ID = newID()
	a.CreatedAt = a.CreatedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO grade_audits ("+gradeAuditColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.GradeID, a.ChangedBy, a.PreviousValue, a.NewValue, string(a.Action), a.CreatedAt)
	return a, errors.Wrap(err, "inserting grade audit")
}

func (repo journalRepository) QueryGradeAudits(ctx context.Context, gradeID string, exec ...core.DBExecutor) ([]journal.GradeAudit, error) {
	var rows []gradeAuditRow
	q := "SELECT " + gradeAuditColumns + " FROM grade_audits WHERE grade_id = ? ORDER BY created_at, id"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, gradeID); err != nil {
		return nil, errors.Wrap(err, "querying grade audits")
	}
	audits := make([]journal.GradeAudit, 0, len(rows))
	for _, r := range rows {
		audits = append(audits, journal.GradeAudit{
			ID:            r.ID,
			GradeID:       r.GradeID,
			ChangedBy:     r.ChangedBy,
			PreviousValue: r.PreviousValue,
			NewValue:      r.NewValue,
			Action:        journal.AuditAction(r.Action),
			CreatedAt:     r.CreatedAt,
		})
	}
	return audits, nil
}

// Attendance

func (repo journalRepository) GetAttendanceByKey(ctx context.Context, studentID string, date core.Date, exec ...core.DBExecutor) (journal.Attendance, error) {
	var row attendanceRow
	err := get(ctx, repo.getExec(exec), &row,
		"SELECT "+attendanceColumns+" FROM attendance WHERE student_id = ? AND date = ?", studentID, date)
	if err != nil {
		return journal.Attendance{}, trapNoRowsErr(err, "attendance", "", "finding attendance")
	}
	return repo.unboilAttendance(row), nil
}

func (repo journalRepository) CreateAttendance(ctx context.Context, a journal.Attendance, exec ...core.DBExecutor) (journal.Attendance, error) {
	a.ID = newID()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO attendance ("+attendanceColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		a.ID, a.StudentID, a.Date, string(a.Status), a.CreatedAt, a.UpdatedAt)
	return a, errors.Wrap(err, "inserting attendance")
}

func (repo journalRepository) UpdateAttendance(ctx context.Context, a journal.Attendance, exec ...core.DBExecutor) (journal.Attendance, error) {
	a.UpdatedAt = a.UpdatedAt.UTC()
	n, err := execute(ctx, repo.getExec(exec),
		"UPDATE attendance SET status = ?, updated_at = ? WHERE id = ?", string(a.Status), a.UpdatedAt, a.ID)
	if err != nil {
		return journal.Attendance{}, errors.Wrap(err, "updating attendance")
	}
	if n == 0 {
		return journal.Attendance{}, core.NewNotFoundError("attendance", a.ID)
	}
	return a, nil
}

func (repo journalRepository) QueryAttendance(ctx context.Context, filter journal.AttendanceFilter, exec ...core.DBExecutor) ([]journal.Attendance, error) {
	w := &where{}
	if filter.StudentID != "" {
		w.add("student_id = ?", filter.StudentID)
	}
	if filter.ClassID != "" {
		w.add("student_id IN (SELECT id FROM users WHERE class_id = ?)", filter.ClassID)
	}
	if filter.Status != "" {
		w.add("status = ?", string(filter.Status))
	}
	if !filter.From.IsZero() {
		w.add("date >= ?", filter.From)
	}
	if !filter.To.IsZero() {
		w.add("date <= ?", filter.To)
	}

	var rows []attendanceRow
	q := "SELECT " + attendanceColumns + " FROM attendance" + w.String() + " ORDER BY date DESC, student_id"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	records := make([]journal.Attendance, 0, len(rows))
	for _, r := range rows {
		records = append(records, repo.unboilAttendance(r))
	}
	return records, nil
}

// Summaries

func (repo journalRepository) SubjectSummaries(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]journal.SubjectSummary, error) {
	var rows []struct {
		SubjectID   string `db:"subject_id"`
		SubjectName string `db:"subject_name"`
		Count       int    `db:"grade_count"`
		Sum         int    `db:"grade_sum"`
	}
	q := "SELECT g.subject_id, s.name AS subject_name, COUNT(*) AS grade_count, SUM(g.value) AS grade_sum " +
		"FROM grades g JOIN subjects s ON s.id = g.subject_id WHERE g.student_id = ? " +
		"GROUP BY g.subject_id, s.name ORDER BY s.name"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "summarizing grades")
	}
	summaries := make([]journal.SubjectSummary, 0, len(rows))
	for _, r := range rows {
		summaries = append(summaries, journal.SubjectSummary{
			SubjectID:   r.SubjectID,
			SubjectName: r.SubjectName,
			Count:       r.Count,
			Sum:         r.Sum,
		})
	}
	return summaries, nil
}

func (repo journalRepository) AttendanceCounts(ctx context.Context, studentID string, exec ...core.DBExecutor) (map[journal.Status]int, error) {
	var rows []struct {
		Status string `db:"status"`
		Count  int    `db:"status_count"`
	}
	q := "SELECT status, COUNT(*) AS status_count FROM attendance WHERE student_id = ? GROUP BY status"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "counting attendance")
	}
	counts := make(map[journal.Status]int, len(rows))
	for _, r := range rows {
		counts[journal.Status(r.Status)] = r.Count
	}
	return counts, nil
}
