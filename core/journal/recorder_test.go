package journal_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/journal"
	"github.com/trezcool/learnsphere/core/notification"
	"github.com/trezcool/learnsphere/core/schedule"
	"github.com/trezcool/learnsphere/core/user"
	"github.com/trezcool/learnsphere/testutil"
)

type fixtures struct {
	app      *testutil.App
	admin    user.User
	teacher  user.User
	outsider user.User // a teacher without schedule
	student  user.User
	other    user.User // student of another class
	parent1  user.User
	parent2  user.User
	classA   string
	math     string
	history  string
}

func setup(t *testing.T) fixtures {
	app := testutil.NewApp(t)
	sch := testutil.CreateSchool(t, app.SchoolRepo, "School 1")
	classA := testutil.CreateClass(t, app.SchoolRepo, sch.ID, "9-A").ID
	classB := testutil.CreateClass(t, app.SchoolRepo, sch.ID, "9-B").ID

	f := fixtures{
		app:      app,
		admin:    testutil.CreateUser(t, app.UserRepo, "Admin", "", "", core.RoleAdmin),
		teacher:  testutil.CreateUser(t, app.UserRepo, "Teacher", "", "", core.RoleTeacher),
		outsider: testutil.CreateUser(t, app.UserRepo, "Outsider", "", "", core.RoleTeacher),
		student:  testutil.CreateUser(t, app.UserRepo, "Alice", "", "alice@test.cd", core.RoleStudent, classA),
		other:    testutil.CreateUser(t, app.UserRepo, "Bob", "", "", core.RoleStudent, classB),
		parent1:  testutil.CreateUser(t, app.UserRepo, "Mom", "", "mom@test.cd", core.RoleParent),
		parent2:  testutil.CreateUser(t, app.UserRepo, "Dad", "", "", core.RoleParent),
		classA:   classA,
		math:     testutil.CreateSubject(t, app.SchoolRepo, "Math").ID,
		history:  testutil.CreateSubject(t, app.SchoolRepo, "History").ID,
	}
	testutil.LinkParent(t, app.UserRepo, f.parent1.ID, f.student.ID)
	testutil.LinkParent(t, app.UserRepo, f.parent2.ID, f.student.ID)
	testutil.CreateSchedule(t, app.ScheduleRepo, classA, f.math, f.teacher.ID, "101", schedule.Monday, "09:00", "10:00")
	return f
}

func gradeInput(studentID, subjectID, date, value string) journal.GradeInput {
	return journal.GradeInput{StudentID: studentID, SubjectID: subjectID, Date: date, Value: journal.RawValue(value)}
}

func TestParseGradeValue(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "1", want: 1},
		{raw: "5", want: 5},
		{raw: " 4 ", want: 4},
		{raw: "0", wantErr: true},
		{raw: "6", wantErr: true},
		{raw: "4.5", wantErr: true},
		{raw: "A", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := journal.ParseGradeValue(journal.RawValue(tt.raw))
			if tt.wantErr {
				var gErr *journal.InvalidGradeError
				assert.True(t, errors.As(err, &gErr), "want InvalidGradeError, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRawValue_UnmarshalJSON(t *testing.T) {
	var in journal.GradeInput
	require.NoError(t, json.Unmarshal([]byte(`{"value": 4}`), &in))
	assert.Equal(t, journal.RawValue("4"), in.Value)
	require.NoError(t, json.Unmarshal([]byte(`{"value": "5"}`), &in))
	assert.Equal(t, journal.RawValue("5"), in.Value)
}

func TestRecorder_UpsertGrade(t *testing.T) {
	f := setup(t)
	rec := f.app.Recorder
	ctx := context.Background()

	created, action, err := rec.UpsertGrade(ctx, f.teacher, gradeInput(f.student.ID, f.math, "2024-03-04", "4"))
	require.NoError(t, err)
	assert.Equal(t, journal.AuditCreate, action)
	assert.Equal(t, 4, created.Value)
	assert.Equal(t, f.teacher.ID, created.TeacherID)

	t.Run("create notifies the student and every parent", func(t *testing.T) {
		inbox, err := f.app.NotificationRepo.QueryNotifications(ctx, f.student.ID, false)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, notification.KindGrade, inbox[0].Kind)
		assert.Equal(t, "New grade in Math: 4", inbox[0].Message)

		for _, p := range []user.User{f.parent1, f.parent2} {
			inbox, err = f.app.NotificationRepo.QueryNotifications(ctx, p.ID, false)
			require.NoError(t, err)
			require.Len(t, inbox, 1)
			assert.Equal(t, "Your child Alice received a grade in Math: 4", inbox[0].Message)
		}
		assert.Equal(t, 3, f.app.Metrics.Notifications["grade"])
		// only the student and parent1 have an e-mail address
		assert.Len(t, f.app.Mail.SentMessages(), 2)
	})

	t.Run("create awards points", func(t *testing.T) {
		total, err := f.app.PointsRepo.SumPoints(ctx, f.student.ID)
		require.NoError(t, err)
		assert.Equal(t, 5, total)
	})

	t.Run("same value is not audited", func(t *testing.T) {
		in := gradeInput(f.student.ID, f.math, "2024-03-04", "4")
		in.Comment = "well done"
		g, action, err := rec.UpsertGrade(ctx, f.teacher, in)
		require.NoError(t, err)
		assert.Equal(t, journal.AuditNone, action)
		assert.Equal(t, created.ID, g.ID)
		assert.Equal(t, "well done", g.Comment)
	})

	t.Run("metadata keys are merged", func(t *testing.T) {
		in := gradeInput(f.student.ID, f.math, "2024-03-04", "4")
		in.Metadata = core.Metadata{"competency": "algebra", "term": "1"}
		_, action, err := rec.UpsertGrade(ctx, f.teacher, in)
		require.NoError(t, err)
		assert.Equal(t, journal.AuditNone, action)

		in.Metadata = core.Metadata{"competency": "geometry"}
		g, _, err := rec.UpsertGrade(ctx, f.teacher, in)
		require.NoError(t, err)
		assert.Equal(t, core.Metadata{"competency": "geometry", "term": "1"}, g.Metadata)

		stored, err := rec.GetGrade(ctx, f.admin, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "1", stored.Metadata["term"])
		assert.Equal(t, "geometry", stored.Metadata["competency"])
	})

	t.Run("changed value is audited", func(t *testing.T) {
		g, action, err := rec.UpsertGrade(ctx, f.admin, gradeInput(f.student.ID, f.math, "2024-03-04", "2"))
		require.NoError(t, err)
		assert.Equal(t, journal.AuditUpdate, action)
		assert.Equal(t, created.ID, g.ID)
		assert.Equal(t, 2, g.Value)
	})

	t.Run("history", func(t *testing.T) {
		audits, err := rec.GradeHistory(ctx, f.admin, created.ID)
		require.NoError(t, err)
		require.Len(t, audits, 2)
		assert.Equal(t, journal.AuditCreate, audits[0].Action)
		assert.False(t, audits[0].PreviousValue.Valid)
		assert.Equal(t, null.IntFrom(4), audits[0].NewValue)
		assert.Equal(t, journal.AuditUpdate, audits[1].Action)
		assert.Equal(t, null.IntFrom(4), audits[1].PreviousValue)
		assert.Equal(t, null.IntFrom(2), audits[1].NewValue)
		assert.Equal(t, f.admin.ID, audits[1].ChangedBy)

		// updates do not notify
		inbox, err := f.app.NotificationRepo.QueryNotifications(ctx, f.student.ID, false)
		require.NoError(t, err)
		assert.Len(t, inbox, 1)
	})

	t.Run("delete keeps the audit trail", func(t *testing.T) {
		require.NoError(t, rec.DeleteGrade(ctx, f.teacher, created.ID))
		_, err := rec.GetGrade(ctx, f.admin, created.ID)
		assert.True(t, core.IsNotFound(err))

		audits, err := rec.GradeHistory(ctx, f.teacher, created.ID)
		require.NoError(t, err)
		require.Len(t, audits, 3)
		assert.Equal(t, journal.AuditDelete, audits[2].Action)
		assert.Equal(t, null.IntFrom(2), audits[2].PreviousValue)
		assert.False(t, audits[2].NewValue.Valid)
	})

	assert.Equal(t, map[string]int{"create": 1, "update": 1, "delete": 1}, f.app.Metrics.GradeAudits)
}

func TestRecorder_UpsertGrade_errors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	isInvalidGrade := func(err error) bool {
		var gErr *journal.InvalidGradeError
		return errors.As(err, &gErr)
	}
	isValidation := func(err error) bool {
		var vErr *core.ValidationError
		return errors.As(err, &vErr)
	}

	tests := []struct {
		name    string
		actor   user.User
		in      journal.GradeInput
		wantErr func(error) bool
	}{
		{name: "student may not grade", actor: f.student, in: gradeInput(f.student.ID, f.math, "2024-03-04", "5"), wantErr: core.IsPermissionDenied},
		{name: "parent may not grade", actor: f.parent1, in: gradeInput(f.student.ID, f.math, "2024-03-04", "5"), wantErr: core.IsPermissionDenied},
		{name: "out of range", actor: f.teacher, in: gradeInput(f.student.ID, f.math, "2024-03-04", "6"), wantErr: isInvalidGrade},
		{name: "not a number", actor: f.teacher, in: gradeInput(f.student.ID, f.math, "2024-03-04", "A"), wantErr: isInvalidGrade},
		{name: "unknown student", actor: f.teacher, in: gradeInput("nope", f.math, "2024-03-04", "5"), wantErr: core.IsNotFound},
		{name: "not a student", actor: f.teacher, in: gradeInput(f.parent1.ID, f.math, "2024-03-04", "5"), wantErr: isValidation},
		{name: "unknown subject", actor: f.teacher, in: gradeInput(f.student.ID, "nope", "2024-03-04", "5"), wantErr: core.IsNotFound},
		{name: "subject not taught", actor: f.teacher, in: gradeInput(f.student.ID, f.history, "2024-03-04", "5"), wantErr: core.IsPermissionDenied},
		{name: "class not taught", actor: f.outsider, in: gradeInput(f.student.ID, f.math, "2024-03-04", "5"), wantErr: core.IsPermissionDenied},
		{name: "bad date", actor: f.teacher, in: gradeInput(f.student.ID, f.math, "04.03.2024", "5"), wantErr: func(err error) bool { return err != nil }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := f.app.Recorder.UpsertGrade(ctx, tt.actor, tt.in)
			assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
		})
	}

	grades, err := f.app.JournalRepo.QueryGrades(ctx, journal.GradeFilter{})
	require.NoError(t, err)
	assert.Empty(t, grades)
}

func TestRecorder_RecordGrades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	classmate := testutil.CreateUser(t, f.app.UserRepo, "Carol", "", "", core.RoleStudent, f.classA)
	absentee := testutil.CreateUser(t, f.app.UserRepo, "Dan", "", "", core.RoleStudent, f.classA)

	res, err := f.app.Recorder.RecordGrades(ctx, f.teacher, journal.BulkGrades{
		ClassID:   f.classA,
		SubjectID: f.math,
		Date:      "2024-03-04",
		Entries: []journal.BulkGradeEntry{
			{StudentID: f.student.ID, Value: "5", Competency: "algebra"},
			{StudentID: classmate.ID, Value: "7"},
			{StudentID: f.other.ID, Value: "3"},
			{StudentID: "nope", Value: "3"},
			{StudentID: absentee.ID, Value: ""},
			{StudentID: absentee.ID, Value: "  "},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Saved)
	// blank cells are skipped silently
	assert.Len(t, res.Warnings, 3)
	for _, w := range res.Warnings {
		assert.NotContains(t, w, absentee.ID)
	}

	grades, err := f.app.Recorder.QueryGrades(ctx, f.admin, journal.GradeFilter{ClassID: f.classA})
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, 5, grades[0].Value)
	assert.Equal(t, "algebra", grades[0].Metadata["competency"])

	t.Run("teacher of another subject is refused", func(t *testing.T) {
		_, err := f.app.Recorder.RecordGrades(ctx, f.teacher, journal.BulkGrades{
			ClassID: f.classA, SubjectID: f.history, Date: "2024-03-04",
		})
		assert.True(t, core.IsPermissionDenied(err))
	})
}

func TestRecorder_Attendance(t *testing.T) {
	f := setup(t)
	rec := f.app.Recorder
	ctx := context.Background()

	a, err := rec.UpsertAttendance(ctx, f.teacher, journal.AttendanceInput{StudentID: f.student.ID, Date: "2024-03-04", Status: "Absent"})
	require.NoError(t, err)
	assert.Equal(t, journal.StatusAbsent, a.Status)

	t.Run("absence notifies the first parent only", func(t *testing.T) {
		inbox, err := f.app.NotificationRepo.QueryNotifications(ctx, f.parent1.ID, false)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, notification.KindAbsence, inbox[0].Kind)
		assert.Equal(t, "Your child Alice was absent on 04.03.2024", inbox[0].Message)

		inbox, err = f.app.NotificationRepo.QueryNotifications(ctx, f.parent2.ID, false)
		require.NoError(t, err)
		assert.Empty(t, inbox)
	})

	t.Run("update keeps one row per day and does not notify", func(t *testing.T) {
		updated, err := rec.UpsertAttendance(ctx, f.teacher, journal.AttendanceInput{StudentID: f.student.ID, Date: "2024-03-04", Status: "late"})
		require.NoError(t, err)
		assert.Equal(t, a.ID, updated.ID)

		_, err = rec.UpsertAttendance(ctx, f.teacher, journal.AttendanceInput{StudentID: f.student.ID, Date: "2024-03-04", Status: "absent"})
		require.NoError(t, err)

		n, err := f.app.NotificationRepo.CountUnread(ctx, f.parent1.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("bulk", func(t *testing.T) {
		res, err := rec.RecordAttendance(ctx, f.teacher, journal.BulkAttendance{
			ClassID: f.classA,
			Date:    "2024-03-05",
			Entries: []journal.BulkAttendanceEntry{
				{StudentID: f.student.ID, Status: "present"},
				{StudentID: f.other.ID, Status: "present"},
				{StudentID: f.student.ID, Status: "sick"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Saved)
		assert.Len(t, res.Warnings, 2)
	})

	t.Run("invalid status", func(t *testing.T) {
		_, err := rec.UpsertAttendance(ctx, f.teacher, journal.AttendanceInput{StudentID: f.student.ID, Date: "2024-03-06", Status: "sick"})
		assert.Error(t, err)
	})

	records, err := rec.QueryAttendance(ctx, f.student, journal.AttendanceFilter{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestRecorder_StudentSummary(t *testing.T) {
	f := setup(t)
	rec := f.app.Recorder
	ctx := context.Background()
	testutil.CreateSchedule(t, f.app.ScheduleRepo, f.classA, f.history, f.teacher.ID, "101", schedule.Tuesday, "09:00", "10:00")

	for _, in := range []journal.GradeInput{
		gradeInput(f.student.ID, f.math, "2024-03-04", "5"),
		gradeInput(f.student.ID, f.math, "2024-03-05", "4"),
		gradeInput(f.student.ID, f.math, "2024-03-06", "4"),
		gradeInput(f.student.ID, f.history, "2024-03-04", "3"),
	} {
		_, _, err := rec.UpsertGrade(ctx, f.teacher, in)
		require.NoError(t, err)
	}
	_, err := rec.UpsertAttendance(ctx, f.teacher, journal.AttendanceInput{StudentID: f.student.ID, Date: "2024-03-04", Status: "late"})
	require.NoError(t, err)

	summary, err := rec.StudentSummary(ctx, f.parent2, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", summary.StudentName)
	assert.Equal(t, 4, summary.GradeCount)
	assert.Equal(t, 4.0, summary.Average)
	require.Len(t, summary.Subjects, 2)
	assert.Equal(t, "History", summary.Subjects[0].SubjectName)
	assert.Equal(t, 3.0, summary.Subjects[0].Average)
	assert.Equal(t, "Math", summary.Subjects[1].SubjectName)
	assert.Equal(t, 4.33, summary.Subjects[1].Average)
	assert.Equal(t, 1, summary.Attendance[journal.StatusLate])
	assert.Equal(t, 0, summary.Attendance[journal.StatusAbsent])

	t.Run("visibility", func(t *testing.T) {
		_, err := rec.StudentSummary(ctx, f.other, f.student.ID)
		assert.True(t, core.IsPermissionDenied(err))

		stranger := testutil.CreateUser(t, f.app.UserRepo, "Stranger", "", "", core.RoleParent)
		_, err = rec.StudentSummary(ctx, stranger, f.student.ID)
		assert.True(t, core.IsPermissionDenied(err))

		grades, err := rec.QueryGrades(ctx, f.student, journal.GradeFilter{})
		require.NoError(t, err)
		assert.Len(t, grades, 4)

		_, err = rec.QueryGrades(ctx, f.parent1, journal.GradeFilter{})
		assert.True(t, core.IsPermissionDenied(err))
	})
}
