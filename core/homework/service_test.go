package homework_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/homework"
	"github.com/trezcool/learnsphere/core/notification"
	"github.com/trezcool/learnsphere/testutil"
)

func intPtr(i int) *int { return &i }

func TestService(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()

	sch := testutil.CreateSchool(t, app.SchoolRepo, "School 1")
	classA := testutil.CreateClass(t, app.SchoolRepo, sch.ID, "9-A")
	classB := testutil.CreateClass(t, app.SchoolRepo, sch.ID, "9-B")
	math := testutil.CreateSubject(t, app.SchoolRepo, "Math")
	teacher := testutil.CreateUser(t, app.UserRepo, "Teacher", "", "", core.RoleTeacher)
	alice := testutil.CreateUser(t, app.UserRepo, "Alice", "", "", core.RoleStudent, classA.ID)
	carol := testutil.CreateUser(t, app.UserRepo, "Carol", "", "", core.RoleStudent, classA.ID)
	bob := testutil.CreateUser(t, app.UserRepo, "Bob", "", "", core.RoleStudent, classB.ID)
	mom := testutil.CreateUser(t, app.UserRepo, "Mom", "", "", core.RoleParent)

	deadline := time.Date(2024, time.March, 11, 8, 0, 0, 0, time.UTC)
	a, err := app.HomeworkSvc.CreateAssignment(ctx, teacher, homework.NewAssignment{
		SubjectID:   math.ID,
		ClassID:     classA.ID,
		Description: " Exercises 1-10 ",
		Deadline:    deadline,
	})
	require.NoError(t, err)
	assert.Equal(t, "Exercises 1-10", a.Description)
	assert.Equal(t, teacher.ID, a.TeacherID)

	t.Run("class students are notified", func(t *testing.T) {
		for _, s := range []string{alice.ID, carol.ID} {
			inbox, err := app.NotificationRepo.QueryNotifications(ctx, s, false)
			require.NoError(t, err)
			require.Len(t, inbox, 1)
			assert.Equal(t, notification.KindAssignment, inbox[0].Kind)
		}
		inbox, err := app.NotificationRepo.QueryNotifications(ctx, bob.ID, false)
		require.NoError(t, err)
		assert.Empty(t, inbox)
	})

	t.Run("create errors", func(t *testing.T) {
		_, err := app.HomeworkSvc.CreateAssignment(ctx, alice, homework.NewAssignment{
			SubjectID: math.ID, ClassID: classA.ID, Description: "x", Deadline: deadline,
		})
		assert.True(t, core.IsPermissionDenied(err))

		_, err = app.HomeworkSvc.CreateAssignment(ctx, teacher, homework.NewAssignment{
			SubjectID: math.ID, ClassID: "nope", Description: "x", Deadline: deadline,
		})
		assert.True(t, core.IsNotFound(err))

		_, err = app.HomeworkSvc.CreateAssignment(ctx, teacher, homework.NewAssignment{
			SubjectID: math.ID, ClassID: classA.ID, Description: "x",
		})
		assert.Error(t, err)
	})

	t.Run("visibility", func(t *testing.T) {
		got, err := app.HomeworkSvc.GetAssignment(ctx, alice, a.ID)
		require.NoError(t, err)
		assert.True(t, deadline.Equal(got.Deadline))

		_, err = app.HomeworkSvc.GetAssignment(ctx, bob, a.ID)
		assert.True(t, core.IsPermissionDenied(err))

		list, err := app.HomeworkSvc.QueryAssignments(ctx, bob, homework.AssignmentFilter{ClassID: classA.ID})
		require.NoError(t, err)
		assert.Empty(t, list, "students only list their class")

		list, err = app.HomeworkSvc.QueryAssignments(ctx, teacher, homework.AssignmentFilter{SubjectID: math.ID})
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	sub, err := app.HomeworkSvc.Submit(ctx, alice, a.ID, homework.NewSubmission{Content: "1) 42"})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, sub.StudentID)
	assert.False(t, sub.Grade.Valid)

	t.Run("teachers are notified", func(t *testing.T) {
		inbox, err := app.NotificationRepo.QueryNotifications(ctx, teacher.ID, false)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, "Alice submitted an assignment in Math", inbox[0].Message)
	})

	t.Run("submit errors", func(t *testing.T) {
		_, err := app.HomeworkSvc.Submit(ctx, alice, a.ID, homework.NewSubmission{Content: "again"})
		assert.True(t, errors.Is(err, homework.ErrAlreadySubmitted))

		_, err = app.HomeworkSvc.Submit(ctx, bob, a.ID, homework.NewSubmission{Content: "mine"})
		assert.True(t, core.IsPermissionDenied(err))

		_, err = app.HomeworkSvc.Submit(ctx, teacher, a.ID, homework.NewSubmission{Content: "mine"})
		assert.True(t, core.IsPermissionDenied(err))

		_, err = app.HomeworkSvc.Submit(ctx, carol, "nope", homework.NewSubmission{Content: "mine"})
		assert.True(t, core.IsNotFound(err))

		_, err = app.HomeworkSvc.Submit(ctx, carol, a.ID, homework.NewSubmission{Content: " "})
		assert.Error(t, err)
	})

	t.Run("grade submission", func(t *testing.T) {
		graded, err := app.HomeworkSvc.GradeSubmission(ctx, teacher, sub.ID, homework.SubmissionGrade{Grade: intPtr(5), Feedback: "Good"})
		require.NoError(t, err)
		assert.EqualValues(t, 5, graded.Grade.Int)
		assert.Equal(t, "Good", graded.Feedback)

		_, err = app.HomeworkSvc.GradeSubmission(ctx, teacher, sub.ID, homework.SubmissionGrade{Grade: intPtr(6)})
		assert.Error(t, err)

		_, err = app.HomeworkSvc.GradeSubmission(ctx, alice, sub.ID, homework.SubmissionGrade{Grade: intPtr(5)})
		assert.True(t, core.IsPermissionDenied(err))
	})

	t.Run("query submissions", func(t *testing.T) {
		_, err := app.HomeworkSvc.Submit(ctx, carol, a.ID, homework.NewSubmission{Content: "2) 43"})
		require.NoError(t, err)

		all, err := app.HomeworkSvc.QuerySubmissions(ctx, teacher, a.ID)
		require.NoError(t, err)
		assert.Len(t, all, 2)

		own, err := app.HomeworkSvc.QuerySubmissions(ctx, alice, a.ID)
		require.NoError(t, err)
		require.Len(t, own, 1)
		assert.Equal(t, sub.ID, own[0].ID)
		assert.True(t, own[0].Grade.Valid)

		_, err = app.HomeworkSvc.QuerySubmissions(ctx, mom, a.ID)
		assert.True(t, core.IsPermissionDenied(err))
	})
}
