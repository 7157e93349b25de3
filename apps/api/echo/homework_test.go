package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/homework"
	"github.com/trezcool/learnsphere/testutil"
)

func Test_homeworkApi(t *testing.T) {
	f := setup(t)
	teacherToken := getToken(t, f, f.teacher)
	studentToken := getToken(t, f, f.student)
	classB := testutil.CreateClass(t, f.app.SchoolRepo, f.classA.SchoolID, "9-B")
	bob := testutil.CreateUser(t, f.app.UserRepo, "Bob", "bob", "", core.RoleStudent, classB.ID)

	rec := f.do(httpTest{
		method: http.MethodPost, path: "/v1/assignments", token: teacherToken,
		body: marchallObj(t, homework.NewAssignment{
			SubjectID: f.math.ID, ClassID: f.classA.ID, Description: "Exercises 1-10",
			Deadline: time.Date(2024, 3, 11, 8, 0, 0, 0, time.UTC),
		}),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var asg homework.Assignment
	unmarshal(t, rec, &asg)
	assert.Equal(t, f.teacher.ID, asg.TeacherID)

	rec = f.do(httpTest{
		method: http.MethodPost, path: "/v1/assignments/" + asg.ID + "/submissions", token: studentToken,
		body: marchallObj(t, homework.NewSubmission{Content: "1) 42"}),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub homework.Submission
	unmarshal(t, rec, &sub)
	assert.False(t, sub.Grade.Valid)

	tests := []httpTest{
		{
			name: "students cannot assign", method: http.MethodPost, path: "/v1/assignments", token: studentToken,
			body:     marchallObj(t, homework.NewAssignment{SubjectID: f.math.ID, ClassID: f.classA.ID, Description: "x", Deadline: time.Now()}),
			wantCode: http.StatusForbidden,
		},
		{
			name: "submit twice", method: http.MethodPost, path: "/v1/assignments/" + asg.ID + "/submissions", token: studentToken,
			body:     marchallObj(t, homework.NewSubmission{Content: "again"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: homework.ErrAlreadySubmitted.Error()}),
		},
		{
			name: "other class", path: "/v1/assignments/" + asg.ID, token: getToken(t, f, bob),
			wantCode: http.StatusForbidden,
		},
		{name: "own class", path: "/v1/assignments/" + asg.ID, token: studentToken, wantCode: http.StatusOK},
		{
			name: "parents cannot list submissions", path: "/v1/assignments/" + asg.ID + "/submissions", token: getToken(t, f, f.parent),
			wantCode: http.StatusForbidden,
		},
		{
			name: "grade out of range", method: http.MethodPut, path: "/v1/submissions/" + sub.ID + "/grade", token: teacherToken,
			body: []byte(`{"grade": 6}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "unknown submission", method: http.MethodPut, path: "/v1/submissions/unknown/grade", token: teacherToken,
			body: []byte(`{"grade": 5}`), wantCode: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("grade", func(t *testing.T) {
		rec := f.do(httpTest{
			method: http.MethodPut, path: "/v1/submissions/" + sub.ID + "/grade", token: teacherToken,
			body: []byte(`{"grade": 5, "feedback": " Well done "}`),
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got homework.Submission
		unmarshal(t, rec, &got)
		assert.Equal(t, 5, got.Grade.Int)
		assert.Equal(t, "Well done", got.Feedback)

		rec = f.do(httpTest{path: "/v1/assignments/" + asg.ID + "/submissions", token: studentToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var subs []homework.Submission
		unmarshal(t, rec, &subs)
		require.Len(t, subs, 1)
		assert.Equal(t, sub.ID, subs[0].ID)
	})

	t.Run("query", func(t *testing.T) {
		rec := f.do(httpTest{path: "/v1/assignments?class_id=" + classB.ID, token: studentToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got []homework.Assignment
		unmarshal(t, rec, &got)
		require.Len(t, got, 1, "students only see their own class")
		assert.Equal(t, asg.ID, got[0].ID)
	})
}
