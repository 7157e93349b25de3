package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/learnsphere/apps/api/echo"
	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/school"
	"github.com/trezcool/learnsphere/core/user"
	"github.com/trezcool/learnsphere/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

type fixtures struct {
	app      *testutil.App
	srv      *echoapi.Server
	admin    user.User
	director user.User
	teacher  user.User
	outsider user.User // teacher without lessons
	student  user.User
	parent   user.User
	classA   school.Class
	math     school.Subject
}

func setup(t *testing.T) fixtures {
	app := testutil.NewApp(t)
	sch := testutil.CreateSchool(t, app.SchoolRepo, "School 1")
	f := fixtures{
		app:      app,
		admin:    testutil.CreateUser(t, app.UserRepo, "Admin", "admin", "admin@test.cd", core.RoleAdmin),
		director: testutil.CreateUser(t, app.UserRepo, "Director", "director", "", core.RoleDirector),
		teacher:  testutil.CreateUser(t, app.UserRepo, "Teacher", "teacher", "teacher@test.cd", core.RoleTeacher),
		outsider: testutil.CreateUser(t, app.UserRepo, "Outsider", "outsider", "", core.RoleTeacher),
		classA:   testutil.CreateClass(t, app.SchoolRepo, sch.ID, "9-A"),
		math:     testutil.CreateSubject(t, app.SchoolRepo, "Math"),
	}
	f.student = testutil.CreateUser(t, app.UserRepo, "Alice", "alice", "", core.RoleStudent, f.classA.ID)
	f.parent = testutil.CreateUser(t, app.UserRepo, "Mom", "mom", "", core.RoleParent)
	testutil.LinkParent(t, app.UserRepo, f.parent.ID, f.student.ID)

	f.srv = echoapi.NewServer(echoapi.ServerDeps{
		Conf:           app.Conf,
		Logger:         app.Logger,
		Validate:       app.Validate,
		Translator:     app.Translator,
		DisableReqLogs: true,
		UserSvc:        app.UserSvc,
		SchoolSvc:      app.SchoolSvc,
		ScheduleSvc:    app.ScheduleSvc,
		Recorder:       app.Recorder,
		HomeworkSvc:    app.HomeworkSvc,
		Inbox:          app.Inbox,
		PointsSvc:      app.Points,
	})
	return f
}

// do runs tt against the server and returns the recorder.
func (f fixtures) do(tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
	f.srv.ServeHTTP(rec, req)
	return rec
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, f fixtures, usr user.User) string {
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, f.app.Conf), f.app.Conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
