package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/user"
)

func Test_userApi(t *testing.T) {
	f := setup(t)
	adminToken := getToken(t, f, f.admin)
	parentToken := getToken(t, f, f.parent)

	t.Run("me", func(t *testing.T) {
		rec := f.do(httpTest{path: "/v1/users/me", token: parentToken})
		require.Equal(t, http.StatusOK, rec.Code)
		var got user.User
		unmarshal(t, rec, &got)
		assert.Equal(t, f.parent.ID, got.ID)
		assert.Equal(t, core.RoleParent, got.Role)
	})

	t.Run("create", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{Name: "Bob", Username: "Bob_01", Email: "BOB@test.cd", Role: core.RoleStudent, ClassID: f.classA.ID})
		rec := f.do(httpTest{method: http.MethodPost, path: "/v1/users", token: adminToken, body: body})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var got user.User
		unmarshal(t, rec, &got)
		assert.NotEmpty(t, got.ID)
		assert.Equal(t, "bob_01", got.Username)
		assert.Equal(t, "bob@test.cd", got.Email)
		assert.True(t, got.IsActive)
	})

	tests := []httpTest{
		{
			name: "create requires management", method: http.MethodPost, path: "/v1/users", token: getToken(t, f, f.teacher),
			body:     marchallObj(t, user.NewUser{Name: "Eve", Username: "eve", Role: core.RoleStudent}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied: teacher cannot manage users"}),
		},
		{
			name: "create duplicate username", method: http.MethodPost, path: "/v1/users", token: adminToken,
			body:     marchallObj(t, user.NewUser{Name: "Alice 2", Username: "ALICE", Role: core.RoleStudent}),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "create malformed body", method: http.MethodPost, path: "/v1/users", token: adminToken,
			body: []byte(`{"name": `), wantCode: http.StatusBadRequest,
		},
		{
			name: "query bad is_active", path: "/v1/users?is_active=maybe", token: adminToken,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"is_active": "must be a boolean"}),
		},
		{
			name: "query denied to parents", path: "/v1/users", token: parentToken,
			wantCode: http.StatusForbidden,
		},
		{name: "parent sees own child", path: "/v1/users/" + f.student.ID, token: parentToken, wantCode: http.StatusOK},
		{
			name: "parent cannot see other users", path: "/v1/users/" + f.teacher.ID, token: parentToken,
			wantCode: http.StatusForbidden,
		},
		{
			name: "unknown user", path: "/v1/users/unknown", token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "user not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("query is_active", func(t *testing.T) {
		rec := f.do(httpTest{path: "/v1/users?is_active=true&role=parent", token: adminToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got []user.User
		unmarshal(t, rec, &got)
		require.Len(t, got, 1)
		assert.Equal(t, f.parent.ID, got[0].ID)
	})

	t.Run("parents and children", func(t *testing.T) {
		rec := f.do(httpTest{path: "/v1/users/" + f.student.ID + "/parents", token: adminToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var parents []user.User
		unmarshal(t, rec, &parents)
		require.Len(t, parents, 1)
		assert.Equal(t, f.parent.ID, parents[0].ID)

		rec = f.do(httpTest{
			method: http.MethodDelete, path: "/v1/users/" + f.student.ID + "/parents/" + f.parent.ID, token: adminToken,
		})
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

		rec = f.do(httpTest{path: "/v1/users/" + f.parent.ID + "/children", token: parentToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var children []user.User
		unmarshal(t, rec, &children)
		assert.Empty(t, children)

		rec = f.do(httpTest{
			method: http.MethodPost, path: "/v1/users/" + f.student.ID + "/parents", token: adminToken,
			body: marchallObj(t, map[string]string{"parent_id": f.parent.ID}),
		})
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	})

	t.Run("points", func(t *testing.T) {
		rec := f.do(httpTest{
			method: http.MethodPost, path: "/v1/points", token: getToken(t, f, f.teacher),
			body: marchallObj(t, map[string]interface{}{"user_id": f.student.ID, "amount": 10, "description": "Olympiad"}),
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = f.do(httpTest{path: "/v1/users/" + f.student.ID + "/points", token: parentToken})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got struct {
			Balance      int           `json:"balance"`
			Transactions []interface{} `json:"transactions"`
		}
		unmarshal(t, rec, &got)
		assert.Equal(t, 10, got.Balance)
		assert.Len(t, got.Transactions, 1)
	})
}
