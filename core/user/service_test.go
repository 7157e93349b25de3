package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/user"
	"github.com/trezcool/learnsphere/testutil"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func isValidation(err error) bool {
	var vErr *core.ValidationError
	var fErrs validator.ValidationErrors
	return errors.As(err, &vErr) || errors.As(err, &fErrs)
}

func TestService_Create(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	sch := testutil.CreateSchool(t, app.SchoolRepo, "School 1")
	class := testutil.CreateClass(t, app.SchoolRepo, sch.ID, "9-A")
	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "admin", "admin@test.cd", core.RoleAdmin)
	teacher := testutil.CreateUser(t, app.UserRepo, "Teacher", "teacher", "", core.RoleTeacher)

	tests := []struct {
		name    string
		actor   user.User
		nu      user.NewUser
		wantErr func(error) bool
	}{
		{
			name:  "student in class",
			actor: admin,
			nu:    user.NewUser{Name: " Alice ", Username: "Alice_1", Email: "ALICE@test.cd", Role: core.RoleStudent, ClassID: class.ID},
		},
		{
			name:  "parent without email",
			actor: admin,
			nu:    user.NewUser{Name: "Mom", Username: "mom", Role: core.RoleParent},
		},
		{
			name:    "teacher may not create users",
			actor:   teacher,
			nu:      user.NewUser{Name: "Bob", Username: "bob", Role: core.RoleStudent},
			wantErr: core.IsPermissionDenied,
		},
		{
			name:    "username taken",
			actor:   admin,
			nu:      user.NewUser{Name: "Other", Username: "ADMIN", Role: core.RoleStudent},
			wantErr: isValidation,
		},
		{
			name:    "email taken",
			actor:   admin,
			nu:      user.NewUser{Name: "Other", Username: "other", Email: "admin@test.cd", Role: core.RoleStudent},
			wantErr: isValidation,
		},
		{
			name:    "unknown role",
			actor:   admin,
			nu:      user.NewUser{Name: "Other", Username: "other", Role: "janitor"},
			wantErr: isValidation,
		},
		{
			name:    "bad username",
			actor:   admin,
			nu:      user.NewUser{Name: "Other", Username: "o-t", Role: core.RoleStudent},
			wantErr: isValidation,
		},
		{
			name:    "class on a teacher",
			actor:   admin,
			nu:      user.NewUser{Name: "Other", Username: "other", Role: core.RoleTeacher, ClassID: class.ID},
			wantErr: isValidation,
		},
		{
			name:    "unknown class",
			actor:   admin,
			nu:      user.NewUser{Name: "Other", Username: "other", Role: core.RoleStudent, ClassID: "nope"},
			wantErr: isValidation,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := app.UserSvc.Create(ctx, tt.actor, tt.nu)
			if tt.wantErr != nil {
				assert.True(t, tt.wantErr(err), "unexpected error: %v", err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, usr.ID)
			assert.True(t, usr.IsActive)

			got, err := app.UserSvc.GetByUsername(ctx, tt.nu.Username)
			require.NoError(t, err)
			assert.Equal(t, usr.ID, got.ID)
			assert.Equal(t, usr.Email, got.Email)
			assert.Equal(t, tt.nu.ClassID, got.ClassID)
		})
	}

	alice, err := app.UserSvc.GetByUsername(ctx, "alice_1")
	require.NoError(t, err)
	assert.Equal(t, "Alice", alice.Name)
	assert.Equal(t, "alice@test.cd", alice.Email)
}

func TestService_Update(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	sch := testutil.CreateSchool(t, app.SchoolRepo, "School 1")
	classA := testutil.CreateClass(t, app.SchoolRepo, sch.ID, "9-A")
	classB := testutil.CreateClass(t, app.SchoolRepo, sch.ID, "9-B")
	director := testutil.CreateUser(t, app.UserRepo, "Director", "", "director@test.cd", core.RoleDirector)
	student := testutil.CreateUser(t, app.UserRepo, "Alice", "", "", core.RoleStudent, classA.ID)
	parent := testutil.CreateUser(t, app.UserRepo, "Mom", "", "", core.RoleParent)

	usr, err := app.UserSvc.Update(ctx, director, student.ID, user.UpdateUser{
		Name:     "Alice A.",
		Email:    strPtr("alice@test.cd"),
		ClassID:  strPtr(classB.ID),
		Metadata: core.Metadata{"phone": "+243"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice A.", usr.Name)
	assert.Equal(t, "alice@test.cd", usr.Email)
	assert.Equal(t, classB.ID, usr.ClassID)

	got, err := app.UserSvc.GetByID(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, "+243", got.Metadata["phone"])

	t.Run("deactivate", func(t *testing.T) {
		usr, err := app.UserSvc.Update(ctx, director, student.ID, user.UpdateUser{IsActive: boolPtr(false)})
		require.NoError(t, err)
		assert.False(t, usr.IsActive)
		assert.Equal(t, "Alice A.", usr.Name)
	})

	t.Run("email taken", func(t *testing.T) {
		_, err := app.UserSvc.Update(ctx, director, student.ID, user.UpdateUser{Email: strPtr("director@test.cd")})
		assert.True(t, isValidation(err))
	})

	t.Run("class on a parent", func(t *testing.T) {
		_, err := app.UserSvc.Update(ctx, director, parent.ID, user.UpdateUser{ClassID: strPtr(classA.ID)})
		assert.True(t, isValidation(err))
	})

	t.Run("not found", func(t *testing.T) {
		_, err := app.UserSvc.Update(ctx, director, "nope", user.UpdateUser{Name: "X"})
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("parent may not update", func(t *testing.T) {
		_, err := app.UserSvc.Update(ctx, parent, student.ID, user.UpdateUser{Name: "X"})
		assert.True(t, core.IsPermissionDenied(err))
	})
}

func TestService_Query(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	sch := testutil.CreateSchool(t, app.SchoolRepo, "School 1")
	class := testutil.CreateClass(t, app.SchoolRepo, sch.ID, "9-A")
	admin := testutil.CreateUser(t, app.UserRepo, "Zed Admin", "", "", core.RoleAdmin)
	testutil.CreateUser(t, app.UserRepo, "Alice", "", "alice@test.cd", core.RoleStudent, class.ID)
	testutil.CreateUser(t, app.UserRepo, "Bob", "", "", core.RoleStudent)
	student := testutil.CreateUser(t, app.UserRepo, "Carol", "", "", core.RoleStudent, class.ID)
	testutil.CreateUser(t, app.UserRepo, "Teacher", "", "", core.RoleTeacher)

	names := func(users []user.User) []string {
		out := make([]string, 0, len(users))
		for _, u := range users {
			out = append(out, u.Name)
		}
		return out
	}

	tests := []struct {
		name     string
		filter   *user.QueryFilter
		ordering []core.DBOrdering
		want     []string
	}{
		{name: "all", want: []string{"Alice", "Bob", "Carol", "Teacher", "Zed Admin"}},
		{name: "search email", filter: &user.QueryFilter{Search: " ALICE@ "}, want: []string{"Alice"}},
		{name: "roles", filter: &user.QueryFilter{Roles: []core.Role{core.RoleTeacher, core.RoleAdmin}}, want: []string{"Teacher", "Zed Admin"}},
		{name: "class", filter: &user.QueryFilter{ClassID: class.ID}, want: []string{"Alice", "Carol"}},
		{
			name:     "ordering",
			filter:   &user.QueryFilter{Roles: []core.Role{core.RoleStudent}},
			ordering: []core.DBOrdering{{Field: "name", Ascending: false}},
			want:     []string{"Carol", "Bob", "Alice"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := app.UserSvc.Query(ctx, admin, tt.filter, tt.ordering)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(got))
		})
	}

	_, err := app.UserSvc.Query(ctx, student, nil, nil)
	assert.True(t, core.IsPermissionDenied(err))
}

func TestService_Parents(t *testing.T) {
	app := testutil.NewApp(t)
	ctx := context.Background()
	admin := testutil.CreateUser(t, app.UserRepo, "Admin", "", "", core.RoleAdmin)
	teacher := testutil.CreateUser(t, app.UserRepo, "Teacher", "", "", core.RoleTeacher)
	alice := testutil.CreateUser(t, app.UserRepo, "Alice", "", "", core.RoleStudent)
	bob := testutil.CreateUser(t, app.UserRepo, "Bob", "", "", core.RoleStudent)
	mom := testutil.CreateUser(t, app.UserRepo, "Mom", "", "", core.RoleParent)
	dad := testutil.CreateUser(t, app.UserRepo, "Dad", "", "", core.RoleParent)

	require.NoError(t, app.UserSvc.LinkParent(ctx, admin, mom.ID, alice.ID))
	require.NoError(t, app.UserSvc.LinkParent(ctx, admin, mom.ID, alice.ID), "linking twice is a no-op")
	testutil.LinkParent(t, app.UserRepo, dad.ID, alice.ID)

	t.Run("link errors", func(t *testing.T) {
		err := app.UserSvc.LinkParent(ctx, teacher, mom.ID, bob.ID)
		assert.True(t, core.IsPermissionDenied(err))

		err = app.UserSvc.LinkParent(ctx, admin, teacher.ID, bob.ID)
		assert.True(t, errors.Is(err, user.ErrNotAParent))

		err = app.UserSvc.LinkParent(ctx, admin, mom.ID, dad.ID)
		assert.True(t, errors.Is(err, user.ErrNotAStudent))

		err = app.UserSvc.LinkParent(ctx, admin, mom.ID, "nope")
		assert.True(t, core.IsNotFound(err))
	})

	parents, err := app.UserSvc.Parents(ctx, alice, alice.ID)
	require.NoError(t, err)
	require.Len(t, parents, 2)
	assert.Equal(t, mom.ID, parents[0].ID, "parents are returned in link order")
	assert.Equal(t, dad.ID, parents[1].ID)

	children, err := app.UserSvc.Children(ctx, mom, mom.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, alice.ID, children[0].ID)

	_, err = app.UserSvc.Children(ctx, dad, mom.ID)
	assert.True(t, core.IsPermissionDenied(err))

	t.Run("can view", func(t *testing.T) {
		tests := []struct {
			name    string
			actor   user.User
			student user.User
			allowed bool
		}{
			{name: "staff", actor: teacher, student: bob, allowed: true},
			{name: "self", actor: alice, student: alice, allowed: true},
			{name: "classmate", actor: bob, student: alice},
			{name: "linked parent", actor: mom, student: alice, allowed: true},
			{name: "unlinked parent", actor: mom, student: bob},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := app.UserSvc.CanView(ctx, tt.actor, tt.student.ID)
				if tt.allowed {
					assert.NoError(t, err)
				} else {
					assert.True(t, core.IsPermissionDenied(err))
				}
			})
		}
	})

	require.NoError(t, app.UserSvc.UnlinkParent(ctx, admin, mom.ID, alice.ID))
	assert.True(t, core.IsPermissionDenied(app.UserSvc.CanView(ctx, mom, alice.ID)))
}
