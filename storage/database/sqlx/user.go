package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/user"
)

const userColumns = "id, name, username, email, role, class_id, is_active, metadata, created_at, updated_at"

type userRow struct {
	ID        string        `db:"id"`
	Name      string        `db:"name"`
	Username  string        `db:"username"`
	Email     null.String   `db:"email"`
	Role      string        `db:"role"`
	ClassID   null.String   `db:"class_id"`
	IsActive  bool          `db:"is_active"`
	Metadata  core.Metadata `db:"metadata"`
	CreatedAt time.Time     `db:"created_at"`
	UpdatedAt time.Time     `db:"updated_at"`
}

type userRepository struct {
	baseRepository
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{baseRepository{exec: exec}}
}

func (repo userRepository) boil(usr user.User) userRow {
	return userRow{
		ID:        usr.ID,
		Name:      usr.Name,
		Username:  usr.Username,
		Email:     null.NewString(usr.Email, usr.Email != ""),
		Role:      string(usr.Role),
		ClassID:   null.NewString(usr.ClassID, usr.ClassID != ""),
		IsActive:  usr.IsActive,
		Metadata:  usr.Metadata,
		CreatedAt: usr.CreatedAt.UTC(),
		UpdatedAt: usr.UpdatedAt.UTC(),
	}
}

func (repo userRepository) unboil(row userRow) user.User {
	return user.User{
		ID:        row.ID,
		Name:      row.Name,
		Username:  row.Username,
		Email:     row.Email.String,
		Role:      core.Role(row.Role),
		ClassID:   row.ClassID.String,
		IsActive:  row.IsActive,
		Metadata:  row.Metadata,
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func (repo userRepository) unboilSlice(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, repo.unboil(r))
	}
	return users
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email, excludedID string, exec ...core.DBExecutor) error {
	exe := repo.getExec(exec)
	check := func(col, val string, errTaken error) error {
		if val == "" {
			return nil
		}
		w := &where{}
		w.add(col+" = ?", val)
		if excludedID != "" {
			w.add("id <> ?", excludedID)
		}
		taken, err := exists(ctx, exe, "SELECT id FROM users"+w.String(), w.args...)
		if err != nil {
			return errors.Wrap(err, "checking user uniqueness")
		}
		if taken {
			return errTaken
		}
		return nil
	}
	if err := check("username", username, user.ErrUsernameExists); err != nil {
		return err
	}
	return check("email", email, user.ErrEmailExists)
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = newID()
	if usr.Metadata == nil {
		usr.Metadata = core.Metadata{}
	}
	row := repo.boil(usr)
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		row.ID, row.Name, row.Username, row.Email, row.Role, row.ClassID, row.IsActive, row.Metadata, row.CreatedAt, row.UpdatedAt)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	var row userRow
	var err error
	exe := repo.getExec(exec)

	switch {
	case filter.ID != "":
		err = get(ctx, exe, &row, "SELECT "+userColumns+" FROM users WHERE id = ?", filter.ID)
		if err != nil {
			return user.User{}, trapNoRowsErr(err, "user", filter.ID, "finding user by ID")
		}
	case filter.Username != "":
		err = get(ctx, exe, &row, "SELECT "+userColumns+" FROM users WHERE username = ?", filter.Username)
		if err != nil {
			return user.User{}, trapNoRowsErr(err, "user", filter.Username, "finding user by username")
		}
	default:
		return user.User{}, core.NewNotFoundError("user", "")
	}
	return repo.unboil(row), nil
}

var userOrdering = map[string]string{
	"name":       "name",
	"username":   "username",
	"role":       "role",
	"created_at": "created_at",
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	w := &where{}
	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := likePattern(filter.Search)
			w.add("(LOWER(name) LIKE ? OR LOWER(username) LIKE ? OR LOWER(COALESCE(email, '')) LIKE ?)", val, val, val)
		}
		if len(filter.Roles) > 0 {
			roles := make([]string, 0, len(filter.Roles))
			for _, r := range filter.Roles {
				roles = append(roles, string(r))
			}
			if err := w.in("role", roles); err != nil {
				return nil, err
			}
		}
		if filter.ClassID != "" {
			w.add("class_id = ?", filter.ClassID)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}

	q := "SELECT " + userColumns + " FROM users" + w.String() + orderBy(ordering, userOrdering, "name ASC, id ASC")
	var rows []userRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}
	return repo.unboilSlice(rows), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	row := repo.boil(usr)
	n, err := execute(ctx, repo.getExec(exec),
		"UPDATE users SET name = ?, email = ?, class_id = ?, is_active = ?, metadata = ?, updated_at = ? WHERE id = ?",
		row.Name, row.Email, row.ClassID, row.IsActive, row.Metadata, row.UpdatedAt, row.ID)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n == 0 {
		return user.User{}, core.NewNotFoundError("user", usr.ID)
	}
	return usr, nil
}

func (repo userRepository) LinkParent(ctx context.Context, parentID, childID string, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO parent_of (parent_id, child_id, created_at) VALUES (?, ?, ?)", parentID, childID, core.Now())
	return errors.Wrap(err, "inserting parent link")
}

func (repo userRepository) UnlinkParent(ctx context.Context, parentID, childID string, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec),
		"DELETE FROM parent_of WHERE parent_id = ? AND child_id = ?", parentID, childID)
	return errors.Wrap(err, "deleting parent link")
}

func (repo userRepository) IsParentOf(ctx context.Context, parentID, childID string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec),
		"SELECT parent_id FROM parent_of WHERE parent_id = ? AND child_id = ?", parentID, childID)
	return ok, errors.Wrap(err, "checking parent link")
}

func (repo userRepository) QueryParents(ctx context.Context, childID string, exec ...core.DBExecutor) ([]user.User, error) {
	var rows []userRow
	err := selectAll(ctx, repo.getExec(exec), &rows,
		"SELECT u.id, u.name, u.username, u.email, u.role, u.class_id, u.is_active, u.metadata, u.created_at, u.updated_at "+
			"FROM users u JOIN parent_of p ON p.parent_id = u.id WHERE p.child_id = ? ORDER BY p.created_at, p.parent_id",
		childID)
	if err != nil {
		return nil, errors.Wrap(err, "querying parents")
	}
	return repo.unboilSlice(rows), nil
}

func (repo userRepository) QueryChildren(ctx context.Context, parentID string, exec ...core.DBExecutor) ([]user.User, error) {
	var rows []userRow
	err := selectAll(ctx, repo.getExec(exec), &rows,
		"SELECT u.id, u.name, u.username, u.email, u.role, u.class_id, u.is_active, u.metadata, u.created_at, u.updated_at "+
			"FROM users u JOIN parent_of p ON p.child_id = u.id WHERE p.parent_id = ? ORDER BY u.name, u.id",
		parentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying children")
	}
	return repo.unboilSlice(rows), nil
}
