// Package sqlxrepos implements the core repositories on top of sqlx.
// Queries use "?" placeholders and are rebound to the driver's bindvar type,
// so the same SQL runs on PostgreSQL and SQLite.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core"
)

type baseRepository struct {
	exec core.DBExecutor
}

func (repo baseRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func newID() string {
	return uuid.New().String()
}

// trapNoRowsErr maps sql.ErrNoRows to a core.NotFoundError.
func trapNoRowsErr(err error, entity, id, msg string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return core.NewNotFoundError(entity, id)
	}
	return errors.Wrap(err, msg)
}

func get(ctx context.Context, exe core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return exe.GetContext(ctx, dest, exe.Rebind(query), args...)
}

func selectAll(ctx context.Context, exe core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	return exe.SelectContext(ctx, dest, exe.Rebind(query), args...)
}

func execute(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) (int64, error) {
	res, err := exe.ExecContext(ctx, exe.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func exists(ctx context.Context, exe core.DBExecutor, query string, args ...interface{}) (bool, error) {
	var n int
	if err := get(ctx, exe, &n, "SELECT COUNT(*) FROM ("+query+") AS q", args...); err != nil {
		return false, err
	}
	return n > 0, nil
}

// where accumulates AND-ed conditions with their arguments.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// in adds a "col IN (...)" condition; an empty list matches nothing.
func (w *where) in(col string, values []string) error {
	if len(values) == 0 {
		w.add("1 = 0")
		return nil
	}
	q, args, err := sqlx.In(col+" IN (?)", values)
	if err != nil {
		return errors.Wrap(err, "expanding IN list")
	}
	w.add(q, args...)
	return nil
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders ordering, keeping only the fields allowed maps to columns.
func orderBy(ordering []core.DBOrdering, allowed map[string]string, fallback string) string {
	list := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := allowed[ord.Field]; ok {
			list = append(list, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(list) == 0 {
		return " ORDER BY " + fallback
	}
	return " ORDER BY " + strings.Join(list, ", ")
}

func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}
