package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/school"
)

type schoolRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Address   string    `db:"address"`
	CreatedAt time.Time `db:"created_at"`
}

type classRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	SchoolID  string    `db:"school_id"`
	CreatedAt time.Time `db:"created_at"`
}

type subjectRow struct {
	ID        string        `db:"id"`
	Name      string        `db:"name"`
	Metadata  core.Metadata `db:"metadata"`
	CreatedAt time.Time     `db:"created_at"`
}

type schoolRepository struct {
	baseRepository
}

var _ school.Repository = (*schoolRepository)(nil) // interface compliance check

func NewSchoolRepository(exec core.DBExecutor) *schoolRepository {
	return &schoolRepository{baseRepository{exec: exec}}
}

func (repo schoolRepository) CreateSchool(ctx context.Context, sch school.School, exec ...core.DBExecutor) (school.School, error) {
	sch.ID = newID()
	sch.CreatedAt = sch.CreatedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO schools (id, name, address, created_at) VALUES (?, ?, ?, ?)",
		sch.ID, sch.Name, sch.Address, sch.CreatedAt)
	return sch, errors.Wrap(err, "inserting school")
}

func (repo schoolRepository) GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (school.School, error) {
	var row schoolRow
	err := get(ctx, repo.getExec(exec), &row, "SELECT id, name, address, created_at FROM schools WHERE id = ?", id)
	if err != nil {
		return school.School{}, trapNoRowsErr(err, "school", id, "finding school")
	}
	return school.School(row), nil
}

func (repo schoolRepository) QuerySchools(ctx context.Context, exec ...core.DBExecutor) ([]school.School, error) {
	var rows []schoolRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, "SELECT id, name, address, created_at FROM schools ORDER BY name, id"); err != nil {
		return nil, errors.Wrap(err, "querying schools")
	}
	schools := make([]school.School, 0, len(rows))
	for _, r := range rows {
		schools = append(schools, school.School(r))
	}
	return schools, nil
}

func (repo schoolRepository) CreateClass(ctx context.Context, cls school.Class, exec ...core.DBExecutor) (school.Class, error) {
	cls.ID = newID()
	cls.CreatedAt = cls.CreatedAt.UTC()
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO classes (id, name, school_id, created_at) VALUES (?, ?, ?, ?)",
		cls.ID, cls.Name, cls.SchoolID, cls.CreatedAt)
	return cls, errors.Wrap(err, "inserting class")
}

func (repo schoolRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (school.Class, error) {
	var row classRow
	err := get(ctx, repo.getExec(exec), &row, "SELECT id, name, school_id, created_at FROM classes WHERE id = ?", id)
	if err != nil {
		return school.Class{}, trapNoRowsErr(err, "class", id, "finding class")
	}
	return school.Class(row), nil
}

func (repo schoolRepository) ClassExists(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT id FROM classes WHERE id = ?", id)
	return ok, errors.Wrap(err, "checking class")
}

func (repo schoolRepository) ClassNameTaken(ctx context.Context, schoolID, name string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec),
		"SELECT id FROM classes WHERE school_id = ? AND LOWER(name) = ?", schoolID, core.CleanString(name, true))
	return ok, errors.Wrap(err, "checking class name")
}

func (repo schoolRepository) QueryClasses(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]school.Class, error) {
	w := &where{}
	if schoolID != "" {
		w.add("school_id = ?", schoolID)
	}
	var rows []classRow
	err := selectAll(ctx, repo.getExec(exec), &rows,
		"SELECT id, name, school_id, created_at FROM classes"+w.String()+" ORDER BY name, id", w.args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	classes := make([]school.Class, 0, len(rows))
	for _, r := range rows {
		classes = append(classes, school.Class(r))
	}
	return classes, nil
}

func (repo schoolRepository) CreateSubject(ctx context.Context, subj school.Subject, exec ...core.DBExecutor) (school.Subject, error) {
	subj.ID = newID()
	subj.CreatedAt = subj.CreatedAt.UTC()
	if subj.Metadata == nil {
		subj.Metadata = core.Metadata{}
	}
	_, err := execute(ctx, repo.getExec(exec),
		"INSERT INTO subjects (id, name, metadata, created_at) VALUES (?, ?, ?, ?)",
		subj.ID, subj.Name, subj.Metadata, subj.CreatedAt)
	return subj, errors.Wrap(err, "inserting subject")
}

func (repo schoolRepository) GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (school.Subject, error) {
	var row subjectRow
	err := get(ctx, repo.getExec(exec), &row, "SELECT id, name, metadata, created_at FROM subjects WHERE id = ?", id)
	if err != nil {
		return school.Subject{}, trapNoRowsErr(err, "subject", id, "finding subject")
	}
	return school.Subject(row), nil
}

func (repo schoolRepository) SubjectNameTaken(ctx context.Context, name string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT id FROM subjects WHERE LOWER(name) = ?", core.CleanString(name, true))
	return ok, errors.Wrap(err, "checking subject name")
}

func (repo schoolRepository) QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]school.Subject, error) {
	var rows []subjectRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, "SELECT id, name, metadata, created_at FROM subjects ORDER BY name, id"); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]school.Subject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, school.Subject(r))
	}
	return subjects, nil
}
