package school

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/policy"
	"github.com/trezcool/learnsphere/core/user"
)

var (
	ErrClassExists   = errors.New("a class with this name already exists in this school")
	ErrSubjectExists = errors.New("a subject with this name already exists")
)

type (
	Repository interface {
		CreateSchool(ctx context.Context, sch School, exec ...core.DBExecutor) (School, error)
		GetSchool(ctx context.Context, id string, exec ...core.DBExecutor) (School, error)
		QuerySchools(ctx context.Context, exec ...core.DBExecutor) ([]School, error)

		CreateClass(ctx context.Context, cls Class, exec ...core.DBExecutor) (Class, error)
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		ClassExists(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)
		ClassNameTaken(ctx context.Context, schoolID, name string, exec ...core.DBExecutor) (bool, error)
		// QueryClasses returns every class, or the classes of schoolID when set.
		QueryClasses(ctx context.Context, schoolID string, exec ...core.DBExecutor) ([]Class, error)

		CreateSubject(ctx context.Context, subj Subject, exec ...core.DBExecutor) (Subject, error)
		GetSubject(ctx context.Context, id string, exec ...core.DBExecutor) (Subject, error)
		SubjectNameTaken(ctx context.Context, name string, exec ...core.DBExecutor) (bool, error)
		QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]Subject, error)
	}

	Service struct {
		repo     Repository
		policy   policy.Evaluator
		validate *validator.Validate
	}
)

var _ user.ClassFinder = (Repository)(nil)

func NewService(repo Repository, pol policy.Evaluator, validate *validator.Validate) *Service {
	return &Service{repo: repo, policy: pol, validate: validate}
}

func (svc *Service) CreateSchool(ctx context.Context, actor user.User, ns NewSchool) (School, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageSchools); err != nil {
		return School{}, err
	}
	if err := ns.Validate(svc.validate); err != nil {
		return School{}, err
	}
	sch, err := svc.repo.CreateSchool(ctx, School{Name: ns.Name, Address: ns.Address, CreatedAt: core.Now()})
	return sch, errors.Wrap(err, "creating school")
}

func (svc *Service) ListSchools(ctx context.Context) ([]School, error) {
	return svc.repo.QuerySchools(ctx)
}

func (svc *Service) CreateClass(ctx context.Context, actor user.User, nc NewClass) (Class, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageSchools); err != nil {
		return Class{}, err
	}
	if err := nc.Validate(svc.validate); err != nil {
		return Class{}, err
	}
	if _, err := svc.repo.GetSchool(ctx, nc.SchoolID); err != nil {
		return Class{}, err
	}
	taken, err := svc.repo.ClassNameTaken(ctx, nc.SchoolID, nc.Name)
	if err != nil {
		return Class{}, errors.Wrap(err, "checking class name")
	}
	if taken {
		return Class{}, core.NewValidationError(ErrClassExists, core.FieldError{Field: "name", Error: ErrClassExists.Error()})
	}
	cls, err := svc.repo.CreateClass(ctx, Class{Name: nc.Name, SchoolID: nc.SchoolID, CreatedAt: core.Now()})
	return cls, errors.Wrap(err, "creating class")
}

func (svc *Service) GetClass(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, id)
}

func (svc *Service) ListClasses(ctx context.Context, schoolID string) ([]Class, error) {
	return svc.repo.QueryClasses(ctx, core.CleanString(schoolID))
}

func (svc *Service) CreateSubject(ctx context.Context, actor user.User, ns NewSubject) (Subject, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageSchools); err != nil {
		return Subject{}, err
	}
	if err := ns.Validate(svc.validate); err != nil {
		return Subject{}, err
	}
	taken, err := svc.repo.SubjectNameTaken(ctx, ns.Name)
	if err != nil {
		return Subject{}, errors.Wrap(err, "checking subject name")
	}
	if taken {
		return Subject{}, core.NewValidationError(ErrSubjectExists, core.FieldError{Field: "name", Error: ErrSubjectExists.Error()})
	}
	subj, err := svc.repo.CreateSubject(ctx, Subject{Name: ns.Name, Metadata: ns.Metadata, CreatedAt: core.Now()})
	return subj, errors.Wrap(err, "creating subject")
}

func (svc *Service) GetSubject(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *Service) ListSubjects(ctx context.Context) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx)
}
