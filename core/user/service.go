package user

import (
	"context"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/policy"
)

var (
	// errors
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
	ErrUnknownClass   = errors.New("class does not exist")
	ErrNotAParent     = errors.New("user is not a parent")
	ErrNotAStudent    = errors.New("user is not a student")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrUsernameExists or ErrEmailExists when taken by a user other than excludedID.
		CheckUniqueness(ctx context.Context, username, email, excludedID string, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUser(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)

		LinkParent(ctx context.Context, parentID, childID string, exec ...core.DBExecutor) error
		UnlinkParent(ctx context.Context, parentID, childID string, exec ...core.DBExecutor) error
		IsParentOf(ctx context.Context, parentID, childID string, exec ...core.DBExecutor) (bool, error)
		// QueryParents returns the parents of childID in the order they were linked.
		QueryParents(ctx context.Context, childID string, exec ...core.DBExecutor) ([]User, error)
		QueryChildren(ctx context.Context, parentID string, exec ...core.DBExecutor) ([]User, error)
	}

	// ClassFinder is used to check class references.
	ClassFinder interface {
		ClassExists(ctx context.Context, id string, exec ...core.DBExecutor) (bool, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, actor User, nu NewUser) (User, error)
		GetByID(ctx context.Context, id string) (User, error)
		GetByUsername(ctx context.Context, uname string) (User, error)
		Query(ctx context.Context, actor User, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error)
		Update(ctx context.Context, actor User, id string, uu UpdateUser) (User, error)
		LinkParent(ctx context.Context, actor User, parentID, childID string) error
		UnlinkParent(ctx context.Context, actor User, parentID, childID string) error
		Parents(ctx context.Context, actor User, childID string) ([]User, error)
		Children(ctx context.Context, actor User, parentID string) ([]User, error)
		CanView(ctx context.Context, actor User, studentID string) error
	}

	Service struct {
		db       core.DB
		repo     Repository
		classes  ClassFinder
		policy   policy.Evaluator
		validate *validator.Validate
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(db core.DB, repo Repository, classes ClassFinder, pol policy.Evaluator, validate *validator.Validate) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		classes:  classes,
		policy:   pol,
		validate: validate,
	}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email, excludedID string) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludedID); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) checkClass(ctx context.Context, classID string) error {
	if classID == "" {
		return nil
	}
	exists, err := svc.classes.ClassExists(ctx, classID)
	if err != nil {
		return errors.Wrap(err, "checking class")
	}
	if !exists {
		return core.NewValidationError(ErrUnknownClass, core.FieldError{Field: "class_id", Error: ErrUnknownClass.Error()})
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, actor User, nu NewUser) (User, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageUsers); err != nil {
		return User{}, err
	}
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email, ""); err != nil {
		return User{}, err
	}
	if err := svc.checkClass(ctx, nu.ClassID); err != nil {
		return User{}, err
	}

	now := core.Now()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      nu.Role,
		ClassID:   nu.ClassID,
		IsActive:  true,
		Metadata:  nu.Metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByUsername(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Username: core.CleanString(uname, true /* lower */)})
}

func (svc *Service) Query(ctx context.Context, actor User, filter *QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ViewRecords); err != nil {
		return nil, err
	}
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryUsers(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, actor User, id string, uu UpdateUser) (User, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageUsers); err != nil {
		return User{}, err
	}
	if err := uu.Validate(svc.validate); err != nil {
		return User{}, err
	}

	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return User{}, err
	}
	if uu.Name != "" {
		usr.Name = uu.Name
	}
	if uu.Email != nil && *uu.Email != usr.Email {
		if err = svc.checkUniqueness(ctx, "", *uu.Email, usr.ID); err != nil {
			return User{}, err
		}
		usr.Email = *uu.Email
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.ClassID != nil {
		if *uu.ClassID != "" && !usr.IsStudent() {
			return User{}, core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: studentClassText})
		}
		if err = svc.checkClass(ctx, *uu.ClassID); err != nil {
			return User{}, err
		}
		usr.ClassID = *uu.ClassID
	}
	if uu.Metadata != nil {
		usr.Metadata = uu.Metadata
	}
	usr.UpdatedAt = core.Now()

	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

// getPair loads a parent and a child and checks their roles.
func (svc *Service) getPair(ctx context.Context, parentID, childID string, exec core.DBExecutor) (User, User, error) {
	parent, err := svc.repo.GetUser(ctx, GetFilter{ID: parentID}, exec)
	if err != nil {
		return User{}, User{}, err
	}
	child, err := svc.repo.GetUser(ctx, GetFilter{ID: childID}, exec)
	if err != nil {
		return User{}, User{}, err
	}
	if !parent.IsParent() {
		return User{}, User{}, core.NewValidationError(ErrNotAParent, core.FieldError{Field: "parent_id", Error: ErrNotAParent.Error()})
	}
	if !child.IsStudent() {
		return User{}, User{}, core.NewValidationError(ErrNotAStudent, core.FieldError{Field: "child_id", Error: ErrNotAStudent.Error()})
	}
	return parent, child, nil
}

// LinkParent links a parent account to a student. Linking twice is a no-op.
func (svc *Service) LinkParent(ctx context.Context, actor User, parentID, childID string) error {
	if err := svc.policy.Authorize(actor.Role, policy.ManageUsers); err != nil {
		return err
	}
	return core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		if _, _, err := svc.getPair(ctx, parentID, childID, tx); err != nil {
			return err
		}
		linked, err := svc.repo.IsParentOf(ctx, parentID, childID, tx)
		if err != nil {
			return errors.Wrap(err, "checking parent link")
		}
		if linked {
			return nil
		}
		return errors.Wrap(svc.repo.LinkParent(ctx, parentID, childID, tx), "linking parent")
	})
}

func (svc *Service) UnlinkParent(ctx context.Context, actor User, parentID, childID string) error {
	if err := svc.policy.Authorize(actor.Role, policy.ManageUsers); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.UnlinkParent(ctx, parentID, childID), "unlinking parent")
}

func (svc *Service) Parents(ctx context.Context, actor User, childID string) ([]User, error) {
	if err := svc.CanView(ctx, actor, childID); err != nil {
		return nil, err
	}
	return svc.repo.QueryParents(ctx, childID)
}

func (svc *Service) Children(ctx context.Context, actor User, parentID string) ([]User, error) {
	if actor.ID != parentID {
		if err := svc.policy.Authorize(actor.Role, policy.ViewRecords); err != nil {
			return nil, err
		}
	}
	return svc.repo.QueryChildren(ctx, parentID)
}

// CanView checks that actor may read the records of studentID:
// staff always, students their own and parents their linked children.
func (svc *Service) CanView(ctx context.Context, actor User, studentID string) error {
	if svc.policy.Allowed(actor.Role, policy.ViewRecords) {
		return nil
	}
	if err := svc.policy.Authorize(actor.Role, policy.ViewOwnRecords); err != nil {
		return err
	}
	switch {
	case actor.IsStudent() && actor.ID == studentID:
		return nil
	case actor.IsParent():
		linked, err := svc.repo.IsParentOf(ctx, actor.ID, studentID)
		if err != nil {
			return errors.Wrap(err, "checking parent link")
		}
		if linked {
			return nil
		}
	}
	return core.NewPermissionError(actor.Role, string(policy.ViewRecords))
}
