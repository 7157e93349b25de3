package homework

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/notification"
	"github.com/trezcool/learnsphere/core/policy"
	"github.com/trezcool/learnsphere/core/school"
	"github.com/trezcool/learnsphere/core/user"
)

var ErrAlreadySubmitted = errors.New("this assignment was already submitted")

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		GetAssignment(ctx context.Context, id string, exec ...core.DBExecutor) (Assignment, error)
		QueryAssignments(ctx context.Context, filter AssignmentFilter, exec ...core.DBExecutor) ([]Assignment, error)

		CreateSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		GetSubmission(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
		SubmissionExists(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) (bool, error)
		UpdateSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		// QuerySubmissions lists the submissions of assignmentID, optionally of one student only.
		QuerySubmissions(ctx context.Context, assignmentID, studentID string, exec ...core.DBExecutor) ([]Submission, error)
	}

	// Notifier is told about new assignments and submissions.
	Notifier interface {
		DispatchAssignment(ctx context.Context, ev notification.AssignmentEvent) ([]notification.Notification, error)
		DispatchSubmission(ctx context.Context, ev notification.SubmissionEvent) ([]notification.Notification, error)
	}

	Service struct {
		db       core.DB
		repo     Repository
		schools  school.Repository
		notifier Notifier
		policy   policy.Evaluator
		validate *validator.Validate
		logger   core.Logger
	}
)

func NewService(
	db core.DB,
	repo Repository,
	schools school.Repository,
	notifier Notifier,
	pol policy.Evaluator,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		schools:  schools,
		notifier: notifier,
		policy:   pol,
		validate: validate,
		logger:   logger,
	}
}

// CreateAssignment creates an assignment and notifies the students of its class.
func (svc *Service) CreateAssignment(ctx context.Context, actor user.User, na NewAssignment) (Assignment, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageHomework); err != nil {
		return Assignment{}, err
	}
	if err := na.Validate(svc.validate); err != nil {
		return Assignment{}, err
	}
	if _, err := svc.schools.GetClass(ctx, na.ClassID); err != nil {
		return Assignment{}, err
	}
	if _, err := svc.schools.GetSubject(ctx, na.SubjectID); err != nil {
		return Assignment{}, err
	}

	a, err := svc.repo.CreateAssignment(ctx, Assignment{
		SubjectID:   na.SubjectID,
		ClassID:     na.ClassID,
		TeacherID:   actor.ID,
		Description: na.Description,
		Deadline:    na.Deadline.UTC(),
		CreatedAt:   core.Now(),
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}

	ev := notification.AssignmentEvent{
		AssignmentID: a.ID,
		ClassID:      a.ClassID,
		SubjectID:    a.SubjectID,
		Description:  a.Description,
		Deadline:     a.Deadline,
	}
	if _, err = svc.notifier.DispatchAssignment(ctx, ev); err != nil {
		svc.logger.Error(fmt.Sprintf("dispatching assignment notifications: %v", err), err)
	}
	return a, nil
}

// canSee restricts students to the assignments of their own class.
func (svc *Service) canSee(actor user.User, a Assignment) error {
	if actor.IsStudent() && actor.ClassID != a.ClassID {
		return core.NewPermissionError(actor.Role, "view another class's assignment")
	}
	return nil
}

func (svc *Service) GetAssignment(ctx context.Context, actor user.User, id string) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if err = svc.canSee(actor, a); err != nil {
		return Assignment{}, err
	}
	return a, nil
}

func (svc *Service) QueryAssignments(ctx context.Context, actor user.User, filter AssignmentFilter) ([]Assignment, error) {
	if actor.IsStudent() {
		filter.ClassID = actor.ClassID
	}
	return svc.repo.QueryAssignments(ctx, filter)
}

// Submit hands in the actor's work for an assignment of their class and notifies the teachers.
func (svc *Service) Submit(ctx context.Context, actor user.User, assignmentID string, ns NewSubmission) (Submission, error) {
	if err := svc.policy.Authorize(actor.Role, policy.SubmitHomework); err != nil {
		return Submission{}, err
	}
	if err := ns.Validate(svc.validate); err != nil {
		return Submission{}, err
	}
	a, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}
	if err = svc.canSee(actor, a); err != nil {
		return Submission{}, err
	}

	var sub Submission
	err = core.InTx(ctx, svc.db, func(tx core.DBExecutor) error {
		exists, err := svc.repo.SubmissionExists(ctx, a.ID, actor.ID, tx)
		if err != nil {
			return errors.Wrap(err, "checking submission")
		}
		if exists {
			return core.NewValidationError(ErrAlreadySubmitted)
		}
		sub, err = svc.repo.CreateSubmission(ctx, Submission{
			AssignmentID: a.ID,
			StudentID:    actor.ID,
			Content:      ns.Content,
			SubmittedAt:  core.Now(),
		}, tx)
		return errors.Wrap(err, "creating submission")
	})
	if err != nil {
		return Submission{}, err
	}

	ev := notification.SubmissionEvent{
		SubmissionID: sub.ID,
		AssignmentID: a.ID,
		StudentID:    actor.ID,
		SubjectID:    a.SubjectID,
	}
	if _, err = svc.notifier.DispatchSubmission(ctx, ev); err != nil {
		svc.logger.Error(fmt.Sprintf("dispatching submission notifications: %v", err), err)
	}
	return sub, nil
}

func (svc *Service) GradeSubmission(ctx context.Context, actor user.User, submissionID string, sg SubmissionGrade) (Submission, error) {
	if err := svc.policy.Authorize(actor.Role, policy.ManageHomework); err != nil {
		return Submission{}, err
	}
	if err := svc.validate.Struct(sg); err != nil {
		return Submission{}, err
	}
	sub, err := svc.repo.GetSubmission(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}
	sub.Grade = null.IntFromPtr(sg.Grade)
	sub.Feedback = core.CleanString(sg.Feedback)
	sub, err = svc.repo.UpdateSubmission(ctx, sub)
	return sub, errors.Wrap(err, "grading submission")
}

// QuerySubmissions lists the submissions of an assignment. Students only see their own.
func (svc *Service) QuerySubmissions(ctx context.Context, actor user.User, assignmentID string) ([]Submission, error) {
	a, err := svc.repo.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	var studentID string
	switch {
	case svc.policy.Allowed(actor.Role, policy.ManageHomework):
	case actor.IsStudent():
		if err = svc.canSee(actor, a); err != nil {
			return nil, err
		}
		studentID = actor.ID
	default:
		return nil, core.NewPermissionError(actor.Role, "view submissions")
	}
	return svc.repo.QuerySubmissions(ctx, a.ID, studentID)
}
