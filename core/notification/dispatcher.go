package notification

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/pkg/errors"

	"github.com/trezcool/learnsphere/core"
	"github.com/trezcool/learnsphere/core/school"
	"github.com/trezcool/learnsphere/core/user"
)

const (
	dateLayout     = "02.01.2006"
	deadlineLayout = "02.01.2006 15:04"
)

var emailSubjects = map[Kind]string{
	KindGrade:      "New grade",
	KindAbsence:    "Absence",
	KindAssignment: "New assignment",
	KindSubmission: "New submission",
}

type Repository interface {
	CreateNotification(ctx context.Context, n Notification, exec ...core.DBExecutor) (Notification, error)
	GetNotification(ctx context.Context, id string, exec ...core.DBExecutor) (Notification, error)
	QueryNotifications(ctx context.Context, recipientID string, unreadOnly bool, exec ...core.DBExecutor) ([]Notification, error)
	CountUnread(ctx context.Context, recipientID string, exec ...core.DBExecutor) (int, error)
	MarkRead(ctx context.Context, id string, exec ...core.DBExecutor) error
	MarkAllRead(ctx context.Context, recipientID string, exec ...core.DBExecutor) (int64, error)
}

// Dispatcher derives the recipients of domain events and writes their notifications.
// Writes are independent: a failed row is logged and skipped.
type Dispatcher struct {
	repo    Repository
	users   user.Repository
	schools school.Repository
	mail    core.EmailService
	metrics core.Metrics
	logger  core.Logger
}

func NewDispatcher(
	repo Repository,
	users user.Repository,
	schools school.Repository,
	mail core.EmailService,
	metrics core.Metrics,
	logger core.Logger,
) *Dispatcher {
	return &Dispatcher{
		repo:    repo,
		users:   users,
		schools: schools,
		mail:    mail,
		metrics: metrics,
		logger:  logger,
	}
}

type outgoing struct {
	recipient user.User
	message   string
}

// send writes one notification per outgoing message and e-mails a copy to recipients with an address.
func (d *Dispatcher) send(ctx context.Context, kind Kind, out []outgoing) []Notification {
	sent := make([]Notification, 0, len(out))
	emails := make([]*core.EmailMessage, 0, len(out))

	for _, o := range out {
		n, err := d.repo.CreateNotification(ctx, Notification{
			RecipientID: o.recipient.ID,
			Kind:        kind,
			Message:     o.message,
			CreatedAt:   core.Now(),
		})
		if err != nil {
			d.logger.Error(
				fmt.Sprintf("writing %s notification: %v", kind, err),
				errors.Wrap(err, "creating notification"),
				map[string]interface{}{"recipient_id": o.recipient.ID},
			)
			continue
		}
		sent = append(sent, n)

		if o.recipient.Email != "" {
			emails = append(emails, &core.EmailMessage{
				To:      []mail.Address{{Name: o.recipient.Name, Address: o.recipient.Email}},
				Subject: emailSubjects[kind],
				BodyStr: o.message,
			})
		}
	}

	if len(emails) > 0 && d.mail != nil {
		d.mail.SendMessages(emails...)
	}
	d.metrics.AddNotifications(string(kind), len(sent))
	return sent
}

func (d *Dispatcher) subjectName(ctx context.Context, subjectID string) string {
	subj, err := d.schools.GetSubject(ctx, subjectID)
	if err != nil {
		d.logger.Warn(fmt.Sprintf("resolving subject %s: %v", subjectID, err))
		return "subject"
	}
	return subj.Name
}

// DispatchGrade notifies the student and every linked parent.
func (d *Dispatcher) DispatchGrade(ctx context.Context, ev GradeEvent) ([]Notification, error) {
	student, err := d.users.GetUser(ctx, user.GetFilter{ID: ev.StudentID})
	if err != nil {
		return nil, errors.Wrap(err, "getting student")
	}
	parents, err := d.users.QueryParents(ctx, student.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying parents")
	}
	subject := d.subjectName(ctx, ev.SubjectID)

	msg := fmt.Sprintf("New grade in %s: %d", subject, ev.Value)
	if ev.Comment != "" {
		msg += fmt.Sprintf(". Comment: %s", ev.Comment)
	}
	out := []outgoing{{recipient: student, message: msg}}
	for _, p := range parents {
		out = append(out, outgoing{
			recipient: p,
			message:   fmt.Sprintf("Your child %s received a grade in %s: %d", student.Name, subject, ev.Value),
		})
	}
	return d.send(ctx, KindGrade, out), nil
}

// DispatchAbsence notifies the first linked parent only.
func (d *Dispatcher) DispatchAbsence(ctx context.Context, ev AbsenceEvent) ([]Notification, error) {
	student, err := d.users.GetUser(ctx, user.GetFilter{ID: ev.StudentID})
	if err != nil {
		return nil, errors.Wrap(err, "getting student")
	}
	parents, err := d.users.QueryParents(ctx, student.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying parents")
	}
	if len(parents) == 0 {
		return []Notification{}, nil
	}
	msg := fmt.Sprintf("Your child %s was absent on %s", student.Name, ev.Date.Format(dateLayout))
	return d.send(ctx, KindAbsence, []outgoing{{recipient: parents[0], message: msg}}), nil
}

// DispatchAssignment notifies every student of the target class.
func (d *Dispatcher) DispatchAssignment(ctx context.Context, ev AssignmentEvent) ([]Notification, error) {
	students, err := d.users.QueryUsers(ctx, &user.QueryFilter{
		Roles:   []core.Role{core.RoleStudent},
		ClassID: ev.ClassID,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying class students")
	}
	subject := d.subjectName(ctx, ev.SubjectID)

	msg := fmt.Sprintf("New assignment in %s: %s. Deadline: %s", subject, ev.Description, ev.Deadline.Format(deadlineLayout))
	out := make([]outgoing, 0, len(students))
	for _, s := range students {
		out = append(out, outgoing{recipient: s, message: msg})
	}
	return d.send(ctx, KindAssignment, out), nil
}

// DispatchSubmission notifies every active teacher.
func (d *Dispatcher) DispatchSubmission(ctx context.Context, ev SubmissionEvent) ([]Notification, error) {
	student, err := d.users.GetUser(ctx, user.GetFilter{ID: ev.StudentID})
	if err != nil {
		return nil, errors.Wrap(err, "getting student")
	}
	active := true
	teachers, err := d.users.QueryUsers(ctx, &user.QueryFilter{
		Roles:    []core.Role{core.RoleTeacher},
		IsActive: &active,
	}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying teachers")
	}
	subject := d.subjectName(ctx, ev.SubjectID)

	msg := fmt.Sprintf("%s submitted an assignment in %s", student.Name, subject)
	out := make([]outgoing, 0, len(teachers))
	for _, t := range teachers {
		out = append(out, outgoing{recipient: t, message: msg})
	}
	return d.send(ctx, KindSubmission, out), nil
}
